package repository

import (
	"cv-rag-go/internal/model"

	"gorm.io/gorm"
)

// ChunkRepository 接口定义了简历分块文本的数据持久化操作。
// 分块文本归数据库所有，向量归索引所有，二者通过 chunk_id 关联。
type ChunkRepository interface {
	BatchCreate(chunks []model.CVChunk) error
	GetByChunkID(chunkID string) (*model.CVChunk, error)
	FindByCandidateID(candidateID string) ([]model.CVChunk, error)
	FindBatchByChunkIDs(chunkIDs []string) ([]model.CVChunk, error)
	ListChunkIDs(candidateID string) ([]string, error)
	DeleteByCandidateID(candidateID string) error
}

// chunkRepository 是 ChunkRepository 接口的 GORM 实现。
type chunkRepository struct {
	db *gorm.DB
}

// NewChunkRepository 创建一个新的 ChunkRepository 实例。
func NewChunkRepository(db *gorm.DB) ChunkRepository {
	return &chunkRepository{db: db}
}

// BatchCreate 批量写入分块记录。
func (r *chunkRepository) BatchCreate(chunks []model.CVChunk) error {
	if len(chunks) == 0 {
		return nil
	}
	return r.db.CreateInBatches(chunks, 100).Error
}

// GetByChunkID 根据分块 ID 检索分块文本。
func (r *chunkRepository) GetByChunkID(chunkID string) (*model.CVChunk, error) {
	var chunk model.CVChunk
	if err := r.db.Where("chunk_id = ?", chunkID).First(&chunk).Error; err != nil {
		return nil, err
	}
	return &chunk, nil
}

// FindByCandidateID 返回某候选人的全部分块，按位置升序。
func (r *chunkRepository) FindByCandidateID(candidateID string) ([]model.CVChunk, error) {
	var chunks []model.CVChunk
	err := r.db.Where("candidate_id = ?", candidateID).Order("position asc").Find(&chunks).Error
	return chunks, err
}

// FindBatchByChunkIDs 按分块 ID 批量检索分块文本。
func (r *chunkRepository) FindBatchByChunkIDs(chunkIDs []string) ([]model.CVChunk, error) {
	var chunks []model.CVChunk
	if len(chunkIDs) == 0 {
		return chunks, nil
	}
	err := r.db.Where("chunk_id IN ?", chunkIDs).Find(&chunks).Error
	return chunks, err
}

// ListChunkIDs 返回某候选人全部分块的 ID。
func (r *chunkRepository) ListChunkIDs(candidateID string) ([]string, error) {
	var ids []string
	err := r.db.Model(&model.CVChunk{}).
		Where("candidate_id = ?", candidateID).
		Order("position asc").
		Pluck("chunk_id", &ids).Error
	return ids, err
}

// DeleteByCandidateID 删除某候选人的全部分块记录。
func (r *chunkRepository) DeleteByCandidateID(candidateID string) error {
	return r.db.Where("candidate_id = ?", candidateID).Delete(&model.CVChunk{}).Error
}
