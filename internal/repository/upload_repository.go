package repository

import (
	"cv-rag-go/internal/model"
	"time"

	"gorm.io/gorm"
)

// UploadRepository 接口定义了简历上传进度记录的数据持久化操作。
type UploadRepository interface {
	Create(upload *model.CVUpload) error
	GetByID(id uint) (*model.CVUpload, error)
	GetByCandidateID(candidateID string) (*model.CVUpload, error)
	// UpdateStage 推进一条上传记录的处理阶段。
	UpdateStage(id uint, stage string) error
	// MarkIndexed 标记索引完成并记录完成时间。
	MarkIndexed(id uint) error
	// MarkFailed 标记处理失败，并记录失败发生时所处的阶段。
	MarkFailed(id uint, failedStage string) error
	DeleteByCandidateID(candidateID string) error
}

// uploadRepository 是 UploadRepository 接口的 GORM 实现。
type uploadRepository struct {
	db *gorm.DB
}

// NewUploadRepository 创建一个新的 UploadRepository 实例。
func NewUploadRepository(db *gorm.DB) UploadRepository {
	return &uploadRepository{db: db}
}

// Create 在数据库中创建一条上传记录。
func (r *uploadRepository) Create(upload *model.CVUpload) error {
	return r.db.Create(upload).Error
}

// GetByID 根据记录 ID 检索上传记录。
func (r *uploadRepository) GetByID(id uint) (*model.CVUpload, error) {
	var upload model.CVUpload
	if err := r.db.Where("id = ?", id).First(&upload).Error; err != nil {
		return nil, err
	}
	return &upload, nil
}

// GetByCandidateID 根据候选人 ID 检索上传记录。
func (r *uploadRepository) GetByCandidateID(candidateID string) (*model.CVUpload, error) {
	var upload model.CVUpload
	if err := r.db.Where("candidate_id = ?", candidateID).First(&upload).Error; err != nil {
		return nil, err
	}
	return &upload, nil
}

// UpdateStage 推进处理阶段，同时清除历史失败标记。
func (r *uploadRepository) UpdateStage(id uint, stage string) error {
	return r.db.Model(&model.CVUpload{}).Where("id = ?", id).
		Updates(map[string]interface{}{"stage": stage, "failed_stage": ""}).Error
}

// MarkIndexed 标记索引完成。
func (r *uploadRepository) MarkIndexed(id uint) error {
	now := time.Now()
	return r.db.Model(&model.CVUpload{}).Where("id = ?", id).
		Updates(map[string]interface{}{
			"stage":      model.StageIndexed,
			"indexed_at": &now,
		}).Error
}

// MarkFailed 标记处理失败。failedStage 记录失败发生时所处的阶段。
func (r *uploadRepository) MarkFailed(id uint, failedStage string) error {
	return r.db.Model(&model.CVUpload{}).Where("id = ?", id).
		Updates(map[string]interface{}{
			"stage":        model.StageFailed,
			"failed_stage": failedStage,
		}).Error
}

// DeleteByCandidateID 删除某候选人的上传记录。
func (r *uploadRepository) DeleteByCandidateID(candidateID string) error {
	return r.db.Where("candidate_id = ?", candidateID).Delete(&model.CVUpload{}).Error
}
