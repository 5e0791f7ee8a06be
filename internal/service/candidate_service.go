package service

import (
	"context"
	"cv-rag-go/internal/index"
	"cv-rag-go/internal/model"
	"cv-rag-go/internal/repository"
	"cv-rag-go/pkg/log"
	"cv-rag-go/pkg/storage"
	"fmt"
)

// CandidateContext 是候选人上下文接口的返回结构：档案摘要加已索引的节。
type CandidateContext struct {
	CandidateID string           `json:"candidateId"`
	Name        string           `json:"name"`
	Email       string           `json:"email"`
	Phone       string           `json:"phone"`
	Summary     string           `json:"summary"`
	Sections    []SectionContext `json:"sections"`
}

// SectionContext 是候选人单个已索引节的内容。
type SectionContext struct {
	ChunkID string `json:"chunkId"`
	Section string `json:"section"`
	Text    string `json:"text"`
}

// CandidateService 接口定义了候选人档案的查询与删除操作。
type CandidateService interface {
	List() ([]model.CandidateListItem, error)
	// Get 返回完整的结构化简历。
	Get(candidateID string) (*model.ParsedCV, error)
	// GetContext 返回候选人档案及其全部已索引的节。
	GetContext(candidateID string) (*CandidateContext, error)
	Filter(filter model.CandidateFilter) ([]model.CandidateListItem, error)
	// Delete 级联删除候选人：先使其不可检索, 再清理持久化数据。
	Delete(ctx context.Context, candidateID string) error
}

type candidateService struct {
	candidateRepo repository.CandidateRepository
	chunkRepo     repository.ChunkRepository
	uploadRepo    repository.UploadRepository
	vectorIndex   index.Index
	bucketName    string
}

// NewCandidateService 创建一个新的 CandidateService 实例。
func NewCandidateService(
	candidateRepo repository.CandidateRepository,
	chunkRepo repository.ChunkRepository,
	uploadRepo repository.UploadRepository,
	vectorIndex index.Index,
	bucketName string,
) CandidateService {
	return &candidateService{
		candidateRepo: candidateRepo,
		chunkRepo:     chunkRepo,
		uploadRepo:    uploadRepo,
		vectorIndex:   vectorIndex,
		bucketName:    bucketName,
	}
}

// List 返回全部候选人的基础信息。
func (s *candidateService) List() ([]model.CandidateListItem, error) {
	candidates, err := s.candidateRepo.FindAll()
	if err != nil {
		return nil, fmt.Errorf("查询候选人列表失败: %w", err)
	}
	items := make([]model.CandidateListItem, 0, len(candidates))
	for _, c := range candidates {
		items = append(items, toListItem(c))
	}
	return items, nil
}

// Get 返回候选人的完整结构化简历。
func (s *candidateService) Get(candidateID string) (*model.ParsedCV, error) {
	_, cv, err := s.candidateRepo.GetByID(candidateID)
	if err != nil {
		return nil, err
	}
	return cv, nil
}

// GetContext 返回候选人档案及其全部已索引的节。
func (s *candidateService) GetContext(candidateID string) (*CandidateContext, error) {
	candidate, _, err := s.candidateRepo.GetByID(candidateID)
	if err != nil {
		return nil, err
	}
	chunks, err := s.chunkRepo.FindByCandidateID(candidateID)
	if err != nil {
		return nil, fmt.Errorf("查询候选人分块失败: %w", err)
	}

	sections := make([]SectionContext, 0, len(chunks))
	for _, chunk := range chunks {
		sections = append(sections, SectionContext{
			ChunkID: chunk.ChunkID,
			Section: chunk.Section,
			Text:    chunk.Text,
		})
	}
	return &CandidateContext{
		CandidateID: candidate.ID,
		Name:        candidate.Name,
		Email:       candidate.Email,
		Phone:       candidate.Phone,
		Summary:     candidate.Summary,
		Sections:    sections,
	}, nil
}

// Filter 按结构化条件筛选候选人。
func (s *candidateService) Filter(filter model.CandidateFilter) ([]model.CandidateListItem, error) {
	candidates, err := s.candidateRepo.Filter(filter)
	if err != nil {
		return nil, fmt.Errorf("筛选候选人失败: %w", err)
	}
	items := make([]model.CandidateListItem, 0, len(candidates))
	for _, c := range candidates {
		items = append(items, toListItem(c))
	}
	return items, nil
}

// Delete 级联删除候选人的全部数据。
// 先软删除索引中的向量并持久化, 保证即使后续清理中断, 该候选人也已不可检索。
func (s *candidateService) Delete(ctx context.Context, candidateID string) error {
	log.Infof("[CandidateService] 开始删除候选人 %s", candidateID)

	candidate, _, err := s.candidateRepo.GetByID(candidateID)
	if err != nil {
		return err
	}

	// 1. 枚举分块并软删除对应向量。没有任何分块的候选人也允许删除。
	log.Info("[CandidateService] 步骤1: 软删除向量索引记录")
	chunkIDs, err := s.chunkRepo.ListChunkIDs(candidateID)
	if err != nil {
		return fmt.Errorf("查询候选人分块 ID 失败: %w", err)
	}
	for _, chunkID := range chunkIDs {
		s.vectorIndex.Remove(chunkID)
	}
	log.Infof("[CandidateService] 步骤1: 已软删除 %d 条向量记录", len(chunkIDs))

	// 2. 持久化索引, 使不可检索状态在重启后依然成立
	log.Info("[CandidateService] 步骤2: 持久化向量索引")
	if err := s.vectorIndex.Persist(); err != nil {
		return fmt.Errorf("持久化向量索引失败: %w", err)
	}

	// 3. 清理数据库记录
	log.Info("[CandidateService] 步骤3: 删除数据库记录")
	if err := s.chunkRepo.DeleteByCandidateID(candidateID); err != nil {
		return fmt.Errorf("删除分块记录失败: %w", err)
	}
	if err := s.uploadRepo.DeleteByCandidateID(candidateID); err != nil {
		return fmt.Errorf("删除上传记录失败: %w", err)
	}
	if err := s.candidateRepo.Delete(candidateID); err != nil {
		return fmt.Errorf("删除候选人记录失败: %w", err)
	}

	// 4. 删除对象存储中的原始文件, 尽力而为
	if candidate.ObjectKey != "" {
		log.Info("[CandidateService] 步骤4: 删除对象存储中的原始文件")
		if err := storage.RemoveObject(ctx, s.bucketName, candidate.ObjectKey); err != nil {
			log.Warnf("[CandidateService] 删除对象 %s 失败, 留待人工清理: %v", candidate.ObjectKey, err)
		}
	}

	log.Infof("[CandidateService] 候选人 %s 删除完毕", candidateID)
	return nil
}

func toListItem(c model.Candidate) model.CandidateListItem {
	return model.CandidateListItem{
		CandidateID: c.ID,
		Name:        c.Name,
		Email:       c.Email,
		Phone:       c.Phone,
		FileName:    c.FileName,
		CreatedAt:   model.LocalTime(c.CreatedAt),
	}
}
