// Package service 提供了简历问答相关的业务逻辑。
package service

import (
	"context"
	"cv-rag-go/internal/config"
	"cv-rag-go/internal/index"
	"cv-rag-go/internal/model"
	"cv-rag-go/internal/repository"
	"cv-rag-go/pkg/embedding"
	"cv-rag-go/pkg/log"
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidInput 表示请求参数非法，应映射为 400 响应。
var ErrInvalidInput = errors.New("invalid input")

// RetrievalService 接口定义了语义检索操作。
type RetrievalService interface {
	// Retrieve 返回与问题最相关的分块，按分数降序。
	// candidateID 非空时只检索该候选人的分块。
	Retrieve(ctx context.Context, question string, topK int, candidateID string) ([]model.RetrievedChunk, error)
}

type retrievalService struct {
	embeddingClient embedding.Client
	vectorIndex     index.Index
	chunkRepo       repository.ChunkRepository
	candidateRepo   repository.CandidateRepository
	maxTopK         int
}

// NewRetrievalService 创建一个新的 RetrievalService 实例。
func NewRetrievalService(
	embeddingClient embedding.Client,
	vectorIndex index.Index,
	chunkRepo repository.ChunkRepository,
	candidateRepo repository.CandidateRepository,
	cfg config.RetrievalConfig,
) RetrievalService {
	maxTopK := cfg.MaxTopK
	if maxTopK <= 0 {
		maxTopK = 20
	}
	return &retrievalService{
		embeddingClient: embeddingClient,
		vectorIndex:     vectorIndex,
		chunkRepo:       chunkRepo,
		candidateRepo:   candidateRepo,
		maxTopK:         maxTopK,
	}
}

// Retrieve 执行向量检索并把命中结果还原为带文本的分块。
func (s *retrievalService) Retrieve(ctx context.Context, question string, topK int, candidateID string) ([]model.RetrievedChunk, error) {
	// 1. 参数校验必须在任何外部调用之前完成
	if strings.TrimSpace(question) == "" {
		return nil, fmt.Errorf("%w: question must not be empty", ErrInvalidInput)
	}
	if topK <= 0 {
		return nil, fmt.Errorf("%w: topK must be positive", ErrInvalidInput)
	}
	if topK > s.maxTopK {
		log.Infof("[RetrievalService] topK %d 超过上限, 收紧到 %d", topK, s.maxTopK)
		topK = s.maxTopK
	}

	log.Infof("[RetrievalService] 开始检索, question: '%s', topK: %d, candidateID: '%s'", question, topK, candidateID)

	// 2. 向量化查询
	log.Info("[RetrievalService] 步骤1: 开始向量化查询")
	queryVector, err := s.embeddingClient.CreateEmbedding(ctx, question)
	if err != nil {
		log.Errorf("[RetrievalService] 向量化查询失败: %v", err)
		return nil, fmt.Errorf("failed to create query embedding: %w", err)
	}
	log.Infof("[RetrievalService] 步骤1: 向量化查询成功, 向量维度: %d", len(queryVector))

	// 3. 搜索向量索引
	log.Info("[RetrievalService] 步骤2: 开始搜索向量索引")
	hits, err := s.vectorIndex.Search(queryVector, topK, candidateID)
	if err != nil {
		log.Errorf("[RetrievalService] 向量索引搜索失败: %v", err)
		return nil, fmt.Errorf("vector index search failed: %w", err)
	}
	log.Infof("[RetrievalService] 步骤2: 向量索引返回 %d 条命中", len(hits))
	if len(hits) == 0 {
		return []model.RetrievedChunk{}, nil
	}

	// 4. 批量还原分块文本
	log.Info("[RetrievalService] 步骤3: 开始还原分块文本")
	chunkIDs := make([]string, 0, len(hits))
	for _, hit := range hits {
		chunkIDs = append(chunkIDs, hit.ChunkID)
	}
	chunks, err := s.chunkRepo.FindBatchByChunkIDs(chunkIDs)
	if err != nil {
		log.Errorf("[RetrievalService] 批量查询分块文本失败: %v", err)
		return nil, fmt.Errorf("批量查询分块文本失败: %w", err)
	}
	textMap := make(map[string]string, len(chunks))
	for _, chunk := range chunks {
		textMap[chunk.ChunkID] = chunk.Text
	}

	// 5. 批量还原候选人姓名
	log.Info("[RetrievalService] 步骤4: 开始还原候选人姓名")
	uniqueIDs := make(map[string]struct{})
	for _, hit := range hits {
		uniqueIDs[hit.CandidateID] = struct{}{}
	}
	idList := make([]string, 0, len(uniqueIDs))
	for id := range uniqueIDs {
		idList = append(idList, id)
	}
	candidates, err := s.candidateRepo.FindBatchByIDs(idList)
	if err != nil {
		log.Errorf("[RetrievalService] 批量查询候选人失败: %v", err)
		return nil, fmt.Errorf("批量查询候选人失败: %w", err)
	}
	nameMap := make(map[string]string, len(candidates))
	for _, c := range candidates {
		nameMap[c.ID] = c.Name
	}

	// 6. 组装结果，保持索引返回的顺序
	results := make([]model.RetrievedChunk, 0, len(hits))
	for _, hit := range hits {
		text, ok := textMap[hit.ChunkID]
		if !ok {
			// 索引与数据库之间的陈旧记录, 跳过但必须留痕
			log.Warnf("[RetrievalService] 分块 '%s' 在索引中命中但数据库无对应文本, 已跳过", hit.ChunkID)
			continue
		}
		results = append(results, model.RetrievedChunk{
			ChunkID:       hit.ChunkID,
			CandidateID:   hit.CandidateID,
			CandidateName: nameMap[hit.CandidateID],
			Section:       hit.Section,
			Text:          text,
			Score:         hit.Score,
		})
	}

	log.Infof("[RetrievalService] 检索完毕, 返回 %d 条结果", len(results))
	return results, nil
}
