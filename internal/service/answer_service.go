package service

import (
	"context"
	"cv-rag-go/internal/config"
	"cv-rag-go/internal/model"
	"cv-rag-go/internal/repository"
	"cv-rag-go/pkg/llm"
	"cv-rag-go/pkg/log"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// 置信度档位
const (
	ConfidenceHigh   = "high"
	ConfidenceMedium = "medium"
	ConfidenceLow    = "low"
)

const answerSystemPrompt = `你是一个简历问答助手。请仅依据给出的简历片段回答问题, ` +
	`不要编造简历中不存在的信息。回答时引用片段标签中的候选人姓名。` +
	`如果片段不足以回答问题, 请明确说明。`

// AnswerService 接口定义了基于检索结果的答案合成操作。
type AnswerService interface {
	// Answer 基于检索到的分块合成答案。Sources 与真正进入上下文的分块逐项对应。
	Answer(ctx context.Context, question string, chunks []model.RetrievedChunk) (*model.AnswerResult, error)
}

type answerService struct {
	llmClient   llm.Client
	historyRepo repository.HistoryRepository
	cfg         config.AnswerConfig
}

// NewAnswerService 创建一个新的 AnswerService 实例。
func NewAnswerService(llmClient llm.Client, historyRepo repository.HistoryRepository, cfg config.AnswerConfig) AnswerService {
	if cfg.MaxContextChars <= 0 {
		cfg.MaxContextChars = 6000
	}
	if cfg.HighThreshold <= 0 {
		cfg.HighThreshold = 0.80
	}
	if cfg.LowThreshold <= 0 {
		cfg.LowThreshold = 0.60
	}
	if cfg.NoContextText == "" {
		cfg.NoContextText = "没有检索到与问题相关的简历内容, 无法回答。"
	}
	return &answerService{llmClient: llmClient, historyRepo: historyRepo, cfg: cfg}
}

// Answer 合成最终答案并附带来源与置信度。
func (s *answerService) Answer(ctx context.Context, question string, chunks []model.RetrievedChunk) (*model.AnswerResult, error) {
	// 检索结果为空时不调用 LLM, 直接返回固定答复
	if len(chunks) == 0 {
		log.Infof("[AnswerService] 检索结果为空, 跳过 LLM 调用, question: '%s'", question)
		result := &model.AnswerResult{
			Answer:     s.cfg.NoContextText,
			Sources:    []model.Source{},
			Confidence: ConfidenceLow,
		}
		s.appendHistory(ctx, question, result)
		return result, nil
	}

	// 1. 按字符预算组装上下文, 入选分块与 Sources 必须逐项一致
	log.Infof("[AnswerService] 步骤1: 开始组装上下文, 候选分块 %d 条, 预算 %d 字符", len(chunks), s.cfg.MaxContextChars)
	var contextBlock strings.Builder
	sources := make([]model.Source, 0, len(chunks))
	for _, chunk := range chunks {
		entry := fmt.Sprintf("[%s - %s]\n%s\n\n", chunk.CandidateName, strings.ToUpper(chunk.Section), chunk.Text)
		if contextBlock.Len()+len(entry) > s.cfg.MaxContextChars {
			if contextBlock.Len() > 0 {
				log.Infof("[AnswerService] 上下文达到预算上限, 截断于第 %d 条分块", len(sources))
				break
			}
			// 首条分块单独超出预算时截断正文, 保证上下文始终不超限
			log.Warnf("[AnswerService] 首条分块超出预算, 截断至 %d 字符, chunkID: %s", s.cfg.MaxContextChars, chunk.ChunkID)
			entry = truncateUTF8(entry, s.cfg.MaxContextChars)
		}
		contextBlock.WriteString(entry)
		sources = append(sources, model.Source{
			ChunkID:       chunk.ChunkID,
			CandidateID:   chunk.CandidateID,
			CandidateName: chunk.CandidateName,
			Section:       chunk.Section,
			Score:         chunk.Score,
		})
	}

	// 2. 调用 LLM 合成答案
	log.Info("[AnswerService] 步骤2: 开始调用 LLM 合成答案")
	messages := []llm.Message{
		{Role: "system", Content: answerSystemPrompt},
		{Role: "user", Content: fmt.Sprintf("简历片段:\n%s\n问题: %s", contextBlock.String(), question)},
	}
	answer, err := s.llmClient.Complete(ctx, messages)
	if err != nil {
		log.Errorf("[AnswerService] LLM 调用失败: %v", err)
		return nil, fmt.Errorf("failed to synthesize answer: %w", err)
	}

	// 3. 由最高检索分数决定置信度档位
	confidence := ConfidenceLow
	topScore := chunks[0].Score
	switch {
	case topScore >= s.cfg.HighThreshold:
		confidence = ConfidenceHigh
	case topScore >= s.cfg.LowThreshold:
		confidence = ConfidenceMedium
	}
	log.Infof("[AnswerService] 答案合成完毕, 最高分 %.4f, 置信度 %s, 来源 %d 条", topScore, confidence, len(sources))

	result := &model.AnswerResult{
		Answer:     answer,
		Sources:    sources,
		Confidence: confidence,
	}
	s.appendHistory(ctx, question, result)
	return result, nil
}

// truncateUTF8 截断到不超过 limit 字节, 不切断 UTF-8 字符。
func truncateUTF8(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	for limit > 0 && !utf8.RuneStart(s[limit]) {
		limit--
	}
	return s[:limit]
}

// appendHistory 尽力而为地记录问答历史, 失败只告警不影响主流程。
func (s *answerService) appendHistory(ctx context.Context, question string, result *model.AnswerResult) {
	if s.historyRepo == nil {
		return
	}
	entry := model.QueryLog{
		Question:   question,
		Answer:     result.Answer,
		Confidence: result.Confidence,
		Timestamp:  time.Now(),
	}
	if err := s.historyRepo.Append(ctx, entry); err != nil {
		log.Warnf("[AnswerService] 记录问答历史失败: %v", err)
	}
}
