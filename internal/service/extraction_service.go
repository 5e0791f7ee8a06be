package service

import (
	"context"
	"cv-rag-go/internal/model"
	"cv-rag-go/pkg/llm"
	"cv-rag-go/pkg/log"
	"encoding/json"
	"fmt"
	"strings"
)

const extractionSystemPrompt = `你是一个简历信息抽取器。从给定的简历文本中抽取结构化信息, ` +
	`并严格按以下 JSON 模式输出, 不要输出任何额外文字:
{
  "name": "string",
  "email": "string",
  "phone": "string",
  "summary": "string",
  "skills": ["string"],
  "experience": [{"title": "string", "company": "string", "duration": "string", "description": "string"}],
  "education": [{"degree": "string", "institution": "string", "year": "string", "details": "string"}],
  "projects": [{"name": "string", "description": "string", "technologies": ["string"], "url": "string"}],
  "certifications": [{"name": "string", "issuer": "string", "year": "string"}],
  "interests": ["string"]
}
简历中缺失的字段使用空字符串或空数组, 不要省略字段, 不要编造信息。`

// ExtractionService 接口定义了简历文本的结构化抽取操作。
type ExtractionService interface {
	// ParseCV 把简历原始文本抽取为固定模式的结构化简历。
	// LLM 输出无法解析到该模式时返回错误。
	ParseCV(ctx context.Context, rawText string) (*model.ParsedCV, error)
}

type extractionService struct {
	llmClient llm.Client
}

// NewExtractionService 创建一个新的 ExtractionService 实例。
func NewExtractionService(llmClient llm.Client) ExtractionService {
	return &extractionService{llmClient: llmClient}
}

// ParseCV 调用 LLM 抽取结构化简历。
func (s *extractionService) ParseCV(ctx context.Context, rawText string) (*model.ParsedCV, error) {
	if strings.TrimSpace(rawText) == "" {
		return nil, fmt.Errorf("简历文本为空, 无法抽取")
	}

	log.Infof("[ExtractionService] 步骤1: 开始调用 LLM 抽取结构化简历, 文本长度: %d", len(rawText))
	messages := []llm.Message{
		{Role: "system", Content: extractionSystemPrompt},
		{Role: "user", Content: rawText},
	}
	raw, err := s.llmClient.Complete(ctx, messages)
	if err != nil {
		log.Errorf("[ExtractionService] LLM 抽取调用失败: %v", err)
		return nil, fmt.Errorf("failed to extract cv: %w", err)
	}

	log.Info("[ExtractionService] 步骤2: 开始解析 LLM 输出")
	jsonText := extractJSONObject(raw)
	if jsonText == "" {
		log.Errorf("[ExtractionService] LLM 输出中未找到 JSON 对象: %s", truncateForLog(raw))
		return nil, fmt.Errorf("LLM 输出中未找到 JSON 对象")
	}

	var cv model.ParsedCV
	decoder := json.NewDecoder(strings.NewReader(jsonText))
	// 模式是封闭的, 未知字段视为抽取失败
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&cv); err != nil {
		log.Errorf("[ExtractionService] LLM 输出解析失败: %v, 输出: %s", err, truncateForLog(jsonText))
		return nil, fmt.Errorf("LLM 输出不符合简历模式: %w", err)
	}

	if strings.TrimSpace(cv.Name) == "" {
		return nil, fmt.Errorf("抽取结果缺少候选人姓名")
	}

	log.Infof("[ExtractionService] 抽取完毕, 候选人: %s, 技能 %d 项, 经历 %d 段", cv.Name, len(cv.Skills), len(cv.Experience))
	return &cv, nil
}

// extractJSONObject 从 LLM 输出中剥离代码围栏等噪声, 截取最外层的 JSON 对象。
func extractJSONObject(raw string) string {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return ""
	}
	return raw[start : end+1]
}

func truncateForLog(s string) string {
	const maxLen = 500
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
