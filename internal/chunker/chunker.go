// Package chunker 负责把结构化简历切分成带节标签的文本分块。
// 每个分块归属唯一的节（summary / skills / experience_{i} 等），
// 超长的节文本按句子边界二次切分，并附加 _p{n} 后缀。
package chunker

import (
	"cv-rag-go/internal/config"
	"cv-rag-go/internal/model"
	"fmt"
	"strings"
)

const (
	// SectionSummary 等常量是分块的节标签，带序号的节在运行时拼接。
	SectionSummary   = "summary"
	SectionSkills    = "skills"
	SectionInterests = "interests"
)

// 句子边界字符，中英文标点都算
var sentenceEnders = map[rune]bool{
	'.': true, '!': true, '?': true, ';': true,
	'。': true, '！': true, '？': true, '；': true,
	'\n': true,
}

// Chunker 把解析后的简历切分成分块序列。
type Chunker interface {
	// BuildChunks 返回按节顺序排列的分块，空节被跳过。
	// 分块 ID 形如 {candidateID}_{section}，全局唯一。
	BuildChunks(candidateID string, cv *model.ParsedCV) []model.CVChunk
}

type cvChunker struct {
	maxChunkChars int
}

// New 创建简历分块器。
func New(cfg config.ChunkingConfig) Chunker {
	maxChars := cfg.MaxChunkChars
	if maxChars <= 0 {
		maxChars = 800
	}
	return &cvChunker{maxChunkChars: maxChars}
}

// BuildChunks 按固定节顺序生成分块。
func (c *cvChunker) BuildChunks(candidateID string, cv *model.ParsedCV) []model.CVChunk {
	var chunks []model.CVChunk
	position := 0

	appendSection := func(section, text string) {
		text = strings.TrimSpace(text)
		if text == "" {
			return
		}
		partIdx := 0
		for _, part := range c.split(text) {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			chunkID := fmt.Sprintf("%s_%s", candidateID, section)
			if partIdx > 0 {
				chunkID = fmt.Sprintf("%s_p%d", chunkID, partIdx+1)
			}
			partIdx++
			chunks = append(chunks, model.CVChunk{
				ChunkID:     chunkID,
				CandidateID: candidateID,
				Section:     section,
				Position:    position,
				Text:        part,
			})
			position++
		}
	}

	appendSection(SectionSummary, cv.Summary)
	appendSection(SectionSkills, strings.Join(cv.Skills, ", "))

	for i, exp := range cv.Experience {
		var sb strings.Builder
		writeField(&sb, "职位", exp.Title)
		writeField(&sb, "公司", exp.Company)
		writeField(&sb, "时间", exp.Duration)
		writeField(&sb, "描述", exp.Description)
		appendSection(fmt.Sprintf("experience_%d", i), sb.String())
	}

	for i, proj := range cv.Projects {
		var sb strings.Builder
		writeField(&sb, "项目", proj.Name)
		writeField(&sb, "描述", proj.Description)
		writeField(&sb, "技术栈", strings.Join(proj.Technologies, ", "))
		writeField(&sb, "链接", proj.URL)
		appendSection(fmt.Sprintf("project_%d", i), sb.String())
	}

	for i, edu := range cv.Education {
		var sb strings.Builder
		writeField(&sb, "学位", edu.Degree)
		writeField(&sb, "院校", edu.Institution)
		writeField(&sb, "年份", edu.Year)
		writeField(&sb, "详情", edu.Details)
		appendSection(fmt.Sprintf("education_%d", i), sb.String())
	}

	for i, cert := range cv.Certifications {
		var sb strings.Builder
		writeField(&sb, "证书", cert.Name)
		writeField(&sb, "颁发机构", cert.Issuer)
		writeField(&sb, "年份", cert.Year)
		appendSection(fmt.Sprintf("certification_%d", i), sb.String())
	}

	appendSection(SectionInterests, strings.Join(cv.Interests, ", "))

	return chunks
}

// split 把超长文本按句子边界切分，每段不超过 maxChunkChars 个字符（按 rune 计数）。
// 单个句子超长时退化为硬切分。
func (c *cvChunker) split(text string) []string {
	runes := []rune(text)
	if len(runes) <= c.maxChunkChars {
		return []string{text}
	}

	var parts []string
	var current []rune
	for _, sentence := range splitSentences(runes) {
		if len(current)+len(sentence) > c.maxChunkChars && len(current) > 0 {
			// 纯空白的累积内容不产出分段
			if trimmed := strings.TrimSpace(string(current)); trimmed != "" {
				parts = append(parts, trimmed)
			}
			current = current[:0]
		}
		// 单句超长，硬切分
		for len(sentence) > c.maxChunkChars {
			if trimmed := strings.TrimSpace(string(sentence[:c.maxChunkChars])); trimmed != "" {
				parts = append(parts, trimmed)
			}
			sentence = sentence[c.maxChunkChars:]
		}
		current = append(current, sentence...)
	}
	if trimmed := strings.TrimSpace(string(current)); trimmed != "" {
		parts = append(parts, trimmed)
	}
	return parts
}

// splitSentences 按句末标点切分，标点保留在前一句的末尾。
func splitSentences(runes []rune) [][]rune {
	var sentences [][]rune
	start := 0
	for i, r := range runes {
		if sentenceEnders[r] {
			sentences = append(sentences, runes[start:i+1])
			start = i + 1
		}
	}
	if start < len(runes) {
		sentences = append(sentences, runes[start:])
	}
	return sentences
}

func writeField(sb *strings.Builder, label, value string) {
	value = strings.TrimSpace(value)
	if value == "" {
		return
	}
	if sb.Len() > 0 {
		sb.WriteString("\n")
	}
	sb.WriteString(label)
	sb.WriteString(": ")
	sb.WriteString(value)
}
