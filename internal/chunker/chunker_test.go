package chunker

import (
	"cv-rag-go/internal/config"
	"cv-rag-go/internal/model"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCV() *model.ParsedCV {
	return &model.ParsedCV{
		Name:    "张三",
		Summary: "五年后端开发经验。",
		Skills:  []string{"Go", "MySQL", "Kafka"},
		Experience: []model.ExperienceEntry{
			{Title: "后端工程师", Company: "某科技公司", Duration: "2019-2023", Description: "负责核心服务开发。"},
			{Title: "实习生", Company: "某初创公司", Duration: "2018-2019", Description: "参与内部工具开发。"},
		},
		Education: []model.EducationEntry{
			{Degree: "本科", Institution: "某大学", Year: "2018"},
		},
		Projects: []model.ProjectEntry{
			{Name: "搜索平台", Description: "构建了向量检索服务。", Technologies: []string{"Go", "Redis"}},
		},
		Certifications: []model.CertificationEntry{
			{Name: "CKA", Issuer: "CNCF", Year: "2022"},
		},
		Interests: []string{"开源", "登山"},
	}
}

func TestBuildChunksSectionLabels(t *testing.T) {
	c := New(config.ChunkingConfig{MaxChunkChars: 800})
	chunks := c.BuildChunks("cand-1", testCV())

	sections := make([]string, 0, len(chunks))
	for _, chunk := range chunks {
		sections = append(sections, chunk.Section)
	}
	assert.Equal(t, []string{
		"summary", "skills",
		"experience_0", "experience_1",
		"project_0", "education_0", "certification_0",
		"interests",
	}, sections)

	for i, chunk := range chunks {
		assert.Equal(t, "cand-1", chunk.CandidateID)
		assert.Equal(t, "cand-1_"+chunk.Section, chunk.ChunkID)
		assert.Equal(t, i, chunk.Position)
		assert.NotEmpty(t, chunk.Text)
	}
}

func TestBuildChunksSkipsEmptySections(t *testing.T) {
	c := New(config.ChunkingConfig{MaxChunkChars: 800})
	cv := &model.ParsedCV{
		Name:   "李四",
		Skills: []string{"Python"},
	}
	chunks := c.BuildChunks("cand-2", cv)

	require.Len(t, chunks, 1)
	assert.Equal(t, "skills", chunks[0].Section)
}

func TestBuildChunksEmptyCV(t *testing.T) {
	c := New(config.ChunkingConfig{MaxChunkChars: 800})
	chunks := c.BuildChunks("cand-3", &model.ParsedCV{Name: "王五"})
	assert.Empty(t, chunks)
}

func TestBuildChunksSplitsLongSectionAtSentences(t *testing.T) {
	c := New(config.ChunkingConfig{MaxChunkChars: 30})
	cv := &model.ParsedCV{
		Summary: strings.Repeat("这是一个完整的句子。", 10),
	}
	chunks := c.BuildChunks("cand-4", cv)

	require.Greater(t, len(chunks), 1)
	assert.Equal(t, "cand-4_summary", chunks[0].ChunkID)
	for i, chunk := range chunks {
		assert.Equal(t, "summary", chunk.Section)
		assert.LessOrEqual(t, len([]rune(chunk.Text)), 30)
		// 句子边界切分, 每段以句号结尾
		assert.True(t, strings.HasSuffix(chunk.Text, "。"))
		if i > 0 {
			assert.Contains(t, chunk.ChunkID, "_p")
		}
	}
}

func TestBuildChunksHardSplitWithoutSentenceBoundary(t *testing.T) {
	c := New(config.ChunkingConfig{MaxChunkChars: 20})
	cv := &model.ParsedCV{
		Summary: strings.Repeat("甲", 50),
	}
	chunks := c.BuildChunks("cand-5", cv)

	require.Len(t, chunks, 3)
	for _, chunk := range chunks {
		assert.LessOrEqual(t, len([]rune(chunk.Text)), 20)
	}
}

func TestBuildChunksSkipsWhitespaceOnlyParts(t *testing.T) {
	c := New(config.ChunkingConfig{MaxChunkChars: 5})
	cv := &model.ParsedCV{
		Summary: "abc.  \n  \nxyz.",
	}
	chunks := c.BuildChunks("cand-7", cv)

	// 空白行不产出空分块, _p 序号保持连续
	require.Len(t, chunks, 2)
	assert.Equal(t, "cand-7_summary", chunks[0].ChunkID)
	assert.Equal(t, "abc.", chunks[0].Text)
	assert.Equal(t, "cand-7_summary_p2", chunks[1].ChunkID)
	assert.Equal(t, "xyz.", chunks[1].Text)
	for _, chunk := range chunks {
		assert.NotEmpty(t, strings.TrimSpace(chunk.Text))
	}
}

func TestBuildChunksJoinsListSections(t *testing.T) {
	c := New(config.ChunkingConfig{MaxChunkChars: 800})
	chunks := c.BuildChunks("cand-6", testCV())

	var skillsText string
	for _, chunk := range chunks {
		if chunk.Section == "skills" {
			skillsText = chunk.Text
		}
	}
	assert.Equal(t, "Go, MySQL, Kafka", skillsText)
}
