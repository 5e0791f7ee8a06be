package model

import "time"

// QueryRequest 定义了 /query 与 /search 请求体。
type QueryRequest struct {
	Question    string `json:"question"`
	CandidateID string `json:"candidateId"`
	TopK        int    `json:"topK"`
}

// Source 描述了被纳入答案上下文的一个分块来源。
// Sources 必须与实际发送给 LLM 的上下文逐项对应。
type Source struct {
	ChunkID       string  `json:"chunkId"`
	CandidateID   string  `json:"candidateId"`
	CandidateName string  `json:"candidateName"`
	Section       string  `json:"section"`
	Score         float64 `json:"score"`
}

// AnswerResult 是答案合成的最终产物。
type AnswerResult struct {
	Answer     string   `json:"answer"`
	Sources    []Source `json:"sources"`
	Confidence string   `json:"confidence"` // high / medium / low
}

// QueryLog 代表存储在 Redis 中的一条问答记录。
type QueryLog struct {
	Question   string    `json:"question"`
	Answer     string    `json:"answer"`
	Confidence string    `json:"confidence"`
	Timestamp  time.Time `json:"timestamp"`
}

// CandidateListItem 定义了候选人列表接口返回的基础字段。
type CandidateListItem struct {
	CandidateID string    `json:"candidateId"`
	Name        string    `json:"name"`
	Email       string    `json:"email"`
	Phone       string    `json:"phone"`
	FileName    string    `json:"fileName"`
	CreatedAt   LocalTime `json:"createdAt"`
}

// CandidateFilter 定义了结构化筛选候选人的条件。
type CandidateFilter struct {
	Skills             []string `json:"skills"`
	MinExperienceYears int      `json:"minExperienceYears"`
	Company            string   `json:"company"`
	Limit              int      `json:"limit"`
}
