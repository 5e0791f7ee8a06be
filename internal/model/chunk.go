package model

import "time"

// CVChunk 对应于数据库中的 cv_chunks 表。
// 分块文本归数据库所有，向量归索引所有，两者仅通过 ChunkID 关联。
// 分块在创建后不可变；删除候选人时随之删除。
type CVChunk struct {
	ChunkID     string    `gorm:"type:varchar(128);primaryKey;column:chunk_id" json:"chunkId"`
	CandidateID string    `gorm:"type:varchar(36);not null;index;column:candidate_id" json:"candidateId"`
	Section     string    `gorm:"type:varchar(64);not null" json:"section"`
	Position    int       `gorm:"not null" json:"position"`
	Text        string    `gorm:"type:text;not null" json:"text"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"createdAt"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (CVChunk) TableName() string {
	return "cv_chunks"
}

// RetrievedChunk 是检索结果的一项：索引命中回填分块文本与候选人名称后的形态。
type RetrievedChunk struct {
	ChunkID       string  `json:"chunkId"`
	CandidateID   string  `json:"candidateId"`
	CandidateName string  `json:"candidateName"`
	Section       string  `json:"section"`
	Text          string  `json:"text"`
	Score         float64 `json:"score"`
}
