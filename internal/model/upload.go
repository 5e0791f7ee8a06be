package model

import "time"

// 上传处理流水线的阶段。成功路径为
// received → parsed → chunked → embedded → indexed；
// 任一阶段失败进入 failed（记录失败阶段），失败的上传只能整体重新提交。
const (
	StageReceived = "received"
	StageParsed   = "parsed"
	StageChunked  = "chunked"
	StageEmbedded = "embedded"
	StageIndexed  = "indexed"
	StageFailed   = "failed"
)

// CVUpload 对应于数据库中的 cv_uploads 表。
// 它记录了每次简历上传的元数据和流水线处理状态。
type CVUpload struct {
	ID          uint       `gorm:"primaryKey;autoIncrement" json:"id"`
	CandidateID string     `gorm:"type:varchar(36);not null;index;column:candidate_id" json:"candidateId"`
	FileName    string     `gorm:"type:varchar(255);not null" json:"fileName"`
	ObjectKey   string     `gorm:"type:varchar(255);not null" json:"-"`
	TotalSize   int64      `gorm:"not null" json:"totalSize"`
	Stage       string     `gorm:"type:varchar(16);not null;default:'received'" json:"stage"`
	FailedStage string     `gorm:"type:varchar(16)" json:"failedStage,omitempty"`
	CreatedAt   time.Time  `gorm:"autoCreateTime" json:"createdAt"`
	IndexedAt   *time.Time `gorm:"default:null" json:"indexedAt,omitempty"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (CVUpload) TableName() string {
	return "cv_uploads"
}
