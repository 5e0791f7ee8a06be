// Package model 包含了应用的数据模型定义。
package model

import "time"

// Candidate 对应于数据库中的 candidates 表。
// 结构化简历字段（技能、经历等）以 JSON 文本列存储，候选人记录是简历数据的唯一事实来源。
type Candidate struct {
	ID             string    `gorm:"type:varchar(36);primaryKey" json:"candidateId"`
	Name           string    `gorm:"type:varchar(255);not null" json:"name"`
	Email          string    `gorm:"type:varchar(255)" json:"email"`
	Phone          string    `gorm:"type:varchar(64)" json:"phone"`
	Summary        string    `gorm:"type:text" json:"summary"`
	Skills         string    `gorm:"type:text" json:"-"`
	Experience     string    `gorm:"type:text" json:"-"`
	Education      string    `gorm:"type:text" json:"-"`
	Projects       string    `gorm:"type:text" json:"-"`
	Certifications string    `gorm:"type:text" json:"-"`
	Interests      string    `gorm:"type:text" json:"-"`
	FileName       string    `gorm:"type:varchar(255)" json:"fileName"`
	ObjectKey      string    `gorm:"type:varchar(255)" json:"-"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"createdAt"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (Candidate) TableName() string {
	return "candidates"
}

// ParsedCV 是 LLM 结构化抽取的固定模式。
// 字段集合是封闭的：Record Store 边界上无法解析到该模式的数据会被拒绝，
// 不允许把任意嵌套的 map 结构带入检索核心。
type ParsedCV struct {
	Name           string               `json:"name"`
	Email          string               `json:"email"`
	Phone          string               `json:"phone"`
	Summary        string               `json:"summary"`
	Skills         []string             `json:"skills"`
	Experience     []ExperienceEntry    `json:"experience"`
	Education      []EducationEntry     `json:"education"`
	Projects       []ProjectEntry       `json:"projects"`
	Certifications []CertificationEntry `json:"certifications"`
	Interests      []string             `json:"interests"`
}

// ExperienceEntry 表示一段工作经历。
type ExperienceEntry struct {
	Title       string `json:"title"`
	Company     string `json:"company"`
	Duration    string `json:"duration"`
	Description string `json:"description"`
}

// EducationEntry 表示一段教育经历。
type EducationEntry struct {
	Degree      string `json:"degree"`
	Institution string `json:"institution"`
	Year        string `json:"year"`
	Details     string `json:"details"`
}

// ProjectEntry 表示一个项目经历。
type ProjectEntry struct {
	Name         string   `json:"name"`
	Description  string   `json:"description"`
	Technologies []string `json:"technologies"`
	URL          string   `json:"url"`
}

// CertificationEntry 表示一项资格认证。
type CertificationEntry struct {
	Name   string `json:"name"`
	Issuer string `json:"issuer"`
	Year   string `json:"year"`
}
