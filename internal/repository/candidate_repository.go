// Package repository 定义了与数据库进行数据交换的接口和实现。
package repository

import (
	"cv-rag-go/internal/model"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"gorm.io/gorm"
)

// CandidateRepository 接口定义了候选人记录的数据持久化操作。
type CandidateRepository interface {
	Create(candidate *model.Candidate) error
	// GetByID 返回候选人记录及其结构化简历。
	// JSON 列无法解析到固定模式时返回错误，不允许半解析的数据流出存储层。
	GetByID(candidateID string) (*model.Candidate, *model.ParsedCV, error)
	FindAll() ([]model.Candidate, error)
	FindBatchByIDs(ids []string) ([]model.Candidate, error)
	Delete(candidateID string) error
	// Filter 按技能、最低工作年限与公司筛选候选人。
	Filter(filter model.CandidateFilter) ([]model.Candidate, error)
}

// candidateRepository 是 CandidateRepository 接口的 GORM 实现。
type candidateRepository struct {
	db *gorm.DB
}

// NewCandidateRepository 创建一个新的 CandidateRepository 实例。
func NewCandidateRepository(db *gorm.DB) CandidateRepository {
	return &candidateRepository{db: db}
}

// Create 在数据库中创建候选人记录。
func (r *candidateRepository) Create(candidate *model.Candidate) error {
	return r.db.Create(candidate).Error
}

// GetByID 根据 ID 检索候选人记录，并严格解析结构化字段。
func (r *candidateRepository) GetByID(candidateID string) (*model.Candidate, *model.ParsedCV, error) {
	var candidate model.Candidate
	if err := r.db.Where("id = ?", candidateID).First(&candidate).Error; err != nil {
		return nil, nil, err
	}
	cv, err := unmarshalParsedCV(&candidate)
	if err != nil {
		return nil, nil, fmt.Errorf("候选人 %s 的结构化简历解析失败: %w", candidateID, err)
	}
	return &candidate, cv, nil
}

// FindAll 返回全部候选人记录。
func (r *candidateRepository) FindAll() ([]model.Candidate, error) {
	var candidates []model.Candidate
	err := r.db.Order("created_at desc").Find(&candidates).Error
	return candidates, err
}

// FindBatchByIDs 按 ID 批量查找候选人记录。
func (r *candidateRepository) FindBatchByIDs(ids []string) ([]model.Candidate, error) {
	var candidates []model.Candidate
	if len(ids) == 0 {
		return candidates, nil
	}
	err := r.db.Where("id IN ?", ids).Find(&candidates).Error
	return candidates, err
}

// Delete 删除候选人记录。
func (r *candidateRepository) Delete(candidateID string) error {
	return r.db.Where("id = ?", candidateID).Delete(&model.Candidate{}).Error
}

// Filter 按结构化条件筛选候选人。
// 技能与公司条件下推到 SQL（JSON 文本列 LIKE 匹配），工作年限在加载后估算。
func (r *candidateRepository) Filter(filter model.CandidateFilter) ([]model.Candidate, error) {
	query := r.db.Model(&model.Candidate{})
	for _, skill := range filter.Skills {
		skill = strings.TrimSpace(skill)
		if skill == "" {
			continue
		}
		query = query.Where("skills LIKE ?", "%"+skill+"%")
	}
	if company := strings.TrimSpace(filter.Company); company != "" {
		query = query.Where("experience LIKE ?", "%"+company+"%")
	}

	var candidates []model.Candidate
	if err := query.Order("created_at desc").Find(&candidates).Error; err != nil {
		return nil, err
	}

	if filter.MinExperienceYears > 0 {
		matched := make([]model.Candidate, 0, len(candidates))
		for _, c := range candidates {
			var entries []model.ExperienceEntry
			if c.Experience != "" {
				if err := json.Unmarshal([]byte(c.Experience), &entries); err != nil {
					return nil, fmt.Errorf("候选人 %s 的工作经历解析失败: %w", c.ID, err)
				}
			}
			if estimateExperienceYears(entries) >= filter.MinExperienceYears {
				matched = append(matched, c)
			}
		}
		candidates = matched
	}

	if filter.Limit > 0 && len(candidates) > filter.Limit {
		candidates = candidates[:filter.Limit]
	}
	return candidates, nil
}

// unmarshalParsedCV 把候选人的 JSON 文本列还原为固定模式的结构体。
func unmarshalParsedCV(c *model.Candidate) (*model.ParsedCV, error) {
	cv := &model.ParsedCV{
		Name:    c.Name,
		Email:   c.Email,
		Phone:   c.Phone,
		Summary: c.Summary,
	}
	fields := []struct {
		name string
		raw  string
		dst  interface{}
	}{
		{"skills", c.Skills, &cv.Skills},
		{"experience", c.Experience, &cv.Experience},
		{"education", c.Education, &cv.Education},
		{"projects", c.Projects, &cv.Projects},
		{"certifications", c.Certifications, &cv.Certifications},
		{"interests", c.Interests, &cv.Interests},
	}
	for _, f := range fields {
		if f.raw == "" {
			continue
		}
		if err := json.Unmarshal([]byte(f.raw), f.dst); err != nil {
			return nil, fmt.Errorf("字段 %s: %w", f.name, err)
		}
	}
	return cv, nil
}

var yearRangePattern = regexp.MustCompile(`(\d{4})\s*[-~至到]+\s*(\d{4}|present|now|至今|今)`)

// estimateExperienceYears 从经历的时间描述中估算总工作年限。
// 无法解析任何年份区间时退化为经历条数。
func estimateExperienceYears(entries []model.ExperienceEntry) int {
	total := 0
	parsedAny := false
	currentYear := time.Now().Year()
	for _, e := range entries {
		m := yearRangePattern.FindStringSubmatch(strings.ToLower(e.Duration))
		if m == nil {
			continue
		}
		start, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		end := currentYear
		if y, err := strconv.Atoi(m[2]); err == nil {
			end = y
		}
		if end >= start {
			total += end - start
			parsedAny = true
		}
	}
	if !parsedAny {
		return len(entries)
	}
	return total
}
