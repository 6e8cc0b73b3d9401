package models

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"
)

// Candidate 候选人主表，索引文档的权威数据源
type Candidate struct {
	CandidateID       string         `gorm:"type:char(36);primaryKey"`
	Name              string         `gorm:"type:varchar(255)"`
	Email             string         `gorm:"type:varchar(255);uniqueIndex:idx_candidates_email_unique"`
	Location          string         `gorm:"type:varchar(255);index:idx_candidates_location"`
	Availability      string         `gorm:"type:varchar(50)"`
	VisaStatus        string         `gorm:"type:varchar(50)"`
	YearsExperience   int            `gorm:"type:int;default:0"`
	SkillsJSON        datatypes.JSON `gorm:"type:json"` // 规范化后的技能列表
	ExperienceSummary string         `gorm:"type:text"`
	ResumeObjectKey   string         `gorm:"type:varchar(1024)"`
	TextMD5           string         `gorm:"type:char(32);index:idx_candidates_text_md5"`
	// SyncedAt 为空表示候选人尚未写入搜索索引
	SyncedAt  *time.Time `gorm:"type:datetime(6);index:idx_candidates_synced_at"`
	CreatedAt time.Time  `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6)"`
	UpdatedAt time.Time  `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6);autoUpdateTime"`
}

func (Candidate) TableName() string {
	return "candidates"
}

// Skills 反序列化技能列表
func (c *Candidate) Skills() ([]string, error) {
	if len(c.SkillsJSON) == 0 {
		return nil, nil
	}
	var skills []string
	if err := json.Unmarshal(c.SkillsJSON, &skills); err != nil {
		return nil, fmt.Errorf("反序列化技能列表失败: %w", err)
	}
	return skills, nil
}

// SetSkills 序列化技能列表
func (c *Candidate) SetSkills(skills []string) error {
	data, err := json.Marshal(skills)
	if err != nil {
		return fmt.Errorf("序列化技能列表失败: %w", err)
	}
	c.SkillsJSON = datatypes.JSON(data)
	return nil
}

// AnalyticsEvent 查询事件追加表
type AnalyticsEvent struct {
	EventID     uint64         `gorm:"primaryKey;autoIncrement"`
	QueryText   string         `gorm:"type:text"`
	Mode        string         `gorm:"type:varchar(50);index:idx_analytics_events_mode"`
	FiltersJSON datatypes.JSON `gorm:"type:json"`
	ResultCount int            `gorm:"type:int"`
	ActorID     string         `gorm:"type:char(36);index:idx_analytics_events_actor"`
	OccurredAt  time.Time      `gorm:"type:datetime(6);index:idx_analytics_events_occurred_at"`
	CreatedAt   time.Time      `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6)"`
}

func (AnalyticsEvent) TableName() string {
	return "analytics_events"
}
