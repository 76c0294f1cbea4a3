package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// SourceType 来源类型鉴别字段，决定扩展列所在的表
type SourceType string

const (
	SourceTypeSource          SourceType = "source"
	SourceTypeForum           SourceType = "forum"
	SourceTypeRansomwareGroup SourceType = "ransomware_group"
	SourceTypeTelegram        SourceType = "telegram"
)

// Valid 是否为已知的来源类型
func (t SourceType) Valid() bool {
	switch t {
	case SourceTypeSource, SourceTypeForum, SourceTypeRansomwareGroup, SourceTypeTelegram:
		return true
	}
	return false
}

// Monitored 监控方式
type Monitored string

const (
	MonitoredManual    Monitored = "YES_MANUAL"
	MonitoredAutomated Monitored = "YES_AUTOMATED"
	MonitoredNo        Monitored = "NO"
)

func (m Monitored) Valid() bool {
	switch m {
	case MonitoredManual, MonitoredAutomated, MonitoredNo:
		return true
	}
	return false
}

// Source 所有被监控来源的基础表，子类型通过共享 id 扩展
type Source struct {
	ID                uuid.UUID                   `gorm:"type:uuid;primaryKey" json:"id"`
	Name              string                      `gorm:"not null" json:"name"`
	Description       *string                     `json:"description"`
	Type              SourceType                  `gorm:"size:32;not null;index" json:"type"` // 创建后不可修改
	Nature            *string                     `json:"nature"`                             // credentials, hacking, ransomware ...
	Status            bool                        `gorm:"not null" json:"status"`
	Author            string                      `gorm:"not null" json:"author"`
	Country           string                      `gorm:"not null" json:"country"`
	Language          string                      `gorm:"not null" json:"language"`
	AssociatedDomains datatypes.JSONSlice[string] `json:"associated_domains"`
	Owner             *string                     `json:"owner"`
	Monitored         Monitored                   `gorm:"size:20;not null;default:'NO'" json:"monitored"`
	DiscoverySource   *string                     `json:"discovery_source"`
	CreatedAt         time.Time                   `json:"created_at"`
	UpdatedAt         time.Time                   `json:"updated_at"`
}

func (Source) TableName() string { return "sources" }

func (s *Source) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

// SourceColumns 联表查询子类型时从 sources 表选取的列
const SourceColumns = "sources.*"
