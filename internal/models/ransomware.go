package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// RansomwareGroupDetail ransomware_groups 表，group_name 为全局唯一的自然键
type RansomwareGroupDetail struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	GroupName string    `gorm:"column:group_name;not null;uniqueIndex" json:"group_name"`
}

func (RansomwareGroupDetail) TableName() string { return "ransomware_groups" }

// RansomwareGroup 勒索组织视图 = sources 行 + ransomware_groups 扩展列
type RansomwareGroup struct {
	Source
	GroupName string `json:"group_name"`
}

func (g *RansomwareGroup) Detail() RansomwareGroupDetail {
	return RansomwareGroupDetail{ID: g.ID, GroupName: g.GroupName}
}

const RansomwareGroupColumns = SourceColumns + ", ransomware_groups.group_name"

// RansomwareEntry 勒索泄露条目，JSON 字段名沿用外部数据源的写法
type RansomwareEntry struct {
	ID             uuid.UUID                   `gorm:"type:uuid;primaryKey" json:"id"`
	GroupID        uuid.UUID                   `gorm:"type:uuid;not null;index" json:"group_id"`
	Owner          *RansomwareGroupDetail      `gorm:"foreignKey:GroupID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	GroupName      string                      `gorm:"column:group_name;->;-:migration" json:"Group,omitempty"` // 仅联表查询时填充
	BreachName     string                      `gorm:"column:breach_name;not null;index" json:"BreachName"`
	Domain         *string                     `gorm:"column:domain" json:"Domain"`
	Rank           *string                     `gorm:"column:rank" json:"Rank"`
	Category       *string                     `gorm:"column:category" json:"Category"`
	DetectionDate  time.Time                   `gorm:"column:detection_date;not null;index" json:"DetectionDate"`
	Country        *string                     `gorm:"column:country" json:"Country"`
	OriginalSource *string                     `gorm:"column:original_source" json:"OriginalSource"`
	Download       *string                     `gorm:"column:download" json:"Download"`
	AISummary      *string                     `gorm:"column:ai_summary;type:text" json:"ai_summary"`
	AITags         datatypes.JSONSlice[string] `gorm:"column:ai_tags" json:"ai_tags"`
	CreatedAt      time.Time                   `json:"created_at"`
}

func (RansomwareEntry) TableName() string { return "ransomware_entries" }

func (e *RansomwareEntry) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}

// RansomwareEntryColumns 条目联表查询的列（带上组织名）
const RansomwareEntryColumns = "ransomware_entries.*, ransomware_groups.group_name"

// RansomwareIngestKey 入库去重键，只由 feed 入库流程写入
type RansomwareIngestKey struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	GroupName     string    `gorm:"column:group_name;not null;uniqueIndex:idx_ingest_natural_key,priority:1" json:"group_name"`
	BreachName    string    `gorm:"column:breach_name;not null;uniqueIndex:idx_ingest_natural_key,priority:2" json:"breach_name"`
	DetectionDate time.Time `gorm:"column:detection_date;not null;uniqueIndex:idx_ingest_natural_key,priority:3" json:"detection_date"`
	EntryID       uuid.UUID `gorm:"type:uuid;not null;index" json:"entry_id"`
	CreatedAt     time.Time `json:"created_at"`
}

func (RansomwareIngestKey) TableName() string { return "ransomware_ingest_keys" }
