package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ForumDetail forums 表：论坛扩展列，主键即 sources.id（外键见 db.Migrate）
type ForumDetail struct {
	ID          uuid.UUID                   `gorm:"type:uuid;primaryKey" json:"id"`
	UserCount   int                         `gorm:"not null;default:0" json:"user_count"`
	PostCount   int                         `gorm:"not null;default:0" json:"post_count"`
	ThreadCount int                         `gorm:"not null;default:0" json:"thread_count"`
	LastMember  *string                     `json:"last_member"`
	Categories  datatypes.JSONSlice[string] `json:"categories"`
}

func (ForumDetail) TableName() string { return "forums" }

// Forum 论坛视图 = sources 行 + forums 扩展列
type Forum struct {
	Source
	UserCount   int                         `json:"user_count"`
	PostCount   int                         `json:"post_count"`
	ThreadCount int                         `json:"thread_count"`
	LastMember  *string                     `json:"last_member"`
	Categories  datatypes.JSONSlice[string] `json:"categories"`
}

// Detail 拆出 forums 表需要写入的部分
func (f *Forum) Detail() ForumDetail {
	return ForumDetail{
		ID:          f.ID,
		UserCount:   f.UserCount,
		PostCount:   f.PostCount,
		ThreadCount: f.ThreadCount,
		LastMember:  f.LastMember,
		Categories:  f.Categories,
	}
}

// ForumColumns 论坛联表查询的列
const ForumColumns = SourceColumns + ", forums.user_count, forums.post_count, forums.thread_count, forums.last_member, forums.categories"

// ForumPost 论坛帖子，随所属论坛级联删除
type ForumPost struct {
	ID             uuid.UUID                   `gorm:"type:uuid;primaryKey" json:"id"`
	ForumID        uuid.UUID                   `gorm:"type:uuid;not null;index" json:"forum_id"`
	Forum          *ForumDetail                `gorm:"foreignKey:ForumID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	URL            string                      `gorm:"column:url;not null" json:"url"`
	Title          string                      `gorm:"not null" json:"title"`
	AuthorUsername string                      `gorm:"column:author_username;not null" json:"author_username"`
	Content        string                      `gorm:"type:text;not null" json:"content"` // 纯文本
	Category       string                      `json:"category"`
	Comments       datatypes.JSON              `json:"comments"` // 可为空的结构化评论
	NumberComments int                         `gorm:"not null;default:0" json:"number_comments"`
	Date           time.Time                   `gorm:"not null;index" json:"date"`
	AISummary      *string                     `gorm:"column:ai_summary;type:text" json:"ai_summary"`
	AITags         datatypes.JSONSlice[string] `gorm:"column:ai_tags" json:"ai_tags"`
	ScreenshotURL  *string                     `gorm:"column:screenshot_url" json:"screenshotUrl"`
	CreatedAt      time.Time                   `json:"created_at"`
	UpdatedAt      time.Time                   `json:"updated_at"`
}

func (ForumPost) TableName() string { return "forum_posts" }

func (p *ForumPost) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
