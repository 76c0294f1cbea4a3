package services

import (
	"context"
	"intelhub/internal/apperr"
	"intelhub/internal/db"
	"intelhub/internal/models"
	"intelhub/internal/utils"
	"log/slog"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AdminService 维护用操作
type AdminService struct {
	db *gorm.DB
}

func NewAdminService(conn *gorm.DB) *AdminService {
	return &AdminService{db: conn}
}

// 按依赖顺序排列：子表在前
var clearOrder = []any{
	&models.RansomwareIngestKey{},
	&models.ForumPost{},
	&models.RansomwareEntry{},
	&models.ForumDetail{},
	&models.RansomwareGroupDetail{},
	&models.TelegramDetail{},
	&models.Source{},
}

// ClearAll 清空所有业务表
func (s *AdminService) ClearAll(ctx context.Context) error {
	err := db.Tx(ctx, s.db, func(tx *gorm.DB) error {
		for _, model := range clearOrder {
			if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(model).Error; err != nil {
				return apperr.FromDB(err, "clear tables")
			}
		}
		return nil
	})
	if err == nil {
		slog.Warn("all tables cleared")
	}
	return err
}

// SeedResult 示例数据
type SeedResult struct {
	Forum *models.Forum     `json:"forum"`
	Post  *models.ForumPost `json:"post"`
}

// SeedMockup 写入一个示例论坛和一篇帖子
func (s *AdminService) SeedMockup(ctx context.Context) (*SeedResult, error) {
	forum := &models.Forum{
		Source: models.Source{
			Name:              "Test Source",
			Description:       utils.Ptr("A test source for mockup."),
			Type:              models.SourceTypeForum,
			Nature:            utils.Ptr("credentials"),
			Status:            true,
			Author:            "admin",
			Country:           "US",
			Language:          "en",
			AssociatedDomains: []string{"example.com", "test.com"},
			Owner:             utils.Ptr("admin"),
			Monitored:         models.MonitoredNo,
			DiscoverySource:   utils.Ptr("manual"),
		},
		UserCount:   10,
		PostCount:   5,
		ThreadCount: 2,
		LastMember:  utils.Ptr("user123"),
		Categories:  []string{"General", "News"},
	}
	post := &models.ForumPost{
		URL:            "https://example.com/post/1",
		Title:          "Welcome Post",
		AuthorUsername: "admin",
		Content:        "This is a welcome post.",
		Category:       "General",
		Date:           time.Now().UTC(),
	}

	err := db.Tx(ctx, s.db, func(tx *gorm.DB) error {
		if err := insertForum(tx, forum); err != nil {
			return err
		}
		post.ForumID = forum.ID
		if err := tx.Omit(clause.Associations).Create(post).Error; err != nil {
			return apperr.FromDB(err, "forum post")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &SeedResult{Forum: forum, Post: post}, nil
}
