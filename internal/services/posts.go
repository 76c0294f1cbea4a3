package services

import (
	"context"
	"encoding/json"
	"errors"
	"html"
	"intelhub/internal/apperr"
	"intelhub/internal/db"
	"intelhub/internal/models"
	"intelhub/internal/validate"
	"strings"

	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PostService 论坛帖子；正文统一清洗为纯文本后入库
type PostService struct {
	db     *gorm.DB
	policy *bluemonday.Policy
}

func NewPostService(conn *gorm.DB) *PostService {
	return &PostService{db: conn, policy: bluemonday.StrictPolicy()}
}

// plainText 去掉 HTML 标签，保留文字
func (s *PostService) plainText(raw string) string {
	return strings.TrimSpace(html.UnescapeString(s.policy.Sanitize(raw)))
}

func (s *PostService) Create(ctx context.Context, in ForumPostInput) (*models.ForumPost, error) {
	if err := validate.Required(in.Fields(), postRequired...); err != nil {
		return nil, err
	}
	forumID, err := ParseID("forum_id", in.ForumID)
	if err != nil {
		return nil, err
	}
	date, err := parseTimestampField("date", in.Date)
	if err != nil {
		return nil, err
	}
	if err := validate.NonNegative(validate.Fields{"number_comments": in.NumberComments}, "number_comments"); err != nil {
		return nil, err
	}
	comments, err := commentsJSON(in.Comments)
	if err != nil {
		return nil, err
	}
	content := s.plainText(in.Content)
	if content == "" {
		return nil, apperr.Missing("content")
	}

	post := models.ForumPost{
		ForumID:        forumID,
		URL:            strings.TrimSpace(in.URL),
		Title:          strings.TrimSpace(in.Title),
		AuthorUsername: strings.TrimSpace(in.AuthorUsername),
		Content:        content,
		Category:       strings.TrimSpace(in.Category),
		Comments:       comments,
		Date:           date,
		ScreenshotURL:  in.ScreenshotURL,
	}
	if in.NumberComments != nil {
		post.NumberComments = *in.NumberComments
	}

	err = db.Tx(ctx, s.db, func(tx *gorm.DB) error {
		// 父论坛不存在时返回 not_found，而不是等外键报错
		if _, err := loadForum(tx, forumID); err != nil {
			return err
		}
		if err := tx.Omit(clause.Associations).Create(&post).Error; err != nil {
			return apperr.FromDB(err, "forum post")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &post, nil
}

func (s *PostService) Get(ctx context.Context, id uuid.UUID) (*models.ForumPost, error) {
	return loadPost(s.db.WithContext(ctx), id)
}

func loadPost(tx *gorm.DB, id uuid.UUID) (*models.ForumPost, error) {
	var post models.ForumPost
	err := tx.Where("id = ?", id).Take(&post).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("forum post", id)
	}
	if err != nil {
		return nil, apperr.FromDB(err, "forum post")
	}
	return &post, nil
}

// ListByForum 某个论坛下的帖子，论坛不存在返回 not_found
func (s *PostService) ListByForum(ctx context.Context, forumID uuid.UUID) ([]models.ForumPost, error) {
	conn := s.db.WithContext(ctx)
	if _, err := loadForum(conn, forumID); err != nil {
		return nil, err
	}
	out := []models.ForumPost{}
	if err := conn.Where("forum_id = ?", forumID).Order("date DESC").Find(&out).Error; err != nil {
		return nil, apperr.FromDB(err, "forum posts")
	}
	return out, nil
}

// DeleteByForum 删除某论坛下全部帖子，返回删除条数
func (s *PostService) DeleteByForum(ctx context.Context, forumID uuid.UUID) (int64, error) {
	var n int64
	err := db.Tx(ctx, s.db, func(tx *gorm.DB) error {
		if _, err := loadForum(tx, forumID); err != nil {
			return err
		}
		res := tx.Where("forum_id = ?", forumID).Delete(&models.ForumPost{})
		if res.Error != nil {
			return apperr.FromDB(res.Error, "forum posts")
		}
		n = res.RowsAffected
		return nil
	})
	return n, err
}

func (s *PostService) Update(ctx context.Context, id uuid.UUID, patch PostPatch) (*models.ForumPost, error) {
	u, err := s.postUpdates(patch)
	if err != nil {
		return nil, err
	}
	var out *models.ForumPost
	err = db.Tx(ctx, s.db, func(tx *gorm.DB) error {
		if _, err := loadPost(tx, id); err != nil {
			return err
		}
		if len(u) > 0 {
			if err := tx.Model(&models.ForumPost{}).Where("id = ?", id).Updates(u).Error; err != nil {
				return apperr.FromDB(err, "forum post")
			}
		}
		out, err = loadPost(tx, id)
		return err
	})
	return out, err
}

func (s *PostService) Delete(ctx context.Context, id uuid.UUID) error {
	return db.Tx(ctx, s.db, func(tx *gorm.DB) error {
		if _, err := loadPost(tx, id); err != nil {
			return err
		}
		if err := tx.Where("id = ?", id).Delete(&models.ForumPost{}).Error; err != nil {
			return apperr.FromDB(err, "forum post")
		}
		return nil
	})
}

func (s *PostService) postUpdates(p PostPatch) (map[string]any, error) {
	u := map[string]any{}
	required := []struct {
		name   string
		column string
		value  *string
	}{
		{"url", "url", p.URL},
		{"title", "title", p.Title},
		{"author_username", "author_username", p.AuthorUsername},
		{"category", "category", p.Category},
	}
	for _, r := range required {
		if r.value == nil {
			continue
		}
		if strings.TrimSpace(*r.value) == "" {
			return nil, apperr.Missing(r.name)
		}
		u[r.column] = strings.TrimSpace(*r.value)
	}
	if p.Content != nil {
		content := s.plainText(*p.Content)
		if content == "" {
			return nil, apperr.Missing("content")
		}
		u["content"] = content
	}
	if p.Date != nil {
		date, err := parseTimestampField("date", *p.Date)
		if err != nil {
			return nil, err
		}
		u["date"] = date
	}
	if p.NumberComments != nil {
		if *p.NumberComments < 0 {
			return nil, apperr.Validation("number_comments", "field 'number_comments' must be a non-negative integer")
		}
		u["number_comments"] = *p.NumberComments
	}
	if p.Comments != nil {
		comments, err := commentsJSON(*p.Comments)
		if err != nil {
			return nil, err
		}
		u["comments"] = comments
	}
	if p.AITags != nil {
		u["ai_tags"] = datatypes.JSONSlice[string](*p.AITags)
	}
	setOptional(u, "ai_summary", p.AISummary)
	setOptional(u, "screenshot_url", p.ScreenshotURL)
	return u, nil
}

// commentsJSON 评论保持原始 JSON 结构，null 或缺省视为空
func commentsJSON(raw json.RawMessage) (datatypes.JSON, error) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return nil, nil
	}
	if !json.Valid(raw) {
		return nil, apperr.Validation("comments", "comments must be valid JSON")
	}
	return datatypes.JSON(trimmed), nil
}
