package services

import (
	"context"
	"errors"
	"intelhub/internal/apperr"
	"intelhub/internal/db"
	"intelhub/internal/models"
	"intelhub/internal/validate"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ForumService 论坛来源
type ForumService struct {
	db *gorm.DB
}

func NewForumService(conn *gorm.DB) *ForumService {
	return &ForumService{db: conn}
}

func forumQuery(tx *gorm.DB) *gorm.DB {
	return tx.Table("sources").
		Select(models.ForumColumns).
		Joins("JOIN forums ON forums.id = sources.id")
}

func (s *ForumService) Create(ctx context.Context, in ForumInput) (*models.Forum, error) {
	f := in.Fields()
	if err := validate.Required(f, forumRequired...); err != nil {
		return nil, err
	}
	if err := validate.NonNegative(f, "user_count", "post_count", "thread_count"); err != nil {
		return nil, err
	}
	src, err := in.build(models.SourceTypeForum)
	if err != nil {
		return nil, err
	}
	forum := models.Forum{
		Source:      src,
		UserCount:   *in.UserCount,
		PostCount:   *in.PostCount,
		ThreadCount: *in.ThreadCount,
		LastMember:  in.LastMember,
		Categories:  in.Categories,
	}
	err = db.Tx(ctx, s.db, func(tx *gorm.DB) error {
		return insertForum(tx, &forum)
	})
	if err != nil {
		return nil, err
	}
	return &forum, nil
}

// insertForum 先写 sources 行，再用同一个 id 写 forums 行
func insertForum(tx *gorm.DB, forum *models.Forum) error {
	if err := insertSource(tx, &forum.Source); err != nil {
		return err
	}
	detail := forum.Detail()
	if err := tx.Omit(clause.Associations).Create(&detail).Error; err != nil {
		return apperr.FromDB(err, "forum")
	}
	return nil
}

func (s *ForumService) Get(ctx context.Context, id uuid.UUID) (*models.Forum, error) {
	return loadForum(s.db.WithContext(ctx), id)
}

func loadForum(tx *gorm.DB, id uuid.UUID) (*models.Forum, error) {
	var forum models.Forum
	err := forumQuery(tx).Where("sources.id = ?", id).Take(&forum).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("forum", id)
	}
	if err != nil {
		return nil, apperr.FromDB(err, "forum")
	}
	return &forum, nil
}

func (s *ForumService) List(ctx context.Context) ([]models.Forum, error) {
	out := []models.Forum{}
	if err := forumQuery(s.db.WithContext(ctx)).Order("sources.created_at DESC").Find(&out).Error; err != nil {
		return nil, apperr.FromDB(err, "forums")
	}
	return out, nil
}

func (s *ForumService) Update(ctx context.Context, id uuid.UUID, patch ForumPatch) (*models.Forum, error) {
	var out *models.Forum
	err := db.Tx(ctx, s.db, func(tx *gorm.DB) error {
		cur, err := loadForum(tx, id)
		if err != nil {
			return err
		}
		if err := updateSource(tx, &cur.Source, patch.SourcePatch); err != nil {
			return err
		}
		u, err := patch.detailUpdates()
		if err != nil {
			return err
		}
		if len(u) > 0 {
			if err := tx.Model(&models.ForumDetail{}).Where("id = ?", id).Updates(u).Error; err != nil {
				return apperr.FromDB(err, "forum")
			}
		}
		out, err = loadForum(tx, id)
		return err
	})
	return out, err
}

// Delete 删除论坛及其全部帖子
func (s *ForumService) Delete(ctx context.Context, id uuid.UUID) error {
	return db.Tx(ctx, s.db, func(tx *gorm.DB) error {
		if _, err := loadForum(tx, id); err != nil {
			return err
		}
		return deleteForumTx(tx, id)
	})
}
