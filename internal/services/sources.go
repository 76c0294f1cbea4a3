package services

import (
	"context"
	"errors"
	"intelhub/internal/apperr"
	"intelhub/internal/db"
	"intelhub/internal/models"
	"intelhub/internal/validate"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SourceService 通用来源的增删改查（不含子类型扩展列）
type SourceService struct {
	db *gorm.DB
}

func NewSourceService(conn *gorm.DB) *SourceService {
	return &SourceService{db: conn}
}

// Create 只创建 type=source 的普通来源，子类型走各自的接口
func (s *SourceService) Create(ctx context.Context, in SourceInput) (*models.Source, error) {
	if err := validate.Required(in.Fields(), sourceRequired...); err != nil {
		return nil, err
	}
	if t := models.SourceType(in.Type); t != models.SourceTypeSource {
		if t.Valid() {
			return nil, apperr.Validation("type", "use the %s endpoint to create a %s", t, t)
		}
		return nil, apperr.Validation("type", "unknown source type %q", in.Type)
	}
	src, err := in.build(models.SourceTypeSource)
	if err != nil {
		return nil, err
	}
	err = db.Tx(ctx, s.db, func(tx *gorm.DB) error {
		return insertSource(tx, &src)
	})
	if err != nil {
		return nil, err
	}
	return &src, nil
}

func (s *SourceService) Get(ctx context.Context, id uuid.UUID) (*models.Source, error) {
	return loadSource(s.db.WithContext(ctx), id)
}

// List 列出来源，typ 非空时按类型过滤
func (s *SourceService) List(ctx context.Context, typ string) ([]models.Source, error) {
	q := s.db.WithContext(ctx).Order("created_at DESC")
	if typ = strings.TrimSpace(typ); typ != "" {
		if !models.SourceType(typ).Valid() {
			return nil, apperr.Validation("type", "unknown source type %q", typ)
		}
		q = q.Where("type = ?", typ)
	}
	out := []models.Source{}
	if err := q.Find(&out).Error; err != nil {
		return nil, apperr.FromDB(err, "sources")
	}
	return out, nil
}

// Update 修改基础字段，type 不可变
func (s *SourceService) Update(ctx context.Context, id uuid.UUID, patch SourcePatch) (*models.Source, error) {
	var out *models.Source
	err := db.Tx(ctx, s.db, func(tx *gorm.DB) error {
		cur, err := loadSource(tx, id)
		if err != nil {
			return err
		}
		if err := updateSource(tx, cur, patch); err != nil {
			return err
		}
		out, err = loadSource(tx, id)
		return err
	})
	return out, err
}

// Delete 删除来源；子类型连同扩展行和下属记录一并删除
func (s *SourceService) Delete(ctx context.Context, id uuid.UUID) error {
	return db.Tx(ctx, s.db, func(tx *gorm.DB) error {
		cur, err := loadSource(tx, id)
		if err != nil {
			return err
		}
		return deleteSourceTx(tx, cur)
	})
}

func insertSource(tx *gorm.DB, src *models.Source) error {
	if err := tx.Create(src).Error; err != nil {
		return apperr.FromDB(err, "source")
	}
	return nil
}

func loadSource(tx *gorm.DB, id uuid.UUID) (*models.Source, error) {
	var src models.Source
	if err := tx.Where("id = ?", id).Take(&src).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("source", id)
		}
		return nil, apperr.FromDB(err, "source")
	}
	return &src, nil
}

func updateSource(tx *gorm.DB, cur *models.Source, patch SourcePatch) error {
	u, err := patch.updates(cur.Type)
	if err != nil {
		return err
	}
	if len(u) == 0 {
		return nil
	}
	if err := tx.Model(&models.Source{}).Where("id = ?", cur.ID).Updates(u).Error; err != nil {
		return apperr.FromDB(err, "source")
	}
	return nil
}

// deleteSourceTx 按类型分派的级联删除，调用方负责事务
func deleteSourceTx(tx *gorm.DB, src *models.Source) error {
	switch src.Type {
	case models.SourceTypeForum:
		return deleteForumTx(tx, src.ID)
	case models.SourceTypeRansomwareGroup:
		return deleteGroupTx(tx, src.ID)
	case models.SourceTypeTelegram:
		if err := tx.Where("id = ?", src.ID).Delete(&models.TelegramDetail{}).Error; err != nil {
			return apperr.FromDB(err, "telegram")
		}
	}
	if err := tx.Where("id = ?", src.ID).Delete(&models.Source{}).Error; err != nil {
		return apperr.FromDB(err, "source")
	}
	return nil
}

func deleteForumTx(tx *gorm.DB, id uuid.UUID) error {
	if err := tx.Where("forum_id = ?", id).Delete(&models.ForumPost{}).Error; err != nil {
		return apperr.FromDB(err, "forum posts")
	}
	if err := tx.Where("id = ?", id).Delete(&models.ForumDetail{}).Error; err != nil {
		return apperr.FromDB(err, "forum")
	}
	if err := tx.Where("id = ?", id).Delete(&models.Source{}).Error; err != nil {
		return apperr.FromDB(err, "source")
	}
	return nil
}

func deleteGroupTx(tx *gorm.DB, id uuid.UUID) error {
	entryIDs := tx.Model(&models.RansomwareEntry{}).Select("id").Where("group_id = ?", id)
	if err := tx.Where("entry_id IN (?)", entryIDs).Delete(&models.RansomwareIngestKey{}).Error; err != nil {
		return apperr.FromDB(err, "ingest keys")
	}
	if err := tx.Where("group_id = ?", id).Delete(&models.RansomwareEntry{}).Error; err != nil {
		return apperr.FromDB(err, "ransomware entries")
	}
	if err := tx.Where("id = ?", id).Delete(&models.RansomwareGroupDetail{}).Error; err != nil {
		return apperr.FromDB(err, "ransomware group")
	}
	if err := tx.Where("id = ?", id).Delete(&models.Source{}).Error; err != nil {
		return apperr.FromDB(err, "source")
	}
	return nil
}
