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

// TelegramService Telegram 频道来源
type TelegramService struct {
	db *gorm.DB
}

func NewTelegramService(conn *gorm.DB) *TelegramService {
	return &TelegramService{db: conn}
}

func telegramQuery(tx *gorm.DB) *gorm.DB {
	return tx.Table("sources").
		Select(models.TelegramColumns).
		Joins("JOIN telegrams ON telegrams.id = sources.id")
}

func (s *TelegramService) Create(ctx context.Context, in TelegramInput) (*models.Telegram, error) {
	f := in.Fields()
	if err := validate.Required(f, sourceRequired...); err != nil {
		return nil, err
	}
	if err := validate.NonNegative(validate.Fields{"member_count": in.MemberCount}, "member_count"); err != nil {
		return nil, err
	}
	src, err := in.build(models.SourceTypeTelegram)
	if err != nil {
		return nil, err
	}
	channel := models.Telegram{Source: src, ChannelUsername: in.ChannelUsername}
	if in.MemberCount != nil {
		channel.MemberCount = *in.MemberCount
	}
	if in.LastMessageDate != nil && *in.LastMessageDate != "" {
		t, err := parseTimestampField("last_message_date", *in.LastMessageDate)
		if err != nil {
			return nil, err
		}
		channel.LastMessageDate = &t
	}

	err = db.Tx(ctx, s.db, func(tx *gorm.DB) error {
		if err := insertSource(tx, &channel.Source); err != nil {
			return err
		}
		detail := channel.Detail()
		if err := tx.Omit(clause.Associations).Create(&detail).Error; err != nil {
			return apperr.FromDB(err, "telegram")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &channel, nil
}

func (s *TelegramService) Get(ctx context.Context, id uuid.UUID) (*models.Telegram, error) {
	var channel models.Telegram
	err := telegramQuery(s.db.WithContext(ctx)).Where("sources.id = ?", id).Take(&channel).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("telegram channel", id)
	}
	if err != nil {
		return nil, apperr.FromDB(err, "telegram channel")
	}
	return &channel, nil
}

func (s *TelegramService) List(ctx context.Context) ([]models.Telegram, error) {
	out := []models.Telegram{}
	if err := telegramQuery(s.db.WithContext(ctx)).Order("sources.created_at DESC").Find(&out).Error; err != nil {
		return nil, apperr.FromDB(err, "telegram channels")
	}
	return out, nil
}

func (s *TelegramService) Delete(ctx context.Context, id uuid.UUID) error {
	return db.Tx(ctx, s.db, func(tx *gorm.DB) error {
		src, err := loadSource(tx, id)
		if err != nil {
			return err
		}
		if src.Type != models.SourceTypeTelegram {
			return apperr.NotFound("telegram channel", id)
		}
		return deleteSourceTx(tx, src)
	})
}
