package models

import (
	"time"

	"github.com/google/uuid"
)

// TelegramDetail telegrams 表
type TelegramDetail struct {
	ID              uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	ChannelUsername *string    `gorm:"column:channel_username" json:"channel_username"`
	MemberCount     int        `gorm:"not null;default:0" json:"member_count"`
	LastMessageDate *time.Time `json:"last_message_date"`
}

func (TelegramDetail) TableName() string { return "telegrams" }

// Telegram 频道视图
type Telegram struct {
	Source
	ChannelUsername *string    `json:"channel_username"`
	MemberCount     int        `json:"member_count"`
	LastMessageDate *time.Time `json:"last_message_date"`
}

func (t *Telegram) Detail() TelegramDetail {
	return TelegramDetail{
		ID:              t.ID,
		ChannelUsername: t.ChannelUsername,
		MemberCount:     t.MemberCount,
		LastMessageDate: t.LastMessageDate,
	}
}

const TelegramColumns = SourceColumns + ", telegrams.channel_username, telegrams.member_count, telegrams.last_message_date"
