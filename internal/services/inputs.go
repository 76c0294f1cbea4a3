package services

import (
	"encoding/json"
	"intelhub/internal/apperr"
	"intelhub/internal/models"
	"intelhub/internal/utils"
	"intelhub/internal/validate"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// 各类来源创建时的必填字段，按顺序检查
var (
	sourceRequired = []string{"name", "type", "author", "country", "language", "status", "monitored"}
	forumRequired  = append(append([]string{}, sourceRequired...), "user_count", "post_count", "thread_count")
	groupRequired  = append(append([]string{}, sourceRequired...), "group_name")
	postRequired   = []string{"forum_id", "url", "title", "author_username", "content", "category", "date"}
	entryRequired  = []string{"BreachName", "DetectionDate"}
)

// SourceInput 创建来源的公共字段
type SourceInput struct {
	Name              string   `json:"name"`
	Description       *string  `json:"description"`
	Type              string   `json:"type"`
	Nature            *string  `json:"nature"`
	Status            *bool    `json:"status"`
	Author            string   `json:"author"`
	Country           string   `json:"country"`
	Language          string   `json:"language"`
	AssociatedDomains []string `json:"associated_domains"`
	Owner             *string  `json:"owner"`
	Monitored         string   `json:"monitored"`
	DiscoverySource   *string  `json:"discovery_source"`
}

func (in SourceInput) Fields() validate.Fields {
	return validate.Fields{
		"name":      in.Name,
		"type":      in.Type,
		"author":    in.Author,
		"country":   in.Country,
		"language":  in.Language,
		"status":    in.Status,
		"monitored": in.Monitored,
	}
}

// build 在必填检查通过后转换为 models.Source；
// typ 为空字符串时沿用输入的 type，否则要求一致。
func (in SourceInput) build(typ models.SourceType) (models.Source, error) {
	if typ != "" {
		if in.Type == "" {
			in.Type = string(typ)
		}
		if models.SourceType(in.Type) != typ {
			return models.Source{}, apperr.Validation("type", "type must be '%s' for this endpoint", typ)
		}
	}
	monitored := models.Monitored(strings.ToUpper(strings.TrimSpace(in.Monitored)))
	if in.Monitored != "" && !monitored.Valid() {
		return models.Source{}, apperr.Validation("monitored", "monitored must be one of YES_MANUAL, YES_AUTOMATED, NO")
	}
	status := false
	if in.Status != nil {
		status = *in.Status
	}
	return models.Source{
		Name:              strings.TrimSpace(in.Name),
		Description:       in.Description,
		Type:              models.SourceType(in.Type),
		Nature:            in.Nature,
		Status:            status,
		Author:            strings.TrimSpace(in.Author),
		Country:           strings.TrimSpace(in.Country),
		Language:          strings.TrimSpace(in.Language),
		AssociatedDomains: in.AssociatedDomains,
		Owner:             in.Owner,
		Monitored:         monitored,
		DiscoverySource:   in.DiscoverySource,
	}, nil
}

// sourceFields 已构造好的 Source 的必填字段视图（用于自动建组后的兜底检查）
func sourceFields(src models.Source) validate.Fields {
	return validate.Fields{
		"name":      src.Name,
		"type":      string(src.Type),
		"author":    src.Author,
		"country":   src.Country,
		"language":  src.Language,
		"status":    &src.Status,
		"monitored": string(src.Monitored),
	}
}

type ForumInput struct {
	SourceInput
	UserCount   *int     `json:"user_count"`
	PostCount   *int     `json:"post_count"`
	ThreadCount *int     `json:"thread_count"`
	LastMember  *string  `json:"last_member"`
	Categories  []string `json:"categories"`
}

func (in ForumInput) Fields() validate.Fields {
	f := in.SourceInput.Fields()
	if f["type"] == "" {
		f["type"] = string(models.SourceTypeForum)
	}
	f["user_count"] = in.UserCount
	f["post_count"] = in.PostCount
	f["thread_count"] = in.ThreadCount
	return f
}

type RansomwareGroupInput struct {
	SourceInput
	GroupName string `json:"group_name"`
}

func (in RansomwareGroupInput) Fields() validate.Fields {
	f := in.SourceInput.Fields()
	if f["type"] == "" {
		f["type"] = string(models.SourceTypeRansomwareGroup)
	}
	f["group_name"] = in.GroupName
	return f
}

type TelegramInput struct {
	SourceInput
	ChannelUsername *string `json:"channel_username"`
	MemberCount     *int    `json:"member_count"`
	LastMessageDate *string `json:"last_message_date"`
}

func (in TelegramInput) Fields() validate.Fields {
	f := in.SourceInput.Fields()
	if f["type"] == "" {
		f["type"] = string(models.SourceTypeTelegram)
	}
	return f
}

// ForumPostInput 直接 API 创建帖子
type ForumPostInput struct {
	ForumID        string          `json:"forum_id"`
	URL            string          `json:"url"`
	Title          string          `json:"title"`
	AuthorUsername string          `json:"author_username"`
	Content        string          `json:"content"`
	Category       string          `json:"category"`
	Comments       json.RawMessage `json:"comments"`
	NumberComments *int            `json:"number_comments"`
	Date           string          `json:"date"`
	ScreenshotURL  *string         `json:"screenshotUrl"`
}

func (in ForumPostInput) Fields() validate.Fields {
	return validate.Fields{
		"forum_id":        in.ForumID,
		"url":             in.URL,
		"title":           in.Title,
		"author_username": in.AuthorUsername,
		"content":         in.Content,
		"category":        in.Category,
		"date":            in.Date,
	}
}

// RansomwareEntryInput 直接 API 创建条目，字段名与外部数据源一致
type RansomwareEntryInput struct {
	BreachName     string  `json:"BreachName"`
	Domain         *string `json:"Domain"`
	Rank           *string `json:"Rank"`
	Category       *string `json:"Category"`
	DetectionDate  string  `json:"DetectionDate"`
	Country        *string `json:"Country"`
	OriginalSource *string `json:"OriginalSource"`
	Download       *string `json:"Download"`
}

func (in RansomwareEntryInput) Fields() validate.Fields {
	return validate.Fields{
		"BreachName":    in.BreachName,
		"DetectionDate": in.DetectionDate,
	}
}

func (in RansomwareEntryInput) build() (models.RansomwareEntry, error) {
	detected, err := parseTimestampField("DetectionDate", in.DetectionDate)
	if err != nil {
		return models.RansomwareEntry{}, err
	}
	return models.RansomwareEntry{
		BreachName:     strings.TrimSpace(in.BreachName),
		Domain:         in.Domain,
		Rank:           in.Rank,
		Category:       in.Category,
		DetectionDate:  detected,
		Country:        in.Country,
		OriginalSource: in.OriginalSource,
		Download:       in.Download,
	}, nil
}

// SourcePatch 基础字段的部分更新，type 只允许传入与当前相同的值
type SourcePatch struct {
	Name              *string   `json:"name"`
	Description       *string   `json:"description"`
	Type              *string   `json:"type"`
	Nature            *string   `json:"nature"`
	Status            *bool     `json:"status"`
	Author            *string   `json:"author"`
	Country           *string   `json:"country"`
	Language          *string   `json:"language"`
	AssociatedDomains *[]string `json:"associated_domains"`
	Owner             *string   `json:"owner"`
	Monitored         *string   `json:"monitored"`
	DiscoverySource   *string   `json:"discovery_source"`
}

func (p SourcePatch) updates(current models.SourceType) (map[string]any, error) {
	if p.Type != nil && models.SourceType(*p.Type) != current {
		return nil, apperr.Validation("type", "type is immutable (current: %s)", current)
	}
	u := map[string]any{}
	for name, v := range map[string]*string{"name": p.Name, "author": p.Author, "country": p.Country, "language": p.Language} {
		if v == nil {
			continue
		}
		if strings.TrimSpace(*v) == "" {
			return nil, apperr.Missing(name)
		}
		u[name] = strings.TrimSpace(*v)
	}
	if p.Monitored != nil {
		m := models.Monitored(strings.ToUpper(strings.TrimSpace(*p.Monitored)))
		if !m.Valid() {
			return nil, apperr.Validation("monitored", "monitored must be one of YES_MANUAL, YES_AUTOMATED, NO")
		}
		u["monitored"] = m
	}
	if p.Status != nil {
		u["status"] = *p.Status
	}
	if p.AssociatedDomains != nil {
		u["associated_domains"] = datatypes.JSONSlice[string](*p.AssociatedDomains)
	}
	setOptional(u, "description", p.Description)
	setOptional(u, "nature", p.Nature)
	setOptional(u, "owner", p.Owner)
	setOptional(u, "discovery_source", p.DiscoverySource)
	return u, nil
}

type ForumPatch struct {
	SourcePatch
	UserCount   *int      `json:"user_count"`
	PostCount   *int      `json:"post_count"`
	ThreadCount *int      `json:"thread_count"`
	LastMember  *string   `json:"last_member"`
	Categories  *[]string `json:"categories"`
}

func (p ForumPatch) detailUpdates() (map[string]any, error) {
	f := validate.Fields{"user_count": p.UserCount, "post_count": p.PostCount, "thread_count": p.ThreadCount}
	if err := validate.NonNegative(f, "user_count", "post_count", "thread_count"); err != nil {
		return nil, err
	}
	u := map[string]any{}
	if p.UserCount != nil {
		u["user_count"] = *p.UserCount
	}
	if p.PostCount != nil {
		u["post_count"] = *p.PostCount
	}
	if p.ThreadCount != nil {
		u["thread_count"] = *p.ThreadCount
	}
	if p.Categories != nil {
		u["categories"] = datatypes.JSONSlice[string](*p.Categories)
	}
	setOptional(u, "last_member", p.LastMember)
	return u, nil
}

// PostPatch 帖子的部分更新（含截图地址与 AI 字段）
type PostPatch struct {
	URL            *string          `json:"url"`
	Title          *string          `json:"title"`
	AuthorUsername *string          `json:"author_username"`
	Content        *string          `json:"content"`
	Category       *string          `json:"category"`
	Comments       *json.RawMessage `json:"comments"`
	NumberComments *int             `json:"number_comments"`
	Date           *string          `json:"date"`
	AISummary      *string          `json:"ai_summary"`
	AITags         *[]string        `json:"ai_tags"`
	ScreenshotURL  *string          `json:"screenshotUrl"`
}

func setOptional(u map[string]any, column string, v *string) {
	if v == nil {
		return
	}
	if strings.TrimSpace(*v) == "" {
		u[column] = nil
		return
	}
	u[column] = *v
}

func parseTimestampField(field, raw string) (time.Time, error) {
	t, err := utils.ParseTimestamp(raw)
	if err != nil {
		return time.Time{}, apperr.Validation(field, "invalid %s value %q", field, raw)
	}
	return t, nil
}

// ParseID 解析路径中的 uuid
func ParseID(field, raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return uuid.Nil, apperr.Validation(field, "invalid %s %q", field, raw)
	}
	return id, nil
}
