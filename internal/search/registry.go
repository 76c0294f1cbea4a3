package search

import (
	"intelhub/internal/models"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	KindForumPosts = "forum-posts"
	KindRansomware = "ransomware"
	KindTelegram   = "telegram"
)

// DefaultKinds 未指定 entity 时按此顺序搜索全部类型
var DefaultKinds = []string{KindForumPosts, KindRansomware, KindTelegram}

// Entity 一种可搜索实体：字段表、全文列、基础查询与结果类型
type Entity struct {
	Tag         string
	fields      map[string]Field // 小写名称 -> 字段
	textColumns []string
	order       string
	scope       func(tx *gorm.DB) *gorm.DB
	find        func(q *gorm.DB) (any, error)
	empty       any // 无条件时直接返回，不做全表查询
}

func newEntity(tag string, fields []Field, aliases map[string]string, textColumns []string) *Entity {
	e := &Entity{Tag: tag, fields: make(map[string]Field, len(fields)+len(aliases)), textColumns: textColumns}
	for _, f := range fields {
		e.fields[strings.ToLower(f.Name)] = f
	}
	for alias, target := range aliases {
		e.fields[strings.ToLower(alias)] = e.fields[strings.ToLower(target)]
	}
	return e
}

// Field 按名称查找字段，不区分大小写
func (e *Entity) Field(name string) (Field, bool) {
	f, ok := e.fields[strings.ToLower(strings.TrimSpace(name))]
	return f, ok
}

// Compile 把全文检索和过滤条件编译成一个谓词：
// 全文为各文本列的 OR，过滤条件之间为 AND，两组再 AND。
// 没有任何有效条件时返回 false，调用方应返回空结果。
func (e *Entity) Compile(text string, filters []Filter) (clause.Expression, bool) {
	var conds []clause.Expression

	if q := strings.TrimSpace(text); q != "" && len(e.textColumns) > 0 {
		pattern := "%" + escapeLike(strings.ToLower(q)) + "%"
		ors := make([]clause.Expression, 0, len(e.textColumns))
		for _, col := range e.textColumns {
			ors = append(ors, likeExpr(col, pattern))
		}
		conds = append(conds, clause.Or(ors...))
	}

	for _, f := range filters {
		field, ok := e.Field(f.Field)
		if !ok {
			continue
		}
		expr, ok := field.Predicate(f.Operator, f.Value)
		if !ok {
			continue
		}
		conds = append(conds, expr)
	}

	if len(conds) == 0 {
		return nil, false
	}
	return clause.And(conds...), true
}

func forumPostEntity() *Entity {
	e := newEntity(KindForumPosts, []Field{
		{Name: "title", Column: "forum_posts.title"},
		{Name: "author_username", Column: "forum_posts.author_username"},
		{Name: "content", Column: "forum_posts.content"},
		{Name: "category", Column: "forum_posts.category"},
		{Name: "url", Column: "forum_posts.url"},
		{Name: "date", Column: "forum_posts.date", Kind: DateField},
	}, map[string]string{"author": "author_username"}, []string{
		"forum_posts.title",
		"forum_posts.content",
		"forum_posts.author_username",
		"forum_posts.category",
		"forum_posts.url",
	})
	e.order = "forum_posts.date DESC"
	e.scope = func(tx *gorm.DB) *gorm.DB {
		return tx.Model(&models.ForumPost{})
	}
	e.empty = []models.ForumPost{}
	e.find = func(q *gorm.DB) (any, error) {
		out := []models.ForumPost{}
		err := q.Find(&out).Error
		return out, err
	}
	return e
}

func ransomwareEntity() *Entity {
	e := newEntity(KindRansomware, []Field{
		{Name: "BreachName", Column: "ransomware_entries.breach_name"},
		{Name: "Domain", Column: "ransomware_entries.domain"},
		{Name: "Category", Column: "ransomware_entries.category"},
		{Name: "Country", Column: "ransomware_entries.country"},
		{Name: "Rank", Column: "ransomware_entries.rank"},
		{Name: "Group", Column: "ransomware_groups.group_name"},
		{Name: "DetectionDate", Column: "ransomware_entries.detection_date", Kind: DateField},
	}, map[string]string{"date": "DetectionDate", "group_name": "Group"}, []string{
		"ransomware_entries.breach_name",
		"ransomware_entries.domain",
		"ransomware_entries.category",
		"ransomware_entries.country",
		"ransomware_groups.group_name",
	})
	e.order = "ransomware_entries.detection_date DESC"
	e.scope = func(tx *gorm.DB) *gorm.DB {
		return tx.Table("ransomware_entries").
			Select(models.RansomwareEntryColumns).
			Joins("JOIN ransomware_groups ON ransomware_groups.id = ransomware_entries.group_id")
	}
	e.empty = []models.RansomwareEntry{}
	e.find = func(q *gorm.DB) (any, error) {
		out := []models.RansomwareEntry{}
		err := q.Find(&out).Error
		return out, err
	}
	return e
}

func telegramEntity() *Entity {
	e := newEntity(KindTelegram, []Field{
		{Name: "name", Column: "sources.name"},
		{Name: "description", Column: "sources.description"},
		{Name: "author", Column: "sources.author"},
		{Name: "country", Column: "sources.country"},
		{Name: "language", Column: "sources.language"},
		{Name: "channel_username", Column: "telegrams.channel_username"},
		{Name: "last_message_date", Column: "telegrams.last_message_date", Kind: DateField},
	}, nil, []string{
		"sources.name",
		"sources.description",
		"sources.author",
		"sources.country",
		"sources.language",
		"telegrams.channel_username",
	})
	e.order = "sources.created_at DESC"
	e.scope = func(tx *gorm.DB) *gorm.DB {
		return tx.Table("sources").
			Select(models.TelegramColumns).
			Joins("JOIN telegrams ON telegrams.id = sources.id")
	}
	e.empty = []models.Telegram{}
	e.find = func(q *gorm.DB) (any, error) {
		out := []models.Telegram{}
		err := q.Find(&out).Error
		return out, err
	}
	return e
}
