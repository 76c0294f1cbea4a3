package search

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

// Engine 跨实体类型的统一检索入口，只读
type Engine struct {
	db       *gorm.DB
	limit    int
	entities map[string]*Entity
}

func NewEngine(conn *gorm.DB, limit int) *Engine {
	e := &Engine{db: conn, limit: limit, entities: map[string]*Entity{}}
	for _, ent := range []*Entity{forumPostEntity(), ransomwareEntity(), telegramEntity()} {
		e.entities[ent.Tag] = ent
	}
	return e
}

// Entity 返回某个类型的注册信息
func (e *Engine) Entity(tag string) (*Entity, bool) {
	ent, ok := e.entities[tag]
	return ent, ok
}

// Query 一次检索请求
type Query struct {
	Kinds   string   // 逗号分隔的类型列表，空表示全部
	Text    string   // 全文检索
	Filters []string // field:operator:value
	Limit   int      // 每类结果上限，<=0 用默认值
}

// ParseKinds 解析逗号分隔的类型列表，忽略未知类型；
// 结果为空时返回全部类型。
func (e *Engine) ParseKinds(csv string) []string {
	seen := map[string]bool{}
	var kinds []string
	for _, part := range strings.Split(csv, ",") {
		tag := strings.ToLower(strings.TrimSpace(part))
		if _, ok := e.entities[tag]; ok && !seen[tag] {
			seen[tag] = true
			kinds = append(kinds, tag)
		}
	}
	if len(kinds) == 0 {
		return append([]string(nil), DefaultKinds...)
	}
	return kinds
}

// Search 返回 类型 -> 结果列表，每个请求的类型都有 key（无结果时为空列表）
func (e *Engine) Search(ctx context.Context, q Query) (map[string]any, error) {
	kinds := e.ParseKinds(q.Kinds)
	filters := ParseFilters(q.Filters)
	limit := q.Limit
	if limit <= 0 || limit > e.limit {
		limit = e.limit
	}

	results := make([]any, len(kinds))
	g, gctx := errgroup.WithContext(ctx)
	for i, tag := range kinds {
		ent := e.entities[tag]
		g.Go(func() error {
			out, err := e.searchEntity(gctx, ent, q.Text, filters, limit)
			if err != nil {
				return fmt.Errorf("search %s: %w", ent.Tag, err)
			}
			results[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make(map[string]any, len(kinds))
	for i, tag := range kinds {
		out[tag] = results[i]
	}
	return out, nil
}

func (e *Engine) searchEntity(ctx context.Context, ent *Entity, text string, filters []Filter, limit int) (any, error) {
	pred, ok := ent.Compile(text, filters)
	if !ok {
		return ent.empty, nil
	}
	q := ent.scope(e.db.WithContext(ctx)).Where(pred).Order(ent.order)
	if limit > 0 {
		q = q.Limit(limit)
	}
	return ent.find(q)
}
