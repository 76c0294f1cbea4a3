package search

import (
	"fmt"
	"intelhub/internal/utils"
	"strings"

	"gorm.io/gorm/clause"
)

// FieldKind 字段声明类型，决定可用的操作符
type FieldKind int

const (
	TextField FieldKind = iota
	DateField
)

// Field 可过滤字段：对外名称 -> 限定列名
type Field struct {
	Name   string
	Column string
	Kind   FieldKind
}

// Filter 一条 field:operator:value 表达式
type Filter struct {
	Field    string
	Operator string
	Value    string
}

// ParseFilter 解析过滤表达式。value 里允许再出现冒号；
// 任一部分为空视为格式错误，由调用方丢弃。
func ParseFilter(expr string) (Filter, bool) {
	parts := strings.SplitN(expr, ":", 3)
	if len(parts) != 3 {
		return Filter{}, false
	}
	f := Filter{
		Field:    strings.TrimSpace(parts[0]),
		Operator: strings.TrimSpace(parts[1]),
		Value:    strings.TrimSpace(parts[2]),
	}
	if f.Field == "" || f.Operator == "" || f.Value == "" {
		return Filter{}, false
	}
	return f, true
}

// ParseFilters 解析并丢弃格式错误的表达式
func ParseFilters(exprs []string) []Filter {
	out := make([]Filter, 0, len(exprs))
	for _, expr := range exprs {
		if f, ok := ParseFilter(expr); ok {
			out = append(out, f)
		}
	}
	return out
}

// Predicate 编译单个字段条件，不支持的操作符或无法解析的值返回 false
func (f Field) Predicate(op, value string) (clause.Expression, bool) {
	switch f.Kind {
	case DateField:
		return f.datePredicate(op, value)
	default:
		return f.textPredicate(op, value)
	}
}

func (f Field) textPredicate(op, value string) (clause.Expression, bool) {
	v := strings.ToLower(value)
	switch strings.ToLower(op) {
	case "contains":
		return likeExpr(f.Column, "%"+escapeLike(v)+"%"), true
	case "equals":
		return clause.Expr{SQL: fmt.Sprintf("LOWER(%s) = ?", f.Column), Vars: []any{v}}, true
	case "startswith":
		return likeExpr(f.Column, escapeLike(v)+"%"), true
	case "endswith":
		return likeExpr(f.Column, "%"+escapeLike(v)), true
	}
	return nil, false
}

func (f Field) datePredicate(op, value string) (clause.Expression, bool) {
	day, err := utils.ParseDay(value)
	if err != nil {
		return nil, false
	}
	start, end := utils.DayRange(day)
	switch strings.ToLower(op) {
	case "on":
		return clause.Expr{SQL: fmt.Sprintf("(%s >= ? AND %s < ?)", f.Column, f.Column), Vars: []any{start, end}}, true
	case "before":
		return clause.Expr{SQL: fmt.Sprintf("%s < ?", f.Column), Vars: []any{start}}, true
	case "after":
		return clause.Expr{SQL: fmt.Sprintf("%s >= ?", f.Column), Vars: []any{end}}, true
	}
	return nil, false
}

// likeExpr 不区分大小写的 LIKE，pattern 已转小写并转义
func likeExpr(column, pattern string) clause.Expression {
	return clause.Expr{SQL: fmt.Sprintf(`LOWER(%s) LIKE ? ESCAPE '\'`, column), Vars: []any{pattern}}
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
