// Package validate 写入前的必填字段检查
package validate

import (
	"intelhub/internal/apperr"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Fields 字段名 -> 值，由各个输入类型按外部字段名导出
type Fields map[string]any

// Required 按 names 的顺序检查，返回第一个缺失字段的 validation_error。
// 字符串要求非空白；数值与布尔只要求存在（非 nil 指针）。
func Required(f Fields, names ...string) error {
	for _, name := range names {
		v, ok := f[name]
		if !ok || isMissing(v) {
			return apperr.Missing(name)
		}
	}
	return nil
}

func isMissing(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(x) == ""
	case *string:
		return x == nil || strings.TrimSpace(*x) == ""
	case *bool:
		return x == nil
	case *int:
		return x == nil
	case *int64:
		return x == nil
	case *float64:
		return x == nil
	case *time.Time:
		return x == nil || x.IsZero()
	case time.Time:
		return x.IsZero()
	case uuid.UUID:
		return x == uuid.Nil
	case *uuid.UUID:
		return x == nil || *x == uuid.Nil
	}
	return false
}

// NonNegative 计数类字段不得为负
func NonNegative(f Fields, names ...string) error {
	for _, name := range names {
		if p, ok := f[name].(*int); ok && p != nil && *p < 0 {
			return apperr.Validation(name, "field '%s' must be a non-negative integer", name)
		}
	}
	return nil
}
