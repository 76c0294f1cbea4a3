package utils

import (
	"strings"

	"github.com/spf13/cast"
)

// StringToInt converts string to int, returns 0 if error
func StringToInt(s string) int {
	return cast.ToInt(strings.TrimSpace(s))
}

// StringValue 把外部记录里的任意值转成去掉首尾空白的字符串，nil 或无法转换时返回 ""
func StringValue(v any) string {
	if v == nil {
		return ""
	}
	s, err := cast.ToStringE(v)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(s)
}

// OptionalString 空字符串返回 nil
func OptionalString(v any) *string {
	s := StringValue(v)
	if s == "" {
		return nil
	}
	return &s
}

func Ptr[T any](v T) *T { return &v }
