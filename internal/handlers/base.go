package handlers

import (
	"errors"
	"intelhub/internal/apperr"
	"intelhub/internal/services"
	"intelhub/internal/utils"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// 列表缓存的 key 前缀
const (
	cacheForums   = "forums:"
	cacheGroups   = "groups:"
	cacheTelegram = "telegram:"
)

// respondError 按错误类别返回状态码和统一的 JSON 错误体
func respondError(c *gin.Context, err error) {
	kind := apperr.KindOf(err)
	status := apperr.HTTPStatus(kind)

	body := gin.H{"kind": kind, "error": err.Error()}
	var e *apperr.Error
	if errors.As(err, &e) {
		body["error"] = e.Message
		if e.Field != "" {
			body["field"] = e.Field
		}
	}
	if status >= http.StatusInternalServerError {
		slog.Error("request failed", "method", c.Request.Method, "path", c.FullPath(), "kind", kind, "error", err)
		if kind == apperr.KindInternal {
			body["error"] = "internal server error"
		}
	}
	c.AbortWithStatusJSON(status, body)
}

// bindJSON 解析请求体，失败时直接返回 validation_error
func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		respondError(c, apperr.Validation("", "invalid JSON body: %v", err))
		return false
	}
	return true
}

// pathID 解析路径参数中的 uuid
func pathID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := services.ParseID(name, c.Param(name))
	if err != nil {
		respondError(c, err)
		return uuid.Nil, false
	}
	return id, true
}

// cachedList 命中缓存直接返回，否则调用 load 并写入缓存
func cachedList(c *gin.Context, cache *utils.Cache, key string, load func() (any, error)) {
	if v := cache.Get(key); v != nil {
		c.JSON(http.StatusOK, v)
		return
	}
	v, err := load()
	if err != nil {
		respondError(c, err)
		return
	}
	cache.Set(key, v)
	c.JSON(http.StatusOK, v)
}

func invalidate(cache *utils.Cache, prefixes ...string) {
	for _, p := range prefixes {
		cache.DeletePrefix(p)
	}
}

func queryBool(c *gin.Context, name string) bool {
	switch c.Query(name) {
	case "1", "true", "yes":
		return true
	}
	return false
}
