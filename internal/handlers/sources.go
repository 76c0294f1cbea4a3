package handlers

import (
	"intelhub/internal/services"
	"intelhub/internal/utils"
	"net/http"

	"github.com/gin-gonic/gin"
)

type SourceHandler struct {
	svc   *services.SourceService
	cache *utils.Cache
}

func NewSourceHandler(svc *services.SourceService, cache *utils.Cache) *SourceHandler {
	return &SourceHandler{svc: svc, cache: cache}
}

// Create POST /sources
func (h *SourceHandler) Create(c *gin.Context) {
	var in services.SourceInput
	if !bindJSON(c, &in) {
		return
	}
	src, err := h.svc.Create(c.Request.Context(), in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, src)
}

// List GET /sources?type=
func (h *SourceHandler) List(c *gin.Context) {
	list, err := h.svc.List(c.Request.Context(), c.Query("type"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *SourceHandler) Get(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	src, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, src)
}

// Update PATCH /sources/:id
func (h *SourceHandler) Update(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var patch services.SourcePatch
	if !bindJSON(c, &patch) {
		return
	}
	src, err := h.svc.Update(c.Request.Context(), id, patch)
	if err != nil {
		respondError(c, err)
		return
	}
	// 基础字段出现在所有子类型的列表里
	invalidate(h.cache, cacheForums, cacheGroups, cacheTelegram)
	c.JSON(http.StatusOK, src)
}

func (h *SourceHandler) Delete(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.svc.Delete(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	invalidate(h.cache, cacheForums, cacheGroups, cacheTelegram)
	c.Status(http.StatusNoContent)
}
