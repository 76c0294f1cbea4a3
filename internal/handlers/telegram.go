package handlers

import (
	"intelhub/internal/services"
	"intelhub/internal/utils"
	"net/http"

	"github.com/gin-gonic/gin"
)

type TelegramHandler struct {
	svc   *services.TelegramService
	cache *utils.Cache
}

func NewTelegramHandler(svc *services.TelegramService, cache *utils.Cache) *TelegramHandler {
	return &TelegramHandler{svc: svc, cache: cache}
}

func (h *TelegramHandler) Create(c *gin.Context) {
	var in services.TelegramInput
	if !bindJSON(c, &in) {
		return
	}
	channel, err := h.svc.Create(c.Request.Context(), in)
	if err != nil {
		respondError(c, err)
		return
	}
	invalidate(h.cache, cacheTelegram)
	c.JSON(http.StatusCreated, channel)
}

func (h *TelegramHandler) List(c *gin.Context) {
	cachedList(c, h.cache, cacheTelegram+"all", func() (any, error) {
		return h.svc.List(c.Request.Context())
	})
}

func (h *TelegramHandler) Get(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	channel, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, channel)
}

func (h *TelegramHandler) Delete(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.svc.Delete(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	invalidate(h.cache, cacheTelegram)
	c.Status(http.StatusNoContent)
}
