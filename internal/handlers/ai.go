package handlers

import (
	"intelhub/internal/services"
	"net/http"

	"github.com/gin-gonic/gin"
)

type AIHandler struct {
	svc *services.AIService
}

func NewAIHandler(svc *services.AIService) *AIHandler {
	return &AIHandler{svc: svc}
}

// SummarizePost POST /ai/summarize-post/:id?force=1
func (h *AIHandler) SummarizePost(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	sum, err := h.svc.SummarizePost(c.Request.Context(), id, queryBool(c, "force"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, sum)
}

// SummarizeEntry POST /ai/summarize-entry/:id?force=1
func (h *AIHandler) SummarizeEntry(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	sum, err := h.svc.SummarizeEntry(c.Request.Context(), id, queryBool(c, "force"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, sum)
}
