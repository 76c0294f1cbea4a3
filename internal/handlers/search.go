package handlers

import (
	"intelhub/internal/search"
	"intelhub/internal/utils"
	"net/http"

	"github.com/gin-gonic/gin"
)

type SearchHandler struct {
	engine *search.Engine
}

func NewSearchHandler(engine *search.Engine) *SearchHandler {
	return &SearchHandler{engine: engine}
}

// Search GET /search?q=&entity=&filter=&limit=
// filter 可重复出现，格式 field:operator:value
func (h *SearchHandler) Search(c *gin.Context) {
	res, err := h.engine.Search(c.Request.Context(), search.Query{
		Kinds:   c.Query("entity"),
		Text:    c.Query("q"),
		Filters: c.QueryArray("filter"),
		Limit:   utils.StringToInt(c.Query("limit")),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
