package handlers

import (
	"intelhub/internal/services"
	"intelhub/internal/utils"
	"net/http"

	"github.com/gin-gonic/gin"
)

type RansomwareHandler struct {
	svc    *services.RansomwareService
	ingest *services.IngestService
	cache  *utils.Cache
}

func NewRansomwareHandler(svc *services.RansomwareService, ingest *services.IngestService, cache *utils.Cache) *RansomwareHandler {
	return &RansomwareHandler{svc: svc, ingest: ingest, cache: cache}
}

// groupAndEntryRequest POST /ransomware 的请求体
type groupAndEntryRequest struct {
	Group services.RansomwareGroupInput `json:"group"`
	Entry services.RansomwareEntryInput `json:"entry"`
}

// CreateGroupAndEntry POST /ransomware
func (h *RansomwareHandler) CreateGroupAndEntry(c *gin.Context) {
	var req groupAndEntryRequest
	if !bindJSON(c, &req) {
		return
	}
	res, err := h.svc.CreateGroupAndEntry(c.Request.Context(), req.Group, req.Entry)
	if err != nil {
		respondError(c, err)
		return
	}
	if res.GroupCreated {
		invalidate(h.cache, cacheGroups)
	}
	c.JSON(http.StatusCreated, res)
}

// Ingest POST /ransomware/nocodb，重复记录返回 200
func (h *RansomwareHandler) Ingest(c *gin.Context) {
	var raw services.RawRecord
	if !bindJSON(c, &raw) {
		return
	}
	res, err := h.ingest.IngestEntry(c.Request.Context(), raw)
	if err != nil {
		respondError(c, err)
		return
	}
	if res.GroupCreated {
		invalidate(h.cache, cacheGroups)
	}
	status := http.StatusOK
	if res.EntryCreated {
		status = http.StatusCreated
	}
	c.JSON(status, res)
}

func (h *RansomwareHandler) CreateGroup(c *gin.Context) {
	var in services.RansomwareGroupInput
	if !bindJSON(c, &in) {
		return
	}
	group, err := h.svc.CreateGroup(c.Request.Context(), in)
	if err != nil {
		respondError(c, err)
		return
	}
	invalidate(h.cache, cacheGroups)
	c.JSON(http.StatusCreated, group)
}

// ListGroups GET /ransomware/groups（缓存）
func (h *RansomwareHandler) ListGroups(c *gin.Context) {
	cachedList(c, h.cache, cacheGroups+"all", func() (any, error) {
		return h.svc.ListGroups(c.Request.Context())
	})
}

func (h *RansomwareHandler) GetGroup(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	group, err := h.svc.GetGroup(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, group)
}

func (h *RansomwareHandler) DeleteGroup(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.svc.DeleteGroup(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	invalidate(h.cache, cacheGroups)
	c.Status(http.StatusNoContent)
}

// ListEntries GET /ransomware/groups/:id/entries
func (h *RansomwareHandler) ListEntries(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	entries, err := h.svc.ListEntries(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, entries)
}

func (h *RansomwareHandler) GetEntry(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	entry, err := h.svc.GetEntry(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, entry)
}

func (h *RansomwareHandler) DeleteEntry(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.svc.DeleteEntry(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
