package handlers

import (
	"intelhub/internal/services"
	"intelhub/internal/utils"
	"net/http"

	"github.com/gin-gonic/gin"
)

type AdminHandler struct {
	admin  *services.AdminService
	syncer *services.FeedSyncer
	cache  *utils.Cache
}

// NewAdminHandler 同步写入新条目后清掉组织列表缓存，定时同步同样生效
func NewAdminHandler(admin *services.AdminService, syncer *services.FeedSyncer, cache *utils.Cache) *AdminHandler {
	if syncer != nil {
		syncer.OnChange(func() { invalidate(cache, cacheGroups) })
	}
	return &AdminHandler{admin: admin, syncer: syncer, cache: cache}
}

// ClearAll DELETE /admin/clear-all-tables
func (h *AdminHandler) ClearAll(c *gin.Context) {
	if err := h.admin.ClearAll(c.Request.Context()); err != nil {
		respondError(c, err)
		return
	}
	invalidate(h.cache, cacheForums, cacheGroups, cacheTelegram)
	c.JSON(http.StatusOK, gin.H{"message": "All tables cleared."})
}

// SeedMockup POST /mockup-data
func (h *AdminHandler) SeedMockup(c *gin.Context) {
	res, err := h.admin.SeedMockup(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	invalidate(h.cache, cacheForums)
	c.JSON(http.StatusCreated, gin.H{"message": "Mockup data created.", "forum": res.Forum, "post": res.Post})
}

// FeedSync POST /admin/feed-sync，数据源失败时仍返回各源统计
func (h *AdminHandler) FeedSync(c *gin.Context) {
	if h.syncer == nil || !h.syncer.Enabled() {
		c.JSON(http.StatusOK, gin.H{"reports": []services.SyncReport{}, "message": "no feed sources configured"})
		return
	}
	reports, err := h.syncer.Sync(c.Request.Context())
	status := http.StatusOK
	if err != nil {
		status = http.StatusBadGateway
	}
	c.JSON(status, gin.H{"reports": reports})
}
