package handlers

import (
	"intelhub/internal/services"
	"intelhub/internal/utils"
	"net/http"

	"github.com/gin-gonic/gin"
)

// ForumHandler 论坛与帖子
type ForumHandler struct {
	forums *services.ForumService
	posts  *services.PostService
	cache  *utils.Cache
}

func NewForumHandler(forums *services.ForumService, posts *services.PostService, cache *utils.Cache) *ForumHandler {
	return &ForumHandler{forums: forums, posts: posts, cache: cache}
}

func (h *ForumHandler) Create(c *gin.Context) {
	var in services.ForumInput
	if !bindJSON(c, &in) {
		return
	}
	forum, err := h.forums.Create(c.Request.Context(), in)
	if err != nil {
		respondError(c, err)
		return
	}
	invalidate(h.cache, cacheForums)
	c.JSON(http.StatusCreated, forum)
}

// List GET /forums（缓存）
func (h *ForumHandler) List(c *gin.Context) {
	cachedList(c, h.cache, cacheForums+"all", func() (any, error) {
		return h.forums.List(c.Request.Context())
	})
}

func (h *ForumHandler) Get(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	forum, err := h.forums.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, forum)
}

func (h *ForumHandler) Update(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var patch services.ForumPatch
	if !bindJSON(c, &patch) {
		return
	}
	forum, err := h.forums.Update(c.Request.Context(), id, patch)
	if err != nil {
		respondError(c, err)
		return
	}
	invalidate(h.cache, cacheForums)
	c.JSON(http.StatusOK, forum)
}

func (h *ForumHandler) Delete(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.forums.Delete(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	invalidate(h.cache, cacheForums)
	c.Status(http.StatusNoContent)
}

// ListPosts GET /forums/:id/posts
func (h *ForumHandler) ListPosts(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	posts, err := h.posts.ListByForum(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, posts)
}

// DeletePosts DELETE /forums/:id/posts
func (h *ForumHandler) DeletePosts(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	n, err := h.posts.DeleteByForum(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": n})
}

// CreatePost POST /forum-posts
func (h *ForumHandler) CreatePost(c *gin.Context) {
	var in services.ForumPostInput
	if !bindJSON(c, &in) {
		return
	}
	post, err := h.posts.Create(c.Request.Context(), in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, post)
}

func (h *ForumHandler) GetPost(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	post, err := h.posts.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, post)
}

func (h *ForumHandler) UpdatePost(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var patch services.PostPatch
	if !bindJSON(c, &patch) {
		return
	}
	post, err := h.posts.Update(c.Request.Context(), id, patch)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, post)
}

func (h *ForumHandler) DeletePost(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.posts.Delete(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
