package router

import (
	"intelhub/internal/handlers"
	"intelhub/internal/search"
	"intelhub/internal/services"
	"intelhub/internal/utils"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Deps 路由需要的全部服务
type Deps struct {
	Sources    *services.SourceService
	Forums     *services.ForumService
	Posts      *services.PostService
	Ransomware *services.RansomwareService
	Ingest     *services.IngestService
	Telegram   *services.TelegramService
	AI         *services.AIService
	Admin      *services.AdminService
	Syncer     *services.FeedSyncer
	Search     *search.Engine
	Cache      *utils.Cache
}

func RegisterRoutes(r *gin.Engine, d Deps) {
	// Handlers
	sourceHandler := handlers.NewSourceHandler(d.Sources, d.Cache)
	forumHandler := handlers.NewForumHandler(d.Forums, d.Posts, d.Cache)
	ransomwareHandler := handlers.NewRansomwareHandler(d.Ransomware, d.Ingest, d.Cache)
	telegramHandler := handlers.NewTelegramHandler(d.Telegram, d.Cache)
	searchHandler := handlers.NewSearchHandler(d.Search)
	aiHandler := handlers.NewAIHandler(d.AI)
	adminHandler := handlers.NewAdminHandler(d.Admin, d.Syncer, d.Cache)

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// 通用来源
	sources := r.Group("/sources")
	{
		sources.POST("", sourceHandler.Create)
		sources.GET("", sourceHandler.List)
		sources.GET("/:id", sourceHandler.Get)
		sources.PATCH("/:id", sourceHandler.Update)
		sources.DELETE("/:id", sourceHandler.Delete)
	}

	// 论坛与帖子
	forums := r.Group("/forums")
	{
		forums.POST("", forumHandler.Create)
		forums.GET("", forumHandler.List)
		forums.GET("/:id", forumHandler.Get)
		forums.PATCH("/:id", forumHandler.Update)
		forums.DELETE("/:id", forumHandler.Delete)
		forums.GET("/:id/posts", forumHandler.ListPosts)
		forums.DELETE("/:id/posts", forumHandler.DeletePosts)
	}
	posts := r.Group("/forum-posts")
	{
		posts.POST("", forumHandler.CreatePost)
		posts.GET("/:id", forumHandler.GetPost)
		posts.PATCH("/:id", forumHandler.UpdatePost)
		posts.DELETE("/:id", forumHandler.DeletePost)
	}

	// 勒索组织与泄露条目
	ransomware := r.Group("/ransomware")
	{
		ransomware.POST("", ransomwareHandler.CreateGroupAndEntry)
		ransomware.POST("/nocodb", ransomwareHandler.Ingest) // feed 入库，幂等
		ransomware.POST("/groups", ransomwareHandler.CreateGroup)
		ransomware.GET("/groups", ransomwareHandler.ListGroups)
		ransomware.GET("/groups/:id", ransomwareHandler.GetGroup)
		ransomware.DELETE("/groups/:id", ransomwareHandler.DeleteGroup)
		ransomware.GET("/groups/:id/entries", ransomwareHandler.ListEntries)
		ransomware.GET("/entries/:id", ransomwareHandler.GetEntry)
		ransomware.DELETE("/entries/:id", ransomwareHandler.DeleteEntry)
	}

	telegram := r.Group("/telegram")
	{
		telegram.POST("", telegramHandler.Create)
		telegram.GET("", telegramHandler.List)
		telegram.GET("/:id", telegramHandler.Get)
		telegram.DELETE("/:id", telegramHandler.Delete)
	}

	r.GET("/search", searchHandler.Search)

	ai := r.Group("/ai")
	{
		ai.POST("/summarize-post/:id", aiHandler.SummarizePost)
		ai.POST("/summarize-entry/:id", aiHandler.SummarizeEntry)
	}

	// 维护接口
	r.DELETE("/admin/clear-all-tables", adminHandler.ClearAll)
	r.POST("/admin/feed-sync", adminHandler.FeedSync)
	r.POST("/mockup-data", adminHandler.SeedMockup)
}
