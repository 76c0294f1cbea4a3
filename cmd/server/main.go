package main

import (
	"context"
	"errors"
	"intelhub/internal/config"
	"intelhub/internal/db"
	"intelhub/internal/logging"
	"intelhub/internal/middleware"
	"intelhub/internal/router"
	"intelhub/internal/search"
	"intelhub/internal/services"
	"intelhub/internal/telemetry"
	"intelhub/internal/utils"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/robfig/cron/v3"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logging.Init("intelhub", cfg.Log.Level, cfg.Log.JSON)
	shutdownMetrics := telemetry.InitMetrics(context.Background(), "intelhub", cfg.Metrics)

	conn, err := db.Open(cfg.Database, cfg.Log.Level)
	if err != nil {
		slog.Error("database init failed", "error", err)
		os.Exit(1)
	}

	// Services
	ingest := services.NewIngestService(conn)
	var summarizer services.Summarizer
	if s := services.NewChatSummarizer(cfg.LLM); s != nil {
		summarizer = s
	} else {
		slog.Warn("LLM_BASE_URL not set, AI summaries disabled")
	}

	var feeds []services.FeedSource
	if cfg.Feed.NocoDBURL != "" {
		feeds = append(feeds, services.NewNocoDBSource(cfg.Feed.NocoDBURL, cfg.Feed.NocoDBToken))
	}
	if cfg.Feed.RSSURL != "" {
		feeds = append(feeds, services.NewRSSSource(cfg.Feed.RSSURL))
	}
	syncer := services.NewFeedSyncer(ingest, feeds...)

	deps := router.Deps{
		Sources:    services.NewSourceService(conn),
		Forums:     services.NewForumService(conn),
		Posts:      services.NewPostService(conn),
		Ransomware: services.NewRansomwareService(conn),
		Ingest:     ingest,
		Telegram:   services.NewTelegramService(conn),
		AI:         services.NewAIService(conn, summarizer),
		Admin:      services.NewAdminService(conn),
		Syncer:     syncer,
		Search:     search.NewEngine(conn, cfg.Search.Limit),
		Cache:      utils.NewCache(256, cfg.CacheTTL),
	}

	if cfg.Seed {
		if _, err := deps.Admin.SeedMockup(context.Background()); err != nil {
			slog.Error("seed mockup data failed", "error", err)
		}
	}

	// 定时同步外部 feed
	scheduler := cron.New()
	if cfg.Feed.Schedule != "" && syncer.Enabled() {
		if _, err := syncer.Schedule(scheduler, cfg.Feed.Schedule, 10*time.Minute); err != nil {
			slog.Error("feed sync schedule rejected", "error", err)
			os.Exit(1)
		}
	}
	scheduler.Start()

	// Initialize Gin
	gin.SetMode(cfg.GinMode)
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestID(), middleware.RequestLogger())
	router.RegisterRoutes(r, deps)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		slog.Info("intelhub server starting", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("http shutdown failed", "error", err)
	}
	<-scheduler.Stop().Done()
	if err := shutdownMetrics(shutdownCtx); err != nil {
		slog.Error("metrics shutdown failed", "error", err)
	}
	if sqlDB, err := conn.DB(); err == nil {
		sqlDB.Close()
	}
}
