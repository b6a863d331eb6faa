// Package main runs the live poll HTTP server with WebSocket and graceful shutdown.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/aura-webinar/livepoll/config"
	"github.com/aura-webinar/livepoll/internal/chat"
	"github.com/aura-webinar/livepoll/internal/classroom"
	"github.com/aura-webinar/livepoll/internal/middleware"
	"github.com/aura-webinar/livepoll/internal/models"
	"github.com/aura-webinar/livepoll/internal/polls"
	"github.com/aura-webinar/livepoll/internal/realtime"
	"github.com/aura-webinar/livepoll/internal/store"
	"github.com/aura-webinar/livepoll/pkg/queue"
	"github.com/aura-webinar/livepoll/pkg/redis"
	"github.com/aura-webinar/livepoll/pkg/response"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	gateway, err := store.Open(ctx, store.Options{
		Driver:      cfg.Store.Driver,
		SQLitePath:  cfg.Store.SQLitePath,
		PostgresDSN: cfg.Database.DSN(),
	}, logger)
	if err != nil {
		logger.Fatal("store", zap.Error(err))
	}
	defer gateway.Close()

	// Redis is optional: it carries the event mirror and the archive queue.
	var mirror realtime.Publisher
	var jobQueue *queue.Queue
	if cfg.Redis.Enabled() {
		rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
		if err != nil {
			logger.Fatal("redis", zap.Error(err))
		}
		defer rdb.Close()
		mirror = realtime.NewRedisPubSub(rdb.Client, cfg.Redis.EventChannel)
		if cfg.ArchiveEnabled() {
			jobQueue = queue.NewQueue(rdb.Client, logger)
		}
	}

	hub := realtime.NewHub(logger, mirror)
	session := classroom.New(gateway, hub, classroom.Config{
		PersistTimeout:   cfg.Class.PersistTimeout,
		DefaultTimeLimit: cfg.Class.DefaultTimeLimit,
		PastPollsLimit:   cfg.Class.PastPollsLimit,
		Chat: chat.Config{
			MaxLength:    cfg.Class.ChatMaxLength,
			HistoryLimit: cfg.Class.ChatHistoryLimit,
			MaxHistory:   polls.MaxListLimit,
		},
	}, logger)
	if err := session.Restore(ctx); err != nil {
		logger.Warn("restore active poll", zap.Error(err))
	}
	if jobQueue != nil {
		session.SetPollClosedHandler(func(p *models.Poll) {
			enqueueArchive(jobQueue, p, logger)
		})
		logger.Info("poll archiving enabled", zap.String("bucket", cfg.AWS.ArchiveBucket))
	}

	pollHandler := polls.NewHandler(gateway)
	chatHandler := chat.NewHandler(gateway, polls.MaxListLimit)
	upgrader := realtime.NewUpgrader(cfg.Server.AllowedOrigins())

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))

	// Health
	router.GET("/health", func(c *gin.Context) { response.OK(c, gin.H{"status": "ok", "clients": hub.Count()}) })

	api := router.Group("/api")
	{
		api.GET("/polls", pollHandler.List)
		api.GET("/polls/:id", pollHandler.GetByID)
		api.GET("/messages", chatHandler.List)
	}

	router.GET("/ws", realtime.ServeWs(hub, session, upgrader, logger))

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port), zap.String("store", cfg.Store.Driver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

func enqueueArchive(q *queue.Queue, p *models.Poll, logger *zap.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	payload := queue.ArchivePayload{PollID: p.ID}
	if p.ClosedAt != nil {
		payload.ClosedAt = *p.ClosedAt
	}
	if err := q.EnqueueArchive(ctx, payload); err != nil {
		logger.Error("enqueue poll archive", zap.String("poll_id", p.ID.String()), zap.Error(err))
	}
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
