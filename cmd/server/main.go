package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"gemini-extract/internal/config"
	"gemini-extract/internal/handler"
	"gemini-extract/internal/httpserver"
	"gemini-extract/internal/mailmsg"
	"gemini-extract/internal/normalizer"
	"gemini-extract/internal/service"
	"gemini-extract/pkg/logger"
	"gemini-extract/pkg/redis"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := logger.NewLogger(cfg.Log.Level, cfg.Log.Development)
	defer logger.Sync()

	if !cfg.Log.Development {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx := context.Background()

	geminiClient, err := service.NewGeminiClient(ctx, cfg.Gemini, cfg.Breaker, logger)
	if err != nil {
		logger.Fatal("gemini client init failed", zap.Error(err))
	}

	// optional reply cache
	var cache service.ReplyCache
	var rdb *goredis.Client
	if cfg.CacheEnabled() {
		rdb, err = redis.Connect(ctx, cfg.Redis)
		if err != nil {
			logger.Warn("redis unavailable, reply cache disabled", zap.Error(err))
		} else {
			cache = service.NewRedisReplyCache(rdb, cfg.Cache.TTL, cfg.Cache.Prefix)
			logger.Info("reply cache enabled", zap.String("redis", cfg.Redis.Addr), zap.Duration("ttl", cfg.Cache.TTL))
		}
	}

	norm := normalizer.New(mailmsg.NewDecoder(), normalizer.PolicyFromConfig(cfg.TabularOutput), logger)
	generateService := service.NewGenerateService(norm, geminiClient, cache, service.Instructions{
		System:     cfg.Prompts.System,
		Extraction: cfg.Prompts.Extraction,
	}, logger)

	generateHandler := handler.NewGenerateHandler(generateService, cfg.Server.MaxUploadBytes, logger)
	router := httpserver.NewRouter(generateHandler, geminiClient, logger)
	srv := router.Server(cfg.Server.Port)

	go func() {
		logger.Info("Starting server",
			zap.String("port", cfg.Server.Port),
			zap.String("model", geminiClient.Model()),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server start failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", zap.Error(err))
	}

	if rdb != nil {
		logger.Info("Closing Redis connection...")
		_ = rdb.Close()
	}

	logger.Info("server shutdown complete")
}
