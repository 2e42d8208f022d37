package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/weiawesome/wes-io-collab/completion-service/internal/cache"
	"github.com/weiawesome/wes-io-collab/completion-service/internal/config"
	"github.com/weiawesome/wes-io-collab/completion-service/internal/generator"
	"github.com/weiawesome/wes-io-collab/completion-service/internal/handler"
	"github.com/weiawesome/wes-io-collab/completion-service/internal/service"
	pkglog "github.com/weiawesome/wes-io-collab/pkg/log"
	"github.com/weiawesome/wes-io-collab/pkg/response"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		l := pkglog.L()
		l.Fatal().Err(err).Msg("failed to load config")
	}

	// Initialize structured logger
	pkglog.Init(pkglog.Config{
		Level:       cfg.Log.Level,
		Pretty:      cfg.Log.Level == "debug",
		ServiceName: "completion-service",
	})
	logger := pkglog.L()

	// Initialize Gemini generator
	gen, err := generator.NewGeminiGenerator(context.Background(), generator.GeminiConfig{
		APIKey: cfg.Gemini.APIKey,
		Model:  cfg.Gemini.Model,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create gemini generator")
	}
	logger.Info().Str("model", cfg.Gemini.Model).Msg("gemini generator ready")

	// Initialize Redis cache; completions still work without it
	var completionCache cache.CompletionCache = cache.NopCache{}
	if cfg.Cache.Enabled {
		rc, err := cache.NewRedisCompletionCache(cache.RedisConfig{
			Address:  cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			logger.Warn().Err(err).Str("addr", cfg.Redis.Address).Msg("redis unavailable, completion cache disabled")
		} else {
			completionCache = rc
			logger.Info().Str("addr", cfg.Redis.Address).Dur("ttl", cfg.Cache.TTL).Msg("redis connected")
		}
	}
	defer completionCache.Close()

	// Initialize service
	completionService := service.NewCompletionService(gen, completionCache, service.Config{
		CachePrefix:     cfg.Cache.Prefix,
		CacheTTL:        cfg.Cache.TTL,
		GenerateTimeout: cfg.Gemini.Timeout,
	})

	// Initialize HTTP handler
	httpHandler := handler.NewHandler(completionService)

	// Setup Gin router
	if cfg.Log.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.CustomRecovery(func(c *gin.Context, recovered any) {
		l := pkglog.Ctx(c.Request.Context())
		l.Error().Interface("panic", recovered).Msg("handler panic")
		response.InternalError(c, "internal error")
	}))
	r.Use(handler.CORS())
	r.Use(pkglog.GinMiddleware(logger))

	// Health check
	r.GET("/health", func(c *gin.Context) {
		response.Success(c, gin.H{"status": "ok"})
	})

	// Register routes
	httpHandler.RegisterRoutes(r)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:        addr,
		Handler:     r,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info().Str("addr", addr).Msg("completion-service starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down completion-service")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server forced to shutdown")
	}

	logger.Info().Msg("completion-service stopped")
}
