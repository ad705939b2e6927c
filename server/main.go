package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/phambaophuc/upcycle-vision/internal/config"
	"github.com/phambaophuc/upcycle-vision/internal/http/handlers"
	"github.com/phambaophuc/upcycle-vision/internal/http/routes"
	"github.com/phambaophuc/upcycle-vision/internal/logger"
	"github.com/phambaophuc/upcycle-vision/internal/metrics"
	"github.com/phambaophuc/upcycle-vision/internal/models"
	"github.com/phambaophuc/upcycle-vision/internal/services/analysis"
	"github.com/phambaophuc/upcycle-vision/internal/services/cache"
	"github.com/phambaophuc/upcycle-vision/internal/services/events"
	"github.com/phambaophuc/upcycle-vision/internal/services/processor"
	"github.com/phambaophuc/upcycle-vision/internal/services/upload"
	"github.com/phambaophuc/upcycle-vision/internal/services/vision"
	"go.uber.org/zap"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration: ", err)
	}

	// Initialize logger
	zlog, err := logger.New(cfg.Log)
	if err != nil {
		log.Fatal("Failed to initialize logger: ", err)
	}
	defer zlog.Sync()

	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}

	configErr := cfg.Validate()
	if configErr != nil {
		zlog.Error("Analysis disabled, running in degraded mode", zap.Error(configErr))
	}

	metrics.Register()

	// Initialize services
	checks := map[string]handlers.HealthFunc{
		"redis":    notConfigured,
		"rabbitmq": notConfigured,
	}
	var opts []analysis.Option

	if cfg.Redis.Enabled() {
		redisCache := cache.NewRedisCache(cfg.Redis, zlog)
		defer redisCache.Close()
		opts = append(opts, analysis.WithCache(redisCache))
		checks["redis"] = redisCache.HealthCheck
	}

	if cfg.RabbitMQ.Enabled() {
		publisher, err := events.NewPublisher(cfg.RabbitMQ, zlog)
		if err != nil {
			zlog.Warn("Failed to initialize event publisher", zap.Error(err))
			// Continue without events for basic functionality
			checks["rabbitmq"] = func(context.Context) string {
				return models.HealthUnhealthy + ": " + err.Error()
			}
		} else {
			defer publisher.Close()
			opts = append(opts, analysis.WithPublisher(publisher))
			checks["rabbitmq"] = func(context.Context) string { return publisher.HealthCheck() }
		}
	}

	provider := vision.NewClient(cfg.OpenAI, cfg.Analysis, zlog)
	orchestrator := analysis.NewOrchestrator(provider, cfg.Analysis, zlog, opts...)
	uploads := upload.NewHandler(processor.NewImageProcessor(cfg.Upload), cfg.Upload, zlog)

	// Initialize handlers
	analysisHandler := handlers.NewAnalysisHandler(uploads, orchestrator, configErr, checks, zlog, cfg)

	router := routes.NewRouter(analysisHandler, configErr, zlog)

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		Handler:      router.SetupRoutes(),
	}

	// Start server
	go func() {
		zlog.Info("Starting server",
			zap.String("addr", server.Addr),
			zap.String("model", provider.Model()),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zlog.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zlog.Info("Shutting down server...")

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		zlog.Error("Server forced to shutdown", zap.Error(err))
	}

	zlog.Info("Server exited")
}

func notConfigured(context.Context) string {
	return models.HealthNotConfigured
}
