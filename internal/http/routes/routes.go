package routes

import (
	"net/http"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/phambaophuc/upcycle-vision/internal/http/handlers"
	"github.com/phambaophuc/upcycle-vision/internal/http/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

type Router struct {
	analysisHandler *handlers.AnalysisHandler
	configErr       error
	logger          *zap.Logger
}

func NewRouter(
	analysisHandler *handlers.AnalysisHandler,
	configErr error,
	logger *zap.Logger,
) *Router {
	return &Router{
		analysisHandler: analysisHandler,
		configErr:       configErr,
		logger:          logger,
	}
}

func (r *Router) SetupRoutes() *gin.Engine {
	router := gin.New()

	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(r.logger))
	router.Use(middleware.ErrorHandler(r.logger))
	router.Use(middleware.CORS())
	router.Use(middleware.SecurityHeaders())
	router.Use(gzip.Gzip(gzip.DefaultCompression))

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API version 1
	v1 := router.Group("/api/v1")
	{
		v1.GET("/health", r.analysisHandler.HealthCheck)

		analyze := v1.Group("", middleware.RequireProvider(r.configErr))
		{
			multipartOnly := middleware.ValidateContentType("multipart/form-data")
			analyze.POST("/analyze", multipartOnly, r.analysisHandler.Analyze)
			analyze.POST("/analyze/batch", multipartOnly, r.analysisHandler.AnalyzeBatch)
			analyze.POST("/capture", middleware.ValidateContentType("application/json"), r.analysisHandler.Capture)
		}
	}

	router.GET("/", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{
			"status":  "OK",
			"message": "Upcycle vision analysis is running",
		})
	})

	return router
}
