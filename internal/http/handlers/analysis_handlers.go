package handlers

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/phambaophuc/upcycle-vision/internal/config"
	"github.com/phambaophuc/upcycle-vision/internal/models"
	"github.com/phambaophuc/upcycle-vision/internal/services/analysis"
	"github.com/phambaophuc/upcycle-vision/internal/services/processor"
	"github.com/phambaophuc/upcycle-vision/internal/services/upload"
	"go.uber.org/zap"
)

const (
	imageParamKey  = "image"
	fileParamKey   = "file"
	imagesParamKey = "images"
)

// HealthFunc reports the status of one dependency.
type HealthFunc func(ctx context.Context) string

type AnalysisHandler struct {
	uploads   *upload.Handler
	analyzer  *analysis.Orchestrator
	configErr error
	checks    map[string]HealthFunc
	logger    *zap.Logger
	config    *config.Config
}

// NewAnalysisHandler builds the handler. configErr is the result of
// config.Validate and only affects the health report here.
func NewAnalysisHandler(
	uploads *upload.Handler,
	analyzer *analysis.Orchestrator,
	configErr error,
	checks map[string]HealthFunc,
	logger *zap.Logger,
	config *config.Config,
) *AnalysisHandler {
	if checks == nil {
		checks = map[string]HealthFunc{}
	}
	return &AnalysisHandler{
		uploads:   uploads,
		analyzer:  analyzer,
		configErr: configErr,
		checks:    checks,
		logger:    logger,
		config:    config,
	}
}

// === MAIN API ENDPOINTS ===

func (h *AnalysisHandler) Analyze(c *gin.Context) {
	header, err := h.getUploadedFile(c)
	if err != nil {
		h.respondFailure(c, http.StatusBadRequest, models.NewFailure(0, "", models.KindValidation, "missing file"))
		return
	}

	h.analyzeSingle(c, fromFileHeader(header))
}

func (h *AnalysisHandler) AnalyzeBatch(c *gin.Context) {
	files, err := h.parseMultipartFiles(c)
	if err != nil {
		h.respondError(c, http.StatusBadRequest, models.KindValidation, err.Error())
		return
	}

	entries := make([]models.Upload, len(files))
	for i, fh := range files {
		entries[i] = fromFileHeader(fh)
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.config.Server.RequestTimeout)
	defer cancel()

	batch, err := h.analyzer.AnalyzeBatch(ctx, h.uploads.Accept(entries))
	if err != nil {
		h.respondAborted(c, err)
		return
	}

	c.JSON(http.StatusOK, models.APIResponse{
		Success: true,
		Data:    batch,
	})
}

// Capture analyzes a camera frame posted as a base64 data URL.
func (h *AnalysisHandler) Capture(c *gin.Context) {
	var req models.CaptureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondFailure(c, http.StatusBadRequest, models.NewFailure(0, "", models.KindValidation, "No image data provided"))
		return
	}

	entry, err := upload.FromDataURL(req.Image)
	if err != nil {
		statusCode := http.StatusUnprocessableEntity
		if errors.Is(err, processor.ErrInvalidDataURL) {
			statusCode = http.StatusBadRequest
		}
		h.respondFailure(c, statusCode, models.NewFailure(0, "", models.KindValidation, err.Error()))
		return
	}

	h.analyzeSingle(c, entry)
}

// HealthCheck reports provider configuration and optional dependencies.
// A missing credential is degraded with 503 since no analysis can run;
// an unhealthy cache or broker is degraded with 200.
func (h *AnalysisHandler) HealthCheck(c *gin.Context) {
	services := map[string]string{
		"provider": models.HealthHealthy,
	}
	if h.configErr != nil {
		services["provider"] = models.HealthNotConfigured
	}

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()
	for _, name := range names {
		services[name] = h.checks[name](ctx)
	}

	overall := h.calculateOverallHealth(services)

	statusCode := http.StatusOK
	if h.configErr != nil {
		statusCode = http.StatusServiceUnavailable
	}

	c.JSON(statusCode, models.APIResponse{
		Success: overall == models.HealthHealthy,
		Data: models.HealthCheck{
			Status:    overall,
			Timestamp: time.Now(),
			Services:  services,
		},
	})
}
