package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/phambaophuc/upcycle-vision/internal/models"
	"go.uber.org/zap"
)

// === REQUEST PARSING ===

func (h *AnalysisHandler) parseMultipartFiles(c *gin.Context) ([]*multipart.FileHeader, error) {
	if err := c.Request.ParseMultipartForm(h.config.Upload.MaxFileSize); err != nil {
		return nil, fmt.Errorf("failed to parse form data: %v", err)
	}

	files := c.Request.MultipartForm.File[imagesParamKey]
	if limit := h.config.Analysis.MaxBatchSize; len(files) > limit {
		return nil, fmt.Errorf("too many images: maximum %d per request, got %d", limit, len(files))
	}

	return files, nil
}

// === FILE OPERATIONS ===

func (h *AnalysisHandler) getUploadedFile(c *gin.Context) (*multipart.FileHeader, error) {
	header, err := c.FormFile(imageParamKey)
	if err == nil {
		return header, nil
	}
	return c.FormFile(fileParamKey)
}

func fromFileHeader(fh *multipart.FileHeader) models.Upload {
	return models.Upload{
		Filename:     fh.Filename,
		DeclaredType: fh.Header.Get("Content-Type"),
		Size:         fh.Size,
		Open: func() (io.ReadCloser, error) {
			return fh.Open()
		},
	}
}

// === PROCESSING LOGIC ===

func (h *AnalysisHandler) analyzeSingle(c *gin.Context, entry models.Upload) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.config.Server.RequestTimeout)
	defer cancel()

	batch, err := h.analyzer.AnalyzeBatch(ctx, h.uploads.Accept([]models.Upload{entry}))
	if err != nil {
		h.respondAborted(c, err)
		return
	}

	result := batch.Results[0]
	if !result.Succeeded() {
		h.respondFailure(c, statusFor(result.Error.Kind), result)
		return
	}

	c.JSON(http.StatusOK, models.APIResponse{
		Success: true,
		Data:    result,
	})
}

// === RESPONSE HANDLING ===

func (h *AnalysisHandler) respondError(c *gin.Context, statusCode int, kind models.ErrorKind, message string) {
	c.JSON(statusCode, models.APIResponse{
		Success: false,
		Error:   message,
		Kind:    kind,
	})
}

func (h *AnalysisHandler) respondFailure(c *gin.Context, statusCode int, result models.AnalysisResult) {
	c.JSON(statusCode, models.APIResponse{
		Success: false,
		Data:    result,
		Error:   result.Error.Message,
		Kind:    result.Error.Kind,
	})
}

// respondAborted handles a request whose deadline or client went away before
// the batch finished. No partial result is returned.
func (h *AnalysisHandler) respondAborted(c *gin.Context, err error) {
	h.logger.Warn("Analysis request aborted",
		zap.String("path", c.Request.URL.Path),
		zap.Error(err),
	)

	if errors.Is(err, context.DeadlineExceeded) {
		h.respondError(c, http.StatusGatewayTimeout, models.KindTimeout, "request timed out")
		return
	}
	h.respondError(c, http.StatusInternalServerError, "", "request aborted: "+err.Error())
}

func statusFor(kind models.ErrorKind) int {
	switch kind {
	case models.KindValidation:
		return http.StatusUnprocessableEntity
	case models.KindTimeout:
		return http.StatusGatewayTimeout
	case models.KindProvider, models.KindNetwork, models.KindMalformedResponse:
		return http.StatusBadGateway
	case models.KindConfiguration:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// === UTILITY METHODS ===

func (h *AnalysisHandler) calculateOverallHealth(services map[string]string) string {
	if h.configErr != nil {
		return models.HealthDegraded
	}
	for _, status := range services {
		if status != models.HealthHealthy && status != models.HealthNotConfigured {
			return models.HealthDegraded
		}
	}
	return models.HealthHealthy
}
