package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/phambaophuc/upcycle-vision/internal/models"
	"go.uber.org/zap"
)

// ErrorHandler handles panics and errors
func ErrorHandler(logger *zap.Logger) gin.HandlerFunc {
	return gin.CustomRecovery(func(ctx *gin.Context, recovered interface{}) {
		logger.Error("Panic recovered",
			zap.Any("panic", recovered),
			zap.String("path", ctx.Request.URL.Path),
			zap.String("method", ctx.Request.Method),
			zap.String("request_id", ctx.GetString(RequestIDKey)),
		)

		ctx.AbortWithStatusJSON(http.StatusInternalServerError, models.APIResponse{
			Success: false,
			Error:   "Internal server error",
		})
	})
}

// RequireProvider rejects analysis requests while the provider credential
// is missing. Health and metrics keep working.
func RequireProvider(configErr error) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if configErr != nil {
			ctx.AbortWithStatusJSON(http.StatusServiceUnavailable, models.APIResponse{
				Success: false,
				Error:   "analysis is unavailable: " + configErr.Error(),
				Kind:    models.KindConfiguration,
			})
			return
		}
		ctx.Next()
	}
}
