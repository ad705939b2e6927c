package middleware

import (
	"mime"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/phambaophuc/upcycle-vision/internal/models"
)

// ValidateContentType rejects request bodies whose media type is not one of
// allowed.
func ValidateContentType(allowed ...string) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		mediaType, _, err := mime.ParseMediaType(ctx.GetHeader("Content-Type"))
		if err == nil {
			for _, a := range allowed {
				if mediaType == a {
					ctx.Next()
					return
				}
			}
		}

		ctx.AbortWithStatusJSON(http.StatusUnsupportedMediaType, models.APIResponse{
			Success: false,
			Error:   "unsupported content type, expected " + allowed[0],
			Kind:    models.KindValidation,
		})
	}
}
