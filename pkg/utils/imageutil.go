package utils

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// IsValidImageType checks if content type is a valid image type
func IsValidImageType(contentType string) bool {
	validTypes := []string{
		"image/jpeg",
		"image/jpg",
		"image/png",
		"image/gif",
		"image/webp",
	}

	ct := strings.ToLower(contentType)
	for _, validType := range validTypes {
		if strings.Contains(ct, validType) {
			return true
		}
	}
	return false
}

// HasAllowedExtension reports whether filename ends in one of allowed.
// A filename without an extension is accepted; content decides.
func HasAllowedExtension(filename string, allowed []string) bool {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")
	if ext == "" {
		return true
	}

	for _, a := range allowed {
		if ext == a {
			return true
		}
	}
	return false
}

// GenerateCaptureFilename names a camera frame.
func GenerateCaptureFilename() string {
	return fmt.Sprintf("capture_%s.jpg", strings.ReplaceAll(uuid.New().String(), "-", ""))
}
