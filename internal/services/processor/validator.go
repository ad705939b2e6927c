package processor

import (
	"bytes"
	"errors"
	"fmt"
	"image"
)

var (
	ErrEmptyImage        = errors.New("empty image data")
	ErrFileTooLarge      = errors.New("file too large")
	ErrUnsupportedFormat = errors.New("unsupported image format")
	ErrUndecodable       = errors.New("invalid image")
)

// ValidateImage fully decodes data and returns the detected format.
func (p *ImageProcessor) ValidateImage(data []byte) (string, error) {
	if len(data) == 0 {
		return "", ErrEmptyImage
	}

	if int64(len(data)) > p.maxFileSize {
		return "", fmt.Errorf("%w: %d bytes exceeds maximum allowed size %d", ErrFileTooLarge, len(data), p.maxFileSize)
	}

	_, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		if errors.Is(err, image.ErrFormat) {
			return "", fmt.Errorf("%w: not a recognised image", ErrUnsupportedFormat)
		}
		return "", fmt.Errorf("%w: %v", ErrUndecodable, err)
	}

	if _, ok := formatMIME[format]; !ok {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}

	return format, nil
}

// MaxFileSize is the configured upper bound for a single upload.
func (p *ImageProcessor) MaxFileSize() int64 {
	return p.maxFileSize
}
