package upload

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/phambaophuc/upcycle-vision/internal/config"
	"github.com/phambaophuc/upcycle-vision/internal/models"
	"github.com/phambaophuc/upcycle-vision/internal/services/processor"
	"github.com/phambaophuc/upcycle-vision/pkg/utils"
	"go.uber.org/zap"
)

const (
	msgMissingFile     = "missing file"
	msgUnsupportedType = "unsupported file type"
)

type Handler struct {
	processor         *processor.ImageProcessor
	allowedExtensions []string
	logger            *zap.Logger
}

func NewHandler(p *processor.ImageProcessor, cfg config.UploadConfig, logger *zap.Logger) *Handler {
	return &Handler{
		processor:         p,
		allowedExtensions: cfg.AllowedExtensions,
		logger:            logger,
	}
}

// Accept validates entries in order. Every entry produces either an input or
// a validation failure at its original position.
func (h *Handler) Accept(entries []models.Upload) *models.AcceptedBatch {
	batch := &models.AcceptedBatch{
		Total:    len(entries),
		Inputs:   make([]models.ImageInput, 0, len(entries)),
		Failures: []models.AnalysisResult{},
	}

	for i, entry := range entries {
		input, failure := h.AcceptOne(i, entry)
		if failure != nil {
			batch.Failures = append(batch.Failures, *failure)
			continue
		}
		batch.Inputs = append(batch.Inputs, input)
	}

	return batch
}

// AcceptOne validates and prepares a single entry.
func (h *Handler) AcceptOne(index int, entry models.Upload) (models.ImageInput, *models.AnalysisResult) {
	reject := func(msg string) (models.ImageInput, *models.AnalysisResult) {
		h.logger.Info("Upload rejected",
			zap.Int("index", index),
			zap.String("filename", entry.Filename),
			zap.String("reason", msg),
		)
		failure := models.NewFailure(index, entry.Filename, models.KindValidation, msg)
		return models.ImageInput{}, &failure
	}

	if entry.Open == nil || (strings.TrimSpace(entry.Filename) == "" && entry.Size == 0) {
		return reject(msgMissingFile)
	}

	maxSize := h.processor.MaxFileSize()
	if entry.Size > maxSize {
		return reject(fmt.Sprintf("file too large: maximum size allowed is %dMB", maxSize/(1024*1024)))
	}

	if !utils.HasAllowedExtension(entry.Filename, h.allowedExtensions) {
		return reject(msgUnsupportedType)
	}

	data, err := readLimited(entry, maxSize)
	if err != nil {
		return reject(err.Error())
	}

	format, err := h.processor.ValidateImage(data)
	if err != nil {
		switch {
		case errors.Is(err, processor.ErrEmptyImage):
			return reject(msgMissingFile)
		case errors.Is(err, processor.ErrUnsupportedFormat):
			return reject(msgUnsupportedType)
		default:
			return reject(err.Error())
		}
	}

	prepared, err := h.processor.PrepareImage(data, format)
	if err != nil {
		h.logger.Warn("Image preparation failed, sending original bytes",
			zap.Int("index", index),
			zap.String("filename", entry.Filename),
			zap.Error(err),
		)
	}

	return models.ImageInput{
		Index:    index,
		Data:     prepared.Data,
		MIMEType: prepared.MIMEType,
		Filename: entry.Filename,
		Info:     prepared.Info,
	}, nil
}

func readLimited(entry models.Upload, maxSize int64) ([]byte, error) {
	rc, err := entry.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, maxSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	if int64(len(data)) > maxSize {
		return nil, fmt.Errorf("file too large: maximum size allowed is %dMB", maxSize/(1024*1024))
	}

	return data, nil
}

// ErrCaptureType is returned for a data URL that does not carry an image.
var ErrCaptureType = errors.New("captured data is not an image")

// FromDataURL turns a camera frame into an Upload.
func FromDataURL(dataURL string) (models.Upload, error) {
	mimeType, data, err := processor.DecodeDataURL(dataURL)
	if err != nil {
		return models.Upload{}, err
	}
	if mimeType != "" && !utils.IsValidImageType(mimeType) {
		return models.Upload{}, ErrCaptureType
	}
	if mimeType == "" {
		mimeType = "image/jpeg"
	}

	return models.Upload{
		Filename:     utils.GenerateCaptureFilename(),
		DeclaredType: mimeType,
		Size:         int64(len(data)),
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(data)), nil
		},
	}, nil
}
