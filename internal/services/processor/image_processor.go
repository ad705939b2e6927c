package processor

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/phambaophuc/upcycle-vision/internal/config"
	"github.com/phambaophuc/upcycle-vision/internal/models"
	_ "golang.org/x/image/webp"
)

const (
	FormatJPEG = "jpeg"
	FormatPNG  = "png"
	FormatGIF  = "gif"
	FormatWebP = "webp"
)

var formatMIME = map[string]string{
	FormatJPEG: "image/jpeg",
	FormatPNG:  "image/png",
	FormatGIF:  "image/gif",
	FormatWebP: "image/webp",
}

type ImageProcessor struct {
	maxFileSize  int64
	maxDimension int
	quality      int
}

func NewImageProcessor(cfg config.UploadConfig) *ImageProcessor {
	return &ImageProcessor{
		maxFileSize:  cfg.MaxFileSize,
		maxDimension: cfg.MaxDimension,
		quality:      cfg.JPEGQuality,
	}
}

// Prepared is an image re-encoded for transmission.
type Prepared struct {
	Data     []byte
	MIMEType string
	Info     *models.ImageInfo
}

// PrepareImage orients the image by its EXIF tag, fits it within the
// configured bound and flattens it to an RGB JPEG. When any step fails the
// original bytes are returned unchanged together with the error.
func (p *ImageProcessor) PrepareImage(data []byte, format string) (*Prepared, error) {
	info := &models.ImageInfo{
		Format:      format,
		FileSize:    int64(len(data)),
		Orientation: ReadOrientation(data),
	}
	original := &Prepared{Data: data, MIMEType: MIMEType(format), Info: info}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return original, fmt.Errorf("failed to decode image: %w", err)
	}

	bounds := img.Bounds()
	info.Width = bounds.Dx()
	info.Height = bounds.Dy()
	info.ColorModel = colorModelName(img)

	processed := p.fitImage(img)
	processed = flatten(processed)

	buffer := &bytes.Buffer{}
	if err := p.encodeImage(buffer, processed, FormatJPEG, p.quality); err != nil {
		info.ProcessedSize = info.FileSize
		return original, fmt.Errorf("failed to encode image: %w", err)
	}

	info.ProcessedSize = int64(buffer.Len())
	return &Prepared{
		Data:     buffer.Bytes(),
		MIMEType: formatMIME[FormatJPEG],
		Info:     info,
	}, nil
}

func (p *ImageProcessor) fitImage(img image.Image) image.Image {
	bounds := img.Bounds()
	if bounds.Dx() <= p.maxDimension && bounds.Dy() <= p.maxDimension {
		return img
	}
	return imaging.Fit(img, p.maxDimension, p.maxDimension, imaging.Lanczos)
}

// flatten composites the image onto a white background so transparent
// regions do not turn black in the JPEG.
func flatten(img image.Image) image.Image {
	bounds := img.Bounds()
	background := imaging.New(bounds.Dx(), bounds.Dy(), color.White)
	return imaging.Overlay(background, img, image.Pt(0, 0), 1.0)
}

// MIMEType maps a decoder format name to its content type.
func MIMEType(format string) string {
	if mime, ok := formatMIME[strings.ToLower(format)]; ok {
		return mime
	}
	return "application/octet-stream"
}

func colorModelName(img image.Image) string {
	switch img.(type) {
	case *image.YCbCr:
		return "YCbCr"
	case *image.RGBA, *image.RGBA64:
		return "RGBA"
	case *image.NRGBA, *image.NRGBA64:
		return "NRGBA"
	case *image.Gray, *image.Gray16:
		return "L"
	case *image.Paletted:
		return "P"
	case *image.CMYK:
		return "CMYK"
	default:
		return "unknown"
	}
}
