package processor

import (
	"encoding/base64"
	"errors"
	"image"
	"io"
	"strings"

	"github.com/disintegration/imaging"
)

var ErrInvalidDataURL = errors.New("invalid base64 image data")

func (p *ImageProcessor) encodeImage(w io.Writer, img image.Image, format string, quality int) error {
	switch format {
	case FormatPNG:
		return imaging.Encode(w, img, imaging.PNG)
	case FormatGIF:
		return imaging.Encode(w, img, imaging.GIF)
	default:
		return imaging.Encode(w, img, imaging.JPEG, imaging.JPEGQuality(quality))
	}
}

// EncodeDataURL renders bytes as a base64 data URL.
func EncodeDataURL(mimeType string, data []byte) string {
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// DecodeDataURL accepts "data:<mime>;base64,<payload>" or a bare base64
// payload. The returned MIME type is empty when no header was present.
func DecodeDataURL(s string) (string, []byte, error) {
	s = strings.TrimSpace(s)
	mimeType := ""

	if strings.HasPrefix(s, "data:") {
		comma := strings.IndexByte(s, ',')
		if comma < 0 {
			return "", nil, ErrInvalidDataURL
		}
		header := s[len("data:"):comma]
		if !strings.HasSuffix(header, ";base64") {
			return "", nil, ErrInvalidDataURL
		}
		mimeType = strings.TrimSuffix(header, ";base64")
		s = s[comma+1:]
	}

	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return "", nil, errors.Join(ErrInvalidDataURL, err)
	}
	if len(data) == 0 {
		return "", nil, ErrInvalidDataURL
	}

	return mimeType, data, nil
}
