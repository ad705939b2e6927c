package processor

import (
	"bytes"

	"github.com/rwcarlsen/goexif/exif"
)

// ReadOrientation returns the EXIF orientation tag, or 1 when the image has
// no readable EXIF data.
func ReadOrientation(data []byte) int {
	x, err := exif.Decode(bytes.NewReader(data))
	if err != nil {
		return 1
	}

	tag, err := x.Get(exif.Orientation)
	if err != nil {
		return 1
	}

	value, err := tag.Int(0)
	if err != nil || value < 1 || value > 8 {
		return 1
	}

	return value
}
