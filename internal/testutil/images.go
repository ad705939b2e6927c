// Package testutil holds fixtures shared by package tests.
package testutil

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"
)

func fill(w, h int, c color.Color) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

// JPEG returns a w×h solid JPEG.
func JPEG(t testing.TB, w, h int) []byte {
	t.Helper()

	buf := &bytes.Buffer{}
	if err := jpeg.Encode(buf, fill(w, h, color.RGBA{R: 120, G: 80, B: 40, A: 255}), &jpeg.Options{Quality: 90}); err != nil {
		t.Fatalf("encode jpeg: %v", err)
	}
	return buf.Bytes()
}

// PNG returns a w×h PNG with a fully transparent left half.
func PNG(t testing.TB, w, h int) []byte {
	t.Helper()

	img := fill(w, h, color.NRGBA{R: 0, G: 0, B: 255, A: 255})
	for y := 0; y < h; y++ {
		for x := 0; x < w/2; x++ {
			img.Set(x, y, color.NRGBA{})
		}
	}

	buf := &bytes.Buffer{}
	if err := png.Encode(buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

// Corrupted looks like a JPEG by its magic bytes but cannot be decoded.
func Corrupted() []byte {
	return []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 'J', 'F', 'I', 'F', 0x00, 0x01, 0x02}
}
