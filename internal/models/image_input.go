package models

import "io"

// Upload is one raw entry as received from the client.
type Upload struct {
	Filename     string
	DeclaredType string
	Size         int64
	Open         func() (io.ReadCloser, error)
}

// ImageInput is a validated image ready to be sent to the provider.
// Index is the entry's position in the submitted batch.
type ImageInput struct {
	Index    int
	Data     []byte
	MIMEType string
	Filename string
	Info     *ImageInfo
}

type ImageInfo struct {
	Width         int    `json:"width"`
	Height        int    `json:"height"`
	Format        string `json:"format"`
	ColorModel    string `json:"color_model"`
	FileSize      int64  `json:"file_size"`
	ProcessedSize int64  `json:"processed_size"`
	Orientation   int    `json:"orientation"`
}
