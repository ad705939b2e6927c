package models

type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Kind    ErrorKind   `json:"kind,omitempty"`
}

type CaptureRequest struct {
	Image string `json:"image" binding:"required"`
}
