package vision

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/phambaophuc/upcycle-vision/internal/models"
)

// Error is a provider failure tagged with its kind.
type Error struct {
	Kind       models.ErrorKind
	StatusCode int
	Message    string
	Err        error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s (status %d): %s", e.Kind, e.StatusCode, msg)
	}
	return fmt.Sprintf("%s: %s", e.Kind, msg)
}

func (e *Error) Unwrap() error { return e.Err }

// Retryable reports whether another attempt may succeed.
func (e *Error) Retryable() bool {
	switch e.Kind {
	case models.KindTimeout, models.KindNetwork, models.KindMalformedResponse:
		return true
	case models.KindProvider:
		return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
	default:
		return false
	}
}

// KindOf returns the kind carried by err, or NetworkError for untyped errors.
func KindOf(err error) models.ErrorKind {
	var verr *Error
	if errors.As(err, &verr) {
		return verr.Kind
	}
	return models.KindNetwork
}

// ClassifyTransport maps an error from the HTTP round trip.
func ClassifyTransport(err error) *Error {
	var verr *Error
	if errors.As(err, &verr) {
		return verr
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{Kind: models.KindTimeout, Message: "provider did not respond in time", Err: err}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &Error{Kind: models.KindTimeout, Message: "provider did not respond in time", Err: err}
	}

	if errors.Is(err, context.Canceled) {
		return &Error{Kind: models.KindNetwork, Message: "request cancelled", Err: err}
	}

	return &Error{Kind: models.KindNetwork, Message: "failed to reach provider", Err: err}
}

func malformed(msg string, err error) *Error {
	return &Error{Kind: models.KindMalformedResponse, Message: msg, Err: err}
}
