// Package completion provides clients for the hosted text completion service.
package completion

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Completer sends one prompt and returns the raw completion text.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// StructuredCompleter is implemented by completers that can ask the service
// for a JSON document instead of free text.
type StructuredCompleter interface {
	Completer
	CompleteJSON(ctx context.Context, prompt string) (string, error)
}

var (
	// ErrEmptyCompletion is returned when the service answers without any text.
	ErrEmptyCompletion = errors.New("completion service returned empty text")
	// ErrUnknownProvider is returned by New for an unsupported provider name.
	ErrUnknownProvider = errors.New("unknown completion provider")
)

// StatusError is a non-2xx answer from an HTTP completion endpoint.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("completion service status %d: %s", e.StatusCode, e.Body)
}

// Temporary reports whether retrying the request may succeed.
func (e *StatusError) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= http.StatusInternalServerError
}

// IsPermanent reports whether err will not go away on retry.
func IsPermanent(err error) bool {
	if errors.Is(err, context.Canceled) {
		return true
	}
	var se *StatusError
	if errors.As(err, &se) {
		return !se.Temporary()
	}
	return false
}
