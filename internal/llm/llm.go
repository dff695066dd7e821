// Package llm abstracts the text-completion providers used for résumé
// analysis.
package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Request is a single-turn completion request.
type Request struct {
	Model       string
	System      string
	Prompt      string
	MaxTokens   int
	Temperature float32
	TopP        float32
}

// Client returns the model's text reply. An empty reply is not an error.
type Client interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// Func adapts a function to Client.
type Func func(ctx context.Context, req Request) (string, error)

func (f Func) Complete(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}

// ErrMissingAPIKey is returned by constructors given no credential.
var ErrMissingAPIKey = errors.New("llm api key is required")

// StatusError is a non-2xx reply from a provider.
type StatusError struct {
	Provider   string
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	return fmt.Sprintf("%s: status %d: %s", e.Provider, e.StatusCode, msg)
}

// RateLimited reports whether the provider throttled the call.
func (e *StatusError) RateLimited() bool {
	return e.StatusCode == http.StatusTooManyRequests
}

// Timeout reports whether the provider reported a gateway timeout.
func (e *StatusError) Timeout() bool {
	return e.StatusCode == http.StatusGatewayTimeout || e.StatusCode == http.StatusRequestTimeout
}
