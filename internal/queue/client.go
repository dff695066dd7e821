// Package queue carries analysis jobs between the API and the workers.
package queue

import (
	"context"
	"time"
)

// Client sends messages to a queue backend.
type Client interface {
	Send(ctx context.Context, msg Message) error
	// SendDelayed makes msg visible to consumers after delay.
	SendDelayed(ctx context.Context, msg Message, delay time.Duration) error
}

// Handler consumes one raw message body. A nil error acknowledges it.
type Handler func(ctx context.Context, body []byte) error

type requestIDKey struct{}

// WithRequestID attaches the originating request id to ctx.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

// RequestIDFromContext returns the id stored by WithRequestID.
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}
