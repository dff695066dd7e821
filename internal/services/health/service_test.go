package health

import (
	"context"
	"errors"
	"testing"
)

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) PingContext(ctx context.Context) error { return f(ctx) }

func TestStatus(t *testing.T) {
	status, ok := NewService(nil).Status(context.Background())
	if !ok || status["database"] != "memory" {
		t.Fatalf("memory: %v %v", status, ok)
	}

	status, ok = NewService(pingerFunc(func(context.Context) error { return nil })).Status(context.Background())
	if !ok || status["database"] != "ok" {
		t.Fatalf("healthy: %v %v", status, ok)
	}

	status, ok = NewService(pingerFunc(func(context.Context) error { return errors.New("down") })).Status(context.Background())
	if ok || status["ok"] != false {
		t.Fatalf("down: %v %v", status, ok)
	}
}
