package queue

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"resume-feedback/internal/shared/telemetry"
)

func TestLocalQueueDeliversImmediateAndDelayed(t *testing.T) {
	t.Cleanup(telemetry.SetOutput(io.Discard))
	q := NewLocalQueue(8)
	t.Cleanup(q.Close)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var got []Message
	done := make(chan struct{})
	go q.Run(ctx, 2, func(ctx context.Context, body []byte) error {
		msg, err := DecodeMessage(body)
		if err != nil {
			return err
		}
		mu.Lock()
		got = append(got, msg)
		if len(got) == 2 {
			close(done)
		}
		mu.Unlock()
		return nil
	})

	if err := q.SendDelayed(context.Background(), Message{ResumeID: "late", Attempt: 1}, 20*time.Millisecond); err != nil {
		t.Fatalf("SendDelayed: %v", err)
	}
	if err := q.Send(context.Background(), Message{ResumeID: "now"}); err != nil {
		t.Fatalf("Send: %v", err)
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for deliveries")
	}
	mu.Lock()
	defer mu.Unlock()
	if got[0].ResumeID != "now" || got[1].ResumeID != "late" {
		t.Fatalf("order = %+v", got)
	}
}

func TestLocalQueueClosedRejectsSends(t *testing.T) {
	q := NewLocalQueue(1)
	q.Close()
	if err := q.Send(context.Background(), Message{ResumeID: "r"}); !errors.Is(err, ErrClosed) {
		t.Fatalf("Send after close = %v", err)
	}
	if err := q.SendDelayed(context.Background(), Message{ResumeID: "r"}, time.Second); !errors.Is(err, ErrClosed) {
		t.Fatalf("SendDelayed after close = %v", err)
	}
}

func TestLocalQueueSendRespectsContext(t *testing.T) {
	q := NewLocalQueue(1)
	t.Cleanup(q.Close)
	if err := q.Send(context.Background(), Message{ResumeID: "a"}); err != nil {
		t.Fatalf("first send: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := q.Send(ctx, Message{ResumeID: "b"}); !errors.Is(err, context.Canceled) {
		t.Fatalf("second send = %v", err)
	}
	if q.Pending() != 1 {
		t.Fatalf("pending = %d", q.Pending())
	}
}

func TestRequestIDContext(t *testing.T) {
	ctx := WithRequestID(context.Background(), "req-9")
	if got := RequestIDFromContext(ctx); got != "req-9" {
		t.Fatalf("got %q", got)
	}
	if got := RequestIDFromContext(context.Background()); got != "" {
		t.Fatalf("got %q", got)
	}
}
