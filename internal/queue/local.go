package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"resume-feedback/internal/shared/telemetry"
)

// ErrClosed is returned when sending to a closed LocalQueue.
var ErrClosed = errors.New("queue closed")

// LocalQueue is an in-process queue used in development and tests.
// Delayed messages are scheduled with time.AfterFunc.
type LocalQueue struct {
	ch chan []byte

	mu     sync.Mutex
	closed bool
	timers map[*time.Timer]struct{}
}

// NewLocalQueue returns a queue buffering up to size messages.
func NewLocalQueue(size int) *LocalQueue {
	if size <= 0 {
		size = 256
	}
	return &LocalQueue{
		ch:     make(chan []byte, size),
		timers: make(map[*time.Timer]struct{}),
	}
}

func (q *LocalQueue) Send(ctx context.Context, msg Message) error {
	payload, err := EncodeMessage(msg)
	if err != nil {
		return fmt.Errorf("encode local message: %w", err)
	}
	return q.push(ctx, payload)
}

func (q *LocalQueue) SendDelayed(ctx context.Context, msg Message, delay time.Duration) error {
	if delay <= 0 {
		return q.Send(ctx, msg)
	}
	payload, err := EncodeMessage(msg)
	if err != nil {
		return fmt.Errorf("encode local message: %w", err)
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrClosed
	}
	var timer *time.Timer
	timer = time.AfterFunc(delay, func() {
		q.mu.Lock()
		delete(q.timers, timer)
		q.mu.Unlock()
		if err := q.push(context.Background(), payload); err != nil {
			telemetry.Warn("queue.local.delayed_drop", map[string]any{"resumeId": msg.ResumeID, "error": err})
		}
	})
	q.timers[timer] = struct{}{}
	return nil
}

func (q *LocalQueue) push(ctx context.Context, payload []byte) error {
	q.mu.Lock()
	closed := q.closed
	q.mu.Unlock()
	if closed {
		return ErrClosed
	}
	select {
	case q.ch <- payload:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Pending reports how many messages are buffered.
func (q *LocalQueue) Pending() int { return len(q.ch) }

// Run consumes messages with up to concurrency handlers in flight until
// ctx is cancelled. Handler errors are logged; retries are the handler's job.
func (q *LocalQueue) Run(ctx context.Context, concurrency int, handle Handler) {
	if concurrency <= 0 {
		concurrency = 1
	}
	var wg sync.WaitGroup
	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case body := <-q.ch:
					if err := handle(ctx, body); err != nil {
						telemetry.Error("queue.local.handler_error", map[string]any{"error": err})
					}
				}
			}
		}()
	}
	wg.Wait()
}

// Close stops pending delayed deliveries and rejects new sends.
func (q *LocalQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	for t := range q.timers {
		t.Stop()
	}
	q.timers = map[*time.Timer]struct{}{}
}

var _ Client = (*LocalQueue)(nil)
