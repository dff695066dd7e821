package resumes

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"resume-feedback/internal/queue"
	"resume-feedback/internal/shared/storage/object/local"
	"resume-feedback/internal/shared/telemetry"
)

type recordingQueue struct {
	mu   sync.Mutex
	sent []queue.Message
	err  error
}

func (q *recordingQueue) Send(ctx context.Context, msg queue.Message) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	q.sent = append(q.sent, msg)
	return nil
}

func (q *recordingQueue) SendDelayed(ctx context.Context, msg queue.Message, delay time.Duration) error {
	return q.Send(ctx, msg)
}

func (q *recordingQueue) messages() []queue.Message {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]queue.Message(nil), q.sent...)
}

// failingDeleteStore wraps a store whose Delete always fails.
type failingDeleteStore struct {
	*local.Store
}

func (s failingDeleteStore) Delete(ctx context.Context, key string) error {
	return errors.New("file is locked")
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

func newTestService(t *testing.T) (*Service, *MemoryRepo, *recordingQueue) {
	t.Helper()
	t.Cleanup(telemetry.SetOutput(io.Discard))
	repo := NewMemoryRepo()
	q := &recordingQueue{}
	c := &clock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	svc := &Service{
		Repo:  repo,
		Store: local.New(t.TempDir()),
		Queue: q,
		Now:   c.Now,
	}
	return svc, repo, q
}

func pdfBytes(n int) []byte {
	head := []byte("%PDF-1.4\n")
	if n <= len(head) {
		return head[:n]
	}
	return append(head, bytes.Repeat([]byte("x"), n-len(head))...)
}
