package workerproc

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"resume-feedback/internal/jobs"
	"resume-feedback/internal/queue"
	"resume-feedback/internal/shared/telemetry"
)

type scriptedProcessor struct {
	results []jobs.Result
	calls   []int
	ids     []string
}

func (p *scriptedProcessor) Process(ctx context.Context, resumeID string, attempt int) jobs.Result {
	p.calls = append(p.calls, attempt)
	p.ids = append(p.ids, resumeID)
	r := p.results[0]
	p.results = p.results[1:]
	return r
}

type delayedSend struct {
	msg   queue.Message
	delay time.Duration
}

type fakeQueue struct {
	sent []delayedSend
	err  error
}

func (q *fakeQueue) Send(ctx context.Context, msg queue.Message) error {
	return q.SendDelayed(ctx, msg, 0)
}

func (q *fakeQueue) SendDelayed(ctx context.Context, msg queue.Message, delay time.Duration) error {
	if q.err != nil {
		return q.err
	}
	q.sent = append(q.sent, delayedSend{msg: msg, delay: delay})
	return nil
}

func TestParseMessageErrors(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"empty", "  "},
		{"garbage", "{not json"},
		{"missing id", `{"requestId":"r"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, meta, err := ParseMessage([]byte(tc.body))
			if err == nil || !IsInvalid(err) {
				t.Fatalf("err = %v", err)
			}
			if meta.BodyLen != len(tc.body) {
				t.Fatalf("meta = %+v", meta)
			}
		})
	}
}

func TestHandleMessageDropsInvalid(t *testing.T) {
	t.Cleanup(telemetry.SetOutput(io.Discard))
	proc := &scriptedProcessor{}
	h := &Handler{Processor: proc, Queue: &fakeQueue{}}
	if err := h.HandleMessage(context.Background(), []byte("nope")); err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}
	if len(proc.calls) != 0 {
		t.Fatal("processor called for invalid payload")
	}
}

func TestHandleMessageSchedulesRetry(t *testing.T) {
	t.Cleanup(telemetry.SetOutput(io.Discard))
	proc := &scriptedProcessor{results: []jobs.Result{jobs.Retry(errors.New("db down"), 2, 4*time.Second)}}
	q := &fakeQueue{}
	h := &Handler{Processor: proc, Queue: q}

	if err := h.HandleMessage(context.Background(), []byte(`{"resumeId":"r-1","requestId":"req","attempt":1}`)); err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}
	if len(proc.calls) != 1 || proc.calls[0] != 1 || proc.ids[0] != "r-1" {
		t.Fatalf("calls = %v %v", proc.calls, proc.ids)
	}
	if len(q.sent) != 1 {
		t.Fatalf("sent = %+v", q.sent)
	}
	got := q.sent[0]
	if got.msg.ResumeID != "r-1" || got.msg.Attempt != 2 || got.msg.RequestID != "req" || got.delay != 4*time.Second {
		t.Fatalf("retry = %+v", got)
	}
}

func TestHandleMessageTerminalAndSuccessAck(t *testing.T) {
	t.Cleanup(telemetry.SetOutput(io.Discard))
	proc := &scriptedProcessor{results: []jobs.Result{jobs.Done(), jobs.Terminal(errors.New("gave up"))}}
	q := &fakeQueue{}
	h := &Handler{Processor: proc, Queue: q}
	for i := 0; i < 2; i++ {
		if err := h.HandleMessage(context.Background(), []byte(`{"resumeId":"r-1"}`)); err != nil {
			t.Fatalf("HandleMessage: %v", err)
		}
	}
	if len(q.sent) != 0 {
		t.Fatalf("unexpected retries: %+v", q.sent)
	}
}

func TestHandleMessageRequeueWhenRetrySendFails(t *testing.T) {
	t.Cleanup(telemetry.SetOutput(io.Discard))
	proc := &scriptedProcessor{results: []jobs.Result{jobs.Retry(errors.New("x"), 1, 2*time.Second)}}
	h := &Handler{Processor: proc, Queue: &fakeQueue{err: errors.New("queue down")}}
	err := h.HandleMessage(context.Background(), []byte(`{"resumeId":"r-1"}`))
	var requeue ErrRequeue
	if !errors.As(err, &requeue) || requeue.ResumeID != "r-1" {
		t.Fatalf("err = %v", err)
	}
}
