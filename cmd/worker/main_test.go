package main

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"resume-feedback/internal/jobs"
	"resume-feedback/internal/queue"
	"resume-feedback/internal/workerproc"
)

type fakeSQS struct {
	mu       sync.Mutex
	batches  [][]sqstypes.Message
	deleted  []string
	received int
}

func (f *fakeSQS) ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.received++
	if len(f.batches) == 0 {
		return &sqs.ReceiveMessageOutput{}, nil
	}
	batch := f.batches[0]
	f.batches = f.batches[1:]
	return &sqs.ReceiveMessageOutput{Messages: batch}, nil
}

func (f *fakeSQS) DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, aws.ToString(params.ReceiptHandle))
	return &sqs.DeleteMessageOutput{}, nil
}

func (f *fakeSQS) deletedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.deleted)
}

type fakeProcessor struct {
	result jobs.Result
}

func (f fakeProcessor) Process(ctx context.Context, resumeID string, attempt int) jobs.Result {
	return f.result
}

type failingQueue struct{}

func (failingQueue) Send(ctx context.Context, msg queue.Message) error { return errors.New("down") }
func (failingQueue) SendDelayed(ctx context.Context, msg queue.Message, delay time.Duration) error {
	return errors.New("down")
}

func sqsMessage(t *testing.T, id, receipt, resumeID string) sqstypes.Message {
	t.Helper()
	body, err := queue.EncodeMessage(queue.NewMessage(resumeID, "req-"+id, time.Now()))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	return sqstypes.Message{
		MessageId:     aws.String(id),
		ReceiptHandle: aws.String(receipt),
		Body:          aws.String(string(body)),
		Attributes:    map[string]string{receiveCountAttr: "1"},
	}
}

func newPoller(client sqsAPI, result jobs.Result, q queue.Client) *poller {
	return &poller{
		client:      client,
		queueURL:    "queue",
		visibility:  5 * time.Minute,
		concurrency: 2,
		handler:     &workerproc.Handler{Processor: fakeProcessor{result: result}, Queue: q},
	}
}

func TestWorkerDeletesMessageOnSuccess(t *testing.T) {
	client := &fakeSQS{}
	p := newPoller(client, jobs.Done(), queue.NewLocalQueue(1))

	p.handle(context.Background(), sqsMessage(t, "m1", "r1", "resume-1"))

	if client.deletedCount() != 1 {
		t.Fatalf("expected delete, got %d", client.deletedCount())
	}
}

func TestWorkerDeletesAfterSchedulingRetry(t *testing.T) {
	client := &fakeSQS{}
	q := queue.NewLocalQueue(1)
	p := newPoller(client, jobs.Retry(errors.New("boom"), 1, 0), q)

	p.handle(context.Background(), sqsMessage(t, "m2", "r2", "resume-2"))

	if client.deletedCount() != 1 {
		t.Fatalf("expected delete, got %d", client.deletedCount())
	}
	if q.Pending() != 1 {
		t.Fatalf("expected retry enqueued, pending=%d", q.Pending())
	}
}

func TestWorkerKeepsMessageWhenRetryCannotBeScheduled(t *testing.T) {
	client := &fakeSQS{}
	p := newPoller(client, jobs.Retry(errors.New("boom"), 1, time.Second), failingQueue{})

	p.handle(context.Background(), sqsMessage(t, "m3", "r3", "resume-3"))

	if client.deletedCount() != 0 {
		t.Fatalf("expected no delete, got %d", client.deletedCount())
	}
}

func TestWorkerDeletesOnInvalidJSON(t *testing.T) {
	client := &fakeSQS{}
	p := newPoller(client, jobs.Done(), queue.NewLocalQueue(1))
	msg := sqstypes.Message{
		MessageId:     aws.String("m4"),
		ReceiptHandle: aws.String("r4"),
		Body:          aws.String("{bad-json"),
	}

	p.handle(context.Background(), msg)

	if client.deletedCount() != 1 {
		t.Fatalf("expected delete, got %d", client.deletedCount())
	}
}

func TestPollerStopsOnCancel(t *testing.T) {
	client := &fakeSQS{batches: [][]sqstypes.Message{{sqsMessage(t, "m5", "r5", "resume-5")}}}
	p := newPoller(client, jobs.Done(), queue.NewLocalQueue(1))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.run(ctx, time.Second)
		close(done)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for client.deletedCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("poller did not stop")
	}
	if client.deletedCount() != 1 {
		t.Fatalf("expected one delete, got %d", client.deletedCount())
	}
}
