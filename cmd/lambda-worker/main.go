package main

// Build the Lambda handler binary:
//   GOOS=linux GOARCH=amd64 CGO_ENABLED=0 go build -o bootstrap ./cmd/lambda-worker

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"

	"resume-feedback/internal/bootstrap"
	"resume-feedback/internal/shared/config"
)

type messageHandler interface {
	HandleMessage(ctx context.Context, body []byte) error
}

var (
	initOnce sync.Once
	initErr  error
	worker   messageHandler
)

func initApp() {
	cfg := config.Load()
	if err := checkConfig(cfg); err != nil {
		initErr = err
		return
	}
	app, err := bootstrap.Build(context.Background(), cfg, bootstrap.WithoutRouter())
	if err != nil {
		initErr = err
		return
	}
	worker = app.Worker
}

// checkConfig requires the SQS backend: retries are re-sent through the
// queue, and any other backend would not outlive the invocation.
func checkConfig(cfg config.Config) error {
	if cfg.QueueBackend != config.QueueSQS {
		return fmt.Errorf("lambda worker needs QUEUE_BACKEND=%s, got %q", config.QueueSQS, cfg.QueueBackend)
	}
	if strings.TrimSpace(cfg.SQSQueueURL) == "" {
		return fmt.Errorf("lambda worker needs SQS_QUEUE_URL")
	}
	return nil
}

func handler(ctx context.Context, event events.SQSEvent) (events.SQSEventResponse, error) {
	initOnce.Do(initApp)
	if initErr != nil {
		log.Printf("bootstrap error: %v", initErr)
		return events.SQSEventResponse{BatchItemFailures: allFailed(event)}, initErr
	}
	return handleBatch(ctx, worker, event), nil
}

// handleBatch reports a record as failed only when the handler could not
// dispose of it; SQS then redelivers that record alone.
func handleBatch(ctx context.Context, h messageHandler, event events.SQSEvent) events.SQSEventResponse {
	failures := make([]events.SQSBatchItemFailure, 0)
	for _, record := range event.Records {
		if err := h.HandleMessage(ctx, []byte(record.Body)); err != nil {
			log.Printf("message %s not handled: %v", record.MessageId, err)
			failures = append(failures, events.SQSBatchItemFailure{ItemIdentifier: record.MessageId})
		}
	}
	return events.SQSEventResponse{BatchItemFailures: failures}
}

func allFailed(event events.SQSEvent) []events.SQSBatchItemFailure {
	failures := make([]events.SQSBatchItemFailure, 0, len(event.Records))
	for _, record := range event.Records {
		failures = append(failures, events.SQSBatchItemFailure{ItemIdentifier: record.MessageId})
	}
	return failures
}

func main() {
	lambda.Start(handler)
}
