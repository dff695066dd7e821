package main

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-lambda-go/events"

	"resume-feedback/internal/shared/config"
)

type bodyHandler map[string]error

func (h bodyHandler) HandleMessage(ctx context.Context, body []byte) error {
	return h[string(body)]
}

func TestHandleBatchReportsOnlyFailedRecords(t *testing.T) {
	h := bodyHandler{"bad": errors.New("requeue")}
	event := events.SQSEvent{Records: []events.SQSMessage{
		{MessageId: "1", Body: "ok"},
		{MessageId: "2", Body: "bad"},
		{MessageId: "3", Body: "ok"},
	}}

	resp := handleBatch(context.Background(), h, event)

	if len(resp.BatchItemFailures) != 1 || resp.BatchItemFailures[0].ItemIdentifier != "2" {
		t.Fatalf("failures = %+v", resp.BatchItemFailures)
	}
}

func TestAllFailedListsEveryRecord(t *testing.T) {
	event := events.SQSEvent{Records: []events.SQSMessage{{MessageId: "a"}, {MessageId: "b"}}}
	if got := allFailed(event); len(got) != 2 {
		t.Fatalf("failures = %+v", got)
	}
}

func TestCheckConfigRequiresSQS(t *testing.T) {
	cases := []struct {
		name    string
		cfg     config.Config
		wantErr bool
	}{
		{"local backend", config.Config{QueueBackend: config.QueueLocal}, true},
		{"amqp backend", config.Config{QueueBackend: config.QueueAMQP, SQSQueueURL: "https://sqs/q"}, true},
		{"sqs without url", config.Config{QueueBackend: config.QueueSQS}, true},
		{"sqs", config.Config{QueueBackend: config.QueueSQS, SQSQueueURL: "https://sqs/q"}, false},
	}
	for _, tc := range cases {
		if err := checkConfig(tc.cfg); (err != nil) != tc.wantErr {
			t.Fatalf("%s: err = %v", tc.name, err)
		}
	}
}
