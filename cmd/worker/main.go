package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"resume-feedback/internal/bootstrap"
	"resume-feedback/internal/shared/config"
	"resume-feedback/internal/shared/telemetry"
	"resume-feedback/internal/workerproc"
)

func main() {
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.Build(ctx, cfg, bootstrap.WithoutRouter())
	if err != nil {
		log.Fatalf("bootstrap build: %v", err)
	}
	defer app.Close()

	go app.Cleanup.RunEvery(ctx, cfg.CleanupInterval)

	concurrency := max(1, cfg.WorkerConcurrency)
	switch cfg.QueueBackend {
	case config.QueueSQS:
		awsCfg, err := loadAWSConfig(ctx, cfg.AWSRegion)
		if err != nil {
			log.Fatalf("load aws config: %v", err)
		}
		p := &poller{
			client:      sqs.NewFromConfig(awsCfg),
			queueURL:    cfg.SQSQueueURL,
			visibility:  cfg.SQSVisibilityTimeout,
			concurrency: concurrency,
			handler:     app.Worker,
		}
		log.Printf("worker started backend=sqs queue=%s concurrency=%d", cfg.SQSQueueURL, concurrency)
		p.run(ctx, cfg.ShutdownTimeout)
	case config.QueueAMQP:
		log.Printf("worker started backend=amqp queue=%s concurrency=%d", cfg.AMQPQueue, concurrency)
		if err := app.AMQP.Consume(ctx, concurrency, app.Worker.HandleMessage); err != nil && !errors.Is(err, context.Canceled) {
			log.Fatalf("amqp consume: %v", err)
		}
	default:
		log.Printf("worker started backend=local concurrency=%d", concurrency)
		app.Start(ctx)
		<-ctx.Done()
	}
	log.Printf("worker stopped")
}

func loadAWSConfig(ctx context.Context, region string) (aws.Config, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if region = strings.TrimSpace(region); region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	return awsconfig.LoadDefaultConfig(ctx, opts...)
}

const receiveCountAttr = "ApproximateReceiveCount"

type sqsAPI interface {
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

type messageHandler interface {
	HandleMessage(ctx context.Context, body []byte) error
}

type poller struct {
	client      sqsAPI
	queueURL    string
	visibility  time.Duration
	concurrency int
	handler     messageHandler
}

func (p *poller) run(ctx context.Context, shutdownTimeout time.Duration) {
	sem := make(chan struct{}, max(1, p.concurrency))
	var wg sync.WaitGroup

pollLoop:
	for {
		select {
		case <-ctx.Done():
			break pollLoop
		default:
		}

		resp, err := p.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
			QueueUrl:            aws.String(p.queueURL),
			MaxNumberOfMessages: 10,
			WaitTimeSeconds:     20,
			VisibilityTimeout:   int32(p.visibility.Seconds()),
			AttributeNames:      []sqstypes.QueueAttributeName{sqstypes.QueueAttributeName(receiveCountAttr)},
		})
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
				break pollLoop
			}
			telemetry.Error("worker.receive_failed", map[string]any{"error": err})
			continue
		}

		for _, msg := range resp.Messages {
			select {
			case <-ctx.Done():
				break pollLoop
			case sem <- struct{}{}:
			}
			wg.Add(1)
			go func(m sqstypes.Message) {
				defer wg.Done()
				defer func() { <-sem }()
				// In-flight jobs finish even after shutdown is requested.
				p.handle(context.WithoutCancel(ctx), m)
			}(msg)
		}
	}

	log.Printf("shutdown requested, waiting up to %s for in-flight jobs", shutdownTimeout)
	waitDone := make(chan struct{})
	go func() {
		wg.Wait()
		close(waitDone)
	}()
	select {
	case <-waitDone:
	case <-time.After(shutdownTimeout):
		log.Printf("shutdown timeout reached; exiting with in-flight jobs")
	}
}

// handle deletes the message unless the handler asks for redelivery, in
// which case the visibility timeout returns it to the queue.
func (p *poller) handle(ctx context.Context, msg sqstypes.Message) {
	fields := baseFields(msg)
	if err := p.handler.HandleMessage(ctx, []byte(aws.ToString(msg.Body))); err != nil {
		fields["error"] = err
		telemetry.Error("worker.message_requeued", fields)
		return
	}
	p.delete(ctx, msg)
}

func (p *poller) delete(ctx context.Context, msg sqstypes.Message) bool {
	receipt := aws.ToString(msg.ReceiptHandle)
	if receipt == "" {
		fields := baseFields(msg)
		fields["error"] = "missing receipt handle"
		telemetry.Error("worker.delete_failed", fields)
		return false
	}
	if _, err := p.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(p.queueURL),
		ReceiptHandle: aws.String(receipt),
	}); err != nil {
		fields := baseFields(msg)
		fields["error"] = err
		telemetry.Error("worker.delete_failed", fields)
		return false
	}
	return true
}

func baseFields(msg sqstypes.Message) map[string]any {
	return map[string]any{
		"sqsMessageId": aws.ToString(msg.MessageId),
		"receiveCount": receiveCount(msg),
	}
}

func receiveCount(msg sqstypes.Message) int {
	raw := msg.Attributes[receiveCountAttr]
	if raw == "" {
		return 0
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	return parsed
}

var _ messageHandler = (*workerproc.Handler)(nil)
