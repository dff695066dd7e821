package queue

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"resume-feedback/internal/shared/telemetry"
)

// HandlerErrorDelay is how long a message whose handler failed waits in the
// retry queue before redelivery.
const HandlerErrorDelay = 30 * time.Second

// amqpChannel is the subset of *amqp.Channel the client uses.
type amqpChannel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Qos(prefetchCount, prefetchSize int, global bool) error
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
	Close() error
}

// AMQPClient publishes and consumes analysis jobs on RabbitMQ. Delays use a
// companion "<queue>.retry" queue whose expired messages dead-letter back
// into the main queue.
type AMQPClient struct {
	conn       *amqp.Connection
	ch         amqpChannel
	queue      string
	retryQueue string

	pubMu sync.Mutex
}

// NewAMQPClient dials url and declares the job queues.
func NewAMQPClient(url, queueName string) (*AMQPClient, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return nil, errors.New("RABBITMQ_URL is required")
	}
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("amqp dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("amqp channel: %w", err)
	}
	c, err := newAMQPClient(ch, queueName)
	if err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}
	c.conn = conn
	return c, nil
}

func newAMQPClient(ch amqpChannel, queueName string) (*AMQPClient, error) {
	queueName = strings.TrimSpace(queueName)
	if queueName == "" {
		return nil, errors.New("amqp queue name is required")
	}
	retryQueue := queueName + ".retry"
	if _, err := ch.QueueDeclare(queueName, true, false, false, false, nil); err != nil {
		return nil, fmt.Errorf("declare queue %s: %w", queueName, err)
	}
	retryArgs := amqp.Table{
		"x-dead-letter-exchange":    "",
		"x-dead-letter-routing-key": queueName,
	}
	if _, err := ch.QueueDeclare(retryQueue, true, false, false, false, retryArgs); err != nil {
		return nil, fmt.Errorf("declare queue %s: %w", retryQueue, err)
	}
	return &AMQPClient{ch: ch, queue: queueName, retryQueue: retryQueue}, nil
}

func (c *AMQPClient) Send(ctx context.Context, msg Message) error {
	payload, err := EncodeMessage(msg)
	if err != nil {
		return fmt.Errorf("encode amqp message: %w", err)
	}
	return c.publish(ctx, c.queue, payload, 0)
}

// SendDelayed parks msg in the retry queue with a per-message TTL.
func (c *AMQPClient) SendDelayed(ctx context.Context, msg Message, delay time.Duration) error {
	payload, err := EncodeMessage(msg)
	if err != nil {
		return fmt.Errorf("encode amqp message: %w", err)
	}
	if delay <= 0 {
		return c.publish(ctx, c.queue, payload, 0)
	}
	return c.publish(ctx, c.retryQueue, payload, delay)
}

func (c *AMQPClient) publish(ctx context.Context, key string, body []byte, delay time.Duration) error {
	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}
	if delay > 0 {
		pub.Expiration = strconv.FormatInt(delay.Milliseconds(), 10)
	}
	c.pubMu.Lock()
	defer c.pubMu.Unlock()
	if err := c.ch.PublishWithContext(ctx, "", key, false, false, pub); err != nil {
		return fmt.Errorf("amqp publish %s: %w", key, err)
	}
	return nil
}

// Consume delivers messages to handle with at most concurrency in flight
// until ctx is cancelled or the delivery channel closes.
func (c *AMQPClient) Consume(ctx context.Context, concurrency int, handle Handler) error {
	if concurrency <= 0 {
		concurrency = 1
	}
	if err := c.ch.Qos(concurrency, 0, false); err != nil {
		return fmt.Errorf("amqp qos: %w", err)
	}
	deliveries, err := c.ch.Consume(c.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("amqp consume: %w", err)
	}

	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup
	defer wg.Wait()
	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return errors.New("amqp delivery channel closed")
			}
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				_ = d.Nack(false, true)
				return nil
			}
			wg.Add(1)
			go func(d amqp.Delivery) {
				defer wg.Done()
				defer func() { <-sem }()
				c.handleDelivery(ctx, d, handle)
			}(d)
		}
	}
}

func (c *AMQPClient) handleDelivery(ctx context.Context, d amqp.Delivery, handle Handler) {
	err := handle(ctx, d.Body)
	if err == nil {
		if ackErr := d.Ack(false); ackErr != nil {
			telemetry.Error("queue.amqp.ack_failed", map[string]any{"error": ackErr})
		}
		return
	}
	telemetry.Warn("queue.amqp.handler_error", map[string]any{"error": err, "delayMs": HandlerErrorDelay.Milliseconds()})
	if pubErr := c.publish(ctx, c.retryQueue, d.Body, HandlerErrorDelay); pubErr != nil {
		telemetry.Error("queue.amqp.retry_publish_failed", map[string]any{"error": pubErr})
		_ = d.Nack(false, true)
		return
	}
	_ = d.Ack(false)
}

// Close releases the channel and connection.
func (c *AMQPClient) Close() error {
	var errs []error
	if c.ch != nil {
		errs = append(errs, c.ch.Close())
	}
	if c.conn != nil {
		errs = append(errs, c.conn.Close())
	}
	return errors.Join(errs...)
}

var _ Client = (*AMQPClient)(nil)
