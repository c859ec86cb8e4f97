package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rd-agent/backend/internal/util"
	"github.com/rd-agent/backend/pkg/logger"

	"github.com/rabbitmq/amqp091-go"
)

const (
	TriageQueue  = "triage_queue"
	NotifyQueue  = "notify_queue"
	PDFQueue     = "pdf_queue"
	SummaryQueue = "summary_queue"

	// MaxRetries is how often a message goes through the retry queue before
	// it is parked on the dead letter queue.
	MaxRetries   = 10
	retryDelayMs = int32(10000)
)

var queueLog = logger.Named("Queue")

// Queues lists every work queue the worker consumes.
var Queues = []string{TriageQueue, NotifyQueue, PDFQueue, SummaryQueue}

func Init() *amqp091.Connection {
	user := util.GetEnv("RABBITMQ_USER")
	pass := util.GetEnv("RABBITMQ_PASSWORD")
	host := util.GetEnv("RABBITMQ_HOST")
	port := util.GetEnv("RABBITMQ_PORT")

	connURL := fmt.Sprintf(
		"amqp://%s:%s@%s:%s/",
		user,
		pass,
		host,
		port,
	)

	conn, err := amqp091.Dial(connURL)
	if err != nil {
		logger.Fatal("Failed to connect to RabbitMQ", "err", err)
	}

	return conn
}

// SetupQueues declares each queue together with its _retry queue, which
// dead-letters back into the work queue after a delay, and its _dlq.
func SetupQueues(ch *amqp091.Channel, queueNames []string) error {
	for _, name := range queueNames {
		_, err := ch.QueueDeclare(
			name,
			true,  // durable
			false, // autoDelete
			false, // exclusive
			false, // noWait
			nil,   // args
		)
		if err != nil {
			return fmt.Errorf("failed to declare queue %s: %w", name, err)
		}

		dlqName := name + "_dlq"
		_, err = ch.QueueDeclare(
			dlqName,
			true,
			false,
			false,
			false,
			nil,
		)
		if err != nil {
			return fmt.Errorf("failed to declare queue %s: %w", dlqName, err)
		}

		retryName := name + "_retry"
		_, err = ch.QueueDeclare(
			retryName,
			true,
			false,
			false,
			false,
			amqp091.Table{
				"x-message-ttl":             retryDelayMs,
				"x-dead-letter-exchange":    "",
				"x-dead-letter-routing-key": name,
			},
		)
		if err != nil {
			return fmt.Errorf("failed to declare queue %s: %w", retryName, err)
		}
	}

	return nil
}

func PublishFIFO(ch *amqp091.Channel, queueName string, data []byte) error {
	return PublishFIFOWithContext(context.Background(), ch, queueName, data)
}

func PublishFIFOWithContext(ctx context.Context, ch *amqp091.Channel, queueName string, data []byte) error {
	publishing := amqp091.Publishing{
		ContentType:  "application/json",
		Body:         data,
		DeliveryMode: amqp091.Persistent,
		Timestamp:    time.Now(),
	}

	return ch.PublishWithContext(
		ctx,
		"",
		queueName,
		false,
		false,
		publishing,
	)
}

// Publisher sends a message body to a named queue.
type Publisher interface {
	Publish(ctx context.Context, queueName string, body []byte) error
}

// ChannelPublisher publishes over one AMQP channel. Channels are not safe
// for concurrent publishing, so calls are serialized.
type ChannelPublisher struct {
	mu sync.Mutex
	ch *amqp091.Channel
}

func NewChannelPublisher(ch *amqp091.Channel) *ChannelPublisher {
	return &ChannelPublisher{ch: ch}
}

func (p *ChannelPublisher) Publish(ctx context.Context, queueName string, body []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return PublishFIFOWithContext(ctx, p.ch, queueName, body)
}

func publishJSON(ctx context.Context, p Publisher, queueName string, msg any) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal %s message: %w", queueName, err)
	}
	if err := p.Publish(ctx, queueName, body); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", queueName, err)
	}
	return nil
}

// RetryCount reads the x-retries header set by RetryOrDeadLetter.
func RetryCount(headers amqp091.Table) int {
	switch v := headers["x-retries"].(type) {
	case int32:
		return int(v)
	case int64:
		return int(v)
	case int:
		return v
	}
	return 0
}

// RetryOrDeadLetter moves a failed delivery to the retry queue, or to the
// dead letter queue once it was retried MaxRetries times.
func RetryOrDeadLetter(ch *amqp091.Channel, msg amqp091.Delivery, queueName string) {
	retries := RetryCount(msg.Headers)

	headers := amqp091.Table{}
	for k, v := range msg.Headers {
		headers[k] = v
	}

	target := queueName + "_retry"
	if retries >= MaxRetries {
		target = queueName + "_dlq"
		queueLog.Info("Sending message to DLQ", "dlq", target)
	} else {
		headers["x-retries"] = int32(retries + 1)
	}

	pubErr := ch.Publish(
		"",
		target,
		false,
		false,
		amqp091.Publishing{
			ContentType:  msg.ContentType,
			Body:         msg.Body,
			Headers:      headers,
			DeliveryMode: amqp091.Persistent,
		},
	)
	if pubErr != nil {
		queueLog.Error("Failed to publish failed message", "target", target, "err", pubErr)
		msg.Nack(false, true)
		return
	}
	msg.Ack(false)
}
