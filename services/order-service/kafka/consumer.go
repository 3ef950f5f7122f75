package kafka

import (
	"context"
	"errors"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const (
	defaultMaxAttempts = 5
	baseBackoff        = 200 * time.Millisecond
)

// MessageHandler processes one message body. A non-nil error asks for the message to be retried.
type MessageHandler func(ctx context.Context, body string) error

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// CheckoutConsumer reads checkout messages from a topic as part of a consumer group. Offsets are
// committed once the handler accepts a message or its attempts run out.
type CheckoutConsumer struct {
	reader      messageReader
	topic       string
	maxAttempts int
	backoff     time.Duration
	logger      *zap.Logger
}

func NewCheckoutConsumer(brokers []string, topic, groupID string, logger *zap.Logger) *CheckoutConsumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 1e3, // 1KB
		MaxBytes: 1e6, // 1MB
	})
	return &CheckoutConsumer{
		reader:      r,
		topic:       topic,
		maxAttempts: defaultMaxAttempts,
		backoff:     baseBackoff,
		logger:      logger.With(zap.String("component", "kafka_checkout_consumer"), zap.String("topic", topic)),
	}
}

// Start consumes until ctx is cancelled, then closes the reader.
func (c *CheckoutConsumer) Start(ctx context.Context, handle MessageHandler) {
	c.logger.Info("Kafka checkout consumer started")
	defer func() {
		if err := c.reader.Close(); err != nil {
			c.logger.Warn("Failed to close Kafka reader", zap.Error(err))
		}
	}()

	for {
		m, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				c.logger.Info("Kafka checkout consumer stopped")
				return
			}
			c.logger.Error("Failed to fetch message", zap.Error(err))
			if !sleep(ctx, c.backoff) {
				return
			}
			continue
		}

		if !c.process(ctx, m, handle) {
			return
		}
	}
}

// process runs handle with exponential backoff and commits the offset. It reports false when ctx
// ended before the message was settled.
func (c *CheckoutConsumer) process(ctx context.Context, m kafka.Message, handle MessageHandler) bool {
	log := c.logger.With(zap.Int("partition", m.Partition), zap.Int64("offset", m.Offset))

	backoff := c.backoff
	for attempt := 1; ; attempt++ {
		err := handle(ctx, string(m.Value))
		if err == nil {
			break
		}
		if attempt >= c.maxAttempts {
			log.Error("Giving up on checkout message", zap.Int("attempts", attempt), zap.Error(err))
			break
		}
		log.Warn("Checkout message failed, retrying", zap.Int("attempt", attempt), zap.Error(err))
		if !sleep(ctx, backoff) {
			return false
		}
		backoff *= 2
	}

	if err := c.reader.CommitMessages(ctx, m); err != nil {
		if ctx.Err() != nil {
			return false
		}
		log.Error("Failed to commit offset", zap.Error(err))
	}
	return true
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
