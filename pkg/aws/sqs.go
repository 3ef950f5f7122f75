package aws

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"go.uber.org/zap"
)

// sqsAPI is the subset of the SQS client the consumer needs.
type sqsAPI interface {
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

// SQSConsumer long-polls a single queue and hands every message body to a handler.
type SQSConsumer struct {
	client            sqsAPI
	queueURL          string
	visibilityTimeout int32
	logger            *zap.Logger
}

// NewSQSConsumer creates a new SQS consumer for the given queue URL
func NewSQSConsumer(cfg aws.Config, queueURL string, logger *zap.Logger) *SQSConsumer {
	return newSQSConsumer(sqs.NewFromConfig(cfg), queueURL, logger)
}

func newSQSConsumer(client sqsAPI, queueURL string, logger *zap.Logger) *SQSConsumer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SQSConsumer{
		client:            client,
		queueURL:          queueURL,
		visibilityTimeout: 30,
		logger:            logger.With(zap.String("queue_url", queueURL)),
	}
}

// MessageHandler processes one message body. Returning an error leaves the message on the
// queue so it becomes visible again after the visibility timeout.
type MessageHandler func(ctx context.Context, body string) error

// StartPolling polls until ctx is cancelled.
func (c *SQSConsumer) StartPolling(ctx context.Context, handler MessageHandler) error {
	c.logger.Info("sqs polling started")

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("sqs polling stopped")
			return ctx.Err()
		default:
			if err := c.pollOnce(ctx, handler); err != nil && !errors.Is(err, context.Canceled) {
				c.logger.Warn("sqs poll failed", zap.Error(err))
			}
		}
	}
}

func (c *SQSConsumer) pollOnce(ctx context.Context, handler MessageHandler) error {
	result, err := c.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:            &c.queueURL,
		MaxNumberOfMessages: 10,
		WaitTimeSeconds:     20,
		VisibilityTimeout:   c.visibilityTimeout,
	})
	if err != nil {
		return fmt.Errorf("failed to receive messages: %w", err)
	}

	for _, msg := range result.Messages {
		if msg.Body == nil {
			continue
		}

		if err := handler(ctx, *msg.Body); err != nil {
			c.logger.Warn("sqs message handling failed, leaving for redelivery",
				zap.String("message_id", aws.ToString(msg.MessageId)),
				zap.Error(err),
			)
			continue
		}

		if _, err := c.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
			QueueUrl:      &c.queueURL,
			ReceiptHandle: msg.ReceiptHandle,
		}); err != nil {
			c.logger.Warn("sqs delete failed", zap.String("message_id", aws.ToString(msg.MessageId)), zap.Error(err))
		}
	}

	return nil
}

// GetQueueURL retrieves the URL for a queue name
func GetQueueURL(ctx context.Context, cfg aws.Config, queueName string) (string, error) {
	client := sqs.NewFromConfig(cfg)
	result, err := client.GetQueueUrl(ctx, &sqs.GetQueueUrlInput{
		QueueName: &queueName,
	})
	if err != nil {
		return "", fmt.Errorf("failed to get queue URL: %w", err)
	}
	return aws.ToString(result.QueueUrl), nil
}
