package services

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"

	aws_pkg "github.com/Mahender-77/KTLServer/pkg/aws"
	apperrors "github.com/Mahender-77/KTLServer/services/common/errors"
)

// CheckoutMessage is a checkout submitted through the queue instead of HTTP.
type CheckoutMessage struct {
	UserID         string             `json:"user_id"`
	IdempotencyKey string             `json:"idempotency_key"`
	Order          CreateOrderRequest `json:"order"`
}

// SQSCheckoutConsumer consumes checkout messages from SQS and places them through OrderService.
type SQSCheckoutConsumer struct {
	sqsConsumer *aws_pkg.SQSConsumer
	orders      OrderService
	metrics     MetricsRecorder
	logger      *zap.Logger
}

// NewSQSCheckoutConsumer creates a new SQS-based checkout consumer
func NewSQSCheckoutConsumer(sqsConsumer *aws_pkg.SQSConsumer, orders OrderService, metrics MetricsRecorder, logger *zap.Logger) *SQSCheckoutConsumer {
	return &SQSCheckoutConsumer{
		sqsConsumer: sqsConsumer,
		orders:      orders,
		metrics:     metrics,
		logger:      logger.With(zap.String("component", "sqs_checkout_consumer")),
	}
}

// Start polls the checkout queue until ctx is cancelled.
func (c *SQSCheckoutConsumer) Start(ctx context.Context) {
	c.logger.Info("Starting checkout queue consumer")

	err := c.sqsConsumer.StartPolling(ctx, c.HandleMessage)
	if err != nil && !errors.Is(err, context.Canceled) {
		c.logger.Error("Checkout queue polling stopped", zap.Error(err))
	}
}

// HandleMessage places the order carried by body. A nil return deletes the message: malformed
// messages and rejected checkouts are dropped, while stock races and internal failures are
// returned so the queue redelivers them.
func (c *SQSCheckoutConsumer) HandleMessage(ctx context.Context, body string) error {
	recordAsync(c.metrics, func(ctx context.Context, m MetricsRecorder, dims map[string]string) {
		_ = m.RecordCount(ctx, aws_pkg.MetricSQSMessages, dims)
	})

	var snsEnvelope struct {
		Message string `json:"Message"`
	}
	if err := json.Unmarshal([]byte(body), &snsEnvelope); err == nil && snsEnvelope.Message != "" {
		body = snsEnvelope.Message
	}

	var msg CheckoutMessage
	if err := json.Unmarshal([]byte(body), &msg); err != nil {
		c.logger.Warn("Dropping checkout message with invalid JSON", zap.Error(err))
		return nil
	}

	userID, err := uuid.Parse(msg.UserID)
	if err != nil {
		c.logger.Warn("Dropping checkout message with invalid user_id", zap.String("user_id", msg.UserID))
		return nil
	}

	req := msg.Order
	req.IdempotencyKey = msg.IdempotencyKey

	summary, err := c.orders.CreateOrder(ctx, userID, req)
	if err != nil {
		if errors.Is(err, apperrors.ErrConcurrentStockUpdate) || errors.Is(err, apperrors.ErrIdempotencyInProgress) {
			c.logger.Info("Checkout will be retried", zap.String("user_id", msg.UserID), zap.Error(err))
			return err
		}
		if apperrors.IsClientError(err) {
			c.logger.Warn("Dropping rejected checkout", zap.String("user_id", msg.UserID), zap.Error(err))
			return nil
		}
		c.logger.Error("Checkout failed", zap.String("user_id", msg.UserID), zap.Error(err))
		return err
	}

	c.logger.Info("Checkout placed from queue",
		zap.String("order_id", summary.OrderID.String()),
		zap.String("user_id", msg.UserID),
	)
	return nil
}
