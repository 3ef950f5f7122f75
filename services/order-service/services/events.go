package services

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	aws_pkg "github.com/Mahender-77/KTLServer/pkg/aws"
	"github.com/Mahender-77/KTLServer/services/order-service/models"
)

// EventPublisher delivers order lifecycle events to the configured bus.
type EventPublisher interface {
	Publish(ctx context.Context, event models.OrderEvent) error
}

// SNSEventPublisher publishes events as JSON to an SNS topic with an event_type attribute for
// subscription filtering.
type SNSEventPublisher struct {
	client   aws_pkg.SNSPublisher
	topicArn string
}

// NewSNSEventPublisher creates a new SNSEventPublisher.
func NewSNSEventPublisher(client aws_pkg.SNSPublisher, topicArn string) *SNSEventPublisher {
	return &SNSEventPublisher{client: client, topicArn: topicArn}
}

func (p *SNSEventPublisher) Publish(ctx context.Context, event models.OrderEvent) error {
	b, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", event.Type, err)
	}
	return p.client.Publish(ctx, p.topicArn, b, map[string]string{"event_type": event.Type})
}

// publishEvent publishes event and only logs on failure. Events never fail the operation that
// produced them.
func publishEvent(ctx context.Context, publisher EventPublisher, log *zap.Logger, event models.OrderEvent) {
	if publisher == nil {
		log.Debug("event bus not configured, skipping event publish", zap.String("event", event.Type))
		return
	}
	if err := publisher.Publish(ctx, event); err != nil {
		log.Error("Failed to publish event",
			zap.String("event", event.Type),
			zap.String("order_id", event.OrderID.String()),
			zap.Error(err),
		)
		return
	}
	log.Info("Published event", zap.String("event", event.Type), zap.String("order_id", event.OrderID.String()))
}
