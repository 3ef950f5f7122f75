package services

import (
	"context"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"gorm.io/gorm"

	aws_pkg "github.com/Mahender-77/KTLServer/pkg/aws"
	apperrors "github.com/Mahender-77/KTLServer/services/common/errors"
	"github.com/Mahender-77/KTLServer/services/common/logger"
	"github.com/Mahender-77/KTLServer/services/order-service/models"
	"github.com/Mahender-77/KTLServer/services/order-service/repository"
)

type LocationInput struct {
	Latitude  *float64 `json:"latitude" validate:"required,min=-90,max=90"`
	Longitude *float64 `json:"longitude" validate:"required,min=-180,max=180"`
}

type CompleteResult struct {
	SubOrder     *models.SubOrder `json:"sub_order"`
	AllDelivered bool             `json:"all_delivered"`
}

type SubOrderTracking struct {
	SubOrderID       uuid.UUID             `json:"sub_order_id"`
	OrderID          uuid.UUID             `json:"order_id"`
	CategoryName     string                `json:"category_name"`
	DeliveryStatus   models.DeliveryStatus `json:"delivery_status"`
	DeliveryPersonID *uuid.UUID            `json:"delivery_person_id"`
	Location         models.Location       `json:"location"`
	Address          *models.Address       `json:"address,omitempty"`
}

type OrderTracking struct {
	OrderID          uuid.UUID          `json:"order_id"`
	OrderStatus      string             `json:"order_status"`
	DeliveryPersonID *uuid.UUID         `json:"delivery_person_id"`
	Location         models.Location    `json:"location"`
	SubOrders        []SubOrderTracking `json:"sub_orders"`
}

// DeliveryService drives sub-orders through pending, accepted, out_for_delivery and delivered.
type DeliveryService interface {
	ListClaimable(ctx context.Context, deliveryPersonID uuid.UUID, page, limit int) (*Paginated[models.SubOrder], error)
	Accept(ctx context.Context, subOrderID, deliveryPersonID uuid.UUID) (*models.SubOrder, error)
	Start(ctx context.Context, subOrderID, deliveryPersonID uuid.UUID) (*models.SubOrder, error)
	Complete(ctx context.Context, subOrderID, deliveryPersonID uuid.UUID) (*CompleteResult, error)
	UpdateLocation(ctx context.Context, deliveryPersonID uuid.UUID, input LocationInput) (int64, error)
	TrackSubOrder(ctx context.Context, subOrderID uuid.UUID) (*SubOrderTracking, error)
	TrackOrder(ctx context.Context, orderID, requestingUserID uuid.UUID) (*OrderTracking, error)
}

type deliveryServiceImpl struct {
	store    repository.DataStore
	events   EventPublisher
	metrics  MetricsRecorder
	logger   *zap.Logger
	validate *validator.Validate
	now      func() time.Time
}

// NewDeliveryService creates a new DeliveryService.
func NewDeliveryService(store repository.DataStore, events EventPublisher, metrics MetricsRecorder, logger *zap.Logger) DeliveryService {
	return &deliveryServiceImpl{
		store:    store,
		events:   events,
		metrics:  metrics,
		logger:   logger,
		validate: validator.New(),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *deliveryServiceImpl) ListClaimable(ctx context.Context, deliveryPersonID uuid.UUID, page, limit int) (*Paginated[models.SubOrder], error) {
	page, limit = NormalizePage(page, limit)
	subOrders, total, err := s.store.SubOrders().FindClaimable(ctx, deliveryPersonID, page, limit)
	if err != nil {
		logger.FromContext(ctx, s.logger).Error("Failed to list claimable sub-orders", zap.Error(err))
		return nil, apperrors.From(err)
	}
	return newPaginated(subOrders, total, page, limit), nil
}

// Accept claims an unassigned pending sub-order. Of two concurrent callers exactly one wins;
// the other, like any caller on a missing or taken sub-order, gets SUBORDER_UNAVAILABLE.
func (s *deliveryServiceImpl) Accept(ctx context.Context, subOrderID, deliveryPersonID uuid.UUID) (*models.SubOrder, error) {
	ctx, span := tracer.Start(ctx, "DeliveryService.Accept")
	defer span.End()
	span.SetAttributes(attribute.String("sub_order.id", subOrderID.String()))

	if err := s.store.SubOrders().Claim(ctx, subOrderID, deliveryPersonID); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, apperrors.ErrSubOrderUnavailable
		}
		return nil, s.internal(ctx, "claim sub-order", err)
	}

	sub, err := s.reload(ctx, subOrderID)
	if err != nil {
		return nil, err
	}
	s.transitioned(ctx, sub, models.EventSubOrderAccepted, aws_pkg.MetricSubOrdersClaimed)
	return sub, nil
}

// Start marks an accepted sub-order held by the caller as out for delivery.
func (s *deliveryServiceImpl) Start(ctx context.Context, subOrderID, deliveryPersonID uuid.UUID) (*models.SubOrder, error) {
	ctx, span := tracer.Start(ctx, "DeliveryService.Start")
	defer span.End()
	span.SetAttributes(attribute.String("sub_order.id", subOrderID.String()))

	if err := s.advance(ctx, subOrderID, deliveryPersonID, models.DeliveryAccepted, models.DeliveryOutForDelivery); err != nil {
		return nil, err
	}
	sub, err := s.reload(ctx, subOrderID)
	if err != nil {
		return nil, err
	}
	s.transitioned(ctx, sub, models.EventSubOrderOutForDelivery, "")
	return sub, nil
}

// Complete marks an out-for-delivery sub-order as delivered. When no sibling remains
// undelivered the parent order becomes delivered too.
func (s *deliveryServiceImpl) Complete(ctx context.Context, subOrderID, deliveryPersonID uuid.UUID) (*CompleteResult, error) {
	ctx, span := tracer.Start(ctx, "DeliveryService.Complete")
	defer span.End()
	span.SetAttributes(attribute.String("sub_order.id", subOrderID.String()))
	log := logger.FromContext(ctx, s.logger)

	if err := s.advance(ctx, subOrderID, deliveryPersonID, models.DeliveryOutForDelivery, models.DeliveryDelivered); err != nil {
		return nil, err
	}
	sub, err := s.reload(ctx, subOrderID)
	if err != nil {
		return nil, err
	}
	s.transitioned(ctx, sub, models.EventSubOrderDelivered, aws_pkg.MetricSubOrdersDelivered)

	remaining, err := s.store.SubOrders().CountUndelivered(ctx, sub.OrderID)
	if err != nil {
		return nil, s.internal(ctx, "count undelivered sub-orders", err)
	}
	if remaining > 0 {
		return &CompleteResult{SubOrder: sub, AllDelivered: false}, nil
	}

	if err := s.store.Orders().MarkDelivered(ctx, sub.OrderID); err != nil {
		return nil, s.internal(ctx, "mark order delivered", err)
	}
	log.Info("Order delivered", zap.String("order_id", sub.OrderID.String()))

	event := models.OrderEvent{
		Type:             models.EventOrderDelivered,
		OrderID:          sub.OrderID,
		DeliveryPersonID: &deliveryPersonID,
		Status:           models.OrderStatusDelivered,
		Timestamp:        s.now(),
	}
	if sub.Order != nil {
		sub.Order.OrderStatus = models.OrderStatusDelivered
		event.UserID = &sub.Order.UserID
		event.TotalAmount = sub.Order.TotalAmount
	}
	publishEvent(ctx, s.events, log, event)
	recordAsync(s.metrics, func(ctx context.Context, m MetricsRecorder, dims map[string]string) {
		_ = m.RecordCount(ctx, aws_pkg.MetricOrdersDelivered, dims)
	})

	return &CompleteResult{SubOrder: sub, AllDelivered: true}, nil
}

func (s *deliveryServiceImpl) advance(ctx context.Context, id, deliveryPersonID uuid.UUID, from, to models.DeliveryStatus) error {
	err := s.store.SubOrders().Advance(ctx, id, deliveryPersonID, from, to)
	if err == nil {
		return nil
	}
	if errors.Is(err, repository.ErrConflict) {
		logger.FromContext(ctx, s.logger).Warn("Sub-order transition refused",
			zap.String("sub_order_id", id.String()),
			zap.String("delivery_person_id", deliveryPersonID.String()),
			zap.String("from", string(from)),
			zap.String("to", string(to)),
		)
		return apperrors.ErrSubOrderUnauthorized
	}
	return s.internal(ctx, "advance sub-order", err)
}

func (s *deliveryServiceImpl) reload(ctx context.Context, id uuid.UUID) (*models.SubOrder, error) {
	sub, err := s.store.SubOrders().FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrSubOrderNotFound
		}
		return nil, s.internal(ctx, "reload sub-order", err)
	}
	return sub, nil
}

func (s *deliveryServiceImpl) transitioned(ctx context.Context, sub *models.SubOrder, eventType, metric string) {
	log := logger.FromContext(ctx, s.logger)
	log.Info("Sub-order status changed",
		zap.String("sub_order_id", sub.ID.String()),
		zap.String("order_id", sub.OrderID.String()),
		zap.String("status", string(sub.DeliveryStatus)),
	)

	subID := sub.ID
	publishEvent(ctx, s.events, log, models.OrderEvent{
		Type:             eventType,
		OrderID:          sub.OrderID,
		SubOrderID:       &subID,
		DeliveryPersonID: sub.DeliveryBoyID,
		TotalAmount:      sub.TotalAmount,
		Status:           string(sub.DeliveryStatus),
		Timestamp:        s.now(),
	})
	if metric != "" {
		recordAsync(s.metrics, func(ctx context.Context, m MetricsRecorder, dims map[string]string) {
			_ = m.RecordCount(ctx, metric, dims)
		})
	}
}

func (s *deliveryServiceImpl) internal(ctx context.Context, op string, err error) error {
	logger.FromContext(ctx, s.logger).Error("Delivery operation failed", zap.String("op", op), zap.Error(err))
	return apperrors.From(err)
}

// UpdateLocation overwrites the position on every sub-order the caller is actively delivering.
// The last write wins.
func (s *deliveryServiceImpl) UpdateLocation(ctx context.Context, deliveryPersonID uuid.UUID, input LocationInput) (int64, error) {
	if input.Latitude == nil || input.Longitude == nil {
		return 0, apperrors.ErrLocationRequired
	}
	if err := s.validate.Struct(input); err != nil {
		return 0, apperrors.ErrValidation.WithMessage(validationMessage(err))
	}

	updated, err := s.store.SubOrders().UpdateLocation(ctx, deliveryPersonID, *input.Latitude, *input.Longitude, s.now())
	if err != nil {
		return 0, s.internal(ctx, "update location", err)
	}
	logger.FromContext(ctx, s.logger).Debug("Location updated",
		zap.String("delivery_person_id", deliveryPersonID.String()),
		zap.Int64("sub_orders", updated),
	)
	return updated, nil
}

func subOrderTracking(sub *models.SubOrder) SubOrderTracking {
	return SubOrderTracking{
		SubOrderID:       sub.ID,
		OrderID:          sub.OrderID,
		CategoryName:     sub.CategoryName,
		DeliveryStatus:   sub.DeliveryStatus,
		DeliveryPersonID: sub.DeliveryBoyID,
		Location:         sub.DeliveryLocation,
	}
}

func (s *deliveryServiceImpl) TrackSubOrder(ctx context.Context, subOrderID uuid.UUID) (*SubOrderTracking, error) {
	sub, err := s.reload(ctx, subOrderID)
	if err != nil {
		return nil, err
	}
	view := subOrderTracking(sub)
	if sub.Order != nil {
		address := sub.Order.Address
		view.Address = &address
	}
	return &view, nil
}

// TrackOrder reports delivery progress of an order to its owner.
func (s *deliveryServiceImpl) TrackOrder(ctx context.Context, orderID, requestingUserID uuid.UUID) (*OrderTracking, error) {
	order, err := s.store.Orders().FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrOrderNotFound
		}
		return nil, s.internal(ctx, "load order", err)
	}
	if order.UserID != requestingUserID {
		return nil, apperrors.ErrOrderAccessDenied
	}

	view := &OrderTracking{
		OrderID:          order.ID,
		OrderStatus:      order.OrderStatus,
		DeliveryPersonID: order.DeliveryPersonID,
		Location:         order.DeliveryLocation,
		SubOrders:        make([]SubOrderTracking, 0, len(order.SubOrders)),
	}
	for i := range order.SubOrders {
		view.SubOrders = append(view.SubOrders, subOrderTracking(&order.SubOrders[i]))
	}
	return view, nil
}
