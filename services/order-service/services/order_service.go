package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
	"gorm.io/gorm"

	aws_pkg "github.com/Mahender-77/KTLServer/pkg/aws"
	apperrors "github.com/Mahender-77/KTLServer/services/common/errors"
	"github.com/Mahender-77/KTLServer/services/common/logger"
	"github.com/Mahender-77/KTLServer/services/order-service/models"
	"github.com/Mahender-77/KTLServer/services/order-service/repository"
)

var tracer = otel.Tracer("github.com/Mahender-77/KTLServer/services/order-service/services")

type OrderItemInput struct {
	ProductID uuid.UUID       `json:"product_id"`
	VariantID *uuid.UUID      `json:"variant_id"`
	Quantity  decimal.Decimal `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

type CreateOrderRequest struct {
	Items         []OrderItemInput `json:"items"`
	TotalAmount   decimal.Decimal  `json:"total_amount"`
	Address       models.Address   `json:"address"`
	PaymentMethod string           `json:"payment_method"`
	// IdempotencyKey comes from the Idempotency-Key header or the queue message.
	IdempotencyKey string `json:"-"`
}

type OrderSummary struct {
	OrderID       uuid.UUID       `json:"order_id"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	OrderStatus   string          `json:"order_status"`
	PaymentStatus string          `json:"payment_status"`
	SubOrderCount int             `json:"sub_order_count"`
	CreatedAt     time.Time       `json:"created_at"`
}

// OrderService places and reads orders.
type OrderService interface {
	CreateOrder(ctx context.Context, userID uuid.UUID, req CreateOrderRequest) (*OrderSummary, error)
	ListOrders(ctx context.Context, userID uuid.UUID, page, limit int) (*Paginated[models.Order], error)
	GetOrder(ctx context.Context, userID, orderID uuid.UUID) (*models.Order, error)
}

type orderServiceImpl struct {
	store   repository.DataStore
	idem    IdempotencyStore
	events  EventPublisher
	metrics MetricsRecorder
	logger  *zap.Logger
	now     func() time.Time
}

// NewOrderService creates a new OrderService. idem, events and metrics may be nil.
func NewOrderService(
	store repository.DataStore,
	idem IdempotencyStore,
	events EventPublisher,
	metrics MetricsRecorder,
	logger *zap.Logger,
) OrderService {
	return &orderServiceImpl{
		store:   store,
		idem:    idem,
		events:  events,
		metrics: metrics,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// validateCreateOrder checks the request shape. It reads nothing and writes nothing.
func validateCreateOrder(req *CreateOrderRequest) error {
	if len(req.Items) == 0 {
		return apperrors.ErrCartEmpty
	}
	if !req.Address.Complete() {
		return apperrors.ErrAddressRequired
	}
	if !req.TotalAmount.IsPositive() {
		return apperrors.ErrInvalidTotal
	}

	sum := decimal.Zero
	for _, item := range req.Items {
		if !item.Quantity.IsPositive() {
			return apperrors.ErrInvalidQuantity
		}
		if item.Price.IsNegative() {
			return apperrors.ErrValidation.WithMessage("Item price must not be negative")
		}
		sum = sum.Add(item.Price.Mul(item.Quantity))
	}
	if !sum.Equal(req.TotalAmount) {
		return apperrors.ErrInvalidTotal.WithMessage(fmt.Sprintf(
			"Total amount %s must equal the sum of item price times quantity (%s)", req.TotalAmount.String(), sum.String(),
		))
	}

	switch strings.ToLower(strings.TrimSpace(req.PaymentMethod)) {
	case "":
		req.PaymentMethod = models.PaymentMethodPending
	case models.PaymentMethodOnline, models.PaymentMethodCOD, models.PaymentMethodPending:
		req.PaymentMethod = strings.ToLower(strings.TrimSpace(req.PaymentMethod))
	default:
		return apperrors.ErrInvalidPaymentMethod
	}
	return nil
}

// CreateOrder converts a checkout payload into an order. Stock deduction, order and sub-order
// inserts and the cart clear commit together or not at all.
func (s *orderServiceImpl) CreateOrder(ctx context.Context, userID uuid.UUID, req CreateOrderRequest) (*OrderSummary, error) {
	ctx, span := tracer.Start(ctx, "OrderService.CreateOrder")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID.String()), attribute.Int("order.items", len(req.Items)))
	log := logger.FromContext(ctx, s.logger).With(zap.String("user_id", userID.String()))

	if err := validateCreateOrder(&req); err != nil {
		s.recordFailure(err)
		return nil, err
	}

	var idemKey string
	reserved := false
	if req.IdempotencyKey != "" {
		idemKey = userID.String() + ":" + req.IdempotencyKey
		summary, ok, err := s.reserveIdempotency(ctx, log, userID, idemKey)
		if err != nil || summary != nil {
			return summary, err
		}
		reserved = ok
	}

	order, err := s.placeOrder(ctx, userID, req, idemKey)
	if err != nil {
		if reserved {
			if relErr := s.idem.Release(ctx, idemKey); relErr != nil {
				log.Warn("Failed to release idempotency key", zap.Error(relErr))
			}
		}
		if idemKey != "" && errors.Is(err, gorm.ErrDuplicatedKey) {
			if existing, findErr := s.store.Orders().FindByIdempotencyKey(ctx, idemKey); findErr == nil {
				return summarize(existing), nil
			}
		}

		s.recordFailure(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "create order failed")
		if apperrors.IsClientError(err) {
			log.Warn("Order rejected", zap.Error(err))
			return nil, err
		}
		log.Error("Order creation failed", zap.Error(err))
		return nil, apperrors.From(err)
	}

	if reserved {
		if err := s.idem.Complete(ctx, idemKey, order.ID.String()); err != nil {
			log.Warn("Failed to record idempotency key", zap.Error(err))
		}
	}

	log.Info("Order placed",
		zap.String("order_id", order.ID.String()),
		zap.String("total_amount", order.TotalAmount.String()),
		zap.Int("sub_orders", len(order.SubOrders)),
	)
	span.SetAttributes(attribute.String("order.id", order.ID.String()))

	publishEvent(ctx, s.events, log, models.OrderEvent{
		Type:        models.EventOrderPlaced,
		OrderID:     order.ID,
		UserID:      &order.UserID,
		TotalAmount: order.TotalAmount,
		Status:      order.OrderStatus,
		Timestamp:   order.CreatedAt,
	})

	amount := order.TotalAmount.InexactFloat64()
	recordAsync(s.metrics, func(ctx context.Context, m MetricsRecorder, dims map[string]string) {
		_ = m.RecordCount(ctx, aws_pkg.MetricOrdersCreated, dims)
		_ = m.RecordValue(ctx, aws_pkg.MetricOrderAmount, amount, dims)
	})

	return summarize(order), nil
}

// reserveIdempotency returns the stored summary for a completed key, IDEMPOTENCY_IN_PROGRESS
// for an in-flight one, or reserved=true when this call owns the key. An unavailable store
// degrades to no idempotency; the unique order column still rejects duplicates.
func (s *orderServiceImpl) reserveIdempotency(ctx context.Context, log *zap.Logger, userID uuid.UUID, key string) (*OrderSummary, bool, error) {
	if s.idem == nil {
		return nil, false, nil
	}

	reserved, orderID, err := s.idem.Reserve(ctx, key)
	if err != nil {
		log.Warn("Idempotency store unavailable, continuing without reservation", zap.Error(err))
		return nil, false, nil
	}
	if reserved {
		return nil, true, nil
	}
	if orderID == "" {
		return nil, false, apperrors.ErrIdempotencyInProgress
	}

	id, err := uuid.Parse(orderID)
	if err != nil {
		return nil, false, apperrors.From(fmt.Errorf("corrupt idempotency record %q: %w", orderID, err))
	}
	existing, err := s.store.Orders().FindByIDAndUserID(ctx, id, userID)
	if err != nil {
		return nil, false, apperrors.From(fmt.Errorf("load order for idempotency key: %w", err))
	}
	log.Info("Returning existing order for idempotency key", zap.String("order_id", orderID))
	return summarize(existing), false, nil
}

type demand struct {
	productID uuid.UUID
	variantID *uuid.UUID
	quantity  decimal.Decimal
}

func demandKey(productID uuid.UUID, variantID *uuid.UUID) string {
	if variantID == nil {
		return productID.String() + ":"
	}
	return productID.String() + ":" + variantID.String()
}

// coalesce merges lines for the same product and variant, keeping first-seen order.
func coalesce(items []OrderItemInput) []demand {
	demands := make([]demand, 0, len(items))
	index := make(map[string]int, len(items))
	for _, item := range items {
		key := demandKey(item.ProductID, item.VariantID)
		if i, ok := index[key]; ok {
			demands[i].quantity = demands[i].quantity.Add(item.Quantity)
			continue
		}
		index[key] = len(demands)
		demands = append(demands, demand{productID: item.ProductID, variantID: item.VariantID, quantity: item.Quantity})
	}
	return demands
}

func distinctProductIDs(items []OrderItemInput) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(items))
	ids := make([]uuid.UUID, 0, len(items))
	for _, item := range items {
		if _, ok := seen[item.ProductID]; ok {
			continue
		}
		seen[item.ProductID] = struct{}{}
		ids = append(ids, item.ProductID)
	}
	return ids
}

func (s *orderServiceImpl) placeOrder(ctx context.Context, userID uuid.UUID, req CreateOrderRequest, idemKey string) (*models.Order, error) {
	now := s.now()
	var order *models.Order

	err := s.store.Transaction(ctx, func(tx repository.DataStore) error {
		demands := coalesce(req.Items)
		if err := s.compareCart(ctx, tx, userID, demands); err != nil {
			return err
		}

		productIDs := distinctProductIDs(req.Items)
		products, err := tx.Products().FindByIDs(ctx, productIDs)
		if err != nil {
			return fmt.Errorf("load products: %w", err)
		}
		if len(products) != len(productIDs) {
			return apperrors.ErrProductsNotFound
		}
		byID := make(map[uuid.UUID]*models.Product, len(products))
		for i := range products {
			byID[products[i].ID] = &products[i]
		}

		// plan every demand before touching stock
		plans := make(map[string]AllocationPlan, len(demands))
		var all AllocationPlan
		for _, d := range demands {
			product := byID[d.productID]
			if product.PricingMode == models.PricingFixed && d.variantID == nil {
				return apperrors.ErrMissingVariant.WithMessage(product.Name + " requires a variant")
			}
			plan, err := Allocate(product, VariantScope(d.variantID), d.quantity, now)
			if err != nil {
				return err
			}
			plans[demandKey(d.productID, d.variantID)] = plan
			all = append(all, plan...)
		}

		for _, entry := range all {
			if err := tx.Products().DecrementBatch(ctx, entry.ProductID, entry.BatchID, entry.Quantity); err != nil {
				if errors.Is(err, repository.ErrConflict) {
					return apperrors.ErrConcurrentStockUpdate
				}
				return fmt.Errorf("decrement batch %s: %w", entry.BatchID, err)
			}
		}

		lines := make([]OrderLine, 0, len(req.Items))
		for _, item := range req.Items {
			product := byID[item.ProductID]
			lines = append(lines, OrderLine{
				ProductID:    item.ProductID,
				VariantID:    item.VariantID,
				Quantity:     item.Quantity,
				Price:        item.Price,
				CategoryID:   product.CategoryID,
				CategoryName: product.Category.Name,
			})
		}
		groups := GroupByCategory(lines)

		order = buildOrder(userID, req, plans, idemKey, now)
		if err := tx.Orders().Create(ctx, order); err != nil {
			return fmt.Errorf("create order: %w", err)
		}

		subOrders := buildSubOrders(order.ID, groups, now)
		if err := tx.Orders().CreateSubOrders(ctx, subOrders); err != nil {
			return fmt.Errorf("create sub-orders: %w", err)
		}
		order.SubOrders = subOrders

		if err := tx.Carts().Clear(ctx, userID); err != nil {
			return fmt.Errorf("clear cart: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

// compareCart reads the stored cart at checkout start. The payload decides what is ordered; a
// stored cart that disagrees with it is only reported.
func (s *orderServiceImpl) compareCart(ctx context.Context, tx repository.DataStore, userID uuid.UUID, demands []demand) error {
	cart, err := tx.Carts().FindByUserID(ctx, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load cart: %w", err)
	}
	if !cartMatches(cart, demands) {
		logger.FromContext(ctx, s.logger).Warn("Checkout payload differs from stored cart",
			zap.String("user_id", userID.String()),
			zap.Int("cart_lines", len(cart.Items)),
			zap.Int("payload_lines", len(demands)),
		)
	}
	return nil
}

func cartMatches(cart *models.Cart, demands []demand) bool {
	stored := make(map[string]decimal.Decimal, len(cart.Items))
	for _, item := range cart.Items {
		key := demandKey(item.ProductID, item.VariantID)
		stored[key] = stored[key].Add(item.Quantity)
	}
	if len(stored) != len(demands) {
		return false
	}
	for _, d := range demands {
		qty, ok := stored[demandKey(d.productID, d.variantID)]
		if !ok || !qty.Equal(d.quantity) {
			return false
		}
	}
	return true
}

// buildOrder snapshots the request into an order. The batches that fulfilled a coalesced
// demand are recorded on the first line carrying that product and variant.
func buildOrder(userID uuid.UUID, req CreateOrderRequest, plans map[string]AllocationPlan, idemKey string, now time.Time) *models.Order {
	paymentStatus := models.PaymentStatusPending
	if req.PaymentMethod == models.PaymentMethodOnline {
		paymentStatus = models.PaymentStatusPaid
	}

	order := &models.Order{
		ID:            uuid.New(),
		UserID:        userID,
		TotalAmount:   req.TotalAmount,
		PaymentMethod: req.PaymentMethod,
		PaymentStatus: paymentStatus,
		OrderStatus:   models.OrderStatusPlaced,
		Address:       req.Address,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if idemKey != "" {
		order.IdempotencyKey = &idemKey
	}

	annotated := make(map[string]bool, len(plans))
	for _, item := range req.Items {
		line := models.OrderItem{
			ID:        uuid.New(),
			OrderID:   order.ID,
			ProductID: item.ProductID,
			VariantID: item.VariantID,
			Quantity:  item.Quantity,
			Price:     item.Price,
		}
		key := demandKey(item.ProductID, item.VariantID)
		if !annotated[key] {
			annotated[key] = true
			for _, e := range plans[key] {
				line.BatchesUsed = append(line.BatchesUsed, models.OrderItemBatch{
					ID:               uuid.New(),
					OrderItemID:      line.ID,
					BatchID:          e.BatchID,
					StoreID:          e.StoreID,
					QuantityDeducted: e.Quantity,
				})
			}
		}
		order.Items = append(order.Items, line)
	}
	return order
}

func buildSubOrders(orderID uuid.UUID, groups []CategoryGroup, now time.Time) []models.SubOrder {
	subOrders := make([]models.SubOrder, 0, len(groups))
	for i, g := range groups {
		sub := models.SubOrder{
			ID:             uuid.New(),
			OrderID:        orderID,
			CategoryID:     g.CategoryID,
			CategoryName:   g.CategoryName,
			TotalAmount:    g.Subtotal,
			DeliveryStatus: models.DeliveryPending,
			// distinct timestamps keep category order stable when sorting by created_at
			CreatedAt: now.Add(time.Duration(i) * time.Microsecond),
			UpdatedAt: now,
		}
		for _, line := range g.Lines {
			sub.Items = append(sub.Items, models.SubOrderItem{
				ID:         uuid.New(),
				SubOrderID: sub.ID,
				ProductID:  line.ProductID,
				VariantID:  line.VariantID,
				Quantity:   line.Quantity,
				Price:      line.Price,
			})
		}
		subOrders = append(subOrders, sub)
	}
	return subOrders
}

func summarize(order *models.Order) *OrderSummary {
	return &OrderSummary{
		OrderID:       order.ID,
		TotalAmount:   order.TotalAmount,
		OrderStatus:   order.OrderStatus,
		PaymentStatus: order.PaymentStatus,
		SubOrderCount: len(order.SubOrders),
		CreatedAt:     order.CreatedAt,
	}
}

func (s *orderServiceImpl) recordFailure(err error) {
	conflict := errors.Is(err, apperrors.ErrConcurrentStockUpdate)
	recordAsync(s.metrics, func(ctx context.Context, m MetricsRecorder, dims map[string]string) {
		_ = m.RecordCount(ctx, aws_pkg.MetricOrdersFailed, dims)
		if conflict {
			_ = m.RecordCount(ctx, aws_pkg.MetricStockConflicts, dims)
		}
	})
}

// ListOrders returns the caller's orders, newest first.
func (s *orderServiceImpl) ListOrders(ctx context.Context, userID uuid.UUID, page, limit int) (*Paginated[models.Order], error) {
	page, limit = NormalizePage(page, limit)
	orders, total, err := s.store.Orders().FindByUserID(ctx, userID, page, limit)
	if err != nil {
		logger.FromContext(ctx, s.logger).Error("Failed to fetch orders", zap.String("user_id", userID.String()), zap.Error(err))
		return nil, apperrors.From(err)
	}
	return newPaginated(orders, total, page, limit), nil
}

// GetOrder returns one of the caller's orders. Orders of other users are reported as not found.
func (s *orderServiceImpl) GetOrder(ctx context.Context, userID, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.store.Orders().FindByIDAndUserID(ctx, orderID, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrOrderNotFound
		}
		logger.FromContext(ctx, s.logger).Error("Failed to fetch order", zap.String("order_id", orderID.String()), zap.Error(err))
		return nil, apperrors.From(err)
	}
	return order, nil
}
