package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Mahender-77/KTLServer/services/order-service/models"
)

// OrderRepository defines the interface for order data access
type OrderRepository interface {
	Create(ctx context.Context, order *models.Order) error
	CreateSubOrders(ctx context.Context, subOrders []models.SubOrder) error
	FindByUserID(ctx context.Context, userID uuid.UUID, page, limit int) ([]models.Order, int64, error)
	FindByIDAndUserID(ctx context.Context, orderID, userID uuid.UUID) (*models.Order, error)
	FindByID(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	FindByIdempotencyKey(ctx context.Context, key string) (*models.Order, error)
	MarkDelivered(ctx context.Context, orderID uuid.UUID) error
}

// GormOrderRepository implements OrderRepository using GORM
type GormOrderRepository struct {
	db *gorm.DB
}

// NewGormOrderRepository creates a new instance of GormOrderRepository
func NewGormOrderRepository(db *gorm.DB) OrderRepository {
	return &GormOrderRepository{db: db}
}

func subOrdersByCreation(db *gorm.DB) *gorm.DB {
	return db.Order("created_at ASC")
}

func (r *GormOrderRepository) withDetails(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Preload("Items.BatchesUsed").
		Preload("SubOrders", subOrdersByCreation).
		Preload("SubOrders.Items")
}

// Create inserts the order with its line items and their batch fulfilment rows.
func (r *GormOrderRepository) Create(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).Omit("SubOrders").Create(order).Error
}

// CreateSubOrders inserts sub-orders with their items, in slice order.
func (r *GormOrderRepository) CreateSubOrders(ctx context.Context, subOrders []models.SubOrder) error {
	if len(subOrders) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Omit("Order").Create(&subOrders).Error
}

// FindByUserID retrieves orders for a specific user with pagination
func (r *GormOrderRepository) FindByUserID(ctx context.Context, userID uuid.UUID, page, limit int) ([]models.Order, int64, error) {
	var orders []models.Order
	var total int64

	if err := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("user_id = ?", userID).
		Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	if err := r.withDetails(ctx).
		Where("user_id = ?", userID).
		Offset(offset).
		Limit(limit).
		Order("created_at DESC").
		Find(&orders).Error; err != nil {
		return nil, 0, err
	}

	return orders, total, nil
}

// FindByIDAndUserID retrieves a specific order for a user
func (r *GormOrderRepository) FindByIDAndUserID(ctx context.Context, orderID, userID uuid.UUID) (*models.Order, error) {
	var order models.Order

	if err := r.withDetails(ctx).
		Where("id = ? AND user_id = ?", orderID, userID).
		First(&order).Error; err != nil {
		return nil, err
	}

	return &order, nil
}

func (r *GormOrderRepository) FindByID(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	var order models.Order
	if err := r.db.WithContext(ctx).
		Preload("SubOrders", subOrdersByCreation).
		First(&order, "id = ?", orderID).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *GormOrderRepository) FindByIdempotencyKey(ctx context.Context, key string) (*models.Order, error) {
	var order models.Order
	if err := r.db.WithContext(ctx).
		Preload("SubOrders", subOrdersByCreation).
		First(&order, "idempotency_key = ?", key).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

// MarkDelivered sets the order status to delivered. Writing it twice is harmless.
func (r *GormOrderRepository) MarkDelivered(ctx context.Context, orderID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", orderID).
		Update("order_status", models.OrderStatusDelivered).Error
}
