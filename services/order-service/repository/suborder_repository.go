package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Mahender-77/KTLServer/services/order-service/models"
)

// SubOrderRepository defines data-access operations for sub-orders. Every state change is a
// single guarded UPDATE; a guard that matches no row yields ErrConflict.
type SubOrderRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.SubOrder, error)
	FindClaimable(ctx context.Context, deliveryPersonID uuid.UUID, page, limit int) ([]models.SubOrder, int64, error)
	Claim(ctx context.Context, id, deliveryPersonID uuid.UUID) error
	Advance(ctx context.Context, id, deliveryPersonID uuid.UUID, from, to models.DeliveryStatus) error
	CountUndelivered(ctx context.Context, orderID uuid.UUID) (int64, error)
	UpdateLocation(ctx context.Context, deliveryPersonID uuid.UUID, latitude, longitude float64, at time.Time) (int64, error)
}

// GormSubOrderRepository implements SubOrderRepository using GORM.
type GormSubOrderRepository struct {
	db *gorm.DB
}

// NewGormSubOrderRepository creates a new GormSubOrderRepository.
func NewGormSubOrderRepository(db *gorm.DB) SubOrderRepository {
	return &GormSubOrderRepository{db: db}
}

func (r *GormSubOrderRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.SubOrder, error) {
	var s models.SubOrder
	if err := r.db.WithContext(ctx).
		Preload("Items").
		Preload("Order").
		First(&s, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

// FindClaimable lists sub-orders assigned to the delivery person plus every unassigned pending
// one, newest first.
func (r *GormSubOrderRepository) FindClaimable(ctx context.Context, deliveryPersonID uuid.UUID, page, limit int) ([]models.SubOrder, int64, error) {
	var subOrders []models.SubOrder
	var total int64

	query := r.db.WithContext(ctx).
		Model(&models.SubOrder{}).
		Where("delivery_boy_id = ? OR (delivery_boy_id IS NULL AND delivery_status = ?)", deliveryPersonID, models.DeliveryPending)

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	if err := query.
		Preload("Items").
		Preload("Order").
		Offset(offset).
		Limit(limit).
		Order("created_at DESC").
		Find(&subOrders).Error; err != nil {
		return nil, 0, err
	}

	return subOrders, total, nil
}

// Claim assigns an unassigned pending sub-order to the delivery person.
func (r *GormSubOrderRepository) Claim(ctx context.Context, id, deliveryPersonID uuid.UUID) error {
	res := r.db.WithContext(ctx).
		Model(&models.SubOrder{}).
		Where("id = ? AND delivery_status = ? AND delivery_boy_id IS NULL", id, models.DeliveryPending).
		Updates(map[string]interface{}{
			"delivery_status": models.DeliveryAccepted,
			"delivery_boy_id": deliveryPersonID,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrConflict
	}
	return nil
}

// Advance moves a sub-order held by the delivery person from one status to the next.
func (r *GormSubOrderRepository) Advance(ctx context.Context, id, deliveryPersonID uuid.UUID, from, to models.DeliveryStatus) error {
	res := r.db.WithContext(ctx).
		Model(&models.SubOrder{}).
		Where("id = ? AND delivery_boy_id = ? AND delivery_status = ?", id, deliveryPersonID, from).
		Update("delivery_status", to)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrConflict
	}
	return nil
}

func (r *GormSubOrderRepository) CountUndelivered(ctx context.Context, orderID uuid.UUID) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.SubOrder{}).
		Where("order_id = ? AND delivery_status <> ?", orderID, models.DeliveryDelivered).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// UpdateLocation overwrites the location on every active sub-order of the delivery person, mirrors
// it with the delivery person onto the parent orders, and returns how many sub-orders were updated.
func (r *GormSubOrderRepository) UpdateLocation(ctx context.Context, deliveryPersonID uuid.UUID, latitude, longitude float64, at time.Time) (int64, error) {
	active := []models.DeliveryStatus{models.DeliveryAccepted, models.DeliveryOutForDelivery}
	var updated int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.SubOrder{}).
			Where("delivery_boy_id = ? AND delivery_status IN ?", deliveryPersonID, active).
			Updates(map[string]interface{}{
				"delivery_lat":                 latitude,
				"delivery_lng":                 longitude,
				"delivery_location_updated_at": at,
			})
		if res.Error != nil {
			return res.Error
		}
		updated = res.RowsAffected
		if updated == 0 {
			return nil
		}

		held := tx.Model(&models.SubOrder{}).
			Select("order_id").
			Where("delivery_boy_id = ? AND delivery_status IN ?", deliveryPersonID, active)
		return tx.Model(&models.Order{}).
			Where("id IN (?)", held).
			Updates(map[string]interface{}{
				"delivery_person_id":           deliveryPersonID,
				"delivery_lat":                 latitude,
				"delivery_lng":                 longitude,
				"delivery_location_updated_at": at,
			}).Error
	})
	if err != nil {
		return 0, err
	}
	return updated, nil
}
