package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Mahender-77/KTLServer/services/order-service/models"
)

// CartRepository covers the two cart operations checkout needs.
type CartRepository interface {
	FindByUserID(ctx context.Context, userID uuid.UUID) (*models.Cart, error)
	Clear(ctx context.Context, userID uuid.UUID) error
}

// GormCartRepository implements CartRepository using GORM.
type GormCartRepository struct {
	db *gorm.DB
}

// NewGormCartRepository creates a new GormCartRepository.
func NewGormCartRepository(db *gorm.DB) CartRepository {
	return &GormCartRepository{db: db}
}

func (r *GormCartRepository) FindByUserID(ctx context.Context, userID uuid.UUID) (*models.Cart, error) {
	var cart models.Cart
	if err := r.db.WithContext(ctx).
		Preload("Items").
		First(&cart, "user_id = ?", userID).Error; err != nil {
		return nil, err
	}
	return &cart, nil
}

// Clear removes every line from the user's cart. A user without a cart is not an error.
func (r *GormCartRepository) Clear(ctx context.Context, userID uuid.UUID) error {
	db := r.db.WithContext(ctx)
	return db.
		Where("cart_id IN (?)", db.Model(&models.Cart{}).Select("id").Where("user_id = ?", userID)).
		Delete(&models.CartItem{}).Error
}
