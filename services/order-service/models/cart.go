package models

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Cart is read and cleared by checkout; every other mutation belongs to the cart service.
type Cart struct {
	ID     uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	UserID uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex" json:"user_id"`
	Items  []CartItem `gorm:"foreignKey:CartID;constraint:OnDelete:CASCADE" json:"items"`
}

type CartItem struct {
	ID        uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	CartID    uuid.UUID       `gorm:"type:uuid;not null;index" json:"-"`
	ProductID uuid.UUID       `gorm:"type:uuid;not null" json:"product_id"`
	VariantID *uuid.UUID      `gorm:"type:uuid" json:"variant_id"`
	Quantity  decimal.Decimal `gorm:"type:numeric(14,3);not null" json:"quantity"`
}
