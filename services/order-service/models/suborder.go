package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type DeliveryStatus string

const (
	DeliveryPending        DeliveryStatus = "pending"
	DeliveryAccepted       DeliveryStatus = "accepted"
	DeliveryOutForDelivery DeliveryStatus = "out_for_delivery"
	DeliveryDelivered      DeliveryStatus = "delivered"
)

// SubOrder is the per-category split of an order, delivered independently.
type SubOrder struct {
	ID               uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	OrderID          uuid.UUID       `gorm:"type:uuid;not null;index:idx_sub_orders_order_category,priority:1" json:"order_id"`
	Order            *Order          `gorm:"foreignKey:OrderID" json:"order,omitempty"`
	CategoryID       uuid.UUID       `gorm:"type:uuid;not null;index:idx_sub_orders_order_category,priority:2" json:"category_id"`
	CategoryName     string          `gorm:"not null" json:"category_name"`
	Items            []SubOrderItem  `gorm:"foreignKey:SubOrderID;constraint:OnDelete:CASCADE" json:"items"`
	TotalAmount      decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"total_amount"`
	DeliveryStatus   DeliveryStatus  `gorm:"type:varchar(20);not null;default:'pending';index:idx_sub_orders_status_assignee,priority:1" json:"delivery_status"`
	DeliveryBoyID    *uuid.UUID      `gorm:"type:uuid;index:idx_sub_orders_status_assignee,priority:2" json:"delivery_boy_id"`
	DeliveryLocation Location        `gorm:"embedded;embeddedPrefix:delivery_" json:"delivery_location"`
	CreatedAt        time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type SubOrderItem struct {
	ID         uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"-"`
	SubOrderID uuid.UUID       `gorm:"type:uuid;not null;index" json:"-"`
	ProductID  uuid.UUID       `gorm:"type:uuid;not null" json:"product_id"`
	VariantID  *uuid.UUID      `gorm:"type:uuid" json:"variant_id"`
	Quantity   decimal.Decimal `gorm:"type:numeric(14,3);not null" json:"quantity"`
	Price      decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"price"`
}
