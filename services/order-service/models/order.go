package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	PaymentStatusPending = "pending"
	PaymentStatusPaid    = "paid"
	PaymentStatusFailed  = "failed"
)

const (
	OrderStatusPlaced    = "placed"
	OrderStatusShipped   = "shipped"
	OrderStatusDelivered = "delivered"
	OrderStatusCancelled = "cancelled"
)

const (
	PaymentMethodOnline  = "online"
	PaymentMethodCOD     = "cod"
	PaymentMethodPending = "pending"
)

// Address is the shipping address snapshot copied onto the order at checkout.
type Address struct {
	Name     string `gorm:"column:name" json:"name"`
	Phone    string `gorm:"column:phone" json:"phone"`
	Line     string `gorm:"column:line" json:"address"`
	City     string `gorm:"column:city" json:"city"`
	Pincode  string `gorm:"column:pincode" json:"pincode"`
	Landmark string `gorm:"column:landmark" json:"landmark"`
}

// Complete reports whether every required field is present.
func (a Address) Complete() bool {
	return a.Name != "" && a.Phone != "" && a.Line != "" && a.City != "" && a.Pincode != ""
}

// Location is a delivery person's last reported position.
type Location struct {
	Latitude    *float64   `gorm:"column:lat" json:"latitude"`
	Longitude   *float64   `gorm:"column:lng" json:"longitude"`
	LastUpdated *time.Time `gorm:"column:location_updated_at" json:"last_updated"`
}

type Order struct {
	ID               uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	UserID           uuid.UUID       `gorm:"type:uuid;not null;index:idx_orders_user_created,priority:1" json:"user_id"`
	TotalAmount      decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"total_amount"`
	PaymentMethod    string          `gorm:"type:varchar(20);not null;default:'pending'" json:"payment_method"`
	PaymentStatus    string          `gorm:"type:varchar(20);not null;default:'pending'" json:"payment_status"`
	OrderStatus      string          `gorm:"type:varchar(20);not null;default:'placed'" json:"order_status"`
	Address          Address         `gorm:"embedded;embeddedPrefix:address_" json:"address"`
	DeliveryPersonID *uuid.UUID      `gorm:"type:uuid" json:"delivery_person_id"`
	DeliveryLocation Location        `gorm:"embedded;embeddedPrefix:delivery_" json:"delivery_location"`
	IdempotencyKey   *string         `gorm:"uniqueIndex" json:"-"`
	Items            []OrderItem     `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE" json:"items"`
	SubOrders        []SubOrder      `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE" json:"sub_orders"`
	CreatedAt        time.Time       `gorm:"autoCreateTime;index:idx_orders_user_created,priority:2,sort:desc" json:"created_at"`
	UpdatedAt        time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type OrderItem struct {
	ID          uuid.UUID        `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	OrderID     uuid.UUID        `gorm:"type:uuid;not null;index" json:"-"`
	ProductID   uuid.UUID        `gorm:"type:uuid;not null" json:"product_id"`
	VariantID   *uuid.UUID       `gorm:"type:uuid" json:"variant_id"`
	Quantity    decimal.Decimal  `gorm:"type:numeric(14,3);not null" json:"quantity"`
	Price       decimal.Decimal  `gorm:"type:numeric(12,2);not null" json:"price"`
	BatchesUsed []OrderItemBatch `gorm:"foreignKey:OrderItemID;constraint:OnDelete:CASCADE" json:"batches_used"`
}

// OrderItemBatch records one batch deduction that fulfilled an order line.
type OrderItemBatch struct {
	ID               uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"-"`
	OrderItemID      uuid.UUID       `gorm:"type:uuid;not null;index" json:"-"`
	BatchID          uuid.UUID       `gorm:"type:uuid;not null" json:"batch_id"`
	StoreID          uuid.UUID       `gorm:"type:uuid;not null" json:"store_id"`
	QuantityDeducted decimal.Decimal `gorm:"type:numeric(14,3);not null" json:"quantity_deducted"`
}
