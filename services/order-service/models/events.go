package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Order lifecycle events published to the configured event bus.
const (
	EventOrderPlaced            = "order.placed"
	EventOrderDelivered         = "order.delivered"
	EventSubOrderAccepted       = "suborder.accepted"
	EventSubOrderOutForDelivery = "suborder.out_for_delivery"
	EventSubOrderDelivered      = "suborder.delivered"
)

type OrderEvent struct {
	Type             string          `json:"type"`
	OrderID          uuid.UUID       `json:"order_id"`
	SubOrderID       *uuid.UUID      `json:"sub_order_id,omitempty"`
	UserID           *uuid.UUID      `json:"user_id,omitempty"`
	DeliveryPersonID *uuid.UUID      `json:"delivery_person_id,omitempty"`
	TotalAmount      decimal.Decimal `json:"total_amount"`
	Status           string          `json:"status"`
	Timestamp        time.Time       `json:"timestamp"`
}
