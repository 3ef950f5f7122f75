package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type PricingMode string

const (
	PricingFixed        PricingMode = "fixed"
	PricingCustomWeight PricingMode = "custom-weight"
	PricingUnit         PricingMode = "unit"
)

// Category and Store are reference data owned by the catalog; the order service only reads them.
type Category struct {
	ID   uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Name string    `gorm:"not null" json:"name"`
	Slug string    `gorm:"uniqueIndex" json:"slug"`
}

type Store struct {
	ID       uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Name     string    `gorm:"not null" json:"name"`
	IsActive bool      `gorm:"not null;default:true" json:"is_active"`
}

type Product struct {
	ID            uuid.UUID           `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Name          string              `gorm:"not null" json:"name"`
	Slug          string              `gorm:"uniqueIndex" json:"slug"`
	Description   string              `json:"description,omitempty"`
	CategoryID    uuid.UUID           `gorm:"type:uuid;not null;index:idx_products_active_category,priority:2" json:"category_id"`
	Category      Category            `gorm:"foreignKey:CategoryID" json:"category"`
	PricingMode   PricingMode         `gorm:"type:varchar(20);not null;default:'unit'" json:"pricing_mode"`
	BaseUnit      string              `gorm:"type:varchar(10);not null" json:"base_unit"`
	PricePerUnit  decimal.Decimal     `gorm:"type:numeric(12,2);not null" json:"price_per_unit"`
	HasExpiry     bool                `gorm:"not null;default:false" json:"has_expiry"`
	ShelfLifeDays *int                `json:"shelf_life_days,omitempty"`
	Tags          []string            `gorm:"serializer:json;type:jsonb" json:"tags,omitempty"`
	MinOrderQty   decimal.NullDecimal `gorm:"type:numeric(14,3)" json:"min_order_qty"`
	MaxOrderQty   decimal.NullDecimal `gorm:"type:numeric(14,3)" json:"max_order_qty"`
	TaxRate       decimal.NullDecimal `gorm:"type:numeric(5,2)" json:"tax_rate"`
	IsActive      bool                `gorm:"not null;default:true;index:idx_products_active_category,priority:1" json:"is_active"`
	Variants      []Variant           `gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE" json:"variants"`
	Batches       []InventoryBatch    `gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE" json:"-"`
	CreatedAt     time.Time           `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time           `gorm:"autoUpdateTime" json:"updated_at"`
}

// HasVariant reports whether variantID belongs to the product.
func (p *Product) HasVariant(variantID uuid.UUID) bool {
	for _, v := range p.Variants {
		if v.ID == variantID {
			return true
		}
	}
	return false
}

type Variant struct {
	ID         uuid.UUID           `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	ProductID  uuid.UUID           `gorm:"type:uuid;not null;index" json:"-"`
	Type       string              `gorm:"type:varchar(10);not null" json:"type"`
	Value      decimal.Decimal     `gorm:"type:numeric(12,3);not null" json:"value"`
	Unit       string              `gorm:"type:varchar(5);not null" json:"unit"`
	Price      decimal.Decimal     `gorm:"type:numeric(12,2);not null" json:"price"`
	OfferPrice decimal.NullDecimal `gorm:"type:numeric(12,2)" json:"offer_price"`
	SKU        string              `json:"sku,omitempty"`
}

// InventoryBatch is a physical stock lot. Quantity is in the product's base unit and never
// goes below zero; rows are never deleted.
type InventoryBatch struct {
	ID                uuid.UUID           `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	ProductID         uuid.UUID           `gorm:"type:uuid;not null;uniqueIndex:idx_batch_identity,priority:1;index:idx_batches_product_store,priority:1" json:"product_id"`
	StoreID           uuid.UUID           `gorm:"type:uuid;not null;uniqueIndex:idx_batch_identity,priority:2;index:idx_batches_product_store,priority:2" json:"store_id"`
	Store             *Store              `gorm:"foreignKey:StoreID" json:"store,omitempty"`
	VariantID         *uuid.UUID          `gorm:"type:uuid;uniqueIndex:idx_batch_identity,priority:3" json:"variant_id"`
	Quantity          decimal.Decimal     `gorm:"type:numeric(14,3);not null;check:chk_batch_quantity_non_negative,quantity >= 0" json:"quantity"`
	ManufacturingDate *time.Time          `json:"manufacturing_date,omitempty"`
	ExpiryDate        *time.Time          `gorm:"index" json:"expiry_date,omitempty"`
	BatchNumber       string              `gorm:"not null;uniqueIndex:idx_batch_identity,priority:4" json:"batch_number"`
	CostPrice         decimal.NullDecimal `gorm:"type:numeric(12,2)" json:"cost_price"`
	CreatedAt         time.Time           `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time           `gorm:"autoUpdateTime" json:"updated_at"`
}

// SameVariant reports whether the batch belongs to variantID, where nil means "no variant".
func (b *InventoryBatch) SameVariant(variantID *uuid.UUID) bool {
	if b.VariantID == nil || variantID == nil {
		return b.VariantID == nil && variantID == nil
	}
	return *b.VariantID == *variantID
}
