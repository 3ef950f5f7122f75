package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	apperrors "github.com/Mahender-77/KTLServer/services/common/errors"
	"github.com/Mahender-77/KTLServer/services/common/logger"
	"github.com/Mahender-77/KTLServer/services/order-service/models"
	"github.com/Mahender-77/KTLServer/services/order-service/repository"
)

type StoreVariantStock struct {
	StoreID        uuid.UUID       `json:"store"`
	VariantID      *uuid.UUID      `json:"variant"`
	AvailableStock decimal.Decimal `json:"available_stock"`
}

// ProductListing is the storefront view of a product. Batches are never exposed.
type ProductListing struct {
	ID                  uuid.UUID           `json:"id"`
	Name                string              `json:"name"`
	Slug                string              `json:"slug"`
	Description         string              `json:"description,omitempty"`
	Category            models.Category     `json:"category"`
	PricingMode         models.PricingMode  `json:"pricing_mode"`
	BaseUnit            string              `json:"base_unit"`
	PricePerUnit        decimal.Decimal     `json:"price_per_unit"`
	HasExpiry           bool                `json:"has_expiry"`
	Tags                []string            `json:"tags,omitempty"`
	Variants            []models.Variant    `json:"variants"`
	AvailableQuantity   decimal.Decimal     `json:"available_quantity"`
	NearestExpiry       *time.Time          `json:"nearest_expiry"`
	StockByStoreVariant []StoreVariantStock `json:"stock_by_store_variant"`
}

type AdminBatch struct {
	ID                uuid.UUID           `json:"id"`
	StoreID           uuid.UUID           `json:"store_id"`
	StoreName         string              `json:"store_name"`
	VariantID         *uuid.UUID          `json:"variant_id"`
	Quantity          decimal.Decimal     `json:"quantity"`
	ManufacturingDate *time.Time          `json:"manufacturing_date,omitempty"`
	ExpiryDate        *time.Time          `json:"expiry_date,omitempty"`
	BatchNumber       string              `json:"batch_number"`
	CostPrice         decimal.NullDecimal `json:"cost_price"`
	CreatedAt         time.Time           `json:"created_at"`
}

// AdminProductView is the back-office view of a product with every batch.
type AdminProductView struct {
	models.Product
	Batches       []AdminBatch    `json:"batches"`
	TotalQuantity decimal.Decimal `json:"total_quantity"`
}

// ListingProjection derives the storefront view. Stock figures only count batches that can
// still be sold at now.
func ListingProjection(p *models.Product, now time.Time) ProductListing {
	view := ProductListing{
		ID:                  p.ID,
		Name:                p.Name,
		Slug:                p.Slug,
		Description:         p.Description,
		Category:            p.Category,
		PricingMode:         p.PricingMode,
		BaseUnit:            p.BaseUnit,
		PricePerUnit:        p.PricePerUnit,
		HasExpiry:           p.HasExpiry,
		Tags:                p.Tags,
		Variants:            p.Variants,
		AvailableQuantity:   decimal.Zero,
		StockByStoreVariant: []StoreVariantStock{},
	}
	if view.Variants == nil {
		view.Variants = []models.Variant{}
	}

	index := make(map[string]int)
	for _, b := range eligibleBatches(p, AllocationScope{}, now) {
		view.AvailableQuantity = view.AvailableQuantity.Add(b.Quantity)
		if b.ExpiryDate != nil && (view.NearestExpiry == nil || b.ExpiryDate.Before(*view.NearestExpiry)) {
			expiry := *b.ExpiryDate
			view.NearestExpiry = &expiry
		}

		key := demandKey(b.StoreID, b.VariantID)
		i, ok := index[key]
		if !ok {
			i = len(view.StockByStoreVariant)
			index[key] = i
			view.StockByStoreVariant = append(view.StockByStoreVariant, StoreVariantStock{
				StoreID:        b.StoreID,
				VariantID:      b.VariantID,
				AvailableStock: decimal.Zero,
			})
		}
		view.StockByStoreVariant[i].AvailableStock = view.StockByStoreVariant[i].AvailableStock.Add(b.Quantity)
	}
	return view
}

// AdminProjection derives the back-office view with raw batches, expired and empty ones
// included.
func AdminProjection(p *models.Product) AdminProductView {
	view := AdminProductView{
		Product:       *p,
		Batches:       make([]AdminBatch, 0, len(p.Batches)),
		TotalQuantity: decimal.Zero,
	}
	for _, b := range p.Batches {
		batch := AdminBatch{
			ID:                b.ID,
			StoreID:           b.StoreID,
			VariantID:         b.VariantID,
			Quantity:          b.Quantity,
			ManufacturingDate: b.ManufacturingDate,
			ExpiryDate:        b.ExpiryDate,
			BatchNumber:       b.BatchNumber,
			CostPrice:         b.CostPrice,
			CreatedAt:         b.CreatedAt,
		}
		if b.Store != nil {
			batch.StoreName = b.Store.Name
		}
		view.Batches = append(view.Batches, batch)
		view.TotalQuantity = view.TotalQuantity.Add(b.Quantity)
	}
	return view
}

// ProductService serves the catalog views. It never writes.
type ProductService interface {
	ListPublic(ctx context.Context, categoryID *uuid.UUID, page, limit int) (*Paginated[ProductListing], error)
	GetPublic(ctx context.Context, id uuid.UUID) (*ProductListing, error)
	GetForAdmin(ctx context.Context, id uuid.UUID) (*AdminProductView, error)
}

type productServiceImpl struct {
	store  repository.DataStore
	logger *zap.Logger
	now    func() time.Time
}

// NewProductService creates a new ProductService.
func NewProductService(store repository.DataStore, logger *zap.Logger) ProductService {
	return &productServiceImpl{
		store:  store,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// ListPublic lists active products with stock. Products whose only stock has expired are
// dropped from the page after projection; the total still counts them.
func (s *productServiceImpl) ListPublic(ctx context.Context, categoryID *uuid.UUID, page, limit int) (*Paginated[ProductListing], error) {
	page, limit = NormalizePage(page, limit)
	products, total, err := s.store.Products().ListActiveInStock(ctx, categoryID, page, limit)
	if err != nil {
		logger.FromContext(ctx, s.logger).Error("Failed to list products", zap.Error(err))
		return nil, apperrors.From(err)
	}

	now := s.now()
	listings := make([]ProductListing, 0, len(products))
	for i := range products {
		view := ListingProjection(&products[i], now)
		if products[i].HasExpiry && !view.AvailableQuantity.IsPositive() {
			continue
		}
		listings = append(listings, view)
	}
	return newPaginated(listings, total, page, limit), nil
}

func (s *productServiceImpl) GetPublic(ctx context.Context, id uuid.UUID) (*ProductListing, error) {
	product, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if !product.IsActive {
		return nil, apperrors.ErrProductNotFound
	}
	view := ListingProjection(product, s.now())
	return &view, nil
}

func (s *productServiceImpl) GetForAdmin(ctx context.Context, id uuid.UUID) (*AdminProductView, error) {
	product, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	view := AdminProjection(product)
	return &view, nil
}

func (s *productServiceImpl) find(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	product, err := s.store.Products().FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrProductNotFound
		}
		logger.FromContext(ctx, s.logger).Error("Failed to fetch product", zap.String("product_id", id.String()), zap.Error(err))
		return nil, apperrors.From(err)
	}
	return product, nil
}
