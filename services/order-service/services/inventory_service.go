package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"gorm.io/gorm"

	aws_pkg "github.com/Mahender-77/KTLServer/pkg/aws"
	apperrors "github.com/Mahender-77/KTLServer/services/common/errors"
	"github.com/Mahender-77/KTLServer/services/common/logger"
	"github.com/Mahender-77/KTLServer/services/order-service/models"
	"github.com/Mahender-77/KTLServer/services/order-service/repository"
)

const (
	DefaultExpiringDays = 7
	maxExpiringDays     = 365
)

type AddBatchInput struct {
	StoreID           uuid.UUID           `json:"store_id" validate:"required"`
	VariantID         *uuid.UUID          `json:"variant_id"`
	Quantity          decimal.Decimal     `json:"quantity"`
	ManufacturingDate *time.Time          `json:"manufacturing_date"`
	ExpiryDate        *time.Time          `json:"expiry_date"`
	BatchNumber       string              `json:"batch_number" validate:"max=64"`
	CostPrice         decimal.NullDecimal `json:"cost_price"`
}

type DeductStockInput struct {
	StoreID  uuid.UUID       `json:"store_id" validate:"required"`
	Quantity decimal.Decimal `json:"quantity"`
}

type ExpiringBatch struct {
	BatchID     uuid.UUID       `json:"batch_id"`
	BatchNumber string          `json:"batch_number"`
	ExpiryDate  time.Time       `json:"expiry_date"`
	Quantity    decimal.Decimal `json:"quantity"`
}

// ExpiringBatchRow groups the expiring batches of one product, variant and store.
type ExpiringBatchRow struct {
	ProductID     uuid.UUID       `json:"product_id"`
	ProductName   string          `json:"product_name"`
	VariantID     *uuid.UUID      `json:"variant_id"`
	StoreID       uuid.UUID       `json:"store_id"`
	Batches       []ExpiringBatch `json:"batches"`
	TotalQuantity decimal.Decimal `json:"total_quantity"`
}

// InventoryService owns batch intake, single-store deduction and stock reporting.
type InventoryService interface {
	DeductStock(ctx context.Context, productID, storeID uuid.UUID, quantity decimal.Decimal) (AllocationPlan, error)
	GetAvailableStock(ctx context.Context, productID uuid.UUID, variantID *uuid.UUID, storeID uuid.UUID) (decimal.Decimal, error)
	AddBatch(ctx context.Context, productID uuid.UUID, input AddBatchInput) (*AdminProductView, error)
	GetExpiringBatches(ctx context.Context, days, page, limit int) (*Paginated[ExpiringBatchRow], error)
}

type inventoryServiceImpl struct {
	store    repository.DataStore
	metrics  MetricsRecorder
	logger   *zap.Logger
	validate *validator.Validate
	now      func() time.Time
}

// NewInventoryService creates a new InventoryService.
func NewInventoryService(store repository.DataStore, metrics MetricsRecorder, logger *zap.Logger) InventoryService {
	return &inventoryServiceImpl{
		store:    store,
		metrics:  metrics,
		logger:   logger,
		validate: validator.New(),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// DeductStock takes quantity from one store's batches, FEFO or FIFO, in a single transaction.
// A non-positive quantity is a no-op.
func (s *inventoryServiceImpl) DeductStock(ctx context.Context, productID, storeID uuid.UUID, quantity decimal.Decimal) (AllocationPlan, error) {
	ctx, span := tracer.Start(ctx, "InventoryService.DeductStock")
	defer span.End()
	span.SetAttributes(attribute.String("product.id", productID.String()), attribute.String("store.id", storeID.String()))
	log := logger.FromContext(ctx, s.logger)

	if !quantity.IsPositive() {
		return AllocationPlan{}, nil
	}
	if err := s.validate.Struct(DeductStockInput{StoreID: storeID, Quantity: quantity}); err != nil {
		return nil, apperrors.ErrValidation.WithMessage("store_id is required")
	}

	var plan AllocationPlan
	err := s.store.Transaction(ctx, func(tx repository.DataStore) error {
		product, err := tx.Products().FindByID(ctx, productID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.ErrProductNotFound
			}
			return fmt.Errorf("load product: %w", err)
		}

		plan, err = Allocate(product, StoreScope(storeID), quantity, s.now())
		if err != nil {
			return err
		}
		for _, entry := range plan {
			if err := tx.Products().DecrementBatch(ctx, entry.ProductID, entry.BatchID, entry.Quantity); err != nil {
				if errors.Is(err, repository.ErrConflict) {
					return apperrors.ErrConcurrentStockUpdate
				}
				return fmt.Errorf("decrement batch %s: %w", entry.BatchID, err)
			}
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, apperrors.ErrConcurrentStockUpdate) {
			recordAsync(s.metrics, func(ctx context.Context, m MetricsRecorder, dims map[string]string) {
				_ = m.RecordCount(ctx, aws_pkg.MetricStockConflicts, dims)
			})
		}
		if apperrors.IsClientError(err) {
			log.Warn("Stock deduction rejected", zap.String("product_id", productID.String()), zap.Error(err))
			return nil, err
		}
		log.Error("Stock deduction failed", zap.String("product_id", productID.String()), zap.Error(err))
		return nil, apperrors.From(err)
	}

	log.Info("Stock deducted",
		zap.String("product_id", productID.String()),
		zap.String("store_id", storeID.String()),
		zap.String("quantity", quantity.String()),
		zap.Int("batches", len(plan)),
	)
	deducted := quantity.InexactFloat64()
	recordAsync(s.metrics, func(ctx context.Context, m MetricsRecorder, dims map[string]string) {
		_ = m.RecordValue(ctx, aws_pkg.MetricInventoryDeducted, deducted, dims)
	})
	return plan, nil
}

// GetAvailableStock sums the sellable stock of one variant (or the no-variant stock) in one
// store. An unknown product has no stock.
func (s *inventoryServiceImpl) GetAvailableStock(ctx context.Context, productID uuid.UUID, variantID *uuid.UUID, storeID uuid.UUID) (decimal.Decimal, error) {
	product, err := s.store.Products().FindByID(ctx, productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return decimal.Zero, nil
		}
		return decimal.Zero, apperrors.From(err)
	}
	return AvailableQuantity(product, StoreVariantScope(storeID, variantID), s.now()), nil
}

// AddBatch records a new stock lot for a product and returns the refreshed admin view.
func (s *inventoryServiceImpl) AddBatch(ctx context.Context, productID uuid.UUID, input AddBatchInput) (*AdminProductView, error) {
	ctx, span := tracer.Start(ctx, "InventoryService.AddBatch")
	defer span.End()
	log := logger.FromContext(ctx, s.logger).With(zap.String("product_id", productID.String()))

	product, err := s.store.Products().FindByID(ctx, productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrProductNotFound
		}
		return nil, apperrors.From(err)
	}

	input.BatchNumber = strings.TrimSpace(input.BatchNumber)
	if err := s.checkBatch(product, &input); err != nil {
		return nil, err
	}

	exists, err := s.store.Products().BatchNumberExists(ctx, productID, input.StoreID, input.VariantID, input.BatchNumber)
	if err != nil {
		return nil, apperrors.From(err)
	}
	if exists {
		return nil, apperrors.ErrBatchNumberDuplicate
	}

	batch := &models.InventoryBatch{
		ID:                uuid.New(),
		ProductID:         productID,
		StoreID:           input.StoreID,
		VariantID:         input.VariantID,
		Quantity:          input.Quantity,
		ManufacturingDate: input.ManufacturingDate,
		ExpiryDate:        input.ExpiryDate,
		BatchNumber:       input.BatchNumber,
		CostPrice:         input.CostPrice,
	}
	if err := s.store.Products().CreateBatch(ctx, batch); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, apperrors.ErrBatchNumberDuplicate
		}
		log.Error("Failed to create batch", zap.Error(err))
		return nil, apperrors.From(err)
	}

	log.Info("Batch added",
		zap.String("batch_id", batch.ID.String()),
		zap.String("batch_number", batch.BatchNumber),
		zap.String("quantity", batch.Quantity.String()),
	)
	recordAsync(s.metrics, func(ctx context.Context, m MetricsRecorder, dims map[string]string) {
		_ = m.RecordCount(ctx, aws_pkg.MetricBatchesAdded, dims)
	})

	updated, err := s.store.Products().FindByID(ctx, productID)
	if err != nil {
		return nil, apperrors.From(err)
	}
	view := AdminProjection(updated)
	return &view, nil
}

// checkBatch applies the batch intake rules in their reporting order.
func (s *inventoryServiceImpl) checkBatch(product *models.Product, input *AddBatchInput) error {
	if !input.Quantity.IsPositive() {
		return apperrors.ErrInvalidQuantity
	}
	if err := s.validate.Struct(input); err != nil {
		return apperrors.ErrValidation.WithMessage(validationMessage(err))
	}
	if product.PricingMode == models.PricingFixed {
		if input.VariantID == nil || !product.HasVariant(*input.VariantID) {
			return apperrors.ErrMissingVariant
		}
	} else if input.VariantID != nil && !product.HasVariant(*input.VariantID) {
		return apperrors.ErrMissingVariant.WithMessage("Variant does not belong to this product")
	}
	if product.HasExpiry {
		if input.ManufacturingDate == nil || input.ExpiryDate == nil {
			return apperrors.ErrMissingDates
		}
		if !input.ExpiryDate.After(*input.ManufacturingDate) {
			return apperrors.ErrInvalidExpiry
		}
	}
	if input.BatchNumber == "" {
		return apperrors.ErrMissingBatchNumber
	}
	return nil
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return fmt.Sprintf("%s failed on the '%s' rule", strings.ToLower(fe.Field()), fe.Tag())
	}
	return err.Error()
}

type expiringGroupKey struct {
	productID uuid.UUID
	variantID uuid.UUID
	storeID   uuid.UUID
}

// GetExpiringBatches lists stock expiring within the next days, grouped per product, variant
// and store.
func (s *inventoryServiceImpl) GetExpiringBatches(ctx context.Context, days, page, limit int) (*Paginated[ExpiringBatchRow], error) {
	if days < 1 {
		days = 1
	}
	if days > maxExpiringDays {
		days = maxExpiringDays
	}
	page, limit = NormalizePage(page, limit)

	now := s.now()
	records, err := s.store.Products().FindExpiringBatches(ctx, now, now.AddDate(0, 0, days))
	if err != nil {
		logger.FromContext(ctx, s.logger).Error("Failed to fetch expiring batches", zap.Error(err))
		return nil, apperrors.From(err)
	}

	rows := groupExpiring(records)

	total := int64(len(rows))
	start := (page - 1) * limit
	if start > len(rows) {
		start = len(rows)
	}
	end := start + limit
	if end > len(rows) {
		end = len(rows)
	}
	return newPaginated(rows[start:end], total, page, limit), nil
}

func groupExpiring(records []repository.ExpiringBatchRecord) []ExpiringBatchRow {
	index := make(map[expiringGroupKey]int)
	rows := make([]ExpiringBatchRow, 0)
	for _, r := range records {
		key := expiringGroupKey{productID: r.ProductID, storeID: r.StoreID}
		if r.VariantID != nil {
			key.variantID = *r.VariantID
		}
		i, ok := index[key]
		if !ok {
			i = len(rows)
			index[key] = i
			rows = append(rows, ExpiringBatchRow{
				ProductID:     r.ProductID,
				ProductName:   r.ProductName,
				VariantID:     r.VariantID,
				StoreID:       r.StoreID,
				TotalQuantity: decimal.Zero,
			})
		}
		rows[i].Batches = append(rows[i].Batches, ExpiringBatch{
			BatchID:     r.BatchID,
			BatchNumber: r.BatchNumber,
			ExpiryDate:  r.ExpiryDate,
			Quantity:    r.Quantity,
		})
		rows[i].TotalQuantity = rows[i].TotalQuantity.Add(r.Quantity)
	}

	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].ProductName != rows[j].ProductName {
			return rows[i].ProductName < rows[j].ProductName
		}
		return rows[i].TotalQuantity.GreaterThan(rows[j].TotalQuantity)
	})
	return rows
}
