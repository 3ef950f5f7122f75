package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/Mahender-77/KTLServer/services/order-service/models"
)

// ProductRepository defines data-access operations for products and their inventory batches.
type ProductRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Product, error)
	ListActiveInStock(ctx context.Context, categoryID *uuid.UUID, page, limit int) ([]models.Product, int64, error)
	DecrementBatch(ctx context.Context, productID, batchID uuid.UUID, quantity decimal.Decimal) error
	BatchNumberExists(ctx context.Context, productID, storeID uuid.UUID, variantID *uuid.UUID, batchNumber string) (bool, error)
	CreateBatch(ctx context.Context, batch *models.InventoryBatch) error
	FindExpiringBatches(ctx context.Context, from, to time.Time) ([]ExpiringBatchRecord, error)
}

// ExpiringBatchRecord is one batch row joined with its product name.
type ExpiringBatchRecord struct {
	BatchID     uuid.UUID
	ProductID   uuid.UUID
	ProductName string
	VariantID   *uuid.UUID
	StoreID     uuid.UUID
	BatchNumber string
	ExpiryDate  time.Time
	Quantity    decimal.Decimal
}

// GormProductRepository implements ProductRepository using GORM.
type GormProductRepository struct {
	db *gorm.DB
}

// NewGormProductRepository creates a new GormProductRepository.
func NewGormProductRepository(db *gorm.DB) ProductRepository {
	return &GormProductRepository{db: db}
}

func batchesByCreation(db *gorm.DB) *gorm.DB {
	return db.Order("created_at ASC")
}

func (r *GormProductRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var p models.Product
	if err := r.db.WithContext(ctx).
		Preload("Category").
		Preload("Variants").
		Preload("Batches", batchesByCreation).
		Preload("Batches.Store").
		First(&p, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *GormProductRepository) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Product, error) {
	var products []models.Product
	if len(ids) == 0 {
		return products, nil
	}
	if err := r.db.WithContext(ctx).
		Preload("Category").
		Preload("Batches", batchesByCreation).
		Where("id IN ?", ids).
		Find(&products).Error; err != nil {
		return nil, err
	}
	return products, nil
}

// ListActiveInStock returns active products holding at least one batch with positive quantity,
// newest first.
func (r *GormProductRepository) ListActiveInStock(ctx context.Context, categoryID *uuid.UUID, page, limit int) ([]models.Product, int64, error) {
	var products []models.Product
	var total int64

	query := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("is_active = ?", true).
		Where("EXISTS (SELECT 1 FROM inventory_batches b WHERE b.product_id = products.id AND b.quantity > 0)")
	if categoryID != nil {
		query = query.Where("category_id = ?", *categoryID)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	if err := query.
		Preload("Category").
		Preload("Variants").
		Preload("Batches", batchesByCreation).
		Offset(offset).
		Limit(limit).
		Order("created_at DESC").
		Find(&products).Error; err != nil {
		return nil, 0, err
	}

	return products, total, nil
}

// DecrementBatch subtracts quantity from one batch only if the batch still holds at least that
// much. It returns ErrConflict when the guard fails.
func (r *GormProductRepository) DecrementBatch(ctx context.Context, productID, batchID uuid.UUID, quantity decimal.Decimal) error {
	res := r.db.WithContext(ctx).
		Model(&models.InventoryBatch{}).
		Where("id = ? AND product_id = ? AND quantity >= ?", batchID, productID, quantity).
		UpdateColumns(map[string]interface{}{
			"quantity":   gorm.Expr("quantity - ?", quantity),
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrConflict
	}
	return nil
}

func (r *GormProductRepository) BatchNumberExists(ctx context.Context, productID, storeID uuid.UUID, variantID *uuid.UUID, batchNumber string) (bool, error) {
	var count int64
	query := r.db.WithContext(ctx).
		Model(&models.InventoryBatch{}).
		Where("product_id = ? AND store_id = ? AND batch_number = ?", productID, storeID, batchNumber)
	if variantID == nil {
		query = query.Where("variant_id IS NULL")
	} else {
		query = query.Where("variant_id = ?", *variantID)
	}
	if err := query.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *GormProductRepository) CreateBatch(ctx context.Context, batch *models.InventoryBatch) error {
	return r.db.WithContext(ctx).Create(batch).Error
}

// FindExpiringBatches returns batches with positive quantity whose expiry falls in [from, to],
// soonest first.
func (r *GormProductRepository) FindExpiringBatches(ctx context.Context, from, to time.Time) ([]ExpiringBatchRecord, error) {
	var rows []ExpiringBatchRecord
	if err := r.db.WithContext(ctx).
		Table("inventory_batches AS b").
		Select("b.id AS batch_id, b.product_id, p.name AS product_name, b.variant_id, b.store_id, b.batch_number, b.expiry_date, b.quantity").
		Joins("JOIN products p ON p.id = b.product_id").
		Where("b.expiry_date >= ? AND b.expiry_date <= ? AND b.quantity > 0", from, to).
		Order("b.expiry_date ASC").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
