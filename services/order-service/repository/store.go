package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

// ErrConflict is returned when a guarded write matched no rows: the row changed (or was claimed)
// between read and write.
var ErrConflict = errors.New("conditional update matched no rows")

// DataStore groups the repositories that take part in one unit of work.
type DataStore interface {
	Products() ProductRepository
	Orders() OrderRepository
	SubOrders() SubOrderRepository
	Carts() CartRepository
	// Transaction runs fn against a store bound to one database transaction. The transaction is
	// committed when fn returns nil and rolled back otherwise.
	Transaction(ctx context.Context, fn func(tx DataStore) error) error
}

// GormStore implements DataStore using GORM.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore creates a new GormStore.
func NewGormStore(db *gorm.DB) DataStore {
	return &GormStore{db: db}
}

func (s *GormStore) Products() ProductRepository   { return NewGormProductRepository(s.db) }
func (s *GormStore) Orders() OrderRepository       { return NewGormOrderRepository(s.db) }
func (s *GormStore) SubOrders() SubOrderRepository { return NewGormSubOrderRepository(s.db) }
func (s *GormStore) Carts() CartRepository         { return NewGormCartRepository(s.db) }

func (s *GormStore) Transaction(ctx context.Context, fn func(tx DataStore) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormStore{db: tx})
	})
}
