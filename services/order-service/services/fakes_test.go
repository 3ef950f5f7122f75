package services_test

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/Mahender-77/KTLServer/services/order-service/models"
	"github.com/Mahender-77/KTLServer/services/order-service/repository"
	"github.com/Mahender-77/KTLServer/services/order-service/services"
)

// memState is the whole fake database.
type memState struct {
	categories map[uuid.UUID]models.Category
	stores     map[uuid.UUID]models.Store
	products   map[uuid.UUID]*models.Product
	orders     []models.Order
	subOrders  []models.SubOrder
	carts      map[uuid.UUID]*models.Cart
}

func newMemState() *memState {
	return &memState{
		categories: map[uuid.UUID]models.Category{},
		stores:     map[uuid.UUID]models.Store{},
		products:   map[uuid.UUID]*models.Product{},
		carts:      map[uuid.UUID]*models.Cart{},
	}
}

func (s *memState) clone() *memState {
	c := newMemState()
	for k, v := range s.categories {
		c.categories[k] = v
	}
	for k, v := range s.stores {
		c.stores[k] = v
	}
	for k, p := range s.products {
		c.products[k] = cloneProduct(p)
	}
	c.orders = append([]models.Order(nil), s.orders...)
	c.subOrders = append([]models.SubOrder(nil), s.subOrders...)
	for k, cart := range s.carts {
		cp := *cart
		cp.Items = append([]models.CartItem(nil), cart.Items...)
		c.carts[k] = &cp
	}
	return c
}

func cloneProduct(p *models.Product) *models.Product {
	cp := *p
	cp.Variants = append([]models.Variant(nil), p.Variants...)
	cp.Batches = append([]models.InventoryBatch(nil), p.Batches...)
	return &cp
}

// memDB is a transactional in-memory DataStore. Transactions are serialized, run against a
// copy of the state and only replace it when the callback succeeds.
type memDB struct {
	mu    sync.Mutex
	txMu  sync.Mutex
	state *memState

	// beforeDecrement runs inside the transaction right before a batch is decremented and may
	// change the state the way a concurrent writer would.
	beforeDecrement func(st *memState, batchID uuid.UUID)
	failCartClear   error
}

func newMemDB() *memDB {
	return &memDB{state: newMemState()}
}

type memStore struct {
	db *memDB
	tx *memState
}

func (db *memDB) Store() repository.DataStore { return &memStore{db: db} }

func (s *memStore) acquire() (*memState, func()) {
	if s.tx != nil {
		return s.tx, func() {}
	}
	s.db.mu.Lock()
	return s.db.state, s.db.mu.Unlock
}

func (s *memStore) Products() repository.ProductRepository   { return &memProducts{s} }
func (s *memStore) Orders() repository.OrderRepository       { return &memOrders{s} }
func (s *memStore) SubOrders() repository.SubOrderRepository { return &memSubOrders{s} }
func (s *memStore) Carts() repository.CartRepository         { return &memCarts{s} }

func (s *memStore) Transaction(ctx context.Context, fn func(tx repository.DataStore) error) error {
	if s.tx != nil {
		return fn(s)
	}
	s.db.txMu.Lock()
	defer s.db.txMu.Unlock()

	s.db.mu.Lock()
	work := s.db.state.clone()
	s.db.mu.Unlock()

	if err := fn(&memStore{db: s.db, tx: work}); err != nil {
		return err
	}

	s.db.mu.Lock()
	s.db.state = work
	s.db.mu.Unlock()
	return nil
}

// snapshot returns a copy of the committed state for assertions.
func (db *memDB) snapshot() *memState {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.state.clone()
}

func (db *memDB) batchQuantity(productID, batchID uuid.UUID) decimal.Decimal {
	st := db.snapshot()
	for _, b := range st.products[productID].Batches {
		if b.ID == batchID {
			return b.Quantity
		}
	}
	return decimal.Zero
}

type memProducts struct{ s *memStore }

func (r *memProducts) hydrate(st *memState, p *models.Product) *models.Product {
	cp := cloneProduct(p)
	cp.Category = st.categories[p.CategoryID]
	for i := range cp.Batches {
		if store, ok := st.stores[cp.Batches[i].StoreID]; ok {
			store := store
			cp.Batches[i].Store = &store
		}
	}
	sort.SliceStable(cp.Batches, func(i, j int) bool { return cp.Batches[i].CreatedAt.Before(cp.Batches[j].CreatedAt) })
	return cp
}

func (r *memProducts) FindByID(_ context.Context, id uuid.UUID) (*models.Product, error) {
	st, unlock := r.s.acquire()
	defer unlock()
	p, ok := st.products[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return r.hydrate(st, p), nil
}

func (r *memProducts) FindByIDs(_ context.Context, ids []uuid.UUID) ([]models.Product, error) {
	st, unlock := r.s.acquire()
	defer unlock()
	out := []models.Product{}
	for _, id := range ids {
		if p, ok := st.products[id]; ok {
			out = append(out, *r.hydrate(st, p))
		}
	}
	return out, nil
}

func (r *memProducts) ListActiveInStock(_ context.Context, categoryID *uuid.UUID, page, limit int) ([]models.Product, int64, error) {
	st, unlock := r.s.acquire()
	defer unlock()
	matched := []models.Product{}
	for _, p := range st.products {
		if !p.IsActive || (categoryID != nil && p.CategoryID != *categoryID) {
			continue
		}
		for _, b := range p.Batches {
			if b.Quantity.IsPositive() {
				matched = append(matched, *r.hydrate(st, p))
				break
			}
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })
	return pageOf(matched, page, limit), int64(len(matched)), nil
}

func (r *memProducts) DecrementBatch(_ context.Context, productID, batchID uuid.UUID, quantity decimal.Decimal) error {
	st, unlock := r.s.acquire()
	defer unlock()
	if r.s.db.beforeDecrement != nil {
		r.s.db.beforeDecrement(st, batchID)
	}
	p, ok := st.products[productID]
	if !ok {
		return repository.ErrConflict
	}
	for i := range p.Batches {
		if p.Batches[i].ID == batchID {
			if p.Batches[i].Quantity.LessThan(quantity) {
				return repository.ErrConflict
			}
			p.Batches[i].Quantity = p.Batches[i].Quantity.Sub(quantity)
			return nil
		}
	}
	return repository.ErrConflict
}

func (r *memProducts) BatchNumberExists(_ context.Context, productID, storeID uuid.UUID, variantID *uuid.UUID, batchNumber string) (bool, error) {
	st, unlock := r.s.acquire()
	defer unlock()
	p, ok := st.products[productID]
	if !ok {
		return false, nil
	}
	for i := range p.Batches {
		b := &p.Batches[i]
		if b.StoreID == storeID && b.BatchNumber == batchNumber && b.SameVariant(variantID) {
			return true, nil
		}
	}
	return false, nil
}

func (r *memProducts) CreateBatch(_ context.Context, batch *models.InventoryBatch) error {
	st, unlock := r.s.acquire()
	defer unlock()
	p, ok := st.products[batch.ProductID]
	if !ok {
		return errors.New("foreign key violation")
	}
	if batch.CreatedAt.IsZero() {
		batch.CreatedAt = time.Now().UTC()
	}
	p.Batches = append(p.Batches, *batch)
	return nil
}

func (r *memProducts) FindExpiringBatches(_ context.Context, from, to time.Time) ([]repository.ExpiringBatchRecord, error) {
	st, unlock := r.s.acquire()
	defer unlock()
	out := []repository.ExpiringBatchRecord{}
	for _, p := range st.products {
		for _, b := range p.Batches {
			if b.ExpiryDate == nil || b.ExpiryDate.Before(from) || b.ExpiryDate.After(to) || !b.Quantity.IsPositive() {
				continue
			}
			out = append(out, repository.ExpiringBatchRecord{
				BatchID:     b.ID,
				ProductID:   p.ID,
				ProductName: p.Name,
				VariantID:   b.VariantID,
				StoreID:     b.StoreID,
				BatchNumber: b.BatchNumber,
				ExpiryDate:  *b.ExpiryDate,
				Quantity:    b.Quantity,
			})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ExpiryDate.Before(out[j].ExpiryDate) })
	return out, nil
}

type memOrders struct{ s *memStore }

func (r *memOrders) withSubOrders(st *memState, o models.Order) *models.Order {
	o.SubOrders = nil
	for _, sub := range st.subOrders {
		if sub.OrderID == o.ID {
			o.SubOrders = append(o.SubOrders, sub)
		}
	}
	return &o
}

func (r *memOrders) Create(_ context.Context, order *models.Order) error {
	st, unlock := r.s.acquire()
	defer unlock()
	if order.IdempotencyKey != nil {
		for _, o := range st.orders {
			if o.IdempotencyKey != nil && *o.IdempotencyKey == *order.IdempotencyKey {
				return gorm.ErrDuplicatedKey
			}
		}
	}
	cp := *order
	cp.SubOrders = nil
	st.orders = append(st.orders, cp)
	return nil
}

func (r *memOrders) CreateSubOrders(_ context.Context, subOrders []models.SubOrder) error {
	st, unlock := r.s.acquire()
	defer unlock()
	st.subOrders = append(st.subOrders, subOrders...)
	return nil
}

func (r *memOrders) FindByUserID(_ context.Context, userID uuid.UUID, page, limit int) ([]models.Order, int64, error) {
	st, unlock := r.s.acquire()
	defer unlock()
	mine := []models.Order{}
	for _, o := range st.orders {
		if o.UserID == userID {
			mine = append(mine, *r.withSubOrders(st, o))
		}
	}
	sort.SliceStable(mine, func(i, j int) bool { return mine[i].CreatedAt.After(mine[j].CreatedAt) })
	return pageOf(mine, page, limit), int64(len(mine)), nil
}

func (r *memOrders) find(match func(o models.Order) bool) (*models.Order, error) {
	st, unlock := r.s.acquire()
	defer unlock()
	for _, o := range st.orders {
		if match(o) {
			return r.withSubOrders(st, o), nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *memOrders) FindByIDAndUserID(_ context.Context, orderID, userID uuid.UUID) (*models.Order, error) {
	return r.find(func(o models.Order) bool { return o.ID == orderID && o.UserID == userID })
}

func (r *memOrders) FindByID(_ context.Context, orderID uuid.UUID) (*models.Order, error) {
	return r.find(func(o models.Order) bool { return o.ID == orderID })
}

func (r *memOrders) FindByIdempotencyKey(_ context.Context, key string) (*models.Order, error) {
	return r.find(func(o models.Order) bool { return o.IdempotencyKey != nil && *o.IdempotencyKey == key })
}

func (r *memOrders) MarkDelivered(_ context.Context, orderID uuid.UUID) error {
	st, unlock := r.s.acquire()
	defer unlock()
	for i := range st.orders {
		if st.orders[i].ID == orderID {
			st.orders[i].OrderStatus = models.OrderStatusDelivered
		}
	}
	return nil
}

type memSubOrders struct{ s *memStore }

func (r *memSubOrders) FindByID(_ context.Context, id uuid.UUID) (*models.SubOrder, error) {
	st, unlock := r.s.acquire()
	defer unlock()
	for _, sub := range st.subOrders {
		if sub.ID == id {
			for _, o := range st.orders {
				if o.ID == sub.OrderID {
					o := o
					sub.Order = &o
				}
			}
			return &sub, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *memSubOrders) FindClaimable(_ context.Context, deliveryPersonID uuid.UUID, page, limit int) ([]models.SubOrder, int64, error) {
	st, unlock := r.s.acquire()
	defer unlock()
	out := []models.SubOrder{}
	for _, sub := range st.subOrders {
		mine := sub.DeliveryBoyID != nil && *sub.DeliveryBoyID == deliveryPersonID
		open := sub.DeliveryBoyID == nil && sub.DeliveryStatus == models.DeliveryPending
		if mine || open {
			out = append(out, sub)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return pageOf(out, page, limit), int64(len(out)), nil
}

func (r *memSubOrders) Claim(_ context.Context, id, deliveryPersonID uuid.UUID) error {
	st, unlock := r.s.acquire()
	defer unlock()
	for i := range st.subOrders {
		sub := &st.subOrders[i]
		if sub.ID == id && sub.DeliveryStatus == models.DeliveryPending && sub.DeliveryBoyID == nil {
			dp := deliveryPersonID
			sub.DeliveryBoyID = &dp
			sub.DeliveryStatus = models.DeliveryAccepted
			return nil
		}
	}
	return repository.ErrConflict
}

func (r *memSubOrders) Advance(_ context.Context, id, deliveryPersonID uuid.UUID, from, to models.DeliveryStatus) error {
	st, unlock := r.s.acquire()
	defer unlock()
	for i := range st.subOrders {
		sub := &st.subOrders[i]
		if sub.ID == id && sub.DeliveryBoyID != nil && *sub.DeliveryBoyID == deliveryPersonID && sub.DeliveryStatus == from {
			sub.DeliveryStatus = to
			return nil
		}
	}
	return repository.ErrConflict
}

func (r *memSubOrders) CountUndelivered(_ context.Context, orderID uuid.UUID) (int64, error) {
	st, unlock := r.s.acquire()
	defer unlock()
	var n int64
	for _, sub := range st.subOrders {
		if sub.OrderID == orderID && sub.DeliveryStatus != models.DeliveryDelivered {
			n++
		}
	}
	return n, nil
}

func (r *memSubOrders) UpdateLocation(_ context.Context, deliveryPersonID uuid.UUID, latitude, longitude float64, at time.Time) (int64, error) {
	st, unlock := r.s.acquire()
	defer unlock()
	var n int64
	for i := range st.subOrders {
		sub := &st.subOrders[i]
		active := sub.DeliveryStatus == models.DeliveryAccepted || sub.DeliveryStatus == models.DeliveryOutForDelivery
		if sub.DeliveryBoyID == nil || *sub.DeliveryBoyID != deliveryPersonID || !active {
			continue
		}
		lat, lng, ts := latitude, longitude, at
		sub.DeliveryLocation = models.Location{Latitude: &lat, Longitude: &lng, LastUpdated: &ts}
		for j := range st.orders {
			if st.orders[j].ID == sub.OrderID {
				dp := deliveryPersonID
				st.orders[j].DeliveryPersonID = &dp
				st.orders[j].DeliveryLocation = sub.DeliveryLocation
			}
		}
		n++
	}
	return n, nil
}

type memCarts struct{ s *memStore }

func (r *memCarts) FindByUserID(_ context.Context, userID uuid.UUID) (*models.Cart, error) {
	st, unlock := r.s.acquire()
	defer unlock()
	cart, ok := st.carts[userID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *cart
	return &cp, nil
}

func (r *memCarts) Clear(_ context.Context, userID uuid.UUID) error {
	if r.s.db.failCartClear != nil {
		return r.s.db.failCartClear
	}
	st, unlock := r.s.acquire()
	defer unlock()
	if cart, ok := st.carts[userID]; ok {
		cart.Items = nil
	}
	return nil
}

func pageOf[T any](items []T, page, limit int) []T {
	start := (page - 1) * limit
	if start >= len(items) {
		return []T{}
	}
	end := start + limit
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}

// memIdempotency mirrors the Redis reservation semantics.
type memIdempotency struct {
	mu  sync.Mutex
	m   map[string]string
	err error
}

func newMemIdempotency() *memIdempotency {
	return &memIdempotency{m: map[string]string{}}
}

func (i *memIdempotency) Reserve(_ context.Context, key string) (bool, string, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.err != nil {
		return false, "", i.err
	}
	if v, ok := i.m[key]; ok {
		if v == "pending" {
			return false, "", nil
		}
		return false, v, nil
	}
	i.m[key] = "pending"
	return true, "", nil
}

func (i *memIdempotency) Complete(_ context.Context, key, orderID string) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.m[key] = orderID
	return nil
}

func (i *memIdempotency) Release(_ context.Context, key string) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	delete(i.m, key)
	return nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []models.OrderEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, event models.OrderEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

// fixture builders

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func ptr[T any](v T) *T { return &v }

func (db *memDB) addCategory(name string) models.Category {
	c := models.Category{ID: uuid.New(), Name: name, Slug: name}
	db.state.categories[c.ID] = c
	return c
}

func (db *memDB) addStore(name string) models.Store {
	s := models.Store{ID: uuid.New(), Name: name, IsActive: true}
	db.state.stores[s.ID] = s
	return s
}

func (db *memDB) addProduct(name string, category models.Category, mode models.PricingMode, hasExpiry bool) *models.Product {
	p := &models.Product{
		ID:           uuid.New(),
		Name:         name,
		Slug:         name,
		CategoryID:   category.ID,
		PricingMode:  mode,
		BaseUnit:     "kg",
		PricePerUnit: dec("10"),
		HasExpiry:    hasExpiry,
		IsActive:     true,
		CreatedAt:    time.Now().UTC(),
	}
	db.state.products[p.ID] = p
	return p
}

func (db *memDB) addVariant(p *models.Product) uuid.UUID {
	v := models.Variant{ID: uuid.New(), ProductID: p.ID, Type: "weight", Value: dec("1"), Unit: "kg", Price: dec("10")}
	p.Variants = append(p.Variants, v)
	return v.ID
}

type batchSpec struct {
	store     models.Store
	variantID *uuid.UUID
	qty       string
	expiry    *time.Time
	created   time.Time
	number    string
}

func (db *memDB) addBatch(p *models.Product, bs batchSpec) uuid.UUID {
	if bs.created.IsZero() {
		bs.created = time.Now().UTC()
	}
	if bs.number == "" {
		bs.number = uuid.NewString()[:8]
	}
	b := models.InventoryBatch{
		ID:          uuid.New(),
		ProductID:   p.ID,
		StoreID:     bs.store.ID,
		VariantID:   bs.variantID,
		Quantity:    dec(bs.qty),
		ExpiryDate:  bs.expiry,
		BatchNumber: bs.number,
		CreatedAt:   bs.created,
	}
	p.Batches = append(p.Batches, b)
	return b.ID
}

func (db *memDB) addCart(userID uuid.UUID, items ...models.CartItem) {
	db.state.carts[userID] = &models.Cart{ID: uuid.New(), UserID: userID, Items: items}
}

func daysFromNow(d int) *time.Time {
	t := time.Now().UTC().AddDate(0, 0, d)
	return &t
}

var _ services.IdempotencyStore = (*memIdempotency)(nil)
var _ services.EventPublisher = (*recordingPublisher)(nil)
