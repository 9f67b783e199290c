package service_test

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"shiptrack/internal/entities"
	"shiptrack/pkg/trm"
)

// memStore is an in-memory stand-in for the two tables. The fake transaction
// manager snapshots it before a unit of work and restores it on failure, so
// service-level atomicity is observable without a real database.
type memStore struct {
	mu sync.Mutex

	orders    map[int64]*orderRec
	shipments map[int64]*shipmentRec

	nextOrderID    int64
	nextShipmentID int64
	nextNumber     int64
	nextTracking   int64

	failOrderUpdate    error
	failShipmentInsert error
	failSetRef         error
}

type orderRec struct {
	order      entities.Order
	shipmentID int64 // 0 = unlinked
	deleted    bool
}

type shipmentRec struct {
	shipment entities.Shipment
	deleted  bool
}

func newMemStore() *memStore {
	return &memStore{
		orders:    make(map[int64]*orderRec),
		shipments: make(map[int64]*shipmentRec),
	}
}

type memSnapshot struct {
	orders    map[int64]*orderRec
	shipments map[int64]*shipmentRec
	counters  [4]int64
}

func (s *memStore) snapshot() memSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := memSnapshot{
		orders:    make(map[int64]*orderRec, len(s.orders)),
		shipments: make(map[int64]*shipmentRec, len(s.shipments)),
		counters:  [4]int64{s.nextOrderID, s.nextShipmentID, s.nextNumber, s.nextTracking},
	}
	for id, rec := range s.orders {
		cp := *rec
		snap.orders[id] = &cp
	}
	for id, rec := range s.shipments {
		cp := *rec
		snap.shipments[id] = &cp
	}
	return snap
}

func (s *memStore) restore(snap memSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.orders = snap.orders
	s.shipments = snap.shipments
	s.nextOrderID, s.nextShipmentID = snap.counters[0], snap.counters[1]
	s.nextNumber, s.nextTracking = snap.counters[2], snap.counters[3]
}

// composeOrder attaches the linked non-deleted shipment, mirroring the SQL
// join of the real repository.
func (s *memStore) composeOrder(rec *orderRec) entities.Order {
	order := rec.order
	order.Shipment = nil
	if rec.shipmentID != 0 {
		if ship, ok := s.shipments[rec.shipmentID]; ok && !ship.deleted {
			cp := ship.shipment
			order.Shipment = &cp
		}
	}
	return order
}

// fakeTxManager serializes units of work and rolls the store back when the
// callback fails, emulating transactional all-or-nothing visibility.
type fakeTxManager struct {
	mu    sync.Mutex
	store *memStore
}

type nopTx struct{}

func (nopTx) Commit() error   { return nil }
func (nopTx) Rollback() error { return nil }

func (m *fakeTxManager) BeginTx(ctx context.Context) (context.Context, trm.Transaction, error) {
	return ctx, nopTx{}, nil
}

func (m *fakeTxManager) Do(ctx context.Context, callback func(ctx context.Context) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := m.store.snapshot()
	if err := callback(ctx); err != nil {
		m.store.restore(snap)
		return err
	}
	return nil
}

type memOrders struct {
	s *memStore
}

func (r memOrders) Insert(_ context.Context, o entities.Order) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	// Uniqueness spans deleted rows too.
	for _, rec := range r.s.orders {
		if rec.order.Number == o.Number {
			return 0, entities.ErrConstraintViolation
		}
	}

	r.s.nextOrderID++
	o.ID = r.s.nextOrderID
	o.Shipment = nil
	r.s.orders[o.ID] = &orderRec{order: o}
	return o.ID, nil
}

func (r memOrders) Update(_ context.Context, o entities.Order) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if r.s.failOrderUpdate != nil {
		return r.s.failOrderUpdate
	}

	rec, ok := r.s.orders[o.ID]
	if !ok || rec.deleted {
		return entities.ErrOrderNotFound
	}
	rec.order.Date = o.Date
	rec.order.CustomerName = o.CustomerName
	rec.order.Total = o.Total
	rec.order.Status = o.Status
	return nil
}

func (r memOrders) SetShipmentRef(_ context.Context, orderID, shipmentID int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if r.s.failSetRef != nil {
		return r.s.failSetRef
	}

	for id, rec := range r.s.orders {
		if id != orderID && rec.shipmentID == shipmentID {
			return entities.ErrConstraintViolation
		}
	}

	rec, ok := r.s.orders[orderID]
	if !ok || rec.deleted || rec.shipmentID != 0 {
		return entities.ErrAlreadyLinked
	}
	rec.shipmentID = shipmentID
	return nil
}

func (r memOrders) ClearShipmentRef(_ context.Context, orderID int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	rec, ok := r.s.orders[orderID]
	if !ok || rec.deleted || rec.shipmentID == 0 {
		return entities.ErrNotLinked
	}
	rec.shipmentID = 0
	return nil
}

func (r memOrders) SoftDelete(_ context.Context, id int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	rec, ok := r.s.orders[id]
	if !ok || rec.deleted {
		return entities.ErrOrderNotFound
	}
	rec.deleted = true
	return nil
}

func (r memOrders) FindByID(_ context.Context, id int64) (entities.Order, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	rec, ok := r.s.orders[id]
	if !ok || rec.deleted {
		return entities.Order{}, entities.ErrOrderNotFound
	}
	return r.s.composeOrder(rec), nil
}

func (r memOrders) FindByIDForUpdate(ctx context.Context, id int64) (entities.Order, error) {
	return r.FindByID(ctx, id)
}

func (r memOrders) FindByNumber(_ context.Context, number string) (entities.Order, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, rec := range r.s.orders {
		if !rec.deleted && rec.order.Number == number {
			return r.s.composeOrder(rec), nil
		}
	}
	return entities.Order{}, entities.ErrOrderNotFound
}

func (r memOrders) FindByShipmentID(_ context.Context, shipmentID int64) (entities.Order, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, rec := range r.s.orders {
		if !rec.deleted && rec.shipmentID == shipmentID {
			return r.s.composeOrder(rec), nil
		}
	}
	return entities.Order{}, entities.ErrOrderNotFound
}

func (r memOrders) FindPage(_ context.Context, pageSize, pageNumber int) ([]entities.Order, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	active := make([]*orderRec, 0, len(r.s.orders))
	for _, rec := range r.s.orders {
		if !rec.deleted {
			active = append(active, rec)
		}
	}
	sort.Slice(active, func(i, j int) bool { return active[i].order.ID < active[j].order.ID })

	start := (pageNumber - 1) * pageSize
	if start >= len(active) {
		return []entities.Order{}, nil
	}
	end := min(start+pageSize, len(active))

	page := make([]entities.Order, 0, end-start)
	for _, rec := range active[start:end] {
		page = append(page, r.s.composeOrder(rec))
	}
	return page, nil
}

func (r memOrders) Count(_ context.Context) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var count int64
	for _, rec := range r.s.orders {
		if !rec.deleted {
			count++
		}
	}
	return count, nil
}

type memShipments struct {
	s *memStore
}

func (r memShipments) Insert(_ context.Context, sh entities.Shipment) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if r.s.failShipmentInsert != nil {
		return 0, r.s.failShipmentInsert
	}

	for _, rec := range r.s.shipments {
		if rec.shipment.Tracking == sh.Tracking {
			return 0, entities.ErrConstraintViolation
		}
	}

	r.s.nextShipmentID++
	sh.ID = r.s.nextShipmentID
	r.s.shipments[sh.ID] = &shipmentRec{shipment: sh}
	return sh.ID, nil
}

func (r memShipments) Update(_ context.Context, sh entities.Shipment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	rec, ok := r.s.shipments[sh.ID]
	if !ok || rec.deleted {
		return entities.ErrShipmentNotFound
	}
	tracking := rec.shipment.Tracking
	rec.shipment = sh
	rec.shipment.Tracking = tracking
	return nil
}

func (r memShipments) SoftDelete(_ context.Context, id int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	rec, ok := r.s.shipments[id]
	if !ok || rec.deleted {
		return entities.ErrShipmentNotFound
	}
	rec.deleted = true
	return nil
}

func (r memShipments) FindByID(_ context.Context, id int64) (entities.Shipment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	rec, ok := r.s.shipments[id]
	if !ok || rec.deleted {
		return entities.Shipment{}, entities.ErrShipmentNotFound
	}
	return rec.shipment, nil
}

func (r memShipments) FindByIDForUpdate(ctx context.Context, id int64) (entities.Shipment, error) {
	return r.FindByID(ctx, id)
}

func (r memShipments) FindByTracking(_ context.Context, tracking string) (entities.Shipment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, rec := range r.s.shipments {
		if !rec.deleted && rec.shipment.Tracking == tracking {
			return rec.shipment, nil
		}
	}
	return entities.Shipment{}, entities.ErrShipmentNotFound
}

func (r memShipments) FindByTrackingForUpdate(ctx context.Context, tracking string) (entities.Shipment, error) {
	return r.FindByTracking(ctx, tracking)
}

func (r memShipments) FindPage(_ context.Context, pageSize, pageNumber int) ([]entities.Shipment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	active := make([]entities.Shipment, 0, len(r.s.shipments))
	for _, rec := range r.s.shipments {
		if !rec.deleted {
			active = append(active, rec.shipment)
		}
	}
	sort.Slice(active, func(i, j int) bool { return active[i].ID < active[j].ID })

	start := (pageNumber - 1) * pageSize
	if start >= len(active) {
		return []entities.Shipment{}, nil
	}
	end := min(start+pageSize, len(active))
	return active[start:end], nil
}

func (r memShipments) Count(_ context.Context) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var count int64
	for _, rec := range r.s.shipments {
		if !rec.deleted {
			count++
		}
	}
	return count, nil
}

type memSequences struct {
	s *memStore
}

func (q memSequences) NextOrderNumber(context.Context) (string, error) {
	q.s.mu.Lock()
	defer q.s.mu.Unlock()
	q.s.nextNumber++
	return fmt.Sprintf("%s%08d", entities.OrderNumberPrefix, q.s.nextNumber), nil
}

func (q memSequences) NextShipmentTracking(context.Context) (string, error) {
	q.s.mu.Lock()
	defer q.s.mu.Unlock()
	q.s.nextTracking++
	return fmt.Sprintf("%s%08d", entities.TrackingPrefix, q.s.nextTracking), nil
}

type memCache struct {
	mu    sync.Mutex
	items map[string][]byte
}

func newMemCache() *memCache {
	return &memCache{items: make(map[string][]byte)}
}

func (c *memCache) Get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.items[key]
	return v, ok
}

func (c *memCache) Set(key string, value []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key] = value
}

func (c *memCache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, key)
}

func (c *memCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}
