// Package memory is an in-memory implementation of every engine store,
// used by the engine test suites and the seeder. Units of work are
// all-or-nothing: a failed callback restores the pre-call state.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/kasir-api/internal/catalog"
	"github.com/noah-isme/kasir-api/internal/common"
	"github.com/noah-isme/kasir-api/internal/offer"
	"github.com/noah-isme/kasir-api/internal/order"
	"github.com/noah-isme/kasir-api/internal/payment"
	"github.com/noah-isme/kasir-api/internal/returns"
	"github.com/noah-isme/kasir-api/internal/session"
)

// Store holds all state behind one mutex, serializing units of work the way
// the row lock does in the postgres store.
type Store struct {
	mu          sync.Mutex
	products    map[uuid.UUID]catalog.Product
	sessions    map[uuid.UUID]session.Session
	offers      map[uuid.UUID]offer.Offer
	orders      map[uuid.UUID]order.Order
	items       map[uuid.UUID]order.LineItem
	payments    map[uuid.UUID]payment.Payment
	returnItems map[uuid.UUID]returns.Item
}

func New() *Store {
	return &Store{
		products:    map[uuid.UUID]catalog.Product{},
		sessions:    map[uuid.UUID]session.Session{},
		offers:      map[uuid.UUID]offer.Offer{},
		orders:      map[uuid.UUID]order.Order{},
		items:       map[uuid.UUID]order.LineItem{},
		payments:    map[uuid.UUID]payment.Payment{},
		returnItems: map[uuid.UUID]returns.Item{},
	}
}

// txn exposes every per-transaction operation over the store's maps. It is
// only ever used while the store mutex is held.
type txn struct{ s *Store }

func (s *Store) run(fn func(tx *txn) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := s.snapshot()
	if err := fn(&txn{s: s}); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

type state struct {
	products    map[uuid.UUID]catalog.Product
	sessions    map[uuid.UUID]session.Session
	offers      map[uuid.UUID]offer.Offer
	orders      map[uuid.UUID]order.Order
	items       map[uuid.UUID]order.LineItem
	payments    map[uuid.UUID]payment.Payment
	returnItems map[uuid.UUID]returns.Item
}

func (s *Store) snapshot() state {
	return state{
		products:    clone(s.products),
		sessions:    clone(s.sessions),
		offers:      clone(s.offers),
		orders:      clone(s.orders),
		items:       clone(s.items),
		payments:    clone(s.payments),
		returnItems: clone(s.returnItems),
	}
}

func (s *Store) restore(st state) {
	s.products, s.sessions, s.offers = st.products, st.sessions, st.offers
	s.orders, s.items, s.payments = st.orders, st.items, st.payments
	s.returnItems = st.returnItems
}

func clone[V any](m map[uuid.UUID]V) map[uuid.UUID]V {
	out := make(map[uuid.UUID]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Orders adapts the store to the pricing engine's unit-of-work interface.
func (s *Store) Orders() order.Store { return orderStore{s} }

// Payments adapts the store to the payment service's unit-of-work interface.
func (s *Store) Payments() payment.Store { return paymentStore{s} }

// Returns adapts the store to the return engine's unit-of-work interface.
func (s *Store) Returns() returns.Store { return returnStore{s} }

type orderStore struct{ s *Store }

func (a orderStore) Within(_ context.Context, fn func(tx order.Tx) error) error {
	return a.s.run(func(tx *txn) error { return fn(tx) })
}

type paymentStore struct{ s *Store }

func (a paymentStore) Within(_ context.Context, fn func(tx payment.Tx) error) error {
	return a.s.run(func(tx *txn) error { return fn(tx) })
}

type returnStore struct{ s *Store }

func (a returnStore) Within(_ context.Context, fn func(tx returns.Tx) error) error {
	return a.s.run(func(tx *txn) error { return fn(tx) })
}

// Seed helpers for tests and the seeder.

func (s *Store) PutProduct(p catalog.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products[p.ID] = p
}

func (s *Store) PutSession(sess session.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.ID] = sess
}

func (s *Store) PutOffer(o offer.Offer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.offers[o.ID] = o
}

// catalog.Store

func (s *Store) ListProducts(_ context.Context, activeOnly bool) ([]catalog.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]catalog.Product, 0, len(s.products))
	for _, p := range s.products {
		if activeOnly && !p.Active {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SKU < out[j].SKU })
	return out, nil
}

func (s *Store) GetProduct(_ context.Context, id uuid.UUID) (catalog.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok {
		return catalog.Product{}, common.NotFound("product not found")
	}
	return p, nil
}

// session.Store

func (s *Store) CreateSession(_ context.Context, sess session.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.ID] = sess
	return nil
}

func (s *Store) GetSession(_ context.Context, id uuid.UUID) (session.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return getSession(s, id)
}

func (s *Store) UpdateSession(_ context.Context, sess session.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[sess.ID]; !ok {
		return common.NotFound("session not found")
	}
	s.sessions[sess.ID] = sess
	return nil
}

func getSession(s *Store, id uuid.UUID) (session.Session, error) {
	sess, ok := s.sessions[id]
	if !ok {
		return session.Session{}, common.NotFound("session not found")
	}
	return sess, nil
}

// offer.AdminStore

func (s *Store) CreateOffer(_ context.Context, o offer.Offer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ex := range s.offers {
		if ex.Code == o.Code {
			return common.BusinessRule("offer code already exists")
		}
	}
	s.offers[o.ID] = o
	return nil
}

func (s *Store) ListOffers(_ context.Context) ([]offer.Offer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]offer.Offer, 0, len(s.offers))
	for _, o := range s.offers {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (s *Store) GetOffer(_ context.Context, id uuid.UUID) (offer.Offer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.offers[id]
	if !ok {
		return offer.Offer{}, common.NotFound("offer not found")
	}
	return o, nil
}

func (s *Store) UpdateOffer(_ context.Context, o offer.Offer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.offers[o.ID]; !ok {
		return common.NotFound("offer not found")
	}
	s.offers[o.ID] = o
	return nil
}

// StaleHeldOrders lists HELD orders untouched since the cutoff.
func (s *Store) StaleHeldOrders(_ context.Context, cutoff time.Time) ([]uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []uuid.UUID
	for id, o := range s.orders {
		if o.Status == order.StatusHeld && o.UpdatedAt.Before(cutoff) {
			out = append(out, id)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out, nil
}

// transaction-scoped operations

func (t *txn) GetOrder(_ context.Context, id uuid.UUID) (order.Order, error) {
	o, ok := t.s.orders[id]
	if !ok {
		return order.Order{}, common.NotFound("order not found")
	}
	return o, nil
}

func (t *txn) GetOrderForUpdate(ctx context.Context, id uuid.UUID) (order.Order, error) {
	return t.GetOrder(ctx, id)
}

func (t *txn) CreateOrder(_ context.Context, o order.Order) error {
	t.s.orders[o.ID] = o
	return nil
}

func (t *txn) UpdateOrder(_ context.Context, o order.Order) error {
	if _, ok := t.s.orders[o.ID]; !ok {
		return common.NotFound("order not found")
	}
	t.s.orders[o.ID] = o
	return nil
}

func (t *txn) DeleteOrder(_ context.Context, id uuid.UUID) error {
	for iid, li := range t.s.items {
		if li.OrderID == id {
			delete(t.s.items, iid)
		}
	}
	delete(t.s.orders, id)
	return nil
}

func (t *txn) ListItems(_ context.Context, orderID uuid.UUID) ([]order.LineItem, error) {
	out := []order.LineItem{}
	for _, li := range t.s.items {
		if li.OrderID == orderID {
			out = append(out, li)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.String() < out[j].ID.String() })
	return out, nil
}

func (t *txn) GetItem(_ context.Context, id uuid.UUID) (order.LineItem, error) {
	li, ok := t.s.items[id]
	if !ok {
		return order.LineItem{}, common.NotFound("line item not found")
	}
	return li, nil
}

func (t *txn) CreateItem(_ context.Context, li order.LineItem) error {
	t.s.items[li.ID] = li
	return nil
}

func (t *txn) UpdateItem(_ context.Context, li order.LineItem) error {
	if _, ok := t.s.items[li.ID]; !ok {
		return common.NotFound("line item not found")
	}
	t.s.items[li.ID] = li
	return nil
}

func (t *txn) DeleteItem(_ context.Context, id uuid.UUID) error {
	delete(t.s.items, id)
	return nil
}

func (t *txn) GetProduct(_ context.Context, id uuid.UUID) (catalog.Product, error) {
	p, ok := t.s.products[id]
	if !ok {
		return catalog.Product{}, common.NotFound("product not found")
	}
	return p, nil
}

func (t *txn) ActiveOffers(_ context.Context, typ offer.Type, now time.Time) ([]offer.Offer, error) {
	out := []offer.Offer{}
	for _, o := range t.s.offers {
		if o.Type == typ && o.ApplicableAt(now) {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.String() < out[j].ID.String() })
	return out, nil
}

func (t *txn) GetSession(_ context.Context, id uuid.UUID) (session.Session, error) {
	return getSession(t.s, id)
}

func (t *txn) CreatePayment(_ context.Context, p payment.Payment) error {
	t.s.payments[p.ID] = p
	return nil
}

func (t *txn) ListPayments(_ context.Context, orderID uuid.UUID) ([]payment.Payment, error) {
	out := []payment.Payment{}
	for _, p := range t.s.payments {
		if p.OrderID == orderID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (t *txn) ReturnedQtyByItem(_ context.Context, originalOrderID uuid.UUID) (map[uuid.UUID]decimal.Decimal, error) {
	returnOrders := map[uuid.UUID]bool{}
	for id, o := range t.s.orders {
		if o.ParentOrderID != nil && *o.ParentOrderID == originalOrderID {
			returnOrders[id] = true
		}
	}
	out := map[uuid.UUID]decimal.Decimal{}
	for _, it := range t.s.returnItems {
		if returnOrders[it.ReturnOrderID] {
			out[it.OriginalItemID] = out[it.OriginalItemID].Add(it.ReturnedQty)
		}
	}
	return out, nil
}

func (t *txn) CreateReturnItem(_ context.Context, it returns.Item) error {
	t.s.returnItems[it.ID] = it
	return nil
}
