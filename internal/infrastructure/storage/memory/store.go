// Package memory is an in-process implementation of every ledger repository.
// Transactions are serialized by one mutex and rolled back by restoring a snapshot,
// which gives tests the same all-or-nothing behaviour as the postgres store.
package memory

import (
	"context"
	"sync"

	"tradeledger/internal/core/id"
	"tradeledger/internal/core/tx"
	"tradeledger/internal/domain/catalog"
	"tradeledger/internal/domain/inventory"
	"tradeledger/internal/domain/obligation"
	"tradeledger/internal/domain/order"
	"tradeledger/internal/domain/payment"
	"tradeledger/internal/domain/transfer"
)

type counterpartyKey struct {
	kind    catalog.CounterpartyKind
	storeID id.ID
	id      id.ID
}

type state struct {
	stores         map[id.ID]catalog.Store
	products       map[id.ID]catalog.Product
	counterparties map[counterpartyKey]bool
	inventory      map[inventory.Key]inventory.Record
	orders         map[id.ID]order.Order
	obligations    map[id.ID]obligation.Obligation
	payments       map[id.ID]payment.Payment
	transfers      map[id.ID]transfer.Transfer
}

func newState() *state {
	return &state{
		stores:         make(map[id.ID]catalog.Store),
		products:       make(map[id.ID]catalog.Product),
		counterparties: make(map[counterpartyKey]bool),
		inventory:      make(map[inventory.Key]inventory.Record),
		orders:         make(map[id.ID]order.Order),
		obligations:    make(map[id.ID]obligation.Obligation),
		payments:       make(map[id.ID]payment.Payment),
		transfers:      make(map[id.ID]transfer.Transfer),
	}
}

func (s *state) clone() *state {
	c := newState()
	for k, v := range s.stores {
		c.stores[k] = v
	}
	for k, v := range s.products {
		c.products[k] = v
	}
	for k, v := range s.counterparties {
		c.counterparties[k] = v
	}
	for k, v := range s.inventory {
		c.inventory[k] = v
	}
	for k, v := range s.orders {
		c.orders[k] = copyOrder(v)
	}
	for k, v := range s.obligations {
		c.obligations[k] = v
	}
	for k, v := range s.payments {
		c.payments[k] = v
	}
	for k, v := range s.transfers {
		c.transfers[k] = v
	}
	return c
}

// Store holds all data and implements tx.Manager.
type Store struct {
	mu   sync.Mutex
	data *state
}

var _ tx.Manager = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{data: newState()}
}

type txKey struct{}

func inTx(ctx context.Context) bool {
	return ctx.Value(txKey{}) != nil
}

// RunInTransaction runs fn with exclusive access. Nested calls join the outer transaction.
func (s *Store) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if inTx(ctx) {
		return fn(ctx)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.data.clone()
	defer func() {
		if p := recover(); p != nil {
			s.data = snapshot
			panic(p)
		}
		if err != nil {
			s.data = snapshot
		}
	}()

	return fn(context.WithValue(ctx, txKey{}, true))
}

// view runs fn against the current data, taking the lock unless ctx is in a transaction.
func (s *Store) view(ctx context.Context, fn func(d *state) error) error {
	if inTx(ctx) {
		return fn(s.data)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.data)
}

// Repositories

func (s *Store) Catalog() *CatalogRepo { return &CatalogRepo{s: s} }
func (s *Store) Inventory() *InventoryRepo { return &InventoryRepo{s: s} }
func (s *Store) Orders() *OrderRepo { return &OrderRepo{s: s} }
func (s *Store) Obligations() *ObligationRepo { return &ObligationRepo{s: s} }
func (s *Store) Payments() *PaymentRepo { return &PaymentRepo{s: s} }
func (s *Store) Transfers() *TransferRepo { return &TransferRepo{s: s} }

// Seeding helpers. The catalog is owned by another service, so these are the only writers besides CreateProduct.

// AddStore registers a store.
func (s *Store) AddStore(st catalog.Store) {
	_ = s.view(context.Background(), func(d *state) error {
		d.stores[st.ID] = st
		return nil
	})
}

// AddProduct registers a product.
func (s *Store) AddProduct(p catalog.Product) {
	_ = s.view(context.Background(), func(d *state) error {
		d.products[p.ID] = p
		return nil
	})
}

// AddCounterparty registers a customer or supplier of a store.
func (s *Store) AddCounterparty(kind catalog.CounterpartyKind, storeID, counterpartyID id.ID) {
	_ = s.view(context.Background(), func(d *state) error {
		d.counterparties[counterpartyKey{kind: kind, storeID: storeID, id: counterpartyID}] = true
		return nil
	})
}

func copyOrder(o order.Order) order.Order {
	items := make([]order.Item, len(o.Items))
	for i, it := range o.Items {
		if it.PriceOverride != nil {
			p := *it.PriceOverride
			it.PriceOverride = &p
		}
		items[i] = it
	}
	o.Items = items
	return o
}
