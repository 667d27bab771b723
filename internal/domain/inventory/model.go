// Package inventory owns the quantity counter per (product, store) pair.
package inventory

import (
	"context"
	"time"

	"tradeledger/internal/core/id"
	"tradeledger/internal/core/types"
)

// DefaultLowStockThreshold applies to records created lazily by an adjustment.
var DefaultLowStockThreshold = types.NewQuantity(10)

// Record is the stock counter of one product in one store.
type Record struct {
	ID                id.ID          `db:"id" json:"id"`
	ProductID         id.ID          `db:"product_id" json:"productId"`
	StoreID           id.ID          `db:"store_id" json:"storeId"`
	Quantity          types.Quantity `db:"quantity" json:"quantity"`
	LowStockThreshold types.Quantity `db:"low_stock_threshold" json:"lowStockThreshold"`
	LowStockNotified  bool           `db:"low_stock_notified" json:"lowStockNotified"`
	CreatedAt         time.Time      `db:"created_at" json:"createdAt"`
	UpdatedAt         time.Time      `db:"updated_at" json:"updatedAt"`
}

// IsLow reports whether the record sits at or below its threshold.
func (r Record) IsLow() bool {
	return r.Quantity <= r.LowStockThreshold
}

// Key identifies a record.
type Key struct {
	StoreID   id.ID
	ProductID id.ID
}

// Less orders keys by store, then product. All multi-record lock acquisition uses this order.
func (k Key) Less(other Key) bool {
	if k.StoreID != other.StoreID {
		return id.Less(k.StoreID, other.StoreID)
	}
	return id.Less(k.ProductID, other.ProductID)
}

// Delta is one signed change requested against a record.
type Delta struct {
	ProductID id.ID
	StoreID   id.ID
	Quantity  types.Quantity
}

func (d Delta) key() Key { return Key{StoreID: d.StoreID, ProductID: d.ProductID} }

// Adjustment is the outcome of a single Adjust call.
type Adjustment struct {
	RecordID  id.ID
	ProductID id.ID
	StoreID   id.ID
	Before    types.Quantity
	After     types.Quantity
	Threshold types.Quantity
	Created   bool
	// Crossed is set when this adjustment moved the record into low stock
	// and no notification was pending for it.
	Crossed bool
}

// Crossing is a low-stock event waiting for the enclosing transaction to commit.
type Crossing struct {
	InventoryID id.ID
	ProductID   id.ID
	StoreID     id.ID
	Quantity    types.Quantity
	Threshold   types.Quantity
	At          time.Time
}

// Notifier receives committed crossings.
type Notifier interface {
	NotifyLowStock(ctx context.Context, crossings []Crossing)
}

// PostCommit collects crossings found inside a transaction.
// The caller runs it only once the transaction has committed.
type PostCommit struct {
	crossings []Crossing
}

// Add records the crossing of adj, if any.
func (p *PostCommit) Add(adj Adjustment) {
	if !adj.Crossed {
		return
	}
	p.crossings = append(p.crossings, Crossing{
		InventoryID: adj.RecordID,
		ProductID:   adj.ProductID,
		StoreID:     adj.StoreID,
		Quantity:    adj.After,
		Threshold:   adj.Threshold,
		At:          time.Now().UTC(),
	})
}

// Merge appends the crossings of other.
func (p *PostCommit) Merge(other PostCommit) {
	p.crossings = append(p.crossings, other.crossings...)
}

// Crossings returns a copy of the pending events.
func (p PostCommit) Crossings() []Crossing {
	out := make([]Crossing, len(p.crossings))
	copy(out, p.crossings)
	return out
}

// Len is the number of pending events.
func (p PostCommit) Len() int { return len(p.crossings) }

// Run hands the crossings to n. Call it after commit, never inside the transaction.
func (p PostCommit) Run(ctx context.Context, n Notifier) {
	if n == nil || len(p.crossings) == 0 {
		return
	}
	n.NotifyLowStock(ctx, p.Crossings())
}

// ListFilter narrows ListByStore.
type ListFilter struct {
	LowStockOnly bool
}

// Repository persists inventory records.
type Repository interface {
	// GetForUpdate loads the record and holds an exclusive row lock until the
	// enclosing transaction ends. Returns NotFound when the pair has no record.
	GetForUpdate(ctx context.Context, productID, storeID id.ID) (*Record, error)
	Get(ctx context.Context, productID, storeID id.ID) (*Record, error)
	Create(ctx context.Context, r *Record) error
	Update(ctx context.Context, r *Record) error
	ListByStore(ctx context.Context, storeID id.ID, filter ListFilter) ([]Record, error)
}
