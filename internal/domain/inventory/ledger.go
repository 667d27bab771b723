package inventory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"tradeledger/internal/core/apperror"
	"tradeledger/internal/core/id"
	"tradeledger/internal/core/tx"
	"tradeledger/internal/core/types"
	"tradeledger/pkg/logger"
)

// Ledger applies quantity changes under row locks and detects low-stock crossings.
// Adjust and AdjustMany join the caller's transaction when one is open in ctx.
type Ledger struct {
	repo      Repository
	txManager tx.Manager
}

// NewLedger creates a new inventory ledger.
func NewLedger(repo Repository, txManager tx.Manager) *Ledger {
	return &Ledger{repo: repo, txManager: txManager}
}

// Adjust applies a signed delta to one record.
func (l *Ledger) Adjust(ctx context.Context, productID, storeID id.ID, delta types.Quantity) (Adjustment, error) {
	var adj Adjustment
	err := l.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		adj, err = l.adjust(ctx, productID, storeID, delta)
		return err
	})
	return adj, err
}

// AdjustMany applies several deltas in one transaction. Deltas for the same pair are
// merged and records are locked in (store, product) order. The returned PostCommit
// must be run by the caller after its transaction commits.
func (l *Ledger) AdjustMany(ctx context.Context, deltas []Delta) (PostCommit, error) {
	var post PostCommit
	merged := MergeDeltas(deltas)
	if len(merged) == 0 {
		return post, nil
	}

	err := l.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		for _, d := range merged {
			adj, err := l.adjust(ctx, d.ProductID, d.StoreID, d.Quantity)
			if err != nil {
				return err
			}
			post.Add(adj)
		}
		return nil
	})
	if err != nil {
		return PostCommit{}, err
	}
	return post, nil
}

func (l *Ledger) adjust(ctx context.Context, productID, storeID id.ID, delta types.Quantity) (Adjustment, error) {
	if delta.IsZero() {
		return Adjustment{}, apperror.NewValidation("inventory delta must be non-zero")
	}

	rec, err := l.repo.GetForUpdate(ctx, productID, storeID)
	if err != nil {
		if !apperror.IsNotFound(err) {
			return Adjustment{}, fmt.Errorf("lock inventory %s/%s: %w", storeID, productID, err)
		}
		if delta.IsNegative() {
			return Adjustment{}, apperror.NewInsufficientStock(
				productID.String(), storeID.String(), delta.Neg().String(), types.Quantity(0).String())
		}
		return l.create(ctx, productID, storeID, delta)
	}

	before := rec.Quantity
	after, ok := before.Add(delta)
	if !ok {
		return Adjustment{}, apperror.NewValidation("inventory quantity out of range").
			WithDetail("product_id", productID.String()).
			WithDetail("quantity", before.String()).
			WithDetail("delta", delta.String())
	}
	if after.IsNegative() {
		return Adjustment{}, apperror.NewInsufficientStock(
			productID.String(), storeID.String(), delta.Neg().String(), before.String())
	}

	crossed := applyThreshold(rec, before, after)
	rec.Quantity = after
	rec.UpdatedAt = time.Now().UTC()
	if err := l.repo.Update(ctx, rec); err != nil {
		return Adjustment{}, fmt.Errorf("update inventory %s: %w", rec.ID, err)
	}

	if crossed {
		logger.Info(ctx, "inventory crossed low-stock threshold",
			"inventory_id", rec.ID,
			"product_id", productID,
			"store_id", storeID,
			"quantity", after,
			"threshold", rec.LowStockThreshold,
		)
	}

	return Adjustment{
		RecordID:  rec.ID,
		ProductID: productID,
		StoreID:   storeID,
		Before:    before,
		After:     after,
		Threshold: rec.LowStockThreshold,
		Crossed:   crossed,
	}, nil
}

func (l *Ledger) create(ctx context.Context, productID, storeID id.ID, qty types.Quantity) (Adjustment, error) {
	now := time.Now().UTC()
	rec := &Record{
		ID:                id.New(),
		ProductID:         productID,
		StoreID:           storeID,
		Quantity:          qty,
		LowStockThreshold: DefaultLowStockThreshold,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := l.repo.Create(ctx, rec); err != nil {
		return Adjustment{}, fmt.Errorf("create inventory %s/%s: %w", storeID, productID, err)
	}
	return Adjustment{
		RecordID:  rec.ID,
		ProductID: productID,
		StoreID:   storeID,
		Before:    0,
		After:     qty,
		Threshold: rec.LowStockThreshold,
		Created:   true,
	}, nil
}

// applyThreshold updates the notified flag and reports whether a crossing fires.
func applyThreshold(rec *Record, before, after types.Quantity) bool {
	threshold := rec.LowStockThreshold
	if before > threshold && after <= threshold && !rec.LowStockNotified {
		rec.LowStockNotified = true
		return true
	}
	if after > threshold {
		rec.LowStockNotified = false
	}
	return false
}

// MergeDeltas sums deltas per pair, drops zero results and sorts by (store, product).
func MergeDeltas(deltas []Delta) []Delta {
	sums := make(map[Key]types.Quantity, len(deltas))
	for _, d := range deltas {
		sums[d.key()] += d.Quantity
	}

	out := make([]Delta, 0, len(sums))
	for k, q := range sums {
		if q.IsZero() {
			continue
		}
		out = append(out, Delta{ProductID: k.ProductID, StoreID: k.StoreID, Quantity: q})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].key().Less(out[j].key()) })
	return out
}

// Get returns the record of a pair.
func (l *Ledger) Get(ctx context.Context, productID, storeID id.ID) (*Record, error) {
	return l.repo.Get(ctx, productID, storeID)
}

// ListByStore returns the records of a store.
func (l *Ledger) ListByStore(ctx context.Context, storeID id.ID, filter ListFilter) ([]Record, error) {
	return l.repo.ListByStore(ctx, storeID, filter)
}

// SetThreshold changes the low-stock threshold of a record. A record already at or
// below the new threshold is treated as notified so the change itself does not alert;
// a record above it is re-armed.
func (l *Ledger) SetThreshold(ctx context.Context, productID, storeID id.ID, threshold types.Quantity) (*Record, error) {
	if threshold.IsNegative() {
		return nil, apperror.NewValidation("low stock threshold must not be negative").
			WithDetail("field", "low_stock_threshold")
	}

	var rec *Record
	err := l.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		rec, err = l.repo.GetForUpdate(ctx, productID, storeID)
		if err != nil {
			return err
		}
		rec.LowStockThreshold = threshold
		rec.LowStockNotified = rec.IsLow()
		rec.UpdatedAt = time.Now().UTC()
		return l.repo.Update(ctx, rec)
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "low stock threshold changed",
		"product_id", productID,
		"store_id", storeID,
		"threshold", threshold,
	)
	return rec, nil
}
