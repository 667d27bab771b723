package obligation

import (
	"context"
	"fmt"
	"time"

	"tradeledger/internal/core/apperror"
	"tradeledger/internal/core/id"
	"tradeledger/internal/core/tx"
	"tradeledger/internal/core/types"
	"tradeledger/pkg/logger"
)

// Target describes the obligation an order should carry.
type Target struct {
	// ID is used when a new row has to be created. Nil means generate one.
	ID       id.ID
	Kind     Kind
	StoreID  id.ID
	OrderID  id.ID
	Currency string
}

// Ledger creates, shrinks and deletes obligations.
// All methods join the caller's transaction when one is open.
type Ledger struct {
	repo      Repository
	txManager tx.Manager
}

// NewLedger creates a new obligation ledger.
func NewLedger(repo Repository, txManager tx.Manager) *Ledger {
	return &Ledger{repo: repo, txManager: txManager}
}

// Get returns an obligation by id.
func (l *Ledger) Get(ctx context.Context, obligationID id.ID) (*Obligation, error) {
	return l.repo.Get(ctx, obligationID)
}

// GetForUpdate returns an obligation locked for the enclosing transaction.
func (l *Ledger) GetForUpdate(ctx context.Context, obligationID id.ID) (*Obligation, error) {
	return l.repo.GetForUpdate(ctx, obligationID)
}

// FindByOrder returns the open obligation of an order, locked, or nil when there is none.
func (l *Ledger) FindByOrder(ctx context.Context, orderID id.ID) (*Obligation, error) {
	o, err := l.repo.GetByOrderForUpdate(ctx, orderID)
	if apperror.IsNotFound(err) {
		return nil, nil
	}
	return o, err
}

// ByOrder is FindByOrder without locking, for read paths.
func (l *Ledger) ByOrder(ctx context.Context, orderID id.ID) (*Obligation, error) {
	o, err := l.repo.GetByOrder(ctx, orderID)
	if apperror.IsNotFound(err) {
		return nil, nil
	}
	return o, err
}

// ListByStore returns the open receivables or payables of a store.
func (l *Ledger) ListByStore(ctx context.Context, storeID id.ID, kind Kind) ([]Obligation, error) {
	if err := kind.Validate(); err != nil {
		return nil, err
	}
	return l.repo.ListByStore(ctx, storeID, kind)
}

// Settle makes the order's obligation equal to outstanding: it is created, resized or
// deleted as needed. Returns the resulting obligation, nil when nothing is owed.
func (l *Ledger) Settle(ctx context.Context, target Target, outstanding types.Money) (*Obligation, error) {
	var result *Obligation
	err := l.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		current, err := l.FindByOrder(ctx, target.OrderID)
		if err != nil {
			return fmt.Errorf("find obligation of order %s: %w", target.OrderID, err)
		}
		now := time.Now().UTC()

		switch {
		case current == nil && !outstanding.IsPositive():
			return nil

		case current == nil:
			o := &Obligation{
				ID:        target.ID,
				Kind:      target.Kind,
				StoreID:   target.StoreID,
				OrderID:   target.OrderID,
				Amount:    outstanding,
				Currency:  target.Currency,
				CreatedAt: now,
				UpdatedAt: now,
			}
			if id.IsNil(o.ID) {
				o.ID = id.New()
			}
			if err := l.repo.Create(ctx, o); err != nil {
				return fmt.Errorf("create obligation: %w", err)
			}
			result = o
			return nil

		case !outstanding.IsPositive():
			if err := l.repo.Delete(ctx, current.ID); err != nil {
				return fmt.Errorf("delete obligation %s: %w", current.ID, err)
			}
			return nil

		default:
			current.Amount = outstanding
			current.Currency = target.Currency
			current.UpdatedAt = now
			if err := l.repo.Update(ctx, current); err != nil {
				return fmt.Errorf("update obligation %s: %w", current.ID, err)
			}
			result = current
			return nil
		}
	})
	return result, err
}

// Reduce subtracts a payment from a locked obligation and deletes it once nothing is owed.
// Returns the remaining obligation, nil when it was deleted.
func (l *Ledger) Reduce(ctx context.Context, o *Obligation, amount types.Money) (*Obligation, error) {
	if !amount.IsPositive() {
		return nil, apperror.NewValidation("payment amount must be positive").WithDetail("field", "amount")
	}
	if amount.GreaterThan(o.Amount) {
		return nil, apperror.NewObligationExceeded(o.ID.String(), amount.String(), o.Amount.String())
	}

	var remaining *Obligation
	err := l.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		o.Amount = o.Amount.Sub(amount)
		o.UpdatedAt = time.Now().UTC()
		if !o.Amount.IsPositive() {
			if err := l.repo.Delete(ctx, o.ID); err != nil {
				return fmt.Errorf("delete obligation %s: %w", o.ID, err)
			}
			logger.Info(ctx, "obligation settled", "obligation_id", o.ID, "order_id", o.OrderID)
			return nil
		}
		if err := l.repo.Update(ctx, o); err != nil {
			return fmt.Errorf("update obligation %s: %w", o.ID, err)
		}
		remaining = o
		return nil
	})
	return remaining, err
}

// DeleteByOrder removes the order's obligation if it has one.
func (l *Ledger) DeleteByOrder(ctx context.Context, orderID id.ID) error {
	return l.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		current, err := l.FindByOrder(ctx, orderID)
		if err != nil || current == nil {
			return err
		}
		return l.repo.Delete(ctx, current.ID)
	})
}
