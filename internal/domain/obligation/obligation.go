// Package obligation tracks the outstanding money of one order: a receivable for
// a sale, a payable for a purchase. A record exists only while its amount is positive.
package obligation

import (
	"context"
	"time"

	"tradeledger/internal/core/apperror"
	"tradeledger/internal/core/id"
	"tradeledger/internal/core/types"
)

// Kind is the direction of the debt.
type Kind string

const (
	Receivable Kind = "receivable"
	Payable    Kind = "payable"
)

// Validate rejects kinds other than Receivable and Payable.
func (k Kind) Validate() error {
	if k != Receivable && k != Payable {
		return apperror.NewValidation("unknown obligation kind").WithDetail("kind", string(k))
	}
	return nil
}

// Obligation is the outstanding balance of an order.
type Obligation struct {
	ID        id.ID       `db:"id" json:"id"`
	Kind      Kind        `db:"kind" json:"kind"`
	StoreID   id.ID       `db:"store_id" json:"storeId"`
	OrderID   id.ID       `db:"order_id" json:"orderId"`
	Amount    types.Money `db:"amount" json:"amount"`
	Currency  string      `db:"currency" json:"currency"`
	CreatedAt time.Time   `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time   `db:"updated_at" json:"updatedAt"`
}

// Repository persists obligations. At most one row per order.
type Repository interface {
	Create(ctx context.Context, o *Obligation) error
	Get(ctx context.Context, obligationID id.ID) (*Obligation, error)
	// GetForUpdate locks the row for the enclosing transaction.
	GetForUpdate(ctx context.Context, obligationID id.ID) (*Obligation, error)
	// GetByOrderForUpdate returns NotFound when the order has no open obligation.
	GetByOrderForUpdate(ctx context.Context, orderID id.ID) (*Obligation, error)
	// GetByOrder is GetByOrderForUpdate without the row lock.
	GetByOrder(ctx context.Context, orderID id.ID) (*Obligation, error)
	Update(ctx context.Context, o *Obligation) error
	Delete(ctx context.Context, obligationID id.ID) error
	// ListByStore returns the store's open obligations of one kind, newest first.
	ListByStore(ctx context.Context, storeID id.ID, kind Kind) ([]Obligation, error)
}
