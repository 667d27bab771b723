// Package payment applies incoming and outgoing payments to obligations and
// re-derives the status of the paid order.
package payment

import (
	"context"
	"time"

	"tradeledger/internal/core/id"
	"tradeledger/internal/core/types"
	"tradeledger/internal/domain/order"
)

// Payment is money received for a sale (in) or paid for a purchase (out).
type Payment struct {
	ID           id.ID                  `db:"id" json:"id"`
	Direction    order.PaymentDirection `db:"direction" json:"direction"`
	StoreID      id.ID                  `db:"store_id" json:"storeId"`
	ObligationID id.ID                  `db:"obligation_id" json:"obligationId"`
	OrderID      id.ID                  `db:"order_id" json:"orderId"`
	Amount       types.Money            `db:"amount" json:"amount"`
	Currency     string                 `db:"currency" json:"currency"`
	Mode         string                 `db:"mode" json:"mode,omitempty"`
	CreatedAt    time.Time              `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time              `db:"updated_at" json:"updatedAt"`
}

// ApplyPaymentRequest is the input of ApplyPayment.
type ApplyPaymentRequest struct {
	ObligationID id.ID
	OrderID      id.ID
	Amount       types.Money
	Mode         string
	Currency     string
}

// UpdatePaymentRequest lists the mutable fields of a payment. Nil means unchanged.
type UpdatePaymentRequest struct {
	Amount *types.Money
	Mode   *string
}

// Repository persists payments.
type Repository interface {
	Create(ctx context.Context, p *Payment) error
	Get(ctx context.Context, paymentID id.ID) (*Payment, error)
	GetForUpdate(ctx context.Context, paymentID id.ID) (*Payment, error)
	Update(ctx context.Context, p *Payment) error
	Delete(ctx context.Context, paymentID id.ID) error
	ListByOrder(ctx context.Context, orderID id.ID) ([]Payment, error)
	// ListByStore returns the store's payments in one direction, newest first.
	ListByStore(ctx context.Context, storeID id.ID, direction order.PaymentDirection) ([]Payment, error)
	// SumByOrder is the total of all payments recorded against the order.
	SumByOrder(ctx context.Context, orderID id.ID) (types.Money, error)
	// DeleteByOrder removes every payment of the order.
	DeleteByOrder(ctx context.Context, orderID id.ID) error
}
