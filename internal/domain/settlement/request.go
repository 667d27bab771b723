// Package settlement creates, updates and deletes sales and purchases. Each operation
// prices the items, derives the payment status, moves inventory and keeps the order's
// obligation in step, all inside one transaction.
package settlement

import (
	"tradeledger/internal/core/id"
	"tradeledger/internal/core/types"
	"tradeledger/internal/domain/obligation"
	"tradeledger/internal/domain/order"
)

// CreateOrderRequest is the input of CreateSale and CreatePurchase.
type CreateOrderRequest struct {
	StoreID        id.ID
	CounterpartyID id.ID
	Items          []order.ItemLine
	TotalAmount    types.Money
	Tax            types.Money
	Currency       string
	PaymentMode    string
	IsCredit       bool
}

// UpdateOrderRequest lists the mutable fields of an order. Nil fields stay unchanged;
// a non-nil Items replaces every line.
type UpdateOrderRequest struct {
	Items          []order.ItemLine
	TotalAmount    *types.Money
	Tax            *types.Money
	CounterpartyID *id.ID
	Currency       *string
	PaymentMode    *string
	IsCredit       *bool
}

// View is an order together with its money state.
type View struct {
	Order      *order.Order           `json:"order"`
	Obligation *obligation.Obligation `json:"obligation,omitempty"`
	PaidToDate types.Money            `json:"paidToDate"`
	Expected   types.Money            `json:"expectedWithTax"`
}

// DefaultCurrency tags orders created without an explicit currency.
const DefaultCurrency = "USD"
