// Package order defines the generic order (sale or purchase), its items and the
// deterministic payment status rule. Settlement lives in package settlement.
package order

import (
	"context"
	"fmt"
	"time"

	"tradeledger/internal/core/apperror"
	"tradeledger/internal/core/id"
	"tradeledger/internal/core/types"
)

// Kind tells sales from purchases.
type Kind string

const (
	KindSale     Kind = "sale"
	KindPurchase Kind = "purchase"
)

// Status is derived from amounts; it is never set by a caller.
type Status string

const (
	StatusUnpaid        Status = "UNPAID"
	StatusPartiallyPaid Status = "PARTIALLY_PAID"
	StatusPaid          Status = "PAID"
)

// Order is a sale or a purchase of one store.
type Order struct {
	ID             id.ID       `db:"id" json:"id"`
	Kind           Kind        `db:"kind" json:"kind"`
	StoreID        id.ID       `db:"store_id" json:"storeId"`
	CounterpartyID id.ID       `db:"counterparty_id" json:"counterpartyId"`
	TotalAmount    types.Money `db:"total_amount" json:"totalAmount"`
	Tax            types.Money `db:"tax" json:"tax"`
	Currency       string      `db:"currency" json:"currency"`
	PaymentMode    string      `db:"payment_mode" json:"paymentMode,omitempty"`
	IsCredit       bool        `db:"is_credit" json:"isCredit"`
	Status         Status      `db:"status" json:"status"`
	Version        int         `db:"version" json:"version"`
	CreatedAt      time.Time   `db:"created_at" json:"createdAt"`
	UpdatedAt      time.Time   `db:"updated_at" json:"updatedAt"`

	Items []Item `db:"-" json:"items"`
}

// Item is one priced line of an order.
type Item struct {
	ID            id.ID          `db:"id" json:"id"`
	OrderID       id.ID          `db:"order_id" json:"orderId"`
	LineNo        int            `db:"line_no" json:"lineNo"`
	ProductID     id.ID          `db:"product_id" json:"productId"`
	Quantity      types.Quantity `db:"quantity" json:"quantity"`
	PriceOverride *types.Money   `db:"price_override" json:"priceOverride,omitempty"`
	UnitPrice     types.Money    `db:"unit_price" json:"unitPrice"`
	Amount        types.Money    `db:"amount" json:"amount"`
}

// Direction returns the capability set of the order's kind.
func (o *Order) Direction() Direction {
	return DirectionOf(o.Kind)
}

// ExpectedAmount is the sum of line amounts without tax.
func (o *Order) ExpectedAmount() types.Money {
	return sumLines(o.Items)
}

// ExpectedWithTax recomputes the amount owed from the current items.
func (o *Order) ExpectedWithTax() types.Money {
	return WithTax(o.ExpectedAmount(), o.Tax)
}

// ItemLine is the caller's view of an item before pricing.
type ItemLine struct {
	ProductID     id.ID          `json:"productId"`
	Quantity      types.Quantity `json:"quantity"`
	PriceOverride *types.Money   `json:"priceOverride,omitempty"`
}

var hundred = types.MustMoney("100")

// WithTax scales amount by (1 + tax/100), rounded to the money precision.
func WithTax(amount, taxPct types.Money) types.Money {
	factor := types.MustMoney("1").Add(taxPct.Div(hundred))
	return types.RoundMoney(amount.Mul(factor))
}

func sumLines(items []Item) types.Money {
	total := types.Zero()
	for _, it := range items {
		total = total.Add(it.Amount)
	}
	return total
}

// DeriveStatus is the three-way rule shared by settlement and payments:
// nothing paid is UNPAID, less than owed is PARTIALLY_PAID, otherwise PAID.
func DeriveStatus(paid, expectedWithTax types.Money) Status {
	switch {
	case !paid.IsPositive():
		return StatusUnpaid
	case paid.LessThan(expectedWithTax):
		return StatusPartiallyPaid
	default:
		return StatusPaid
	}
}

// ValidateLines checks item shape before any lookup.
func ValidateLines(lines []ItemLine) error {
	if len(lines) == 0 {
		return apperror.NewValidation("order must contain at least one item").WithDetail("field", "items")
	}
	for i, line := range lines {
		if id.IsNil(line.ProductID) {
			return apperror.NewValidation(fmt.Sprintf("item %d: product is required", i+1)).
				WithDetail("field", fmt.Sprintf("items[%d].product_id", i))
		}
		if !line.Quantity.IsPositive() {
			return apperror.NewValidation(fmt.Sprintf("item %d: quantity must be positive", i+1)).
				WithDetail("field", fmt.Sprintf("items[%d].quantity", i))
		}
		if line.PriceOverride != nil && line.PriceOverride.IsNegative() {
			return apperror.NewValidation(fmt.Sprintf("item %d: price must not be negative", i+1)).
				WithDetail("field", fmt.Sprintf("items[%d].price", i))
		}
	}
	return nil
}

// ValidateAmounts checks total and tax ranges.
func ValidateAmounts(total, taxPct types.Money) error {
	if total.IsNegative() {
		return apperror.NewValidation("total amount must not be negative").WithDetail("field", "total_amount")
	}
	if taxPct.IsNegative() || taxPct.GreaterThan(hundred) {
		return apperror.NewValidation("tax must be between 0 and 100").WithDetail("field", "tax")
	}
	return nil
}

// Repository persists orders together with their items.
type Repository interface {
	// Create inserts the order and all its items.
	Create(ctx context.Context, o *Order) error
	// Get loads the order with items.
	Get(ctx context.Context, orderID id.ID) (*Order, error)
	// GetForUpdate loads the order with items and locks the order row.
	GetForUpdate(ctx context.Context, orderID id.ID) (*Order, error)
	// Update stores order fields and replaces all items.
	Update(ctx context.Context, o *Order) error
	// UpdateStatus stores only the status (payment path).
	UpdateStatus(ctx context.Context, orderID id.ID, status Status) error
	// Delete removes the order and its items.
	Delete(ctx context.Context, orderID id.ID) error
	// ListByStore returns the store's orders of one kind with items, newest first.
	ListByStore(ctx context.Context, storeID id.ID, kind Kind) ([]Order, error)
}
