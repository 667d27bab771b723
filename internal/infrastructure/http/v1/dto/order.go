package dto

import (
	"tradeledger/internal/core/id"
	"tradeledger/internal/core/types"
	"tradeledger/internal/domain/order"
	"tradeledger/internal/domain/settlement"
)

// OrderItemRequest is one line of a sale or purchase. Price overrides the catalog price.
type OrderItemRequest struct {
	ProductID id.ID          `json:"productId"`
	Quantity  types.Quantity `json:"quantity"`
	Price     *types.Money   `json:"price,omitempty"`
}

// CreateOrderRequest is the body of POST /stores/:store_id/{sales,purchases}.
// CounterpartyID is the customer of a sale or the supplier of a purchase.
type CreateOrderRequest struct {
	CounterpartyID id.ID              `json:"counterpartyId"`
	Items          []OrderItemRequest `json:"items"`
	TotalAmount    types.Money        `json:"totalAmount"`
	Tax            types.Money        `json:"tax"`
	Currency       string             `json:"currency"`
	PaymentMode    string             `json:"paymentMode"`
	IsCredit       bool               `json:"isCredit"`
}

// ToDomain converts the body for the store in the path.
func (r CreateOrderRequest) ToDomain(storeID id.ID) settlement.CreateOrderRequest {
	return settlement.CreateOrderRequest{
		StoreID:        storeID,
		CounterpartyID: r.CounterpartyID,
		Items:          itemLines(r.Items),
		TotalAmount:    r.TotalAmount,
		Tax:            r.Tax,
		Currency:       r.Currency,
		PaymentMode:    r.PaymentMode,
		IsCredit:       r.IsCredit,
	}
}

// UpdateOrderRequest is the body of PUT /{sales,purchases}/:id. Absent fields are unchanged;
// a present items array replaces every line.
type UpdateOrderRequest struct {
	CounterpartyID *id.ID             `json:"counterpartyId"`
	Items          []OrderItemRequest `json:"items"`
	TotalAmount    *types.Money       `json:"totalAmount"`
	Tax            *types.Money       `json:"tax"`
	Currency       *string            `json:"currency"`
	PaymentMode    *string            `json:"paymentMode"`
	IsCredit       *bool              `json:"isCredit"`
}

func (r UpdateOrderRequest) ToDomain() settlement.UpdateOrderRequest {
	return settlement.UpdateOrderRequest{
		Items:          itemLines(r.Items),
		TotalAmount:    r.TotalAmount,
		Tax:            r.Tax,
		CounterpartyID: r.CounterpartyID,
		Currency:       r.Currency,
		PaymentMode:    r.PaymentMode,
		IsCredit:       r.IsCredit,
	}
}

// itemLines keeps nil as nil so "no items field" and "empty items" stay distinct.
func itemLines(items []OrderItemRequest) []order.ItemLine {
	if items == nil {
		return nil
	}
	lines := make([]order.ItemLine, 0, len(items))
	for _, it := range items {
		lines = append(lines, order.ItemLine{
			ProductID:     it.ProductID,
			Quantity:      it.Quantity,
			PriceOverride: it.Price,
		})
	}
	return lines
}
