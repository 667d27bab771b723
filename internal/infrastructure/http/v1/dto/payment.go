package dto

import (
	"tradeledger/internal/core/id"
	"tradeledger/internal/core/types"
	"tradeledger/internal/domain/payment"
)

// ApplyPaymentRequest is the body of POST /payments.
type ApplyPaymentRequest struct {
	ObligationID id.ID       `json:"obligationId"`
	OrderID      id.ID       `json:"orderId"`
	Amount       types.Money `json:"amount"`
	Mode         string      `json:"mode"`
	Currency     string      `json:"currency"`
}

func (r ApplyPaymentRequest) ToDomain() payment.ApplyPaymentRequest {
	return payment.ApplyPaymentRequest{
		ObligationID: r.ObligationID,
		OrderID:      r.OrderID,
		Amount:       r.Amount,
		Mode:         r.Mode,
		Currency:     r.Currency,
	}
}

// UpdatePaymentRequest is the body of PUT /payments/:id.
type UpdatePaymentRequest struct {
	Amount *types.Money `json:"amount"`
	Mode   *string      `json:"mode"`
}

func (r UpdatePaymentRequest) ToDomain() payment.UpdatePaymentRequest {
	return payment.UpdatePaymentRequest{Amount: r.Amount, Mode: r.Mode}
}
