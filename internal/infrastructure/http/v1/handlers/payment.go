package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"tradeledger/internal/domain/order"
	"tradeledger/internal/domain/payment"
	"tradeledger/internal/infrastructure/http/v1/dto"
)

// PaymentHandler serves payments against receivables and payables.
type PaymentHandler struct {
	*BaseHandler
	engine *payment.Engine
}

// NewPaymentHandler creates a payment handler.
func NewPaymentHandler(base *BaseHandler, engine *payment.Engine) *PaymentHandler {
	return &PaymentHandler{BaseHandler: base, engine: engine}
}

// Apply records a payment.
// POST /payments
func (h *PaymentHandler) Apply(c *gin.Context) {
	var req dto.ApplyPaymentRequest
	if !h.BindJSON(c, &req) {
		return
	}
	var p *payment.Payment
	err := h.Run(c, "apply_payment", func(ctx context.Context) error {
		var err error
		p, err = h.engine.ApplyPayment(ctx, req.ToDomain())
		return err
	})
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, p)
}

// Get returns one payment.
// GET /payments/:id
func (h *PaymentHandler) Get(c *gin.Context) {
	paymentID, ok := h.PathID(c, "id")
	if !ok {
		return
	}
	p, err := h.engine.Get(c.Request.Context(), paymentID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, p)
}

// ListByStore returns the store's payments in one direction, newest first.
// GET /stores/:store_id/payments-in, GET /stores/:store_id/payments-out
func (h *PaymentHandler) ListByStore(direction order.PaymentDirection) gin.HandlerFunc {
	return func(c *gin.Context) {
		storeID, ok := h.StoreID(c)
		if !ok {
			return
		}
		items, err := h.engine.ListByStore(c.Request.Context(), storeID, direction)
		if err != nil {
			h.Error(c, err)
			return
		}
		h.list(c, items)
	}
}

// ListByOrder returns the payments of one sale or purchase, oldest first.
// GET /sales/:id/payments, GET /purchases/:id/payments
func (h *PaymentHandler) ListByOrder(kind order.Kind) gin.HandlerFunc {
	return func(c *gin.Context) {
		orderID, ok := h.PathID(c, "id")
		if !ok {
			return
		}
		items, err := h.engine.ListByOrder(c.Request.Context(), kind, orderID)
		if err != nil {
			h.Error(c, err)
			return
		}
		h.list(c, items)
	}
}

func (h *PaymentHandler) list(c *gin.Context, items []payment.Payment) {
	if items == nil {
		items = []payment.Payment{}
	}
	h.OKList(c, items, len(items))
}

// Update changes amount or mode of a payment.
// PUT /payments/:id
func (h *PaymentHandler) Update(c *gin.Context) {
	paymentID, ok := h.PathID(c, "id")
	if !ok {
		return
	}
	var req dto.UpdatePaymentRequest
	if !h.BindJSON(c, &req) {
		return
	}
	var p *payment.Payment
	err := h.Run(c, "update_payment", func(ctx context.Context) error {
		var err error
		p, err = h.engine.UpdatePayment(ctx, paymentID, req.ToDomain())
		return err
	})
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, p)
}

// Delete reverses a payment.
// DELETE /payments/:id
func (h *PaymentHandler) Delete(c *gin.Context) {
	paymentID, ok := h.PathID(c, "id")
	if !ok {
		return
	}
	err := h.Run(c, "delete_payment", func(ctx context.Context) error {
		return h.engine.DeletePayment(ctx, paymentID)
	})
	if err != nil {
		h.Error(c, err)
		return
	}
	h.NoContent(c)
}
