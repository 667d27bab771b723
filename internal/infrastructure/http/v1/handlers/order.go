package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"tradeledger/internal/core/apperror"
	"tradeledger/internal/core/id"
	"tradeledger/internal/domain/obligation"
	"tradeledger/internal/domain/order"
	"tradeledger/internal/domain/settlement"
	"tradeledger/internal/infrastructure/http/v1/dto"
)

// OrderHandler serves one order kind: sales or purchases.
type OrderHandler struct {
	*BaseHandler
	engine *settlement.Engine
	kind   order.Kind
}

// NewOrderHandler creates a handler for kind.
func NewOrderHandler(base *BaseHandler, engine *settlement.Engine, kind order.Kind) *OrderHandler {
	return &OrderHandler{BaseHandler: base, engine: engine, kind: kind}
}

// Create settles a new order in the store.
// POST /stores/:store_id/sales, POST /stores/:store_id/purchases
func (h *OrderHandler) Create(c *gin.Context) {
	storeID, ok := h.StoreID(c)
	if !ok {
		return
	}
	var req dto.CreateOrderRequest
	if !h.BindJSON(c, &req) {
		return
	}

	var view *settlement.View
	err := h.Run(c, "create_"+string(h.kind), func(ctx context.Context) error {
		var err error
		if h.kind == order.KindSale {
			view, err = h.engine.CreateSale(ctx, req.ToDomain(storeID))
		} else {
			view, err = h.engine.CreatePurchase(ctx, req.ToDomain(storeID))
		}
		return err
	})
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, view)
}

// List returns the store's orders of this kind, newest first.
// GET /stores/:store_id/sales, GET /stores/:store_id/purchases
func (h *OrderHandler) List(c *gin.Context) {
	storeID, ok := h.StoreID(c)
	if !ok {
		return
	}
	items, err := h.engine.ListOrders(c.Request.Context(), storeID, h.kind)
	if err != nil {
		h.Error(c, err)
		return
	}
	if items == nil {
		items = []order.Order{}
	}
	h.OKList(c, items, len(items))
}

// Obligations returns what the store is still owed on sales, or still owes on purchases.
// GET /stores/:store_id/receivables, GET /stores/:store_id/payables
func (h *OrderHandler) Obligations(c *gin.Context) {
	storeID, ok := h.StoreID(c)
	if !ok {
		return
	}
	kind := order.DirectionOf(h.kind).ObligationKind()
	items, err := h.engine.ListObligations(c.Request.Context(), storeID, kind)
	if err != nil {
		h.Error(c, err)
		return
	}
	if items == nil {
		items = []obligation.Obligation{}
	}
	h.OKList(c, items, len(items))
}

// Get returns the order with its obligation and paid-to-date.
// GET /sales/:id, GET /purchases/:id
func (h *OrderHandler) Get(c *gin.Context) {
	orderID, ok := h.PathID(c, "id")
	if !ok {
		return
	}
	view, err := h.load(c.Request.Context(), orderID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, view)
}

// Update replaces the mutable fields of the order.
// PUT /sales/:id, PUT /purchases/:id
func (h *OrderHandler) Update(c *gin.Context) {
	orderID, ok := h.PathID(c, "id")
	if !ok {
		return
	}
	var req dto.UpdateOrderRequest
	if !h.BindJSON(c, &req) {
		return
	}

	var view *settlement.View
	err := h.Run(c, "update_"+string(h.kind), func(ctx context.Context) error {
		if _, err := h.load(ctx, orderID); err != nil {
			return err
		}
		var err error
		view, err = h.engine.UpdateOrder(ctx, orderID, req.ToDomain())
		return err
	})
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, view)
}

// Delete reverses and removes the order.
// DELETE /sales/:id, DELETE /purchases/:id
func (h *OrderHandler) Delete(c *gin.Context) {
	orderID, ok := h.PathID(c, "id")
	if !ok {
		return
	}
	err := h.Run(c, "delete_"+string(h.kind), func(ctx context.Context) error {
		if _, err := h.load(ctx, orderID); err != nil {
			return err
		}
		return h.engine.DeleteOrder(ctx, orderID)
	})
	if err != nil {
		h.Error(c, err)
		return
	}
	h.NoContent(c)
}

// load hides orders of the other kind behind 404.
func (h *OrderHandler) load(ctx context.Context, orderID id.ID) (*settlement.View, error) {
	view, err := h.engine.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if view.Order.Kind != h.kind {
		return nil, apperror.NewNotFound(string(h.kind), orderID.String())
	}
	return view, nil
}
