package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"tradeledger/internal/domain/inventory"
	"tradeledger/internal/infrastructure/http/v1/dto"
)

// InventoryHandler serves stock levels and thresholds of one store.
type InventoryHandler struct {
	*BaseHandler
	ledger *inventory.Ledger
}

// NewInventoryHandler creates an inventory handler.
func NewInventoryHandler(base *BaseHandler, ledger *inventory.Ledger) *InventoryHandler {
	return &InventoryHandler{BaseHandler: base, ledger: ledger}
}

// List returns the store's records; ?lowStock=true keeps only those at or below threshold.
// GET /stores/:store_id/inventory
func (h *InventoryHandler) List(c *gin.Context) {
	storeID, ok := h.StoreID(c)
	if !ok {
		return
	}
	var q dto.InventoryQuery
	if !h.BindQuery(c, &q) {
		return
	}
	items, err := h.ledger.ListByStore(c.Request.Context(), storeID, inventory.ListFilter{LowStockOnly: q.LowStock})
	if err != nil {
		h.Error(c, err)
		return
	}
	if items == nil {
		items = []inventory.Record{}
	}
	h.OKList(c, items, len(items))
}

// Get returns one record.
// GET /stores/:store_id/inventory/:product_id
func (h *InventoryHandler) Get(c *gin.Context) {
	storeID, ok := h.StoreID(c)
	if !ok {
		return
	}
	productID, ok := h.PathID(c, "product_id")
	if !ok {
		return
	}
	rec, err := h.ledger.Get(c.Request.Context(), productID, storeID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, rec)
}

// SetThreshold changes the low-stock threshold of one record.
// PUT /stores/:store_id/inventory/:product_id/threshold
func (h *InventoryHandler) SetThreshold(c *gin.Context) {
	storeID, ok := h.StoreID(c)
	if !ok {
		return
	}
	productID, ok := h.PathID(c, "product_id")
	if !ok {
		return
	}
	var req dto.SetThresholdRequest
	if !h.BindJSON(c, &req) {
		return
	}
	var rec *inventory.Record
	err := h.Run(c, "set_threshold", func(ctx context.Context) error {
		var err error
		rec, err = h.ledger.SetThreshold(ctx, productID, storeID, req.Threshold)
		return err
	})
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, rec)
}
