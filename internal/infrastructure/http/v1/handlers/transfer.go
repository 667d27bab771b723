package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"tradeledger/internal/domain/transfer"
	"tradeledger/internal/infrastructure/http/v1/dto"
)

// TransferHandler serves stock transfers of one store.
type TransferHandler struct {
	*BaseHandler
	engine *transfer.Engine
}

// NewTransferHandler creates a transfer handler.
func NewTransferHandler(base *BaseHandler, engine *transfer.Engine) *TransferHandler {
	return &TransferHandler{BaseHandler: base, engine: engine}
}

// Create moves stock out of the store in the path.
// POST /stores/:store_id/transfers
func (h *TransferHandler) Create(c *gin.Context) {
	storeID, ok := h.StoreID(c)
	if !ok {
		return
	}
	var req dto.CreateTransferRequest
	if !h.BindJSON(c, &req) {
		return
	}
	var t *transfer.Transfer
	err := h.Run(c, "create_transfer", func(ctx context.Context) error {
		var err error
		t, err = h.engine.CreateTransfer(ctx, req.ToDomain(storeID))
		return err
	})
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, t)
}

// List returns incoming and outgoing transfers, newest first.
// GET /stores/:store_id/transfers
func (h *TransferHandler) List(c *gin.Context) {
	storeID, ok := h.StoreID(c)
	if !ok {
		return
	}
	items, err := h.engine.ListTransfers(c.Request.Context(), storeID)
	if err != nil {
		h.Error(c, err)
		return
	}
	if items == nil {
		items = []transfer.Transfer{}
	}
	h.OKList(c, items, len(items))
}

// Get returns one transfer the store takes part in.
// GET /stores/:store_id/transfers/:id
func (h *TransferHandler) Get(c *gin.Context) {
	storeID, ok := h.StoreID(c)
	if !ok {
		return
	}
	transferID, ok := h.PathID(c, "id")
	if !ok {
		return
	}
	t, err := h.engine.GetTransfer(c.Request.Context(), storeID, transferID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, t)
}

// Update changes destination, quantity or notes.
// PUT /stores/:store_id/transfers/:id
func (h *TransferHandler) Update(c *gin.Context) {
	storeID, ok := h.StoreID(c)
	if !ok {
		return
	}
	transferID, ok := h.PathID(c, "id")
	if !ok {
		return
	}
	var req dto.UpdateTransferRequest
	if !h.BindJSON(c, &req) {
		return
	}
	var t *transfer.Transfer
	err := h.Run(c, "update_transfer", func(ctx context.Context) error {
		var err error
		t, err = h.engine.UpdateTransfer(ctx, storeID, transferID, req.ToDomain())
		return err
	})
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, t)
}

// Cancel reverses the transfer.
// DELETE /stores/:store_id/transfers/:id
func (h *TransferHandler) Cancel(c *gin.Context) {
	storeID, ok := h.StoreID(c)
	if !ok {
		return
	}
	transferID, ok := h.PathID(c, "id")
	if !ok {
		return
	}
	var t *transfer.Transfer
	err := h.Run(c, "cancel_transfer", func(ctx context.Context) error {
		var err error
		t, err = h.engine.CancelTransfer(ctx, storeID, transferID)
		return err
	})
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, t)
}
