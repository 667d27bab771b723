// Package handlers maps ledger operations to HTTP. Handlers hold no business rules:
// they bind input, call one engine operation and render its result or error.
package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"tradeledger/internal/core/apperror"
	"tradeledger/internal/core/id"
	"tradeledger/internal/domain/order"
	"tradeledger/internal/infrastructure/http/v1/dto"
)

// OperationRecorder receives the outcome of every ledger operation. Optional.
type OperationRecorder interface {
	RecordOperation(operation string, err error, duration time.Duration)
}

// BaseHandler provides common handler utilities.
type BaseHandler struct {
	recorder OperationRecorder
}

// NewBaseHandler creates a new base handler. recorder may be nil.
func NewBaseHandler(recorder OperationRecorder) *BaseHandler {
	return &BaseHandler{recorder: recorder}
}

// BindJSON binds the request body.
func (h *BaseHandler) BindJSON(c *gin.Context, obj any) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		h.Error(c, apperror.NewValidation("invalid request body").WithDetail("error", err.Error()))
		return false
	}
	return true
}

// BindQuery binds query parameters.
func (h *BaseHandler) BindQuery(c *gin.Context, obj any) bool {
	if err := c.ShouldBindQuery(obj); err != nil {
		h.Error(c, apperror.NewValidation("invalid query parameters").WithDetail("error", err.Error()))
		return false
	}
	return true
}

// PathID parses a UUID path parameter.
func (h *BaseHandler) PathID(c *gin.Context, param string) (id.ID, bool) {
	v, err := id.Parse(c.Param(param))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid "+param).WithDetail("field", param))
		return id.Nil(), false
	}
	return v, true
}

// StoreID parses :store_id and rejects callers bound to another store.
func (h *BaseHandler) StoreID(c *gin.Context) (id.ID, bool) {
	storeID, ok := h.PathID(c, "store_id")
	if !ok {
		return storeID, false
	}
	if err := order.CheckStore(c.Request.Context(), storeID); err != nil {
		h.Error(c, err)
		return storeID, false
	}
	return storeID, true
}

// Run executes one ledger operation and records its outcome.
func (h *BaseHandler) Run(c *gin.Context, operation string, fn func(ctx context.Context) error) error {
	start := time.Now()
	err := fn(c.Request.Context())
	if h.recorder != nil {
		h.recorder.RecordOperation(operation, err, time.Since(start))
	}
	return err
}

// Error registers the error on the gin context and aborts.
// The JSON body is produced by middleware.ErrorHandler.
func (h *BaseHandler) Error(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}

// Created sends 201 with the resource.
func (h *BaseHandler) Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, data)
}

// OK sends 200 with data.
func (h *BaseHandler) OK(c *gin.Context, data any) {
	c.JSON(http.StatusOK, data)
}

// OKList sends 200 with a list envelope.
func (h *BaseHandler) OKList(c *gin.Context, items any, n int) {
	c.JSON(http.StatusOK, dto.NewListResponse(items, n))
}

// NoContent sends 204.
func (h *BaseHandler) NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}
