// Package transfer moves stock between two stores as one cancellable operation.
package transfer

import (
	"context"
	"time"

	"tradeledger/internal/core/id"
	"tradeledger/internal/core/types"
)

// Status of a transfer. CANCELLED is terminal.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusCompleted Status = "COMPLETED"
	StatusCancelled Status = "CANCELLED"
)

// Transfer moves Quantity of ProductID out of the source store into
// DestinationProductID of the destination store.
type Transfer struct {
	ID                   id.ID          `db:"id" json:"id"`
	SourceStoreID        id.ID          `db:"source_store_id" json:"sourceStoreId"`
	DestinationStoreID   id.ID          `db:"destination_store_id" json:"destinationStoreId"`
	ProductID            id.ID          `db:"product_id" json:"productId"`
	DestinationProductID id.ID          `db:"destination_product_id" json:"destinationProductId"`
	Quantity             types.Quantity `db:"quantity" json:"quantity"`
	Status               Status         `db:"status" json:"status"`
	Notes                string         `db:"notes" json:"notes,omitempty"`
	CreatedAt            time.Time      `db:"created_at" json:"createdAt"`
	UpdatedAt            time.Time      `db:"updated_at" json:"updatedAt"`
}

// CreateTransferRequest is the input of CreateTransfer.
type CreateTransferRequest struct {
	SourceStoreID      id.ID
	DestinationStoreID id.ID
	ProductID          id.ID
	Quantity           types.Quantity
	Notes              string
}

// UpdateTransferRequest lists the mutable fields of a transfer. Nil means unchanged.
type UpdateTransferRequest struct {
	DestinationStoreID *id.ID
	Quantity           *types.Quantity
	Notes              *string
}

// Repository persists transfers.
type Repository interface {
	Create(ctx context.Context, t *Transfer) error
	Get(ctx context.Context, transferID id.ID) (*Transfer, error)
	GetForUpdate(ctx context.Context, transferID id.ID) (*Transfer, error)
	Update(ctx context.Context, t *Transfer) error
	// ListByStore returns incoming and outgoing transfers, newest first.
	ListByStore(ctx context.Context, storeID id.ID) ([]Transfer, error)
}
