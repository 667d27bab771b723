package dto

import (
	"tradeledger/internal/core/id"
	"tradeledger/internal/core/types"
	"tradeledger/internal/domain/transfer"
)

// CreateTransferRequest is the body of POST /stores/:store_id/transfers.
type CreateTransferRequest struct {
	DestinationStoreID id.ID          `json:"destinationStoreId"`
	ProductID          id.ID          `json:"productId"`
	Quantity           types.Quantity `json:"quantity"`
	Notes              string         `json:"notes"`
}

func (r CreateTransferRequest) ToDomain(sourceStoreID id.ID) transfer.CreateTransferRequest {
	return transfer.CreateTransferRequest{
		SourceStoreID:      sourceStoreID,
		DestinationStoreID: r.DestinationStoreID,
		ProductID:          r.ProductID,
		Quantity:           r.Quantity,
		Notes:              r.Notes,
	}
}

// UpdateTransferRequest is the body of PUT /stores/:store_id/transfers/:id.
type UpdateTransferRequest struct {
	DestinationStoreID *id.ID          `json:"destinationStoreId"`
	Quantity           *types.Quantity `json:"quantity"`
	Notes              *string         `json:"notes"`
}

func (r UpdateTransferRequest) ToDomain() transfer.UpdateTransferRequest {
	return transfer.UpdateTransferRequest{
		DestinationStoreID: r.DestinationStoreID,
		Quantity:           r.Quantity,
		Notes:              r.Notes,
	}
}
