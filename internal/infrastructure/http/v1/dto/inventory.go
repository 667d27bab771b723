package dto

import "tradeledger/internal/core/types"

// SetThresholdRequest is the body of PUT /stores/:store_id/inventory/:product_id/threshold.
type SetThresholdRequest struct {
	Threshold types.Quantity `json:"threshold"`
}

// InventoryQuery filters GET /stores/:store_id/inventory.
type InventoryQuery struct {
	LowStock bool `form:"lowStock"`
}
