package order

import (
	"context"

	"tradeledger/internal/core/apperror"
	appctx "tradeledger/internal/core/context"
	"tradeledger/internal/core/id"
)

// CheckStore rejects callers bound to another store. Callers without a store
// claim (company admins, internal jobs) pass.
func CheckStore(ctx context.Context, storeID id.ID) error {
	callerStore := appctx.GetStoreID(ctx)
	if callerStore == "" || callerStore == storeID.String() {
		return nil
	}
	return apperror.NewForbidden("resource belongs to another store").
		WithDetail("store_id", storeID.String())
}
