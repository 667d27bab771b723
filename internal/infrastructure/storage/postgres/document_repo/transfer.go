package document_repo

import (
	"context"

	"github.com/Masterminds/squirrel"

	"tradeledger/internal/core/apperror"
	"tradeledger/internal/core/id"
	"tradeledger/internal/domain/transfer"
	"tradeledger/internal/infrastructure/storage/postgres"
)

const transfersTable = "transfers"

// TransferRepo implements transfer.Repository.
type TransferRepo struct {
	baseRepo[transfer.Transfer]
}

var _ transfer.Repository = (*TransferRepo)(nil)

// NewTransferRepo creates a new transfer repository.
func NewTransferRepo(txm *postgres.TxManager) *TransferRepo {
	return &TransferRepo{baseRepo: newBaseRepo[transfer.Transfer](txm, transfersTable, "transfer")}
}

func (r *TransferRepo) Create(ctx context.Context, t *transfer.Transfer) error {
	return r.insert(ctx, t)
}

func (r *TransferRepo) Get(ctx context.Context, transferID id.ID) (*transfer.Transfer, error) {
	return r.get(ctx, transferID, false)
}

func (r *TransferRepo) GetForUpdate(ctx context.Context, transferID id.ID) (*transfer.Transfer, error) {
	return r.get(ctx, transferID, true)
}

func (r *TransferRepo) Update(ctx context.Context, t *transfer.Transfer) error {
	n, err := r.update(ctx, t.ID, t)
	if err != nil {
		return err
	}
	if n == 0 {
		return apperror.NewNotFound("transfer", t.ID.String())
	}
	return nil
}

func (r *TransferRepo) ListByStore(ctx context.Context, storeID id.ID) ([]transfer.Transfer, error) {
	return r.selectWhere(ctx,
		squirrel.Or{squirrel.Eq{"source_store_id": storeID}, squirrel.Eq{"destination_store_id": storeID}},
		"created_at DESC")
}
