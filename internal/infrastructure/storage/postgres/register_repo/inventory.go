// Package register_repo stores the two running balances of the ledger: inventory
// quantities and order obligations.
package register_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"tradeledger/internal/core/apperror"
	"tradeledger/internal/core/id"
	"tradeledger/internal/domain/inventory"
	"tradeledger/internal/infrastructure/storage/postgres"
)

const inventoryTable = "inventory"

var inventoryColumns = postgres.ExtractDBColumns[inventory.Record]()

// InventoryRepo implements inventory.Repository.
type InventoryRepo struct {
	txm     *postgres.TxManager
	builder squirrel.StatementBuilderType
}

var _ inventory.Repository = (*InventoryRepo)(nil)

// NewInventoryRepo creates a new inventory repository.
func NewInventoryRepo(txm *postgres.TxManager) *InventoryRepo {
	return &InventoryRepo{
		txm:     txm,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// GetForUpdate returns the record with a row lock held until the transaction ends.
func (r *InventoryRepo) GetForUpdate(ctx context.Context, productID, storeID id.ID) (*inventory.Record, error) {
	if r.txm.GetTx(ctx) == nil {
		return nil, fmt.Errorf("inventory lock requires a transaction")
	}

	sql := `
		SELECT id, product_id, store_id, quantity, low_stock_threshold, low_stock_notified, created_at, updated_at
		FROM inventory
		WHERE product_id = $1 AND store_id = $2
		FOR UPDATE
	`
	var rec inventory.Record
	if err := pgxscan.Get(ctx, r.txm.GetQuerier(ctx), &rec, sql, productID, storeID); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("inventory", storeID.String()+"/"+productID.String())
		}
		return nil, postgres.MapError(fmt.Errorf("lock inventory: %w", err))
	}
	return &rec, nil
}

// Get returns the record without locking.
func (r *InventoryRepo) Get(ctx context.Context, productID, storeID id.ID) (*inventory.Record, error) {
	sql, args, err := r.builder.Select(inventoryColumns...).From(inventoryTable).
		Where(squirrel.Eq{"product_id": productID, "store_id": storeID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var rec inventory.Record
	if err := pgxscan.Get(ctx, r.txm.GetQuerier(ctx), &rec, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("inventory", storeID.String()+"/"+productID.String())
		}
		return nil, postgres.MapError(fmt.Errorf("get inventory: %w", err))
	}
	return &rec, nil
}

// Create inserts a record. A concurrent insert of the same pair surfaces as a conflict.
func (r *InventoryRepo) Create(ctx context.Context, rec *inventory.Record) error {
	sql, args, err := r.builder.Insert(inventoryTable).SetMap(postgres.StructToMap(rec)).ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return postgres.MapError(fmt.Errorf("insert inventory: %w", err))
	}
	return nil
}

// Update writes quantity, threshold and the notified flag in one statement.
func (r *InventoryRepo) Update(ctx context.Context, rec *inventory.Record) error {
	sql, args, err := r.builder.Update(inventoryTable).
		Set("quantity", rec.Quantity).
		Set("low_stock_threshold", rec.LowStockThreshold).
		Set("low_stock_notified", rec.LowStockNotified).
		Set("updated_at", rec.UpdatedAt).
		Where(squirrel.Eq{"id": rec.ID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	tag, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return postgres.MapError(fmt.Errorf("update inventory: %w", err))
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewNotFound("inventory", rec.ID.String())
	}
	return nil
}

// ListByStore returns the store's records ordered by product.
func (r *InventoryRepo) ListByStore(ctx context.Context, storeID id.ID, filter inventory.ListFilter) ([]inventory.Record, error) {
	q := r.builder.Select(inventoryColumns...).From(inventoryTable).
		Where(squirrel.Eq{"store_id": storeID}).
		OrderBy("product_id")
	if filter.LowStockOnly {
		q = q.Where("quantity <= low_stock_threshold")
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var out []inventory.Record
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &out, sql, args...); err != nil {
		return nil, postgres.MapError(fmt.Errorf("list inventory: %w", err))
	}
	return out, nil
}
