package document_repo

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"tradeledger/internal/core/apperror"
	"tradeledger/internal/core/id"
	"tradeledger/internal/domain/order"
	"tradeledger/internal/infrastructure/storage/postgres"
)

const (
	ordersTable     = "orders"
	orderItemsTable = "order_items"
)

var itemColumns = postgres.ExtractDBColumns[order.Item]()

// OrderRepo implements order.Repository. Items are written with COPY and always
// replaced as a whole.
type OrderRepo struct {
	baseRepo[order.Order]
}

var _ order.Repository = (*OrderRepo)(nil)

// NewOrderRepo creates a new order repository.
func NewOrderRepo(txm *postgres.TxManager) *OrderRepo {
	return &OrderRepo{baseRepo: newBaseRepo[order.Order](txm, ordersTable, "order")}
}

func (r *OrderRepo) Create(ctx context.Context, o *order.Order) error {
	if err := r.insert(ctx, o); err != nil {
		return err
	}
	return r.insertItems(ctx, o.Items)
}

func (r *OrderRepo) Get(ctx context.Context, orderID id.ID) (*order.Order, error) {
	return r.load(ctx, orderID, false)
}

func (r *OrderRepo) GetForUpdate(ctx context.Context, orderID id.ID) (*order.Order, error) {
	return r.load(ctx, orderID, true)
}

func (r *OrderRepo) load(ctx context.Context, orderID id.ID, lock bool) (*order.Order, error) {
	o, err := r.get(ctx, orderID, lock)
	if err != nil {
		return nil, err
	}

	sql, args, err := r.builder().Select(itemColumns...).From(orderItemsTable).
		Where(squirrel.Eq{"order_id": orderID}).
		OrderBy("line_no").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	if err := pgxscan.Select(ctx, r.querier(ctx), &o.Items, sql, args...); err != nil {
		return nil, postgres.MapError(fmt.Errorf("select order items: %w", err))
	}
	return o, nil
}

// ListByStore loads the orders and then all their items in one query.
func (r *OrderRepo) ListByStore(ctx context.Context, storeID id.ID, kind order.Kind) ([]order.Order, error) {
	orders, err := r.selectWhere(ctx, squirrel.Eq{"store_id": storeID, "kind": kind}, "created_at DESC, id DESC")
	if err != nil || len(orders) == 0 {
		return orders, err
	}

	ids := make([]id.ID, len(orders))
	for i := range orders {
		ids[i] = orders[i].ID
	}
	sql, args, err := r.builder().Select(itemColumns...).From(orderItemsTable).
		Where(squirrel.Eq{"order_id": ids}).
		OrderBy("order_id", "line_no").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	var items []order.Item
	if err := pgxscan.Select(ctx, r.querier(ctx), &items, sql, args...); err != nil {
		return nil, postgres.MapError(fmt.Errorf("select order items: %w", err))
	}

	byOrder := make(map[id.ID][]order.Item, len(orders))
	for _, it := range items {
		byOrder[it.OrderID] = append(byOrder[it.OrderID], it)
	}
	for i := range orders {
		orders[i].Items = byOrder[orders[i].ID]
	}
	return orders, nil
}

// Update stores the order guarded by its previous version and replaces the items.
func (r *OrderRepo) Update(ctx context.Context, o *order.Order) error {
	n, err := r.update(ctx, o.ID, o, squirrel.Eq{"version": o.Version - 1})
	if err != nil {
		return err
	}
	if n == 0 {
		return apperror.NewConflict("order was modified concurrently").WithDetail("order_id", o.ID.String())
	}

	if _, err := r.deleteItems(ctx, o.ID); err != nil {
		return err
	}
	return r.insertItems(ctx, o.Items)
}

func (r *OrderRepo) UpdateStatus(ctx context.Context, orderID id.ID, status order.Status) error {
	sql, args, err := r.builder().Update(ordersTable).
		Set("status", string(status)).
		Set("updated_at", time.Now().UTC()).
		Where(squirrel.Eq{"id": orderID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}
	tag, err := r.querier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return postgres.MapError(fmt.Errorf("update order status: %w", err))
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewNotFound("order", orderID.String())
	}
	return nil
}

func (r *OrderRepo) Delete(ctx context.Context, orderID id.ID) error {
	if _, err := r.deleteItems(ctx, orderID); err != nil {
		return err
	}
	n, err := r.deleteWhere(ctx, squirrel.Eq{"id": orderID})
	if err != nil {
		return err
	}
	if n == 0 {
		return apperror.NewNotFound("order", orderID.String())
	}
	return nil
}

func (r *OrderRepo) insertItems(ctx context.Context, items []order.Item) error {
	rows := make([][]any, 0, len(items))
	for _, it := range items {
		m := postgres.StructToMap(it)
		row := make([]any, len(itemColumns))
		for i, col := range itemColumns {
			row[i] = m[col]
		}
		rows = append(rows, row)
	}
	if _, err := r.txm.CopyRows(ctx, orderItemsTable, itemColumns, rows); err != nil {
		return fmt.Errorf("insert order items: %w", err)
	}
	return nil
}

func (r *OrderRepo) deleteItems(ctx context.Context, orderID id.ID) (int64, error) {
	sql, args, err := r.builder().Delete(orderItemsTable).Where(squirrel.Eq{"order_id": orderID}).ToSql()
	if err != nil {
		return 0, fmt.Errorf("build delete: %w", err)
	}
	tag, err := r.querier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return 0, postgres.MapError(fmt.Errorf("delete order items: %w", err))
	}
	return tag.RowsAffected(), nil
}
