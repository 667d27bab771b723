// Package document_repo stores the ledger's documents: orders with their items,
// payments and stock transfers.
package document_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"tradeledger/internal/core/apperror"
	"tradeledger/internal/core/id"
	"tradeledger/internal/infrastructure/storage/postgres"
)

// baseRepo holds the CRUD shared by every document table. Columns come from the
// struct's db tags.
type baseRepo[T any] struct {
	txm     *postgres.TxManager
	table   string
	entity  string
	columns []string
}

func newBaseRepo[T any](txm *postgres.TxManager, table, entity string) baseRepo[T] {
	return baseRepo[T]{
		txm:     txm,
		table:   table,
		entity:  entity,
		columns: postgres.ExtractDBColumns[T](),
	}
}

func (r *baseRepo[T]) builder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
}

func (r *baseRepo[T]) querier(ctx context.Context) postgres.Querier {
	return r.txm.GetQuerier(ctx)
}

func (r *baseRepo[T]) insert(ctx context.Context, doc *T) error {
	sql, args, err := r.builder().Insert(r.table).SetMap(postgres.StructToMap(doc)).ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := r.querier(ctx).Exec(ctx, sql, args...); err != nil {
		return postgres.MapError(fmt.Errorf("insert %s: %w", r.entity, err))
	}
	return nil
}

func (r *baseRepo[T]) get(ctx context.Context, docID id.ID, lock bool) (*T, error) {
	q := r.builder().Select(r.columns...).From(r.table).Where(squirrel.Eq{"id": docID})
	if lock {
		q = q.Suffix("FOR UPDATE")
	}
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	doc := new(T)
	if err := pgxscan.Get(ctx, r.querier(ctx), doc, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound(r.entity, docID.String())
		}
		return nil, postgres.MapError(fmt.Errorf("get %s: %w", r.entity, err))
	}
	return doc, nil
}

// update writes every column except id and created_at. Extra conditions narrow the
// WHERE clause; zero affected rows means the row is gone or the condition failed.
func (r *baseRepo[T]) update(ctx context.Context, docID id.ID, doc *T, where ...squirrel.Sqlizer) (int64, error) {
	data := postgres.StructToMap(doc)
	delete(data, "id")
	delete(data, "created_at")

	q := r.builder().Update(r.table).SetMap(data).Where(squirrel.Eq{"id": docID})
	for _, w := range where {
		q = q.Where(w)
	}
	sql, args, err := q.ToSql()
	if err != nil {
		return 0, fmt.Errorf("build update: %w", err)
	}
	tag, err := r.querier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return 0, postgres.MapError(fmt.Errorf("update %s: %w", r.entity, err))
	}
	return tag.RowsAffected(), nil
}

func (r *baseRepo[T]) deleteWhere(ctx context.Context, where squirrel.Eq) (int64, error) {
	sql, args, err := r.builder().Delete(r.table).Where(where).ToSql()
	if err != nil {
		return 0, fmt.Errorf("build delete: %w", err)
	}
	tag, err := r.querier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return 0, postgres.MapError(fmt.Errorf("delete %s: %w", r.entity, err))
	}
	return tag.RowsAffected(), nil
}

func (r *baseRepo[T]) selectWhere(ctx context.Context, where squirrel.Sqlizer, orderBy string) ([]T, error) {
	sql, args, err := r.builder().Select(r.columns...).From(r.table).Where(where).OrderBy(orderBy).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	var out []T
	if err := pgxscan.Select(ctx, r.querier(ctx), &out, sql, args...); err != nil {
		return nil, postgres.MapError(fmt.Errorf("list %s: %w", r.entity, err))
	}
	return out, nil
}
