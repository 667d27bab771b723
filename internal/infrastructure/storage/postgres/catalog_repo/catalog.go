// Package catalog_repo reads stores, products and counterparties from PostgreSQL.
package catalog_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"tradeledger/internal/core/apperror"
	"tradeledger/internal/core/id"
	"tradeledger/internal/domain/catalog"
	"tradeledger/internal/infrastructure/storage/postgres"
)

const (
	storesTable         = "stores"
	productsTable       = "products"
	counterpartiesTable = "counterparties"
)

var (
	productColumns = postgres.ExtractDBColumns[catalog.Product]()
	storeColumns   = postgres.ExtractDBColumns[catalog.Store]()
)

// Repo implements catalog.Repository.
type Repo struct {
	txm     *postgres.TxManager
	builder squirrel.StatementBuilderType
}

var _ catalog.Repository = (*Repo)(nil)

// NewRepo creates a catalog repository.
func NewRepo(txm *postgres.TxManager) *Repo {
	return &Repo{
		txm:     txm,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// GetProduct returns a product by id.
func (r *Repo) GetProduct(ctx context.Context, productID id.ID) (*catalog.Product, error) {
	q := r.builder.Select(productColumns...).From(productsTable).Where(squirrel.Eq{"id": productID})
	return r.getProduct(ctx, q, productID.String())
}

// FindProductByName matches names case-insensitively within one store.
func (r *Repo) FindProductByName(ctx context.Context, storeID id.ID, name string) (*catalog.Product, error) {
	q := r.builder.Select(productColumns...).From(productsTable).
		Where(squirrel.Eq{"store_id": storeID}).
		Where(squirrel.Expr("lower(name) = lower(?)", name)).
		OrderBy("created_at").
		Limit(1)
	return r.getProduct(ctx, q, name)
}

func (r *Repo) getProduct(ctx context.Context, q squirrel.SelectBuilder, key string) (*catalog.Product, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var p catalog.Product
	if err := pgxscan.Get(ctx, r.txm.GetQuerier(ctx), &p, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("product", key)
		}
		return nil, postgres.MapError(fmt.Errorf("get product: %w", err))
	}
	return &p, nil
}

// GetStore returns a store by id.
func (r *Repo) GetStore(ctx context.Context, storeID id.ID) (*catalog.Store, error) {
	sql, args, err := r.builder.Select(storeColumns...).From(storesTable).
		Where(squirrel.Eq{"id": storeID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var s catalog.Store
	if err := pgxscan.Get(ctx, r.txm.GetQuerier(ctx), &s, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("store", storeID.String())
		}
		return nil, postgres.MapError(fmt.Errorf("get store: %w", err))
	}
	return &s, nil
}

// CreateProduct inserts a product (the clone written by transfers).
func (r *Repo) CreateProduct(ctx context.Context, p *catalog.Product) error {
	if err := p.Validate(); err != nil {
		return err
	}
	sql, args, err := r.builder.Insert(productsTable).SetMap(postgres.StructToMap(p)).ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return postgres.MapError(fmt.Errorf("insert product: %w", err))
	}
	return nil
}

// CounterpartyExists reports whether the customer or supplier is registered in the store.
func (r *Repo) CounterpartyExists(ctx context.Context, kind catalog.CounterpartyKind, storeID, counterpartyID id.ID) (bool, error) {
	sql, args, err := r.builder.Select("1").From(counterpartiesTable).
		Where(squirrel.Eq{"kind": string(kind), "store_id": storeID, "id": counterpartyID}).
		Prefix("SELECT EXISTS (").
		Suffix(")").
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build query: %w", err)
	}

	var exists bool
	if err := r.txm.GetQuerier(ctx).QueryRow(ctx, sql, args...).Scan(&exists); err != nil {
		return false, postgres.MapError(fmt.Errorf("check counterparty: %w", err))
	}
	return exists, nil
}
