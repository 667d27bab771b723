package register_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"tradeledger/internal/core/apperror"
	"tradeledger/internal/core/id"
	"tradeledger/internal/domain/obligation"
	"tradeledger/internal/infrastructure/storage/postgres"
)

const obligationsTable = "obligations"

var obligationColumns = postgres.ExtractDBColumns[obligation.Obligation]()

// ObligationRepo implements obligation.Repository.
type ObligationRepo struct {
	txm     *postgres.TxManager
	builder squirrel.StatementBuilderType
}

var _ obligation.Repository = (*ObligationRepo)(nil)

// NewObligationRepo creates a new obligation repository.
func NewObligationRepo(txm *postgres.TxManager) *ObligationRepo {
	return &ObligationRepo{
		txm:     txm,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

func (r *ObligationRepo) Create(ctx context.Context, o *obligation.Obligation) error {
	sql, args, err := r.builder.Insert(obligationsTable).SetMap(postgres.StructToMap(o)).ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return postgres.MapError(fmt.Errorf("insert obligation: %w", err))
	}
	return nil
}

func (r *ObligationRepo) Get(ctx context.Context, obligationID id.ID) (*obligation.Obligation, error) {
	return r.get(ctx, squirrel.Eq{"id": obligationID}, false, obligationID)
}

func (r *ObligationRepo) GetForUpdate(ctx context.Context, obligationID id.ID) (*obligation.Obligation, error) {
	return r.get(ctx, squirrel.Eq{"id": obligationID}, true, obligationID)
}

func (r *ObligationRepo) GetByOrderForUpdate(ctx context.Context, orderID id.ID) (*obligation.Obligation, error) {
	return r.get(ctx, squirrel.Eq{"order_id": orderID}, true, orderID)
}

func (r *ObligationRepo) GetByOrder(ctx context.Context, orderID id.ID) (*obligation.Obligation, error) {
	return r.get(ctx, squirrel.Eq{"order_id": orderID}, false, orderID)
}

func (r *ObligationRepo) ListByStore(ctx context.Context, storeID id.ID, kind obligation.Kind) ([]obligation.Obligation, error) {
	sql, args, err := r.builder.Select(obligationColumns...).
		From(obligationsTable).
		Where(squirrel.Eq{"store_id": storeID, "kind": kind}).
		OrderBy("created_at DESC", "id DESC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	var out []obligation.Obligation
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &out, sql, args...); err != nil {
		return nil, postgres.MapError(fmt.Errorf("list obligations: %w", err))
	}
	return out, nil
}

func (r *ObligationRepo) get(ctx context.Context, where squirrel.Eq, lock bool, key id.ID) (*obligation.Obligation, error) {
	q := r.builder.Select(obligationColumns...).From(obligationsTable).Where(where)
	if lock {
		q = q.Suffix("FOR UPDATE")
	}
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var o obligation.Obligation
	if err := pgxscan.Get(ctx, r.txm.GetQuerier(ctx), &o, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("obligation", key.String())
		}
		return nil, postgres.MapError(fmt.Errorf("get obligation: %w", err))
	}
	return &o, nil
}

func (r *ObligationRepo) Update(ctx context.Context, o *obligation.Obligation) error {
	sql, args, err := r.builder.Update(obligationsTable).
		Set("amount", o.Amount).
		Set("currency", o.Currency).
		Set("updated_at", o.UpdatedAt).
		Where(squirrel.Eq{"id": o.ID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}
	tag, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return postgres.MapError(fmt.Errorf("update obligation: %w", err))
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewNotFound("obligation", o.ID.String())
	}
	return nil
}

func (r *ObligationRepo) Delete(ctx context.Context, obligationID id.ID) error {
	sql, args, err := r.builder.Delete(obligationsTable).Where(squirrel.Eq{"id": obligationID}).ToSql()
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}
	tag, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return postgres.MapError(fmt.Errorf("delete obligation: %w", err))
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewNotFound("obligation", obligationID.String())
	}
	return nil
}
