package document_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"

	"tradeledger/internal/core/apperror"
	"tradeledger/internal/core/id"
	"tradeledger/internal/core/types"
	"tradeledger/internal/domain/order"
	"tradeledger/internal/domain/payment"
	"tradeledger/internal/infrastructure/storage/postgres"
)

const paymentsTable = "payments"

// PaymentRepo implements payment.Repository.
type PaymentRepo struct {
	baseRepo[payment.Payment]
}

var _ payment.Repository = (*PaymentRepo)(nil)

// NewPaymentRepo creates a new payment repository.
func NewPaymentRepo(txm *postgres.TxManager) *PaymentRepo {
	return &PaymentRepo{baseRepo: newBaseRepo[payment.Payment](txm, paymentsTable, "payment")}
}

func (r *PaymentRepo) Create(ctx context.Context, p *payment.Payment) error {
	return r.insert(ctx, p)
}

func (r *PaymentRepo) Get(ctx context.Context, paymentID id.ID) (*payment.Payment, error) {
	return r.get(ctx, paymentID, false)
}

func (r *PaymentRepo) GetForUpdate(ctx context.Context, paymentID id.ID) (*payment.Payment, error) {
	return r.get(ctx, paymentID, true)
}

func (r *PaymentRepo) Update(ctx context.Context, p *payment.Payment) error {
	n, err := r.update(ctx, p.ID, p)
	if err != nil {
		return err
	}
	if n == 0 {
		return apperror.NewNotFound("payment", p.ID.String())
	}
	return nil
}

func (r *PaymentRepo) Delete(ctx context.Context, paymentID id.ID) error {
	n, err := r.deleteWhere(ctx, squirrel.Eq{"id": paymentID})
	if err != nil {
		return err
	}
	if n == 0 {
		return apperror.NewNotFound("payment", paymentID.String())
	}
	return nil
}

func (r *PaymentRepo) ListByOrder(ctx context.Context, orderID id.ID) ([]payment.Payment, error) {
	return r.selectWhere(ctx, squirrel.Eq{"order_id": orderID}, "created_at, id")
}

func (r *PaymentRepo) ListByStore(ctx context.Context, storeID id.ID, direction order.PaymentDirection) ([]payment.Payment, error) {
	return r.selectWhere(ctx, squirrel.Eq{"store_id": storeID, "direction": direction}, "created_at DESC, id DESC")
}

func (r *PaymentRepo) SumByOrder(ctx context.Context, orderID id.ID) (types.Money, error) {
	sql, args, err := r.builder().Select("COALESCE(SUM(amount), 0)").From(paymentsTable).
		Where(squirrel.Eq{"order_id": orderID}).
		ToSql()
	if err != nil {
		return types.Zero(), fmt.Errorf("build query: %w", err)
	}
	var sum types.Money
	if err := r.querier(ctx).QueryRow(ctx, sql, args...).Scan(&sum); err != nil {
		return types.Zero(), postgres.MapError(fmt.Errorf("sum payments: %w", err))
	}
	return sum, nil
}

func (r *PaymentRepo) DeleteByOrder(ctx context.Context, orderID id.ID) error {
	_, err := r.deleteWhere(ctx, squirrel.Eq{"order_id": orderID})
	return err
}
