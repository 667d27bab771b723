package payment

import (
	"context"
	"fmt"
	"strings"
	"time"

	"tradeledger/internal/core/apperror"
	"tradeledger/internal/core/id"
	"tradeledger/internal/core/tx"
	"tradeledger/internal/core/types"
	"tradeledger/internal/domain/audit"
	"tradeledger/internal/domain/obligation"
	"tradeledger/internal/domain/order"
	"tradeledger/pkg/logger"
)

// Engine applies payments. Every public method is one transaction.
type Engine struct {
	txManager   tx.Manager
	payments    Repository
	orders      order.Repository
	obligations *obligation.Ledger
	activity    audit.Recorder
}

// NewEngine creates a new payment engine.
func NewEngine(
	txManager tx.Manager,
	payments Repository,
	orders order.Repository,
	obligations *obligation.Ledger,
	activity audit.Recorder,
) *Engine {
	if activity == nil {
		activity = audit.NopRecorder{}
	}
	return &Engine{
		txManager:   txManager,
		payments:    payments,
		orders:      orders,
		obligations: obligations,
		activity:    activity,
	}
}

// ApplyPayment records a payment against an open obligation of the order.
func (e *Engine) ApplyPayment(ctx context.Context, req ApplyPaymentRequest) (*Payment, error) {
	if !req.Amount.IsPositive() {
		return nil, apperror.NewValidation("payment amount must be positive").WithDetail("field", "amount")
	}
	if id.IsNil(req.ObligationID) || id.IsNil(req.OrderID) {
		return nil, apperror.NewValidation("obligation and order are required")
	}

	var created *Payment
	var status order.Status
	err := e.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		// Order row first, then the obligation: the same order settlement uses.
		ord, err := e.orders.GetForUpdate(ctx, req.OrderID)
		if err != nil {
			return err
		}
		if err := order.CheckStore(ctx, ord.StoreID); err != nil {
			return err
		}
		ob, err := e.obligations.GetForUpdate(ctx, req.ObligationID)
		if err != nil {
			return err
		}
		dir := ord.Direction()
		if err := checkBinding(ob, ord, dir); err != nil {
			return err
		}

		if _, err := e.obligations.Reduce(ctx, ob, req.Amount); err != nil {
			return err
		}

		now := time.Now().UTC()
		p := &Payment{
			ID:           id.New(),
			Direction:    dir.PaymentDirection(),
			StoreID:      ord.StoreID,
			ObligationID: req.ObligationID,
			OrderID:      ord.ID,
			Amount:       req.Amount,
			Currency:     currencyOr(req.Currency, ord.Currency),
			Mode:         strings.TrimSpace(req.Mode),
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := e.payments.Create(ctx, p); err != nil {
			return fmt.Errorf("create payment: %w", err)
		}

		status, err = e.refreshStatus(ctx, ord)
		if err != nil {
			return err
		}
		created = p
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "payment applied",
		"payment_id", created.ID,
		"order_id", created.OrderID,
		"amount", created.Amount,
		"status", status,
	)
	return created, nil
}

// UpdatePayment reverses the payment's effect and applies the new values.
// An obligation deleted by the old amount is recreated with its original id.
func (e *Engine) UpdatePayment(ctx context.Context, paymentID id.ID, req UpdatePaymentRequest) (*Payment, error) {
	if req.Amount != nil && !req.Amount.IsPositive() {
		return nil, apperror.NewValidation("payment amount must be positive").WithDetail("field", "amount")
	}

	var updated *Payment
	err := e.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		p, ord, err := e.loadForChange(ctx, paymentID)
		if err != nil {
			return err
		}

		newAmount := p.Amount
		if req.Amount != nil {
			newAmount = *req.Amount
		}

		restored, err := e.outstandingWithout(ctx, ord, p)
		if err != nil {
			return err
		}
		if newAmount.GreaterThan(restored) {
			return apperror.NewObligationExceeded(p.ObligationID.String(), newAmount.String(), restored.String())
		}
		if _, err := e.obligations.Settle(ctx, e.target(ord, p), restored.Sub(newAmount)); err != nil {
			return err
		}

		p.Amount = newAmount
		if req.Mode != nil {
			p.Mode = strings.TrimSpace(*req.Mode)
		}
		p.UpdatedAt = time.Now().UTC()
		if err := e.payments.Update(ctx, p); err != nil {
			return fmt.Errorf("update payment %s: %w", p.ID, err)
		}

		if _, err := e.refreshStatus(ctx, ord); err != nil {
			return err
		}
		updated = p
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "payment updated", "payment_id", updated.ID, "amount", updated.Amount)
	return updated, nil
}

// DeletePayment removes a payment and gives its amount back to the obligation.
func (e *Engine) DeletePayment(ctx context.Context, paymentID id.ID) error {
	var deleted *Payment
	err := e.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		p, ord, err := e.loadForChange(ctx, paymentID)
		if err != nil {
			return err
		}

		restored, err := e.outstandingWithout(ctx, ord, p)
		if err != nil {
			return err
		}
		if _, err := e.obligations.Settle(ctx, e.target(ord, p), restored); err != nil {
			return err
		}
		if err := e.payments.Delete(ctx, p.ID); err != nil {
			return fmt.Errorf("delete payment %s: %w", p.ID, err)
		}
		if _, err := e.refreshStatus(ctx, ord); err != nil {
			return err
		}
		deleted = p
		return nil
	})
	if err != nil {
		return err
	}

	logger.Info(ctx, "payment deleted", "payment_id", deleted.ID, "order_id", deleted.OrderID)
	audit.Record(ctx, e.activity, audit.ActionDeletePayment,
		fmt.Sprintf("deleted payment %s of %s %s for order %s",
			deleted.ID, deleted.Amount.StringFixed(2), deleted.Currency, deleted.OrderID))
	return nil
}

// Get returns a payment by id.
func (e *Engine) Get(ctx context.Context, paymentID id.ID) (*Payment, error) {
	p, err := e.payments.Get(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if err := order.CheckStore(ctx, p.StoreID); err != nil {
		return nil, err
	}
	return p, nil
}

// ListByOrder returns the payments of an order of the given kind, oldest first.
func (e *Engine) ListByOrder(ctx context.Context, kind order.Kind, orderID id.ID) ([]Payment, error) {
	ord, err := e.orders.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if ord.Kind != kind {
		return nil, apperror.NewNotFound(string(kind), orderID.String())
	}
	if err := order.CheckStore(ctx, ord.StoreID); err != nil {
		return nil, err
	}
	return e.payments.ListByOrder(ctx, orderID)
}

// ListByStore returns the store's incoming or outgoing payments, newest first.
func (e *Engine) ListByStore(ctx context.Context, storeID id.ID, direction order.PaymentDirection) ([]Payment, error) {
	if direction != order.PaymentIn && direction != order.PaymentOut {
		return nil, apperror.NewValidation("unknown payment direction").WithDetail("direction", string(direction))
	}
	if err := order.CheckStore(ctx, storeID); err != nil {
		return nil, err
	}
	return e.payments.ListByStore(ctx, storeID, direction)
}

func (e *Engine) loadForChange(ctx context.Context, paymentID id.ID) (*Payment, *order.Order, error) {
	p, err := e.payments.GetForUpdate(ctx, paymentID)
	if err != nil {
		return nil, nil, err
	}
	ord, err := e.orders.GetForUpdate(ctx, p.OrderID)
	if err != nil {
		return nil, nil, err
	}
	if err := order.CheckStore(ctx, ord.StoreID); err != nil {
		return nil, nil, err
	}
	return p, ord, nil
}

// outstandingWithout is what the order would owe if p had never been applied.
func (e *Engine) outstandingWithout(ctx context.Context, ord *order.Order, p *Payment) (types.Money, error) {
	paid, err := e.payments.SumByOrder(ctx, ord.ID)
	if err != nil {
		return types.Zero(), fmt.Errorf("sum payments of order %s: %w", ord.ID, err)
	}
	paidOthers := paid.Sub(p.Amount)
	return ord.ExpectedWithTax().Sub(ord.TotalAmount).Sub(paidOthers), nil
}

func (e *Engine) target(ord *order.Order, p *Payment) obligation.Target {
	return obligation.Target{
		ID:       p.ObligationID,
		Kind:     ord.Direction().ObligationKind(),
		StoreID:  ord.StoreID,
		OrderID:  ord.ID,
		Currency: ord.Currency,
	}
}

// refreshStatus re-derives the order status from everything paid so far.
func (e *Engine) refreshStatus(ctx context.Context, ord *order.Order) (order.Status, error) {
	status, err := StatusOf(ctx, e.payments, ord)
	if err != nil {
		return "", err
	}
	if status == ord.Status {
		return status, nil
	}
	if err := e.orders.UpdateStatus(ctx, ord.ID, status); err != nil {
		return "", fmt.Errorf("update order %s status: %w", ord.ID, err)
	}
	ord.Status = status
	return status, nil
}

// PaidToDate is the amount settled at order creation plus every later payment.
func PaidToDate(ctx context.Context, payments Repository, ord *order.Order) (types.Money, error) {
	sum, err := payments.SumByOrder(ctx, ord.ID)
	if err != nil {
		return types.Zero(), fmt.Errorf("sum payments of order %s: %w", ord.ID, err)
	}
	return ord.TotalAmount.Add(sum), nil
}

// StatusOf derives the order status against its current items.
func StatusOf(ctx context.Context, payments Repository, ord *order.Order) (order.Status, error) {
	paid, err := PaidToDate(ctx, payments, ord)
	if err != nil {
		return "", err
	}
	return order.DeriveStatus(paid, ord.ExpectedWithTax()), nil
}

func checkBinding(ob *obligation.Obligation, ord *order.Order, dir order.Direction) error {
	if ob.OrderID != ord.ID {
		return apperror.NewValidation("obligation does not belong to the order").
			WithDetail("obligation_id", ob.ID.String()).
			WithDetail("order_id", ord.ID.String())
	}
	if ob.StoreID != ord.StoreID {
		return apperror.NewForbidden("obligation belongs to another store")
	}
	if ob.Kind != dir.ObligationKind() {
		return apperror.NewValidation(fmt.Sprintf("a %s cannot be paid against a %s", dir.Kind(), ob.Kind))
	}
	return nil
}

func currencyOr(v, fallback string) string {
	if v = strings.TrimSpace(v); v != "" {
		return v
	}
	return fallback
}
