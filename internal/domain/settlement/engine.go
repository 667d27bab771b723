package settlement

import (
	"context"
	"fmt"
	"strings"
	"time"

	"tradeledger/internal/core/apperror"
	appctx "tradeledger/internal/core/context"
	"tradeledger/internal/core/id"
	"tradeledger/internal/core/tx"
	"tradeledger/internal/core/types"
	"tradeledger/internal/domain/audit"
	"tradeledger/internal/domain/catalog"
	"tradeledger/internal/domain/inventory"
	"tradeledger/internal/domain/obligation"
	"tradeledger/internal/domain/order"
	"tradeledger/internal/domain/payment"
	"tradeledger/pkg/logger"
)

// Engine is the order settlement engine.
type Engine struct {
	txManager   tx.Manager
	orders      order.Repository
	catalog     catalog.Repository
	inventory   *inventory.Ledger
	obligations *obligation.Ledger
	payments    payment.Repository
	lowStock    inventory.Notifier
	activity    audit.Recorder
}

// Deps groups the collaborators of the engine.
type Deps struct {
	TxManager   tx.Manager
	Orders      order.Repository
	Catalog     catalog.Repository
	Inventory   *inventory.Ledger
	Obligations *obligation.Ledger
	Payments    payment.Repository
	// LowStock receives committed threshold crossings. Optional.
	LowStock inventory.Notifier
	// Activity receives deletions. Optional.
	Activity audit.Recorder
}

// NewEngine creates a new settlement engine.
func NewEngine(d Deps) *Engine {
	if d.Activity == nil {
		d.Activity = audit.NopRecorder{}
	}
	return &Engine{
		txManager:   d.TxManager,
		orders:      d.Orders,
		catalog:     d.Catalog,
		inventory:   d.Inventory,
		obligations: d.Obligations,
		payments:    d.Payments,
		lowStock:    d.LowStock,
		activity:    d.Activity,
	}
}

// CreateSale settles a sale: stock goes out, a receivable covers what is still owed.
func (e *Engine) CreateSale(ctx context.Context, req CreateOrderRequest) (*View, error) {
	return e.create(ctx, order.Sale, req)
}

// CreatePurchase settles a purchase: stock comes in, a payable covers what is still owed.
func (e *Engine) CreatePurchase(ctx context.Context, req CreateOrderRequest) (*View, error) {
	return e.create(ctx, order.Purchase, req)
}

func (e *Engine) create(ctx context.Context, dir order.Direction, req CreateOrderRequest) (*View, error) {
	if err := order.ValidateLines(req.Items); err != nil {
		return nil, err
	}
	if err := order.ValidateAmounts(req.TotalAmount, req.Tax); err != nil {
		return nil, err
	}
	if id.IsNil(req.StoreID) {
		return nil, apperror.NewValidation("store is required").WithDetail("field", "store_id")
	}
	if id.IsNil(req.CounterpartyID) {
		return nil, apperror.NewValidation("counterparty is required").WithDetail("field", "counterparty_id")
	}
	if err := order.CheckStore(ctx, req.StoreID); err != nil {
		return nil, err
	}

	var (
		view *View
		post inventory.PostCommit
	)
	err := e.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if _, err := e.catalog.GetStore(ctx, req.StoreID); err != nil {
			return err
		}
		if err := e.checkCounterparty(ctx, dir, req.StoreID, req.CounterpartyID); err != nil {
			return err
		}

		now := time.Now().UTC()
		ord := &order.Order{
			ID:             id.New(),
			Kind:           dir.Kind(),
			StoreID:        req.StoreID,
			CounterpartyID: req.CounterpartyID,
			TotalAmount:    req.TotalAmount,
			Tax:            req.Tax,
			Currency:       currencyOr(req.Currency),
			PaymentMode:    strings.TrimSpace(req.PaymentMode),
			IsCredit:       req.IsCredit,
			Version:        1,
			CreatedAt:      now,
			UpdatedAt:      now,
		}

		items, err := e.price(ctx, dir, ord.ID, req.StoreID, req.Items)
		if err != nil {
			return err
		}
		ord.Items = items

		expected := ord.ExpectedWithTax()
		if ord.TotalAmount.GreaterThan(expected) {
			return overpaid(ord.TotalAmount, expected)
		}
		ord.Status = order.DeriveStatus(ord.TotalAmount, expected)

		if err := e.orders.Create(ctx, ord); err != nil {
			return fmt.Errorf("create order: %w", err)
		}

		post, err = e.inventory.AdjustMany(ctx, stockDeltas(dir, ord.StoreID, ord.Items, 1))
		if err != nil {
			return err
		}

		var ob *obligation.Obligation
		if ord.Status != order.StatusPaid {
			ob, err = e.obligations.Settle(ctx, targetOf(ord, id.Nil()), expected.Sub(ord.TotalAmount))
			if err != nil {
				return err
			}
		}

		view = &View{Order: ord, Obligation: ob, PaidToDate: ord.TotalAmount, Expected: expected}
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.afterCommit(ctx, post)
	logger.Info(ctx, "order settled",
		"order_id", view.Order.ID,
		"kind", view.Order.Kind,
		"store_id", view.Order.StoreID,
		"status", view.Order.Status,
		"expected", view.Expected,
		"low_stock_events", post.Len(),
	)
	return view, nil
}

// UpdateOrder re-prices and re-settles an order. The old inventory effect is reversed
// and the new one applied as one net adjustment per product.
func (e *Engine) UpdateOrder(ctx context.Context, orderID id.ID, req UpdateOrderRequest) (*View, error) {
	if req.Items != nil {
		if err := order.ValidateLines(req.Items); err != nil {
			return nil, err
		}
	}

	var (
		view *View
		post inventory.PostCommit
	)
	err := e.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		ord, err := e.orders.GetForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if err := order.CheckStore(ctx, ord.StoreID); err != nil {
			return err
		}
		dir := ord.Direction()
		oldItems := ord.Items

		if req.TotalAmount != nil {
			ord.TotalAmount = *req.TotalAmount
		}
		if req.Tax != nil {
			ord.Tax = *req.Tax
		}
		if err := order.ValidateAmounts(ord.TotalAmount, ord.Tax); err != nil {
			return err
		}
		if req.CounterpartyID != nil && *req.CounterpartyID != ord.CounterpartyID {
			if err := e.checkCounterparty(ctx, dir, ord.StoreID, *req.CounterpartyID); err != nil {
				return err
			}
			ord.CounterpartyID = *req.CounterpartyID
		}
		if req.Currency != nil {
			ord.Currency = currencyOr(*req.Currency)
		}
		if req.PaymentMode != nil {
			ord.PaymentMode = strings.TrimSpace(*req.PaymentMode)
		}
		if req.IsCredit != nil {
			ord.IsCredit = *req.IsCredit
		}
		if req.Items != nil {
			items, err := e.price(ctx, dir, ord.ID, ord.StoreID, req.Items)
			if err != nil {
				return err
			}
			ord.Items = items
		}

		expected := ord.ExpectedWithTax()
		if ord.TotalAmount.GreaterThan(expected) {
			return overpaid(ord.TotalAmount, expected)
		}

		deltas := append(stockDeltas(dir, ord.StoreID, oldItems, -1), stockDeltas(dir, ord.StoreID, ord.Items, 1)...)
		post, err = e.inventory.AdjustMany(ctx, deltas)
		if err != nil {
			return err
		}

		paid, err := payment.PaidToDate(ctx, e.payments, ord)
		if err != nil {
			return err
		}
		ord.Status = order.DeriveStatus(paid, expected)

		previous, err := e.previousObligationID(ctx, ord.ID)
		if err != nil {
			return err
		}
		ob, err := e.obligations.Settle(ctx, targetOf(ord, previous), expected.Sub(paid))
		if err != nil {
			return err
		}

		ord.Version++
		ord.UpdatedAt = time.Now().UTC()
		if err := e.orders.Update(ctx, ord); err != nil {
			return fmt.Errorf("update order %s: %w", ord.ID, err)
		}

		view = &View{Order: ord, Obligation: ob, PaidToDate: paid, Expected: expected}
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.afterCommit(ctx, post)
	logger.Info(ctx, "order updated",
		"order_id", view.Order.ID,
		"status", view.Order.Status,
		"version", view.Order.Version,
	)
	return view, nil
}

// DeleteOrder reverses the order's inventory effect and removes the order, its
// items, its obligation and its payments.
func (e *Engine) DeleteOrder(ctx context.Context, orderID id.ID) error {
	var (
		deleted *order.Order
		post    inventory.PostCommit
	)
	err := e.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		ord, err := e.orders.GetForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if err := order.CheckStore(ctx, ord.StoreID); err != nil {
			return err
		}

		post, err = e.inventory.AdjustMany(ctx, stockDeltas(ord.Direction(), ord.StoreID, ord.Items, -1))
		if err != nil {
			return err
		}
		if err := e.payments.DeleteByOrder(ctx, ord.ID); err != nil {
			return fmt.Errorf("delete payments of order %s: %w", ord.ID, err)
		}
		if err := e.obligations.DeleteByOrder(ctx, ord.ID); err != nil {
			return fmt.Errorf("delete obligation of order %s: %w", ord.ID, err)
		}
		if err := e.orders.Delete(ctx, ord.ID); err != nil {
			return fmt.Errorf("delete order %s: %w", ord.ID, err)
		}
		deleted = ord
		return nil
	})
	if err != nil {
		return err
	}

	e.afterCommit(ctx, post)
	logger.Info(ctx, "order deleted", "order_id", deleted.ID, "kind", deleted.Kind)

	action := audit.ActionDeleteSale
	if deleted.Kind == order.KindPurchase {
		action = audit.ActionDeletePurchase
	}
	audit.Record(ctx, e.activity, action,
		fmt.Sprintf("deleted %s %s with %d item(s), total %s %s",
			deleted.Kind, deleted.ID, len(deleted.Items), deleted.TotalAmount.StringFixed(2), deleted.Currency))
	return nil
}

// GetOrder returns the order with its open obligation and the amount paid to date.
func (e *Engine) GetOrder(ctx context.Context, orderID id.ID) (*View, error) {
	var view *View
	err := e.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		ord, err := e.orders.Get(ctx, orderID)
		if err != nil {
			return err
		}
		if err := order.CheckStore(ctx, ord.StoreID); err != nil {
			return err
		}
		ob, err := e.obligations.ByOrder(ctx, ord.ID)
		if err != nil {
			return err
		}
		paid, err := payment.PaidToDate(ctx, e.payments, ord)
		if err != nil {
			return err
		}
		view = &View{Order: ord, Obligation: ob, PaidToDate: paid, Expected: ord.ExpectedWithTax()}
		return nil
	})
	return view, err
}

// ListOrders returns the store's sales or purchases with items, newest first.
func (e *Engine) ListOrders(ctx context.Context, storeID id.ID, kind order.Kind) ([]order.Order, error) {
	if err := order.CheckStore(ctx, storeID); err != nil {
		return nil, err
	}
	return e.orders.ListByStore(ctx, storeID, kind)
}

// ListObligations returns the store's open receivables or payables.
func (e *Engine) ListObligations(ctx context.Context, storeID id.ID, kind obligation.Kind) ([]obligation.Obligation, error) {
	if err := order.CheckStore(ctx, storeID); err != nil {
		return nil, err
	}
	return e.obligations.ListByStore(ctx, storeID, kind)
}

// price resolves every line against the catalog of the order's store.
func (e *Engine) price(ctx context.Context, dir order.Direction, orderID, storeID id.ID, lines []order.ItemLine) ([]order.Item, error) {
	items := make([]order.Item, 0, len(lines))
	for i, line := range lines {
		product, err := e.catalog.GetProduct(ctx, line.ProductID)
		if err != nil {
			return nil, err
		}
		if product.StoreID != storeID {
			return nil, apperror.NewValidation(fmt.Sprintf("item %d: product belongs to another store", i+1)).
				WithDetail("product_id", product.ID.String())
		}
		unit, amount, err := order.PriceLine(dir, product, line)
		if err != nil {
			return nil, err
		}
		items = append(items, order.Item{
			ID:            id.New(),
			OrderID:       orderID,
			LineNo:        i + 1,
			ProductID:     line.ProductID,
			Quantity:      line.Quantity,
			PriceOverride: line.PriceOverride,
			UnitPrice:     unit,
			Amount:        amount,
		})
	}
	return items, nil
}

func (e *Engine) checkCounterparty(ctx context.Context, dir order.Direction, storeID, counterpartyID id.ID) error {
	kind := dir.CounterpartyKind()
	ok, err := e.catalog.CounterpartyExists(ctx, kind, storeID, counterpartyID)
	if err != nil {
		return fmt.Errorf("check %s %s: %w", kind, counterpartyID, err)
	}
	if !ok {
		return apperror.NewNotFound(string(kind), counterpartyID.String())
	}
	return nil
}

// previousObligationID keeps the obligation identity payments already point at.
func (e *Engine) previousObligationID(ctx context.Context, orderID id.ID) (id.ID, error) {
	payments, err := e.payments.ListByOrder(ctx, orderID)
	if err != nil {
		return id.Nil(), fmt.Errorf("list payments of order %s: %w", orderID, err)
	}
	if len(payments) == 0 {
		return id.Nil(), nil
	}
	return payments[0].ObligationID, nil
}

func (e *Engine) afterCommit(ctx context.Context, post inventory.PostCommit) {
	post.Run(appctx.Detach(ctx), e.lowStock)
}

func targetOf(ord *order.Order, obligationID id.ID) obligation.Target {
	return obligation.Target{
		ID:       obligationID,
		Kind:     ord.Direction().ObligationKind(),
		StoreID:  ord.StoreID,
		OrderID:  ord.ID,
		Currency: ord.Currency,
	}
}

// stockDeltas turns items into inventory deltas; factor -1 reverses the order's effect.
func stockDeltas(dir order.Direction, storeID id.ID, items []order.Item, factor int64) []inventory.Delta {
	sign := dir.StockSign() * factor
	deltas := make([]inventory.Delta, 0, len(items))
	for _, it := range items {
		deltas = append(deltas, inventory.Delta{
			ProductID: it.ProductID,
			StoreID:   storeID,
			Quantity:  types.Quantity(sign) * it.Quantity,
		})
	}
	return deltas
}

func overpaid(total, expected types.Money) error {
	return apperror.NewValidation("total amount exceeds the expected amount with tax").
		WithDetail("field", "total_amount").
		WithDetail("total_amount", total.String()).
		WithDetail("expected_with_tax", expected.String())
}

func currencyOr(v string) string {
	if v = strings.ToUpper(strings.TrimSpace(v)); v != "" {
		return v
	}
	return DefaultCurrency
}
