package memory

import (
	"context"
	"sort"
	"strings"
	"time"

	"tradeledger/internal/core/apperror"
	"tradeledger/internal/core/id"
	"tradeledger/internal/core/types"
	"tradeledger/internal/domain/catalog"
	"tradeledger/internal/domain/inventory"
	"tradeledger/internal/domain/obligation"
	"tradeledger/internal/domain/order"
	"tradeledger/internal/domain/payment"
	"tradeledger/internal/domain/transfer"
)

// --- Catalog ---

type CatalogRepo struct{ s *Store }

var _ catalog.Repository = (*CatalogRepo)(nil)

func (r *CatalogRepo) GetProduct(ctx context.Context, productID id.ID) (*catalog.Product, error) {
	var out *catalog.Product
	err := r.s.view(ctx, func(d *state) error {
		p, ok := d.products[productID]
		if !ok {
			return apperror.NewNotFound("product", productID.String())
		}
		out = &p
		return nil
	})
	return out, err
}

func (r *CatalogRepo) GetStore(ctx context.Context, storeID id.ID) (*catalog.Store, error) {
	var out *catalog.Store
	err := r.s.view(ctx, func(d *state) error {
		st, ok := d.stores[storeID]
		if !ok {
			return apperror.NewNotFound("store", storeID.String())
		}
		out = &st
		return nil
	})
	return out, err
}

func (r *CatalogRepo) FindProductByName(ctx context.Context, storeID id.ID, name string) (*catalog.Product, error) {
	var out *catalog.Product
	err := r.s.view(ctx, func(d *state) error {
		for _, p := range d.products {
			if p.StoreID == storeID && strings.EqualFold(p.Name, name) {
				p := p
				out = &p
				return nil
			}
		}
		return apperror.NewNotFound("product", name)
	})
	return out, err
}

func (r *CatalogRepo) CreateProduct(ctx context.Context, p *catalog.Product) error {
	if err := p.Validate(); err != nil {
		return err
	}
	return r.s.view(ctx, func(d *state) error {
		if _, ok := d.products[p.ID]; ok {
			return apperror.NewConflict("product already exists")
		}
		d.products[p.ID] = *p
		return nil
	})
}

func (r *CatalogRepo) CounterpartyExists(ctx context.Context, kind catalog.CounterpartyKind, storeID, counterpartyID id.ID) (bool, error) {
	var ok bool
	err := r.s.view(ctx, func(d *state) error {
		ok = d.counterparties[counterpartyKey{kind: kind, storeID: storeID, id: counterpartyID}]
		return nil
	})
	return ok, err
}

// --- Inventory ---

type InventoryRepo struct{ s *Store }

var _ inventory.Repository = (*InventoryRepo)(nil)

func (r *InventoryRepo) GetForUpdate(ctx context.Context, productID, storeID id.ID) (*inventory.Record, error) {
	return r.Get(ctx, productID, storeID)
}

func (r *InventoryRepo) Get(ctx context.Context, productID, storeID id.ID) (*inventory.Record, error) {
	var out *inventory.Record
	err := r.s.view(ctx, func(d *state) error {
		rec, ok := d.inventory[inventory.Key{StoreID: storeID, ProductID: productID}]
		if !ok {
			return apperror.NewNotFound("inventory", storeID.String()+"/"+productID.String())
		}
		out = &rec
		return nil
	})
	return out, err
}

func (r *InventoryRepo) Create(ctx context.Context, rec *inventory.Record) error {
	return r.s.view(ctx, func(d *state) error {
		k := inventory.Key{StoreID: rec.StoreID, ProductID: rec.ProductID}
		if _, ok := d.inventory[k]; ok {
			return apperror.NewConflict("inventory record already exists")
		}
		d.inventory[k] = *rec
		return nil
	})
}

func (r *InventoryRepo) Update(ctx context.Context, rec *inventory.Record) error {
	return r.s.view(ctx, func(d *state) error {
		k := inventory.Key{StoreID: rec.StoreID, ProductID: rec.ProductID}
		if _, ok := d.inventory[k]; !ok {
			return apperror.NewNotFound("inventory", rec.ID.String())
		}
		d.inventory[k] = *rec
		return nil
	})
}

func (r *InventoryRepo) ListByStore(ctx context.Context, storeID id.ID, filter inventory.ListFilter) ([]inventory.Record, error) {
	var out []inventory.Record
	err := r.s.view(ctx, func(d *state) error {
		for k, rec := range d.inventory {
			if k.StoreID != storeID {
				continue
			}
			if filter.LowStockOnly && !rec.IsLow() {
				continue
			}
			out = append(out, rec)
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return id.Less(out[i].ProductID, out[j].ProductID) })
	return out, err
}

// --- Orders ---

type OrderRepo struct{ s *Store }

var _ order.Repository = (*OrderRepo)(nil)

func (r *OrderRepo) Create(ctx context.Context, o *order.Order) error {
	return r.s.view(ctx, func(d *state) error {
		if _, ok := d.orders[o.ID]; ok {
			return apperror.NewConflict("order already exists")
		}
		d.orders[o.ID] = copyOrder(*o)
		return nil
	})
}

func (r *OrderRepo) Get(ctx context.Context, orderID id.ID) (*order.Order, error) {
	var out *order.Order
	err := r.s.view(ctx, func(d *state) error {
		o, ok := d.orders[orderID]
		if !ok {
			return apperror.NewNotFound("order", orderID.String())
		}
		c := copyOrder(o)
		out = &c
		return nil
	})
	return out, err
}

func (r *OrderRepo) GetForUpdate(ctx context.Context, orderID id.ID) (*order.Order, error) {
	return r.Get(ctx, orderID)
}

func (r *OrderRepo) ListByStore(ctx context.Context, storeID id.ID, kind order.Kind) ([]order.Order, error) {
	var out []order.Order
	err := r.s.view(ctx, func(d *state) error {
		for _, o := range d.orders {
			if o.StoreID == storeID && o.Kind == kind {
				out = append(out, copyOrder(o))
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return newerFirst(out[i].CreatedAt, out[j].CreatedAt, out[i].ID, out[j].ID) })
	return out, err
}

func (r *OrderRepo) Update(ctx context.Context, o *order.Order) error {
	return r.s.view(ctx, func(d *state) error {
		if _, ok := d.orders[o.ID]; !ok {
			return apperror.NewNotFound("order", o.ID.String())
		}
		d.orders[o.ID] = copyOrder(*o)
		return nil
	})
}

func (r *OrderRepo) UpdateStatus(ctx context.Context, orderID id.ID, status order.Status) error {
	return r.s.view(ctx, func(d *state) error {
		o, ok := d.orders[orderID]
		if !ok {
			return apperror.NewNotFound("order", orderID.String())
		}
		o.Status = status
		d.orders[orderID] = o
		return nil
	})
}

func (r *OrderRepo) Delete(ctx context.Context, orderID id.ID) error {
	return r.s.view(ctx, func(d *state) error {
		if _, ok := d.orders[orderID]; !ok {
			return apperror.NewNotFound("order", orderID.String())
		}
		delete(d.orders, orderID)
		return nil
	})
}

// --- Obligations ---

type ObligationRepo struct{ s *Store }

var _ obligation.Repository = (*ObligationRepo)(nil)

func (r *ObligationRepo) Create(ctx context.Context, o *obligation.Obligation) error {
	return r.s.view(ctx, func(d *state) error {
		for _, existing := range d.obligations {
			if existing.OrderID == o.OrderID {
				return apperror.NewConflict("order already has an obligation")
			}
		}
		if _, ok := d.obligations[o.ID]; ok {
			return apperror.NewConflict("obligation already exists")
		}
		d.obligations[o.ID] = *o
		return nil
	})
}

func (r *ObligationRepo) Get(ctx context.Context, obligationID id.ID) (*obligation.Obligation, error) {
	var out *obligation.Obligation
	err := r.s.view(ctx, func(d *state) error {
		o, ok := d.obligations[obligationID]
		if !ok {
			return apperror.NewNotFound("obligation", obligationID.String())
		}
		out = &o
		return nil
	})
	return out, err
}

func (r *ObligationRepo) GetForUpdate(ctx context.Context, obligationID id.ID) (*obligation.Obligation, error) {
	return r.Get(ctx, obligationID)
}

func (r *ObligationRepo) GetByOrderForUpdate(ctx context.Context, orderID id.ID) (*obligation.Obligation, error) {
	return r.GetByOrder(ctx, orderID)
}

func (r *ObligationRepo) GetByOrder(ctx context.Context, orderID id.ID) (*obligation.Obligation, error) {
	var out *obligation.Obligation
	err := r.s.view(ctx, func(d *state) error {
		for _, o := range d.obligations {
			if o.OrderID == orderID {
				o := o
				out = &o
				return nil
			}
		}
		return apperror.NewNotFound("obligation", orderID.String())
	})
	return out, err
}

func (r *ObligationRepo) Update(ctx context.Context, o *obligation.Obligation) error {
	return r.s.view(ctx, func(d *state) error {
		if _, ok := d.obligations[o.ID]; !ok {
			return apperror.NewNotFound("obligation", o.ID.String())
		}
		d.obligations[o.ID] = *o
		return nil
	})
}

func (r *ObligationRepo) Delete(ctx context.Context, obligationID id.ID) error {
	return r.s.view(ctx, func(d *state) error {
		delete(d.obligations, obligationID)
		return nil
	})
}

func (r *ObligationRepo) ListByStore(ctx context.Context, storeID id.ID, kind obligation.Kind) ([]obligation.Obligation, error) {
	var out []obligation.Obligation
	err := r.s.view(ctx, func(d *state) error {
		for _, o := range d.obligations {
			if o.StoreID == storeID && o.Kind == kind {
				out = append(out, o)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return newerFirst(out[i].CreatedAt, out[j].CreatedAt, out[i].ID, out[j].ID) })
	return out, err
}

// All returns every obligation. Test helper.
func (r *ObligationRepo) All(ctx context.Context) []obligation.Obligation {
	var out []obligation.Obligation
	_ = r.s.view(ctx, func(d *state) error {
		for _, o := range d.obligations {
			out = append(out, o)
		}
		return nil
	})
	return out
}

// --- Payments ---

type PaymentRepo struct{ s *Store }

var _ payment.Repository = (*PaymentRepo)(nil)

func (r *PaymentRepo) Create(ctx context.Context, p *payment.Payment) error {
	return r.s.view(ctx, func(d *state) error {
		if _, ok := d.payments[p.ID]; ok {
			return apperror.NewConflict("payment already exists")
		}
		d.payments[p.ID] = *p
		return nil
	})
}

func (r *PaymentRepo) Get(ctx context.Context, paymentID id.ID) (*payment.Payment, error) {
	var out *payment.Payment
	err := r.s.view(ctx, func(d *state) error {
		p, ok := d.payments[paymentID]
		if !ok {
			return apperror.NewNotFound("payment", paymentID.String())
		}
		out = &p
		return nil
	})
	return out, err
}

func (r *PaymentRepo) GetForUpdate(ctx context.Context, paymentID id.ID) (*payment.Payment, error) {
	return r.Get(ctx, paymentID)
}

func (r *PaymentRepo) Update(ctx context.Context, p *payment.Payment) error {
	return r.s.view(ctx, func(d *state) error {
		if _, ok := d.payments[p.ID]; !ok {
			return apperror.NewNotFound("payment", p.ID.String())
		}
		d.payments[p.ID] = *p
		return nil
	})
}

func (r *PaymentRepo) Delete(ctx context.Context, paymentID id.ID) error {
	return r.s.view(ctx, func(d *state) error {
		delete(d.payments, paymentID)
		return nil
	})
}

func (r *PaymentRepo) ListByOrder(ctx context.Context, orderID id.ID) ([]payment.Payment, error) {
	var out []payment.Payment
	err := r.s.view(ctx, func(d *state) error {
		for _, p := range d.payments {
			if p.OrderID == orderID {
				out = append(out, p)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return id.Less(out[i].ID, out[j].ID)
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, err
}

func (r *PaymentRepo) ListByStore(ctx context.Context, storeID id.ID, direction order.PaymentDirection) ([]payment.Payment, error) {
	var out []payment.Payment
	err := r.s.view(ctx, func(d *state) error {
		for _, p := range d.payments {
			if p.StoreID == storeID && p.Direction == direction {
				out = append(out, p)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return newerFirst(out[i].CreatedAt, out[j].CreatedAt, out[i].ID, out[j].ID) })
	return out, err
}

func (r *PaymentRepo) SumByOrder(ctx context.Context, orderID id.ID) (types.Money, error) {
	sum := types.Zero()
	err := r.s.view(ctx, func(d *state) error {
		for _, p := range d.payments {
			if p.OrderID == orderID {
				sum = sum.Add(p.Amount)
			}
		}
		return nil
	})
	return sum, err
}

func (r *PaymentRepo) DeleteByOrder(ctx context.Context, orderID id.ID) error {
	return r.s.view(ctx, func(d *state) error {
		for k, p := range d.payments {
			if p.OrderID == orderID {
				delete(d.payments, k)
			}
		}
		return nil
	})
}

// --- Transfers ---

type TransferRepo struct{ s *Store }

var _ transfer.Repository = (*TransferRepo)(nil)

func (r *TransferRepo) Create(ctx context.Context, t *transfer.Transfer) error {
	return r.s.view(ctx, func(d *state) error {
		if _, ok := d.transfers[t.ID]; ok {
			return apperror.NewConflict("transfer already exists")
		}
		d.transfers[t.ID] = *t
		return nil
	})
}

func (r *TransferRepo) Get(ctx context.Context, transferID id.ID) (*transfer.Transfer, error) {
	var out *transfer.Transfer
	err := r.s.view(ctx, func(d *state) error {
		t, ok := d.transfers[transferID]
		if !ok {
			return apperror.NewNotFound("transfer", transferID.String())
		}
		out = &t
		return nil
	})
	return out, err
}

func (r *TransferRepo) GetForUpdate(ctx context.Context, transferID id.ID) (*transfer.Transfer, error) {
	return r.Get(ctx, transferID)
}

func (r *TransferRepo) Update(ctx context.Context, t *transfer.Transfer) error {
	return r.s.view(ctx, func(d *state) error {
		if _, ok := d.transfers[t.ID]; !ok {
			return apperror.NewNotFound("transfer", t.ID.String())
		}
		d.transfers[t.ID] = *t
		return nil
	})
}

func (r *TransferRepo) ListByStore(ctx context.Context, storeID id.ID) ([]transfer.Transfer, error) {
	var out []transfer.Transfer
	err := r.s.view(ctx, func(d *state) error {
		for _, t := range d.transfers {
			if t.SourceStoreID == storeID || t.DestinationStoreID == storeID {
				out = append(out, t)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return newerFirst(out[i].CreatedAt, out[j].CreatedAt, out[i].ID, out[j].ID) })
	return out, err
}

// newerFirst orders listings by creation time descending, ties broken by id.
func newerFirst(a, b time.Time, aID, bID id.ID) bool {
	if a.Equal(b) {
		return id.Less(bID, aID)
	}
	return a.After(b)
}
