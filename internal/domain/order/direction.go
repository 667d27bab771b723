package order

import (
	"tradeledger/internal/core/apperror"
	"tradeledger/internal/core/types"
	"tradeledger/internal/domain/catalog"
	"tradeledger/internal/domain/obligation"
)

// PaymentDirection tags money flowing into or out of a store.
type PaymentDirection string

const (
	PaymentIn  PaymentDirection = "in"
	PaymentOut PaymentDirection = "out"
)

// Direction captures everything that differs between a sale and a purchase.
type Direction interface {
	Kind() Kind
	// CatalogPrice is the price used when a line has no override.
	CatalogPrice(p *catalog.Product) types.Money
	// CheckOverride rejects an override that breaks the margin guard.
	CheckOverride(p *catalog.Product, override types.Money) error
	// StockSign is +1 when the order brings goods in, -1 when it takes them out.
	StockSign() int64
	ObligationKind() obligation.Kind
	PaymentDirection() PaymentDirection
	CounterpartyKind() catalog.CounterpartyKind
}

type saleDirection struct{}

func (saleDirection) Kind() Kind { return KindSale }

func (saleDirection) CatalogPrice(p *catalog.Product) types.Money { return p.SalePrice }

func (saleDirection) CheckOverride(p *catalog.Product, override types.Money) error {
	if override.LessThan(p.SalePrice) {
		return apperror.NewValidation("sale price cannot be below the catalog sale price").
			WithDetail("product_id", p.ID.String()).
			WithDetail("price", override.String()).
			WithDetail("sale_price", p.SalePrice.String())
	}
	return nil
}

func (saleDirection) StockSign() int64 { return -1 }

func (saleDirection) ObligationKind() obligation.Kind { return obligation.Receivable }

func (saleDirection) PaymentDirection() PaymentDirection { return PaymentIn }

func (saleDirection) CounterpartyKind() catalog.CounterpartyKind { return catalog.Customer }

type purchaseDirection struct{}

func (purchaseDirection) Kind() Kind { return KindPurchase }

func (purchaseDirection) CatalogPrice(p *catalog.Product) types.Money { return p.PurchasePrice }

func (purchaseDirection) CheckOverride(p *catalog.Product, override types.Money) error {
	if override.GreaterThan(p.SalePrice) {
		return apperror.NewValidation("purchase price cannot exceed the catalog sale price").
			WithDetail("product_id", p.ID.String()).
			WithDetail("price", override.String()).
			WithDetail("sale_price", p.SalePrice.String())
	}
	return nil
}

func (purchaseDirection) StockSign() int64 { return 1 }

func (purchaseDirection) ObligationKind() obligation.Kind { return obligation.Payable }

func (purchaseDirection) PaymentDirection() PaymentDirection { return PaymentOut }

func (purchaseDirection) CounterpartyKind() catalog.CounterpartyKind { return catalog.Supplier }

var (
	Sale     Direction = saleDirection{}
	Purchase Direction = purchaseDirection{}
)

// DirectionOf maps a stored kind back to its capability set.
func DirectionOf(k Kind) Direction {
	if k == KindPurchase {
		return Purchase
	}
	return Sale
}

// PriceLine resolves the unit price of a line and its amount.
func PriceLine(dir Direction, p *catalog.Product, line ItemLine) (unit, amount types.Money, err error) {
	unit = dir.CatalogPrice(p)
	if line.PriceOverride != nil {
		if err := dir.CheckOverride(p, *line.PriceOverride); err != nil {
			return types.Zero(), types.Zero(), err
		}
		unit = *line.PriceOverride
	}
	amount = types.RoundMoney(unit.Mul(line.Quantity.Decimal()))
	return unit, amount, nil
}
