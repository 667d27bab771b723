package order

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradeledger/internal/core/apperror"
	"tradeledger/internal/core/id"
	"tradeledger/internal/core/types"
	"tradeledger/internal/domain/catalog"
	"tradeledger/internal/domain/obligation"
)

func TestDeriveStatus(t *testing.T) {
	expected := types.MustMoney("110")
	tests := []struct {
		paid string
		want Status
	}{
		{"0", StatusUnpaid},
		{"0.0001", StatusPartiallyPaid},
		{"109.9999", StatusPartiallyPaid},
		{"110", StatusPaid},
		{"120", StatusPaid},
	}
	for _, tt := range tests {
		t.Run(tt.paid, func(t *testing.T) {
			assert.Equal(t, tt.want, DeriveStatus(types.MustMoney(tt.paid), expected))
		})
	}
}

func TestWithTax(t *testing.T) {
	assert.True(t, types.MustMoney("110").Equal(WithTax(types.MustMoney("100"), types.MustMoney("10"))))
	assert.True(t, types.MustMoney("10.8247").Equal(WithTax(types.MustMoney("9.99"), types.MustMoney("8.355"))))
	assert.True(t, types.MustMoney("42").Equal(WithTax(types.MustMoney("42"), types.Zero())))
}

func TestPriceLine(t *testing.T) {
	p := &catalog.Product{
		ID:            id.New(),
		PurchasePrice: types.MustMoney("30"),
		SalePrice:     types.MustMoney("50"),
	}
	half := types.MustQuantity("0.5")

	unit, amount, err := PriceLine(Sale, p, ItemLine{ProductID: p.ID, Quantity: half})
	require.NoError(t, err)
	assert.True(t, unit.Equal(types.MustMoney("50")))
	assert.True(t, amount.Equal(types.MustMoney("25")))

	unit, amount, err = PriceLine(Purchase, p, ItemLine{ProductID: p.ID, Quantity: types.NewQuantity(3)})
	require.NoError(t, err)
	assert.True(t, unit.Equal(types.MustMoney("30")))
	assert.True(t, amount.Equal(types.MustMoney("90")))

	low := types.MustMoney("49")
	_, _, err = PriceLine(Sale, p, ItemLine{ProductID: p.ID, Quantity: half, PriceOverride: &low})
	assert.True(t, apperror.IsValidation(err))

	high := types.MustMoney("51")
	_, _, err = PriceLine(Purchase, p, ItemLine{ProductID: p.ID, Quantity: half, PriceOverride: &high})
	assert.True(t, apperror.IsValidation(err))

	_, amount, err = PriceLine(Purchase, p, ItemLine{ProductID: p.ID, Quantity: half, PriceOverride: &low})
	require.NoError(t, err)
	assert.True(t, amount.Equal(types.MustMoney("24.5")))
}

func TestDirections(t *testing.T) {
	assert.Equal(t, int64(-1), Sale.StockSign())
	assert.Equal(t, obligation.Receivable, Sale.ObligationKind())
	assert.Equal(t, PaymentIn, Sale.PaymentDirection())
	assert.Equal(t, catalog.Customer, Sale.CounterpartyKind())

	assert.Equal(t, int64(1), Purchase.StockSign())
	assert.Equal(t, obligation.Payable, Purchase.ObligationKind())
	assert.Equal(t, PaymentOut, Purchase.PaymentDirection())
	assert.Equal(t, catalog.Supplier, Purchase.CounterpartyKind())

	assert.Equal(t, Purchase, DirectionOf(KindPurchase))
	assert.Equal(t, Sale, DirectionOf(KindSale))
}

func TestValidateAmounts(t *testing.T) {
	assert.NoError(t, ValidateAmounts(types.Zero(), types.MustMoney("100")))
	assert.True(t, apperror.IsValidation(ValidateAmounts(types.Zero(), types.MustMoney("100.01"))))
	assert.True(t, apperror.IsValidation(ValidateAmounts(types.MustMoney("-0.01"), types.Zero())))
}
