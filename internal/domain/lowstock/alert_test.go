package lowstock_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradeledger/internal/core/types"
	"tradeledger/internal/domain/lowstock"
)

func TestEncodeDecode(t *testing.T) {
	at := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	body, err := lowstock.Encode(lowstock.Alert{
		InventoryID:     "inv-1",
		ProductID:       "p-1",
		ProductName:     "Widget",
		StoreName:       "Main Street",
		CurrentQuantity: types.NewQuantity(8),
		Threshold:       types.NewQuantity(10),
		StoreID:         "s-1",
		CompanyID:       "c-1",
		Timestamp:       at,
	})
	require.NoError(t, err)
	assert.Contains(t, string(body), `"type":"low_stock_alert"`)
	assert.Contains(t, string(body), `"current_quantity":8.0000`)

	got, err := lowstock.Decode(body)
	require.NoError(t, err)
	assert.Equal(t, "Widget", got.ProductName)
	assert.Equal(t, types.NewQuantity(8), got.CurrentQuantity)
	assert.Equal(t, at, got.Timestamp)
	assert.Equal(t, []byte("s-1/p-1"), got.Key())
}

func TestDecode_Malformed(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not json", `{"product_name":`},
		{"missing store name", `{"product_name":"W","current_quantity":1,"threshold":10,"store_id":"s","company_id":"c"}`},
		{"missing quantity", `{"product_name":"W","store_name":"S","threshold":10,"store_id":"s","company_id":"c"}`},
		{"empty company", `{"product_name":"W","store_name":"S","current_quantity":1,"threshold":10,"store_id":"s","company_id":""}`},
		{"wrong type", `{"type":"price_change","product_name":"W","store_name":"S","current_quantity":1,"threshold":10,"store_id":"s","company_id":"c"}`},
		{"bad quantity", `{"product_name":"W","store_name":"S","current_quantity":"lots","threshold":10,"store_id":"s","company_id":"c"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := lowstock.Decode([]byte(tt.body))
			require.Error(t, err)
			assert.True(t, lowstock.IsMalformed(err))
		})
	}
}

func TestDecode_TypeIsOptional(t *testing.T) {
	got, err := lowstock.Decode([]byte(`{"product_name":"W","store_name":"S","current_quantity":"2.5","threshold":10,"store_id":"s","company_id":"c"}`))
	require.NoError(t, err)
	assert.Equal(t, lowstock.AlertType, got.Type)
	assert.Equal(t, types.MustQuantity("2.5"), got.CurrentQuantity)
}
