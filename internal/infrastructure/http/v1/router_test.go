package v1_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradeledger/internal/core/apperror"
	appctx "tradeledger/internal/core/context"
	"tradeledger/internal/core/id"
	"tradeledger/internal/core/types"
	"tradeledger/internal/domain/auth"
	"tradeledger/internal/domain/catalog"
	"tradeledger/internal/domain/inventory"
	"tradeledger/internal/domain/obligation"
	"tradeledger/internal/domain/payment"
	"tradeledger/internal/domain/settlement"
	"tradeledger/internal/domain/transfer"
	v1 "tradeledger/internal/infrastructure/http/v1"
	"tradeledger/internal/infrastructure/metrics"
	"tradeledger/internal/infrastructure/storage/memory"
	"tradeledger/pkg/logger"
)

type api struct {
	f      *memory.Fixture
	router *gin.Engine
	jwt    *auth.JWTService
	widget catalog.Product
	stock  *inventory.Ledger
}

func newAPI(t *testing.T) *api {
	t.Helper()
	f := memory.NewFixture()
	stock := inventory.NewLedger(f.Inventory(), f)
	obligations := obligation.NewLedger(f.Obligations(), f)
	jwtSvc := auth.NewJWTService(auth.DefaultJWTConfig("test-secret"))

	router := v1.NewRouter(v1.RouterConfig{
		Logger:       logger.NewNop(),
		JWTValidator: jwtSvc,
		Metrics:      metrics.New("test"),
		Version:      "test",
		Settlement: settlement.NewEngine(settlement.Deps{
			TxManager:   f,
			Orders:      f.Orders(),
			Catalog:     f.Catalog(),
			Inventory:   stock,
			Obligations: obligations,
			Payments:    f.Payments(),
		}),
		Payments:  payment.NewEngine(f, f.Payments(), f.Orders(), obligations, nil),
		Transfers: transfer.NewEngine(f, f.Transfers(), f.Catalog(), stock, nil, nil),
		Inventory: stock,
	})

	a := &api{f: f, router: router, jwt: jwtSvc, stock: stock,
		widget: f.NewProduct(f.ShopA.ID, "Widget", "30", "50")}
	_, err := stock.Adjust(context.Background(), a.widget.ID, f.ShopA.ID, types.NewQuantity(20))
	require.NoError(t, err)
	return a
}

func (a *api) token(t *testing.T, storeID id.ID) string {
	t.Helper()
	tok, _, err := a.jwt.GenerateAccessToken(appctx.UserContext{
		UserID:    "u-1",
		CompanyID: a.f.CompanyID.String(),
		StoreID:   storeID.String(),
	})
	require.NoError(t, err)
	return tok
}

func (a *api) do(t *testing.T, token, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

type viewBody struct {
	Order struct {
		ID     id.ID  `json:"id"`
		Kind   string `json:"kind"`
		Status string `json:"status"`
	} `json:"order"`
	Obligation *struct {
		ID     id.ID       `json:"id"`
		Amount types.Money `json:"amount"`
	} `json:"obligation"`
	PaidToDate types.Money `json:"paidToDate"`
}

type errorBody struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details"`
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func (a *api) saleBody(units int, total string) map[string]any {
	return map[string]any{
		"counterpartyId": a.f.Customer,
		"items":          []map[string]any{{"productId": a.widget.ID, "quantity": units}},
		"totalAmount":    total,
		"tax":            "0",
	}
}

func TestHealth(t *testing.T) {
	a := newAPI(t)

	rec := a.do(t, "", http.MethodGet, "/health", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"database":"in-memory"`)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestAPI_RequiresToken(t *testing.T) {
	a := newAPI(t)

	rec := a.do(t, "", http.MethodGet, "/api/v1/stores/"+a.f.ShopA.ID.String()+"/inventory", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, apperror.CodeUnauthorized, decode[errorBody](t, rec).Code)

	rec = a.do(t, "garbage", http.MethodGet, "/api/v1/stores/"+a.f.ShopA.ID.String()+"/inventory", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSaleAndPaymentFlow(t *testing.T) {
	a := newAPI(t)
	tok := a.token(t, a.f.ShopA.ID)

	rec := a.do(t, tok, http.MethodPost, "/api/v1/stores/"+a.f.ShopA.ID.String()+"/sales", a.saleBody(2, "60"))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[viewBody](t, rec)
	assert.Equal(t, "sale", created.Order.Kind)
	assert.Equal(t, "PARTIALLY_PAID", created.Order.Status)
	require.NotNil(t, created.Obligation)
	assert.True(t, types.MustMoney("40").Equal(created.Obligation.Amount))

	rec = a.do(t, tok, http.MethodPost, "/api/v1/payments", map[string]any{
		"obligationId": created.Obligation.ID,
		"orderId":      created.Order.ID,
		"amount":       "40",
		"mode":         "cash",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = a.do(t, tok, http.MethodGet, "/api/v1/sales/"+created.Order.ID.String(), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[viewBody](t, rec)
	assert.Equal(t, "PAID", got.Order.Status)
	assert.Nil(t, got.Obligation)
	assert.True(t, types.MustMoney("100").Equal(got.PaidToDate))

	rec = a.do(t, tok, http.MethodGet, "/api/v1/purchases/"+created.Order.ID.String(), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = a.do(t, tok, http.MethodDelete, "/api/v1/purchases/"+created.Order.ID.String(), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = a.do(t, tok, http.MethodDelete, "/api/v1/sales/"+created.Order.ID.String(), nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	recStock, err := a.stock.Get(context.Background(), a.widget.ID, a.f.ShopA.ID)
	require.NoError(t, err)
	assert.Equal(t, types.NewQuantity(20), recStock.Quantity)
}

func TestSale_ErrorMapping(t *testing.T) {
	a := newAPI(t)
	tokA := a.token(t, a.f.ShopA.ID)
	tokB := a.token(t, a.f.ShopB.ID)
	salesA := "/api/v1/stores/" + a.f.ShopA.ID.String() + "/sales"

	tests := []struct {
		name   string
		token  string
		method string
		path   string
		body   any
		status int
		code   string
	}{
		{"insufficient stock", tokA, http.MethodPost, salesA, a.saleBody(21, "0"), http.StatusConflict, apperror.CodeInsufficientStock},
		{"overpayment", tokA, http.MethodPost, salesA, a.saleBody(1, "51"), http.StatusBadRequest, apperror.CodeValidation},
		{"other store", tokB, http.MethodPost, salesA, a.saleBody(1, "50"), http.StatusForbidden, apperror.CodeForbidden},
		{"bad store id", tokA, http.MethodPost, "/api/v1/stores/nope/sales", a.saleBody(1, "50"), http.StatusBadRequest, apperror.CodeValidation},
		{"bad order id", tokA, http.MethodGet, "/api/v1/sales/nope", nil, http.StatusBadRequest, apperror.CodeValidation},
		{"unknown order", tokA, http.MethodGet, "/api/v1/sales/" + id.New().String(), nil, http.StatusNotFound, apperror.CodeNotFound},
		{"malformed body", tokA, http.MethodPost, salesA, "not an object", http.StatusBadRequest, apperror.CodeValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := a.do(t, tt.token, tt.method, tt.path, tt.body)
			require.Equal(t, tt.status, rec.Code, rec.Body.String())
			assert.Equal(t, tt.code, decode[errorBody](t, rec).Code)
		})
	}
}

func TestTransferAndInventoryRoutes(t *testing.T) {
	a := newAPI(t)
	tok := a.token(t, a.f.ShopA.ID)
	storeA := "/api/v1/stores/" + a.f.ShopA.ID.String()

	rec := a.do(t, tok, http.MethodPost, storeA+"/transfers", map[string]any{
		"destinationStoreId": a.f.ShopB.ID,
		"productId":          a.widget.ID,
		"quantity":           5,
		"notes":              "weekend restock",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[transfer.Transfer](t, rec)
	assert.Equal(t, transfer.StatusCompleted, created.Status)
	assert.False(t, id.IsNil(created.DestinationProductID))

	rec = a.do(t, tok, http.MethodGet, storeA+"/transfers", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, decode[struct {
		Count int `json:"count"`
	}](t, rec).Count)

	rec = a.do(t, tok, http.MethodPut, storeA+"/inventory/"+a.widget.ID.String()+"/threshold", map[string]any{"threshold": 30})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	record := decode[inventory.Record](t, rec)
	assert.Equal(t, types.NewQuantity(15), record.Quantity)
	assert.True(t, record.LowStockNotified)

	rec = a.do(t, tok, http.MethodGet, storeA+"/inventory?lowStock=true", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, decode[struct {
		Count int `json:"count"`
	}](t, rec).Count)

	rec = a.do(t, tok, http.MethodDelete, storeA+"/transfers/"+created.ID.String(), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, transfer.StatusCancelled, decode[transfer.Transfer](t, rec).Status)

	rec = a.do(t, tok, http.MethodDelete, storeA+"/transfers/"+created.ID.String(), nil)
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, apperror.CodeTransferCancelled, decode[errorBody](t, rec).Code)
}

func TestMetricsEndpoint(t *testing.T) {
	a := newAPI(t)
	tok := a.token(t, a.f.ShopA.ID)
	a.do(t, tok, http.MethodPost, "/api/v1/stores/"+a.f.ShopA.ID.String()+"/sales", a.saleBody(1, "50"))

	rec := a.do(t, "", http.MethodGet, "/metrics", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `tradeledger_ledger_operations_total{code="OK",operation="create_sale",service="test"} 1`), body)
	assert.Contains(t, body, `route="/api/v1/stores/:store_id/sales"`)
}

func TestStoreListingRoutes(t *testing.T) {
	a := newAPI(t)
	tok := a.token(t, a.f.ShopA.ID)
	storeA := "/api/v1/stores/" + a.f.ShopA.ID.String()

	rec := a.do(t, tok, http.MethodPost, storeA+"/sales", a.saleBody(2, "60"))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	sale := decode[viewBody](t, rec)
	require.NotNil(t, sale.Obligation)

	rec = a.do(t, tok, http.MethodPost, "/api/v1/payments", map[string]any{
		"obligationId": sale.Obligation.ID,
		"orderId":      sale.Order.ID,
		"amount":       "15",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	type listBody struct {
		Count int `json:"count"`
	}
	tests := []struct {
		path  string
		count int
	}{
		{storeA + "/sales", 1},
		{storeA + "/purchases", 0},
		{storeA + "/receivables", 1},
		{storeA + "/payables", 0},
		{storeA + "/payments-in", 1},
		{storeA + "/payments-out", 0},
		{"/api/v1/sales/" + sale.Order.ID.String() + "/payments", 1},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := a.do(t, tok, http.MethodGet, tt.path, nil)
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			assert.Equal(t, tt.count, decode[listBody](t, rec).Count)
		})
	}

	rec = a.do(t, tok, http.MethodGet, "/api/v1/purchases/"+sale.Order.ID.String()+"/payments", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	tokB := a.token(t, a.f.ShopB.ID)
	rec = a.do(t, tokB, http.MethodGet, storeA+"/receivables", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = a.do(t, tokB, http.MethodGet, "/api/v1/sales/"+sale.Order.ID.String()+"/payments", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
