package directory

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradeledger/internal/domain/lowstock"
	"tradeledger/pkg/logger"
	"tradeledger/pkg/resilience"
)

func testClient(url string) *Client {
	cfg := DefaultConfig(url)
	cfg.Timeout = time.Second
	cfg.Retry.InitialDelay = time.Millisecond
	return NewClient(cfg, logger.NewNop())
}

func TestListUsers_SendsFiltersAndDecodesArray(t *testing.T) {
	var query string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/users/", r.URL.Path)
		query = r.URL.RawQuery
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"id":"u1","email":"keeper@shop.test","role":"stock_manager","company_id":"c1","assigned_store":"s1"}]`))
	}))
	defer srv.Close()

	users, err := testClient(srv.URL).ListUsers(context.Background(), lowstock.UserQuery{
		CompanyID: "c1", Role: lowstock.RoleStockManager, StoreID: "s1",
	})
	require.NoError(t, err)

	assert.Equal(t, "company_id=c1&role=stock_manager&store=s1", query)
	require.Len(t, users, 1)
	assert.Equal(t, lowstock.Recipient{
		ID: "u1", Email: "keeper@shop.test", Role: "stock_manager", CompanyID: "c1", AssignedStore: "s1",
	}, users[0])
}

func TestListUsers_OmitsEmptyFiltersAndDecodesPage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.URL.Query().Get("store"))
		_, _ = w.Write([]byte(`{"count":1,"results":[{"id":"u2","email":"owner@shop.test","role":"admin","company_id":"c1"}]}`))
	}))
	defer srv.Close()

	users, err := testClient(srv.URL).ListUsers(context.Background(), lowstock.UserQuery{CompanyID: "c1", Role: lowstock.RoleAdmin})
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "u2", users[0].ID)
}

func TestListUsers_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	users, err := testClient(srv.URL).ListUsers(context.Background(), lowstock.UserQuery{CompanyID: "c1"})
	require.NoError(t, err)
	assert.Empty(t, users)
	assert.Equal(t, int32(2), calls.Load())
}

func TestListUsers_DoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte("forbidden"))
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).ListUsers(context.Background(), lowstock.UserQuery{CompanyID: "c1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 403")
	assert.Equal(t, int32(1), calls.Load())
}

func TestListUsers_RejectsUndecodableBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>`))
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).ListUsers(context.Background(), lowstock.UserQuery{CompanyID: "c1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode")
}

func TestListUsers_OpenBreakerFailsFast(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	cfg := DefaultConfig(srv.URL)
	cfg.Retry = resilience.RetryConfig{MaxAttempts: 1}
	cfg.Breaker.FailureThreshold = 2
	c := NewClient(cfg, logger.NewNop())

	for i := 0; i < 2; i++ {
		_, err := c.ListUsers(context.Background(), lowstock.UserQuery{CompanyID: "c1"})
		require.Error(t, err)
	}
	_, err := c.ListUsers(context.Background(), lowstock.UserQuery{CompanyID: "c1"})
	assert.ErrorIs(t, err, resilience.ErrCircuitOpen)
	assert.Equal(t, int32(2), calls.Load())
}

func TestListUsers_ClientErrorsKeepBreakerClosed(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	cfg := DefaultConfig(srv.URL)
	cfg.Retry = resilience.RetryConfig{MaxAttempts: 1}
	cfg.Breaker.FailureThreshold = 2
	c := NewClient(cfg, logger.NewNop())

	for i := 0; i < 5; i++ {
		_, err := c.ListUsers(context.Background(), lowstock.UserQuery{CompanyID: "c1"})
		require.Error(t, err)
		assert.NotErrorIs(t, err, resilience.ErrCircuitOpen)
		assert.Contains(t, err.Error(), "status 403")
	}
	assert.Equal(t, int32(5), calls.Load())
	assert.Equal(t, gobreaker.StateClosed, c.breaker.State())
}
