package activity

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appctx "tradeledger/internal/core/context"
	"tradeledger/internal/domain/audit"
)

func TestRecord_PostsEntry(t *testing.T) {
	var got audit.Entry
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/activity-logs/", time.Second)
	err := c.Record(context.Background(), audit.Entry{User: "u-1", Action: audit.ActionDeleteSale, Description: "Deleted sale 42"})
	require.NoError(t, err)

	assert.Equal(t, audit.Entry{User: "u-1", Action: "delete_sale", Description: "Deleted sale 42"}, got)
}

func TestRecord_FailsOnErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	err := NewClient(srv.URL, time.Second).Record(context.Background(), audit.Entry{Action: audit.ActionDeletePayment})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
}

func TestAuditRecord_SwallowsClientFailure(t *testing.T) {
	var user string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var e audit.Entry
		_ = json.NewDecoder(r.Body).Decode(&e)
		user = e.User
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	ctx := appctx.WithUser(context.Background(), &appctx.UserContext{UserID: "u-9"})
	assert.NotPanics(t, func() {
		audit.Record(ctx, NewClient(srv.URL, time.Second), audit.ActionCancelTransfer, "Cancelled transfer")
	})
	assert.Equal(t, "u-9", user)
}
