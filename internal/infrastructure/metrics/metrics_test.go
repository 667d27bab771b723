package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradeledger/internal/core/apperror"
	"tradeledger/internal/domain/lowstock"
)

func TestRecordOperation_LabelsByErrorCode(t *testing.T) {
	m := New("test")

	m.RecordOperation("create_sale", nil, time.Millisecond)
	m.RecordOperation("create_sale", apperror.NewInsufficientStock("p", "s", "2", "1"), time.Millisecond)
	m.RecordOperation("create_sale", errors.New("boom"), time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.OperationsTotal.WithLabelValues("create_sale", "OK")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.OperationsTotal.WithLabelValues("create_sale", apperror.CodeInsufficientStock)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.OperationsTotal.WithLabelValues("create_sale", apperror.CodeInternal)))
}

func TestObserver_CountsPipelineOutcomes(t *testing.T) {
	m := New("test")
	var obs lowstock.Observer = m

	obs.ObservePublish(lowstock.OutcomeOK)
	obs.ObservePublish(lowstock.OutcomeOK)
	obs.ObserveConsume(lowstock.OutcomeMalformed)
	obs.ObserveDelivery(lowstock.OutcomeSkipped)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.LowStockPublished.WithLabelValues(lowstock.OutcomeOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LowStockConsumed.WithLabelValues(lowstock.OutcomeMalformed)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LowStockDelivered.WithLabelValues(lowstock.OutcomeSkipped)))
}

func TestHandler_ServesRegistry(t *testing.T) {
	m := New("test")
	m.RecordHTTPRequest(http.MethodGet, "/api/v1/sales/:id", http.StatusOK, 10*time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `tradeledger_http_requests_total{method="GET",route="/api/v1/sales/:id",service="test",status="200"} 1`)
}
