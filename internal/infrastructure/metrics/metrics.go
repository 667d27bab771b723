// Package metrics exposes Prometheus metrics for the ledger and the notifier.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"tradeledger/internal/core/apperror"
	"tradeledger/internal/domain/lowstock"
)

const namespace = "tradeledger"

// Metrics holds every collector of one process on its own registry.
type Metrics struct {
	registry *prometheus.Registry

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	OperationsTotal   *prometheus.CounterVec
	OperationDuration *prometheus.HistogramVec

	LowStockPublished *prometheus.CounterVec
	LowStockConsumed  *prometheus.CounterVec
	LowStockDelivered *prometheus.CounterVec
}

var _ lowstock.Observer = (*Metrics)(nil)

// New creates and registers all collectors.
func New(service string) *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	constLabels := prometheus.Labels{"service": service}
	m := &Metrics{registry: registry}

	m.HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace:   namespace,
		Name:        "http_requests_total",
		Help:        "Total number of HTTP requests",
		ConstLabels: constLabels,
	}, []string{"method", "route", "status"})

	m.HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   namespace,
		Name:        "http_request_duration_seconds",
		Help:        "HTTP request duration in seconds",
		ConstLabels: constLabels,
		Buckets:     []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
	}, []string{"method", "route"})

	m.OperationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace:   namespace,
		Name:        "ledger_operations_total",
		Help:        "Ledger operations by outcome code",
		ConstLabels: constLabels,
	}, []string{"operation", "code"})

	m.OperationDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   namespace,
		Name:        "ledger_operation_duration_seconds",
		Help:        "Ledger operation duration in seconds",
		ConstLabels: constLabels,
		Buckets:     prometheus.DefBuckets,
	}, []string{"operation"})

	m.LowStockPublished = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace:   namespace,
		Name:        "low_stock_published_total",
		Help:        "Low-stock alerts handed to the queue by outcome",
		ConstLabels: constLabels,
	}, []string{"outcome"})

	m.LowStockConsumed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace:   namespace,
		Name:        "low_stock_consumed_total",
		Help:        "Low-stock messages consumed by outcome",
		ConstLabels: constLabels,
	}, []string{"outcome"})

	m.LowStockDelivered = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace:   namespace,
		Name:        "low_stock_deliveries_total",
		Help:        "Per-recipient notification deliveries by outcome",
		ConstLabels: constLabels,
	}, []string{"outcome"})

	registry.MustRegister(
		m.HTTPRequestsTotal, m.HTTPRequestDuration,
		m.OperationsTotal, m.OperationDuration,
		m.LowStockPublished, m.LowStockConsumed, m.LowStockDelivered,
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordHTTPRequest records a finished request. route is the matched pattern, not the raw path.
func (m *Metrics) RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordOperation counts a ledger operation under its error code, or "OK".
func (m *Metrics) RecordOperation(operation string, err error, duration time.Duration) {
	m.OperationsTotal.WithLabelValues(operation, outcomeCode(err)).Inc()
	m.OperationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

func outcomeCode(err error) string {
	if err == nil {
		return "OK"
	}
	if appErr, ok := apperror.AsAppError(err); ok {
		return appErr.Code
	}
	return apperror.CodeInternal
}

func (m *Metrics) ObservePublish(outcome string)  { m.LowStockPublished.WithLabelValues(outcome).Inc() }
func (m *Metrics) ObserveConsume(outcome string)  { m.LowStockConsumed.WithLabelValues(outcome).Inc() }
func (m *Metrics) ObserveDelivery(outcome string) { m.LowStockDelivered.WithLabelValues(outcome).Inc() }
