package metrics

import (
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	apperrors "github.com/gmsas95/recovery-tracker/internal/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "recovery"

// Metrics holds the service's prometheus collectors. It implements
// recovery.Recorder.
type Metrics struct {
	startTime time.Time
	registry  *prometheus.Registry

	operations        *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	warmupFailures    prometheus.Counter
	materialized      prometheus.Counter
	httpRequests      *prometheus.CounterVec
	requestsBlocked   prometheus.Counter
	catalogReloads    *prometheus.CounterVec

	operationsTotal   atomic.Int64
	operationsFailed  atomic.Int64
	warmupFailedTotal atomic.Int64
	materializedTotal atomic.Int64
	blockedTotal      atomic.Int64
}

var (
	defaultMetrics *Metrics
	once           sync.Once
)

func Default() *Metrics {
	once.Do(func() {
		defaultMetrics = New()
	})
	return defaultMetrics
}

// New creates a Metrics with its own registry
func New() *Metrics {
	m := &Metrics{
		startTime: time.Now(),
		registry:  prometheus.NewRegistry(),

		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Tracker operations by outcome",
		}, []string{"op", "result"}),
		operationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Tracker operation latency",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op"}),
		warmupFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "warmup_failures_total",
			Help:      "Day-1 pre-generations that failed at enrollment",
		}),
		materialized: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "task_instances_materialized_total",
			Help:      "Task instances created from catalog templates",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status",
		}, []string{"method", "route", "status"}),
		requestsBlocked: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_rate_limited_total",
			Help:      "HTTP requests rejected by the rate limiter",
		}),
		catalogReloads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "catalog_reloads_total",
			Help:      "Catalog file reloads by outcome",
		}, []string{"result"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "uptime_seconds",
			Help:      "Time since server start",
		}, func() float64 { return time.Since(m.startTime).Seconds() }),
		m.operations,
		m.operationDuration,
		m.warmupFailures,
		m.materialized,
		m.httpRequests,
		m.requestsBlocked,
		m.catalogReloads,
	)

	return m
}

// Registry exposes the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveOperation records one tracker call. Failures are labelled with
// their error code.
func (m *Metrics) ObserveOperation(op string, err error, seconds float64) {
	result := "ok"
	if err != nil {
		result = apperrors.GetCode(err)
		m.operationsFailed.Add(1)
	}
	m.operationsTotal.Add(1)
	m.operations.WithLabelValues(op, result).Inc()
	m.operationDuration.WithLabelValues(op).Observe(seconds)
}

func (m *Metrics) RecordWarmupFailure() {
	m.warmupFailedTotal.Add(1)
	m.warmupFailures.Inc()
}

func (m *Metrics) RecordMaterialized(count int) {
	m.materializedTotal.Add(int64(count))
	m.materialized.Add(float64(count))
}

func (m *Metrics) RecordHTTPRequest(method, route string, status int) {
	m.httpRequests.WithLabelValues(method, route, statusClass(status)).Inc()
}

func (m *Metrics) RecordRequestBlocked() {
	m.blockedTotal.Add(1)
	m.requestsBlocked.Inc()
}

// RecordCatalogReload has the signature of the catalog watcher's hook
func (m *Metrics) RecordCatalogReload(err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.catalogReloads.WithLabelValues(result).Inc()
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}

type Snapshot struct {
	Uptime           time.Duration `json:"uptime"`
	OperationsTotal  int64         `json:"operations_total"`
	OperationsFailed int64         `json:"operations_failed"`
	WarmupFailures   int64         `json:"warmup_failures"`
	Materialized     int64         `json:"task_instances_materialized"`
	RequestsBlocked  int64         `json:"requests_blocked"`
	SuccessRate      float64       `json:"success_rate"`
}

func (m *Metrics) Snapshot() *Snapshot {
	s := &Snapshot{
		Uptime:           time.Since(m.startTime),
		OperationsTotal:  m.operationsTotal.Load(),
		OperationsFailed: m.operationsFailed.Load(),
		WarmupFailures:   m.warmupFailedTotal.Load(),
		Materialized:     m.materializedTotal.Load(),
		RequestsBlocked:  m.blockedTotal.Load(),
	}
	if s.OperationsTotal > 0 {
		s.SuccessRate = float64(s.OperationsTotal-s.OperationsFailed) / float64(s.OperationsTotal) * 100
	}
	return s
}
