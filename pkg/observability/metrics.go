package observability

import (
	"database/sql"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPRequestSize     *prometheus.HistogramVec
	HTTPResponseSize    *prometheus.HistogramVec

	// Storage metrics
	StorageOperationsTotal   *prometheus.CounterVec
	StorageOperationDuration *prometheus.HistogramVec

	// Cache metrics
	CacheHitsTotal   *prometheus.CounterVec
	CacheMissesTotal *prometheus.CounterVec

	// Database metrics
	DBConnectionsActive    prometheus.Gauge
	DBConnectionsIdle      prometheus.Gauge
	DBConnectionsWaitCount prometheus.Gauge

	// Business metrics
	RecordsCreatedTotal     *prometheus.CounterVec
	ClaimTokensIssuedTotal  prometheus.Counter
	ClaimTokensClearedTotal *prometheus.CounterVec
	PermissionDenialsTotal  *prometheus.CounterVec
	RateLimitedTotal        prometheus.Counter

	otel *OTelMetrics
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "openveil_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "openveil_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		HTTPRequestSize: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "openveil_http_request_size_bytes",
				Help:    "HTTP request size in bytes",
				Buckets: prometheus.ExponentialBuckets(100, 10, 8),
			},
			[]string{"method", "path"},
		),
		HTTPResponseSize: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "openveil_http_response_size_bytes",
				Help:    "HTTP response size in bytes",
				Buckets: prometheus.ExponentialBuckets(100, 10, 8),
			},
			[]string{"method", "path"},
		),

		StorageOperationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "openveil_storage_operations_total",
				Help: "Total number of content store operations",
			},
			[]string{"operation", "status"},
		),
		StorageOperationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "openveil_storage_operation_duration_seconds",
				Help:    "Content store operation duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),

		CacheHitsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "openveil_cache_hits_total",
				Help: "Total number of record cache hits",
			},
			[]string{"level"},
		),
		CacheMissesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "openveil_cache_misses_total",
				Help: "Total number of record cache misses",
			},
			[]string{"level"},
		),

		DBConnectionsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "openveil_db_connections_active",
				Help: "Number of active database connections",
			},
		),
		DBConnectionsIdle: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "openveil_db_connections_idle",
				Help: "Number of idle database connections",
			},
		),
		DBConnectionsWaitCount: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "openveil_db_connections_wait_count",
				Help: "Total number of connections waited for",
			},
		),

		RecordsCreatedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "openveil_records_created_total",
				Help: "Total number of created protocols and trials",
			},
			[]string{"kind", "status"},
		),
		ClaimTokensIssuedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "openveil_claim_tokens_issued_total",
				Help: "Total number of claim tokens issued to guest submitters",
			},
		),
		ClaimTokensClearedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "openveil_claim_tokens_cleared_total",
				Help: "Total number of claim tokens removed",
			},
			[]string{"reason"},
		),
		PermissionDenialsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "openveil_permission_denials_total",
				Help: "Total number of requests refused by the permission policy",
			},
			[]string{"kind", "operation"},
		),
		RateLimitedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "openveil_rate_limited_total",
				Help: "Total number of claim token attempts refused by the rate limiter",
			},
		),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestSize,
		m.HTTPResponseSize,
		m.StorageOperationsTotal,
		m.StorageOperationDuration,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.DBConnectionsActive,
		m.DBConnectionsIdle,
		m.DBConnectionsWaitCount,
		m.RecordsCreatedTotal,
		m.ClaimTokensIssuedTotal,
		m.ClaimTokensClearedTotal,
		m.PermissionDenialsTotal,
		m.RateLimitedTotal,
	)

	return m
}

// MirrorTo also records the business and storage metrics on o. It must be
// called before the metrics are shared between goroutines.
func (m *Metrics) MirrorTo(o *OTelMetrics) {
	m.otel = o
}

// The recording helpers below accept a nil receiver so components can run
// without metrics.

// ObserveStorage records one content store call
func (m *Metrics) ObserveStorage(operation string, start time.Time, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	d := time.Since(start)
	m.StorageOperationsTotal.WithLabelValues(operation, status).Inc()
	m.StorageOperationDuration.WithLabelValues(operation).Observe(d.Seconds())
	m.otel.observeStorage(operation, d, status)
}

// CacheHit records a hit at the given cache level
func (m *Metrics) CacheHit(level string) {
	if m == nil {
		return
	}
	m.CacheHitsTotal.WithLabelValues(level).Inc()
	m.otel.cacheLookup(level, true)
}

// CacheMiss records a miss at the given cache level
func (m *Metrics) CacheMiss(level string) {
	if m == nil {
		return
	}
	m.CacheMissesTotal.WithLabelValues(level).Inc()
	m.otel.cacheLookup(level, false)
}

// ObserveDBStats copies connection pool statistics into the gauges
func (m *Metrics) ObserveDBStats(stats sql.DBStats) {
	if m == nil {
		return
	}
	m.DBConnectionsActive.Set(float64(stats.InUse))
	m.DBConnectionsIdle.Set(float64(stats.Idle))
	m.DBConnectionsWaitCount.Set(float64(stats.WaitCount))
}

// RecordCreated counts a new record
func (m *Metrics) RecordCreated(kind, status string) {
	if m == nil {
		return
	}
	m.RecordsCreatedTotal.WithLabelValues(kind, status).Inc()
	m.otel.recordCreated(kind, status)
}

// ClaimIssued counts a claim token handed to a guest
func (m *Metrics) ClaimIssued() {
	if m == nil {
		return
	}
	m.ClaimTokensIssuedTotal.Inc()
	m.otel.claimIssued()
}

// ClaimsCleared counts claim tokens removed for reason ("used" or "expired")
func (m *Metrics) ClaimsCleared(reason string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.ClaimTokensClearedTotal.WithLabelValues(reason).Add(float64(n))
	m.otel.claimsClearedBy(reason, n)
}

// PermissionDenied counts a policy refusal
func (m *Metrics) PermissionDenied(kind, operation string) {
	if m == nil {
		return
	}
	m.PermissionDenialsTotal.WithLabelValues(kind, operation).Inc()
	m.otel.permissionDenied(kind, operation)
}

// RateLimited counts a throttled claim attempt
func (m *Metrics) RateLimited() {
	if m == nil {
		return
	}
	m.RateLimitedTotal.Inc()
	m.otel.claimRateLimited()
}

// responseWriter wraps http.ResponseWriter to capture status code and size
type responseWriter struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.bytesWritten += n
	return n, err
}

// HTTPMetricsMiddleware instruments HTTP requests with Prometheus metrics.
// route maps a request to a low-cardinality label, usually the mux path
// template; nil falls back to the raw URL path.
func HTTPMetricsMiddleware(metrics *Metrics, route func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			rw := &responseWriter{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}

			next.ServeHTTP(rw, r)

			path := r.URL.Path
			if route != nil {
				path = route(r)
			}
			if r.ContentLength > 0 {
				metrics.HTTPRequestSize.WithLabelValues(r.Method, path).Observe(float64(r.ContentLength))
			}

			duration := time.Since(start).Seconds()
			status := strconv.Itoa(rw.statusCode)

			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, path, status).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
			metrics.HTTPResponseSize.WithLabelValues(r.Method, path).Observe(float64(rw.bytesWritten))
		})
	}
}

// RegisterMetricsEndpoint registers the /metrics endpoint
func RegisterMetricsEndpoint(mux *http.ServeMux, registry *prometheus.Registry) {
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
}
