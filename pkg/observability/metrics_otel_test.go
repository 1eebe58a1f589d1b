package observability

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// sumOf totals every data point of the named int64 counter
func sumOf(t *testing.T, rm metricdata.ResourceMetrics, name string) int64 {
	t.Helper()
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok, "%s is not an int64 sum", name)
			var total int64
			for _, dp := range sum.DataPoints {
				total += dp.Value
			}
			return total
		}
	}
	return 0
}

func TestMetrics_MirrorToOTel(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer provider.Shutdown(context.Background())

	otelMetrics, err := NewOTelMetrics(provider)
	require.NoError(t, err)

	m := NewMetrics(prometheus.NewRegistry())
	m.MirrorTo(otelMetrics)

	m.RecordCreated("trial", "pending")
	m.ClaimIssued()
	m.ClaimsCleared("expired", 3)
	m.ClaimsCleared("used", 0)
	m.PermissionDenied("protocol", "update")
	m.RateLimited()
	m.CacheHit("l1")
	m.CacheMiss("redis")
	m.ObserveStorage("get", time.Now(), nil)
	m.ObserveStorage("get", time.Now(), errors.New("boom"))

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	assert.Equal(t, int64(1), sumOf(t, rm, "openveil.records.created"))
	assert.Equal(t, int64(1), sumOf(t, rm, "openveil.claims.issued"))
	assert.Equal(t, int64(3), sumOf(t, rm, "openveil.claims.cleared"))
	assert.Equal(t, int64(1), sumOf(t, rm, "openveil.permission.denials"))
	assert.Equal(t, int64(1), sumOf(t, rm, "openveil.claims.rate_limited"))
	assert.Equal(t, int64(1), sumOf(t, rm, "openveil.cache.hits"))
	assert.Equal(t, int64(1), sumOf(t, rm, "openveil.cache.misses"))
	assert.Equal(t, int64(2), sumOf(t, rm, "openveil.storage.operations"))

	// Prometheus keeps counting alongside
	assert.Equal(t, float64(3), testutil.ToFloat64(m.ClaimTokensClearedTotal.WithLabelValues("expired")))
}

func TestOTelMetrics_NilReceiver(t *testing.T) {
	var o *OTelMetrics
	assert.NotPanics(t, func() {
		o.recordCreated("trial", "publish")
		o.cacheLookup("l1", true)
		o.observeStorage("get", time.Millisecond, "ok")
	})
}
