package storage

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openveil/openveil/pkg/content"
	"github.com/openveil/openveil/pkg/observability"
)

func TestInstrumented(t *testing.T) {
	ctx := context.Background()
	metrics := observability.NewMetrics(prometheus.NewRegistry())
	store := NewInstrumented(NewMemoryStore(), metrics)

	id, err := store.Create(ctx, &content.Record{Kind: content.KindProtocol, Title: "Green", Status: content.StatusPublish})
	require.NoError(t, err)

	_, err = store.Get(ctx, id)
	require.NoError(t, err)

	_, err = store.Get(ctx, 999)
	assert.ErrorIs(t, err, content.ErrNotFound)

	assert.ErrorIs(t, store.SetMeta(ctx, 999, map[string]string{"laser_power": "1"}), content.ErrNotFound)

	recs, total, err := store.Query(ctx, content.Query{Kind: content.KindProtocol})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Len(t, recs, 1)

	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.StorageOperationsTotal.WithLabelValues("create", "ok")))
	assert.Equal(t, float64(2), testutil.ToFloat64(metrics.StorageOperationsTotal.WithLabelValues("get", "ok")),
		"not found is not counted as a failure")
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.StorageOperationsTotal.WithLabelValues("query", "ok")))
	assert.NoError(t, store.HealthCheck(ctx))
}

func TestInstrumented_NilMetrics(t *testing.T) {
	store := NewInstrumented(NewMemoryStore(), nil)
	_, err := store.Create(context.Background(), &content.Record{Kind: content.KindTrial, Title: "x"})
	assert.NoError(t, err)
}
