package cache

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openveil/openveil/pkg/content"
	"github.com/openveil/openveil/pkg/observability"
	"github.com/openveil/openveil/pkg/storage"
)

// countingStore counts reads that reach the backing store
type countingStore struct {
	*storage.MemoryStore
	gets int
	// afterLoad runs once the record has been read, before it is returned
	afterLoad func()
}

func (c *countingStore) Get(ctx context.Context, id int64) (*content.Record, error) {
	c.gets++
	rec, err := c.MemoryStore.Get(ctx, id)
	if c.afterLoad != nil {
		hook := c.afterLoad
		c.afterLoad = nil
		hook()
	}
	return rec, err
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func setupCache(t *testing.T) (*Store, *countingStore, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)

	cfg := storage.DefaultConfig()
	cfg.CacheEnabled = true
	cfg.RedisURL = "redis://" + mr.Addr()
	cfg.CacheTTL = time.Minute
	cfg.L1CacheTTL = time.Minute

	rc, err := NewRedisClient(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { rc.Close() })

	backing := &countingStore{MemoryStore: storage.NewMemoryStore()}
	return New(backing, rc, cfg, quietLogger()), backing, mr
}

func TestNewRedisClient_InvalidURL(t *testing.T) {
	_, err := NewRedisClient(storage.Config{RedisURL: "not-a-url"})
	assert.Error(t, err)
}

func TestStore_ReadThrough(t *testing.T) {
	ctx := context.Background()
	s, backing, mr := setupCache(t)

	id, err := s.Create(ctx, &content.Record{Kind: content.KindProtocol, Title: "cached", Status: content.StatusPublish})
	require.NoError(t, err)

	first, err := s.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "cached", first.Title)
	assert.Equal(t, 1, backing.gets)
	assert.True(t, mr.Exists(recordKey(id)))

	second, err := s.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "cached", second.Title)
	assert.Equal(t, 1, backing.gets, "second read served from L1")

	// Mutating a returned record must not leak into the cache
	second.Title = "mutated"
	third, _ := s.Get(ctx, id)
	assert.Equal(t, "cached", third.Title)
}

func TestStore_RedisServesAfterL1Miss(t *testing.T) {
	ctx := context.Background()
	s, backing, _ := setupCache(t)
	metrics := observability.NewMetrics(prometheus.NewRegistry())
	s.SetMetrics(metrics)

	id, err := s.Create(ctx, &content.Record{Kind: content.KindTrial, Title: "t", Meta: map[string]string{"laser_power": "1.5"}})
	require.NoError(t, err)
	_, err = s.Get(ctx, id)
	require.NoError(t, err)

	s.l1.Purge()
	rec, err := s.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "1.5", rec.Meta["laser_power"])
	assert.Equal(t, 1, backing.gets)
	assert.Equal(t, 1, s.Len())

	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.CacheHitsTotal.WithLabelValues("redis")))
	assert.Equal(t, float64(2), testutil.ToFloat64(metrics.CacheMissesTotal.WithLabelValues("l1")))
}

func TestStore_WritesInvalidate(t *testing.T) {
	ctx := context.Background()
	s, backing, mr := setupCache(t)

	id, err := s.Create(ctx, &content.Record{Kind: content.KindProtocol, Title: "before"})
	require.NoError(t, err)
	_, err = s.Get(ctx, id)
	require.NoError(t, err)

	title := "after"
	require.NoError(t, s.UpdatePost(ctx, id, content.PostPatch{Title: &title}))
	assert.False(t, mr.Exists(recordKey(id)))

	rec, err := s.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "after", rec.Title)
	assert.Equal(t, 2, backing.gets)

	require.NoError(t, s.SetMeta(ctx, id, map[string]string{"laser_power": "3"}))
	rec, _ = s.Get(ctx, id)
	assert.Equal(t, "3", rec.Meta["laser_power"])

	require.NoError(t, s.SetTerms(ctx, id, "substance", []content.TermRef{{Name: "Caffeine"}}))
	rec, _ = s.Get(ctx, id)
	assert.Len(t, rec.Terms["substance"], 1)

	require.NoError(t, s.Delete(ctx, id))
	_, err = s.Get(ctx, id)
	assert.True(t, content.IsNotFound(err))
}

func TestStore_CorruptEntryFallsBack(t *testing.T) {
	ctx := context.Background()
	s, backing, mr := setupCache(t)

	id, err := s.Create(ctx, &content.Record{Kind: content.KindProtocol, Title: "ok"})
	require.NoError(t, err)
	require.NoError(t, mr.Set(recordKey(id), "{not json"))

	rec, err := s.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "ok", rec.Title)
	assert.Equal(t, 1, backing.gets)
}

func TestStore_RedisDownFallsBack(t *testing.T) {
	ctx := context.Background()
	s, backing, mr := setupCache(t)

	id, err := s.Create(ctx, &content.Record{Kind: content.KindProtocol, Title: "ok"})
	require.NoError(t, err)

	mr.Close()
	rec, err := s.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "ok", rec.Title)
	assert.Equal(t, 1, backing.gets)
	assert.Error(t, s.HealthCheck(ctx))
}

func TestStore_L1Only(t *testing.T) {
	ctx := context.Background()
	backing := &countingStore{MemoryStore: storage.NewMemoryStore()}
	s := New(backing, nil, storage.DefaultConfig(), nil)

	id, err := s.Create(ctx, &content.Record{Kind: content.KindProtocol, Title: "x"})
	require.NoError(t, err)
	_, _ = s.Get(ctx, id)
	_, _ = s.Get(ctx, id)
	assert.Equal(t, 1, backing.gets)
	assert.NoError(t, s.HealthCheck(ctx))
}

func TestStore_WriteDuringLoadIsNotCached(t *testing.T) {
	ctx := context.Background()
	s, backing, mr := setupCache(t)

	id, err := s.Create(ctx, &content.Record{
		Kind:   content.KindTrial,
		Title:  "claimed",
		Status: content.StatusPending,
		Meta:   map[string]string{content.MetaClaimToken: "ovc_abcd"},
	})
	require.NoError(t, err)

	backing.afterLoad = func() {
		require.NoError(t, s.DeleteMeta(ctx, id, content.MetaClaimToken))
	}
	stale, err := s.Get(ctx, id)
	require.NoError(t, err)
	assert.Contains(t, stale.Meta, content.MetaClaimToken, "the in-flight read saw the old record")
	assert.Equal(t, 0, s.Len())
	assert.False(t, mr.Exists(recordKey(id)))

	fresh, err := s.Get(ctx, id)
	require.NoError(t, err)
	assert.NotContains(t, fresh.Meta, content.MetaClaimToken)
	assert.Equal(t, 2, backing.gets)
}
