// Package cache layers a two level read-through cache over a content.Store.
//
// Single record reads are served from an in-process expirable LRU (L1) and
// then Redis (L2) before reaching the backing store. Every write invalidates
// the record in both levels after the backing store accepts it. Listings are
// never cached.
package cache

import (
	"context"
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/sirupsen/logrus"

	"github.com/openveil/openveil/pkg/content"
	"github.com/openveil/openveil/pkg/observability"
	"github.com/openveil/openveil/pkg/storage"
)

// Store wraps a content.Store with L1 and optional Redis caching
type Store struct {
	next    content.Store
	l1      *lru.LRU[int64, *content.Record]
	redis   *RedisClient
	logger  *logrus.Logger
	metrics *observability.Metrics

	// gen counts invalidations. A read only fills the cache when no write
	// finished while it was loading.
	mu  sync.Mutex
	gen uint64
}

// New wraps next. redis may be nil to run with the in-process level only.
func New(next content.Store, redis *RedisClient, config storage.Config, logger *logrus.Logger) *Store {
	if logger == nil {
		logger = logrus.New()
	}
	size := config.L1CacheSize
	if size <= 0 {
		size = storage.DefaultConfig().L1CacheSize
	}
	return &Store{
		next:   next,
		l1:     lru.NewLRU[int64, *content.Record](size, nil, config.L1CacheTTL),
		redis:  redis,
		logger: logger,
	}
}

// SetMetrics enables hit/miss counters per cache level
func (s *Store) SetMetrics(m *observability.Metrics) {
	s.metrics = m
}

// Get implements content.Store.Get
func (s *Store) Get(ctx context.Context, id int64) (*content.Record, error) {
	if rec, ok := s.l1.Get(id); ok {
		s.metrics.CacheHit("l1")
		return rec.Clone(), nil
	}
	s.metrics.CacheMiss("l1")

	gen := s.generation()

	if s.redis != nil {
		rec, err := s.redis.GetRecord(ctx, id)
		if err != nil {
			s.logger.WithError(err).WithField("record_id", id).Warn("Record cache read failed")
		} else if rec != nil {
			s.metrics.CacheHit("redis")
			s.fillL1(gen, id, rec)
			return rec.Clone(), nil
		}
		s.metrics.CacheMiss("redis")
	}

	rec, err := s.next.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if !s.fillL1(gen, id, rec.Clone()) {
		return rec, nil
	}
	if s.redis != nil {
		if err := s.redis.SetRecord(ctx, rec); err != nil {
			s.logger.WithError(err).WithField("record_id", id).Warn("Record cache write failed")
		}
		// a write that landed during SetRecord may have been overwritten
		if s.generation() != gen {
			s.invalidateRedis(ctx, id)
		}
	}
	return rec, nil
}

func (s *Store) generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen
}

// fillL1 caches rec unless an invalidation happened since gen was read
func (s *Store) fillL1(gen uint64, id int64, rec *content.Record) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != gen {
		return false
	}
	s.l1.Add(id, rec)
	return true
}

func (s *Store) invalidate(ctx context.Context, id int64) {
	s.mu.Lock()
	s.gen++
	s.l1.Remove(id)
	s.mu.Unlock()
	s.invalidateRedis(ctx, id)
}

func (s *Store) invalidateRedis(ctx context.Context, id int64) {
	if s.redis != nil {
		if err := s.redis.InvalidateRecord(ctx, id); err != nil {
			s.logger.WithError(err).WithField("record_id", id).Warn("Record cache invalidation failed")
		}
	}
}

// Create implements content.Store.Create
func (s *Store) Create(ctx context.Context, rec *content.Record) (int64, error) {
	return s.next.Create(ctx, rec)
}

// UpdatePost implements content.Store.UpdatePost
func (s *Store) UpdatePost(ctx context.Context, id int64, patch content.PostPatch) error {
	defer s.invalidate(ctx, id)
	return s.next.UpdatePost(ctx, id, patch)
}

// SetMeta implements content.Store.SetMeta
func (s *Store) SetMeta(ctx context.Context, id int64, meta map[string]string) error {
	defer s.invalidate(ctx, id)
	return s.next.SetMeta(ctx, id, meta)
}

// DeleteMeta implements content.Store.DeleteMeta
func (s *Store) DeleteMeta(ctx context.Context, id int64, keys ...string) error {
	defer s.invalidate(ctx, id)
	return s.next.DeleteMeta(ctx, id, keys...)
}

// SetTerms implements content.Store.SetTerms
func (s *Store) SetTerms(ctx context.Context, id int64, taxonomy string, refs []content.TermRef) error {
	defer s.invalidate(ctx, id)
	return s.next.SetTerms(ctx, id, taxonomy, refs)
}

// Delete implements content.Store.Delete
func (s *Store) Delete(ctx context.Context, id int64) error {
	defer s.invalidate(ctx, id)
	return s.next.Delete(ctx, id)
}

// Query implements content.Store.Query
func (s *Store) Query(ctx context.Context, q content.Query) ([]*content.Record, int, error) {
	return s.next.Query(ctx, q)
}

// Terms implements content.Store.Terms
func (s *Store) Terms(ctx context.Context, taxonomy string) ([]content.Term, error) {
	return s.next.Terms(ctx, taxonomy)
}

// HealthCheck implements content.Store.HealthCheck
func (s *Store) HealthCheck(ctx context.Context) error {
	if err := s.next.HealthCheck(ctx); err != nil {
		return err
	}
	if s.redis != nil {
		if err := s.redis.Ping(ctx); err != nil {
			return fmt.Errorf("redis unhealthy: %w", err)
		}
	}
	return nil
}

// Len returns the number of records held in the in-process level
func (s *Store) Len() int {
	return s.l1.Len()
}

var _ content.Store = (*Store)(nil)
