package storage

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/openveil/openveil/pkg/content"
	"github.com/openveil/openveil/pkg/observability"
)

// Instrumented records a span and Prometheus operation metrics for every
// call into the wrapped store
type Instrumented struct {
	next    content.Store
	metrics *observability.Metrics
}

// NewInstrumented wraps next. metrics may be nil.
func NewInstrumented(next content.Store, metrics *observability.Metrics) *Instrumented {
	return &Instrumented{next: next, metrics: metrics}
}

func (s *Instrumented) start(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, func(error)) {
	begin := time.Now()
	ctx, span := tracer.Start(ctx, "ContentStore."+op, trace.WithAttributes(attrs...))
	return ctx, func(err error) {
		// a missing record is an answer, not a failure
		if err != nil && !errors.Is(err, content.ErrNotFound) {
			span.RecordError(err)
			span.SetStatus(codes.Error, op+" failed")
			s.metrics.ObserveStorage(op, begin, err)
		} else {
			s.metrics.ObserveStorage(op, begin, nil)
		}
		span.End()
	}
}

func (s *Instrumented) Create(ctx context.Context, rec *content.Record) (id int64, err error) {
	ctx, done := s.start(ctx, "create", attribute.String("record.kind", string(rec.Kind)))
	defer func() { done(err) }()
	return s.next.Create(ctx, rec)
}

func (s *Instrumented) Get(ctx context.Context, id int64) (rec *content.Record, err error) {
	ctx, done := s.start(ctx, "get", attribute.Int64("record.id", id))
	defer func() { done(err) }()
	return s.next.Get(ctx, id)
}

func (s *Instrumented) UpdatePost(ctx context.Context, id int64, patch content.PostPatch) (err error) {
	ctx, done := s.start(ctx, "update_post", attribute.Int64("record.id", id))
	defer func() { done(err) }()
	return s.next.UpdatePost(ctx, id, patch)
}

func (s *Instrumented) SetMeta(ctx context.Context, id int64, meta map[string]string) (err error) {
	ctx, done := s.start(ctx, "set_meta", attribute.Int64("record.id", id), attribute.Int("meta.count", len(meta)))
	defer func() { done(err) }()
	return s.next.SetMeta(ctx, id, meta)
}

func (s *Instrumented) DeleteMeta(ctx context.Context, id int64, keys ...string) (err error) {
	ctx, done := s.start(ctx, "delete_meta", attribute.Int64("record.id", id))
	defer func() { done(err) }()
	return s.next.DeleteMeta(ctx, id, keys...)
}

func (s *Instrumented) SetTerms(ctx context.Context, id int64, taxonomy string, refs []content.TermRef) (err error) {
	ctx, done := s.start(ctx, "set_terms", attribute.Int64("record.id", id), attribute.String("taxonomy", taxonomy))
	defer func() { done(err) }()
	return s.next.SetTerms(ctx, id, taxonomy, refs)
}

func (s *Instrumented) Query(ctx context.Context, q content.Query) (recs []*content.Record, total int, err error) {
	ctx, done := s.start(ctx, "query",
		attribute.String("record.kind", string(q.Kind)),
		attribute.Int("query.limit", q.Limit),
		attribute.Int("query.offset", q.Offset),
	)
	defer func() { done(err) }()
	return s.next.Query(ctx, q)
}

func (s *Instrumented) Delete(ctx context.Context, id int64) (err error) {
	ctx, done := s.start(ctx, "delete", attribute.Int64("record.id", id))
	defer func() { done(err) }()
	return s.next.Delete(ctx, id)
}

func (s *Instrumented) Terms(ctx context.Context, taxonomy string) (terms []content.Term, err error) {
	ctx, done := s.start(ctx, "terms", attribute.String("taxonomy", taxonomy))
	defer func() { done(err) }()
	return s.next.Terms(ctx, taxonomy)
}

func (s *Instrumented) HealthCheck(ctx context.Context) error {
	return s.next.HealthCheck(ctx)
}

var _ content.Store = (*Instrumented)(nil)
