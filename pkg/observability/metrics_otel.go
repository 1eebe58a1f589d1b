package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/openveil/openveil"

// OTelMetrics mirrors the business and storage counters onto an
// OpenTelemetry meter so they reach the OTLP collector with the traces
type OTelMetrics struct {
	recordsCreated    metric.Int64Counter
	claimsIssued      metric.Int64Counter
	claimsCleared     metric.Int64Counter
	permissionDenials metric.Int64Counter
	rateLimited       metric.Int64Counter

	storageOperations metric.Int64Counter
	storageDuration   metric.Float64Histogram
	cacheHits         metric.Int64Counter
	cacheMisses       metric.Int64Counter
}

// NewOTelMetrics creates the instruments on provider
func NewOTelMetrics(provider metric.MeterProvider) (*OTelMetrics, error) {
	meter := provider.Meter(meterName)
	m := &OTelMetrics{}

	counters := []struct {
		dst  *metric.Int64Counter
		name string
		desc string
		unit string
	}{
		{&m.recordsCreated, "openveil.records.created", "Protocols and trials created", "{record}"},
		{&m.claimsIssued, "openveil.claims.issued", "Claim tokens handed to guest submitters", "{token}"},
		{&m.claimsCleared, "openveil.claims.cleared", "Claim tokens removed", "{token}"},
		{&m.permissionDenials, "openveil.permission.denials", "Requests refused by the permission policy", "{request}"},
		{&m.rateLimited, "openveil.claims.rate_limited", "Claim attempts refused by the rate limiter", "{request}"},
		{&m.storageOperations, "openveil.storage.operations", "Content store calls", "{operation}"},
		{&m.cacheHits, "openveil.cache.hits", "Record cache hits", "{hit}"},
		{&m.cacheMisses, "openveil.cache.misses", "Record cache misses", "{miss}"},
	}
	var err error
	for _, c := range counters {
		*c.dst, err = meter.Int64Counter(c.name, metric.WithDescription(c.desc), metric.WithUnit(c.unit))
		if err != nil {
			return nil, fmt.Errorf("failed to create %s counter: %w", c.name, err)
		}
	}

	m.storageDuration, err = meter.Float64Histogram(
		"openveil.storage.duration",
		metric.WithDescription("Content store call duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create openveil.storage.duration histogram: %w", err)
	}
	return m, nil
}

// Each recorder below is a no-op on a nil receiver

func (m *OTelMetrics) recordCreated(kind, status string) {
	if m == nil {
		return
	}
	m.recordsCreated.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("kind", kind), attribute.String("status", status)))
}

func (m *OTelMetrics) claimIssued() {
	if m == nil {
		return
	}
	m.claimsIssued.Add(context.Background(), 1)
}

func (m *OTelMetrics) claimsClearedBy(reason string, n int) {
	if m == nil {
		return
	}
	m.claimsCleared.Add(context.Background(), int64(n), metric.WithAttributes(attribute.String("reason", reason)))
}

func (m *OTelMetrics) permissionDenied(kind, operation string) {
	if m == nil {
		return
	}
	m.permissionDenials.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("kind", kind), attribute.String("operation", operation)))
}

func (m *OTelMetrics) claimRateLimited() {
	if m == nil {
		return
	}
	m.rateLimited.Add(context.Background(), 1)
}

func (m *OTelMetrics) cacheLookup(level string, hit bool) {
	if m == nil {
		return
	}
	c := m.cacheMisses
	if hit {
		c = m.cacheHits
	}
	c.Add(context.Background(), 1, metric.WithAttributes(attribute.String("level", level)))
}

func (m *OTelMetrics) observeStorage(operation string, d time.Duration, status string) {
	if m == nil {
		return
	}
	op := attribute.String("operation", operation)
	m.storageOperations.Add(context.Background(), 1, metric.WithAttributes(op, attribute.String("status", status)))
	m.storageDuration.Record(context.Background(), d.Seconds(), metric.WithAttributes(op))
}
