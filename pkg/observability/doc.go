// Package observability provides structured logging, Prometheus metrics,
// health checks and OpenTelemetry tracing for the Open Veil API.
//
// # Structured Logging
//
//	logger := observability.NewLogger(observability.InfoLevel, os.Stdout)
//	logger.WithField("trial_id", id).Info("trial created")
//
// Request handlers log through the context so request_id, user_id and the
// active trace are attached:
//
//	observability.FromContext(r.Context()).WithError(err).Error("update failed")
//
// # Prometheus Metrics
//
//	registry := prometheus.NewRegistry()
//	metrics := observability.NewMetrics(registry)
//	metrics.ClaimIssued()
//
// The recording helpers tolerate a nil *Metrics.
//
// # Health Checks
//
//	checker := observability.NewHealthChecker(db, redisClient)
//	checker.AddCheck("content_store", store.HealthCheck, true)
//	observability.RegisterHealthRoutes(mux, checker)
//
// # OpenTelemetry
//
//	providers, err := observability.InitOTel(ctx, observability.OTelConfig{
//		Enabled:     true,
//		Endpoint:    "otel-collector:4317",
//		ServiceName: "openveil-api",
//	}, logger)
//	defer observability.ShutdownOTel(ctx, providers, logger)
package observability
