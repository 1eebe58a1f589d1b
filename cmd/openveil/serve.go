package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/openveil/openveil/pkg/api"
	"github.com/openveil/openveil/pkg/auth"
	"github.com/openveil/openveil/pkg/claims"
	"github.com/openveil/openveil/pkg/httputil"
	"github.com/openveil/openveil/pkg/middleware"
	"github.com/openveil/openveil/pkg/observability"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the REST API, the health/metrics server and the claim sweeper",
	RunE: func(cmd *cobra.Command, args []string) error {
		schedule, _ := cmd.Flags().GetString("sweep-schedule")
		return runServe(cmd.Context(), schedule)
	},
}

func init() {
	serveCmd.Flags().String("sweep-schedule", claims.DefaultSchedule, "cron schedule for expired claim cleanup")
	rootCmd.AddCommand(serveCmd)
}

func runServe(ctx context.Context, sweepSchedule string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()
	cfg := a.cfg

	otelProviders, err := observability.InitOTel(ctx, observability.OTelConfig{
		Enabled:        cfg.Observability.OTelEnabled,
		Endpoint:       cfg.Observability.OTelEndpoint,
		ServiceName:    cfg.Observability.OTelServiceName,
		ServiceVersion: cfg.Observability.OTelServiceVersion,
		Insecure:       cfg.Observability.OTelInsecure,
	}, a.logger)
	if err != nil {
		return err
	}
	if otelProviders != nil {
		otelMetrics, err := observability.NewOTelMetrics(otelProviders.MeterProvider)
		if err != nil {
			return err
		}
		a.metrics.MirrorTo(otelMetrics)
	}

	limiter, stopCleanup := claimLimiter(ctx, a)
	defer stopCleanup()

	tokens, err := tokenParser(ctx, a)
	if err != nil {
		return err
	}

	proxies, err := httputil.ParseTrustedProxies(cfg.Server.TrustedProxies)
	if err != nil {
		return err
	}

	opts := api.Options{
		Prefix:         cfg.Site.APIPrefix,
		Links:          a.links,
		Logger:         a.logger,
		Tokens:         tokens,
		ClaimLimiter:   limiter,
		TrustedProxies: proxies,
		CORSOrigins:    cfg.Server.CORSOrigins,
		MaxBodyBytes:   cfg.Server.MaxBodyBytes,
		Tracing:        cfg.Observability.OTelEnabled,
	}
	if cfg.Observability.MetricsEnabled {
		opts.Metrics = a.metrics
	}
	srv := api.NewServer(a.service, opts)

	apiServer := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:      srv.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	health := observability.NewHealthChecker(a.db, nil)
	if a.redis != nil {
		health = observability.NewHealthChecker(a.db, a.redis.Client())
	}
	health.SetVersion(version)
	health.AddCheck("content_store", a.store.HealthCheck, true)

	healthMux := http.NewServeMux()
	observability.RegisterHealthRoutes(healthMux, health)
	if cfg.Observability.MetricsEnabled {
		observability.RegisterMetricsEndpoint(healthMux, a.registry)
	}
	healthServer := &http.Server{
		Addr:              net.JoinHostPort(cfg.Server.Host, cfg.Server.HealthPort),
		Handler:           healthMux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	shutdown := observability.NewShutdownManager(a.logger, cfg.Server.ShutdownTimeout, apiServer, healthServer)
	if otelProviders != nil {
		shutdown.RegisterShutdownFunc(func(ctx context.Context) error {
			return observability.ShutdownOTel(ctx, otelProviders, a.logger)
		})
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.logger.WithField("addr", apiServer.Addr).Info("Starting Open Veil API server")
		return listen(apiServer)
	})
	g.Go(func() error {
		a.logger.WithField("addr", healthServer.Addr).Info("Starting health server")
		return listen(healthServer)
	})
	g.Go(func() error {
		return claims.NewSweeper(a.store, a.bgLogger, a.metrics).Run(gctx, sweepSchedule)
	})
	g.Go(func() error {
		defer observability.RecoverPanic(a.logger, "settings watcher")
		return a.settings.Watch(gctx)
	})
	if a.db != nil && cfg.Observability.MetricsEnabled {
		g.Go(func() error {
			ticker := time.NewTicker(15 * time.Second)
			defer ticker.Stop()
			for {
				select {
				case <-gctx.Done():
					return nil
				case <-ticker.C:
					a.metrics.ObserveDBStats(a.db.Stats())
				}
			}
		})
	}
	g.Go(func() error {
		err := shutdown.WaitForShutdown(gctx)
		cancel()
		return err
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	a.logger.Info("Open Veil stopped")
	return nil
}

// tokenParser accepts locally issued tokens and, when configured, tokens
// from the OIDC provider
func tokenParser(ctx context.Context, a *app) (middleware.TokenParser, error) {
	var parsers middleware.TokenParsers
	if a.issuer != nil {
		parsers = append(parsers, a.issuer)
	}
	if authCfg := a.cfg.Auth; authCfg.OIDCIssuerURL != "" {
		verifier, err := auth.NewOIDCVerifier(ctx, auth.OIDCConfig{
			IssuerURL:   authCfg.OIDCIssuerURL,
			ClientID:    authCfg.OIDCClientID,
			UserIDClaim: authCfg.OIDCUserIDClaim,
			RolesClaim:  authCfg.OIDCRolesClaim,
			UserInfo:    authCfg.OIDCUserInfo,
		})
		if err != nil {
			return nil, err
		}
		a.logger.WithField("issuer", authCfg.OIDCIssuerURL).Info("Accepting OIDC bearer tokens")
		parsers = append(parsers, verifier)
	}
	if len(parsers) == 0 {
		a.logger.Warn("No bearer token source configured, every caller is anonymous")
		return nil, nil
	}
	return parsers, nil
}

func listen(srv *http.Server) error {
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// claimLimiter shares the claim limit through Redis when the cache is
// configured and keeps it in memory otherwise. The limit is read once at
// startup.
func claimLimiter(ctx context.Context, a *app) (middleware.Limiter, func()) {
	limitCfg := middleware.ClaimRateLimitConfig(a.settings.Current().ClaimRateLimit)
	if a.redis != nil {
		return middleware.NewDistributedRateLimiter(a.redis.Client(), limitCfg, ""), func() {}
	}

	ctx, cancel := context.WithCancel(ctx)
	limiter := middleware.NewRateLimiter(limitCfg)
	limiter.StartCleanup(ctx)
	return limiter, cancel
}
