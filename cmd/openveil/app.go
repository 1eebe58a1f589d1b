package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/openveil/openveil/pkg/auth"
	"github.com/openveil/openveil/pkg/config"
	"github.com/openveil/openveil/pkg/content"
	"github.com/openveil/openveil/pkg/observability"
	"github.com/openveil/openveil/pkg/policy"
	"github.com/openveil/openveil/pkg/resources"
	"github.com/openveil/openveil/pkg/shape"
	"github.com/openveil/openveil/pkg/storage"
	"github.com/openveil/openveil/pkg/storage/cache"
	"github.com/openveil/openveil/pkg/storage/sqlstore"
)

// app holds the wired dependencies shared by every command
type app struct {
	cfg      *config.Config
	logger   *observability.Logger
	bgLogger *logrus.Logger
	registry *prometheus.Registry
	metrics  *observability.Metrics
	settings *config.SettingsStore
	store    content.Store
	db       *sql.DB
	redis    *cache.RedisClient
	links    shape.Links
	service  *resources.Service
	issuer   *auth.TokenIssuer

	closers []func() error
}

// newApp loads configuration and opens the configured store
func newApp() (*app, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}
	if path := viper.GetString("settings"); path != "" {
		cfg.SettingsFile = path
	}

	a := &app{
		cfg:      cfg,
		logger:   observability.NewLogger(cfg.Observability.LogLevel, nil),
		bgLogger: newBackgroundLogger(cfg.Observability.LogLevel),
		registry: prometheus.NewRegistry(),
	}
	a.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	a.metrics = observability.NewMetrics(a.registry)

	if a.settings, err = config.LoadSettings(cfg.SettingsFile, a.bgLogger); err != nil {
		return nil, err
	}

	if err := a.openStore(); err != nil {
		a.Close()
		return nil, err
	}

	if cfg.Auth.JWTSecret != "" {
		if a.issuer, err = auth.NewTokenIssuer(cfg.Auth.JWTSecret, cfg.Auth.JWTIssuer); err != nil {
			a.Close()
			return nil, err
		}
	}

	a.links = shape.NewLinks(cfg.Site.URL, cfg.Site.APIPrefix)
	a.service = resources.New(
		a.store,
		policy.New(a.settings),
		shape.New(a.store, a.links),
		resources.WithMetrics(a.metrics),
		resources.WithSiteName(cfg.Site.Name),
	)
	return a, nil
}

// openStore builds the store stack: backend, optional cache, instrumentation
func (a *app) openStore() error {
	var backend content.Store
	switch a.cfg.Storage.Type {
	case storage.TypeSQLite, storage.TypePostgres:
		sqlStore, err := sqlstore.Open(a.cfg.Storage)
		if err != nil {
			return err
		}
		a.closers = append(a.closers, sqlStore.Close)
		if err := sqlStore.Migrate(context.Background()); err != nil {
			return err
		}
		a.db = sqlStore.DB()
		backend = sqlStore
	default:
		backend = storage.NewMemoryStore()
	}

	if a.cfg.Storage.CacheEnabled {
		redisClient, err := cache.NewRedisClient(a.cfg.Storage)
		if err != nil {
			return err
		}
		a.redis = redisClient
		a.closers = append(a.closers, redisClient.Close)

		cached := cache.New(backend, redisClient, a.cfg.Storage, a.bgLogger)
		cached.SetMetrics(a.metrics)
		backend = cached
	}

	a.store = storage.NewInstrumented(backend, a.metrics)
	a.logger.WithFields(map[string]interface{}{
		"type":  a.cfg.Storage.Type,
		"cache": a.cfg.Storage.CacheEnabled,
	}).Info("Content store ready")
	return nil
}

// Close releases the store and cache connections in reverse order
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	if len(errs) > 0 {
		return fmt.Errorf("close: %w", errors.Join(errs...))
	}
	return nil
}

func newBackgroundLogger(level observability.LogLevel) *logrus.Logger {
	l := logrus.New()
	l.SetFormatter(&logrus.JSONFormatter{})
	switch level {
	case observability.DebugLevel:
		l.SetLevel(logrus.DebugLevel)
	case observability.WarnLevel:
		l.SetLevel(logrus.WarnLevel)
	case observability.ErrorLevel:
		l.SetLevel(logrus.ErrorLevel)
	default:
		l.SetLevel(logrus.InfoLevel)
	}
	return l
}
