// Package storage provides the content store backends for Open Veil.
//
// # Overview
//
// Every backend implements content.Store: records with post fields, string
// metadata and taxonomy terms, plus the filtered, paged Query used by the
// list endpoints. The API layer never sees which backend is in use.
//
// # Backend Implementations
//
// MemoryStore keeps records in process behind an RWMutex. It backs tests and
// single-node demos:
//
//	store := storage.NewMemoryStore()
//
// sqlstore.Store keeps records in SQLite (mattn/go-sqlite3) or PostgreSQL
// (lib/pq) with the same schema and query semantics:
//
//	cfg := storage.DefaultConfig()
//	cfg.Type = storage.TypePostgres
//	cfg.PostgresURL = "postgres://localhost/openveil"
//	store, err := sqlstore.Open(cfg)
//	err = store.Migrate(ctx)
//
// # Decorators
//
// cache.Store puts a size-bounded LRU and an optional Redis level in front of
// record reads and invalidates on every write. Instrumented records a span
// and Prometheus operation metrics for each call:
//
//	redisClient, err := cache.NewRedisClient(cfg)
//	cached := cache.New(store, redisClient, cfg, logger)
//	instrumented := storage.NewInstrumented(cached, metrics)
//
// # S3
//
// S3Client uploads exported citation bundles to an S3-compatible bucket
// (AWS, MinIO):
//
//	client, err := storage.NewS3Client(cfg)
//	err = client.PutObject(ctx, "csl/bundle.json", data, "application/json")
//
// # Configuration
//
// Config is filled from OPENVEIL_STORAGE_TYPE, OPENVEIL_SQLITE_PATH,
// OPENVEIL_POSTGRES_URL, OPENVEIL_REDIS_URL, OPENVEIL_CACHE_ENABLED and the
// OPENVEIL_S3_* variables by pkg/config.
package storage
