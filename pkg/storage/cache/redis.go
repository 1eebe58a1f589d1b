package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/openveil/openveil/pkg/content"
	"github.com/openveil/openveil/pkg/storage"
)

const keyPrefix = "openveil:record:"

// RedisClient stores serialised records in Redis
type RedisClient struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisClient creates a new Redis client and verifies the connection
func NewRedisClient(config storage.Config) (*RedisClient, error) {
	opts, err := redis.ParseURL(config.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	// Override with config values if provided
	if config.RedisPassword != "" {
		opts.Password = config.RedisPassword
	}
	if config.RedisDB > 0 {
		opts.DB = config.RedisDB
	}
	if config.RedisMaxRetries > 0 {
		opts.MaxRetries = config.RedisMaxRetries
	}
	if config.RedisPoolSize > 0 {
		opts.PoolSize = config.RedisPoolSize
	}

	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second
	opts.PoolTimeout = 4 * time.Second

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisClient{client: client, ttl: config.CacheTTL}, nil
}

func recordKey(id int64) string {
	return fmt.Sprintf("%s%d", keyPrefix, id)
}

// GetRecord returns a cached record, or nil on a cache miss
func (c *RedisClient) GetRecord(ctx context.Context, id int64) (*content.Record, error) {
	key := recordKey(id)

	data, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var rec content.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		// Drop corrupt entries so the next read repopulates them
		c.client.Del(ctx, key)
		return nil, fmt.Errorf("failed to unmarshal record: %w", err)
	}
	return &rec, nil
}

// SetRecord caches a record for the configured TTL
func (c *RedisClient) SetRecord(ctx context.Context, rec *content.Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}
	return c.client.Set(ctx, recordKey(rec.ID), data, c.ttl).Err()
}

// InvalidateRecord removes a record from the cache
func (c *RedisClient) InvalidateRecord(ctx context.Context, id int64) error {
	return c.client.Del(ctx, recordKey(id)).Err()
}

// Ping checks the connection
func (c *RedisClient) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Client exposes the underlying client for rate limiting and health checks
func (c *RedisClient) Client() *redis.Client {
	return c.client
}

// Close closes the connection pool
func (c *RedisClient) Close() error {
	return c.client.Close()
}
