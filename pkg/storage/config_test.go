package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, TypeMemory, cfg.Type)
	assert.False(t, cfg.CacheEnabled)
	assert.NoError(t, cfg.Validate())
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"sqlite with path", func(c *Config) { c.Type = TypeSQLite }, false},
		{"sqlite without path", func(c *Config) { c.Type = TypeSQLite; c.SQLitePath = "" }, true},
		{"postgres without url", func(c *Config) { c.Type = TypePostgres }, true},
		{"postgres with url", func(c *Config) { c.Type = TypePostgres; c.PostgresURL = "postgres://localhost/openveil" }, false},
		{"unknown type", func(c *Config) { c.Type = "filesystem" }, true},
		{"cache without redis", func(c *Config) { c.CacheEnabled = true }, true},
		{"cache with redis", func(c *Config) { c.CacheEnabled = true; c.RedisURL = "redis://localhost:6379" }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
