package config

import (
	"testing"
	"time"

	"github.com/openveil/openveil/pkg/observability"
	"github.com/openveil/openveil/pkg/storage"
)

// TestGetEnv tests the getEnv helper function
func TestGetEnv(t *testing.T) {
	tests := []struct {
		name         string
		key          string
		defaultValue string
		envValue     string
		want         string
	}{
		{
			name:         "returns env value when set",
			key:          "OPENVEIL_TEST_VAR",
			defaultValue: "default",
			envValue:     "custom",
			want:         "custom",
		},
		{
			name:         "returns default when env not set",
			key:          "OPENVEIL_TEST_VAR_NOT_SET",
			defaultValue: "default",
			want:         "default",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.envValue != "" {
				t.Setenv(tt.key, tt.envValue)
			}

			got := getEnv(tt.key, tt.defaultValue)
			if got != tt.want {
				t.Errorf("getEnv() = %v, want %v", got, tt.want)
			}
		})
	}
}

// TestGetEnvTyped covers the bool, int and duration helpers
func TestGetEnvTyped(t *testing.T) {
	t.Setenv("OPENVEIL_TEST_BOOL", "1")
	t.Setenv("OPENVEIL_TEST_INT", "42")
	t.Setenv("OPENVEIL_TEST_BAD_INT", "forty-two")
	t.Setenv("OPENVEIL_TEST_DURATION", "90s")

	if !getEnvBool("OPENVEIL_TEST_BOOL", false) {
		t.Error("getEnvBool() should accept 1")
	}
	if got := getEnvInt("OPENVEIL_TEST_INT", 0); got != 42 {
		t.Errorf("getEnvInt() = %d, want 42", got)
	}
	if got := getEnvInt("OPENVEIL_TEST_BAD_INT", 7); got != 7 {
		t.Errorf("getEnvInt() = %d, want default 7", got)
	}
	if got := getEnvDuration("OPENVEIL_TEST_DURATION", time.Second); got != 90*time.Second {
		t.Errorf("getEnvDuration() = %v, want 90s", got)
	}
}

// TestLoadConfig tests loading from the environment
func TestLoadConfig(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr bool
		check   func(t *testing.T, cfg *Config)
	}{
		{
			name: "defaults",
			env:  map[string]string{},
			check: func(t *testing.T, cfg *Config) {
				if cfg.Storage.Type != storage.TypeMemory {
					t.Errorf("Storage.Type = %s, want memory", cfg.Storage.Type)
				}
				if cfg.Site.APIPrefix != "/open-veil/v1" {
					t.Errorf("Site.APIPrefix = %s", cfg.Site.APIPrefix)
				}
				if cfg.Auth.JWTSecret != "" {
					t.Error("JWT secret should default to empty")
				}
			},
		},
		{
			name: "sqlite with custom prefix",
			env: map[string]string{
				"OPENVEIL_STORAGE_TYPE":    "sqlite",
				"OPENVEIL_SQLITE_PATH":     "/tmp/openveil.db",
				"OPENVEIL_API_PREFIX":      "api/v2/",
				"OPENVEIL_SITE_URL":        "https://veil.example/",
				"OPENVEIL_CORS_ORIGINS":    "https://a.example, https://b.example",
				"OPENVEIL_LOG_LEVEL":       "debug",
				"OPENVEIL_TRUSTED_PROXIES": "10.0.0.0/8, ,192.0.2.1",
			},
			check: func(t *testing.T, cfg *Config) {
				if cfg.Storage.SQLitePath != "/tmp/openveil.db" {
					t.Errorf("SQLitePath = %s", cfg.Storage.SQLitePath)
				}
				if cfg.Site.APIPrefix != "/api/v2" {
					t.Errorf("APIPrefix = %s, want /api/v2", cfg.Site.APIPrefix)
				}
				if cfg.Site.URL != "https://veil.example" {
					t.Errorf("Site.URL = %s, want trailing slash trimmed", cfg.Site.URL)
				}
				if len(cfg.Server.CORSOrigins) != 2 {
					t.Errorf("CORSOrigins = %v", cfg.Server.CORSOrigins)
				}
				if len(cfg.Server.TrustedProxies) != 2 {
					t.Errorf("TrustedProxies = %v", cfg.Server.TrustedProxies)
				}
				if cfg.Observability.LogLevel != observability.DebugLevel {
					t.Errorf("LogLevel = %v, want DEBUG", cfg.Observability.LogLevel)
				}
			},
		},
		{
			name: "same ports",
			env: map[string]string{
				"OPENVEIL_PORT":        "8080",
				"OPENVEIL_HEALTH_PORT": "8080",
			},
			wantErr: true,
		},
		{
			name:    "OIDC issuer without client",
			env:     map[string]string{"OPENVEIL_OIDC_ISSUER_URL": "https://idp.example"},
			wantErr: true,
		},
		{
			name:    "malformed trusted proxy",
			env:     map[string]string{"OPENVEIL_TRUSTED_PROXIES": "lb.internal"},
			wantErr: true,
		},
		{
			name:    "postgres without url",
			env:     map[string]string{"OPENVEIL_STORAGE_TYPE": "postgres"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			cfg, err := LoadConfig()
			if (err != nil) != tt.wantErr {
				t.Fatalf("LoadConfig() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.check != nil && cfg != nil {
				tt.check(t, cfg)
			}
		})
	}
}

// TestConfigValidate covers validation paths not reachable from env
func TestConfigValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Server:  ServerConfig{Port: "8080", HealthPort: "9090"},
			Storage: storage.DefaultConfig(),
			Site:    SiteConfig{URL: "http://localhost", APIPrefix: "/open-veil/v1"},
		}
	}

	if err := valid().Validate(); err != nil {
		t.Fatalf("Validate() unexpected error: %v", err)
	}

	cfg := valid()
	cfg.Site.APIPrefix = "/"
	if err := cfg.Validate(); err == nil {
		t.Error("root API prefix should be rejected")
	}

	cfg = valid()
	cfg.Site.URL = ""
	if err := cfg.Validate(); err == nil {
		t.Error("empty site URL should be rejected")
	}

	cfg = valid()
	cfg.Observability.OTelEnabled = true
	if err := cfg.Validate(); err == nil {
		t.Error("OTel without endpoint should be rejected")
	}
}
