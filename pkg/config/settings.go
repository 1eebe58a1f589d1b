package config

import (
	"context"
	"fmt"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// AccessMode gates write operations
type AccessMode string

const (
	AccessPublic   AccessMode = "public"
	AccessLoggedIn AccessMode = "logged_in"
	AccessAdmin    AccessMode = "admin"
)

const (
	DefaultClaimTokenExpiryDays = 7
	MinClaimTokenExpiryDays     = 1
	MaxClaimTokenExpiryDays     = 30
	DefaultClaimRateLimit       = 10
)

// Settings are the runtime options read by the permission policy and the
// resource operations
type Settings struct {
	APIAccess           AccessMode `mapstructure:"api_access"`
	GuestSubmissions    bool       `mapstructure:"guest_submissions"`
	ClaimTokenExpiry    int        `mapstructure:"claim_token_expiry"` // days
	ClaimTokenSingleUse bool       `mapstructure:"claim_token_single_use"`
	StrictMeta          bool       `mapstructure:"strict_meta"`
	ClaimRateLimit      int        `mapstructure:"claim_rate_limit"` // attempts per minute per client
}

// DefaultSettings returns the out-of-the-box settings
func DefaultSettings() Settings {
	return Settings{
		APIAccess:        AccessPublic,
		GuestSubmissions: true,
		ClaimTokenExpiry: DefaultClaimTokenExpiryDays,
		ClaimRateLimit:   DefaultClaimRateLimit,
	}
}

// Normalize replaces invalid values with defaults and clamps the claim expiry
func (s Settings) Normalize() Settings {
	switch s.APIAccess {
	case AccessPublic, AccessLoggedIn, AccessAdmin:
	default:
		s.APIAccess = AccessPublic
	}
	if s.ClaimTokenExpiry == 0 {
		s.ClaimTokenExpiry = DefaultClaimTokenExpiryDays
	}
	if s.ClaimTokenExpiry < MinClaimTokenExpiryDays {
		s.ClaimTokenExpiry = MinClaimTokenExpiryDays
	}
	if s.ClaimTokenExpiry > MaxClaimTokenExpiryDays {
		s.ClaimTokenExpiry = MaxClaimTokenExpiryDays
	}
	if s.ClaimRateLimit <= 0 {
		s.ClaimRateLimit = DefaultClaimRateLimit
	}
	return s
}

// ClaimTTL is the lifetime of a freshly issued claim token
func (s Settings) ClaimTTL() time.Duration {
	return time.Duration(s.Normalize().ClaimTokenExpiry) * 24 * time.Hour
}

// SettingsSource supplies the current settings
type SettingsSource interface {
	Current() Settings
}

// StaticSettings is a fixed SettingsSource
type StaticSettings Settings

// Current returns the normalized settings
func (s StaticSettings) Current() Settings {
	return Settings(s).Normalize()
}

// SettingsStore loads settings from an optional YAML file plus
// OPENVEIL_SETTINGS_* environment variables and can reload them when the file
// changes
type SettingsStore struct {
	v       *viper.Viper
	path    string
	current atomic.Pointer[Settings]
	logger  *logrus.Logger
}

// LoadSettings reads settings from path (may be empty)
func LoadSettings(path string, logger *logrus.Logger) (*SettingsStore, error) {
	if logger == nil {
		logger = logrus.New()
	}

	v := viper.New()
	def := DefaultSettings()
	v.SetDefault("api_access", string(def.APIAccess))
	v.SetDefault("guest_submissions", def.GuestSubmissions)
	v.SetDefault("claim_token_expiry", def.ClaimTokenExpiry)
	v.SetDefault("claim_token_single_use", def.ClaimTokenSingleUse)
	v.SetDefault("strict_meta", def.StrictMeta)
	v.SetDefault("claim_rate_limit", def.ClaimRateLimit)
	v.SetEnvPrefix("OPENVEIL_SETTINGS")
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
	}

	s := &SettingsStore{v: v, path: path, logger: logger}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// Current returns the latest loaded settings
func (s *SettingsStore) Current() Settings {
	if cur := s.current.Load(); cur != nil {
		return *cur
	}
	return DefaultSettings()
}

// Reload re-reads the settings file. On failure the previous settings stay
// in effect.
func (s *SettingsStore) Reload() error {
	if s.path != "" {
		if err := s.v.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to read settings file: %w", err)
		}
	}

	var next Settings
	if err := s.v.Unmarshal(&next); err != nil {
		return fmt.Errorf("failed to decode settings: %w", err)
	}
	next = next.Normalize()
	s.current.Store(&next)

	s.logger.WithFields(logrus.Fields{
		"api_access":        next.APIAccess,
		"guest_submissions": next.GuestSubmissions,
		"claim_expiry_days": next.ClaimTokenExpiry,
	}).Info("settings loaded")
	return nil
}

// Watch reloads the settings whenever the file is written, until ctx is done.
// It returns immediately when no file is configured.
func (s *SettingsStore) Watch(ctx context.Context) error {
	if s.path == "" {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	// Editors replace files atomically, so watch the directory
	if err := watcher.Add(filepath.Dir(s.path)); err != nil {
		return fmt.Errorf("failed to watch settings directory: %w", err)
	}
	target := filepath.Clean(s.path)

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if err := s.Reload(); err != nil {
				s.logger.WithError(err).Warn("settings reload failed, keeping previous values")
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.logger.WithError(err).Warn("settings watcher error")
		}
	}
}
