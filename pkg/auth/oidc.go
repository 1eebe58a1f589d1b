package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
)

// OIDCConfig describes an external identity provider whose tokens are
// accepted as bearer credentials
type OIDCConfig struct {
	IssuerURL string
	// ClientID is the expected audience of ID tokens
	ClientID string
	// UserIDClaim holds the numeric Open Veil user ID. When it is absent the
	// subject must be numeric.
	UserIDClaim string
	RolesClaim  string
	// UserInfo resolves tokens that are not ID tokens (opaque access tokens)
	// through the provider's userinfo endpoint
	UserInfo bool
	Timeout  time.Duration
}

func (c OIDCConfig) withDefaults() OIDCConfig {
	if c.UserIDClaim == "" {
		c.UserIDClaim = "openveil_user_id"
	}
	if c.RolesClaim == "" {
		c.RolesClaim = "roles"
	}
	if c.Timeout <= 0 {
		c.Timeout = 5 * time.Second
	}
	return c
}

// OIDCVerifier turns tokens minted by an OpenID Connect provider into
// principals
type OIDCVerifier struct {
	cfg      OIDCConfig
	provider *oidc.Provider
	verifier *oidc.IDTokenVerifier
}

// NewOIDCVerifier discovers the provider at cfg.IssuerURL
func NewOIDCVerifier(ctx context.Context, cfg OIDCConfig) (*OIDCVerifier, error) {
	if cfg.IssuerURL == "" || cfg.ClientID == "" {
		return nil, errors.New("OIDC issuer URL and client ID are required")
	}
	cfg = cfg.withDefaults()

	provider, err := oidc.NewProvider(ctx, cfg.IssuerURL)
	if err != nil {
		return nil, fmt.Errorf("failed to discover OIDC provider: %w", err)
	}
	return &OIDCVerifier{
		cfg:      cfg,
		provider: provider,
		verifier: provider.Verifier(&oidc.Config{ClientID: cfg.ClientID}),
	}, nil
}

// NewOIDCVerifierWithKeys verifies ID tokens against a fixed key set without
// discovery. The userinfo fallback is unavailable.
func NewOIDCVerifierWithKeys(cfg OIDCConfig, keys oidc.KeySet, now func() time.Time) *OIDCVerifier {
	cfg = cfg.withDefaults()
	cfg.UserInfo = false
	return &OIDCVerifier{
		cfg:      cfg,
		verifier: oidc.NewVerifier(cfg.IssuerURL, keys, &oidc.Config{ClientID: cfg.ClientID, Now: now}),
	}
}

// Parse implements middleware.TokenParser
func (v *OIDCVerifier) Parse(raw string) (Principal, error) {
	ctx, cancel := context.WithTimeout(context.Background(), v.cfg.Timeout)
	defer cancel()

	claims := map[string]any{}
	idToken, err := v.verifier.Verify(ctx, raw)
	switch {
	case err == nil:
		if err := idToken.Claims(&claims); err != nil {
			return Principal{}, fmt.Errorf("failed to parse OIDC claims: %w", err)
		}
	case v.cfg.UserInfo && v.provider != nil:
		info, uerr := v.provider.UserInfo(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: raw, TokenType: "Bearer"}))
		if uerr != nil {
			return Principal{}, fmt.Errorf("invalid OIDC token: %w", errors.Join(err, uerr))
		}
		if err := info.Claims(&claims); err != nil {
			return Principal{}, fmt.Errorf("failed to parse userinfo claims: %w", err)
		}
	default:
		return Principal{}, fmt.Errorf("invalid OIDC token: %w", err)
	}
	return v.principal(claims)
}

func (v *OIDCVerifier) principal(claims map[string]any) (Principal, error) {
	id, ok := claimInt(claims[v.cfg.UserIDClaim])
	if !ok {
		id, ok = claimInt(claims["sub"])
	}
	if !ok || id <= 0 {
		return Principal{}, errors.New("OIDC token has no numeric user id")
	}

	p := Principal{ID: id}
	for _, key := range []string{"name", "preferred_username", "email"} {
		if s, ok := claims[key].(string); ok && s != "" {
			p.Name = s
			break
		}
	}
	for _, r := range claimStrings(claims[v.cfg.RolesClaim]) {
		if role := Role(strings.ToLower(r)); ValidRole(role) {
			p.Roles = append(p.Roles, role)
		}
	}
	return p, nil
}

func claimInt(v any) (int64, bool) {
	switch val := v.(type) {
	case float64:
		return int64(val), val == float64(int64(val))
	case string:
		n, err := strconv.ParseInt(val, 10, 64)
		return n, err == nil
	}
	return 0, false
}

// claimStrings accepts a JSON array or a space separated string
func claimStrings(v any) []string {
	switch val := v.(type) {
	case string:
		return strings.Fields(val)
	case []any:
		out := make([]string, 0, len(val))
		for _, item := range val {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
