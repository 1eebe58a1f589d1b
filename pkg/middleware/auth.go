package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/openveil/openveil/pkg/apierr"
	"github.com/openveil/openveil/pkg/auth"
	"github.com/openveil/openveil/pkg/contextkeys"
	"github.com/openveil/openveil/pkg/httputil"
)

// TokenParser verifies a bearer token and returns its principal
type TokenParser interface {
	Parse(token string) (auth.Principal, error)
}

// TokenParsers tries each parser in order and returns the first principal
// one of them accepts
type TokenParsers []TokenParser

// Parse implements TokenParser
func (ps TokenParsers) Parse(token string) (auth.Principal, error) {
	var errs []error
	for _, p := range ps {
		if p == nil {
			continue
		}
		principal, err := p.Parse(token)
		if err == nil {
			return principal, nil
		}
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return auth.Principal{}, errors.New("no token parser configured")
	}
	return auth.Principal{}, errors.Join(errs...)
}

// AuthMiddleware resolves the caller from an optional bearer token. Requests
// without an Authorization header continue as anonymous.
type AuthMiddleware struct {
	tokens TokenParser
}

// NewAuthMiddleware creates the middleware. With a nil parser every bearer
// token is rejected.
func NewAuthMiddleware(tokens TokenParser) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens}
}

// Handler wraps an HTTP handler with authentication
func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			ctx := contextkeys.WithAuth(r.Context(), auth.Anonymous)
			next.ServeHTTP(w, r.WithContext(ctx))
			return
		}

		// Format: "Bearer <token>"
		scheme, token, ok := strings.Cut(authHeader, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
			unauthorized(w, "Invalid authorization header.")
			return
		}
		if m.tokens == nil {
			unauthorized(w, "Bearer tokens are not accepted.")
			return
		}

		principal, err := m.tokens.Parse(strings.TrimSpace(token))
		if err != nil {
			unauthorized(w, "Invalid or expired token.")
			return
		}

		ctx := contextkeys.WithAuth(r.Context(), principal)
		ctx = contextkeys.WithUserID(ctx, principal.ID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func unauthorized(w http.ResponseWriter, message string) {
	httputil.WriteError(w, apierr.New(http.StatusUnauthorized, apierr.CodeForbidden, message))
}

// GetAuthContext returns the caller attached by AuthMiddleware, or the
// anonymous caller
func GetAuthContext(r *http.Request) auth.AuthContext {
	if a, ok := r.Context().Value(contextkeys.AuthKey).(auth.AuthContext); ok && a != nil {
		return a
	}
	return auth.Anonymous
}
