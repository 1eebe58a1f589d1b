package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenIssuer_RoundTrip(t *testing.T) {
	issuer, err := NewTokenIssuer("test-secret", "openveil")
	require.NoError(t, err)

	tok, err := issuer.Sign(Principal{ID: 3, Name: "Ada Lovelace", Roles: []Role{RoleEditor, "bogus"}}, time.Hour)
	require.NoError(t, err)

	p, err := issuer.Parse(tok)
	require.NoError(t, err)
	assert.Equal(t, int64(3), p.ID)
	assert.Equal(t, "Ada Lovelace", p.Name)
	assert.Equal(t, []Role{RoleEditor}, p.Roles)
}

func TestTokenIssuer_Rejects(t *testing.T) {
	issuer, err := NewTokenIssuer("test-secret", "openveil")
	require.NoError(t, err)

	t.Run("wrong secret", func(t *testing.T) {
		other, err := NewTokenIssuer("other-secret", "openveil")
		require.NoError(t, err)
		tok, err := other.Sign(Principal{ID: 1}, time.Hour)
		require.NoError(t, err)

		_, err = issuer.Parse(tok)
		assert.Error(t, err)
	})

	t.Run("expired", func(t *testing.T) {
		past := time.Now().Add(-2 * time.Hour)
		old := &TokenIssuer{secret: []byte("test-secret"), issuer: "openveil", now: func() time.Time { return past }}
		tok, err := old.Sign(Principal{ID: 1}, time.Hour)
		require.NoError(t, err)

		_, err = issuer.Parse(tok)
		assert.Error(t, err)
	})

	t.Run("wrong issuer", func(t *testing.T) {
		other, err := NewTokenIssuer("test-secret", "someone-else")
		require.NoError(t, err)
		tok, err := other.Sign(Principal{ID: 1}, time.Hour)
		require.NoError(t, err)

		_, err = issuer.Parse(tok)
		assert.Error(t, err)
	})

	t.Run("missing user id", func(t *testing.T) {
		tok, err := issuer.Sign(Principal{}, time.Hour)
		require.NoError(t, err)

		_, err = issuer.Parse(tok)
		assert.Error(t, err)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := issuer.Parse("not-a-jwt")
		assert.Error(t, err)
	})
}

func TestNewTokenIssuer_RequiresSecret(t *testing.T) {
	_, err := NewTokenIssuer("", "openveil")
	assert.Error(t, err)
}
