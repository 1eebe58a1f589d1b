package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"
)

const (
	// ClaimTokenPrefix identifies guest claim tokens
	ClaimTokenPrefix = "ovc_"
	// ClaimTokenLength is the number of random bytes (32 bytes = 256 bits)
	ClaimTokenLength = 32
)

// ClaimTokenGenerator issues the capability tokens handed to guest submitters
type ClaimTokenGenerator struct{}

// NewClaimTokenGenerator creates a claim token generator
func NewClaimTokenGenerator() *ClaimTokenGenerator {
	return &ClaimTokenGenerator{}
}

// Generate creates a new claim token
// Format: ovc_<base64url(32 random bytes)>
func (g *ClaimTokenGenerator) Generate() (string, error) {
	randomBytes := make([]byte, ClaimTokenLength)
	if _, err := rand.Read(randomBytes); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return ClaimTokenPrefix + base64.RawURLEncoding.EncodeToString(randomBytes), nil
}

// ValidateClaimFormat checks that token has the claim token shape
func ValidateClaimFormat(token string) error {
	if !strings.HasPrefix(token, ClaimTokenPrefix) {
		return fmt.Errorf("token must start with %q", ClaimTokenPrefix)
	}

	encoded := strings.TrimPrefix(token, ClaimTokenPrefix)
	if len(encoded) == 0 {
		return fmt.Errorf("token is too short")
	}

	if _, err := base64.RawURLEncoding.DecodeString(encoded); err != nil {
		return fmt.Errorf("invalid token encoding: %w", err)
	}

	return nil
}

// TokensEqual compares a presented token with a stored one in constant time
func TokensEqual(presented, stored string) bool {
	if presented == "" || stored == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(presented), []byte(stored)) == 1
}
