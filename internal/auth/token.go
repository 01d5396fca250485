// Package auth implements the credential verifier: opaque API tokens for
// device clients and signed session tokens for logged-in humans. The two
// schemes are disjoint and selected by the shape of the bearer credential.
package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// TokenPrefix is the fixed prefix carried by every API token secret. A bearer
// credential without it is rejected as malformed before any lookup happens.
const TokenPrefix = "dnk_"

// sessionPrefix is the leading fragment of a base64url-encoded JWT header
// ({"alg":...). It distinguishes session credentials from API tokens.
const sessionPrefix = "ey"

// GenerateTokenSecret returns a fresh API token secret: the fixed prefix
// followed by 32 random bytes hex-encoded (256 bits of entropy). The caller
// shows it to the user exactly once; only its digest is ever stored.
func GenerateTokenSecret() (string, error) {
	var b [32]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", err
	}
	return TokenPrefix + hex.EncodeToString(b[:]), nil
}

// HashTokenSecret computes the one-way digest (SHA-256, hex) under which an
// API token is stored and looked up.
func HashTokenSecret(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}

// IsAPITokenShaped reports whether a bearer credential looks like an API
// token secret.
func IsAPITokenShaped(cred string) bool {
	return strings.HasPrefix(cred, TokenPrefix)
}

// IsSessionShaped reports whether a bearer credential looks like a signed
// session token.
func IsSessionShaped(cred string) bool {
	return strings.HasPrefix(cred, sessionPrefix)
}

// BearerCredential extracts the credential from an Authorization header
// value. The second return is false when the header is absent or not a
// Bearer scheme.
func BearerCredential(header string) (string, bool) {
	const scheme = "Bearer "
	if !strings.HasPrefix(header, scheme) {
		return "", false
	}
	cred := strings.TrimSpace(strings.TrimPrefix(header, scheme))
	return cred, cred != ""
}
