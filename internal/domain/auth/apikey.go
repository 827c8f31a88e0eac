// Package auth holds API key identities and the keyed hash used to store them.
package auth

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"slices"

	"github.com/go-faster/errors"
)

// ScopeWrite allows mutating requests.
const ScopeWrite = "write"

// ErrUnauthorized is returned when an API key is missing, unknown or lacks
// the required scope.
var ErrUnauthorized = errors.New("unauthorized")

// APIKeyInfo holds the identity and permission data for a validated API key.
type APIKeyInfo struct {
	ID      string
	KeyHash string
	Name    string
	Scopes  []string
}

// HasScope reports whether the key was granted the scope.
func (k *APIKeyInfo) HasScope(scope string) bool {
	return slices.Contains(k.Scopes, scope)
}

// Repository provides storage of API keys by their HMAC hash.
type Repository interface {
	FindByHash(ctx context.Context, hash string) (*APIKeyInfo, error)
	Create(ctx context.Context, info APIKeyInfo) error
}

// Hash returns the hex HMAC-SHA256 of key under pepper.
func Hash(pepper []byte, key string) []byte {
	mac := hmac.New(sha256.New, pepper)
	mac.Write([]byte(key))
	return mac.Sum(nil)
}

// HashHex is Hash encoded as lowercase hex, the form stored in the database.
func HashHex(pepper []byte, key string) string {
	return hex.EncodeToString(Hash(pepper, key))
}
