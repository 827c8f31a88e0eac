package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHashHex(t *testing.T) {
	a := HashHex([]byte("pepper"), "secret")
	assert.Len(t, a, 64)
	assert.Equal(t, a, HashHex([]byte("pepper"), "secret"))
	assert.NotEqual(t, a, HashHex([]byte("other"), "secret"))
	assert.NotEqual(t, a, HashHex([]byte("pepper"), "secret2"))
}

func TestHasScope(t *testing.T) {
	k := &APIKeyInfo{Scopes: []string{"read", ScopeWrite}}
	assert.True(t, k.HasScope(ScopeWrite))
	assert.False(t, (&APIKeyInfo{Scopes: []string{"read"}}).HasScope(ScopeWrite))
}
