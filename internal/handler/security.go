package handler

import (
	"context"
	"crypto/subtle"
	"encoding/hex"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/retail-crm/internal/domain/auth"
)

// APIKeyHeader is the request header carrying the client API key.
const APIKeyHeader = "api_key"

type apiKeyCtx struct{}

// KeyFromContext returns the API key authenticated for the request, if any.
func KeyFromContext(ctx context.Context) (*auth.APIKeyInfo, bool) {
	info, ok := ctx.Value(apiKeyCtx{}).(*auth.APIKeyInfo)
	return info, ok
}

// Security authenticates requests via HMAC-SHA256 hashed API keys.
type Security struct {
	apikeys auth.Repository
	pepper  []byte
}

// NewSecurity creates a Security with the given API key repository and HMAC
// pepper.
func NewSecurity(apikeys auth.Repository, pepper []byte) *Security {
	return &Security{
		apikeys: apikeys,
		pepper:  pepper,
	}
}

// Authenticate hashes the key, looks it up and compares the stored hash in
// constant time. The key must carry the write scope.
func (s *Security) Authenticate(ctx context.Context, key string) (*auth.APIKeyInfo, error) {
	if key == "" {
		return nil, auth.ErrUnauthorized
	}
	hash := auth.Hash(s.pepper, key)

	info, err := s.apikeys.FindByHash(ctx, hex.EncodeToString(hash))
	if err != nil {
		if errors.Is(err, auth.ErrUnauthorized) {
			return nil, auth.ErrUnauthorized
		}
		return nil, errors.Wrap(err, "find api key")
	}

	stored, err := hex.DecodeString(info.KeyHash)
	if err != nil || subtle.ConstantTimeCompare(hash, stored) != 1 {
		return nil, auth.ErrUnauthorized
	}
	if !info.HasScope(auth.ScopeWrite) {
		return nil, auth.ErrUnauthorized
	}
	return info, nil
}

// Require wraps next so it only runs for authenticated requests.
func (s *Security) Require(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		info, err := s.Authenticate(ctx, r.Header.Get(APIKeyHeader))
		if err != nil {
			if !errors.Is(err, auth.ErrUnauthorized) {
				zctx.From(ctx).Error("API key lookup failed", zap.Error(err))
			}
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next(w, r.WithContext(context.WithValue(ctx, apiKeyCtx{}, info)))
	}
}
