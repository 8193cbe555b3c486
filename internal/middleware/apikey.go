package middleware

import (
	"crypto/subtle"
	"net/http"

	"golang.org/x/crypto/bcrypt"

	"github.com/HammerMeetNail/mindio/internal/logging"
)

const apiKeyHeader = "X-API-KEY"

// APIKeyAuth guards machine-to-machine endpoints such as daily ingestion.
// A bcrypt hash takes precedence over a plaintext key when both are set.
type APIKeyAuth struct {
	key  []byte
	hash []byte
}

func NewAPIKeyAuth(key, hash string) *APIKeyAuth {
	a := &APIKeyAuth{}
	if key != "" {
		a.key = []byte(key)
	}
	if hash != "" {
		a.hash = []byte(hash)
	}
	return a
}

func (a *APIKeyAuth) Configured() bool {
	return len(a.key) > 0 || len(a.hash) > 0
}

func (a *APIKeyAuth) valid(presented string) bool {
	if presented == "" {
		return false
	}
	if len(a.hash) > 0 {
		return bcrypt.CompareHashAndPassword(a.hash, []byte(presented)) == nil
	}
	if len(a.key) > 0 {
		return subtle.ConstantTimeCompare(a.key, []byte(presented)) == 1
	}
	return false
}

func (a *APIKeyAuth) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !a.valid(r.Header.Get(apiKeyHeader)) {
			if !a.Configured() {
				logging.FromContext(r.Context()).Warn("API key request rejected; no key configured", map[string]interface{}{
					"path": r.URL.Path,
				})
			}
			writeError(w, http.StatusUnauthorized, "Invalid API key")
			return
		}
		next.ServeHTTP(w, r)
	})
}
