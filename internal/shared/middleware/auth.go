package middleware

import (
	"crypto/sha256"
	"crypto/subtle"
	"net/http"
	"strings"
	"sync"

	"finsync/internal/shared/auth"
)

// APIToken requires "Authorization: Bearer <token>" where the token matches
// the bcrypt hash. An empty hash disables the check.
// The hash is produced by "admin hash-token".
func APIToken(tokenHash string) func(http.Handler) http.Handler {
	v := &tokenVerifier{hash: tokenHash}

	return func(next http.Handler) http.Handler {
		if tokenHash == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok || !v.verify(token) {
				w.Header().Set("WWW-Authenticate", `Bearer realm="finsync"`)
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// tokenVerifier remembers the digest of the last accepted token so bcrypt
// only runs when the presented token changes.
type tokenVerifier struct {
	hash string

	mu       sync.RWMutex
	accepted []byte
}

func (v *tokenVerifier) verify(token string) bool {
	digest := sha256.Sum256([]byte(token))

	v.mu.RLock()
	cached := v.accepted
	v.mu.RUnlock()
	if cached != nil && subtle.ConstantTimeCompare(cached, digest[:]) == 1 {
		return true
	}

	if auth.VerifyToken(v.hash, token) != nil {
		return false
	}

	v.mu.Lock()
	v.accepted = digest[:]
	v.mu.Unlock()
	return true
}
