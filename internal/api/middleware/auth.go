package middleware

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strings"
)

type contextKey string

const keyIDContextKey contextKey = "api_key_id"

// KeyIDFromContext returns the short fingerprint of the API key that
// authenticated the request, or "" when auth is disabled.
func KeyIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(keyIDContextKey).(string)
	return id
}

// APIKeyAuth accepts requests bearing one of keys. Keys are compared by
// SHA-256 digest in constant time. With no keys configured every request is
// let through.
func APIKeyAuth(keys []string) func(http.Handler) http.Handler {
	digests := make([][sha256.Size]byte, len(keys))
	for i, k := range keys {
		digests[i] = sha256.Sum256([]byte(k))
	}

	return func(next http.Handler) http.Handler {
		if len(digests) == 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				writeError(w, http.StatusUnauthorized, "missing authorization header")
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				writeError(w, http.StatusUnauthorized, "invalid authorization header format")
				return
			}

			got := sha256.Sum256([]byte(parts[1]))
			ok := false
			for _, d := range digests {
				if subtle.ConstantTimeCompare(got[:], d[:]) == 1 {
					ok = true
				}
			}
			if !ok {
				writeError(w, http.StatusUnauthorized, "invalid API key")
				return
			}

			ctx := context.WithValue(r.Context(), keyIDContextKey, hex.EncodeToString(got[:4]))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
