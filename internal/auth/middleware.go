package auth

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/clawmart/clawmart/pkg/cerr"
	"github.com/clawmart/clawmart/pkg/clog"
)

// ExtractToken reads a bearer token from the Authorization header.
func ExtractToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if h == "" {
		return ""
	}
	scheme, token, ok := strings.Cut(h, " ")
	if ok && strings.EqualFold(scheme, "bearer") {
		return strings.TrimSpace(token)
	}
	return ""
}

// Optional attaches the caller identity when a valid token is present.
// An invalid token is rejected; a missing one passes through anonymously.
func Optional(v Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := ExtractToken(r)
			if token == "" || v == nil {
				next.ServeHTTP(w, r)
				return
			}
			id, err := v.Verify(r.Context(), token)
			if err != nil {
				cerr.SetNewJSONError(r.Context(), cerr.Unauthenticated, "invalid session token", err)
				return
			}
			clog.AddAttribute(r.Context(), "subject", id.Subject)
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}

// Required rejects requests that reach it without an identity.
func Required(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := FromContext(r.Context()); !ok {
			cerr.SetNewJSONError(r.Context(), cerr.Unauthenticated, "authentication required", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// APIKey guards operator endpoints with a static key sent as X-API-Key.
// An empty key disables the guarded routes entirely.
func APIKey(key string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if key == "" {
				cerr.SetNewJSONError(r.Context(), cerr.PermissionDenied, "admin API disabled", nil)
				return
			}
			got := r.Header.Get("X-API-Key")
			if subtle.ConstantTimeCompare([]byte(got), []byte(key)) != 1 {
				cerr.SetNewJSONError(r.Context(), cerr.Unauthenticated, "unauthorized", nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
