package http

import (
	"context"
	"net/http"
	"strings"

	"github.com/bhavik262/pizza-delivery/internal/apperr"
	"github.com/bhavik262/pizza-delivery/internal/auth"
)

var errAdminOnly = apperr.New(apperr.Forbidden, "access denied, insufficient permissions")

// Authenticator resolves a raw bearer token to the caller's identity.
type Authenticator interface {
	Authenticate(ctx context.Context, rawToken string) (auth.Identity, error)
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if token, ok := strings.CutPrefix(h, "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	return ""
}

// Authenticate rejects requests without a valid bearer token and stores the
// identity on the request context.
func (b base) Authenticate(a Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, err := a.Authenticate(r.Context(), bearerToken(r))
			if err != nil {
				b.respondWithError(w, r, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(auth.WithIdentity(r.Context(), identity)))
		})
	}
}

// RequireRole lets through identities holding one of roles. It must run
// after Authenticate.
func (b base) RequireRole(roles ...auth.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, ok := auth.FromContext(r.Context())
			if !ok {
				b.respondWithError(w, r, auth.ErrTokenMissing)
				return
			}
			if !identity.HasRole(roles...) {
				b.respondWithError(w, r, errAdminOnly)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func identityFrom(r *http.Request) auth.Identity {
	identity, _ := auth.FromContext(r.Context())
	return identity
}

// CORS allows the configured frontend origin with credentials.
func CORS(origin string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if reqOrigin := r.Header.Get("Origin"); reqOrigin != "" && (origin == "*" || reqOrigin == origin) {
				h := w.Header()
				h.Set("Access-Control-Allow-Origin", reqOrigin)
				h.Set("Access-Control-Allow-Credentials", "true")
				h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
				h.Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
				h.Add("Vary", "Origin")
			}
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
