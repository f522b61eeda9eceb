package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/langtransd/langtrans/internal/keystore"
	"github.com/langtransd/langtrans/internal/model"
	"github.com/langtransd/langtrans/internal/session"
)

type contextKeyAuth string

// AuthPrincipalKey is the context key for the authenticated principal.
const AuthPrincipalKey contextKeyAuth = "auth_principal"

// Principal is the API key identity attached to an authenticated request.
// Only the non-secret parts of the key record are carried.
type Principal struct {
	KeyPrefix string
	Label     string
}

// Authenticate returns an HTTP middleware that validates the bearer API key
// on the Authorization header against the key store.
//
// Every failure (missing header, unknown key, revoked key, expired key)
// produces the same 401 body so callers cannot distinguish which keys exist.
// The log line carries the real reason.
func Authenticate(keys *keystore.Store, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			presented := bearerToken(r)
			if presented == "" {
				logger.Warn("auth rejected", "reason", "missing credential",
					"request_id", GetRequestID(r.Context()))
				writeAuthError(w)
				return
			}

			key, err := keys.Validate(presented)
			if err != nil {
				logger.Warn("auth rejected", "reason", authFailureReason(err),
					"request_id", GetRequestID(r.Context()))
				writeAuthError(w)
				return
			}

			p := &Principal{KeyPrefix: key.Prefix(), Label: key.Label}
			ctx := context.WithValue(r.Context(), AuthPrincipalKey, p)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireSession returns an HTTP middleware that gates admin console pages
// behind a valid session cookie. Browsers without one are redirected to the
// login page rather than shown an error.
func RequireSession(sessions *session.Manager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(session.CookieName)
			if err != nil || sessions.Validate(cookie.Value) != nil {
				http.Redirect(w, r, "/login", http.StatusSeeOther)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// GetPrincipal extracts the authenticated principal from the context.
// Returns nil if no principal is present (i.e., unauthenticated request).
func GetPrincipal(ctx context.Context) *Principal {
	if p, ok := ctx.Value(AuthPrincipalKey).(*Principal); ok {
		return p
	}
	return nil
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if !strings.HasPrefix(h, "Bearer ") {
		return ""
	}
	return strings.TrimPrefix(h, "Bearer ")
}

func authFailureReason(err error) string {
	switch {
	case errors.Is(err, keystore.ErrKeyRevoked):
		return "key revoked"
	case errors.Is(err, keystore.ErrKeyExpired):
		return "key expired"
	default:
		return "key not found"
	}
}

// writeAuthError emits the uniform 401 envelope. The message never varies
// with the failure kind.
func writeAuthError(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	w.Write([]byte(`{"error":{"code":401,"message":"` + model.AuthFailedMessage + `"}}`))
}
