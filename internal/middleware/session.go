package middleware

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/rahul4469/ct-referral-assistant/context"
	"github.com/rahul4469/ct-referral-assistant/internal/models"
)

// SessionMiddleware gives every browser an anonymous session. The cookie
// holds a random token; only its hash is used as the snapshot key.
type SessionMiddleware struct {
	cookieName string
	ttl        time.Duration
	secure     bool
}

func NewSessionMiddleware(cookieName string, ttl time.Duration, secure bool) *SessionMiddleware {
	return &SessionMiddleware{
		cookieName: cookieName,
		ttl:        ttl,
		secure:     secure,
	}
}

// SetSession loads the session key from the cookie, issuing a fresh token
// when the cookie is missing or malformed, and stores it in the request
// context. It never blocks a request.
func (m *SessionMiddleware) SetSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var key string
		if cookie, err := r.Cookie(m.cookieName); err == nil {
			key, err = models.SessionKey(cookie.Value)
			if err != nil {
				slog.DebugContext(r.Context(), "discarding malformed session cookie", "error", err)
			}
		}

		if key == "" {
			token, err := models.NewSessionToken()
			if err != nil {
				slog.ErrorContext(r.Context(), "failed to issue session token", "error", err)
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				return
			}
			key, err = models.SessionKey(token)
			if err != nil {
				slog.ErrorContext(r.Context(), "failed to hash session token", "error", err)
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				return
			}
			setCookie(w, m.cookieName, token, m.ttl, m.secure)
		}

		ctx := context.WithSessionKey(r.Context(), key)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireSession rejects requests that did not pass through SetSession.
func RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if context.SessionKey(r.Context()) == "" {
			http.Error(w, "Session required", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// CurrentSessionKey is a helper to get the session key from any handler.
func CurrentSessionKey(r *http.Request) string {
	return context.SessionKey(r.Context())
}

// ClearSession expires the session cookie so the next request starts over.
func (m *SessionMiddleware) ClearSession(w http.ResponseWriter) {
	deleteCookie(w, m.cookieName, m.secure)
}
