// Package middleware provides HTTP middleware for session loading, CORS
// handling, rate limiting, and request context management.
package middleware

import (
	"net/http"

	"github.com/windowpeers/backend/internal/crypto"
	"github.com/windowpeers/backend/internal/logging"
	"github.com/windowpeers/backend/internal/session"
)

// SessionMiddleware loads the signed session cookie and stores the session
// in the request context. A missing or invalid cookie never rejects the
// request: the window simply starts with an empty session and will be
// assigned a new group.
func SessionMiddleware(store *session.Store) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess, err := store.Load(r)
			if err != nil {
				logging.LogSecurityEvent(r.Context(), logging.SecurityEventInvalidSession, "invalid session cookie")
			}

			ctx := session.WithSession(r.Context(), sess)
			if gid, ok := sess.GroupID(); ok {
				ctx = logging.WithConnection(ctx, "", crypto.Fingerprint(gid))
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
