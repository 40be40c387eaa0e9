package mw

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/MrSnakeDoc/shelf/internal/auth"
	"github.com/MrSnakeDoc/shelf/internal/domain"
	"github.com/MrSnakeDoc/shelf/internal/logger"
)

type sessionKey struct{}

// SessionToken reads the session token from the Authorization header
// (Bearer) or, failing that, from the session cookie.
func SessionToken(r *http.Request, cookieName string) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if token, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}
	if c, err := r.Cookie(cookieName); err == nil {
		return c.Value
	}
	return ""
}

// RequireSession rejects requests without a live session with 401.
// The session is available to handlers through SessionFrom.
func RequireSession(svc *auth.Service, cookieName string, log logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess, err := svc.Resolve(r.Context(), SessionToken(r, cookieName))
			if err != nil {
				status := http.StatusUnauthorized
				if !errors.Is(err, domain.ErrNoSession) {
					log.Warn("RequireSession: session lookup failed", logger.Error(err))
					status = http.StatusBadGateway
				}
				log.Debugf("RequireSession: %s REJECTED (%d)", r.URL.Path, status)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(status)
				_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), sessionKey{}, sess)))
		})
	}
}

// SessionFrom returns the session stored by RequireSession.
func SessionFrom(ctx context.Context) (*domain.Session, bool) {
	sess, ok := ctx.Value(sessionKey{}).(*domain.Session)
	return sess, ok && sess != nil
}
