package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/MrSnakeDoc/shelf/internal/auth"
	"github.com/MrSnakeDoc/shelf/internal/domain"
	"github.com/MrSnakeDoc/shelf/internal/httpserver/deps"
	"github.com/MrSnakeDoc/shelf/internal/httpserver/mw"
)

type userResponse struct {
	ID    string `json:"id"`
	Name  string `json:"name,omitempty"`
	Email string `json:"email"`
}

type signInRequest struct {
	Provider string `json:"provider,omitempty"`
	auth.Credentials
}

type sessionResponse struct {
	Session *domain.Session `json:"session"`
	Token   string          `json:"token,omitempty"`
}

// CreateUser registers a password account.
func CreateUser(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var creds auth.Credentials
		if err := decodeJSON(r, &creds); err != nil {
			writeError(w, d.Logger, err)
			return
		}
		u, err := d.Auth.Register(r.Context(), creds)
		if err != nil {
			writeError(w, d.Logger, err)
			return
		}
		writeJSON(w, http.StatusCreated, userResponse{ID: u.ID, Name: u.Name, Email: u.Email})
	}
}

// SignIn opens a session and sets the session cookie.
func SignIn(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req signInRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, d.Logger, err)
			return
		}
		if req.Provider == "" {
			req.Provider = auth.ProviderPassword
		}

		sess, token, err := d.Auth.SignIn(r.Context(), req.Provider, req.Credentials)
		if err != nil {
			writeError(w, d.Logger, err)
			return
		}
		http.SetCookie(w, sessionCookie(d, token, sess.ExpiresAt))
		writeJSON(w, http.StatusOK, sessionResponse{Session: sess, Token: token})
	}
}

// CurrentSession returns the session resolved by mw.RequireSession.
func CurrentSession(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := mw.SessionFrom(r.Context())
		if !ok {
			writeError(w, d.Logger, domain.ErrNoSession)
			return
		}
		writeJSON(w, http.StatusOK, sessionResponse{Session: sess})
	}
}

// SignOut revokes the session and clears the cookie. Live connections
// holding the session are signed out too.
func SignOut(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if token := mw.SessionToken(r, d.CookieName); token != "" {
			if err := d.Auth.SignOut(r.Context(), token); err != nil && !errors.Is(err, domain.ErrNoSession) {
				writeError(w, d.Logger, err)
				return
			}
		}
		http.SetCookie(w, sessionCookie(d, "", time.Unix(0, 0)))
		w.WriteHeader(http.StatusNoContent)
	}
}

func sessionCookie(d deps.Deps, token string, expires time.Time) *http.Cookie {
	c := &http.Cookie{
		Name:     d.CookieName,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   d.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	}
	if token == "" {
		c.MaxAge = -1
	}
	return c
}
