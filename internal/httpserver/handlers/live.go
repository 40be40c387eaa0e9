package handlers

import (
	"net/http"

	"github.com/MrSnakeDoc/shelf/internal/httpserver/deps"
	"github.com/MrSnakeDoc/shelf/internal/httpserver/mw"
)

// Live upgrades to the /live websocket, resuming the cookie session if any.
func Live(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		d.Live.Serve(w, r, mw.SessionToken(r, d.CookieName))
	}
}
