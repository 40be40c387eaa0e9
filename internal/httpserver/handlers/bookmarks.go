package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/shelf/internal/domain"
	"github.com/MrSnakeDoc/shelf/internal/httpserver/deps"
	"github.com/MrSnakeDoc/shelf/internal/httpserver/mw"
	"github.com/MrSnakeDoc/shelf/internal/logger"
)

type bookmarkRequest struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

type bookmarksResponse struct {
	Bookmarks []domain.Bookmark `json:"bookmarks"`
	Count     int               `json:"count"`
	Total     int               `json:"total"`
}

// ListBookmarks returns the owner's bookmarks newest first, filtered by ?q=.
func ListBookmarks(d deps.Deps) http.HandlerFunc {
	return withSession(d, func(w http.ResponseWriter, r *http.Request, sess *domain.Session) {
		list, err := d.Bookmarks.Query(r.Context(), sess.UserID)
		if err != nil {
			writeError(w, d.Logger, err)
			return
		}
		total := len(list)
		list = domain.Filter(list, r.URL.Query().Get("q"))
		if list == nil {
			list = []domain.Bookmark{}
		}
		writeJSON(w, http.StatusOK, bookmarksResponse{Bookmarks: list, Count: len(list), Total: total})
	})
}

// CreateBookmark inserts a bookmark for the session's user and returns it.
func CreateBookmark(d deps.Deps) http.HandlerFunc {
	return withSession(d, func(w http.ResponseWriter, r *http.Request, sess *domain.Session) {
		f, ok := readFields(w, r, d)
		if !ok {
			return
		}
		b, err := d.Bookmarks.Insert(r.Context(), domain.NewBookmark{Fields: f, OwnerID: sess.UserID})
		if err != nil {
			writeError(w, d.Logger, err)
			return
		}
		d.Logger.Info("bookmark created", logger.String("id", b.ID), logger.String("user_id", sess.UserID))
		writeJSON(w, http.StatusCreated, b)
	})
}

// UpdateBookmark replaces the title and URL of one of the user's bookmarks.
func UpdateBookmark(d deps.Deps) http.HandlerFunc {
	return withSession(d, func(w http.ResponseWriter, r *http.Request, sess *domain.Session) {
		f, ok := readFields(w, r, d)
		if !ok {
			return
		}
		if err := d.Bookmarks.Update(r.Context(), sess.UserID, chi.URLParam(r, "id"), f); err != nil {
			writeError(w, d.Logger, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})
}

// DeleteBookmark removes one of the user's bookmarks.
func DeleteBookmark(d deps.Deps) http.HandlerFunc {
	return withSession(d, func(w http.ResponseWriter, r *http.Request, sess *domain.Session) {
		if err := d.Bookmarks.Delete(r.Context(), sess.UserID, chi.URLParam(r, "id")); err != nil {
			writeError(w, d.Logger, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})
}

func withSession(d deps.Deps, fn func(http.ResponseWriter, *http.Request, *domain.Session)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := mw.SessionFrom(r.Context())
		if !ok {
			writeError(w, d.Logger, domain.ErrNoSession)
			return
		}
		fn(w, r, sess)
	}
}

// readFields decodes and validates a title/url body. Validation runs
// before any store call.
func readFields(w http.ResponseWriter, r *http.Request, d deps.Deps) (domain.Fields, bool) {
	var req bookmarkRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, d.Logger, err)
		return domain.Fields{}, false
	}
	if err := domain.Validate(req.Title, req.URL); err != nil {
		writeError(w, d.Logger, err)
		return domain.Fields{}, false
	}
	return domain.Fields{Title: strings.TrimSpace(req.Title), URL: strings.TrimSpace(req.URL)}, true
}
