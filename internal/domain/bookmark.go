package domain

import (
	"strings"
	"time"
)

// Bookmark is a single URL record owned by one user.
type Bookmark struct {
	// ─────────────────────────────
	// Identity (server-assigned)
	// ─────────────────────────────

	// ID is the opaque unique identifier assigned by the store.
	ID string `json:"id"`

	// OwnerID is the user the bookmark belongs to.
	// The store only ever returns bookmarks of the requesting owner.
	OwnerID string `json:"owner_id"`

	// ─────────────────────────────
	// Content (user editable)
	// ─────────────────────────────

	// Title is optional for display; DisplayTitle falls back to URL.
	Title string `json:"title"`

	// URL is the bookmarked address.
	URL string `json:"url"`

	// ─────────────────────────────
	// Metadata
	// ─────────────────────────────

	// InsertedAt is set by the store and is the default sort key (newest first).
	InsertedAt time.Time `json:"inserted_at"`
}

// DisplayTitle returns the title, or the URL when the title is empty.
func (b Bookmark) DisplayTitle() string {
	if b.Title == "" {
		return b.URL
	}
	return b.Title
}

// Fields is the user editable subset of a Bookmark.
type Fields struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// NewBookmark is an insert request.
type NewBookmark struct {
	Fields
	OwnerID string
}

// Validate reports a ValidationError when title or url is blank.
func Validate(title, url string) error {
	var missing []string
	if strings.TrimSpace(title) == "" {
		missing = append(missing, "title")
	}
	if strings.TrimSpace(url) == "" {
		missing = append(missing, "url")
	}
	if len(missing) > 0 {
		return &ValidationError{Fields: missing}
	}
	return nil
}

// Filter returns the bookmarks whose display title contains query
// (case-insensitive). The URL only counts for untitled bookmarks. Order
// is preserved. An empty query returns list as is.
func Filter(list []Bookmark, query string) []Bookmark {
	if query == "" {
		return list
	}
	q := strings.ToLower(query)
	out := make([]Bookmark, 0, len(list))
	for _, b := range list {
		if strings.Contains(strings.ToLower(b.DisplayTitle()), q) {
			out = append(out, b)
		}
	}
	return out
}
