package homepage

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/MrSnakeDoc/shelf/internal/domain"
)

// ErrNoBookmarks is returned when a config holds no usable entry.
var ErrNoBookmarks = errors.New("no valid bookmarks found in config")

// Map converts config into bookmarks owned by ownerID. Entries without
// href are skipped. The title is the bookmark name, falling back to abbr.
//
// IDs are derived from owner and href so re-importing the same file
// yields the same records. InsertedAt decreases along file order so the
// first entry sorts first in a newest-first list.
func Map(config BookmarksConfig, ownerID string, now time.Time) ([]domain.Bookmark, error) {
	var out []domain.Bookmark
	seen := make(map[string]bool)

	for _, group := range config {
		for _, name := range sortedKeys(group) {
			for _, item := range group[name] {
				for _, title := range sortedKeys(item) {
					entries := item[title]
					if len(entries) == 0 {
						continue
					}
					e := entries[0]
					href := strings.TrimSpace(e.Href)
					if href == "" {
						continue
					}
					if strings.TrimSpace(title) == "" {
						title = e.Abbr
					}

					id := BookmarkID(ownerID, href)
					if seen[id] {
						continue
					}
					seen[id] = true
					out = append(out, domain.Bookmark{
						ID:         id,
						OwnerID:    ownerID,
						Title:      strings.TrimSpace(title),
						URL:        href,
						InsertedAt: now.Add(-time.Duration(len(out)) * time.Millisecond),
					})
				}
			}
		}
	}

	if len(out) == 0 {
		return nil, ErrNoBookmarks
	}
	return out, nil
}

// BookmarkID is stable for a given owner and URL.
func BookmarkID(ownerID, href string) string {
	sum := sha256.Sum256([]byte(ownerID + "\x00" + href))
	return "hp-" + hex.EncodeToString(sum[:])[:16]
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
