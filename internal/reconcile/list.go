package reconcile

import "github.com/MrSnakeDoc/shelf/internal/domain"

// List is an ordered sequence of bookmarks keyed by id.
// It is not safe for concurrent use; the Reconciler loop owns it.
//
// Ordering is whatever the initial fetch returned (newest first) plus
// prepends. Updates never move an entry.
type List struct {
	items []domain.Bookmark
}

// Reset replaces the whole list, dropping later duplicates of an id.
func (l *List) Reset(items []domain.Bookmark) {
	l.items = make([]domain.Bookmark, 0, len(items))
	seen := make(map[string]bool, len(items))
	for _, b := range items {
		if seen[b.ID] {
			continue
		}
		seen[b.ID] = true
		l.items = append(l.items, b)
	}
}

// Clear drops every entry.
func (l *List) Clear() { l.items = nil }

// Len returns the number of entries.
func (l *List) Len() int { return len(l.items) }

// Items returns a copy of the entries in order.
func (l *List) Items() []domain.Bookmark {
	out := make([]domain.Bookmark, len(l.items))
	copy(out, l.items)
	return out
}

// Get returns the entry with id.
func (l *List) Get(id string) (domain.Bookmark, bool) {
	if i := l.index(id); i >= 0 {
		return l.items[i], true
	}
	return domain.Bookmark{}, false
}

// Prepend puts b at the front unless its id is already present.
func (l *List) Prepend(b domain.Bookmark) bool {
	if l.index(b.ID) >= 0 {
		return false
	}
	l.items = append([]domain.Bookmark{b}, l.items...)
	return true
}

// Replace swaps the entry with b.ID for b, in place.
func (l *List) Replace(b domain.Bookmark) bool {
	i := l.index(b.ID)
	if i < 0 {
		return false
	}
	l.items[i] = b
	return true
}

// Patch overwrites title and url of the entry with id, keeping everything else.
func (l *List) Patch(id string, f domain.Fields) bool {
	i := l.index(id)
	if i < 0 {
		return false
	}
	l.items[i].Title = f.Title
	l.items[i].URL = f.URL
	return true
}

// Remove drops the entry with id.
func (l *List) Remove(id string) bool {
	i := l.index(id)
	if i < 0 {
		return false
	}
	l.items = append(l.items[:i:i], l.items[i+1:]...)
	return true
}

// Apply merges one change-feed event. Duplicate inserts and updates or
// deletes of unknown ids are no-ops. Reports whether the list changed.
func (l *List) Apply(ev domain.Event) bool {
	switch ev.Kind {
	case domain.EventInsert:
		return l.Prepend(ev.Record)
	case domain.EventUpdate:
		return l.Replace(ev.Record)
	case domain.EventDelete:
		return l.Remove(ev.Record.ID)
	default:
		return false
	}
}

func (l *List) index(id string) int {
	for i := range l.items {
		if l.items[i].ID == id {
			return i
		}
	}
	return -1
}
