package reconcile

import "github.com/MrSnakeDoc/shelf/internal/domain"

// Draft is the content of an edit form. It survives a failed edit so
// the user does not lose their input.
type Draft struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	URL   string `json:"url"`
}

// View is a snapshot of the reconciler state for the presentation layer.
type View struct {
	Session   *domain.Session   `json:"session"`
	Bookmarks []domain.Bookmark `json:"bookmarks"`
	Loading   bool              `json:"loading"`
	Error     string            `json:"error,omitempty"`
	Editing   *Draft            `json:"editing,omitempty"`
}

// SignedIn reports whether the view belongs to an authenticated session.
func (v View) SignedIn() bool { return v.Session != nil }

// offer replaces whatever is buffered in ch with v. ch must have capacity 1
// and a single sender.
func offer(ch chan View, v View) {
	select {
	case ch <- v:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- v:
	default:
	}
}
