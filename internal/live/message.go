package live

import (
	"github.com/MrSnakeDoc/shelf/internal/domain"
	"github.com/MrSnakeDoc/shelf/internal/reconcile"
)

// Command types sent by the browser.
const (
	CmdAdd       = "add"
	CmdEdit      = "edit"
	CmdBeginEdit = "begin_edit"
	CmdCancel    = "cancel_edit"
	CmdDelete    = "delete"
	CmdDismiss   = "dismiss"
	CmdSearch    = "search"
	CmdSignIn    = "sign_in"
	CmdSignOut   = "sign_out"
)

// Command is a browser request. ID is echoed back in the result.
type Command struct {
	ID         string `json:"id"`
	Type       string `json:"type"`
	BookmarkID string `json:"bookmark_id,omitempty"`
	Title      string `json:"title,omitempty"`
	URL        string `json:"url,omitempty"`
	Query      string `json:"query,omitempty"`
	Provider   string `json:"provider,omitempty"`
	Email      string `json:"email,omitempty"`
	Password   string `json:"password,omitempty"`
}

// StateMessage carries the reconciler view, already filtered by Query.
// Total is the size of the list before filtering.
type StateMessage struct {
	Type  string `json:"type"`
	Query string `json:"query,omitempty"`
	Total int    `json:"total"`
	reconcile.View
}

// ResultMessage answers one Command.
type ResultMessage struct {
	Type     string           `json:"type"`
	ID       string           `json:"id"`
	OK       bool             `json:"ok"`
	Error    string           `json:"error,omitempty"`
	Bookmark *domain.Bookmark `json:"bookmark,omitempty"`
	Token    string           `json:"token,omitempty"`
}

func stateMessage(v reconcile.View, query string) StateMessage {
	total := len(v.Bookmarks)
	v.Bookmarks = domain.Filter(v.Bookmarks, query)
	return StateMessage{Type: "state", Query: query, Total: total, View: v}
}
