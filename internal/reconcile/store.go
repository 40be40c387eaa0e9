package reconcile

import (
	"context"

	"github.com/MrSnakeDoc/shelf/internal/domain"
)

// BookmarkStore is the backing table plus its change-feed.
// Every call is scoped to one owner; the store enforces ownership.
type BookmarkStore interface {
	Query(ctx context.Context, ownerID string) ([]domain.Bookmark, error)
	Insert(ctx context.Context, nb domain.NewBookmark) (domain.Bookmark, error)
	Update(ctx context.Context, ownerID, id string, f domain.Fields) error
	Delete(ctx context.Context, ownerID, id string) error
	Subscribe(ctx context.Context, ownerID string) (domain.ChangeFeed, error)
}

// SessionSource is the authentication side: the current session and
// a stream of changes to it.
type SessionSource interface {
	Current(ctx context.Context) (*domain.Session, error)
	Watch() domain.SessionWatch
}
