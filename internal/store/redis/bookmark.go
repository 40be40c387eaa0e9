package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/shelf/internal/domain"
)

// maxTxRetries bounds optimistic-lock retries on a contended bookmark key
const maxTxRetries = 5

// BookmarkStore keeps bookmark records in Redis and publishes every
// mutation on the owner's change-feed channel, in the same transaction.
type BookmarkStore struct {
	client *redis.Client
	now    func() time.Time
}

// NewBookmarkStore creates a new Redis bookmark store
func NewBookmarkStore(client *redis.Client) *BookmarkStore {
	return &BookmarkStore{
		client: client,
		now:    time.Now,
	}
}

// Query returns all bookmarks of ownerID, newest first
func (s *BookmarkStore) Query(ctx context.Context, ownerID string) ([]domain.Bookmark, error) {
	ids, err := s.client.ZRevRange(ctx, OwnerIndexKey(ownerID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get bookmark IDs: %w", err)
	}
	if len(ids) == 0 {
		return []domain.Bookmark{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = BookmarkKey(id)
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get bookmarks: %w", err)
	}

	bookmarks := make([]domain.Bookmark, 0, len(values))
	for _, v := range values {
		raw, ok := v.(string)
		if !ok {
			// Index entry without a record; the sweeper removes these
			continue
		}
		var b domain.Bookmark
		if err := json.Unmarshal([]byte(raw), &b); err != nil {
			continue
		}
		if b.OwnerID != ownerID {
			continue
		}
		bookmarks = append(bookmarks, b)
	}

	return bookmarks, nil
}

// Insert stores a new bookmark with a server-assigned ID and inserted_at
func (s *BookmarkStore) Insert(ctx context.Context, nb domain.NewBookmark) (domain.Bookmark, error) {
	if nb.OwnerID == "" {
		return domain.Bookmark{}, domain.ErrNoSession
	}
	b := domain.Bookmark{
		ID:         ulid.Make().String(),
		OwnerID:    nb.OwnerID,
		Title:      nb.Title,
		URL:        nb.URL,
		InsertedAt: s.now().UTC().Truncate(time.Millisecond),
	}
	if err := s.save(ctx, s.client, b, domain.EventInsert); err != nil {
		return domain.Bookmark{}, fmt.Errorf("failed to insert bookmark: %w", err)
	}
	return b, nil
}

// ImportIfMissing inserts b unless a record with its ID already exists.
// Reports whether it was inserted.
func (s *BookmarkStore) ImportIfMissing(ctx context.Context, b domain.Bookmark) (bool, error) {
	if b.InsertedAt.IsZero() {
		b.InsertedAt = s.now().UTC().Truncate(time.Millisecond)
	}
	key := BookmarkKey(b.ID)
	inserted := false

	err := s.retry(ctx, key, func(tx *redis.Tx) error {
		n, err := tx.Exists(ctx, key).Result()
		if err != nil {
			return err
		}
		if n > 0 {
			return nil
		}
		inserted = true
		return s.save(ctx, tx, b, domain.EventInsert)
	})
	if err != nil {
		return false, fmt.Errorf("failed to import bookmark: %w", err)
	}
	return inserted, nil
}

// Update replaces title and url of an owner's bookmark
func (s *BookmarkStore) Update(ctx context.Context, ownerID, id string, f domain.Fields) error {
	key := BookmarkKey(id)
	err := s.retry(ctx, key, func(tx *redis.Tx) error {
		b, err := s.owned(ctx, tx, ownerID, id)
		if err != nil {
			return err
		}
		b.Title = f.Title
		b.URL = f.URL
		return s.save(ctx, tx, b, domain.EventUpdate)
	})
	if err != nil {
		return fmt.Errorf("failed to update bookmark: %w", err)
	}
	return nil
}

// Delete removes an owner's bookmark
func (s *BookmarkStore) Delete(ctx context.Context, ownerID, id string) error {
	key := BookmarkKey(id)
	err := s.retry(ctx, key, func(tx *redis.Tx) error {
		b, err := s.owned(ctx, tx, ownerID, id)
		if err != nil {
			return err
		}
		payload, err := encodeEvent(domain.Event{
			Kind:   domain.EventDelete,
			Record: domain.Bookmark{ID: b.ID, OwnerID: b.OwnerID},
		})
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, key)
			pipe.ZRem(ctx, OwnerIndexKey(ownerID), id)
			pipe.Publish(ctx, FeedChannel(ownerID), payload)
			return nil
		})
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to delete bookmark: %w", err)
	}
	return nil
}

// Owners returns every owner that has an index
func (s *BookmarkStore) Owners(ctx context.Context) ([]string, error) {
	var owners []string
	iter := s.client.Scan(ctx, 0, KeyPrefixOwner+"*"+ownerIndexSuffix, 0).Iterator()
	for iter.Next(ctx) {
		owner, err := ExtractOwnerID(iter.Val())
		if err != nil {
			continue
		}
		owners = append(owners, owner)
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan owner indexes: %w", err)
	}
	return owners, nil
}

// SweepOwnerIndex removes index entries whose record no longer exists.
// Returns the number of entries removed.
func (s *BookmarkStore) SweepOwnerIndex(ctx context.Context, ownerID string) (int, error) {
	index := OwnerIndexKey(ownerID)
	ids, err := s.client.ZRange(ctx, index, 0, -1).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to read owner index: %w", err)
	}

	removed := 0
	for _, id := range ids {
		n, err := s.client.Exists(ctx, BookmarkKey(id)).Result()
		if err != nil {
			return removed, fmt.Errorf("failed to check bookmark %s: %w", id, err)
		}
		if n > 0 {
			continue
		}
		if err := s.client.ZRem(ctx, index, id).Err(); err != nil {
			return removed, fmt.Errorf("failed to remove dangling entry %s: %w", id, err)
		}
		removed++
	}
	return removed, nil
}

// owned loads id and checks it belongs to ownerID. A foreign record is
// reported as not found.
func (s *BookmarkStore) owned(ctx context.Context, tx *redis.Tx, ownerID, id string) (domain.Bookmark, error) {
	var b domain.Bookmark
	data, err := tx.Get(ctx, BookmarkKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return b, domain.ErrNotFound
		}
		return b, err
	}
	if err := json.Unmarshal(data, &b); err != nil {
		return b, fmt.Errorf("failed to unmarshal bookmark: %w", err)
	}
	if b.OwnerID != ownerID {
		return b, domain.ErrNotFound
	}
	return b, nil
}

// save writes b, indexes it and publishes kind in one MULTI/EXEC
func (s *BookmarkStore) save(ctx context.Context, c redis.Cmdable, b domain.Bookmark, kind domain.EventKind) error {
	data, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("failed to marshal bookmark: %w", err)
	}
	payload, err := encodeEvent(domain.Event{Kind: kind, Record: b})
	if err != nil {
		return err
	}

	_, err = c.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, BookmarkKey(b.ID), data, 0)
		pipe.ZAdd(ctx, OwnerIndexKey(b.OwnerID), redis.Z{
			Score:  float64(b.InsertedAt.UnixMilli()),
			Member: b.ID,
		})
		pipe.Publish(ctx, FeedChannel(b.OwnerID), payload)
		return nil
	})
	return err
}

// retry runs fn under WATCH key, retrying when another client won the race
func (s *BookmarkStore) retry(ctx context.Context, key string, fn func(tx *redis.Tx) error) error {
	for i := 0; i < maxTxRetries; i++ {
		err := s.client.Watch(ctx, fn, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return fmt.Errorf("gave up after %d concurrent modifications", maxTxRetries)
}

func encodeEvent(ev domain.Event) (string, error) {
	data, err := json.Marshal(ev)
	if err != nil {
		return "", fmt.Errorf("failed to marshal change event: %w", err)
	}
	return string(data), nil
}

func decodeEvent(payload string) (domain.Event, error) {
	var ev domain.Event
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		return ev, fmt.Errorf("failed to unmarshal change event: %w", err)
	}
	if _, err := domain.ParseKind(string(ev.Kind)); err != nil {
		return ev, err
	}
	return ev, nil
}
