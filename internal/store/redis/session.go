package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/shelf/internal/domain"
)

// ErrSessionNotFound is returned when a session is missing, revoked or expired
var ErrSessionNotFound = errors.New("session not found")

const revokedMessage = "revoked"

// SessionStore keeps sessions in Redis with a TTL matching their expiry
type SessionStore struct {
	client *redis.Client
	now    func() time.Time
}

// NewSessionStore creates a new Redis session store
func NewSessionStore(client *redis.Client) *SessionStore {
	return &SessionStore{
		client: client,
		now:    time.Now,
	}
}

// Save stores a session until its ExpiresAt
func (s *SessionStore) Save(ctx context.Context, sess *domain.Session) error {
	ttl := sess.ExpiresAt.Sub(s.now())
	if ttl <= 0 {
		return fmt.Errorf("session %s already expired", sess.ID)
	}
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	if err := s.client.Set(ctx, SessionKey(sess.ID), data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// Get retrieves a live session by ID
func (s *SessionStore) Get(ctx context.Context, id string) (*domain.Session, error) {
	data, err := s.client.Get(ctx, SessionKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	var sess domain.Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	return &sess, nil
}

// Revoke deletes a session and notifies every holder of it
func (s *SessionStore) Revoke(ctx context.Context, id string) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, SessionKey(id))
		pipe.Publish(ctx, SessionChannel(id), revokedMessage)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to revoke session: %w", err)
	}
	return nil
}

// Revocation is a pending notification that a session was revoked
type Revocation struct {
	pubsub *redis.PubSub
	done   chan struct{}
}

// WatchRevocation subscribes to the revocation channel of session id
func (s *SessionStore) WatchRevocation(ctx context.Context, id string) (*Revocation, error) {
	pubsub := s.client.Subscribe(ctx, SessionChannel(id))
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("failed to watch session: %w", err)
	}

	r := &Revocation{pubsub: pubsub, done: make(chan struct{})}
	go func() {
		defer close(r.done)
		for msg := range pubsub.Channel() {
			if msg.Payload == revokedMessage {
				return
			}
		}
	}()
	return r, nil
}

// Done is closed when the session is revoked or the watch is closed
func (r *Revocation) Done() <-chan struct{} {
	return r.done
}

// Close stops watching
func (r *Revocation) Close() error {
	return r.pubsub.Close()
}
