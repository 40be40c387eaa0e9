package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/shelf/internal/domain"
)

// ErrUserNotFound is returned when no user is registered under an email
var ErrUserNotFound = errors.New("user not found")

// UserStore keeps registered users as Redis hashes keyed by email
type UserStore struct {
	client *redis.Client
}

// NewUserStore creates a new Redis user store
func NewUserStore(client *redis.Client) *UserStore {
	return &UserStore{client: client}
}

// Create registers u. Fails with domain.ErrUserExists if the email is taken.
func (s *UserStore) Create(ctx context.Context, u domain.User) error {
	key := UserKey(u.Email)
	created, err := s.client.HSetNX(ctx, key, "id", u.ID).Result()
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	if !created {
		return domain.ErrUserExists
	}
	if err := s.client.HSet(ctx, key,
		"name", u.Name,
		"email", strings.ToLower(strings.TrimSpace(u.Email)),
		"password_hash", u.PasswordHash,
	).Err(); err != nil {
		return fmt.Errorf("failed to save user: %w", err)
	}
	return nil
}

// GetByEmail looks a user up by email
func (s *UserStore) GetByEmail(ctx context.Context, email string) (domain.User, error) {
	fields, err := s.client.HGetAll(ctx, UserKey(email)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.User{}, ErrUserNotFound
		}
		return domain.User{}, fmt.Errorf("failed to get user: %w", err)
	}
	if len(fields) == 0 || fields["id"] == "" {
		return domain.User{}, ErrUserNotFound
	}
	return domain.User{
		ID:           fields["id"],
		Name:         fields["name"],
		Email:        fields["email"],
		PasswordHash: fields["password_hash"],
	}, nil
}
