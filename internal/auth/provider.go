package auth

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/MrSnakeDoc/shelf/internal/domain"
	redisstore "github.com/MrSnakeDoc/shelf/internal/store/redis"
)

// ProviderPassword is the built-in email + password provider.
const ProviderPassword = "password"

// Credentials is what a sign-in form submits.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name,omitempty"`
}

// Provider authenticates credentials into a user.
type Provider interface {
	Name() string
	Authenticate(ctx context.Context, c Credentials) (domain.User, error)
}

// PasswordProvider checks bcrypt hashes stored in the user store.
type PasswordProvider struct {
	users *redisstore.UserStore
}

func NewPasswordProvider(users *redisstore.UserStore) *PasswordProvider {
	return &PasswordProvider{users: users}
}

func (p *PasswordProvider) Name() string { return ProviderPassword }

func (p *PasswordProvider) Authenticate(ctx context.Context, c Credentials) (domain.User, error) {
	u, err := p.users.GetByEmail(ctx, c.Email)
	if err != nil {
		if errors.Is(err, redisstore.ErrUserNotFound) {
			// unknown emails cost one comparison, same as a wrong password
			_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(c.Password))
			return domain.User{}, domain.ErrInvalidCredentials
		}
		return domain.User{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(c.Password)); err != nil {
		return domain.User{}, domain.ErrInvalidCredentials
	}
	return u, nil
}

var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("shelf-dummy-password"), bcrypt.MinCost)

func hashPassword(password string, cost int) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}
