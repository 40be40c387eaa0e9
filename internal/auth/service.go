package auth

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/MrSnakeDoc/shelf/internal/domain"
	"github.com/MrSnakeDoc/shelf/internal/logger"
	redisstore "github.com/MrSnakeDoc/shelf/internal/store/redis"
)

// MinPasswordLen is the shortest password Register accepts.
const MinPasswordLen = 8

// Service is the session store: sign-in through providers, token
// resolution and sign-out. Sessions live in Redis; tokens only point at them.
type Service struct {
	sessions   *redisstore.SessionStore
	users      *redisstore.UserStore
	tokens     *TokenSigner
	providers  map[string]Provider
	ttl        time.Duration
	bcryptCost int
	now        func() time.Time
	log        logger.Logger
}

// NewService returns a service issuing tokens signed with secret, valid for ttl.
// The password provider is registered.
func NewService(
	sessions *redisstore.SessionStore,
	users *redisstore.UserStore,
	secret []byte,
	ttl time.Duration,
	log logger.Logger,
) *Service {
	s := &Service{
		sessions:   sessions,
		users:      users,
		tokens:     NewTokenSigner(secret),
		providers:  make(map[string]Provider),
		ttl:        ttl,
		bcryptCost: bcrypt.DefaultCost,
		now:        time.Now,
		log:        log,
	}
	s.RegisterProvider(NewPasswordProvider(users))
	return s
}

// RegisterProvider adds or replaces a sign-in provider.
func (s *Service) RegisterProvider(p Provider) {
	s.providers[p.Name()] = p
}

// Register creates a password account.
func (s *Service) Register(ctx context.Context, c Credentials) (domain.User, error) {
	addr, err := mail.ParseAddress(strings.TrimSpace(c.Email))
	if err != nil {
		return domain.User{}, &domain.ValidationError{Fields: []string{"email"}}
	}
	if len(c.Password) < MinPasswordLen {
		return domain.User{}, fmt.Errorf("password must be at least %d characters: %w",
			MinPasswordLen, &domain.ValidationError{Fields: []string{"password"}})
	}

	hash, err := hashPassword(c.Password, s.bcryptCost)
	if err != nil {
		return domain.User{}, err
	}
	u := domain.User{
		ID:           uuid.NewString(),
		Name:         strings.TrimSpace(c.Name),
		Email:        strings.ToLower(addr.Address),
		PasswordHash: hash,
	}
	if err := s.users.Create(ctx, u); err != nil {
		return domain.User{}, err
	}

	s.log.Info("user registered", logger.String("user_id", u.ID))
	return u, nil
}

// SignIn authenticates through provider and opens a session.
// Returns the session and its token.
func (s *Service) SignIn(ctx context.Context, provider string, c Credentials) (*domain.Session, string, error) {
	p, ok := s.providers[provider]
	if !ok {
		return nil, "", fmt.Errorf("unknown sign-in provider %q", provider)
	}

	u, err := p.Authenticate(ctx, c)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidCredentials) {
			s.log.Info("sign-in rejected", logger.String("provider", provider))
		}
		return nil, "", err
	}

	sess := &domain.Session{
		ID:        uuid.NewString(),
		UserID:    u.ID,
		Name:      u.Name,
		Email:     u.Email,
		Provider:  provider,
		ExpiresAt: s.now().Add(s.ttl).UTC(),
	}
	if err := s.sessions.Save(ctx, sess); err != nil {
		return nil, "", err
	}
	token, err := s.tokens.Sign(sess)
	if err != nil {
		return nil, "", err
	}

	s.log.Info("session opened",
		logger.String("user_id", u.ID),
		logger.String("provider", provider))
	return sess, token, nil
}

// Resolve returns the live session behind token, or domain.ErrNoSession.
func (s *Service) Resolve(ctx context.Context, token string) (*domain.Session, error) {
	if token == "" {
		return nil, domain.ErrNoSession
	}
	claims, err := s.tokens.Parse(token)
	if err != nil {
		s.log.Debug("rejected session token", logger.Error(err))
		return nil, domain.ErrNoSession
	}

	sess, err := s.sessions.Get(ctx, claims.SessionID)
	if err != nil {
		if errors.Is(err, redisstore.ErrSessionNotFound) {
			return nil, domain.ErrNoSession
		}
		return nil, err
	}
	if sess.UserID != claims.Subject || sess.Expired(s.now()) {
		return nil, domain.ErrNoSession
	}
	return sess, nil
}

// SignOut revokes the session behind token. Every connection holding it
// is notified.
func (s *Service) SignOut(ctx context.Context, token string) error {
	claims, err := s.tokens.Parse(token)
	if err != nil {
		return domain.ErrNoSession
	}
	if err := s.sessions.Revoke(ctx, claims.SessionID); err != nil {
		return err
	}
	s.log.Info("session closed", logger.String("user_id", claims.Subject))
	return nil
}

// WatchRevocation reports when session id is revoked elsewhere.
func (s *Service) WatchRevocation(ctx context.Context, id string) (*redisstore.Revocation, error) {
	return s.sessions.WatchRevocation(ctx, id)
}
