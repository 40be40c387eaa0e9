package auth

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"

	"github.com/MrSnakeDoc/shelf/internal/logger"
	redisstore "github.com/MrSnakeDoc/shelf/internal/store/redis"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

func newTestService(t *testing.T) *Service {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	svc := NewService(
		redisstore.NewSessionStore(client),
		redisstore.NewUserStore(client),
		testSecret,
		time.Hour,
		logger.NewNop(),
	)
	svc.bcryptCost = bcrypt.MinCost
	return svc
}

func register(t *testing.T, svc *Service, email, password string) {
	t.Helper()
	if _, err := svc.Register(context.Background(), Credentials{Email: email, Password: password, Name: "Test"}); err != nil {
		t.Fatalf("Register(%q) error = %v", email, err)
	}
}
