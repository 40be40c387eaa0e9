package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/MrSnakeDoc/shelf/internal/domain"
)

func TestTokenSignParse(t *testing.T) {
	signer := NewTokenSigner(testSecret)
	sess := &domain.Session{ID: "s1", UserID: "u1", ExpiresAt: time.Now().Add(time.Hour)}

	token, err := signer.Sign(sess)
	if err != nil {
		t.Fatalf("Sign() error = %v", err)
	}
	claims, err := signer.Parse(token)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if claims.SessionID != "s1" || claims.Subject != "u1" {
		t.Errorf("claims = (%q, %q), want (s1, u1)", claims.SessionID, claims.Subject)
	}
}

func TestTokenParseRejects(t *testing.T) {
	signer := NewTokenSigner(testSecret)
	valid := &domain.Session{ID: "s1", UserID: "u1", ExpiresAt: time.Now().Add(time.Hour)}

	otherKey, err := NewTokenSigner([]byte("another-secret-another-secret-xx")).Sign(valid)
	if err != nil {
		t.Fatalf("Sign() error = %v", err)
	}
	expired, err := signer.Sign(&domain.Session{ID: "s1", UserID: "u1", ExpiresAt: time.Now().Add(-time.Minute)})
	if err != nil {
		t.Fatalf("Sign() error = %v", err)
	}
	noSession, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   "u1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString(testSecret)
	if err != nil {
		t.Fatalf("SignedString() error = %v", err)
	}
	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{SessionID: "s1"}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("SignedString() error = %v", err)
	}

	tests := []struct {
		name  string
		token string
	}{
		{"empty", ""},
		{"garbage", "not.a.token"},
		{"wrong key", otherKey},
		{"expired", expired},
		{"missing session id", noSession},
		{"alg none", unsigned},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := signer.Parse(tt.token); err == nil {
				t.Errorf("Parse(%s) expected error", tt.name)
			}
		})
	}
}
