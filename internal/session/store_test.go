package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"github.com/sakara-commerce/storefront/internal/gateway"
	"github.com/sakara-commerce/storefront/internal/platform/requestctx"
)

func signedToken(t *testing.T, expiresAt time.Time) string {
	t.Helper()
	claims := jwt.RegisteredClaims{
		Subject:   "session-1",
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func TestTokenExpired(t *testing.T) {
	now := time.Date(2026, time.March, 14, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		token string
		want  bool
	}{
		{
			name:  "expired jwt",
			token: signedToken(t, now.Add(-time.Minute)),
			want:  true,
		},
		{
			name:  "valid jwt",
			token: signedToken(t, now.Add(time.Hour)),
			want:  false,
		},
		{
			name:  "opaque token",
			token: "b5c1b2d9opaque",
			want:  false,
		},
		{
			name:  "empty token",
			token: "",
			want:  false,
		},
		{
			name:  "garbage with dots",
			token: "a.b.c",
			want:  false,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := TokenExpired(tc.token, now); got != tc.want {
				t.Fatalf("TokenExpired() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestTokenExpiredWithoutExpClaim(t *testing.T) {
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{Subject: "session-1"}).
		SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	if TokenExpired(token, time.Now()) {
		t.Fatalf("token without exp claim must not report expired")
	}
}

// stubTokenStore implements tokenStore with overridable behaviour per test.
type stubTokenStore struct {
	tokenFn  func(ctx context.Context, sessionID string) (string, error)
	deleted  []string
	setCalls int
}

func (s *stubTokenStore) Token(ctx context.Context, sessionID string) (string, error) {
	if s.tokenFn == nil {
		return "", ErrNoToken
	}
	return s.tokenFn(ctx, sessionID)
}

func (s *stubTokenStore) SetToken(ctx context.Context, sessionID, token string) error {
	s.setCalls++
	return nil
}

func (s *stubTokenStore) Delete(ctx context.Context, sessionID string) error {
	s.deleted = append(s.deleted, sessionID)
	return nil
}

func TestTokenSourceDropsExpiredToken(t *testing.T) {
	now := time.Date(2026, time.March, 14, 10, 0, 0, 0, time.UTC)
	expired := signedToken(t, now.Add(-time.Minute))
	store := &stubTokenStore{
		tokenFn: func(ctx context.Context, sessionID string) (string, error) {
			return expired, nil
		},
	}
	source := &TokenSource{store: store, sessionID: "session-1", now: func() time.Time { return now }}

	token, err := source.Token(context.Background())
	if !errors.Is(err, gateway.ErrAuthenticationRequired) {
		t.Fatalf("expired token should report authentication required, got %v", err)
	}
	if token != "" {
		t.Fatalf("expired token must not be forwarded")
	}
	if len(store.deleted) != 1 || store.deleted[0] != "session-1" {
		t.Fatalf("dead token should be deleted, deleted = %v", store.deleted)
	}
}

func TestTokenSourceValidTokenPassesThrough(t *testing.T) {
	now := time.Date(2026, time.March, 14, 10, 0, 0, 0, time.UTC)
	valid := signedToken(t, now.Add(time.Hour))
	store := &stubTokenStore{
		tokenFn: func(ctx context.Context, sessionID string) (string, error) {
			return valid, nil
		},
	}
	source := &TokenSource{store: store, sessionID: "session-1", now: func() time.Time { return now }}

	token, err := source.Token(context.Background())
	if err != nil {
		t.Fatalf("Token: %v", err)
	}
	if token != valid {
		t.Fatalf("valid token should pass through unchanged")
	}
	if len(store.deleted) != 0 {
		t.Fatalf("valid token must not be deleted")
	}
}

func TestTokenSourceMissingTokenIsNotAnError(t *testing.T) {
	source := &TokenSource{store: &stubTokenStore{}, sessionID: "session-1", now: time.Now}

	token, err := source.Token(context.Background())
	if err != nil {
		t.Fatalf("a session without a token yet should not error, got %v", err)
	}
	if token != "" {
		t.Fatalf("token = %q, want empty", token)
	}
}

func TestContextTokenSourceDropsExpiredToken(t *testing.T) {
	now := time.Date(2026, time.March, 14, 10, 0, 0, 0, time.UTC)
	expired := signedToken(t, now.Add(-time.Second))
	store := &stubTokenStore{
		tokenFn: func(ctx context.Context, sessionID string) (string, error) {
			return expired, nil
		},
	}
	source := &ContextTokenSource{store: store, now: func() time.Time { return now }}

	ctx := requestctx.WithSessionID(context.Background(), "session-2")
	if _, err := source.Token(ctx); !errors.Is(err, gateway.ErrAuthenticationRequired) {
		t.Fatalf("expired token should report authentication required, got %v", err)
	}
	if len(store.deleted) != 1 || store.deleted[0] != "session-2" {
		t.Fatalf("dead token should be deleted for the context session, deleted = %v", store.deleted)
	}
}
