package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/redis/go-redis/v9"
)

// ErrNoToken indicates the session has no commerce API token yet.
var ErrNoToken = errors.New("session: no token")

const tokenKeyPrefix = "storefront:session:token:"

// Store persists the opaque commerce API auth token per storefront session.
// The storefront treats the token as external shared state: read before each
// gateway call, written back when the gateway rotates it.
type Store struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// NewStore constructs a redis-backed session token store.
func NewStore(client redis.UniversalClient, ttl time.Duration) (*Store, error) {
	if client == nil {
		return nil, errors.New("session: redis client is required")
	}
	if ttl <= 0 {
		ttl = 30 * 24 * time.Hour
	}
	return &Store{client: client, ttl: ttl}, nil
}

// Token returns the auth token for the session, ErrNoToken when absent.
func (s *Store) Token(ctx context.Context, sessionID string) (string, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return "", ErrNoToken
	}
	val, err := s.client.Get(ctx, tokenKeyPrefix+sessionID).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNoToken
	}
	if err != nil {
		return "", fmt.Errorf("session: read token: %w", err)
	}
	return val, nil
}

// SetToken stores the auth token for the session, refreshing its TTL.
func (s *Store) SetToken(ctx context.Context, sessionID, token string) error {
	sessionID = strings.TrimSpace(sessionID)
	token = strings.TrimSpace(token)
	if sessionID == "" || token == "" {
		return errors.New("session: session id and token are required")
	}
	if err := s.client.Set(ctx, tokenKeyPrefix+sessionID, token, s.ttl).Err(); err != nil {
		return fmt.Errorf("session: write token: %w", err)
	}
	return nil
}

// Delete removes the session's token, used when the commerce API rejects it.
func (s *Store) Delete(ctx context.Context, sessionID string) error {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil
	}
	if err := s.client.Del(ctx, tokenKeyPrefix+sessionID).Err(); err != nil {
		return fmt.Errorf("session: delete token: %w", err)
	}
	return nil
}

// TokenExpired reports whether the token parses as a JWT whose expiry has
// passed. Opaque tokens always report false; verification is the commerce
// API's job, this only short-circuits calls that are certain to fail.
func TokenExpired(token string, now time.Time) bool {
	token = strings.TrimSpace(token)
	if token == "" || strings.Count(token, ".") != 2 {
		return false
	}
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return false
	}
	if claims.ExpiresAt == nil {
		return false
	}
	return claims.ExpiresAt.Time.Before(now.UTC())
}
