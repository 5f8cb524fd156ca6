package session

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/sakara-commerce/storefront/internal/gateway"
	"github.com/sakara-commerce/storefront/internal/platform/requestctx"
)

// Middleware assigns a session identifier cookie to every request and stores
// it on the request context. The identifier keys both the redis token store
// and the per-session checkout state.
func Middleware(cookieName string, ttl time.Duration, secure bool) func(http.Handler) http.Handler {
	if cookieName == "" {
		cookieName = "storefront_session"
	}
	if ttl <= 0 {
		ttl = 30 * 24 * time.Hour
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sessionID := ""
			if c, err := r.Cookie(cookieName); err == nil {
				sessionID = c.Value
			}
			if sessionID == "" || uuid.Validate(sessionID) != nil {
				sessionID = uuid.NewString()
				http.SetCookie(w, &http.Cookie{
					Name:     cookieName,
					Value:    sessionID,
					Path:     "/",
					HttpOnly: true,
					Secure:   secure,
					SameSite: http.SameSiteLaxMode,
					Expires:  time.Now().Add(ttl),
				})
			}
			ctx := requestctx.WithSessionID(r.Context(), sessionID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// tokenStore is the Store surface the token source adapters consume.
type tokenStore interface {
	Token(ctx context.Context, sessionID string) (string, error)
	SetToken(ctx context.Context, sessionID, token string) error
	Delete(ctx context.Context, sessionID string) error
}

// resolveToken reads the session's token, dropping tokens whose JWT expiry
// already passed: forwarding one would only buy a guaranteed upstream
// rejection, so the dead token is deleted and the call short-circuits to the
// authentication-required category without a round trip.
func resolveToken(ctx context.Context, store tokenStore, sessionID string, now func() time.Time) (string, error) {
	token, err := store.Token(ctx, sessionID)
	switch {
	case errors.Is(err, ErrNoToken):
		return "", nil
	case err != nil:
		return "", err
	}
	if TokenExpired(token, now()) {
		_ = store.Delete(ctx, sessionID)
		return "", gateway.ErrAuthenticationRequired
	}
	return token, nil
}

// TokenSource binds the store to one session so the gateway client can read
// and persist tokens without knowing about cookies.
type TokenSource struct {
	store     tokenStore
	sessionID string
	now       func() time.Time
}

// NewTokenSource constructs a TokenSource for the given session.
func NewTokenSource(store *Store, sessionID string) *TokenSource {
	t := &TokenSource{sessionID: sessionID, now: time.Now}
	if store != nil {
		t.store = store
	}
	return t
}

// Token implements gateway.TokenSource.
func (t *TokenSource) Token(ctx context.Context) (string, error) {
	if t == nil || t.store == nil {
		return "", nil
	}
	return resolveToken(ctx, t.store, t.sessionID, t.now)
}

// StoreToken implements gateway.TokenSource.
func (t *TokenSource) StoreToken(ctx context.Context, token string) error {
	if t == nil || t.store == nil {
		return nil
	}
	return t.store.SetToken(ctx, t.sessionID, token)
}

// ContextTokenSource resolves the session id from the request context on every
// call, for clients shared across sessions.
type ContextTokenSource struct {
	store tokenStore
	now   func() time.Time
}

// NewContextTokenSource constructs a ContextTokenSource over the store.
func NewContextTokenSource(store *Store) *ContextTokenSource {
	t := &ContextTokenSource{now: time.Now}
	if store != nil {
		t.store = store
	}
	return t
}

// Token implements gateway.TokenSource using the context's session id.
func (t *ContextTokenSource) Token(ctx context.Context) (string, error) {
	if t == nil || t.store == nil {
		return "", nil
	}
	sid := requestctx.SessionID(ctx)
	if sid == "" {
		return "", nil
	}
	return resolveToken(ctx, t.store, sid, t.now)
}

// StoreToken implements gateway.TokenSource using the context's session id.
func (t *ContextTokenSource) StoreToken(ctx context.Context, token string) error {
	if t == nil || t.store == nil {
		return nil
	}
	sid := requestctx.SessionID(ctx)
	if sid == "" {
		return nil
	}
	return t.store.SetToken(ctx, sid, token)
}
