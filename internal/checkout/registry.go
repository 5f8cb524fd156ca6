package checkout

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ManagerFactory builds an ActiveOrderManager bound to one session.
type ManagerFactory func(sessionID string) (*ActiveOrderManager, error)

// RegistryDeps wires the dependencies for a Registry.
type RegistryDeps struct {
	Factory ManagerFactory
	Logger  *zap.Logger
	TTL     time.Duration
	Clock   func() time.Time
}

// Registry owns one ActiveOrderManager per session. Managers idle past the
// TTL are evicted; re-creation is cheap since all order state lives on the
// commerce API and is re-fetched on demand.
type Registry struct {
	factory ManagerFactory
	logger  *zap.Logger
	ttl     time.Duration
	now     func() time.Time

	mu      sync.Mutex
	entries map[string]*registryEntry
}

type registryEntry struct {
	manager  *ActiveOrderManager
	lastSeen time.Time
}

// NewRegistry constructs a registry validating required dependencies.
func NewRegistry(deps RegistryDeps) (*Registry, error) {
	if deps.Factory == nil {
		return nil, errors.New("checkout: manager factory is required")
	}
	if deps.TTL <= 0 {
		return nil, errors.New("checkout: manager TTL must be positive")
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Registry{
		factory: deps.Factory,
		logger:  logger,
		ttl:     deps.TTL,
		now:     func() time.Time { return clock().UTC() },
		entries: make(map[string]*registryEntry),
	}, nil
}

// Manager returns the session's manager, creating it on first use, and
// refreshes its idle timer.
func (r *Registry) Manager(sessionID string) (*ActiveOrderManager, error) {
	if sessionID == "" {
		return nil, errors.New("checkout: session id is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if entry, ok := r.entries[sessionID]; ok {
		entry.lastSeen = r.now()
		return entry.manager, nil
	}
	manager, err := r.factory(sessionID)
	if err != nil {
		return nil, err
	}
	r.entries[sessionID] = &registryEntry{manager: manager, lastSeen: r.now()}
	return manager, nil
}

// CleanupExpired removes managers idle past the TTL and returns how many were
// evicted.
func (r *Registry) CleanupExpired() int {
	cutoff := r.now().Add(-r.ttl)
	r.mu.Lock()
	defer r.mu.Unlock()
	removed := 0
	for id, entry := range r.entries {
		if entry.lastSeen.Before(cutoff) {
			delete(r.entries, id)
			removed++
		}
	}
	return removed
}

// Len returns the number of live managers.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// StartJanitor runs periodic eviction until ctx is cancelled.
func (r *Registry) StartJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = r.ttl / 4
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if removed := r.CleanupExpired(); removed > 0 {
					r.logger.Debug("evicted idle checkout managers",
						zap.Int("evicted", removed))
				}
			}
		}
	}()
}
