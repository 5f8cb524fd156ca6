package checkout

import (
	"testing"
	"time"
)

func newTestRegistry(t *testing.T, ttl time.Duration, clock func() time.Time) *Registry {
	t.Helper()
	registry, err := NewRegistry(RegistryDeps{
		Factory: func(sessionID string) (*ActiveOrderManager, error) {
			return NewActiveOrderManager(ActiveOrderManagerDeps{Client: &stubOrderClient{}})
		},
		TTL:   ttl,
		Clock: clock,
	})
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	return registry
}

func TestRegistryReusesManagerPerSession(t *testing.T) {
	registry := newTestRegistry(t, time.Hour, nil)

	first, err := registry.Manager("session-a")
	if err != nil {
		t.Fatalf("Manager: %v", err)
	}
	second, err := registry.Manager("session-a")
	if err != nil {
		t.Fatalf("Manager: %v", err)
	}
	if first != second {
		t.Fatalf("same session should get the same manager")
	}

	other, err := registry.Manager("session-b")
	if err != nil {
		t.Fatalf("Manager: %v", err)
	}
	if other == first {
		t.Fatalf("different sessions must not share a manager")
	}
	if registry.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", registry.Len())
	}
}

func TestRegistryRejectsEmptySession(t *testing.T) {
	registry := newTestRegistry(t, time.Hour, nil)
	if _, err := registry.Manager(""); err == nil {
		t.Fatalf("empty session id should be rejected")
	}
}

func TestRegistryEvictsIdleManagers(t *testing.T) {
	current := time.Date(2026, time.March, 14, 10, 0, 0, 0, time.UTC)
	registry := newTestRegistry(t, time.Hour, func() time.Time { return current })

	if _, err := registry.Manager("session-a"); err != nil {
		t.Fatalf("Manager: %v", err)
	}
	if _, err := registry.Manager("session-b"); err != nil {
		t.Fatalf("Manager: %v", err)
	}

	// session-b stays active; session-a goes idle past the TTL.
	current = current.Add(45 * time.Minute)
	if _, err := registry.Manager("session-b"); err != nil {
		t.Fatalf("Manager: %v", err)
	}
	current = current.Add(30 * time.Minute)

	if removed := registry.CleanupExpired(); removed != 1 {
		t.Fatalf("CleanupExpired() = %d, want 1", removed)
	}
	if registry.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", registry.Len())
	}

	// A fresh manager is created transparently for the evicted session.
	fresh, err := registry.Manager("session-a")
	if err != nil {
		t.Fatalf("Manager: %v", err)
	}
	if fresh == nil {
		t.Fatalf("expected a fresh manager")
	}
}
