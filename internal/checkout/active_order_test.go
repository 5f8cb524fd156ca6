package checkout

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sakara-commerce/storefront/internal/domain"
	"github.com/sakara-commerce/storefront/internal/gateway"
)

func newTestManager(t *testing.T, client OrderClient) *ActiveOrderManager {
	t.Helper()
	manager, err := NewActiveOrderManager(ActiveOrderManagerDeps{
		Client: client,
		Clock:  func() time.Time { return time.Date(2026, time.March, 14, 10, 0, 0, 0, time.UTC) },
	})
	if err != nil {
		t.Fatalf("NewActiveOrderManager: %v", err)
	}
	return manager
}

func TestGetActiveOrderDeduplicatesConcurrentFetches(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	client := &stubOrderClient{
		activeOrderFn: func(ctx context.Context) (*domain.Order, error) {
			calls.Add(1)
			<-release
			return orderFixture(), nil
		},
	}
	manager := newTestManager(t, client)

	const concurrency = 8
	var wg sync.WaitGroup
	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := manager.GetActiveOrder(context.Background()); err != nil {
				t.Errorf("GetActiveOrder: %v", err)
			}
		}()
	}

	// Give the goroutines a moment to pile onto the in-flight call.
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	if got := calls.Load(); got != 1 {
		t.Fatalf("upstream calls = %d, want 1", got)
	}
	if manager.Snapshot() == nil {
		t.Fatalf("snapshot not installed after fetch")
	}
}

func TestSlowFetchDoesNotOverwriteNewerMutation(t *testing.T) {
	fetchStarted := make(chan struct{})
	fetchRelease := make(chan struct{})
	stale := orderFixture(func(o *domain.Order) { o.Lines[0].Quantity = 1 })
	adjusted := orderFixture(func(o *domain.Order) { o.Lines[0].Quantity = 5 })

	client := &stubOrderClient{
		activeOrderFn: func(ctx context.Context) (*domain.Order, error) {
			close(fetchStarted)
			<-fetchRelease
			return stale, nil
		},
		adjustLineFn: func(ctx context.Context, lineID string, quantity int) (*domain.Order, error) {
			return adjusted, nil
		},
	}
	manager := newTestManager(t, client)

	done := make(chan *domain.Order, 1)
	go func() {
		order, err := manager.GetActiveOrder(context.Background())
		if err != nil {
			t.Errorf("GetActiveOrder: %v", err)
		}
		done <- order
	}()
	<-fetchStarted

	// The mutation completes while the fetch response is still on the wire.
	if _, err := manager.AdjustLine(context.Background(), "line-1", 5); err != nil {
		t.Fatalf("AdjustLine: %v", err)
	}
	close(fetchRelease)

	fetched := <-done
	if got := manager.Snapshot().Lines[0].Quantity; got != 5 {
		t.Fatalf("snapshot quantity = %d, want 5: superseded fetch must not overwrite the mutation", got)
	}
	if fetched == nil || fetched.Lines[0].Quantity != 5 {
		t.Fatalf("superseded fetch should return the installed snapshot")
	}
}

func TestNewOrderResetsStepTracking(t *testing.T) {
	settled := orderFixture(withCustomer, withShippingAddress("dest-1"), withShippingLine,
		func(o *domain.Order) { o.State = domain.OrderStatePaymentSettled })
	fresh := orderFixture(func(o *domain.Order) { o.ID = "order-2"; o.Code = "SO1002" })

	client := &stubOrderClient{
		activeOrderFn: func(ctx context.Context) (*domain.Order, error) { return settled, nil },
		addItemFn: func(ctx context.Context, variantID string, quantity int) (*domain.Order, error) {
			return fresh, nil
		},
	}
	manager := newTestManager(t, client)

	if _, err := manager.GetActiveOrder(context.Background()); err != nil {
		t.Fatalf("GetActiveOrder: %v", err)
	}
	if manager.Steps().Current() != StepPayment {
		t.Fatalf("fully prepared order should sit on the payment step")
	}

	// A new cart starts; its steps must not inherit the old order's progress.
	if _, err := manager.AddItem(context.Background(), "variant-1", 1); err != nil {
		t.Fatalf("AddItem: %v", err)
	}
	steps := manager.Steps()
	if steps.Current() != StepContact {
		t.Fatalf("Current() = %q, want contact for a fresh order", steps.Current())
	}
	for _, step := range []Step{StepContact, StepAddress, StepDelivery, StepPayment} {
		if steps.Status(step) == StatusCompleted {
			t.Fatalf("step %s should not be completed on a fresh order", step)
		}
	}
}

func TestDiscardDropsOrderState(t *testing.T) {
	client := &stubOrderClient{
		activeOrderFn: func(ctx context.Context) (*domain.Order, error) {
			return orderFixture(withCustomer, withShippingAddress("dest-1"), withShippingLine), nil
		},
	}
	manager := newTestManager(t, client)
	if _, err := manager.GetActiveOrder(context.Background()); err != nil {
		t.Fatalf("GetActiveOrder: %v", err)
	}

	manager.Discard()
	if manager.Snapshot() != nil {
		t.Fatalf("snapshot should be dropped")
	}
	if manager.Steps() != nil {
		t.Fatalf("step tracking should be dropped")
	}
	if manager.ShippingSelectionValid() {
		t.Fatalf("no shipping selection should survive a discard")
	}
}

func TestMutationUpdatesSnapshotAndNotifiesObservers(t *testing.T) {
	updated := orderFixture(func(o *domain.Order) { o.Lines[0].Quantity = 3 })
	client := &stubOrderClient{
		addItemFn: func(ctx context.Context, variantID string, quantity int) (*domain.Order, error) {
			return updated, nil
		},
	}
	manager := newTestManager(t, client)

	var notified []*domain.Order
	manager.Subscribe(func(order *domain.Order) {
		notified = append(notified, order)
	})

	order, err := manager.AddItem(context.Background(), "variant-1", 1)
	if err != nil {
		t.Fatalf("AddItem: %v", err)
	}
	if order != updated {
		t.Fatalf("AddItem returned unexpected order")
	}
	if manager.Snapshot() != updated {
		t.Fatalf("snapshot not updated after mutation")
	}
	if len(notified) != 1 || notified[0] != updated {
		t.Fatalf("observer notified %d times, want 1", len(notified))
	}
}

func TestMutationErrorKeepsPreviousSnapshot(t *testing.T) {
	initial := orderFixture()
	client := &stubOrderClient{
		activeOrderFn: func(ctx context.Context) (*domain.Order, error) { return initial, nil },
		addItemFn: func(ctx context.Context, variantID string, quantity int) (*domain.Order, error) {
			return nil, &gateway.DomainError{Code: gateway.CodeInsufficientStock, Message: "out of stock"}
		},
	}
	manager := newTestManager(t, client)
	if _, err := manager.GetActiveOrder(context.Background()); err != nil {
		t.Fatalf("GetActiveOrder: %v", err)
	}

	_, err := manager.AddItem(context.Background(), "variant-1", 1)
	if err == nil {
		t.Fatalf("AddItem should fail")
	}
	if _, ok := gateway.AsDomainError(err); !ok {
		t.Fatalf("error should pass through as a domain error, got %v", err)
	}
	if manager.Snapshot() != initial {
		t.Fatalf("failed mutation must not overwrite the snapshot")
	}
}

func TestAdjustLineClampsToOne(t *testing.T) {
	var gotQuantity int
	client := &stubOrderClient{
		adjustLineFn: func(ctx context.Context, lineID string, quantity int) (*domain.Order, error) {
			gotQuantity = quantity
			return orderFixture(), nil
		},
	}
	manager := newTestManager(t, client)

	if _, err := manager.AdjustLine(context.Background(), "line-1", -3); err != nil {
		t.Fatalf("AdjustLine: %v", err)
	}
	if gotQuantity != 1 {
		t.Fatalf("quantity sent upstream = %d, want 1", gotQuantity)
	}
}

func TestAdjustLineAlreadyAtOneSkipsMutation(t *testing.T) {
	atOne := orderFixture(func(o *domain.Order) { o.Lines[0].Quantity = 1 })
	mutated := false
	client := &stubOrderClient{
		activeOrderFn: func(ctx context.Context) (*domain.Order, error) { return atOne, nil },
		adjustLineFn: func(ctx context.Context, lineID string, quantity int) (*domain.Order, error) {
			mutated = true
			return atOne, nil
		},
	}
	manager := newTestManager(t, client)
	if _, err := manager.GetActiveOrder(context.Background()); err != nil {
		t.Fatalf("GetActiveOrder: %v", err)
	}

	order, err := manager.AdjustLine(context.Background(), "line-1", 0)
	if err != nil {
		t.Fatalf("AdjustLine: %v", err)
	}
	if mutated {
		t.Fatalf("no mutation should be issued when the line is already at 1")
	}
	if order != atOne {
		t.Fatalf("should return the current snapshot")
	}
}

func TestDuplicateActionRejected(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	client := &stubOrderClient{
		addItemFn: func(ctx context.Context, variantID string, quantity int) (*domain.Order, error) {
			close(started)
			<-release
			return orderFixture(), nil
		},
	}
	manager := newTestManager(t, client)

	done := make(chan error, 1)
	go func() {
		_, err := manager.AddItem(context.Background(), "variant-1", 1)
		done <- err
	}()
	<-started

	_, err := manager.RemoveLine(context.Background(), "line-1")
	if !errors.Is(err, ErrActionInFlight) {
		t.Fatalf("concurrent line action should report ErrActionInFlight, got %v", err)
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("first action failed: %v", err)
	}
}

func TestSetCustomerValidation(t *testing.T) {
	manager := newTestManager(t, &stubOrderClient{})

	tests := []struct {
		name  string
		email string
		first string
		last  string
		field string
	}{
		{"missing email", "", "Dewi", "Santoso", "emailAddress"},
		{"malformed email", "not-an-email", "Dewi", "Santoso", "emailAddress"},
		{"missing first name", "dewi@example.com", "", "Santoso", "firstName"},
		{"missing last name", "dewi@example.com", "Dewi", "", "lastName"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := manager.SetCustomer(context.Background(), tc.email, tc.first, tc.last)
			vErr, ok := AsValidationError(err)
			if !ok {
				t.Fatalf("want validation error, got %v", err)
			}
			if vErr.Field != tc.field {
				t.Fatalf("field = %q, want %q", vErr.Field, tc.field)
			}
		})
	}
}

func TestDestinationChangeInvalidatesShippingSelection(t *testing.T) {
	withMethod := orderFixture(withCustomer, withShippingAddress("dest-1"), withShippingLine)
	movedDestination := orderFixture(withCustomer, withShippingAddress("dest-2"), withShippingLine)

	client := &stubOrderClient{
		setShippingMethodFn: func(ctx context.Context, methodID string) (*domain.Order, error) {
			return withMethod, nil
		},
		setShippingAddressFn: func(ctx context.Context, input gateway.AddressInput) (*domain.Order, error) {
			return movedDestination, nil
		},
	}
	manager := newTestManager(t, client)

	if _, err := manager.SetShippingMethod(context.Background(), "method-1"); err != nil {
		t.Fatalf("SetShippingMethod: %v", err)
	}
	if !manager.ShippingSelectionValid() {
		t.Fatalf("selection should be valid right after choosing a method")
	}

	if _, err := manager.SetShippingAddress(context.Background(), domain.Address{
		FullName:      "Dewi Santoso",
		StreetLine1:   "Jl. Thamrin 5",
		CountryCode:   "ID",
		DestinationID: "dest-2",
	}); err != nil {
		t.Fatalf("SetShippingAddress: %v", err)
	}

	if manager.ShippingSelectionValid() {
		t.Fatalf("destination change must invalidate the shipping selection")
	}

	// Re-selecting clears the staleness.
	withMethod2 := orderFixture(withCustomer, withShippingAddress("dest-2"), withShippingLine)
	client.setShippingMethodFn = func(ctx context.Context, methodID string) (*domain.Order, error) {
		return withMethod2, nil
	}
	if _, err := manager.SetShippingMethod(context.Background(), "method-2"); err != nil {
		t.Fatalf("SetShippingMethod: %v", err)
	}
	if !manager.ShippingSelectionValid() {
		t.Fatalf("re-selection should restore validity")
	}
}

func TestSnapshotRederivesSteps(t *testing.T) {
	ready := orderFixture(withCustomer, withShippingAddress("dest-1"))
	client := &stubOrderClient{
		activeOrderFn: func(ctx context.Context) (*domain.Order, error) { return ready, nil },
	}
	manager := newTestManager(t, client)

	if _, err := manager.GetActiveOrder(context.Background()); err != nil {
		t.Fatalf("GetActiveOrder: %v", err)
	}

	steps := manager.Steps()
	if steps == nil {
		t.Fatalf("steps should exist after first fetch")
	}
	if steps.Current() != StepDelivery {
		t.Fatalf("Current() = %q, want delivery", steps.Current())
	}
}
