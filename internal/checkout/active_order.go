package checkout

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sakara-commerce/storefront/internal/domain"
	"github.com/sakara-commerce/storefront/internal/gateway"
)

// Logical action keys used for double-submit guarding. Each key admits at
// most one in-flight submission.
const (
	actionLine     = "line"
	actionCustomer = "customer"
	actionAddress  = "address"
	actionShipping = "shipping"
	actionCoupon   = "coupon"
	actionPayment  = "payment"
)

// Observer is notified synchronously after every accepted snapshot change,
// inside the mutation's critical section. Implementations must not call back
// into the manager.
type Observer func(*domain.Order)

// ActiveOrderManagerDeps wires the dependencies for an ActiveOrderManager.
type ActiveOrderManagerDeps struct {
	Client OrderClient
	Logger *zap.Logger
	Clock  func() time.Time
}

// ActiveOrderManager is the single source of truth for the session's active
// order. It is the only component permitted to invoke mutating commerce API
// operations; every mutation is serialized so responses apply in submission
// order and a superseded response can never overwrite a newer snapshot.
// Server totals are authoritative; the manager never computes totals itself.
type ActiveOrderManager struct {
	client OrderClient
	logger *zap.Logger
	now    func() time.Time

	mu        sync.Mutex
	snapshot  *domain.Order
	steps     *StepMachine
	observers []Observer
	// version counts snapshot installs; a fetch result is discarded when the
	// version moved while the fetch was on the wire.
	version uint64

	// shippingChosenFor records the destination id the current shipping
	// method was selected under; a later destination change invalidates it.
	shippingChosenFor      string
	shippingSelectionStale bool

	fetchMu  sync.Mutex
	inflight *inflightFetch

	actionMu sync.Mutex
	actions  map[string]struct{}
}

type inflightFetch struct {
	done  chan struct{}
	order *domain.Order
	err   error
}

// NewActiveOrderManager constructs a manager validating required dependencies.
func NewActiveOrderManager(deps ActiveOrderManagerDeps) (*ActiveOrderManager, error) {
	if deps.Client == nil {
		return nil, errors.New("checkout: order client is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	return &ActiveOrderManager{
		client:  deps.Client,
		logger:  logger,
		now:     func() time.Time { return clock().UTC() },
		actions: make(map[string]struct{}),
	}, nil
}

// Subscribe registers an observer for snapshot changes (e.g. the cart badge).
func (m *ActiveOrderManager) Subscribe(obs Observer) {
	if obs == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.observers = append(m.observers, obs)
}

// Snapshot returns the last confirmed order snapshot without touching the
// network, nil when no order has been fetched yet.
func (m *ActiveOrderManager) Snapshot() *domain.Order {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshot
}

// Steps exposes the step machine derived from the current snapshot, nil
// before the first fetch.
func (m *ActiveOrderManager) Steps() *StepMachine {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.steps
}

// GetActiveOrder returns the current order, fetching it from the commerce API
// when needed. Concurrent callers share a single outstanding fetch.
func (m *ActiveOrderManager) GetActiveOrder(ctx context.Context) (*domain.Order, error) {
	m.fetchMu.Lock()
	if call := m.inflight; call != nil {
		m.fetchMu.Unlock()
		select {
		case <-call.done:
			return call.order, call.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	call := &inflightFetch{done: make(chan struct{})}
	m.inflight = call
	m.fetchMu.Unlock()

	m.mu.Lock()
	started := m.version
	m.mu.Unlock()

	order, err := m.client.ActiveOrder(ctx)
	if err == nil {
		m.mu.Lock()
		if m.version == started {
			m.setSnapshotLocked(order)
		} else {
			// A mutation confirmed while this fetch was on the wire; the
			// installed snapshot is newer than the fetch result.
			order = m.snapshot
		}
		m.mu.Unlock()
	}

	call.order, call.err = order, err
	close(call.done)

	m.fetchMu.Lock()
	m.inflight = nil
	m.fetchMu.Unlock()

	return order, err
}

// CompleteStep records an explicit forward transition of the step machine.
func (m *ActiveOrderManager) CompleteStep(step Step) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.steps == nil {
		m.steps = NewStepMachine(m.snapshot)
	}
	m.steps.Complete(step)
}

// GoToStep re-enters a completed step ("Change").
func (m *ActiveOrderManager) GoToStep(step Step) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.steps == nil {
		m.steps = NewStepMachine(m.snapshot)
	}
	return m.steps.GoTo(step)
}

// AddItem adds quantity units of the variant to the active order.
func (m *ActiveOrderManager) AddItem(ctx context.Context, variantID string, quantity int) (*domain.Order, error) {
	variantID = strings.TrimSpace(variantID)
	if variantID == "" {
		return nil, &ValidationError{Field: "productVariantId", Message: "required"}
	}
	if quantity < 1 {
		quantity = 1
	}
	return m.mutate(ctx, actionLine, func(ctx context.Context) (*domain.Order, error) {
		return m.client.AddItemToOrder(ctx, variantID, quantity)
	})
}

// RemoveLine deletes an order line. Reducing a line to zero must go through
// removal, never through adjustment.
func (m *ActiveOrderManager) RemoveLine(ctx context.Context, lineID string) (*domain.Order, error) {
	lineID = strings.TrimSpace(lineID)
	if lineID == "" {
		return nil, &ValidationError{Field: "orderLineId", Message: "required"}
	}
	return m.mutate(ctx, actionLine, func(ctx context.Context) (*domain.Order, error) {
		return m.client.RemoveOrderLine(ctx, lineID)
	})
}

// AdjustLine sets a line's quantity. Quantities below 1 clamp to 1, and when
// the line is already at 1 no mutation is issued at all.
func (m *ActiveOrderManager) AdjustLine(ctx context.Context, lineID string, quantity int) (*domain.Order, error) {
	lineID = strings.TrimSpace(lineID)
	if lineID == "" {
		return nil, &ValidationError{Field: "orderLineId", Message: "required"}
	}
	if quantity < 1 {
		quantity = 1
		if line := m.findLine(lineID); line != nil && line.Quantity == 1 {
			return m.Snapshot(), nil
		}
	}
	return m.mutate(ctx, actionLine, func(ctx context.Context) (*domain.Order, error) {
		return m.client.AdjustOrderLine(ctx, lineID, quantity)
	})
}

// SetCustomer attaches guest contact details to the order.
func (m *ActiveOrderManager) SetCustomer(ctx context.Context, email, firstName, lastName string) (*domain.Order, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, &ValidationError{Field: "emailAddress", Message: "required"}
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, &ValidationError{Field: "emailAddress", Message: "malformed"}
	}
	if strings.TrimSpace(firstName) == "" {
		return nil, &ValidationError{Field: "firstName", Message: "required"}
	}
	if strings.TrimSpace(lastName) == "" {
		return nil, &ValidationError{Field: "lastName", Message: "required"}
	}
	return m.mutate(ctx, actionCustomer, func(ctx context.Context) (*domain.Order, error) {
		return m.client.SetCustomerForOrder(ctx, email, strings.TrimSpace(firstName), strings.TrimSpace(lastName))
	})
}

// SetShippingAddress overwrites the shipping address wholesale. A destination
// change invalidates the previously selected shipping method: the customer
// must re-select from the freshly computed eligible set.
func (m *ActiveOrderManager) SetShippingAddress(ctx context.Context, addr domain.Address) (*domain.Order, error) {
	if err := validateAddress(addr); err != nil {
		return nil, err
	}
	order, err := m.mutate(ctx, actionAddress, func(ctx context.Context) (*domain.Order, error) {
		return m.client.SetShippingAddress(ctx, gateway.AddressInputFromDomain(addr))
	})
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	if m.shippingChosenFor != "" && m.shippingChosenFor != order.DestinationID() {
		m.shippingSelectionStale = true
	}
	m.mu.Unlock()
	return order, nil
}

// SetBillingAddress overwrites the billing address wholesale.
func (m *ActiveOrderManager) SetBillingAddress(ctx context.Context, addr domain.Address) (*domain.Order, error) {
	if err := validateAddress(addr); err != nil {
		return nil, err
	}
	return m.mutate(ctx, actionAddress, func(ctx context.Context) (*domain.Order, error) {
		return m.client.SetBillingAddress(ctx, gateway.AddressInputFromDomain(addr))
	})
}

// EligibleShippingMethods returns the delivery options for the current
// destination. The result is derived state and is never cached across
// destination changes.
func (m *ActiveOrderManager) EligibleShippingMethods(ctx context.Context) ([]domain.ShippingMethod, error) {
	return m.client.EligibleShippingMethods(ctx)
}

// SetShippingMethod binds the order to the chosen method and records the
// destination the choice was made under.
func (m *ActiveOrderManager) SetShippingMethod(ctx context.Context, methodID string) (*domain.Order, error) {
	methodID = strings.TrimSpace(methodID)
	if methodID == "" {
		return nil, &ValidationError{Field: "shippingMethodId", Message: "required"}
	}
	order, err := m.mutate(ctx, actionShipping, func(ctx context.Context) (*domain.Order, error) {
		return m.client.SetShippingMethod(ctx, methodID)
	})
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	m.shippingChosenFor = order.DestinationID()
	m.shippingSelectionStale = false
	m.mu.Unlock()
	return order, nil
}

// ShippingSelectionValid reports whether the order's shipping method is still
// valid for its destination.
func (m *ActiveOrderManager) ShippingSelectionValid() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.snapshot == nil || !m.snapshot.HasShippingLine() {
		return false
	}
	return !m.shippingSelectionStale
}

// EligiblePaymentMethods lists payment methods for the current order.
func (m *ActiveOrderManager) EligiblePaymentMethods(ctx context.Context) ([]domain.PaymentMethodQuote, error) {
	return m.client.EligiblePaymentMethods(ctx)
}

// NextOrderStates queries the reachable lifecycle transitions.
func (m *ActiveOrderManager) NextOrderStates(ctx context.Context) ([]domain.OrderState, error) {
	return m.client.NextOrderStates(ctx)
}

// TransitionToState moves the order to the requested lifecycle state.
func (m *ActiveOrderManager) TransitionToState(ctx context.Context, state domain.OrderState) (*domain.Order, error) {
	return m.mutate(ctx, actionPayment, func(ctx context.Context) (*domain.Order, error) {
		return m.client.TransitionOrderToState(ctx, state)
	})
}

// AddPayment submits one payment attempt against the order.
func (m *ActiveOrderManager) AddPayment(ctx context.Context, methodCode string, metadata map[string]any) (*domain.Order, error) {
	return m.mutate(ctx, actionPayment, func(ctx context.Context) (*domain.Order, error) {
		return m.client.AddPaymentToOrder(ctx, methodCode, metadata)
	})
}

// RemoveCoupon removes a previously applied coupon code.
func (m *ActiveOrderManager) RemoveCoupon(ctx context.Context, code string) (*domain.Order, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, &ValidationError{Field: "couponCode", Message: "required"}
	}
	return m.mutate(ctx, actionCoupon, func(ctx context.Context) (*domain.Order, error) {
		return m.client.RemoveCouponCode(ctx, code)
	})
}

// mutate runs one gateway mutation under the manager's serialization lock and
// installs the returned aggregate as the new snapshot. Typed domain errors
// pass through unchanged and never retry.
func (m *ActiveOrderManager) mutate(ctx context.Context, action string, fn func(context.Context) (*domain.Order, error)) (*domain.Order, error) {
	if err := m.begin(action); err != nil {
		return nil, err
	}
	defer m.end(action)

	m.mu.Lock()
	defer m.mu.Unlock()

	order, err := fn(ctx)
	if err != nil {
		return nil, err
	}
	m.setSnapshotLocked(order)
	return order, nil
}

// setSnapshotLocked installs a snapshot, re-derives step state synchronously,
// and notifies observers. Step and shipping tracking belong to one order: a
// snapshot carrying a different order id starts both over. Caller holds m.mu.
func (m *ActiveOrderManager) setSnapshotLocked(order *domain.Order) {
	m.version++
	prev := m.snapshot
	m.snapshot = order
	if order == nil {
		m.steps = nil
		m.shippingChosenFor = ""
		m.shippingSelectionStale = false
		return
	}
	if m.steps == nil || prev == nil || prev.ID != order.ID {
		m.steps = NewStepMachine(order)
		m.shippingChosenFor = ""
		m.shippingSelectionStale = false
	} else {
		m.steps.Rederive(order)
	}
	for _, obs := range m.observers {
		obs(order)
	}
}

// Discard drops the session's notion of the current order, used once a
// terminal state is reached and the customer moves to the confirmation view.
func (m *ActiveOrderManager) Discard() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.version++
	m.snapshot = nil
	m.steps = nil
	m.shippingChosenFor = ""
	m.shippingSelectionStale = false
}

func (m *ActiveOrderManager) begin(action string) error {
	m.actionMu.Lock()
	defer m.actionMu.Unlock()
	if _, busy := m.actions[action]; busy {
		return ErrActionInFlight
	}
	m.actions[action] = struct{}{}
	return nil
}

func (m *ActiveOrderManager) end(action string) {
	m.actionMu.Lock()
	defer m.actionMu.Unlock()
	delete(m.actions, action)
}

func (m *ActiveOrderManager) findLine(lineID string) *domain.OrderLine {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.snapshot == nil {
		return nil
	}
	for i := range m.snapshot.Lines {
		if m.snapshot.Lines[i].ID == lineID {
			return &m.snapshot.Lines[i]
		}
	}
	return nil
}

func validateAddress(addr domain.Address) error {
	if strings.TrimSpace(addr.FullName) == "" {
		return &ValidationError{Field: "fullName", Message: "required"}
	}
	if strings.TrimSpace(addr.StreetLine1) == "" {
		return &ValidationError{Field: "streetLine1", Message: "required"}
	}
	if strings.TrimSpace(addr.CountryCode) == "" {
		return &ValidationError{Field: "countryCode", Message: "required"}
	}
	if strings.TrimSpace(addr.DestinationID) == "" && strings.TrimSpace(addr.PostalCode) == "" {
		return &ValidationError{Field: "postalCode", Message: "postal code or destination required"}
	}
	return nil
}
