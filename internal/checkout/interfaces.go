package checkout

import (
	"context"
	"errors"
	"fmt"

	"github.com/sakara-commerce/storefront/internal/domain"
	"github.com/sakara-commerce/storefront/internal/gateway"
)

// OrderClient is the slice of the commerce API consumed by the checkout core.
// *gateway.Client satisfies it; tests substitute stubs.
type OrderClient interface {
	ActiveOrder(ctx context.Context) (*domain.Order, error)
	OrderByCode(ctx context.Context, code string) (*domain.Order, error)
	AddItemToOrder(ctx context.Context, variantID string, quantity int) (*domain.Order, error)
	RemoveOrderLine(ctx context.Context, lineID string) (*domain.Order, error)
	AdjustOrderLine(ctx context.Context, lineID string, quantity int) (*domain.Order, error)
	SetCustomerForOrder(ctx context.Context, email, firstName, lastName string) (*domain.Order, error)
	SetShippingAddress(ctx context.Context, input gateway.AddressInput) (*domain.Order, error)
	SetBillingAddress(ctx context.Context, input gateway.AddressInput) (*domain.Order, error)
	EligibleShippingMethods(ctx context.Context) ([]domain.ShippingMethod, error)
	SetShippingMethod(ctx context.Context, methodID string) (*domain.Order, error)
	EligiblePaymentMethods(ctx context.Context) ([]domain.PaymentMethodQuote, error)
	AddPaymentToOrder(ctx context.Context, methodCode string, metadata map[string]any) (*domain.Order, error)
	NextOrderStates(ctx context.Context) ([]domain.OrderState, error)
	TransitionOrderToState(ctx context.Context, state domain.OrderState) (*domain.Order, error)
	ApplyCouponCode(ctx context.Context, code string) (*domain.Order, error)
	RemoveCouponCode(ctx context.Context, code string) (*domain.Order, error)
}

var (
	// ErrActionInFlight indicates the same logical action is already being
	// submitted; duplicate submissions are rejected, not queued.
	ErrActionInFlight = errors.New("checkout: action already in flight")
	// ErrCouponNotApplicable indicates the commerce API accepted a coupon code
	// that produced no observable effect; the application was reverted.
	ErrCouponNotApplicable = errors.New("checkout: coupon accepted but not applicable")
	// ErrCustomerRequired indicates payment was attempted without a customer attached.
	ErrCustomerRequired = errors.New("checkout: customer required before payment")
	// ErrShippingAddressRequired indicates payment was attempted without a complete shipping address.
	ErrShippingAddressRequired = errors.New("checkout: shipping address required before payment")
	// ErrShippingMethodRequired indicates payment was attempted without a shipping method.
	ErrShippingMethodRequired = errors.New("checkout: shipping method required before payment")
	// ErrPaymentMethodRequired indicates no payment method was selected.
	ErrPaymentMethodRequired = errors.New("checkout: payment method required")
	// ErrShippingSelectionStale indicates the destination changed after the
	// shipping method was chosen; the method must be re-selected.
	ErrShippingSelectionStale = errors.New("checkout: shipping selection invalidated by destination change")
	// ErrTransitionNotAvailable indicates the commerce API does not list the
	// requested lifecycle transition as reachable.
	ErrTransitionNotAvailable = errors.New("checkout: order state transition not available")
)

// ValidationError reports a client-side form failure. The commerce API is
// never called for these.
type ValidationError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("checkout: invalid %s: %s", e.Field, e.Message)
}

// AsValidationError unwraps err into a *ValidationError when possible.
func AsValidationError(err error) (*ValidationError, bool) {
	var vErr *ValidationError
	if errors.As(err, &vErr) {
		return vErr, true
	}
	return nil, false
}
