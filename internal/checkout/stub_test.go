package checkout

import (
	"context"
	"errors"

	"github.com/sakara-commerce/storefront/internal/domain"
	"github.com/sakara-commerce/storefront/internal/gateway"
)

// stubOrderClient implements OrderClient with overridable behaviour per test.
type stubOrderClient struct {
	activeOrderFn             func(ctx context.Context) (*domain.Order, error)
	orderByCodeFn             func(ctx context.Context, code string) (*domain.Order, error)
	addItemFn                 func(ctx context.Context, variantID string, quantity int) (*domain.Order, error)
	removeLineFn              func(ctx context.Context, lineID string) (*domain.Order, error)
	adjustLineFn              func(ctx context.Context, lineID string, quantity int) (*domain.Order, error)
	setCustomerFn             func(ctx context.Context, email, firstName, lastName string) (*domain.Order, error)
	setShippingAddressFn      func(ctx context.Context, input gateway.AddressInput) (*domain.Order, error)
	setBillingAddressFn       func(ctx context.Context, input gateway.AddressInput) (*domain.Order, error)
	eligibleShippingMethodsFn func(ctx context.Context) ([]domain.ShippingMethod, error)
	setShippingMethodFn       func(ctx context.Context, methodID string) (*domain.Order, error)
	eligiblePaymentMethodsFn  func(ctx context.Context) ([]domain.PaymentMethodQuote, error)
	addPaymentFn              func(ctx context.Context, methodCode string, metadata map[string]any) (*domain.Order, error)
	nextOrderStatesFn         func(ctx context.Context) ([]domain.OrderState, error)
	transitionFn              func(ctx context.Context, state domain.OrderState) (*domain.Order, error)
	applyCouponFn             func(ctx context.Context, code string) (*domain.Order, error)
	removeCouponFn            func(ctx context.Context, code string) (*domain.Order, error)
}

var errStubNotConfigured = errors.New("stub: not configured")

func (s *stubOrderClient) ActiveOrder(ctx context.Context) (*domain.Order, error) {
	if s.activeOrderFn == nil {
		return nil, errStubNotConfigured
	}
	return s.activeOrderFn(ctx)
}

func (s *stubOrderClient) OrderByCode(ctx context.Context, code string) (*domain.Order, error) {
	if s.orderByCodeFn == nil {
		return nil, errStubNotConfigured
	}
	return s.orderByCodeFn(ctx, code)
}

func (s *stubOrderClient) AddItemToOrder(ctx context.Context, variantID string, quantity int) (*domain.Order, error) {
	if s.addItemFn == nil {
		return nil, errStubNotConfigured
	}
	return s.addItemFn(ctx, variantID, quantity)
}

func (s *stubOrderClient) RemoveOrderLine(ctx context.Context, lineID string) (*domain.Order, error) {
	if s.removeLineFn == nil {
		return nil, errStubNotConfigured
	}
	return s.removeLineFn(ctx, lineID)
}

func (s *stubOrderClient) AdjustOrderLine(ctx context.Context, lineID string, quantity int) (*domain.Order, error) {
	if s.adjustLineFn == nil {
		return nil, errStubNotConfigured
	}
	return s.adjustLineFn(ctx, lineID, quantity)
}

func (s *stubOrderClient) SetCustomerForOrder(ctx context.Context, email, firstName, lastName string) (*domain.Order, error) {
	if s.setCustomerFn == nil {
		return nil, errStubNotConfigured
	}
	return s.setCustomerFn(ctx, email, firstName, lastName)
}

func (s *stubOrderClient) SetShippingAddress(ctx context.Context, input gateway.AddressInput) (*domain.Order, error) {
	if s.setShippingAddressFn == nil {
		return nil, errStubNotConfigured
	}
	return s.setShippingAddressFn(ctx, input)
}

func (s *stubOrderClient) SetBillingAddress(ctx context.Context, input gateway.AddressInput) (*domain.Order, error) {
	if s.setBillingAddressFn == nil {
		return nil, errStubNotConfigured
	}
	return s.setBillingAddressFn(ctx, input)
}

func (s *stubOrderClient) EligibleShippingMethods(ctx context.Context) ([]domain.ShippingMethod, error) {
	if s.eligibleShippingMethodsFn == nil {
		return nil, errStubNotConfigured
	}
	return s.eligibleShippingMethodsFn(ctx)
}

func (s *stubOrderClient) SetShippingMethod(ctx context.Context, methodID string) (*domain.Order, error) {
	if s.setShippingMethodFn == nil {
		return nil, errStubNotConfigured
	}
	return s.setShippingMethodFn(ctx, methodID)
}

func (s *stubOrderClient) EligiblePaymentMethods(ctx context.Context) ([]domain.PaymentMethodQuote, error) {
	if s.eligiblePaymentMethodsFn == nil {
		return nil, errStubNotConfigured
	}
	return s.eligiblePaymentMethodsFn(ctx)
}

func (s *stubOrderClient) AddPaymentToOrder(ctx context.Context, methodCode string, metadata map[string]any) (*domain.Order, error) {
	if s.addPaymentFn == nil {
		return nil, errStubNotConfigured
	}
	return s.addPaymentFn(ctx, methodCode, metadata)
}

func (s *stubOrderClient) NextOrderStates(ctx context.Context) ([]domain.OrderState, error) {
	if s.nextOrderStatesFn == nil {
		return nil, errStubNotConfigured
	}
	return s.nextOrderStatesFn(ctx)
}

func (s *stubOrderClient) TransitionOrderToState(ctx context.Context, state domain.OrderState) (*domain.Order, error) {
	if s.transitionFn == nil {
		return nil, errStubNotConfigured
	}
	return s.transitionFn(ctx, state)
}

func (s *stubOrderClient) ApplyCouponCode(ctx context.Context, code string) (*domain.Order, error) {
	if s.applyCouponFn == nil {
		return nil, errStubNotConfigured
	}
	return s.applyCouponFn(ctx, code)
}

func (s *stubOrderClient) RemoveCouponCode(ctx context.Context, code string) (*domain.Order, error) {
	if s.removeCouponFn == nil {
		return nil, errStubNotConfigured
	}
	return s.removeCouponFn(ctx, code)
}

// orderFixture builds a minimal order suitable for most tests.
func orderFixture(mutators ...func(*domain.Order)) *domain.Order {
	order := &domain.Order{
		ID:           "order-1",
		Code:         "SO1001",
		State:        domain.OrderStateAddingItems,
		Active:       true,
		CurrencyCode: "IDR",
		Lines: []domain.OrderLine{
			{
				ID:               "line-1",
				ProductVariantID: "variant-1",
				ProductName:      "Batik Shirt",
				Quantity:         2,
				UnitPriceWithTax: 150_000_00,
				LinePriceWithTax: 300_000_00,
			},
		},
		Totals: domain.OrderTotals{
			SubTotalWithTax: 300_000_00,
			TotalWithTax:    300_000_00,
		},
	}
	for _, mutate := range mutators {
		mutate(order)
	}
	return order
}

func withCustomer(order *domain.Order) {
	order.Customer = &domain.Customer{
		EmailAddress: "dewi@example.com",
		FirstName:    "Dewi",
		LastName:     "Santoso",
	}
}

func withShippingAddress(destinationID string) func(*domain.Order) {
	return func(order *domain.Order) {
		order.ShippingAddress = &domain.Address{
			FullName:      "Dewi Santoso",
			StreetLine1:   "Jl. Sudirman 12",
			City:          "Jakarta Selatan",
			Province:      "DKI Jakarta",
			PostalCode:    "12190",
			CountryCode:   "ID",
			DestinationID: destinationID,
		}
	}
}

func withShippingLine(order *domain.Order) {
	order.ShippingLines = []domain.ShippingLine{
		{MethodID: "method-1", MethodName: "Regular", PriceWithTax: 20_000_00},
	}
	order.Totals.ShippingWithTax = 20_000_00
	order.Totals.TotalWithTax += 20_000_00
}
