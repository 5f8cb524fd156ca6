package domain

import (
	"strings"
	"time"
)

// OrderState enumerates the lifecycle states reported by the commerce API.
type OrderState string

const (
	// OrderStateAddingItems is the initial mutable state while the cart is built.
	OrderStateAddingItems OrderState = "AddingItems"
	// OrderStateArrangingPayment indicates checkout is finalised and awaiting a payment attempt.
	OrderStateArrangingPayment OrderState = "ArrangingPayment"
	// OrderStatePaymentAuthorized indicates a payment was accepted but not yet settled.
	OrderStatePaymentAuthorized OrderState = "PaymentAuthorized"
	// OrderStatePaymentSettled indicates funds are confirmed received.
	OrderStatePaymentSettled OrderState = "PaymentSettled"
	// OrderStatePartiallySettled indicates a subset of payments settled.
	OrderStatePartiallySettled OrderState = "PartiallySettled"
	// OrderStateCancelled is a terminal state for abandoned or rejected orders.
	OrderStateCancelled OrderState = "Cancelled"
)

// PaymentState enumerates payment attempt states reported by the commerce API.
type PaymentState string

const (
	// PaymentStateAuthorized means the gateway accepted the attempt and settlement is pending.
	PaymentStateAuthorized PaymentState = "Authorized"
	// PaymentStateSettled means the gateway confirmed receipt of funds.
	PaymentStateSettled PaymentState = "Settled"
	// PaymentStatePartiallySettled means a partial amount settled.
	PaymentStatePartiallySettled PaymentState = "PartiallySettled"
	// PaymentStateDeclined means the gateway rejected the attempt.
	PaymentStateDeclined PaymentState = "Declined"
	// PaymentStateCancelled means the attempt was voided before settlement.
	PaymentStateCancelled PaymentState = "Cancelled"
)

// Terminal reports whether the payment state admits no further transitions.
func (s PaymentState) Terminal() bool {
	switch s {
	case PaymentStateSettled, PaymentStateDeclined, PaymentStateCancelled:
		return true
	}
	return false
}

// Customer identifies the purchaser attached to an order.
type Customer struct {
	ID           string
	EmailAddress string
	FirstName    string
	LastName     string
}

// Address is a shipping or billing address. When DestinationID is set, City,
// Province, and PostalCode are derived from the resolved destination and the
// free-text values are not authoritative.
type Address struct {
	FullName      string
	Company       string
	StreetLine1   string
	StreetLine2   string
	City          string
	Province      string
	PostalCode    string
	CountryCode   string
	PhoneNumber   string
	DestinationID string
}

// Complete reports whether the address carries the fields required for
// shipping eligibility.
func (a Address) Complete() bool {
	return strings.TrimSpace(a.FullName) != "" &&
		strings.TrimSpace(a.StreetLine1) != "" &&
		strings.TrimSpace(a.CountryCode) != "" &&
		(strings.TrimSpace(a.DestinationID) != "" || strings.TrimSpace(a.PostalCode) != "")
}

// Destination is a resolved shipping-geography record returned by the
// destination search. Immutable once resolved; referenced by ID from the
// address extension field.
type Destination struct {
	ID          string
	Subdistrict string
	District    string
	City        string
	Province    string
	PostalCode  string
}

// Label renders the destination as a single human-readable line.
func (d Destination) Label() string {
	parts := make([]string, 0, 5)
	for _, p := range []string{d.Subdistrict, d.District, d.City, d.Province, d.PostalCode} {
		if strings.TrimSpace(p) != "" {
			parts = append(parts, strings.TrimSpace(p))
		}
	}
	return strings.Join(parts, ", ")
}

// OrderLine is one product variant plus quantity within an order.
type OrderLine struct {
	ID                       string
	ProductVariantID         string
	ProductName              string
	VariantName              string
	SKU                      string
	Quantity                 int
	UnitPriceWithTax         int64
	LinePriceWithTax         int64
	ProratedUnitPriceWithTax int64
}

// Discount is a price adjustment attached to the order by a promotion or
// coupon code.
type Discount struct {
	Description   string
	CouponCode    string
	AmountWithTax int64
}

// ShippingMethod is an eligible delivery option computed by the commerce API
// for the order's current destination and contents.
type ShippingMethod struct {
	ID           string
	Name         string
	Description  string
	PriceWithTax int64
}

// ShippingLine binds the order to the chosen shipping method. At most one
// shipping line exists per order in this flow.
type ShippingLine struct {
	MethodID     string
	MethodName   string
	PriceWithTax int64
}

// PaymentMethodQuote describes an eligible payment method for the order.
type PaymentMethodQuote struct {
	Code        string
	Name        string
	Description string
	IsEligible  bool
}

// Payment is a single payment attempt recorded on the order. Metadata is the
// channel instruction blob; it is opaque except for the paymentType
// discriminator and expiry consumed by the confirmation view.
type Payment struct {
	ID            string
	State         PaymentState
	Method        string
	TransactionID string
	Amount        int64
	Metadata      map[string]any
	CreatedAt     time.Time
}

// OrderTotals carries the server-computed totals. The storefront never
// recomputes these; the commerce API is authoritative.
type OrderTotals struct {
	SubTotal        int64
	SubTotalWithTax int64
	Shipping        int64
	ShippingWithTax int64
	Total           int64
	TotalWithTax    int64
}

// Order is the mutable server-side aggregate for the in-progress purchase.
// At most one active order exists per session; once the order leaves
// AddingItems it is immutable apart from payment attempts.
type Order struct {
	ID              string
	Code            string
	State           OrderState
	Active          bool
	CurrencyCode    string
	Customer        *Customer
	Lines           []OrderLine
	ShippingAddress *Address
	BillingAddress  *Address
	CouponCodes     []string
	Discounts       []Discount
	ShippingLines   []ShippingLine
	Payments        []Payment
	Totals          OrderTotals
	UpdatedAt       time.Time
}

// HasCustomer reports whether a purchaser is attached.
func (o *Order) HasCustomer() bool {
	return o != nil && o.Customer != nil && strings.TrimSpace(o.Customer.EmailAddress) != ""
}

// HasShippingAddress reports whether a complete shipping address is set.
func (o *Order) HasShippingAddress() bool {
	return o != nil && o.ShippingAddress != nil && o.ShippingAddress.Complete()
}

// HasShippingLine reports whether a shipping method has been assigned.
func (o *Order) HasShippingLine() bool {
	return o != nil && len(o.ShippingLines) > 0
}

// LatestPayment returns the most recently created payment attempt, which is
// the only meaningful one in this flow, or nil when none exist.
func (o *Order) LatestPayment() *Payment {
	if o == nil || len(o.Payments) == 0 {
		return nil
	}
	latest := &o.Payments[0]
	for i := 1; i < len(o.Payments); i++ {
		if o.Payments[i].CreatedAt.After(latest.CreatedAt) {
			latest = &o.Payments[i]
		}
	}
	return latest
}

// LineCount returns the number of order lines.
func (o *Order) LineCount() int {
	if o == nil {
		return 0
	}
	return len(o.Lines)
}

// DestinationID returns the destination bound to the shipping address, empty
// when none is set.
func (o *Order) DestinationID() string {
	if o == nil || o.ShippingAddress == nil {
		return ""
	}
	return strings.TrimSpace(o.ShippingAddress.DestinationID)
}

// Country is a shippable country exposed by the commerce API.
type Country struct {
	Code string
	Name string
}
