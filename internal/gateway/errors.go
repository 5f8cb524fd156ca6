package gateway

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnavailable indicates a transport failure before a structured response was obtained.
	ErrUnavailable = errors.New("gateway: commerce api unavailable")
	// ErrAuthenticationRequired indicates the commerce API rejected the call for lack of a valid session.
	ErrAuthenticationRequired = errors.New("gateway: authentication required")
	// ErrNoActiveOrder indicates the session has no active order to operate on.
	ErrNoActiveOrder = errors.New("gateway: no active order")
)

// Error codes returned by the commerce API in mutation error results.
const (
	CodeEmailAddressConflict     = "EMAIL_ADDRESS_CONFLICT_ERROR"
	CodeInvalidCredentials       = "INVALID_CREDENTIALS_ERROR"
	CodeCouponCodeExpired        = "COUPON_CODE_EXPIRED_ERROR"
	CodeCouponCodeInvalid        = "COUPON_CODE_INVALID_ERROR"
	CodeCouponCodeLimit          = "COUPON_CODE_LIMIT_ERROR"
	CodeInsufficientStock        = "INSUFFICIENT_STOCK_ERROR"
	CodeOrderModification        = "ORDER_MODIFICATION_ERROR"
	CodeOrderStateTransition     = "ORDER_STATE_TRANSITION_ERROR"
	CodeIneligibleShippingMethod = "INELIGIBLE_SHIPPING_METHOD_ERROR"
	CodeOrderPaymentState        = "ORDER_PAYMENT_STATE_ERROR"
	CodePaymentDeclined          = "PAYMENT_DECLINED_ERROR"
	CodePaymentFailed            = "PAYMENT_FAILED_ERROR"
	CodeNoActiveOrder            = "NO_ACTIVE_ORDER_ERROR"
)

// DomainError is a typed business-rule rejection from the commerce API. It is
// surfaced verbatim to the caller and never retried automatically.
type DomainError struct {
	Code    string
	Message string
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if strings.TrimSpace(e.Message) == "" {
		return fmt.Sprintf("gateway: %s", e.Code)
	}
	return fmt.Sprintf("gateway: %s: %s", e.Code, e.Message)
}

// IsCouponError reports whether the error concerns a coupon code.
func (e *DomainError) IsCouponError() bool {
	switch e.Code {
	case CodeCouponCodeExpired, CodeCouponCodeInvalid, CodeCouponCodeLimit:
		return true
	}
	return false
}

// AsDomainError unwraps err into a *DomainError when possible.
func AsDomainError(err error) (*DomainError, bool) {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr, true
	}
	return nil, false
}
