package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sakara-commerce/storefront/internal/checkout"
	"github.com/sakara-commerce/storefront/internal/destination"
	"github.com/sakara-commerce/storefront/internal/gateway"
	"github.com/sakara-commerce/storefront/internal/platform/httpx"
	"github.com/sakara-commerce/storefront/internal/platform/requestctx"
)

var (
	errEmptyBody    = errors.New("request body is empty")
	errBodyTooLarge = errors.New("request body too large")
)

const defaultMaxBodySize = 16 * 1024

func readLimitedBody(r *http.Request, limit int64) ([]byte, error) {
	if r == nil || r.Body == nil {
		return nil, errEmptyBody
	}
	if limit <= 0 {
		limit = defaultMaxBodySize
	}
	reader := io.LimitReader(r.Body, limit+1)
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, err
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, errEmptyBody
	}
	if int64(len(data)) > limit {
		return nil, errBodyTooLarge
	}
	return data, nil
}

func decodeJSONBody(r *http.Request, limit int64, dst any) error {
	data, err := readLimitedBody(r, limit)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return errors.New("request body is not valid JSON")
	}
	return nil
}

func writeJSONResponse(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeBodyError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, errBodyTooLarge):
		httpx.WriteError(ctx, w, httpx.NewError("payload_too_large", "request body exceeds allowed size", http.StatusRequestEntityTooLarge))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	}
}

// writeCheckoutError translates checkout and gateway errors into the HTTP
// envelope. Precondition failures carry the checkout step that needs
// attention so the client can route the customer back to it; expired
// sessions carry a sign-in target preserving the originating path.
func writeCheckoutError(ctx context.Context, w http.ResponseWriter, r *http.Request, err error) {
	if err == nil {
		return
	}

	if vErr, ok := checkout.AsValidationError(err); ok {
		httpErr := httpx.NewError("invalid_request", vErr.Message, http.StatusBadRequest).
			WithDetails(map[string]any{"field": vErr.Field})
		httpx.WriteError(ctx, w, httpErr)
		return
	}

	switch {
	case errors.Is(err, checkout.ErrActionInFlight):
		httpx.WriteError(ctx, w, httpx.NewError("action_in_flight", "the same action is already being processed", http.StatusConflict))
	case errors.Is(err, checkout.ErrCouponNotApplicable):
		httpx.WriteError(ctx, w, httpx.NewError("COUPON_NOT_APPLICABLE", "coupon code is valid but does not apply to this order", http.StatusUnprocessableEntity))
	case errors.Is(err, checkout.ErrCustomerRequired):
		writeStepError(ctx, w, "customer_required", "contact details are required before payment", checkout.StepContact)
	case errors.Is(err, checkout.ErrShippingAddressRequired):
		writeStepError(ctx, w, "shipping_address_required", "a complete shipping address is required before payment", checkout.StepAddress)
	case errors.Is(err, checkout.ErrShippingMethodRequired):
		writeStepError(ctx, w, "shipping_method_required", "a delivery method is required before payment", checkout.StepDelivery)
	case errors.Is(err, checkout.ErrShippingSelectionStale):
		writeStepError(ctx, w, "shipping_selection_stale", "the destination changed; re-select a delivery method", checkout.StepDelivery)
	case errors.Is(err, checkout.ErrPaymentMethodRequired):
		writeStepError(ctx, w, "payment_method_required", "a payment method is required", checkout.StepPayment)
	case errors.Is(err, checkout.ErrTransitionNotAvailable):
		httpx.WriteError(ctx, w, httpx.NewError("order_not_ready", "the order cannot move to payment in its current state", http.StatusConflict))
	case errors.Is(err, destination.ErrQueryTooShort):
		httpx.WriteError(ctx, w, httpx.NewError("query_too_short", "enter at least three characters", http.StatusBadRequest))
	case errors.Is(err, gateway.ErrNoActiveOrder):
		httpx.WriteError(ctx, w, httpx.NewError("no_active_order", "no active order for this session", http.StatusNotFound))
	case errors.Is(err, gateway.ErrAuthenticationRequired):
		httpErr := httpx.NewError("session_expired", "the commerce session expired; retry the request", http.StatusUnauthorized).
			WithDetails(map[string]any{"signIn": signInTarget(r)})
		httpx.WriteError(ctx, w, httpErr)
	case errors.Is(err, gateway.ErrUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("commerce_unavailable", "the commerce service is unavailable", http.StatusBadGateway))
	case errors.Is(err, context.DeadlineExceeded):
		httpx.WriteError(ctx, w, httpx.NewError("commerce_timeout", "the commerce service timed out", http.StatusGatewayTimeout))
	default:
		if domErr, ok := gateway.AsDomainError(err); ok {
			httpx.WriteError(ctx, w, httpx.NewError(domErr.Code, domErr.Message, http.StatusUnprocessableEntity))
			return
		}
		httpx.WriteError(ctx, w, httpx.NewError("internal_error", "an unexpected error occurred", http.StatusInternalServerError))
	}
}

// signInTarget builds the sign-in URL carrying the originating path so the
// customer returns to where the session expired.
func signInTarget(r *http.Request) string {
	if r == nil || r.URL == nil {
		return "/sign-in"
	}
	return "/sign-in?redirect=" + url.QueryEscape(r.URL.Path)
}

func writeStepError(ctx context.Context, w http.ResponseWriter, code, message string, step checkout.Step) {
	httpErr := httpx.NewError(code, message, http.StatusConflict).
		WithDetails(map[string]any{"step": string(step)})
	httpx.WriteError(ctx, w, httpErr)
}

// sessionManager resolves the calling session's checkout manager.
func sessionManager(r *http.Request, registry *checkout.Registry) (*checkout.ActiveOrderManager, error) {
	sessionID := strings.TrimSpace(requestctx.SessionID(r.Context()))
	if sessionID == "" {
		return nil, errors.New("handlers: no session on request")
	}
	return registry.Manager(sessionID)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
