package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/sakara-commerce/storefront/internal/checkout"
	"github.com/sakara-commerce/storefront/internal/domain"
	"github.com/sakara-commerce/storefront/internal/platform/httpx"
)

// OrderLookup is the slice of the commerce API used by the confirmation view.
type OrderLookup interface {
	OrderByCode(ctx context.Context, code string) (*domain.Order, error)
}

// OrderHandlers serves the post-checkout confirmation view: the placed order
// with its payment instructions, a settlement snapshot the client polls, and
// a long-poll wait endpoint driven by the server-side settlement poller.
type OrderHandlers struct {
	lookup OrderLookup
	poller *checkout.SettlementPoller
}

// NewOrderHandlers constructs handlers over the order lookup client. poller
// may be nil, in which case the wait endpoint is not registered.
func NewOrderHandlers(lookup OrderLookup, poller *checkout.SettlementPoller) *OrderHandlers {
	return &OrderHandlers{lookup: lookup, poller: poller}
}

// Routes wires the /orders endpoints onto the provided router.
func (h *OrderHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/{code}", h.getOrder)
	r.Get("/{code}/settlement", h.getSettlement)
	if h.poller != nil {
		r.Get("/{code}/settlement/wait", h.waitSettlement)
	}
}

func (h *OrderHandlers) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	code := strings.TrimSpace(chi.URLParam(r, "code"))
	if code == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "order code is required", http.StatusBadRequest))
		return
	}

	order, err := h.lookup.OrderByCode(ctx, code)
	if err != nil {
		writeCheckoutError(ctx, w, r, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, orderResponse{Order: buildOrderView(order)})
}

type settlementResponse struct {
	OrderCode    string       `json:"orderCode"`
	OrderState   string       `json:"orderState"`
	Payment      *paymentView `json:"payment,omitempty"`
	PaymentState string       `json:"paymentState,omitempty"`
	// Settled tells the client to stop polling.
	Settled bool `json:"settled"`
}

func buildSettlementResponse(order *domain.Order) settlementResponse {
	resp := settlementResponse{
		OrderCode:  order.Code,
		OrderState: string(order.State),
	}
	if p := order.LatestPayment(); p != nil {
		resp.PaymentState = string(p.State)
		resp.Payment = &paymentView{
			ID:            p.ID,
			State:         string(p.State),
			Method:        p.Method,
			TransactionID: p.TransactionID,
			Amount:        p.Amount,
			Metadata:      p.Metadata,
			CreatedAt:     formatTime(p.CreatedAt),
		}
		resp.Settled = p.State.Terminal()
	}
	switch order.State {
	case domain.OrderStatePaymentSettled, domain.OrderStateCancelled:
		resp.Settled = true
	}
	return resp
}

// getSettlement returns the current settlement status for a placed order.
// The client polls this endpoint on its interval; each call is one fresh
// fetch, so overlapping polls never stack on the commerce API.
func (h *OrderHandlers) getSettlement(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	code := strings.TrimSpace(chi.URLParam(r, "code"))
	if code == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "order code is required", http.StatusBadRequest))
		return
	}

	order, err := h.lookup.OrderByCode(ctx, code)
	if err != nil {
		writeCheckoutError(ctx, w, r, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildSettlementResponse(order))
}

// waitSettlement holds the request open while the settlement poller re-fetches
// the order, answering as soon as the payment reaches a terminal state. When
// the request deadline hits first the last observed snapshot is returned with
// settled still false, and the client simply waits again.
func (h *OrderHandlers) waitSettlement(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	code := strings.TrimSpace(chi.URLParam(r, "code"))
	if code == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "order code is required", http.StatusBadRequest))
		return
	}

	// Validate the code up front; the poller treats fetch errors as transient
	// and would otherwise retry an unknown order until the deadline.
	if _, err := h.lookup.OrderByCode(ctx, code); err != nil {
		writeCheckoutError(ctx, w, r, err)
		return
	}

	order, err := h.poller.Poll(ctx, code, nil)
	if err != nil {
		if order != nil {
			writeJSONResponse(w, http.StatusOK, buildSettlementResponse(order))
			return
		}
		writeCheckoutError(ctx, w, r, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildSettlementResponse(order))
}
