package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakara-commerce/storefront/internal/checkout"
	"github.com/sakara-commerce/storefront/internal/domain"
	"github.com/sakara-commerce/storefront/internal/format"
	"github.com/sakara-commerce/storefront/internal/platform/httpx"
)

// CheckoutHandlers drives the four-step checkout flow and payment dispatch.
type CheckoutHandlers struct {
	registry   *checkout.Registry
	dispatcher func(*checkout.ActiveOrderManager) (*checkout.PaymentDispatcher, error)
}

const maxCheckoutBodySize = 16 * 1024

// NewCheckoutHandlers constructs checkout handlers. dispatcherFor builds a
// payment dispatcher bound to the session's manager.
func NewCheckoutHandlers(registry *checkout.Registry, dispatcherFor func(*checkout.ActiveOrderManager) (*checkout.PaymentDispatcher, error)) *CheckoutHandlers {
	return &CheckoutHandlers{registry: registry, dispatcher: dispatcherFor}
}

// Routes wires the /checkout endpoints onto the provided router.
func (h *CheckoutHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/", h.getState)
	r.Post("/customer", h.setCustomer)
	r.Post("/shipping-address", h.setShippingAddress)
	r.Post("/billing-address", h.setBillingAddress)
	r.Get("/shipping-methods", h.shippingMethods)
	r.Post("/shipping-method", h.setShippingMethod)
	r.Get("/payment-methods", h.paymentMethods)
	r.Post("/steps/{step}", h.goToStep)
	r.Post("/complete", h.complete)
}

type checkoutStateResponse struct {
	Order *orderView `json:"order"`
	Steps []stepView `json:"steps"`
	// ShippingSelectionValid is false when a destination change invalidated
	// the chosen delivery method.
	ShippingSelectionValid bool `json:"shippingSelectionValid"`
}

func (h *CheckoutHandlers) getState(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	manager, err := sessionManager(r, h.registry)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("session_required", "a session is required", http.StatusUnauthorized))
		return
	}

	order, err := manager.GetActiveOrder(ctx)
	if err != nil {
		writeCheckoutError(ctx, w, r, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, checkoutStateResponse{
		Order:                  buildOrderView(order),
		Steps:                  buildStepViews(manager.Steps()),
		ShippingSelectionValid: manager.ShippingSelectionValid(),
	})
}

type setCustomerRequest struct {
	EmailAddress string `json:"emailAddress"`
	FirstName    string `json:"firstName"`
	LastName     string `json:"lastName"`
}

func (h *CheckoutHandlers) setCustomer(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	manager, err := sessionManager(r, h.registry)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("session_required", "a session is required", http.StatusUnauthorized))
		return
	}

	var req setCustomerRequest
	if err := decodeJSONBody(r, maxCheckoutBodySize, &req); err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	order, err := manager.SetCustomer(ctx, req.EmailAddress, req.FirstName, req.LastName)
	if err != nil {
		writeCheckoutError(ctx, w, r, err)
		return
	}
	manager.CompleteStep(checkout.StepContact)
	writeJSONResponse(w, http.StatusOK, checkoutStateResponse{
		Order:                  buildOrderView(order),
		Steps:                  buildStepViews(manager.Steps()),
		ShippingSelectionValid: manager.ShippingSelectionValid(),
	})
}

type addressRequest struct {
	FullName      string `json:"fullName"`
	Company       string `json:"company"`
	StreetLine1   string `json:"streetLine1"`
	StreetLine2   string `json:"streetLine2"`
	City          string `json:"city"`
	Province      string `json:"province"`
	PostalCode    string `json:"postalCode"`
	CountryCode   string `json:"countryCode"`
	PhoneNumber   string `json:"phoneNumber"`
	DestinationID string `json:"destinationId"`
}

func (req addressRequest) toDomain() domain.Address {
	return domain.Address{
		FullName:      req.FullName,
		Company:       req.Company,
		StreetLine1:   req.StreetLine1,
		StreetLine2:   req.StreetLine2,
		City:          req.City,
		Province:      req.Province,
		PostalCode:    req.PostalCode,
		CountryCode:   req.CountryCode,
		PhoneNumber:   req.PhoneNumber,
		DestinationID: req.DestinationID,
	}
}

func (h *CheckoutHandlers) setShippingAddress(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	manager, err := sessionManager(r, h.registry)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("session_required", "a session is required", http.StatusUnauthorized))
		return
	}

	var req addressRequest
	if err := decodeJSONBody(r, maxCheckoutBodySize, &req); err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	order, err := manager.SetShippingAddress(ctx, req.toDomain())
	if err != nil {
		writeCheckoutError(ctx, w, r, err)
		return
	}
	manager.CompleteStep(checkout.StepAddress)
	writeJSONResponse(w, http.StatusOK, checkoutStateResponse{
		Order:                  buildOrderView(order),
		Steps:                  buildStepViews(manager.Steps()),
		ShippingSelectionValid: manager.ShippingSelectionValid(),
	})
}

func (h *CheckoutHandlers) setBillingAddress(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	manager, err := sessionManager(r, h.registry)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("session_required", "a session is required", http.StatusUnauthorized))
		return
	}

	var req addressRequest
	if err := decodeJSONBody(r, maxCheckoutBodySize, &req); err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	order, err := manager.SetBillingAddress(ctx, req.toDomain())
	if err != nil {
		writeCheckoutError(ctx, w, r, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, orderResponse{Order: buildOrderView(order)})
}

type shippingMethodView struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Description  string `json:"description,omitempty"`
	PriceWithTax int64  `json:"priceWithTax"`
	Price        string `json:"priceDisplay"`
}

func (h *CheckoutHandlers) shippingMethods(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	manager, err := sessionManager(r, h.registry)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("session_required", "a session is required", http.StatusUnauthorized))
		return
	}

	methods, err := manager.EligibleShippingMethods(ctx)
	if err != nil {
		writeCheckoutError(ctx, w, r, err)
		return
	}

	currency := "IDR"
	if snap := manager.Snapshot(); snap != nil && snap.CurrencyCode != "" {
		currency = snap.CurrencyCode
	}
	views := make([]shippingMethodView, 0, len(methods))
	for _, m := range methods {
		views = append(views, shippingMethodView{
			ID:           m.ID,
			Name:         m.Name,
			Description:  m.Description,
			PriceWithTax: m.PriceWithTax,
			Price:        format.Money(m.PriceWithTax, currency),
		})
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{"shippingMethods": views})
}

type setShippingMethodRequest struct {
	ShippingMethodID string `json:"shippingMethodId"`
}

func (h *CheckoutHandlers) setShippingMethod(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	manager, err := sessionManager(r, h.registry)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("session_required", "a session is required", http.StatusUnauthorized))
		return
	}

	var req setShippingMethodRequest
	if err := decodeJSONBody(r, maxCheckoutBodySize, &req); err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	order, err := manager.SetShippingMethod(ctx, req.ShippingMethodID)
	if err != nil {
		writeCheckoutError(ctx, w, r, err)
		return
	}
	manager.CompleteStep(checkout.StepDelivery)
	writeJSONResponse(w, http.StatusOK, checkoutStateResponse{
		Order:                  buildOrderView(order),
		Steps:                  buildStepViews(manager.Steps()),
		ShippingSelectionValid: manager.ShippingSelectionValid(),
	})
}

type paymentMethodView struct {
	Code        string `json:"code"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	IsEligible  bool   `json:"isEligible"`
}

func (h *CheckoutHandlers) paymentMethods(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	manager, err := sessionManager(r, h.registry)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("session_required", "a session is required", http.StatusUnauthorized))
		return
	}

	methods, err := manager.EligiblePaymentMethods(ctx)
	if err != nil {
		writeCheckoutError(ctx, w, r, err)
		return
	}
	views := make([]paymentMethodView, 0, len(methods))
	for _, m := range methods {
		views = append(views, paymentMethodView{
			Code:        m.Code,
			Name:        m.Name,
			Description: m.Description,
			IsEligible:  m.IsEligible,
		})
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{"paymentMethods": views})
}

func (h *CheckoutHandlers) goToStep(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	manager, err := sessionManager(r, h.registry)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("session_required", "a session is required", http.StatusUnauthorized))
		return
	}

	step := checkout.Step(chi.URLParam(r, "step"))
	if err := manager.GoToStep(step); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("step_not_available", err.Error(), http.StatusConflict))
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{"steps": buildStepViews(manager.Steps())})
}

type completeRequest struct {
	PaymentType string `json:"paymentType"`
	// Code is the channel parameter: bank code, store code, or wallet code.
	// Unused for qris.
	Code string `json:"code"`
}

type completeResponse struct {
	OrderCode   string       `json:"orderCode"`
	Order       *orderView   `json:"order"`
	Payment     *paymentView `json:"payment,omitempty"`
	RedirectURL string       `json:"redirectUrl,omitempty"`
}

func (h *CheckoutHandlers) complete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	manager, err := sessionManager(r, h.registry)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("session_required", "a session is required", http.StatusUnauthorized))
		return
	}
	if h.dispatcher == nil {
		httpx.WriteError(ctx, w, httpx.NewError("payments_unavailable", "payment dispatch is unavailable", http.StatusServiceUnavailable))
		return
	}

	var req completeRequest
	if err := decodeJSONBody(r, maxCheckoutBodySize, &req); err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	channel, err := checkout.ParseChannel(req.PaymentType, req.Code)
	if err != nil {
		writeCheckoutError(ctx, w, r, err)
		return
	}

	dispatcher, err := h.dispatcher(manager)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("payments_unavailable", "payment dispatch is unavailable", http.StatusServiceUnavailable))
		return
	}

	result, err := dispatcher.Dispatch(ctx, channel)
	if err != nil {
		writeCheckoutError(ctx, w, r, err)
		return
	}

	// The placed order now lives on the confirmation view; the session's
	// checkout state starts over with the next cart.
	manager.Discard()

	resp := completeResponse{
		OrderCode:   result.OrderCode,
		Order:       buildOrderView(result.Order),
		RedirectURL: result.RedirectURL,
	}
	if result.Payment != nil {
		resp.Payment = &paymentView{
			ID:            result.Payment.ID,
			State:         string(result.Payment.State),
			Method:        result.Payment.Method,
			TransactionID: result.Payment.TransactionID,
			Amount:        result.Payment.Amount,
			Metadata:      result.Payment.Metadata,
			CreatedAt:     formatTime(result.Payment.CreatedAt),
		}
	}
	writeJSONResponse(w, http.StatusOK, resp)
}
