package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/sakara-commerce/storefront/internal/checkout"
	"github.com/sakara-commerce/storefront/internal/platform/httpx"
)

// CartHandlers exposes the session cart: line management and coupon codes.
type CartHandlers struct {
	registry *checkout.Registry
}

const maxCartBodySize = 16 * 1024

// NewCartHandlers constructs cart handlers over the per-session manager registry.
func NewCartHandlers(registry *checkout.Registry) *CartHandlers {
	return &CartHandlers{registry: registry}
}

// Routes wires the /cart endpoints onto the provided router.
func (h *CartHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/", h.getCart)
	r.Post("/items", h.addItem)
	r.Patch("/lines/{lineID}", h.adjustLine)
	r.Delete("/lines/{lineID}", h.removeLine)
	r.Post("/coupons", h.applyCoupon)
	r.Delete("/coupons/{code}", h.removeCoupon)
}

func (h *CartHandlers) getCart(w http.ResponseWriter, r *http.Request) {
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
	writeJSONResponse(w, http.StatusOK, orderResponse{Order: buildOrderView(order)})
}

type addItemRequest struct {
	ProductVariantID string `json:"productVariantId"`
	Quantity         int    `json:"quantity"`
}

func (h *CartHandlers) addItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	manager, err := sessionManager(r, h.registry)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("session_required", "a session is required", http.StatusUnauthorized))
		return
	}

	var req addItemRequest
	if err := decodeJSONBody(r, maxCartBodySize, &req); err != nil {
		writeBodyError(ctx, w, err)
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}

	order, err := manager.AddItem(ctx, req.ProductVariantID, req.Quantity)
	if err != nil {
		writeCheckoutError(ctx, w, r, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, orderResponse{Order: buildOrderView(order)})
}

type adjustLineRequest struct {
	Quantity int `json:"quantity"`
}

func (h *CartHandlers) adjustLine(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	manager, err := sessionManager(r, h.registry)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("session_required", "a session is required", http.StatusUnauthorized))
		return
	}

	var req adjustLineRequest
	if err := decodeJSONBody(r, maxCartBodySize, &req); err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	order, err := manager.AdjustLine(ctx, chi.URLParam(r, "lineID"), req.Quantity)
	if err != nil {
		writeCheckoutError(ctx, w, r, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, orderResponse{Order: buildOrderView(order)})
}

func (h *CartHandlers) removeLine(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	manager, err := sessionManager(r, h.registry)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("session_required", "a session is required", http.StatusUnauthorized))
		return
	}

	order, err := manager.RemoveLine(ctx, chi.URLParam(r, "lineID"))
	if err != nil {
		writeCheckoutError(ctx, w, r, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, orderResponse{Order: buildOrderView(order)})
}

type applyCouponRequest struct {
	Code string `json:"code"`
}

type couponResponse struct {
	Order   *orderView `json:"order"`
	Applied bool       `json:"applied"`
}

func (h *CartHandlers) applyCoupon(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	manager, err := sessionManager(r, h.registry)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("session_required", "a session is required", http.StatusUnauthorized))
		return
	}

	var req applyCouponRequest
	if err := decodeJSONBody(r, maxCartBodySize, &req); err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	order, err := manager.ApplyCoupon(ctx, req.Code)
	if err != nil {
		writeCheckoutError(ctx, w, r, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, couponResponse{Order: buildOrderView(order), Applied: true})
}

func (h *CartHandlers) removeCoupon(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	manager, err := sessionManager(r, h.registry)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("session_required", "a session is required", http.StatusUnauthorized))
		return
	}

	code := strings.TrimSpace(chi.URLParam(r, "code"))
	order, err := manager.RemoveCoupon(ctx, code)
	if err != nil {
		writeCheckoutError(ctx, w, r, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, orderResponse{Order: buildOrderView(order)})
}
