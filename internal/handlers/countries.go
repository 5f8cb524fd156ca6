package handlers

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/sakara-commerce/storefront/internal/domain"
)

// CountrySource is the slice of the commerce API listing shippable countries.
type CountrySource interface {
	AvailableCountries(ctx context.Context) ([]domain.Country, error)
}

// CountryHandlers serves the shippable-country list for the address form.
// The list changes rarely, so responses are cached with a TTL.
type CountryHandlers struct {
	source CountrySource
	ttl    time.Duration
	now    func() time.Time

	mu        sync.Mutex
	cached    []domain.Country
	fetchedAt time.Time
}

// NewCountryHandlers constructs handlers with the given cache TTL.
func NewCountryHandlers(source CountrySource, ttl time.Duration, clock func() time.Time) *CountryHandlers {
	if clock == nil {
		clock = time.Now
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &CountryHandlers{source: source, ttl: ttl, now: clock}
}

// Routes wires the /countries endpoints onto the provided router.
func (h *CountryHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/", h.list)
}

type countryView struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

func (h *CountryHandlers) list(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	countries, err := h.countries(ctx)
	if err != nil {
		writeCheckoutError(ctx, w, r, err)
		return
	}
	views := make([]countryView, 0, len(countries))
	for _, c := range countries {
		views = append(views, countryView{Code: c.Code, Name: c.Name})
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{"countries": views})
}

func (h *CountryHandlers) countries(ctx context.Context) ([]domain.Country, error) {
	h.mu.Lock()
	if h.cached != nil && h.now().Sub(h.fetchedAt) < h.ttl {
		cached := h.cached
		h.mu.Unlock()
		return cached, nil
	}
	h.mu.Unlock()

	fresh, err := h.source.AvailableCountries(ctx)
	if err != nil {
		// Serve a stale list over an error if one exists.
		h.mu.Lock()
		cached := h.cached
		h.mu.Unlock()
		if cached != nil {
			return cached, nil
		}
		return nil, err
	}

	h.mu.Lock()
	h.cached = fresh
	h.fetchedAt = h.now()
	h.mu.Unlock()
	return fresh, nil
}
