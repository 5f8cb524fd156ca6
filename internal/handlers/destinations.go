package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/sakara-commerce/storefront/internal/destination"
	"github.com/sakara-commerce/storefront/internal/domain"
	"github.com/sakara-commerce/storefront/internal/platform/httpx"
)

// DestinationHandlers exposes shipping-destination typeahead search.
type DestinationHandlers struct {
	resolver *destination.Resolver
}

// NewDestinationHandlers constructs handlers over the destination resolver.
func NewDestinationHandlers(resolver *destination.Resolver) *DestinationHandlers {
	return &DestinationHandlers{resolver: resolver}
}

// Routes wires the /destinations endpoints onto the provided router.
func (h *DestinationHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/", h.search)
}

type destinationView struct {
	ID          string `json:"id"`
	Subdistrict string `json:"subdistrict,omitempty"`
	District    string `json:"district,omitempty"`
	City        string `json:"city,omitempty"`
	Province    string `json:"province,omitempty"`
	PostalCode  string `json:"postalCode,omitempty"`
	Label       string `json:"label"`
}

type destinationSearchResponse struct {
	Query        string            `json:"query"`
	Destinations []destinationView `json:"destinations"`
	// AutoSelected is set for prefill queries matching exactly one destination.
	AutoSelected *destinationView `json:"autoSelected,omitempty"`
}

// search resolves a destination query. Debouncing happens client side per
// keystroke; the server enforces only the minimum query length. With
// prefill=true a single-result query is marked auto-selected.
func (h *DestinationHandlers) search(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.resolver == nil {
		httpx.WriteError(ctx, w, httpx.NewError("destinations_unavailable", "destination search is unavailable", http.StatusServiceUnavailable))
		return
	}

	query := r.URL.Query().Get("q")
	results, err := h.resolver.Search(ctx, query)
	if err != nil {
		writeCheckoutError(ctx, w, r, err)
		return
	}

	resp := destinationSearchResponse{
		Query:        query,
		Destinations: make([]destinationView, 0, len(results)),
	}
	for _, d := range results {
		resp.Destinations = append(resp.Destinations, buildDestinationView(d))
	}
	if prefill, _ := strconv.ParseBool(r.URL.Query().Get("prefill")); prefill && len(results) == 1 {
		v := buildDestinationView(results[0])
		resp.AutoSelected = &v
	}
	writeJSONResponse(w, http.StatusOK, resp)
}

func buildDestinationView(d domain.Destination) destinationView {
	return destinationView{
		ID:          d.ID,
		Subdistrict: d.Subdistrict,
		District:    d.District,
		City:        d.City,
		Province:    d.Province,
		PostalCode:  d.PostalCode,
		Label:       d.Label(),
	}
}
