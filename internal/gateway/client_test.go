package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/sakara-commerce/storefront/internal/domain"
)

type memoryTokenSource struct {
	mu    sync.Mutex
	token string
}

func (m *memoryTokenSource) Token(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.token, nil
}

func (m *memoryTokenSource) StoreToken(ctx context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = token
	return nil
}

type capturedRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
	authz     string
	channel   string
}

// newGraphQLServer answers every request with respond's return value and
// records what it received.
func newGraphQLServer(t *testing.T, respond func(req capturedRequest, w http.ResponseWriter)) (*httptest.Server, *[]capturedRequest) {
	t.Helper()
	var mu sync.Mutex
	var requests []capturedRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req capturedRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		req.authz = r.Header.Get("Authorization")
		req.channel = r.Header.Get("vendure-token")
		mu.Lock()
		requests = append(requests, req)
		mu.Unlock()
		respond(req, w)
	}))
	t.Cleanup(server.Close)
	return server, &requests
}

func writeData(w http.ResponseWriter, field string, payload any) {
	raw, _ := json.Marshal(payload)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"data": map[string]json.RawMessage{field: raw},
	})
}

func minimalOrderJSON() map[string]any {
	return map[string]any{
		"id":           "1",
		"code":         "SO1001",
		"state":        "AddingItems",
		"active":       true,
		"currencyCode": "IDR",
		"lines": []map[string]any{
			{
				"id":       "10",
				"quantity": 2,
				"productVariant": map[string]any{
					"id":   "100",
					"name": "Batik Shirt",
					"sku":  "BTK-1",
				},
				"unitPriceWithTax":         15000000,
				"linePriceWithTax":         30000000,
				"proratedUnitPriceWithTax": 15000000,
			},
		},
		"totalWithTax":    30000000,
		"subTotalWithTax": 30000000,
	}
}

func TestActiveOrderDecodesAggregate(t *testing.T) {
	server, _ := newGraphQLServer(t, func(req capturedRequest, w http.ResponseWriter) {
		writeData(w, "activeOrder", minimalOrderJSON())
	})
	client, err := NewClient(ClientConfig{Endpoint: server.URL})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	order, err := client.ActiveOrder(context.Background())
	if err != nil {
		t.Fatalf("ActiveOrder: %v", err)
	}
	if order.Code != "SO1001" || order.State != domain.OrderStateAddingItems {
		t.Fatalf("order = %+v", order)
	}
	if len(order.Lines) != 1 || order.Lines[0].ProductVariantID != "100" || order.Lines[0].Quantity != 2 {
		t.Fatalf("lines = %+v", order.Lines)
	}
	if order.Totals.TotalWithTax != 30000000 {
		t.Fatalf("total = %d", order.Totals.TotalWithTax)
	}
}

func TestActiveOrderNullMeansNoOrder(t *testing.T) {
	server, _ := newGraphQLServer(t, func(req capturedRequest, w http.ResponseWriter) {
		_, _ = w.Write([]byte(`{"data":{"activeOrder":null}}`))
	})
	client, _ := NewClient(ClientConfig{Endpoint: server.URL})

	order, err := client.ActiveOrder(context.Background())
	if err != nil {
		t.Fatalf("ActiveOrder: %v", err)
	}
	if order != nil {
		t.Fatalf("null active order should return nil, got %+v", order)
	}
}

func TestMutationDecodesErrorResult(t *testing.T) {
	server, _ := newGraphQLServer(t, func(req capturedRequest, w http.ResponseWriter) {
		writeData(w, "applyCouponCode", map[string]any{
			"__typename": "CouponCodeExpiredError",
			"errorCode":  "COUPON_CODE_EXPIRED_ERROR",
			"message":    "Coupon code \"OLD2020\" has expired",
		})
	})
	client, _ := NewClient(ClientConfig{Endpoint: server.URL})

	_, err := client.ApplyCouponCode(context.Background(), "OLD2020")
	domErr, ok := AsDomainError(err)
	if !ok {
		t.Fatalf("want domain error, got %v", err)
	}
	if domErr.Code != CodeCouponCodeExpired {
		t.Fatalf("code = %q", domErr.Code)
	}
	if !domErr.IsCouponError() {
		t.Fatalf("coupon error should classify as such")
	}
}

func TestTokenCapturedFromResponseHeader(t *testing.T) {
	server, requests := newGraphQLServer(t, func(req capturedRequest, w http.ResponseWriter) {
		w.Header().Set("vendure-auth-token", "fresh-token")
		writeData(w, "activeOrder", minimalOrderJSON())
	})
	tokens := &memoryTokenSource{}
	client, _ := NewClient(ClientConfig{Endpoint: server.URL, Tokens: tokens, ChannelToken: "channel-1"})

	if _, err := client.ActiveOrder(context.Background()); err != nil {
		t.Fatalf("ActiveOrder: %v", err)
	}
	if tokens.token != "fresh-token" {
		t.Fatalf("token not persisted, got %q", tokens.token)
	}

	// The next call carries the captured token and the channel token.
	if _, err := client.ActiveOrder(context.Background()); err != nil {
		t.Fatalf("ActiveOrder: %v", err)
	}
	second := (*requests)[1]
	if second.authz != "Bearer fresh-token" {
		t.Fatalf("Authorization = %q", second.authz)
	}
	if second.channel != "channel-1" {
		t.Fatalf("channel header = %q", second.channel)
	}
}

func TestUnauthorizedStatusMapsToAuthenticationRequired(t *testing.T) {
	server, _ := newGraphQLServer(t, func(req capturedRequest, w http.ResponseWriter) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	client, _ := NewClient(ClientConfig{Endpoint: server.URL})

	_, err := client.ActiveOrder(context.Background())
	if !errors.Is(err, ErrAuthenticationRequired) {
		t.Fatalf("want ErrAuthenticationRequired, got %v", err)
	}
}

func TestForbiddenGraphQLErrorMapsToAuthenticationRequired(t *testing.T) {
	server, _ := newGraphQLServer(t, func(req capturedRequest, w http.ResponseWriter) {
		_, _ = w.Write([]byte(`{"errors":[{"message":"not authorized","extensions":{"code":"FORBIDDEN"}}]}`))
	})
	client, _ := NewClient(ClientConfig{Endpoint: server.URL})

	_, err := client.ActiveOrder(context.Background())
	if !errors.Is(err, ErrAuthenticationRequired) {
		t.Fatalf("want ErrAuthenticationRequired, got %v", err)
	}
}

type failingTokenSource struct{ err error }

func (f *failingTokenSource) Token(ctx context.Context) (string, error) { return "", f.err }
func (f *failingTokenSource) StoreToken(ctx context.Context, _ string) error { return nil }

func TestTokenSourceErrorAbortsBeforeSending(t *testing.T) {
	server, requests := newGraphQLServer(t, func(req capturedRequest, w http.ResponseWriter) {
		writeData(w, "activeOrder", minimalOrderJSON())
	})
	client, _ := NewClient(ClientConfig{
		Endpoint: server.URL,
		Tokens:   &failingTokenSource{err: ErrAuthenticationRequired},
	})

	_, err := client.ActiveOrder(context.Background())
	if !errors.Is(err, ErrAuthenticationRequired) {
		t.Fatalf("want ErrAuthenticationRequired, got %v", err)
	}
	if len(*requests) != 0 {
		t.Fatalf("no request should reach the commerce API, got %d", len(*requests))
	}
}

func TestServerErrorMapsToUnavailable(t *testing.T) {
	server, _ := newGraphQLServer(t, func(req capturedRequest, w http.ResponseWriter) {
		w.WriteHeader(http.StatusBadGateway)
	})
	client, _ := NewClient(ClientConfig{Endpoint: server.URL})

	_, err := client.ActiveOrder(context.Background())
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("want ErrUnavailable, got %v", err)
	}
}

func TestAddItemSendsVariables(t *testing.T) {
	server, requests := newGraphQLServer(t, func(req capturedRequest, w http.ResponseWriter) {
		writeData(w, "addItemToOrder", minimalOrderJSON())
	})
	client, _ := NewClient(ClientConfig{Endpoint: server.URL})

	if _, err := client.AddItemToOrder(context.Background(), "variant-9", 3); err != nil {
		t.Fatalf("AddItemToOrder: %v", err)
	}
	vars := (*requests)[0].Variables
	if vars["productVariantId"] != "variant-9" {
		t.Fatalf("productVariantId = %v", vars["productVariantId"])
	}
	if vars["quantity"] != float64(3) {
		t.Fatalf("quantity = %v", vars["quantity"])
	}
}

func TestNoActiveOrderErrorCode(t *testing.T) {
	server, _ := newGraphQLServer(t, func(req capturedRequest, w http.ResponseWriter) {
		writeData(w, "applyCouponCode", map[string]any{
			"__typename": "NoActiveOrderError",
			"errorCode":  "NO_ACTIVE_ORDER_ERROR",
			"message":    "There is no active order",
		})
	})
	client, _ := NewClient(ClientConfig{Endpoint: server.URL})

	_, err := client.ApplyCouponCode(context.Background(), "HEMAT10")
	if !errors.Is(err, ErrNoActiveOrder) {
		t.Fatalf("want ErrNoActiveOrder, got %v", err)
	}
}

func TestSearchDestinationsDecodesItems(t *testing.T) {
	server, requests := newGraphQLServer(t, func(req capturedRequest, w http.ResponseWriter) {
		writeData(w, "searchDestinations", map[string]any{
			"items": []map[string]any{
				{"id": "d1", "subdistrict": "Senayan", "district": "Kebayoran Baru", "city": "Jakarta Selatan", "province": "DKI Jakarta", "postalCode": "12190"},
			},
		})
	})
	client, _ := NewClient(ClientConfig{Endpoint: server.URL})

	results, err := client.SearchDestinations(context.Background(), "jakarta sel", 10, 0)
	if err != nil {
		t.Fatalf("SearchDestinations: %v", err)
	}
	if len(results) != 1 || results[0].ID != "d1" || results[0].City != "Jakarta Selatan" {
		t.Fatalf("results = %+v", results)
	}
	vars := (*requests)[0].Variables
	if vars["query"] != "jakarta sel" || vars["limit"] != float64(10) {
		t.Fatalf("variables = %v", vars)
	}
}

func TestNextOrderStates(t *testing.T) {
	server, _ := newGraphQLServer(t, func(req capturedRequest, w http.ResponseWriter) {
		writeData(w, "nextOrderStates", []string{"ArrangingPayment", "Cancelled"})
	})
	client, _ := NewClient(ClientConfig{Endpoint: server.URL})

	states, err := client.NextOrderStates(context.Background())
	if err != nil {
		t.Fatalf("NextOrderStates: %v", err)
	}
	if len(states) != 2 || states[0] != domain.OrderStateArrangingPayment {
		t.Fatalf("states = %v", states)
	}
}
