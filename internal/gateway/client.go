package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/sakara-commerce/storefront/internal/domain"
)

const (
	defaultTimeout  = 15 * time.Second
	authTokenHeader = "vendure-auth-token"
	channelHeader   = "vendure-token"
	tracerName      = "github.com/sakara-commerce/storefront/internal/gateway"
)

// TokenSource provides the session auth token for outgoing calls and persists
// refreshed tokens returned by the commerce API. Token returns an empty string
// when the session has no token yet; a non-nil error aborts the call before
// anything is sent.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
	StoreToken(ctx context.Context, token string) error
}

// Client issues GraphQL operations against the commerce API.
type Client struct {
	endpoint     string
	channelToken string
	http         *http.Client
	tokens       TokenSource
	tracer       trace.Tracer
}

// ClientConfig configures a commerce API client.
type ClientConfig struct {
	Endpoint     string
	ChannelToken string
	Timeout      time.Duration
	Tokens       TokenSource
	HTTPClient   *http.Client
}

// NewClient constructs a commerce API client with a bounded request timeout.
func NewClient(cfg ClientConfig) (*Client, error) {
	endpoint := strings.TrimRight(strings.TrimSpace(cfg.Endpoint), "/")
	if endpoint == "" {
		return nil, fmt.Errorf("gateway: endpoint is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Client{
		endpoint:     endpoint,
		channelToken: strings.TrimSpace(cfg.ChannelToken),
		http:         httpClient,
		tokens:       cfg.Tokens,
		tracer:       otel.Tracer(tracerName),
	}, nil
}

type graphqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type graphqlError struct {
	Message    string `json:"message"`
	Extensions struct {
		Code string `json:"code"`
	} `json:"extensions"`
}

type graphqlResponse struct {
	Data   map[string]json.RawMessage `json:"data"`
	Errors []graphqlError             `json:"errors"`
}

// execute posts one GraphQL operation and returns the raw field payload keyed
// by the operation's root field.
func (c *Client) execute(ctx context.Context, opName, field, query string, variables map[string]any) (json.RawMessage, error) {
	ctx, span := c.tracer.Start(ctx, "commerce."+opName,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("graphql.operation", opName)),
	)
	defer span.End()

	payload, err := json.Marshal(graphqlRequest{Query: query, Variables: variables})
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("gateway: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("gateway: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.channelToken != "" {
		req.Header.Set(channelHeader, c.channelToken)
	}
	if c.tokens != nil {
		token, err := c.tokens.Token(ctx)
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
		if trimmed := strings.TrimSpace(token); trimmed != "" {
			req.Header.Set("Authorization", "Bearer "+trimmed)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	// A successful call may rotate the session token; persist it.
	if c.tokens != nil {
		if refreshed := strings.TrimSpace(resp.Header.Get(authTokenHeader)); refreshed != "" {
			_ = c.tokens.StoreToken(ctx, refreshed)
		}
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		span.SetStatus(codes.Error, http.StatusText(resp.StatusCode))
		return nil, ErrAuthenticationRequired
	case resp.StatusCode >= 400:
		span.SetStatus(codes.Error, http.StatusText(resp.StatusCode))
		return nil, fmt.Errorf("%w: status %d: %s", ErrUnavailable, resp.StatusCode, drainError(resp.Body))
	}

	var decoded graphqlResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("%w: decode response: %v", ErrUnavailable, err)
	}
	if len(decoded.Errors) > 0 {
		first := decoded.Errors[0]
		code := strings.ToUpper(strings.TrimSpace(first.Extensions.Code))
		if code == "FORBIDDEN" || code == "UNAUTHENTICATED" {
			span.SetStatus(codes.Error, first.Message)
			return nil, ErrAuthenticationRequired
		}
		span.SetStatus(codes.Error, first.Message)
		return nil, fmt.Errorf("%w: %s", ErrUnavailable, first.Message)
	}

	raw, ok := decoded.Data[field]
	if !ok {
		span.SetStatus(codes.Error, "missing response field")
		return nil, fmt.Errorf("%w: response missing field %q", ErrUnavailable, field)
	}
	span.SetStatus(codes.Ok, "")
	return raw, nil
}

// decodeOrderResult resolves the tagged union returned by order mutations:
// the updated aggregate or a typed error result.
func decodeOrderResult(raw json.RawMessage) (*domain.Order, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, ErrNoActiveOrder
	}
	var probe struct {
		ErrorCode string `json:"errorCode"`
		Message   string `json:"message"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, fmt.Errorf("%w: decode result: %v", ErrUnavailable, err)
	}
	if strings.TrimSpace(probe.ErrorCode) != "" {
		if probe.ErrorCode == CodeNoActiveOrder {
			return nil, ErrNoActiveOrder
		}
		return nil, &DomainError{Code: probe.ErrorCode, Message: probe.Message}
	}
	var payload orderPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("%w: decode order: %v", ErrUnavailable, err)
	}
	return payload.toDomain(), nil
}

// ActiveOrder fetches the session's active order, nil when none exists.
func (c *Client) ActiveOrder(ctx context.Context) (*domain.Order, error) {
	raw, err := c.execute(ctx, "activeOrder", "activeOrder", activeOrderQuery, nil)
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var payload orderPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("%w: decode order: %v", ErrUnavailable, err)
	}
	return payload.toDomain(), nil
}

// OrderByCode fetches an order by its public code for the confirmation view.
func (c *Client) OrderByCode(ctx context.Context, code string) (*domain.Order, error) {
	raw, err := c.execute(ctx, "orderByCode", "orderByCode", orderByCodeQuery, map[string]any{"code": code})
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 || string(raw) == "null" {
		return nil, ErrNoActiveOrder
	}
	var payload orderPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("%w: decode order: %v", ErrUnavailable, err)
	}
	return payload.toDomain(), nil
}

// AddItemToOrder adds quantity units of a product variant, creating the
// active order implicitly when none exists yet.
func (c *Client) AddItemToOrder(ctx context.Context, variantID string, quantity int) (*domain.Order, error) {
	raw, err := c.execute(ctx, "addItemToOrder", "addItemToOrder", addItemMutation, map[string]any{
		"productVariantId": variantID,
		"quantity":         quantity,
	})
	if err != nil {
		return nil, err
	}
	return decodeOrderResult(raw)
}

// RemoveOrderLine removes a line from the active order.
func (c *Client) RemoveOrderLine(ctx context.Context, lineID string) (*domain.Order, error) {
	raw, err := c.execute(ctx, "removeOrderLine", "removeOrderLine", removeLineMutation, map[string]any{
		"orderLineId": lineID,
	})
	if err != nil {
		return nil, err
	}
	return decodeOrderResult(raw)
}

// AdjustOrderLine sets the quantity of an existing order line.
func (c *Client) AdjustOrderLine(ctx context.Context, lineID string, quantity int) (*domain.Order, error) {
	raw, err := c.execute(ctx, "adjustOrderLine", "adjustOrderLine", adjustLineMutation, map[string]any{
		"orderLineId": lineID,
		"quantity":    quantity,
	})
	if err != nil {
		return nil, err
	}
	return decodeOrderResult(raw)
}

// SetCustomerForOrder attaches guest contact details to the active order.
func (c *Client) SetCustomerForOrder(ctx context.Context, email, firstName, lastName string) (*domain.Order, error) {
	raw, err := c.execute(ctx, "setCustomerForOrder", "setCustomerForOrder", setCustomerMutation, map[string]any{
		"input": map[string]any{
			"emailAddress": email,
			"firstName":    firstName,
			"lastName":     lastName,
		},
	})
	if err != nil {
		return nil, err
	}
	return decodeOrderResult(raw)
}

// SetShippingAddress overwrites the order's shipping address wholesale.
func (c *Client) SetShippingAddress(ctx context.Context, input AddressInput) (*domain.Order, error) {
	raw, err := c.execute(ctx, "setOrderShippingAddress", "setOrderShippingAddress", setShippingAddressMutation, map[string]any{
		"input": input,
	})
	if err != nil {
		return nil, err
	}
	return decodeOrderResult(raw)
}

// SetBillingAddress overwrites the order's billing address wholesale.
func (c *Client) SetBillingAddress(ctx context.Context, input AddressInput) (*domain.Order, error) {
	raw, err := c.execute(ctx, "setOrderBillingAddress", "setOrderBillingAddress", setBillingAddressMutation, map[string]any{
		"input": input,
	})
	if err != nil {
		return nil, err
	}
	return decodeOrderResult(raw)
}

// EligibleShippingMethods returns the delivery options valid for the order's
// current destination and contents.
func (c *Client) EligibleShippingMethods(ctx context.Context) ([]domain.ShippingMethod, error) {
	raw, err := c.execute(ctx, "eligibleShippingMethods", "eligibleShippingMethods", eligibleShippingMethodsQuery, nil)
	if err != nil {
		return nil, err
	}
	var payloads []shippingMethodPayload
	if err := json.Unmarshal(raw, &payloads); err != nil {
		return nil, fmt.Errorf("%w: decode shipping methods: %v", ErrUnavailable, err)
	}
	methods := make([]domain.ShippingMethod, 0, len(payloads))
	for _, p := range payloads {
		methods = append(methods, p.toDomain())
	}
	return methods, nil
}

// SetShippingMethod binds the order to a single shipping method, replacing
// any previous assignment.
func (c *Client) SetShippingMethod(ctx context.Context, methodID string) (*domain.Order, error) {
	raw, err := c.execute(ctx, "setOrderShippingMethod", "setOrderShippingMethod", setShippingMethodMutation, map[string]any{
		"shippingMethodId": methodID,
	})
	if err != nil {
		return nil, err
	}
	return decodeOrderResult(raw)
}

// EligiblePaymentMethods lists payment methods valid for the current order.
func (c *Client) EligiblePaymentMethods(ctx context.Context) ([]domain.PaymentMethodQuote, error) {
	raw, err := c.execute(ctx, "eligiblePaymentMethods", "eligiblePaymentMethods", eligiblePaymentMethodsQuery, nil)
	if err != nil {
		return nil, err
	}
	var payloads []paymentMethodPayload
	if err := json.Unmarshal(raw, &payloads); err != nil {
		return nil, fmt.Errorf("%w: decode payment methods: %v", ErrUnavailable, err)
	}
	quotes := make([]domain.PaymentMethodQuote, 0, len(payloads))
	for _, p := range payloads {
		quotes = append(quotes, domain.PaymentMethodQuote{
			Code:        p.Code,
			Name:        p.Name,
			Description: p.Description,
			IsEligible:  p.IsEligible,
		})
	}
	return quotes, nil
}

// AddPaymentToOrder submits a single payment attempt with channel metadata.
func (c *Client) AddPaymentToOrder(ctx context.Context, methodCode string, metadata map[string]any) (*domain.Order, error) {
	raw, err := c.execute(ctx, "addPaymentToOrder", "addPaymentToOrder", addPaymentMutation, map[string]any{
		"input": map[string]any{
			"method":   methodCode,
			"metadata": metadata,
		},
	})
	if err != nil {
		return nil, err
	}
	return decodeOrderResult(raw)
}

// NextOrderStates lists the transitions currently reachable from the order's state.
func (c *Client) NextOrderStates(ctx context.Context) ([]domain.OrderState, error) {
	raw, err := c.execute(ctx, "nextOrderStates", "nextOrderStates", nextOrderStatesQuery, nil)
	if err != nil {
		return nil, err
	}
	var states []string
	if err := json.Unmarshal(raw, &states); err != nil {
		return nil, fmt.Errorf("%w: decode order states: %v", ErrUnavailable, err)
	}
	result := make([]domain.OrderState, 0, len(states))
	for _, s := range states {
		result = append(result, domain.OrderState(strings.TrimSpace(s)))
	}
	return result, nil
}

// TransitionOrderToState moves the order to the requested lifecycle state.
func (c *Client) TransitionOrderToState(ctx context.Context, state domain.OrderState) (*domain.Order, error) {
	raw, err := c.execute(ctx, "transitionOrderToState", "transitionOrderToState", transitionOrderMutation, map[string]any{
		"state": string(state),
	})
	if err != nil {
		return nil, err
	}
	return decodeOrderResult(raw)
}

// ApplyCouponCode applies a coupon to the active order.
func (c *Client) ApplyCouponCode(ctx context.Context, code string) (*domain.Order, error) {
	raw, err := c.execute(ctx, "applyCouponCode", "applyCouponCode", applyCouponMutation, map[string]any{
		"couponCode": code,
	})
	if err != nil {
		return nil, err
	}
	return decodeOrderResult(raw)
}

// RemoveCouponCode removes a previously applied coupon from the active order.
func (c *Client) RemoveCouponCode(ctx context.Context, code string) (*domain.Order, error) {
	raw, err := c.execute(ctx, "removeCouponCode", "removeCouponCode", removeCouponMutation, map[string]any{
		"couponCode": code,
	})
	if err != nil {
		return nil, err
	}
	return decodeOrderResult(raw)
}

// SearchDestinations resolves a free-text query into ranked destination
// candidates.
func (c *Client) SearchDestinations(ctx context.Context, query string, limit, offset int) ([]domain.Destination, error) {
	variables := map[string]any{"query": query}
	if limit > 0 {
		variables["limit"] = limit
	}
	if offset > 0 {
		variables["offset"] = offset
	}
	raw, err := c.execute(ctx, "searchDestinations", "searchDestinations", searchDestinationsQuery, variables)
	if err != nil {
		return nil, err
	}
	var payload struct {
		Items []destinationPayload `json:"items"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("%w: decode destinations: %v", ErrUnavailable, err)
	}
	destinations := make([]domain.Destination, 0, len(payload.Items))
	for _, item := range payload.Items {
		destinations = append(destinations, item.toDomain())
	}
	return destinations, nil
}

// AvailableCountries lists the countries the channel ships to.
func (c *Client) AvailableCountries(ctx context.Context) ([]domain.Country, error) {
	raw, err := c.execute(ctx, "availableCountries", "availableCountries", availableCountriesQuery, nil)
	if err != nil {
		return nil, err
	}
	var payloads []countryPayload
	if err := json.Unmarshal(raw, &payloads); err != nil {
		return nil, fmt.Errorf("%w: decode countries: %v", ErrUnavailable, err)
	}
	countries := make([]domain.Country, 0, len(payloads))
	for _, p := range payloads {
		countries = append(countries, domain.Country{Code: p.Code, Name: strings.TrimSpace(p.Name)})
	}
	return countries, nil
}

func drainError(r io.Reader) string {
	if r == nil {
		return ""
	}
	b, _ := io.ReadAll(io.LimitReader(r, 256))
	return strings.TrimSpace(string(b))
}
