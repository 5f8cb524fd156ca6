package checkout

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/sakara-commerce/storefront/internal/domain"
	"github.com/sakara-commerce/storefront/internal/gateway"
	"github.com/sakara-commerce/storefront/internal/platform/config"
)

// Channel identifies a concrete payment instrument for dispatch. Each
// implementation contributes its own gateway metadata; channelMetadata is the
// single place that switches on the concrete type.
type Channel interface {
	channelType() string
}

// BankTransfer pays through a virtual account at the named bank.
type BankTransfer struct {
	Bank string
}

// ConvenienceStore pays over the counter at the named store chain.
type ConvenienceStore struct {
	Store string
}

// EWallet pays through the named wallet application.
type EWallet struct {
	Wallet string
}

// QRCode pays by scanning a QRIS code; no further parameter is needed.
type QRCode struct{}

func (BankTransfer) channelType() string     { return "bank_transfer" }
func (ConvenienceStore) channelType() string { return "cstore" }
func (EWallet) channelType() string          { return "ewallet" }
func (QRCode) channelType() string           { return "qris" }

// channelMetadata validates the channel against the catalog and builds the
// gateway instruction metadata. Adding a channel type without extending this
// switch fails dispatch loudly rather than sending a malformed instruction.
func channelMetadata(catalog config.ChannelCatalog, ch Channel) (map[string]any, error) {
	switch c := ch.(type) {
	case BankTransfer:
		bank := strings.ToLower(strings.TrimSpace(c.Bank))
		if !catalog.HasBank(bank) {
			return nil, &ValidationError{Field: "bank", Message: fmt.Sprintf("unknown bank %q", c.Bank)}
		}
		return map[string]any{
			"paymentType": c.channelType(),
			"bank":        bank,
		}, nil
	case ConvenienceStore:
		store := strings.ToLower(strings.TrimSpace(c.Store))
		if !catalog.HasStore(store) {
			return nil, &ValidationError{Field: "store", Message: fmt.Sprintf("unknown store %q", c.Store)}
		}
		return map[string]any{
			"paymentType": c.channelType(),
			"store":       store,
		}, nil
	case EWallet:
		wallet := strings.ToLower(strings.TrimSpace(c.Wallet))
		if !catalog.HasWallet(wallet) {
			return nil, &ValidationError{Field: "wallet", Message: fmt.Sprintf("unknown wallet %q", c.Wallet)}
		}
		return map[string]any{
			"paymentType": c.channelType(),
			"wallet":      wallet,
		}, nil
	case QRCode:
		return map[string]any{
			"paymentType": c.channelType(),
		}, nil
	case nil:
		return nil, ErrPaymentMethodRequired
	default:
		return nil, fmt.Errorf("checkout: unsupported payment channel %T", ch)
	}
}

// ParseChannel builds a Channel from its wire discriminator and parameter,
// as submitted by the payment form.
func ParseChannel(paymentType, code string) (Channel, error) {
	switch paymentType {
	case "bank_transfer":
		return BankTransfer{Bank: code}, nil
	case "cstore":
		return ConvenienceStore{Store: code}, nil
	case "ewallet":
		return EWallet{Wallet: code}, nil
	case "qris":
		return QRCode{}, nil
	case "":
		return nil, ErrPaymentMethodRequired
	default:
		return nil, &ValidationError{Field: "paymentType", Message: fmt.Sprintf("unknown payment type %q", paymentType)}
	}
}

// DispatchResult is the outcome of a successful payment dispatch.
type DispatchResult struct {
	Order       *domain.Order
	Payment     *domain.Payment
	OrderCode   string
	RedirectURL string
}

// PaymentDispatcherDeps wires the dependencies for a PaymentDispatcher.
type PaymentDispatcherDeps struct {
	Manager    *ActiveOrderManager
	Catalog    config.ChannelCatalog
	MethodCode string
	Logger     *zap.Logger
	Clock      func() time.Time
}

// PaymentDispatcher finalises checkout: it verifies preconditions, moves the
// order to ArrangingPayment, and submits exactly one payment attempt per
// customer intent.
type PaymentDispatcher struct {
	manager    *ActiveOrderManager
	catalog    config.ChannelCatalog
	methodCode string
	logger     *zap.Logger
	now        func() time.Time
}

// NewPaymentDispatcher constructs a dispatcher validating required dependencies.
func NewPaymentDispatcher(deps PaymentDispatcherDeps) (*PaymentDispatcher, error) {
	if deps.Manager == nil {
		return nil, errors.New("checkout: active order manager is required")
	}
	if strings.TrimSpace(deps.MethodCode) == "" {
		return nil, errors.New("checkout: payment method code is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	return &PaymentDispatcher{
		manager:    deps.Manager,
		catalog:    deps.Catalog,
		methodCode: deps.MethodCode,
		logger:     logger,
		now:        func() time.Time { return clock().UTC() },
	}, nil
}

// Dispatch submits the order for payment over the selected channel. The order
// must carry a customer, a complete shipping address, and a still-valid
// shipping method; each missing precondition maps to its own sentinel so the
// UI can send the customer back to the exact step that needs attention.
func (d *PaymentDispatcher) Dispatch(ctx context.Context, ch Channel) (*DispatchResult, error) {
	metadata, err := channelMetadata(d.catalog, ch)
	if err != nil {
		return nil, err
	}

	order, err := d.manager.GetActiveOrder(ctx)
	if err != nil {
		return nil, err
	}
	if err := d.checkPreconditions(order); err != nil {
		return nil, err
	}

	// Fall back to the shipping address when no billing address was captured.
	if order.BillingAddress == nil || !order.BillingAddress.Complete() {
		if _, err := d.manager.SetBillingAddress(ctx, *order.ShippingAddress); err != nil {
			return nil, fmt.Errorf("checkout: set billing address: %w", err)
		}
	}

	if order.State == domain.OrderStateAddingItems {
		if err := d.transitionToArrangingPayment(ctx); err != nil {
			return nil, err
		}
	}

	metadata["idempotencyKey"] = ulid.MustNew(ulid.Timestamp(d.now()), rand.Reader).String()

	paid, err := d.manager.AddPayment(ctx, d.methodCode, metadata)
	if err != nil {
		if domErr, ok := gateway.AsDomainError(err); ok {
			// A declined attempt leaves the order in ArrangingPayment; the
			// customer retries with a different channel, the cart is intact.
			d.logger.Info("payment attempt rejected",
				zap.String("error_code", domErr.Code),
				zap.String("payment_type", ch.channelType()))
		}
		return nil, err
	}

	payment := paid.LatestPayment()
	result := &DispatchResult{
		Order:     paid,
		Payment:   payment,
		OrderCode: paid.Code,
	}
	if payment != nil {
		if url, ok := payment.Metadata["redirectUrl"].(string); ok {
			result.RedirectURL = url
		}
	}

	d.logger.Info("payment dispatched",
		zap.String("order_code", paid.Code),
		zap.String("payment_type", ch.channelType()),
		zap.String("order_state", string(paid.State)))

	return result, nil
}

// checkPreconditions verifies the order is ready for payment. Checks run in
// checkout-step order so the first failure points at the earliest gap.
func (d *PaymentDispatcher) checkPreconditions(order *domain.Order) error {
	if order == nil || order.LineCount() == 0 {
		return gateway.ErrNoActiveOrder
	}
	if !order.HasCustomer() {
		return ErrCustomerRequired
	}
	if !order.HasShippingAddress() {
		return ErrShippingAddressRequired
	}
	if !order.HasShippingLine() {
		return ErrShippingMethodRequired
	}
	if !d.manager.ShippingSelectionValid() {
		return ErrShippingSelectionStale
	}
	return nil
}

// transitionToArrangingPayment moves the order out of AddingItems, but only
// after confirming the API lists the transition as reachable.
func (d *PaymentDispatcher) transitionToArrangingPayment(ctx context.Context) error {
	states, err := d.manager.NextOrderStates(ctx)
	if err != nil {
		return err
	}
	available := false
	for _, s := range states {
		if s == domain.OrderStateArrangingPayment {
			available = true
			break
		}
	}
	if !available {
		return ErrTransitionNotAvailable
	}
	if _, err := d.manager.TransitionToState(ctx, domain.OrderStateArrangingPayment); err != nil {
		return err
	}
	return nil
}
