package checkout

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/sakara-commerce/storefront/internal/domain"
)

// Ticker abstracts time.Ticker so tests can drive polling deterministically.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// TickerFactory creates a Ticker with the given interval.
type TickerFactory func(time.Duration) Ticker

type realTicker struct{ t *time.Ticker }

func (r realTicker) C() <-chan time.Time { return r.t.C }
func (r realTicker) Stop()               { r.t.Stop() }

func newRealTicker(d time.Duration) Ticker { return realTicker{t: time.NewTicker(d)} }

// SettlementPollerDeps wires the dependencies for a SettlementPoller.
type SettlementPollerDeps struct {
	Client   OrderClient
	Logger   *zap.Logger
	Interval time.Duration
	// NewTicker defaults to time.NewTicker.
	NewTicker TickerFactory
}

// SettlementPoller re-fetches a placed order on a fixed interval while the
// customer waits on the confirmation view, stopping once the payment reaches
// a terminal state. Fetches never overlap: a slow fetch delays the next tick
// rather than stacking requests.
type SettlementPoller struct {
	client    OrderClient
	logger    *zap.Logger
	interval  time.Duration
	newTicker TickerFactory
}

// NewSettlementPoller constructs a poller validating required dependencies.
func NewSettlementPoller(deps SettlementPollerDeps) (*SettlementPoller, error) {
	if deps.Client == nil {
		return nil, errors.New("checkout: order client is required")
	}
	if deps.Interval <= 0 {
		return nil, errors.New("checkout: poll interval must be positive")
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	factory := deps.NewTicker
	if factory == nil {
		factory = newRealTicker
	}
	return &SettlementPoller{
		client:    deps.Client,
		logger:    logger,
		interval:  deps.Interval,
		newTicker: factory,
	}, nil
}

// Poll fetches the order by code until its payment reaches a terminal state
// or ctx is cancelled, invoking onUpdate after every successful fetch. It
// returns the final order observed, or ctx.Err() on cancellation. Transient
// fetch errors are logged and the next tick retries.
func (p *SettlementPoller) Poll(ctx context.Context, orderCode string, onUpdate func(*domain.Order)) (*domain.Order, error) {
	ticker := p.newTicker(p.interval)
	defer ticker.Stop()

	var last *domain.Order
	for {
		order, err := p.client.OrderByCode(ctx, orderCode)
		switch {
		case err != nil && ctx.Err() != nil:
			return last, ctx.Err()
		case err != nil:
			p.logger.Warn("settlement poll fetch failed",
				zap.String("order_code", orderCode),
				zap.Error(err))
		default:
			last = order
			if onUpdate != nil {
				onUpdate(order)
			}
			if settled(order) {
				return order, nil
			}
		}

		select {
		case <-ctx.Done():
			return last, ctx.Err()
		case <-ticker.C():
		}
	}
}

// settled reports whether polling can stop: the latest payment reached a
// terminal state, or the order itself left the payment-pending states.
func settled(order *domain.Order) bool {
	if order == nil {
		return false
	}
	switch order.State {
	case domain.OrderStatePaymentSettled, domain.OrderStateCancelled:
		return true
	}
	if p := order.LatestPayment(); p != nil && p.State.Terminal() {
		return true
	}
	return false
}
