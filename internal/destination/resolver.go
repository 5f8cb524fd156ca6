// Package destination implements shipping-destination search: a resolver
// enforcing the minimum query length and a debounced typeahead that discards
// stale results.
package destination

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/sakara-commerce/storefront/internal/domain"
)

// SearchClient is the slice of the commerce API the resolver consumes.
type SearchClient interface {
	SearchDestinations(ctx context.Context, query string, limit, offset int) ([]domain.Destination, error)
}

// ErrQueryTooShort indicates the query is below the minimum length and no
// search was issued.
var ErrQueryTooShort = errors.New("destination: query too short")

// ResolverDeps wires the dependencies for a Resolver.
type ResolverDeps struct {
	Client         SearchClient
	Logger         *zap.Logger
	MinQueryLength int
	ResultLimit    int
}

// Resolver performs destination searches with the minimum-length guard
// applied. Queries shorter than the minimum return ErrQueryTooShort without
// touching the network.
type Resolver struct {
	client SearchClient
	logger *zap.Logger
	minLen int
	limit  int
}

// NewResolver constructs a resolver validating required dependencies.
func NewResolver(deps ResolverDeps) (*Resolver, error) {
	if deps.Client == nil {
		return nil, errors.New("destination: search client is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	minLen := deps.MinQueryLength
	if minLen < 1 {
		minLen = 3
	}
	limit := deps.ResultLimit
	if limit < 1 {
		limit = 10
	}
	return &Resolver{client: deps.Client, logger: logger, minLen: minLen, limit: limit}, nil
}

// Search runs a destination query. The length guard counts runes, not bytes.
func (r *Resolver) Search(ctx context.Context, query string) ([]domain.Destination, error) {
	query = strings.TrimSpace(query)
	if utf8.RuneCountInString(query) < r.minLen {
		return nil, ErrQueryTooShort
	}
	results, err := r.client.SearchDestinations(ctx, query, r.limit, 0)
	if err != nil {
		return nil, err
	}
	return results, nil
}

// Selection is the outcome delivered to a typeahead subscriber.
type Selection struct {
	Query   string
	Results []domain.Destination
	// AutoSelected is set when the query matched exactly one destination, so
	// the caller can bind it without a further click.
	AutoSelected *domain.Destination
	Err          error
}

// TimerFactory abstracts time.AfterFunc so tests can fire debounce timers
// deterministically.
type TimerFactory func(d time.Duration, fn func()) Timer

// Timer is the stop-only surface of a debounce timer.
type Timer interface {
	Stop() bool
}

func realAfterFunc(d time.Duration, fn func()) Timer { return time.AfterFunc(d, fn) }

// TypeaheadDeps wires the dependencies for a Typeahead.
type TypeaheadDeps struct {
	Resolver *Resolver
	Logger   *zap.Logger
	Debounce time.Duration
	// NewTimer defaults to time.AfterFunc.
	NewTimer TimerFactory
}

// Typeahead debounces keystroke-driven queries and guarantees only the
// response to the latest query reaches the subscriber: each accepted query
// bumps a generation counter, and responses carrying an older generation are
// discarded even when they arrive later.
type Typeahead struct {
	resolver *Resolver
	logger   *zap.Logger
	debounce time.Duration
	newTimer TimerFactory
	deliver  func(Selection)

	mu         sync.Mutex
	generation uint64
	pending    Timer
}

// NewTypeahead constructs a typeahead delivering results through deliver.
func NewTypeahead(deps TypeaheadDeps, deliver func(Selection)) (*Typeahead, error) {
	if deps.Resolver == nil {
		return nil, errors.New("destination: resolver is required")
	}
	if deliver == nil {
		return nil, errors.New("destination: deliver callback is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	debounce := deps.Debounce
	if debounce <= 0 {
		debounce = 300 * time.Millisecond
	}
	factory := deps.NewTimer
	if factory == nil {
		factory = realAfterFunc
	}
	return &Typeahead{
		resolver: deps.Resolver,
		logger:   logger,
		debounce: debounce,
		newTimer: factory,
		deliver:  deliver,
	}, nil
}

// Input registers a keystroke-level query. The search fires only after the
// debounce window elapses with no further input; queries below the minimum
// length cancel any pending search and deliver an empty result immediately.
func (t *Typeahead) Input(ctx context.Context, query string) {
	query = strings.TrimSpace(query)

	t.mu.Lock()
	t.generation++
	gen := t.generation
	if t.pending != nil {
		t.pending.Stop()
		t.pending = nil
	}
	if utf8.RuneCountInString(query) < t.resolver.minLen {
		t.mu.Unlock()
		t.deliver(Selection{Query: query})
		return
	}
	t.pending = t.newTimer(t.debounce, func() {
		t.run(ctx, gen, query, false)
	})
	t.mu.Unlock()
}

// Prefill resolves a stored query immediately, skipping the debounce, and
// auto-selects when exactly one destination matches. Used when re-entering
// the address step with a previously chosen destination label.
func (t *Typeahead) Prefill(ctx context.Context, query string) {
	query = strings.TrimSpace(query)

	t.mu.Lock()
	t.generation++
	gen := t.generation
	if t.pending != nil {
		t.pending.Stop()
		t.pending = nil
	}
	t.mu.Unlock()

	t.run(ctx, gen, query, true)
}

func (t *Typeahead) run(ctx context.Context, gen uint64, query string, autoSelect bool) {
	results, err := t.resolver.Search(ctx, query)

	t.mu.Lock()
	stale := gen != t.generation
	t.mu.Unlock()
	if stale {
		return
	}

	sel := Selection{Query: query, Results: results, Err: err}
	if err == nil && autoSelect && len(results) == 1 {
		sel.AutoSelected = &results[0]
	}
	if err != nil && !errors.Is(err, ErrQueryTooShort) {
		t.logger.Warn("destination search failed",
			zap.String("query", query),
			zap.Error(err))
	}
	t.deliver(sel)
}
