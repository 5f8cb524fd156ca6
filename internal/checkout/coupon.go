package checkout

import (
	"context"

	"go.uber.org/zap"

	"github.com/sakara-commerce/storefront/internal/domain"
)

// ApplyCoupon applies a coupon code and verifies it actually changed the
// order. The commerce API accepts any structurally valid code regardless of
// whether its promotion conditions match the cart, so acceptance alone proves
// nothing. When the applied code produced no price reduction, no discount
// entry, and no gift line, the application is reverted with a compensating
// removal and ErrCouponNotApplicable is returned alongside the restored
// snapshot.
func (m *ActiveOrderManager) ApplyCoupon(ctx context.Context, code string) (*domain.Order, error) {
	code = normalizeCoupon(code)
	if code == "" {
		return nil, &ValidationError{Field: "couponCode", Message: "required"}
	}

	if err := m.begin(actionCoupon); err != nil {
		return nil, err
	}
	defer m.end(actionCoupon)

	m.mu.Lock()
	defer m.mu.Unlock()

	prev := m.snapshot

	applied, err := m.client.ApplyCouponCode(ctx, code)
	if err != nil {
		return nil, err
	}

	if couponEffective(prev, applied, code) {
		m.setSnapshotLocked(applied)
		return applied, nil
	}

	reverted, revertErr := m.client.RemoveCouponCode(ctx, code)
	if revertErr != nil {
		// The revert failed; keep the applied snapshot so the UI reflects
		// server truth, but still surface the ineffectiveness.
		m.logger.Warn("coupon revert failed",
			zap.String("coupon_code", code),
			zap.Error(revertErr))
		m.setSnapshotLocked(applied)
		return applied, ErrCouponNotApplicable
	}
	m.setSnapshotLocked(reverted)
	return reverted, ErrCouponNotApplicable
}

// couponEffective reports whether applying code observably changed the order:
// a lower total, a discount attributed to the code, or a promotion gift line
// added at zero prorated price.
func couponEffective(prev, applied *domain.Order, code string) bool {
	if applied == nil {
		return false
	}
	if prev != nil && applied.Totals.TotalWithTax < prev.Totals.TotalWithTax {
		return true
	}
	for _, d := range applied.Discounts {
		if d.CouponCode == code && d.AmountWithTax != 0 {
			return true
		}
	}
	// Free-gift promotions add a new line whose prorated unit price is zero
	// without lowering the pre-existing total.
	if prev != nil {
		seen := make(map[string]struct{}, len(prev.Lines))
		for _, l := range prev.Lines {
			seen[l.ID] = struct{}{}
		}
		for _, l := range applied.Lines {
			if _, ok := seen[l.ID]; ok {
				continue
			}
			if l.ProratedUnitPriceWithTax == 0 {
				return true
			}
		}
	}
	return false
}

func normalizeCoupon(code string) string {
	out := make([]rune, 0, len(code))
	for _, r := range code {
		if r == ' ' || r == '\t' || r == '\n' || r == '\r' {
			continue
		}
		out = append(out, r)
	}
	return string(out)
}
