// Package trading provides order sizing utilities.
package trading

import "github.com/shopspring/decimal"

// SizeOrder computes the order quantity for one account. When scale is set,
// base is multiplied by conviction (clamped to [0,1]). The result is floored
// to a multiple of step and never drops below one step. A non-positive base
// or step yields zero.
func SizeOrder(base, step decimal.Decimal, conviction float64, scale bool) decimal.Decimal {
	if !base.IsPositive() || !step.IsPositive() {
		return decimal.Zero
	}
	qty := base
	if scale {
		c := decimal.NewFromFloat(conviction)
		if c.IsNegative() {
			c = decimal.Zero
		}
		if c.GreaterThan(decimal.NewFromInt(1)) {
			c = decimal.NewFromInt(1)
		}
		qty = base.Mul(c)
	}
	steps := qty.Div(step).Floor()
	if steps.LessThan(decimal.NewFromInt(1)) {
		steps = decimal.NewFromInt(1)
	}
	return steps.Mul(step)
}
