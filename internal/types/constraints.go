package types

import (
	"github.com/rxtech-lab/argo-smartorder/pkg/errors"
	"github.com/shopspring/decimal"
)

// SymbolConstraints is the legal price and quantity grid of a symbol.
// Zero fields mean the venue reported no bound.
type SymbolConstraints struct {
	Symbol      string
	MinPrice    decimal.Decimal
	MaxPrice    decimal.Decimal
	PriceStep   decimal.Decimal
	MinQty      decimal.Decimal
	MaxQty      decimal.Decimal
	QtyStep     decimal.Decimal
	MinNotional decimal.Decimal
}

// AdjustPrice snaps price onto the price grid, rounding up when roundUp is set and down
// otherwise, then clamps it into [MinPrice, MaxPrice].
func (c SymbolConstraints) AdjustPrice(price decimal.Decimal, roundUp bool) decimal.Decimal {
	adjusted := snap(price, c.PriceStep, roundUp)

	if c.MaxPrice.IsPositive() && adjusted.GreaterThan(c.MaxPrice) {
		adjusted = c.MaxPrice
	}

	if c.MinPrice.IsPositive() && adjusted.LessThan(c.MinPrice) {
		adjusted = c.MinPrice
	}

	return adjusted
}

// AdjustQuantity rounds quantity down onto the lot grid and caps it at MaxQty.
func (c SymbolConstraints) AdjustQuantity(quantity decimal.Decimal) decimal.Decimal {
	adjusted := snap(quantity, c.QtyStep, false)

	if c.MaxQty.IsPositive() && adjusted.GreaterThan(c.MaxQty) {
		adjusted = snap(c.MaxQty, c.QtyStep, false)
	}

	return adjusted
}

// CheckMinimums rejects orders the venue would refuse for being too small.
func (c SymbolConstraints) CheckMinimums(price decimal.Decimal, quantity decimal.Decimal) error {
	if !quantity.IsPositive() {
		return errors.Newf(errors.ErrCodeOrderBelowMinimum, "quantity %s is not positive", quantity)
	}

	if c.MinQty.IsPositive() && quantity.LessThan(c.MinQty) {
		return errors.Newf(errors.ErrCodeOrderBelowMinimum, "quantity %s is below minimum %s", quantity, c.MinQty)
	}

	notional := price.Mul(quantity)
	if c.MinNotional.IsPositive() && notional.LessThan(c.MinNotional) {
		return errors.Newf(errors.ErrCodeOrderBelowMinimum, "notional %s is below minimum %s", notional, c.MinNotional)
	}

	return nil
}

func snap(value decimal.Decimal, step decimal.Decimal, roundUp bool) decimal.Decimal {
	if !step.IsPositive() {
		return value
	}

	steps := value.Div(step)
	if roundUp {
		steps = steps.Ceil()
	} else {
		steps = steps.Floor()
	}

	return steps.Mul(step)
}
