// Package smartorder implements the trailing trigger that decides when a smart order fires.
package smartorder

import (
	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-smartorder/internal/types"
	"github.com/rxtech-lab/argo-smartorder/pkg/errors"
	"github.com/shopspring/decimal"
)

// Direction is the price direction the trigger waits for.
type Direction int

const (
	// FavorHigher tracks the running maximum and fires on a drop from it. Used for sell orders.
	FavorHigher Direction = iota
	// FavorLower tracks the running minimum and fires on a rise from it. Used for buy orders.
	FavorLower
)

func (d Direction) String() string {
	if d == FavorHigher {
		return "favor_higher"
	}

	return "favor_lower"
}

// DirectionForSide returns the direction in which a move is favorable for an order on side.
func DirectionForSide(side types.Side) Direction {
	if side == types.SideSell {
		return FavorHigher
	}

	return FavorLower
}

// FireFunc receives the price the trigger fired at.
type FireFunc func(stopPrice decimal.Decimal) error

// TrailingTrigger fires once, either when price retraces by the pullback threshold from the
// best price seen after moving more than that far from the reference, or at once when price
// moves against the reference by more than the stop-loss threshold.
//
// TrailingTrigger is not safe for concurrent use.
type TrailingTrigger struct {
	direction Direction
	stopLoss  types.Value
	pullback  types.Value
	onFire    FireFunc

	reference optional.Option[decimal.Decimal]
	extremum  decimal.Decimal
	// resolved thresholds, fixed at Init
	stopLossAbs decimal.Decimal
	pullbackAbs decimal.Decimal
	armed       bool
	fired       bool
}

// New creates an uninitialized trigger. Thresholds may be relative; they resolve against
// the reference price passed to Init.
func New(direction Direction, stopLoss types.Value, pullback types.Value, onFire FireFunc) *TrailingTrigger {
	return &TrailingTrigger{
		direction: direction,
		stopLoss:  stopLoss,
		pullback:  pullback,
		onFire:    onFire,
		reference: optional.None[decimal.Decimal](),
	}
}

// Init sets the reference price. It can be called only once.
func (t *TrailingTrigger) Init(reference decimal.Decimal) error {
	if t.reference.IsSome() {
		return errors.Newf(errors.ErrCodeAlreadyInitialized, "trailing trigger already initialized at %s", t.reference.Unwrap())
	}

	t.reference = optional.Some(reference)
	t.extremum = reference
	t.stopLossAbs = t.stopLoss.Resolve(reference).Abs()
	t.pullbackAbs = t.pullback.Resolve(reference).Abs()

	return nil
}

// PriceUpdate feeds one price. It is a no-op before Init and after firing.
// The returned error is the fire callback's error.
func (t *TrailingTrigger) PriceUpdate(price decimal.Decimal) error {
	if t.reference.IsNone() || t.fired {
		return nil
	}

	reference := t.reference.Unwrap()

	if t.adverse(reference, price).GreaterThan(t.stopLossAbs) {
		return t.fire(price)
	}

	if t.better(price, t.extremum) {
		t.extremum = price
	}

	// arming needs a move past the threshold, firing needs a retrace of at least it
	if !t.armed && t.favorable(reference, t.extremum).GreaterThan(t.pullbackAbs) {
		t.armed = true
	}

	if t.armed && t.adverse(t.extremum, price).GreaterThanOrEqual(t.pullbackAbs) {
		return t.fire(price)
	}

	return nil
}

func (t *TrailingTrigger) fire(price decimal.Decimal) error {
	t.fired = true

	if t.onFire == nil {
		return nil
	}

	return t.onFire(price)
}

// favorable is how far price moved from base in the favorable direction.
func (t *TrailingTrigger) favorable(base decimal.Decimal, price decimal.Decimal) decimal.Decimal {
	if t.direction == FavorHigher {
		return price.Sub(base)
	}

	return base.Sub(price)
}

func (t *TrailingTrigger) adverse(base decimal.Decimal, price decimal.Decimal) decimal.Decimal {
	return t.favorable(base, price).Neg()
}

func (t *TrailingTrigger) better(price decimal.Decimal, than decimal.Decimal) bool {
	return t.favorable(than, price).IsPositive()
}

func (t *TrailingTrigger) IsInitialized() bool {
	return t.reference.IsSome()
}

func (t *TrailingTrigger) IsArmed() bool {
	return t.armed
}

func (t *TrailingTrigger) HasFired() bool {
	return t.fired
}

// Reference returns the initial price, if set.
func (t *TrailingTrigger) Reference() optional.Option[decimal.Decimal] {
	return t.reference
}

// Extremum returns the best price seen since Init.
func (t *TrailingTrigger) Extremum() decimal.Decimal {
	return t.extremum
}

func (t *TrailingTrigger) Direction() Direction {
	return t.direction
}

// StopLossThreshold returns the resolved stop-loss distance. Zero before Init.
func (t *TrailingTrigger) StopLossThreshold() decimal.Decimal {
	return t.stopLossAbs
}
