package types

import (
	"github.com/moznion/go-optional"
	"github.com/shopspring/decimal"
)

// Side is the direction of an order.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Reverse returns the opposite side.
func (s Side) Reverse() Side {
	if s == SideBuy {
		return SideSell
	}

	return SideBuy
}

func (s Side) IsBuy() bool {
	return s == SideBuy
}

// Leg names the section of a trade a strategy manages.
type Leg string

const (
	LegEntry Leg = "entry"
	LegExit  Leg = "exit"
)

// TradeSection holds the targets of one leg and the smart order thresholds used for them.
type TradeSection struct {
	// Side overrides the side derived from the trade.
	Side optional.Option[Side]
	// StopLossThreshold bounds an adverse move from the reference before firing at once.
	StopLossThreshold Value
	// PullbackThreshold is the retrace from the extreme that fires the smart order.
	PullbackThreshold Value
	Targets           []*Target
}

// IsCompleted reports whether every target is terminal and at least one was filled.
func (s *TradeSection) IsCompleted() bool {
	if s == nil || len(s.Targets) == 0 {
		return false
	}

	filled := false

	for _, t := range s.Targets {
		if !t.IsTerminal() {
			return false
		}

		if t.IsFilled() {
			filled = true
		}
	}

	return filled
}

// AllTerminal reports whether every target reached a final status.
func (s *TradeSection) AllTerminal() bool {
	for _, t := range s.Targets {
		if !t.IsTerminal() {
			return false
		}
	}

	return true
}

// Trade is one trade on a single symbol with an entry and an exit section.
//
// Side is the trade's nominal side, the side of its exit orders: a long trade has
// SideSell. The entry leg uses the reverse side unless its section overrides it.
// The trade owns both sections; strategies only reach their own section.
type Trade struct {
	ID     string
	Symbol string
	// Asset is the balance used as the sizing reference for percentage sizes.
	Asset string
	Side  Side
	Entry *TradeSection
	Exit  *TradeSection
}

// Section returns the section for a leg, or nil when the trade has none.
func (t *Trade) Section(leg Leg) *TradeSection {
	if leg == LegEntry {
		return t.Entry
	}

	return t.Exit
}

// LegSide returns the order side used for the given leg.
func (t *Trade) LegSide(leg Leg) Side {
	section := t.Section(leg)
	if section != nil && section.Side.IsSome() {
		return section.Side.Unwrap()
	}

	if leg == LegEntry {
		return t.Side.Reverse()
	}

	return t.Side
}

// Balance is the available and locked amount of one asset.
type Balance struct {
	Asset     string
	Available decimal.Decimal
	Locked    decimal.Decimal
}
