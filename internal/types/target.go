package types

import (
	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-smartorder/pkg/errors"
	"github.com/shopspring/decimal"
)

// TargetStatus is the lifecycle status of one order leg.
type TargetStatus string

const (
	TargetStatusPending         TargetStatus = "PENDING"
	TargetStatusActive          TargetStatus = "ACTIVE"
	TargetStatusPartiallyFilled TargetStatus = "PARTIALLY_FILLED"
	TargetStatusFilled          TargetStatus = "FILLED"
	TargetStatusCanceled        TargetStatus = "CANCELED"
	TargetStatusPendingCancel   TargetStatus = "PENDING_CANCEL"
	TargetStatusRejected        TargetStatus = "REJECTED"
	TargetStatusExpired         TargetStatus = "EXPIRED"
)

// IsTerminal reports whether no further transition is allowed.
func (s TargetStatus) IsTerminal() bool {
	switch s {
	case TargetStatusFilled, TargetStatusCanceled, TargetStatusRejected, TargetStatusExpired:
		return true
	default:
		return false
	}
}

// HasOrder reports whether a target in this status is backed by a live venue order.
func (s TargetStatus) HasOrder() bool {
	switch s {
	case TargetStatusActive, TargetStatusPartiallyFilled, TargetStatusPendingCancel:
		return true
	default:
		return false
	}
}

// TargetStatusFromOrderStatus maps a venue order status onto a target status.
func TargetStatusFromOrderStatus(status OrderStatus) (TargetStatus, bool) {
	switch status {
	case OrderStatusNew:
		return TargetStatusActive, true
	case OrderStatusPartiallyFilled:
		return TargetStatusPartiallyFilled, true
	case OrderStatusFilled:
		return TargetStatusFilled, true
	case OrderStatusCanceled:
		return TargetStatusCanceled, true
	case OrderStatusPendingCancel:
		return TargetStatusPendingCancel, true
	case OrderStatusRejected:
		return TargetStatusRejected, true
	case OrderStatusExpired:
		return TargetStatusExpired, true
	default:
		return "", false
	}
}

// Target is one order leg of a trade.
//
// The order id is set exactly while the status is Active, PartiallyFilled or
// PendingCancel. Terminal targets never change again.
type Target struct {
	price         Value
	priceResolved bool
	size          Value
	status        TargetStatus
	orderID       optional.Option[string]
}

// NewTarget creates a pending target without an order.
func NewTarget(price Value, size Value) *Target {
	return &Target{
		price:         price,
		priceResolved: price.IsAbsolute(),
		size:          size,
		status:        TargetStatusPending,
		orderID:       optional.None[string](),
	}
}

// Price returns the configured price, or the absolute price once resolved.
func (t *Target) Price() Value {
	return t.price
}

// PriceResolved reports whether the price has been fixed to an absolute number.
func (t *Target) PriceResolved() bool {
	return t.priceResolved
}

// ResolvePrice fixes the target price against the first seen market price and returns it.
// Only the first call mutates the target.
func (t *Target) ResolvePrice(market decimal.Decimal) decimal.Decimal {
	if t.priceResolved {
		return t.price.Magnitude()
	}

	resolved := t.price.ApplyTo(market)
	t.price = NewAbsoluteValue(resolved)
	t.priceResolved = true

	return resolved
}

func (t *Target) Size() Value {
	return t.size
}

func (t *Target) Status() TargetStatus {
	return t.status
}

func (t *Target) OrderID() optional.Option[string] {
	return t.orderID
}

// HasOrder reports whether the target is backed by a live order.
func (t *Target) HasOrder() bool {
	return t.orderID.IsSome()
}

// IsTerminal reports whether the target reached a final status.
func (t *Target) IsTerminal() bool {
	return t.status.IsTerminal()
}

// IsFilled reports whether the target was completely filled.
func (t *Target) IsFilled() bool {
	return t.status == TargetStatusFilled
}

// OwnsOrder reports whether orderID is this target's live order.
func (t *Target) OwnsOrder(orderID string) bool {
	return t.orderID.IsSome() && t.orderID.Unwrap() == orderID
}

// Activate records an accepted order for a target without one.
func (t *Target) Activate(orderID string) error {
	if t.IsTerminal() {
		return errors.Newf(errors.ErrCodeTargetTerminal, "target is %s", t.status)
	}

	if t.HasOrder() {
		return errors.Newf(errors.ErrCodeInvalidTransition, "target already has order %s", t.orderID.Unwrap())
	}

	if orderID == "" {
		return errors.New(errors.ErrCodeInvalidParameter, "order id is required")
	}

	t.orderID = optional.Some(orderID)
	t.status = TargetStatusActive

	return nil
}

// ReleaseOrder detaches a live order that was canceled on purpose so that a replacement
// can be placed. The target goes back to Pending.
func (t *Target) ReleaseOrder() (string, error) {
	if t.IsTerminal() {
		return "", errors.Newf(errors.ErrCodeTargetTerminal, "target is %s", t.status)
	}

	if !t.HasOrder() {
		return "", errors.New(errors.ErrCodeInvalidTransition, "target has no order to release")
	}

	orderID := t.orderID.Unwrap()
	t.orderID = optional.None[string]()
	t.status = TargetStatusPending

	return orderID, nil
}

// ApplyStatus applies a status reported by the venue for the target's live order.
func (t *Target) ApplyStatus(status TargetStatus) error {
	if t.IsTerminal() {
		return errors.Newf(errors.ErrCodeTargetTerminal, "target is %s", t.status)
	}

	if !t.HasOrder() {
		return errors.Newf(errors.ErrCodeInvalidTransition, "target has no order, cannot become %s", status)
	}

	switch {
	case status == TargetStatusPending:
		return errors.New(errors.ErrCodeInvalidTransition, "a live order cannot go back to pending")
	case status.IsTerminal():
		t.orderID = optional.None[string]()
	}

	t.status = status

	return nil
}
