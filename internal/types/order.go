package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus is the order status reported by the venue.
type OrderStatus string

const (
	OrderStatusNew             OrderStatus = "NEW"
	OrderStatusPartiallyFilled OrderStatus = "PARTIALLY_FILLED"
	OrderStatusFilled          OrderStatus = "FILLED"
	OrderStatusCanceled        OrderStatus = "CANCELED"
	OrderStatusPendingCancel   OrderStatus = "PENDING_CANCEL"
	OrderStatusRejected        OrderStatus = "REJECTED"
	OrderStatusExpired         OrderStatus = "EXPIRED"
)

type OrderType string

const (
	OrderTypeLimit  OrderType = "LIMIT"
	OrderTypeStop   OrderType = "STOP_LOSS_LIMIT"
	OrderTypeMarket OrderType = "MARKET"
)

// OrderAck is returned by the venue once an order is accepted.
type OrderAck struct {
	OrderID       string
	ClientOrderID string
}

// Tick is one trade print from the market data stream.
type Tick struct {
	Symbol string
	Price  decimal.Decimal
	Time   time.Time
}

// ExecutionReport is an order update from the user data stream.
type ExecutionReport struct {
	OrderID  string
	Symbol   string
	Side     Side
	Status   OrderStatus
	Quantity decimal.Decimal
	Price    decimal.Decimal
}

// AccountEvent carries either balance updates or one execution report.
type AccountEvent struct {
	Balances []Balance
	Report   *ExecutionReport
}

// IsExecutionReport reports whether the event carries an order update.
func (e AccountEvent) IsExecutionReport() bool {
	return e.Report != nil
}
