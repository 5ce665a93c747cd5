package tradingprovider

import (
	"context"

	"github.com/rxtech-lab/argo-smartorder/internal/types"
	"github.com/shopspring/decimal"
)

// TickHandler receives market trade prints.
type TickHandler func(tick types.Tick)

// AccountEventHandler receives balance updates and execution reports.
type AccountEventHandler func(event types.AccountEvent)

// ErrorHandler receives stream errors. Streams are not restarted after an error.
type ErrorHandler func(err error)

// ExchangeAdapter is the venue the order handler trades on.
//
// Submit methods fail with errors.ErrCodeOrderWouldExecuteImmediately when the venue refuses a
// stop order that would trigger at once, and with errors.ErrCodeExchangeRejected otherwise.
type ExchangeAdapter interface {
	SubmitLimitOrder(ctx context.Context, symbol string, side types.Side, price decimal.Decimal, quantity decimal.Decimal) (types.OrderAck, error)
	SubmitStopOrder(ctx context.Context, symbol string, side types.Side, stopPrice decimal.Decimal, price decimal.Decimal, quantity decimal.Decimal) (types.OrderAck, error)
	SubmitMarketOrder(ctx context.Context, symbol string, side types.Side, quantity decimal.Decimal) (types.OrderAck, error)
	CancelOrder(ctx context.Context, symbol string, orderID string) error
	// GetBalance returns the balance of one asset. Unknown assets have zero balance.
	GetBalance(ctx context.Context, asset string) (types.Balance, error)
	GetCurrentPrices(ctx context.Context) (map[string]decimal.Decimal, error)
	GetSymbolConstraints(ctx context.Context, symbol string) (types.SymbolConstraints, error)
	// Subscribe starts the trade stream for symbols. Handlers may be called from any goroutine.
	Subscribe(ctx context.Context, symbols []string, onTick TickHandler, onError ErrorHandler) error
	SubscribeUserData(ctx context.Context, onEvent AccountEventHandler, onError ErrorHandler) error
	// UnsubscribeAll stops every stream started by Subscribe and SubscribeUserData.
	UnsubscribeAll(ctx context.Context) error
}
