package engine

import (
	"context"
	"time"

	"github.com/rxtech-lab/argo-smartorder/internal/strategy"
	tradingprovider "github.com/rxtech-lab/argo-smartorder/internal/trading/provider"
	"github.com/rxtech-lab/argo-smartorder/internal/types"
	"github.com/rxtech-lab/argo-smartorder/pkg/schema"
	"github.com/shopspring/decimal"
)

// Default configuration values.
const (
	DefaultThrottleInterval = 500 * time.Millisecond
	DefaultEventBufferSize  = 1024
)

// HandlerState is the lifecycle state of an order handler.
type HandlerState string

const (
	HandlerStateIdle      HandlerState = "IDLE"
	HandlerStateListening HandlerState = "LISTENING"
)

// Lifecycle callback types for the order handler.
// Callbacks with an error return abort Run when they return an error.

// OnStartCallback is called once the initial prices were dispatched and the streams are up.
type OnStartCallback func(symbols []string, runPath string) error

// OnStopCallback is called when Run returns (always called via defer).
type OnStopCallback func(err error)

// OnDispatchCallback is called for each aggregated price handed to the strategies of a symbol.
type OnDispatchCallback func(symbol string, price decimal.Decimal) error

// OnTargetUpdatedCallback is called after a target of a trade changed.
type OnTargetUpdatedCallback func(trade *types.Trade, leg types.Leg, index int, target *types.Target)

// OnStrategyCompletedCallback is called when a strategy was removed after completing.
type OnStrategyCompletedCallback func(trade *types.Trade, leg types.Leg)

// OnErrorCallback is called when a non-fatal error occurs.
type OnErrorCallback func(err error)

// OnEscalationCallback is called when an order of a leg could not be placed and needs attention.
type OnEscalationCallback func(trade *types.Trade, leg types.Leg, err error)

// Callbacks holds all lifecycle callback functions of the order handler.
// All fields are pointers - nil means no callback will be invoked.
type Callbacks struct {
	// OnStart is called once the handler is listening.
	OnStart *OnStartCallback

	// OnStop is called when Run returns.
	OnStop *OnStopCallback

	// OnDispatch is called for each aggregated price.
	OnDispatch *OnDispatchCallback

	// OnTargetUpdated is called after every target transition.
	OnTargetUpdated *OnTargetUpdatedCallback

	// OnStrategyCompleted is called for each strategy removed from the handler.
	OnStrategyCompleted *OnStrategyCompletedCallback

	// OnError is called when a non-fatal error occurs.
	OnError *OnErrorCallback

	// OnEscalation is called when an order could not be placed.
	OnEscalation *OnEscalationCallback
}

// OrderHandlerConfig holds the configuration of the order handler.
type OrderHandlerConfig struct {
	// ThrottleInterval is the minimum time between two dispatches (default: 500ms)
	ThrottleInterval time.Duration `json:"throttle_interval" yaml:"throttle_interval" jsonschema:"description=Minimum time between two price dispatches,default=500ms,type=string"`

	// EventBufferSize is the capacity of the event channel fed by the exchange streams (default: 1024)
	EventBufferSize int `json:"event_buffer_size" yaml:"event_buffer_size" validate:"gte=0" jsonschema:"description=Capacity of the event channel,default=1024"`

	// FailurePolicy decides what happens after a fired order could not be placed
	FailurePolicy strategy.FailurePolicy `json:"failure_policy" yaml:"failure_policy" validate:"omitempty,oneof=escalate retry_next_price" jsonschema:"description=What to do when a fired order fails,enum=escalate,enum=retry_next_price,default=escalate"`

	// DataOutputPath enables the run journal when set
	DataOutputPath string `json:"data_output_path" yaml:"data_output_path" jsonschema:"description=Directory for the run journal (targets.parquet and stats.yaml)"`
}

// GetConfigSchema returns the JSON schema for OrderHandlerConfig.
func GetConfigSchema() (string, error) {
	return schema.ToJSONSchema(OrderHandlerConfig{}) //nolint:exhaustruct // Empty config for schema generation
}

// OrderHandler aggregates exchange prices and drives the strategies of the registered trades.
type OrderHandler interface {
	// Initialize sets up the handler with the given configuration.
	Initialize(config OrderHandlerConfig) error

	// SetExchange attaches the exchange the handler trades on.
	SetExchange(exchange tradingprovider.ExchangeAdapter) error

	// AddTrade registers the entry and exit strategies of a trade.
	// Trades can only be added while the handler is idle.
	AddTrade(trade *types.Trade) error

	// Run seeds the strategies with the current prices and listens to the exchange streams.
	// It blocks until every strategy completed, the context is cancelled or a fatal error occurs.
	Run(ctx context.Context, callbacks Callbacks) error

	// State returns the lifecycle state.
	State() HandlerState

	// ActiveStrategies returns the ids of the strategies that did not complete yet.
	ActiveStrategies() []string
}
