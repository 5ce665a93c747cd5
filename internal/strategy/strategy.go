// Package strategy drives one leg of a trade: it resolves the target price, feeds prices into
// a trailing trigger and places the stop order once the trigger fires.
package strategy

import (
	"context"

	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-smartorder/internal/logger"
	"github.com/rxtech-lab/argo-smartorder/internal/smartorder"
	tradingprovider "github.com/rxtech-lab/argo-smartorder/internal/trading/provider"
	"github.com/rxtech-lab/argo-smartorder/internal/types"
	"github.com/rxtech-lab/argo-smartorder/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// FailurePolicy decides what happens after a fired order could not be placed.
type FailurePolicy string

const (
	// FailurePolicyEscalate reports the failure and leaves the target without an order.
	FailurePolicyEscalate FailurePolicy = "escalate"
	// FailurePolicyRetryNextPrice places the order again at the next dispatched price.
	FailurePolicyRetryNextPrice FailurePolicy = "retry_next_price"
)

// TargetObserver is notified after a managed target changed.
type TargetObserver func(trade *types.Trade, leg types.Leg, index int, target *types.Target)

// EscalationHandler is notified when an order for a leg could not be placed.
type EscalationHandler func(trade *types.Trade, leg types.Leg, err error)

// Option configures a TradingStrategy.
type Option func(*TradingStrategy)

func WithLogger(log *logger.Logger) Option {
	return func(s *TradingStrategy) {
		s.log = log
	}
}

func WithFailurePolicy(policy FailurePolicy) Option {
	return func(s *TradingStrategy) {
		s.policy = policy
	}
}

func WithTargetObserver(observer TargetObserver) Option {
	return func(s *TradingStrategy) {
		s.onTargetUpdated = observer
	}
}

func WithEscalationHandler(handler EscalationHandler) Option {
	return func(s *TradingStrategy) {
		s.onEscalation = handler
	}
}

// TradingStrategy manages the single target of one section of a trade.
// The entry leg trades the reverse of the trade side, the exit leg trades the trade side.
//
// A TradingStrategy is driven by a single goroutine and is not safe for concurrent use.
type TradingStrategy struct {
	leg      types.Leg
	trade    *types.Trade
	section  *types.TradeSection
	side     types.Side
	exchange tradingprovider.ExchangeAdapter
	trigger  *smartorder.TrailingTrigger
	log      *logger.Logger
	policy   FailurePolicy

	onTargetUpdated TargetObserver
	onEscalation    EscalationHandler

	balance     optional.Option[types.Balance]
	constraints optional.Option[types.SymbolConstraints]
	// firedAt is set by the trigger and consumed by Execute
	firedAt optional.Option[decimal.Decimal]
	// retryPending is set when a fired order failed under FailurePolicyRetryNextPrice
	retryPending bool
	stuckLogged  bool
}

// NewEntry creates the strategy for the entry section of a trade.
func NewEntry(trade *types.Trade, exchange tradingprovider.ExchangeAdapter, opts ...Option) (*TradingStrategy, error) {
	return New(types.LegEntry, trade, exchange, opts...)
}

// NewExit creates the strategy for the exit section of a trade.
func NewExit(trade *types.Trade, exchange tradingprovider.ExchangeAdapter, opts ...Option) (*TradingStrategy, error) {
	return New(types.LegExit, trade, exchange, opts...)
}

// New creates the strategy for one leg of a trade.
func New(leg types.Leg, trade *types.Trade, exchange tradingprovider.ExchangeAdapter, opts ...Option) (*TradingStrategy, error) {
	if trade == nil {
		return nil, errors.New(errors.ErrCodeMissingParameter, "trade is required")
	}

	if exchange == nil {
		return nil, errors.New(errors.ErrCodeExchangeNotAttached, "exchange is required")
	}

	section := trade.Section(leg)
	if section == nil || len(section.Targets) == 0 {
		return nil, errors.Newf(errors.ErrCodeInvalidConfiguration, "trade %s has no %s targets", trade.ID, leg)
	}

	// one trailing trigger places one order, so a second target would never be driven
	if len(section.Targets) > 1 {
		return nil, errors.Newf(errors.ErrCodeInvalidConfiguration, "trade %s has %d %s targets, a section takes one", trade.ID, len(section.Targets), leg)
	}

	s := &TradingStrategy{
		leg:         leg,
		trade:       trade,
		section:     section,
		side:        trade.LegSide(leg),
		exchange:    exchange,
		log:         logger.NewNopLogger(),
		policy:      FailurePolicyEscalate,
		balance:     optional.None[types.Balance](),
		constraints: optional.None[types.SymbolConstraints](),
		firedAt:     optional.None[decimal.Decimal](),
	}

	for _, opt := range opts {
		opt(s)
	}

	s.log = s.log.With(
		zap.String("trade_id", trade.ID),
		zap.String("symbol", trade.Symbol),
		zap.String("leg", string(leg)),
	)

	s.trigger = smartorder.New(
		smartorder.DirectionForSide(s.side),
		section.StopLossThreshold,
		section.PullbackThreshold,
		func(stopPrice decimal.Decimal) error {
			s.firedAt = optional.Some(stopPrice)

			return nil
		},
	)

	return s, nil
}

func (s *TradingStrategy) Leg() types.Leg {
	return s.leg
}

func (s *TradingStrategy) Trade() *types.Trade {
	return s.trade
}

func (s *TradingStrategy) Symbol() string {
	return s.trade.Symbol
}

func (s *TradingStrategy) Asset() string {
	return s.trade.Asset
}

// Side returns the order side of this leg.
func (s *TradingStrategy) Side() types.Side {
	return s.side
}

// ID identifies the strategy by trade and leg.
func (s *TradingStrategy) ID() string {
	return s.trade.ID + "/" + string(s.leg)
}

// Target returns the managed target.
func (s *TradingStrategy) Target() *types.Target {
	return s.section.Targets[0]
}

// Trigger exposes the trailing trigger state.
func (s *TradingStrategy) Trigger() *smartorder.TrailingTrigger {
	return s.trigger
}

// IsCompleted reports whether the managed section finished with a fill.
func (s *TradingStrategy) IsCompleted() bool {
	return s.section.IsCompleted()
}

// IsActive reports whether the strategy currently acts on prices.
// An exit leg waits until the entry section of its trade has completed.
func (s *TradingStrategy) IsActive() bool {
	if s.IsCompleted() {
		return false
	}

	if s.leg == types.LegExit && s.trade.Entry != nil && len(s.trade.Entry.Targets) > 0 {
		return s.trade.Entry.IsCompleted()
	}

	return true
}

// Execute feeds one price into the strategy. The first price resolves the target price and
// initializes the trigger. An order is placed when the trigger fires.
func (s *TradingStrategy) Execute(ctx context.Context, price decimal.Decimal) error {
	if !s.IsActive() {
		return nil
	}

	target := s.Target()
	if target.IsTerminal() {
		s.reportStuck()

		return nil
	}

	if !s.trigger.IsInitialized() {
		resolved := target.ResolvePrice(price)
		if err := s.trigger.Init(resolved); err != nil {
			return err
		}

		s.log.Info("Smart order initialized",
			zap.String("market_price", price.String()),
			zap.String("target_price", resolved.String()),
			zap.String("direction", s.trigger.Direction().String()),
		)
		s.notifyTarget()
	}

	if s.retryPending {
		s.retryPending = false

		return s.handleFire(ctx, price)
	}

	if err := s.trigger.PriceUpdate(price); err != nil {
		return err
	}

	if s.firedAt.IsSome() {
		stopPrice := s.firedAt.Unwrap()
		s.firedAt = optional.None[decimal.Decimal]()

		return s.handleFire(ctx, stopPrice)
	}

	return nil
}

func (s *TradingStrategy) handleFire(ctx context.Context, stopPrice decimal.Decimal) error {
	err := s.OnTriggerFired(ctx, stopPrice)
	if err == nil {
		return nil
	}

	s.log.Error("Failed to place smart order",
		zap.String("stop_price", stopPrice.String()),
		zap.String("failure_policy", string(s.policy)),
		zap.Error(err),
	)

	switch s.policy {
	case FailurePolicyRetryNextPrice:
		s.retryPending = true
	default:
		if s.onEscalation != nil {
			s.onEscalation(s.trade, s.leg, err)
		}
	}

	return err
}

// OnTriggerFired replaces any live order of the target with a stop order at stopPrice.
// A stop order the venue refuses because it would trigger at once is replaced by exactly one
// market order of the same quantity. On failure the target is left as it was before the
// failing call.
func (s *TradingStrategy) OnTriggerFired(ctx context.Context, stopPrice decimal.Decimal) error {
	target := s.Target()

	if target.HasOrder() {
		orderID := target.OrderID().Unwrap()
		if err := s.exchange.CancelOrder(ctx, s.trade.Symbol, orderID); err != nil {
			return errors.Wrapf(errors.ErrCodeCancelFailed, err, "failed to cancel order %s", orderID)
		}

		if _, err := target.ReleaseOrder(); err != nil {
			return err
		}

		s.log.Info("Canceled previous order", zap.String("order_id", orderID))
		s.notifyTarget()
	}

	constraints, err := s.symbolConstraints(ctx)
	if err != nil {
		return err
	}

	balance, err := s.availableBalance(ctx)
	if err != nil {
		return err
	}

	quantity := constraints.AdjustQuantity(target.Size().Resolve(balance))
	limit := s.limitPrice(stopPrice, target.Price().Magnitude())

	stop := constraints.AdjustPrice(stopPrice, false)
	limit = constraints.AdjustPrice(limit, s.side.IsBuy())

	if err := constraints.CheckMinimums(limit, quantity); err != nil {
		return err
	}

	fields := []zap.Field{
		zap.String("stop_price", stop.String()),
		zap.String("limit_price", limit.String()),
		zap.String("quantity", quantity.String()),
		zap.String("side", string(s.side)),
	}

	ack, err := s.exchange.SubmitStopOrder(ctx, s.trade.Symbol, s.side, stop, limit, quantity)
	if errors.HasCode(err, errors.ErrCodeOrderWouldExecuteImmediately) {
		s.log.Warn("Stop order would execute immediately, placing market order", fields...)

		ack, err = s.exchange.SubmitMarketOrder(ctx, s.trade.Symbol, s.side, quantity)
	}

	if err != nil {
		return err
	}

	if err := target.Activate(ack.OrderID); err != nil {
		return err
	}

	s.log.Info("Smart order placed", append(fields, zap.String("order_id", ack.OrderID))...)
	s.notifyTarget()

	return nil
}

// limitPrice bounds the limit so the order cannot fill far beyond the resolved target price.
func (s *TradingStrategy) limitPrice(stopPrice decimal.Decimal, resolved decimal.Decimal) decimal.Decimal {
	threshold := s.trigger.StopLossThreshold()

	if s.side.IsBuy() {
		return decimal.Max(stopPrice, resolved.Add(threshold))
	}

	return decimal.Min(stopPrice, resolved.Sub(threshold))
}

// AccountInfo updates the sizing balance. Balances of other assets are ignored.
func (s *TradingStrategy) AccountInfo(balance types.Balance) bool {
	if balance.Asset != s.trade.Asset {
		return false
	}

	s.balance = optional.Some(balance)

	return true
}

// ExecutionReport applies an order update to the target owning the order.
// It returns false when the report is not for this leg.
func (s *TradingStrategy) ExecutionReport(report types.ExecutionReport) (bool, error) {
	if report.Symbol != s.trade.Symbol {
		return false, nil
	}

	for index, target := range s.section.Targets {
		if !target.OwnsOrder(report.OrderID) {
			continue
		}

		status, ok := types.TargetStatusFromOrderStatus(report.Status)
		if !ok {
			s.log.Warn("Ignoring unknown order status",
				zap.String("order_id", report.OrderID),
				zap.String("status", string(report.Status)),
			)

			return true, nil
		}

		if err := target.ApplyStatus(status); err != nil {
			return true, err
		}

		s.log.Info("Order status updated",
			zap.String("order_id", report.OrderID),
			zap.String("status", string(status)),
		)

		if s.onTargetUpdated != nil {
			s.onTargetUpdated(s.trade, s.leg, index, target)
		}

		return true, nil
	}

	return false, nil
}

func (s *TradingStrategy) availableBalance(ctx context.Context) (decimal.Decimal, error) {
	if s.balance.IsNone() {
		balance, err := s.exchange.GetBalance(ctx, s.trade.Asset)
		if err != nil {
			return decimal.Zero, err
		}

		s.balance = optional.Some(balance)
	}

	return s.balance.Unwrap().Available, nil
}

func (s *TradingStrategy) symbolConstraints(ctx context.Context) (types.SymbolConstraints, error) {
	if s.constraints.IsNone() {
		constraints, err := s.exchange.GetSymbolConstraints(ctx, s.trade.Symbol)
		if err != nil {
			return types.SymbolConstraints{}, err
		}

		s.constraints = optional.Some(constraints)
	}

	return s.constraints.Unwrap(), nil
}

func (s *TradingStrategy) notifyTarget() {
	if s.onTargetUpdated != nil {
		s.onTargetUpdated(s.trade, s.leg, 0, s.Target())
	}
}

// reportStuck escalates once when the target ended without a fill.
func (s *TradingStrategy) reportStuck() {
	if s.stuckLogged {
		return
	}

	s.stuckLogged = true
	err := errors.Newf(errors.ErrCodeTargetTerminal, "target ended as %s without a fill", s.Target().Status())

	s.log.Warn("Target finished without a fill", zap.String("status", string(s.Target().Status())))

	if s.onEscalation != nil {
		s.onEscalation(s.trade, s.leg, err)
	}
}
