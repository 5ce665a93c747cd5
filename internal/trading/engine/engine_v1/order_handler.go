package engine_v1

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-smartorder/internal/logger"
	"github.com/rxtech-lab/argo-smartorder/internal/strategy"
	"github.com/rxtech-lab/argo-smartorder/internal/trading/engine"
	"github.com/rxtech-lab/argo-smartorder/internal/trading/engine/engine_v1/session"
	"github.com/rxtech-lab/argo-smartorder/internal/trading/engine/engine_v1/stats"
	"github.com/rxtech-lab/argo-smartorder/internal/trading/engine/engine_v1/writers"
	tradingprovider "github.com/rxtech-lab/argo-smartorder/internal/trading/provider"
	"github.com/rxtech-lab/argo-smartorder/internal/types"
	"github.com/rxtech-lab/argo-smartorder/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// event is one item of the dispatch loop's input channel.
type event interface {
	isEvent()
}

type tickEvent struct {
	tick types.Tick
}

type accountEvent struct {
	event types.AccountEvent
}

type streamErrorEvent struct {
	err error
}

// flushEvent asks the loop to dispatch buffered prices even without a new tick.
type flushEvent struct{}

func (tickEvent) isEvent()        {}
func (accountEvent) isEvent()     {}
func (streamErrorEvent) isEvent() {}
func (flushEvent) isEvent()       {}

// Option configures an OrderHandlerV1.
type Option func(*OrderHandlerV1)

func WithLogger(log *logger.Logger) Option {
	return func(h *OrderHandlerV1) {
		h.log = log
	}
}

// WithClock replaces the clock the throttle is measured with.
func WithClock(now func() time.Time) Option {
	return func(h *OrderHandlerV1) {
		h.now = now
	}
}

// WithFlushInterval sets how often buffered prices are flushed without a new tick.
// Zero disables the flush. Defaults to the throttle interval.
func WithFlushInterval(interval time.Duration) Option {
	return func(h *OrderHandlerV1) {
		h.flushInterval = optional.Some(interval)
	}
}

// OrderHandlerV1 implements engine.OrderHandler.
//
// Exchange callbacks only enqueue events. A single loop consumes them in arrival order and is
// the only goroutine that touches strategies, so strategies need no locking.
type OrderHandlerV1 struct {
	config        engine.OrderHandlerConfig
	exchange      tradingprovider.ExchangeAdapter
	log           *logger.Logger
	now           func() time.Time
	flushInterval optional.Option[time.Duration]
	initialized   bool

	mu         sync.Mutex
	state      engine.HandlerState
	strategies []*strategy.TradingStrategy
	bySymbol   map[string][]*strategy.TradingStrategy
	byAsset    map[string][]*strategy.TradingStrategy
	tradeIDs   map[string]struct{}

	events       chan event
	buffer       *PriceBuffer
	lastDispatch time.Time
	seeded       bool
	subscribed   bool
	// cancels the stream handlers of the current subscription
	subCancel context.CancelFunc
	callbacks    engine.Callbacks

	// run journal, set up per Run when a data output path is configured
	sessionManager *session.SessionManager
	targetsWriter  *writers.TargetsWriter
	statsTracker   *stats.StatsTracker
}

// NewOrderHandlerV1 creates an idle handler. Call Initialize and SetExchange before adding trades.
func NewOrderHandlerV1(opts ...Option) *OrderHandlerV1 {
	h := &OrderHandlerV1{
		config:        engine.OrderHandlerConfig{}, //nolint:exhaustruct // initialized via Initialize()
		exchange:      nil,
		log:           logger.NewNopLogger(),
		now:           time.Now,
		flushInterval: optional.None[time.Duration](),
		state:         engine.HandlerStateIdle,
		strategies:    nil,
		bySymbol:      make(map[string][]*strategy.TradingStrategy),
		byAsset:       make(map[string][]*strategy.TradingStrategy),
		tradeIDs:      make(map[string]struct{}),
		buffer:        NewPriceBuffer(),
	}

	for _, opt := range opts {
		opt(h)
	}

	h.statsTracker = stats.NewStatsTracker(h.log).WithClock(h.now)

	return h
}

// Initialize implements engine.OrderHandler.
func (h *OrderHandlerV1) Initialize(config engine.OrderHandlerConfig) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.state != engine.HandlerStateIdle {
		return errors.New(errors.ErrCodeHandlerState, "cannot initialize while listening")
	}

	if config.ThrottleInterval <= 0 {
		config.ThrottleInterval = engine.DefaultThrottleInterval
	}

	if config.EventBufferSize <= 0 {
		config.EventBufferSize = engine.DefaultEventBufferSize
	}

	if config.FailurePolicy == "" {
		config.FailurePolicy = strategy.FailurePolicyEscalate
	}

	h.config = config
	h.events = make(chan event, config.EventBufferSize)
	h.initialized = true

	h.log.Debug("Order handler initialized",
		zap.Duration("throttle_interval", config.ThrottleInterval),
		zap.Int("event_buffer_size", config.EventBufferSize),
		zap.String("failure_policy", string(config.FailurePolicy)),
	)

	return nil
}

// SetExchange implements engine.OrderHandler.
func (h *OrderHandlerV1) SetExchange(exchange tradingprovider.ExchangeAdapter) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.state != engine.HandlerStateIdle {
		return errors.New(errors.ErrCodeHandlerState, "cannot change the exchange while listening")
	}

	h.exchange = exchange

	return nil
}

// AddTrade implements engine.OrderHandler.
func (h *OrderHandlerV1) AddTrade(trade *types.Trade) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.initialized {
		return errors.New(errors.ErrCodeNotInitialized, "order handler not initialized - call Initialize() first")
	}

	if h.state != engine.HandlerStateIdle {
		return errors.New(errors.ErrCodeHandlerState, "trades can only be added while idle")
	}

	if h.exchange == nil {
		return errors.New(errors.ErrCodeExchangeNotAttached, "exchange not set - call SetExchange() first")
	}

	if trade == nil || trade.ID == "" {
		return errors.New(errors.ErrCodeInvalidParameter, "trade with an id is required")
	}

	if _, ok := h.tradeIDs[trade.ID]; ok {
		return errors.Newf(errors.ErrCodeInvalidParameter, "trade %s already added", trade.ID)
	}

	opts := []strategy.Option{
		strategy.WithLogger(h.log),
		strategy.WithFailurePolicy(h.config.FailurePolicy),
		strategy.WithTargetObserver(h.onTargetUpdated),
		strategy.WithEscalationHandler(h.onEscalation),
	}

	var added []*strategy.TradingStrategy

	for _, leg := range []types.Leg{types.LegEntry, types.LegExit} {
		section := trade.Section(leg)
		if section == nil || len(section.Targets) == 0 {
			continue
		}

		s, err := strategy.New(leg, trade, h.exchange, opts...)
		if err != nil {
			return err
		}

		added = append(added, s)
	}

	if len(added) == 0 {
		return errors.Newf(errors.ErrCodeInvalidConfiguration, "trade %s has no targets", trade.ID)
	}

	h.tradeIDs[trade.ID] = struct{}{}
	h.strategies = append(h.strategies, added...)
	h.reindex()

	h.log.Info("Trade added",
		zap.String("trade_id", trade.ID),
		zap.String("symbol", trade.Symbol),
		zap.String("asset", trade.Asset),
		zap.Int("strategies", len(added)),
	)

	return nil
}

// State implements engine.OrderHandler.
func (h *OrderHandlerV1) State() engine.HandlerState {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.state
}

// ActiveStrategies implements engine.OrderHandler.
func (h *OrderHandlerV1) ActiveStrategies() []string {
	h.mu.Lock()
	defer h.mu.Unlock()

	ids := make([]string, 0, len(h.strategies))
	for _, s := range h.strategies {
		ids = append(ids, s.ID())
	}

	return ids
}

// Stats returns the counters of the current or last run.
func (h *OrderHandlerV1) Stats() stats.RunStats {
	return h.statsTracker.GetStats()
}

// Run implements engine.OrderHandler.
func (h *OrderHandlerV1) Run(ctx context.Context, callbacks engine.Callbacks) error {
	var runErr error

	if err := h.preRunCheck(); err != nil {
		if callbacks.OnStop != nil {
			(*callbacks.OnStop)(err)
		}

		return err
	}

	h.callbacks = callbacks

	defer func() {
		// the run context may already be canceled
		if err := h.unsubscribe(context.WithoutCancel(ctx)); err != nil {
			h.log.Warn("Failed to unsubscribe", zap.Error(err))
		}

		h.setState(engine.HandlerStateIdle)

		if err := h.closeJournal(); err != nil {
			h.log.Warn("Failed to close run journal", zap.Error(err))
		}

		h.log.Info("Order handler stopped", zap.Error(runErr))

		if callbacks.OnStop != nil {
			(*callbacks.OnStop)(runErr)
		}
	}()

	if err := h.openJournal(); err != nil {
		runErr = err

		return runErr
	}

	loopCtx, stop := context.WithCancel(ctx)
	defer stop()

	if err := h.start(loopCtx); err != nil {
		runErr = err

		return runErr
	}

	if len(h.strategies) == 0 {
		return nil
	}

	if err := h.subscribe(loopCtx); err != nil {
		runErr = err

		return runErr
	}

	h.setState(engine.HandlerStateListening)

	if callbacks.OnStart != nil {
		runPath := ""
		if h.sessionManager != nil {
			runPath = h.sessionManager.GetCurrentRunPath()
		}

		if err := (*callbacks.OnStart)(h.symbols(), runPath); err != nil {
			runErr = errors.Wrap(errors.ErrCodeCallbackFailed, "OnStart callback failed", err)

			return runErr
		}
	}

	h.log.Info("Order handler listening",
		zap.Strings("symbols", h.symbols()),
		zap.Strings("strategies", h.ActiveStrategies()),
	)

	g, gctx := errgroup.WithContext(loopCtx)

	g.Go(func() error {
		defer stop()

		return h.dispatchLoop(gctx)
	})

	interval := h.config.ThrottleInterval
	if h.flushInterval.IsSome() {
		interval = h.flushInterval.Unwrap()
	}

	if interval > 0 {
		g.Go(func() error {
			h.flushLoop(gctx, interval)

			return nil
		})
	}

	runErr = g.Wait()

	// a parent cancellation is reported as such, not as a loop failure
	if runErr == nil && ctx.Err() != nil {
		runErr = ctx.Err()
	}

	return runErr
}

// preRunCheck validates that all required components are configured before running.
func (h *OrderHandlerV1) preRunCheck() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.initialized {
		return errors.New(errors.ErrCodeNotInitialized, "order handler not initialized - call Initialize() first")
	}

	if h.state != engine.HandlerStateIdle {
		return errors.New(errors.ErrCodeHandlerState, "order handler is already running")
	}

	if h.exchange == nil {
		return errors.New(errors.ErrCodeExchangeNotAttached, "exchange not set - call SetExchange() first")
	}

	if len(h.strategies) == 0 {
		return errors.New(errors.ErrCodeNoTrades, "no trades added - call AddTrade() first")
	}

	return nil
}

// start seeds every strategy with the current venue price of its symbol. Seeding happens once
// per handler; later runs continue from the live streams only.
func (h *OrderHandlerV1) start(ctx context.Context) error {
	h.lastDispatch = h.now()

	if h.seeded {
		return nil
	}

	prices, err := h.exchange.GetCurrentPrices(ctx)
	if err != nil {
		return errors.Wrap(errors.ErrCodeSubscriptionFailed, "failed to fetch current prices", err)
	}

	h.seeded = true

	for _, symbol := range h.symbols() {
		price, ok := prices[symbol]
		if !ok {
			h.log.Warn("No current price for symbol", zap.String("symbol", symbol))

			continue
		}

		if err := h.dispatch(ctx, symbol, price); err != nil {
			return err
		}
	}

	_, err = h.sweepCompleted(ctx)

	return err
}

// subscribe opens the trade and account streams. Their handlers enqueue under a context of
// their own so unsubscribe can release a reader blocked on a full event channel.
func (h *OrderHandlerV1) subscribe(ctx context.Context) error {
	symbols := h.symbols()

	subCtx, cancel := context.WithCancel(ctx)
	h.subCancel = cancel

	if err := h.exchange.Subscribe(subCtx, symbols, h.enqueueTick(subCtx), h.enqueueError(subCtx)); err != nil {
		return errors.Wrap(errors.ErrCodeSubscriptionFailed, "failed to subscribe to trades", err)
	}

	h.subscribed = true

	if err := h.exchange.SubscribeUserData(subCtx, h.enqueueAccount(subCtx), h.enqueueError(subCtx)); err != nil {
		return errors.Wrap(errors.ErrCodeSubscriptionFailed, "failed to subscribe to user data", err)
	}

	h.log.Debug("Subscribed", zap.Strings("symbols", symbols))

	return nil
}

// unsubscribe stops the stream handlers before the adapter waits for its readers to exit.
// Only the dispatch loop drains the event channel, and it is the caller here.
func (h *OrderHandlerV1) unsubscribe(ctx context.Context) error {
	if h.subCancel != nil {
		h.subCancel()
		h.subCancel = nil
	}

	if !h.subscribed {
		return nil
	}

	h.subscribed = false

	return h.exchange.UnsubscribeAll(ctx)
}

func (h *OrderHandlerV1) enqueue(ctx context.Context, ev event) {
	select {
	case h.events <- ev:
	case <-ctx.Done():
	}
}

func (h *OrderHandlerV1) enqueueTick(ctx context.Context) tradingprovider.TickHandler {
	return func(tick types.Tick) {
		h.enqueue(ctx, tickEvent{tick: tick})
	}
}

func (h *OrderHandlerV1) enqueueAccount(ctx context.Context) tradingprovider.AccountEventHandler {
	return func(ev types.AccountEvent) {
		h.enqueue(ctx, accountEvent{event: ev})
	}
}

func (h *OrderHandlerV1) enqueueError(ctx context.Context) tradingprovider.ErrorHandler {
	return func(err error) {
		h.enqueue(ctx, streamErrorEvent{err: err})
	}
}

func (h *OrderHandlerV1) flushLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.enqueue(ctx, flushEvent{})
		}
	}
}

// dispatchLoop consumes events until every strategy completed or ctx is done.
func (h *OrderHandlerV1) dispatchLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-h.events:
			if err := h.handleEvent(ctx, ev); err != nil {
				return err
			}

			done, err := h.sweepCompleted(ctx)
			if err != nil {
				return err
			}

			if done {
				h.log.Info("All strategies completed")

				return nil
			}
		}
	}
}

func (h *OrderHandlerV1) handleEvent(ctx context.Context, ev event) error {
	switch e := ev.(type) {
	case tickEvent:
		h.buffer.Add(e.tick)
		err := h.maybeDispatch(ctx)
		h.statsTracker.RecordTicks(1)

		return err
	case flushEvent:
		return h.maybeDispatch(ctx)
	case accountEvent:
		h.handleAccountEvent(e.event)
	case streamErrorEvent:
		h.reportError(errors.Wrap(errors.ErrCodeSubscriptionFailed, "exchange stream failed", e.err))
	}

	return nil
}

// maybeDispatch hands the mean of each symbol's buffered prices to its strategies, at most once
// per throttle interval.
func (h *OrderHandlerV1) maybeDispatch(ctx context.Context) error {
	if h.buffer.IsEmpty() {
		return nil
	}

	now := h.now()
	if now.Sub(h.lastDispatch) <= h.config.ThrottleInterval {
		return nil
	}

	h.lastDispatch = now

	for _, mean := range h.buffer.Drain() {
		if err := h.dispatch(ctx, mean.Symbol, mean.Price); err != nil {
			return err
		}
	}

	return nil
}

func (h *OrderHandlerV1) dispatch(ctx context.Context, symbol string, price decimal.Decimal) error {
	strategies := h.bySymbol[symbol]
	if len(strategies) == 0 {
		return nil
	}

	h.statsTracker.RecordDispatch(symbol, price.String())

	if h.callbacks.OnDispatch != nil {
		if err := (*h.callbacks.OnDispatch)(symbol, price); err != nil {
			return errors.Wrap(errors.ErrCodeCallbackFailed, "OnDispatch callback failed", err)
		}
	}

	for _, s := range strategies {
		if err := s.Execute(ctx, price); err != nil {
			h.reportError(err)
		}
	}

	return nil
}

func (h *OrderHandlerV1) handleAccountEvent(ev types.AccountEvent) {
	for _, balance := range ev.Balances {
		for _, s := range h.byAsset[balance.Asset] {
			s.AccountInfo(balance)
		}
	}

	if !ev.IsExecutionReport() {
		return
	}

	report := *ev.Report

	for _, s := range h.bySymbol[report.Symbol] {
		handled, err := s.ExecutionReport(report)
		if err != nil {
			h.reportError(err)
		}

		if handled {
			return
		}
	}

	h.log.Debug("Execution report for unknown order",
		zap.String("order_id", report.OrderID),
		zap.String("symbol", report.Symbol),
	)
}

// sweepCompleted removes completed strategies and renews the subscriptions for the rest.
// It reports true once no strategy is left.
func (h *OrderHandlerV1) sweepCompleted(ctx context.Context) (bool, error) {
	var completed []*strategy.TradingStrategy

	remaining := make([]*strategy.TradingStrategy, 0, len(h.strategies))

	for _, s := range h.strategies {
		if s.IsCompleted() {
			completed = append(completed, s)
		} else {
			remaining = append(remaining, s)
		}
	}

	if len(completed) == 0 {
		return len(h.strategies) == 0, nil
	}

	h.mu.Lock()
	h.strategies = remaining
	h.reindex()
	h.mu.Unlock()

	for _, s := range completed {
		h.statsTracker.RecordCompleted(s.ID())
		h.log.Info("Strategy completed", zap.String("strategy_id", s.ID()))

		if h.callbacks.OnStrategyCompleted != nil {
			(*h.callbacks.OnStrategyCompleted)(s.Trade(), s.Leg())
		}
	}

	h.writeStats()

	if h.subscribed {
		if err := h.unsubscribe(ctx); err != nil {
			return false, errors.Wrap(errors.ErrCodeSubscriptionFailed, "failed to unsubscribe", err)
		}

		if len(remaining) > 0 {
			if err := h.subscribe(ctx); err != nil {
				return false, err
			}
		}
	}

	return len(remaining) == 0, nil
}

func (h *OrderHandlerV1) onTargetUpdated(trade *types.Trade, leg types.Leg, index int, target *types.Target) {
	h.statsTracker.RecordTarget(target.Status())

	if h.targetsWriter != nil {
		record := writers.NewTargetRecord(h.sessionManager.GetSessionID(), trade, leg, index, target, h.now())
		if err := h.targetsWriter.Write(record); err != nil {
			h.reportError(err)
		}
	}

	if h.callbacks.OnTargetUpdated != nil {
		(*h.callbacks.OnTargetUpdated)(trade, leg, index, target)
	}
}

func (h *OrderHandlerV1) onEscalation(trade *types.Trade, leg types.Leg, err error) {
	h.statsTracker.RecordEscalation()

	h.log.Error("Smart order needs attention",
		zap.String("trade_id", trade.ID),
		zap.String("leg", string(leg)),
		zap.Error(err),
	)

	if h.callbacks.OnEscalation != nil {
		(*h.callbacks.OnEscalation)(trade, leg, err)
	}
}

func (h *OrderHandlerV1) reportError(err error) {
	h.statsTracker.RecordError()
	h.log.Warn("Order handler error", zap.Error(err))

	if h.callbacks.OnError != nil {
		(*h.callbacks.OnError)(err)
	}
}

// openJournal creates the run folder, the targets journal and stats.yaml when persistence is on.
func (h *OrderHandlerV1) openJournal() error {
	if h.config.DataOutputPath == "" {
		h.statsTracker.Initialize(h.symbols(), "", "", h.now())

		return nil
	}

	h.sessionManager = session.NewSessionManager(h.log).WithClock(h.now)
	if err := h.sessionManager.Initialize(h.config.DataOutputPath); err != nil {
		return err
	}

	targetsPath := h.sessionManager.GetFilePath("targets.parquet")

	h.targetsWriter = writers.NewTargetsWriter(targetsPath)
	if err := h.targetsWriter.Initialize(); err != nil {
		h.targetsWriter = nil

		return err
	}

	h.statsTracker.Initialize(h.symbols(), h.sessionManager.GetSessionID(), h.sessionManager.GetRunID(), h.sessionManager.GetSessionStart())
	h.statsTracker.SetFilePaths(targetsPath, h.sessionManager.GetFilePath("stats.yaml"))

	return nil
}

func (h *OrderHandlerV1) writeStats() {
	if err := h.statsTracker.WriteStatsYAML(); err != nil {
		h.log.Warn("Failed to write stats", zap.Error(err))
	}
}

func (h *OrderHandlerV1) closeJournal() error {
	h.writeStats()

	if h.targetsWriter == nil {
		return nil
	}

	err := multierr.Append(h.targetsWriter.Flush(), h.targetsWriter.Close())
	h.targetsWriter = nil

	return err
}

// symbols returns the distinct symbols of the registered strategies in sorted order.
func (h *OrderHandlerV1) symbols() []string {
	h.mu.Lock()
	defer h.mu.Unlock()

	symbols := make([]string, 0, len(h.bySymbol))
	for symbol := range h.bySymbol {
		symbols = append(symbols, symbol)
	}

	sort.Strings(symbols)

	return symbols
}

// reindex rebuilds the routing tables. Callers hold h.mu.
func (h *OrderHandlerV1) reindex() {
	h.bySymbol = make(map[string][]*strategy.TradingStrategy)
	h.byAsset = make(map[string][]*strategy.TradingStrategy)

	for _, s := range h.strategies {
		h.bySymbol[s.Symbol()] = append(h.bySymbol[s.Symbol()], s)
		h.byAsset[s.Asset()] = append(h.byAsset[s.Asset()], s)
	}
}

func (h *OrderHandlerV1) setState(state engine.HandlerState) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.state = state
}

// Verify OrderHandlerV1 implements engine.OrderHandler interface.
var _ engine.OrderHandler = (*OrderHandlerV1)(nil)
