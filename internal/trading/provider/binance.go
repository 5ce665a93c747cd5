package tradingprovider

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/adshao/go-binance/v2"
	"github.com/adshao/go-binance/v2/common"
	"github.com/google/uuid"
	"github.com/rxtech-lab/argo-smartorder/internal/types"
	"github.com/rxtech-lab/argo-smartorder/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
)

// DefaultListenKeyKeepalive is how often the user data listen key is refreshed.
// Binance expires listen keys after 60 minutes without a keepalive.
const DefaultListenKeyKeepalive = 30 * time.Minute

// Service interfaces for mocking the Binance API

// CreateOrderService interface for creating orders.
type CreateOrderService interface {
	Symbol(symbol string) CreateOrderService
	Side(side binance.SideType) CreateOrderService
	Type(orderType binance.OrderType) CreateOrderService
	Quantity(quantity string) CreateOrderService
	Price(price string) CreateOrderService
	StopPrice(stopPrice string) CreateOrderService
	TimeInForce(tif binance.TimeInForceType) CreateOrderService
	NewClientOrderID(clientOrderID string) CreateOrderService
	Do(ctx context.Context) (*binance.CreateOrderResponse, error)
}

// GetAccountService interface for getting account info.
type GetAccountService interface {
	Do(ctx context.Context) (*binance.Account, error)
}

// CancelOrderService interface for canceling orders.
type CancelOrderService interface {
	Symbol(symbol string) CancelOrderService
	OrderID(orderID int64) CancelOrderService
	Do(ctx context.Context) (*binance.CancelOrderResponse, error)
}

// ListPricesService interface for latest prices of every symbol.
type ListPricesService interface {
	Do(ctx context.Context) ([]*binance.SymbolPrice, error)
}

// ExchangeInfoService interface for symbol filters.
type ExchangeInfoService interface {
	Symbol(symbol string) ExchangeInfoService
	Do(ctx context.Context) (*binance.ExchangeInfo, error)
}

// StartUserStreamService interface for creating a listen key.
type StartUserStreamService interface {
	Do(ctx context.Context) (string, error)
}

// ListenKeyService interface for keepalive and close of a listen key.
type ListenKeyService interface {
	ListenKey(listenKey string) ListenKeyService
	Do(ctx context.Context) error
}

// BinanceClient interface abstracts the Binance client for testing.
type BinanceClient interface {
	NewCreateOrderService() CreateOrderService
	NewGetAccountService() GetAccountService
	NewCancelOrderService() CancelOrderService
	NewListPricesService() ListPricesService
	NewExchangeInfoService() ExchangeInfoService
	NewStartUserStreamService() StartUserStreamService
	NewKeepaliveUserStreamService() ListenKeyService
	NewCloseUserStreamService() ListenKeyService
}

// realBinanceClient wraps the actual binance.Client.
type realBinanceClient struct {
	client *binance.Client
}

func (r *realBinanceClient) NewCreateOrderService() CreateOrderService {
	return &realCreateOrderService{service: r.client.NewCreateOrderService()}
}

func (r *realBinanceClient) NewGetAccountService() GetAccountService {
	return &realGetAccountService{service: r.client.NewGetAccountService()}
}

func (r *realBinanceClient) NewCancelOrderService() CancelOrderService {
	return &realCancelOrderService{service: r.client.NewCancelOrderService()}
}

func (r *realBinanceClient) NewListPricesService() ListPricesService {
	return &realListPricesService{service: r.client.NewListPricesService()}
}

func (r *realBinanceClient) NewExchangeInfoService() ExchangeInfoService {
	return &realExchangeInfoService{service: r.client.NewExchangeInfoService()}
}

func (r *realBinanceClient) NewStartUserStreamService() StartUserStreamService {
	return &realStartUserStreamService{service: r.client.NewStartUserStreamService()}
}

func (r *realBinanceClient) NewKeepaliveUserStreamService() ListenKeyService {
	return &realKeepaliveUserStreamService{service: r.client.NewKeepaliveUserStreamService()}
}

func (r *realBinanceClient) NewCloseUserStreamService() ListenKeyService {
	return &realCloseUserStreamService{service: r.client.NewCloseUserStreamService()}
}

// Real service wrappers

type realCreateOrderService struct {
	service *binance.CreateOrderService
}

func (s *realCreateOrderService) Symbol(symbol string) CreateOrderService {
	s.service = s.service.Symbol(symbol)

	return s
}

func (s *realCreateOrderService) Side(side binance.SideType) CreateOrderService {
	s.service = s.service.Side(side)

	return s
}

func (s *realCreateOrderService) Type(orderType binance.OrderType) CreateOrderService {
	s.service = s.service.Type(orderType)

	return s
}

func (s *realCreateOrderService) Quantity(quantity string) CreateOrderService {
	s.service = s.service.Quantity(quantity)

	return s
}

func (s *realCreateOrderService) Price(price string) CreateOrderService {
	s.service = s.service.Price(price)

	return s
}

func (s *realCreateOrderService) StopPrice(stopPrice string) CreateOrderService {
	s.service = s.service.StopPrice(stopPrice)

	return s
}

func (s *realCreateOrderService) TimeInForce(tif binance.TimeInForceType) CreateOrderService {
	s.service = s.service.TimeInForce(tif)

	return s
}

func (s *realCreateOrderService) NewClientOrderID(clientOrderID string) CreateOrderService {
	s.service = s.service.NewClientOrderID(clientOrderID)

	return s
}

func (s *realCreateOrderService) Do(ctx context.Context) (*binance.CreateOrderResponse, error) {
	return s.service.Do(ctx)
}

type realGetAccountService struct {
	service *binance.GetAccountService
}

func (s *realGetAccountService) Do(ctx context.Context) (*binance.Account, error) {
	return s.service.Do(ctx)
}

type realCancelOrderService struct {
	service *binance.CancelOrderService
}

func (s *realCancelOrderService) Symbol(symbol string) CancelOrderService {
	s.service = s.service.Symbol(symbol)

	return s
}

func (s *realCancelOrderService) OrderID(orderID int64) CancelOrderService {
	s.service = s.service.OrderID(orderID)

	return s
}

func (s *realCancelOrderService) Do(ctx context.Context) (*binance.CancelOrderResponse, error) {
	return s.service.Do(ctx)
}

type realListPricesService struct {
	service *binance.ListPricesService
}

func (s *realListPricesService) Do(ctx context.Context) ([]*binance.SymbolPrice, error) {
	return s.service.Do(ctx)
}

type realExchangeInfoService struct {
	service *binance.ExchangeInfoService
}

func (s *realExchangeInfoService) Symbol(symbol string) ExchangeInfoService {
	s.service = s.service.Symbol(symbol)

	return s
}

func (s *realExchangeInfoService) Do(ctx context.Context) (*binance.ExchangeInfo, error) {
	return s.service.Do(ctx)
}

type realStartUserStreamService struct {
	service *binance.StartUserStreamService
}

func (s *realStartUserStreamService) Do(ctx context.Context) (string, error) {
	return s.service.Do(ctx)
}

type realKeepaliveUserStreamService struct {
	service *binance.KeepaliveUserStreamService
}

func (s *realKeepaliveUserStreamService) ListenKey(listenKey string) ListenKeyService {
	s.service = s.service.ListenKey(listenKey)

	return s
}

func (s *realKeepaliveUserStreamService) Do(ctx context.Context) error {
	return s.service.Do(ctx)
}

type realCloseUserStreamService struct {
	service *binance.CloseUserStreamService
}

func (s *realCloseUserStreamService) ListenKey(listenKey string) ListenKeyService {
	s.service = s.service.ListenKey(listenKey)

	return s
}

func (s *realCloseUserStreamService) Do(ctx context.Context) error {
	return s.service.Do(ctx)
}

// stream is one running websocket connection.
type stream struct {
	doneC chan struct{}
	stopC chan struct{}
}

// BinanceExchange implements ExchangeAdapter on Binance spot.
type BinanceExchange struct {
	client            BinanceClient
	ws                BinanceWebSocketService
	keepaliveInterval time.Duration
	newClientOrderID  func() string

	mu             sync.Mutex
	streams        []stream
	listenKey      string
	keepaliveStopC chan struct{}
}

// NewBinanceExchange creates a Binance exchange adapter.
// If useTestnet is true, connects to Binance Testnet (https://testnet.binance.vision/).
// If config.BaseURL is set, it takes precedence over useTestnet.
func NewBinanceExchange(config BinanceProviderConfig, useTestnet bool) (*BinanceExchange, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	if useTestnet {
		binance.UseTestnet = true
	}

	client := binance.NewClient(config.ApiKey, config.SecretKey)

	if config.BaseURL != "" {
		client.BaseURL = config.BaseURL
	}

	return newBinanceExchangeWithClient(&realBinanceClient{client: client}, &realBinanceWebSocketService{}), nil
}

// newBinanceExchangeWithClient is used by tests to inject fakes.
func newBinanceExchangeWithClient(client BinanceClient, ws BinanceWebSocketService) *BinanceExchange {
	return &BinanceExchange{
		client:            client,
		ws:                ws,
		keepaliveInterval: DefaultListenKeyKeepalive,
		newClientOrderID:  uuid.NewString,
	}
}

// SubmitLimitOrder places a GTC limit order.
func (b *BinanceExchange) SubmitLimitOrder(ctx context.Context, symbol string, side types.Side, price decimal.Decimal, quantity decimal.Decimal) (types.OrderAck, error) {
	service := b.newOrder(symbol, side, binance.OrderTypeLimit, quantity).
		Price(price.String()).
		TimeInForce(binance.TimeInForceTypeGTC)

	return b.placeOrder(ctx, service)
}

// SubmitStopOrder places a GTC stop-loss-limit order.
func (b *BinanceExchange) SubmitStopOrder(ctx context.Context, symbol string, side types.Side, stopPrice decimal.Decimal, price decimal.Decimal, quantity decimal.Decimal) (types.OrderAck, error) {
	service := b.newOrder(symbol, side, binance.OrderTypeStopLossLimit, quantity).
		StopPrice(stopPrice.String()).
		Price(price.String()).
		TimeInForce(binance.TimeInForceTypeGTC)

	return b.placeOrder(ctx, service)
}

// SubmitMarketOrder places a market order for a base asset quantity.
func (b *BinanceExchange) SubmitMarketOrder(ctx context.Context, symbol string, side types.Side, quantity decimal.Decimal) (types.OrderAck, error) {
	return b.placeOrder(ctx, b.newOrder(symbol, side, binance.OrderTypeMarket, quantity))
}

func (b *BinanceExchange) newOrder(symbol string, side types.Side, orderType binance.OrderType, quantity decimal.Decimal) CreateOrderService {
	return b.client.NewCreateOrderService().
		Symbol(symbol).
		Side(toBinanceSide(side)).
		Type(orderType).
		Quantity(quantity.String()).
		NewClientOrderID(b.newClientOrderID())
}

func (b *BinanceExchange) placeOrder(ctx context.Context, service CreateOrderService) (types.OrderAck, error) {
	response, err := service.Do(ctx)
	if err != nil {
		return types.OrderAck{}, classifyOrderError(err)
	}

	return types.OrderAck{
		OrderID:       strconv.FormatInt(response.OrderID, 10),
		ClientOrderID: response.ClientOrderID,
	}, nil
}

// CancelOrder cancels an order by its venue order id.
func (b *BinanceExchange) CancelOrder(ctx context.Context, symbol string, orderID string) error {
	binanceOrderID, err := strconv.ParseInt(orderID, 10, 64)
	if err != nil {
		return errors.Wrap(errors.ErrCodeInvalidParameter, "invalid order ID format", err)
	}

	_, err = b.client.NewCancelOrderService().
		Symbol(symbol).
		OrderID(binanceOrderID).
		Do(ctx)
	if err != nil {
		return errors.Wrapf(errors.ErrCodeCancelFailed, err, "failed to cancel order %s on Binance", orderID)
	}

	return nil
}

// GetBalance returns the free and locked balance of an asset.
func (b *BinanceExchange) GetBalance(ctx context.Context, asset string) (types.Balance, error) {
	account, err := b.client.NewGetAccountService().Do(ctx)
	if err != nil {
		return types.Balance{}, errors.Wrap(errors.ErrCodeExchangeRejected, "failed to get account info from Binance", err)
	}

	for _, balance := range account.Balances {
		if balance.Asset == asset {
			return types.Balance{
				Asset:     asset,
				Available: parseDecimal(balance.Free),
				Locked:    parseDecimal(balance.Locked),
			}, nil
		}
	}

	return types.Balance{Asset: asset, Available: decimal.Zero, Locked: decimal.Zero}, nil
}

// GetCurrentPrices returns the last price of every listed symbol.
func (b *BinanceExchange) GetCurrentPrices(ctx context.Context) (map[string]decimal.Decimal, error) {
	prices, err := b.client.NewListPricesService().Do(ctx)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeExchangeRejected, "failed to get prices from Binance", err)
	}

	result := make(map[string]decimal.Decimal, len(prices))

	for _, p := range prices {
		price, parseErr := decimal.NewFromString(p.Price)
		if parseErr != nil {
			continue
		}

		result[p.Symbol] = price
	}

	return result, nil
}

// GetSymbolConstraints reads PRICE_FILTER, LOT_SIZE and NOTIONAL of a symbol.
func (b *BinanceExchange) GetSymbolConstraints(ctx context.Context, symbol string) (types.SymbolConstraints, error) {
	info, err := b.client.NewExchangeInfoService().Symbol(symbol).Do(ctx)
	if err != nil {
		return types.SymbolConstraints{}, errors.Wrap(errors.ErrCodeExchangeRejected, "failed to get exchange info from Binance", err)
	}

	for i := range info.Symbols {
		s := &info.Symbols[i]
		if s.Symbol != symbol {
			continue
		}

		constraints := types.SymbolConstraints{Symbol: symbol}

		if filter := s.PriceFilter(); filter != nil {
			constraints.MinPrice = parseDecimal(filter.MinPrice)
			constraints.MaxPrice = parseDecimal(filter.MaxPrice)
			constraints.PriceStep = parseDecimal(filter.TickSize)
		}

		if filter := s.LotSizeFilter(); filter != nil {
			constraints.MinQty = parseDecimal(filter.MinQuantity)
			constraints.MaxQty = parseDecimal(filter.MaxQuantity)
			constraints.QtyStep = parseDecimal(filter.StepSize)
		}

		if filter := s.NotionalFilter(); filter != nil {
			constraints.MinNotional = parseDecimal(filter.MinNotional)
		}

		return constraints, nil
	}

	return types.SymbolConstraints{}, errors.Newf(errors.ErrCodeDataNotFound, "symbol not found: %s", symbol)
}

// Subscribe starts one combined trade stream for all symbols.
func (b *BinanceExchange) Subscribe(_ context.Context, symbols []string, onTick TickHandler, onError ErrorHandler) error {
	if len(symbols) == 0 {
		return nil
	}

	doneC, stopC, err := b.ws.WsCombinedTradeServe(symbols, func(event BinanceTradeEvent) {
		price, parseErr := decimal.NewFromString(event.Price)
		if parseErr != nil {
			onError(errors.Wrapf(errors.ErrCodeSubscriptionFailed, parseErr, "invalid trade price %q for %s", event.Price, event.Symbol))

			return
		}

		onTick(types.Tick{
			Symbol: strings.ToUpper(event.Symbol),
			Price:  price,
			Time:   time.UnixMilli(event.TradeTime),
		})
	}, WsErrorHandler(onError))
	if err != nil {
		return errors.Wrap(errors.ErrCodeSubscriptionFailed, "failed to subscribe to Binance trade stream", err)
	}

	b.mu.Lock()
	b.streams = append(b.streams, stream{doneC: doneC, stopC: stopC})
	b.mu.Unlock()

	return nil
}

// SubscribeUserData opens the account stream and keeps its listen key alive.
func (b *BinanceExchange) SubscribeUserData(ctx context.Context, onEvent AccountEventHandler, onError ErrorHandler) error {
	listenKey, err := b.client.NewStartUserStreamService().Do(ctx)
	if err != nil {
		return errors.Wrap(errors.ErrCodeSubscriptionFailed, "failed to create Binance listen key", err)
	}

	doneC, stopC, err := b.ws.WsUserDataServe(listenKey, func(event BinanceUserDataEvent) {
		accountEvent, ok := toAccountEvent(event)
		if ok {
			onEvent(accountEvent)
		}
	}, WsErrorHandler(onError))
	if err != nil {
		closeErr := b.client.NewCloseUserStreamService().ListenKey(listenKey).Do(ctx)

		return errors.Wrap(errors.ErrCodeSubscriptionFailed, "failed to subscribe to Binance user data stream", multierr.Append(err, closeErr))
	}

	keepaliveStopC := make(chan struct{})

	b.mu.Lock()
	b.streams = append(b.streams, stream{doneC: doneC, stopC: stopC})
	b.listenKey = listenKey
	b.keepaliveStopC = keepaliveStopC
	b.mu.Unlock()

	go b.keepalive(listenKey, keepaliveStopC, onError)

	return nil
}

func (b *BinanceExchange) keepalive(listenKey string, stopC chan struct{}, onError ErrorHandler) {
	ticker := time.NewTicker(b.keepaliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stopC:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			err := b.client.NewKeepaliveUserStreamService().ListenKey(listenKey).Do(ctx)

			cancel()

			if err != nil {
				onError(errors.Wrap(errors.ErrCodeSubscriptionFailed, "failed to keep Binance listen key alive", err))
			}
		}
	}
}

// UnsubscribeAll stops every stream, waits for them to close and releases the listen key.
func (b *BinanceExchange) UnsubscribeAll(ctx context.Context) error {
	b.mu.Lock()
	streams := b.streams
	listenKey := b.listenKey
	keepaliveStopC := b.keepaliveStopC
	b.streams = nil
	b.listenKey = ""
	b.keepaliveStopC = nil
	b.mu.Unlock()

	if keepaliveStopC != nil {
		close(keepaliveStopC)
	}

	var err error

	for _, s := range streams {
		close(s.stopC)

		select {
		case <-s.doneC:
		case <-ctx.Done():
			err = multierr.Append(err, ctx.Err())
		}
	}

	if listenKey != "" {
		if closeErr := b.client.NewCloseUserStreamService().ListenKey(listenKey).Do(ctx); closeErr != nil {
			err = multierr.Append(err, errors.Wrap(errors.ErrCodeSubscriptionFailed, "failed to close Binance listen key", closeErr))
		}
	}

	return err
}

// Helper functions

// classifyOrderError separates the immediate-trigger rejection (-2010) from other failures.
func classifyOrderError(err error) error {
	var apiErr *common.APIError
	if errors.As(err, &apiErr) && wouldExecuteImmediately(apiErr.Message) {
		return errors.Wrap(errors.ErrCodeOrderWouldExecuteImmediately, "order would execute immediately", err)
	}

	if wouldExecuteImmediately(err.Error()) {
		return errors.Wrap(errors.ErrCodeOrderWouldExecuteImmediately, "order would execute immediately", err)
	}

	return errors.Wrap(errors.ErrCodeExchangeRejected, "failed to place order on Binance", err)
}

func wouldExecuteImmediately(message string) bool {
	lower := strings.ToLower(message)

	return strings.Contains(lower, "would trigger immediately") || strings.Contains(lower, "would immediately trigger")
}

func toBinanceSide(side types.Side) binance.SideType {
	if side == types.SideBuy {
		return binance.SideTypeBuy
	}

	return binance.SideTypeSell
}

func toAccountEvent(event BinanceUserDataEvent) (types.AccountEvent, bool) {
	switch event.Event {
	case BinanceEventAccountPosition:
		balances := make([]types.Balance, 0, len(event.Balances))
		for _, b := range event.Balances {
			balances = append(balances, types.Balance{
				Asset:     b.Asset,
				Available: parseDecimal(b.Free),
				Locked:    parseDecimal(b.Locked),
			})
		}

		return types.AccountEvent{Balances: balances}, true
	case BinanceEventExecutionReport:
		if event.Order == nil {
			return types.AccountEvent{}, false
		}

		return types.AccountEvent{Report: &types.ExecutionReport{
			OrderID:  strconv.FormatInt(event.Order.OrderID, 10),
			Symbol:   event.Order.Symbol,
			Side:     types.Side(event.Order.Side),
			Status:   types.OrderStatus(event.Order.Status),
			Quantity: parseDecimal(event.Order.Quantity),
			Price:    parseDecimal(event.Order.Price),
		}}, true
	default:
		return types.AccountEvent{}, false
	}
}

// parseDecimal treats empty or malformed venue numbers as zero.
func parseDecimal(value string) decimal.Decimal {
	d, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero
	}

	return d
}

// Ensure BinanceExchange implements ExchangeAdapter.
var _ ExchangeAdapter = (*BinanceExchange)(nil)
