package tradingprovider

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/adshao/go-binance/v2"
	"github.com/adshao/go-binance/v2/common"
	"github.com/rxtech-lab/argo-smartorder/internal/types"
	argoErrors "github.com/rxtech-lab/argo-smartorder/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
)

// Mock implementations for testing

// mockBinanceClient implements BinanceClient interface for testing
type mockBinanceClient struct {
	createOrderService     *mockCreateOrderService
	getAccountService      *mockGetAccountService
	cancelOrderService     *mockCancelOrderService
	listPricesService      *mockListPricesService
	exchangeInfoService    *mockExchangeInfoService
	startUserStreamService *mockStartUserStreamService
	keepaliveService       *mockListenKeyService
	closeService           *mockListenKeyService
}

func newMockBinanceClient() *mockBinanceClient {
	return &mockBinanceClient{
		createOrderService:     &mockCreateOrderService{},
		getAccountService:      &mockGetAccountService{},
		cancelOrderService:     &mockCancelOrderService{},
		listPricesService:      &mockListPricesService{},
		exchangeInfoService:    &mockExchangeInfoService{},
		startUserStreamService: &mockStartUserStreamService{},
		keepaliveService:       &mockListenKeyService{},
		closeService:           &mockListenKeyService{},
	}
}

func (m *mockBinanceClient) NewCreateOrderService() CreateOrderService {
	m.createOrderService.reset()

	return m.createOrderService
}

func (m *mockBinanceClient) NewGetAccountService() GetAccountService {
	return m.getAccountService
}

func (m *mockBinanceClient) NewCancelOrderService() CancelOrderService {
	return m.cancelOrderService
}

func (m *mockBinanceClient) NewListPricesService() ListPricesService {
	return m.listPricesService
}

func (m *mockBinanceClient) NewExchangeInfoService() ExchangeInfoService {
	return m.exchangeInfoService
}

func (m *mockBinanceClient) NewStartUserStreamService() StartUserStreamService {
	return m.startUserStreamService
}

func (m *mockBinanceClient) NewKeepaliveUserStreamService() ListenKeyService {
	return m.keepaliveService
}

func (m *mockBinanceClient) NewCloseUserStreamService() ListenKeyService {
	return m.closeService
}

// mockCreateOrderService implements CreateOrderService
type mockCreateOrderService struct {
	response      *binance.CreateOrderResponse
	err           error
	symbol        string
	side          binance.SideType
	orderTyp      binance.OrderType
	quantity      string
	price         string
	stopPrice     string
	tif           binance.TimeInForceType
	clientOrderID string
	calls         int
}

func (m *mockCreateOrderService) reset() {
	m.symbol, m.side, m.orderTyp = "", "", ""
	m.quantity, m.price, m.stopPrice, m.tif, m.clientOrderID = "", "", "", "", ""
}

func (m *mockCreateOrderService) Symbol(symbol string) CreateOrderService {
	m.symbol = symbol
	return m
}

func (m *mockCreateOrderService) Side(side binance.SideType) CreateOrderService {
	m.side = side
	return m
}

func (m *mockCreateOrderService) Type(orderType binance.OrderType) CreateOrderService {
	m.orderTyp = orderType
	return m
}

func (m *mockCreateOrderService) Quantity(quantity string) CreateOrderService {
	m.quantity = quantity
	return m
}

func (m *mockCreateOrderService) Price(price string) CreateOrderService {
	m.price = price
	return m
}

func (m *mockCreateOrderService) StopPrice(stopPrice string) CreateOrderService {
	m.stopPrice = stopPrice
	return m
}

func (m *mockCreateOrderService) TimeInForce(tif binance.TimeInForceType) CreateOrderService {
	m.tif = tif
	return m
}

func (m *mockCreateOrderService) NewClientOrderID(clientOrderID string) CreateOrderService {
	m.clientOrderID = clientOrderID
	return m
}

func (m *mockCreateOrderService) Do(_ context.Context) (*binance.CreateOrderResponse, error) {
	m.calls++
	return m.response, m.err
}

// mockGetAccountService implements GetAccountService
type mockGetAccountService struct {
	account *binance.Account
	err     error
}

func (m *mockGetAccountService) Do(_ context.Context) (*binance.Account, error) {
	return m.account, m.err
}

// mockCancelOrderService implements CancelOrderService
type mockCancelOrderService struct {
	response *binance.CancelOrderResponse
	err      error
	symbol   string
	orderID  int64
}

func (m *mockCancelOrderService) Symbol(symbol string) CancelOrderService {
	m.symbol = symbol
	return m
}

func (m *mockCancelOrderService) OrderID(orderID int64) CancelOrderService {
	m.orderID = orderID
	return m
}

func (m *mockCancelOrderService) Do(_ context.Context) (*binance.CancelOrderResponse, error) {
	return m.response, m.err
}

// mockListPricesService implements ListPricesService
type mockListPricesService struct {
	prices []*binance.SymbolPrice
	err    error
}

func (m *mockListPricesService) Do(_ context.Context) ([]*binance.SymbolPrice, error) {
	return m.prices, m.err
}

// mockExchangeInfoService implements ExchangeInfoService
type mockExchangeInfoService struct {
	info   *binance.ExchangeInfo
	err    error
	symbol string
}

func (m *mockExchangeInfoService) Symbol(symbol string) ExchangeInfoService {
	m.symbol = symbol
	return m
}

func (m *mockExchangeInfoService) Do(_ context.Context) (*binance.ExchangeInfo, error) {
	return m.info, m.err
}

// mockStartUserStreamService implements StartUserStreamService
type mockStartUserStreamService struct {
	listenKey string
	err       error
}

func (m *mockStartUserStreamService) Do(_ context.Context) (string, error) {
	return m.listenKey, m.err
}

// mockListenKeyService implements ListenKeyService
type mockListenKeyService struct {
	listenKey string
	err       error
	calls     atomic.Int32
}

func (m *mockListenKeyService) ListenKey(listenKey string) ListenKeyService {
	m.listenKey = listenKey
	return m
}

func (m *mockListenKeyService) Do(_ context.Context) error {
	m.calls.Add(1)
	return m.err
}

// mockBinanceWebSocketService emits its configured events before returning.
type mockBinanceWebSocketService struct {
	tradeEvents  []BinanceTradeEvent
	userEvents   []BinanceUserDataEvent
	errors       []error
	startError   error
	tradeSymbols []string
	listenKey    string
}

func (m *mockBinanceWebSocketService) serve(emit func(), errHandler WsErrorHandler) (chan struct{}, chan struct{}, error) {
	if m.startError != nil {
		return nil, nil, m.startError
	}

	emit()

	for _, err := range m.errors {
		errHandler(err)
	}

	doneC := make(chan struct{})
	stopC := make(chan struct{})

	go func() {
		defer close(doneC)
		<-stopC
	}()

	return doneC, stopC, nil
}

func (m *mockBinanceWebSocketService) WsCombinedTradeServe(symbols []string, handler WsTradeHandler, errHandler WsErrorHandler) (chan struct{}, chan struct{}, error) {
	m.tradeSymbols = symbols

	return m.serve(func() {
		for _, event := range m.tradeEvents {
			handler(event)
		}
	}, errHandler)
}

func (m *mockBinanceWebSocketService) WsUserDataServe(listenKey string, handler WsUserDataHandler, errHandler WsErrorHandler) (chan struct{}, chan struct{}, error) {
	m.listenKey = listenKey

	return m.serve(func() {
		for _, event := range m.userEvents {
			handler(event)
		}
	}, errHandler)
}

type BinanceExchangeTestSuite struct {
	suite.Suite
	client   *mockBinanceClient
	ws       *mockBinanceWebSocketService
	exchange *BinanceExchange
}

func TestBinanceExchangeSuite(t *testing.T) {
	suite.Run(t, new(BinanceExchangeTestSuite))
}

func (suite *BinanceExchangeTestSuite) SetupTest() {
	suite.client = newMockBinanceClient()
	suite.ws = &mockBinanceWebSocketService{}
	suite.exchange = newBinanceExchangeWithClient(suite.client, suite.ws)
	suite.exchange.newClientOrderID = func() string { return "client-1" }
}

func (suite *BinanceExchangeTestSuite) TestNewBinanceExchange() {
	exchange, err := NewBinanceExchange(BinanceProviderConfig{ApiKey: "k", SecretKey: "s", BaseURL: "https://example.com"}, false)
	suite.NoError(err)
	suite.NotNil(exchange.client)

	_, err = NewBinanceExchange(BinanceProviderConfig{}, false)
	suite.Error(err)
}

func (suite *BinanceExchangeTestSuite) TestSubmitStopOrder() {
	suite.client.createOrderService.response = &binance.CreateOrderResponse{OrderID: 12345, ClientOrderID: "client-1"}

	ack, err := suite.exchange.SubmitStopOrder(context.Background(), "BTCUSDT", types.SideBuy,
		decimal.RequireFromString("98.5"), decimal.RequireFromString("99"), decimal.RequireFromString("0.25"))
	suite.NoError(err)
	suite.Equal("12345", ack.OrderID)
	suite.Equal("client-1", ack.ClientOrderID)

	svc := suite.client.createOrderService
	suite.Equal("BTCUSDT", svc.symbol)
	suite.Equal(binance.SideTypeBuy, svc.side)
	suite.Equal(binance.OrderTypeStopLossLimit, svc.orderTyp)
	suite.Equal("98.5", svc.stopPrice)
	suite.Equal("99", svc.price)
	suite.Equal("0.25", svc.quantity)
	suite.Equal(binance.TimeInForceTypeGTC, svc.tif)
	suite.Equal("client-1", svc.clientOrderID)
}

func (suite *BinanceExchangeTestSuite) TestSubmitLimitAndMarketOrder() {
	suite.client.createOrderService.response = &binance.CreateOrderResponse{OrderID: 1}

	_, err := suite.exchange.SubmitLimitOrder(context.Background(), "ETHUSDT", types.SideSell, decimal.NewFromInt(2000), decimal.NewFromInt(1))
	suite.NoError(err)
	suite.Equal(binance.OrderTypeLimit, suite.client.createOrderService.orderTyp)
	suite.Equal(binance.SideTypeSell, suite.client.createOrderService.side)
	suite.Equal("2000", suite.client.createOrderService.price)

	_, err = suite.exchange.SubmitMarketOrder(context.Background(), "ETHUSDT", types.SideSell, decimal.NewFromInt(1))
	suite.NoError(err)
	suite.Equal(binance.OrderTypeMarket, suite.client.createOrderService.orderTyp)
	suite.Empty(suite.client.createOrderService.price)
	suite.Empty(string(suite.client.createOrderService.tif))
}

func (suite *BinanceExchangeTestSuite) TestSubmitOrderErrors() {
	tests := []struct {
		name string
		err  error
		code argoErrors.ErrorCode
	}{
		{
			name: "api error would trigger immediately",
			err:  &common.APIError{Code: -2010, Message: "Stop price would trigger immediately."},
			code: argoErrors.ErrCodeOrderWouldExecuteImmediately,
		},
		{
			name: "api error immediately trigger",
			err:  &common.APIError{Code: -2010, Message: "Order would immediately trigger."},
			code: argoErrors.ErrCodeOrderWouldExecuteImmediately,
		},
		{
			name: "insufficient balance",
			err:  &common.APIError{Code: -2010, Message: "Account has insufficient balance for requested action."},
			code: argoErrors.ErrCodeExchangeRejected,
		},
		{
			name: "transport error",
			err:  errors.New("connection reset"),
			code: argoErrors.ErrCodeExchangeRejected,
		},
	}

	for _, tt := range tests {
		suite.Run(tt.name, func() {
			suite.client.createOrderService.err = tt.err

			_, err := suite.exchange.SubmitStopOrder(context.Background(), "BTCUSDT", types.SideSell,
				decimal.NewFromInt(100), decimal.NewFromInt(99), decimal.NewFromInt(1))
			suite.Error(err)
			suite.Equal(tt.code, argoErrors.GetCode(err))
		})
	}
}

func (suite *BinanceExchangeTestSuite) TestCancelOrder() {
	suite.Run("success", func() {
		suite.client.cancelOrderService.err = nil
		suite.NoError(suite.exchange.CancelOrder(context.Background(), "BTCUSDT", "42"))
		suite.Equal("BTCUSDT", suite.client.cancelOrderService.symbol)
		suite.Equal(int64(42), suite.client.cancelOrderService.orderID)
	})

	suite.Run("invalid id", func() {
		err := suite.exchange.CancelOrder(context.Background(), "BTCUSDT", "abc")
		suite.True(argoErrors.HasCode(err, argoErrors.ErrCodeInvalidParameter))
	})

	suite.Run("venue failure", func() {
		suite.client.cancelOrderService.err = errors.New("unknown order")
		err := suite.exchange.CancelOrder(context.Background(), "BTCUSDT", "42")
		suite.True(argoErrors.HasCode(err, argoErrors.ErrCodeCancelFailed))
	})
}

func (suite *BinanceExchangeTestSuite) TestGetBalance() {
	suite.client.getAccountService.account = &binance.Account{
		Balances: []binance.Balance{
			{Asset: "USDT", Free: "1000.5", Locked: "10"},
			{Asset: "BTC", Free: "0.1", Locked: "0"},
		},
	}

	balance, err := suite.exchange.GetBalance(context.Background(), "USDT")
	suite.NoError(err)
	suite.True(balance.Available.Equal(decimal.RequireFromString("1000.5")))
	suite.True(balance.Locked.Equal(decimal.NewFromInt(10)))

	missing, err := suite.exchange.GetBalance(context.Background(), "ETH")
	suite.NoError(err)
	suite.True(missing.Available.IsZero())

	suite.client.getAccountService.err = errors.New("boom")
	_, err = suite.exchange.GetBalance(context.Background(), "USDT")
	suite.True(argoErrors.HasCode(err, argoErrors.ErrCodeExchangeRejected))
}

func (suite *BinanceExchangeTestSuite) TestGetCurrentPrices() {
	suite.client.listPricesService.prices = []*binance.SymbolPrice{
		{Symbol: "BTCUSDT", Price: "100.5"},
		{Symbol: "ETHUSDT", Price: "not-a-number"},
	}

	prices, err := suite.exchange.GetCurrentPrices(context.Background())
	suite.NoError(err)
	suite.Len(prices, 1)
	suite.True(prices["BTCUSDT"].Equal(decimal.RequireFromString("100.5")))
}

func (suite *BinanceExchangeTestSuite) TestGetSymbolConstraints() {
	suite.client.exchangeInfoService.info = &binance.ExchangeInfo{
		Symbols: []binance.Symbol{
			{
				Symbol: "BTCUSDT",
				Filters: []map[string]interface{}{
					{"filterType": "PRICE_FILTER", "minPrice": "0.01", "maxPrice": "1000000", "tickSize": "0.01"},
					{"filterType": "LOT_SIZE", "minQty": "0.00001", "maxQty": "9000", "stepSize": "0.00001"},
					{"filterType": "NOTIONAL", "minNotional": "5"},
				},
			},
		},
	}

	constraints, err := suite.exchange.GetSymbolConstraints(context.Background(), "BTCUSDT")
	suite.NoError(err)
	suite.Equal("BTCUSDT", suite.client.exchangeInfoService.symbol)
	suite.True(constraints.PriceStep.Equal(decimal.RequireFromString("0.01")))
	suite.True(constraints.QtyStep.Equal(decimal.RequireFromString("0.00001")))
	suite.True(constraints.MaxQty.Equal(decimal.NewFromInt(9000)))
	suite.True(constraints.MinNotional.Equal(decimal.NewFromInt(5)))

	_, err = suite.exchange.GetSymbolConstraints(context.Background(), "ETHUSDT")
	suite.True(argoErrors.HasCode(err, argoErrors.ErrCodeDataNotFound))
}

func (suite *BinanceExchangeTestSuite) TestSubscribe() {
	suite.ws.tradeEvents = []BinanceTradeEvent{
		{Symbol: "BTCUSDT", Price: "100.1", TradeTime: 1700000000000},
		{Symbol: "BTCUSDT", Price: "bad"},
	}

	var ticks []types.Tick

	var streamErrors []error

	err := suite.exchange.Subscribe(context.Background(), []string{"BTCUSDT"},
		func(tick types.Tick) { ticks = append(ticks, tick) },
		func(err error) { streamErrors = append(streamErrors, err) })
	suite.NoError(err)
	suite.Equal([]string{"BTCUSDT"}, suite.ws.tradeSymbols)
	suite.Require().Len(ticks, 1)
	suite.True(ticks[0].Price.Equal(decimal.RequireFromString("100.1")))
	suite.Equal(time.UnixMilli(1700000000000), ticks[0].Time)
	suite.Len(streamErrors, 1)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	suite.NoError(suite.exchange.UnsubscribeAll(ctx))
	suite.Empty(suite.exchange.streams)
}

func (suite *BinanceExchangeTestSuite) TestSubscribeNoSymbols() {
	suite.NoError(suite.exchange.Subscribe(context.Background(), nil, func(types.Tick) {}, func(error) {}))
	suite.Nil(suite.ws.tradeSymbols)
}

func (suite *BinanceExchangeTestSuite) TestSubscribeFailure() {
	suite.ws.startError = errors.New("dial failed")

	err := suite.exchange.Subscribe(context.Background(), []string{"BTCUSDT"}, func(types.Tick) {}, func(error) {})
	suite.True(argoErrors.HasCode(err, argoErrors.ErrCodeSubscriptionFailed))
}

func (suite *BinanceExchangeTestSuite) TestSubscribeUserData() {
	suite.client.startUserStreamService.listenKey = "listen-key"
	suite.ws.userEvents = []BinanceUserDataEvent{
		{Event: BinanceEventAccountPosition, Balances: []BinanceBalance{{Asset: "USDT", Free: "500", Locked: "1"}}},
		{Event: BinanceEventExecutionReport, Order: &BinanceOrderUpdate{
			OrderID: 7, Symbol: "BTCUSDT", Side: "BUY", Status: "FILLED", Quantity: "0.5", Price: "99",
		}},
		{Event: "balanceUpdate"},
	}

	var events []types.AccountEvent

	err := suite.exchange.SubscribeUserData(context.Background(),
		func(event types.AccountEvent) { events = append(events, event) },
		func(error) {})
	suite.NoError(err)
	suite.Equal("listen-key", suite.ws.listenKey)
	suite.Require().Len(events, 2)

	suite.False(events[0].IsExecutionReport())
	suite.Equal("USDT", events[0].Balances[0].Asset)
	suite.True(events[0].Balances[0].Available.Equal(decimal.NewFromInt(500)))

	suite.True(events[1].IsExecutionReport())
	suite.Equal("7", events[1].Report.OrderID)
	suite.Equal(types.OrderStatusFilled, events[1].Report.Status)
	suite.Equal(types.SideBuy, events[1].Report.Side)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	suite.NoError(suite.exchange.UnsubscribeAll(ctx))
	suite.Equal(int32(1), suite.client.closeService.calls.Load())
	suite.Equal("listen-key", suite.client.closeService.listenKey)
}

func (suite *BinanceExchangeTestSuite) TestSubscribeUserDataFailure() {
	suite.client.startUserStreamService.err = errors.New("unauthorized")

	err := suite.exchange.SubscribeUserData(context.Background(), func(types.AccountEvent) {}, func(error) {})
	suite.True(argoErrors.HasCode(err, argoErrors.ErrCodeSubscriptionFailed))

	suite.client.startUserStreamService.err = nil
	suite.client.startUserStreamService.listenKey = "listen-key"
	suite.ws.startError = errors.New("dial failed")

	err = suite.exchange.SubscribeUserData(context.Background(), func(types.AccountEvent) {}, func(error) {})
	suite.True(argoErrors.HasCode(err, argoErrors.ErrCodeSubscriptionFailed))
	suite.Equal(int32(1), suite.client.closeService.calls.Load())
}

func (suite *BinanceExchangeTestSuite) TestStreamErrorsReachErrorHandler() {
	suite.client.startUserStreamService.listenKey = "listen-key"
	suite.ws.errors = []error{errors.New("connection reset")}

	var tradeErrors, userErrors []error

	suite.NoError(suite.exchange.Subscribe(context.Background(), []string{"BTCUSDT"},
		func(types.Tick) {},
		func(err error) { tradeErrors = append(tradeErrors, err) }))
	suite.NoError(suite.exchange.SubscribeUserData(context.Background(),
		func(types.AccountEvent) {},
		func(err error) { userErrors = append(userErrors, err) }))

	suite.Require().Len(tradeErrors, 1)
	suite.EqualError(tradeErrors[0], "connection reset")
	suite.Require().Len(userErrors, 1)
	suite.EqualError(userErrors[0], "connection reset")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	suite.NoError(suite.exchange.UnsubscribeAll(ctx))
}

func (suite *BinanceExchangeTestSuite) TestKeepalive() {
	suite.client.startUserStreamService.listenKey = "listen-key"
	suite.exchange.keepaliveInterval = 10 * time.Millisecond

	suite.NoError(suite.exchange.SubscribeUserData(context.Background(), func(types.AccountEvent) {}, func(error) {}))

	suite.Eventually(func() bool {
		return suite.client.keepaliveService.calls.Load() > 0
	}, time.Second, 5*time.Millisecond)

	suite.NoError(suite.exchange.UnsubscribeAll(context.Background()))
}
