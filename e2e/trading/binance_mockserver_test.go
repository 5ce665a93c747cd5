package trading_test

import (
	"context"
	"testing"

	"github.com/rxtech-lab/argo-smartorder/e2e/trading/mockserver"
	"github.com/rxtech-lab/argo-smartorder/internal/strategy"
	tradingprovider "github.com/rxtech-lab/argo-smartorder/internal/trading/provider"
	"github.com/rxtech-lab/argo-smartorder/internal/types"
	"github.com/rxtech-lab/argo-smartorder/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
)

// BinanceMockServerTestSuite runs the Binance adapter and the smart order strategy
// against the mock REST server.
type BinanceMockServerTestSuite struct {
	suite.Suite
	server   *mockserver.MockBinanceServer
	exchange *tradingprovider.BinanceExchange
	ctx      context.Context
}

func TestBinanceMockServerSuite(t *testing.T) {
	suite.Run(t, new(BinanceMockServerTestSuite))
}

func (s *BinanceMockServerTestSuite) SetupTest() {
	s.ctx = context.Background()
	s.server = mockserver.NewMockBinanceServer(mockserver.ServerConfig{
		Balances: map[string]string{"USDT": "1000", "BTC": "0"},
		Prices:   map[string]string{"BTCUSDT": "100"},
	})
	s.Require().NoError(s.server.Start(""))

	exchange, err := tradingprovider.NewBinanceExchange(tradingprovider.BinanceProviderConfig{
		ApiKey:    "key",
		SecretKey: "secret",
		BaseURL:   s.server.BaseURL(),
	}, false)
	s.Require().NoError(err)
	s.exchange = exchange
}

func (s *BinanceMockServerTestSuite) TearDownTest() {
	s.NoError(s.server.Stop())
}

// newLongTrade buys 0.5 BTC one percent below the first price.
func newLongTrade() *types.Trade {
	return &types.Trade{
		ID:     "btc-long",
		Symbol: "BTCUSDT",
		Asset:  "USDT",
		Side:   types.SideSell,
		Entry: &types.TradeSection{
			StopLossThreshold: types.MustParseValue("5"),
			PullbackThreshold: types.MustParseValue("1"),
			Targets:           []*types.Target{types.NewTarget(types.MustParseValue("-1%"), types.MustParseValue("0.5"))},
		},
	}
}

func (s *BinanceMockServerTestSuite) execute(st *strategy.TradingStrategy, prices ...string) {
	for _, p := range prices {
		s.Require().NoError(st.Execute(s.ctx, decimal.RequireFromString(p)))
	}
}

func (s *BinanceMockServerTestSuite) TestRESTSurface() {
	prices, err := s.exchange.GetCurrentPrices(s.ctx)
	s.Require().NoError(err)
	s.True(prices["BTCUSDT"].Equal(decimal.NewFromInt(100)))

	balance, err := s.exchange.GetBalance(s.ctx, "USDT")
	s.Require().NoError(err)
	s.True(balance.Available.Equal(decimal.NewFromInt(1000)))

	missing, err := s.exchange.GetBalance(s.ctx, "DOGE")
	s.Require().NoError(err)
	s.True(missing.Available.IsZero())

	constraints, err := s.exchange.GetSymbolConstraints(s.ctx, "BTCUSDT")
	s.Require().NoError(err)
	s.True(constraints.PriceStep.Equal(decimal.RequireFromString("0.01")))
	s.True(constraints.QtyStep.Equal(decimal.RequireFromString("0.00001")))
	s.True(constraints.MinNotional.Equal(decimal.NewFromInt(5)))

	_, err = s.exchange.GetSymbolConstraints(s.ctx, "XRPUSDT")
	s.True(errors.HasCode(err, errors.ErrCodeExchangeRejected))
}

func (s *BinanceMockServerTestSuite) TestStopOrderRejectionIsClassified() {
	_, err := s.exchange.SubmitStopOrder(s.ctx, "BTCUSDT", types.SideBuy,
		decimal.NewFromInt(99), decimal.NewFromInt(101), decimal.RequireFromString("0.1"))

	s.True(errors.HasCode(err, errors.ErrCodeOrderWouldExecuteImmediately))
}

func (s *BinanceMockServerTestSuite) TestLimitOrderCancel() {
	ack, err := s.exchange.SubmitLimitOrder(s.ctx, "BTCUSDT", types.SideBuy, decimal.NewFromInt(90), decimal.NewFromInt(1))
	s.Require().NoError(err)
	s.Equal("1001", ack.OrderID)
	s.NotEmpty(ack.ClientOrderID)

	s.Require().NoError(s.exchange.CancelOrder(s.ctx, "BTCUSDT", ack.OrderID))

	order, ok := s.server.Order(1001)
	s.Require().True(ok)
	s.Equal(mockserver.OrderStatusCanceled, order.Status)

	err = s.exchange.CancelOrder(s.ctx, "BTCUSDT", ack.OrderID)
	s.True(errors.HasCode(err, errors.ErrCodeCancelFailed))
}

func (s *BinanceMockServerTestSuite) TestSmartOrderPlacesStopOrder() {
	trade := newLongTrade()

	entry, err := strategy.NewEntry(trade, s.exchange)
	s.Require().NoError(err)

	// the venue trades below the stop when the trigger fires
	s.server.SetPrice("BTCUSDT", "97")
	s.execute(entry, "100", "99", "97", "98.5")

	target := entry.Target()
	s.Equal(types.TargetStatusActive, target.Status())
	s.True(target.OwnsOrder("1001"))

	orders := s.server.Orders()
	s.Require().Len(orders, 1)
	s.Equal("STOP_LOSS_LIMIT", orders[0].Type)
	s.Equal("BUY", orders[0].Side)
	s.Equal("GTC", orders[0].TimeInForce)
	s.True(orders[0].StopPrice.Equal(decimal.RequireFromString("98.5")))
	s.True(orders[0].Price.Equal(decimal.NewFromInt(104)))
	s.True(orders[0].Quantity.Equal(decimal.RequireFromString("0.5")))
}

func (s *BinanceMockServerTestSuite) TestSmartOrderFallsBackToMarket() {
	trade := newLongTrade()

	entry, err := strategy.NewEntry(trade, s.exchange)
	s.Require().NoError(err)

	// the venue already trades above the stop, so the stop order is refused
	s.server.SetPrice("BTCUSDT", "99")
	s.execute(entry, "100", "99", "97", "98.5")

	target := entry.Target()
	s.Equal(types.TargetStatusActive, target.Status())
	s.True(target.OwnsOrder("1001"))

	orders := s.server.Orders()
	s.Require().Len(orders, 1)
	s.Equal("MARKET", orders[0].Type)
	s.Equal(mockserver.OrderStatusFilled, orders[0].Status)

	s.True(s.server.Balance("BTC").Equal(decimal.RequireFromString("0.5")))
	s.True(s.server.Balance("USDT").Equal(decimal.RequireFromString("950.5")))
}
