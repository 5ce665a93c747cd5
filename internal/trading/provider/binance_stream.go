package tradingprovider

import (
	"github.com/adshao/go-binance/v2"
)

const (
	BinanceEventAccountPosition = "outboundAccountPosition"
	BinanceEventExecutionReport = "executionReport"
)

// BinanceTradeEvent is the part of a Binance aggregate trade event the adapter uses.
type BinanceTradeEvent struct {
	Symbol    string
	Price     string
	TradeTime int64
}

// BinanceBalance is one entry of an outboundAccountPosition event.
type BinanceBalance struct {
	Asset  string
	Free   string
	Locked string
}

// BinanceOrderUpdate is the part of an executionReport event the adapter uses.
type BinanceOrderUpdate struct {
	OrderID  int64
	Symbol   string
	Side     string
	Status   string
	Quantity string
	Price    string
}

// BinanceUserDataEvent is a decoded user data stream event.
type BinanceUserDataEvent struct {
	Event    string
	Balances []BinanceBalance
	Order    *BinanceOrderUpdate
}

// WsTradeHandler handles trade events.
type WsTradeHandler func(event BinanceTradeEvent)

// WsUserDataHandler handles user data events.
type WsUserDataHandler func(event BinanceUserDataEvent)

// WsErrorHandler handles websocket errors.
type WsErrorHandler func(err error)

// BinanceWebSocketService abstracts the Binance websocket streams for testing.
// Closing stopC stops the stream; doneC is closed once it has stopped.
type BinanceWebSocketService interface {
	WsCombinedTradeServe(symbols []string, handler WsTradeHandler, errHandler WsErrorHandler) (doneC, stopC chan struct{}, err error)
	WsUserDataServe(listenKey string, handler WsUserDataHandler, errHandler WsErrorHandler) (doneC, stopC chan struct{}, err error)
}

// realBinanceWebSocketService wraps the go-binance websocket functions.
type realBinanceWebSocketService struct{}

func (s *realBinanceWebSocketService) WsCombinedTradeServe(symbols []string, handler WsTradeHandler, errHandler WsErrorHandler) (doneC, stopC chan struct{}, err error) {
	return binance.WsCombinedAggTradeServe(symbols, func(event *binance.WsAggTradeEvent) {
		handler(BinanceTradeEvent{
			Symbol:    event.Symbol,
			Price:     event.Price,
			TradeTime: event.TradeTime,
		})
	}, func(err error) {
		errHandler(err)
	})
}

func (s *realBinanceWebSocketService) WsUserDataServe(listenKey string, handler WsUserDataHandler, errHandler WsErrorHandler) (doneC, stopC chan struct{}, err error) {
	return binance.WsUserDataServe(listenKey, func(event *binance.WsUserDataEvent) {
		handler(fromBinanceUserDataEvent(event))
	}, func(err error) {
		errHandler(err)
	})
}

func fromBinanceUserDataEvent(event *binance.WsUserDataEvent) BinanceUserDataEvent {
	result := BinanceUserDataEvent{Event: string(event.Event)}

	switch result.Event {
	case BinanceEventAccountPosition:
		for _, update := range event.AccountUpdate.WsAccountUpdates {
			result.Balances = append(result.Balances, BinanceBalance{
				Asset:  update.Asset,
				Free:   update.Free,
				Locked: update.Locked,
			})
		}
	case BinanceEventExecutionReport:
		order := event.OrderUpdate
		result.Order = &BinanceOrderUpdate{
			OrderID:  order.Id,
			Symbol:   order.Symbol,
			Side:     string(order.Side),
			Status:   string(order.Status),
			Quantity: order.Volume,
			Price:    order.Price,
		}
	}

	return result
}
