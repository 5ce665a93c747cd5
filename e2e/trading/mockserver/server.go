// Package mockserver provides a mock Binance spot REST server for testing.
// It keeps balances and orders in memory and rejects stop orders whose stop
// price the market already crossed, like the venue does.
package mockserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
)

// Binance error codes returned by the mock.
const (
	CodeInvalidSymbol    = -1121
	CodeNewOrderRejected = -2010
	CodeCancelRejected   = -2011
	CodeMissingParameter = -1102
)

// OrderStatus represents the status of an order.
type OrderStatus string

const (
	OrderStatusNew      OrderStatus = "NEW"
	OrderStatusFilled   OrderStatus = "FILLED"
	OrderStatusCanceled OrderStatus = "CANCELED"
)

// Order is an order as stored by the server.
type Order struct {
	OrderID       int64
	ClientOrderID string
	Symbol        string
	Side          string
	Type          string
	TimeInForce   string
	Quantity      decimal.Decimal
	Price         decimal.Decimal
	StopPrice     decimal.Decimal
	Status        OrderStatus
	CreatedAt     time.Time
}

// SymbolInfo holds the assets and trading filters of a symbol.
type SymbolInfo struct {
	Symbol      string
	BaseAsset   string
	QuoteAsset  string
	TickSize    string
	StepSize    string
	MinQty      string
	MinNotional string
}

// ServerConfig holds configuration for the mock server.
type ServerConfig struct {
	// Balances maps asset to free amount
	Balances map[string]string
	// Prices maps symbol to last price
	Prices map[string]string
	// Symbols overrides the filters of listed symbols; prices without an entry get defaults
	Symbols []SymbolInfo
}

// MockBinanceServer serves the subset of /api/v3 used by the exchange adapter.
type MockBinanceServer struct {
	mu sync.RWMutex

	httpServer *http.Server
	listener   net.Listener

	balances   map[string]decimal.Decimal
	prices     map[string]decimal.Decimal
	symbols    map[string]SymbolInfo
	orders     map[int64]*Order
	orderIDSeq int64
}

// NewMockBinanceServer creates a server; call Start to listen.
func NewMockBinanceServer(config ServerConfig) *MockBinanceServer {
	server := &MockBinanceServer{
		balances:   make(map[string]decimal.Decimal),
		prices:     make(map[string]decimal.Decimal),
		symbols:    make(map[string]SymbolInfo),
		orders:     make(map[int64]*Order),
		orderIDSeq: 1000,
	}

	for asset, amount := range config.Balances {
		server.balances[asset] = decimal.RequireFromString(amount)
	}

	for symbol, price := range config.Prices {
		server.prices[symbol] = decimal.RequireFromString(price)
		server.symbols[symbol] = defaultSymbolInfo(symbol)
	}

	for _, info := range config.Symbols {
		server.symbols[info.Symbol] = info
	}

	return server
}

func defaultSymbolInfo(symbol string) SymbolInfo {
	info := SymbolInfo{
		Symbol:      symbol,
		TickSize:    "0.01",
		StepSize:    "0.00001",
		MinQty:      "0.00001",
		MinNotional: "5",
	}

	for _, quote := range []string{"USDT", "BUSD", "BTC", "ETH", "BNB"} {
		if strings.HasSuffix(symbol, quote) {
			info.BaseAsset = strings.TrimSuffix(symbol, quote)
			info.QuoteAsset = quote

			return info
		}
	}

	info.BaseAsset = symbol[:len(symbol)/2]
	info.QuoteAsset = symbol[len(symbol)/2:]

	return info
}

// Start starts the server. An empty address picks a random port.
func (s *MockBinanceServer) Start(address string) error {
	if address == "" {
		address = "127.0.0.1:0"
	}

	listener, err := net.Listen("tcp", address)
	if err != nil {
		return fmt.Errorf("failed to create listener: %w", err)
	}
	s.listener = listener

	s.httpServer = &http.Server{
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := s.httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
			fmt.Printf("HTTP server error: %v\n", err)
		}
	}()

	return nil
}

// Router returns the REST routes, for use with httptest.
func (s *MockBinanceServer) Router() http.Handler {
	router := mux.NewRouter()

	router.HandleFunc("/api/v3/ticker/price", s.handleTickerPrice).Methods(http.MethodGet)
	router.HandleFunc("/api/v3/account", s.handleAccount).Methods(http.MethodGet)
	router.HandleFunc("/api/v3/exchangeInfo", s.handleExchangeInfo).Methods(http.MethodGet)
	router.HandleFunc("/api/v3/order", s.handleCreateOrder).Methods(http.MethodPost)
	router.HandleFunc("/api/v3/order", s.handleCancelOrder).Methods(http.MethodDelete)

	return router
}

// Stop shuts the server down.
func (s *MockBinanceServer) Stop() error {
	if s.httpServer == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return s.httpServer.Shutdown(ctx)
}

// BaseURL returns the REST base URL of a started server.
func (s *MockBinanceServer) BaseURL() string {
	if s.listener == nil {
		return ""
	}

	return "http://" + s.listener.Addr().String()
}

// SetPrice sets the last price of a symbol.
func (s *MockBinanceServer) SetPrice(symbol string, price string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.prices[symbol] = decimal.RequireFromString(price)
	if _, ok := s.symbols[symbol]; !ok {
		s.symbols[symbol] = defaultSymbolInfo(symbol)
	}
}

// Balance returns the free amount of an asset.
func (s *MockBinanceServer) Balance(asset string) decimal.Decimal {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.balances[asset]
}

// Order returns a copy of a stored order.
func (s *MockBinanceServer) Order(orderID int64) (Order, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	order, ok := s.orders[orderID]
	if !ok {
		return Order{}, false
	}

	return *order, true
}

// Orders returns copies of all stored orders ordered by id.
func (s *MockBinanceServer) Orders() []Order {
	s.mu.RLock()
	defer s.mu.RUnlock()

	orders := make([]Order, 0, len(s.orders))
	for id := int64(1001); id <= s.orderIDSeq; id++ {
		if order, ok := s.orders[id]; ok {
			orders = append(orders, *order)
		}
	}

	return orders
}

// handleTickerPrice handles GET /api/v3/ticker/price
func (s *MockBinanceServer) handleTickerPrice(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	type priceResponse struct {
		Symbol string `json:"symbol"`
		Price  string `json:"price"`
	}

	response := []priceResponse{}

	if symbol := r.URL.Query().Get("symbol"); symbol != "" {
		price, ok := s.prices[symbol]
		if !ok {
			writeError(w, CodeInvalidSymbol, "Invalid symbol.")
			return
		}

		response = append(response, priceResponse{Symbol: symbol, Price: price.StringFixed(8)})
	} else {
		for symbol, price := range s.prices {
			response = append(response, priceResponse{Symbol: symbol, Price: price.StringFixed(8)})
		}
	}

	writeJSON(w, response)
}

// handleAccount handles GET /api/v3/account
func (s *MockBinanceServer) handleAccount(w http.ResponseWriter, _ *http.Request) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	balances := make([]map[string]string, 0, len(s.balances))
	for asset, free := range s.balances {
		balances = append(balances, map[string]string{
			"asset":  asset,
			"free":   free.StringFixed(8),
			"locked": s.lockedAmount(asset).StringFixed(8),
		})
	}

	writeJSON(w, map[string]any{
		"makerCommission": 10,
		"takerCommission": 10,
		"canTrade":        true,
		"canWithdraw":     true,
		"canDeposit":      true,
		"updateTime":      time.Now().UnixMilli(),
		"accountType":     "SPOT",
		"balances":        balances,
	})
}

// lockedAmount sums the amount held by open orders. Callers hold s.mu.
func (s *MockBinanceServer) lockedAmount(asset string) decimal.Decimal {
	locked := decimal.Zero

	for _, order := range s.orders {
		if order.Status != OrderStatusNew {
			continue
		}

		info := s.symbols[order.Symbol]
		if order.Side == "BUY" && info.QuoteAsset == asset {
			locked = locked.Add(order.Quantity.Mul(order.Price))
		}

		if order.Side == "SELL" && info.BaseAsset == asset {
			locked = locked.Add(order.Quantity)
		}
	}

	return locked
}

// handleExchangeInfo handles GET /api/v3/exchangeInfo
func (s *MockBinanceServer) handleExchangeInfo(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	symbol := r.URL.Query().Get("symbol")
	if symbols := r.URL.Query().Get("symbols"); symbol == "" && symbols != "" {
		var list []string
		if err := json.Unmarshal([]byte(symbols), &list); err == nil && len(list) > 0 {
			symbol = list[0]
		}
	}

	info, ok := s.symbols[symbol]
	if !ok {
		writeError(w, CodeInvalidSymbol, "Invalid symbol.")
		return
	}

	writeJSON(w, map[string]any{
		"timezone":   "UTC",
		"serverTime": time.Now().UnixMilli(),
		"symbols": []map[string]any{
			{
				"symbol":     info.Symbol,
				"status":     "TRADING",
				"baseAsset":  info.BaseAsset,
				"quoteAsset": info.QuoteAsset,
				"orderTypes": []string{"LIMIT", "MARKET", "STOP_LOSS_LIMIT"},
				"filters": []map[string]any{
					{"filterType": "PRICE_FILTER", "minPrice": info.TickSize, "maxPrice": "1000000.00000000", "tickSize": info.TickSize},
					{"filterType": "LOT_SIZE", "minQty": info.MinQty, "maxQty": "9000.00000000", "stepSize": info.StepSize},
					{"filterType": "NOTIONAL", "minNotional": info.MinNotional, "applyMinToMarket": true, "maxNotional": "9000000.00000000", "applyMaxToMarket": false, "avgPriceMins": 5},
				},
			},
		},
	})
}

// handleCreateOrder handles POST /api/v3/order
func (s *MockBinanceServer) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	params, err := requestParams(r)
	if err != nil {
		writeError(w, CodeMissingParameter, err.Error())
		return
	}

	order := &Order{
		ClientOrderID: params.Get("newClientOrderId"),
		Symbol:        params.Get("symbol"),
		Side:          params.Get("side"),
		Type:          params.Get("type"),
		TimeInForce:   params.Get("timeInForce"),
		Status:        OrderStatusNew,
		CreatedAt:     time.Now(),
	}

	if order.Symbol == "" || order.Side == "" || order.Type == "" {
		writeError(w, CodeMissingParameter, "Mandatory parameter was not sent.")
		return
	}

	if order.Quantity, err = decimal.NewFromString(params.Get("quantity")); err != nil {
		writeError(w, CodeMissingParameter, "Invalid quantity.")
		return
	}

	if price := params.Get("price"); price != "" {
		order.Price, _ = decimal.NewFromString(price)
	}

	if stop := params.Get("stopPrice"); stop != "" {
		order.StopPrice, _ = decimal.NewFromString(stop)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	last, ok := s.prices[order.Symbol]
	if !ok {
		writeError(w, CodeInvalidSymbol, "Invalid symbol.")
		return
	}

	switch order.Type {
	case "STOP_LOSS_LIMIT":
		if crossed(order.Side, order.StopPrice, last) {
			writeError(w, CodeNewOrderRejected, "Order would immediately trigger.")
			return
		}
	case "MARKET":
		if err := s.fill(order, last); err != nil {
			writeError(w, CodeNewOrderRejected, err.Error())
			return
		}
	}

	s.orderIDSeq++
	order.OrderID = s.orderIDSeq
	if order.ClientOrderID == "" {
		order.ClientOrderID = uuid.NewString()
	}
	s.orders[order.OrderID] = order

	writeJSON(w, orderResponse(order))
}

var errInsufficientBalance = errors.New("Account has insufficient balance for requested action.")

// crossed reports whether the market already passed a stop price.
func crossed(side string, stop decimal.Decimal, last decimal.Decimal) bool {
	if side == "BUY" {
		return last.GreaterThanOrEqual(stop)
	}

	return last.LessThanOrEqual(stop)
}

// fill executes a market order at the last price. Callers hold s.mu.
func (s *MockBinanceServer) fill(order *Order, last decimal.Decimal) error {
	info := s.symbols[order.Symbol]
	cost := order.Quantity.Mul(last)

	if order.Side == "BUY" {
		if s.balances[info.QuoteAsset].LessThan(cost) {
			return errInsufficientBalance
		}

		s.balances[info.QuoteAsset] = s.balances[info.QuoteAsset].Sub(cost)
		s.balances[info.BaseAsset] = s.balances[info.BaseAsset].Add(order.Quantity)
	} else {
		if s.balances[info.BaseAsset].LessThan(order.Quantity) {
			return errInsufficientBalance
		}

		s.balances[info.BaseAsset] = s.balances[info.BaseAsset].Sub(order.Quantity)
		s.balances[info.QuoteAsset] = s.balances[info.QuoteAsset].Add(cost)
	}

	order.Price = last
	order.Status = OrderStatusFilled

	return nil
}

// handleCancelOrder handles DELETE /api/v3/order
func (s *MockBinanceServer) handleCancelOrder(w http.ResponseWriter, r *http.Request) {
	params, err := requestParams(r)
	if err != nil {
		writeError(w, CodeMissingParameter, err.Error())
		return
	}

	orderID, err := strconv.ParseInt(params.Get("orderId"), 10, 64)
	if err != nil {
		writeError(w, CodeMissingParameter, "Mandatory parameter 'orderId' was not sent.")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	order, ok := s.orders[orderID]
	if !ok || order.Symbol != params.Get("symbol") || order.Status != OrderStatusNew {
		writeError(w, CodeCancelRejected, "Unknown order sent.")
		return
	}

	order.Status = OrderStatusCanceled

	response := orderResponse(order)
	response["origClientOrderId"] = order.ClientOrderID
	writeJSON(w, response)
}

func orderResponse(order *Order) map[string]any {
	executed := decimal.Zero
	if order.Status == OrderStatusFilled {
		executed = order.Quantity
	}

	return map[string]any{
		"symbol":              order.Symbol,
		"orderId":             order.OrderID,
		"orderListId":         -1,
		"clientOrderId":       order.ClientOrderID,
		"transactTime":        order.CreatedAt.UnixMilli(),
		"price":               order.Price.StringFixed(8),
		"origQty":             order.Quantity.StringFixed(8),
		"executedQty":         executed.StringFixed(8),
		"cummulativeQuoteQty": executed.Mul(order.Price).StringFixed(8),
		"status":              string(order.Status),
		"timeInForce":         order.TimeInForce,
		"type":                order.Type,
		"side":                order.Side,
	}
}

// requestParams merges the query string with a url-encoded body.
// net/http only parses bodies of POST, PUT and PATCH requests.
func requestParams(r *http.Request) (url.Values, error) {
	params := r.URL.Query()

	body, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, err
	}

	form, err := url.ParseQuery(string(body))
	if err != nil {
		return nil, err
	}

	for key, values := range form {
		for _, v := range values {
			params.Add(key, v)
		}
	}

	return params, nil
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadRequest)
	_ = json.NewEncoder(w).Encode(map[string]any{"code": code, "msg": msg})
}
