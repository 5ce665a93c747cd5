package engine_v1

import (
	"sort"

	"github.com/rxtech-lab/argo-smartorder/internal/types"
	"github.com/shopspring/decimal"
)

// SymbolPrice is one aggregated price ready to be dispatched.
type SymbolPrice struct {
	Symbol string
	Price  decimal.Decimal
}

// PriceBuffer collects the trade prices received between two dispatches, per symbol.
// It has no persistence: everything comes from the live stream and is dropped on Drain.
//
// PriceBuffer is owned by the dispatch loop and is not safe for concurrent use.
type PriceBuffer struct {
	prices map[string][]decimal.Decimal
}

// NewPriceBuffer creates an empty buffer.
func NewPriceBuffer() *PriceBuffer {
	return &PriceBuffer{
		prices: make(map[string][]decimal.Decimal),
	}
}

// Add appends the price of a tick to its symbol.
func (b *PriceBuffer) Add(tick types.Tick) {
	b.prices[tick.Symbol] = append(b.prices[tick.Symbol], tick.Price)
}

// Len returns the number of buffered prices of a symbol.
func (b *PriceBuffer) Len(symbol string) int {
	return len(b.prices[symbol])
}

// TotalSize returns the number of buffered prices across all symbols.
func (b *PriceBuffer) TotalSize() int {
	total := 0
	for _, prices := range b.prices {
		total += len(prices)
	}

	return total
}

// IsEmpty reports whether no price is buffered.
func (b *PriceBuffer) IsEmpty() bool {
	return len(b.prices) == 0
}

// Drain returns the arithmetic mean of every buffered symbol, ordered by symbol,
// and clears the buffer.
func (b *PriceBuffer) Drain() []SymbolPrice {
	symbols := make([]string, 0, len(b.prices))
	for symbol := range b.prices {
		symbols = append(symbols, symbol)
	}

	sort.Strings(symbols)

	means := make([]SymbolPrice, 0, len(symbols))
	for _, symbol := range symbols {
		prices := b.prices[symbol]
		if len(prices) == 0 {
			continue
		}

		means = append(means, SymbolPrice{
			Symbol: symbol,
			Price:  decimal.Avg(prices[0], prices[1:]...),
		})
	}

	b.Clear()

	return means
}

// Clear drops every buffered price.
func (b *PriceBuffer) Clear() {
	b.prices = make(map[string][]decimal.Decimal)
}
