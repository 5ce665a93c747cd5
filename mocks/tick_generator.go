package mocks

import (
	"math"
	"math/rand"
	"time"

	"github.com/rxtech-lab/argo-smartorder/internal/types"
	"github.com/shopspring/decimal"
)

// TickGenerator generates trade prints following a random walk.
type TickGenerator struct {
	rng *rand.Rand
}

// NewTickGenerator creates a new TickGenerator with the given seed.
// Use a fixed seed for reproducible results in tests.
func NewTickGenerator(seed int64) *TickGenerator {
	return &TickGenerator{
		rng: rand.New(rand.NewSource(seed)),
	}
}

// TickConfig configures how ticks are generated.
type TickConfig struct {
	Symbol string
	// StartTime is the time of the first tick
	StartTime time.Time
	// Interval is the duration between ticks
	Interval time.Duration
	Count    int
	// InitialPrice is the starting price
	InitialPrice float64
	// Volatility is the standard deviation of the per-tick return (0.001 = 0.1%)
	Volatility float64
	// Decimals is the number of decimal places prices are rounded to
	Decimals int32
}

// DefaultTickConfig returns a sensible default configuration.
func DefaultTickConfig() TickConfig {
	return TickConfig{
		Symbol:       "BTCUSDT",
		StartTime:    time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Interval:     10 * time.Millisecond,
		Count:        1000,
		InitialPrice: 100.0,
		Volatility:   0.001,
		Decimals:     2,
	}
}

// Generate creates ticks using geometric Brownian motion without drift.
func (g *TickGenerator) Generate(config TickConfig) []types.Tick {
	ticks := make([]types.Tick, config.Count)
	price := config.InitialPrice
	current := config.StartTime

	for i := 0; i < config.Count; i++ {
		// Box-Muller transform for a standard normal sample
		u1 := 1 - g.rng.Float64()
		u2 := g.rng.Float64()
		z := math.Sqrt(-2*math.Log(u1)) * math.Cos(2*math.Pi*u2)

		next := price * (1 + config.Volatility*z)
		if next <= 0 {
			next = price * 0.99
		}

		ticks[i] = types.Tick{
			Symbol: config.Symbol,
			Price:  decimal.NewFromFloat(next).Round(config.Decimals),
			Time:   current,
		}

		price = next
		current = current.Add(config.Interval)
	}

	return ticks
}

// GenerateMultiSymbol generates interleaved ticks for several symbols.
func (g *TickGenerator) GenerateMultiSymbol(symbols []string, baseConfig TickConfig) []types.Tick {
	perSymbol := make([][]types.Tick, 0, len(symbols))

	for _, symbol := range symbols {
		config := baseConfig
		config.Symbol = symbol
		config.InitialPrice = baseConfig.InitialPrice * (0.8 + g.rng.Float64()*0.4)
		perSymbol = append(perSymbol, g.Generate(config))
	}

	all := make([]types.Tick, 0, len(symbols)*baseConfig.Count)

	for i := 0; i < baseConfig.Count; i++ {
		for _, ticks := range perSymbol {
			all = append(all, ticks[i])
		}
	}

	return all
}
