package engine_v1

import (
	"testing"
	"time"

	"github.com/rxtech-lab/argo-smartorder/internal/types"
	"github.com/rxtech-lab/argo-smartorder/mocks"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
)

type PriceBufferTestSuite struct {
	suite.Suite
}

func TestPriceBufferSuite(t *testing.T) {
	suite.Run(t, new(PriceBufferTestSuite))
}

func tick(symbol string, price string) types.Tick {
	return types.Tick{Symbol: symbol, Price: decimal.RequireFromString(price), Time: time.Now()}
}

func (suite *PriceBufferTestSuite) TestDrainMeansPerSymbol() {
	b := NewPriceBuffer()
	suite.True(b.IsEmpty())

	b.Add(tick("ETHUSDT", "2000"))
	b.Add(tick("BTCUSDT", "100"))
	b.Add(tick("BTCUSDT", "102"))
	b.Add(tick("BTCUSDT", "104.5"))

	suite.Equal(3, b.Len("BTCUSDT"))
	suite.Equal(4, b.TotalSize())

	means := b.Drain()
	suite.Require().Len(means, 2)
	suite.Equal("BTCUSDT", means[0].Symbol)
	suite.True(means[0].Price.Equal(decimal.RequireFromString("102.1666666666666667")), means[0].Price.String())
	suite.Equal("ETHUSDT", means[1].Symbol)
	suite.True(means[1].Price.Equal(decimal.NewFromInt(2000)))

	suite.True(b.IsEmpty())
	suite.Empty(b.Drain())
}

func (suite *PriceBufferTestSuite) TestGeneratedTicks() {
	cfg := mocks.DefaultTickConfig()
	cfg.Count = 50

	ticks := mocks.NewTickGenerator(7).GenerateMultiSymbol([]string{"BTCUSDT", "ETHUSDT"}, cfg)

	b := NewPriceBuffer()
	sums := map[string]decimal.Decimal{}
	counts := map[string]int64{}

	for _, t := range ticks {
		b.Add(t)
		sums[t.Symbol] = sums[t.Symbol].Add(t.Price)
		counts[t.Symbol]++
	}

	for _, mean := range b.Drain() {
		expected := sums[mean.Symbol].Div(decimal.NewFromInt(counts[mean.Symbol]))
		suite.True(mean.Price.Sub(expected).Abs().LessThan(decimal.RequireFromString("0.000001")), mean.Symbol)
	}
}
