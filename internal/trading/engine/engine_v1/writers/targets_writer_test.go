package writers

import (
	"database/sql"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/rxtech-lab/argo-smartorder/internal/types"
	"github.com/rxtech-lab/argo-smartorder/pkg/errors"
	"github.com/stretchr/testify/suite"
)

type TargetsWriterTestSuite struct {
	suite.Suite
	tempDir    string
	outputPath string
}

func (s *TargetsWriterTestSuite) SetupTest() {
	s.tempDir = s.T().TempDir()
	s.outputPath = filepath.Join(s.tempDir, "run_1", "targets.parquet")
}

func TestTargetsWriterTestSuite(t *testing.T) {
	suite.Run(t, new(TargetsWriterTestSuite))
}

func newTrade() *types.Trade {
	return &types.Trade{
		ID:     "trade-1",
		Symbol: "BTCUSDT",
		Asset:  "USDT",
		Side:   types.SideSell,
		Entry: &types.TradeSection{
			StopLossThreshold: types.MustParseValue("5"),
			PullbackThreshold: types.MustParseValue("1"),
			Targets:           []*types.Target{types.NewTarget(types.MustParseValue("100"), types.MustParseValue("0.5"))},
		},
		Exit: &types.TradeSection{
			StopLossThreshold: types.MustParseValue("5"),
			PullbackThreshold: types.MustParseValue("1"),
			Targets:           []*types.Target{types.NewTarget(types.MustParseValue("2%"), types.MustParseValue("100%"))},
		},
	}
}

func (s *TargetsWriterTestSuite) countParquetRows() int {
	db, err := sql.Open("duckdb", ":memory:")
	s.Require().NoError(err)
	defer db.Close()

	var count int
	s.Require().NoError(db.QueryRow(fmt.Sprintf("SELECT COUNT(*) FROM read_parquet('%s')", s.outputPath)).Scan(&count))

	return count
}

func (s *TargetsWriterTestSuite) TestNotInitialized() {
	w := NewTargetsWriter(s.outputPath)

	err := w.Write(TargetRecord{TradeID: "t"})
	s.True(errors.HasCode(err, errors.ErrCodeWriterFailed))
	s.Contains(err.Error(), "writer not initialized")

	s.Error(w.Flush())

	_, err = w.GetTargetCount()
	s.Error(err)

	// Close without Initialize is a no-op
	s.NoError(w.Close())
}

func (s *TargetsWriterTestSuite) TestGetOutputPath() {
	s.Equal(s.outputPath, NewTargetsWriter(s.outputPath).GetOutputPath())
}

func (s *TargetsWriterTestSuite) TestWriteUpsertsPerTarget() {
	w := NewTargetsWriter(s.outputPath)
	s.Require().NoError(w.Initialize())
	defer w.Close()

	trade := newTrade()
	target := trade.Entry.Targets[0]
	at := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

	s.Require().NoError(w.Write(NewTargetRecord("session", trade, types.LegEntry, 0, target, at)))

	s.Require().NoError(target.Activate("42"))
	s.Require().NoError(w.Write(NewTargetRecord("session", trade, types.LegEntry, 0, target, at.Add(time.Second))))

	s.Require().NoError(w.Write(NewTargetRecord("session", trade, types.LegExit, 0, trade.Exit.Targets[0], at)))

	count, err := w.GetTargetCount()
	s.Require().NoError(err)
	s.Equal(2, count)

	status, err := w.GetStatus("trade-1", types.LegEntry, 0)
	s.Require().NoError(err)
	s.Equal(types.TargetStatusActive, status)

	s.FileExists(s.outputPath)
	s.Equal(2, s.countParquetRows())
}

func (s *TargetsWriterTestSuite) TestGetStatusMissing() {
	w := NewTargetsWriter(s.outputPath)
	s.Require().NoError(w.Initialize())
	defer w.Close()

	_, err := w.GetStatus("missing", types.LegExit, 0)
	s.True(errors.HasCode(err, errors.ErrCodeDataNotFound))
}

func (s *TargetsWriterTestSuite) TestReloadsExistingJournal() {
	trade := newTrade()

	first := NewTargetsWriter(s.outputPath)
	s.Require().NoError(first.Initialize())
	s.Require().NoError(first.Write(NewTargetRecord("a", trade, types.LegEntry, 0, trade.Entry.Targets[0], time.Now())))
	s.Require().NoError(first.Close())

	second := NewTargetsWriter(s.outputPath)
	s.Require().NoError(second.Initialize())
	defer second.Close()

	count, err := second.GetTargetCount()
	s.Require().NoError(err)
	s.Equal(1, count)

	s.Require().NoError(second.Write(NewTargetRecord("b", trade, types.LegExit, 0, trade.Exit.Targets[0], time.Now())))
	s.NoError(second.Flush())
	s.Equal(2, s.countParquetRows())
}

func (s *TargetsWriterTestSuite) TestNewTargetRecord() {
	trade := newTrade()
	target := trade.Entry.Targets[0]
	s.Require().NoError(target.Activate("7"))

	record := NewTargetRecord("session", trade, types.LegEntry, 0, target, time.Time{})
	s.Equal("trade-1", record.TradeID)
	s.Equal("BTCUSDT", record.Symbol)
	s.Equal(types.SideBuy, record.Side)
	s.Equal(types.TargetStatusActive, record.Status)
	s.Equal("7", record.OrderID)
	s.Equal("100.00000000", record.Price)

	exit := NewTargetRecord("session", trade, types.LegExit, 0, trade.Exit.Targets[0], time.Time{})
	s.Equal(types.SideSell, exit.Side)
	s.Empty(exit.OrderID)
	s.Equal("2.00%", exit.Price)
}
