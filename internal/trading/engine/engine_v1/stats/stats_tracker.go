package stats

import (
	"os"
	"sort"
	"sync"
	"time"

	"github.com/rxtech-lab/argo-smartorder/internal/logger"
	"github.com/rxtech-lab/argo-smartorder/internal/types"
	"github.com/rxtech-lab/argo-smartorder/pkg/errors"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// RunStats is the summary of one order handler run, written to stats.yaml.
type RunStats struct {
	SessionID           string            `yaml:"session_id"`
	RunID               string            `yaml:"run_id"`
	SessionStart        time.Time         `yaml:"session_start"`
	LastUpdated         time.Time         `yaml:"last_updated"`
	Symbols             []string          `yaml:"symbols"`
	TicksReceived       int               `yaml:"ticks_received"`
	Dispatches          int               `yaml:"dispatches"`
	OrdersPlaced        int               `yaml:"orders_placed"`
	TargetsFilled       int               `yaml:"targets_filled"`
	TargetsFailed       int               `yaml:"targets_failed"`
	Escalations         int               `yaml:"escalations"`
	Errors              int               `yaml:"errors"`
	CompletedStrategies []string          `yaml:"completed_strategies"`
	LastPrices          map[string]string `yaml:"last_prices"`
	TargetsFilePath     string            `yaml:"targets_file_path,omitempty"`
}

// StatsTracker counts what happened during a run.
type StatsTracker struct {
	stats           RunStats
	statsOutputPath string
	now             func() time.Time

	mu     sync.Mutex
	logger *logger.Logger
}

// NewStatsTracker creates a new StatsTracker instance.
func NewStatsTracker(log *logger.Logger) *StatsTracker {
	return &StatsTracker{
		stats: RunStats{
			LastPrices:          make(map[string]string),
			CompletedStrategies: make([]string, 0),
		},
		now:    time.Now,
		mu:     sync.Mutex{},
		logger: log,
	}
}

// WithClock replaces the wall clock used for timestamps.
func (s *StatsTracker) WithClock(now func() time.Time) *StatsTracker {
	s.now = now

	return s
}

// Initialize sets up the tracker with session information.
func (s *StatsTracker) Initialize(symbols []string, sessionID string, runID string, sessionStart time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sorted := append([]string(nil), symbols...)
	sort.Strings(sorted)

	s.stats.Symbols = sorted
	s.stats.SessionID = sessionID
	s.stats.RunID = runID
	s.stats.SessionStart = sessionStart

	s.logger.Debug("Stats tracker initialized",
		zap.String("run_id", runID),
		zap.Strings("symbols", sorted),
	)
}

// SetFilePaths sets where stats.yaml is written and which journal it points to.
func (s *StatsTracker) SetFilePaths(targetsPath string, statsPath string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stats.TargetsFilePath = targetsPath
	s.statsOutputPath = statsPath
}

func (s *StatsTracker) RecordTicks(count int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stats.TicksReceived += count
}

// RecordDispatch remembers the last aggregated price of a symbol.
func (s *StatsTracker) RecordDispatch(symbol string, price string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stats.Dispatches++
	s.stats.LastPrices[symbol] = price
}

// RecordTarget counts a target transition.
func (s *StatsTracker) RecordTarget(status types.TargetStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case status == types.TargetStatusActive:
		s.stats.OrdersPlaced++
	case status == types.TargetStatusFilled:
		s.stats.TargetsFilled++
	case status.IsTerminal():
		s.stats.TargetsFailed++
	}
}

func (s *StatsTracker) RecordEscalation() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stats.Escalations++
}

func (s *StatsTracker) RecordError() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stats.Errors++
}

// RecordCompleted adds a strategy id to the completed list.
func (s *StatsTracker) RecordCompleted(strategyID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stats.CompletedStrategies = append(s.stats.CompletedStrategies, strategyID)

	s.logger.Debug("Strategy completed",
		zap.String("strategy_id", strategyID),
		zap.Int("completed", len(s.stats.CompletedStrategies)),
	)
}

// GetStats returns a copy of the current statistics.
func (s *StatsTracker) GetStats() RunStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.snapshot()
}

//nolint:funcorder // helper method used by GetStats and WriteStatsYAML
func (s *StatsTracker) snapshot() RunStats {
	out := s.stats
	out.LastUpdated = s.now()
	out.Symbols = append([]string(nil), s.stats.Symbols...)
	out.CompletedStrategies = append([]string{}, s.stats.CompletedStrategies...)

	out.LastPrices = make(map[string]string, len(s.stats.LastPrices))
	for symbol, price := range s.stats.LastPrices {
		out.LastPrices[symbol] = price
	}

	return out
}

// WriteStatsYAML writes the current statistics to the stats file. It is a no-op without a path.
func (s *StatsTracker) WriteStatsYAML() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.statsOutputPath == "" {
		return nil
	}

	data, err := yaml.Marshal(s.snapshot())
	if err != nil {
		return errors.Wrap(errors.ErrCodeWriterFailed, "failed to marshal run stats to YAML", err)
	}

	if err := os.WriteFile(s.statsOutputPath, data, 0644); err != nil {
		return errors.Wrap(errors.ErrCodeWriterFailed, "failed to write run stats", err)
	}

	return nil
}

// ReadStatsYAML reads a stats file written by WriteStatsYAML.
func ReadStatsYAML(path string) (RunStats, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return RunStats{}, errors.Wrap(errors.ErrCodeDataNotFound, "failed to read run stats file", err)
	}

	var stats RunStats
	if err := yaml.Unmarshal(data, &stats); err != nil {
		return RunStats{}, errors.Wrap(errors.ErrCodeWriterFailed, "failed to parse run stats file", err)
	}

	return stats, nil
}

// GetStatsOutputPath returns the stats output path.
func (s *StatsTracker) GetStatsOutputPath() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.statsOutputPath
}
