package writers

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/marcboeker/go-duckdb"
	"github.com/rxtech-lab/argo-smartorder/internal/types"
	"github.com/rxtech-lab/argo-smartorder/pkg/errors"
)

// TargetRecord is the journal row of one target.
type TargetRecord struct {
	SessionID   string
	TradeID     string
	Symbol      string
	Leg         types.Leg
	TargetIndex int
	Side        types.Side
	Status      types.TargetStatus
	OrderID     string
	Price       string
	Size        string
	UpdatedAt   time.Time
}

// NewTargetRecord captures the current state of a target.
func NewTargetRecord(sessionID string, trade *types.Trade, leg types.Leg, index int, target *types.Target, at time.Time) TargetRecord {
	orderID := ""
	if target.HasOrder() {
		orderID = target.OrderID().Unwrap()
	}

	return TargetRecord{
		SessionID:   sessionID,
		TradeID:     trade.ID,
		Symbol:      trade.Symbol,
		Leg:         leg,
		TargetIndex: index,
		Side:        trade.LegSide(leg),
		Status:      target.Status(),
		OrderID:     orderID,
		Price:       target.Price().String(),
		Size:        target.Size().String(),
		UpdatedAt:   at,
	}
}

// TargetsWriter journals target transitions in DuckDB and mirrors the table to a parquet file.
// One row is kept per target; later transitions replace earlier ones.
type TargetsWriter struct {
	db         *sql.DB
	outputPath string
	mu         sync.Mutex
}

// NewTargetsWriter creates a new TargetsWriter.
// outputPath is the full path to the parquet file.
func NewTargetsWriter(outputPath string) *TargetsWriter {
	return &TargetsWriter{
		db:         nil,
		outputPath: outputPath,
		mu:         sync.Mutex{},
	}
}

// Initialize opens an in-memory DuckDB and loads a previous journal at the output path, if any.
func (w *TargetsWriter) Initialize() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(w.outputPath), 0755); err != nil {
		return errors.Wrap(errors.ErrCodeWriterFailed, "failed to create data directory", err)
	}

	db, err := sql.Open("duckdb", ":memory:")
	if err != nil {
		return errors.Wrap(errors.ErrCodeWriterFailed, "failed to open DuckDB connection", err)
	}

	w.db = db

	_, err = w.db.Exec(`
		CREATE TABLE IF NOT EXISTS targets (
			session_id TEXT,
			trade_id TEXT,
			symbol TEXT,
			leg TEXT,
			target_index INTEGER,
			side TEXT,
			status TEXT,
			order_id TEXT,
			price TEXT,
			size TEXT,
			updated_at TIMESTAMP,
			PRIMARY KEY (trade_id, leg, target_index)
		)
	`)
	if err != nil {
		w.db.Close()
		w.db = nil

		return errors.Wrap(errors.ErrCodeWriterFailed, "failed to create targets table", err)
	}

	if _, err := os.Stat(w.outputPath); err == nil {
		// an unreadable journal is replaced on the next export
		_, _ = w.db.Exec(fmt.Sprintf(`
			INSERT INTO targets
			SELECT * FROM read_parquet('%s')
			ON CONFLICT DO NOTHING
		`, w.outputPath))
	}

	return nil
}

// Write upserts a target row and exports the journal to parquet.
func (w *TargetsWriter) Write(record TargetRecord) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.db == nil {
		return errors.New(errors.ErrCodeWriterFailed, "writer not initialized")
	}

	_, err := w.db.Exec(`
		INSERT INTO targets (session_id, trade_id, symbol, leg, target_index, side, status,
			order_id, price, size, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (trade_id, leg, target_index) DO UPDATE SET
			session_id = excluded.session_id,
			side = excluded.side,
			status = excluded.status,
			order_id = excluded.order_id,
			price = excluded.price,
			size = excluded.size,
			updated_at = excluded.updated_at
	`, record.SessionID, record.TradeID, record.Symbol, string(record.Leg), record.TargetIndex,
		string(record.Side), string(record.Status), record.OrderID, record.Price, record.Size,
		record.UpdatedAt)
	if err != nil {
		return errors.Wrap(errors.ErrCodeWriterFailed, "failed to upsert target", err)
	}

	return w.exportToParquet()
}

// Flush forces an export to parquet.
func (w *TargetsWriter) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.db == nil {
		return errors.New(errors.ErrCodeWriterFailed, "writer not initialized")
	}

	return w.exportToParquet()
}

// GetOutputPath returns the parquet file path.
func (w *TargetsWriter) GetOutputPath() string {
	return w.outputPath
}

// Close releases database resources.
func (w *TargetsWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.db == nil {
		return nil
	}

	err := w.db.Close()
	w.db = nil

	if err != nil {
		return errors.Wrap(errors.ErrCodeWriterFailed, "failed to close database", err)
	}

	return nil
}

// GetStatus returns the journaled status of a target.
func (w *TargetsWriter) GetStatus(tradeID string, leg types.Leg, index int) (types.TargetStatus, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.db == nil {
		return "", errors.New(errors.ErrCodeWriterFailed, "writer not initialized")
	}

	var status string

	err := w.db.QueryRow(
		"SELECT status FROM targets WHERE trade_id = ? AND leg = ? AND target_index = ?",
		tradeID, string(leg), index,
	).Scan(&status)
	if err == sql.ErrNoRows {
		return "", errors.Newf(errors.ErrCodeDataNotFound, "no journal row for %s/%s/%d", tradeID, leg, index)
	}

	if err != nil {
		return "", errors.Wrap(errors.ErrCodeWriterFailed, "failed to query target", err)
	}

	return types.TargetStatus(status), nil
}

// GetTargetCount returns the number of journaled targets.
func (w *TargetsWriter) GetTargetCount() (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.db == nil {
		return 0, errors.New(errors.ErrCodeWriterFailed, "writer not initialized")
	}

	var count int
	if err := w.db.QueryRow("SELECT COUNT(*) FROM targets").Scan(&count); err != nil {
		return 0, errors.Wrap(errors.ErrCodeWriterFailed, "failed to count targets", err)
	}

	return count, nil
}

//nolint:funcorder // helper method used by Write and Flush
func (w *TargetsWriter) exportToParquet() error {
	_, err := w.db.Exec(fmt.Sprintf(`
		COPY (SELECT * FROM targets ORDER BY trade_id, leg, target_index)
		TO '%s' (FORMAT PARQUET)
	`, w.outputPath))
	if err != nil {
		return errors.Wrap(errors.ErrCodeWriterFailed, "failed to export to parquet", err)
	}

	return nil
}
