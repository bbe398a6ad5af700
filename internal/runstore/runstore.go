// Package runstore persists backtest run outputs (equity curve, trade log,
// summary metrics) to a local SQLite database, so a run can be inspected or
// compared after the process exits. It never caches bars or features —
// only finished run results — grounded on the teacher's internal/db
// package for connection setup, migration, and insert style.
package runstore

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/ncruces/go-strftime"
	_ "modernc.org/sqlite"

	"github.com/quantbench/quantbench/internal/backtest"
	"github.com/quantbench/quantbench/internal/logger"
)

// Store wraps a SQLite database connection holding backtest run results.
type Store struct {
	sql *sql.DB
}

func defaultPath() string {
	if wd, err := os.Getwd(); err == nil {
		return filepath.Join(wd, "quantbench.db")
	}
	exe, _ := os.Executable()
	return filepath.Join(filepath.Dir(exe), "quantbench.db")
}

// Open opens (or creates) the run store at the default path and runs
// migrations.
func Open() (*Store, error) {
	return OpenAt(defaultPath())
}

// OpenAt opens (or creates) the run store at an explicit path.
func OpenAt(path string) (*Store, error) {
	sqlDB, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("open run store: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("ping run store: %w", err)
	}
	s := &Store{sql: sqlDB}
	if err := s.migrate(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("migrate run store: %w", err)
	}
	logger.Success("RUNSTORE", fmt.Sprintf("opened %s", path))
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error { return s.sql.Close() }

func (s *Store) migrate() error {
	var version int
	s.sql.QueryRow("SELECT version FROM schema_version ORDER BY version DESC LIMIT 1").Scan(&version)

	if version < 1 {
		_, err := s.sql.Exec(`
			CREATE TABLE IF NOT EXISTS schema_version (version INTEGER PRIMARY KEY);

			CREATE TABLE IF NOT EXISTS runs (
				id           TEXT PRIMARY KEY,
				ticker       TEXT NOT NULL,
				bucket       TEXT NOT NULL,
				created_at   TEXT NOT NULL,
				halt_reason  TEXT NOT NULL,
				cagr         REAL NOT NULL,
				sharpe       REAL NOT NULL,
				max_drawdown REAL NOT NULL,
				win_rate     REAL NOT NULL,
				profit_factor REAL,
				turnover     REAL NOT NULL,
				exposure     REAL NOT NULL,
				total_trades INTEGER NOT NULL,
				equity_json  TEXT NOT NULL,
				trades_json  TEXT NOT NULL
			);
			CREATE INDEX IF NOT EXISTS idx_runs_ticker ON runs(ticker);
			CREATE INDEX IF NOT EXISTS idx_runs_bucket ON runs(bucket);

			INSERT INTO schema_version (version) VALUES (1);
		`)
		if err != nil {
			return err
		}
	}
	return nil
}

// equityRow/tradeRow are the JSON-serializable projections of a backtest
// result's equity curve and trade log, stored as TEXT columns rather than
// their own tables: a run's results are read back whole, never queried by
// individual equity point or trade.
type equityRow struct {
	Date   time.Time `json:"date"`
	Equity float64   `json:"equity"`
}

type tradeRow struct {
	Date          time.Time `json:"date"`
	Direction     string    `json:"direction"`
	Delta         float64   `json:"delta"`
	Price         float64   `json:"price"`
	Cost          float64   `json:"cost"`
	RealizedPnL   float64   `json:"realized_pnl"`
	PositionAfter float64   `json:"position_after"`
}

// SaveRun persists a completed backtest result and returns the generated
// run ID. Runs are bucketed by month (UTC) of their created_at timestamp,
// via go-strftime, so a caller can later list "all runs this month".
func (s *Store) SaveRun(ticker string, res backtest.Result, createdAt time.Time) (string, error) {
	id := uuid.NewString()
	bucket := strftime.Format("%Y-%m", createdAt.UTC())

	equity := make([]equityRow, len(res.Equity))
	for i, p := range res.Equity {
		equity[i] = equityRow{Date: p.Date, Equity: p.Equity}
	}
	trades := make([]tradeRow, len(res.Trades))
	for i, tr := range res.Trades {
		trades[i] = tradeRow{
			Date: tr.Date, Direction: string(tr.Direction), Delta: tr.Delta,
			Price: tr.Price, Cost: tr.Cost, RealizedPnL: tr.RealizedPnL, PositionAfter: tr.PositionAfter,
		}
	}

	equityJSON, err := json.Marshal(equity)
	if err != nil {
		return "", fmt.Errorf("marshal equity curve: %w", err)
	}
	tradesJSON, err := json.Marshal(trades)
	if err != nil {
		return "", fmt.Errorf("marshal trade log: %w", err)
	}

	var profitFactor sql.NullFloat64
	if res.Stats.HasProfitFactor {
		profitFactor = sql.NullFloat64{Float64: res.Stats.ProfitFactor, Valid: true}
	}

	_, err = s.sql.Exec(`INSERT INTO runs (
		id, ticker, bucket, created_at, halt_reason,
		cagr, sharpe, max_drawdown, win_rate, profit_factor, turnover, exposure, total_trades,
		equity_json, trades_json
	) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		id, ticker, bucket, createdAt.UTC().Format(time.RFC3339), string(res.Halt),
		res.Stats.CAGR, res.Stats.Sharpe, res.Stats.MaxDrawdown, res.Stats.WinRate, profitFactor,
		res.Stats.Turnover, res.Stats.Exposure, res.Stats.TotalTrades,
		string(equityJSON), string(tradesJSON),
	)
	if err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}
	return id, nil
}

// RunSummary is the queryable header of a persisted run, without the full
// equity curve and trade log.
type RunSummary struct {
	ID          string
	Ticker      string
	Bucket      string
	CreatedAt   time.Time
	HaltReason  string
	CAGR        float64
	Sharpe      float64
	MaxDrawdown float64
	WinRate     float64
	TotalTrades int
}

// ListRuns returns every persisted run for a ticker, most recent first.
func (s *Store) ListRuns(ticker string) ([]RunSummary, error) {
	rows, err := s.sql.Query(`SELECT id, ticker, bucket, created_at, halt_reason, cagr, sharpe, max_drawdown, win_rate, total_trades
		FROM runs WHERE ticker = ? ORDER BY created_at DESC`, ticker)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		var r RunSummary
		var createdAt string
		if err := rows.Scan(&r.ID, &r.Ticker, &r.Bucket, &createdAt, &r.HaltReason, &r.CAGR, &r.Sharpe, &r.MaxDrawdown, &r.WinRate, &r.TotalTrades); err != nil {
			return nil, fmt.Errorf("scan run row: %w", err)
		}
		r.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		out = append(out, r)
	}
	return out, rows.Err()
}
