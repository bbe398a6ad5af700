// Command quantbench runs a leakage-safe historical backtest for one
// ticker from a CSV of daily OHLCV bars and prints a summary report.
package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/quantbench/quantbench/internal/backtest"
	"github.com/quantbench/quantbench/internal/bars"
	"github.com/quantbench/quantbench/internal/config"
	"github.com/quantbench/quantbench/internal/logger"
	"github.com/quantbench/quantbench/internal/runstore"
)

var version = "dev"

func main() {
	csvPath := flag.String("bars", "", "path to a CSV of daily OHLCV bars (date,open,high,low,close,volume)")
	ticker := flag.String("ticker", "TICKER", "ticker symbol, used only for labeling output and the run store")
	preset := flag.String("preset", "", "named weight/threshold preset (trend, mean_reversion, conservative)")
	dbPath := flag.String("db", "", "path to the run-store SQLite database (empty disables persistence)")
	flag.Parse()

	logger.Banner(version)

	if *csvPath == "" {
		logger.Error("CLI", "missing required -bars flag")
		os.Exit(1)
	}

	raw, err := loadCSV(*csvPath)
	if err != nil {
		logger.Error("CLI", fmt.Sprintf("failed to read bars: %v", err))
		os.Exit(1)
	}

	series, warnings := bars.Normalize(raw)
	for _, w := range warnings {
		logger.Warn("NORMALIZE", w.Message)
	}
	if len(series) == 0 {
		logger.Error("CLI", "no valid bars after normalization")
		os.Exit(1)
	}

	cfg := config.Default()
	if *preset != "" {
		p, presetWarnings := config.GetPreset(*preset)
		for _, w := range presetWarnings {
			logger.Warn("CONFIG", w)
		}
		p.Apply(cfg)
	}
	if err := cfg.Validate(); err != nil {
		logger.Error("CLI", fmt.Sprintf("invalid configuration: %v", err))
		os.Exit(1)
	}

	engine := backtest.New(cfg)
	res, err := engine.Run(*ticker, series)
	if err != nil {
		logger.Error("CLI", fmt.Sprintf("backtest failed: %v", err))
		os.Exit(1)
	}

	logger.Section(fmt.Sprintf("Results: %s", *ticker))
	if res.Halt != "" {
		logger.Warn("HALT", string(res.Halt))
	}
	logger.Stats("CAGR", fmt.Sprintf("%.2f%%", res.Stats.CAGR*100))
	logger.Stats("Sharpe", fmt.Sprintf("%.2f", res.Stats.Sharpe))
	logger.Stats("Max drawdown", fmt.Sprintf("%.2f%%", res.Stats.MaxDrawdown*100))
	logger.Stats("Win rate", fmt.Sprintf("%.1f%%", res.Stats.WinRate*100))
	if res.Stats.HasProfitFactor {
		logger.Stats("Profit factor", fmt.Sprintf("%.2f", res.Stats.ProfitFactor))
	} else {
		logger.Stats("Profit factor", "n/a (no losing trades)")
	}
	logger.Stats("Turnover", fmt.Sprintf("%.2f", res.Stats.Turnover))
	logger.Stats("Exposure", fmt.Sprintf("%.1f%%", res.Stats.Exposure*100))
	logger.Stats("Total trades", humanize.Comma(int64(res.Stats.TotalTrades)))
	if len(res.Equity) > 0 {
		logger.Stats("Ending equity", humanize.Commaf(res.Equity[len(res.Equity)-1].Equity))
	}

	if *dbPath != "" {
		store, err := runstore.OpenAt(*dbPath)
		if err != nil {
			logger.Error("RUNSTORE", fmt.Sprintf("failed to open: %v", err))
			os.Exit(1)
		}
		defer store.Close()
		id, err := store.SaveRun(*ticker, res, time.Now())
		if err != nil {
			logger.Error("RUNSTORE", fmt.Sprintf("failed to save run: %v", err))
			os.Exit(1)
		}
		logger.Success("RUNSTORE", fmt.Sprintf("saved run %s", id))
	}
}

func loadCSV(path string) ([]bars.RawBar, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[name] = i
	}

	var out []bars.RawBar
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		out = append(out, bars.RawBar{
			Date:   row[col["date"]],
			Open:   parseFloat(row, col, "open"),
			High:   parseFloat(row, col, "high"),
			Low:    parseFloat(row, col, "low"),
			Close:  parseFloat(row, col, "close"),
			Volume: parseFloat(row, col, "volume"),
		})
	}
	return out, nil
}

func parseFloat(row []string, col map[string]int, name string) float64 {
	idx, ok := col[name]
	if !ok || idx >= len(row) {
		return 0
	}
	var v float64
	fmt.Sscanf(row[idx], "%g", &v)
	return v
}
