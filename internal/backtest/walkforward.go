package backtest

import (
	"fmt"
	"time"

	"github.com/quantbench/quantbench/internal/bars"
	"github.com/quantbench/quantbench/internal/core"
	"github.com/quantbench/quantbench/internal/metrics"
)

// Window is one walk-forward train/test split, grounded on the original
// source's WalkForwardEvaluator._generate_windows.
type Window struct {
	TrainStart time.Time
	TrainEnd   time.Time
	TestStart  time.Time
	TestEnd    time.Time
}

// GenerateWindows lays out rolling train/test windows across [start, end]:
// each window trains on trainYears years ending at the window's start,
// tests on the following testMonths months, and the next window begins
// stepMonths after the previous one.
func GenerateWindows(start, end time.Time, trainYears, testMonths, stepMonths int) []Window {
	var windows []Window
	trainStart := start
	for {
		trainEnd := trainStart.AddDate(trainYears, 0, 0)
		testStart := trainEnd.AddDate(0, 0, 1)
		testEnd := testStart.AddDate(0, testMonths, 0)
		if testStart.After(end) {
			break
		}
		if testEnd.After(end) {
			testEnd = end
		}
		windows = append(windows, Window{TrainStart: trainStart, TrainEnd: trainEnd, TestStart: testStart, TestEnd: testEnd})
		trainStart = trainStart.AddDate(0, stepMonths, 0)
	}
	return windows
}

// WindowResult is one walk-forward window's out-of-sample performance.
type WindowResult struct {
	Window Window
	Result Result
}

// WalkForward evaluates the engine window by window: each window's
// simulation runs over [TrainStart, TestEnd] so the warm-up and rolling
// features are seeded from real history, but only the bars at or after
// TestStart are kept in the reported equity curve, trade log, and
// recomputed metrics — the training bars never contribute a reported
// trade. Windows with no bars in [TrainStart, TestEnd] are skipped.
func WalkForward(e *Engine, ticker string, series bars.Series, start, end time.Time, trainYears, testMonths, stepMonths int) ([]WindowResult, error) {
	if len(series) == 0 {
		return nil, fmt.Errorf("%w: empty bar series", core.ErrInvalidInput)
	}

	windows := GenerateWindows(start, end, trainYears, testMonths, stepMonths)
	results := make([]WindowResult, 0, len(windows))

	for _, w := range windows {
		slice := sliceByDate(series, w.TrainStart, w.TestEnd)
		if len(slice) == 0 {
			continue
		}

		full, err := e.Run(ticker, slice)
		if err != nil {
			continue
		}

		oos := Result{Ticker: ticker, Halt: full.Halt}
		for _, p := range full.Equity {
			if !p.Date.Before(w.TestStart) {
				oos.Equity = append(oos.Equity, p)
			}
		}
		for _, tr := range full.Trades {
			if !tr.Date.Before(w.TestStart) {
				oos.Trades = append(oos.Trades, tr)
			}
		}
		if len(oos.Equity) == 0 {
			continue
		}

		tradeRecords := make([]metrics.TradeRecord, len(oos.Trades))
		for i, tr := range oos.Trades {
			tradeRecords[i] = metrics.TradeRecord{Date: tr.Date, RealizedPnL: tr.RealizedPnL, PositionAfter: tr.PositionAfter}
		}
		oos.Stats = metrics.Compute(oos.Equity, tradeRecords)

		results = append(results, WindowResult{Window: w, Result: oos})
	}

	return results, nil
}

func sliceByDate(series bars.Series, start, end time.Time) bars.Series {
	var out bars.Series
	for _, b := range series {
		if !b.Date.Before(start) && !b.Date.After(end) {
			out = append(out, b)
		}
	}
	return out
}
