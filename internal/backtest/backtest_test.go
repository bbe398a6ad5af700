package backtest

import (
	"math"
	"testing"
	"time"

	"github.com/quantbench/quantbench/internal/bars"
	"github.com/quantbench/quantbench/internal/config"
	"github.com/quantbench/quantbench/internal/core"
	"github.com/quantbench/quantbench/internal/features"
	"github.com/quantbench/quantbench/internal/signals"
)

type panicSignal struct{}

func (panicSignal) Name() signals.Name { return signals.Name("panic_signal") }
func (panicSignal) Compute(bars.Series, features.Frame, time.Time) signals.Result {
	panic("boom")
}

func syntheticSeries(n int, trendBps float64, seed int) bars.Series {
	out := make(bars.Series, n)
	start := time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC)
	price := 100.0
	for i := 0; i < n; i++ {
		wobble := float64((i*7+seed)%11-5) * 0.002
		price *= 1 + trendBps + wobble
		out[i] = bars.Bar{Date: start.AddDate(0, 0, i), Open: price, High: price * 1.002, Low: price * 0.998, Close: price, Volume: 1_000_000}
	}
	return out
}

func TestRun_EmptySeriesIsFatal(t *testing.T) {
	e := New(config.Default())
	if _, err := e.Run("TEST", nil); err == nil {
		t.Fatal("want error for empty bar series")
	}
}

func TestRun_NonPositiveInitialCapitalIsFatal(t *testing.T) {
	cfg := config.Default()
	cfg.InitialCapital = 0
	e := New(cfg)
	if _, err := e.Run("TEST", syntheticSeries(70, 0.0005, 1)); err == nil {
		t.Fatal("want error for non-positive initial capital")
	}
}

func TestRun_EmitsOneEquityPointPerBar(t *testing.T) {
	series := syntheticSeries(120, 0.0008, 2)
	e := New(config.Default())
	res, err := e.Run("TEST", series)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(res.Equity) != len(series) {
		t.Errorf("len(Equity) = %d, want %d (one point per bar, including warm-up)", len(res.Equity), len(series))
	}
}

func TestRun_WarmupBarsNeverTrade(t *testing.T) {
	series := syntheticSeries(90, 0.0008, 3)
	e := New(config.Default())
	res, err := e.Run("TEST", series)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	for _, trade := range res.Trades {
		if trade.Date.Before(series[warmupBars-1].Date) {
			t.Errorf("trade at %v occurred before warm-up completed", trade.Date)
		}
	}
}

func TestRun_CostsStrictlyReduceCashOnEveryTrade(t *testing.T) {
	series := syntheticSeries(150, 0.0015, 4)
	e := New(config.Default())
	res, err := e.Run("TEST", series)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	for _, trade := range res.Trades {
		if trade.Cost <= 0 {
			t.Errorf("trade cost = %v, want positive", trade.Cost)
		}
	}
}

func TestRun_DrawdownStopHaltsLoop(t *testing.T) {
	// A sharp, sustained decline should eventually trip a tight drawdown stop.
	series := syntheticSeries(200, -0.01, 5)
	cfg := config.Default()
	cfg.MaxDrawdown = -0.05
	e := New(cfg)
	res, err := e.Run("TEST", series)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.Halt != core.HaltNone && res.Halt != core.HaltDrawdownStop {
		t.Errorf("Halt = %v, want empty or drawdown_stop", res.Halt)
	}
	if len(res.Equity) > len(series) {
		t.Errorf("len(Equity) = %d, should never exceed len(series) = %d", len(res.Equity), len(series))
	}
}

func TestRun_PanickingSignalIsLoggedThroughInjectedLogAndOmitted(t *testing.T) {
	series := syntheticSeries(90, 0.0005, 7)
	e := New(config.Default())
	e.Signals = append(e.Signals, panicSignal{})

	var got []string
	e.Log = func(tag, msg string) { got = append(got, tag+": "+msg) }

	res, err := e.Run("TEST", series)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(got) == 0 {
		t.Fatal("want the injected Log func to be called when a signal panics")
	}
	if len(res.Equity) != len(series) {
		t.Errorf("len(Equity) = %d, want %d even with a panicking signal", len(res.Equity), len(series))
	}
}

func TestRun_DeterministicAcrossRepeatedRuns(t *testing.T) {
	series := syntheticSeries(150, 0.001, 6)
	cfg := config.Default()
	r1, err := New(cfg).Run("TEST", series)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	r2, err := New(cfg).Run("TEST", series)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(r1.Equity) != len(r2.Equity) || len(r1.Trades) != len(r2.Trades) {
		t.Fatalf("non-deterministic run shapes: %d/%d vs %d/%d", len(r1.Equity), len(r1.Trades), len(r2.Equity), len(r2.Trades))
	}
	for i := range r1.Equity {
		if math.Abs(r1.Equity[i].Equity-r2.Equity[i].Equity) > 1e-9 {
			t.Fatalf("equity diverged at bar %d: %v vs %v", i, r1.Equity[i].Equity, r2.Equity[i].Equity)
		}
	}
}
