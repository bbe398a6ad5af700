// Package backtest runs the leakage-safe, bar-by-bar simulation described
// in spec.md §4.8: at each step it recomputes features from the bars seen
// so far, asks each signal for its verdict, ensembles them, sizes and
// risk-gates the result, and updates a cost-basis-aware position and cash
// balance. The loop never reads a bar or feature beyond the current index.
package backtest

import (
	"fmt"
	"math"
	"time"

	"github.com/quantbench/quantbench/internal/bars"
	"github.com/quantbench/quantbench/internal/config"
	"github.com/quantbench/quantbench/internal/core"
	"github.com/quantbench/quantbench/internal/costs"
	"github.com/quantbench/quantbench/internal/ensemble"
	"github.com/quantbench/quantbench/internal/features"
	"github.com/quantbench/quantbench/internal/logger"
	"github.com/quantbench/quantbench/internal/metrics"
	"github.com/quantbench/quantbench/internal/risk"
	"github.com/quantbench/quantbench/internal/signals"
	"github.com/quantbench/quantbench/internal/sizing"
)

// warmupBars is the minimum number of bars required before the engine will
// consider trading; earlier bars only accrue an equity point.
const warmupBars = 60

// defaultAnnualVol is the spec's fallback annualized realized vol when the
// 20-day window is undefined or degenerate (NaN or non-positive stdev).
const defaultAnnualVol = 0.2

// Trade is one executed buy/sell/reduce/reverse record.
type Trade struct {
	Date          time.Time
	Direction     ensemble.Direction
	Delta         float64
	Price         float64
	Cost          float64
	RealizedPnL   float64
	PositionAfter float64
}

// Result is the full output of one backtest run: the equity curve, trade
// log, and the halt reason if the run stopped early.
type Result struct {
	Ticker string
	Equity []metrics.EquityPoint
	Trades []Trade
	Halt   core.HaltReason
	Stats  metrics.Summary
}

// Engine runs the bar-by-bar simulation for one ticker's normalized series.
type Engine struct {
	Config   *config.CoreConfig
	Signals  []signals.Signal
	Ensemble *ensemble.Model
	Costs    costs.Model

	// Log receives bar-local diagnostics (a signal panic recovered
	// mid-run, or a cost-basis invariant violation). Injected rather than called on the logger package
	// directly, so tests can assert on engine diagnostics without
	// capturing stdout.
	Log func(tag, msg string)
}

// New builds an Engine wired from a resolved configuration, using the
// three built-in signals and the package logger for diagnostics.
func New(cfg *config.CoreConfig) *Engine {
	return &Engine{
		Config:   cfg,
		Signals:  signals.All(),
		Ensemble: ensemble.NewFromConfig(cfg),
		Costs:    costs.Model{FixedBps: cfg.FixedBps, SlippageFactor: cfg.SlippageFactor},
		Log:      logger.Warn,
	}
}

// state is the engine's mutable position and cash-basis bookkeeping,
// carried across bars.
type state struct {
	cash           float64
	positionShares float64
	entryValue     float64
	entryPrice     float64
	peakEquity     float64
	prevDirection  ensemble.Direction
	prevConfidence float64
}

// Run executes the full bar-by-bar loop over a normalized series and
// returns the equity curve, trade log, and computed metrics. series must
// be non-empty; the caller is responsible for normalizing it first.
func (e *Engine) Run(ticker string, series bars.Series) (Result, error) {
	if len(series) == 0 {
		return Result{}, fmt.Errorf("%w: empty bar series", core.ErrInvalidInput)
	}
	if e.Config.InitialCapital <= 0 {
		return Result{}, fmt.Errorf("%w: initial capital must be positive", core.ErrInvalidInput)
	}

	st := state{
		cash:          e.Config.InitialCapital,
		peakEquity:    e.Config.InitialCapital,
		prevDirection: ensemble.Flat,
	}

	res := Result{Ticker: ticker}
	closes := series.Closes()

	for t := 0; t < len(series); t++ {
		bar := series[t]
		price := bar.Close

		if t+1 < warmupBars {
			equity := st.cash + st.positionShares*price
			res.Equity = append(res.Equity, metrics.EquityPoint{Date: bar.Date, Equity: equity})
			continue
		}

		frame := features.Compute(series[:t+1])

		var results []signals.Result
		for _, sig := range e.Signals {
			r := e.safeCompute(sig, series[:t+1], frame, bar.Date)
			if r.Name == "" {
				continue // panicked; already logged, omitted from the ensemble
			}
			results = append(results, r)
		}
		if len(results) == 0 {
			equity := st.cash + st.positionShares*price
			res.Equity = append(res.Equity, metrics.EquityPoint{Date: bar.Date, Equity: equity})
			continue
		}

		forecast := e.Ensemble.Combine(results)

		equityBeforeTrade := st.cash + st.positionShares*price
		if e.Config.MaxDrawdown < 0 && risk.DrawdownTriggered(equityBeforeTrade, st.peakEquity, e.Config.MaxDrawdown) {
			res.Halt = core.HaltDrawdownStop
			res.Equity = append(res.Equity, metrics.EquityPoint{Date: bar.Date, Equity: equityBeforeTrade})
			break
		}
		if len(res.Equity) > 0 {
			prevEquity := res.Equity[len(res.Equity)-1].Equity
			if prevEquity > 0 && e.Config.MaxDailyLoss < 0 {
				dailyReturn := equityBeforeTrade/prevEquity - 1
				if risk.DailyLossTriggered(dailyReturn, e.Config.MaxDailyLoss) {
					res.Halt = core.HaltDailyLoss
					res.Equity = append(res.Equity, metrics.EquityPoint{Date: bar.Date, Equity: equityBeforeTrade})
					break
				}
			}
		}

		realizedVol := annualizedVol20(closes, t)

		sizePct := sizing.VolTarget(forecast.Direction, forecast.Confidence, realizedVol/math.Sqrt(252),
			e.Config.TargetVolDaily, e.Config.MaxPositionSize, e.Config.VolFloor)
		sizePct = risk.ClampLeverage(sizePct, e.Config.MaxLeverage)

		desiredShares := 0.0
		if forecast.Direction != ensemble.Flat && equityBeforeTrade > 0 && price > 0 {
			sign := 1.0
			if forecast.Direction == ensemble.Short {
				sign = -1.0
			}
			desiredShares = sign * equityBeforeTrade * sizePct / price
		}

		gateOpen := risk.ShouldTrade(forecast.Direction, st.prevDirection, forecast.Confidence, st.prevConfidence, e.Config.TurnoverThreshold)

		if gateOpen && desiredShares != st.positionShares {
			trade := e.applyTrade(&st, bar.Date, forecast.Direction, desiredShares, price, bar.Volume, closes, t)
			res.Trades = append(res.Trades, trade)
		}

		st.prevDirection = forecast.Direction
		st.prevConfidence = forecast.Confidence

		equity := st.cash + st.positionShares*price
		if equity > st.peakEquity {
			st.peakEquity = equity
		}
		res.Equity = append(res.Equity, metrics.EquityPoint{Date: bar.Date, Equity: equity})
	}

	tradeRecords := make([]metrics.TradeRecord, len(res.Trades))
	for i, tr := range res.Trades {
		tradeRecords[i] = metrics.TradeRecord{Date: tr.Date, RealizedPnL: tr.RealizedPnL, PositionAfter: tr.PositionAfter}
	}
	res.Stats = metrics.Compute(res.Equity, tradeRecords)

	return res, nil
}

func (e *Engine) safeCompute(sig signals.Signal, series bars.Series, frame features.Frame, t time.Time) (result signals.Result) {
	defer func() {
		if r := recover(); r != nil {
			if e.Log != nil {
				e.Log(string(sig.Name()), fmt.Sprintf("panicked at %s: %v", t.Format("2006-01-02"), r))
			}
			result = signals.Result{}
		}
	}()
	return sig.Compute(series, frame, t)
}

// applyTrade mutates st per spec.md §4.8 step 10's cost-basis transition
// rules and returns the emitted trade record.
func (e *Engine) applyTrade(st *state, date time.Time, direction ensemble.Direction, desired, price, dayVolume float64, closes []float64, idx int) Trade {
	current := st.positionShares
	delta := desired - current
	notional := math.Abs(delta) * price
	annualVol := annualizedVol20(closes, idx)
	cost := e.Costs.Cost(notional, price, dayVolume, annualVol)

	var realizedPnL float64

	switch {
	case math.Abs(current) < 1e-9:
		// Open.
		st.entryValue = math.Abs(delta) * price
		st.entryPrice = price

	case sameSign(current, delta):
		// Add to the existing leg.
		st.entryValue += math.Abs(delta) * price
		st.entryPrice = st.entryValue / (math.Abs(current) + math.Abs(delta))

	case math.Abs(delta) <= math.Abs(current):
		// Reduce or fully close.
		k := math.Min(math.Abs(current), math.Abs(delta))
		if current > 0 {
			realizedPnL = (price - st.entryPrice) * k
		} else {
			realizedPnL = (st.entryPrice - price) * k
		}
		if math.Abs(desired) < 1e-9 {
			st.entryValue = 0
			st.entryPrice = 0
		} else {
			frac := math.Abs(desired) / math.Abs(current)
			st.entryValue *= frac
		}

	default:
		// Reverse: close the whole existing leg, then open the residual.
		k := math.Abs(current)
		if current > 0 {
			realizedPnL = (price - st.entryPrice) * k
		} else {
			realizedPnL = (st.entryPrice - price) * k
		}
		st.entryValue = math.Abs(desired) * price
		st.entryPrice = price
	}

	st.cash -= delta*price + cost
	st.positionShares = desired

	if math.Abs(st.positionShares) < 1e-9 && (st.entryValue != 0 || st.entryPrice != 0) {
		if e.Log != nil {
			e.Log("BACKTEST", fmt.Sprintf("%v at %s: cost basis set with no open position; reset",
				core.ErrInternal, date.Format("2006-01-02")))
		}
		st.entryValue = 0
		st.entryPrice = 0
	}

	return Trade{
		Date:          date,
		Direction:     direction,
		Delta:         delta,
		Price:         price,
		Cost:          cost,
		RealizedPnL:   realizedPnL,
		PositionAfter: st.positionShares,
	}
}

func sameSign(a, b float64) bool {
	return (a > 0 && b > 0) || (a < 0 && b < 0)
}

// annualizedVol20 returns the 20-day annualized realized vol of closes up
// to and including idx, falling back to defaultAnnualVol when undefined
// (fewer than 20 bars, or a degenerate zero-variance window).
func annualizedVol20(closes []float64, idx int) float64 {
	window := 20
	if idx+1 < window {
		return defaultAnnualVol
	}
	start := idx - window + 1
	returns := make([]float64, 0, window-1)
	for i := start + 1; i <= idx; i++ {
		prev := closes[i-1]
		if prev == 0 {
			continue
		}
		returns = append(returns, closes[i]/prev-1)
	}
	if len(returns) < 2 {
		return defaultAnnualVol
	}
	var sum float64
	for _, r := range returns {
		sum += r
	}
	mean := sum / float64(len(returns))
	var ss float64
	for _, r := range returns {
		d := r - mean
		ss += d * d
	}
	std := math.Sqrt(ss / float64(len(returns)-1))
	if math.IsNaN(std) || std <= 0 {
		return defaultAnnualVol
	}
	return std * math.Sqrt(252)
}
