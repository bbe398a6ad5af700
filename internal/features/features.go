// Package features computes the feature frame from spec.md §3: momentum,
// mean-reversion, and volatility/regime columns aligned to the bar date
// axis. Compute is a pure function (bar series -> feature frame); storage
// is columnar (parallel float64 slices sharing one index), not a
// heterogeneous row map, per the design notes. Every rolling computation
// uses only values at or before the current index — standard backward
// rolling, never centered or forward-looking. Where a denominator is at or
// near zero, the result is NaN for that row rather than a panic; signals
// are responsible for handling NaN.
package features

import (
	"math"
	"time"

	"github.com/quantbench/quantbench/internal/bars"
)

// Frame is a dense table aligned to the bar dates: one value per column per
// bar index, undefined entries are NaN.
type Frame struct {
	Dates []time.Time

	// Momentum
	Returns5d         []float64
	Returns20d        []float64
	Returns60d        []float64
	MASlope20         []float64
	MASlope60         []float64
	BreakoutDistance  []float64

	// Mean reversion
	ZScoreCloseVsMA20 []float64
	BollingerDistance []float64
	Reversal1d        []float64
	Reversal3d        []float64

	// Volatility / regime
	RealizedVol20d []float64
	VolChange      []float64
	TrendVsChop    []float64
}

// Len returns the number of rows in the frame.
func (f Frame) Len() int { return len(f.Dates) }

// IndexAtOrBefore returns the last row index whose date is <= t, and false
// if no such row exists. Used by signals to look up the most recent row at
// or before a decision bar when t is not itself a feature frame date.
func (f Frame) IndexAtOrBefore(t time.Time) (int, bool) {
	idx := -1
	for i, d := range f.Dates {
		if d.After(t) {
			break
		}
		idx = i
	}
	if idx < 0 {
		return 0, false
	}
	return idx, true
}

const epsilon = 1e-12

// Compute derives the full feature frame from a normalized bar series. It
// never reads beyond the bars given to it, so computing on a prefix
// B[0..t] and taking the last row is equal to computing on the full series
// and reading row t (see features_test.go's causality/prefix-equality
// cases).
func Compute(series bars.Series) Frame {
	n := len(series)
	f := Frame{
		Dates:             make([]time.Time, n),
		Returns5d:         nanSlice(n),
		Returns20d:        nanSlice(n),
		Returns60d:        nanSlice(n),
		MASlope20:         nanSlice(n),
		MASlope60:         nanSlice(n),
		BreakoutDistance:  nanSlice(n),
		ZScoreCloseVsMA20: nanSlice(n),
		BollingerDistance: nanSlice(n),
		Reversal1d:        nanSlice(n),
		Reversal3d:        nanSlice(n),
		RealizedVol20d:    nanSlice(n),
		VolChange:         nanSlice(n),
		TrendVsChop:       nanSlice(n),
	}
	if n == 0 {
		return f
	}

	closes := make([]float64, n)
	for i, b := range series {
		f.Dates[i] = b.Date
		closes[i] = b.Close
	}

	pctChange := pctChangeSeries(closes, 1)
	pct3 := pctChangeSeries(closes, 3)

	ma20 := rollingMean(closes, 20)
	ma60 := rollingMean(closes, 60)
	std20Price := rollingStd(closes, 20)
	stdPctChange10 := rollingStd(pctChange, 10)
	stdPctChange20 := rollingStd(pctChange, 20)
	rollHigh20 := rollingMax(closes, 20)
	rollLow20 := rollingMin(closes, 20)

	for i := 0; i < n; i++ {
		f.Returns5d[i] = logReturn(closes, i, 5)
		f.Returns20d[i] = logReturn(closes, i, 20)
		f.Returns60d[i] = logReturn(closes, i, 60)

		f.MASlope20[i] = diffOver(ma20, i, 5, closes[i])
		f.MASlope60[i] = diffOver(ma60, i, 10, closes[i])

		f.BreakoutDistance[i] = breakoutDistance(closes[i], rollHigh20[i], rollLow20[i])

		f.ZScoreCloseVsMA20[i] = safeDiv(closes[i]-ma20[i], std20Price[i])
		f.BollingerDistance[i] = safeDiv(closes[i]-ma20[i], 4*std20Price[i])

		f.Reversal1d[i] = negIfFinite(pctChange[i])
		f.Reversal3d[i] = negIfFinite(pct3[i])

		f.RealizedVol20d[i] = scaleIfFinite(stdPctChange20[i], math.Sqrt(252))
		f.VolChange[i] = safeDiv(stdPctChange10[i]-stdPctChange20[i], stdPctChange20[i])
	}

	trendVsChop(closes, 20, f.TrendVsChop)

	return f
}

func nanSlice(n int) []float64 {
	s := make([]float64, n)
	for i := range s {
		s[i] = math.NaN()
	}
	return s
}

func negIfFinite(v float64) float64 {
	if math.IsNaN(v) {
		return math.NaN()
	}
	return -v
}

func scaleIfFinite(v, k float64) float64 {
	if math.IsNaN(v) {
		return math.NaN()
	}
	return v * k
}

func safeDiv(num, den float64) float64 {
	if math.IsNaN(num) || math.IsNaN(den) || math.Abs(den) <= epsilon {
		return math.NaN()
	}
	return num / den
}

func logReturn(closes []float64, i, lag int) float64 {
	if i-lag < 0 {
		return math.NaN()
	}
	prev := closes[i-lag]
	if prev <= epsilon || closes[i] <= epsilon {
		return math.NaN()
	}
	return math.Log(closes[i] / prev)
}

// diffOver computes (ma[i] - ma[i-lag]) / closeAtI, NaN if either MA value
// is undefined. This is the asymmetric Δ-window preserved verbatim from
// the source for backtest parity (see SPEC_FULL.md Part E.2).
func diffOver(ma []float64, i, lag int, closeAtI float64) float64 {
	if i-lag < 0 || math.IsNaN(ma[i]) || math.IsNaN(ma[i-lag]) {
		return math.NaN()
	}
	return safeDiv(ma[i]-ma[i-lag], closeAtI)
}

func breakoutDistance(close, rollHigh, rollLow float64) float64 {
	if math.IsNaN(rollHigh) || math.IsNaN(rollLow) || rollHigh == 0 || rollLow == 0 {
		return math.NaN()
	}
	distFromHigh := (close - rollHigh) / rollHigh
	distFromLow := (close - rollLow) / rollLow
	if math.Abs(distFromLow) < math.Abs(distFromHigh) {
		return distFromLow
	}
	return distFromHigh
}

func pctChangeSeries(closes []float64, lag int) []float64 {
	out := nanSlice(len(closes))
	for i := lag; i < len(closes); i++ {
		prev := closes[i-lag]
		if math.Abs(prev) <= epsilon {
			continue
		}
		out[i] = closes[i]/prev - 1
	}
	return out
}

func rollingMean(x []float64, window int) []float64 {
	out := nanSlice(len(x))
	var sum float64
	for i, v := range x {
		sum += v
		if i >= window {
			sum -= x[i-window]
		}
		if i >= window-1 {
			out[i] = sum / float64(window)
		}
	}
	return out
}

func rollingMax(x []float64, window int) []float64 {
	out := nanSlice(len(x))
	for i := range x {
		if i < window-1 {
			continue
		}
		m := x[i-window+1]
		for j := i - window + 2; j <= i; j++ {
			if x[j] > m {
				m = x[j]
			}
		}
		out[i] = m
	}
	return out
}

func rollingMin(x []float64, window int) []float64 {
	out := nanSlice(len(x))
	for i := range x {
		if i < window-1 {
			continue
		}
		m := x[i-window+1]
		for j := i - window + 2; j <= i; j++ {
			if x[j] < m {
				m = x[j]
			}
		}
		out[i] = m
	}
	return out
}

// rollingStd computes the sample standard deviation (ddof=1, pandas
// default) over a trailing window of window values ending at i inclusive.
func rollingStd(x []float64, window int) []float64 {
	out := nanSlice(len(x))
	if window < 2 {
		return out
	}
	for i := range x {
		if i < window-1 {
			continue
		}
		var sum float64
		for j := i - window + 1; j <= i; j++ {
			sum += x[j]
		}
		meanV := sum / float64(window)
		var ss float64
		for j := i - window + 1; j <= i; j++ {
			d := x[j] - meanV
			ss += d * d
		}
		out[i] = math.Sqrt(ss / float64(window-1))
	}
	return out
}

// trendVsChop fills out[i] with sign(slope)*R^2 of an OLS fit of close
// against a 0..window-1 index over the window bars strictly BEFORE i
// (matching the source's `close.iloc[i-window:i]`, which excludes the
// current bar). This keeps the feature causal even one bar more
// conservatively than strictly required.
func trendVsChop(closes []float64, window int, out []float64) {
	n := len(closes)
	for i := window; i < n; i++ {
		y := closes[i-window : i]
		slope, r2, ok := olsSlopeR2(y)
		if !ok {
			out[i] = 0
			continue
		}
		sign := 1.0
		if slope < 0 {
			sign = -1.0
		}
		out[i] = sign * r2
	}
}

func olsSlopeR2(y []float64) (slope, r2 float64, ok bool) {
	n := len(y)
	if n < 2 {
		return 0, 0, false
	}
	first := y[0]
	allSame := true
	for _, v := range y {
		if v != first {
			allSame = false
			break
		}
	}
	if allSame {
		return 0, 0, false
	}

	var sumX, sumY, sumXY, sumXX float64
	for i, v := range y {
		x := float64(i)
		sumX += x
		sumY += v
		sumXY += x * v
		sumXX += x * x
	}
	nf := float64(n)
	denom := nf*sumXX - sumX*sumX
	if math.Abs(denom) <= epsilon {
		return 0, 0, false
	}
	slope = (nf*sumXY - sumX*sumY) / denom

	meanX := sumX / nf
	meanY := sumY / nf
	var sxy, sxx, syy float64
	for i, v := range y {
		x := float64(i)
		sxy += (x - meanX) * (v - meanY)
		sxx += (x - meanX) * (x - meanX)
		syy += (v - meanY) * (v - meanY)
	}
	if sxx <= epsilon || syy <= epsilon {
		return slope, 0, true
	}
	r := sxy / math.Sqrt(sxx*syy)
	return slope, r * r, true
}
