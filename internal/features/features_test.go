package features

import (
	"math"
	"testing"
	"time"

	"github.com/quantbench/quantbench/internal/bars"
)

func buildSeries(closes []float64) bars.Series {
	out := make(bars.Series, len(closes))
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, c := range closes {
		out[i] = bars.Bar{
			Date: start.AddDate(0, 0, i),
			Open: c, High: c, Low: c, Close: c, Volume: 1000,
		}
	}
	return out
}

func TestCompute_EmptySeriesYieldsEmptyFrame(t *testing.T) {
	f := Compute(nil)
	if f.Len() != 0 {
		t.Errorf("Len() = %d, want 0", f.Len())
	}
}

func TestCompute_UndefinedBeforeWindowFull(t *testing.T) {
	closes := make([]float64, 30)
	for i := range closes {
		closes[i] = 100 + float64(i)
	}
	f := Compute(buildSeries(closes))

	if !math.IsNaN(f.Returns20d[5]) {
		t.Errorf("Returns20d[5] should be NaN before window is full")
	}
	if !math.IsNaN(f.ZScoreCloseVsMA20[5]) {
		t.Errorf("ZScoreCloseVsMA20[5] should be NaN before window is full")
	}
	if math.IsNaN(f.Returns20d[25]) {
		t.Errorf("Returns20d[25] should be defined once 20-day window is full")
	}
}

func TestCompute_PrefixEqualsFullSeriesAtSharedIndex(t *testing.T) {
	closes := make([]float64, 80)
	for i := range closes {
		closes[i] = 100 + 0.5*float64(i) + 2*float64((i%7)-3)
	}
	full := Compute(buildSeries(closes))

	prefixLen := 65
	prefix := Compute(buildSeries(closes[:prefixLen]))

	t_ := prefixLen - 1
	assertEqualOrBothNaN(t, "Returns5d", full.Returns5d[t_], prefix.Returns5d[t_])
	assertEqualOrBothNaN(t, "Returns20d", full.Returns20d[t_], prefix.Returns20d[t_])
	assertEqualOrBothNaN(t, "MASlope20", full.MASlope20[t_], prefix.MASlope20[t_])
	assertEqualOrBothNaN(t, "ZScoreCloseVsMA20", full.ZScoreCloseVsMA20[t_], prefix.ZScoreCloseVsMA20[t_])
	assertEqualOrBothNaN(t, "RealizedVol20d", full.RealizedVol20d[t_], prefix.RealizedVol20d[t_])
	assertEqualOrBothNaN(t, "TrendVsChop", full.TrendVsChop[t_], prefix.TrendVsChop[t_])
}

func assertEqualOrBothNaN(t *testing.T, name string, a, b float64) {
	t.Helper()
	if math.IsNaN(a) && math.IsNaN(b) {
		return
	}
	if math.Abs(a-b) > 1e-9 {
		t.Errorf("%s differs between prefix and full series: %v vs %v", name, a, b)
	}
}

func TestCompute_ConstantPricesYieldZeroVol(t *testing.T) {
	closes := make([]float64, 30)
	for i := range closes {
		closes[i] = 100
	}
	f := Compute(buildSeries(closes))
	if f.RealizedVol20d[29] != 0 {
		t.Errorf("RealizedVol20d = %v, want 0 for constant prices", f.RealizedVol20d[29])
	}
	// zscore is 0/0 -> NaN (std is 0, numerator is 0)
	if !math.IsNaN(f.ZScoreCloseVsMA20[29]) {
		t.Errorf("ZScoreCloseVsMA20 = %v, want NaN when std is 0", f.ZScoreCloseVsMA20[29])
	}
}

func TestCompute_BreakoutDistanceSignedMinMagnitude(t *testing.T) {
	closes := make([]float64, 25)
	for i := range closes {
		closes[i] = 100
	}
	// The rolling window [5..24] includes the current bar, so close=110 is
	// itself the rolling high: distance from high is 0, distance from the
	// rolling low (100) is +0.1, and the smaller magnitude (0) wins.
	closes[24] = 110
	f := Compute(buildSeries(closes))
	if f.BreakoutDistance[24] != 0 {
		t.Errorf("BreakoutDistance = %v, want 0 (close equals the rolling high)", f.BreakoutDistance[24])
	}
}

func TestCompute_TrendVsChopRangeBounded(t *testing.T) {
	closes := make([]float64, 40)
	for i := range closes {
		closes[i] = 100 + float64(i) // strong uptrend
	}
	f := Compute(buildSeries(closes))
	for i, v := range f.TrendVsChop {
		if math.IsNaN(v) {
			continue
		}
		if v < -1-1e-9 || v > 1+1e-9 {
			t.Errorf("TrendVsChop[%d] = %v out of [-1,1]", i, v)
		}
	}
	if f.TrendVsChop[39] < 0.9 {
		t.Errorf("TrendVsChop[39] = %v, want close to +1 for a clean linear uptrend", f.TrendVsChop[39])
	}
}

func TestIndexAtOrBefore(t *testing.T) {
	closes := make([]float64, 10)
	for i := range closes {
		closes[i] = 100
	}
	f := Compute(buildSeries(closes))

	idx, ok := f.IndexAtOrBefore(f.Dates[5])
	if !ok || idx != 5 {
		t.Errorf("IndexAtOrBefore(exact date) = %d,%v want 5,true", idx, ok)
	}

	future := f.Dates[9].AddDate(0, 0, 10)
	idx, ok = f.IndexAtOrBefore(future)
	if !ok || idx != 9 {
		t.Errorf("IndexAtOrBefore(future) = %d,%v want 9,true", idx, ok)
	}

	past := f.Dates[0].AddDate(0, 0, -10)
	_, ok = f.IndexAtOrBefore(past)
	if ok {
		t.Errorf("IndexAtOrBefore(before all dates) should be false")
	}
}
