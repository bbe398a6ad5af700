package signals

import (
	"fmt"
	"math"
	"time"

	"github.com/quantbench/quantbench/internal/bars"
	"github.com/quantbench/quantbench/internal/features"
)

// RegimeSignal ("gate") scores how favorable the current volatility/trend
// regime is for the trading signals, grounded on regime_signal.py's
// RegimeSignal.compute. Unlike the trading signals its score lives in
// [0,1], not [-1,1].
type RegimeSignal struct{}

func (RegimeSignal) Name() Name { return Regime }

func (RegimeSignal) Compute(series bars.Series, frame features.Frame, t time.Time) Result {
	idx, ok := frame.IndexAtOrBefore(t)
	if !ok {
		return insufficientData(Regime, t)
	}

	vol := frame.RealizedVol20d[idx]
	trendVsChop := frame.TrendVsChop[idx]
	volChange := frame.VolChange[idx]

	haveVol := !math.IsNaN(vol)
	haveTrend := !math.IsNaN(trendVsChop)
	haveVolChange := !math.IsNaN(volChange)

	components := map[string]float64{}

	volScore := 1.0
	if haveVol {
		components["realized_vol_20d"] = vol
		switch {
		case vol < 0.05:
			volScore = 0.3
		case vol > 0.80:
			volScore = 0.2
		case vol >= 0.10 && vol <= 0.50:
			volScore = 1.0
		default:
			volScore = 0.6
		}
	}

	trendStrength := 0.0
	trendScore := 1.0
	if haveTrend {
		trendStrength = math.Abs(trendVsChop)
		components["trend_vs_chop"] = trendVsChop
		trendScore = math.Min(2*trendStrength, 1.0)
	}

	volChangeScore := 1.0
	if haveVolChange {
		components["vol_change"] = volChange
		switch {
		case volChange < -0.2:
			volChangeScore = 1.2
		case volChange > 0.3:
			volChangeScore = 0.5
		default:
			volChangeScore = 1.0
		}
	}

	if !haveVol && !haveTrend && !haveVolChange {
		return Result{
			Name:       Regime,
			Score:      0.5,
			Confidence: 0,
			Timestamp:  frame.Dates[idx],
			Explanation: Explanation{
				Reason: "insufficient data",
			},
		}
	}

	score := clip((volScore+trendScore+volChangeScore)/3, 0, 1)

	confidence := 0.5
	if haveVol && haveTrend {
		switch {
		case vol >= 0.15 && vol <= 0.4 && trendStrength > 0.3:
			confidence = 0.9
		case volScore < 0.4 || trendScore < 0.3:
			confidence = 0.3
		default:
			confidence = 0.6
		}
	}

	return Result{
		Name:       Regime,
		Score:      score,
		Confidence: confidence,
		Timestamp:  frame.Dates[idx],
		Explanation: Explanation{
			Reason:     fmt.Sprintf("vol_score=%.2f trend_score=%.2f vol_change_score=%.2f", volScore, trendScore, volChangeScore),
			Components: components,
		},
	}
}
