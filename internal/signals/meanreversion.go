package signals

import (
	"fmt"
	"math"
	"time"

	"github.com/quantbench/quantbench/internal/bars"
	"github.com/quantbench/quantbench/internal/features"
)

// MeanReversionSignal ("pullback") fades z-score extremes against the 20-day
// mean, with an optional short-horizon reversal blend, grounded on
// meanreversion_signal.py's MeanReversionSignal.compute.
type MeanReversionSignal struct{}

func (MeanReversionSignal) Name() Name { return MeanReversion }

func (MeanReversionSignal) Compute(series bars.Series, frame features.Frame, t time.Time) Result {
	idx, ok := frame.IndexAtOrBefore(t)
	if !ok {
		return insufficientData(MeanReversion, t)
	}

	z := frame.ZScoreCloseVsMA20[idx]
	usedFallback := false
	if math.IsNaN(z) {
		bd := frame.BollingerDistance[idx]
		if math.IsNaN(bd) {
			r := insufficientData(MeanReversion, t)
			r.Timestamp = frame.Dates[idx]
			return r
		}
		z = bd * 2.0
		usedFallback = true
	}

	score := clip(math.Tanh(-z/2), -1, 1)
	confidence := clip(math.Abs(z)/3, 0, 1)

	components := map[string]float64{}
	if usedFallback {
		components["bollinger_distance"] = frame.BollingerDistance[idx]
	} else {
		components["zscore_close_vs_ma20"] = z
	}

	var reversals []float64
	if v := frame.Reversal1d[idx]; !math.IsNaN(v) {
		reversals = append(reversals, v)
		components["reversal_1d"] = v
	}
	if v := frame.Reversal3d[idx]; !math.IsNaN(v) {
		reversals = append(reversals, v)
		components["reversal_3d"] = v
	}
	if len(reversals) > 0 {
		var sum float64
		for _, v := range reversals {
			sum += v
		}
		avg := sum / float64(len(reversals))
		score = clip(0.7*score+0.3*math.Tanh(10*avg), -1, 1)
	}

	reason := fmt.Sprintf("z=%.3f score=%.3f", z, score)
	if usedFallback {
		reason = "bollinger fallback: " + reason
	}

	return Result{
		Name:       MeanReversion,
		Score:      score,
		Confidence: confidence,
		Timestamp:  frame.Dates[idx],
		Explanation: Explanation{
			Reason:     reason,
			Components: components,
		},
	}
}
