package signals

import (
	"fmt"
	"math"
	"time"

	"github.com/quantbench/quantbench/internal/bars"
	"github.com/quantbench/quantbench/internal/features"
)

// MomentumSignal ("trend") averages tanh-squashed momentum features into a
// single score, grounded on momentum_signal.py's MomentumSignal.compute.
type MomentumSignal struct{}

func (MomentumSignal) Name() Name { return Momentum }

func (MomentumSignal) Compute(series bars.Series, frame features.Frame, t time.Time) Result {
	idx, ok := frame.IndexAtOrBefore(t)
	if !ok {
		return insufficientData(Momentum, t)
	}

	type component struct {
		label string
		value float64
	}
	// Score and confidence range over all six momentum features; the
	// reason string below only ever mentions the four that are
	// meaningful to a human reading the explanation.
	scoreInputs := []component{
		{"returns_5d", frame.Returns5d[idx]},
		{"returns_20d", frame.Returns20d[idx]},
		{"returns_60d", frame.Returns60d[idx]},
		{"ma_slope_20", frame.MASlope20[idx]},
		{"ma_slope_60", frame.MASlope60[idx]},
		{"breakout_distance", frame.BreakoutDistance[idx]},
	}
	reasonLabels := map[string]bool{
		"ma_slope_20": true, "ma_slope_60": true, "breakout_distance": true, "returns_20d": true,
	}

	components := make(map[string]float64, len(reasonLabels))
	var normalized []float64
	for _, c := range scoreInputs {
		if math.IsNaN(c.value) {
			continue
		}
		if reasonLabels[c.label] {
			components[c.label] = c.value
		}
		normalized = append(normalized, math.Tanh(c.value*10))
	}
	if len(normalized) == 0 {
		r := insufficientData(Momentum, t)
		r.Timestamp = frame.Dates[idx]
		return r
	}

	var sum float64
	for _, v := range normalized {
		sum += v
	}
	score := clip(sum/float64(len(normalized)), -1, 1)

	meanNorm := sum / float64(len(normalized))
	var varSum float64
	for _, v := range normalized {
		d := v - meanNorm
		varSum += d * d
	}
	std := math.Sqrt(varSum / float64(len(normalized)))
	confidence := clip(0.7*math.Abs(score)+0.3*(1-math.Min(std/2, 1)), 0, 1)

	return Result{
		Name:       Momentum,
		Score:      score,
		Confidence: confidence,
		Timestamp:  frame.Dates[idx],
		Explanation: Explanation{
			Reason:     momentumReason(frame, idx),
			Components: components,
		},
	}
}

func momentumReason(frame features.Frame, idx int) string {
	reason := ""
	if v := frame.MASlope20[idx]; !math.IsNaN(v) && math.Abs(v) > 0.001 {
		reason += fmt.Sprintf("ma_slope_20=%.4f ", v)
	}
	if v := frame.MASlope60[idx]; !math.IsNaN(v) && math.Abs(v) > 0.001 {
		reason += fmt.Sprintf("ma_slope_60=%.4f ", v)
	}
	if v := frame.BreakoutDistance[idx]; !math.IsNaN(v) && math.Abs(v) > 0.01 {
		reason += fmt.Sprintf("breakout_distance=%.4f ", v)
	}
	if v := frame.Returns20d[idx]; !math.IsNaN(v) && math.Abs(v) > 0.01 {
		reason += fmt.Sprintf("returns_20d=%.4f ", v)
	}
	if reason == "" {
		return "momentum features near zero"
	}
	return reason
}
