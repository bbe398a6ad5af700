// Package signals computes per-signal scores and confidences from a
// feature frame, grounded on the original momentum/mean-reversion/regime
// signal classes (original_source/backend/app/signals/*.py). Every signal
// is a pure function of (bar series, feature frame, decision time t) and
// must never read a feature row dated after t.
package signals

import (
	"time"

	"github.com/quantbench/quantbench/internal/bars"
	"github.com/quantbench/quantbench/internal/features"
)

// Name identifies a signal implementation.
type Name string

const (
	Momentum      Name = "momentum"
	MeanReversion Name = "mean_reversion"
	Regime        Name = "regime"
)

// Explanation carries the human-readable reason and the numeric components
// that produced it, surfaced verbatim to callers for audit/debugging.
type Explanation struct {
	Reason     string
	Components map[string]float64
}

// Result is one signal's verdict at a decision time.
type Result struct {
	Name        Name
	Score       float64
	Confidence  float64
	Timestamp   time.Time
	Explanation Explanation
}

// Signal computes a Result from bars and features up to (and including) t.
type Signal interface {
	Name() Name
	Compute(series bars.Series, frame features.Frame, t time.Time) Result
}

// insufficientData is the neutral result returned when t cannot be resolved
// to any row in the feature frame at all.
func insufficientData(name Name, t time.Time) Result {
	return Result{
		Name:       name,
		Score:      0,
		Confidence: 0,
		Timestamp:  t,
		Explanation: Explanation{
			Reason: "insufficient data",
		},
	}
}

func clip(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// All returns the three built-in signals in a fixed order: momentum,
// mean-reversion, then regime.
func All() []Signal {
	return []Signal{MomentumSignal{}, MeanReversionSignal{}, RegimeSignal{}}
}
