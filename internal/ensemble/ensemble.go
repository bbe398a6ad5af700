// Package ensemble combines the momentum and mean-reversion signal results
// into one directional Forecast, gated by the regime signal. It implements
// spec.md §4.4's weighting protocol, which deliberately excludes confidence
// from the weighted sum that determines direction — this is the one place
// this module parts ways with the original Python ensemble (which folded
// weight*score*confidence together); the scores-only split keeps direction
// and confidence independently auditable.
package ensemble

import (
	"sort"

	"github.com/quantbench/quantbench/internal/config"
	"github.com/quantbench/quantbench/internal/signals"
)

// Direction is the ensemble's call on which way to lean.
type Direction string

const (
	Long  Direction = "long"
	Flat  Direction = "flat"
	Short Direction = "short"
)

// Contributor is one trading signal's signed contribution to weighted_sum,
// used to build the top_contributors explanation.
type Contributor struct {
	Signal       signals.Name
	Weight       float64
	Contribution float64
}

// Forecast is the ensembled directional call with a position-size hint.
type Forecast struct {
	Direction       Direction
	WeightedSum     float64
	Confidence      float64
	SizeHint        float64
	TopContributors []Contributor
	RegimeScore     float64
}

// Model holds the resolved weighting parameters for one ensemble run.
type Model struct {
	Weights      map[signals.Name]float64
	RegimeWeight float64
	Threshold    float64
}

// New builds a Model from explicit weights.
func New(weights map[signals.Name]float64, regimeWeight, threshold float64) *Model {
	return &Model{Weights: weights, RegimeWeight: regimeWeight, Threshold: threshold}
}

// NewFromConfig builds a Model from a resolved core configuration.
func NewFromConfig(cfg *config.CoreConfig) *Model {
	weights := make(map[signals.Name]float64, len(cfg.SignalWeights))
	for k, v := range cfg.SignalWeights {
		weights[signals.Name(k)] = v
	}
	return New(weights, cfg.RegimeWeight, cfg.Threshold)
}

var tradingSignals = []signals.Name{signals.Momentum, signals.MeanReversion}

// resolvedWeights returns the normalized per-trading-signal weight, falling
// back to an equal split when no mapping is given or it sums to <= 0.
func (m *Model) resolvedWeights() map[signals.Name]float64 {
	sum := 0.0
	for _, n := range tradingSignals {
		sum += m.Weights[n]
	}
	if sum <= 0 {
		equal := 1.0 / float64(len(tradingSignals))
		out := make(map[signals.Name]float64, len(tradingSignals))
		for _, n := range tradingSignals {
			out[n] = equal
		}
		return out
	}
	out := make(map[signals.Name]float64, len(tradingSignals))
	for _, n := range tradingSignals {
		out[n] = m.Weights[n] / sum
	}
	return out
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

// Combine implements spec.md §4.4's eight-step protocol. results should hold
// one Result per available signal for the same decision bar; a missing
// regime result is treated as a neutral m=1.0 gate (no scaling effect).
func (m *Model) Combine(results []signals.Result) Forecast {
	byName := make(map[signals.Name]signals.Result, len(results))
	for _, r := range results {
		byName[r.Name] = r
	}

	weights := m.resolvedWeights()

	var weightedSum, baseConfidence float64
	contributors := make([]Contributor, 0, len(tradingSignals))
	for _, n := range tradingSignals {
		r, ok := byName[n]
		if !ok {
			continue
		}
		w := weights[n]
		weightedSum += w * r.Score
		baseConfidence += w * r.Confidence
		contributors = append(contributors, Contributor{Signal: n, Weight: w, Contribution: w * r.Score})
	}

	regimeScore := 1.0
	if r, ok := byName[signals.Regime]; ok {
		regimeScore = clip(r.Score, 0, 1)
	}

	rawScoreScale := 1.0
	if regimeScore < 0.5 {
		rawScoreScale = 0.5
	}
	scoreScale := (1-m.RegimeWeight)*1.0 + m.RegimeWeight*rawScoreScale
	weightedSum *= scoreScale

	var direction Direction
	switch {
	case weightedSum > m.Threshold:
		direction = Long
	case weightedSum < -m.Threshold:
		direction = Short
	default:
		direction = Flat
	}

	rawConfScale := 0.7 + 0.3*regimeScore
	confScale := (1 - m.RegimeWeight) + m.RegimeWeight*rawConfScale
	confidence := clip(baseConfidence*confScale, 0, 1)

	sizeHint := 0.0
	if direction != Flat {
		sizeHint = clip(confidence*absF(weightedSum), 0, 1)
	}

	sort.Slice(contributors, func(i, j int) bool {
		return absF(contributors[i].Contribution) > absF(contributors[j].Contribution)
	})
	if len(contributors) > 5 {
		contributors = contributors[:5]
	}

	return Forecast{
		Direction:       direction,
		WeightedSum:     weightedSum,
		Confidence:      confidence,
		SizeHint:        sizeHint,
		TopContributors: contributors,
		RegimeScore:     regimeScore,
	}
}

func absF(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
