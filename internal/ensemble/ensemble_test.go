package ensemble

import (
	"testing"
	"time"

	"github.com/quantbench/quantbench/internal/signals"
)

func result(name signals.Name, score, confidence float64) signals.Result {
	return signals.Result{Name: name, Score: score, Confidence: confidence, Timestamp: time.Time{}}
}

func TestCombine_EqualWeightFallbackWhenNoMappingGiven(t *testing.T) {
	m := New(nil, 0, 0.1)
	f := m.Combine([]signals.Result{
		result(signals.Momentum, 1.0, 1.0),
		result(signals.MeanReversion, 1.0, 1.0),
		result(signals.Regime, 1.0, 1.0),
	})
	if f.WeightedSum != 1.0 {
		t.Errorf("WeightedSum = %v, want 1.0 for two equally-weighted unanimous signals", f.WeightedSum)
	}
	if f.Direction != Long {
		t.Errorf("Direction = %v, want long", f.Direction)
	}
}

func TestCombine_ZeroRegimeWeightHasNoEffect(t *testing.T) {
	weights := map[signals.Name]float64{signals.Momentum: 0.6, signals.MeanReversion: 0.4}
	withUnfavorableRegime := New(weights, 0, 0.1).Combine([]signals.Result{
		result(signals.Momentum, 0.8, 0.9),
		result(signals.MeanReversion, 0.2, 0.9),
		result(signals.Regime, 0.0, 0.9), // maximally unfavorable
	})
	withoutRegime := New(weights, 0, 0.1).Combine([]signals.Result{
		result(signals.Momentum, 0.8, 0.9),
		result(signals.MeanReversion, 0.2, 0.9),
	})
	if withUnfavorableRegime.WeightedSum != withoutRegime.WeightedSum {
		t.Errorf("regime_weight=0 should leave weighted_sum unaffected by regime score: %v vs %v",
			withUnfavorableRegime.WeightedSum, withoutRegime.WeightedSum)
	}
}

func TestCombine_UnfavorableRegimeShrinksWeightedSumAndConfidence(t *testing.T) {
	weights := map[signals.Name]float64{signals.Momentum: 0.6, signals.MeanReversion: 0.4}
	base := []signals.Result{
		result(signals.Momentum, 0.8, 0.9),
		result(signals.MeanReversion, 0.2, 0.9),
	}
	favorable := New(weights, 1.0, 0.1).Combine(append(append([]signals.Result{}, base...), result(signals.Regime, 1.0, 0.9)))
	unfavorable := New(weights, 1.0, 0.1).Combine(append(append([]signals.Result{}, base...), result(signals.Regime, 0.0, 0.9)))

	if absF(unfavorable.WeightedSum) >= absF(favorable.WeightedSum) {
		t.Errorf("unfavorable regime should shrink |weighted_sum|: unfavorable=%v favorable=%v",
			unfavorable.WeightedSum, favorable.WeightedSum)
	}
	if unfavorable.Confidence >= favorable.Confidence {
		t.Errorf("unfavorable regime should shrink confidence: unfavorable=%v favorable=%v",
			unfavorable.Confidence, favorable.Confidence)
	}
}

func TestCombine_DirectionInvariantUnderJointConfidenceScaling(t *testing.T) {
	weights := map[signals.Name]float64{signals.Momentum: 0.6, signals.MeanReversion: 0.4}
	low := New(weights, 0.3, 0.1).Combine([]signals.Result{
		result(signals.Momentum, 0.8, 0.2),
		result(signals.MeanReversion, 0.2, 0.2),
		result(signals.Regime, 0.9, 0.2),
	})
	high := New(weights, 0.3, 0.1).Combine([]signals.Result{
		result(signals.Momentum, 0.8, 0.9),
		result(signals.MeanReversion, 0.2, 0.9),
		result(signals.Regime, 0.9, 0.9),
	})
	if low.Direction != high.Direction {
		t.Errorf("direction changed under joint confidence scaling: %v vs %v", low.Direction, high.Direction)
	}
	if low.WeightedSum != high.WeightedSum {
		t.Errorf("weighted_sum should not depend on confidence at all: %v vs %v", low.WeightedSum, high.WeightedSum)
	}
}

func TestCombine_FlatWhenWithinThreshold(t *testing.T) {
	m := New(map[signals.Name]float64{signals.Momentum: 0.5, signals.MeanReversion: 0.5}, 0, 0.5)
	f := m.Combine([]signals.Result{
		result(signals.Momentum, 0.1, 0.5),
		result(signals.MeanReversion, -0.05, 0.5),
		result(signals.Regime, 1.0, 0.5),
	})
	if f.Direction != Flat {
		t.Errorf("Direction = %v, want flat within threshold", f.Direction)
	}
	if f.SizeHint != 0 {
		t.Errorf("SizeHint = %v, want 0 when flat", f.SizeHint)
	}
}

func TestCombine_TopContributorsSortedByMagnitudeDescending(t *testing.T) {
	m := New(map[signals.Name]float64{signals.Momentum: 0.2, signals.MeanReversion: 0.8}, 0, 0.05)
	f := m.Combine([]signals.Result{
		result(signals.Momentum, 0.9, 0.9),
		result(signals.MeanReversion, 0.9, 0.9),
		result(signals.Regime, 1.0, 0.9),
	})
	if len(f.TopContributors) != 2 {
		t.Fatalf("len(TopContributors) = %d, want 2", len(f.TopContributors))
	}
	if f.TopContributors[0].Signal != signals.MeanReversion {
		t.Errorf("TopContributors[0] = %v, want mean_reversion (higher weight)", f.TopContributors[0].Signal)
	}
}

func TestOptimizeWeights_InsufficientSamplesErrors(t *testing.T) {
	_, err := OptimizeWeights(nil)
	if err == nil {
		t.Fatal("want error for zero samples")
	}
}

func TestOptimizeWeights_WeightsSumToOne(t *testing.T) {
	samples := make([]Sample, 0, 40)
	for i := 0; i < 40; i++ {
		mom := float64(i%5) / 5.0
		mr := float64((i+2)%7) / 7.0
		samples = append(samples, Sample{
			Scores:        map[signals.Name]float64{signals.Momentum: mom, signals.MeanReversion: mr},
			ForwardReturn: 0.01*mom - 0.005*mr,
		})
	}
	weights, err := OptimizeWeights(samples)
	if err != nil {
		t.Fatalf("OptimizeWeights() error = %v", err)
	}
	sum := 0.0
	for _, w := range weights {
		if w < 0 {
			t.Errorf("weight %v is negative, want non-negative", w)
		}
		sum += w
	}
	if absF(sum-1.0) > 1e-9 {
		t.Errorf("weights sum to %v, want 1.0", sum)
	}
}
