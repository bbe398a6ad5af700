// Package config holds the single immutable configuration value threaded
// through the research pipeline. There is no process-wide settings object:
// callers build a CoreConfig once per run and hand a pointer to it to the
// backtest engine, which derives the ensemble, sizing, cost model, and risk
// parameters from it. The feature engine and signals take no configuration.
// No package re-reads configuration mid-run.
package config

import (
	"fmt"
	"math"

	"github.com/quantbench/quantbench/internal/core"
)

// CoreConfig bundles every tunable parameter from spec.md §6's external
// interface table.
type CoreConfig struct {
	// SignalWeights maps signal name -> weight; renormalized over the
	// trading signals (momentum, mean-reversion). Nil/empty triggers the
	// equal-weight fallback.
	SignalWeights map[string]float64 `json:"signal_weights"`
	// RegimeWeight is the strength of the regime gate's effect on score
	// and confidence, in [0, 1].
	RegimeWeight float64 `json:"regime_weight"`
	// Threshold is the absolute weighted_sum needed to leave "flat".
	Threshold float64 `json:"threshold"`

	MaxLeverage       float64 `json:"max_leverage"`
	MaxDrawdown       float64 `json:"max_drawdown"`   // negative; 0 disables the stop
	MaxDailyLoss      float64 `json:"max_daily_loss"` // negative; 0 disables the stop
	TurnoverThreshold float64 `json:"turnover_threshold"`

	TargetVolDaily  float64 `json:"target_vol_daily"`
	MaxPositionSize float64 `json:"max_position_size"`
	VolFloor        float64 `json:"vol_floor"`

	FixedBps       float64 `json:"fixed_bps"`
	SlippageFactor float64 `json:"slippage_factor"`
	InitialCapital float64 `json:"initial_capital"`
}

// Default returns the parameter bundle from spec.md §6's default column.
func Default() *CoreConfig {
	return &CoreConfig{
		SignalWeights:     nil,
		RegimeWeight:      0.3,
		Threshold:         0.1,
		MaxLeverage:       1.0,
		MaxDrawdown:       0, // off by default
		MaxDailyLoss:      0, // off by default
		TurnoverThreshold: 0.1,
		TargetVolDaily:    0.01,
		MaxPositionSize:   1.0,
		VolFloor:          1e-6,
		FixedBps:          5,
		SlippageFactor:    1e-3,
		InitialCapital:    100000,
	}
}

// Validate rejects non-finite numbers and contradictory bounds before a run
// starts. A weight map summing to <= 0 is not an error here: the ensemble
// falls back to equal weights, per spec.md §4.4.
func (c *CoreConfig) Validate() error {
	if c == nil {
		return fmt.Errorf("%w: nil config", core.ErrInvalidInput)
	}
	fields := map[string]float64{
		"regime_weight":      c.RegimeWeight,
		"threshold":          c.Threshold,
		"max_leverage":       c.MaxLeverage,
		"max_drawdown":       c.MaxDrawdown,
		"max_daily_loss":     c.MaxDailyLoss,
		"turnover_threshold": c.TurnoverThreshold,
		"target_vol_daily":   c.TargetVolDaily,
		"max_position_size":  c.MaxPositionSize,
		"vol_floor":          c.VolFloor,
		"fixed_bps":          c.FixedBps,
		"slippage_factor":    c.SlippageFactor,
		"initial_capital":    c.InitialCapital,
	}
	for name, v := range fields {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: %s is not finite", core.ErrInvalidInput, name)
		}
	}
	if c.InitialCapital <= 0 {
		return fmt.Errorf("%w: initial_capital must be positive", core.ErrInvalidInput)
	}
	if c.RegimeWeight < 0 || c.RegimeWeight > 1 {
		return fmt.Errorf("%w: regime_weight must be in [0,1]", core.ErrInvalidInput)
	}
	if c.MaxDrawdown > 0 {
		return fmt.Errorf("%w: max_drawdown must be <= 0", core.ErrInvalidInput)
	}
	if c.MaxDailyLoss > 0 {
		return fmt.Errorf("%w: max_daily_loss must be <= 0", core.ErrInvalidInput)
	}
	if c.VolFloor <= 0 {
		return fmt.Errorf("%w: vol_floor must be positive", core.ErrInvalidInput)
	}
	for name, w := range c.SignalWeights {
		if math.IsNaN(w) || math.IsInf(w, 0) {
			return fmt.Errorf("%w: signal weight %s is not finite", core.ErrInvalidInput, name)
		}
	}
	return nil
}
