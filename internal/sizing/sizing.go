// Package sizing converts an ensemble forecast into a position-size
// fraction of equity, using volatility targeting (spec.md §4.5).
package sizing

import (
	"github.com/quantbench/quantbench/internal/ensemble"
)

// VolTarget computes the vol-targeted position size, as a fraction of
// equity in [0, maxSize]. realizedVolDaily and targetVolDaily must be
// expressed in the same time unit — passing an annualized realized vol
// against a daily target silently understates size by roughly √252.
func VolTarget(direction ensemble.Direction, confidence, realizedVolDaily, targetVolDaily, maxSize, volFloor float64) float64 {
	if direction == ensemble.Flat {
		return 0
	}
	denom := realizedVolDaily
	if denom < volFloor {
		denom = volFloor
	}
	size := (targetVolDaily / denom) * confidence
	return clip(size, 0, maxSize)
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
