// Package clampx provides a generic numeric clamp helper. It is used by the
// risk package's leverage cap; the signals, ensemble, sizing, and metrics
// packages keep their own local float64 clip helpers.
package clampx

import "golang.org/x/exp/constraints"

// Clamp restricts v to [lo, hi].
func Clamp[T constraints.Float](v, lo, hi T) T {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
