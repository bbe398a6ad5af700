package ensemble

import (
	"errors"

	"github.com/quantbench/quantbench/internal/core"
	"github.com/quantbench/quantbench/internal/signals"
)

// minOptimizeSamples mirrors the walk-forward optimizer's minimum sample
// floor (original source: 20 valid data points before it will fit).
const minOptimizeSamples = 20

// Sample is one training row for OptimizeWeights: the trading-signal scores
// observed at a decision bar and the forward return that followed it.
type Sample struct {
	Scores        map[signals.Name]float64
	ForwardReturn float64
}

// OptimizeWeights fits non-negative weights over the trading signals by
// least squares against forward returns, then normalizes them to sum to 1,
// grounded on weight_optimizer.py's WeightOptimizer.optimize_weights. Rows
// with a non-finite score or target are dropped before fitting; at least
// minOptimizeSamples valid rows are required.
func OptimizeWeights(samples []Sample) (map[signals.Name]float64, error) {
	names := tradingSignals

	rows := make([][]float64, 0, len(samples))
	targets := make([]float64, 0, len(samples))
	for _, s := range samples {
		row := make([]float64, len(names))
		valid := true
		for i, n := range names {
			v := s.Scores[n]
			if !finite(v) {
				valid = false
				break
			}
			row[i] = v
		}
		if !valid || !finite(s.ForwardReturn) {
			continue
		}
		rows = append(rows, row)
		targets = append(targets, s.ForwardReturn)
	}

	if len(rows) < minOptimizeSamples {
		return nil, errors.New("ensemble: insufficient valid samples for weight optimization")
	}

	coef, err := ordinaryLeastSquares(rows, targets)
	if err != nil {
		return nil, err
	}

	// The source fits with a non-negativity constraint (sklearn's
	// positive=True); closed-form OLS has no such constraint, so negative
	// coefficients are floored at zero before the magnitude-normalize step
	// below approximates the same "drop what hurts, weight what helps" intent.
	total := 0.0
	for i, c := range coef {
		if c < 0 {
			coef[i] = 0
		}
		total += coef[i]
	}
	if total <= 0 {
		return nil, core.ErrInternal
	}

	out := make(map[signals.Name]float64, len(names))
	for i, n := range names {
		out[n] = coef[i] / total
	}
	return out, nil
}

func finite(v float64) bool {
	return v == v && v > -1e308 && v < 1e308
}

// ordinaryLeastSquares solves argmin ||Xw - y||^2 via the normal equations
// (XᵀX)w = Xᵀy, solved by Gauss-Jordan elimination. There is no
// non-negative-least-squares or general linear-algebra library anywhere in
// the example pack, so this closed-form solver is hand-rolled rather than
// pulled from an ecosystem dependency (see DESIGN.md).
func ordinaryLeastSquares(x [][]float64, y []float64) ([]float64, error) {
	n := len(x[0])
	ata := make([][]float64, n)
	aty := make([]float64, n)
	for i := range ata {
		ata[i] = make([]float64, n)
	}
	for _, row := range x {
		for i := 0; i < n; i++ {
			for j := 0; j < n; j++ {
				ata[i][j] += row[i] * row[j]
			}
		}
	}
	for k, row := range x {
		for i := 0; i < n; i++ {
			aty[i] += row[i] * y[k]
		}
	}

	return solveLinearSystem(ata, aty)
}

// solveLinearSystem solves Ax=b via Gauss-Jordan elimination with partial
// pivoting. Returns an error if A is singular.
func solveLinearSystem(a [][]float64, b []float64) ([]float64, error) {
	n := len(b)
	aug := make([][]float64, n)
	for i := range aug {
		aug[i] = make([]float64, n+1)
		copy(aug[i], a[i])
		aug[i][n] = b[i]
	}

	for col := 0; col < n; col++ {
		pivot := col
		maxAbs := absF(aug[col][col])
		for r := col + 1; r < n; r++ {
			if absF(aug[r][col]) > maxAbs {
				pivot = r
				maxAbs = absF(aug[r][col])
			}
		}
		if maxAbs < 1e-12 {
			return nil, errors.New("ensemble: singular system in weight optimization")
		}
		aug[col], aug[pivot] = aug[pivot], aug[col]

		pv := aug[col][col]
		for j := col; j <= n; j++ {
			aug[col][j] /= pv
		}
		for r := 0; r < n; r++ {
			if r == col {
				continue
			}
			factor := aug[r][col]
			for j := col; j <= n; j++ {
				aug[r][j] -= factor * aug[col][j]
			}
		}
	}

	out := make([]float64, n)
	for i := range out {
		out[i] = aug[i][n]
	}
	return out, nil
}
