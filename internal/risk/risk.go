// Package risk implements the backtest engine's pre-trade and ongoing risk
// constraints: leverage capping, the drawdown and daily-loss kill switches,
// and the turnover gate, grounded on spec.md §4.7 and styled after the
// teacher's engine risk checks (internal/engine/risk.go in the teacher
// repo).
package risk

import (
	"math"

	"github.com/quantbench/quantbench/internal/clampx"
	"github.com/quantbench/quantbench/internal/ensemble"
)

// ClampLeverage clamps a target position size (as a signed fraction of
// equity) to the configured leverage cap.
func ClampLeverage(targetSize, maxLeverage float64) float64 {
	return clampx.Clamp(targetSize, -maxLeverage, maxLeverage)
}

// DrawdownTriggered reports whether current equity has fallen far enough
// below its running peak to trip the drawdown stop. maxDrawdown is
// expressed as a negative fraction, e.g. -0.2 for a 20% stop.
func DrawdownTriggered(equity, peakEquity, maxDrawdown float64) bool {
	if peakEquity <= 0 {
		return false
	}
	drawdown := (equity - peakEquity) / peakEquity
	return drawdown <= maxDrawdown
}

// DailyLossTriggered reports whether a single day's return breached the
// daily-loss stop. maxDailyLoss is expressed as a negative fraction.
func DailyLossTriggered(dailyReturn, maxDailyLoss float64) bool {
	return dailyReturn <= maxDailyLoss
}

// ShouldTrade implements the turnover gate: trading is allowed when the
// ensemble's direction changed since the previous bar, or when confidence
// moved by at least turnoverThreshold.
func ShouldTrade(direction, prevDirection ensemble.Direction, confidence, prevConfidence, turnoverThreshold float64) bool {
	if direction != prevDirection {
		return true
	}
	return math.Abs(confidence-prevConfidence) >= turnoverThreshold
}
