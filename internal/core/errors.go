// Package core declares the boundary error taxonomy shared by every
// pipeline stage: invalid configuration, insufficient history, a designed
// halt, and internal invariant violations. Internal functions never panic
// on bad input and never use exceptions for control flow; they return one
// of these sentinels (wrapped with context via fmt.Errorf("...: %w", ...))
// so callers can distinguish a fatal run from a labeled, non-error outcome.
package core

import "errors"

var (
	// ErrInvalidInput marks a configuration or request error: bad date
	// range, non-positive initial capital, non-finite parameters, weights
	// summing to <= 0 with no fallback available.
	ErrInvalidInput = errors.New("invalid input")

	// ErrInsufficientData marks a bar series too short to warm up the
	// feature engine (fewer than 60 bars).
	ErrInsufficientData = errors.New("insufficient data")

	// ErrInternal marks an invariant violation that should never occur on
	// normalized input (e.g. entry_value > 0 with position == 0). It is
	// reported through the run's logger so tests can detect regressions;
	// the engine still resets the offending state defensively and
	// continues rather than aborting the run.
	ErrInternal = errors.New("internal invariant violation")
)

// HaltReason is not an error. It is attached to a completed backtest result
// to label a run that stopped early because of a drawdown or daily-loss stop,
// per spec: "Drawdown stop and daily-loss stop are designed halts, not
// errors."
type HaltReason string

const (
	HaltNone         HaltReason = ""
	HaltDrawdownStop HaltReason = "drawdown_stop"
	HaltDailyLoss    HaltReason = "daily_loss_stop"
)
