// Package batch runs independent per-ticker backtests concurrently. Each
// ticker's engine run has no shared mutable state with any other, so the
// batch is a straightforward fan-out over golang.org/x/sync/errgroup.
package batch

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/quantbench/quantbench/internal/backtest"
	"github.com/quantbench/quantbench/internal/bars"
	"github.com/quantbench/quantbench/internal/config"
)

// Job is one ticker's normalized bar series to backtest.
type Job struct {
	Ticker string
	Series bars.Series
}

// Outcome pairs a job's ticker with its result or error.
type Outcome struct {
	Ticker string
	Result backtest.Result
	Err    error
}

// RunMany runs one backtest engine per job concurrently, bounded by
// maxParallel simultaneous runs (0 or negative means unbounded). A job
// failure is captured in its own Outcome.Err and never aborts the other
// jobs in the batch.
func RunMany(ctx context.Context, cfg *config.CoreConfig, jobs []Job, maxParallel int) []Outcome {
	outcomes := make([]Outcome, len(jobs))
	g, _ := errgroup.WithContext(ctx)
	if maxParallel > 0 {
		g.SetLimit(maxParallel)
	}

	for i, job := range jobs {
		i, job := i, job
		g.Go(func() error {
			engine := backtest.New(cfg)
			res, err := engine.Run(job.Ticker, job.Series)
			outcomes[i] = Outcome{Ticker: job.Ticker, Result: res, Err: err}
			return nil
		})
	}
	_ = g.Wait()

	return outcomes
}
