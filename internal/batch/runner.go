// internal/batch/runner.go
package batch

import (
	"context"
	"time"

	"authzbff/internal/observability/logging"

	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency is the default number of scenarios in flight per batch
const DefaultConcurrency = 8

// ScenarioExecutor evaluates one scenario; implementations must not fail
type ScenarioExecutor interface {
	Execute(ctx context.Context, scenario Scenario, index int) Result
}

// Runner drives a batch of scenarios through an executor
type Runner struct {
	executor    ScenarioExecutor
	concurrency int
	logger      *logging.Logger
}

// RunnerConfig holds runner configuration
type RunnerConfig struct {
	// Concurrency is the maximum number of scenarios in flight; 1 runs them sequentially
	Concurrency int
}

// NewRunner creates a new batch runner
func NewRunner(config RunnerConfig, executor ScenarioExecutor, logger *logging.Logger) *Runner {
	concurrency := config.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	return &Runner{
		executor:    executor,
		concurrency: concurrency,
		logger:      logger.WithModule("batch.runner"),
	}
}

// Run evaluates every scenario and returns one result per scenario in submission order.
// A failing scenario never stops the others.
func (r *Runner) Run(ctx context.Context, scenarios []Scenario) []Result {
	results := make([]Result, len(scenarios))
	if len(scenarios) == 0 {
		return results
	}

	limit := r.concurrency
	if limit > len(scenarios) {
		limit = len(scenarios)
	}

	logger := logging.FromContext(ctx, r.logger)
	logger.Debug("Batch started", "scenarios", len(scenarios), "concurrency", limit)
	start := time.Now()

	var g errgroup.Group
	g.SetLimit(limit)
	for i := range scenarios {
		g.Go(func() error {
			// each worker owns results[i]
			results[i] = r.executor.Execute(ctx, scenarios[i], i)
			return nil
		})
	}
	_ = g.Wait()

	logger.Debug("Batch finished",
		"scenarios", len(scenarios),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return results
}
