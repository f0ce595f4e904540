// internal/batch/executor.go
package batch

import (
	"context"
	"fmt"
	"time"

	"authzbff/internal/authz"
	"authzbff/internal/observability/logging"
	"authzbff/internal/observability/metrics"
	"authzbff/internal/rpcerror"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Executor runs a single scenario against the authorization backend
type Executor struct {
	client  authz.Client
	timeout time.Duration
	logger  *logging.Logger
	metrics *metrics.Collector
	now     func() time.Time
}

// ExecutorConfig holds executor configuration
type ExecutorConfig struct {
	// CallTimeout bounds a single backend call; zero means no extra bound
	CallTimeout time.Duration
}

// NewExecutor creates a new scenario executor
func NewExecutor(config ExecutorConfig, client authz.Client, logger *logging.Logger, metricsCollector *metrics.Collector) *Executor {
	return &Executor{
		client:  client,
		timeout: config.CallTimeout,
		logger:  logger.WithModule("batch.executor"),
		metrics: metricsCollector,
		now:     time.Now,
	}
}

// Execute evaluates one scenario and always returns a result.
// Backend failures, timeouts, cancellation and panics become failed results.
func (e *Executor) Execute(ctx context.Context, scenario Scenario, index int) (result Result) {
	name := scenario.DisplayName(index)
	logger := logging.FromContext(ctx, e.logger).With("scenario", name, "index", index)

	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			logger.Error("Authorization client panicked", "panic", fmt.Sprint(r))
			result = e.failure(name, start, status.Error(codes.Internal, ""))
		}
		e.metrics.RecordScenario(string(result.Decision), result.Success)
	}()

	if err := ctx.Err(); err != nil {
		logger.Debug("Scenario skipped: request no longer active", logging.Err(err))
		return e.failure(name, start, err)
	}

	callCtx := ctx
	if e.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	resp, err := e.client.IsAuthorized(callCtx, scenario.AuthzRequest())
	elapsed := time.Since(start)
	if err != nil {
		e.metrics.RecordBackendCall(rpcerror.Code(err), elapsed)
		logger.Debug("Scenario failed",
			logging.Err(err),
			"latency_ms", elapsed.Milliseconds(),
		)
		return e.failure(name, start, err)
	}
	e.metrics.RecordBackendCall("ok", elapsed)

	result = Result{
		ScenarioName: name,
		Decision:     authz.Unspecified,
		LatencyMs:    latencyMillis(elapsed),
		Success:      true,
		Timestamp:    FormatTimestamp(e.now()),
	}
	if resp != nil {
		result.Decision = resp.Decision.Normalize()
		result.DeterminingPolicies = resp.DeterminingPolicies
		result.Errors = resp.Errors
	}

	logger.Debug("Scenario evaluated",
		"decision", result.Decision,
		"latency_ms", result.LatencyMs,
	)
	return result
}

func (e *Executor) failure(name string, start time.Time, err error) Result {
	_, message := rpcerror.Translate(err)
	return Result{
		ScenarioName: name,
		Decision:     authz.Unspecified,
		LatencyMs:    latencyMillis(time.Since(start)),
		Errors:       []string{message},
		Success:      false,
		Timestamp:    FormatTimestamp(e.now()),
	}
}

func latencyMillis(d time.Duration) int64 {
	if d < 0 {
		return 0
	}
	return d.Milliseconds()
}
