// internal/batch/summary.go
package batch

import (
	"math"

	"authzbff/internal/authz"
)

// Summarize aggregates results into counts, latency statistics and a decision tally.
// The result does not depend on the order of the input.
func Summarize(results []Result) Summary {
	summary := Summary{Total: len(results)}
	if len(results) == 0 {
		return summary
	}

	var sum int64
	summary.MinLatencyMs = results[0].LatencyMs
	summary.MaxLatencyMs = results[0].LatencyMs

	for _, r := range results {
		if r.Success {
			summary.Successful++
		}

		sum += r.LatencyMs
		summary.MinLatencyMs = min(summary.MinLatencyMs, r.LatencyMs)
		summary.MaxLatencyMs = max(summary.MaxLatencyMs, r.LatencyMs)

		switch r.Decision.Normalize() {
		case authz.Allow:
			summary.AllowCount++
		case authz.Deny:
			summary.DenyCount++
		default:
			summary.UnspecifiedCount++
		}
	}

	summary.Failed = summary.Total - summary.Successful
	summary.AvgLatencyMs = int64(math.Round(float64(sum) / float64(len(results))))

	return summary
}
