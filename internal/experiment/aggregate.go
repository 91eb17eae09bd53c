package experiment

import "github.com/promptlab/promptlab/internal/domain"

// Aggregate folds a batch of run results into summary statistics.
// Failed runs are excluded from every metric, while fallback runs count
// the same as real successes so degraded batches still produce a
// usable summary. The success rate is measured against the full batch,
// so a batch with hard failures reports a rate below 1.
func Aggregate(results []domain.RunResult) domain.AggregateSummary {
	successes := make([]domain.RunResult, 0, len(results))
	for _, res := range results {
		if res.Outcome.Success() {
			successes = append(successes, res)
		}
	}

	summary := domain.AggregateSummary{TotalResponses: len(successes)}
	if len(results) > 0 {
		summary.SuccessRate = float64(len(successes)) / float64(len(results))
	}
	if len(successes) == 0 {
		return summary
	}

	summary.Metrics = map[string]domain.MetricStats{
		"response_length": stats(successes, func(r domain.RunResult) float64 { return float64(r.Metrics.ResponseLength) }),
		"token_count":     stats(successes, func(r domain.RunResult) float64 { return float64(r.Metrics.TokenCount) }),
		"latency_ms":      stats(successes, func(r domain.RunResult) float64 { return r.Metrics.LatencyMs }),
		"cost_estimate":   stats(successes, func(r domain.RunResult) float64 { return r.Metrics.CostEstimate }),
	}
	return summary
}

func stats(results []domain.RunResult, metric func(domain.RunResult) float64) domain.MetricStats {
	s := domain.MetricStats{Min: metric(results[0]), Max: metric(results[0])}
	var sum float64
	for _, res := range results {
		v := metric(res)
		sum += v
		if v < s.Min {
			s.Min = v
		}
		if v > s.Max {
			s.Max = v
		}
	}
	s.Avg = sum / float64(len(results))
	return s
}
