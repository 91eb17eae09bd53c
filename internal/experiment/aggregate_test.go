package experiment

import (
	"testing"

	"github.com/promptlab/promptlab/internal/domain"
)

func runWith(status domain.RunStatus, snap domain.MetricsSnapshot) domain.RunResult {
	return domain.RunResult{Outcome: domain.Outcome{Status: status}, Metrics: snap}
}

func TestAggregateEmptyBatch(t *testing.T) {
	summary := Aggregate(nil)

	if summary.TotalResponses != 0 {
		t.Errorf("expected 0 responses, got %d", summary.TotalResponses)
	}
	if summary.SuccessRate != 0 {
		t.Errorf("expected 0 success rate, got %f", summary.SuccessRate)
	}
	if summary.Metrics != nil {
		t.Errorf("expected no metrics for empty batch, got %+v", summary.Metrics)
	}
}

func TestAggregateAllFailed(t *testing.T) {
	results := []domain.RunResult{
		runWith(domain.StatusFailed, domain.MetricsSnapshot{}),
		runWith(domain.StatusFailed, domain.MetricsSnapshot{}),
	}

	summary := Aggregate(results)

	if summary.TotalResponses != 0 {
		t.Errorf("expected 0 responses, got %d", summary.TotalResponses)
	}
	if summary.SuccessRate != 0 {
		t.Errorf("expected 0 success rate, got %f", summary.SuccessRate)
	}
	if summary.Metrics != nil {
		t.Errorf("failed runs must not produce metrics, got %+v", summary.Metrics)
	}
}

func TestAggregateMixedBatch(t *testing.T) {
	results := []domain.RunResult{
		runWith(domain.StatusSucceeded, domain.MetricsSnapshot{ResponseLength: 100, TokenCount: 20, LatencyMs: 100, CostEstimate: 0.01}),
		runWith(domain.StatusSucceeded, domain.MetricsSnapshot{ResponseLength: 300, TokenCount: 60, LatencyMs: 300, CostEstimate: 0.03}),
		runWith(domain.StatusFailed, domain.MetricsSnapshot{}),
	}

	summary := Aggregate(results)

	if summary.TotalResponses != 2 {
		t.Errorf("expected 2 responses, got %d", summary.TotalResponses)
	}
	if want := 2.0 / 3.0; summary.SuccessRate != want {
		t.Errorf("expected success rate %f, got %f", want, summary.SuccessRate)
	}

	latency := summary.Metrics["latency_ms"]
	if latency.Avg != 200 || latency.Min != 100 || latency.Max != 300 {
		t.Errorf("unexpected latency stats: %+v", latency)
	}
	length := summary.Metrics["response_length"]
	if length.Avg != 200 || length.Min != 100 || length.Max != 300 {
		t.Errorf("unexpected length stats: %+v", length)
	}
	tokens := summary.Metrics["token_count"]
	if tokens.Avg != 40 || tokens.Min != 20 || tokens.Max != 60 {
		t.Errorf("unexpected token stats: %+v", tokens)
	}
}

func TestAggregateIncludesFallbackRuns(t *testing.T) {
	results := []domain.RunResult{
		runWith(domain.StatusSucceeded, domain.MetricsSnapshot{LatencyMs: 400, TokenCount: 40}),
		runWith(domain.StatusFallback, domain.MetricsSnapshot{LatencyMs: 800, TokenCount: 10}),
	}

	summary := Aggregate(results)

	if summary.TotalResponses != 2 {
		t.Errorf("expected fallback run to count, got %d responses", summary.TotalResponses)
	}
	if summary.SuccessRate != 1 {
		t.Errorf("expected success rate 1, got %f", summary.SuccessRate)
	}
	if latency := summary.Metrics["latency_ms"]; latency.Max != 800 {
		t.Errorf("expected fallback latency in stats, got %+v", latency)
	}
	if tokens := summary.Metrics["token_count"]; tokens.Min != 10 {
		t.Errorf("expected fallback tokens in stats, got %+v", tokens)
	}
}

func TestAggregateSingleRun(t *testing.T) {
	results := []domain.RunResult{
		runWith(domain.StatusSucceeded, domain.MetricsSnapshot{LatencyMs: 250}),
	}

	summary := Aggregate(results)

	latency := summary.Metrics["latency_ms"]
	if latency.Avg != 250 || latency.Min != 250 || latency.Max != 250 {
		t.Errorf("single run must pin avg, min and max: %+v", latency)
	}
}
