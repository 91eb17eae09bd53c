package abtest

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/promptlab/promptlab/internal/domain"
)

func abConfig(t *testing.T, p domain.Provider, model string) domain.ModelConfig {
	t.Helper()
	cfg, err := domain.NewModelConfig(domain.ModelConfigParams{Provider: p, ModelName: model})
	if err != nil {
		t.Fatalf("build config: %v", err)
	}
	return cfg
}

type stubDispatcher struct {
	mu      sync.Mutex
	calls   int
	latency map[domain.Provider]float64
}

func (d *stubDispatcher) Dispatch(ctx context.Context, prompt string, cfg domain.ModelConfig, runNumber int) (domain.RunResult, error) {
	d.mu.Lock()
	d.calls++
	d.mu.Unlock()

	lat := d.latency[cfg.Provider]
	return domain.RunResult{
		ID:        uuid.NewString(),
		Prompt:    prompt,
		Config:    cfg,
		RunNumber: runNumber,
		Outcome:   domain.Outcome{Status: domain.StatusSucceeded, Text: "ok"},
		Metrics: domain.MetricsSnapshot{
			ResponseLength: 2,
			TokenCount:     10,
			LatencyMs:      lat,
			CostEstimate:   lat / 1000,
		},
	}, nil
}

type stubRecorder struct {
	mu       sync.Mutex
	statuses []string
	err      error
}

func (r *stubRecorder) UpdateABTest(ctx context.Context, test *domain.ABTest) error {
	if r.err != nil {
		return r.err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses = append(r.statuses, test.Status)
	return nil
}

func TestNewValidation(t *testing.T) {
	valid := Params{
		Name:     "latency shootout",
		VariantA: abConfig(t, domain.ProviderOpenAI, "gpt-4"),
		VariantB: abConfig(t, domain.ProviderAnthropic, "claude-3-sonnet"),
		Metric:   domain.MetricLatency,
	}

	test, err := New(valid)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if test.ID == "" || test.Status != domain.ABTestCreated {
		t.Errorf("unexpected test: %+v", test)
	}
	if test.TrafficSplit != 0.5 {
		t.Errorf("expected default split 0.5, got %f", test.TrafficSplit)
	}

	tests := []struct {
		name   string
		mutate func(*Params)
	}{
		{"empty name", func(p *Params) { p.Name = "  " }},
		{"split below zero", func(p *Params) { s := -0.1; p.TrafficSplit = &s }},
		{"split above one", func(p *Params) { s := 1.5; p.TrafficSplit = &s }},
		{"unknown metric", func(p *Params) { p.Metric = "throughput" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := valid
			tt.mutate(&p)
			if _, err := New(p); !errors.Is(err, domain.ErrInvalidRequest) {
				t.Errorf("expected ErrInvalidRequest, got %v", err)
			}
		})
	}

	bad := valid
	bad.VariantB.Temperature = 3.0
	if _, err := New(bad); !errors.Is(err, domain.ErrInvalidModelConfig) {
		t.Errorf("expected ErrInvalidModelConfig, got %v", err)
	}
}

func TestWinner(t *testing.T) {
	summary := func(metric string, avg float64) domain.AggregateSummary {
		return domain.AggregateSummary{
			Metrics:        map[string]domain.MetricStats{metric: {Avg: avg}},
			TotalResponses: 1,
			SuccessRate:    1,
		}
	}

	tests := []struct {
		name   string
		metric domain.SuccessMetric
		a, b   domain.AggregateSummary
		want   string
	}{
		{
			name:   "lower latency wins",
			metric: domain.MetricLatency,
			a:      summary("latency_ms", 120),
			b:      summary("latency_ms", 300),
			want:   WinnerA,
		},
		{
			name:   "lower cost wins",
			metric: domain.MetricCost,
			a:      summary("cost_estimate", 0.02),
			b:      summary("cost_estimate", 0.01),
			want:   WinnerB,
		},
		{
			name:   "higher response length wins",
			metric: domain.MetricResponseLength,
			a:      summary("response_length", 180),
			b:      summary("response_length", 420),
			want:   WinnerB,
		},
		{
			name:   "equal means resolve to no winner",
			metric: domain.MetricLatency,
			a:      summary("latency_ms", 150),
			b:      summary("latency_ms", 150),
			want:   "",
		},
		{
			name:   "variant without successes cannot win",
			metric: domain.MetricLatency,
			a:      summary("latency_ms", 150),
			b:      domain.AggregateSummary{},
			want:   "",
		},
		{
			name:   "user rating needs ratings",
			metric: domain.MetricUserRating,
			a:      summary("latency_ms", 100),
			b:      summary("latency_ms", 200),
			want:   "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := winner(tt.metric, tt.a, tt.b); got != tt.want {
				t.Errorf("winner() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRunnerRunsSamplesAndPicksWinner(t *testing.T) {
	dispatcher := &stubDispatcher{latency: map[domain.Provider]float64{
		domain.ProviderOpenAI:    100,
		domain.ProviderAnthropic: 300,
	}}
	recorder := &stubRecorder{}
	runner := NewRunner(dispatcher, recorder, 4, 1)

	test := &domain.ABTest{
		ID:           "ab-1",
		Name:         "latency shootout",
		VariantA:     abConfig(t, domain.ProviderOpenAI, "gpt-4"),
		VariantB:     abConfig(t, domain.ProviderAnthropic, "claude-3-sonnet"),
		TrafficSplit: 0.5,
		Metric:       domain.MetricLatency,
		Status:       domain.ABTestCreated,
	}

	if err := runner.Run(context.Background(), test, "Compare latency.", 10); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if dispatcher.calls != 10 {
		t.Errorf("expected 10 dispatches, got %d", dispatcher.calls)
	}
	if test.Status != domain.ABTestCompleted || test.CompletedAt == nil {
		t.Errorf("test not completed: status=%s completedAt=%v", test.Status, test.CompletedAt)
	}
	if test.SummaryA == nil || test.SummaryB == nil {
		t.Fatalf("summaries missing: %+v", test)
	}
	if got := test.SummaryA.TotalResponses + test.SummaryB.TotalResponses; got != 10 {
		t.Errorf("expected 10 samples across variants, got %d", got)
	}
	if test.SummaryA.TotalResponses == 0 || test.SummaryB.TotalResponses == 0 {
		t.Fatalf("expected both variants sampled: a=%d b=%d",
			test.SummaryA.TotalResponses, test.SummaryB.TotalResponses)
	}
	if test.Winner != WinnerA {
		t.Errorf("expected %s to win on latency, got %q", WinnerA, test.Winner)
	}
	if len(recorder.statuses) != 2 || recorder.statuses[0] != domain.ABTestRunning || recorder.statuses[1] != domain.ABTestCompleted {
		t.Errorf("unexpected persisted transitions: %v", recorder.statuses)
	}
}

func TestRunnerSplitSendsAllSamplesToA(t *testing.T) {
	dispatcher := &stubDispatcher{latency: map[domain.Provider]float64{
		domain.ProviderOpenAI:    100,
		domain.ProviderAnthropic: 300,
	}}
	recorder := &stubRecorder{}
	runner := NewRunner(dispatcher, recorder, 2, 7)

	test := &domain.ABTest{
		ID:           "ab-2",
		VariantA:     abConfig(t, domain.ProviderOpenAI, "gpt-4"),
		VariantB:     abConfig(t, domain.ProviderAnthropic, "claude-3-sonnet"),
		TrafficSplit: 1.0,
		Metric:       domain.MetricLatency,
	}

	if err := runner.Run(context.Background(), test, "Compare latency.", 6); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if test.SummaryA.TotalResponses != 6 || test.SummaryB.TotalResponses != 0 {
		t.Errorf("expected all samples on variant a: a=%d b=%d",
			test.SummaryA.TotalResponses, test.SummaryB.TotalResponses)
	}
	if test.Winner != "" {
		t.Errorf("expected no winner without variant b data, got %q", test.Winner)
	}
}

func TestRunnerRejectsBadInput(t *testing.T) {
	recorder := &stubRecorder{}
	runner := NewRunner(&stubDispatcher{}, recorder, 2, 1)
	test := &domain.ABTest{
		ID:       "ab-3",
		VariantA: abConfig(t, domain.ProviderOpenAI, "gpt-4"),
		VariantB: abConfig(t, domain.ProviderOpenAI, "gpt-3.5-turbo"),
		Metric:   domain.MetricLatency,
	}

	if err := runner.Run(context.Background(), test, "   ", 5); !errors.Is(err, domain.ErrInvalidRequest) {
		t.Errorf("expected ErrInvalidRequest for empty prompt, got %v", err)
	}
	if err := runner.Run(context.Background(), test, "ok", MaxSamples+1); !errors.Is(err, domain.ErrInvalidRequest) {
		t.Errorf("expected ErrInvalidRequest for oversized run, got %v", err)
	}
	if len(recorder.statuses) != 0 {
		t.Errorf("expected no persisted transitions, got %v", recorder.statuses)
	}
}

func TestRunnerSurfacesPersistFailure(t *testing.T) {
	recorder := &stubRecorder{err: errors.New("store down")}
	runner := NewRunner(&stubDispatcher{}, recorder, 2, 1)
	test := &domain.ABTest{
		ID:       "ab-4",
		VariantA: abConfig(t, domain.ProviderOpenAI, "gpt-4"),
		VariantB: abConfig(t, domain.ProviderOpenAI, "gpt-3.5-turbo"),
		Metric:   domain.MetricLatency,
	}

	err := runner.Run(context.Background(), test, "ok", 2)
	if err == nil || !errors.Is(err, recorder.err) {
		t.Errorf("expected persist error, got %v", err)
	}
}

func TestRunnerCanceledContext(t *testing.T) {
	dispatcher := &stubDispatcher{latency: map[domain.Provider]float64{}}
	recorder := &stubRecorder{}
	runner := NewRunner(dispatcher, recorder, 2, 1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	test := &domain.ABTest{
		ID:           "ab-5",
		VariantA:     abConfig(t, domain.ProviderOpenAI, "gpt-4"),
		VariantB:     abConfig(t, domain.ProviderAnthropic, "claude-3-sonnet"),
		TrafficSplit: 0.5,
		Metric:       domain.MetricLatency,
	}

	if err := runner.Run(ctx, test, "Compare latency.", 4); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if dispatcher.calls != 0 {
		t.Errorf("expected no dispatches after cancellation, got %d", dispatcher.calls)
	}
	if test.SummaryA.TotalResponses != 0 || test.SummaryB.TotalResponses != 0 {
		t.Errorf("expected no successful samples: %+v", test)
	}
	if test.Winner != "" {
		t.Errorf("expected no winner, got %q", test.Winner)
	}
}
