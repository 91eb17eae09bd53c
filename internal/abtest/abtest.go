// Package abtest compares two model configurations over a shared prompt.
// Each sample is assigned to a variant by a seeded RNG draw against the
// traffic split, dispatched like any experiment unit, and the per-variant
// aggregates decide the winner by the configured metric's mean.
package abtest

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/promptlab/promptlab/internal/domain"
	"github.com/promptlab/promptlab/internal/experiment"
	"github.com/promptlab/promptlab/internal/metrics"
)

const (
	// DefaultSamples is applied when a run request omits the sample count.
	DefaultSamples = 10

	// MaxSamples bounds a single A/B run the same way MaxRuns bounds an
	// experiment batch.
	MaxSamples = 100
)

const (
	WinnerA = "variant_a"
	WinnerB = "variant_b"
)

// Params carries the fields needed to create a test. TrafficSplit is a
// pointer so an absent value can default without treating 0 as absent.
type Params struct {
	Name         string
	VariantA     domain.ModelConfig
	VariantB     domain.ModelConfig
	TrafficSplit *float64
	Metric       domain.SuccessMetric
}

// New validates the params and returns a test in the created state.
func New(p Params) (*domain.ABTest, error) {
	name := strings.TrimSpace(p.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: test name must not be empty", domain.ErrInvalidRequest)
	}

	split := 0.5
	if p.TrafficSplit != nil {
		split = *p.TrafficSplit
	}
	if split < 0 || split > 1 {
		return nil, fmt.Errorf("%w: traffic split %.2f outside [0, 1]", domain.ErrInvalidRequest, split)
	}

	if !p.Metric.Valid() {
		return nil, fmt.Errorf("%w: unknown success metric %q", domain.ErrInvalidRequest, p.Metric)
	}

	if err := p.VariantA.Validate(); err != nil {
		return nil, fmt.Errorf("variant a: %w", err)
	}
	if err := p.VariantB.Validate(); err != nil {
		return nil, fmt.Errorf("variant b: %w", err)
	}

	return &domain.ABTest{
		ID:           uuid.NewString(),
		Name:         name,
		VariantA:     p.VariantA,
		VariantB:     p.VariantB,
		TrafficSplit: split,
		Metric:       p.Metric,
		Status:       domain.ABTestCreated,
		CreatedAt:    time.Now().UTC(),
	}, nil
}

// Recorder persists test state transitions.
type Recorder interface {
	UpdateABTest(ctx context.Context, test *domain.ABTest) error
}

// Runner drives A/B samples through the shared dispatch path.
type Runner struct {
	dispatcher experiment.Dispatcher
	recorder   Recorder
	workers    int

	mu  sync.Mutex
	rng *rand.Rand
}

// NewRunner creates a runner. The seed fixes variant assignment, which
// tests rely on; production callers pass time.Now().UnixNano().
func NewRunner(dispatcher experiment.Dispatcher, recorder Recorder, workers int, seed int64) *Runner {
	if workers <= 0 {
		workers = experiment.DefaultWorkers
	}
	return &Runner{
		dispatcher: dispatcher,
		recorder:   recorder,
		workers:    workers,
		rng:        rand.New(rand.NewSource(seed)),
	}
}

// Run executes samples for the test and records the per-variant summaries
// and the winner on it. The test passes through running before landing in
// completed; both transitions are persisted.
func (r *Runner) Run(ctx context.Context, test *domain.ABTest, prompt string, samples int) error {
	if strings.TrimSpace(prompt) == "" {
		return fmt.Errorf("%w: prompt must not be empty", domain.ErrInvalidRequest)
	}
	if samples <= 0 {
		samples = DefaultSamples
	}
	if samples > MaxSamples {
		return fmt.Errorf("%w: samples must not exceed %d", domain.ErrInvalidRequest, MaxSamples)
	}

	test.Status = domain.ABTestRunning
	if err := r.recorder.UpdateABTest(ctx, test); err != nil {
		return fmt.Errorf("record running state: %w", err)
	}

	slog.Info("starting ab test",
		"test_id", test.ID,
		"samples", samples,
		"traffic_split", test.TrafficSplit,
		"metric", string(test.Metric))

	assignments := r.assign(samples, test.TrafficSplit)
	results := make([]domain.RunResult, samples)

	workers := r.workers
	if workers > samples {
		workers = samples
	}

	jobs := make(chan int)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				results[idx] = r.runSample(ctx, prompt, test, assignments[idx], idx+1)
			}
		}()
	}

	for idx := 0; idx < samples; idx++ {
		jobs <- idx
	}
	close(jobs)
	wg.Wait()

	var resultsA, resultsB []domain.RunResult
	for i, res := range results {
		if assignments[i] {
			resultsA = append(resultsA, res)
		} else {
			resultsB = append(resultsB, res)
		}
	}

	summaryA := experiment.Aggregate(resultsA)
	summaryB := experiment.Aggregate(resultsB)
	test.SummaryA = &summaryA
	test.SummaryB = &summaryB
	test.Winner = winner(test.Metric, summaryA, summaryB)
	test.Status = domain.ABTestCompleted
	now := time.Now().UTC()
	test.CompletedAt = &now

	outcome := test.Winner
	if outcome == "" {
		outcome = "none"
	}
	metrics.RecordABTest(outcome)

	slog.Info("ab test finished",
		"test_id", test.ID,
		"winner", test.Winner,
		"samples_a", len(resultsA),
		"samples_b", len(resultsB))

	if err := r.recorder.UpdateABTest(ctx, test); err != nil {
		return fmt.Errorf("record completed state: %w", err)
	}
	return nil
}

// assign draws one boolean per sample: true sends it to variant A.
func (r *Runner) assign(samples int, split float64) []bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	assignments := make([]bool, samples)
	for i := range assignments {
		assignments[i] = r.rng.Float64() < split
	}
	return assignments
}

func (r *Runner) runSample(ctx context.Context, prompt string, test *domain.ABTest, useA bool, runNumber int) domain.RunResult {
	cfg := test.VariantB
	if useA {
		cfg = test.VariantA
	}

	if err := ctx.Err(); err != nil {
		return domain.RunResult{
			ID:        uuid.NewString(),
			Prompt:    prompt,
			Config:    cfg,
			RunNumber: runNumber,
			Outcome: domain.Outcome{
				Status:    domain.StatusFailed,
				ErrorKind: domain.ErrorKindOther,
				Error:     err.Error(),
			},
			CreatedAt: time.Now().UTC(),
		}
	}

	// Sample failures are data for the variant they landed on, same as
	// experiment units.
	result, _ := r.dispatcher.Dispatch(ctx, prompt, cfg, runNumber)
	return result
}

// winner compares the metric means of both variants. Latency and cost
// prefer the lower mean, response length the higher. A user_rating test
// cannot resolve at run time because ratings arrive after the fact, and
// a variant with no successful samples never wins.
func winner(metric domain.SuccessMetric, a, b domain.AggregateSummary) string {
	if metric == domain.MetricUserRating {
		return ""
	}
	if a.Metrics == nil || b.Metrics == nil {
		return ""
	}

	statsA, okA := a.Metrics[string(metric)]
	statsB, okB := b.Metrics[string(metric)]
	if !okA || !okB || statsA.Avg == statsB.Avg {
		return ""
	}

	lowerWins := metric == domain.MetricLatency || metric == domain.MetricCost
	if (statsA.Avg < statsB.Avg) == lowerWins {
		return WinnerA
	}
	return WinnerB
}
