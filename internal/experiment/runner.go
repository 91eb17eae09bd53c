// Package experiment runs prompt experiments: each model configuration
// is dispatched a fixed number of times on a bounded worker pool, and
// the surviving outcomes are folded into an aggregate summary.
package experiment

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/promptlab/promptlab/internal/domain"
	"github.com/promptlab/promptlab/internal/metrics"
	"github.com/promptlab/promptlab/internal/telemetry"
)

const (
	// DefaultWorkers bounds how many provider calls run concurrently.
	DefaultWorkers = 4

	// DefaultRuns is applied by callers when a request omits the
	// per-configuration repeat count.
	DefaultRuns = 3

	// MinRuns and MaxRuns bound the per-configuration repeat count.
	MinRuns = 1
	MaxRuns = 10
)

// Dispatcher executes a single generation run against one provider.
type Dispatcher interface {
	Dispatch(ctx context.Context, prompt string, cfg domain.ModelConfig, runNumber int) (domain.RunResult, error)
}

// Request describes one experiment: a prompt tried against a set of
// model configurations, each repeated Runs times.
type Request struct {
	Prompt     string
	TemplateID string
	Configs    []domain.ModelConfig
	Runs       int
	Notes      string
}

func (r *Request) validate() error {
	if strings.TrimSpace(r.Prompt) == "" {
		return fmt.Errorf("%w: prompt must not be empty", domain.ErrInvalidRequest)
	}
	if len(r.Configs) == 0 {
		return fmt.Errorf("%w: at least one model configuration is required", domain.ErrInvalidRequest)
	}
	if r.Runs < MinRuns || r.Runs > MaxRuns {
		return fmt.Errorf("%w: runs must be between %d and %d", domain.ErrInvalidRequest, MinRuns, MaxRuns)
	}
	for i, cfg := range r.Configs {
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("config %d: %w", i, err)
		}
	}
	return nil
}

// Runner owns the worker pool that drives experiment units.
type Runner struct {
	dispatcher Dispatcher
	workers    int
}

// NewRunner creates a runner with the given concurrency bound.
// A non-positive bound falls back to DefaultWorkers.
func NewRunner(dispatcher Dispatcher, workers int) *Runner {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	return &Runner{dispatcher: dispatcher, workers: workers}
}

// Run executes the full experiment and returns it with per-run results
// and an aggregate summary. Only request validation fails the call;
// unit-level provider errors are recorded on their results, and a
// canceled context marks the remaining units failed without touching
// any provider.
func (r *Runner) Run(ctx context.Context, req Request) (*domain.Experiment, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	ctx, span := telemetry.StartSpan(ctx, "experiment.run")
	defer span.End()

	experimentID := uuid.NewString()
	telemetry.AddExperimentAttributes(span, experimentID, len(req.Configs), req.Runs)

	slog.Info("starting experiment",
		"experiment_id", experimentID,
		"configs", len(req.Configs),
		"runs", req.Runs,
		"workers", r.workers)

	start := time.Now()
	units := len(req.Configs) * req.Runs
	results := make([]domain.RunResult, units)

	workers := r.workers
	if workers > units {
		workers = units
	}

	jobs := make(chan int)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				results[idx] = r.runUnit(ctx, req, idx)
			}
		}()
	}

	for idx := 0; idx < units; idx++ {
		jobs <- idx
	}
	close(jobs)
	wg.Wait()

	summary := Aggregate(results)
	duration := time.Since(start)

	status := "completed"
	if ctx.Err() != nil {
		status = "canceled"
	}
	metrics.RecordExperiment(status, duration.Seconds())

	slog.Info("experiment finished",
		"experiment_id", experimentID,
		"status", status,
		"total_responses", summary.TotalResponses,
		"success_rate", summary.SuccessRate,
		"duration_ms", duration.Milliseconds())

	return &domain.Experiment{
		ID:         experimentID,
		Prompt:     req.Prompt,
		TemplateID: req.TemplateID,
		Results:    results,
		Summary:    summary,
		DurationMs: duration.Milliseconds(),
		Notes:      req.Notes,
		CreatedAt:  time.Now().UTC(),
	}, nil
}

// runUnit executes the unit at idx. Unit order is configuration-major:
// every run of config 0 precedes every run of config 1.
func (r *Runner) runUnit(ctx context.Context, req Request, idx int) domain.RunResult {
	cfg := req.Configs[idx/req.Runs]
	runNumber := idx%req.Runs + 1

	if ctx.Err() != nil {
		return canceledResult(req.Prompt, cfg, runNumber, ctx.Err())
	}

	// The returned error is already recorded on the result; at batch
	// level a failed unit is data, not a reason to stop.
	result, _ := r.dispatcher.Dispatch(ctx, req.Prompt, cfg, runNumber)
	return result
}

func canceledResult(prompt string, cfg domain.ModelConfig, runNumber int, cause error) domain.RunResult {
	return domain.RunResult{
		ID:        uuid.NewString(),
		Prompt:    prompt,
		Config:    cfg,
		RunNumber: runNumber,
		Outcome: domain.Outcome{
			Status:    domain.StatusFailed,
			ErrorKind: domain.ErrorKindOther,
			Error:     cause.Error(),
		},
		CreatedAt: time.Now().UTC(),
	}
}
