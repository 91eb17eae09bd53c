package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/promptlab/promptlab/internal/domain"
	"github.com/promptlab/promptlab/internal/metrics"
	"github.com/promptlab/promptlab/internal/provider"
	"github.com/promptlab/promptlab/internal/scoring"
	"github.com/promptlab/promptlab/internal/telemetry"
)

const DefaultTimeout = 30 * time.Second

// Notifier receives degradation events when a live call gets replaced by
// the mock generator.
type Notifier interface {
	ProviderDegraded(ctx context.Context, p domain.Provider, kind domain.ErrorKind, message string)
}

type Config struct {
	Adapters map[domain.Provider]provider.Adapter
	Fallback *Generator
	Scorer   *scoring.Engine
	Notifier Notifier
	DemoMode bool
	Timeout  time.Duration
}

// Dispatcher routes one generation unit to its provider adapter, classifies
// failures, and degrades to the mock generator where recovery is allowed.
// Exactly two failure shapes cross this boundary as errors: an unconfigured
// provider, and a provider failure classified as other. Quota and auth
// failures never do; they come back as fallback-marked successes.
type Dispatcher struct {
	adapters map[domain.Provider]provider.Adapter
	fallback *Generator
	scorer   *scoring.Engine
	notifier Notifier
	demoMode bool
	timeout  time.Duration
}

func New(cfg Config) *Dispatcher {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Dispatcher{
		adapters: cfg.Adapters,
		fallback: cfg.Fallback,
		scorer:   cfg.Scorer,
		notifier: cfg.Notifier,
		demoMode: cfg.DemoMode,
		timeout:  timeout,
	}
}

func (d *Dispatcher) Dispatch(ctx context.Context, prompt string, cfg domain.ModelConfig, runNumber int) (domain.RunResult, error) {
	start := time.Now()

	ctx, span := telemetry.StartSpan(ctx, "dispatch.generate")
	defer span.End()
	telemetry.AddRunAttributes(span, string(cfg.Provider), cfg.ModelName, runNumber)

	result := domain.RunResult{
		ID:        uuid.NewString(),
		Prompt:    prompt,
		Config:    cfg,
		RunNumber: runNumber,
		CreatedAt: start.UTC(),
	}

	if d.demoMode {
		outcome, snap := d.fallback.Generate(prompt, cfg, 0, "")
		result.Outcome = outcome
		result.Metrics = snap
		telemetry.AddFallbackAttributes(span, "demo")
		metrics.RecordGeneration(string(cfg.Provider), cfg.ModelName, string(domain.StatusFallback), time.Since(start).Seconds())
		return result, nil
	}

	adapter, ok := d.adapters[cfg.Provider]
	if !ok {
		err := fmt.Errorf("%w: %s", domain.ErrProviderNotConfigured, cfg.Provider)
		result.Outcome = domain.Outcome{
			Status:    domain.StatusFailed,
			ErrorKind: domain.ErrorKindOther,
			Error:     err.Error(),
		}
		result.Metrics = d.scorer.Minimal("", time.Since(start))
		telemetry.AddErrorAttribute(span, err)
		metrics.RecordGeneration(string(cfg.Provider), cfg.ModelName, string(domain.StatusFailed), time.Since(start).Seconds())
		return result, err
	}

	callCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	res, err := adapter.Generate(callCtx, prompt, cfg)
	elapsed := time.Since(start)

	if err == nil {
		result.Outcome = domain.Outcome{
			Status: domain.StatusSucceeded,
			Text:   res.Text,
			Usage:  res.Usage,
		}
		result.Metrics = d.scorer.Compute(res.Text, cfg.ModelName, elapsed, res.Usage)
		if res.Usage != nil {
			telemetry.AddTokenAttributes(span, res.Usage.PromptTokens, res.Usage.CompletionTokens)
			metrics.RecordTokens(string(cfg.Provider), cfg.ModelName, res.Usage.PromptTokens, res.Usage.CompletionTokens)
		}
		telemetry.AddCostAttribute(span, result.Metrics.CostEstimate)
		metrics.RecordCost(string(cfg.Provider), cfg.ModelName, result.Metrics.CostEstimate)
		metrics.RecordGeneration(string(cfg.Provider), cfg.ModelName, string(domain.StatusSucceeded), elapsed.Seconds())
		return result, nil
	}

	if ctx.Err() != nil {
		// The caller's context ended, not just the per-call deadline. Skip
		// keyword classification: a canceled unit is always a plain failure.
		slog.Warn("dispatch canceled",
			"provider", cfg.Provider,
			"model", cfg.ModelName,
			"error", err)
		result.Outcome = domain.Outcome{
			Status:    domain.StatusFailed,
			ErrorKind: domain.ErrorKindOther,
			Error:     err.Error(),
		}
		result.Metrics = d.scorer.Minimal("", elapsed)
		telemetry.AddErrorAttribute(span, err)
		metrics.RecordGeneration(string(cfg.Provider), cfg.ModelName, string(domain.StatusFailed), elapsed.Seconds())
		return result, fmt.Errorf("generate with %s: %w", cfg.Provider, err)
	}

	kind := Classify(err)
	metrics.RecordProviderError(string(cfg.Provider), string(kind))

	switch kind {
	case domain.ErrorKindQuota, domain.ErrorKindAuth:
		slog.Warn("provider failed, serving fallback",
			"provider", cfg.Provider,
			"model", cfg.ModelName,
			"kind", kind,
			"error", err)
		if d.notifier != nil {
			d.notifier.ProviderDegraded(ctx, cfg.Provider, kind, err.Error())
		}
		outcome, snap := d.fallback.Generate(prompt, cfg, elapsed, kind)
		result.Outcome = outcome
		result.Metrics = snap
		telemetry.AddFallbackAttributes(span, string(kind))
		metrics.RecordFallback(string(cfg.Provider), string(kind))
		metrics.RecordGeneration(string(cfg.Provider), cfg.ModelName, string(domain.StatusFallback), time.Since(start).Seconds())
		return result, nil
	default:
		slog.Error("provider failed",
			"provider", cfg.Provider,
			"model", cfg.ModelName,
			"error", err)
		result.Outcome = domain.Outcome{
			Status:    domain.StatusFailed,
			ErrorKind: kind,
			Error:     err.Error(),
		}
		result.Metrics = d.scorer.Minimal("", elapsed)
		telemetry.AddErrorAttribute(span, err)
		metrics.RecordGeneration(string(cfg.Provider), cfg.ModelName, string(domain.StatusFailed), elapsed.Seconds())
		return result, fmt.Errorf("generate with %s: %w", cfg.Provider, err)
	}
}

// Providers lists the configured provider tags.
func (d *Dispatcher) Providers() []domain.Provider {
	ps := make([]domain.Provider, 0, len(d.adapters))
	for p := range d.adapters {
		ps = append(ps, p)
	}
	return ps
}

// DemoMode reports whether the dispatcher bypasses adapters entirely.
func (d *Dispatcher) DemoMode() bool {
	return d.demoMode
}
