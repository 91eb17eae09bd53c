package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	GenerationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "promptlab_generations_total",
			Help: "Total number of generation attempts",
		},
		[]string{"provider", "model", "status"},
	)

	GenerationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "promptlab_generation_duration_seconds",
			Help:    "Generation duration in seconds, including fallback delays",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"provider", "model"},
	)

	FallbacksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "promptlab_fallbacks_total",
			Help: "Total number of mock fallback responses served",
		},
		[]string{"provider", "cause"},
	)

	TokensTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "promptlab_tokens_total",
			Help: "Total number of tokens processed",
		},
		[]string{"provider", "model", "type"},
	)

	CostTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "promptlab_cost_usd_total",
			Help: "Total estimated cost in USD",
		},
		[]string{"provider", "model"},
	)

	ProviderErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "promptlab_provider_errors_total",
			Help: "Total number of provider errors by classified kind",
		},
		[]string{"provider", "kind"},
	)

	ExperimentsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "promptlab_experiments_total",
			Help: "Total number of experiments run",
		},
		[]string{"status"},
	)

	ExperimentDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "promptlab_experiment_duration_seconds",
			Help:    "Wall-clock duration of a full experiment batch",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
	)

	ActiveRuns = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "promptlab_active_runs",
			Help: "Number of generation units currently in flight",
		},
	)

	RateLimitHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "promptlab_rate_limit_hits_total",
			Help: "Total number of rejected requests due to rate limiting",
		},
	)

	ABTestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "promptlab_ab_tests_total",
			Help: "Total number of completed A/B test runs",
		},
		[]string{"outcome"},
	)
)

func RecordGeneration(provider, model, status string, durationSec float64) {
	GenerationsTotal.WithLabelValues(provider, model, status).Inc()
	GenerationDuration.WithLabelValues(provider, model).Observe(durationSec)
}

func RecordFallback(provider, cause string) {
	FallbacksTotal.WithLabelValues(provider, cause).Inc()
}

func RecordTokens(provider, model string, promptTokens, completionTokens int) {
	TokensTotal.WithLabelValues(provider, model, "prompt").Add(float64(promptTokens))
	TokensTotal.WithLabelValues(provider, model, "completion").Add(float64(completionTokens))
}

func RecordCost(provider, model string, costUSD float64) {
	CostTotal.WithLabelValues(provider, model).Add(costUSD)
}

func RecordProviderError(provider, kind string) {
	ProviderErrors.WithLabelValues(provider, kind).Inc()
}

func RecordExperiment(status string, durationSec float64) {
	ExperimentsTotal.WithLabelValues(status).Inc()
	ExperimentDuration.Observe(durationSec)
}

func IncActiveRuns() {
	ActiveRuns.Inc()
}

func DecActiveRuns() {
	ActiveRuns.Dec()
}

func RecordRateLimitHit() {
	RateLimitHits.Inc()
}

func RecordABTest(outcome string) {
	ABTestsTotal.WithLabelValues(outcome).Inc()
}
