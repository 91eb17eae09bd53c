// Package store persists experiments, prompt templates and A/B tests.
// Two backends implement the same interface: Postgres for real
// deployments and an in-memory map store for demo mode and tests.
package store

import (
	"context"

	"github.com/promptlab/promptlab/internal/domain"
)

// ExperimentFilter narrows history listings. A zero filter returns the
// most recent DefaultLimit experiments.
type ExperimentFilter struct {
	Limit    int
	Offset   int
	Provider domain.Provider
}

// DefaultLimit is applied when a filter leaves Limit unset.
const DefaultLimit = 100

// RatedExperiment is a dashboard row for the top-rated listing.
type RatedExperiment struct {
	ID     string `json:"id"`
	Prompt string `json:"prompt"`
	Rating int    `json:"rating"`
}

// DashboardStats aggregates stored history for the analytics dashboard.
type DashboardStats struct {
	TotalExperiments int               `json:"total_experiments"`
	TotalRuns        int               `json:"total_runs"`
	ProviderCounts   map[string]int    `json:"provider_counts"`
	AverageRating    float64           `json:"average_rating"`
	RecentActivity   int               `json:"recent_activity"`
	TotalCostUSD     float64           `json:"total_cost_usd"`
	TopRated         []RatedExperiment `json:"top_rated,omitempty"`
}

type Store interface {
	SaveExperiment(ctx context.Context, exp *domain.Experiment) error
	GetExperiment(ctx context.Context, id string) (*domain.Experiment, error)
	ListExperiments(ctx context.Context, filter ExperimentFilter) ([]*domain.Experiment, error)
	UpdateRating(ctx context.Context, id string, rating int, notes string) error

	SaveTemplate(ctx context.Context, t *domain.PromptTemplate) error
	GetTemplate(ctx context.Context, id string) (*domain.PromptTemplate, error)
	ListTemplates(ctx context.Context, category string) ([]*domain.PromptTemplate, error)
	DeleteTemplate(ctx context.Context, id string) error

	SaveABTest(ctx context.Context, test *domain.ABTest) error
	UpdateABTest(ctx context.Context, test *domain.ABTest) error
	GetABTest(ctx context.Context, id string) (*domain.ABTest, error)

	Stats(ctx context.Context) (*DashboardStats, error)
	Ping(ctx context.Context) error
}
