package store

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/promptlab/promptlab/internal/domain"
)

// Memory is the map-backed store used in demo mode and tests.
type Memory struct {
	mu          sync.RWMutex
	experiments map[string]*domain.Experiment
	templates   map[string]*domain.PromptTemplate
	abtests     map[string]*domain.ABTest
}

func NewMemory() *Memory {
	return &Memory{
		experiments: make(map[string]*domain.Experiment),
		templates:   make(map[string]*domain.PromptTemplate),
		abtests:     make(map[string]*domain.ABTest),
	}
}

func (m *Memory) SaveExperiment(ctx context.Context, exp *domain.Experiment) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.experiments[exp.ID] = exp
	return nil
}

func (m *Memory) GetExperiment(ctx context.Context, id string) (*domain.Experiment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	exp, ok := m.experiments[id]
	if !ok {
		return nil, domain.ErrExperimentNotFound
	}
	return exp, nil
}

func (m *Memory) ListExperiments(ctx context.Context, filter ExperimentFilter) ([]*domain.Experiment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	limit := filter.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}

	all := make([]*domain.Experiment, 0, len(m.experiments))
	for _, exp := range m.experiments {
		if filter.Provider != "" && !usesProvider(exp, filter.Provider) {
			continue
		}
		all = append(all, exp)
	}
	sort.Slice(all, func(i, j int) bool {
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})

	if filter.Offset >= len(all) {
		return nil, nil
	}
	all = all[filter.Offset:]
	if len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

func usesProvider(exp *domain.Experiment, p domain.Provider) bool {
	for _, res := range exp.Results {
		if res.Config.Provider == p {
			return true
		}
	}
	return false
}

func (m *Memory) UpdateRating(ctx context.Context, id string, rating int, notes string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	exp, ok := m.experiments[id]
	if !ok {
		return domain.ErrExperimentNotFound
	}
	exp.Rating = &rating
	if notes != "" {
		exp.Notes = notes
	}
	return nil
}

func (m *Memory) SaveTemplate(ctx context.Context, t *domain.PromptTemplate) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.templates[t.ID] = t
	return nil
}

func (m *Memory) GetTemplate(ctx context.Context, id string) (*domain.PromptTemplate, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	t, ok := m.templates[id]
	if !ok {
		return nil, domain.ErrTemplateNotFound
	}
	return t, nil
}

func (m *Memory) ListTemplates(ctx context.Context, category string) ([]*domain.PromptTemplate, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var templates []*domain.PromptTemplate
	for _, t := range m.templates {
		if category != "" && t.Category != category {
			continue
		}
		templates = append(templates, t)
	}
	sort.Slice(templates, func(i, j int) bool {
		return templates[i].Name < templates[j].Name
	})
	return templates, nil
}

func (m *Memory) DeleteTemplate(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.templates[id]; !ok {
		return domain.ErrTemplateNotFound
	}
	delete(m.templates, id)
	return nil
}

func (m *Memory) SaveABTest(ctx context.Context, test *domain.ABTest) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.abtests[test.ID] = test
	return nil
}

func (m *Memory) UpdateABTest(ctx context.Context, test *domain.ABTest) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.abtests[test.ID]; !ok {
		return domain.ErrABTestNotFound
	}
	m.abtests[test.ID] = test
	return nil
}

func (m *Memory) GetABTest(ctx context.Context, id string) (*domain.ABTest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	test, ok := m.abtests[id]
	if !ok {
		return nil, domain.ErrABTestNotFound
	}
	return test, nil
}

func (m *Memory) Stats(ctx context.Context) (*DashboardStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := &DashboardStats{
		TotalExperiments: len(m.experiments),
		ProviderCounts:   make(map[string]int),
	}

	weekAgo := time.Now().UTC().Add(-7 * 24 * time.Hour)
	var ratingSum, ratingCount int
	var rated []RatedExperiment

	for _, exp := range m.experiments {
		if exp.CreatedAt.After(weekAgo) {
			stats.RecentActivity++
		}
		if exp.Rating != nil {
			ratingSum += *exp.Rating
			ratingCount++
			rated = append(rated, RatedExperiment{ID: exp.ID, Prompt: exp.Prompt, Rating: *exp.Rating})
		}
		for _, res := range exp.Results {
			stats.TotalRuns++
			stats.ProviderCounts[string(res.Config.Provider)]++
			stats.TotalCostUSD += res.Metrics.CostEstimate
		}
	}

	if ratingCount > 0 {
		stats.AverageRating = math.Round(float64(ratingSum)/float64(ratingCount)*100) / 100
	}

	sort.Slice(rated, func(i, j int) bool { return rated[i].Rating > rated[j].Rating })
	if len(rated) > 5 {
		rated = rated[:5]
	}
	stats.TopRated = rated

	return stats, nil
}

func (m *Memory) Ping(ctx context.Context) error {
	return nil
}
