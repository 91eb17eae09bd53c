//go:build integration

package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/promptlab/promptlab/internal/abtest"
	"github.com/promptlab/promptlab/internal/api"
	"github.com/promptlab/promptlab/internal/cost"
	"github.com/promptlab/promptlab/internal/dispatch"
	"github.com/promptlab/promptlab/internal/domain"
	"github.com/promptlab/promptlab/internal/experiment"
	"github.com/promptlab/promptlab/internal/queue"
	"github.com/promptlab/promptlab/internal/ratelimit"
	"github.com/promptlab/promptlab/internal/scoring"
	"github.com/promptlab/promptlab/internal/store"
	"github.com/promptlab/promptlab/internal/template"
)

// setupDemoHandler wires the full stack in demo mode: real memory store,
// real limiter, real runner, mock generator under the dispatcher. No
// credentials, no network.
func setupDemoHandler(t *testing.T, perMinute int) (*api.Handler, *store.Memory) {
	t.Helper()

	st := store.NewMemory()
	for _, tpl := range template.Defaults() {
		tplCopy := tpl
		if err := st.SaveTemplate(context.Background(), &tplCopy); err != nil {
			t.Fatalf("seed template: %v", err)
		}
	}

	scorer := scoring.NewEngine(cost.NewCalculator())
	dispatcher := dispatch.New(dispatch.Config{
		DemoMode: true,
		Fallback: dispatch.NewGenerator(scorer, rand.New(rand.NewSource(42)), func(time.Duration) {}),
		Scorer:   scorer,
	})

	handler := api.NewHandler(api.HandlerConfig{
		Store:      st,
		Runner:     experiment.NewRunner(dispatcher, 4),
		ABRunner:   abtest.NewRunner(dispatcher, st, 4, 42),
		Dispatcher: dispatcher,
		Limiter:    ratelimit.NewInMemory(perMinute),
		Publisher:  queue.NewDirect(st),
		Checkers:   []api.HealthChecker{api.NewStoreHealthChecker(st)},
	})

	return handler, st
}

func postJSON(t *testing.T, handler http.Handler, target string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, target, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return w
}

func TestExperimentLifecycle(t *testing.T) {
	handler, _ := setupDemoHandler(t, 100)

	w := postJSON(t, handler, "/api/experiments", api.ExperimentRequest{
		Prompt: "Explain goroutines to a beginner",
		ModelConfigs: []domain.ModelConfigParams{
			{Provider: domain.ProviderOpenAI, ModelName: "gpt-4"},
			{Provider: domain.ProviderAnthropic, ModelName: "claude-3-haiku-20240307"},
		},
		NumRuns: 2,
		Notes:   "demo sweep",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("run experiment: status = %d: %s", w.Code, w.Body.String())
	}

	var exp domain.Experiment
	if err := json.NewDecoder(w.Body).Decode(&exp); err != nil {
		t.Fatalf("decode experiment: %v", err)
	}
	if len(exp.Results) != 4 {
		t.Fatalf("results = %d, want 4", len(exp.Results))
	}
	for _, res := range exp.Results {
		if res.Outcome.Status != domain.StatusFallback {
			t.Errorf("run %s status = %q, want fallback in demo mode", res.ID, res.Outcome.Status)
		}
	}
	if exp.Summary.SuccessRate != 1.0 {
		t.Errorf("success rate = %v, want 1.0", exp.Summary.SuccessRate)
	}

	// The direct publisher archives inline, so the experiment is
	// immediately readable.
	req := httptest.NewRequest(http.MethodGet, "/api/experiments/"+exp.ID, nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("get experiment: status = %d", rec.Code)
	}

	w = postJSON(t, handler, "/api/experiments/"+exp.ID+"/rating", api.RatingRequest{Rating: 5, Notes: "great"})
	if w.Code != http.StatusMethodNotAllowed {
		// Rating is a PUT; POST must not be routed.
		t.Errorf("post rating: status = %d, want 405", w.Code)
	}

	body, _ := json.Marshal(api.RatingRequest{Rating: 5, Notes: "great"})
	putReq := httptest.NewRequest(http.MethodPut, "/api/experiments/"+exp.ID+"/rating", bytes.NewReader(body))
	putReq.Header.Set("Content-Type", "application/json")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, putReq)
	if rec.Code != http.StatusOK {
		t.Fatalf("update rating: status = %d: %s", rec.Code, rec.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/api/analytics/dashboard", nil)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("dashboard: status = %d", rec.Code)
	}
	var stats store.DashboardStats
	if err := json.NewDecoder(rec.Body).Decode(&stats); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	if stats.TotalExperiments != 1 || stats.TotalRuns != 4 {
		t.Errorf("stats = %+v, want 1 experiment with 4 runs", stats)
	}
	if stats.AverageRating != 5 {
		t.Errorf("average rating = %v, want 5", stats.AverageRating)
	}
}

func TestTemplateLifecycle(t *testing.T) {
	handler, _ := setupDemoHandler(t, 100)

	// Seeded defaults are listed on a fresh store.
	req := httptest.NewRequest(http.MethodGet, "/api/templates", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("list templates: status = %d", rec.Code)
	}
	var templates []*domain.PromptTemplate
	if err := json.NewDecoder(rec.Body).Decode(&templates); err != nil {
		t.Fatalf("decode templates: %v", err)
	}
	if len(templates) != 5 {
		t.Fatalf("seeded templates = %d, want 5", len(templates))
	}

	w := postJSON(t, handler, "/api/templates", api.CreateTemplateRequest{
		Name:     "Summarize",
		Template: "Summarize {{text}} in {{count}} bullet points.",
		Category: domain.CategoryAnalysis,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create template: status = %d: %s", w.Code, w.Body.String())
	}
	var created domain.PromptTemplate
	if err := json.NewDecoder(w.Body).Decode(&created); err != nil {
		t.Fatalf("decode created template: %v", err)
	}

	w = postJSON(t, handler, "/api/templates/render", api.RenderRequest{
		TemplateID: created.ID,
		Variables:  map[string]string{"text": "the report", "count": "3"},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("render: status = %d: %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), "Summarize the report in 3 bullet points.") {
		t.Errorf("render body = %q, want the substituted prompt", w.Body.String())
	}

	delReq := httptest.NewRequest(http.MethodDelete, "/api/templates/"+created.ID, nil)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, delReq)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete template: status = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/templates/"+created.ID, nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("second delete: status = %d, want 404", rec.Code)
	}
}

func TestRateLimiting(t *testing.T) {
	handler, _ := setupDemoHandler(t, 2)

	body := api.ExperimentRequest{
		Prompt:       "hi",
		ModelConfigs: []domain.ModelConfigParams{{Provider: domain.ProviderOpenAI, ModelName: "gpt-4"}},
		NumRuns:      1,
	}

	for i := 0; i < 2; i++ {
		if w := postJSON(t, handler, "/api/experiments", body); w.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d: %s", i, w.Code, w.Body.String())
		}
	}

	w := postJSON(t, handler, "/api/experiments", body)
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("third request: status = %d, want 429", w.Code)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Error("429 response is missing Retry-After")
	}
}

func TestABTestLifecycle(t *testing.T) {
	handler, _ := setupDemoHandler(t, 100)

	w := postJSON(t, handler, "/api/ab-tests", api.ABTestRequest{
		Name:     "model face-off",
		VariantA: domain.ModelConfigParams{Provider: domain.ProviderOpenAI, ModelName: "gpt-4"},
		VariantB: domain.ModelConfigParams{Provider: domain.ProviderAnthropic, ModelName: "claude-3-haiku-20240307"},
		Metric:   domain.MetricResponseLength,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create ab test: status = %d: %s", w.Code, w.Body.String())
	}
	var createResp map[string]string
	if err := json.NewDecoder(w.Body).Decode(&createResp); err != nil {
		t.Fatalf("decode create response: %v", err)
	}
	testID := createResp["test_id"]
	if testID == "" {
		t.Fatal("create response is missing test_id")
	}

	w = postJSON(t, handler, "/api/ab-tests/"+testID+"/run", api.ABRunRequest{
		Prompt:     "Explain goroutines",
		NumSamples: 10,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("run ab test: status = %d: %s", w.Code, w.Body.String())
	}

	req := httptest.NewRequest(http.MethodGet, "/api/ab-tests/"+testID, nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("get ab test: status = %d", rec.Code)
	}
	var test domain.ABTest
	if err := json.NewDecoder(rec.Body).Decode(&test); err != nil {
		t.Fatalf("decode ab test: %v", err)
	}
	if test.Status != domain.ABTestCompleted {
		t.Errorf("status = %q, want %q", test.Status, domain.ABTestCompleted)
	}
	if test.CompletedAt == nil {
		t.Error("completed test is missing completed_at")
	}
	total := 0
	if test.SummaryA != nil {
		total += test.SummaryA.TotalResponses
	}
	if test.SummaryB != nil {
		total += test.SummaryB.TotalResponses
	}
	if total != 10 {
		t.Errorf("total samples = %d, want 10", total)
	}
}

func TestExportAfterExperiment(t *testing.T) {
	handler, _ := setupDemoHandler(t, 100)

	w := postJSON(t, handler, "/api/experiments", api.ExperimentRequest{
		Prompt:       "Explain goroutines",
		ModelConfigs: []domain.ModelConfigParams{{Provider: domain.ProviderOpenAI, ModelName: "gpt-4"}},
		NumRuns:      2,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("run experiment: status = %d", w.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/analytics/export?format=csv", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("export: status = %d", rec.Code)
	}

	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	if len(lines) != 3 {
		t.Errorf("csv lines = %d, want header plus two runs", len(lines))
	}
}

func TestHealthReadyWithMemoryStore(t *testing.T) {
	handler, _ := setupDemoHandler(t, 100)

	req := httptest.NewRequest(http.MethodGet, "/health/ready", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("ready: status = %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"ready"`) {
		t.Errorf("ready body = %q", rec.Body.String())
	}
}
