package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/promptlab/promptlab/internal/abtest"
	"github.com/promptlab/promptlab/internal/cache"
	"github.com/promptlab/promptlab/internal/dispatch"
	"github.com/promptlab/promptlab/internal/domain"
	"github.com/promptlab/promptlab/internal/experiment"
	"github.com/promptlab/promptlab/internal/export"
	"github.com/promptlab/promptlab/internal/metrics"
	"github.com/promptlab/promptlab/internal/queue"
	"github.com/promptlab/promptlab/internal/ratelimit"
	"github.com/promptlab/promptlab/internal/store"
	"github.com/promptlab/promptlab/internal/template"
)

const Version = "1.0.0"

// exportLimit caps how many experiments a single export reads. It is
// deliberately far above DefaultLimit so exports cover full history.
const exportLimit = 10000

type HandlerConfig struct {
	Store        store.Store
	Runner       *experiment.Runner
	ABRunner     *abtest.Runner
	Dispatcher   *dispatch.Dispatcher
	Limiter      ratelimit.Limiter
	Publisher    queue.Publisher
	Checkers     []HealthChecker
	CheckTimeout time.Duration
	CORSOrigins  []string

	// StatsCache, when set, caches the dashboard aggregate for StatsTTL.
	StatsCache cache.Cache
	StatsTTL   time.Duration
}

type Handler struct {
	store      store.Store
	runner     *experiment.Runner
	abRunner   *abtest.Runner
	dispatcher *dispatch.Dispatcher
	limiter    ratelimit.Limiter
	publisher  queue.Publisher
	statsCache cache.Cache
	statsTTL   time.Duration
	mux        *http.ServeMux
	root       http.Handler
}

func NewHandler(cfg HandlerConfig) *Handler {
	checkTimeout := cfg.CheckTimeout
	if checkTimeout == 0 {
		checkTimeout = 5 * time.Second
	}

	origins := cfg.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000"}
	}

	h := &Handler{
		store:      cfg.Store,
		runner:     cfg.Runner,
		abRunner:   cfg.ABRunner,
		dispatcher: cfg.Dispatcher,
		limiter:    cfg.Limiter,
		publisher:  cfg.Publisher,
		statsCache: cfg.StatsCache,
		statsTTL:   cfg.StatsTTL,
		mux:        http.NewServeMux(),
	}

	h.mux.HandleFunc("POST /api/experiments", h.handleRunExperiment)
	h.mux.HandleFunc("GET /api/experiments", h.handleListExperiments)
	h.mux.HandleFunc("GET /api/experiments/{id}", h.handleGetExperiment)
	h.mux.HandleFunc("PUT /api/experiments/{id}/rating", h.handleUpdateRating)
	h.mux.HandleFunc("POST /api/templates", h.handleCreateTemplate)
	h.mux.HandleFunc("GET /api/templates", h.handleListTemplates)
	h.mux.HandleFunc("DELETE /api/templates/{id}", h.handleDeleteTemplate)
	h.mux.HandleFunc("POST /api/templates/render", h.handleRenderTemplate)
	h.mux.HandleFunc("GET /api/analytics/dashboard", h.handleDashboard)
	h.mux.HandleFunc("GET /api/analytics/export", h.handleExport)
	h.mux.HandleFunc("POST /api/ab-tests", h.handleCreateABTest)
	h.mux.HandleFunc("POST /api/ab-tests/{id}/run", h.handleRunABTest)
	h.mux.HandleFunc("GET /api/ab-tests/{id}", h.handleGetABTest)
	h.mux.HandleFunc("GET /health", h.handleHealth)
	h.mux.HandleFunc("GET /health/live", h.handleHealthLive)
	h.mux.HandleFunc("GET /health/ready", handleHealthReadyWithCheckers(cfg.Checkers, checkTimeout))
	h.mux.Handle("GET /metrics", promhttp.Handler())

	corsMiddleware := cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	})
	h.root = corsMiddleware(logRequests(h.mux))

	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.root.ServeHTTP(w, r)
}

// ExperimentRequest mirrors the runner request. When TemplateID is set
// the prompt is rendered from the stored template and Variables; Prompt
// is used as-is otherwise.
type ExperimentRequest struct {
	Prompt       string                     `json:"prompt"`
	TemplateID   string                     `json:"template_id,omitempty"`
	Variables    map[string]string          `json:"variables,omitempty"`
	ModelConfigs []domain.ModelConfigParams `json:"model_configs"`
	NumRuns      int                        `json:"num_runs,omitempty"`
	Notes        string                     `json:"notes,omitempty"`
}

func (h *Handler) handleRunExperiment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	allowed, remaining, retryAfter, err := h.limiter.Allow(ctx, clientIP(r))
	if err != nil {
		// A broken limiter backend must not take experiments down.
		slog.Error("rate limiter unavailable, allowing request", "error", err)
	} else {
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
		if !allowed {
			metrics.RecordRateLimitHit()
			slog.Warn("rate limit exceeded", "client", clientIP(r))
			w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds(retryAfter)))
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
	}

	var req ExperimentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	prompt, err := h.resolvePrompt(ctx, req)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	configs := make([]domain.ModelConfig, 0, len(req.ModelConfigs))
	for i, params := range req.ModelConfigs {
		cfg, err := domain.NewModelConfig(params)
		if err != nil {
			writeDomainError(w, fmt.Errorf("config %d: %w", i, err))
			return
		}
		configs = append(configs, cfg)
	}

	runs := req.NumRuns
	if runs == 0 {
		runs = experiment.DefaultRuns
	}

	exp, err := h.runner.Run(ctx, experiment.Request{
		Prompt:     prompt,
		TemplateID: req.TemplateID,
		Configs:    configs,
		Runs:       runs,
		Notes:      req.Notes,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	if err := h.publisher.Publish(ctx, exp); err != nil {
		// The experiment already ran; archival failure is not a reason
		// to fail the response.
		slog.Error("failed to publish experiment for archival",
			"experiment_id", exp.ID, "error", err)
	}

	respondJSON(w, http.StatusOK, exp)
}

func (h *Handler) resolvePrompt(ctx context.Context, req ExperimentRequest) (string, error) {
	if req.TemplateID == "" {
		return req.Prompt, nil
	}

	tpl, err := h.store.GetTemplate(ctx, req.TemplateID)
	if err != nil {
		return "", err
	}
	return template.Render(tpl.Template, req.Variables)
}

func (h *Handler) handleListExperiments(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filter := store.ExperimentFilter{
		Provider: domain.Provider(q.Get("provider")),
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		filter.Limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "offset must be a non-negative integer")
			return
		}
		filter.Offset = n
	}

	experiments, err := h.store.ListExperiments(r.Context(), filter)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if experiments == nil {
		experiments = []*domain.Experiment{}
	}

	respondJSON(w, http.StatusOK, experiments)
}

func (h *Handler) handleGetExperiment(w http.ResponseWriter, r *http.Request) {
	exp, err := h.store.GetExperiment(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, exp)
}

type RatingRequest struct {
	Rating int    `json:"rating"`
	Notes  string `json:"notes,omitempty"`
}

func (h *Handler) handleUpdateRating(w http.ResponseWriter, r *http.Request) {
	var req RatingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Rating < 1 || req.Rating > 5 {
		writeError(w, http.StatusBadRequest, "rating must be between 1 and 5")
		return
	}

	id := r.PathValue("id")
	if err := h.store.UpdateRating(r.Context(), id, req.Rating, req.Notes); err != nil {
		writeDomainError(w, err)
		return
	}

	slog.Info("rating updated", "experiment_id", id, "rating", req.Rating)
	respondJSON(w, http.StatusOK, map[string]string{"message": "rating updated"})
}

func (h *Handler) handleDashboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if h.statsCache != nil {
		if stats, ok := h.statsCache.Get(ctx, cache.StatsKey); ok {
			respondJSON(w, http.StatusOK, stats)
			return
		}
	}

	stats, err := h.store.Stats(ctx)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	if h.statsCache != nil {
		if err := h.statsCache.Set(ctx, cache.StatsKey, stats, h.statsTTL); err != nil {
			slog.Warn("stats cache set failed", "error", err)
		}
	}
	respondJSON(w, http.StatusOK, stats)
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	format, err := export.ParseFormat(q.Get("format"))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	experiments, err := h.store.ListExperiments(r.Context(), store.ExperimentFilter{
		Limit:    exportLimit,
		Provider: domain.Provider(q.Get("provider")),
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	records := export.Flatten(experiments)

	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", export.Filename(format, time.Now().UTC())))
	if err := export.Write(w, format, records); err != nil {
		slog.Error("export write failed", "format", format, "error", err)
	}
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	providers := h.dispatcher.Providers()
	names := make([]string, 0, len(providers))
	for _, p := range providers {
		names = append(names, string(p))
	}
	sort.Strings(names)

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"version":   Version,
		"demo_mode": h.dispatcher.DemoMode(),
		"providers": names,
	})
}

func (h *Handler) handleHealthLive(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// clientIP returns the rate-limit key for a request: the first
// X-Forwarded-For hop when present, the remote address otherwise.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if i := strings.IndexByte(fwd, ','); i >= 0 {
			fwd = fwd[:i]
		}
		return strings.TrimSpace(fwd)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func retryAfterSeconds(d time.Duration) int {
	secs := int((d + time.Second - 1) / time.Second)
	if secs < 1 {
		secs = 1
	}
	return secs
}

func respondJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeDomainError maps domain sentinels onto HTTP statuses. Anything
// unrecognized is a 500.
func writeDomainError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrInvalidRequest),
		errors.Is(err, domain.ErrInvalidModelConfig),
		errors.Is(err, domain.ErrMissingVariable):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrExperimentNotFound),
		errors.Is(err, domain.ErrTemplateNotFound),
		errors.Is(err, domain.ErrABTestNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrRateLimitExceeded):
		status = http.StatusTooManyRequests
	}

	message := err.Error()
	if status == http.StatusInternalServerError {
		slog.Error("request failed", "error", err)
		message = "internal error"
	}
	writeError(w, status, message)
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"error": map[string]interface{}{
			"message": message,
			"type":    "error",
			"code":    status,
		},
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health/live" || r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}

		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		slog.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration_ms", time.Since(start).Milliseconds())
	})
}
