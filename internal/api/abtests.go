package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/promptlab/promptlab/internal/abtest"
	"github.com/promptlab/promptlab/internal/domain"
)

type ABTestRequest struct {
	Name         string                   `json:"name"`
	VariantA     domain.ModelConfigParams `json:"variant_a"`
	VariantB     domain.ModelConfigParams `json:"variant_b"`
	TrafficSplit *float64                 `json:"traffic_split,omitempty"`
	Metric       domain.SuccessMetric     `json:"success_metric"`
}

func (h *Handler) handleCreateABTest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req ABTestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	variantA, err := domain.NewModelConfig(req.VariantA)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	variantB, err := domain.NewModelConfig(req.VariantB)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	test, err := abtest.New(abtest.Params{
		Name:         req.Name,
		VariantA:     variantA,
		VariantB:     variantB,
		TrafficSplit: req.TrafficSplit,
		Metric:       req.Metric,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	if err := h.store.SaveABTest(ctx, test); err != nil {
		slog.Error("failed to save ab test", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to save ab test")
		return
	}

	slog.Info("ab test created", "test_id", test.ID, "name", test.Name, "metric", test.Metric)
	respondJSON(w, http.StatusCreated, map[string]string{
		"test_id": test.ID,
		"message": "A/B test created",
	})
}

type ABRunRequest struct {
	Prompt     string `json:"prompt"`
	NumSamples int    `json:"num_samples,omitempty"`
}

func (h *Handler) handleRunABTest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req ABRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	test, err := h.store.GetABTest(ctx, r.PathValue("id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	if err := h.abRunner.Run(ctx, test, req.Prompt, req.NumSamples); err != nil {
		writeDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, test)
}

func (h *Handler) handleGetABTest(w http.ResponseWriter, r *http.Request) {
	test, err := h.store.GetABTest(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, test)
}
