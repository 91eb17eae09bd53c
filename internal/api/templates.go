package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/promptlab/promptlab/internal/domain"
	"github.com/promptlab/promptlab/internal/template"
)

type CreateTemplateRequest struct {
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Template    string   `json:"template"`
	Category    string   `json:"category"`
	Variables   []string `json:"variables,omitempty"`
}

func (h *Handler) handleCreateTemplate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req CreateTemplateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	tpl := domain.PromptTemplate{
		ID:          uuid.NewString(),
		Name:        req.Name,
		Description: req.Description,
		Template:    req.Template,
		Category:    req.Category,
		Variables:   req.Variables,
		CreatedAt:   time.Now().UTC(),
	}
	if len(tpl.Variables) == 0 {
		tpl.Variables = template.Variables(tpl.Template)
	}

	if err := template.Validate(tpl); err != nil {
		writeDomainError(w, err)
		return
	}

	if err := h.store.SaveTemplate(ctx, &tpl); err != nil {
		slog.Error("failed to save template", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to save template")
		return
	}

	slog.Info("template created", "template_id", tpl.ID, "name", tpl.Name, "category", tpl.Category)
	respondJSON(w, http.StatusCreated, tpl)
}

func (h *Handler) handleListTemplates(w http.ResponseWriter, r *http.Request) {
	templates, err := h.store.ListTemplates(r.Context(), r.URL.Query().Get("category"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if templates == nil {
		templates = []*domain.PromptTemplate{}
	}
	respondJSON(w, http.StatusOK, templates)
}

func (h *Handler) handleDeleteTemplate(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	if err := h.store.DeleteTemplate(r.Context(), id); err != nil {
		writeDomainError(w, err)
		return
	}

	slog.Info("template deleted", "template_id", id)
	w.WriteHeader(http.StatusNoContent)
}

// RenderRequest renders either a stored template (TemplateID) or an
// inline body (Template). TemplateID wins when both are set.
type RenderRequest struct {
	TemplateID string            `json:"template_id,omitempty"`
	Template   string            `json:"template,omitempty"`
	Variables  map[string]string `json:"variables,omitempty"`
}

func (h *Handler) handleRenderTemplate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req RenderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	body := req.Template
	if req.TemplateID != "" {
		tpl, err := h.store.GetTemplate(ctx, req.TemplateID)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		body = tpl.Template
	}
	if body == "" {
		writeError(w, http.StatusBadRequest, "template_id or template is required")
		return
	}

	prompt, err := template.Render(body, req.Variables)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"prompt": prompt})
}
