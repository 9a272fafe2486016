package rules

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	validator "github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/reginor/backend-reginor/internal/common"
	"github.com/reginor/backend-reginor/internal/pricing"
	"github.com/reginor/backend-reginor/internal/tenant"
)

// Admin abstracts the store operations the handlers need.
type Admin interface {
	List(ctx context.Context, org string) ([]pricing.Rule, error)
	Get(ctx context.Context, org string, id uuid.UUID) (pricing.Rule, error)
	Create(ctx context.Context, org string, r pricing.Rule) (pricing.Rule, error)
	Update(ctx context.Context, org string, r pricing.Rule) (pricing.Rule, error)
	SetEnabled(ctx context.Context, org string, id uuid.UUID, enabled bool) error
	Delete(ctx context.Context, org string, id uuid.UUID) error
}

// Handler exposes the admin rule endpoints.
type Handler struct {
	Store    Admin
	Validate *validator.Validate
}

type ruleRequest struct {
	Code     string          `json:"code" validate:"required,min=2,max=60"`
	Name     string          `json:"name" validate:"required,min=2,max=200"`
	Kind     string          `json:"kind" validate:"required"`
	Priority int             `json:"priority"`
	Enabled  bool            `json:"enabled"`
	Config   json.RawMessage `json:"config" validate:"required"`
}

type ruleResponse struct {
	ID       uuid.UUID       `json:"id"`
	Code     string          `json:"code"`
	Name     string          `json:"name"`
	Kind     string          `json:"kind"`
	Priority int             `json:"priority"`
	Enabled  bool            `json:"enabled"`
	Config   json.RawMessage `json:"config"`
}

func toResponse(r pricing.Rule) (ruleResponse, error) {
	raw, err := pricing.EncodeRuleConfig(r.Kind, r.Config)
	if err != nil {
		return ruleResponse{}, err
	}
	return ruleResponse{
		ID:       r.ID,
		Code:     r.Code,
		Name:     r.Name,
		Kind:     string(r.Kind),
		Priority: r.Priority,
		Enabled:  r.Enabled,
		Config:   raw,
	}, nil
}

// List handles GET /api/v1/admin/rules.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	org, ok := tenant.From(r.Context())
	if !ok {
		common.RenderError(w, common.ErrBadRequest("organization not resolved", nil))
		return
	}
	list, err := h.Store.List(r.Context(), org)
	if err != nil {
		common.RenderError(w, err)
		return
	}
	out := make([]ruleResponse, 0, len(list))
	for _, rule := range list {
		resp, err := toResponse(rule)
		if err != nil {
			common.RenderError(w, err)
			return
		}
		out = append(out, resp)
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": out})
}

// Create handles POST /api/v1/admin/rules.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	org, ok := tenant.From(r.Context())
	if !ok {
		common.RenderError(w, common.ErrBadRequest("organization not resolved", nil))
		return
	}
	rule, err := h.decodeRule(r)
	if err != nil {
		common.RenderError(w, err)
		return
	}
	created, err := h.Store.Create(r.Context(), org, rule)
	if errors.Is(err, ErrDuplicateCode) {
		common.RenderError(w, common.ErrConflict("rule code already exists", err))
		return
	}
	if err != nil {
		common.RenderError(w, err)
		return
	}
	resp, err := toResponse(created)
	if err != nil {
		common.RenderError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": resp})
}

// Update handles PUT /api/v1/admin/rules/{id}.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	org, ok := tenant.From(r.Context())
	if !ok {
		common.RenderError(w, common.ErrBadRequest("organization not resolved", nil))
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.RenderError(w, common.ErrBadRequest("invalid rule id", err))
		return
	}
	rule, err := h.decodeRule(r)
	if err != nil {
		common.RenderError(w, err)
		return
	}
	rule.ID = id
	updated, err := h.Store.Update(r.Context(), org, rule)
	if errors.Is(err, ErrNotFound) {
		common.RenderError(w, common.ErrNotFound("rule not found"))
		return
	}
	if err != nil {
		common.RenderError(w, err)
		return
	}
	resp, err := toResponse(updated)
	if err != nil {
		common.RenderError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": resp})
}

// Enable handles POST /api/v1/admin/rules/{id}/enable.
func (h *Handler) Enable(w http.ResponseWriter, r *http.Request) {
	h.setEnabled(w, r, true)
}

// Disable handles POST /api/v1/admin/rules/{id}/disable.
func (h *Handler) Disable(w http.ResponseWriter, r *http.Request) {
	h.setEnabled(w, r, false)
}

func (h *Handler) setEnabled(w http.ResponseWriter, r *http.Request, enabled bool) {
	org, ok := tenant.From(r.Context())
	if !ok {
		common.RenderError(w, common.ErrBadRequest("organization not resolved", nil))
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.RenderError(w, common.ErrBadRequest("invalid rule id", err))
		return
	}
	if err := h.Store.SetEnabled(r.Context(), org, id, enabled); err != nil {
		if errors.Is(err, ErrNotFound) {
			common.RenderError(w, common.ErrNotFound("rule not found"))
			return
		}
		common.RenderError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]bool{"enabled": enabled}})
}

// Delete handles DELETE /api/v1/admin/rules/{id}.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	org, ok := tenant.From(r.Context())
	if !ok {
		common.RenderError(w, common.ErrBadRequest("organization not resolved", nil))
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.RenderError(w, common.ErrBadRequest("invalid rule id", err))
		return
	}
	if err := h.Store.Delete(r.Context(), org, id); err != nil {
		if errors.Is(err, ErrNotFound) {
			common.RenderError(w, common.ErrNotFound("rule not found"))
			return
		}
		common.RenderError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) decodeRule(r *http.Request) (pricing.Rule, error) {
	var req ruleRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		return pricing.Rule{}, err
	}
	if err := h.Validate.Struct(req); err != nil {
		return pricing.Rule{}, common.ErrBadRequest(err.Error(), err)
	}
	kind := pricing.RuleKind(req.Kind)
	cfg, err := pricing.DecodeRuleConfig(kind, req.Config)
	if err != nil {
		return pricing.Rule{}, common.ErrBadRequest(err.Error(), err)
	}
	return pricing.Rule{
		Code:     req.Code,
		Name:     req.Name,
		Kind:     kind,
		Priority: req.Priority,
		Enabled:  req.Enabled,
		Config:   cfg,
	}, nil
}
