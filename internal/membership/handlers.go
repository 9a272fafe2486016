package membership

import (
	"context"
	"errors"
	"net/http"
	"time"

	validator "github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/reginor/backend-reginor/internal/common"
	"github.com/reginor/backend-reginor/internal/events"
	"github.com/reginor/backend-reginor/internal/tenant"
)

// Emitter publishes domain events.
type Emitter interface {
	Emit(ctx context.Context, org, topic string, aggregateID uuid.UUID, payload any) (events.Event, error)
}

// Handler exposes the membership endpoints.
type Handler struct {
	Store    Store
	Events   Emitter
	Validate *validator.Validate
}

type createTierRequest struct {
	Code string `json:"code" validate:"required,min=2,max=60"`
	Name string `json:"name" validate:"required,min=2,max=200"`
}

type grantRequest struct {
	UserID    string `json:"userId" validate:"required,uuid"`
	TierID    string `json:"tierId" validate:"required,uuid"`
	ValidFrom string `json:"validFrom" validate:"required,datetime=2006-01-02"`
	ValidTo   string `json:"validTo" validate:"required,datetime=2006-01-02"`
}

// ListTiers handles GET /api/v1/membership-tiers.
func (h *Handler) ListTiers(w http.ResponseWriter, r *http.Request) {
	org, ok := tenant.From(r.Context())
	if !ok {
		common.RenderError(w, common.ErrBadRequest("organization not resolved", nil))
		return
	}
	tiers, err := h.Store.ListTiers(r.Context(), org)
	if err != nil {
		common.RenderError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": tiers})
}

// CreateTier handles POST /api/v1/admin/membership-tiers.
func (h *Handler) CreateTier(w http.ResponseWriter, r *http.Request) {
	org, ok := tenant.From(r.Context())
	if !ok {
		common.RenderError(w, common.ErrBadRequest("organization not resolved", nil))
		return
	}
	var req createTierRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.RenderError(w, err)
		return
	}
	if err := h.Validate.Struct(req); err != nil {
		common.RenderError(w, common.ErrBadRequest(err.Error(), err))
		return
	}
	tier, err := h.Store.CreateTier(r.Context(), org, Tier{Code: req.Code, Name: req.Name})
	if err != nil {
		common.RenderError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": tier})
}

// Grant handles POST /api/v1/admin/memberships.
func (h *Handler) Grant(w http.ResponseWriter, r *http.Request) {
	org, ok := tenant.From(r.Context())
	if !ok {
		common.RenderError(w, common.ErrBadRequest("organization not resolved", nil))
		return
	}
	var req grantRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.RenderError(w, err)
		return
	}
	if err := h.Validate.Struct(req); err != nil {
		common.RenderError(w, common.ErrBadRequest(err.Error(), err))
		return
	}
	userID, _ := uuid.Parse(req.UserID)
	tierID, _ := uuid.Parse(req.TierID)
	from, _ := time.Parse("2006-01-02", req.ValidFrom)
	to, _ := time.Parse("2006-01-02", req.ValidTo)
	if to.Before(from) {
		common.RenderError(w, common.ErrBadRequest("validTo precedes validFrom", nil))
		return
	}
	m, err := h.Store.Grant(r.Context(), org, Membership{
		UserID:    userID,
		TierID:    tierID,
		ValidFrom: from,
		ValidTo:   to,
	})
	if err != nil {
		common.RenderError(w, err)
		return
	}
	if h.Events != nil {
		// Notification only; the grant itself is already committed.
		_, _ = h.Events.Emit(r.Context(), org, events.TopicMembershipNew, m.ID, map[string]any{
			"userId": m.UserID,
			"tierId": m.TierID,
		})
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": m})
}

// Mine handles GET /api/v1/me/membership for the authenticated user.
func (h *Handler) Mine(w http.ResponseWriter, r *http.Request) {
	org, ok := tenant.From(r.Context())
	if !ok {
		common.RenderError(w, common.ErrBadRequest("organization not resolved", nil))
		return
	}
	rawID, ok := common.UserID(r.Context())
	if !ok {
		common.RenderError(w, common.ErrUnauthorized("authentication required"))
		return
	}
	userID, err := uuid.Parse(rawID)
	if err != nil {
		common.RenderError(w, common.ErrUnauthorized("invalid subject"))
		return
	}
	m, err := h.Store.Active(r.Context(), org, userID, time.Now())
	if errors.Is(err, ErrNotFound) {
		common.JSON(w, http.StatusOK, map[string]any{"data": nil})
		return
	}
	if err != nil {
		common.RenderError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": m})
}
