package checkout

import (
	"errors"
	"net/http"

	validator "github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/reginor/backend-reginor/internal/catalog"
	"github.com/reginor/backend-reginor/internal/common"
	"github.com/reginor/backend-reginor/internal/tenant"
)

// Handler exposes the checkout endpoints.
type Handler struct {
	Service  *Service
	Validate *validator.Validate
}

type cartLineRequest struct {
	TrackID    string `json:"trackId" validate:"required,uuid"`
	HasPartner bool   `json:"hasPartner"`
}

type cartRequest struct {
	Lines []cartLineRequest `json:"lines" validate:"required,min=1,max=50,dive"`
}

func (h *Handler) decodeCart(r *http.Request) ([]CartLineInput, error) {
	var req cartRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		return nil, err
	}
	if err := h.Validate.Struct(req); err != nil {
		return nil, common.ErrBadRequest(err.Error(), err)
	}
	lines := make([]CartLineInput, len(req.Lines))
	for i, l := range req.Lines {
		id, err := uuid.Parse(l.TrackID)
		if err != nil {
			return nil, common.ErrBadRequest("invalid track id", err)
		}
		lines[i] = CartLineInput{TrackID: id, HasPartner: l.HasPartner}
	}
	return lines, nil
}

// Quote handles POST /api/v1/checkout/quote. Quotes work for anonymous
// browsers too; without a session the cart prices as a non-member.
func (h *Handler) Quote(w http.ResponseWriter, r *http.Request) {
	org, ok := tenant.From(r.Context())
	if !ok {
		common.RenderError(w, common.ErrBadRequest("organization not resolved", nil))
		return
	}
	lines, err := h.decodeCart(r)
	if err != nil {
		common.RenderError(w, err)
		return
	}
	userID := uuid.Nil
	if raw, ok := common.UserID(r.Context()); ok {
		if parsed, err := uuid.Parse(raw); err == nil {
			userID = parsed
		}
	}
	quote, err := h.Service.PriceQuote(r.Context(), org, userID, lines)
	if errors.Is(err, catalog.ErrNotFound) {
		common.RenderError(w, common.ErrBadRequest("unknown track in cart", err))
		return
	}
	if err != nil {
		common.RenderError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": quote})
}

// Submit handles POST /api/v1/checkout. Requires an authenticated user.
func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
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
	lines, err := h.decodeCart(r)
	if err != nil {
		common.RenderError(w, err)
		return
	}
	created, err := h.Service.Submit(r.Context(), org, userID, lines)
	if errors.Is(err, catalog.ErrNotFound) {
		common.RenderError(w, common.ErrBadRequest("unknown track in cart", err))
		return
	}
	if err != nil {
		common.RenderError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": created})
}
