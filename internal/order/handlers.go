package order

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/reginor/backend-reginor/internal/common"
	"github.com/reginor/backend-reginor/internal/tenant"
)

// Handler exposes order read endpoints.
type Handler struct {
	Store Store
}

// Get handles GET /api/v1/orders/{id}. Customers only see their own
// orders; staff see any order in the org.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	org, ok := tenant.From(r.Context())
	if !ok {
		common.RenderError(w, common.ErrBadRequest("organization not resolved", nil))
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.RenderError(w, common.ErrBadRequest("invalid order id", err))
		return
	}
	o, err := h.Store.Get(r.Context(), org, id)
	if errors.Is(err, ErrNotFound) {
		common.RenderError(w, common.ErrNotFound("order not found"))
		return
	}
	if err != nil {
		common.RenderError(w, err)
		return
	}
	if !canView(r, o) {
		common.RenderError(w, common.ErrNotFound("order not found"))
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": o})
}

// ListMine handles GET /api/v1/me/orders.
func (h *Handler) ListMine(w http.ResponseWriter, r *http.Request) {
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
	page, perPage := common.ParsePagination(r, 20)
	orders, err := h.Store.ListByUser(r.Context(), org, userID, perPage, common.Offset(page, perPage))
	if err != nil {
		common.RenderError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": orders, "page": page, "perPage": perPage})
}

func canView(r *http.Request, o Order) bool {
	if role, ok := common.Role(r.Context()); ok && (role == common.RoleStaff || role == common.RoleAdmin) {
		return true
	}
	rawID, ok := common.UserID(r.Context())
	return ok && rawID == o.UserID.String()
}
