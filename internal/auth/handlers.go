package auth

import (
	"net/http"

	validator "github.com/go-playground/validator/v10"

	"github.com/reginor/backend-reginor/internal/common"
	"github.com/reginor/backend-reginor/internal/tenant"
)

// Handler exposes the auth endpoints.
type Handler struct {
	Service  *Service
	Validate *validator.Validate
}

type registerRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Name     string `json:"name" validate:"required,min=1,max=200"`
	Password string `json:"password" validate:"required,min=8"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// Register handles POST /api/v1/auth/register.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	org, ok := tenant.From(r.Context())
	if !ok {
		common.RenderError(w, common.ErrBadRequest("organization not resolved", nil))
		return
	}
	var req registerRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.RenderError(w, err)
		return
	}
	if err := h.Validate.Struct(req); err != nil {
		common.RenderError(w, common.ErrBadRequest(err.Error(), err))
		return
	}
	u, err := h.Service.Register(r.Context(), org, req.Email, req.Name, req.Password)
	if err != nil {
		common.RenderError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": u})
}

// Login handles POST /api/v1/auth/login.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	org, ok := tenant.From(r.Context())
	if !ok {
		common.RenderError(w, common.ErrBadRequest("organization not resolved", nil))
		return
	}
	var req loginRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.RenderError(w, err)
		return
	}
	if err := h.Validate.Struct(req); err != nil {
		common.RenderError(w, common.ErrBadRequest(err.Error(), err))
		return
	}
	result, err := h.Service.Login(r.Context(), org, req.Email, req.Password)
	if err != nil {
		common.RenderError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": result})
}

// Me handles GET /api/v1/auth/me.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	org, ok := tenant.From(r.Context())
	if !ok {
		common.RenderError(w, common.ErrBadRequest("organization not resolved", nil))
		return
	}
	userID, ok := common.UserID(r.Context())
	if !ok {
		common.RenderError(w, common.ErrUnauthorized("authentication required"))
		return
	}
	u, err := h.Service.Me(r.Context(), org, userID)
	if err != nil {
		common.RenderError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": u})
}
