package catalog

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	validator "github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/reginor/backend-reginor/internal/common"
	"github.com/reginor/backend-reginor/internal/tenant"
)

// Handler exposes the catalog endpoints.
type Handler struct {
	Service  *Service
	Validate *validator.Validate
}

type createCourseRequest struct {
	Slug        string `json:"slug" validate:"required,min=2,max=80"`
	Title       string `json:"title" validate:"required,min=2,max=200"`
	Description string `json:"description"`
	Capacity    int    `json:"capacity" validate:"gte=0"`
}

type createTrackRequest struct {
	CourseID               string `json:"courseId" validate:"required,uuid"`
	Role                   string `json:"role" validate:"required,oneof=leader follower open pair"`
	PriceSingleCents       int64  `json:"priceSingleCents" validate:"gt=0"`
	PricePairCents         int64  `json:"pricePairCents" validate:"gte=0"`
	MemberPriceSingleCents int64  `json:"memberPriceSingleCents" validate:"gte=0"`
	MemberPricePairCents   int64  `json:"memberPricePairCents" validate:"gte=0"`
}

// List handles GET /api/v1/courses.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	org, ok := tenant.From(r.Context())
	if !ok {
		common.RenderError(w, common.ErrBadRequest("organization not resolved", nil))
		return
	}
	courses, err := h.Service.ListPublished(r.Context(), org)
	if err != nil {
		common.RenderError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": courses})
}

// Detail handles GET /api/v1/courses/{slug}.
func (h *Handler) Detail(w http.ResponseWriter, r *http.Request) {
	org, ok := tenant.From(r.Context())
	if !ok {
		common.RenderError(w, common.ErrBadRequest("organization not resolved", nil))
		return
	}
	course, err := h.Service.GetBySlug(r.Context(), org, chi.URLParam(r, "slug"))
	if errors.Is(err, ErrNotFound) {
		common.RenderError(w, common.ErrNotFound("course not found"))
		return
	}
	if err != nil {
		common.RenderError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": course})
}

// CreateCourse handles POST /api/v1/admin/courses.
func (h *Handler) CreateCourse(w http.ResponseWriter, r *http.Request) {
	org, ok := tenant.From(r.Context())
	if !ok {
		common.RenderError(w, common.ErrBadRequest("organization not resolved", nil))
		return
	}
	var req createCourseRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.RenderError(w, err)
		return
	}
	if err := h.Validate.Struct(req); err != nil {
		common.RenderError(w, common.ErrBadRequest(err.Error(), err))
		return
	}
	course, err := h.Service.CreateCourse(r.Context(), org, Course{
		Slug:        req.Slug,
		Title:       req.Title,
		Description: req.Description,
		Capacity:    req.Capacity,
	})
	if err != nil {
		common.RenderError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": course})
}

// Publish handles POST /api/v1/admin/courses/{id}/publish.
func (h *Handler) Publish(w http.ResponseWriter, r *http.Request) {
	h.setPublished(w, r, true)
}

// Unpublish handles POST /api/v1/admin/courses/{id}/unpublish.
func (h *Handler) Unpublish(w http.ResponseWriter, r *http.Request) {
	h.setPublished(w, r, false)
}

func (h *Handler) setPublished(w http.ResponseWriter, r *http.Request, published bool) {
	org, ok := tenant.From(r.Context())
	if !ok {
		common.RenderError(w, common.ErrBadRequest("organization not resolved", nil))
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.RenderError(w, common.ErrBadRequest("invalid course id", err))
		return
	}
	if err := h.Service.SetPublished(r.Context(), org, id, published); err != nil {
		if errors.Is(err, ErrNotFound) {
			common.RenderError(w, common.ErrNotFound("course not found"))
			return
		}
		common.RenderError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]bool{"published": published}})
}

// CreateTrack handles POST /api/v1/admin/tracks.
func (h *Handler) CreateTrack(w http.ResponseWriter, r *http.Request) {
	org, ok := tenant.From(r.Context())
	if !ok {
		common.RenderError(w, common.ErrBadRequest("organization not resolved", nil))
		return
	}
	var req createTrackRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.RenderError(w, err)
		return
	}
	if err := h.Validate.Struct(req); err != nil {
		common.RenderError(w, common.ErrBadRequest(err.Error(), err))
		return
	}
	courseID, err := uuid.Parse(req.CourseID)
	if err != nil {
		common.RenderError(w, common.ErrBadRequest("invalid course id", err))
		return
	}
	track, err := h.Service.CreateTrack(r.Context(), org, Track{
		CourseID:               courseID,
		Role:                   req.Role,
		PriceSingleCents:       req.PriceSingleCents,
		PricePairCents:         req.PricePairCents,
		MemberPriceSingleCents: req.MemberPriceSingleCents,
		MemberPricePairCents:   req.MemberPricePairCents,
	})
	if err != nil {
		common.RenderError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": track})
}
