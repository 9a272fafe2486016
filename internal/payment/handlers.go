package payment

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v76"

	"github.com/reginor/backend-reginor/internal/common"
	"github.com/reginor/backend-reginor/internal/tenant"
)

const maxWebhookBody = 64 << 10

// Handler exposes the payment endpoints.
type Handler struct {
	Service *Service
	Stripe  *Stripe
}

// Start handles POST /api/v1/orders/{id}/pay.
func (h *Handler) Start(w http.ResponseWriter, r *http.Request) {
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
	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.RenderError(w, common.ErrBadRequest("invalid order id", err))
		return
	}
	intent, err := h.Service.Start(r.Context(), org, orderID, userID)
	if err != nil {
		common.RenderError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": intent})
}

// StripeWebhook handles POST /api/v1/webhooks/stripe. The route is mounted
// outside tenant and auth middleware; the org comes from the order row.
func (h *Handler) StripeWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		common.RenderError(w, common.ErrBadRequest("unreadable payload", err))
		return
	}
	event, err := h.Stripe.VerifyWebhook(payload, r.Header.Get("Stripe-Signature"))
	if err != nil {
		common.RenderError(w, common.ErrBadRequest("invalid webhook signature", err))
		return
	}

	outcome := ""
	switch event.Type {
	case "payment_intent.succeeded":
		outcome = OutcomeSucceeded
	case "payment_intent.payment_failed":
		outcome = OutcomeFailed
	case "payment_intent.canceled":
		outcome = OutcomeCanceled
	default:
		w.WriteHeader(http.StatusOK)
		return
	}

	ref, err := intentRef(event)
	if err != nil {
		common.RenderError(w, common.ErrBadRequest("malformed event payload", err))
		return
	}
	if err := h.Service.HandleIntentOutcome(r.Context(), ref, outcome); err != nil {
		common.RenderError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func intentRef(event stripe.Event) (string, error) {
	var object struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(event.Data.Raw, &object); err != nil {
		return "", err
	}
	return object.ID, nil
}
