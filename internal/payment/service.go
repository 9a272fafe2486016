package payment

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/reginor/backend-reginor/internal/common"
	"github.com/reginor/backend-reginor/internal/events"
	"github.com/reginor/backend-reginor/internal/obs"
	"github.com/reginor/backend-reginor/internal/order"
)

// OrderStore is the slice of the order store the payment flow needs.
type OrderStore interface {
	Get(ctx context.Context, org string, id uuid.UUID) (order.Order, error)
	AttachPayment(ctx context.Context, org string, id uuid.UUID, provider, ref string) error
	ByPaymentRef(ctx context.Context, ref string) (order.Order, string, error)
	MarkPaid(ctx context.Context, org string, id uuid.UUID) error
	MarkCanceled(ctx context.Context, org string, id uuid.UUID) error
}

// Emitter publishes domain events.
type Emitter interface {
	Emit(ctx context.Context, org, topic string, aggregateID uuid.UUID, payload any) (events.Event, error)
}

// Service drives the payment lifecycle of orders.
type Service struct {
	Orders   OrderStore
	Provider Provider
	Events   Emitter
	Log      zerolog.Logger
}

// Start creates a payment intent for a pending order owned by the caller
// and attaches the provider reference to the order.
func (s *Service) Start(ctx context.Context, org string, orderID uuid.UUID, userID string) (Intent, error) {
	o, err := s.Orders.Get(ctx, org, orderID)
	if err != nil {
		return Intent{}, err
	}
	if o.UserID.String() != userID {
		return Intent{}, common.ErrNotFound("order not found")
	}
	if o.Status != order.StatusPendingPayment {
		return Intent{}, common.ErrConflict("order is not awaiting payment", nil)
	}

	intent, err := s.Provider.CreateIntent(ctx, IntentInput{
		OrderID:  o.ID.String(),
		Org:      org,
		Amount:   o.TotalCents,
		Currency: o.Currency,
	})
	if err != nil {
		obs.PaymentIntentTotal.WithLabelValues(s.Provider.Name(), "error").Inc()
		return Intent{}, err
	}
	if err := s.Orders.AttachPayment(ctx, org, o.ID, intent.Provider, intent.Ref); err != nil {
		obs.PaymentIntentTotal.WithLabelValues(s.Provider.Name(), "error").Inc()
		return Intent{}, fmt.Errorf("payment: attach intent: %w", err)
	}
	obs.PaymentIntentTotal.WithLabelValues(s.Provider.Name(), "ok").Inc()
	return intent, nil
}

// Outcomes reported by HandleIntentOutcome.
const (
	OutcomeSucceeded = "succeeded"
	OutcomeFailed    = "failed"
	OutcomeCanceled  = "canceled"
)

// HandleIntentOutcome applies a provider-reported outcome to the order the
// intent reference points at. Replayed webhooks hit an already-final order
// and are acknowledged without a second transition or event.
func (s *Service) HandleIntentOutcome(ctx context.Context, ref, outcome string) error {
	o, org, err := s.Orders.ByPaymentRef(ctx, ref)
	if errors.Is(err, order.ErrNotFound) {
		// Unknown references are acknowledged so the provider stops
		// retrying; they are logged for manual follow-up.
		s.Log.Warn().Str("payment_ref", ref).Str("outcome", outcome).Msg("webhook for unknown payment ref")
		obs.PaymentWebhookTotal.WithLabelValues(s.Provider.Name(), "unknown_ref").Inc()
		return nil
	}
	if err != nil {
		obs.PaymentWebhookTotal.WithLabelValues(s.Provider.Name(), "error").Inc()
		return err
	}

	switch outcome {
	case OutcomeSucceeded:
		err = s.Orders.MarkPaid(ctx, org, o.ID)
		if err == nil {
			s.emit(ctx, org, events.TopicOrderPaid, o)
		}
	case OutcomeCanceled:
		err = s.Orders.MarkCanceled(ctx, org, o.ID)
		if err == nil {
			s.emit(ctx, org, events.TopicOrderCanceled, o)
		}
	case OutcomeFailed:
		// The order stays pending so the customer can retry.
		s.emit(ctx, org, events.TopicPaymentFailed, o)
	default:
		obs.PaymentWebhookTotal.WithLabelValues(s.Provider.Name(), "ignored").Inc()
		return nil
	}

	if errors.Is(err, order.ErrInvalidTransition) {
		obs.PaymentWebhookTotal.WithLabelValues(s.Provider.Name(), "duplicate").Inc()
		return nil
	}
	if err != nil {
		obs.PaymentWebhookTotal.WithLabelValues(s.Provider.Name(), "error").Inc()
		return err
	}
	obs.PaymentWebhookTotal.WithLabelValues(s.Provider.Name(), "ok").Inc()
	return nil
}

func (s *Service) emit(ctx context.Context, org, topic string, o order.Order) {
	_, err := s.Events.Emit(ctx, org, topic, o.ID, map[string]any{
		"orderId":    o.ID,
		"userId":     o.UserID,
		"totalCents": o.TotalCents,
		"currency":   o.Currency,
	})
	if err != nil {
		s.Log.Error().Err(err).Str("order_id", o.ID.String()).Str("topic", topic).Msg("emit payment event")
	}
}
