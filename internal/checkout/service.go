// Package checkout prices a cart and turns it into a pending order. It is
// the only writer of orders: the pricing engine runs on data loaded fresh
// from the catalog and rule stores, never on client-supplied prices.
package checkout

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/reginor/backend-reginor/internal/catalog"
	"github.com/reginor/backend-reginor/internal/events"
	"github.com/reginor/backend-reginor/internal/obs"
	"github.com/reginor/backend-reginor/internal/order"
	"github.com/reginor/backend-reginor/internal/pricing"
)

// TrackSource resolves cart track ids to price tables.
type TrackSource interface {
	GetTracks(ctx context.Context, org string, ids []uuid.UUID) (map[uuid.UUID]catalog.Track, error)
}

// RuleSource loads the enabled discount rules of an org.
type RuleSource interface {
	ListEnabled(ctx context.Context, org string) ([]pricing.Rule, error)
}

// MemberSource resolves the pricing context of a user.
type MemberSource interface {
	UserContext(ctx context.Context, org string, userID uuid.UUID) (pricing.UserContext, error)
}

// OrderCreator persists a priced order.
type OrderCreator interface {
	Create(ctx context.Context, org string, o order.Order, result pricing.Result) (order.Order, error)
}

// RateSource yields the MVA rate to apply for an org.
type RateSource interface {
	MvaRate(ctx context.Context, org string) (float64, error)
}

// Emitter publishes domain events.
type Emitter interface {
	Emit(ctx context.Context, org, topic string, aggregateID uuid.UUID, payload any) (events.Event, error)
}

// CartLineInput is one requested registration.
type CartLineInput struct {
	TrackID    uuid.UUID
	HasPartner bool
}

// Quote is a priced cart that has not been persisted.
type Quote struct {
	Result pricing.Result      `json:"pricing"`
	Totals pricing.OrderTotals `json:"totals"`
}

// Service wires the checkout flow together.
type Service struct {
	Tracks   TrackSource
	Rules    RuleSource
	Members  MemberSource
	Orders   OrderCreator
	Rates    RateSource
	Events   Emitter
	Currency string
	Log      zerolog.Logger
}

// price loads everything the engine needs and runs it.
func (s *Service) price(ctx context.Context, org string, userID uuid.UUID, lines []CartLineInput) (Quote, map[uuid.UUID]catalog.Track, error) {
	ids := make([]uuid.UUID, len(lines))
	for i, l := range lines {
		ids[i] = l.TrackID
	}
	tracks, err := s.Tracks.GetTracks(ctx, org, ids)
	if err != nil {
		return Quote{}, nil, fmt.Errorf("checkout: resolve tracks: %w", err)
	}
	rules, err := s.Rules.ListEnabled(ctx, org)
	if err != nil {
		return Quote{}, nil, fmt.Errorf("checkout: load rules: %w", err)
	}
	user, err := s.Members.UserContext(ctx, org, userID)
	if err != nil {
		return Quote{}, nil, fmt.Errorf("checkout: resolve member: %w", err)
	}
	rate, err := s.Rates.MvaRate(ctx, org)
	if err != nil {
		return Quote{}, nil, fmt.Errorf("checkout: resolve mva rate: %w", err)
	}

	cart := make([]pricing.CartLine, len(lines))
	for i, l := range lines {
		cart[i] = pricing.CartLine{
			TrackID:    l.TrackID,
			HasPartner: l.HasPartner,
			Tiers:      tracks[l.TrackID].PriceTiers(),
		}
	}
	result := pricing.Calculate(cart, rules, user)
	totals := pricing.OrderTotal(pricing.OrderTotalInput{
		SubtotalCents: result.SubtotalCents,
		DiscountCents: result.DiscountTotalCents,
		MvaRate:       rate,
	})
	return Quote{Result: result, Totals: totals}, tracks, nil
}

// PriceQuote prices a cart without creating an order.
func (s *Service) PriceQuote(ctx context.Context, org string, userID uuid.UUID, lines []CartLineInput) (Quote, error) {
	q, _, err := s.price(ctx, org, userID, lines)
	return q, err
}

// Submit prices the cart and persists a PENDING_PAYMENT order. The emitted
// order.created event carries the order totals so notifiers need no extra
// lookup.
func (s *Service) Submit(ctx context.Context, org string, userID uuid.UUID, lines []CartLineInput) (order.Order, error) {
	q, tracks, err := s.price(ctx, org, userID, lines)
	if err != nil {
		obs.CheckoutTotal.WithLabelValues(org, "error").Inc()
		return order.Order{}, err
	}

	items := make([]order.Item, len(q.Result.Lines))
	for i, line := range q.Result.Lines {
		items[i] = order.Item{
			TrackID:              line.TrackID,
			CourseTitle:          tracks[line.TrackID].CourseTitle,
			HasPartner:           line.HasPartner,
			BasePriceCents:       line.BasePriceCents,
			DiscountCents:        line.DiscountCents,
			FinalPriceCents:      line.FinalPriceCents,
			UsesFixedMemberPrice: line.UsesFixedMemberPrice,
			AppliedRuleCodes:     line.AppliedRuleCodes,
		}
	}
	created, err := s.Orders.Create(ctx, org, order.Order{
		UserID:        userID,
		Currency:      s.Currency,
		SubtotalCents: q.Totals.SubtotalCents,
		DiscountCents: q.Totals.DiscountCents,
		MvaRate:       q.Totals.MvaRate,
		MvaCents:      q.Totals.MvaCents,
		TotalCents:    q.Totals.TotalCents,
		Items:         items,
	}, q.Result)
	if err != nil {
		obs.CheckoutTotal.WithLabelValues(org, "error").Inc()
		return order.Order{}, fmt.Errorf("checkout: create order: %w", err)
	}

	obs.CheckoutTotal.WithLabelValues(org, "ok").Inc()
	obs.DiscountAmount.Observe(float64(q.Totals.DiscountCents))
	for _, applied := range q.Result.AppliedRules {
		obs.RuleAppliedTotal.WithLabelValues(org, applied.Code).Inc()
	}

	if _, err := s.Events.Emit(ctx, org, events.TopicOrderCreated, created.ID, map[string]any{
		"orderId":    created.ID,
		"userId":     created.UserID,
		"totalCents": created.TotalCents,
		"currency":   created.Currency,
	}); err != nil {
		// The order exists; a notification failure must not fail checkout.
		s.Log.Error().Err(err).Str("order_id", created.ID.String()).Msg("emit order.created")
	}
	return created, nil
}
