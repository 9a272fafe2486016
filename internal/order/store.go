// Package order persists checkout results and drives the order's payment
// lifecycle. An order is immutable once created except for its status and
// payment reference; the priced lines live on as order_items plus a full
// pricing snapshot for audit.
package order

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/reginor/backend-reginor/internal/pricing"
)

// Order statuses.
const (
	StatusPendingPayment = "PENDING_PAYMENT"
	StatusPaid           = "PAID"
	StatusCanceled       = "CANCELED"
)

var (
	// ErrNotFound is returned when an order does not exist in the org.
	ErrNotFound = errors.New("order: not found")
	// ErrInvalidTransition is returned for a status change the lifecycle
	// does not allow, e.g. paying a canceled order.
	ErrInvalidTransition = errors.New("order: invalid status transition")
)

// Item is one purchased track on an order.
type Item struct {
	ID                   uuid.UUID `json:"id"`
	TrackID              uuid.UUID `json:"trackId"`
	CourseTitle          string    `json:"courseTitle"`
	HasPartner           bool      `json:"hasPartner"`
	BasePriceCents       int64     `json:"basePriceCents"`
	DiscountCents        int64     `json:"discountCents"`
	FinalPriceCents      int64     `json:"finalPriceCents"`
	UsesFixedMemberPrice bool      `json:"usesFixedMemberPrice"`
	AppliedRuleCodes     []string  `json:"appliedRuleCodes"`
}

// Order is one persisted checkout.
type Order struct {
	ID              uuid.UUID       `json:"id"`
	UserID          uuid.UUID       `json:"userId"`
	Status          string          `json:"status"`
	Currency        string          `json:"currency"`
	SubtotalCents   int64           `json:"subtotalCents"`
	DiscountCents   int64           `json:"discountCents"`
	MvaRate         float64         `json:"mvaRate"`
	MvaCents        int64           `json:"mvaCents"`
	TotalCents      int64           `json:"totalCents"`
	PricingSnapshot json.RawMessage `json:"pricingSnapshot,omitempty"`
	PaymentProvider string          `json:"paymentProvider,omitempty"`
	PaymentRef      string          `json:"paymentRef,omitempty"`
	Items           []Item          `json:"items,omitempty"`
	CreatedAt       time.Time       `json:"createdAt"`
}

// Store runs order queries scoped by org slug.
type Store struct {
	Pool *pgxpool.Pool
}

// Create inserts the order and its items in one transaction. The pricing
// result is stored verbatim as the snapshot.
func (s Store) Create(ctx context.Context, org string, o Order, result pricing.Result) (Order, error) {
	snapshot, err := json.Marshal(result)
	if err != nil {
		return Order{}, err
	}
	tx, err := s.Pool.Begin(ctx)
	if err != nil {
		return Order{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	const insertOrder = `
		INSERT INTO orders (org_id, user_id, status, currency, subtotal_cents, discount_cents,
		                    mva_rate, mva_cents, total_cents, pricing_snapshot)
		VALUES ((SELECT id FROM organizations WHERE slug = $1), $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at`
	err = tx.QueryRow(ctx, insertOrder, org, o.UserID, StatusPendingPayment, o.Currency,
		o.SubtotalCents, o.DiscountCents, o.MvaRate, o.MvaCents, o.TotalCents, snapshot).
		Scan(&o.ID, &o.CreatedAt)
	if err != nil {
		return Order{}, err
	}
	o.Status = StatusPendingPayment
	o.PricingSnapshot = snapshot

	const insertItem = `
		INSERT INTO order_items (order_id, track_id, course_title, has_partner, base_price_cents,
		                         discount_cents, final_price_cents, uses_fixed_member_price, applied_rule_codes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id`
	for i := range o.Items {
		it := &o.Items[i]
		if it.AppliedRuleCodes == nil {
			it.AppliedRuleCodes = []string{}
		}
		err = tx.QueryRow(ctx, insertItem, o.ID, it.TrackID, it.CourseTitle, it.HasPartner,
			it.BasePriceCents, it.DiscountCents, it.FinalPriceCents, it.UsesFixedMemberPrice,
			it.AppliedRuleCodes).Scan(&it.ID)
		if err != nil {
			return Order{}, err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return Order{}, err
	}
	return o, nil
}

const orderColumns = `o.id, o.user_id, o.status, o.currency, o.subtotal_cents, o.discount_cents,
	o.mva_rate, o.mva_cents, o.total_cents, o.pricing_snapshot, o.payment_provider, o.payment_ref, o.created_at`

func scanOrder(row pgx.Row) (Order, error) {
	var o Order
	err := row.Scan(&o.ID, &o.UserID, &o.Status, &o.Currency, &o.SubtotalCents, &o.DiscountCents,
		&o.MvaRate, &o.MvaCents, &o.TotalCents, &o.PricingSnapshot, &o.PaymentProvider, &o.PaymentRef, &o.CreatedAt)
	return o, err
}

// Get fetches one order with its items.
func (s Store) Get(ctx context.Context, org string, id uuid.UUID) (Order, error) {
	q := `
		SELECT ` + orderColumns + `
		FROM orders o
		JOIN organizations org ON org.id = o.org_id
		WHERE org.slug = $1 AND o.id = $2`
	o, err := scanOrder(s.Pool.QueryRow(ctx, q, org, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Order{}, ErrNotFound
	}
	if err != nil {
		return Order{}, err
	}
	items, err := s.listItems(ctx, o.ID)
	if err != nil {
		return Order{}, err
	}
	o.Items = items
	return o, nil
}

// ListByUser returns a user's orders, newest first.
func (s Store) ListByUser(ctx context.Context, org string, userID uuid.UUID, limit, offset int) ([]Order, error) {
	q := `
		SELECT ` + orderColumns + `
		FROM orders o
		JOIN organizations org ON org.id = o.org_id
		WHERE org.slug = $1 AND o.user_id = $2
		ORDER BY o.created_at DESC
		LIMIT $3 OFFSET $4`
	rows, err := s.Pool.Query(ctx, q, org, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

func (s Store) listItems(ctx context.Context, orderID uuid.UUID) ([]Item, error) {
	const q = `
		SELECT id, track_id, course_title, has_partner, base_price_cents, discount_cents,
		       final_price_cents, uses_fixed_member_price, applied_rule_codes
		FROM order_items WHERE order_id = $1`
	rows, err := s.Pool.Query(ctx, q, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ID, &it.TrackID, &it.CourseTitle, &it.HasPartner, &it.BasePriceCents,
			&it.DiscountCents, &it.FinalPriceCents, &it.UsesFixedMemberPrice, &it.AppliedRuleCodes); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// AttachPayment records the provider and external reference once a payment
// intent exists for the order.
func (s Store) AttachPayment(ctx context.Context, org string, id uuid.UUID, provider, ref string) error {
	const q = `
		UPDATE orders SET payment_provider = $3, payment_ref = $4, updated_at = now()
		WHERE id = $2 AND org_id = (SELECT id FROM organizations WHERE slug = $1)
		  AND status = 'PENDING_PAYMENT'`
	tag, err := s.Pool.Exec(ctx, q, org, id, provider, ref)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrInvalidTransition
	}
	return nil
}

// MarkPaid transitions PENDING_PAYMENT -> PAID.
func (s Store) MarkPaid(ctx context.Context, org string, id uuid.UUID) error {
	return s.transition(ctx, org, id, StatusPendingPayment, StatusPaid)
}

// MarkCanceled transitions PENDING_PAYMENT -> CANCELED.
func (s Store) MarkCanceled(ctx context.Context, org string, id uuid.UUID) error {
	return s.transition(ctx, org, id, StatusPendingPayment, StatusCanceled)
}

func (s Store) transition(ctx context.Context, org string, id uuid.UUID, from, to string) error {
	const q = `
		UPDATE orders SET status = $4, updated_at = now()
		WHERE id = $2 AND org_id = (SELECT id FROM organizations WHERE slug = $1) AND status = $3`
	tag, err := s.Pool.Exec(ctx, q, org, id, from, to)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrInvalidTransition
	}
	return nil
}

// ByPaymentRef locates the order a payment webhook refers to.
func (s Store) ByPaymentRef(ctx context.Context, ref string) (Order, string, error) {
	const q = `
		SELECT ` + orderColumns + `, org.slug
		FROM orders o
		JOIN organizations org ON org.id = o.org_id
		WHERE o.payment_ref = $1`
	var (
		o   Order
		org string
	)
	err := s.Pool.QueryRow(ctx, q, ref).Scan(&o.ID, &o.UserID, &o.Status, &o.Currency,
		&o.SubtotalCents, &o.DiscountCents, &o.MvaRate, &o.MvaCents, &o.TotalCents,
		&o.PricingSnapshot, &o.PaymentProvider, &o.PaymentRef, &o.CreatedAt, &org)
	if errors.Is(err, pgx.ErrNoRows) {
		return Order{}, "", ErrNotFound
	}
	return o, org, err
}
