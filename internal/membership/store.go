// Package membership tracks paid memberships and resolves the member
// context the pricing engine consumes. A user is a member when a membership
// row covers today's date.
package membership

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/reginor/backend-reginor/internal/pricing"
)

// ErrNotFound is returned when a tier or membership is missing in the org.
var ErrNotFound = errors.New("membership: not found")

// Tier is one named membership level, e.g. "standard" or "student".
type Tier struct {
	ID   uuid.UUID `json:"id"`
	Code string    `json:"code"`
	Name string    `json:"name"`
}

// Membership is one granted membership period.
type Membership struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"userId"`
	TierID    uuid.UUID `json:"tierId"`
	TierCode  string    `json:"tierCode"`
	ValidFrom time.Time `json:"validFrom"`
	ValidTo   time.Time `json:"validTo"`
}

// Store runs membership queries scoped by org slug.
type Store struct {
	Pool *pgxpool.Pool
}

// ListTiers returns the org's membership tiers.
func (s Store) ListTiers(ctx context.Context, org string) ([]Tier, error) {
	const q = `
		SELECT t.id, t.code, t.name
		FROM membership_tiers t
		JOIN organizations o ON o.id = t.org_id
		WHERE o.slug = $1
		ORDER BY t.code`
	rows, err := s.Pool.Query(ctx, q, org)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tiers []Tier
	for rows.Next() {
		var t Tier
		if err := rows.Scan(&t.ID, &t.Code, &t.Name); err != nil {
			return nil, err
		}
		tiers = append(tiers, t)
	}
	return tiers, rows.Err()
}

// CreateTier inserts a tier for the org.
func (s Store) CreateTier(ctx context.Context, org string, t Tier) (Tier, error) {
	const q = `
		INSERT INTO membership_tiers (org_id, code, name)
		VALUES ((SELECT id FROM organizations WHERE slug = $1), $2, $3)
		RETURNING id`
	err := s.Pool.QueryRow(ctx, q, org, t.Code, t.Name).Scan(&t.ID)
	return t, err
}

// Grant inserts a membership period for a user.
func (s Store) Grant(ctx context.Context, org string, m Membership) (Membership, error) {
	const q = `
		INSERT INTO memberships (org_id, user_id, tier_id, valid_from, valid_to)
		VALUES ((SELECT id FROM organizations WHERE slug = $1), $2, $3, $4, $5)
		RETURNING id`
	err := s.Pool.QueryRow(ctx, q, org, m.UserID, m.TierID, m.ValidFrom, m.ValidTo).Scan(&m.ID)
	return m, err
}

// Active returns the user's membership that covers the given date, or
// ErrNotFound. When periods overlap the one expiring last wins.
func (s Store) Active(ctx context.Context, org string, userID uuid.UUID, on time.Time) (Membership, error) {
	const q = `
		SELECT m.id, m.user_id, m.tier_id, t.code, m.valid_from, m.valid_to
		FROM memberships m
		JOIN membership_tiers t ON t.id = m.tier_id
		JOIN organizations o ON o.id = m.org_id
		WHERE o.slug = $1 AND m.user_id = $2 AND m.valid_from <= $3 AND m.valid_to >= $3
		ORDER BY m.valid_to DESC
		LIMIT 1`
	var m Membership
	err := s.Pool.QueryRow(ctx, q, org, userID, on).
		Scan(&m.ID, &m.UserID, &m.TierID, &m.TierCode, &m.ValidFrom, &m.ValidTo)
	if errors.Is(err, pgx.ErrNoRows) {
		return Membership{}, ErrNotFound
	}
	return m, err
}

// UserContext resolves the pricing context for a user at checkout time.
// Anonymous checkouts pass uuid.Nil and price as non-members.
func (s Store) UserContext(ctx context.Context, org string, userID uuid.UUID) (pricing.UserContext, error) {
	if userID == uuid.Nil {
		return pricing.UserContext{}, nil
	}
	m, err := s.Active(ctx, org, userID, time.Now())
	if errors.Is(err, ErrNotFound) {
		return pricing.UserContext{}, nil
	}
	if err != nil {
		return pricing.UserContext{}, err
	}
	return pricing.UserContext{IsMember: true, MembershipTierID: m.TierID.String()}, nil
}
