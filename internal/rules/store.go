// Package rules manages the discount rules admins configure per
// organization. Rule configs are validated on write and decoded into the
// pricing engine's typed shapes, so checkout never sees malformed JSON.
package rules

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/reginor/backend-reginor/internal/pricing"
)

var (
	// ErrNotFound is returned when a rule does not exist in the org.
	ErrNotFound = errors.New("rules: not found")
	// ErrDuplicateCode is returned when a rule code is already taken.
	ErrDuplicateCode = errors.New("rules: code already exists")
)

// Store runs discount rule queries scoped by org slug.
type Store struct {
	Pool *pgxpool.Pool
}

const ruleColumns = `r.id, r.code, r.name, r.kind, r.priority, r.enabled, r.config`

func scanRule(row pgx.Row) (pricing.Rule, error) {
	var (
		r   pricing.Rule
		raw []byte
	)
	if err := row.Scan(&r.ID, &r.Code, &r.Name, &r.Kind, &r.Priority, &r.Enabled, &raw); err != nil {
		return pricing.Rule{}, err
	}
	cfg, err := pricing.DecodeRuleConfig(r.Kind, raw)
	if err != nil {
		return pricing.Rule{}, err
	}
	r.Config = cfg
	return r, nil
}

// List returns every rule of the org, enabled or not, in priority order.
func (s Store) List(ctx context.Context, org string) ([]pricing.Rule, error) {
	return s.list(ctx, org, false)
}

// ListEnabled returns the enabled rules of the org in priority order. This
// is the set checkout feeds into the pricing engine.
func (s Store) ListEnabled(ctx context.Context, org string) ([]pricing.Rule, error) {
	return s.list(ctx, org, true)
}

func (s Store) list(ctx context.Context, org string, enabledOnly bool) ([]pricing.Rule, error) {
	q := `
		SELECT ` + ruleColumns + `
		FROM discount_rules r
		JOIN organizations o ON o.id = r.org_id
		WHERE o.slug = $1`
	if enabledOnly {
		q += ` AND r.enabled`
	}
	q += ` ORDER BY r.priority, r.created_at`
	rows, err := s.Pool.Query(ctx, q, org)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []pricing.Rule
	for rows.Next() {
		r, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Get fetches one rule by id.
func (s Store) Get(ctx context.Context, org string, id uuid.UUID) (pricing.Rule, error) {
	q := `
		SELECT ` + ruleColumns + `
		FROM discount_rules r
		JOIN organizations o ON o.id = r.org_id
		WHERE o.slug = $1 AND r.id = $2`
	r, err := scanRule(s.Pool.QueryRow(ctx, q, org, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return pricing.Rule{}, ErrNotFound
	}
	return r, err
}

// Create inserts a rule. The config must already be decoded, so encoding
// back to JSON cannot fail validation.
func (s Store) Create(ctx context.Context, org string, r pricing.Rule) (pricing.Rule, error) {
	raw, err := pricing.EncodeRuleConfig(r.Kind, r.Config)
	if err != nil {
		return pricing.Rule{}, err
	}
	const q = `
		INSERT INTO discount_rules (org_id, code, name, kind, priority, enabled, config)
		VALUES ((SELECT id FROM organizations WHERE slug = $1), $2, $3, $4, $5, $6, $7)
		RETURNING id`
	err = s.Pool.QueryRow(ctx, q, org, r.Code, r.Name, r.Kind, r.Priority, r.Enabled, raw).Scan(&r.ID)
	if isUniqueViolation(err) {
		return pricing.Rule{}, ErrDuplicateCode
	}
	return r, err
}

// Update replaces a rule's mutable fields.
func (s Store) Update(ctx context.Context, org string, r pricing.Rule) (pricing.Rule, error) {
	raw, err := pricing.EncodeRuleConfig(r.Kind, r.Config)
	if err != nil {
		return pricing.Rule{}, err
	}
	const q = `
		UPDATE discount_rules
		SET name = $3, kind = $4, priority = $5, enabled = $6, config = $7, updated_at = now()
		WHERE id = $2 AND org_id = (SELECT id FROM organizations WHERE slug = $1)`
	tag, err := s.Pool.Exec(ctx, q, org, r.ID, r.Name, r.Kind, r.Priority, r.Enabled, raw)
	if err != nil {
		return pricing.Rule{}, err
	}
	if tag.RowsAffected() == 0 {
		return pricing.Rule{}, ErrNotFound
	}
	return r, nil
}

// SetEnabled toggles a rule without touching its config.
func (s Store) SetEnabled(ctx context.Context, org string, id uuid.UUID, enabled bool) error {
	const q = `
		UPDATE discount_rules SET enabled = $3, updated_at = now()
		WHERE id = $2 AND org_id = (SELECT id FROM organizations WHERE slug = $1)`
	tag, err := s.Pool.Exec(ctx, q, org, id, enabled)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a rule.
func (s Store) Delete(ctx context.Context, org string, id uuid.UUID) error {
	const q = `
		DELETE FROM discount_rules
		WHERE id = $2 AND org_id = (SELECT id FROM organizations WHERE slug = $1)`
	tag, err := s.Pool.Exec(ctx, q, org, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
