// Command seeder loads a demo organization with users, courses, tracks,
// membership tiers and discount rules. It is idempotent; re-running it
// updates prices and rule configs in place.
package main

import (
	"context"
	"os"
	"time"

	"github.com/alexedwards/argon2id"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/reginor/backend-reginor/internal/config"
	"github.com/reginor/backend-reginor/internal/obs"
	"github.com/reginor/backend-reginor/internal/store"
)

const demoPassword = "passord123"

func main() {
	logger := obs.NewLogger("console", "info").With().Str("component", "seeder").Logger()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("load config")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := store.Migrate(cfg.DatabaseURL); err != nil {
		logger.Fatal().Err(err).Msg("apply migrations")
	}
	pool, err := store.NewPool(ctx, cfg.DatabaseURL, "reginor-seeder")
	if err != nil {
		logger.Fatal().Err(err).Msg("connect database")
	}
	defer pool.Close()

	orgID, err := seedOrg(ctx, pool, "oslo-swing", "Oslo Swingklubb")
	if err != nil {
		logger.Fatal().Err(err).Msg("seed organization")
	}
	logger.Info().Str("org", "oslo-swing").Str("id", orgID).Msg("organization ready")

	if err := seedUsers(ctx, pool, orgID); err != nil {
		logger.Fatal().Err(err).Msg("seed users")
	}
	standardTier, err := seedTiers(ctx, pool, orgID)
	if err != nil {
		logger.Fatal().Err(err).Msg("seed membership tiers")
	}
	if err := seedMemberships(ctx, pool, orgID, standardTier); err != nil {
		logger.Fatal().Err(err).Msg("seed memberships")
	}
	if err := seedCourses(ctx, pool, orgID); err != nil {
		logger.Fatal().Err(err).Msg("seed courses")
	}
	if err := seedRules(ctx, pool, orgID); err != nil {
		logger.Fatal().Err(err).Msg("seed discount rules")
	}

	logger.Info().Msg("seeding complete")
	os.Exit(0)
}

func seedOrg(ctx context.Context, pool *pgxpool.Pool, slug, name string) (string, error) {
	var id string
	err := pool.QueryRow(ctx, `
		INSERT INTO organizations (slug, name, mva_rate)
		VALUES ($1, $2, 25.00)
		ON CONFLICT (slug) DO UPDATE SET name = EXCLUDED.name
		RETURNING id`, slug, name).Scan(&id)
	return id, err
}

func seedUsers(ctx context.Context, pool *pgxpool.Pool, orgID string) error {
	hash, err := argon2id.CreateHash(demoPassword, argon2id.DefaultParams)
	if err != nil {
		return err
	}
	users := []struct {
		Email string
		Name  string
		Role  string
	}{
		{"admin@oslo-swing.no", "Admin", "admin"},
		{"kursansvarlig@oslo-swing.no", "Kursansvarlig", "staff"},
		{"kari.nordmann@example.com", "Kari Nordmann", "customer"},
		{"ola.nordmann@example.com", "Ola Nordmann", "customer"},
		{"ingrid.hansen@example.com", "Ingrid Hansen", "customer"},
	}
	for _, u := range users {
		_, err := pool.Exec(ctx, `
			INSERT INTO users (org_id, email, name, password_hash, role)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (org_id, email) DO NOTHING`,
			orgID, u.Email, u.Name, hash, u.Role)
		if err != nil {
			return err
		}
	}
	return nil
}

func seedTiers(ctx context.Context, pool *pgxpool.Pool, orgID string) (string, error) {
	tiers := []struct {
		Code string
		Name string
	}{
		{"standard", "Standardmedlem"},
		{"student", "Student"},
	}
	var standardID string
	for _, t := range tiers {
		var id string
		err := pool.QueryRow(ctx, `
			INSERT INTO membership_tiers (org_id, code, name)
			VALUES ($1, $2, $3)
			ON CONFLICT (org_id, code) DO UPDATE SET name = EXCLUDED.name
			RETURNING id`, orgID, t.Code, t.Name).Scan(&id)
		if err != nil {
			return "", err
		}
		if t.Code == "standard" {
			standardID = id
		}
	}
	return standardID, nil
}

func seedMemberships(ctx context.Context, pool *pgxpool.Pool, orgID, tierID string) error {
	// Kari is an active member; the other customers pay full price.
	_, err := pool.Exec(ctx, `
		INSERT INTO memberships (org_id, user_id, tier_id, valid_from, valid_to)
		SELECT $1, u.id, $2, date_trunc('year', now())::date, (date_trunc('year', now()) + interval '1 year - 1 day')::date
		FROM users u
		WHERE u.org_id = $1 AND u.email = 'kari.nordmann@example.com'
		  AND NOT EXISTS (
			SELECT 1 FROM memberships m WHERE m.user_id = u.id AND m.valid_to >= now()::date
		  )`, orgID, tierID)
	return err
}

func seedCourses(ctx context.Context, pool *pgxpool.Pool, orgID string) error {
	courses := []struct {
		Slug        string
		Title       string
		Description string
		Capacity    int
		Tracks      []struct {
			Role               string
			Single, Pair       int64
			MemSingle, MemPair int64
		}
	}{
		{
			Slug:        "lindy-hop-nybegynner",
			Title:       "Lindy Hop nybegynner",
			Description: "Åtte uker med grunntrinn, swingouts og rytme.",
			Capacity:    40,
			Tracks: []struct {
				Role               string
				Single, Pair       int64
				MemSingle, MemPair int64
			}{
				{"leader", 150000, 280000, 120000, 220000},
				{"follower", 150000, 280000, 120000, 220000},
			},
		},
		{
			Slug:        "west-coast-swing-viderekommen",
			Title:       "West Coast Swing viderekommen",
			Description: "Musikalitet og avanserte mønstre over ti uker.",
			Capacity:    30,
			Tracks: []struct {
				Role               string
				Single, Pair       int64
				MemSingle, MemPair int64
			}{
				{"open", 180000, 340000, 150000, 280000},
			},
		},
		{
			Slug:        "boogie-woogie-helgekurs",
			Title:       "Boogie Woogie helgekurs",
			Description: "Intensiv helg med to instruktører.",
			Capacity:    24,
			Tracks: []struct {
				Role               string
				Single, Pair       int64
				MemSingle, MemPair int64
			}{
				{"open", 90000, 170000, 75000, 140000},
			},
		},
	}

	for _, c := range courses {
		var courseID string
		err := pool.QueryRow(ctx, `
			INSERT INTO courses (org_id, slug, title, description, capacity, published, starts_at)
			VALUES ($1, $2, $3, $4, $5, true, now() + interval '14 days')
			ON CONFLICT (org_id, slug) DO UPDATE SET
				title = EXCLUDED.title,
				description = EXCLUDED.description,
				capacity = EXCLUDED.capacity
			RETURNING id`, orgID, c.Slug, c.Title, c.Description, c.Capacity).Scan(&courseID)
		if err != nil {
			return err
		}
		for _, t := range c.Tracks {
			var exists bool
			if err := pool.QueryRow(ctx, `
				SELECT EXISTS (SELECT 1 FROM tracks WHERE course_id = $1 AND role = $2)`,
				courseID, t.Role).Scan(&exists); err != nil {
				return err
			}
			if exists {
				_, err = pool.Exec(ctx, `
					UPDATE tracks SET
						price_single_cents = $3,
						price_pair_cents = $4,
						member_price_single_cents = $5,
						member_price_pair_cents = $6
					WHERE course_id = $1 AND role = $2`,
					courseID, t.Role, t.Single, t.Pair, t.MemSingle, t.MemPair)
			} else {
				_, err = pool.Exec(ctx, `
					INSERT INTO tracks (org_id, course_id, role, price_single_cents, price_pair_cents, member_price_single_cents, member_price_pair_cents)
					VALUES ($1, $2, $3, $4, $5, $6, $7)`,
					orgID, courseID, t.Role, t.Single, t.Pair, t.MemSingle, t.MemPair)
			}
			if err != nil {
				return err
			}
		}
	}
	return nil
}

func seedRules(ctx context.Context, pool *pgxpool.Pool, orgID string) error {
	rules := []struct {
		Code     string
		Name     string
		Kind     string
		Priority int
		Config   string
	}{
		{
			Code:     "MEDLEM10",
			Name:     "10 % medlemsrabatt",
			Kind:     "MEMBERSHIP_TIER_PERCENT",
			Priority: 10,
			Config:   `{"discountPercent": 10}`,
		},
		{
			Code:     "FLERKURS",
			Name:     "Flerkursrabatt",
			Kind:     "MULTI_COURSE_TIERED",
			Priority: 20,
			Config:   `{"tiers": [{"count": 2, "discountCents": 20000}, {"count": 3, "discountCents": 45000}]}`,
		},
	}
	for _, r := range rules {
		_, err := pool.Exec(ctx, `
			INSERT INTO discount_rules (org_id, code, name, kind, priority, enabled, config)
			VALUES ($1, $2, $3, $4, $5, true, $6::jsonb)
			ON CONFLICT (org_id, code) DO UPDATE SET
				name = EXCLUDED.name,
				kind = EXCLUDED.kind,
				priority = EXCLUDED.priority,
				config = EXCLUDED.config,
				updated_at = now()`,
			orgID, r.Code, r.Name, r.Kind, r.Priority, r.Config)
		if err != nil {
			return err
		}
	}
	return nil
}
