package checkout

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PGRates reads the org's MVA rate override, falling back to the platform
// default (Norwegian standard rate unless configured otherwise).
type PGRates struct {
	Pool    *pgxpool.Pool
	Default float64
}

// MvaRate returns the rate to apply for the org.
func (r PGRates) MvaRate(ctx context.Context, org string) (float64, error) {
	const q = `SELECT mva_rate FROM organizations WHERE slug = $1`
	var rate *float64
	if err := r.Pool.QueryRow(ctx, q, org).Scan(&rate); err != nil {
		return 0, err
	}
	if rate == nil {
		return r.Default, nil
	}
	return *rate, nil
}

// StaticRates serves a fixed rate, used in tests and single-org setups.
type StaticRates float64

// MvaRate returns the fixed rate.
func (r StaticRates) MvaRate(context.Context, string) (float64, error) { return float64(r), nil }
