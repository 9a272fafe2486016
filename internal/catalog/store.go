// Package catalog serves courses and their priced tracks: the public
// listing customers browse and the admin CRUD staff use. Track rows carry
// the full price table the pricing engine seeds line items from.
package catalog

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/reginor/backend-reginor/internal/pricing"
)

// ErrNotFound is returned when a course or track does not exist in the org.
var ErrNotFound = errors.New("catalog: not found")

// Course is one sellable course within an organization.
type Course struct {
	ID          uuid.UUID `json:"id"`
	Slug        string    `json:"slug"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Capacity    int       `json:"capacity"`
	Published   bool      `json:"published"`
	Tracks      []Track   `json:"tracks,omitempty"`
}

// Track is one priced variant of a course (e.g. leader, follower, open).
type Track struct {
	ID                     uuid.UUID `json:"id"`
	CourseID               uuid.UUID `json:"courseId"`
	Role                   string    `json:"role"`
	PriceSingleCents       int64     `json:"priceSingleCents"`
	PricePairCents         int64     `json:"pricePairCents,omitempty"`
	MemberPriceSingleCents int64     `json:"memberPriceSingleCents,omitempty"`
	MemberPricePairCents   int64     `json:"memberPricePairCents,omitempty"`
	CourseTitle            string    `json:"-"`
}

// PriceTiers converts the track's price table into the pricing engine's
// input shape.
func (t Track) PriceTiers() pricing.PriceTiers {
	return pricing.PriceTiers{
		SingleCents:       t.PriceSingleCents,
		PairCents:         t.PricePairCents,
		MemberSingleCents: t.MemberPriceSingleCents,
		MemberPairCents:   t.MemberPricePairCents,
	}
}

// Store runs catalog queries scoped by org slug.
type Store struct {
	Pool *pgxpool.Pool
}

// ListPublished returns the published courses of an org with their tracks.
func (s Store) ListPublished(ctx context.Context, org string) ([]Course, error) {
	const q = `
		SELECT c.id, c.slug, c.title, c.description, c.capacity, c.published
		FROM courses c
		JOIN organizations o ON o.id = c.org_id
		WHERE o.slug = $1 AND c.published
		ORDER BY c.starts_at NULLS LAST, c.title`
	rows, err := s.Pool.Query(ctx, q, org)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var courses []Course
	for rows.Next() {
		var c Course
		if err := rows.Scan(&c.ID, &c.Slug, &c.Title, &c.Description, &c.Capacity, &c.Published); err != nil {
			return nil, err
		}
		courses = append(courses, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range courses {
		tracks, err := s.ListTracks(ctx, courses[i].ID)
		if err != nil {
			return nil, err
		}
		courses[i].Tracks = tracks
	}
	return courses, nil
}

// GetBySlug fetches one course with tracks, published or not.
func (s Store) GetBySlug(ctx context.Context, org, slug string) (Course, error) {
	const q = `
		SELECT c.id, c.slug, c.title, c.description, c.capacity, c.published
		FROM courses c
		JOIN organizations o ON o.id = c.org_id
		WHERE o.slug = $1 AND c.slug = $2`
	var c Course
	err := s.Pool.QueryRow(ctx, q, org, slug).
		Scan(&c.ID, &c.Slug, &c.Title, &c.Description, &c.Capacity, &c.Published)
	if errors.Is(err, pgx.ErrNoRows) {
		return Course{}, ErrNotFound
	}
	if err != nil {
		return Course{}, err
	}
	tracks, err := s.ListTracks(ctx, c.ID)
	if err != nil {
		return Course{}, err
	}
	c.Tracks = tracks
	return c, nil
}

// ListTracks returns the tracks of one course.
func (s Store) ListTracks(ctx context.Context, courseID uuid.UUID) ([]Track, error) {
	const q = `
		SELECT id, course_id, role, price_single_cents, price_pair_cents,
		       member_price_single_cents, member_price_pair_cents
		FROM tracks WHERE course_id = $1 ORDER BY role`
	rows, err := s.Pool.Query(ctx, q, courseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tracks []Track
	for rows.Next() {
		var t Track
		if err := rows.Scan(&t.ID, &t.CourseID, &t.Role, &t.PriceSingleCents, &t.PricePairCents,
			&t.MemberPriceSingleCents, &t.MemberPricePairCents); err != nil {
			return nil, err
		}
		tracks = append(tracks, t)
	}
	return tracks, rows.Err()
}

// GetTracks resolves track ids to price tables for checkout. Every id must
// belong to the org; a missing id yields ErrNotFound so checkout fails
// before pricing runs.
func (s Store) GetTracks(ctx context.Context, org string, ids []uuid.UUID) (map[uuid.UUID]Track, error) {
	const q = `
		SELECT t.id, t.course_id, t.role, t.price_single_cents, t.price_pair_cents,
		       t.member_price_single_cents, t.member_price_pair_cents, c.title
		FROM tracks t
		JOIN courses c ON c.id = t.course_id
		JOIN organizations o ON o.id = t.org_id
		WHERE o.slug = $1 AND t.id = ANY($2)`
	rows, err := s.Pool.Query(ctx, q, org, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	found := make(map[uuid.UUID]Track, len(ids))
	for rows.Next() {
		var t Track
		if err := rows.Scan(&t.ID, &t.CourseID, &t.Role, &t.PriceSingleCents, &t.PricePairCents,
			&t.MemberPriceSingleCents, &t.MemberPricePairCents, &t.CourseTitle); err != nil {
			return nil, err
		}
		found[t.ID] = t
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for _, id := range ids {
		if _, ok := found[id]; !ok {
			return nil, ErrNotFound
		}
	}
	return found, nil
}

// CreateCourse inserts a course for the org.
func (s Store) CreateCourse(ctx context.Context, org string, c Course) (Course, error) {
	const q = `
		INSERT INTO courses (org_id, slug, title, description, capacity, published)
		VALUES ((SELECT id FROM organizations WHERE slug = $1), $2, $3, $4, $5, $6)
		RETURNING id`
	err := s.Pool.QueryRow(ctx, q, org, c.Slug, c.Title, c.Description, c.Capacity, c.Published).Scan(&c.ID)
	return c, err
}

// SetPublished flips a course's published flag.
func (s Store) SetPublished(ctx context.Context, org string, courseID uuid.UUID, published bool) error {
	const q = `
		UPDATE courses SET published = $3
		WHERE id = $2 AND org_id = (SELECT id FROM organizations WHERE slug = $1)`
	tag, err := s.Pool.Exec(ctx, q, org, courseID, published)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// CreateTrack inserts a track under a course.
func (s Store) CreateTrack(ctx context.Context, org string, t Track) (Track, error) {
	const q = `
		INSERT INTO tracks (org_id, course_id, role, price_single_cents, price_pair_cents,
		                    member_price_single_cents, member_price_pair_cents)
		VALUES ((SELECT id FROM organizations WHERE slug = $1), $2, $3, $4, $5, $6, $7)
		RETURNING id`
	err := s.Pool.QueryRow(ctx, q, org, t.CourseID, t.Role, t.PriceSingleCents, t.PricePairCents,
		t.MemberPriceSingleCents, t.MemberPricePairCents).Scan(&t.ID)
	return t, err
}
