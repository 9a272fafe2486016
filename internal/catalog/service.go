package catalog

import (
	"context"

	"github.com/google/uuid"

	"github.com/reginor/backend-reginor/internal/events"
	"github.com/reginor/backend-reginor/internal/tenant"
)

// Lister abstracts the store operations the service needs, so tests can
// supply fakes.
type Lister interface {
	ListPublished(ctx context.Context, org string) ([]Course, error)
	GetBySlug(ctx context.Context, org, slug string) (Course, error)
	CreateCourse(ctx context.Context, org string, c Course) (Course, error)
	SetPublished(ctx context.Context, org string, courseID uuid.UUID, published bool) error
	CreateTrack(ctx context.Context, org string, t Track) (Track, error)
}

// Emitter publishes domain events.
type Emitter interface {
	Emit(ctx context.Context, org, topic string, aggregateID uuid.UUID, payload any) (events.Event, error)
}

// Service layers the redis cache over the store for the public listing.
type Service struct {
	Store  Lister
	Cache  *Cache
	Events Emitter
}

// ListPublished serves the org's published catalog, cache-first.
func (s *Service) ListPublished(ctx context.Context, org string) ([]Course, error) {
	key := tenant.PrefixKey(org, "catalog:published")
	var cached []Course
	if hit, err := s.Cache.GetJSON(ctx, key, &cached); err == nil && hit {
		return cached, nil
	}
	courses, err := s.Store.ListPublished(ctx, org)
	if err != nil {
		return nil, err
	}
	_ = s.Cache.SetJSON(ctx, key, courses)
	return courses, nil
}

// GetBySlug fetches one course; details are not cached since admins preview
// unpublished courses through the same path.
func (s *Service) GetBySlug(ctx context.Context, org, slug string) (Course, error) {
	return s.Store.GetBySlug(ctx, org, slug)
}

// CreateCourse inserts a course and invalidates the listing cache.
func (s *Service) CreateCourse(ctx context.Context, org string, c Course) (Course, error) {
	created, err := s.Store.CreateCourse(ctx, org, c)
	if err != nil {
		return Course{}, err
	}
	_ = s.Cache.Invalidate(ctx, tenant.PrefixKey(org, "catalog:published"))
	return created, nil
}

// SetPublished flips publication and invalidates the listing cache. Going
// live additionally emits course.published for downstream consumers.
func (s *Service) SetPublished(ctx context.Context, org string, courseID uuid.UUID, published bool) error {
	if err := s.Store.SetPublished(ctx, org, courseID, published); err != nil {
		return err
	}
	_ = s.Cache.Invalidate(ctx, tenant.PrefixKey(org, "catalog:published"))
	if published && s.Events != nil {
		_, _ = s.Events.Emit(ctx, org, events.TopicCoursePublished, courseID, map[string]any{
			"courseId": courseID,
		})
	}
	return nil
}

// CreateTrack inserts a track and invalidates the listing cache.
func (s *Service) CreateTrack(ctx context.Context, org string, t Track) (Track, error) {
	created, err := s.Store.CreateTrack(ctx, org, t)
	if err != nil {
		return Track{}, err
	}
	_ = s.Cache.Invalidate(ctx, tenant.PrefixKey(org, "catalog:published"))
	return created, nil
}
