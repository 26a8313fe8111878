// Package service contains the business logic for the tour manager.
// Services validate inputs, enforce business rules, and orchestrate repo calls.
// No SQL lives here. Services depend on repo interfaces, not implementations.
package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/pkordes/tour-manager/internal/domain"
	"github.com/pkordes/tour-manager/internal/repo"
)

const tourCacheName = "tour"

// TourCache is the read-through cache TourService can use for GetByID.
// *cache.InMemory[int64, domain.Tour] satisfies it.
type TourCache interface {
	Get(id int64) (domain.Tour, bool)
	Set(id int64, t domain.Tour)
	Delete(id int64)
}

// CacheRecorder receives cache hit/miss notifications.
type CacheRecorder interface {
	IncrCacheHit(cache string)
	IncrCacheMiss(cache string)
}

// TourService implements business logic for Tour operations.
type TourService struct {
	tours   repo.TourRepo
	events  repo.EventRepo
	cache   TourCache
	metrics CacheRecorder

	// writes counts invalidations. A read only fills the cache when no
	// write happened while it was loading.
	mu     sync.Mutex
	writes uint64
}

// NewTourService constructs a TourService backed by the provided repos.
func NewTourService(tours repo.TourRepo, events repo.EventRepo) *TourService {
	return &TourService{tours: tours, events: events}
}

// WithCache enables read-through caching of GetByID. m may be nil.
func (s *TourService) WithCache(c TourCache, m CacheRecorder) *TourService {
	s.cache = c
	s.metrics = m
	return s
}

// Create validates and persists a new tour.
func (s *TourService) Create(ctx context.Context, tour domain.Tour) (domain.Tour, error) {
	tour, err := normalizeTour(tour)
	if err != nil {
		return domain.Tour{}, fmt.Errorf("service.TourService.Create: %w", err)
	}
	result, err := s.tours.Create(ctx, tour)
	if err != nil {
		return domain.Tour{}, fmt.Errorf("service.TourService.Create: %w", err)
	}
	return result, nil
}

// GetByID returns a single tour by id.
func (s *TourService) GetByID(ctx context.Context, id int64) (domain.Tour, error) {
	if s.cache != nil {
		if t, ok := s.cache.Get(id); ok {
			s.recordCache(true)
			return t, nil
		}
		s.recordCache(false)
	}

	before := s.writeCount()
	t, err := s.tours.GetByID(ctx, id)
	if err != nil {
		return domain.Tour{}, fmt.Errorf("service.TourService.GetByID: %w", err)
	}
	if s.cache != nil {
		s.mu.Lock()
		if s.writes == before {
			s.cache.Set(id, t)
		}
		s.mu.Unlock()
	}
	return t, nil
}

// ListPaged returns one page of tours and the total count.
// The slice is never nil so callers can encode it as a JSON array.
func (s *TourService) ListPaged(ctx context.Context, p domain.PaginationParams) ([]domain.Tour, int64, error) {
	tours, total, err := s.tours.ListPaged(ctx, p)
	if err != nil {
		return nil, 0, fmt.Errorf("service.TourService.ListPaged: %w", err)
	}
	if tours == nil {
		tours = []domain.Tour{}
	}
	return tours, total, nil
}

// Update validates and updates an existing tour.
func (s *TourService) Update(ctx context.Context, tour domain.Tour) (domain.Tour, error) {
	tour, err := normalizeTour(tour)
	if err != nil {
		return domain.Tour{}, fmt.Errorf("service.TourService.Update: %w", err)
	}

	updated, err := s.tours.Update(ctx, tour)
	s.invalidate(tour.ID)
	if err != nil {
		return domain.Tour{}, fmt.Errorf("service.TourService.Update: %w", err)
	}
	return updated, nil
}

// Delete removes a tour by id. Its events stay and lose their tour link.
func (s *TourService) Delete(ctx context.Context, id int64) error {
	err := s.tours.Delete(ctx, id)
	s.invalidate(id)
	if err != nil {
		return fmt.Errorf("service.TourService.Delete: %w", err)
	}
	return nil
}

// Events returns the events attached to a tour.
// Returns domain.ErrNotFound when the tour itself does not exist.
func (s *TourService) Events(ctx context.Context, id int64) ([]domain.Event, error) {
	if _, err := s.GetByID(ctx, id); err != nil {
		return nil, err
	}
	events, err := s.events.ListByTour(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("service.TourService.Events: %w", err)
	}
	if events == nil {
		events = []domain.Event{}
	}
	return events, nil
}

func (s *TourService) writeCount() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}

// invalidate drops id from the cache after a write to the repo.
func (s *TourService) invalidate(id int64) {
	if s.cache == nil {
		return
	}
	s.mu.Lock()
	s.writes++
	s.cache.Delete(id)
	s.mu.Unlock()
}

func (s *TourService) recordCache(hit bool) {
	if s.metrics == nil {
		return
	}
	if hit {
		s.metrics.IncrCacheHit(tourCacheName)
	} else {
		s.metrics.IncrCacheMiss(tourCacheName)
	}
}

// normalizeTour trims text fields, truncates dates to calendar days and
// enforces the tour rules.
func normalizeTour(t domain.Tour) (domain.Tour, error) {
	t.Name = strings.TrimSpace(t.Name)
	t.ArtistName = strings.TrimSpace(t.ArtistName)
	t.Notes = strings.TrimSpace(t.Notes)

	if t.Name == "" {
		return domain.Tour{}, fmt.Errorf("%w: name is required", domain.ErrValidation)
	}
	if utf8.RuneCountInString(t.Name) > domain.MaxTourNameLength {
		return domain.Tour{}, fmt.Errorf("%w: name must be at most %d characters", domain.ErrValidation, domain.MaxTourNameLength)
	}

	if t.StartDate != nil {
		d := domain.TruncateDay(*t.StartDate)
		t.StartDate = &d
	}
	if t.EndDate != nil {
		d := domain.TruncateDay(*t.EndDate)
		t.EndDate = &d
	}
	if t.StartDate != nil && t.EndDate != nil && t.EndDate.Before(*t.StartDate) {
		return domain.Tour{}, fmt.Errorf("%w: end_date must not be before start_date", domain.ErrValidation)
	}
	return t, nil
}
