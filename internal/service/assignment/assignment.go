package assignment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	domainassignment "github.com/alanyang/annotation-desk/internal/domain/assignment"
	"github.com/alanyang/annotation-desk/internal/domain/event"
	portbus "github.com/alanyang/annotation-desk/internal/port/eventbus"
	portimageset "github.com/alanyang/annotation-desk/internal/port/imageset"
	portstate "github.com/alanyang/annotation-desk/internal/port/statestore"
)

// Service owns the assignment table for the lifetime of the process.
// The table is built once by LoadOrCreate and read by everything else.
type Service struct {
	lister  portimageset.Lister
	store   portstate.Store
	bus     portbus.EventBus
	workers []domainassignment.Worker
	shuffle domainassignment.Shuffler

	mu    sync.RWMutex
	table domainassignment.Table
}

func NewService(
	lister portimageset.Lister,
	store portstate.Store,
	bus portbus.EventBus,
	workers []domainassignment.Worker,
	shuffle domainassignment.Shuffler,
) *Service {
	workers = slices.Clone(workers)
	return &Service{
		lister:  lister,
		store:   store,
		bus:     bus,
		workers: workers,
		shuffle: shuffle,
		table:   domainassignment.Empty(workers),
	}
}

// LoadOrCreate reuses the persisted table when it still matches the image
// set and the configured workers, and otherwise builds and persists a new
// one. Storage and state problems are logged and never returned.
func (s *Service) LoadOrCreate(ctx context.Context) (domainassignment.Table, error) {
	if err := ctx.Err(); err != nil {
		return domainassignment.Table{}, fmt.Errorf("load assignments: %w", err)
	}

	images, err := s.lister.List(ctx)
	if err != nil {
		slog.WarnContext(ctx, "image set unavailable, treating as empty", "error", err)
		images = nil
	}

	stored, err := s.store.Load(ctx)
	switch {
	case err == nil:
		verr := stored.Validate(images, s.workers)
		if verr == nil {
			stored.Reorder(s.workers)
			s.set(stored)
			slog.InfoContext(ctx, "loaded existing assignments", "images", stored.Total(), "workers", len(s.workers))
			return stored, nil
		}
		slog.WarnContext(ctx, "stored assignments out of date, regenerating", "error", verr)
	case errors.Is(err, domainassignment.ErrStateNotFound):
		slog.InfoContext(ctx, "no stored assignments, creating")
	default:
		slog.WarnContext(ctx, "stored assignments unreadable, regenerating", "error", err)
	}

	return s.regenerate(ctx, images), nil
}

func (s *Service) regenerate(ctx context.Context, images []string) domainassignment.Table {
	t := domainassignment.Create(images, s.workers, s.shuffle)

	// An empty table is not persisted so a later start with images present
	// builds a real one.
	if len(images) == 0 {
		slog.WarnContext(ctx, "no images found, assignments not persisted")
	} else if err := s.store.Save(ctx, t); err != nil {
		slog.ErrorContext(ctx, "failed to persist assignments", "error", err)
	} else {
		slog.InfoContext(ctx, "created new assignments", "images", t.Total(), "workers", len(s.workers))
	}

	s.set(t)

	if err := s.bus.Publish(ctx, event.New(event.TypeAssignmentsCreated, "", "")); err != nil {
		slog.ErrorContext(ctx, "failed to publish AssignmentsCreated event", "error", err)
	}
	return t
}

func (s *Service) set(t domainassignment.Table) {
	s.mu.Lock()
	s.table = t
	s.mu.Unlock()
}

// Table returns the current table. Callers must treat it as read-only.
func (s *Service) Table() domainassignment.Table {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.table
}

// Workers lists configured workers in declared order.
func (s *Service) Workers() []domainassignment.Worker {
	return slices.Clone(s.workers)
}

// Assigned returns worker's filenames in assignment order.
func (s *Service) Assigned(worker string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	files, ok := s.table.Assigned(worker)
	if !ok {
		return nil, fmt.Errorf("%w: %s", domainassignment.ErrUnknownWorker, worker)
	}
	return slices.Clone(files), nil
}

// Authorize checks that filename is in worker's assigned sequence.
func (s *Service) Authorize(worker, filename string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.table.Assigned(worker); !ok {
		return fmt.Errorf("%w: %s", domainassignment.ErrUnknownWorker, worker)
	}
	if !s.table.Contains(worker, filename) {
		return fmt.Errorf("%w: %s/%s", domainassignment.ErrUnauthorized, worker, filename)
	}
	return nil
}
