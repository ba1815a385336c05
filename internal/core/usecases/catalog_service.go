package usecases

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/stazy/chargeshare/internal/core/catalog"
	"github.com/stazy/chargeshare/internal/core/domain"
)

// ErrReloadInProgress is returned when a reload is requested while one is running.
var ErrReloadInProgress = errors.New("catalog reload already in progress")

// CatalogService keeps the in-memory catalog snapshot up to date.
type CatalogService struct {
	loader   *CatalogLoader
	store    *catalog.Store
	pageSize int

	mu      sync.Mutex
	running atomic.Bool
	// dirty is set when an update arrives while a reload is running.
	dirty atomic.Bool
}

// NewCatalogService creates a new CatalogService.
func NewCatalogService(loader *CatalogLoader, store *catalog.Store, pageSize int) *CatalogService {
	return &CatalogService{loader: loader, store: store, pageSize: pageSize}
}

// Snapshot returns the current catalog snapshot.
func (s *CatalogService) Snapshot() *catalog.Snapshot {
	return s.store.Load()
}

// Reload pages through the whole catalog.
//
// On the first load (or after a failed one) a snapshot is published after every page
// so readers can use partial data. When a complete catalog is already loaded, the old
// stations stay visible until the new load finishes. A *domain.PartialLoadError is
// returned when paging aborts; the stations loaded so far remain published.
//
// An update signalled while the load runs triggers one more pass before Reload
// returns, so the published snapshot never misses it.
func (s *CatalogService) Reload(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running.Store(true)

	for {
		s.dirty.Store(false)
		err := s.load(ctx)
		if ctx.Err() == nil && s.dirty.Load() {
			slog.Info("catalog changed during reload, loading again")
			continue
		}
		s.running.Store(false)
		// An update may have landed between the check above and clearing running.
		if ctx.Err() == nil && s.dirty.Load() && s.running.CompareAndSwap(false, true) {
			continue
		}
		return err
	}
}

func (s *CatalogService) load(ctx context.Context) error {
	prev := s.store.Load()
	progressive := prev.Loaded() == 0 || prev.LastError != ""
	started := time.Now()

	s.store.Publish(&catalog.Snapshot{
		Stations:  prev.Stations,
		Total:     prev.Total,
		Progress:  prev.Progress,
		Loading:   true,
		UpdatedAt: prev.UpdatedAt,
	})

	acc := make([]domain.ChargingStation, 0)
	var last Batch
	for batch, err := range s.loader.Batches(ctx, s.pageSize) {
		if err != nil {
			offset := 0
			var partial *domain.PartialLoadError
			if errors.As(err, &partial) {
				offset = partial.Offset
			}
			slog.Warn("catalog load aborted",
				"loaded", len(acc),
				"offset", offset,
				"error", err,
			)
			stations := prev.Stations
			if progressive {
				stations = acc[:len(acc):len(acc)]
			}
			s.store.Publish(&catalog.Snapshot{
				Stations:  stations,
				Total:     last.Total,
				Progress:  last.Progress,
				LastError: err.Error(),
				UpdatedAt: time.Now(),
			})
			return err
		}

		acc = append(acc, batch.Stations...)
		last = batch
		if batch.Fallback {
			slog.Warn("catalog source returned fallback data, keeping loaded stations", "loaded", len(acc))
		}
		if progressive {
			s.store.Publish(&catalog.Snapshot{
				Stations:  acc[:len(acc):len(acc)],
				Total:     batch.Total,
				Progress:  batch.Progress,
				Loading:   true,
				UpdatedAt: time.Now(),
			})
		}
	}

	final := &catalog.Snapshot{
		Stations:  acc[:len(acc):len(acc)],
		Total:     last.Total,
		Progress:  last.Progress,
		UpdatedAt: time.Now(),
	}
	if last.Fallback && len(acc) == 0 {
		final.Stations = prev.Stations
		final.LastError = "catalog source unavailable (fallback data)"
	}
	s.store.Publish(final)

	slog.Info("catalog loaded",
		"stations", final.Loaded(),
		"total", final.Total,
		"duration", time.Since(started).String(),
	)
	return nil
}

// TriggerReload starts a background reload unless one is already running.
func (s *CatalogService) TriggerReload(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return ErrReloadInProgress
	}
	go func() {
		if err := s.Reload(context.WithoutCancel(ctx)); err != nil {
			slog.Error("background catalog reload failed", "error", err)
		}
	}()
	return nil
}

// HandleCatalogUpdated reacts to an import notification. When a reload is already
// running it is marked dirty and runs again once finished.
func (s *CatalogService) HandleCatalogUpdated(ctx context.Context, ev domain.CatalogUpdated) error {
	slog.Info("catalog updated event received", "imported", ev.Imported, "source", ev.Source)
	err := s.TriggerReload(ctx)
	if errors.Is(err, ErrReloadInProgress) {
		s.dirty.Store(true)
		// The running reload may have finished before dirty was set.
		if err = s.TriggerReload(ctx); errors.Is(err, ErrReloadInProgress) {
			slog.Info("catalog reload in progress, queued another pass")
			return nil
		}
	}
	if err != nil {
		return fmt.Errorf("trigger reload: %w", err)
	}
	return nil
}
