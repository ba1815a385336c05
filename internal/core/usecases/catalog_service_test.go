package usecases_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stazy/chargeshare/internal/core/catalog"
	"github.com/stazy/chargeshare/internal/core/domain"
	"github.com/stazy/chargeshare/internal/core/usecases"
)

func TestCatalogService_ReloadPublishesEveryPage(t *testing.T) {
	store := catalog.NewStore()
	var seen []int
	pages := []*domain.StationPage{
		{Stations: []domain.ChargingStation{st("1", 48, 2), st("2", 48, 2)}, Total: 6, HasMore: true},
		{Stations: []domain.ChargingStation{st("3", 48, 2), st("4", 48, 2)}, Total: 6, HasMore: true},
		{Stations: []domain.ChargingStation{st("5", 48, 2), st("6", 48, 2)}, Total: 6, HasMore: false},
	}
	i := 0
	pager := &mockPager{fetchFn: func(ctx context.Context, offset, limit int) (*domain.StationPage, error) {
		seen = append(seen, store.Load().Loaded())
		p := pages[i]
		i++
		return p, nil
	}}

	svc := usecases.NewCatalogService(usecases.NewCatalogLoader(pager, 0), store, 2)
	if err := svc.Reload(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	snap := svc.Snapshot()
	if snap.Loaded() != 6 {
		t.Fatalf("expected 6 stations, got %d", snap.Loaded())
	}
	if snap.Progress != 100 || snap.Loading {
		t.Errorf("expected finished load at 100%%, got progress=%d loading=%v", snap.Progress, snap.Loading)
	}
	if want := []int{0, 2, 4}; !equalInts(seen, want) {
		t.Errorf("expected readers to see %v before each page, got %v", want, seen)
	}
}

func TestCatalogService_PartialLoadKeepsStations(t *testing.T) {
	store := catalog.NewStore()
	n := 0
	pager := &mockPager{fetchFn: func(ctx context.Context, offset, limit int) (*domain.StationPage, error) {
		n++
		if n == 3 {
			return nil, errors.New("timeout")
		}
		return &domain.StationPage{Stations: []domain.ChargingStation{st("a", 48, 2)}, Total: 5, HasMore: true}, nil
	}}

	svc := usecases.NewCatalogService(usecases.NewCatalogLoader(pager, 0), store, 1)
	err := svc.Reload(context.Background())

	var partial *domain.PartialLoadError
	if !errors.As(err, &partial) {
		t.Fatalf("expected PartialLoadError, got %v", err)
	}
	snap := svc.Snapshot()
	if snap.Loaded() != 2 {
		t.Errorf("expected 2 stations kept, got %d", snap.Loaded())
	}
	if snap.LastError == "" || snap.Loading {
		t.Errorf("expected error recorded and loading finished, got %+v", snap)
	}
}

func TestCatalogService_RefreshKeepsOldCatalogVisible(t *testing.T) {
	store := catalog.NewStore()
	store.Publish(&catalog.Snapshot{Stations: []domain.ChargingStation{st("old1", 48, 2), st("old2", 48, 2)}, Total: 2, Progress: 100})

	var seen []int
	first := true
	pager := &mockPager{fetchFn: func(ctx context.Context, offset, limit int) (*domain.StationPage, error) {
		seen = append(seen, store.Load().Loaded())
		if first {
			first = false
			return &domain.StationPage{Stations: []domain.ChargingStation{st("n1", 48, 2)}, Total: 3, HasMore: true}, nil
		}
		return &domain.StationPage{Stations: []domain.ChargingStation{st("n2", 48, 2), st("n3", 48, 2)}, Total: 3}, nil
	}}

	svc := usecases.NewCatalogService(usecases.NewCatalogLoader(pager, 0), store, 2)
	if err := svc.Reload(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := []int{2, 2}; !equalInts(seen, want) {
		t.Errorf("expected the old catalog during refresh, got %v", seen)
	}
	if got := svc.Snapshot().Loaded(); got != 3 {
		t.Errorf("expected 3 stations after refresh, got %d", got)
	}
}

func TestCatalogService_FallbackSourceKeepsPrevious(t *testing.T) {
	store := catalog.NewStore()
	store.Publish(&catalog.Snapshot{Stations: []domain.ChargingStation{st("old", 48, 2)}, Total: 1, Progress: 100})
	pager := pagesOf(usecases.FallbackPage())

	svc := usecases.NewCatalogService(usecases.NewCatalogLoader(pager, 0), store, 10)
	if err := svc.Reload(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	snap := svc.Snapshot()
	if snap.Loaded() != 1 || snap.Stations[0].ID != "old" {
		t.Errorf("expected previous catalog kept, got %d stations", snap.Loaded())
	}
	if snap.LastError == "" {
		t.Error("expected fallback to be reported")
	}
}

func TestCatalogService_UpdateDuringReloadRunsAgain(t *testing.T) {
	store := catalog.NewStore()
	entered := make(chan struct{}, 4)
	release := make(chan struct{})
	var calls atomic.Int32
	pager := &mockPager{fetchFn: func(ctx context.Context, offset, limit int) (*domain.StationPage, error) {
		n := calls.Add(1)
		entered <- struct{}{}
		<-release
		if n == 1 {
			return &domain.StationPage{Stations: []domain.ChargingStation{st("old", 48, 2)}, Total: 1}, nil
		}
		return &domain.StationPage{Stations: []domain.ChargingStation{st("old", 48, 2), st("imported", 47, 3)}, Total: 2}, nil
	}}
	svc := usecases.NewCatalogService(usecases.NewCatalogLoader(pager, 0), store, 10)

	ev := domain.CatalogUpdated{Imported: 1, Source: "irve"}
	if err := svc.HandleCatalogUpdated(context.Background(), ev); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	select {
	case <-entered:
	case <-time.After(2 * time.Second):
		t.Fatal("reload did not start")
	}

	// The import finishing mid-load must not be lost.
	if err := svc.HandleCatalogUpdated(context.Background(), ev); err != nil {
		t.Fatalf("expected in-progress reload to queue another pass, got %v", err)
	}
	close(release)

	deadline := time.Now().Add(2 * time.Second)
	for svc.Snapshot().Loaded() != 2 || svc.Snapshot().Loading {
		if time.Now().After(deadline) {
			t.Fatalf("catalog not reloaded after the second event: %d stations", svc.Snapshot().Loaded())
		}
		time.Sleep(5 * time.Millisecond)
	}
	if got := calls.Load(); got != 2 {
		t.Errorf("expected 2 fetches, got %d", got)
	}
}

func TestCatalogService_TriggerReloadOnlyOnce(t *testing.T) {
	release := make(chan struct{})
	var calls atomic.Int32
	pager := &mockPager{fetchFn: func(ctx context.Context, offset, limit int) (*domain.StationPage, error) {
		calls.Add(1)
		<-release
		return &domain.StationPage{Stations: []domain.ChargingStation{st("a", 48, 2)}, Total: 1}, nil
	}}
	svc := usecases.NewCatalogService(usecases.NewCatalogLoader(pager, 0), catalog.NewStore(), 10)

	var wg sync.WaitGroup
	var started, busy atomic.Int32
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			switch err := svc.TriggerReload(context.Background()); {
			case err == nil:
				started.Add(1)
			case errors.Is(err, usecases.ErrReloadInProgress):
				busy.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()
	close(release)

	if started.Load() != 1 || busy.Load() != 7 {
		t.Errorf("expected 1 started and 7 busy, got %d and %d", started.Load(), busy.Load())
	}
	deadline := time.Now().Add(2 * time.Second)
	for svc.Snapshot().Loaded() != 1 || svc.Snapshot().Loading {
		if time.Now().After(deadline) {
			t.Fatal("catalog not loaded")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("expected 1 fetch, got %d", got)
	}
}
