package usecases_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stazy/chargeshare/internal/core/catalog"
	"github.com/stazy/chargeshare/internal/core/domain"
	"github.com/stazy/chargeshare/internal/core/usecases"
)

func TestCatalogLoader_ThreePages(t *testing.T) {
	pager := pagesOf(
		&domain.StationPage{Stations: []domain.ChargingStation{st("1", 48, 2), st("2", 48, 2)}, Total: 6, HasMore: true},
		&domain.StationPage{Stations: []domain.ChargingStation{st("3", 48, 2), st("4", 48, 2)}, Total: 6, HasMore: true},
		&domain.StationPage{Stations: []domain.ChargingStation{st("5", 48, 2), st("6", 48, 2)}, Total: 6, HasMore: false},
	)
	loader := usecases.NewCatalogLoader(pager, 0)

	var all []domain.ChargingStation
	var progress []int
	for batch, err := range loader.Batches(context.Background(), 2) {
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		all = append(all, batch.Stations...)
		progress = append(progress, batch.Progress)
	}

	if len(all) != 6 {
		t.Fatalf("expected 6 stations, got %d", len(all))
	}
	for i, s := range all {
		if want := string(rune('1' + i)); s.ID != want {
			t.Errorf("station %d: expected id %s, got %s", i, want, s.ID)
		}
	}
	if want := []int{33, 67, 100}; !equalInts(progress, want) {
		t.Errorf("expected progress %v, got %v", want, progress)
	}
	if want := []int{0, 2, 4}; !equalInts(pager.calls, want) {
		t.Errorf("expected offsets %v, got %v", want, pager.calls)
	}
}

func TestCatalogLoader_DropsSentinelStations(t *testing.T) {
	pager := pagesOf(&domain.StationPage{
		Stations: []domain.ChargingStation{st("ok", 48, 2), st("zero", 0, 0), st("lat0", 0, 2)},
		Total:    3,
	})
	loader := usecases.NewCatalogLoader(pager, 0)

	for batch, err := range loader.Batches(context.Background(), 10) {
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(batch.Stations) != 1 || batch.Stations[0].ID != "ok" {
			t.Fatalf("expected only the located station, got %+v", batch.Stations)
		}
		if batch.Progress != 100 {
			t.Errorf("expected progress 100, got %d", batch.Progress)
		}
	}
}

func TestCatalogLoader_NormalizesStations(t *testing.T) {
	pager := pagesOf(&domain.StationPage{Stations: []domain.ChargingStation{st("a", 48, 2)}, Total: 1})
	loader := usecases.NewCatalogLoader(pager, 0)

	for batch := range loader.Batches(context.Background(), 10) {
		s := batch.Stations[0]
		if s.PricePerHour != domain.DefaultPricePerHour || s.Operator != domain.DefaultOperator {
			t.Errorf("expected defaults applied, got %+v", s)
		}
	}
}

func TestCatalogLoader_StopsOnFallback(t *testing.T) {
	pager := pagesOf(
		&domain.StationPage{Stations: []domain.ChargingStation{st("1", 48, 2)}, Total: 10, HasMore: true},
		&domain.StationPage{Stations: []domain.ChargingStation{st("fallback-0-0", 48, 2)}, Total: 100, Fallback: true, HasMore: true},
	)
	loader := usecases.NewCatalogLoader(pager, 0)

	var ids []string
	sawFallback := false
	for batch, err := range loader.Batches(context.Background(), 1) {
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		for _, s := range batch.Stations {
			ids = append(ids, s.ID)
		}
		sawFallback = sawFallback || batch.Fallback
	}
	if len(ids) != 1 || ids[0] != "1" {
		t.Errorf("fallback stations must not be loaded, got %v", ids)
	}
	if !sawFallback {
		t.Error("expected a batch flagged as fallback")
	}
	if len(pager.calls) != 2 {
		t.Errorf("expected 2 page requests, got %d", len(pager.calls))
	}
}

func TestCatalogLoader_SafetyCap(t *testing.T) {
	pager := &mockPager{fetchFn: func(ctx context.Context, offset, limit int) (*domain.StationPage, error) {
		stations := make([]domain.ChargingStation, limit)
		for i := range stations {
			stations[i] = st("x", 48, 2)
		}
		return &domain.StationPage{Stations: stations, Total: 1_000_000, HasMore: true}, nil
	}}
	loader := usecases.NewCatalogLoader(pager, 25)

	loaded := 0
	for batch, err := range loader.Batches(context.Background(), 10) {
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		loaded = batch.Loaded
	}
	if loaded != 25 {
		t.Errorf("expected cap of 25 stations, got %d", loaded)
	}
	if len(pager.calls) != 3 {
		t.Errorf("expected 3 requests, got %d", len(pager.calls))
	}
}

func TestCatalogLoader_CapReportsSourceProgress(t *testing.T) {
	pager := &mockPager{fetchFn: func(ctx context.Context, offset, limit int) (*domain.StationPage, error) {
		stations := make([]domain.ChargingStation, limit)
		for i := range stations {
			stations[i] = st("x", 48, 2)
		}
		return &domain.StationPage{Stations: stations, Total: 50, HasMore: true}, nil
	}}
	loader := usecases.NewCatalogLoader(pager, 25)

	var progress []int
	for batch, err := range loader.Batches(context.Background(), 10) {
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		progress = append(progress, batch.Progress)
	}
	// The cap stops the load halfway through the source.
	if want := []int{20, 40, 50}; !equalInts(progress, want) {
		t.Errorf("expected progress %v, got %v", want, progress)
	}
}

func TestCatalogLoader_PartialLoad(t *testing.T) {
	boom := errors.New("connection reset")
	n := 0
	pager := &mockPager{fetchFn: func(ctx context.Context, offset, limit int) (*domain.StationPage, error) {
		n++
		if n == 2 {
			return nil, boom
		}
		return &domain.StationPage{Stations: []domain.ChargingStation{st("1", 48, 2), st("2", 48, 2)}, Total: 6, HasMore: true}, nil
	}}
	loader := usecases.NewCatalogLoader(pager, 0)

	var kept int
	var errs []error
	for batch, err := range loader.Batches(context.Background(), 2) {
		if err != nil {
			errs = append(errs, err)
			continue
		}
		kept += len(batch.Stations)
	}

	if kept != 2 {
		t.Errorf("expected 2 stations kept, got %d", kept)
	}
	if len(errs) != 1 {
		t.Fatalf("expected exactly one error, got %d", len(errs))
	}
	var partial *domain.PartialLoadError
	if !errors.As(errs[0], &partial) {
		t.Fatalf("expected PartialLoadError, got %T", errs[0])
	}
	if partial.Loaded != 2 || partial.Offset != 2 {
		t.Errorf("unexpected partial state: %+v", partial)
	}
	if !errors.Is(errs[0], boom) {
		t.Error("expected the cause to be unwrapped")
	}
	if n != 2 {
		t.Errorf("expected no retry, got %d requests", n)
	}
}

func TestCatalogLoader_UnknownTotalIsIndeterminate(t *testing.T) {
	pager := pagesOf(
		&domain.StationPage{Stations: []domain.ChargingStation{st("1", 48, 2)}, HasMore: true},
		&domain.StationPage{Stations: []domain.ChargingStation{st("2", 48, 2)}, HasMore: false},
	)
	loader := usecases.NewCatalogLoader(pager, 0)

	var progress []int
	for batch := range loader.Batches(context.Background(), 1) {
		progress = append(progress, batch.Progress)
	}
	if want := []int{catalog.ProgressUnknown, 100}; !equalInts(progress, want) {
		t.Errorf("expected %v, got %v", want, progress)
	}
}

func TestCatalogLoader_ProgressNeverDecreases(t *testing.T) {
	totals := []int{4, 10, 10, 10}
	i := 0
	pager := &mockPager{fetchFn: func(ctx context.Context, offset, limit int) (*domain.StationPage, error) {
		total := totals[i]
		i++
		return &domain.StationPage{Stations: []domain.ChargingStation{st("s", 48, 2), st("s", 48, 2)}, Total: total, HasMore: i < len(totals)}, nil
	}}
	loader := usecases.NewCatalogLoader(pager, 0)

	prev := 0
	for batch := range loader.Batches(context.Background(), 2) {
		if batch.Progress < prev {
			t.Errorf("progress went from %d to %d", prev, batch.Progress)
		}
		prev = batch.Progress
	}
	if prev != 100 {
		t.Errorf("expected final progress 100, got %d", prev)
	}
}

func TestCatalogLoader_ConsumerCanStopEarly(t *testing.T) {
	pager := &mockPager{fetchFn: func(ctx context.Context, offset, limit int) (*domain.StationPage, error) {
		return &domain.StationPage{Stations: []domain.ChargingStation{st("s", 48, 2)}, Total: 100, HasMore: true}, nil
	}}
	loader := usecases.NewCatalogLoader(pager, 0)

	for range loader.Batches(context.Background(), 1) {
		break
	}
	if len(pager.calls) != 1 {
		t.Errorf("expected 1 request, got %d", len(pager.calls))
	}
}

func TestCatalogLoader_Restartable(t *testing.T) {
	pager := &mockPager{fetchFn: func(ctx context.Context, offset, limit int) (*domain.StationPage, error) {
		return &domain.StationPage{Stations: []domain.ChargingStation{st("s", 48, 2)}, Total: 1}, nil
	}}
	seq := usecases.NewCatalogLoader(pager, 0).Batches(context.Background(), 1)
	for range seq {
	}
	for range seq {
	}
	if want := []int{0, 0}; !equalInts(pager.calls, want) {
		t.Errorf("expected both runs to start at offset 0, got %v", pager.calls)
	}
}

func TestCatalogLoader_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	pager := &mockPager{fetchFn: func(ctx context.Context, offset, limit int) (*domain.StationPage, error) {
		t.Fatal("pager must not be called")
		return nil, nil
	}}

	for _, err := range usecases.NewCatalogLoader(pager, 0).Batches(ctx, 1) {
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	}
}

func equalInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
