package usecases

import (
	"context"
	"iter"

	"github.com/stazy/chargeshare/internal/core/catalog"
	"github.com/stazy/chargeshare/internal/core/domain"
	"github.com/stazy/chargeshare/internal/core/ports"
)

// Catalog paging limits.
const (
	DefaultPageSize    = 5000
	DefaultMaxStations = 100000
)

// Batch is one page of stations ready to be appended to the catalog.
type Batch struct {
	Stations []domain.ChargingStation
	Offset   int
	Loaded   int
	Total    int
	// Progress is a percentage in [0,100], or catalog.ProgressUnknown.
	Progress int
	// Fallback is set on the final, empty batch when the source served placeholder data.
	Fallback bool
}

// CatalogLoader pages through a StationPager.
type CatalogLoader struct {
	pager       ports.StationPager
	maxStations int
}

// NewCatalogLoader creates a CatalogLoader capped at maxStations (DefaultMaxStations if <= 0).
func NewCatalogLoader(pager ports.StationPager, maxStations int) *CatalogLoader {
	if maxStations <= 0 {
		maxStations = DefaultMaxStations
	}
	return &CatalogLoader{pager: pager, maxStations: maxStations}
}

// Batches returns a finite sequence of pages, requested and yielded in order.
//
// Paging stops when the source reports no more data, the cap is reached or the source
// answers with fallback data. Stations without coordinates are dropped. A failed page
// yields a *domain.PartialLoadError once and ends the sequence; nothing is retried.
// The sequence can be ranged over again to restart from offset 0.
func (l *CatalogLoader) Batches(ctx context.Context, pageSize int) iter.Seq2[Batch, error] {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}

	return func(yield func(Batch, error) bool) {
		offset, loaded := 0, 0
		progress := 0

		for {
			if err := ctx.Err(); err != nil {
				yield(Batch{}, &domain.PartialLoadError{Loaded: loaded, Offset: offset, Err: err})
				return
			}

			limit := min(pageSize, l.maxStations-loaded)
			page, err := l.pager.FetchPage(ctx, offset, limit)
			if err != nil {
				yield(Batch{}, &domain.PartialLoadError{Loaded: loaded, Offset: offset, Err: err})
				return
			}
			if page.Fallback {
				yield(Batch{Offset: offset, Loaded: loaded, Total: page.Total, Progress: progress, Fallback: true}, nil)
				return
			}

			valid := make([]domain.ChargingStation, 0, len(page.Stations))
			for _, s := range page.Stations {
				if !s.HasLocation() {
					continue
				}
				if loaded+len(valid) >= l.maxStations {
					break
				}
				valid = append(valid, s.Normalize())
			}

			offset += len(page.Stations)
			loaded += len(valid)
			exhausted := !page.HasMore || len(page.Stations) == 0
			done := exhausted || loaded >= l.maxStations

			// A capped load reports how far it got into the source, not 100.
			switch p := catalog.Progress(offset, page.Total); {
			case exhausted:
				progress = 100
			case p == catalog.ProgressUnknown:
				if progress == 0 {
					progress = catalog.ProgressUnknown
				}
			case p > progress:
				progress = p
			}

			batch := Batch{
				Stations: valid,
				Offset:   offset,
				Loaded:   loaded,
				Total:    page.Total,
				Progress: progress,
			}
			if !yield(batch, nil) || done {
				return
			}
		}
	}
}
