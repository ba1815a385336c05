// Package catalog holds the in-memory station catalog shared by readers.
package catalog

import (
	"sync/atomic"
	"time"

	"github.com/stazy/chargeshare/internal/core/domain"
)

// ProgressUnknown is reported while the catalog size is not known.
const ProgressUnknown = -1

// Snapshot is an immutable view of the catalog. Never modify Stations.
type Snapshot struct {
	Stations  []domain.ChargingStation
	Total     int
	Progress  int
	Loading   bool
	LastError string
	UpdatedAt time.Time
}

// Loaded returns the number of stations in the snapshot.
func (s *Snapshot) Loaded() int {
	return len(s.Stations)
}

// Store publishes snapshots with copy-on-write semantics: a reader holding a
// Snapshot never observes a later load.
type Store struct {
	current atomic.Pointer[Snapshot]
}

// NewStore returns a store holding an empty snapshot.
func NewStore() *Store {
	s := &Store{}
	s.current.Store(&Snapshot{Stations: []domain.ChargingStation{}, Progress: ProgressUnknown})
	return s
}

// Load returns the current snapshot.
func (s *Store) Load() *Snapshot {
	return s.current.Load()
}

// Publish swaps in a new snapshot.
func (s *Store) Publish(snap *Snapshot) {
	s.current.Store(snap)
}

// Progress computes the load percentage, clamped to [0,100].
// It returns ProgressUnknown when total is not positive.
func Progress(loaded, total int) int {
	if total <= 0 {
		return ProgressUnknown
	}
	p := (loaded*100 + total/2) / total
	switch {
	case p < 0:
		return 0
	case p > 100:
		return 100
	}
	return p
}
