package tle

import (
	"sync"
	"sync/atomic"
	"time"
)

// Store holds the catalog snapshot shared by the object provider, the report
// cache and the API. Readers never block. Updates run one at a time and the
// published snapshot only moves forward in FetchedAt.
type Store struct {
	dataset atomic.Pointer[Dataset]
	mu      sync.Mutex // one Update at a time
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{}
}

// Get returns the published dataset, or nil before the first load.
func (s *Store) Get() *Dataset {
	return s.dataset.Load()
}

// Version returns the published dataset's version, or 0 before the first load.
func (s *Store) Version() int64 {
	if ds := s.dataset.Load(); ds != nil {
		return ds.Version()
	}
	return 0
}

// Set publishes ds unconditionally.
func (s *Store) Set(ds *Dataset) {
	s.dataset.Store(ds)
}

// Update runs fn with the published dataset under the update lock. The
// dataset fn returns is published only when it was fetched after the current
// one; an older or equal snapshot is dropped and the current one kept. Update
// returns the dataset published afterwards and whether fn's result replaced
// it. When fn fails nothing changes.
func (s *Store) Update(fn func(current *Dataset) (*Dataset, error)) (*Dataset, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current := s.dataset.Load()
	next, err := fn(current)
	if err != nil {
		return nil, false, err
	}
	if next == nil || next == current {
		return current, false, nil
	}
	if current != nil && !next.FetchedAt.After(current.FetchedAt) {
		return current, false, nil
	}
	s.dataset.Store(next)
	return next, true, nil
}

// Age returns the age of the published dataset at now, or -1 if none is
// loaded.
func (s *Store) Age(now time.Time) time.Duration {
	ds := s.dataset.Load()
	if ds == nil {
		return -1
	}
	return now.Sub(ds.FetchedAt)
}
