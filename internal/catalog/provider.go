// Package catalog turns the published TLE dataset into tracked objects with
// ready-to-use SGP4 state.
package catalog

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/saturnRangs/ObservingSatellites/internal/propagation"
	"github.com/saturnRangs/ObservingSatellites/internal/tle"
	"github.com/saturnRangs/ObservingSatellites/internal/visibility"
)

var (
	// ErrNoCatalog is returned before any dataset has been loaded.
	ErrNoCatalog = errors.New("no catalog loaded")
	// ErrObjectNotFound is returned when a name or prefix matches nothing.
	ErrObjectNotFound = errors.New("object not found")
)

// SelectAll is the selection keyword for every object in the catalog.
const SelectAll = "all"

// Object describes a catalog entry for listings.
type Object struct {
	Name    string    `json:"name"`
	NORADID int       `json:"norad_id"`
	Epoch   time.Time `json:"epoch"`
}

// objectSet is built once per dataset and read-only afterwards.
type objectSet struct {
	version int64
	objects []visibility.TrackedObject
	info    []Object
	byName  map[string]int
}

// Provider serves tracked objects for the dataset currently in the store.
type Provider struct {
	store  *tle.Store
	logger *slog.Logger
	set    atomic.Pointer[objectSet]
	mu     sync.Mutex // serialises rebuilds
}

// NewProvider creates a Provider over store.
func NewProvider(store *tle.Store, logger *slog.Logger) *Provider {
	return &Provider{store: store, logger: logger}
}

// Version returns the version of the loaded dataset, or 0 when none is loaded.
func (p *Provider) Version() int64 {
	return p.store.Version()
}

// All returns every valid object of the current dataset.
func (p *Provider) All() ([]visibility.TrackedObject, error) {
	set, err := p.current()
	if err != nil {
		return nil, err
	}
	return set.objects, nil
}

// Select returns the objects whose name starts with prefix, ignoring case.
// An empty prefix or "all" selects everything. Any other prefix that matches
// nothing returns ErrObjectNotFound.
func (p *Provider) Select(prefix string) ([]visibility.TrackedObject, error) {
	set, err := p.current()
	if err != nil {
		return nil, err
	}
	idx := set.match(prefix)
	if len(idx) == 0 && !selectsAll(prefix) {
		return nil, fmt.Errorf("%w: no object name starts with %q", ErrObjectNotFound, strings.TrimSpace(prefix))
	}
	out := make([]visibility.TrackedObject, len(idx))
	for i, j := range idx {
		out[i] = set.objects[j]
	}
	return out, nil
}

// Resolve returns the named objects when names is non-empty, in the given
// order and without repeats, and Select(prefix) otherwise.
func (p *Provider) Resolve(prefix string, names []string) ([]visibility.TrackedObject, error) {
	if len(names) == 0 {
		return p.Select(prefix)
	}
	seen := make(map[string]bool, len(names))
	out := make([]visibility.TrackedObject, 0, len(names))
	for _, name := range names {
		obj, err := p.Lookup(name)
		if err != nil {
			return nil, err
		}
		if seen[obj.Name] {
			continue
		}
		seen[obj.Name] = true
		out = append(out, obj)
	}
	return out, nil
}

// List describes the objects Select(prefix) would return.
func (p *Provider) List(prefix string) ([]Object, error) {
	set, err := p.current()
	if err != nil {
		return nil, err
	}
	idx := set.match(prefix)
	out := make([]Object, len(idx))
	for i, j := range idx {
		out[i] = set.info[j]
	}
	return out, nil
}

// Lookup returns the object with exactly this name, ignoring case.
func (p *Provider) Lookup(name string) (visibility.TrackedObject, error) {
	set, err := p.current()
	if err != nil {
		return visibility.TrackedObject{}, err
	}
	i, ok := set.byName[strings.ToUpper(strings.TrimSpace(name))]
	if !ok {
		return visibility.TrackedObject{}, fmt.Errorf("%w: %q", ErrObjectNotFound, name)
	}
	return set.objects[i], nil
}

func (s *objectSet) match(prefix string) []int {
	all := selectsAll(prefix)
	prefix = strings.ToUpper(strings.TrimSpace(prefix))

	idx := make([]int, 0, len(s.objects))
	for i, o := range s.objects {
		if all || strings.HasPrefix(strings.ToUpper(o.Name), prefix) {
			idx = append(idx, i)
		}
	}
	return idx
}

func selectsAll(prefix string) bool {
	prefix = strings.TrimSpace(prefix)
	return prefix == "" || strings.EqualFold(prefix, SelectAll)
}

// current returns the object set of the published dataset, rebuilding it when
// the dataset changed (double-checked locking).
func (p *Provider) current() (*objectSet, error) {
	ds := p.store.Get()
	if ds == nil {
		return nil, ErrNoCatalog
	}
	if s := p.set.Load(); s != nil && s.version == ds.Version() {
		return s, nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if s := p.set.Load(); s != nil && s.version == ds.Version() {
		return s, nil
	}

	s := p.build(ds)
	p.set.Store(s)
	return s, nil
}

func (p *Provider) build(ds *tle.Dataset) *objectSet {
	s := &objectSet{
		version: ds.Version(),
		objects: make([]visibility.TrackedObject, 0, len(ds.Entries)),
		info:    make([]Object, 0, len(ds.Entries)),
		byName:  make(map[string]int, len(ds.Entries)),
	}

	seen := make(map[int]bool, len(ds.Entries))
	var skipped int
	for _, e := range ds.Entries {
		if seen[e.NORADID] {
			continue
		}
		seen[e.NORADID] = true

		prop, err := propagation.NewSGP4Propagator(e.Name, e.Line1, e.Line2, e.NORADID)
		if err != nil {
			p.logger.Warn("skipping catalog entry", "component", "catalog", "name", e.Name, "norad_id", e.NORADID, "error", err)
			skipped++
			continue
		}

		key := strings.ToUpper(e.Name)
		if _, dup := s.byName[key]; !dup {
			s.byName[key] = len(s.objects)
		}
		s.objects = append(s.objects, visibility.TrackedObject{Name: e.Name, State: prop})
		s.info = append(s.info, Object{Name: e.Name, NORADID: e.NORADID, Epoch: e.Epoch})
	}

	p.logger.Info("catalog objects built",
		"component", "catalog",
		"objects", len(s.objects),
		"skipped", skipped,
		"dataset_fetched_at", ds.FetchedAt.Format(time.RFC3339),
	)
	return s
}
