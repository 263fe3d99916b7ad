package power

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/cory-johannsen/crystalpowers/internal/game/random"
)

var (
	// ErrNotFound is returned when no power carries the requested id.
	ErrNotFound = errors.New("power not found")
	// ErrEmptyCatalog is returned by PickRandom on a catalog without definitions.
	ErrEmptyCatalog = errors.New("power catalog is empty")
	// ErrDuplicateID is returned when a table defines the same id twice.
	ErrDuplicateID = errors.New("duplicate power id")
)

type snapshot struct {
	version int
	ordered []*Definition
	byID    map[string]*Definition
}

func newSnapshot(t Table) *snapshot {
	s := &snapshot{
		version: t.Version,
		ordered: append([]*Definition(nil), t.Definitions...),
		byID:    make(map[string]*Definition, len(t.Definitions)),
	}
	for _, d := range t.Definitions {
		s.byID[d.ID] = d
	}
	return s
}

// Catalog serves power definitions. Reads never block; Reload swaps the whole
// table in one step so readers observe either the old or the new catalog.
type Catalog struct {
	load Loader
	src  random.Source
	snap atomic.Pointer[snapshot]
}

// NewCatalog builds a Catalog from load and performs the initial load.
//
// Precondition: load and src must not be nil.
// Postcondition: Returns a populated Catalog, or an error from the loader.
func NewCatalog(load Loader, src random.Source) (*Catalog, error) {
	c := &Catalog{load: load, src: src}
	if err := c.Reload(); err != nil {
		return nil, err
	}
	return c, nil
}

// Reload re-runs the loader and replaces the catalog. On error the previous
// catalog stays in place.
func (c *Catalog) Reload() error {
	t, err := c.load()
	if err != nil {
		return fmt.Errorf("loading power catalog: %w", err)
	}
	if err := checkUnique(t.Definitions); err != nil {
		return fmt.Errorf("loading power catalog: %w", err)
	}
	c.snap.Store(newSnapshot(t))
	return nil
}

// Get returns the definition for id. The id is case-normalised first.
func (c *Catalog) Get(id string) (*Definition, error) {
	d, ok := c.snap.Load().byID[NormalizeID(id)]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	return d, nil
}

// Exists reports whether id names a power in the catalog.
func (c *Catalog) Exists(id string) bool {
	_, ok := c.snap.Load().byID[NormalizeID(id)]
	return ok
}

// All returns the definitions in catalog order. The slice is a copy.
func (c *Catalog) All() []*Definition {
	return append([]*Definition(nil), c.snap.Load().ordered...)
}

// Len returns the number of definitions.
func (c *Catalog) Len() int {
	return len(c.snap.Load().ordered)
}

// Version returns the version of the loaded table.
func (c *Catalog) Version() int {
	return c.snap.Load().version
}

// PickRandom returns a uniformly chosen definition.
//
// Postcondition: Returns a definition present in the catalog, or ErrEmptyCatalog.
func (c *Catalog) PickRandom() (*Definition, error) {
	s := c.snap.Load()
	if len(s.ordered) == 0 {
		return nil, ErrEmptyCatalog
	}
	return s.ordered[c.src.Intn(len(s.ordered))], nil
}
