// Package arena provides the arena (map) catalog loaded from YAML content
// files. Lobbies select an arena by ID; the coordinator only accepts IDs
// present in the catalog.
package arena

import (
	"fmt"
	"sort"
)

// Spawn is a player spawn point inside an arena.
type Spawn struct {
	X float64 `yaml:"x"`
	Y float64 `yaml:"y"`
}

// Arena describes one playable map.
type Arena struct {
	// ID is the unique arena identifier referenced by lobbies.
	ID string
	// Name is the human-readable arena name.
	Name string
	// Description is shown in lobby screens.
	Description string
	// Width and Height are the playfield bounds in world units.
	Width  float64
	Height float64
	// Spawns are the candidate spawn points.
	Spawns []Spawn
}

// Validate checks the arena's invariants.
//
// Postcondition: Returns nil if the arena is well-formed, or an error naming the violation.
func (a *Arena) Validate() error {
	if a.ID == "" {
		return fmt.Errorf("arena ID must not be empty")
	}
	if a.Name == "" {
		return fmt.Errorf("arena %s: name must not be empty", a.ID)
	}
	if a.Width <= 0 || a.Height <= 0 {
		return fmt.Errorf("arena %s: dimensions must be positive, got %gx%g", a.ID, a.Width, a.Height)
	}
	for i, s := range a.Spawns {
		if s.X < 0 || s.X > a.Width || s.Y < 0 || s.Y > a.Height {
			return fmt.Errorf("arena %s: spawn %d (%g, %g) outside bounds %gx%g", a.ID, i, s.X, s.Y, a.Width, a.Height)
		}
	}
	return nil
}

// Catalog is an immutable set of arenas keyed by ID.
type Catalog struct {
	arenas map[string]*Arena
}

// NewCatalog builds a catalog from the given arenas.
//
// Precondition: every arena must be valid; IDs must be unique.
// Postcondition: Returns a Catalog or a non-nil error on duplicate/invalid arenas.
func NewCatalog(arenas []*Arena) (*Catalog, error) {
	byID := make(map[string]*Arena, len(arenas))
	for _, a := range arenas {
		if err := a.Validate(); err != nil {
			return nil, fmt.Errorf("validating arena: %w", err)
		}
		if _, dup := byID[a.ID]; dup {
			return nil, fmt.Errorf("duplicate arena ID %q", a.ID)
		}
		byID[a.ID] = a
	}
	return &Catalog{arenas: byID}, nil
}

// Has reports whether the catalog contains the given arena ID.
func (c *Catalog) Has(id string) bool {
	_, ok := c.arenas[id]
	return ok
}

// Get returns the arena with the given ID, or nil if absent.
func (c *Catalog) Get(id string) *Arena {
	return c.arenas[id]
}

// Count returns the number of arenas in the catalog.
func (c *Catalog) Count() int {
	return len(c.arenas)
}

// IDs returns all arena IDs in sorted order.
func (c *Catalog) IDs() []string {
	ids := make([]string, 0, len(c.arenas))
	for id := range c.arenas {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
