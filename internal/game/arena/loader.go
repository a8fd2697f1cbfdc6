package arena

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// yamlArenaFile is the top-level YAML structure for arena files.
type yamlArenaFile struct {
	Arena yamlArena `yaml:"arena"`
}

// yamlArena is the YAML representation of an arena.
type yamlArena struct {
	ID          string  `yaml:"id"`
	Name        string  `yaml:"name"`
	Description string  `yaml:"description"`
	Width       float64 `yaml:"width"`
	Height      float64 `yaml:"height"`
	Spawns      []Spawn `yaml:"spawns"`
}

// LoadFromFile reads and validates a single arena YAML file.
//
// Precondition: path must point to a valid YAML arena file.
// Postcondition: Returns a validated Arena or a non-nil error.
func LoadFromFile(path string) (*Arena, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading arena file %s: %w", path, err)
	}
	return LoadFromBytes(data)
}

// LoadFromBytes parses and validates an arena from YAML bytes.
//
// Precondition: data must be valid YAML conforming to the arena schema.
// Postcondition: Returns a validated Arena or a non-nil error.
func LoadFromBytes(data []byte) (*Arena, error) {
	var file yamlArenaFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing arena YAML: %w", err)
	}

	a := &Arena{
		ID:          file.Arena.ID,
		Name:        file.Arena.Name,
		Description: file.Arena.Description,
		Width:       file.Arena.Width,
		Height:      file.Arena.Height,
		Spawns:      file.Arena.Spawns,
	}
	if err := a.Validate(); err != nil {
		return nil, fmt.Errorf("validating arena: %w", err)
	}
	return a, nil
}

// LoadCatalogFromDir loads all YAML files in a directory as a catalog.
//
// Precondition: dir must be a valid directory path.
// Postcondition: Returns a catalog of all validated arenas or the first error encountered.
func LoadCatalogFromDir(dir string) (*Catalog, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading arenas directory %s: %w", dir, err)
	}

	var arenas []*Arena
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasSuffix(name, ".yaml") && !strings.HasSuffix(name, ".yml") {
			continue
		}
		a, err := LoadFromFile(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("loading arena %s: %w", name, err)
		}
		arenas = append(arenas, a)
	}

	return NewCatalog(arenas)
}
