// Package yamlfile stores selections in a YAML document of the form
//
//	players:
//	  <actor uuid>:
//	    crystalpower: <power id or encrypted blob>
package yamlfile

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/cory-johannsen/crystalpowers/internal/game/selection"
)

type document struct {
	Players map[string]player `yaml:"players"`
}

type player struct {
	CrystalPower string `yaml:"crystalpower,omitempty"`
}

// Repository is a selection.Repository backed by one YAML file.
// All methods are safe for concurrent use.
type Repository struct {
	mu   sync.Mutex
	path string
}

// New returns a Repository for path. The file is created on first write.
//
// Precondition: path must not be empty.
func New(path string) *Repository {
	return &Repository{path: path}
}

// Path returns the backing file path.
func (r *Repository) Path() string {
	return r.path
}

// LoadAll reads every player entry carrying a power field. A missing file
// yields no entries.
func (r *Repository) LoadAll(_ context.Context) ([]selection.Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	data, err := os.ReadFile(r.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %q: %w", r.path, err)
	}
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing %q: %w", r.path, err)
	}

	ids := make([]string, 0, len(doc.Players))
	for id := range doc.Players {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	entries := make([]selection.Entry, 0, len(ids))
	for _, id := range ids {
		if p := doc.Players[id]; p.CrystalPower != "" {
			entries = append(entries, selection.Entry{ActorID: id, Power: p.CrystalPower})
		}
	}
	return entries, nil
}

// ReplaceAll rewrites the file with exactly entries. The write goes to a
// temporary file that is renamed over the original.
func (r *Repository) ReplaceAll(_ context.Context, entries []selection.Entry) error {
	doc := document{Players: make(map[string]player, len(entries))}
	for _, e := range entries {
		doc.Players[e.ActorID] = player{CrystalPower: e.Power}
	}
	data, err := yaml.Marshal(&doc)
	if err != nil {
		return fmt.Errorf("encoding selections: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	dir := filepath.Dir(r.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating %q: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(r.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing %q: %w", tmp.Name(), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing %q: %w", tmp.Name(), err)
	}
	if err := os.Rename(tmp.Name(), r.path); err != nil {
		return fmt.Errorf("replacing %q: %w", r.path, err)
	}
	return nil
}
