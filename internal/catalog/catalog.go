// Package catalog persists the join table from vector IDs to chunk text.
//
// The file is a JSON object keyed by vector ID:
//
//	{"guide.md:0": {"title": "guide.md", "chunk_ix": 0, "text": "..."}}
//
// Writers replace the file atomically so a reader never sees a partial
// document.
package catalog

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

var ErrNotFound = errors.New("catalog not found")

type Entry struct {
	Title   string `json:"title"`
	ChunkIx int    `json:"chunk_ix"`
	Text    string `json:"text"`
}

type Catalog map[string]Entry

// Store reads and writes the catalog file at Path.
type Store struct {
	Path string
}

func NewStore(path string) *Store {
	return &Store{Path: path}
}

// Load reads the catalog from disk. Callers on the query path call it on
// every request so a concurrent upsert becomes visible without a restart.
func (s *Store) Load() (Catalog, error) {
	b, err := os.ReadFile(s.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, s.Path)
		}
		return nil, fmt.Errorf("read catalog: %w", err)
	}

	var c Catalog
	if err := json.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("decode catalog %s: %w", s.Path, err)
	}
	if c == nil {
		c = Catalog{}
	}
	return c, nil
}

// Write replaces the catalog with c.
func (s *Store) Write(c Catalog) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(c); err != nil {
		return fmt.Errorf("encode catalog: %w", err)
	}

	dir := filepath.Dir(s.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create catalog dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".catalog-*.json")
	if err != nil {
		return fmt.Errorf("create temp catalog: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp catalog: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp catalog: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp catalog: %w", err)
	}
	if err := os.Rename(tmpName, s.Path); err != nil {
		return fmt.Errorf("replace catalog: %w", err)
	}
	return nil
}

// Merge overlays entries onto the catalog on disk and writes the result.
// IDs from earlier runs that are still in the index keep their text.
func (s *Store) Merge(entries Catalog) error {
	current, err := s.Load()
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			return err
		}
		current = Catalog{}
	}
	for id, e := range entries {
		current[id] = e
	}
	return s.Write(current)
}
