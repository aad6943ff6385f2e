// Package catalog maintains the per-run snapshot of queryable assets.
//
// A run is activated by scanning its directory tree and writing
// <run>/_query_engine/catalog.json atomically. Readers load that snapshot
// and answer lookups by POSIX-relative path.
package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/weppcloud/queryengine/pkg/core"
)

const (
	// EngineDir is the per-run directory owned by the query engine.
	EngineDir = "_query_engine"
	// CacheDir is reserved for derived reports written by clients.
	CacheDir = "cache"
	// FileName is the catalog snapshot file name.
	FileName = "catalog.json"
	// ReadOnlySentinel disables every write when present in the run root.
	ReadOnlySentinel = "READONLY"
)

// Path returns the catalog file location for a run base directory.
func Path(base string) string {
	return filepath.Join(base, EngineDir, FileName)
}

// Exists reports whether a run has been activated.
func Exists(base string) bool {
	_, err := os.Stat(Path(base))
	return err == nil
}

// IsReadOnly reports whether the READONLY sentinel is present.
func IsReadOnly(base string) bool {
	_, err := os.Stat(filepath.Join(base, ReadOnlySentinel))
	return err == nil
}

// Catalog is an immutable, indexed catalog snapshot.
type Catalog struct {
	snapshot core.CatalogSnapshot
	index    map[string]int
}

// New builds a Catalog from a snapshot. Entries are sorted by path; later
// duplicates replace earlier ones.
func New(snap core.CatalogSnapshot) *Catalog {
	byPath := make(map[string]core.CatalogEntry, len(snap.Files))
	for _, e := range snap.Files {
		byPath[e.Path] = e
	}
	files := make([]core.CatalogEntry, 0, len(byPath))
	for _, e := range byPath {
		files = append(files, e)
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })

	snap.Files = files
	c := &Catalog{snapshot: snap, index: make(map[string]int, len(files))}
	for i, e := range files {
		c.index[e.Path] = i
	}
	return c
}

// Load reads the catalog of a run. A missing file yields a catalog_missing
// error that also matches core.ErrNotFound; unreadable content yields
// catalog_invalid.
func Load(base string) (*Catalog, error) {
	data, err := os.ReadFile(Path(base))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, core.NewError(core.KindCatalogMissing, core.ErrNotFound, "catalog not found for %s", base)
		}
		return nil, core.NewError(core.KindCatalogInvalid, err, "failed to read catalog")
	}

	var snap core.CatalogSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, core.NewError(core.KindCatalogInvalid, err, "failed to parse catalog")
	}
	if snap.Version != core.CatalogVersion {
		return nil, core.NewError(core.KindCatalogInvalid, nil, "unsupported catalog version %d", snap.Version)
	}
	return New(snap), nil
}

// Has reports whether path is catalogued.
func (c *Catalog) Has(path string) bool {
	if c == nil {
		return false
	}
	_, ok := c.index[path]
	return ok
}

// Get returns the entry for path.
func (c *Catalog) Get(path string) (core.CatalogEntry, bool) {
	if c == nil {
		return core.CatalogEntry{}, false
	}
	i, ok := c.index[path]
	if !ok {
		return core.CatalogEntry{}, false
	}
	return c.snapshot.Files[i], true
}

// Entries returns every entry in lexicographic path order.
func (c *Catalog) Entries() []core.CatalogEntry {
	if c == nil {
		return nil
	}
	out := make([]core.CatalogEntry, len(c.snapshot.Files))
	copy(out, c.snapshot.Files)
	return out
}

// ColumnType returns the declared type of column in path's stored schema.
func (c *Catalog) ColumnType(path, column string) (string, bool) {
	e, ok := c.Get(path)
	if !ok {
		return "", false
	}
	f, ok := e.Schema.Field(column)
	if !ok || f.Type == "" {
		return "", false
	}
	return f.Type, true
}

// Snapshot returns a copy of the underlying snapshot.
func (c *Catalog) Snapshot() core.CatalogSnapshot {
	if c == nil {
		return core.CatalogSnapshot{Version: core.CatalogVersion}
	}
	snap := c.snapshot
	snap.Files = c.Entries()
	return snap
}

// Len returns the number of entries.
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.snapshot.Files)
}

var _ core.CatalogReader = (*Catalog)(nil)

// write persists snap atomically: a temp file in the same directory is
// renamed over the destination.
func write(base string, snap core.CatalogSnapshot) error {
	dir := filepath.Join(base, EngineDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode catalog: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".catalog-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp catalog: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("failed to write temp catalog: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("failed to sync temp catalog: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("failed to close temp catalog: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		cleanup()
		return fmt.Errorf("failed to chmod temp catalog: %w", err)
	}
	if err := os.Rename(tmpName, Path(base)); err != nil {
		cleanup()
		return fmt.Errorf("failed to replace catalog: %w", err)
	}
	return nil
}
