package catalog

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/weppcloud/queryengine/pkg/core"
)

// supportedExtensions is the set of suffixes recorded in a catalog.
var supportedExtensions = map[string]bool{
	".nodb":    true,
	".tsv":     true,
	".csv":     true,
	".tif":     true,
	".parquet": true,
	".json":    true,
	".geojson": true,
}

// Supported reports whether a file suffix is catalogued.
func Supported(ext string) bool {
	return supportedExtensions[strings.ToLower(ext)]
}

// SupportedExtensions returns the catalogued suffixes in sorted order.
func SupportedExtensions() []string {
	out := make([]string, 0, len(supportedExtensions))
	for ext := range supportedExtensions {
		out = append(out, ext)
	}
	sort.Strings(out)
	return out
}

// excluded reports whether a relative path is engine bookkeeping that must
// not appear in its own catalog.
func excluded(rel string) bool {
	dir, name := path.Split(rel)
	if path.Base(strings.TrimSuffix(dir, "/")) != EngineDir {
		return false
	}
	if name == FileName {
		return true
	}
	return strings.HasPrefix(name, ".catalog-") && strings.HasSuffix(name, ".tmp")
}

// scanner walks a run tree. Directory symlinks are followed only when their
// target lies outside the scanned root; visited real directories are never
// entered twice.
type scanner struct {
	root    string
	logger  *slog.Logger
	visited map[string]bool
	entries []core.CatalogEntry
}

func scan(ctx context.Context, root string, logger *slog.Logger) ([]core.CatalogEntry, error) {
	realRoot, err := filepath.EvalSymlinks(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve run root %s: %w", root, err)
	}
	s := &scanner{root: realRoot, logger: logger, visited: map[string]bool{realRoot: true}}
	if err := s.walk(ctx, realRoot, ""); err != nil {
		return nil, err
	}
	sort.Slice(s.entries, func(i, j int) bool { return s.entries[i].Path < s.entries[j].Path })
	return s.entries, nil
}

func (s *scanner) walk(ctx context.Context, dir, rel string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	items, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("failed to read directory %s: %w", dir, err)
	}

	for _, item := range items {
		abs := filepath.Join(dir, item.Name())
		childRel := item.Name()
		if rel != "" {
			childRel = rel + "/" + item.Name()
		}

		if item.Type()&fs.ModeSymlink != 0 {
			if err := s.followLink(ctx, abs, childRel); err != nil {
				return err
			}
			continue
		}

		if item.IsDir() {
			if err := s.walk(ctx, abs, childRel); err != nil {
				return err
			}
			continue
		}
		if !item.Type().IsRegular() {
			continue
		}
		info, err := item.Info()
		if err != nil {
			s.logger.Warn("skipping unreadable file", "path", childRel, "error", err)
			continue
		}
		s.add(abs, childRel, info)
	}
	return nil
}

func (s *scanner) followLink(ctx context.Context, abs, rel string) error {
	info, err := os.Stat(abs)
	if err != nil {
		s.logger.Debug("skipping dangling symlink", "path", rel, "error", err)
		return nil
	}
	if !info.IsDir() {
		if info.Mode().IsRegular() {
			s.add(abs, rel, info)
		}
		return nil
	}

	target, err := filepath.EvalSymlinks(abs)
	if err != nil {
		s.logger.Debug("skipping unresolvable symlink", "path", rel, "error", err)
		return nil
	}
	if within(s.root, target) || s.visited[target] {
		return nil
	}
	s.visited[target] = true
	return s.walk(ctx, target, rel)
}

func (s *scanner) add(abs, rel string, info fs.FileInfo) {
	if excluded(rel) {
		return
	}
	ext := strings.ToLower(filepath.Ext(rel))
	if !supportedExtensions[ext] {
		return
	}
	s.entries = append(s.entries, buildEntry(abs, rel, ext, info, s.logger))
}

func buildEntry(abs, rel, ext string, info fs.FileInfo, logger *slog.Logger) core.CatalogEntry {
	entry := core.CatalogEntry{
		Path:      rel,
		Extension: ext,
		SizeBytes: info.Size(),
		Modified:  core.FormatTimestamp(info.ModTime()),
	}
	if ext == ".parquet" {
		schema, err := ReadParquetSchema(abs)
		if err != nil {
			logger.Warn("failed to read parquet schema", "path", rel, "error", err)
		} else {
			entry.Schema = schema
		}
	}
	return entry
}

// within reports whether target equals root or lies beneath it.
func within(root, target string) bool {
	if target == root {
		return true
	}
	r, err := filepath.Rel(root, target)
	if err != nil {
		return false
	}
	return r != ".." && !strings.HasPrefix(r, ".."+string(filepath.Separator))
}
