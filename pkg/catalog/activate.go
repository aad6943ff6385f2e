package catalog

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/weppcloud/queryengine/pkg/core"
)

// InterchangeGenerator materializes derived Parquet products under
// <outputDir>/interchange.
type InterchangeGenerator interface {
	Generate(ctx context.Context, outputDir string, startYear *int) error
}

// GeneratorFunc adapts a function to InterchangeGenerator.
type GeneratorFunc func(ctx context.Context, outputDir string, startYear *int) error

// Generate calls f.
func (f GeneratorFunc) Generate(ctx context.Context, outputDir string, startYear *int) error {
	return f(ctx, outputDir, startYear)
}

// Observer receives activation and refresh outcomes.
type Observer interface {
	ObserveActivation(outcome string, duration time.Duration, files int)
	ObserveRefresh(outcome string)
}

// Outcome labels reported to an Observer.
const (
	OutcomeOK       = "ok"
	OutcomeError    = "error"
	OutcomeReadOnly = "read_only"
	OutcomeRemoved  = "removed"
	OutcomeSkipped  = "skipped"
)

const (
	interchangeDir   = "interchange"
	weppOutputSuffix = "wepp/output"
)

// Activator scans runs and writes their catalogs.
type Activator struct {
	// Generator produces interchange products; nil disables generation.
	Generator InterchangeGenerator
	// StartYear reports the simulation start year of a run, when known.
	StartYear func(base string) (int, bool)
	Logger    *slog.Logger
	Observer  Observer
	Now       func() time.Time
}

func (a *Activator) logger() *slog.Logger {
	if a.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return a.Logger
}

func (a *Activator) now() time.Time {
	if a.Now != nil {
		return a.Now()
	}
	return time.Now()
}

func (a *Activator) observeActivation(outcome string, d time.Duration, files int) {
	if a.Observer != nil {
		a.Observer.ObserveActivation(outcome, d, files)
	}
}

func (a *Activator) observeRefresh(outcome string) {
	if a.Observer != nil {
		a.Observer.ObserveRefresh(outcome)
	}
}

// Activate scans base and atomically rewrites its catalog. When
// runInterchange is set, wepp/output directories without an interchange
// subdirectory are handed to the generator first.
func (a *Activator) Activate(ctx context.Context, base string, runInterchange bool) (*Catalog, error) {
	start := time.Now()
	log := a.logger().With("run", base)

	base, err := runDir(base)
	if err != nil {
		return nil, err
	}

	unlock := lockRun(base)
	defer unlock()

	if IsReadOnly(base) {
		a.observeActivation(OutcomeReadOnly, time.Since(start), 0)
		return nil, core.NewError(core.KindReadOnly, core.ErrReadOnly, "cannot activate %s", base)
	}

	if err := os.MkdirAll(filepath.Join(base, EngineDir, CacheDir), 0o755); err != nil {
		a.observeActivation(OutcomeError, time.Since(start), 0)
		return nil, core.NewError(core.KindActivationFailed, err, "failed to prepare %s", EngineDir)
	}

	if runInterchange {
		if err := a.generateInterchange(ctx, base, log); err != nil {
			a.observeActivation(OutcomeError, time.Since(start), 0)
			return nil, core.NewError(core.KindActivationFailed, err, "interchange generation failed")
		}
	}

	entries, err := scan(ctx, base, log)
	if err != nil {
		a.observeActivation(OutcomeError, time.Since(start), 0)
		return nil, core.NewError(core.KindActivationFailed, err, "failed to scan run")
	}

	snap := core.CatalogSnapshot{
		Version:     core.CatalogVersion,
		GeneratedAt: core.FormatTimestamp(a.now()),
		Root:        base,
		Files:       entries,
	}
	if err := write(base, snap); err != nil {
		a.observeActivation(OutcomeError, time.Since(start), 0)
		return nil, core.NewError(core.KindActivationFailed, err, "failed to write catalog")
	}

	a.observeActivation(OutcomeOK, time.Since(start), len(entries))
	log.Info("catalog activated", "files", len(entries), "duration", time.Since(start))
	return New(snap), nil
}

func (a *Activator) generateInterchange(ctx context.Context, base string, log *slog.Logger) error {
	dirs, err := interchangeTargets(base)
	if err != nil {
		return err
	}
	if len(dirs) == 0 {
		return nil
	}
	if a.Generator == nil {
		log.Warn("interchange requested but no generator configured", "pending", len(dirs))
		return nil
	}

	var startYear *int
	if a.StartYear != nil {
		if y, ok := a.StartYear(base); ok {
			startYear = &y
		}
	}
	for _, dir := range dirs {
		log.Info("generating interchange", "output_dir", dir)
		if err := a.Generator.Generate(ctx, dir, startYear); err != nil {
			return fmt.Errorf("%s: %w", dir, err)
		}
	}
	return nil
}

// interchangeTargets lists wepp/output directories lacking an interchange
// subdirectory.
func interchangeTargets(base string) ([]string, error) {
	var out []string
	err := filepath.WalkDir(base, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		rel, _ := filepath.Rel(base, p)
		rel = filepath.ToSlash(rel)
		if rel == EngineDir {
			return filepath.SkipDir
		}
		if rel != weppOutputSuffix && !strings.HasSuffix(rel, "/"+weppOutputSuffix) {
			return nil
		}
		if fi, err := os.Stat(filepath.Join(p, interchangeDir)); err == nil && fi.IsDir() {
			return filepath.SkipDir
		}
		out = append(out, p)
		return filepath.SkipDir
	})
	if err != nil {
		return nil, fmt.Errorf("failed to locate wepp output directories: %w", err)
	}
	sort.Strings(out)
	return out, nil
}

// UpdateEntry refreshes the catalog entry for one relative path. It returns
// the new entry, or nil when the file no longer exists or the run has not
// been activated.
func (a *Activator) UpdateEntry(ctx context.Context, base, rel string) (*core.CatalogEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	base, err := runDir(base)
	if err != nil {
		return nil, err
	}

	unlock := lockRun(base)
	defer unlock()

	if IsReadOnly(base) {
		a.observeRefresh(OutcomeReadOnly)
		return nil, core.NewError(core.KindReadOnly, core.ErrReadOnly, "cannot refresh %s", base)
	}

	abs, clean, skipped, err := resolveWithin(base, rel)
	if err != nil {
		a.observeRefresh(OutcomeError)
		return nil, err
	}

	if !Exists(base) {
		a.observeRefresh(OutcomeSkipped)
		return nil, nil
	}
	cat, err := Load(base)
	if err != nil {
		a.observeRefresh(OutcomeError)
		return nil, err
	}
	snap := cat.Snapshot()

	remove := func() (*core.CatalogEntry, error) {
		snap.Files = removeEntry(snap.Files, clean)
		snap.GeneratedAt = core.FormatTimestamp(a.now())
		if err := write(base, snap); err != nil {
			a.observeRefresh(OutcomeError)
			return nil, err
		}
		a.observeRefresh(OutcomeRemoved)
		a.logger().Debug("catalog entry removed", "run", base, "path", clean)
		return nil, nil
	}

	// A full scan never records these, so neither does a refresh.
	if skipped || excluded(clean) {
		return remove()
	}

	info, err := os.Stat(abs)
	if errors.Is(err, fs.ErrNotExist) {
		return remove()
	}
	if err != nil {
		a.observeRefresh(OutcomeError)
		return nil, fmt.Errorf("failed to stat %s: %w", clean, err)
	}
	if info.IsDir() {
		a.observeRefresh(OutcomeError)
		return nil, core.Invalidf("%s is a directory", clean)
	}
	ext := strings.ToLower(filepath.Ext(clean))
	if !supportedExtensions[ext] {
		a.observeRefresh(OutcomeError)
		return nil, core.Invalidf("unsupported file type %q", ext)
	}

	entry := buildEntry(abs, clean, ext, info, a.logger())
	snap.Files = append(removeEntry(snap.Files, clean), entry)
	sort.Slice(snap.Files, func(i, j int) bool { return snap.Files[i].Path < snap.Files[j].Path })
	snap.GeneratedAt = core.FormatTimestamp(a.now())
	if err := write(base, snap); err != nil {
		a.observeRefresh(OutcomeError)
		return nil, err
	}
	a.observeRefresh(OutcomeOK)
	a.logger().Debug("catalog entry refreshed", "run", base, "path", clean)
	return &entry, nil
}

func removeEntry(files []core.CatalogEntry, rel string) []core.CatalogEntry {
	out := files[:0:0]
	for _, e := range files {
		if e.Path != rel {
			out = append(out, e)
		}
	}
	return out
}

// runDir returns base as a cleaned absolute directory path.
func runDir(base string) (string, error) {
	abs, err := filepath.Abs(base)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s: %w", base, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", core.NotFoundf("run directory %s", base)
		}
		return "", fmt.Errorf("failed to stat %s: %w", base, err)
	}
	if !info.IsDir() {
		return "", core.Invalidf("%s is not a directory", base)
	}
	return abs, nil
}

// resolveWithin maps rel onto base and returns the absolute path and the
// cleaned POSIX-relative key. Directory symlinks met along the way are
// followed and their targets become permitted roots; the final component
// must resolve inside base or one of those roots. skipped reports a path
// that crosses a directory symlink back into base, which scans ignore.
func resolveWithin(base, rel string) (abs, clean string, skipped bool, err error) {
	slashed := filepath.ToSlash(rel)
	if rel == "" || filepath.IsAbs(rel) || strings.HasPrefix(slashed, "/") {
		return "", "", false, fmt.Errorf("%q: %w", rel, core.ErrPathEscape)
	}
	clean = path.Clean(slashed)
	if clean == "." || clean == ".." || strings.HasPrefix(clean, "../") {
		return "", "", false, fmt.Errorf("%q: %w", rel, core.ErrPathEscape)
	}

	baseReal, err := filepath.EvalSymlinks(base)
	if err != nil {
		return "", "", false, fmt.Errorf("failed to resolve %s: %w", base, err)
	}
	roots := []string{baseReal}

	parts := strings.Split(clean, "/")
	cur := baseReal
	for i, part := range parts {
		next := filepath.Join(cur, part)
		fi, err := os.Lstat(next)
		if errors.Is(err, fs.ErrNotExist) {
			cur = filepath.Join(append([]string{cur}, parts[i:]...)...)
			break
		}
		if err != nil {
			return "", "", false, fmt.Errorf("failed to stat %s: %w", next, err)
		}
		if fi.Mode()&fs.ModeSymlink == 0 {
			cur = next
			continue
		}
		target, err := filepath.EvalSymlinks(next)
		if err != nil {
			return "", "", false, fmt.Errorf("%q: %w", rel, core.ErrPathEscape)
		}
		last := i == len(parts)-1
		if ti, err := os.Stat(target); err == nil && ti.IsDir() && !last {
			if within(baseReal, target) {
				skipped = true
			}
			roots = append(roots, target)
		}
		cur = target
	}

	for _, root := range roots {
		if within(root, cur) {
			return cur, clean, skipped, nil
		}
	}
	return "", "", false, fmt.Errorf("%q: %w", rel, core.ErrPathEscape)
}
