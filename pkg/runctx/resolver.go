// Package runctx resolves user-supplied run identifiers to run directories
// and their loaded catalogs.
package runctx

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/weppcloud/queryengine/pkg/catalog"
	"github.com/weppcloud/queryengine/pkg/core"
)

// WorkingDirLookup maps a run id to its working directory.
type WorkingDirLookup interface {
	WorkingDir(runID string) (string, bool)
}

// LookupFunc adapts a function to WorkingDirLookup.
type LookupFunc func(runID string) (string, bool)

// WorkingDir calls f.
func (f LookupFunc) WorkingDir(runID string) (string, bool) { return f(runID) }

// Roots looks runs up beneath a list of parent directories, trying the
// two-character shard layout <root>/<id[:2]>/<id> before <root>/<id>.
type Roots []string

// WorkingDir implements WorkingDirLookup.
func (r Roots) WorkingDir(runID string) (string, bool) {
	if !safeSegment(runID) {
		return "", false
	}
	for _, root := range r {
		var candidates []string
		if len(runID) > 2 {
			candidates = append(candidates, filepath.Join(root, runID[:2], runID))
		}
		candidates = append(candidates, filepath.Join(root, runID))
		for _, c := range candidates {
			if isDir(c) {
				return c, true
			}
		}
	}
	return "", false
}

// Resolver turns run ids into RunContexts.
type Resolver struct {
	// Lookup is consulted first; nil skips it.
	Lookup WorkingDirLookup
	// Prefix is joined with relative run ids as the last resort.
	Prefix string
	// AutoActivate activates runs that have no catalog yet.
	AutoActivate bool
	// RunInterchange is passed to automatic activations.
	RunInterchange bool
	Activator      *catalog.Activator
	Logger         *slog.Logger
}

func (r *Resolver) logger() *slog.Logger {
	if r.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return r.Logger
}

// SplitScenario separates a scenario-qualified id of the form
// <run>/_pups/omni/scenarios/<child>.
func SplitScenario(runID string) (string, string) {
	sep := "/" + core.ScenarioSegment + "/"
	if i := strings.Index(runID, sep); i > 0 {
		return runID[:i], strings.Trim(runID[i+len(sep):], "/")
	}
	return runID, ""
}

// Locate returns the directory of runID, descending into scenario when set.
func (r *Resolver) Locate(runID, scenario string) (string, error) {
	if scenario == "" {
		runID, scenario = SplitScenario(runID)
	}
	if runID == "" || strings.ContainsRune(runID, 0) {
		return "", notFound(runID)
	}

	base, ok := r.locateBase(runID)
	if !ok {
		return "", notFound(runID)
	}

	if scenario != "" {
		if !safeSegment(scenario) {
			return "", notFound(runID + "/" + core.ScenarioSegment + "/" + scenario)
		}
		dir := filepath.Join(base, filepath.FromSlash(core.ScenarioSegment), scenario)
		if !isDir(dir) {
			return "", core.NewError(core.KindNotFound, core.ErrNotFound, "scenario %s not found for run %s", scenario, runID)
		}
		base = dir
	}
	return base, nil
}

func (r *Resolver) locateBase(runID string) (string, bool) {
	if r.Lookup != nil {
		if dir, ok := r.Lookup.WorkingDir(runID); ok && isDir(dir) {
			return dir, true
		}
	}

	if filepath.IsAbs(runID) {
		if isDir(runID) {
			return filepath.Clean(runID), true
		}
		return "", false
	}

	prefix := r.Prefix
	if prefix == "" {
		prefix = string(filepath.Separator)
	}
	clean := filepath.Clean(filepath.FromSlash(runID))
	if clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", false
	}
	dir := filepath.Join(prefix, clean)
	if isDir(dir) {
		return dir, true
	}
	return "", false
}

// Resolve locates the run, activates it when configured and it has no
// catalog, and loads the catalog.
func (r *Resolver) Resolve(ctx context.Context, runID, scenario string) (*core.RunContext, error) {
	if scenario == "" {
		runID, scenario = SplitScenario(runID)
	}
	base, err := r.Locate(runID, scenario)
	if err != nil {
		return nil, err
	}

	if r.AutoActivate && !catalog.Exists(base) && !catalog.IsReadOnly(base) {
		act := r.Activator
		if act == nil {
			act = &catalog.Activator{Logger: r.logger()}
		}
		r.logger().Info("activating run on first use", "runid", runID, "base", base)
		if _, err := act.Activate(ctx, base, r.RunInterchange); err != nil {
			return nil, err
		}
	}

	cat, err := catalog.Load(base)
	if err != nil {
		return nil, err
	}
	return &core.RunContext{RunID: runID, BaseDir: base, Scenario: scenario, Catalog: cat}, nil
}

func notFound(runID string) error {
	return core.NewError(core.KindNotFound, core.ErrNotFound, "run %s not found", runID)
}

func safeSegment(s string) bool {
	return s != "" && s != "." && s != ".." && !strings.ContainsAny(s, "/\\\x00")
}

func isDir(p string) bool {
	info, err := os.Stat(p)
	if err != nil {
		return false
	}
	return info.IsDir()
}

// IsNotFound reports whether err means the run could not be located.
func IsNotFound(err error) bool {
	return errors.Is(err, core.ErrNotFound) && core.KindOf(err) == core.KindNotFound
}

// Describe renders a run id with its optional scenario for logs.
func Describe(runID, scenario string) string {
	if scenario == "" {
		return runID
	}
	return fmt.Sprintf("%s/%s/%s", runID, core.ScenarioSegment, scenario)
}
