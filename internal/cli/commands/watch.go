package commands

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/weppcloud/queryengine/pkg/catalog"
	"github.com/weppcloud/queryengine/pkg/runctx"
)

// DefaultDebounce is how long the watcher waits for writes to settle.
const DefaultDebounce = 500 * time.Millisecond

// NewWatchCommand creates the watch command.
func NewWatchCommand() *cobra.Command {
	var debounce time.Duration

	cmd := &cobra.Command{
		Use:   "watch <runid>",
		Short: "Keep a run's catalog in sync with its files",
		Long: `Watch the run directory and refresh catalog entries as columnar files
are written or removed. The run is activated first if it has no catalog.`,
		Example: `  wepp-query watch copacetic-note --debounce 2s`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc := newServices(cmd, nil)
			runID, scenario := runctx.SplitScenario(args[0])
			base, err := svc.resolver.Locate(runID, scenario)
			if err != nil {
				return err
			}
			if !catalog.Exists(base) {
				if _, err := svc.activator.Activate(cmd.Context(), base, svc.cfg.Query.RunInterchange); err != nil {
					return err
				}
			}

			w := &Watcher{Base: base, Activator: svc.activator, Debounce: debounce, Logger: svc.logger}
			svc.logger.Info("watching run", "run", runctx.Describe(runID, scenario), "base", base)
			return w.Run(cmd.Context())
		},
	}

	cmd.Flags().DurationVar(&debounce, "debounce", DefaultDebounce, "Quiet period before refreshing changed files")

	return cmd
}

// Watcher refreshes catalog entries for files changed under Base.
type Watcher struct {
	Base      string
	Activator *catalog.Activator
	Debounce  time.Duration
	Logger    *slog.Logger

	mu      sync.Mutex
	pending map[string]bool
	timer   *time.Timer
}

// Run watches until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() { _ = watcher.Close() }()

	if err := w.addRecursive(watcher, w.Base); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			w.mu.Lock()
			if w.timer != nil {
				w.timer.Stop()
			}
			w.mu.Unlock()
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			w.handle(ctx, watcher, event)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.Logger.Error("watcher error", "error", err)
		}
	}
}

func (w *Watcher) handle(ctx context.Context, watcher *fsnotify.Watcher, event fsnotify.Event) {
	rel, err := filepath.Rel(w.Base, event.Name)
	if err != nil {
		return
	}
	rel = filepath.ToSlash(rel)
	if rel == catalog.EngineDir || strings.HasPrefix(rel, catalog.EngineDir+"/") {
		return
	}

	if event.Has(fsnotify.Create) {
		if ok, _ := isDirPath(event.Name); ok {
			if err := w.addRecursive(watcher, event.Name); err != nil {
				w.Logger.Warn("failed to watch new directory", "dir", event.Name, "error", err)
			}
			return
		}
	}
	if !catalog.Supported(strings.ToLower(filepath.Ext(rel))) {
		return
	}
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return
	}
	w.schedule(ctx, rel)
}

func (w *Watcher) schedule(ctx context.Context, rel string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.pending == nil {
		w.pending = make(map[string]bool)
	}
	w.pending[rel] = true
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.Debounce, func() { w.flush(ctx) })
}

// flush refreshes every pending path.
func (w *Watcher) flush(ctx context.Context) {
	w.mu.Lock()
	paths := make([]string, 0, len(w.pending))
	for p := range w.pending {
		paths = append(paths, p)
	}
	w.pending = nil
	w.mu.Unlock()

	sort.Strings(paths)
	for _, rel := range paths {
		entry, err := w.Activator.UpdateEntry(ctx, w.Base, rel)
		switch {
		case err != nil:
			w.Logger.Error("refresh failed", "path", rel, "error", err)
		case entry == nil:
			w.Logger.Info("catalog entry removed", "path", rel)
		default:
			w.Logger.Info("catalog entry refreshed", "path", rel)
		}
	}
}

func (w *Watcher) addRecursive(watcher *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if d.Name() == catalog.EngineDir {
			return filepath.SkipDir
		}
		return watcher.Add(path)
	})
}

func isDirPath(p string) (bool, error) {
	info, err := os.Stat(p)
	if err != nil {
		return false, err
	}
	return info.IsDir(), nil
}
