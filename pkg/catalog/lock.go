package catalog

import (
	"path/filepath"
	"sync"
)

// runLocks serializes catalog writers per run directory.
var runLocks sync.Map

func lockRun(base string) func() {
	key := base
	if real, err := filepath.EvalSymlinks(base); err == nil {
		key = real
	} else if abs, err := filepath.Abs(base); err == nil {
		key = abs
	}
	v, _ := runLocks.LoadOrStore(key, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}
