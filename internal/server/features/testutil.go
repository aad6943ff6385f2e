// Package features provides shared test utilities for HTTP feature tests.
package features

import (
	"path/filepath"
	"testing"

	"github.com/weppcloud/queryengine/internal/testutil"
	"github.com/weppcloud/queryengine/pkg/catalog"
	"github.com/weppcloud/queryengine/pkg/query"
	"github.com/weppcloud/queryengine/pkg/runctx"
)

// Fixture is a runs directory with a resolver and services over it.
type Fixture struct {
	Root      string
	Resolver  *runctx.Resolver
	Activator *catalog.Activator
	Query     *query.Service
}

// RunDir returns the directory of runID.
func (f *Fixture) RunDir(runID string) string {
	return filepath.Join(f.Root, runID)
}

// SetupFixture creates runs "alpha" and "beta" beneath a temp root.
// alpha holds a sample table, a land use table and hidden ash outputs;
// beta holds only the sample table. Neither is activated.
func SetupFixture(t *testing.T) *Fixture {
	t.Helper()

	logger := testutil.NewTestLogger(t)
	root := t.TempDir()

	for _, run := range []string{"alpha", "beta"} {
		testutil.WriteParquet(t, filepath.Join(root, run, "data", "sample.parquet"),
			testutil.Column{Name: "id", Values: []int64{1, 2, 3}},
			testutil.Column{Name: "value", Units: "m", Values: []string{"a", "b", "c"}},
		)
	}
	alpha := filepath.Join(root, "alpha")
	testutil.WriteParquet(t, filepath.Join(alpha, "landuse", "landuse.parquet"),
		testutil.Column{Name: "topaz_id", Values: []int64{1, 2, 4}},
		testutil.Column{Name: "landuse", Values: []string{"forest", "grass", "crop"}},
		testutil.Column{Name: "cover", Values: []float64{0.9, 0.5, 0.2}},
	)
	testutil.WriteParquet(t, filepath.Join(alpha, "ash", "H1.parquet"),
		testutil.Column{Name: "day", Values: []int32{1}},
	)
	testutil.WriteFile(t, filepath.Join(alpha, "ash", "summary.json"), []byte(`{"total": 1}`))

	act := &catalog.Activator{Logger: logger}
	return &Fixture{
		Root:      root,
		Activator: act,
		Resolver:  &runctx.Resolver{Prefix: root, AutoActivate: true, Activator: act, Logger: logger},
		Query:     &query.Service{Logger: logger},
	}
}
