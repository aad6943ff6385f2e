package catalog

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weppcloud/queryengine/internal/testutil"
	"github.com/weppcloud/queryengine/pkg/core"
)

type recordingObserver struct {
	mu          sync.Mutex
	activations []string
	refreshes   []string
}

func (o *recordingObserver) ObserveActivation(outcome string, _ time.Duration, _ int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.activations = append(o.activations, outcome)
}

func (o *recordingObserver) ObserveRefresh(outcome string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.refreshes = append(o.refreshes, outcome)
}

func fixedClock() time.Time {
	return time.Date(2024, 5, 7, 16, 33, 22, 0, time.UTC)
}

func newRun(t *testing.T) string {
	t.Helper()
	base := t.TempDir()
	testutil.WriteParquet(t, filepath.Join(base, "landuse", "landuse.parquet"),
		testutil.Column{Name: "topaz_id", Values: []int64{1, 2, 3}},
		testutil.Column{Name: "landuse", Units: "code", Values: []string{"forest", "grass", "crop"}},
	)
	testutil.WriteFile(t, filepath.Join(base, "climate", "summary.json"), []byte(`{}`))
	testutil.WriteFile(t, filepath.Join(base, "soils", "soils.csv"), []byte("topaz_id,texture\n1,loam\n"))
	testutil.WriteFile(t, filepath.Join(base, "wepp", "runs", "p1.run"), []byte("ignored"))
	testutil.WriteFile(t, filepath.Join(base, "dem.tif"), []byte("raster"))
	return base
}

func TestActivate(t *testing.T) {
	base := newRun(t)
	obs := &recordingObserver{}
	act := &Activator{Logger: testutil.NewTestLogger(t), Now: fixedClock, Observer: obs}

	cat, err := act.Activate(context.Background(), base, false)
	require.NoError(t, err)

	paths := make([]string, 0, cat.Len())
	for _, e := range cat.Entries() {
		paths = append(paths, e.Path)
	}
	assert.Equal(t, []string{
		"climate/summary.json",
		"dem.tif",
		"landuse/landuse.parquet",
		"soils/soils.csv",
	}, paths)

	lu, ok := cat.Get("landuse/landuse.parquet")
	require.True(t, ok)
	assert.Equal(t, ".parquet", lu.Extension)
	assert.Positive(t, lu.SizeBytes)
	require.NotNil(t, lu.Schema)
	f, ok := lu.Schema.Field("landuse")
	require.True(t, ok)
	assert.Equal(t, "code", f.Units)

	csv, _ := cat.Get("soils/soils.csv")
	assert.Nil(t, csv.Schema)

	assert.DirExists(t, filepath.Join(base, EngineDir, CacheDir))

	loaded, err := Load(base)
	require.NoError(t, err)
	snap := loaded.Snapshot()
	assert.Equal(t, "2024-05-07T16:33:22Z", snap.GeneratedAt)
	assert.Equal(t, base, snap.Root)
	assert.Equal(t, []string{OutcomeOK}, obs.activations)
}

func TestActivate_Idempotent(t *testing.T) {
	base := newRun(t)
	act := &Activator{Now: fixedClock}

	first, err := act.Activate(context.Background(), base, false)
	require.NoError(t, err)
	firstBytes, err := os.ReadFile(Path(base))
	require.NoError(t, err)

	second, err := act.Activate(context.Background(), base, false)
	require.NoError(t, err)
	secondBytes, err := os.ReadFile(Path(base))
	require.NoError(t, err)

	assert.Equal(t, first.Entries(), second.Entries())
	assert.Equal(t, string(firstBytes), string(secondBytes))
}

func TestActivate_ReadOnly(t *testing.T) {
	base := newRun(t)
	testutil.WriteFile(t, filepath.Join(base, ReadOnlySentinel), nil)
	obs := &recordingObserver{}
	act := &Activator{Observer: obs}

	_, err := act.Activate(context.Background(), base, false)
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrReadOnly)
	assert.Equal(t, core.KindReadOnly, core.KindOf(err))
	assert.False(t, Exists(base))
	assert.Equal(t, []string{OutcomeReadOnly}, obs.activations)
}

func TestActivate_MissingRun(t *testing.T) {
	act := &Activator{}
	_, err := act.Activate(context.Background(), filepath.Join(t.TempDir(), "nope"), false)
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestActivate_ScenarioSymlink(t *testing.T) {
	parent := t.TempDir()
	testutil.WriteParquet(t, filepath.Join(parent, "watershed", "hillslopes.parquet"),
		testutil.Column{Name: "topaz_id", Values: []int64{1}})
	testutil.WriteParquet(t, filepath.Join(parent, "watershed", "channels", "channels.parquet"),
		testutil.Column{Name: "topaz_id", Values: []int64{4}})

	scenario := filepath.Join(parent, core.ScenarioSegment, "undisturbed")
	require.NoError(t, os.MkdirAll(scenario, 0o755))
	require.NoError(t, os.Symlink(filepath.Join(parent, "watershed"), filepath.Join(scenario, "watershed")))
	testutil.WriteFile(t, filepath.Join(scenario, "landuse", "landuse.csv"), []byte("a\n1\n"))

	act := &Activator{}
	cat, err := act.Activate(context.Background(), scenario, false)
	require.NoError(t, err)

	assert.True(t, cat.Has("watershed/hillslopes.parquet"))
	assert.True(t, cat.Has("watershed/channels/channels.parquet"))
	assert.True(t, cat.Has("landuse/landuse.csv"))

	// The parent scan reaches the same files directly and does not follow
	// the scenario's link back into itself.
	parentCat, err := act.Activate(context.Background(), parent, false)
	require.NoError(t, err)
	assert.True(t, parentCat.Has("watershed/hillslopes.parquet"))
	assert.False(t, parentCat.Has(core.ScenarioSegment+"/undisturbed/watershed/hillslopes.parquet"))
	assert.True(t, parentCat.Has(core.ScenarioSegment+"/undisturbed/landuse/landuse.csv"))
}

func TestActivate_SymlinkCycle(t *testing.T) {
	outside := t.TempDir()
	testutil.WriteFile(t, filepath.Join(outside, "data.csv"), []byte("a\n"))
	require.NoError(t, os.Symlink(outside, filepath.Join(outside, "loop")))

	base := t.TempDir()
	require.NoError(t, os.Symlink(outside, filepath.Join(base, "shared")))

	cat, err := (&Activator{}).Activate(context.Background(), base, false)
	require.NoError(t, err)
	assert.Equal(t, 1, cat.Len())
	assert.True(t, cat.Has("shared/data.csv"))
}

func TestActivate_Interchange(t *testing.T) {
	base := newRun(t)
	require.NoError(t, os.MkdirAll(filepath.Join(base, "wepp", "output"), 0o755))
	done := filepath.Join(base, core.ScenarioSegment, "burned", "wepp", "output")
	require.NoError(t, os.MkdirAll(filepath.Join(done, "interchange"), 0o755))

	var calls []string
	var gotYear *int
	gen := GeneratorFunc(func(_ context.Context, outputDir string, startYear *int) error {
		calls = append(calls, outputDir)
		gotYear = startYear
		testutil.WriteParquet(t, filepath.Join(outputDir, "interchange", "totalwatsed3.parquet"),
			testutil.Column{Name: "year", Values: []int32{2000}})
		return nil
	})
	act := &Activator{
		Generator: gen,
		StartYear: func(string) (int, bool) { return 2000, true },
	}

	cat, err := act.Activate(context.Background(), base, true)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(base, "wepp", "output")}, calls)
	require.NotNil(t, gotYear)
	assert.Equal(t, 2000, *gotYear)
	assert.True(t, cat.Has("wepp/output/interchange/totalwatsed3.parquet"))

	calls = nil
	_, err = act.Activate(context.Background(), base, true)
	require.NoError(t, err)
	assert.Empty(t, calls, "existing interchange directories are not regenerated")
}

func TestActivate_InterchangeFailure(t *testing.T) {
	base := newRun(t)
	require.NoError(t, os.MkdirAll(filepath.Join(base, "wepp", "output"), 0o755))

	act := &Activator{Generator: GeneratorFunc(func(context.Context, string, *int) error {
		return errors.New("boom")
	})}
	_, err := act.Activate(context.Background(), base, true)
	require.Error(t, err)
	assert.Equal(t, core.KindActivationFailed, core.KindOf(err))
	assert.False(t, Exists(base))
}

func TestActivate_InterchangeWithoutGenerator(t *testing.T) {
	base := newRun(t)
	require.NoError(t, os.MkdirAll(filepath.Join(base, "wepp", "output"), 0o755))

	_, err := (&Activator{}).Activate(context.Background(), base, true)
	assert.NoError(t, err)
}

func TestUpdateEntry(t *testing.T) {
	ctx := context.Background()
	base := newRun(t)
	act := &Activator{Now: fixedClock}
	_, err := act.Activate(ctx, base, false)
	require.NoError(t, err)

	t.Run("new file", func(t *testing.T) {
		testutil.WriteParquet(t, filepath.Join(base, "ash", "ash.parquet"),
			testutil.Column{Name: "depth", Units: "mm", Values: []float64{1.5}})

		entry, err := act.UpdateEntry(ctx, base, "ash/ash.parquet")
		require.NoError(t, err)
		require.NotNil(t, entry)
		assert.Equal(t, "ash/ash.parquet", entry.Path)
		require.NotNil(t, entry.Schema)

		cat, err := Load(base)
		require.NoError(t, err)
		got, ok := cat.Get("ash/ash.parquet")
		require.True(t, ok)
		assert.Equal(t, *entry, got)
	})

	t.Run("matches full activation", func(t *testing.T) {
		entry, err := act.UpdateEntry(ctx, base, "./landuse/../landuse/landuse.parquet")
		require.NoError(t, err)
		require.NotNil(t, entry)

		cat, err := act.Activate(ctx, base, false)
		require.NoError(t, err)
		full, ok := cat.Get("landuse/landuse.parquet")
		require.True(t, ok)
		assert.Equal(t, full, *entry)
	})

	t.Run("removed file", func(t *testing.T) {
		require.NoError(t, os.Remove(filepath.Join(base, "soils", "soils.csv")))

		entry, err := act.UpdateEntry(ctx, base, "soils/soils.csv")
		require.NoError(t, err)
		assert.Nil(t, entry)

		cat, err := Load(base)
		require.NoError(t, err)
		assert.False(t, cat.Has("soils/soils.csv"))
	})

	t.Run("unsupported suffix", func(t *testing.T) {
		_, err := act.UpdateEntry(ctx, base, "wepp/runs/p1.run")
		assert.ErrorIs(t, err, core.ErrInvalid)
	})

	t.Run("catalog file itself", func(t *testing.T) {
		entry, err := act.UpdateEntry(ctx, base, EngineDir+"/"+FileName)
		require.NoError(t, err)
		assert.Nil(t, entry)

		cat, err := Load(base)
		require.NoError(t, err)
		assert.False(t, cat.Has(EngineDir+"/"+FileName))
	})

	t.Run("symlink back into the run", func(t *testing.T) {
		require.NoError(t, os.Symlink(filepath.Join(base, "landuse"), filepath.Join(base, "lu_link")))

		entry, err := act.UpdateEntry(ctx, base, "lu_link/landuse.parquet")
		require.NoError(t, err)
		assert.Nil(t, entry)

		cat, err := Load(base)
		require.NoError(t, err)
		assert.False(t, cat.Has("lu_link/landuse.parquet"))

		cat, err = act.Activate(ctx, base, false)
		require.NoError(t, err)
		assert.False(t, cat.Has("lu_link/landuse.parquet"))
		assert.True(t, cat.Has("landuse/landuse.parquet"))
	})
}

func TestUpdateEntry_PathEscape(t *testing.T) {
	ctx := context.Background()
	base := newRun(t)
	outside := t.TempDir()
	testutil.WriteFile(t, filepath.Join(outside, "secret.csv"), []byte("x\n"))
	require.NoError(t, os.Symlink(filepath.Join(outside, "secret.csv"), filepath.Join(base, "leak.csv")))

	act := &Activator{}
	_, err := act.Activate(ctx, base, false)
	require.NoError(t, err)

	tests := []string{
		"../outside.csv",
		"landuse/../../outside.csv",
		"..",
		"",
		"/etc/passwd",
		filepath.Join(outside, "secret.csv"),
		"leak.csv",
	}
	for _, rel := range tests {
		t.Run(rel, func(t *testing.T) {
			_, err := act.UpdateEntry(ctx, base, rel)
			require.Error(t, err)
			assert.ErrorIs(t, err, core.ErrPathEscape)
		})
	}
}

func TestUpdateEntry_ScenarioSymlink(t *testing.T) {
	ctx := context.Background()
	parent := t.TempDir()
	testutil.WriteParquet(t, filepath.Join(parent, "watershed", "hillslopes.parquet"),
		testutil.Column{Name: "topaz_id", Values: []int64{1}})
	scenario := filepath.Join(parent, core.ScenarioSegment, "s1")
	require.NoError(t, os.MkdirAll(scenario, 0o755))
	require.NoError(t, os.Symlink(filepath.Join(parent, "watershed"), filepath.Join(scenario, "watershed")))

	act := &Activator{}
	_, err := act.Activate(ctx, scenario, false)
	require.NoError(t, err)

	entry, err := act.UpdateEntry(ctx, scenario, "watershed/hillslopes.parquet")
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, "watershed/hillslopes.parquet", entry.Path)

	_, err = act.UpdateEntry(ctx, scenario, "watershed/../../../../../watershed/hillslopes.parquet")
	assert.ErrorIs(t, err, core.ErrPathEscape)
}

func TestUpdateEntry_NoCatalog(t *testing.T) {
	base := newRun(t)
	obs := &recordingObserver{}
	entry, err := (&Activator{Observer: obs}).UpdateEntry(context.Background(), base, "soils/soils.csv")
	require.NoError(t, err)
	assert.Nil(t, entry)
	assert.False(t, Exists(base))
	assert.Equal(t, []string{OutcomeSkipped}, obs.refreshes)
}

func TestUpdateEntry_ReadOnly(t *testing.T) {
	ctx := context.Background()
	base := newRun(t)
	act := &Activator{}
	_, err := act.Activate(ctx, base, false)
	require.NoError(t, err)
	testutil.WriteFile(t, filepath.Join(base, ReadOnlySentinel), nil)

	_, err = act.UpdateEntry(ctx, base, "soils/soils.csv")
	assert.ErrorIs(t, err, core.ErrReadOnly)
}

func TestActivate_ConcurrentWithRefresh(t *testing.T) {
	ctx := context.Background()
	base := newRun(t)
	act := &Activator{}
	_, err := act.Activate(ctx, base, false)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := act.Activate(ctx, base, false)
			assert.NoError(t, err)
		}()
		go func() {
			defer wg.Done()
			_, err := act.UpdateEntry(ctx, base, "climate/summary.json")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	cat, err := Load(base)
	require.NoError(t, err)
	assert.Equal(t, 4, cat.Len())
}

func TestSupported(t *testing.T) {
	assert.True(t, Supported(".PARQUET"))
	assert.True(t, Supported(".geojson"))
	assert.False(t, Supported(".run"))
	assert.Contains(t, SupportedExtensions(), ".nodb")
}
