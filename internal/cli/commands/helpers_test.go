package commands

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"

	"github.com/weppcloud/queryengine/internal/cli/config"
	"github.com/weppcloud/queryengine/internal/testutil"
)

// setupRuns creates a runs root holding "alpha" with a land use table and a
// sample table. The run is not activated.
func setupRuns(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	alpha := filepath.Join(root, "alpha")
	testutil.WriteParquet(t, filepath.Join(alpha, "landuse", "landuse.parquet"),
		testutil.Column{Name: "topaz_id", Values: []int64{1, 2, 4}},
		testutil.Column{Name: "landuse", Values: []string{"forest", "grass", "crop"}},
		testutil.Column{Name: "cover", Units: "fraction", Values: []float64{0.9, 0.5, 0.2}},
	)
	testutil.WriteParquet(t, filepath.Join(alpha, "data", "sample.parquet"),
		testutil.Column{Name: "id", Values: []int64{1, 2, 3}},
	)
	return root
}

func testConfig(root string) *config.Config {
	return &config.Config{
		Listen:   config.DefaultListen,
		Runs:     config.RunsConfig{Prefix: root},
		Query:    config.QueryConfig{AutoActivate: true},
		LogLevel: "debug",
	}
}

// execute runs cmd with cfg in its context and returns stdout.
func execute(t *testing.T, cmd *cobra.Command, cfg *config.Config, stdin string, args ...string) (string, error) {
	t.Helper()
	ctx := config.WithConfig(context.Background(), cfg)
	ctx = config.WithLogger(ctx, testutil.NewTestLogger(t))

	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(ctx)
	return out.String(), err
}
