package commands

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weppcloud/queryengine/pkg/core"
	"github.com/weppcloud/queryengine/pkg/query"
)

func TestQueryCommand(t *testing.T) {
	root := setupRuns(t)
	cfg := testConfig(root)

	t.Run("json from stdin", func(t *testing.T) {
		out, err := execute(t, NewQueryCommand(), cfg,
			`{"datasets": ["landuse/landuse.parquet"], "filters": [{"column": "cover", "operator": ">=", "value": 0.5}], "order_by": ["topaz_id"]}`,
			"alpha", "--format", "json")
		require.NoError(t, err)

		var res query.Result
		require.NoError(t, json.Unmarshal([]byte(out), &res))
		assert.Equal(t, 2, res.RowCount)
		assert.Equal(t, "forest", res.Records[0]["landuse"])
		assert.Equal(t, "grass", res.Records[1]["landuse"])
	})

	t.Run("table from file", func(t *testing.T) {
		payload := filepath.Join(t.TempDir(), "payload.json")
		require.NoError(t, os.WriteFile(payload, []byte(`{"datasets": ["landuse/landuse.parquet"], "order_by": ["topaz_id"]}`), 0o644))

		out, err := execute(t, NewQueryCommand(), cfg, "", "alpha", payload, "--format", "table")
		require.NoError(t, err)
		assert.Contains(t, out, "TOPAZ_ID")
		assert.Contains(t, out, "COVER (FRACTION)")
		assert.Contains(t, out, "forest")
		assert.Contains(t, out, "(3 rows)")
	})

	t.Run("auto is json off a terminal", func(t *testing.T) {
		out, err := execute(t, NewQueryCommand(), cfg, `{"datasets": ["data/sample.parquet"], "limit": 1}`, "alpha")
		require.NoError(t, err)
		assert.True(t, json.Valid([]byte(out)), out)
	})

	t.Run("dry run", func(t *testing.T) {
		out, err := execute(t, NewQueryCommand(), cfg, `{"datasets": ["data/sample.parquet"]}`, "alpha", "--dry-run")
		require.NoError(t, err)

		var v map[string]any
		require.NoError(t, json.Unmarshal([]byte(out), &v))
		assert.Contains(t, v, "normalized_payload")
		assert.Empty(t, v["missing_datasets"])
	})

	t.Run("missing dataset", func(t *testing.T) {
		_, err := execute(t, NewQueryCommand(), cfg, `{"datasets": ["nope/none.parquet"]}`, "alpha")
		require.Error(t, err)
		assert.Equal(t, core.KindDatasetMissing, core.KindOf(err))
	})

	t.Run("malformed payload", func(t *testing.T) {
		_, err := execute(t, NewQueryCommand(), cfg, `{"datasets": [`, "alpha")
		require.Error(t, err)
		assert.Equal(t, core.KindInvalidRequest, core.KindOf(err))
	})

	t.Run("unknown run", func(t *testing.T) {
		_, err := execute(t, NewQueryCommand(), cfg, `{"datasets": ["data/sample.parquet"]}`, "ghost")
		require.Error(t, err)
		assert.Equal(t, core.KindNotFound, core.KindOf(err))
	})

	t.Run("missing payload file", func(t *testing.T) {
		_, err := execute(t, NewQueryCommand(), cfg, "", "alpha", filepath.Join(t.TempDir(), "none.json"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to open payload")
	})
}

func TestResolveFormat(t *testing.T) {
	var buf bytes.Buffer
	assert.Equal(t, FormatTable, resolveFormat("TABLE", &buf))
	assert.Equal(t, FormatJSON, resolveFormat("json", &buf))
	assert.Equal(t, FormatJSON, resolveFormat("auto", &buf))
}

func TestRenderResult(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, renderResult(&buf, &query.Result{}))
		assert.Equal(t, "(0 rows)\n", buf.String())
	})

	t.Run("columns without schema are sorted", func(t *testing.T) {
		res := &query.Result{
			Records:  []map[string]any{{"b": 1, "a": nil}},
			RowCount: 1,
			SQL:      "SELECT 1",
		}
		assert.Equal(t, []string{"a", "b"}, resultColumns(res))

		var buf bytes.Buffer
		require.NoError(t, renderResult(&buf, res))
		assert.Contains(t, buf.String(), "NULL")
		assert.Contains(t, buf.String(), "(1 rows)")
		assert.Contains(t, buf.String(), "SELECT 1")
	})
}

func TestFormatValue(t *testing.T) {
	tests := []struct {
		in   any
		want string
	}{
		{nil, "NULL"},
		{"x", "x"},
		{int64(3), "3"},
		{[]any{1, "a"}, `[1,"a"]`},
		{map[string]any{"k": true}, `{"k":true}`},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, formatValue(tt.in))
	}
}
