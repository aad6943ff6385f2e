package query

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weppcloud/queryengine/pkg/catalog"
	"github.com/weppcloud/queryengine/pkg/core"
)

func testRunContext() *core.RunContext {
	fields := func(pairs ...string) *core.Schema {
		s := &core.Schema{}
		for i := 0; i < len(pairs); i += 2 {
			s.Fields = append(s.Fields, core.Field{Name: pairs[i], Type: pairs[i+1]})
		}
		return s
	}
	cat := catalog.New(core.CatalogSnapshot{
		Version: core.CatalogVersion,
		Files: []core.CatalogEntry{
			{Path: "landuse/landuse.parquet", Extension: ".parquet", Schema: fields("topaz_id", "BIGINT", "key", "BIGINT", "cover", "DOUBLE", "label", "VARCHAR", "managed", "BOOLEAN", "area", "DECIMAL(10,2)", "col with spaces", "INTEGER")},
			{Path: "soils/soils.parquet", Extension: ".parquet", Schema: fields("topaz_id", "BIGINT", "texture", "VARCHAR")},
			{Path: "watershed/channels.geojson", Extension: ".geojson"},
			{Path: "climate/daily.csv", Extension: ".csv"},
			{Path: "climate/daily.tsv", Extension: ".tsv"},
			{Path: "climate/meta.json", Extension: ".json"},
			{Path: "dem/dem.tif", Extension: ".tif"},
			{Path: "it's.parquet", Extension: ".parquet"},
		},
	})
	return &core.RunContext{RunID: "alpha", BaseDir: "/runs/alpha", Catalog: cat}
}

func buildPlan(t *testing.T, payload string) (*Plan, error) {
	t.Helper()
	req, err := ParseRequest(mustJSON(t, payload))
	require.NoError(t, err)
	return Build(testRunContext(), req)
}

func TestBuild_SQL(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    string
		spatial bool
	}{
		{
			name:    "preview",
			payload: `{"datasets": ["landuse/landuse.parquet"], "columns": ["topaz_id", "key"], "limit": 2}`,
			want:    "SELECT topaz_id, key\nFROM read_parquet('/runs/alpha/landuse/landuse.parquet') AS landuse\nLIMIT 2",
		},
		{
			name:    "star",
			payload: `{"datasets": ["landuse/landuse.parquet"]}`,
			want:    "SELECT *\nFROM read_parquet('/runs/alpha/landuse/landuse.parquet') AS landuse",
		},
		{
			name:    "dataset columns",
			payload: `{"datasets": [{"path": "landuse/landuse.parquet", "alias": "lu", "columns": ["topaz_id", "col with spaces"]}]}`,
			want:    "SELECT lu.topaz_id, lu.\"col with spaces\"\nFROM read_parquet('/runs/alpha/landuse/landuse.parquet') AS lu",
		},
		{
			name: "join",
			payload: `{"datasets": ["landuse/landuse.parquet", "soils/soils.parquet"],
				"columns": ["landuse.topaz_id AS topaz_id", "soils.texture"],
				"joins": [{"left": "landuse", "right": "soils", "left_on": ["topaz_id", "landuse.key"], "right_on": ["soils.topaz_id", "key"], "join_type": "left"}]}`,
			want: "SELECT landuse.topaz_id AS topaz_id, soils.texture\n" +
				"FROM read_parquet('/runs/alpha/landuse/landuse.parquet') AS landuse\n" +
				"LEFT JOIN read_parquet('/runs/alpha/soils/soils.parquet') AS soils ON landuse.topaz_id = soils.topaz_id AND landuse.key = soils.key",
		},
		{
			name: "grouping",
			payload: `{"datasets": ["landuse/landuse.parquet"], "group_by": ["key"],
				"aggregations": [{"fn": "count", "column": "*", "alias": "n"}], "order_by": ["key", "n DESC"]}`,
			want: "SELECT key, COUNT(*) AS n\nFROM read_parquet('/runs/alpha/landuse/landuse.parquet') AS landuse\nGROUP BY key\nORDER BY key, n DESC",
		},
		{
			name:    "aggregation only",
			payload: `{"datasets": ["landuse/landuse.parquet"], "aggregations": ["AVG(cover) AS mean_cover"]}`,
			want:    "SELECT AVG(cover) AS mean_cover\nFROM read_parquet('/runs/alpha/landuse/landuse.parquet') AS landuse",
		},
		{
			name: "computed date",
			payload: `{"datasets": ["landuse/landuse.parquet"], "columns": ["key"],
				"computed_columns": [{"alias": "date", "date_parts": {"year": "year", "month": "month", "day": "day"}}]}`,
			want: "SELECT key, MAKE_DATE(year, month, day) AS date\nFROM read_parquet('/runs/alpha/landuse/landuse.parquet') AS landuse",
		},
		{
			name:    "spatial",
			payload: `{"datasets": ["watershed/channels.geojson"], "columns": ["ST_AsGeoJSON(channels.geom) AS geojson"]}`,
			want:    "SELECT ST_AsGeoJSON(channels.geom) AS geojson\nFROM ST_Read('/runs/alpha/watershed/channels.geojson') AS channels",
			spatial: true,
		},
		{
			name:    "csv",
			payload: `{"datasets": ["climate/daily.csv"]}`,
			want:    "SELECT *\nFROM read_csv_auto('/runs/alpha/climate/daily.csv') AS daily",
		},
		{
			name:    "tsv",
			payload: `{"datasets": ["climate/daily.tsv"]}`,
			want:    "SELECT *\nFROM read_csv_auto('/runs/alpha/climate/daily.tsv', delim='\\t') AS daily",
		},
		{
			name:    "json",
			payload: `{"datasets": ["climate/meta.json"]}`,
			want:    "SELECT *\nFROM read_json_auto('/runs/alpha/climate/meta.json') AS meta",
		},
		{
			name:    "quoted path",
			payload: `{"datasets": [{"path": "it's.parquet", "alias": "q"}]}`,
			want:    "SELECT *\nFROM read_parquet('/runs/alpha/it''s.parquet') AS q",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := buildPlan(t, tt.payload)
			require.NoError(t, err)
			assert.Equal(t, tt.want, p.SQL)
			assert.Equal(t, tt.spatial, p.RequiresSpatial)
			assert.NotNil(t, p.Params)
			assert.Empty(t, p.Params)
		})
	}
}

func TestBuild_Filters(t *testing.T) {
	tests := []struct {
		name   string
		filter string
		want   string
	}{
		{"int from string", `{"column": "key", "operator": "=", "value": "43"}`, "landuse.key = 43"},
		{"int from number", `{"column": "landuse.key", "operator": "=", "value": 43}`, "landuse.key = 43"},
		{"int from integral float", `{"column": "key", "operator": ">=", "value": "43.0"}`, "landuse.key >= 43"},
		{"float", `{"column": "cover", "operator": "<", "value": "0.25"}`, "landuse.cover < 0.25"},
		{"decimal", `{"column": "area", "operator": ">", "value": 12.5}`, "landuse.area > 12.5"},
		{"bool synonym", `{"column": "managed", "operator": "=", "value": "yes"}`, "landuse.managed = TRUE"},
		{"bool number", `{"column": "managed", "operator": "!=", "value": 0}`, "landuse.managed != FALSE"},
		{"string", `{"column": "label", "operator": "=", "value": "o'brien"}`, "landuse.label = 'o''brien'"},
		{"string from number", `{"column": "label", "operator": "=", "value": 7}`, "landuse.label = '7'"},
		{"like", `{"column": "label", "operator": "ilike", "value": "%forest%"}`, "landuse.label ILIKE '%forest%'"},
		{"like on int column", `{"column": "key", "operator": "LIKE", "value": "4%"}`, "landuse.key LIKE '4%'"},
		{"in", `{"column": "key", "operator": "IN", "value": ["1", 2]}`, "landuse.key IN (1, 2)"},
		{"not in strings", `{"column": "label", "operator": "NOT IN", "value": ["a", "b"]}`, "landuse.label NOT IN ('a', 'b')"},
		{"between", `{"column": "cover", "operator": "BETWEEN", "value": [0, "0.5"]}`, "landuse.cover BETWEEN 0 AND 0.5"},
		{"is null", `{"column": "label", "operator": "IS NULL"}`, "landuse.label IS NULL"},
		{"is not null", `{"column": "label", "operator": "IS NOT NULL", "value": null}`, "landuse.label IS NOT NULL"},
		{"quoted column", `{"column": "landuse.\"col with spaces\"", "operator": "=", "value": "3"}`, "landuse.\"col with spaces\" = 3"},
		{"int at upper bound", `{"column": "key", "operator": "=", "value": "9223372036854775807"}`, "landuse.key = 9223372036854775807"},
		{"int from exponent", `{"column": "key", "operator": "=", "value": "1e3"}`, "landuse.key = 1000"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := buildPlan(t, `{"datasets": ["landuse/landuse.parquet"], "filters": [`+tt.filter+`]}`)
			require.NoError(t, err)
			assert.Contains(t, p.SQL, "\nWHERE "+tt.want)
		})
	}
}

func TestBuild_UntypedFilters(t *testing.T) {
	tests := []struct {
		name   string
		filter string
		want   string
	}{
		{"string", `{"column": "extra", "operator": "=", "value": "x"}`, "daily.extra = 'x'"},
		{"number", `{"column": "extra", "operator": "=", "value": 1.5}`, "daily.extra = 1.5"},
		{"bool", `{"column": "extra", "operator": "=", "value": true}`, "daily.extra = TRUE"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := buildPlan(t, `{"datasets": ["climate/daily.csv"], "filters": [`+tt.filter+`]}`)
			require.NoError(t, err)
			assert.Contains(t, p.SQL, "\nWHERE "+tt.want)
		})
	}
}

func TestBuild_FilterColumnResolution(t *testing.T) {
	join := `"datasets": ["landuse/landuse.parquet", "soils/soils.parquet"],
		"joins": [{"left": "landuse", "right": "soils", "on": ["topaz_id"]}]`

	tests := []struct {
		name   string
		filter string
		want   string
	}{
		{"joined dataset column", `{"column": "texture", "operator": "=", "value": "clay"}`, "soils.texture = 'clay'"},
		{"shared column prefers base", `{"column": "topaz_id", "operator": "=", "value": "7"}`, "landuse.topaz_id = 7"},
		{"base only column", `{"column": "cover", "operator": ">", "value": 0.5}`, "landuse.cover > 0.5"},
		{"explicit alias", `{"column": "soils.topaz_id", "operator": "=", "value": 7}`, "soils.topaz_id = 7"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := buildPlan(t, `{`+join+`, "filters": [`+tt.filter+`]}`)
			require.NoError(t, err)
			assert.Contains(t, p.SQL, "\nWHERE "+tt.want)
		})
	}

	t.Run("schemaless base falls back to owner", func(t *testing.T) {
		p, err := buildPlan(t, `{"datasets": ["climate/daily.csv", "soils/soils.parquet"],
			"joins": [{"left": "daily", "right": "soils", "on": ["topaz_id"]}],
			"filters": [{"column": "texture", "operator": "=", "value": "clay"}]}`)
		require.NoError(t, err)
		assert.Contains(t, p.SQL, "\nWHERE soils.texture = 'clay'")
	})

	t.Run("ambiguous", func(t *testing.T) {
		_, err := buildPlan(t, `{"datasets": ["climate/daily.csv", "soils/soils.parquet", "landuse/landuse.parquet"],
			"joins": [{"left": "daily", "right": "soils", "on": ["topaz_id"]}, {"left": "soils", "right": "landuse", "on": ["topaz_id"]}],
			"filters": [{"column": "topaz_id", "operator": "=", "value": 1}]}`)
		require.Error(t, err)
		assert.Equal(t, core.KindInvalidPayload, core.KindOf(err))
		assert.Contains(t, err.Error(), "ambiguous filter column")
	})

	t.Run("unknown", func(t *testing.T) {
		_, err := buildPlan(t, `{`+join+`, "filters": [{"column": "ghost", "operator": "=", "value": 1}]}`)
		require.Error(t, err)
		assert.Equal(t, core.KindInvalidPayload, core.KindOf(err))
		assert.Contains(t, err.Error(), "unknown filter column")
	})
}

func TestBuild_FilterConjunction(t *testing.T) {
	p, err := buildPlan(t, `{"datasets": ["landuse/landuse.parquet", "soils/soils.parquet"],
		"joins": [{"left": "landuse", "right": "soils", "on": ["topaz_id"]}],
		"filters": [{"column": "key", "operator": "=", "value": 1}, {"column": "soils.texture", "operator": "=", "value": "loam"}]}`)
	require.NoError(t, err)
	assert.Contains(t, p.SQL, "WHERE landuse.key = 1 AND soils.texture = 'loam'")
	assert.Contains(t, p.SQL, "INNER JOIN")
}

func TestBuild_Errors(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		kind    core.Kind
	}{
		{"missing dataset", `{"datasets": ["nope.parquet"]}`, core.KindDatasetMissing},
		{"missing joined dataset", `{"datasets": ["landuse/landuse.parquet", "nope.parquet"], "joins": [{"left": "landuse", "right": "nope", "on": ["id"]}]}`, core.KindDatasetMissing},
		{"unknown filter alias", `{"datasets": ["landuse/landuse.parquet"], "filters": [{"column": "ghost.key", "operator": "=", "value": 1}]}`, core.KindDatasetMissing},
		{"not tabular", `{"datasets": ["dem/dem.tif"]}`, core.KindInvalidPayload},
		{"int coercion", `{"datasets": ["landuse/landuse.parquet"], "filters": [{"column": "key", "operator": "=", "value": "forest"}]}`, core.KindInvalidPayload},
		{"int from fraction", `{"datasets": ["landuse/landuse.parquet"], "filters": [{"column": "key", "operator": "=", "value": 4.5}]}`, core.KindInvalidPayload},
		{"int beyond range", `{"datasets": ["landuse/landuse.parquet"], "filters": [{"column": "key", "operator": "=", "value": "1e30"}]}`, core.KindInvalidPayload},
		{"int beyond range number", `{"datasets": ["landuse/landuse.parquet"], "filters": [{"column": "key", "operator": "=", "value": 1e30}]}`, core.KindInvalidPayload},
		{"int from bool", `{"datasets": ["landuse/landuse.parquet"], "filters": [{"column": "key", "operator": "=", "value": true}]}`, core.KindInvalidPayload},
		{"float coercion", `{"datasets": ["landuse/landuse.parquet"], "filters": [{"column": "cover", "operator": "<", "value": "low"}]}`, core.KindInvalidPayload},
		{"bool coercion", `{"datasets": ["landuse/landuse.parquet"], "filters": [{"column": "managed", "operator": "=", "value": "maybe"}]}`, core.KindInvalidPayload},
		{"decimal coercion", `{"datasets": ["landuse/landuse.parquet"], "filters": [{"column": "area", "operator": "=", "value": "lots"}]}`, core.KindInvalidPayload},
		{"in coercion", `{"datasets": ["landuse/landuse.parquet"], "filters": [{"column": "key", "operator": "IN", "value": [1, "x"]}]}`, core.KindInvalidPayload},
		{"null in list", `{"datasets": ["landuse/landuse.parquet"], "filters": [{"column": "key", "operator": "IN", "value": [null]}]}`, core.KindInvalidPayload},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := buildPlan(t, tt.payload)
			require.Error(t, err)
			assert.Equal(t, tt.kind, core.KindOf(err))
		})
	}
}

func TestBuild_NoCatalog(t *testing.T) {
	req, err := ParseRequest(map[string]any{"datasets": []any{"a.parquet"}})
	require.NoError(t, err)
	_, err = Build(&core.RunContext{}, req)
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestMissingDatasets(t *testing.T) {
	req, err := ParseRequest(mustJSON(t, `{"datasets": ["landuse/landuse.parquet", "ghost.parquet"],
		"joins": [{"left": "landuse", "right": "ghost", "on": ["id"]}]}`))
	require.NoError(t, err)
	assert.Equal(t, []string{"ghost.parquet"}, MissingDatasets(testRunContext().Catalog, req))
	assert.Equal(t, []string{}, MissingDatasets(testRunContext().Catalog, &Request{}))
}

func TestLiteral(t *testing.T) {
	tests := []struct {
		value any
		typ   string
		want  string
	}{
		{"43", "INTEGER", "43"},
		{json.Number("43"), "BIGINT", "43"},
		{int64(-2), "SMALLINT", "-2"},
		{"1e3", "DOUBLE", "1000"},
		{"0.1", "DECIMAL(18,3)", "0.1"},
		{"off", "BOOLEAN", "FALSE"},
		{"2001-01-01", "DATE", "'2001-01-01'"},
		{false, "", "FALSE"},
		{3, "", "3"},
	}
	for _, tt := range tests {
		t.Run(tt.typ+"/"+stringify(tt.value), func(t *testing.T) {
			got, err := literal(tt.value, tt.typ, "c")
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLiteral_IntegerRange(t *testing.T) {
	for _, v := range []any{"1e30", "-1e30", "9223372036854775808", json.Number("1e30"), 1e30, -1e19, 9223372036854775808.0} {
		t.Run(stringify(v), func(t *testing.T) {
			_, err := literal(v, "BIGINT", "key")
			require.Error(t, err)
			assert.ErrorIs(t, err, core.ErrInvalid)
		})
	}

	got, err := literal(-9223372036854775808.0, "BIGINT", "key")
	require.NoError(t, err)
	assert.Equal(t, "-9223372036854775808", got)
}

func TestLiteral_WideIntegers(t *testing.T) {
	tests := []struct {
		value any
		typ   string
		want  string
	}{
		{"18446744073709551615", "UBIGINT", "18446744073709551615"},
		{json.Number("18446744073709551615"), "UBIGINT", "18446744073709551615"},
		{"1e19", "UBIGINT", "10000000000000000000"},
		{int64(7), "UBIGINT", "7"},
		{"-170141183460469231731687303715884105728", "HUGEINT", "-170141183460469231731687303715884105728"},
		{"340282366920938463463374607431768211455", "UHUGEINT", "340282366920938463463374607431768211455"},
	}
	for _, tt := range tests {
		t.Run(tt.typ+"/"+stringify(tt.value), func(t *testing.T) {
			got, err := literal(tt.value, tt.typ, "c")
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	invalid := []struct {
		value any
		typ   string
	}{
		{"18446744073709551616", "UBIGINT"},
		{"-1", "UBIGINT"},
		{"1.5", "HUGEINT"},
		{"forest", "HUGEINT"},
		{true, "UBIGINT"},
		{"1e40", "UHUGEINT"},
	}
	for _, tt := range invalid {
		t.Run("invalid "+tt.typ+"/"+stringify(tt.value), func(t *testing.T) {
			_, err := literal(tt.value, tt.typ, "c")
			assert.ErrorIs(t, err, core.ErrInvalid)
		})
	}
}

func TestTabular(t *testing.T) {
	for _, p := range []string{"a.parquet", "b/c.CSV", "d.tsv", "e.json", "f.geojson", "g.shp"} {
		assert.True(t, Tabular(p), p)
	}
	for _, p := range []string{"climate.nodb", "dem.tif", "README", "wepp/runs/p1.run"} {
		assert.False(t, Tabular(p), p)
	}
}

func TestQuoteIdent(t *testing.T) {
	assert.Equal(t, "plain_name", quoteIdent("plain_name"))
	assert.Equal(t, `"with space"`, quoteIdent("with space"))
	assert.Equal(t, `"already"`, quoteIdent(`"already"`))
	assert.Equal(t, `"a""b c"`, quoteIdent(`a"b c`))
	assert.Equal(t, "*", quoteIdent("*"))
}
