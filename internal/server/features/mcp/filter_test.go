package mcp

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/weppcloud/queryengine/pkg/core"
)

func TestHidden(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"landuse/landuse.parquet", false},
		{"ash/H1.parquet", true},
		{"ash/H12_ash.parquet", true},
		{"ash/summary.parquet", false},
		{"ash/summary.json", true},
		{"ash/run.nodb", true},
		{"_pups/omni/scenarios/burned/ash/H3.parquet", true},
		{"_query_engine/catalog.json", true},
		{".mypy_cache/3.12/x.json", true},
		{"wepp/output/H1.pass.parquet", false},
		{"/ash/H2.parquet", true},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, Hidden(tt.path, DefaultUnsafePatterns))
		})
	}
}

func TestUnsafePattern_Matches(t *testing.T) {
	tests := []struct {
		name    string
		pattern UnsafePattern
		path    string
		want    bool
	}{
		{"empty pattern never matches", UnsafePattern{}, "ash/H1.parquet", false},
		{"suffix only", UnsafePattern{Suffix: ".tsv"}, "climate/blobs.tsv", true},
		{"prefix mismatch", UnsafePattern{Prefix: "wepp/", Suffix: ".parquet"}, "ash/H1.parquet", false},
		{"nested prefix", UnsafePattern{Prefix: "output/", NamePrefix: "H"}, "wepp/output/H1.pass.parquet", true},
		{"name prefix mismatch", UnsafePattern{Prefix: "ash/", NamePrefix: "H"}, "ash/summary.parquet", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.pattern.Matches(tt.path))
		})
	}
}

func TestFilterEntries(t *testing.T) {
	entries := []core.CatalogEntry{
		{Path: "ash/H1.parquet"},
		{Path: "data/sample.parquet"},
		{Path: "_query_engine/catalog.json"},
		{Path: "landuse/landuse.parquet"},
	}

	got := FilterEntries(entries, DefaultUnsafePatterns)

	assert.Equal(t, []core.CatalogEntry{{Path: "data/sample.parquet"}, {Path: "landuse/landuse.parquet"}}, got)
	assert.Len(t, FilterEntries(entries, nil), 3, "internal paths are always hidden")
}
