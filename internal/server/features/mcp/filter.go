package mcp

import (
	"path"
	"strings"

	"github.com/weppcloud/queryengine/pkg/core"
)

// UnsafePattern hides catalog entries under Prefix whose file name starts
// with NamePrefix and ends with Suffix.
type UnsafePattern struct {
	Prefix     string `json:"prefix"`
	NamePrefix string `json:"name_prefix"`
	Suffix     string `json:"suffix"`
}

// DefaultUnsafePatterns hides the large per-hillslope ash tables.
var DefaultUnsafePatterns = []UnsafePattern{{Prefix: "ash/", NamePrefix: "H", Suffix: ".parquet"}}

var internalPrefixes = []string{"_query_engine/", ".mypy_cache/"}

// Matches reports whether rel is hidden by the pattern. Prefix matches at
// the start of rel or at any directory boundary.
func (p UnsafePattern) Matches(rel string) bool {
	if p.Prefix == "" && p.NamePrefix == "" && p.Suffix == "" {
		return false
	}
	if p.Prefix != "" && !strings.HasPrefix(rel, p.Prefix) && !strings.Contains(rel, "/"+p.Prefix) {
		return false
	}
	name := path.Base(rel)
	return strings.HasPrefix(name, p.NamePrefix) && strings.HasSuffix(name, p.Suffix)
}

// Hidden reports whether a catalog path must not be exposed.
func Hidden(rel string, patterns []UnsafePattern) bool {
	rel = strings.TrimLeft(rel, "/")
	for _, prefix := range internalPrefixes {
		if strings.HasPrefix(rel, prefix) {
			return true
		}
	}
	if underAsh(rel) && (strings.HasSuffix(rel, ".nodb") || strings.HasSuffix(rel, ".json")) {
		return true
	}
	for _, p := range patterns {
		if p.Matches(rel) {
			return true
		}
	}
	return false
}

func underAsh(rel string) bool {
	return strings.HasPrefix(rel, "ash/") || strings.Contains(rel, "/ash/")
}

// FilterEntries drops hidden entries, preserving order.
func FilterEntries(entries []core.CatalogEntry, patterns []UnsafePattern) []core.CatalogEntry {
	out := make([]core.CatalogEntry, 0, len(entries))
	for _, e := range entries {
		if !Hidden(e.Path, patterns) {
			out = append(out, e)
		}
	}
	return out
}
