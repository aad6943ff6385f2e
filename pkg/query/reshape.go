package query

import (
	"sort"

	"github.com/weppcloud/queryengine/pkg/core"
)

// TimeseriesIndex is the shared x-axis of a reshaped result.
type TimeseriesIndex struct {
	Column string `json:"column"`
	Key    string `json:"key"`
	Values []any  `json:"values"`
}

// TimeseriesSeries is one index-aligned series.
type TimeseriesSeries struct {
	ID          string `json:"id"`
	Column      string `json:"column"`
	Label       string `json:"label"`
	Group       string `json:"group,omitempty"`
	Role        string `json:"role,omitempty"`
	Color       string `json:"color,omitempty"`
	Units       string `json:"units,omitempty"`
	Description string `json:"description,omitempty"`
	Values      []any  `json:"values"`
}

// Timeseries is the formatted output of a time-series reshape.
type Timeseries struct {
	Type          string             `json:"type"`
	Index         TimeseriesIndex    `json:"index"`
	Series        []TimeseriesSeries `json:"series"`
	YearColumn    string             `json:"year_column,omitempty"`
	ExcludedYears []int64            `json:"excluded_years"`
}

func reshape(res *Result, tbl *Table, rs *TimeseriesReshape, meta map[string]core.Field) error {
	cols := make(map[string]bool, len(tbl.Columns))
	for _, c := range tbl.Columns {
		cols[c.Name] = true
	}
	need := []string{rs.Index.Column}
	if rs.YearColumn != "" {
		need = append(need, rs.YearColumn)
	}
	for _, s := range rs.Series {
		need = append(need, s.Column)
	}
	for _, c := range need {
		if !cols[c] {
			return core.Invalidf("reshape column %q is not in the result", c)
		}
	}

	records := res.Records
	excluded := []int64{}
	if rs.YearColumn != "" && len(rs.ExcludeYearIndexes) > 0 {
		excluded = excludedYears(records, rs.YearColumn, rs.ExcludeYearIndexes)
		drop := make(map[int64]bool, len(excluded))
		for _, y := range excluded {
			drop[y] = true
		}
		kept := make([]map[string]any, 0, len(records))
		for _, rec := range records {
			if y, ok := coerceInt(rec[rs.YearColumn]); ok && drop[y] {
				continue
			}
			kept = append(kept, rec)
		}
		records = kept
	}

	ts := &Timeseries{
		Type:          "timeseries",
		Index:         TimeseriesIndex{Column: rs.Index.Column, Key: rs.Index.Key, Values: make([]any, len(records))},
		YearColumn:    rs.YearColumn,
		ExcludedYears: excluded,
	}
	for i, rec := range records {
		ts.Index.Values[i] = rec[rs.Index.Column]
	}
	for _, s := range rs.Series {
		out := TimeseriesSeries{
			ID:          s.Key,
			Column:      s.Column,
			Label:       s.Label,
			Group:       s.Group,
			Role:        s.Role,
			Color:       s.Color,
			Units:       s.Units,
			Description: s.Description,
			Values:      make([]any, len(records)),
		}
		if f, ok := meta[s.Column]; ok {
			if out.Units == "" {
				out.Units = f.Units
			}
			if out.Description == "" {
				out.Description = f.Description
			}
		}
		for i, rec := range records {
			out.Values[i] = rec[s.Column]
		}
		ts.Series = append(ts.Series, out)
	}

	res.Formatted = ts
	switch {
	case rs.Compact:
		res.Records = []map[string]any{}
		res.RowCount = len(ts.Index.Values)
	case rs.IncludeRecords != nil && !*rs.IncludeRecords:
		res.Records = []map[string]any{}
		res.RowCount = len(records)
	default:
		res.Records = records
		res.RowCount = len(records)
	}
	return nil
}

// excludedYears maps positional indexes over the sorted distinct years to
// year values. Negative indexes count from the end; out-of-range indexes are
// ignored.
func excludedYears(records []map[string]any, column string, indexes []int) []int64 {
	seen := make(map[int64]bool)
	var years []int64
	for _, rec := range records {
		y, ok := coerceInt(rec[column])
		if !ok || seen[y] {
			continue
		}
		seen[y] = true
		years = append(years, y)
	}
	sort.Slice(years, func(i, j int) bool { return years[i] < years[j] })

	picked := make(map[int64]bool)
	out := []int64{}
	for _, idx := range indexes {
		if idx < 0 {
			idx += len(years)
		}
		if idx < 0 || idx >= len(years) {
			continue
		}
		if y := years[idx]; !picked[y] {
			picked[y] = true
			out = append(out, y)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
