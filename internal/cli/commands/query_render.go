package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/weppcloud/queryengine/pkg/core"
	"github.com/weppcloud/queryengine/pkg/query"
)

func renderJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// resultColumns returns the schema order when present, otherwise the sorted
// keys of the first record.
func resultColumns(res *query.Result) []string {
	if len(res.Schema) > 0 {
		cols := make([]string, len(res.Schema))
		for i, f := range res.Schema {
			cols[i] = f.Name
		}
		return cols
	}
	if len(res.Records) == 0 {
		return nil
	}
	cols := make([]string, 0, len(res.Records[0]))
	for k := range res.Records[0] {
		cols = append(cols, k)
	}
	sort.Strings(cols)
	return cols
}

func renderResult(w io.Writer, res *query.Result) error {
	if res.RowCount == 0 {
		_, _ = fmt.Fprintln(w, "(0 rows)")
		return nil
	}

	cols := resultColumns(res)
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)

	header := make(table.Row, len(cols))
	for i, col := range cols {
		header[i] = col
		if i < len(res.Schema) && res.Schema[i].Units != "" {
			header[i] = fmt.Sprintf("%s (%s)", col, res.Schema[i].Units)
		}
	}
	t.AppendHeader(header)

	for _, rec := range res.Records {
		row := make(table.Row, len(cols))
		for i, col := range cols {
			row[i] = formatValue(rec[col])
		}
		t.AppendRow(row)
	}

	t.Render()
	_, _ = fmt.Fprintf(w, "(%d rows)\n", res.RowCount)
	if res.SQL != "" {
		_, _ = fmt.Fprintf(w, "\n%s\n", res.SQL)
	}
	return nil
}

func renderCatalog(w io.Writer, snap core.CatalogSnapshot) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"path", "size", "modified", "fields"})

	for _, e := range snap.Files {
		fields := "-"
		if e.Schema != nil {
			fields = strconv.Itoa(len(e.Schema.Fields))
		}
		t.AppendRow(table.Row{e.Path, humanize.Bytes(uint64(e.SizeBytes)), e.Modified, fields})
	}

	t.Render()
	_, _ = fmt.Fprintf(w, "(%d datasets, generated %s)\n", len(snap.Files), snap.GeneratedAt)
}

func renderFields(w io.Writer, entry core.CatalogEntry) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.SetTitle(entry.Path)
	t.AppendHeader(table.Row{"name", "type", "units", "description"})

	if entry.Schema != nil {
		for _, f := range entry.Schema.Fields {
			t.AppendRow(table.Row{f.Name, f.Type, f.Units, f.Description})
		}
	}
	t.Render()
}

func formatValue(v any) string {
	if v == nil {
		return "NULL"
	}
	switch x := v.(type) {
	case []any, map[string]any:
		b, err := json.Marshal(x)
		if err == nil {
			return string(b)
		}
	}
	return fmt.Sprintf("%v", v)
}
