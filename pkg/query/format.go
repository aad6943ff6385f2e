package query

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math"
	"math/big"
	"reflect"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/marcboeker/go-duckdb"
	"github.com/shopspring/decimal"

	"github.com/weppcloud/queryengine/pkg/core"
)

// SchemaField is one column of a result schema.
type SchemaField struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Units       string `json:"units,omitempty"`
	Description string `json:"description,omitempty"`
}

// Result is the JSON-safe outcome of a query.
type Result struct {
	Records   []map[string]any `json:"records"`
	Schema    []SchemaField    `json:"schema"`
	RowCount  int              `json:"row_count"`
	SQL       string           `json:"sql,omitempty"`
	Formatted *Timeseries      `json:"formatted,omitempty"`
}

// Format converts a table into a Result, applying the request's schema echo,
// SQL echo and reshape options.
func Format(tbl *Table, rc *core.RunContext, req *Request, plan *Plan) (*Result, error) {
	res := &Result{Records: make([]map[string]any, 0, len(tbl.Rows))}
	for _, row := range tbl.Rows {
		rec := make(map[string]any, len(tbl.Columns))
		for i, col := range tbl.Columns {
			rec[col.Name] = jsonSafe(row[i], col.Type)
		}
		res.Records = append(res.Records, rec)
	}
	res.RowCount = len(res.Records)

	meta := fieldMetadata(rc, req)
	if req.IncludeSchema {
		res.Schema = make([]SchemaField, len(tbl.Columns))
		for i, col := range tbl.Columns {
			sf := SchemaField{Name: col.Name, Type: col.Type}
			if f, ok := meta[col.Name]; ok {
				sf.Units, sf.Description = f.Units, f.Description
			}
			res.Schema[i] = sf
		}
	}
	if req.IncludeSQL && plan != nil {
		res.SQL = plan.SQL
	}
	if req.Reshape != nil {
		if err := reshape(res, tbl, req.Reshape, meta); err != nil {
			return nil, err
		}
	}
	return res, nil
}

// fieldMetadata indexes stored field metadata of the request's datasets by
// column name. Earlier datasets win.
func fieldMetadata(rc *core.RunContext, req *Request) map[string]core.Field {
	out := make(map[string]core.Field)
	if rc == nil || rc.Catalog == nil {
		return out
	}
	for _, d := range req.Datasets {
		entry, ok := rc.Catalog.Get(d.Path)
		if !ok || entry.Schema == nil {
			continue
		}
		for _, f := range entry.Schema.Fields {
			if _, seen := out[f.Name]; !seen {
				out[f.Name] = f
			}
		}
	}
	return out
}

// jsonSafe converts a scanned engine value into a JSON-encodable one.
func jsonSafe(v any, dbType string) any {
	switch x := v.(type) {
	case nil:
		return nil
	case time.Time:
		return formatTime(x, dbType)
	case duckdb.Decimal:
		if x.Value == nil {
			return nil
		}
		return decimal.NewFromBigInt(x.Value, -int32(x.Scale)).String()
	case *big.Int:
		if x == nil {
			return nil
		}
		return json.Number(x.String())
	case []byte:
		return formatBytes(x, dbType)
	case float32:
		return safeFloat(float64(x))
	case float64:
		return safeFloat(x)
	case duckdb.Interval:
		return map[string]any{"months": x.Months, "days": x.Days, "micros": x.Micros}
	case duckdb.Map:
		out := make(map[string]any, len(x))
		for k, val := range x {
			out[fmt.Sprint(k)] = jsonSafe(val, "")
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, val := range x {
			out[k] = jsonSafe(val, "")
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, val := range x {
			out[i] = jsonSafe(val, elemType(dbType))
		}
		return out
	case string, bool, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return x
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Array && rv.Type().Elem().Kind() == reflect.Uint8 && rv.Len() == 16 {
		var id uuid.UUID
		reflect.Copy(reflect.ValueOf(id[:]), rv)
		return id.String()
	}
	return fmt.Sprint(v)
}

func formatTime(t time.Time, dbType string) string {
	switch strings.ToUpper(dbType) {
	case "DATE":
		return t.Format(time.DateOnly)
	case "TIME":
		return t.Format("15:04:05.999999")
	case "TIMESTAMPTZ", "TIMESTAMP WITH TIME ZONE":
		return t.Format(time.RFC3339Nano)
	}
	return t.Format("2006-01-02T15:04:05.999999")
}

func formatBytes(b []byte, dbType string) string {
	if strings.EqualFold(dbType, "UUID") && len(b) == 16 {
		if id, err := uuid.FromBytes(b); err == nil {
			return id.String()
		}
	}
	if printable(b) {
		return string(b)
	}
	return base64.StdEncoding.EncodeToString(b)
}

func printable(b []byte) bool {
	if !utf8.Valid(b) {
		return false
	}
	for _, r := range string(b) {
		if !unicode.IsPrint(r) && !unicode.IsSpace(r) {
			return false
		}
	}
	return true
}

func safeFloat(f float64) any {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return f
}

func elemType(dbType string) string {
	return strings.TrimSuffix(dbType, "[]")
}
