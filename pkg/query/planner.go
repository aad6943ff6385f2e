package query

import (
	"encoding/json"
	"fmt"
	"math"
	"math/big"
	"path"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/weppcloud/queryengine/pkg/core"
)

var wordPattern = regexp.MustCompile(`^\w+$`)

// spatialSuffixes are read with the spatial extension's ST_Read.
var spatialSuffixes = map[string]bool{
	".geojson": true,
	".fgb":     true,
	".gpkg":    true,
	".shp":     true,
}

// Tabular reports whether a dataset path has a reader. Rasters and .nodb
// state files do not.
func Tabular(p string) bool {
	switch ext := strings.ToLower(path.Ext(p)); ext {
	case ".parquet", ".csv", ".tsv", ".json":
		return true
	default:
		return spatialSuffixes[ext]
	}
}

// Plan is the SQL rendering of a request.
type Plan struct {
	SQL             string `json:"sql"`
	Params          []any  `json:"params"`
	RequiresSpatial bool   `json:"requires_spatial"`
}

// Build renders req against the run's catalog. Datasets absent from the
// catalog fail with a dataset_missing error matching core.ErrNotFound;
// structural and coercion problems fail with core.ErrInvalid.
func Build(rc *core.RunContext, req *Request) (*Plan, error) {
	if rc == nil || rc.Catalog == nil {
		return nil, core.NewError(core.KindCatalogMissing, core.ErrNotFound, "run has no catalog")
	}

	p := &planner{rc: rc, req: req, paths: make(map[string]string, len(req.Datasets))}
	for _, d := range req.Datasets {
		p.paths[d.Alias] = d.Path
	}
	return p.build()
}

// MissingDatasets lists request dataset paths absent from the catalog.
func MissingDatasets(cat core.CatalogReader, req *Request) []string {
	missing := []string{}
	for _, d := range req.Datasets {
		if cat == nil || !cat.Has(d.Path) {
			missing = append(missing, d.Path)
		}
	}
	return missing
}

type planner struct {
	rc      *core.RunContext
	req     *Request
	paths   map[string]string
	spatial bool
}

func (p *planner) build() (*Plan, error) {
	var sb strings.Builder

	from, err := p.source(p.req.Datasets[0])
	if err != nil {
		return nil, err
	}

	joins := make([]string, 0, len(p.req.Joins))
	for _, j := range p.req.Joins {
		right, _ := p.req.Dataset(j.Right)
		src, err := p.source(right)
		if err != nil {
			return nil, err
		}
		conds := make([]string, len(j.LeftOn))
		for i := range j.LeftOn {
			conds[i] = p.qualify(j.Left, j.LeftOn[i]) + " = " + p.qualify(j.Right, j.RightOn[i])
		}
		joins = append(joins, fmt.Sprintf("%s JOIN %s ON %s", j.JoinType, src, strings.Join(conds, " AND ")))
	}

	sb.WriteString("SELECT ")
	sb.WriteString(strings.Join(p.selectList(), ", "))
	sb.WriteString("\nFROM ")
	sb.WriteString(from)
	for _, j := range joins {
		sb.WriteString("\n")
		sb.WriteString(j)
	}

	if len(p.req.Filters) > 0 {
		preds := make([]string, 0, len(p.req.Filters))
		for _, f := range p.req.Filters {
			pred, err := p.predicate(f)
			if err != nil {
				return nil, err
			}
			preds = append(preds, pred)
		}
		sb.WriteString("\nWHERE ")
		sb.WriteString(strings.Join(preds, " AND "))
	}
	if len(p.req.GroupBy) > 0 {
		sb.WriteString("\nGROUP BY ")
		sb.WriteString(strings.Join(p.req.GroupBy, ", "))
	}
	if len(p.req.OrderBy) > 0 {
		sb.WriteString("\nORDER BY ")
		sb.WriteString(strings.Join(p.req.OrderBy, ", "))
	}
	if p.req.Limit != nil {
		fmt.Fprintf(&sb, "\nLIMIT %d", *p.req.Limit)
	}

	return &Plan{SQL: sb.String(), Params: []any{}, RequiresSpatial: p.spatial}, nil
}

func (p *planner) selectList() []string {
	var items []string
	switch {
	case len(p.req.Columns) > 0:
		items = append(items, p.req.Columns...)
	case hasDatasetColumns(p.req.Datasets):
		for _, d := range p.req.Datasets {
			for _, c := range d.Columns {
				items = append(items, p.qualify(d.Alias, c))
			}
		}
	case len(p.req.GroupBy) > 0:
		items = append(items, p.req.GroupBy...)
	case len(p.req.Aggregations) == 0 && len(p.req.ComputedColumns) == 0:
		items = append(items, "*")
	}
	for _, c := range p.req.ComputedColumns {
		items = append(items, c.SQL())
	}
	for _, a := range p.req.Aggregations {
		items = append(items, a.SQL())
	}
	if len(items) == 0 {
		items = []string{"*"}
	}
	return items
}

func hasDatasetColumns(ds []DatasetSpec) bool {
	for _, d := range ds {
		if len(d.Columns) > 0 {
			return true
		}
	}
	return false
}

// source renders the table function reading one dataset.
func (p *planner) source(d DatasetSpec) (string, error) {
	if !p.rc.Catalog.Has(d.Path) {
		return "", core.NewError(core.KindDatasetMissing, core.ErrNotFound, "dataset not found: %s", d.Path)
	}
	abs := QuoteLiteral(filepath.Join(p.rc.BaseDir, filepath.FromSlash(d.Path)))

	var reader string
	ext := strings.ToLower(path.Ext(d.Path))
	switch {
	case spatialSuffixes[ext]:
		p.spatial = true
		reader = fmt.Sprintf("ST_Read(%s)", abs)
	case ext == ".parquet":
		reader = fmt.Sprintf("read_parquet(%s)", abs)
	case ext == ".csv":
		reader = fmt.Sprintf("read_csv_auto(%s)", abs)
	case ext == ".tsv":
		reader = fmt.Sprintf("read_csv_auto(%s, delim='\\t')", abs)
	case ext == ".json":
		reader = fmt.Sprintf("read_json_auto(%s)", abs)
	default:
		return "", core.Invalidf("dataset %s is not tabular", d.Path)
	}
	return reader + " AS " + d.Alias, nil
}

// qualify prefixes an unqualified column with alias and quotes identifiers
// containing non-word characters.
func (p *planner) qualify(alias, col string) string {
	if a, c, ok := strings.Cut(col, "."); ok {
		if _, known := p.paths[a]; known {
			return a + "." + quoteIdent(c)
		}
	}
	return alias + "." + quoteIdent(col)
}

// resolveColumn maps a filter column to its dataset alias and bare name.
// A bare name binds to the base dataset when its schema has the column,
// otherwise to the one dataset that does. Datasets without a cataloged
// schema keep the base alias as the fallback.
func (p *planner) resolveColumn(col string) (string, string, error) {
	if !strings.HasPrefix(col, `"`) {
		if a, c, ok := strings.Cut(col, "."); ok {
			if _, known := p.paths[a]; !known {
				return "", "", core.NewError(core.KindDatasetMissing, core.ErrNotFound, "unknown dataset alias %q in filter column %q", a, col)
			}
			return a, unquoteIdent(c), nil
		}
	}

	name := unquoteIdent(col)
	base := p.req.Datasets[0].Alias
	var (
		owners     []string
		unschemaed bool
	)
	for _, d := range p.req.Datasets {
		e, ok := p.rc.Catalog.Get(d.Path)
		if !ok || e.Schema == nil || len(e.Schema.Fields) == 0 {
			unschemaed = true
			continue
		}
		if _, ok := e.Schema.Field(name); ok {
			owners = append(owners, d.Alias)
		}
	}

	switch {
	case len(owners) > 0 && owners[0] == base:
		return base, name, nil
	case len(owners) == 1:
		return owners[0], name, nil
	case len(owners) > 1:
		return "", "", core.Invalidf("ambiguous filter column %q: present in %s", col, strings.Join(owners, ", "))
	case unschemaed:
		return base, name, nil
	}
	return "", "", core.Invalidf("unknown filter column %q", col)
}

func (p *planner) predicate(f FilterSpec) (string, error) {
	alias, name, err := p.resolveColumn(f.Column)
	if err != nil {
		return "", err
	}
	col := alias + "." + quoteIdent(name)
	typ, _ := p.rc.Catalog.ColumnType(p.paths[alias], name)

	lit := func(v any) (string, error) {
		if f.Operator == OpLike || f.Operator == OpILike {
			return QuoteLiteral(stringify(v)), nil
		}
		return literal(v, typ, f.Column)
	}

	switch f.Operator {
	case OpIsNull, OpIsNotNull:
		return col + " " + string(f.Operator), nil
	case OpIn, OpNotIn:
		items := f.Value.([]any)
		parts := make([]string, len(items))
		for i, v := range items {
			s, err := lit(v)
			if err != nil {
				return "", err
			}
			parts[i] = s
		}
		return fmt.Sprintf("%s %s (%s)", col, f.Operator, strings.Join(parts, ", ")), nil
	case OpBetween:
		bounds := f.Value.([]any)
		lo, err := lit(bounds[0])
		if err != nil {
			return "", err
		}
		hi, err := lit(bounds[1])
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%s BETWEEN %s AND %s", col, lo, hi), nil
	default:
		s, err := lit(f.Value)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%s %s %s", col, f.Operator, s), nil
	}
}

// literal coerces v to the declared column type and renders it as SQL. An
// empty type renders v according to its own Go type.
func literal(v any, typ, column string) (string, error) {
	if v == nil {
		return "", core.Invalidf("invalid value: null is not comparable for column %s", column)
	}
	fail := func() (string, error) {
		return "", core.Invalidf("invalid value %v for column %s (%s)", v, column, typ)
	}

	switch typeFamily(typ) {
	case familyInteger:
		if lo, hi, wide := wideIntBounds(typ); wide {
			d, ok := coerceWideInt(v)
			if !ok || d.LessThan(lo) || d.GreaterThan(hi) {
				return fail()
			}
			return d.String(), nil
		}
		n, ok := coerceInt(v)
		if !ok {
			return fail()
		}
		return strconv.FormatInt(n, 10), nil
	case familyDecimal:
		d, err := decimal.NewFromString(strings.TrimSpace(stringify(v)))
		if err != nil {
			return fail()
		}
		return d.String(), nil
	case familyFloat:
		f, ok := coerceFloat(v)
		if !ok {
			return fail()
		}
		return formatFloat(f), nil
	case familyBool:
		b, ok := coerceBool(v)
		if !ok {
			return fail()
		}
		return boolLiteral(b), nil
	case familyString:
		return QuoteLiteral(stringify(v)), nil
	}

	switch x := v.(type) {
	case bool:
		return boolLiteral(x), nil
	case int:
		return strconv.Itoa(x), nil
	case int64:
		return strconv.FormatInt(x, 10), nil
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return fail()
		}
		return formatFloat(x), nil
	case json.Number:
		if _, err := x.Float64(); err != nil {
			return fail()
		}
		return x.String(), nil
	case string:
		return QuoteLiteral(x), nil
	}
	return fail()
}

type family int

const (
	familyUnknown family = iota
	familyInteger
	familyFloat
	familyDecimal
	familyBool
	familyString
)

func typeFamily(typ string) family {
	t := strings.ToUpper(strings.TrimSpace(typ))
	switch {
	case t == "":
		return familyUnknown
	case strings.HasSuffix(t, "[]"), strings.HasPrefix(t, "STRUCT"), strings.HasPrefix(t, "MAP"):
		return familyUnknown
	case strings.HasPrefix(t, "DECIMAL"), strings.HasPrefix(t, "NUMERIC"):
		return familyDecimal
	}
	switch t {
	case "TINYINT", "SMALLINT", "INTEGER", "INT", "BIGINT", "HUGEINT",
		"UTINYINT", "USMALLINT", "UINTEGER", "UBIGINT", "UHUGEINT",
		"INT8", "INT16", "INT32", "INT64":
		return familyInteger
	case "FLOAT", "DOUBLE", "REAL", "FLOAT4", "FLOAT8":
		return familyFloat
	case "BOOLEAN", "BOOL":
		return familyBool
	}
	return familyString
}

var (
	maxUint64  = decimal.RequireFromString("18446744073709551615")
	minInt128  = decimal.RequireFromString("-170141183460469231731687303715884105728")
	maxInt128  = decimal.RequireFromString("170141183460469231731687303715884105727")
	maxUint128 = decimal.RequireFromString("340282366920938463463374607431768211455")
)

// wideIntBounds returns the range of integer types wider than int64.
func wideIntBounds(typ string) (decimal.Decimal, decimal.Decimal, bool) {
	switch strings.ToUpper(strings.TrimSpace(typ)) {
	case "UBIGINT":
		return decimal.Zero, maxUint64, true
	case "HUGEINT":
		return minInt128, maxInt128, true
	case "UHUGEINT":
		return decimal.Zero, maxUint128, true
	}
	return decimal.Decimal{}, decimal.Decimal{}, false
}

func coerceWideInt(v any) (decimal.Decimal, bool) {
	var (
		d   decimal.Decimal
		err error
	)
	switch x := v.(type) {
	case bool:
		return d, false
	case string:
		d, err = decimal.NewFromString(strings.TrimSpace(x))
	case json.Number:
		d, err = decimal.NewFromString(x.String())
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return d, false
		}
		d = decimal.NewFromFloat(x)
	case uint64:
		d = decimal.NewFromBigInt(new(big.Int).SetUint64(x), 0)
	default:
		n, ok := toInt64(v)
		if !ok {
			return d, false
		}
		d = decimal.NewFromInt(n)
	}
	if err != nil || !d.IsInteger() {
		return d, false
	}
	return d, true
}

func coerceInt(v any) (int64, bool) {
	switch x := v.(type) {
	case bool:
		return 0, false
	case string:
		s := strings.TrimSpace(x)
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n, true
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		return floatToInt64(f)
	case json.Number:
		if n, err := x.Int64(); err == nil {
			return n, true
		}
		f, err := x.Float64()
		if err != nil {
			return 0, false
		}
		return floatToInt64(f)
	}
	return toInt64(v)
}

// floatToInt64 converts whole floats inside the int64 range. 2^63 itself is
// representable as a float64 but not as an int64.
func floatToInt64(f float64) (int64, bool) {
	if math.IsNaN(f) || f != math.Trunc(f) || f < math.MinInt64 || f >= math.MaxInt64 {
		return 0, false
	}
	return int64(f), true
}

func coerceFloat(v any) (float64, bool) {
	var (
		f   float64
		err error
	)
	switch x := v.(type) {
	case float64:
		f = x
	case int:
		f = float64(x)
	case int64:
		f = float64(x)
	case json.Number:
		f, err = x.Float64()
	case string:
		f, err = strconv.ParseFloat(strings.TrimSpace(x), 64)
	default:
		return 0, false
	}
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func coerceBool(v any) (bool, bool) {
	switch x := v.(type) {
	case bool:
		return x, true
	case int, int64, float64, json.Number:
		n, ok := coerceInt(x)
		if !ok || (n != 0 && n != 1) {
			return false, false
		}
		return n == 1, true
	case string:
		switch strings.ToLower(strings.TrimSpace(x)) {
		case "true", "t", "yes", "y", "1", "on":
			return true, true
		case "false", "f", "no", "n", "0", "off":
			return false, true
		}
	}
	return false, false
}

func stringify(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case json.Number:
		return x.String()
	case float64:
		return formatFloat(x)
	case bool:
		return strconv.FormatBool(x)
	}
	return fmt.Sprint(v)
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

func boolLiteral(b bool) string {
	if b {
		return "TRUE"
	}
	return "FALSE"
}

// QuoteLiteral renders s as a single-quoted SQL string.
func QuoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// quoteIdent double-quotes identifiers containing non-word characters.
// Already quoted identifiers and * pass through.
func quoteIdent(name string) string {
	if name == "*" || wordPattern.MatchString(name) || (len(name) > 1 && strings.HasPrefix(name, `"`) && strings.HasSuffix(name, `"`)) {
		return name
	}
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func unquoteIdent(name string) string {
	if len(name) > 1 && strings.HasPrefix(name, `"`) && strings.HasSuffix(name, `"`) {
		return strings.ReplaceAll(name[1:len(name)-1], `""`, `"`)
	}
	return name
}
