// Package query turns declarative query requests into a single SQL
// statement, runs it in an ephemeral DuckDB session and formats the result.
package query

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"path"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-viper/mapstructure/v2"

	"github.com/weppcloud/queryengine/pkg/core"
)

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// JoinType is the SQL join flavor.
type JoinType string

// Join types.
const (
	JoinInner JoinType = "INNER"
	JoinLeft  JoinType = "LEFT"
	JoinRight JoinType = "RIGHT"
	JoinFull  JoinType = "FULL"
)

// Operator is a filter comparison operator.
type Operator string

// Filter operators.
const (
	OpEq        Operator = "="
	OpNe        Operator = "!="
	OpLt        Operator = "<"
	OpLe        Operator = "<="
	OpGt        Operator = ">"
	OpGe        Operator = ">="
	OpLike      Operator = "LIKE"
	OpILike     Operator = "ILIKE"
	OpIn        Operator = "IN"
	OpNotIn     Operator = "NOT IN"
	OpBetween   Operator = "BETWEEN"
	OpIsNull    Operator = "IS NULL"
	OpIsNotNull Operator = "IS NOT NULL"
)

var operators = map[Operator]bool{
	OpEq: true, OpNe: true, OpLt: true, OpLe: true, OpGt: true, OpGe: true,
	OpLike: true, OpILike: true, OpIn: true, OpNotIn: true, OpBetween: true,
	OpIsNull: true, OpIsNotNull: true,
}

// DatasetSpec is one dataset of a request.
type DatasetSpec struct {
	Path    string   `json:"path"`
	Alias   string   `json:"alias"`
	Columns []string `json:"columns,omitempty"`
}

// JoinSpec joins Right onto the datasets already in the FROM clause.
type JoinSpec struct {
	Left     string   `json:"left"`
	Right    string   `json:"right"`
	LeftOn   []string `json:"left_on"`
	RightOn  []string `json:"right_on"`
	JoinType JoinType `json:"join_type"`
}

// AggregationSpec is either a raw Expression or Fn applied to Column.
type AggregationSpec struct {
	Expression string `json:"expression,omitempty"`
	Fn         string `json:"fn,omitempty"`
	Column     string `json:"column,omitempty"`
	Alias      string `json:"alias,omitempty"`
}

// SQL renders the aggregation as a select-list item.
func (a AggregationSpec) SQL() string {
	expr := a.Expression
	if expr == "" {
		expr = fmt.Sprintf("%s(%s)", strings.ToUpper(a.Fn), a.Column)
	}
	if a.Alias != "" {
		return expr + " AS " + quoteIdent(a.Alias)
	}
	return expr
}

// FilterSpec is one conjunctive WHERE predicate.
type FilterSpec struct {
	Column   string   `json:"column"`
	Operator Operator `json:"operator"`
	Value    any      `json:"value,omitempty"`
}

// DateParts names the columns composed by MAKE_DATE.
type DateParts struct {
	Year  string `json:"year" mapstructure:"year"`
	Month string `json:"month" mapstructure:"month"`
	Day   string `json:"day" mapstructure:"day"`
}

// ComputedColumn is a derived select-list item.
type ComputedColumn struct {
	Alias     string    `json:"alias"`
	DateParts DateParts `json:"date_parts"`
}

// SQL renders the computed column.
func (c ComputedColumn) SQL() string {
	return fmt.Sprintf("MAKE_DATE(%s, %s, %s) AS %s",
		c.DateParts.Year, c.DateParts.Month, c.DateParts.Day, quoteIdent(c.Alias))
}

// ReshapeIndex names the index column of a time-series reshape.
type ReshapeIndex struct {
	Column string `json:"column" mapstructure:"column"`
	Key    string `json:"key" mapstructure:"key"`
}

// ReshapeSeries is one output series of a time-series reshape.
type ReshapeSeries struct {
	Column      string `json:"column" mapstructure:"column"`
	Key         string `json:"key" mapstructure:"key"`
	Label       string `json:"label,omitempty" mapstructure:"label"`
	Group       string `json:"group,omitempty" mapstructure:"group"`
	Role        string `json:"role,omitempty" mapstructure:"role"`
	Color       string `json:"color,omitempty" mapstructure:"color"`
	Units       string `json:"units,omitempty" mapstructure:"units"`
	Description string `json:"description,omitempty" mapstructure:"description"`
}

// TimeseriesReshape pivots a tabular result into index-aligned series.
type TimeseriesReshape struct {
	Type               string          `json:"type" mapstructure:"type"`
	Index              ReshapeIndex    `json:"index" mapstructure:"index"`
	YearColumn         string          `json:"year_column,omitempty" mapstructure:"year_column"`
	ExcludeYearIndexes []int           `json:"exclude_year_indexes,omitempty" mapstructure:"exclude_year_indexes"`
	Series             []ReshapeSeries `json:"series" mapstructure:"series"`
	Compact            bool            `json:"compact" mapstructure:"compact"`
	IncludeRecords     *bool           `json:"include_records,omitempty" mapstructure:"include_records"`
}

// Request is a validated, normalized query request.
type Request struct {
	Datasets        []DatasetSpec      `json:"datasets"`
	Columns         []string           `json:"columns,omitempty"`
	ComputedColumns []ComputedColumn   `json:"computed_columns,omitempty"`
	Filters         []FilterSpec       `json:"filters,omitempty"`
	Joins           []JoinSpec         `json:"joins,omitempty"`
	GroupBy         []string           `json:"group_by,omitempty"`
	OrderBy         []string           `json:"order_by,omitempty"`
	Aggregations    []AggregationSpec  `json:"aggregations,omitempty"`
	Limit           *int               `json:"limit,omitempty"`
	Reshape         *TimeseriesReshape `json:"reshape,omitempty"`
	IncludeSchema   bool               `json:"include_schema"`
	IncludeSQL      bool               `json:"include_sql"`
}

// Aliases returns the dataset aliases in request order.
func (r *Request) Aliases() []string {
	out := make([]string, len(r.Datasets))
	for i, d := range r.Datasets {
		out[i] = d.Alias
	}
	return out
}

// Dataset returns the dataset registered under alias.
func (r *Request) Dataset(alias string) (DatasetSpec, bool) {
	for _, d := range r.Datasets {
		if d.Alias == alias {
			return d, true
		}
	}
	return DatasetSpec{}, false
}

// CapLimit clamps the limit to max when max is positive and returns a
// warning describing the change.
func (r *Request) CapLimit(maxRows int) []string {
	if maxRows <= 0 {
		return nil
	}
	switch {
	case r.Limit == nil:
		r.Limit = &maxRows
		return []string{fmt.Sprintf("limit defaulted to %d", maxRows)}
	case *r.Limit > maxRows:
		prev := *r.Limit
		r.Limit = &maxRows
		return []string{fmt.Sprintf("limit %d reduced to %d", prev, maxRows)}
	}
	return nil
}

// wire shapes decoded with mapstructure; polymorphic fields stay untyped.
type wireRequest struct {
	Datasets        []any          `mapstructure:"datasets"`
	Columns         []string       `mapstructure:"columns"`
	ComputedColumns []wireComputed `mapstructure:"computed_columns"`
	Filters         []wireFilter   `mapstructure:"filters"`
	Joins           []wireJoin     `mapstructure:"joins"`
	GroupBy         []string       `mapstructure:"group_by"`
	OrderBy         []string       `mapstructure:"order_by"`
	Aggregations    []any          `mapstructure:"aggregations"`
	Limit           any            `mapstructure:"limit"`
	Reshape         map[string]any `mapstructure:"reshape"`
	IncludeSchema   bool           `mapstructure:"include_schema"`
	IncludeSQL      bool           `mapstructure:"include_sql"`
}

type wireDataset struct {
	Path    string   `mapstructure:"path"`
	Alias   string   `mapstructure:"alias"`
	Columns []string `mapstructure:"columns"`
}

type wireJoin struct {
	Left     string `mapstructure:"left"`
	Right    string `mapstructure:"right"`
	On       any    `mapstructure:"on"`
	LeftOn   any    `mapstructure:"left_on"`
	RightOn  any    `mapstructure:"right_on"`
	JoinType string `mapstructure:"join_type"`
}

type wireFilter struct {
	Column   string `mapstructure:"column"`
	Operator string `mapstructure:"operator"`
	Value    any    `mapstructure:"value"`
}

type wireComputed struct {
	Alias     string    `mapstructure:"alias"`
	DateParts DateParts `mapstructure:"date_parts"`
}

type wireAggregation struct {
	Expression string `mapstructure:"expression"`
	Fn         string `mapstructure:"fn"`
	Column     string `mapstructure:"column"`
	Alias      string `mapstructure:"alias"`
}

func decodeStrict(input, out any, field string) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		ErrorUnused: true,
		Result:      out,
	})
	if err != nil {
		return fmt.Errorf("failed to create decoder: %w", err)
	}
	if err := dec.Decode(input); err != nil {
		if field == "" {
			return core.Invalidf("invalid query request: %v", err)
		}
		return core.Invalidf("invalid %s: %v", field, err)
	}
	return nil
}

// DecodeRequest parses a JSON request body. Malformed JSON yields an
// invalid_request error; structural problems yield ErrInvalid.
func DecodeRequest(r io.Reader) (*Request, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, core.NewError(core.KindInvalidRequest, err, "failed to read request body")
	}
	payload, err := decodeJSON(data)
	if err != nil {
		return nil, err
	}
	return ParseRequest(payload)
}

func decodeJSON(data []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var payload map[string]any
	if err := dec.Decode(&payload); err != nil {
		return nil, core.NewError(core.KindInvalidRequest, err, "malformed JSON body")
	}
	if dec.More() {
		return nil, core.NewError(core.KindInvalidRequest, nil, "malformed JSON body: trailing data")
	}
	if payload == nil {
		return nil, core.NewError(core.KindInvalidRequest, nil, "request body must be a JSON object")
	}
	return payload, nil
}

// ParseRequest validates and normalizes a decoded payload. Unknown keys are
// rejected.
func ParseRequest(payload map[string]any) (*Request, error) {
	var w wireRequest
	if err := decodeStrict(payload, &w, ""); err != nil {
		return nil, err
	}

	req := &Request{
		Columns:       w.Columns,
		GroupBy:       w.GroupBy,
		OrderBy:       w.OrderBy,
		IncludeSchema: w.IncludeSchema,
		IncludeSQL:    w.IncludeSQL,
	}

	var err error
	if req.Datasets, err = parseDatasets(w.Datasets); err != nil {
		return nil, err
	}
	for _, group := range []struct {
		name  string
		exprs []string
	}{{"columns", req.Columns}, {"group_by", req.GroupBy}, {"order_by", req.OrderBy}} {
		if err := checkExpressions(group.name, group.exprs); err != nil {
			return nil, err
		}
	}
	if req.ComputedColumns, err = parseComputed(w.ComputedColumns); err != nil {
		return nil, err
	}
	if req.Filters, err = parseFilters(w.Filters); err != nil {
		return nil, err
	}
	if req.Aggregations, err = parseAggregations(w.Aggregations); err != nil {
		return nil, err
	}
	if req.Joins, err = parseJoins(w.Joins, req.Aliases()); err != nil {
		return nil, err
	}
	if req.Limit, err = parseLimit(w.Limit); err != nil {
		return nil, err
	}
	if w.Reshape != nil {
		if req.Reshape, err = parseReshape(w.Reshape); err != nil {
			return nil, err
		}
	}
	return req, nil
}

func parseDatasets(raw []any) ([]DatasetSpec, error) {
	if len(raw) == 0 {
		return nil, core.Invalidf("datasets must contain at least one entry")
	}

	specs := make([]DatasetSpec, len(raw))
	explicit := make(map[string]bool)
	for i, item := range raw {
		switch v := item.(type) {
		case string:
			specs[i].Path = v
		case map[string]any:
			var wd wireDataset
			if err := decodeStrict(v, &wd, fmt.Sprintf("datasets[%d]", i)); err != nil {
				return nil, err
			}
			specs[i] = DatasetSpec(wd)
		default:
			return nil, core.Invalidf("datasets[%d] must be a path or an object", i)
		}

		p, err := normalizePath(specs[i].Path)
		if err != nil {
			return nil, err
		}
		specs[i].Path = p

		if a := specs[i].Alias; a != "" {
			if !identPattern.MatchString(a) {
				return nil, core.Invalidf("invalid dataset alias %q", a)
			}
			if explicit[a] {
				return nil, core.Invalidf("duplicate dataset alias %q", a)
			}
			explicit[a] = true
		}
		if err := checkExpressions(fmt.Sprintf("datasets[%d].columns", i), specs[i].Columns); err != nil {
			return nil, err
		}
	}

	used := make(map[string]bool, len(specs))
	for a := range explicit {
		used[a] = true
	}
	for i := range specs {
		if specs[i].Alias != "" {
			continue
		}
		stem := aliasStem(specs[i].Path)
		alias := stem
		for n := 1; used[alias]; n++ {
			alias = fmt.Sprintf("%s_%d", stem, n)
		}
		used[alias] = true
		specs[i].Alias = alias
	}
	return specs, nil
}

func normalizePath(p string) (string, error) {
	p = strings.TrimSpace(strings.ReplaceAll(p, "\\", "/"))
	if p == "" {
		return "", core.Invalidf("dataset path must not be empty")
	}
	if strings.HasPrefix(p, "/") {
		return "", core.Invalidf("dataset path %q must be relative to the run", p)
	}
	clean := path.Clean(p)
	if clean == "." || clean == ".." || strings.HasPrefix(clean, "../") {
		return "", core.Invalidf("dataset path %q escapes the run", p)
	}
	return clean, nil
}

// aliasStem derives an identifier from a file name.
func aliasStem(p string) string {
	name := path.Base(p)
	if i := strings.IndexByte(name, '.'); i > 0 {
		name = name[:i]
	}
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	s := b.String()
	if s == "" || (s[0] >= '0' && s[0] <= '9') {
		s = "_" + s
	}
	return s
}

func checkExpressions(field string, exprs []string) error {
	for i, e := range exprs {
		if strings.TrimSpace(e) == "" {
			return core.Invalidf("%s[%d] must not be empty", field, i)
		}
		if strings.Contains(e, ";") {
			return core.Invalidf("%s[%d] must be a single expression", field, i)
		}
	}
	return nil
}

func parseComputed(raw []wireComputed) ([]ComputedColumn, error) {
	out := make([]ComputedColumn, 0, len(raw))
	for i, c := range raw {
		if !identPattern.MatchString(c.Alias) {
			return nil, core.Invalidf("computed_columns[%d] requires an identifier alias", i)
		}
		dp := c.DateParts
		if dp.Year == "" || dp.Month == "" || dp.Day == "" {
			return nil, core.Invalidf("computed_columns[%d].date_parts requires year, month and day", i)
		}
		if err := checkExpressions(fmt.Sprintf("computed_columns[%d].date_parts", i), []string{dp.Year, dp.Month, dp.Day}); err != nil {
			return nil, err
		}
		out = append(out, ComputedColumn(c))
	}
	return out, nil
}

func parseFilters(raw []wireFilter) ([]FilterSpec, error) {
	out := make([]FilterSpec, 0, len(raw))
	for i, f := range raw {
		if strings.TrimSpace(f.Column) == "" {
			return nil, core.Invalidf("filters[%d] requires a column", i)
		}
		op := Operator(strings.ToUpper(strings.Join(strings.Fields(f.Operator), " ")))
		if op == "==" {
			op = OpEq
		}
		if op == "<>" {
			op = OpNe
		}
		if !operators[op] {
			return nil, core.Invalidf("filters[%d]: unsupported operator %q", i, f.Operator)
		}

		switch op {
		case OpIn, OpNotIn:
			list, ok := f.Value.([]any)
			if !ok || len(list) == 0 {
				return nil, core.Invalidf("filters[%d]: %s requires a non-empty list", i, op)
			}
		case OpBetween:
			list, ok := f.Value.([]any)
			if !ok || len(list) != 2 {
				return nil, core.Invalidf("filters[%d]: BETWEEN requires exactly two values", i)
			}
		case OpIsNull, OpIsNotNull:
			if !emptyValue(f.Value) {
				return nil, core.Invalidf("filters[%d]: %s does not take a value", i, op)
			}
			f.Value = nil
		default:
			if f.Value == nil {
				return nil, core.Invalidf("filters[%d]: %s requires a value", i, op)
			}
			switch f.Value.(type) {
			case []any, map[string]any:
				return nil, core.Invalidf("filters[%d]: %s requires a scalar value", i, op)
			}
		}
		out = append(out, FilterSpec{Column: f.Column, Operator: op, Value: f.Value})
	}
	return out, nil
}

func emptyValue(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return x == ""
	case []any:
		return len(x) == 0
	}
	return false
}

func parseAggregations(raw []any) ([]AggregationSpec, error) {
	out := make([]AggregationSpec, 0, len(raw))
	for i, item := range raw {
		var a AggregationSpec
		switch v := item.(type) {
		case string:
			a.Expression = v
		case map[string]any:
			var wa wireAggregation
			if err := decodeStrict(v, &wa, fmt.Sprintf("aggregations[%d]", i)); err != nil {
				return nil, err
			}
			a = AggregationSpec(wa)
		default:
			return nil, core.Invalidf("aggregations[%d] must be an expression or an object", i)
		}

		switch {
		case a.Expression != "" && (a.Fn != "" || a.Column != ""):
			return nil, core.Invalidf("aggregations[%d]: use either expression or fn/column", i)
		case a.Expression != "":
			if err := checkExpressions("aggregations", []string{a.Expression}); err != nil {
				return nil, err
			}
		case a.Fn == "" || a.Column == "":
			return nil, core.Invalidf("aggregations[%d] requires fn and column", i)
		case !identPattern.MatchString(a.Fn):
			return nil, core.Invalidf("aggregations[%d]: invalid function %q", i, a.Fn)
		default:
			if err := checkExpressions("aggregations", []string{a.Column}); err != nil {
				return nil, err
			}
		}
		if a.Alias != "" && !identPattern.MatchString(a.Alias) {
			return nil, core.Invalidf("aggregations[%d]: invalid alias %q", i, a.Alias)
		}
		out = append(out, a)
	}
	return out, nil
}

func parseJoins(raw []wireJoin, aliases []string) ([]JoinSpec, error) {
	known := make(map[string]bool, len(aliases))
	for _, a := range aliases {
		known[a] = true
	}

	joins := make([]JoinSpec, 0, len(raw))
	for i, j := range raw {
		if !known[j.Left] {
			return nil, core.Invalidf("joins[%d]: unknown left alias %q", i, j.Left)
		}
		if !known[j.Right] {
			return nil, core.Invalidf("joins[%d]: unknown right alias %q", i, j.Right)
		}

		on, err := stringList(j.On, fmt.Sprintf("joins[%d].on", i))
		if err != nil {
			return nil, err
		}
		leftOn, err := stringList(j.LeftOn, fmt.Sprintf("joins[%d].left_on", i))
		if err != nil {
			return nil, err
		}
		rightOn, err := stringList(j.RightOn, fmt.Sprintf("joins[%d].right_on", i))
		if err != nil {
			return nil, err
		}
		if len(on) > 0 {
			if len(leftOn) > 0 || len(rightOn) > 0 {
				return nil, core.Invalidf("joins[%d]: use either on or left_on/right_on", i)
			}
			leftOn, rightOn = on, on
		}
		if len(leftOn) == 0 || len(leftOn) != len(rightOn) {
			return nil, core.Invalidf("joins[%d]: left_on and right_on must have the same non-zero length", i)
		}

		jt, err := parseJoinType(j.JoinType)
		if err != nil {
			return nil, core.Invalidf("joins[%d]: %v", i, err)
		}
		joins = append(joins, JoinSpec{Left: j.Left, Right: j.Right, LeftOn: leftOn, RightOn: rightOn, JoinType: jt})
	}

	if len(aliases) <= 1 {
		if len(joins) > 0 {
			return nil, core.Invalidf("joins require more than one dataset")
		}
		return joins, nil
	}

	present := map[string]bool{aliases[0]: true}
	for i, j := range joins {
		if j.Right == aliases[0] {
			return nil, core.Invalidf("joins[%d]: the base dataset %q cannot be joined", i, j.Right)
		}
		if present[j.Right] {
			return nil, core.Invalidf("joins[%d]: dataset %q is joined more than once", i, j.Right)
		}
		if !present[j.Left] {
			return nil, core.Invalidf("joins[%d]: left alias %q is not joined yet", i, j.Left)
		}
		present[j.Right] = true
	}
	for _, a := range aliases[1:] {
		if !present[a] {
			return nil, core.Invalidf("dataset %q is not joined", a)
		}
	}
	return joins, nil
}

func parseJoinType(s string) (JoinType, error) {
	norm := strings.ToUpper(strings.Join(strings.Fields(s), " "))
	norm = strings.TrimSuffix(norm, " JOIN")
	norm = strings.TrimSuffix(norm, " OUTER")
	switch JoinType(norm) {
	case "":
		return JoinInner, nil
	case JoinInner, JoinLeft, JoinRight, JoinFull:
		return JoinType(norm), nil
	case "OUTER":
		return JoinFull, nil
	}
	return "", fmt.Errorf("unsupported join type %q", s)
}

func stringList(v any, field string) ([]string, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case string:
		if x == "" {
			return nil, nil
		}
		return []string{x}, nil
	case []string:
		return x, nil
	case []any:
		out := make([]string, len(x))
		for i, item := range x {
			s, ok := item.(string)
			if !ok || s == "" {
				return nil, core.Invalidf("%s[%d] must be a column name", field, i)
			}
			out[i] = s
		}
		return out, nil
	}
	return nil, core.Invalidf("%s must be a string or list of strings", field)
}

func parseLimit(v any) (*int, error) {
	if v == nil {
		return nil, nil
	}
	if _, isString := v.(string); isString {
		return nil, core.Invalidf("limit must be an integer")
	}
	n, ok := toInt64(v)
	if !ok {
		return nil, core.Invalidf("limit must be an integer")
	}
	if n < 1 {
		return nil, core.Invalidf("limit must be at least 1")
	}
	limit := int(n)
	return &limit, nil
}

func parseReshape(raw map[string]any) (*TimeseriesReshape, error) {
	var rs TimeseriesReshape
	if err := decodeStrict(raw, &rs, "reshape"); err != nil {
		return nil, err
	}

	if rs.Type != "timeseries" {
		return nil, core.Invalidf("unsupported reshape type %q", rs.Type)
	}
	if rs.Index.Column == "" {
		return nil, core.Invalidf("reshape.index.column is required")
	}
	if rs.Index.Key == "" {
		rs.Index.Key = rs.Index.Column
	}
	if len(rs.Series) == 0 {
		return nil, core.Invalidf("reshape.series must not be empty")
	}
	if len(rs.ExcludeYearIndexes) > 0 && rs.YearColumn == "" {
		return nil, core.Invalidf("reshape.exclude_year_indexes requires year_column")
	}
	for i := range rs.Series {
		s := &rs.Series[i]
		if s.Column == "" {
			return nil, core.Invalidf("reshape.series[%d].column is required", i)
		}
		if s.Key == "" {
			s.Key = s.Column
		}
		if s.Label == "" {
			s.Label = s.Key
		}
	}
	return &rs, nil
}

func toInt64(v any) (int64, bool) {
	switch x := v.(type) {
	case int:
		return int64(x), true
	case int8:
		return int64(x), true
	case int16:
		return int64(x), true
	case int32:
		return int64(x), true
	case int64:
		return x, true
	case uint8:
		return int64(x), true
	case uint16:
		return int64(x), true
	case uint32:
		return int64(x), true
	case uint64:
		if x > math.MaxInt64 {
			return 0, false
		}
		return int64(x), true
	case float64:
		return floatToInt64(x)
	case json.Number:
		i, err := x.Int64()
		return i, err == nil
	case string:
		i, err := strconv.ParseInt(strings.TrimSpace(x), 10, 64)
		return i, err == nil
	}
	return 0, false
}
