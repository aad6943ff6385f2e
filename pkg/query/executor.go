package query

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/weppcloud/queryengine/pkg/adapters/duckdb"
	"github.com/weppcloud/queryengine/pkg/core"
)

// SpatialExtension is loaded for plans that read spatial formats.
const SpatialExtension = "spatial"

// Session is the slice of an engine session the executor needs.
type Session interface {
	Query(ctx context.Context, sql string, args ...any) (*core.Rows, error)
	LoadExtension(ctx context.Context, name string) error
	Close() error
}

// Opener creates one ephemeral session.
type Opener func(ctx context.Context, cfg core.AdapterConfig) (Session, error)

// DuckDBOpener opens an in-memory DuckDB session.
func DuckDBOpener(logger *slog.Logger) Opener {
	return func(ctx context.Context, cfg core.AdapterConfig) (Session, error) {
		adp := duckdb.New(logger)
		if err := adp.Connect(ctx, cfg); err != nil {
			return nil, err
		}
		return adp, nil
	}
}

// Column describes one result column.
type Column struct {
	Name string
	Type string
}

// Table is a fully materialized result.
type Table struct {
	Columns []Column
	Rows    [][]any
}

// Executor runs plans in per-call sessions.
type Executor struct {
	// Open creates sessions; nil uses DuckDBOpener.
	Open Opener
	// Params are passed to the engine adapter (extension_directory, offline, ...).
	Params map[string]any
	Logger *slog.Logger
}

func (e *Executor) logger() *slog.Logger {
	if e.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return e.Logger
}

// Execute runs plan with the session home directory set to the run base.
// The session is released on every path.
func (e *Executor) Execute(ctx context.Context, rc *core.RunContext, plan *Plan) (tbl *Table, err error) {
	open := e.Open
	if open == nil {
		open = DuckDBOpener(e.logger())
	}

	sess, err := open(ctx, core.AdapterConfig{HomeDirectory: rc.BaseDir, Params: e.Params})
	if err != nil {
		return nil, core.NewError(core.KindExecutionFailed, err, "failed to open query session")
	}
	defer func() {
		if cerr := sess.Close(); cerr != nil && err == nil {
			e.logger().Warn("failed to close query session", "error", cerr)
		}
	}()

	if plan.RequiresSpatial {
		if err := sess.LoadExtension(ctx, SpatialExtension); err != nil {
			return nil, core.NewError(core.KindInternal, fmt.Errorf("%w: %v", core.ErrSpatialUnavailable, err), "")
		}
	}

	e.logger().Debug("executing query", "run", rc.RunID, "sql", plan.SQL)
	rows, err := sess.Query(ctx, plan.SQL, plan.Params...)
	if err != nil {
		return nil, classify(ctx, err)
	}
	defer func() { _ = rows.Close() }()

	types, err := rows.ColumnTypes()
	if err != nil {
		return nil, classify(ctx, err)
	}
	tbl = &Table{Columns: make([]Column, len(types))}
	for i, ct := range types {
		tbl.Columns[i] = Column{Name: ct.Name(), Type: ct.DatabaseTypeName()}
	}

	for rows.Next() {
		vals := make([]any, len(types))
		ptrs := make([]any, len(types))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, classify(ctx, err)
		}
		tbl.Rows = append(tbl.Rows, vals)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(ctx, err)
	}
	return tbl, nil
}

var (
	missingMarkers = []string{
		"no files found that match the pattern",
		"no such file or directory",
		"cannot open file",
		"file does not exist",
	}
	invalidMarkers = []string{
		"conversion error",
		"binder error",
		"parser error",
		"type mismatch",
		"mismatch type",
		"could not convert",
		"invalid input error",
		"catalog error",
	}
)

// classify maps engine errors onto the error taxonomy.
func classify(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return core.NewError(core.KindExecutionFailed, ctxErr, "query canceled")
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return core.NewError(core.KindExecutionFailed, err, "query canceled")
	}

	msg := strings.ToLower(err.Error())
	for _, m := range missingMarkers {
		if strings.Contains(msg, m) {
			return core.NewError(core.KindDatasetMissing, fmt.Errorf("%w: %v", core.ErrNotFound, err), "dataset not found")
		}
	}
	for _, m := range invalidMarkers {
		if strings.Contains(msg, m) {
			return core.NewError(core.KindInvalidPayload, fmt.Errorf("%w: %v", core.ErrInvalid, err), "query rejected by engine")
		}
	}
	return core.NewError(core.KindExecutionFailed, err, "query execution failed")
}
