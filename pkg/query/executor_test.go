package query

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weppcloud/queryengine/pkg/core"
)

// mockSession runs queries against a sqlmock connection.
type mockSession struct {
	db      *sql.DB
	loadErr error
	loaded  []string
	closed  bool
}

func (s *mockSession) Query(ctx context.Context, q string, args ...any) (*core.Rows, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	return &core.Rows{Rows: rows}, nil
}

func (s *mockSession) LoadExtension(_ context.Context, name string) error {
	s.loaded = append(s.loaded, name)
	return s.loadErr
}

func (s *mockSession) Close() error {
	s.closed = true
	return s.db.Close()
}

func newMockExecutor(t *testing.T) (*Executor, *mockSession, sqlmock.Sqlmock, *core.AdapterConfig) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)

	sess := &mockSession{db: db}
	var gotCfg core.AdapterConfig
	exec := &Executor{Open: func(_ context.Context, cfg core.AdapterConfig) (Session, error) {
		gotCfg = cfg
		return sess, nil
	}}
	return exec, sess, mock, &gotCfg
}

func TestExecutor_Execute(t *testing.T) {
	exec, sess, mock, cfg := newMockExecutor(t)
	rc := &core.RunContext{RunID: "alpha", BaseDir: "/runs/alpha"}

	rows := sqlmock.NewRowsWithColumnDefinition(
		sqlmock.NewColumn("id").OfType("BIGINT", int64(0)),
		sqlmock.NewColumn("value").OfType("VARCHAR", ""),
	).AddRow(int64(1), "a").AddRow(int64(2), "b")
	mock.ExpectQuery("SELECT id, value FROM t").WillReturnRows(rows)
	mock.ExpectClose()

	tbl, err := exec.Execute(context.Background(), rc, &Plan{SQL: "SELECT id, value FROM t", Params: []any{}})
	require.NoError(t, err)

	assert.Equal(t, []Column{{Name: "id", Type: "BIGINT"}, {Name: "value", Type: "VARCHAR"}}, tbl.Columns)
	assert.Equal(t, [][]any{{int64(1), "a"}, {int64(2), "b"}}, tbl.Rows)
	assert.Equal(t, "/runs/alpha", cfg.HomeDirectory)
	assert.Empty(t, sess.loaded)
	assert.True(t, sess.closed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExecutor_Spatial(t *testing.T) {
	exec, sess, mock, _ := newMockExecutor(t)
	mock.ExpectQuery("SELECT 1").WillReturnRows(sqlmock.NewRows([]string{"one"}).AddRow(1))
	mock.ExpectClose()

	_, err := exec.Execute(context.Background(), &core.RunContext{}, &Plan{SQL: "SELECT 1", RequiresSpatial: true})
	require.NoError(t, err)
	assert.Equal(t, []string{SpatialExtension}, sess.loaded)
}

func TestExecutor_SpatialUnavailable(t *testing.T) {
	exec, sess, mock, _ := newMockExecutor(t)
	sess.loadErr = errors.New("IO Error: Failed to download extension")
	mock.ExpectClose()

	_, err := exec.Execute(context.Background(), &core.RunContext{}, &Plan{SQL: "SELECT 1", RequiresSpatial: true})
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrSpatialUnavailable)
	assert.Equal(t, core.KindInternal, core.KindOf(err))
	assert.Contains(t, err.Error(), "spatial extension unavailable")
	assert.True(t, sess.closed, "session released on error")
}

func TestExecutor_ErrorClassification(t *testing.T) {
	tests := []struct {
		name     string
		engine   error
		kind     core.Kind
		sentinel error
	}{
		{"missing file", errors.New(`IO Error: No files found that match the pattern "/runs/alpha/x.parquet"`), core.KindDatasetMissing, core.ErrNotFound},
		{"conversion", errors.New(`Conversion Error: Could not convert string 'forest' to INT64`), core.KindInvalidPayload, core.ErrInvalid},
		{"binder", errors.New(`Binder Error: Referenced column "nope" not found in FROM clause!`), core.KindInvalidPayload, core.ErrInvalid},
		{"parser", errors.New(`Parser Error: syntax error at or near "FROM"`), core.KindInvalidPayload, core.ErrInvalid},
		{"other", errors.New(`Out of Memory Error: failed to allocate`), core.KindExecutionFailed, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exec, _, mock, _ := newMockExecutor(t)
			mock.ExpectQuery("SELECT x").WillReturnError(tt.engine)
			mock.ExpectClose()

			_, err := exec.Execute(context.Background(), &core.RunContext{}, &Plan{SQL: "SELECT x"})
			require.Error(t, err)
			assert.Equal(t, tt.kind, core.KindOf(err))
			if tt.sentinel != nil {
				assert.ErrorIs(t, err, tt.sentinel)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestExecutor_RowError(t *testing.T) {
	exec, _, mock, _ := newMockExecutor(t)
	rows := sqlmock.NewRows([]string{"v"}).AddRow(1).AddRow(2).RowError(1, errors.New("Conversion Error: overflow"))
	mock.ExpectQuery("SELECT v").WillReturnRows(rows)
	mock.ExpectClose()

	_, err := exec.Execute(context.Background(), &core.RunContext{}, &Plan{SQL: "SELECT v"})
	require.Error(t, err)
	assert.Equal(t, core.KindInvalidPayload, core.KindOf(err))
}

func TestExecutor_Canceled(t *testing.T) {
	exec, _, mock, _ := newMockExecutor(t)
	mock.ExpectQuery("SELECT v").WillReturnError(errors.New("INTERRUPT Error: Interrupted!"))
	mock.ExpectClose()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := exec.Execute(ctx, &core.RunContext{}, &Plan{SQL: "SELECT v"})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestExecutor_OpenFailure(t *testing.T) {
	exec := &Executor{Open: func(context.Context, core.AdapterConfig) (Session, error) {
		return nil, errors.New("no engine")
	}}
	_, err := exec.Execute(context.Background(), &core.RunContext{}, &Plan{SQL: "SELECT 1"})
	require.Error(t, err)
	assert.Equal(t, core.KindExecutionFailed, core.KindOf(err))
}
