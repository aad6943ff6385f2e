// Package duckdb provides the embedded DuckDB session used to execute queries.
package duckdb

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/sync/singleflight"

	"github.com/weppcloud/queryengine/pkg/core"

	_ "github.com/marcboeker/go-duckdb" // duckdb driver
)

var (
	identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

	// installs de-duplicates concurrent first-use extension installs in this process.
	installs singleflight.Group
)

// installRetryDelay is the pause before the single retry of a failed install.
var installRetryDelay = 250 * time.Millisecond

// Adapter is one ephemeral DuckDB session. It is not safe for concurrent use;
// every request opens its own.
type Adapter struct {
	DB     *sql.DB
	Cfg    core.AdapterConfig
	Logger *slog.Logger

	params *Params
	loaded map[string]bool
}

// New creates a new DuckDB adapter instance.
func New(logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Adapter{Logger: logger, loaded: make(map[string]bool)}
}

// Connect opens the session. An empty path opens an in-memory database.
func (a *Adapter) Connect(ctx context.Context, cfg core.AdapterConfig) error {
	params, err := ParseParams(cfg.Params)
	if err != nil {
		return err
	}

	path := cfg.Path
	if path == "" {
		path = ":memory:"
	}

	db, err := sql.Open("duckdb", path)
	if err != nil {
		return fmt.Errorf("failed to open duckdb connection: %w", err)
	}
	// Settings are per connection; pin the session to one.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping duckdb: %w", err)
	}

	a.DB = db
	a.Cfg = cfg
	a.params = params

	if err := a.applySettings(ctx); err != nil {
		_ = a.Close()
		return err
	}

	for _, ext := range cfg.Extensions {
		if err := a.LoadExtension(ctx, ext); err != nil {
			_ = a.Close()
			return err
		}
	}

	return nil
}

func (a *Adapter) applySettings(ctx context.Context) error {
	settings := make(map[string]string, len(a.Cfg.Settings)+4)
	for k, v := range a.Cfg.Settings {
		settings[k] = v
	}
	if a.Cfg.HomeDirectory != "" {
		settings["home_directory"] = a.Cfg.HomeDirectory
	}
	if a.params.ExtensionDirectory != "" {
		settings["extension_directory"] = a.params.ExtensionDirectory
	}
	if a.params.MemoryLimit != "" {
		settings["memory_limit"] = a.params.MemoryLimit
	}
	if a.params.Threads > 0 {
		settings["threads"] = fmt.Sprintf("%d", a.params.Threads)
	}
	if a.params.Offline {
		settings["autoinstall_known_extensions"] = "false"
	}

	keys := make([]string, 0, len(settings))
	for k := range settings {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		if !identPattern.MatchString(k) {
			return fmt.Errorf("invalid duckdb setting name %q", k)
		}
		stmt := fmt.Sprintf("SET %s = %s", k, QuoteString(settings[k]))
		if err := a.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply setting %s: %w", k, err)
		}
	}
	return nil
}

// Close releases the session.
func (a *Adapter) Close() error {
	if a.DB != nil {
		a.Logger.Debug("closing duckdb session")
		err := a.DB.Close()
		a.DB = nil
		return err
	}
	return nil
}

// Exec executes a SQL statement that doesn't return rows.
func (a *Adapter) Exec(ctx context.Context, sqlStr string) error {
	if a.DB == nil {
		return fmt.Errorf("database connection not established")
	}
	if _, err := a.DB.ExecContext(ctx, sqlStr); err != nil {
		return fmt.Errorf("failed to execute SQL: %w", err)
	}
	return nil
}

// Query executes a SQL statement that returns rows.
func (a *Adapter) Query(ctx context.Context, sqlStr string, args ...any) (*core.Rows, error) {
	if a.DB == nil {
		return nil, fmt.Errorf("database connection not established")
	}
	//nolint:rowserrcheck // rows.Err() must be checked by caller after iteration completes
	rows, err := a.DB.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	return &core.Rows{Rows: rows}, nil
}

// LoadExtension loads an extension, installing it first when it is missing.
// A failed install is retried once when the failure looks like transient I/O.
func (a *Adapter) LoadExtension(ctx context.Context, name string) error {
	if !identPattern.MatchString(name) {
		return fmt.Errorf("invalid extension name %q", name)
	}
	if a.loaded[name] {
		return nil
	}

	if err := a.Exec(ctx, "LOAD "+name); err == nil {
		a.loaded[name] = true
		return nil
	} else if a.params != nil && a.params.Offline {
		return fmt.Errorf("failed to load %s extension in offline mode: %w", name, err)
	}

	_, err, _ := installs.Do(name, func() (any, error) {
		a.Logger.Info("installing duckdb extension", "extension", name)
		op := func() error {
			err := a.Exec(ctx, "INSTALL "+name)
			if err != nil && !isTransient(err) {
				return backoff.Permanent(err)
			}
			return err
		}
		policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewConstantBackOff(installRetryDelay), 1), ctx)
		return nil, backoff.Retry(op, policy)
	})
	if err != nil {
		return fmt.Errorf("failed to install %s: %w", name, err)
	}

	if err := a.Exec(ctx, "LOAD "+name); err != nil {
		return fmt.Errorf("failed to load %s after install: %w", name, err)
	}
	a.loaded[name] = true
	return nil
}

// isTransient reports whether an install failure is worth one more attempt.
func isTransient(err error) bool {
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{"io error", "http", "timeout", "temporarily", "connection reset", "could not open"} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// QuoteString renders s as a single-quoted SQL string literal.
func QuoteString(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// Ensure Adapter implements core.Adapter.
var _ core.Adapter = (*Adapter)(nil)
