package core

import (
	"context"
	"database/sql"
)

// Adapter defines the contract of an embedded engine session.
type Adapter interface {
	// Connect opens the session.
	Connect(ctx context.Context, cfg AdapterConfig) error

	// Close releases the session and every resource it holds.
	Close() error

	// Exec executes a SQL statement that doesn't return rows.
	Exec(ctx context.Context, sql string) error

	// Query executes a SQL statement that returns rows.
	Query(ctx context.Context, sql string, args ...any) (*Rows, error)

	// LoadExtension installs (once) and loads a named engine extension.
	LoadExtension(ctx context.Context, name string) error
}

// AdapterConfig holds configuration for opening an engine session.
type AdapterConfig struct {
	// Path is the database path; empty means an ephemeral in-memory session.
	Path string
	// HomeDirectory is the session home; relative auxiliary files resolve against it.
	HomeDirectory string
	// Extensions are installed and loaded when the session opens.
	Extensions []string
	// Settings are applied with SET at session level (e.g. memory_limit, threads).
	Settings map[string]string
	// Params carries adapter-specific options decoded by the adapter itself.
	Params map[string]any
}

// Rows wraps sql.Rows to provide a consistent interface.
type Rows struct {
	*sql.Rows
}
