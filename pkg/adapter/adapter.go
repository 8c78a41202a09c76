// Package adapter provides the warehouse adapter contract and the shared
// database/sql plumbing adapters embed.
//
// Concrete adapter implementations are in pkg/adapters/ subdirectories and
// register themselves on import.
package adapter

import (
	"context"
)

// Config holds warehouse connection settings.
type Config struct {
	// Type selects the adapter: duckdb, postgres
	Type string
	// Path is the database file for embedded warehouses (":memory:" if empty)
	Path     string
	Host     string
	Port     int
	Database string
	Username string
	Password string
	// Schema is the default schema models are written to
	Schema string
	// Options are driver connection options (e.g., sslmode)
	Options map[string]string
	// Params are adapter-specific settings decoded by the adapter
	Params map[string]any
}

// Adapter defines the interface that all warehouse adapters must implement.
//
// Errors returned by Exec and QueryScalar wrap a *core.WarehouseError when
// the adapter recognizes the driver failure.
type Adapter interface {
	// Connect establishes a connection to the database using the provided config.
	Connect(ctx context.Context, cfg Config) error

	// Close closes the database connection and releases resources.
	Close() error

	// Exec executes a SQL statement that doesn't return rows.
	Exec(ctx context.Context, sql string) error

	// QueryScalar executes a query returning a single integer.
	QueryScalar(ctx context.Context, sql string) (int64, error)

	// DialectName returns the SQL dialect of the warehouse.
	DialectName() string
}
