// Package duckdb provides a DuckDB warehouse adapter.
//
// Import this package with a blank identifier to register the adapter:
//
//	import _ "github.com/leapstack-labs/leaplineage/pkg/adapters/duckdb"
package duckdb

import (
	"log/slog"

	"github.com/leapstack-labs/leaplineage/pkg/adapter"
)

func init() {
	adapter.Register("duckdb", func(logger *slog.Logger) adapter.Adapter { return New(logger) })
}
