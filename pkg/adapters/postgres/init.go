// Package postgres provides a PostgreSQL warehouse adapter.
//
// Import this package with a blank identifier to register the adapter:
//
//	import _ "github.com/leapstack-labs/leaplineage/pkg/adapters/postgres"
package postgres

import (
	"log/slog"

	"github.com/leapstack-labs/leaplineage/pkg/adapter"
)

func init() {
	adapter.Register("postgres", func(logger *slog.Logger) adapter.Adapter { return New(logger) })
}
