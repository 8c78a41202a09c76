package adapter

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/leapstack-labs/leaplineage/pkg/core"
)

// ErrNotConnected is returned by operations on an adapter without a connection.
var ErrNotConnected = errors.New("database connection not established")

// ErrorTranslator maps a driver error to its upstream category.
// It returns nil when the error is not recognized.
type ErrorTranslator func(err error) *core.WarehouseError

// BaseSQLAdapter provides common database/sql functionality for adapters.
// Embed this struct in concrete adapter implementations to get standard
// Close, Exec and QueryScalar implementations.
type BaseSQLAdapter struct {
	DB     *sql.DB
	Cfg    Config
	Logger *slog.Logger
	// Translate normalizes driver errors (optional)
	Translate ErrorTranslator
}

// Close closes the database connection.
func (b *BaseSQLAdapter) Close() error {
	if b.DB != nil {
		if b.Logger != nil {
			b.Logger.Debug("closing database connection")
		}
		return b.DB.Close()
	}
	return nil
}

// Exec executes a SQL statement that doesn't return rows.
func (b *BaseSQLAdapter) Exec(ctx context.Context, sqlStr string) error {
	if b.DB == nil {
		return ErrNotConnected
	}
	if _, err := b.DB.ExecContext(ctx, sqlStr); err != nil {
		return fmt.Errorf("failed to execute SQL: %w", b.TranslateError(err))
	}
	return nil
}

// QueryScalar executes a query returning a single integer.
func (b *BaseSQLAdapter) QueryScalar(ctx context.Context, sqlStr string) (int64, error) {
	if b.DB == nil {
		return 0, ErrNotConnected
	}
	var v int64
	if err := b.DB.QueryRowContext(ctx, sqlStr).Scan(&v); err != nil {
		return 0, fmt.Errorf("failed to execute query: %w", b.TranslateError(err))
	}
	return v, nil
}

// IsConnected returns true if the database connection is established.
func (b *BaseSQLAdapter) IsConnected() bool {
	return b.DB != nil
}

// TranslateError returns err as a *core.WarehouseError when the adapter
// recognizes it, and err unchanged otherwise.
func (b *BaseSQLAdapter) TranslateError(err error) error {
	if err == nil || b.Translate == nil {
		return err
	}
	var wh *core.WarehouseError
	if errors.As(err, &wh) {
		return err
	}
	if translated := b.Translate(err); translated != nil {
		return translated
	}
	return err
}
