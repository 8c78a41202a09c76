package duckdb

import (
	"errors"

	"github.com/marcboeker/go-duckdb"

	"github.com/leapstack-labs/leaplineage/pkg/core"
)

// TranslateError maps a DuckDB error to its upstream category.
// Returns nil for errors that are not *duckdb.Error or carry an
// unrecognized type.
func TranslateError(err error) *core.WarehouseError {
	var dbErr *duckdb.Error
	if !errors.As(err, &dbErr) {
		return nil
	}

	var category core.ErrorCategory
	switch dbErr.Type {
	case duckdb.ErrorTypePermission:
		category = core.CategoryForbidden
	case duckdb.ErrorTypeParser,
		duckdb.ErrorTypeSyntax,
		duckdb.ErrorTypeBinder,
		duckdb.ErrorTypeCatalog,
		duckdb.ErrorTypeConversion,
		duckdb.ErrorTypeConstraint,
		duckdb.ErrorTypeInvalidInput,
		duckdb.ErrorTypeMismatchType:
		category = core.CategoryBadRequest
	default:
		return nil
	}

	return &core.WarehouseError{
		Category: category,
		Messages: []string{dbErr.Msg},
		Err:      err,
	}
}
