package postgres

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/leapstack-labs/leaplineage/pkg/core"
)

// SQLSTATE codes and classes with a dedicated category.
const (
	codeInsufficientPrivilege = "42501"

	classInvalidAuthorization = "28"
	classSyntaxOrAccess       = "42"
	classDataException        = "22"
	classIntegrityConstraint  = "23"
)

// TranslateError maps a PostgreSQL error to its upstream category by SQLSTATE.
// Authentication failures surfaced while connecting are found through
// *pgconn.ConnectError, which unwraps to the server error.
func TranslateError(err error) *core.WarehouseError {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return nil
	}

	var category core.ErrorCategory
	switch class := sqlstateClass(pgErr.Code); {
	case pgErr.Code == codeInsufficientPrivilege:
		category = core.CategoryForbidden
	case class == classInvalidAuthorization:
		category = core.CategoryAuth
	case class == classSyntaxOrAccess, class == classDataException, class == classIntegrityConstraint:
		category = core.CategoryBadRequest
	default:
		return nil
	}

	return &core.WarehouseError{
		Category: category,
		Messages: pgMessages(pgErr),
		Err:      err,
	}
}

func sqlstateClass(code string) string {
	if len(code) < 2 {
		return ""
	}
	return code[:2]
}

// pgMessages returns the server message followed by its detail and hint.
func pgMessages(e *pgconn.PgError) []string {
	msgs := []string{e.Message}
	if d := strings.TrimSpace(e.Detail); d != "" {
		msgs = append(msgs, "DETAIL: "+d)
	}
	if h := strings.TrimSpace(e.Hint); h != "" {
		msgs = append(msgs, "HINT: "+h)
	}
	return msgs
}
