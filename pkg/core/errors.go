package core

import (
	"fmt"
	"strings"
)

// ErrorCategory is the upstream failure class reported by a warehouse adapter.
type ErrorCategory string

// Upstream failure classes.
const (
	CategoryBadRequest ErrorCategory = "bad_request"
	CategoryForbidden  ErrorCategory = "forbidden"
	CategoryAuth       ErrorCategory = "auth"
	CategoryUnknown    ErrorCategory = "unknown"
)

// WarehouseError is a driver error normalized by a warehouse adapter.
// Messages holds the server-side error messages, in the order reported.
type WarehouseError struct {
	Category ErrorCategory
	Messages []string
	Err      error
}

func (e *WarehouseError) Error() string {
	if len(e.Messages) > 0 {
		return fmt.Sprintf("%s: %s", e.Category, strings.Join(e.Messages, "; "))
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Category, e.Err)
	}
	return string(e.Category)
}

func (e *WarehouseError) Unwrap() error {
	return e.Err
}
