package lineage

import (
	"errors"
	"strings"

	"github.com/leapstack-labs/leaplineage/pkg/core"
)

// ErrorKind is the classification of a failure raised inside Execute.
type ErrorKind int

// Recognized failure categories.
const (
	KindUnknown ErrorKind = iota
	KindBadRequest
	KindForbidden
	KindAuth
	KindDomain
)

func (k ErrorKind) String() string {
	switch k {
	case KindBadRequest:
		return "bad_request"
	case KindForbidden:
		return "forbidden"
	case KindAuth:
		return "auth"
	case KindDomain:
		return "domain"
	default:
		return "unknown"
	}
}

// QueryJobSQLDelimiter precedes the query log some warehouse clients append to
// error messages.
const QueryJobSQLDelimiter = "-----Query Job SQL Follows-----"

// DefaultDelimiters are the verbose-log delimiters stripped from runtime errors.
var DefaultDelimiters = []string{QueryJobSQLDelimiter}

// Classify maps a raw error to its ErrorKind. It only looks at the error chain
// and never at a driver's concrete types; adapters normalize those into
// *core.WarehouseError.
func Classify(err error) ErrorKind {
	if err == nil {
		return KindUnknown
	}

	var domain DomainError
	if errors.As(err, &domain) {
		return KindDomain
	}

	var wh *core.WarehouseError
	if errors.As(err, &wh) {
		switch wh.Category {
		case core.CategoryBadRequest:
			return KindBadRequest
		case core.CategoryForbidden:
			return KindForbidden
		case core.CategoryAuth:
			return KindAuth
		}
	}
	return KindUnknown
}

// TranslateOptions tunes Translate.
type TranslateOptions struct {
	// Impersonating adds service account impersonation guidance to auth errors.
	Impersonating bool
	// Delimiters truncate runtime error messages; nil means DefaultDelimiters.
	Delimiters []string
}

// impersonationHint is appended to auth errors when impersonation is configured.
const impersonationHint = "Unable to generate access token, if you're using " +
	"impersonate_service_account, make sure your initial account has the " +
	`"roles/iam.serviceAccountTokenCreator" role on the account you are ` +
	"trying to impersonate."

// Translate converts err into the error a caller of Execute receives.
// Returns nil for a nil error.
func Translate(err error, opts TranslateOptions) error {
	if err == nil {
		return nil
	}

	switch Classify(err) {
	case KindBadRequest, KindForbidden:
		return &DatabaseError{Messages: warehouseMessages(err), Err: err}

	case KindAuth:
		msg := "Unable to generate access token.\n\n" + err.Error()
		if opts.Impersonating {
			msg = impersonationHint + "\n\n" + err.Error()
		}
		return &AuthError{Message: msg, Err: err}

	case KindDomain:
		return err

	default:
		delimiters := opts.Delimiters
		if delimiters == nil {
			delimiters = DefaultDelimiters
		}
		return &RuntimeError{Message: truncateAt(err.Error(), delimiters), Err: err}
	}
}

// warehouseMessages returns the server-side messages of a classified error.
func warehouseMessages(err error) []string {
	var wh *core.WarehouseError
	if errors.As(err, &wh) && len(wh.Messages) > 0 {
		return append([]string(nil), wh.Messages...)
	}
	return []string{err.Error()}
}

// truncateAt cuts msg at the earliest delimiter and trims what remains.
func truncateAt(msg string, delimiters []string) string {
	cut := len(msg)
	for _, d := range delimiters {
		if d == "" {
			continue
		}
		if i := strings.Index(msg, d); i >= 0 && i < cut {
			cut = i
		}
	}
	return strings.TrimSpace(msg[:cut])
}
