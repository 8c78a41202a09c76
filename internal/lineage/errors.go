package lineage

import "strings"

// DomainError is implemented by the errors this package hands back to callers.
// A DomainError passing through Execute again is returned unmodified.
type DomainError interface {
	error
	domainError()
}

// DatabaseError is a warehouse request or permission failure.
type DatabaseError struct {
	// Messages are the server-side error messages, in the order reported.
	Messages []string
	Err      error
}

func (e *DatabaseError) Error() string {
	return strings.Join(e.Messages, "\n")
}

func (e *DatabaseError) Unwrap() error { return e.Err }

func (*DatabaseError) domainError() {}

// AuthError is a credential or token refresh failure.
type AuthError struct {
	Message string
	Err     error
}

func (e *AuthError) Error() string { return e.Message }

func (e *AuthError) Unwrap() error { return e.Err }

func (*AuthError) domainError() {}

// RuntimeError wraps any failure that is neither a classified warehouse error
// nor a DomainError.
type RuntimeError struct {
	Message string
	Err     error
}

func (e *RuntimeError) Error() string { return e.Message }

func (e *RuntimeError) Unwrap() error { return e.Err }

func (*RuntimeError) domainError() {}
