package lineage

import (
	"context"
	"errors"
	"fmt"

	"github.com/leapstack-labs/leaplineage/pkg/core"
)

// ErrRunNotFound is returned when a token or run id does not resolve to a live run.
var ErrRunNotFound = errors.New("run not found in registry")

// Resolver looks up a live run by model id or run id.
// Implemented by *registry.RunRegistry.
type Resolver interface {
	Resolve(key string) (*core.RunMeta, bool)
}

// Recoverer finds the run a failing query belongs to.
type Recoverer interface {
	RecoverRunFromQuery(ctx context.Context, query string) (*core.RunMeta, error)
}

// IdentityRecoveryError reports why a failure could not be attributed to a run.
// It unwraps to ErrMarkerNotFound, ErrAmbiguousMarker or ErrRunNotFound.
type IdentityRecoveryError struct {
	Token string
	Err   error
}

func (e *IdentityRecoveryError) Error() string {
	if e.Token != "" {
		return fmt.Sprintf("cannot recover run identity for %q: %v", e.Token, e.Err)
	}
	return fmt.Sprintf("cannot recover run identity: %v", e.Err)
}

func (e *IdentityRecoveryError) Unwrap() error {
	return e.Err
}

// Reason returns a short label for metrics and logs.
func (e *IdentityRecoveryError) Reason() string {
	switch {
	case errors.Is(e.Err, ErrMarkerNotFound):
		return "marker_not_found"
	case errors.Is(e.Err, ErrAmbiguousMarker):
		return "ambiguous_marker"
	case errors.Is(e.Err, ErrRunNotFound):
		return "run_not_found"
	default:
		return "unknown"
	}
}

// MarkerRecoverer recovers identity from the marker embedded in the query text.
type MarkerRecoverer struct {
	Registry Resolver
}

// RecoverRunFromQuery extracts the marker token and resolves it.
func (r MarkerRecoverer) RecoverRunFromQuery(_ context.Context, query string) (*core.RunMeta, error) {
	token, err := ExtractMarker(query)
	if err != nil {
		return nil, &IdentityRecoveryError{Err: err}
	}
	meta, ok := r.Registry.Resolve(token)
	if !ok {
		return nil, &IdentityRecoveryError{Token: token, Err: ErrRunNotFound}
	}
	return meta, nil
}

type runIDKey struct{}

// WithRunID attaches a run id to ctx for ContextRecoverer.
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runIDKey{}, runID)
}

// RunIDFromContext returns the run id attached with WithRunID.
func RunIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(runIDKey{}).(string)
	return id, ok && id != ""
}

// ContextRecoverer prefers a run id carried by the context and falls back to
// the query marker when the host could not attach one.
type ContextRecoverer struct {
	Registry Resolver
}

// RecoverRunFromQuery resolves the context run id, or the query marker.
func (r ContextRecoverer) RecoverRunFromQuery(ctx context.Context, query string) (*core.RunMeta, error) {
	if runID, ok := RunIDFromContext(ctx); ok {
		meta, found := r.Registry.Resolve(runID)
		if !found {
			return nil, &IdentityRecoveryError{Token: runID, Err: ErrRunNotFound}
		}
		return meta, nil
	}
	return MarkerRecoverer(r).RecoverRunFromQuery(ctx, query)
}
