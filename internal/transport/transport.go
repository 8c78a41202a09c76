// Package transport delivers lineage events to collectors.
//
// Every emitter implements lineage.Emitter and returns only after the event
// has been sent or queued.
package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/leapstack-labs/leaplineage/internal/lineage"
	"github.com/leapstack-labs/leaplineage/pkg/core"
)

// Transport types accepted by New.
const (
	TypeHTTP    = "http"
	TypeConsole = "console"
	TypeSQLite  = "sqlite"
	TypeNone    = "none"
	// TypeGoChannel publishes to an in-process watermill pub/sub.
	TypeGoChannel = "gochannel"
)

// Config selects and configures a transport.
type Config struct {
	Type       string
	URL        string
	APIKey     string
	Timeout    time.Duration
	MaxRetries uint64
	// Topic is the pub/sub topic of the gochannel transport.
	Topic string
}

// UnknownTransportError is returned by New for an unsupported transport type.
type UnknownTransportError struct {
	Type      string
	Available []string
}

func (e *UnknownTransportError) Error() string {
	return fmt.Sprintf("unknown lineage transport %q (available: %v)", e.Type, e.Available)
}

// EventStore persists events. Implemented by *state.SQLiteStore.
type EventStore interface {
	InsertEvent(ctx context.Context, ev *core.LineageEvent) (string, error)
}

// ErrStoreRequired is returned by New for the sqlite transport without a store.
var ErrStoreRequired = errors.New("sqlite transport requires an event store")

// New builds the emitter named by cfg.Type. An empty type means none.
func New(cfg Config, logger *slog.Logger, store EventStore) (lineage.Emitter, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	switch cfg.Type {
	case TypeHTTP:
		return NewHTTPEmitter(HTTPConfig{
			URL:        cfg.URL,
			APIKey:     cfg.APIKey,
			Timeout:    cfg.Timeout,
			MaxRetries: cfg.MaxRetries,
			Logger:     logger,
		})
	case TypeConsole:
		return NewConsoleEmitter(nil), nil
	case TypeSQLite:
		if store == nil {
			return nil, ErrStoreRequired
		}
		return NewStoreEmitter(store), nil
	case TypeGoChannel:
		return NewInProcessEmitter(cfg.Topic, logger), nil
	case TypeNone, "":
		return Noop{}, nil
	default:
		return nil, &UnknownTransportError{
			Type:      cfg.Type,
			Available: []string{TypeConsole, TypeGoChannel, TypeHTTP, TypeNone, TypeSQLite},
		}
	}
}

// Noop discards every event.
type Noop struct{}

// Emit does nothing.
func (Noop) Emit(context.Context, *core.LineageEvent) error { return nil }

// Fanout sends every event to all of its emitters.
type Fanout []lineage.Emitter

// Emit sends ev to each emitter in order and joins their errors.
func (f Fanout) Emit(ctx context.Context, ev *core.LineageEvent) error {
	var errs []error
	for _, e := range f {
		if err := e.Emit(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// StoreEmitter persists events to an EventStore.
type StoreEmitter struct {
	store EventStore
}

// NewStoreEmitter creates an emitter writing to store.
func NewStoreEmitter(store EventStore) *StoreEmitter {
	return &StoreEmitter{store: store}
}

// Emit stores ev.
func (e *StoreEmitter) Emit(ctx context.Context, ev *core.LineageEvent) error {
	if _, err := e.store.InsertEvent(ctx, ev); err != nil {
		return fmt.Errorf("failed to store lineage event: %w", err)
	}
	return nil
}
