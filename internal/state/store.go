// Package state persists emitted lineage events in SQLite.
// The store is a sink for inspection; it never feeds the run registry.
package state

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/leapstack-labs/leaplineage/pkg/core"

	_ "modernc.org/sqlite" // registers the "sqlite" driver
)

// ErrNotOpen is returned by operations on a store that has not been opened.
var ErrNotOpen = errors.New("database not opened")

// EventRecord is a persisted lineage event.
type EventRecord struct {
	ID           string
	RunID        string
	EventType    core.EventType
	JobNamespace string
	JobName      string
	EventTime    time.Time
	// Payload is the event exactly as it was emitted, JSON encoded.
	Payload   []byte
	CreatedAt time.Time
}

// SQLiteStore stores lineage events using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	path   string
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite event store instance.
func NewSQLiteStore(logger *slog.Logger) *SQLiteStore {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &SQLiteStore{logger: logger}
}

// Open opens the database and applies migrations.
// Use ":memory:" for an in-memory database.
func (s *SQLiteStore) Open(path string) error {
	dsn := path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	if path == ":memory:" {
		dsn = ":memory:"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("failed to open sqlite database: %w", err)
	}
	if path == ":memory:" {
		// every connection to :memory: is a separate database
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping sqlite database: %w", err)
	}

	s.db = db
	s.path = path

	if err := s.Migrate(); err != nil {
		_ = s.Close()
		return err
	}
	s.logger.Debug("event store opened", slog.String("path", path))
	return nil
}

// Close closes the SQLite database connection.
func (s *SQLiteStore) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// Path returns the path the store was opened with.
func (s *SQLiteStore) Path() string {
	return s.path
}
