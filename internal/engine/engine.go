// Package engine runs SQL models against a warehouse in dependency order and
// reports every model execution as a lineage run.
package engine

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/leapstack-labs/leaplineage/internal/lineage"
	"github.com/leapstack-labs/leaplineage/internal/sqlrefs"
	"github.com/leapstack-labs/leaplineage/pkg/adapter"
)

// DefaultConcurrency is the number of models executed in parallel within a level.
const DefaultConcurrency = 4

var (
	// ErrAdapterRequired is returned by New without a warehouse adapter.
	ErrAdapterRequired = errors.New("engine: adapter is required")
	// ErrSessionRequired is returned by New without a lineage session.
	ErrSessionRequired = errors.New("engine: lineage session is required")
)

// Config holds engine configuration.
type Config struct {
	// Adapter is the connected warehouse adapter (required)
	Adapter adapter.Adapter
	// Session reports model runs (required)
	Session *lineage.Session
	// Extractor finds model dependencies (optional, defaults to sqlrefs)
	Extractor lineage.Extractor
	// Logger is the structured logger (optional, uses discard if nil)
	Logger *slog.Logger
	// Concurrency caps parallel models per level (optional, defaults to DefaultConcurrency)
	Concurrency int
}

// Engine orchestrates the execution of SQL models.
type Engine struct {
	db          adapter.Adapter
	session     *lineage.Session
	extractor   lineage.Extractor
	logger      *slog.Logger
	concurrency int

	schemaMu sync.Mutex
	schemas  map[string]bool
}

// New creates a new engine.
func New(cfg Config) (*Engine, error) {
	if cfg.Adapter == nil {
		return nil, ErrAdapterRequired
	}
	if cfg.Session == nil {
		return nil, ErrSessionRequired
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	extractor := cfg.Extractor
	if extractor == nil {
		extractor = sqlrefs.Extractor{}
	}
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}

	return &Engine{
		db:          cfg.Adapter,
		session:     cfg.Session,
		extractor:   extractor,
		logger:      logger,
		concurrency: concurrency,
		schemas:     make(map[string]bool),
	}, nil
}
