package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leaplineage/internal/cli/config"
	"github.com/leapstack-labs/leaplineage/internal/engine"
	"github.com/leapstack-labs/leaplineage/internal/lineage"
	"github.com/leapstack-labs/leaplineage/internal/metrics"
	"github.com/leapstack-labs/leaplineage/internal/registry"
	"github.com/leapstack-labs/leaplineage/internal/state"
	"github.com/leapstack-labs/leaplineage/internal/transport"
	"github.com/leapstack-labs/leaplineage/pkg/adapter"
)

// ErrNoConfig is returned when a command runs without a loaded config.
var ErrNoConfig = errors.New("configuration not loaded")

// CommandContext holds the shared state of a command invocation.
type CommandContext struct {
	Cfg    *config.Config
	Logger *slog.Logger
}

// NewCommandContext reads the config and logger stored by the root command.
func NewCommandContext(cmd *cobra.Command) (*CommandContext, error) {
	cfg := config.FromContext(cmd.Context())
	if cfg == nil {
		return nil, ErrNoConfig
	}
	return &CommandContext{
		Cfg:    cfg,
		Logger: config.GetLogger(cmd.Context()),
	}, nil
}

// Runtime is the connected warehouse, event sinks and engine of a run.
type Runtime struct {
	Engine   *engine.Engine
	Session  *lineage.Session
	Registry *registry.RunRegistry
	Store    *state.SQLiteStore
	Gatherer prometheus.Gatherer

	closers []func() error
}

// Close releases the runtime in reverse order of acquisition.
func (r *Runtime) Close() error {
	var errs []error
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// NewRuntime connects to the target warehouse and wires lineage emission.
// Events are always persisted to the state store when a state path is
// configured, in addition to the configured transport.
func (c *CommandContext) NewRuntime(ctx context.Context) (*Runtime, error) {
	cfg := c.Cfg
	rt := &Runtime{}

	store, err := openStore(cfg.Lineage.StatePath, c.Logger)
	if err != nil {
		return nil, err
	}
	if store != nil {
		rt.Store = store
		rt.closers = append(rt.closers, store.Close)
	}

	emitter, closeEmitter, err := newEmitter(cfg.Lineage, c.Logger, store)
	if err != nil {
		_ = rt.Close()
		return nil, err
	}
	rt.closers = append(rt.closers, closeEmitter)

	reg := prometheus.NewRegistry()
	rt.Gatherer = reg
	if cfg.MetricsAddr != "" {
		stop := serveMetrics(cfg.MetricsAddr, reg, c.Logger)
		rt.closers = append(rt.closers, stop)
	}

	rt.Registry = registry.New()
	rt.Session, err = lineage.NewSession(lineage.SessionConfig{
		Registry:      rt.Registry,
		Emitter:       emitter,
		Logger:        c.Logger,
		Metrics:       metrics.New(reg),
		Impersonating: cfg.Lineage.Impersonating,
		Delimiters:    cfg.Lineage.Delimiters,
	})
	if err != nil {
		_ = rt.Close()
		return nil, err
	}

	targetCfg := cfg.Target.AdapterConfig()
	db, err := adapter.NewAdapter(targetCfg, c.Logger)
	if err != nil {
		_ = rt.Close()
		return nil, err
	}
	if err := db.Connect(ctx, targetCfg); err != nil {
		_ = rt.Close()
		return nil, fmt.Errorf("failed to connect to %s: %w", targetCfg.Type, err)
	}
	rt.closers = append(rt.closers, db.Close)

	rt.Engine, err = engine.New(engine.Config{
		Adapter:     db,
		Session:     rt.Session,
		Logger:      c.Logger,
		Concurrency: cfg.Concurrency,
	})
	if err != nil {
		_ = rt.Close()
		return nil, err
	}
	return rt, nil
}

// openStore opens the event store at path, creating its directory.
// An empty path disables the store.
func openStore(path string, logger *slog.Logger) (*state.SQLiteStore, error) {
	if path == "" {
		return nil, nil
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
			return nil, fmt.Errorf("failed to create state directory: %w", err)
		}
	}
	store := state.NewSQLiteStore(logger)
	if err := store.Open(path); err != nil {
		return nil, err
	}
	return store, nil
}

// newEmitter builds the configured transport, fanned out to the store. The
// returned func releases the transport.
func newEmitter(cfg *config.LineageConfig, logger *slog.Logger, store *state.SQLiteStore) (lineage.Emitter, func() error, error) {
	var es transport.EventStore
	if store != nil {
		es = store
	}
	primary, err := transport.New(cfg.TransportConfig(), logger, es)
	if err != nil {
		return nil, nil, err
	}

	closeFn := func() error { return nil }
	if pub, ok := primary.(*transport.PublisherEmitter); ok {
		closeFn, err = relayToConsole(pub, logger)
		if err != nil {
			_ = pub.Close()
			return nil, nil, err
		}
	}

	if store == nil || cfg.Transport == transport.TypeSQLite {
		return primary, closeFn, nil
	}
	return transport.Fanout{primary, transport.NewStoreEmitter(store)}, closeFn, nil
}

// relayToConsole prints events published in process to stdout. The returned
// func closes the publisher and waits for the relay to drain.
func relayToConsole(pub *transport.PublisherEmitter, logger *slog.Logger) (func() error, error) {
	msgs, err := pub.Subscribe(context.Background())
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to %s: %w", pub.Topic(), err)
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		transport.Relay(msgs, transport.NewConsoleEmitter(nil), logger)
	}()
	return func() error {
		err := pub.Close()
		<-done
		return err
	}, nil
}

// serveMetrics serves the metrics handler on addr until the returned stop is called.
func serveMetrics(addr string, gatherer prometheus.Gatherer, logger *slog.Logger) func() error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           metrics.Handler(gatherer),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("serving metrics", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "addr", addr, "error", err)
		}
	}()
	return func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(ctx)
	}
}
