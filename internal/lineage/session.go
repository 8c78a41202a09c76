package lineage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/leapstack-labs/leaplineage/internal/metrics"
	"github.com/leapstack-labs/leaplineage/internal/sqlrefs"
	"github.com/leapstack-labs/leaplineage/pkg/core"
)

// TracerName is the instrumentation scope of the execution boundary spans.
const TracerName = "github.com/leapstack-labs/leaplineage/lineage"

// Emitter delivers lineage events to a collector.
// Emit must return only after the event is sent or queued.
type Emitter interface {
	Emit(ctx context.Context, event *core.LineageEvent) error
}

// Extractor turns query text into the datasets it reads.
type Extractor interface {
	ExtractInputs(sql string) ([]core.TableRef, error)
}

// ExtractorFunc adapts a function to the Extractor interface.
type ExtractorFunc func(sql string) ([]core.TableRef, error)

// ExtractInputs calls f.
func (f ExtractorFunc) ExtractInputs(sql string) ([]core.TableRef, error) {
	return f(sql)
}

// Registry stores live runs. Implemented by *registry.RunRegistry.
type Registry interface {
	Resolver
	Begin(modelID, namespace, name string) string
	Take(key string) (*core.RunMeta, bool)
}

var (
	// ErrRegistryRequired is returned by NewSession without a registry.
	ErrRegistryRequired = errors.New("lineage: run registry is required")
	// ErrEmitterRequired is returned by NewSession without an emitter.
	ErrEmitterRequired = errors.New("lineage: emitter is required")
	// ErrInvalidModel is returned by Begin for a nil model or one without a unique id.
	ErrInvalidModel = errors.New("lineage: model must have a unique id")
)

// SessionConfig holds session configuration.
type SessionConfig struct {
	// Registry stores live runs (required)
	Registry Registry
	// Emitter delivers events (required)
	Emitter Emitter
	// Extractor finds model inputs (optional, defaults to sqlrefs)
	Extractor Extractor
	// Recoverer attributes failures to runs (optional, defaults to MarkerRecoverer)
	Recoverer Recoverer
	// Logger is the structured logger (optional, uses discard if nil)
	Logger *slog.Logger
	// Clock stamps events (optional, defaults to time.Now)
	Clock func() time.Time
	// Metrics records emission and classification counters (optional)
	Metrics *metrics.Metrics
	// Tracer opens execution boundary spans (optional, defaults to the global provider)
	Tracer trace.Tracer
	// Impersonating adds impersonation guidance to auth errors
	Impersonating bool
	// Delimiters truncate runtime error messages (optional, defaults to DefaultDelimiters)
	Delimiters []string
}

// Session correlates the runs of one host invocation with lineage events.
type Session struct {
	registry  Registry
	emitter   Emitter
	extractor Extractor
	recoverer Recoverer
	logger    *slog.Logger
	clock     func() time.Time
	metrics   *metrics.Metrics
	tracer    trace.Tracer
	translate TranslateOptions
}

// NewSession creates a session.
func NewSession(cfg SessionConfig) (*Session, error) {
	if cfg.Registry == nil {
		return nil, ErrRegistryRequired
	}
	if cfg.Emitter == nil {
		return nil, ErrEmitterRequired
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	extractor := cfg.Extractor
	if extractor == nil {
		extractor = sqlrefs.Extractor{}
	}
	recoverer := cfg.Recoverer
	if recoverer == nil {
		recoverer = MarkerRecoverer{Registry: cfg.Registry}
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	tracer := cfg.Tracer
	if tracer == nil {
		tracer = otel.Tracer(TracerName)
	}

	return &Session{
		registry:  cfg.Registry,
		emitter:   cfg.Emitter,
		extractor: extractor,
		recoverer: recoverer,
		logger:    logger,
		clock:     clock,
		metrics:   cfg.Metrics,
		tracer:    tracer,
		translate: TranslateOptions{
			Impersonating: cfg.Impersonating,
			Delimiters:    cfg.Delimiters,
		},
	}, nil
}

// Begin registers a run for m and emits its START event.
// Input extraction and emission failures are logged; the run id is still returned
// so the caller can thread it through the warehouse call.
func (s *Session) Begin(ctx context.Context, m *core.Model) (string, error) {
	if m == nil || m.UniqueID == "" {
		return "", ErrInvalidModel
	}

	namespace := m.Namespace()

	inputs, err := s.extractor.ExtractInputs(m.CompiledSQL)
	if err != nil {
		s.logger.Error("cannot parse model sql, emitting start without inputs",
			"model", m.UniqueID, "error", err)
		inputs = nil
	}
	for i := range inputs {
		if inputs[i].Namespace == "" {
			inputs[i].Namespace = namespace
		}
	}
	outputs := []core.TableRef{{Namespace: namespace, Name: m.OutputName()}}

	runID := s.registry.Begin(m.UniqueID, namespace, m.UniqueID)
	meta, ok := s.registry.Resolve(runID)
	if !ok {
		return "", fmt.Errorf("run %s vanished from registry", runID)
	}

	s.logger.Info("emit start", "run_id", runID, "model", m.UniqueID, "inputs", len(inputs))
	s.emit(ctx, BuildStart(meta, s.clock(), m.OriginalFilePath, m.CompiledSQL, inputs, outputs))

	return runID, nil
}

// Complete emits the COMPLETE event for runID and retires the run.
// Returns ErrRunNotFound if the run is unknown or already terminated.
func (s *Session) Complete(ctx context.Context, runID string) error {
	meta, ok := s.registry.Take(runID)
	if !ok {
		return &IdentityRecoveryError{Token: runID, Err: ErrRunNotFound}
	}

	s.emit(ctx, BuildComplete(meta, s.clock()))
	s.logger.Debug("lineage complete event emitted", "run_id", meta.RunID)
	return nil
}

// Execute runs fn with query inside the classification boundary.
//
// When fn fails, the run is recovered from query and its FAIL event is emitted
// before the classified error is returned. If the run cannot be recovered no
// event is emitted and the failure to recover is logged at error level. The
// error is never swallowed.
func (s *Session) Execute(ctx context.Context, query string, fn func(ctx context.Context, query string) error) error {
	ctx, span := s.tracer.Start(ctx, "lineage.execute")
	defer span.End()

	err := fn(ctx, query)
	if err == nil {
		return nil
	}

	if runID, ok := s.fail(ctx, query); ok {
		span.SetAttributes(attribute.String("lineage.run_id", runID))
	}

	kind := Classify(err)
	s.metrics.ErrorClassified(kind.String())
	s.logger.Debug("unhandled error while running", "kind", kind.String(), "sql", query, "error", err)

	classified := Translate(err, s.translate)
	span.SetAttributes(attribute.String("lineage.error_kind", kind.String()))
	span.RecordError(classified)
	span.SetStatus(codes.Error, kind.String())

	return classified
}

// Query is Execute for calls that produce a value.
func Query[T any](ctx context.Context, s *Session, query string, fn func(ctx context.Context, query string) (T, error)) (T, error) {
	var out T
	err := s.Execute(ctx, query, func(ctx context.Context, q string) error {
		v, err := fn(ctx, q)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return out, nil
}

// RecoverRunFromQuery finds the live run a query belongs to.
func (s *Session) RecoverRunFromQuery(ctx context.Context, query string) (*core.RunMeta, error) {
	return s.recoverer.RecoverRunFromQuery(ctx, query)
}

// fail emits the FAIL event of the run query belongs to.
// Reports the run id and whether a FAIL event was handed to the emitter.
func (s *Session) fail(ctx context.Context, query string) (string, bool) {
	meta, err := s.recoverer.RecoverRunFromQuery(ctx, query)
	if err == nil {
		// Take guards against a concurrent or repeated termination of the same run.
		taken, ok := s.registry.Take(meta.RunID)
		if !ok {
			err = &IdentityRecoveryError{Token: meta.RunID, Err: ErrRunNotFound}
		}
		meta = taken
	}
	if err != nil {
		reason := "unknown"
		var idErr *IdentityRecoveryError
		if errors.As(err, &idErr) {
			reason = idErr.Reason()
		}
		s.metrics.RecoveryFailed(reason)
		s.logger.Error("can't emit lineage event when run failed: can't find run id",
			"reason", reason, "error", err)
		return "", false
	}

	s.logger.Info("run failed", "run_id", meta.RunID, "model", meta.Name)
	s.emit(ctx, BuildFail(meta, s.clock()))
	s.logger.Debug("lineage fail event emitted", "run_id", meta.RunID)
	return meta.RunID, true
}

// emit hands ev to the emitter synchronously. Transport errors are logged and
// counted; lineage bookkeeping never blocks the caller's error propagation.
// Cancellation of ctx is not propagated: a run retired by Take must still get
// its terminal event when the host cancelled the call that failed.
func (s *Session) emit(ctx context.Context, ev *core.LineageEvent) {
	if err := s.emitter.Emit(context.WithoutCancel(ctx), ev); err != nil {
		s.metrics.EmitFailed(string(ev.EventType))
		s.logger.Error("failed to emit lineage event",
			"event_type", ev.EventType, "run_id", ev.Run.RunID, "error", err)
		return
	}
	s.metrics.EventEmitted(string(ev.EventType))
}
