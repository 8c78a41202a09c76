// Package testutil provides test utilities for structured logging.
package testutil

import (
	"context"
	"log/slog"
	"sync"
	"testing"
)

// NewTestLogger returns a logger that writes to t.Log().
// Logs only appear on test failure or when running with -v.
func NewTestLogger(t testing.TB) *slog.Logger {
	t.Helper()
	return slog.New(slog.NewTextHandler(testWriter{t}, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
}

type testWriter struct {
	t testing.TB
}

func (w testWriter) Write(p []byte) (n int, err error) {
	w.t.Helper()
	w.t.Log(string(p))
	return len(p), nil
}

// Record is a captured log line.
type Record struct {
	Level   slog.Level
	Message string
	Attrs   map[string]any
}

// RecordingHandler is a slog.Handler that keeps every record for assertions.
type RecordingHandler struct {
	mu      *sync.Mutex
	records *[]Record
	attrs   []slog.Attr
}

// NewRecordingLogger returns a logger and the handler capturing its records.
func NewRecordingLogger() (*slog.Logger, *RecordingHandler) {
	h := &RecordingHandler{mu: &sync.Mutex{}, records: &[]Record{}}
	return slog.New(h), h
}

// Enabled accepts every level.
func (h *RecordingHandler) Enabled(context.Context, slog.Level) bool { return true }

// Handle stores the record.
func (h *RecordingHandler) Handle(_ context.Context, r slog.Record) error {
	attrs := make(map[string]any, len(h.attrs)+r.NumAttrs())
	for _, a := range h.attrs {
		attrs[a.Key] = a.Value.Any()
	}
	r.Attrs(func(a slog.Attr) bool {
		attrs[a.Key] = a.Value.Any()
		return true
	})

	h.mu.Lock()
	defer h.mu.Unlock()
	*h.records = append(*h.records, Record{Level: r.Level, Message: r.Message, Attrs: attrs})
	return nil
}

// WithAttrs returns a handler sharing the same record buffer.
func (h *RecordingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := append(append([]slog.Attr{}, h.attrs...), attrs...)
	return &RecordingHandler{mu: h.mu, records: h.records, attrs: merged}
}

// WithGroup is not needed by the code under test; groups are flattened.
func (h *RecordingHandler) WithGroup(string) slog.Handler { return h }

// Records returns a copy of the captured records.
func (h *RecordingHandler) Records() []Record {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]Record(nil), *h.records...)
}

// AtLevel returns captured records with exactly the given level.
func (h *RecordingHandler) AtLevel(level slog.Level) []Record {
	var out []Record
	for _, r := range h.Records() {
		if r.Level == level {
			out = append(out, r)
		}
	}
	return out
}
