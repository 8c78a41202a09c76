package transport

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/leapstack-labs/leaplineage/internal/jsoncodec"
	"github.com/leapstack-labs/leaplineage/pkg/core"
)

// ConsoleEmitter writes events as JSON lines.
type ConsoleEmitter struct {
	mu sync.Mutex
	w  io.Writer
}

// NewConsoleEmitter creates an emitter writing to w, or stdout if w is nil.
func NewConsoleEmitter(w io.Writer) *ConsoleEmitter {
	if w == nil {
		w = os.Stdout
	}
	return &ConsoleEmitter{w: w}
}

// Emit writes ev as a single line.
func (e *ConsoleEmitter) Emit(_ context.Context, ev *core.LineageEvent) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := jsoncodec.Encode(e.w, ev); err != nil {
		return fmt.Errorf("failed to write lineage event: %w", err)
	}
	return nil
}
