// Package registry provides the in-memory run registry.
// It maps both a model's unique id and the run id minted for it to the same
// RunMeta record, so COMPLETE/FAIL handling can find the run from either key.
package registry

import (
	"sync"

	"github.com/google/uuid"
	"github.com/leapstack-labs/leaplineage/pkg/core"
)

// entry ties a RunMeta to the model key it was registered under.
type entry struct {
	meta    *core.RunMeta
	modelID string
}

// RunRegistry is the single source of truth for "what run is this".
// Create one per execution session; it is not a process-wide singleton.
type RunRegistry struct {
	mu sync.RWMutex

	// byKey maps model ids and run ids to their entry:
	//   "model.shop.stg_orders" → entry{meta: run 7f3c...}
	//   "7f3c..."               → entry{meta: run 7f3c...}
	byKey map[string]*entry

	// newID mints run ids. Replaced in tests only.
	newID func() string
}

// New creates an empty run registry.
func New() *RunRegistry {
	return &RunRegistry{
		byKey: make(map[string]*entry),
		newID: func() string { return uuid.NewString() },
	}
}

// Begin registers a new run for modelID and returns its run id.
// The same RunMeta instance is stored under modelID and the run id. Beginning a
// model again rebinds modelID to the new run; the previous run stays resolvable
// by its run id until retired.
func (r *RunRegistry) Begin(modelID, namespace, name string) string {
	runID := r.newID()
	e := &entry{
		meta: &core.RunMeta{
			RunID:     runID,
			Namespace: namespace,
			Name:      name,
		},
		modelID: modelID,
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.byKey[runID] = e
	if modelID != "" {
		r.byKey[modelID] = e
	}
	return runID
}

// Resolve looks up a run by model id or run id.
// Returns false if the run was never begun or has been retired.
func (r *RunRegistry) Resolve(key string) (*core.RunMeta, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.byKey[key]
	if !ok {
		return nil, false
	}
	return e.meta, true
}

// Retire removes a run after its terminal event.
// The model key is only removed while it still points at this run.
func (r *RunRegistry) Retire(runID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.byKey[runID]
	if !ok || e.meta.RunID != runID {
		return
	}
	r.removeLocked(e)
}

// Take resolves key and retires the run in one step. Only one caller can take
// a given run, which is what keeps terminal events from being emitted twice.
func (r *RunRegistry) Take(key string) (*core.RunMeta, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.byKey[key]
	if !ok {
		return nil, false
	}
	r.removeLocked(e)
	return e.meta, true
}

func (r *RunRegistry) removeLocked(e *entry) {
	delete(r.byKey, e.meta.RunID)
	if cur, ok := r.byKey[e.modelID]; ok && cur == e {
		delete(r.byKey, e.modelID)
	}
}

// Len returns the number of live runs.
func (r *RunRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	count := 0
	for key, e := range r.byKey {
		if key == e.meta.RunID {
			count++
		}
	}
	return count
}
