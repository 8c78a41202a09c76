package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/leapstack-labs/leaplineage/internal/dag"
	"github.com/leapstack-labs/leaplineage/internal/lineage"
	"github.com/leapstack-labs/leaplineage/pkg/core"
)

// Run executes models level by level. Models in a level run in parallel;
// models downstream of a failure are skipped. The returned error joins the
// classified errors of every failed model.
func (e *Engine) Run(ctx context.Context, models []*core.Model) (*RunResult, error) {
	started := time.Now()
	e.logger.Info("starting run", "models", len(models))

	g, err := dag.Build(models, e.inputs)
	if err != nil {
		return nil, err
	}
	levels, err := g.ExecutionLevels()
	if err != nil {
		return nil, err
	}

	var (
		mu      sync.Mutex
		results = make(map[string]ModelResult, len(models))
		order   []string
	)
	record := func(r ModelResult) {
		mu.Lock()
		defer mu.Unlock()
		results[r.UniqueID] = r
		order = append(order, r.UniqueID)
	}

	for i, level := range levels {
		e.logger.Debug("executing level", "level", i, "models", len(level))

		// Parents belong to earlier levels, so skips are decided before any
		// model of this level starts writing results.
		var runnable []*core.Model
		for _, id := range level {
			if upstream := failedParent(g, results, id); upstream != "" {
				e.logger.Info("model skipped", "model", id, "upstream", upstream)
				record(ModelResult{UniqueID: id, Status: StatusSkipped})
				continue
			}
			m, _ := g.Model(id)
			runnable = append(runnable, m)
		}

		var eg errgroup.Group
		eg.SetLimit(e.concurrency)
		for _, m := range runnable {
			eg.Go(func() error {
				record(e.runModel(ctx, m))
				return nil
			})
		}
		_ = eg.Wait()
	}

	res := &RunResult{Duration: time.Since(started)}
	var errs []error
	for _, id := range order {
		r := results[id]
		res.Models = append(res.Models, r)
		if r.Status == StatusFailed {
			errs = append(errs, fmt.Errorf("%s: %w", id, r.Err))
		}
	}

	e.logger.Info("run finished",
		"success", res.Count(StatusSuccess),
		"failed", res.Count(StatusFailed),
		"skipped", res.Count(StatusSkipped),
		"duration", res.Duration)
	return res, errors.Join(errs...)
}

// failedParent returns a parent of id that failed or was skipped.
func failedParent(g *dag.Graph, results map[string]ModelResult, id string) string {
	for _, p := range g.Parents(id) {
		if r, ok := results[p]; ok && r.Status != StatusSuccess {
			return p
		}
	}
	return ""
}

// runModel executes one model as one lineage run.
func (e *Engine) runModel(ctx context.Context, m *core.Model) ModelResult {
	started := time.Now()
	res := ModelResult{UniqueID: m.UniqueID}
	fail := func(err error) ModelResult {
		res.Status = StatusFailed
		res.Err = err
		res.Duration = time.Since(started)
		e.logger.Info("model failed", "model", m.UniqueID, "run_id", res.RunID, "error", err)
		return res
	}

	stmts, err := materialize(e.db.DialectName(), m)
	if err != nil {
		return fail(err)
	}

	runID, err := e.session.Begin(ctx, m)
	if err != nil {
		return fail(err)
	}
	res.RunID = runID

	if err := e.ensureSchema(ctx, m); err != nil {
		return fail(err)
	}
	for _, stmt := range stmts {
		if err := e.session.Execute(ctx, lineage.EmbedMarker(m.UniqueID, stmt), e.db.Exec); err != nil {
			return fail(err)
		}
	}

	if m.Materialized != core.MaterializationView {
		count := lineage.EmbedMarker(m.UniqueID, fmt.Sprintf("SELECT count(*) FROM %s", m.OutputName()))
		rows, err := lineage.Query(ctx, e.session, count, e.db.QueryScalar)
		if err != nil {
			return fail(err)
		}
		res.Rows = rows
	}

	if err := e.session.Complete(ctx, runID); err != nil {
		e.logger.Error("cannot complete lineage run", "model", m.UniqueID, "run_id", runID, "error", err)
	}

	res.Status = StatusSuccess
	res.Duration = time.Since(started)
	e.logger.Debug("model executed", "model", m.UniqueID, "run_id", runID, "rows", res.Rows, "duration", res.Duration)
	return res
}

// inputs returns the relation names m reads. Unparseable SQL yields no
// dependencies; the session reports the same failure when the run begins.
func (e *Engine) inputs(m *core.Model) ([]string, error) {
	refs, err := e.extractor.ExtractInputs(m.CompiledSQL)
	if err != nil {
		e.logger.Warn("cannot extract model dependencies", "model", m.UniqueID, "error", err)
		return nil, nil
	}
	names := make([]string, 0, len(refs))
	for _, r := range refs {
		names = append(names, r.Name)
	}
	return names, nil
}

// Select returns the models matching selectors, by name or unique id, plus
// their downstream dependents when includeDownstream is set. An empty
// selector list selects every model.
func (e *Engine) Select(models []*core.Model, selectors []string, includeDownstream bool) ([]*core.Model, error) {
	if len(selectors) == 0 {
		return models, nil
	}

	g, err := dag.Build(models, e.inputs)
	if err != nil {
		return nil, err
	}

	picked := make(map[string]bool)
	for _, sel := range selectors {
		sel = strings.TrimSpace(sel)
		found := false
		for _, m := range models {
			if m.UniqueID == sel || m.Name == sel {
				picked[m.UniqueID] = true
				found = true
				if includeDownstream {
					for _, d := range g.Downstream(m.UniqueID) {
						picked[d] = true
					}
				}
			}
		}
		if !found {
			return nil, fmt.Errorf("no model matches selector %q", sel)
		}
	}

	var out []*core.Model
	for _, m := range models {
		if picked[m.UniqueID] {
			out = append(out, m)
		}
	}
	return out, nil
}
