// Package dag orders models by their table dependencies.
// It supports cycle detection, topological sorting, execution levels and
// downstream lookup for failure propagation.
package dag

import (
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/leapstack-labs/leaplineage/pkg/core"
)

// Graph is a directed acyclic graph of models keyed by unique id.
type Graph struct {
	models  map[string]*core.Model
	edges   map[string][]string // parent -> children (dependents)
	parents map[string][]string // child -> parents (dependencies)
}

// NewGraph creates a new empty graph.
func NewGraph() *Graph {
	return &Graph{
		models:  make(map[string]*core.Model),
		edges:   make(map[string][]string),
		parents: make(map[string][]string),
	}
}

// InputsFunc returns the relation names a model reads.
type InputsFunc func(m *core.Model) ([]string, error)

// Build creates the graph of models. A model depends on every other model
// whose relation name appears among its inputs. Inputs matching no model are
// sources and add no edge.
func Build(models []*core.Model, inputs InputsFunc) (*Graph, error) {
	g := NewGraph()
	byRelation := make(map[string]string, len(models))
	for _, m := range models {
		if err := g.AddModel(m); err != nil {
			return nil, err
		}
		byRelation[normalizeRelation(m.OutputName())] = m.UniqueID
	}

	for _, m := range models {
		refs, err := inputs(m)
		if err != nil {
			return nil, fmt.Errorf("failed to extract inputs of %s: %w", m.UniqueID, err)
		}
		for _, ref := range refs {
			parent, ok := byRelation[normalizeRelation(ref)]
			if !ok || parent == m.UniqueID {
				continue
			}
			if err := g.AddEdge(parent, m.UniqueID); err != nil {
				return nil, err
			}
		}
	}
	return g, nil
}

func normalizeRelation(name string) string {
	return strings.ToLower(name)
}

// AddModel adds a model node to the graph.
func (g *Graph) AddModel(m *core.Model) error {
	if m == nil || m.UniqueID == "" {
		return fmt.Errorf("model without unique id")
	}
	if _, exists := g.models[m.UniqueID]; exists {
		return fmt.Errorf("duplicate model %q", m.UniqueID)
	}
	g.models[m.UniqueID] = m
	g.edges[m.UniqueID] = []string{}
	g.parents[m.UniqueID] = []string{}
	return nil
}

// AddEdge adds a directed edge from parent to child (child depends on parent).
func (g *Graph) AddEdge(parentID, childID string) error {
	if _, exists := g.models[parentID]; !exists {
		return fmt.Errorf("parent node %q does not exist", parentID)
	}
	if _, exists := g.models[childID]; !exists {
		return fmt.Errorf("child node %q does not exist", childID)
	}
	if parentID == childID {
		return fmt.Errorf("self-loop detected: %s", parentID)
	}

	if !slices.Contains(g.edges[parentID], childID) {
		g.edges[parentID] = append(g.edges[parentID], childID)
	}
	if !slices.Contains(g.parents[childID], parentID) {
		g.parents[childID] = append(g.parents[childID], parentID)
	}
	return nil
}

// Model returns a model by unique id.
func (g *Graph) Model(id string) (*core.Model, bool) {
	m, ok := g.models[id]
	return m, ok
}

// Parents returns the dependencies of a model, sorted.
func (g *Graph) Parents(id string) []string {
	return sorted(g.parents[id])
}

// Children returns the dependents of a model, sorted.
func (g *Graph) Children(id string) []string {
	return sorted(g.edges[id])
}

// Len returns the number of models in the graph.
func (g *Graph) Len() int {
	return len(g.models)
}

// HasCycle returns true if the graph contains a cycle, along with the cycle path.
func (g *Graph) HasCycle() (bool, []string) {
	visited := make(map[string]bool)
	recStack := make(map[string]bool)
	path := make(map[string]string)

	var cyclePath []string

	var dfs func(id string) bool
	dfs = func(id string) bool {
		visited[id] = true
		recStack[id] = true

		for _, childID := range g.edges[id] {
			if !visited[childID] {
				path[childID] = id
				if dfs(childID) {
					return true
				}
			} else if recStack[childID] {
				cyclePath = []string{childID}
				for curr := id; curr != childID; curr = path[curr] {
					cyclePath = append([]string{curr}, cyclePath...)
				}
				cyclePath = append([]string{childID}, cyclePath...)
				return true
			}
		}

		recStack[id] = false
		return false
	}

	for _, id := range g.ids() {
		if !visited[id] && dfs(id) {
			return true, cyclePath
		}
	}
	return false, nil
}

// CycleError is returned when the models depend on each other in a loop.
type CycleError struct {
	Path []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("cycle detected: %s", strings.Join(e.Path, " -> "))
}

// TopologicalSort returns models in dependency order.
func (g *Graph) TopologicalSort() ([]*core.Model, error) {
	if hasCycle, cyclePath := g.HasCycle(); hasCycle {
		return nil, &CycleError{Path: cyclePath}
	}

	visited := make(map[string]bool)
	var result []*core.Model

	var visit func(id string)
	visit = func(id string) {
		if visited[id] {
			return
		}
		visited[id] = true
		for _, parentID := range g.Parents(id) {
			visit(parentID)
		}
		result = append(result, g.models[id])
	}

	for _, id := range g.ids() {
		visit(id)
	}
	return result, nil
}

// ExecutionLevels returns model ids grouped by execution level.
// Models at level N can run in parallel after level N-1 completes.
// Level 0 contains models with no dependencies.
func (g *Graph) ExecutionLevels() ([][]string, error) {
	if hasCycle, cyclePath := g.HasCycle(); hasCycle {
		return nil, &CycleError{Path: cyclePath}
	}

	assigned := make(map[string]int)

	var getLevel func(id string) int
	getLevel = func(id string) int {
		if level, ok := assigned[id]; ok {
			return level
		}
		level := 0
		for _, parentID := range g.parents[id] {
			if l := getLevel(parentID) + 1; l > level {
				level = l
			}
		}
		assigned[id] = level
		return level
	}

	maxLevel := -1
	for _, id := range g.ids() {
		if level := getLevel(id); level > maxLevel {
			maxLevel = level
		}
	}

	levels := make([][]string, maxLevel+1)
	for id, level := range assigned {
		levels[level] = append(levels[level], id)
	}
	for i := range levels {
		sort.Strings(levels[i])
	}
	return levels, nil
}

// Downstream returns every model that depends on id, directly or transitively.
// id itself is not included.
func (g *Graph) Downstream(id string) []string {
	seen := make(map[string]bool)
	var mark func(nodeID string)
	mark = func(nodeID string) {
		for _, n := range g.edges[nodeID] {
			if !seen[n] {
				seen[n] = true
				mark(n)
			}
		}
	}
	mark(id)

	result := make([]string, 0, len(seen))
	for n := range seen {
		result = append(result, n)
	}
	sort.Strings(result)
	return result
}

func (g *Graph) ids() []string {
	ids := make([]string, 0, len(g.models))
	for id := range g.models {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func sorted(ids []string) []string {
	out := slices.Clone(ids)
	sort.Strings(out)
	return out
}
