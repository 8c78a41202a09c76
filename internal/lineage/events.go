package lineage

import (
	"time"

	"github.com/leapstack-labs/leaplineage/pkg/core"
)

// BuildStart constructs the START event of a run. Facets and datasets are only
// asserted here; terminal events carry empty lists.
func BuildStart(meta *core.RunMeta, at time.Time, sourceLocation, sql string, inputs, outputs []core.TableRef) *core.LineageEvent {
	producer := Producer()
	ev := newEvent(core.EventTypeStart, meta, at)
	ev.Job.Facets = &core.JobFacets{
		SourceCodeLocation: &core.SourceCodeLocationFacet{
			BaseFacet: core.BaseFacet{Producer: producer, SchemaURL: core.SourceCodeLocationSchemaURL},
			URL:       sourceLocation,
		},
		SQL: &core.SQLFacet{
			BaseFacet: core.BaseFacet{Producer: producer, SchemaURL: core.SQLJobFacetSchemaURL},
			Query:     sql,
		},
	}
	ev.Inputs = toDatasets(inputs)
	ev.Outputs = toDatasets(outputs)
	return ev
}

// BuildComplete constructs the COMPLETE event of a run.
func BuildComplete(meta *core.RunMeta, at time.Time) *core.LineageEvent {
	return newEvent(core.EventTypeComplete, meta, at)
}

// BuildFail constructs the FAIL event of a run.
func BuildFail(meta *core.RunMeta, at time.Time) *core.LineageEvent {
	return newEvent(core.EventTypeFail, meta, at)
}

func newEvent(t core.EventType, meta *core.RunMeta, at time.Time) *core.LineageEvent {
	return &core.LineageEvent{
		EventType: t,
		EventTime: at.UTC(),
		Run:       core.Run{RunID: meta.RunID},
		Job:       core.Job{Namespace: meta.Namespace, Name: meta.Name},
		Producer:  Producer(),
		SchemaURL: core.RunEventSchemaURL,
		Inputs:    []core.Dataset{},
		Outputs:   []core.Dataset{},
	}
}

func toDatasets(refs []core.TableRef) []core.Dataset {
	out := make([]core.Dataset, 0, len(refs))
	for _, ref := range refs {
		out = append(out, core.DatasetFromRef(ref))
	}
	return out
}
