package core

import "time"

// EventType is the lifecycle transition a lineage event describes.
type EventType string

// Lifecycle transitions. Every run emits START and then exactly one terminal event.
const (
	EventTypeStart    EventType = "START"
	EventTypeComplete EventType = "COMPLETE"
	EventTypeFail     EventType = "FAIL"
)

// IsTerminal reports whether the event type ends a run.
func (t EventType) IsTerminal() bool {
	return t == EventTypeComplete || t == EventTypeFail
}

// Schema URLs for the OpenLineage payloads produced by this module.
const (
	RunEventSchemaURL           = "https://openlineage.io/spec/1-0-5/OpenLineage.json#/definitions/RunEvent"
	SourceCodeLocationSchemaURL = "https://openlineage.io/spec/facets/1-0-0/SourceCodeLocationJobFacet.json"
	SQLJobFacetSchemaURL        = "https://openlineage.io/spec/facets/1-0-0/SQLJobFacet.json"
)

// LineageEvent is an OpenLineage run event.
type LineageEvent struct {
	EventType EventType `json:"eventType"`
	EventTime time.Time `json:"eventTime"`
	Run       Run       `json:"run"`
	Job       Job       `json:"job"`
	Producer  string    `json:"producer"`
	SchemaURL string    `json:"schemaURL"`
	Inputs    []Dataset `json:"inputs"`
	Outputs   []Dataset `json:"outputs"`
}

// Run identifies the run an event belongs to.
type Run struct {
	RunID string `json:"runId"`
}

// Job identifies the model an event describes.
type Job struct {
	Namespace string     `json:"namespace"`
	Name      string     `json:"name"`
	Facets    *JobFacets `json:"facets,omitempty"`
}

// JobFacets are attached to START events only.
type JobFacets struct {
	SourceCodeLocation *SourceCodeLocationFacet `json:"sourceCodeLocation,omitempty"`
	SQL                *SQLFacet                `json:"sql,omitempty"`
}

// BaseFacet carries the fields every OpenLineage facet must have.
type BaseFacet struct {
	Producer  string `json:"_producer"`
	SchemaURL string `json:"_schemaURL"`
}

// SourceCodeLocationFacet points at the file a model was defined in.
type SourceCodeLocationFacet struct {
	BaseFacet
	Type string `json:"type"`
	URL  string `json:"url"`
}

// SQLFacet carries the compiled SQL of a model.
type SQLFacet struct {
	BaseFacet
	Query string `json:"query"`
}

// Dataset is a read or write dependency of a job.
type Dataset struct {
	Namespace string         `json:"namespace"`
	Name      string         `json:"name"`
	Facets    map[string]any `json:"facets,omitempty"`
}

// DatasetFromRef converts a TableRef into an event dataset.
func DatasetFromRef(ref TableRef) Dataset {
	return Dataset{Namespace: ref.Namespace, Name: ref.Name}
}
