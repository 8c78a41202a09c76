// Package lineage correlates model executions with OpenLineage run events.
//
// A Session owns the run registry for one invocation of the host runner:
//
//	runID, _ := sess.Begin(ctx, model)               // registers the run, emits START
//	sql := lineage.EmbedMarker(model.UniqueID, sql)  // makes failures correlatable
//	err := sess.Execute(ctx, sql, db.Exec)           // emits FAIL and classifies on error
//	if err == nil {
//		_ = sess.Complete(ctx, runID)                // emits COMPLETE
//	}
//
// Warehouse drivers report failures with the failing query text only, so the
// marker embedded in that text is how a FAIL event finds its run. Execute emits
// at most one FAIL per run, always before the classified error is returned.
package lineage

// Version is the integration version reported in the producer field.
// Set at build time via -ldflags.
var Version = "0.1.0"

// ProducerBase identifies this integration in emitted events.
const ProducerBase = "https://github.com/leapstack-labs/leaplineage"

// Producer returns the producer string stamped on every event and facet.
func Producer() string {
	return ProducerBase + "/" + Version
}
