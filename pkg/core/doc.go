// Package core defines the shared language of the leaplineage system.
//
// This package contains:
//   - Run identity (RunMeta) and dataset references (TableRef)
//   - Lineage event payloads (LineageEvent, Job, Dataset, facets)
//   - The model handed over by the host runner (Model)
//   - Normalized warehouse failures (WarehouseError)
//
// The Golden Rule: pkg/core imports ONLY stdlib.
// All other packages depend on core, not the reverse.
package core
