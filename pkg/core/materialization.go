package core

// Materialization constants for model types.
const (
	MaterializationTable = "table"
	MaterializationView  = "view"
)

// IsValidMaterialization reports whether m is a supported materialization.
func IsValidMaterialization(m string) bool {
	return m == MaterializationTable || m == MaterializationView
}
