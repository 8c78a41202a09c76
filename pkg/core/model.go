package core

import "strings"

// Model represents a SQL model (transformation unit) as handed to the lineage
// session by the host runner.
type Model struct {
	// UniqueID is the stable identifier of the model within the project
	// (e.g., "model.jaffle_shop.stg_customers").
	UniqueID string
	// FQN is the fully qualified name; FQN[0] is the project name.
	FQN []string
	// RelationName is the warehouse relation the model writes (e.g., "staging.stg_customers")
	RelationName string
	// OriginalFilePath is the SQL file path relative to the project root
	OriginalFilePath string
	// CompiledSQL is the SELECT statement after frontmatter removal
	CompiledSQL string
	// Materialized defines how the model is stored: table, view
	Materialized string
	// Schema is the target schema of the relation
	Schema string
	// Name is the model name (filename without extension unless overridden)
	Name string
	// Description is a human-readable description of the model
	Description string
}

// Namespace returns the lineage namespace of the model: the first FQN component.
func (m *Model) Namespace() string {
	if m == nil || len(m.FQN) == 0 {
		return ""
	}
	return m.FQN[0]
}

// OutputName returns the relation name with identifier quoting removed.
func (m *Model) OutputName() string {
	return strings.NewReplacer("`", "", `"`, "").Replace(m.RelationName)
}
