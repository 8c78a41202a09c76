package engine

import (
	"context"
	"fmt"

	"github.com/leapstack-labs/leaplineage/internal/lineage"
	"github.com/leapstack-labs/leaplineage/pkg/core"
)

// materialize returns the statements that build m, in order.
func materialize(dialect string, m *core.Model) ([]string, error) {
	rel := m.OutputName()

	switch m.Materialized {
	case core.MaterializationTable, "":
		if dialect == "postgres" {
			return []string{
				fmt.Sprintf("DROP TABLE IF EXISTS %s CASCADE", rel),
				fmt.Sprintf("CREATE TABLE %s AS\n%s", rel, m.CompiledSQL),
			}, nil
		}
		return []string{fmt.Sprintf("CREATE OR REPLACE TABLE %s AS\n%s", rel, m.CompiledSQL)}, nil

	case core.MaterializationView:
		if dialect == "postgres" {
			return []string{
				fmt.Sprintf("DROP VIEW IF EXISTS %s CASCADE", rel),
				fmt.Sprintf("CREATE VIEW %s AS\n%s", rel, m.CompiledSQL),
			}, nil
		}
		return []string{fmt.Sprintf("CREATE OR REPLACE VIEW %s AS\n%s", rel, m.CompiledSQL)}, nil

	default:
		return nil, fmt.Errorf("unknown materialization: %s", m.Materialized)
	}
}

// ensureSchema creates the schema of m once per engine.
// The statement runs inside the execution boundary so a failure is reported
// against the model that needed the schema.
func (e *Engine) ensureSchema(ctx context.Context, m *core.Model) error {
	if m.Schema == "" {
		return nil
	}

	e.schemaMu.Lock()
	defer e.schemaMu.Unlock()
	if e.schemas[m.Schema] {
		return nil
	}

	stmt := lineage.EmbedMarker(m.UniqueID, fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", m.Schema))
	if err := e.session.Execute(ctx, stmt, e.db.Exec); err != nil {
		return err
	}
	e.schemas[m.Schema] = true
	return nil
}
