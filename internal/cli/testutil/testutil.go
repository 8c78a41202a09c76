// Package testutil provides test utilities for CLI testing.
package testutil

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// Models of the test project. orders reads stg_orders, so a failure in
// stg_orders skips orders.
var Models = map[string]string{
	"staging/stg_customers.sql": `/*---
materialized: view
---*/
SELECT id AS customer_id, name AS customer_name
FROM (VALUES (1, 'Alice'), (2, 'Bob')) AS raw_customers(id, name)`,
	"staging/stg_orders.sql": `/*---
materialized: table
---*/
SELECT * FROM (VALUES (1, 1, 30), (2, 2, 20), (3, 1, 10)) AS raw_orders(order_id, customer_id, amount)`,
	"marts/orders.sql": `SELECT o.order_id, c.customer_name, o.amount
FROM staging.stg_orders o
JOIN staging.stg_customers c ON c.customer_id = o.customer_id`,
}

// SetupTestProject creates a temporary project with test models and a
// leaplineage.yaml using an in-memory DuckDB target and a SQLite event store.
// Returns the project root and the config file path.
func SetupTestProject(t *testing.T) (string, string) {
	t.Helper()

	root := t.TempDir()
	for rel, content := range Models {
		WriteFile(t, filepath.Join(root, "models", rel), content)
	}

	cfgPath := filepath.Join(root, "leaplineage.yaml")
	WriteFile(t, cfgPath, `project: shop
models_dir: models
concurrency: 1
target:
  type: duckdb
lineage:
  transport: sqlite
  state_path: .leaplineage/events.db
`)
	return root, cfgPath
}

// WriteFile writes content to path, creating parent directories.
func WriteFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("failed to create directory for %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
}

// AssertContains checks that the string contains the expected substring.
func AssertContains(t *testing.T, s, expected string) {
	t.Helper()
	if !strings.Contains(s, expected) {
		t.Errorf("string %q does not contain expected %q", s, expected)
	}
}

// AssertNotContains checks that the string does not contain the substring.
func AssertNotContains(t *testing.T, s, unexpected string) {
	t.Helper()
	if strings.Contains(s, unexpected) {
		t.Errorf("string %q unexpectedly contains %q", s, unexpected)
	}
}
