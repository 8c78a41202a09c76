package duckdb

import (
	"fmt"
	"sort"
	"strings"

	"github.com/go-viper/mapstructure/v2"
)

// Params holds DuckDB-specific configuration.
// Parsed from adapter.Config.Params using mapstructure.
type Params struct {
	// Extensions to install and load (e.g., "httpfs", "spatial", "json")
	Extensions []string `mapstructure:"extensions"`

	// Settings to apply at session level (e.g., memory_limit, threads)
	Settings map[string]string `mapstructure:"settings"`
}

// ParseParams decodes adapter params. Unknown keys are rejected.
func ParseParams(raw map[string]any) (*Params, error) {
	p := &Params{}
	if len(raw) == 0 {
		return p, nil
	}

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           p,
		ErrorUnused:      true,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create params decoder: %w", err)
	}
	if err := dec.Decode(raw); err != nil {
		return nil, fmt.Errorf("invalid duckdb params: %w", err)
	}
	return p, nil
}

// SetupStatements returns the statements that apply p to a fresh connection,
// extensions first and settings in key order.
func (p *Params) SetupStatements() []string {
	var stmts []string
	for _, ext := range p.Extensions {
		stmts = append(stmts, "INSTALL "+ext, "LOAD "+ext)
	}

	keys := make([]string, 0, len(p.Settings))
	for k := range p.Settings {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		stmts = append(stmts, fmt.Sprintf("SET %s = '%s'", k, strings.ReplaceAll(p.Settings[k], "'", "''")))
	}
	return stmts
}
