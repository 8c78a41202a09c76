// Package config provides configuration management for the leaplineage CLI.
package config

import (
	"time"

	"github.com/leapstack-labs/leaplineage/internal/transport"
	"github.com/leapstack-labs/leaplineage/pkg/adapter"
)

// Default configuration values.
const (
	DefaultModelsDir   = "models"
	DefaultConcurrency = 4
	DefaultTargetType  = "duckdb"
	DefaultTransport   = transport.TypeSQLite
	DefaultStateFile   = ".leaplineage/events.db"
	DefaultTimeout     = 5 * time.Second
	DefaultMaxRetries  = 3
)

// ConfigFileNames are searched in order in the project root.
var ConfigFileNames = []string{"leaplineage.yaml", "leaplineage.yml"}

// Config holds all CLI configuration options.
type Config struct {
	// ProjectRoot is the directory relative paths are resolved against
	ProjectRoot string `koanf:"-"`

	Project     string         `koanf:"project"`
	ModelsDir   string         `koanf:"models_dir"`
	Concurrency int            `koanf:"concurrency"`
	MetricsAddr string         `koanf:"metrics_addr"`
	Verbose     bool           `koanf:"verbose"`
	Target      *TargetConfig  `koanf:"target"`
	Lineage     *LineageConfig `koanf:"lineage"`
}

// TargetConfig describes the warehouse models are materialized in.
type TargetConfig struct {
	Type     string            `koanf:"type"`
	Database string            `koanf:"database"`
	Host     string            `koanf:"host"`
	Port     int               `koanf:"port"`
	User     string            `koanf:"user"`
	Password string            `koanf:"password"`
	Schema   string            `koanf:"schema"`
	Options  map[string]string `koanf:"options"`
	Params   map[string]any    `koanf:"params"`
}

// LineageConfig controls where lineage events are delivered.
type LineageConfig struct {
	Transport     string        `koanf:"transport"`
	URL           string        `koanf:"url"`
	Timeout       time.Duration `koanf:"timeout"`
	APIKey        string        `koanf:"api_key"`
	MaxRetries    uint64        `koanf:"max_retries"`
	Topic         string        `koanf:"topic"`
	StatePath     string        `koanf:"state_path"`
	Impersonating bool          `koanf:"impersonating"`
	Delimiters    []string      `koanf:"delimiters"`
}

// AdapterConfig converts the target to a warehouse adapter config.
// Embedded warehouses take their file path from database.
func (t *TargetConfig) AdapterConfig() adapter.Config {
	cfg := adapter.Config{
		Type:     t.Type,
		Host:     t.Host,
		Port:     t.Port,
		Database: t.Database,
		Username: t.User,
		Password: t.Password,
		Schema:   t.Schema,
		Options:  t.Options,
		Params:   t.Params,
	}
	if t.Type == "duckdb" {
		cfg.Path = t.Database
		cfg.Database = ""
	}
	return cfg
}

// TransportConfig converts the lineage section to a transport config.
func (l *LineageConfig) TransportConfig() transport.Config {
	return transport.Config{
		Type:       l.Transport,
		URL:        l.URL,
		APIKey:     l.APIKey,
		Timeout:    l.Timeout,
		MaxRetries: l.MaxRetries,
		Topic:      l.Topic,
	}
}
