package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/leapstack-labs/leaplineage/internal/transport"
	"github.com/leapstack-labs/leaplineage/pkg/adapter"
)

// ValidationError is a config error with a hint on how to fix it.
type ValidationError struct {
	Field   string
	Message string
	Hint    string
}

func (e *ValidationError) Error() string {
	msg := fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
	if e.Hint != "" {
		msg += "\nHint: " + e.Hint
	}
	return msg
}

var transports = []string{
	transport.TypeConsole, transport.TypeGoChannel, transport.TypeHTTP, transport.TypeNone, transport.TypeSQLite,
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.ModelsDir == "" {
		return &ValidationError{Field: "models_dir", Message: "is required"}
	}
	if c.Concurrency < 1 {
		return &ValidationError{
			Field:   "concurrency",
			Message: fmt.Sprintf("must be at least 1, got %d", c.Concurrency),
			Hint:    "Set concurrency to the number of models to run in parallel",
		}
	}
	if err := c.Target.Validate(); err != nil {
		return err
	}
	return c.Lineage.Validate()
}

// Validate checks the target type against the registered adapters.
func (t *TargetConfig) Validate() error {
	if t.Type == "" {
		return &ValidationError{Field: "target.type", Message: "target type is required"}
	}
	if !adapter.IsRegistered(t.Type) {
		return &ValidationError{
			Field:   "target.type",
			Message: fmt.Sprintf("unknown adapter type %q", t.Type),
			Hint:    "Available adapters: " + strings.Join(adapter.ListAdapters(), ", "),
		}
	}
	if t.Type == "postgres" && t.Host == "" {
		return &ValidationError{
			Field:   "target.host",
			Message: "is required for postgres",
			Hint:    "Set target.host in leaplineage.yaml",
		}
	}
	return nil
}

// Validate checks the transport selection.
func (l *LineageConfig) Validate() error {
	switch l.Transport {
	case transport.TypeConsole, transport.TypeGoChannel, transport.TypeNone, transport.TypeSQLite, "":
	case transport.TypeHTTP:
		if l.URL == "" {
			return &ValidationError{
				Field:   "lineage.url",
				Message: "is required for the http transport",
				Hint:    "Set lineage.url or LEAPLINEAGE_LINEAGE__URL",
			}
		}
	default:
		return &ValidationError{
			Field:   "lineage.transport",
			Message: fmt.Sprintf("unknown transport %q", l.Transport),
			Hint:    "Available transports: " + strings.Join(transports, ", "),
		}
	}
	return nil
}

// ValidateDirectories checks if required directories exist.
func (c *Config) ValidateDirectories() error {
	if _, err := os.Stat(c.ModelsDir); os.IsNotExist(err) {
		return fmt.Errorf("models directory does not exist: %s\nHint: Create the directory or use --models-dir to specify a different path", c.ModelsDir)
	}
	return nil
}
