package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// EnvPrefix is the prefix of environment variable overrides.
// Nested keys use a double underscore: LEAPLINEAGE_LINEAGE__URL -> lineage.url
const EnvPrefix = "LEAPLINEAGE_"

// loggerKey is used to store the logger in a command context.
type loggerKey struct{}

// findConfigFile returns the explicit path, or the first config file found in root.
func findConfigFile(explicit, root string) string {
	if explicit != "" {
		return explicit
	}
	for _, name := range ConfigFileNames {
		candidate := filepath.Join(root, name)
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return ""
}

// resolvePathRelativeTo resolves a path relative to baseDir if it's not absolute.
// Returns the path unchanged if it's empty, in-memory or already absolute.
func resolvePathRelativeTo(path, baseDir string) string {
	if path == "" || path == ":memory:" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(baseDir, path)
}

func defaults() map[string]any {
	return map[string]any{
		"models_dir":          DefaultModelsDir,
		"concurrency":         DefaultConcurrency,
		"verbose":             false,
		"target.type":         DefaultTargetType,
		"lineage.transport":   DefaultTransport,
		"lineage.state_path":  DefaultStateFile,
		"lineage.timeout":     DefaultTimeout.String(),
		"lineage.max_retries": DefaultMaxRetries,
	}
}

// Load loads configuration from defaults, the config file, environment
// variables and flags, in increasing precedence. Relative paths are resolved
// against the config file's directory, or the working directory without one.
func Load(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	root, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get working directory: %w", err)
	}

	// 1. Defaults
	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// 2. Config file
	if path := findConfigFile(cfgFile, root); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", path, err)
		}
		if abs, err := filepath.Abs(path); err == nil {
			root = filepath.Dir(abs)
		}
	}

	// 3. Environment: LEAPLINEAGE_MODELS_DIR -> models_dir
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		key := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
		return strings.ReplaceAll(key, "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	// 4. Flags that were explicitly set
	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, any) {
			if !f.Changed {
				return "", nil
			}
			key := strings.ReplaceAll(f.Name, "-", "_")
			switch key {
			case "config":
				return "", nil
			case "transport":
				return "lineage.transport", posflag.FlagVal(flags, f)
			case "state":
				return "lineage.state_path", posflag.FlagVal(flags, f)
			case "database":
				return "target.database", posflag.FlagVal(flags, f)
			}
			return key, posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	if cfg.Target == nil {
		cfg.Target = &TargetConfig{Type: DefaultTargetType}
	}
	if cfg.Lineage == nil {
		cfg.Lineage = &LineageConfig{Transport: DefaultTransport}
	}

	cfg.ProjectRoot = root
	if cfg.Project == "" {
		cfg.Project = filepath.Base(root)
	}
	cfg.ModelsDir = resolvePathRelativeTo(cfg.ModelsDir, root)
	cfg.Lineage.StatePath = resolvePathRelativeTo(cfg.Lineage.StatePath, root)
	cfg.Target.Type = strings.ToLower(cfg.Target.Type)
	if cfg.Target.Type == DefaultTargetType {
		cfg.Target.Database = resolvePathRelativeTo(cfg.Target.Database, root)
	}

	cfg.Target.Password = expandEnvVars(cfg.Target.Password)
	cfg.Lineage.APIKey = expandEnvVars(cfg.Lineage.APIKey)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars expands ${VAR} patterns in a string with environment variable values.
// Unset variables are left as written.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		if val, ok := os.LookupEnv(match[2 : len(match)-1]); ok {
			return val
		}
		return match
	})
}

// WithLogger stores the logger in ctx.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// GetLogger retrieves the logger from the command context.
func GetLogger(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok {
		return l
	}
	return slog.New(slog.DiscardHandler)
}

// configKey is used to store the loaded config in a command context.
type configKey struct{}

// WithConfig stores cfg in ctx.
func WithConfig(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, configKey{}, cfg)
}

// FromContext returns the config stored by WithConfig, or nil.
func FromContext(ctx context.Context) *Config {
	cfg, _ := ctx.Value(configKey{}).(*Config)
	return cfg
}
