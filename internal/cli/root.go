// Package cli provides the command-line interface for leaplineage.
package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leaplineage/internal/cli/commands"
	"github.com/leapstack-labs/leaplineage/internal/cli/config"
	"github.com/leapstack-labs/leaplineage/internal/lineage"

	// Register warehouse adapters.
	_ "github.com/leapstack-labs/leaplineage/pkg/adapters/duckdb"
	_ "github.com/leapstack-labs/leaplineage/pkg/adapters/postgres"
)

// Version information (set at build time).
var (
	Version   = lineage.Version
	BuildDate = "unknown"
	GitCommit = "unknown"
)

// NewLogger builds the CLI logger: text on w, debug level when verbose.
func NewLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// NewRootCmd creates and returns the root command.
func NewRootCmd() *cobra.Command {
	var cfgFile string

	rootCmd := &cobra.Command{
		Use:   "leaplineage",
		Short: "leaplineage - SQL models with OpenLineage run events",
		Long: `leaplineage runs SQL models in dependency order and reports every model
execution as an OpenLineage run: START before the model runs, then exactly
one COMPLETE or FAIL.

Failed warehouse calls are classified into database, auth and runtime errors.`,
		Version: Version,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			// Skip config loading for help, version and completion commands
			switch cmd.Name() {
			case "help", "completion", "__complete", "version":
				return nil
			}

			cfg, err := config.Load(cfgFile, cmd.Root().PersistentFlags())
			if err != nil {
				return err
			}

			logger := NewLogger(cmd.ErrOrStderr(), cfg.Verbose)
			logger.Debug("configuration loaded",
				"project", cfg.Project,
				"root", cfg.ProjectRoot,
				"target", cfg.Target.Type,
				"transport", cfg.Lineage.Transport)

			ctx := config.WithConfig(cmd.Context(), cfg)
			ctx = config.WithLogger(ctx, logger)
			cmd.SetContext(ctx)
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.SetVersionTemplate(fmt.Sprintf("{{.Name}} {{.Version}}\nbuilt %s (%s)\n", BuildDate, GitCommit))

	// Global persistent flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./leaplineage.yaml)")
	rootCmd.PersistentFlags().String("project", "", "Project name used as the lineage namespace")
	rootCmd.PersistentFlags().String("models-dir", "", "Path to models directory")
	rootCmd.PersistentFlags().String("database", "", "Target database (DuckDB file path or Postgres database name)")
	rootCmd.PersistentFlags().String("transport", "", "Lineage transport (http|console|gochannel|sqlite|none)")
	rootCmd.PersistentFlags().String("state", "", "Path to the lineage event store")
	rootCmd.PersistentFlags().Int("concurrency", 0, "Models to run in parallel within a level")
	rootCmd.PersistentFlags().String("metrics-addr", "", "Serve Prometheus metrics on this address during a run")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Verbose output")

	_ = rootCmd.RegisterFlagCompletionFunc("transport", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"http", "console", "gochannel", "sqlite", "none"}, cobra.ShellCompDirectiveNoFileComp
	})

	rootCmd.AddCommand(commands.NewVersionCommand(Version))
	rootCmd.AddCommand(commands.NewRunCommand())
	rootCmd.AddCommand(commands.NewEventsCommand())
	rootCmd.AddCommand(commands.NewModelsCommand())

	return rootCmd
}

// Execute runs the root command.
func Execute() error {
	rootCmd := NewRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}
