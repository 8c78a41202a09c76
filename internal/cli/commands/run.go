package commands

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leaplineage/internal/engine"
	"github.com/leapstack-labs/leaplineage/internal/project"
)

// RunOptions holds options for the run command.
type RunOptions struct {
	Select     string
	Downstream bool
}

// NewRunCommand creates the run command.
func NewRunCommand() *cobra.Command {
	opts := &RunOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run models and emit lineage events",
		Long: `Execute SQL models in dependency order against the configured target.

Every model execution is a lineage run: a START event is emitted before the
model runs and a COMPLETE or FAIL event after. Models downstream of a failure
are skipped.`,
		Example: `  # Run all models
  leaplineage run

  # Run specific models
  leaplineage run --select stg_customers,stg_orders

  # Run a model and its downstream dependents
  leaplineage run --select stg_customers --downstream`,
		Aliases: []string{"build"},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runRun(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Select, "select", "s", "", "Comma-separated list of models to run")
	cmd.Flags().BoolVar(&opts.Downstream, "downstream", false, "Include downstream dependents when using --select")

	return cmd
}

func runRun(cmd *cobra.Command, opts *RunOptions) error {
	cmdCtx, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	cfg := cmdCtx.Cfg
	if err := cfg.ValidateDirectories(); err != nil {
		return err
	}

	models, err := project.Load(cfg.ModelsDir, cfg.Project)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	rt, err := cmdCtx.NewRuntime(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = rt.Close() }()

	models, err = rt.Engine.Select(models, splitList(opts.Select), opts.Downstream)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "Running %d models\n", len(models))

	res, runErr := rt.Engine.Run(ctx, models)
	if res != nil {
		renderRunResult(out, res)
	}
	if runErr != nil {
		return fmt.Errorf("run failed: %w", runErr)
	}
	return nil
}

// renderRunResult prints one row per model and a summary line.
func renderRunResult(w io.Writer, res *engine.RunResult) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Model", "Status", "Rows", "Duration", "Run ID"})

	for _, m := range res.Models {
		rows := ""
		if m.Status == engine.StatusSuccess {
			rows = fmt.Sprintf("%d", m.Rows)
		}
		t.AppendRow(table.Row{m.UniqueID, string(m.Status), rows, m.Duration.Round(time.Millisecond), m.RunID})
	}
	t.Render()

	for _, m := range res.Models {
		if m.Err != nil {
			_, _ = fmt.Fprintf(w, "\n%s:\n  %s\n", m.UniqueID, strings.ReplaceAll(m.Err.Error(), "\n", "\n  "))
		}
	}

	_, _ = fmt.Fprintf(w, "\nCompleted in %s: %d succeeded, %d failed, %d skipped\n",
		res.Duration.Round(time.Millisecond),
		res.Count(engine.StatusSuccess),
		res.Count(engine.StatusFailed),
		res.Count(engine.StatusSkipped))
}

// splitList splits a comma-separated flag value, dropping empty items.
func splitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
