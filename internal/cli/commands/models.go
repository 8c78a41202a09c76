package commands

import (
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leaplineage/internal/project"
	"github.com/leapstack-labs/leaplineage/internal/sqlrefs"
)

// NewModelsCommand creates the models command.
func NewModelsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List models and the tables they read",
		Long: `List all models in the models directory with their materialization,
output relation and the input tables that START events will report.`,
		Aliases: []string{"list", "ls"},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runModels(cmd)
		},
	}
}

func runModels(cmd *cobra.Command) error {
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

	out := cmd.OutOrStdout()
	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Model", "Materialized", "Relation", "Inputs"})
	for _, m := range models {
		inputs, err := sqlrefs.Extract(m.CompiledSQL)
		inputsCol := strings.Join(inputs, ", ")
		if err != nil {
			cmdCtx.Logger.Warn("cannot extract model inputs", "model", m.UniqueID, "error", err)
			inputsCol = "(unparseable)"
		}
		t.AppendRow(table.Row{m.UniqueID, m.Materialized, m.OutputName(), inputsCol})
	}
	t.Render()
	_, _ = fmt.Fprintf(out, "(%d models)\n", len(models))
	return nil
}
