package commands

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leaplineage/internal/state"
)

// DefaultEventLimit is the number of events shown without --limit.
const DefaultEventLimit = 20

// EventsOptions holds options for the events command.
type EventsOptions struct {
	RunID string
	Limit int
	JSON  bool
}

// NewEventsCommand creates the events command.
func NewEventsCommand() *cobra.Command {
	opts := &EventsOptions{}

	cmd := &cobra.Command{
		Use:   "events",
		Short: "Show lineage events recorded in the state store",
		Long: `List lineage events persisted by previous runs.

Without --run the most recent events are shown, newest first. With --run the
events of one run are shown in emission order.`,
		Example: `  # Show the last 20 events
  leaplineage events

  # Show the events of one run
  leaplineage events --run 0d9c3f9e-8b61-4c4e-9a43-6c1f1f1e2a7b

  # Print raw event payloads
  leaplineage events --limit 5 --json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runEvents(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.RunID, "run", "", "Show events of a single run")
	cmd.Flags().IntVarP(&opts.Limit, "limit", "n", DefaultEventLimit, "Maximum number of events to show")
	cmd.Flags().BoolVar(&opts.JSON, "json", false, "Print event payloads as JSON lines")

	return cmd
}

func runEvents(cmd *cobra.Command, opts *EventsOptions) error {
	cmdCtx, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}

	path := cmdCtx.Cfg.Lineage.StatePath
	if path == "" {
		return errors.New("no state store configured\nHint: Set lineage.state_path in leaplineage.yaml")
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return fmt.Errorf("state store does not exist: %s\nHint: Run models first with 'leaplineage run'", path)
	}

	store := state.NewSQLiteStore(cmdCtx.Logger)
	if err := store.Open(path); err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	var records []*state.EventRecord
	if opts.RunID != "" {
		records, err = store.ListEvents(cmd.Context(), opts.RunID)
	} else {
		records, err = store.ListRecent(cmd.Context(), opts.Limit)
	}
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if opts.JSON {
		for _, r := range records {
			_, _ = fmt.Fprintln(out, string(r.Payload))
		}
		return nil
	}
	renderEvents(out, records)
	return nil
}

func renderEvents(w io.Writer, records []*state.EventRecord) {
	if len(records) == 0 {
		_, _ = fmt.Fprintln(w, "(0 events)")
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Time", "Type", "Namespace", "Job", "Run ID"})
	for _, r := range records {
		t.AppendRow(table.Row{r.EventTime.Format(time.RFC3339), string(r.EventType), r.JobNamespace, r.JobName, r.RunID})
	}
	t.Render()
	_, _ = fmt.Fprintf(w, "(%d events)\n", len(records))
}
