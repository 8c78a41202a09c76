package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leaplineage/internal/lineage"
)

// NewVersionCommand creates the version command.
func NewVersionCommand(version string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long:  `Display leaplineage version and the producer reported in lineage events.`,
		Run: func(cmd *cobra.Command, _ []string) {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "leaplineage v%s\n", version)
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "producer: %s\n", lineage.Producer())
		},
	}
}
