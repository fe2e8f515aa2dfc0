package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/avcs06/ricochet/internal/harness"
)

// NewTraceCommand creates the trace command: run a scenario and emit the
// canonical JSON trace of every dispatch cycle, one per line.
func NewTraceCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "trace <scenario.yaml>",
		Short: "Run a scenario and print its cycle traces as canonical JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			scenario, err := harness.LoadScenario(args[0])
			if err != nil {
				return err
			}
			result, err := harness.Run(scenario)
			if err != nil {
				return fmt.Errorf("scenario %s: %w", scenario.Name, err)
			}
			for _, tr := range result.Traces {
				b, err := tr.CanonicalJSON()
				if err != nil {
					return err
				}
				if _, err := fmt.Fprintln(cmd.OutOrStdout(), string(b)); err != nil {
					return err
				}
			}
			return nil
		},
	}
}
