package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/avcs06/ricochet/internal/harness"
)

// NewRunCommand creates the run command: execute a scenario and report
// its assertion results.
func NewRunCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "run <scenario.yaml>",
		Short: "Run a scenario and evaluate its assertions",
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

			report := RunReport{
				Scenario: scenario.Name,
				Cycles:   len(result.Traces),
				Passed:   true,
			}
			for _, aerr := range harness.Check(result) {
				report.Passed = false
				report.Failures = append(report.Failures, aerr.Error())
			}
			if err := writeOutput(cmd.OutOrStdout(), opts.Format, &report); err != nil {
				return err
			}
			if !report.Passed {
				return fmt.Errorf("scenario %s: %d assertion(s) failed", scenario.Name, len(report.Failures))
			}
			return nil
		},
	}
}

// RunReport is the run command's output shape.
type RunReport struct {
	Scenario string   `json:"scenario"`
	Cycles   int      `json:"cycles"`
	Passed   bool     `json:"passed"`
	Failures []string `json:"failures,omitempty"`
}

func (r *RunReport) text() string {
	out := fmt.Sprintf("scenario %s: %d cycle(s)\n", r.Scenario, r.Cycles)
	if r.Passed {
		return out + "PASS\n"
	}
	out += "FAIL\n"
	for _, f := range r.Failures {
		out += "  " + f + "\n"
	}
	return out
}
