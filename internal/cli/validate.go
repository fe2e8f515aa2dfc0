package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/avcs06/ricochet/internal/compiler"
)

// NewValidateCommand creates the validate command: compile epic
// definitions and report what was found.
func NewValidateCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <definitions-dir>",
		Short: "Compile CUE epic definitions and report errors",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			defs, err := compiler.LoadDir(args[0])
			if err != nil {
				return fmt.Errorf("validation failed: %w", err)
			}

			summary := ValidateSummary{Valid: true}
			for _, def := range defs {
				summary.Epics = append(summary.Epics, EpicSummary{
					Name:      def.Name,
					Updaters:  len(def.Updaters),
					Instanced: def.Instanced,
				})
			}
			return writeOutput(cmd.OutOrStdout(), opts.Format, &summary)
		},
	}
}

// ValidateSummary is the validate command's output shape.
type ValidateSummary struct {
	Valid bool          `json:"valid"`
	Epics []EpicSummary `json:"epics"`
}

// EpicSummary describes one compiled definition.
type EpicSummary struct {
	Name      string `json:"name"`
	Updaters  int    `json:"updaters"`
	Instanced bool   `json:"instanced,omitempty"`
}

func (s *ValidateSummary) text() string {
	out := fmt.Sprintf("valid: %d epic(s)\n", len(s.Epics))
	for _, e := range s.Epics {
		kind := "singleton"
		if e.Instanced {
			kind = "instanced"
		}
		out += fmt.Sprintf("  %s: %d updater(s), %s\n", e.Name, e.Updaters, kind)
	}
	return out
}
