package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/seanchatmangpt/cleanroom/internal/clnrmerr"
	"github.com/seanchatmangpt/cleanroom/internal/validate"
)

// newLintCmd checks expectation well-formedness (the Shape dimension)
// without executing any scenario: it renders and parses the template as
// dry-run does, then runs the Shape check on the parsed expectations.
func newLintCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "lint <path>",
		Short: "Check a template's expectation shape without rendering services or running scenarios.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt := getRuntime(cmd.Context())
			cfg, _, err := renderAndParse(args[0], rt.Vars)
			if err != nil {
				exitCodeFromLastRun = exitCodeFor(err)
				return err
			}

			result := validate.ValidateShape(cfg.Expectations)
			if !result.Pass {
				err := clnrmerr.New(clnrmerr.KindValidation, result.Failures[0].Reason).WithDim("shape")
				exitCodeFromLastRun = exitCodeFor(err)
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s: shape OK\n", cfg.Meta.Name)
			exitCodeFromLastRun = 0
			return nil
		},
	}
}
