package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// newSpansCmd runs a template's scenarios exactly like `run`, but prints
// each non-skipped scenario's normalized canonical-JSON span set instead
// of a pass/fail report — useful for inspecting what the system under
// test actually emitted.
func newSpansCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "spans <path>",
		Short: "Execute a template's scenarios and print their normalized span sets.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt := getRuntime(cmd.Context())
			cfg, _, err := renderAndParse(args[0], rt.Vars)
			if err != nil {
				exitCodeFromLastRun = exitCodeFor(err)
				return err
			}

			o, cb, err := buildOrchestrator(rt)
			if err != nil {
				exitCodeFromLastRun = exitCodeFor(err)
				return err
			}

			result, err := o.Run(cmd.Context(), cfg)
			cb.TerminateAll(cmd.Context())
			if err != nil {
				exitCodeFromLastRun = exitCodeFor(err)
				return err
			}

			out := cmd.OutOrStdout()
			for _, outcome := range result.Outcomes {
				if outcome.Skipped || outcome.TimedOut || outcome.Err != nil || len(outcome.SpanJSON) == 0 {
					continue
				}
				fmt.Fprintf(out, "# %s\n%s\n", outcome.Name, outcome.SpanJSON)
			}

			exitCodeFromLastRun = exitCodeFor(overallResultErr(result))
			return nil
		},
	}
}
