package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/seanchatmangpt/cleanroom/internal/clnrmerr"
	"github.com/seanchatmangpt/cleanroom/internal/config"
	"github.com/seanchatmangpt/cleanroom/internal/report"
)

// newReproCmd re-executes a single named scenario from a template,
// ignoring the change-aware cache entirely, for isolating a failure
// without paying the cost of the whole suite.
func newReproCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "repro <path> <scenario-name>",
		Short: "Re-run one named scenario from a template, bypassing the cache.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt := getRuntime(cmd.Context())
			path, name := args[0], args[1]

			cfg, _, err := renderAndParse(path, rt.Vars)
			if err != nil {
				exitCodeFromLastRun = exitCodeFor(err)
				return err
			}

			found := false
			for _, sc := range cfg.Scenarios {
				if sc.Name == name {
					cfg.Scenarios = []config.ScenarioSpec{sc}
					found = true
					break
				}
			}
			if !found {
				err := clnrmerr.New(clnrmerr.KindConfig, fmt.Sprintf("no scenario named %q in %s", name, path))
				exitCodeFromLastRun = exitCodeFor(err)
				return err
			}

			rt.NoCache = true
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

			if err := report.PrintSummaryTable(result); err != nil {
				exitCodeFromLastRun = exitCodeFor(err)
				return err
			}

			exitCodeFromLastRun = exitCodeFor(overallResultErr(result))
			return nil
		},
	}
}
