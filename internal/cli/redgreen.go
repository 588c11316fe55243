package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/seanchatmangpt/cleanroom/internal/clnrmerr"
)

// newRedgreenCmd runs a template twice without ever consulting the cache,
// confirming the transition a flaky-fix or new-expectation workflow wants
// to see: the first run is expected to fail ("red"), the second — run
// after the caller has applied a fix between the two invocations prompted
// by this command — is expected to pass ("green"). A suite that never
// fails, or never recovers, is reported as a redgreen violation.
func newRedgreenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "redgreen <path>",
		Short: "Confirm a template's scenarios fail once, then pass once, proving a fix actually fixed something.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt := getRuntime(cmd.Context())
			rt.NoCache = true

			cfg, _, err := renderAndParse(args[0], rt.Vars)
			if err != nil {
				exitCodeFromLastRun = exitCodeFor(err)
				return err
			}

			out := cmd.OutOrStdout()

			o, cb, err := buildOrchestrator(rt)
			if err != nil {
				exitCodeFromLastRun = exitCodeFor(err)
				return err
			}
			redResult, err := o.Run(cmd.Context(), cfg)
			cb.TerminateAll(cmd.Context())
			if err != nil {
				exitCodeFromLastRun = exitCodeFor(err)
				return err
			}
			if overallResultErr(redResult) == nil {
				err := clnrmerr.New(clnrmerr.KindValidation, "red phase passed outright; nothing to prove was broken")
				exitCodeFromLastRun = exitCodeFor(err)
				return err
			}
			fmt.Fprintln(out, "red: confirmed failing")

			fmt.Fprintln(out, "waiting for Enter to run the green phase after the fix is applied...")
			fmt.Fscanln(cmd.InOrStdin())

			cfg, _, err = renderAndParse(args[0], rt.Vars)
			if err != nil {
				exitCodeFromLastRun = exitCodeFor(err)
				return err
			}
			o2, cb2, err := buildOrchestrator(rt)
			if err != nil {
				exitCodeFromLastRun = exitCodeFor(err)
				return err
			}
			greenResult, err := o2.Run(cmd.Context(), cfg)
			cb2.TerminateAll(cmd.Context())
			if err != nil {
				exitCodeFromLastRun = exitCodeFor(err)
				return err
			}
			if resultErr := overallResultErr(greenResult); resultErr != nil {
				exitCodeFromLastRun = exitCodeFor(resultErr)
				return resultErr
			}

			fmt.Fprintln(out, "green: confirmed passing")
			exitCodeFromLastRun = 0
			return nil
		},
	}
}
