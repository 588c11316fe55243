package cli

import (
	"github.com/spf13/cobra"

	"github.com/seanchatmangpt/cleanroom/internal/clnrmerr"
)

// newDevCmd is a placeholder for watch-mode re-runs. File-notification-driven
// watch mode is explicitly out of scope (spec.md Non-goals: "watch-mode file
// notification" is left to an external collaborator, e.g. a file watcher
// piping paths into repeated `run` invocations) — this command exists so the
// command tree documents the gap rather than silently omitting it.
func newDevCmd() *cobra.Command {
	var watch bool

	cmd := &cobra.Command{
		Use:   "dev <path>",
		Short: "Not implemented in this build: watch-mode re-run is out of scope.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			err := clnrmerr.New(clnrmerr.KindExecution,
				"dev --watch is not implemented in this build; re-run `clnrm run` from an external file watcher instead")
			exitCodeFromLastRun = exitCodeFor(err)
			return err
		},
	}

	cmd.Flags().BoolVar(&watch, "watch", false, "re-run on file change (not implemented)")
	return cmd
}
