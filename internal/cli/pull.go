package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/seanchatmangpt/cleanroom/internal/backend"
)

// newPullCmd warms the local image cache for every service a template
// declares, by starting and immediately stopping one throwaway container
// per service — testcontainers-go already pulls the image as part of
// container creation, so this is the simplest way to front-load that cost
// outside of a timed run.
func newPullCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pull <path>",
		Short: "Pre-pull every service image a template declares.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt := getRuntime(cmd.Context())
			cfg, _, err := renderAndParse(args[0], rt.Vars)
			if err != nil {
				exitCodeFromLastRun = exitCodeFor(err)
				return err
			}

			cb := backend.NewContainerBackend("clnrm-pull")
			out := cmd.OutOrStdout()
			for _, svc := range cfg.Services {
				handle, err := cb.StartService(cmd.Context(), svc, nil)
				if err != nil {
					cb.TerminateAll(cmd.Context())
					exitCodeFromLastRun = exitCodeFor(err)
					return err
				}
				_ = cb.StopService(cmd.Context(), handle)
				fmt.Fprintf(out, "pulled %s\n", svc.Image)
			}

			exitCodeFromLastRun = 0
			return nil
		},
	}
}
