package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// newDryRunCmd renders and parses a template without executing any
// scenario, printing the parsed meta/service/scenario counts. It never
// touches a Backend.
func newDryRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dry-run <path>",
		Short: "Render and parse a template, reporting shape errors, without executing scenarios.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt := getRuntime(cmd.Context())
			cfg, _, err := renderAndParse(args[0], rt.Vars)
			if err != nil {
				exitCodeFromLastRun = exitCodeFor(err)
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d service(s), %d scenario(s), valid\n",
				cfg.Meta.Name, len(cfg.Services), len(cfg.Scenarios))
			exitCodeFromLastRun = 0
			return nil
		},
	}
}
