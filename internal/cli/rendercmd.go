package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// newRenderCmd renders a template to flat TOML and prints it, without
// parsing or executing it — the narrowest possible view into the
// Template Renderer step (spec.md section 4.2).
func newRenderCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "render <path>",
		Short: "Render a template to flat TOML and print it.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt := getRuntime(cmd.Context())
			_, rendered, err := renderAndParse(args[0], rt.Vars)
			if err != nil {
				exitCodeFromLastRun = exitCodeFor(err)
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), rendered)
			exitCodeFromLastRun = 0
			return nil
		},
	}
}
