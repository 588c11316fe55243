package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// newGraphCmd prints the [expect.graph] edges a template declares, as a
// quick text form of the span graph the run is expected to produce —
// without executing anything.
func newGraphCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "graph <path>",
		Short: "Print the expected span graph edges declared by a template.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt := getRuntime(cmd.Context())
			cfg, _, err := renderAndParse(args[0], rt.Vars)
			if err != nil {
				exitCodeFromLastRun = exitCodeFor(err)
				return err
			}

			out := cmd.OutOrStdout()
			if cfg.Expectations.Graph == nil {
				fmt.Fprintln(out, "(no expect.graph table)")
				exitCodeFromLastRun = 0
				return nil
			}

			for _, e := range cfg.Expectations.Graph.MustInclude {
				fmt.Fprintf(out, "%s -> %s (must_include)\n", e[0], e[1])
			}
			for _, e := range cfg.Expectations.Graph.MustNotCross {
				fmt.Fprintf(out, "%s -x- %s (must_not_cross)\n", e[0], e[1])
			}

			exitCodeFromLastRun = 0
			return nil
		},
	}
}
