package cli

import (
	"fmt"

	"github.com/google/go-cmp/cmp"
	toml "github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"

	"github.com/seanchatmangpt/cleanroom/internal/clnrmerr"
)

// newDiffCmd renders and parses two templates and prints a structural
// diff of their decoded TOML documents. Used to review what a template
// edit, or a change in --var values, actually changes before running it.
func newDiffCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "diff <pathA> <pathB>",
		Short: "Show a structural diff between two rendered templates.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt := getRuntime(cmd.Context())

			_, renderedA, err := renderAndParse(args[0], rt.Vars)
			if err != nil {
				exitCodeFromLastRun = exitCodeFor(err)
				return err
			}
			_, renderedB, err := renderAndParse(args[1], rt.Vars)
			if err != nil {
				exitCodeFromLastRun = exitCodeFor(err)
				return err
			}

			var a, b map[string]any
			if err := toml.Unmarshal([]byte(renderedA), &a); err != nil {
				err := clnrmerr.Wrap(clnrmerr.KindParse, err, "decoding first document for diff").WithFile(args[0])
				exitCodeFromLastRun = exitCodeFor(err)
				return err
			}
			if err := toml.Unmarshal([]byte(renderedB), &b); err != nil {
				err := clnrmerr.Wrap(clnrmerr.KindParse, err, "decoding second document for diff").WithFile(args[1])
				exitCodeFromLastRun = exitCodeFor(err)
				return err
			}

			d := cmp.Diff(a, b)
			if d == "" {
				fmt.Fprintln(cmd.OutOrStdout(), "no differences")
			} else {
				fmt.Fprint(cmd.OutOrStdout(), d)
			}

			exitCodeFromLastRun = 0
			return nil
		},
	}
}
