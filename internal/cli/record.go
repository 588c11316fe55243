package cli

import "github.com/spf13/cobra"

// newRecordCmd runs a template exactly like `run`, but always bypasses
// the change-aware cache for reads while still persisting the fresh
// hashes afterward — useful for (re-)establishing a baseline cache entry
// deliberately, as opposed to `run`'s skip-when-unchanged default.
func newRecordCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "record <paths...>",
		Short: "Run scenarios unconditionally and (re-)record their cache entries.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt := getRuntime(cmd.Context())
			rt.Force = true
			return runPaths(cmd, rt, args)
		},
	}
}
