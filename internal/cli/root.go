// Package cli implements the cleanroom command-line surface (spec.md
// section 6): the observable contract around the core pipeline described
// in internal/config, internal/render, internal/orchestrator, and
// internal/report. Grounded directly on the teacher's otelcli package:
// the context-carried-config pattern in otelcli/root.go (a typed context
// key instead of package globals) and the command-per-file layout.
package cli

import (
	"context"

	"github.com/spf13/cobra"
)

// runtimeContextKey is the typed context key storing *Runtime, mirroring
// otelcli.cliContextKey.
type runtimeContextKey string

func runtimeKey() runtimeContextKey { return runtimeContextKey("runtime") }

// Runtime is the process-wide state every subcommand reads: shared flags
// plus anything a command needs to hand to the next one (none currently,
// but the shape leaves room the way otelcli.Config does).
type Runtime struct {
	Workers      int
	Strict       bool
	ReportJSON   string
	ReportJUnit  string
	ReportDigest string
	NoCache      bool
	Force        bool
	Vars         map[string]string
}

func getRuntime(ctx context.Context) *Runtime {
	if rv := ctx.Value(runtimeKey()); rv != nil {
		if r, ok := rv.(*Runtime); ok {
			return r
		}
	}
	panic("BUG: cleanroom runtime missing from command context")
}

// NewRootCmd builds the full cleanroom command tree.
func NewRootCmd(version string) *cobra.Command {
	rt := &Runtime{}

	root := &cobra.Command{
		Use:           "clnrm",
		Short:         "Hermetic integration-testing orchestrator validated exclusively against OpenTelemetry spans.",
		Long:          "clnrm renders a .toml.tera template into services and scenarios, runs them in isolated containers, and validates the spans they emit against declarative expectations.",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       version,
	}

	cobra.EnableCommandSorting = false
	root.PersistentFlags().IntVar(&rt.Workers, "workers", 0, "worker pool size (default: number of CPUs)")
	root.PersistentFlags().BoolVar(&rt.Strict, "strict", false, "abort remaining validation dimensions at the first failure")
	root.PersistentFlags().StringVar(&rt.ReportJSON, "report-json", "", "write a JSON report to this path")
	root.PersistentFlags().StringVar(&rt.ReportJUnit, "report-junit", "", "write a JUnit XML report to this path")
	root.PersistentFlags().StringVar(&rt.ReportDigest, "report-digest", "", "write a digest report to this path")
	root.PersistentFlags().BoolVar(&rt.NoCache, "no-cache", false, "bypass the change-aware cache entirely for this run")
	root.PersistentFlags().BoolVar(&rt.Force, "force", false, "clear the change-aware cache before running, then persist fresh hashes")
	root.PersistentFlags().StringToStringVar(&rt.Vars, "var", nil, "a comma-separated list of key=value template variables")

	root.AddCommand(
		newRunCmd(),
		newDevCmd(),
		newDryRunCmd(),
		newTemplateCmd(),
		newFmtCmd(),
		newLintCmd(),
		newDiffCmd(),
		newGraphCmd(),
		newSpansCmd(),
		newRenderCmd(),
		newPullCmd(),
		newRecordCmd(),
		newReproCmd(),
		newRedgreenCmd(),
		newUpCmd(),
		newDownCmd(),
		newSelfTestCmd(),
	)

	root.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		cmd.SetContext(context.WithValue(cmd.Context(), runtimeKey(), rt))
		return nil
	}

	return root
}

// Execute is the entry point main.main calls. It always returns a process
// exit code, mapped from the outermost clnrmerr.Kind in the error chain
// per spec.md section 6.
func Execute(version string) int {
	root := NewRootCmd(version)
	root.SetContext(context.Background())

	if err := root.Execute(); err != nil {
		return exitCodeFor(err)
	}
	return exitCodeFromLastRun
}

// exitCodeFromLastRun is set by run-like commands before returning, since
// a validation failure is reported (not returned as a Go error) so cobra
// doesn't print it as a usage error.
var exitCodeFromLastRun int
