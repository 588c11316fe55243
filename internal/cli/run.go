package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/seanchatmangpt/cleanroom/internal/clnrmerr"
	"github.com/seanchatmangpt/cleanroom/internal/orchestrator"
	"github.com/seanchatmangpt/cleanroom/internal/report"
)

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run <paths...>",
		Short: "Render, execute, and validate one or more cleanroom templates.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt := getRuntime(cmd.Context())
			return runPaths(cmd, rt, args)
		},
	}
}

// runPaths is shared by run and record (which vary only in cache
// handling): render+parse, orchestrate, write the configured report
// formats and the terminal summary table, and set the process exit code
// from the aggregate result per spec.md section 6.
func runPaths(cmd *cobra.Command, rt *Runtime, paths []string) error {
	overallPass := true

	for _, path := range paths {
		cfg, _, err := renderAndParse(path, rt.Vars)
		if err != nil {
			exitCodeFromLastRun = exitCodeFor(err)
			return err
		}

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

		if err := writeReports(rt, result); err != nil {
			exitCodeFromLastRun = exitCodeFor(err)
			return err
		}

		if err := report.PrintSummaryTable(result); err != nil {
			exitCodeFromLastRun = exitCodeFor(err)
			return err
		}

		if resultErr := overallResultErr(result); resultErr != nil {
			overallPass = false
			exitCodeFromLastRun = exitCodeFor(resultErr)
		}
	}

	if overallPass {
		exitCodeFromLastRun = 0
	}
	return nil
}

// writeReports persists the three report formats named in --report-json,
// --report-junit, and --report-digest, skipping any that were left empty.
func writeReports(rt *Runtime, result orchestrator.RunResult) error {
	if rt.ReportJSON != "" {
		b, err := report.WriteJSON(result)
		if err != nil {
			return err
		}
		if err := os.WriteFile(rt.ReportJSON, b, 0o644); err != nil {
			return clnrmerr.Wrap(clnrmerr.KindIO, err, "writing JSON report").WithFile(rt.ReportJSON)
		}
	}

	if rt.ReportJUnit != "" {
		b, err := report.WriteJUnit("clnrm", result)
		if err != nil {
			return err
		}
		if err := os.WriteFile(rt.ReportJUnit, b, 0o644); err != nil {
			return clnrmerr.Wrap(clnrmerr.KindIO, err, "writing JUnit report").WithFile(rt.ReportJUnit)
		}
	}

	if rt.ReportDigest != "" {
		if err := os.WriteFile(rt.ReportDigest, report.WriteDigest(result), 0o644); err != nil {
			return clnrmerr.Wrap(clnrmerr.KindIO, err, "writing digest report").WithFile(rt.ReportDigest)
		}
	}

	return nil
}
