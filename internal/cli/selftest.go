package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/seanchatmangpt/cleanroom/internal/clnrmerr"
	"github.com/seanchatmangpt/cleanroom/internal/config"
	"github.com/seanchatmangpt/cleanroom/internal/otlpdiag"
)

// newSelfTestCmd wraps otlpdiag.Run: it emits one synthetic span to an OTLP
// endpoint and reports whether the round trip succeeded. It never touches
// the validated run path (spec.md section 6, "self-test" Non-goal) — this
// is purely a side-door connectivity check.
func newSelfTestCmd() *cobra.Command {
	var endpoint, protocol string

	cmd := &cobra.Command{
		Use:   "self-test [path]",
		Short: "Emit one synthetic span to an OTLP endpoint and report whether it was accepted.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt := getRuntime(cmd.Context())

			otelCfg := config.OtelConfig{Endpoint: endpoint, Protocol: protocol}
			if len(args) == 1 {
				cfg, _, err := renderAndParse(args[0], rt.Vars)
				if err != nil {
					exitCodeFromLastRun = exitCodeFor(err)
					return err
				}
				otelCfg = cfg.Otel
				if endpoint != "" {
					otelCfg.Endpoint = endpoint
				}
				if protocol != "" {
					otelCfg.Protocol = protocol
				}
			}
			if otelCfg.Endpoint == "" {
				err := clnrmerr.New(clnrmerr.KindConfig, "self-test: no endpoint given (pass a template path or --endpoint)")
				exitCodeFromLastRun = exitCodeFor(err)
				return err
			}

			res := otlpdiag.Run(cmd.Context(), otelCfg, "clnrm-self-test")
			out := cmd.OutOrStdout()
			if res.Err != nil {
				fmt.Fprintf(out, "self-test FAILED: endpoint=%s protocol=%s: %v\n", res.Endpoint, res.Protocol, res.Err)
				err := clnrmerr.Wrap(clnrmerr.KindContainer, res.Err, "self-test span emission")
				exitCodeFromLastRun = exitCodeFor(err)
				return err
			}

			fmt.Fprintf(out, "self-test OK: endpoint=%s protocol=%s trace_id=%s span_id=%s\n",
				res.Endpoint, res.Protocol, res.TraceID, res.SpanID)
			exitCodeFromLastRun = 0
			return nil
		},
	}

	cmd.Flags().StringVar(&endpoint, "endpoint", "", "OTLP endpoint to target (overrides the template's [otel].endpoint)")
	cmd.Flags().StringVar(&protocol, "protocol", "", "OTLP protocol: grpc or http (overrides the template's [otel].protocol)")
	return cmd
}
