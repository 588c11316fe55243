package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/seanchatmangpt/cleanroom/internal/clnrmerr"
)

// scaffold is the minimal valid template `template` writes out: one
// service, one scenario, one span expectation, matching the flat grammar
// from spec.md section 3 exactly so the result parses on the first try.
const scaffold = `[meta]
name = "{{ svc }}-suite"

[otel]
exporter = "otlp_http"
endpoint = "{{ endpoint }}"

[service.app]
kind = "generic_container"
image = "{{ image }}"

[[scenario]]
name = "smoke"
service_ref = "app"
command = "true"
expect_success = true

[[expect.span]]
name = "smoke"
`

func newTemplateCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "template",
		Short: "Write a minimal valid .toml.tera template to get started.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if out == "" {
				out = "cleanroom.toml.tera"
			}
			if err := os.WriteFile(out, []byte(scaffold), 0o644); err != nil {
				err := clnrmerr.Wrap(clnrmerr.KindIO, err, "writing scaffold template").WithFile(out)
				exitCodeFromLastRun = exitCodeFor(err)
				return err
			}
			exitCodeFromLastRun = 0
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "output path (default cleanroom.toml.tera)")
	return cmd
}
