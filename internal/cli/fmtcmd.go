package cli

import (
	"os"

	toml "github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"

	"github.com/seanchatmangpt/cleanroom/internal/clnrmerr"
	"github.com/seanchatmangpt/cleanroom/internal/render"
)

// newFmtCmd canonically reformats a plain (non-template) TOML file's key
// ordering in place, satisfying the fmt(fmt(C)) = fmt(C) idempotence
// property from spec.md section 9. It operates only on plain TOML, since
// Tera template expressions ({{ }}/{% %}) are not TOML syntax a decoder
// can round-trip.
func newFmtCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fmt <path>",
		Short: "Canonically reformat a plain TOML file's key ordering in place.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			raw, err := os.ReadFile(path)
			if err != nil {
				err := clnrmerr.Wrap(clnrmerr.KindIO, err, "reading file to format").WithFile(path)
				exitCodeFromLastRun = exitCodeFor(err)
				return err
			}

			if render.IsTemplate(string(raw)) {
				err := clnrmerr.New(clnrmerr.KindConfig, "fmt only formats plain TOML; this file contains template syntax").WithFile(path)
				exitCodeFromLastRun = exitCodeFor(err)
				return err
			}

			var doc map[string]any
			if err := toml.Unmarshal(raw, &doc); err != nil {
				err := clnrmerr.Wrap(clnrmerr.KindParse, err, "parsing TOML to format").WithFile(path)
				exitCodeFromLastRun = exitCodeFor(err)
				return err
			}

			formatted, err := toml.Marshal(doc)
			if err != nil {
				err := clnrmerr.Wrap(clnrmerr.KindParse, err, "re-encoding formatted TOML").WithFile(path)
				exitCodeFromLastRun = exitCodeFor(err)
				return err
			}

			if err := os.WriteFile(path, formatted, 0o644); err != nil {
				err := clnrmerr.Wrap(clnrmerr.KindIO, err, "writing formatted TOML").WithFile(path)
				exitCodeFromLastRun = exitCodeFor(err)
				return err
			}

			exitCodeFromLastRun = 0
			return nil
		},
	}
}
