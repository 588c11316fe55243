package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/adrg/xdg"
	"github.com/spf13/cobra"

	"github.com/seanchatmangpt/cleanroom/internal/clnrmerr"
	"github.com/seanchatmangpt/cleanroom/internal/config"
	"github.com/seanchatmangpt/cleanroom/internal/plugins"
)

// collectorState is the persisted record `up collector` leaves behind so a
// later `down` invocation (in a different process) can find and signal it.
type collectorState struct {
	PID     int    `json:"pid"`
	Address string `json:"address"`
}

func collectorStatePath() (string, error) {
	p, err := xdg.StateFile(filepath.Join("clnrm", "collector-state.json"))
	if err != nil {
		return "", clnrmerr.Wrap(clnrmerr.KindIO, err, "resolving collector state path")
	}
	return p, nil
}

// newUpCmd starts a standalone OTLP collector sidecar in the foreground and
// blocks until interrupted, for manual exploration outside of a scenario
// run (spec.md section 6: "up collector" / "down").
func newUpCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "up collector",
		Short: "Start a standalone OTLP collector and block until interrupted.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if args[0] != "collector" {
				err := clnrmerr.New(clnrmerr.KindConfig, fmt.Sprintf("up: unknown target %q (only \"collector\" is supported)", args[0]))
				exitCodeFromLastRun = exitCodeFor(err)
				return err
			}

			plugin := plugins.NewOTelCollectorPlugin()
			handle, err := plugin.StartService(cmd.Context(), config.ServiceSpec{ID: "clnrm-collector"}, nil)
			if err != nil {
				exitCodeFromLastRun = exitCodeFor(err)
				return err
			}

			statePath, err := collectorStatePath()
			if err != nil {
				exitCodeFromLastRun = exitCodeFor(err)
				return err
			}
			st := collectorState{PID: os.Getpid(), Address: handle.Address}
			b, _ := json.Marshal(st)
			if err := os.MkdirAll(filepath.Dir(statePath), 0o755); err != nil {
				err := clnrmerr.Wrap(clnrmerr.KindIO, err, "creating collector state directory")
				exitCodeFromLastRun = exitCodeFor(err)
				return err
			}
			if err := os.WriteFile(statePath, b, 0o644); err != nil {
				err := clnrmerr.Wrap(clnrmerr.KindIO, err, "writing collector state file")
				exitCodeFromLastRun = exitCodeFor(err)
				return err
			}
			defer os.Remove(statePath)

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "collector listening at %s (pid %d); ctrl-c or `clnrm down` to stop\n", handle.Address, os.Getpid())

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			<-ctx.Done()

			_ = plugin.StopService(context.Background(), handle)
			fmt.Fprintln(out, "collector stopped")
			exitCodeFromLastRun = 0
			return nil
		},
	}
	return cmd
}

// newDownCmd signals a collector previously started with `up collector` to
// stop, via the PID recorded in its state file.
func newDownCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "down",
		Short: "Stop a collector previously started with `up collector`.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			statePath, err := collectorStatePath()
			if err != nil {
				exitCodeFromLastRun = exitCodeFor(err)
				return err
			}

			b, err := os.ReadFile(statePath)
			if err != nil {
				if os.IsNotExist(err) {
					err := clnrmerr.New(clnrmerr.KindExecution, "no collector state found; is one running?")
					exitCodeFromLastRun = exitCodeFor(err)
					return err
				}
				err := clnrmerr.Wrap(clnrmerr.KindIO, err, "reading collector state file")
				exitCodeFromLastRun = exitCodeFor(err)
				return err
			}

			var st collectorState
			if err := json.Unmarshal(b, &st); err != nil {
				err := clnrmerr.Wrap(clnrmerr.KindIO, err, "parsing collector state file")
				exitCodeFromLastRun = exitCodeFor(err)
				return err
			}

			proc, err := os.FindProcess(st.PID)
			if err != nil {
				err := clnrmerr.Wrap(clnrmerr.KindExecution, err, "locating collector process")
				exitCodeFromLastRun = exitCodeFor(err)
				return err
			}
			if err := proc.Signal(syscall.SIGTERM); err != nil {
				err := clnrmerr.Wrap(clnrmerr.KindExecution, err, "signaling collector process")
				exitCodeFromLastRun = exitCodeFor(err)
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "sent stop signal to collector (pid %d)\n", st.PID)
			exitCodeFromLastRun = 0
			return nil
		},
	}
}
