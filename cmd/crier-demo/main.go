// crier-demo exercises the emitter's operations from a real terminal,
// so the transient/permanent/bar behaviors can be eyeballed at each
// verbosity level.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"time"

	"github.com/spf13/cobra"

	"github.com/harrison/crier"
	"github.com/harrison/crier/dispatch"
)

func main() {
	os.Exit(run())
}

func run() int {
	var em *crier.Emitter

	root := &cobra.Command{
		Use:   "crier-demo",
		Short: "Demonstrations of the crier output coordination library",
	}

	root.AddCommand(
		&cobra.Command{
			Use:   "steps",
			Short: "A multi-step operation with transient progress",
			RunE: func(cmd *cobra.Command, args []string) error {
				em.Message("Starting the demo run")
				for i := 1; i <= 4; i++ {
					em.Progress(fmt.Sprintf("Step %d of 4...", i), false)
					time.Sleep(800 * time.Millisecond)
				}
				em.Progress("All steps finished", true)
				em.Message("Demo run done")
				return nil
			},
		},
		&cobra.Command{
			Use:   "download",
			Short: "A progress bar over a fake download",
			RunE: func(cmd *cobra.Command, args []string) error {
				const total = 1024 * 1024 * 3.5
				bar := em.ProgressBar("Downloading payload", total, true)
				defer bar.Done()
				for sent := 0.0; sent < total; sent += total / 40 {
					bar.Advance(total / 40)
					time.Sleep(50 * time.Millisecond)
				}
				return nil
			},
		},
		&cobra.Command{
			Use:   "subprocess",
			Short: "Multiplex a subprocess's output as trace records",
			RunE: func(cmd *cobra.Command, args []string) error {
				stream, err := em.OpenStream("Updating the index")
				if err != nil {
					return err
				}
				defer stream.Close()

				sub := exec.Command("sh", "-c", "for i in 1 2 3; do echo line $i; sleep 1; done")
				sub.Stdout = stream.File()
				sub.Stderr = stream.File()
				if err := sub.Run(); err != nil {
					return &crier.Error{Message: "subprocess failed", Err: err}
				}
				return nil
			},
		},
		&cobra.Command{
			Use:   "captured",
			Short: "Ambient slog records routed through the emitter",
			RunE: func(cmd *cobra.Command, args []string) error {
				em.Message("Watch with --verbosity=verbose and =debug")
				slog.Info("an informational record", "source", "ambient")
				slog.Debug("a debug record", "source", "ambient")
				return nil
			},
		},
		&cobra.Command{
			Use:   "pause",
			Short: "Hand the terminal to an interactive child",
			RunE: func(cmd *cobra.Command, args []string) error {
				em.Progress("About to hand over the terminal", false)
				resume := em.Pause()
				defer resume()

				sub := exec.Command("sh", "-c", "read -p 'type something: ' x; echo got: $x")
				sub.Stdin = os.Stdin
				sub.Stdout = os.Stdout
				sub.Stderr = os.Stderr
				return sub.Run()
			},
		},
		&cobra.Command{
			Use:   "boom",
			Short: "End the run with a declared error",
			RunE: func(cmd *cobra.Command, args []string) error {
				return &crier.Error{
					Message:    "the demo exploded on request",
					Details:    "there is nothing actually wrong, this is the error path demo",
					Resolution: "run a different subcommand",
					DocsURL:    "https://example.com/crier/errors",
					RetCode:    3,
				}
			},
		},
	)

	return dispatch.Run(root, dispatch.Options{
		AppName:  "crier-demo",
		Greeting: "crier-demo example application",
	}, func(e *crier.Emitter) { em = e })
}
