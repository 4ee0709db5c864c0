// Package dispatch runs a cobra command tree under an Emitter, wiring
// the global verbosity flags and the process exit-code policy.
//
// Command grammar, help generation and completion are cobra's own; this
// package only guarantees that the emitter is initialized before any
// command runs and correctly finished on every exit path.
package dispatch

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/harrison/crier"
	"github.com/harrison/crier/config"
)

// Options configures a dispatch run.
type Options struct {
	// AppName names the application; it decides the managed log
	// directory.
	AppName string

	// Greeting is the first record of every run, such as the
	// application name and version. Defaults to "Starting <AppName>".
	Greeting string

	// Config provides the starting verbosity and log options. Nil
	// means defaults.
	Config *config.Config

	// EmitterOptions are passed through to Emitter.Init.
	EmitterOptions []crier.Option
}

// Run executes the command tree and returns the process exit code:
// 0 on success or help, 1 on argument-parsing or internal failure, or
// the code declared by the command's *crier.Error. The setup callback
// receives the initialized Emitter so commands can capture the
// reference before execution starts.
func Run(root *cobra.Command, opts Options, setup func(*crier.Emitter)) int {
	if opts.AppName == "" {
		opts.AppName = root.Name()
	}
	if opts.Greeting == "" {
		opts.Greeting = fmt.Sprintf("Starting %s", opts.AppName)
	}
	cfg := opts.Config
	if cfg == nil {
		cfg = config.DefaultConfig()
	}

	mode, err := cfg.Mode()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	emOpts := opts.EmitterOptions
	if cfg.LogPath != "" {
		emOpts = append(emOpts, crier.WithLogPath(cfg.LogPath))
	}
	if cfg.MaxLogFiles > 0 {
		emOpts = append(emOpts, crier.WithMaxLogFiles(cfg.MaxLogFiles))
	}

	em := crier.New()
	if err := em.Init(mode, opts.AppName, opts.Greeting, emOpts...); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	if setup != nil {
		setup(em)
	}

	registerVerbosityFlags(root, em)

	// Silence cobra's own error/usage echo; the emitter is the only
	// writer to the terminal.
	root.SilenceUsage = true
	root.SilenceErrors = true

	if err := root.Execute(); err != nil {
		var cerr *crier.Error
		if !errors.As(err, &cerr) {
			cerr = &crier.Error{Message: err.Error(), Err: errors.Unwrap(err)}
		}
		em.Error(cerr)
		code := cerr.RetCode
		if code == 0 {
			code = 1
		}
		return code
	}

	em.EndedOK()
	return 0
}

// registerVerbosityFlags installs the global -q/-v/--verbosity surface
// and hooks mode changes in before any command body runs.
func registerVerbosityFlags(root *cobra.Command, em *crier.Emitter) {
	flags := root.PersistentFlags()
	flags.BoolP("quiet", "q", false, "only produce error messages")
	flags.BoolP("verbose", "v", false, "produce more verbose output")
	flags.String("verbosity", "", "set the verbosity level (quiet, brief, verbose, debug or trace)")
	root.MarkFlagsMutuallyExclusive("quiet", "verbose", "verbosity")

	previous := root.PersistentPreRunE
	root.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		switch {
		case mustBool(cmd, "quiet"):
			em.SetMode(crier.Quiet)
		case mustBool(cmd, "verbose"):
			em.SetMode(crier.Verbose)
		default:
			if level, _ := cmd.Flags().GetString("verbosity"); level != "" {
				mode, err := crier.ParseMode(level)
				if err != nil {
					return err
				}
				em.SetMode(mode)
			}
		}
		if previous != nil {
			return previous(cmd, args)
		}
		return nil
	}
}

func mustBool(cmd *cobra.Command, name string) bool {
	v, _ := cmd.Flags().GetBool(name)
	return v
}
