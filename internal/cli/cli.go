// Package cli declares the jarvis command tree. Command behavior lives
// behind Handlers so the tree can be exercised without audio or a daemon.
package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rbright/jarvis/internal/version"
	"github.com/spf13/cobra"
)

// Options are the persistent flags shared by every command.
type Options struct {
	ConfigPath  string
	Verbose     bool
	Test        bool
	TestText    string
	TestTextSet bool
}

// Handlers implements each command.
type Handlers interface {
	Run(ctx context.Context, opts Options) error
	Listen(ctx context.Context, opts Options) error
	Status(ctx context.Context, opts Options) error
	Commands(ctx context.Context, opts Options) error
	Match(ctx context.Context, opts Options, text string) error
	Devices(ctx context.Context, opts Options) error
	Doctor(ctx context.Context, opts Options) error
	Version(ctx context.Context, opts Options) error
}

// UsageError marks bad invocations. They exit with status 2.
type UsageError struct {
	Err error
}

func (e UsageError) Error() string { return e.Err.Error() }
func (e UsageError) Unwrap() error { return e.Err }

func usageErrorf(format string, args ...any) error {
	return UsageError{Err: fmt.Errorf(format, args...)}
}

// ExitCode maps a command error to a process exit status.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var usage UsageError
	if errors.As(err, &usage) {
		return 2
	}
	return 1
}

// NewRootCommand returns the root command with all subcommands attached.
func NewRootCommand(h Handlers) *cobra.Command {
	cobra.EnableCommandSorting = false
	opts := &Options{}

	root := &cobra.Command{
		Use:   "jarvis",
		Short: "Wake-word voice command daemon.",
		Long: `jarvis listens for a wake phrase, captures the command that follows, and runs
the matching entry from the command table. Transcripts, dispatches and state
changes are published on a local websocket channel.`,
		Version:       version.String(),
		SilenceErrors: true,
		SilenceUsage:  true,
		Args:          noArgs,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			opts.TestTextSet = cmd.Flags().Changed("test-text")
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return h.Run(cmd.Context(), *opts)
		},
	}
	root.SetVersionTemplate("{{.Version}}\n")
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return UsageError{Err: err}
	})

	flags := root.PersistentFlags()
	flags.StringVar(&opts.ConfigPath, "config", "", "config file path (default: $XDG_CONFIG_HOME/jarvis/config.jsonc)")
	flags.BoolVarP(&opts.Verbose, "verbose", "v", false, "log debug records to the console")
	flags.BoolVar(&opts.Test, "test", false, "replace audio capture with canned text")
	flags.StringVar(&opts.TestText, "test-text", "", "canned transcript used by --test (default \"open google\")")

	root.AddCommand(
		&cobra.Command{
			Use:   "run",
			Short: "Run the daemon (default)",
			Args:  noArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return h.Run(cmd.Context(), *opts)
			},
		},
		&cobra.Command{
			Use:   "listen",
			Short: "Ask the running daemon to capture a command now",
			Args:  noArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return h.Listen(cmd.Context(), *opts)
			},
		},
		&cobra.Command{
			Use:   "status",
			Short: "Print the daemon state",
			Args:  noArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return h.Status(cmd.Context(), *opts)
			},
		},
		&cobra.Command{
			Use:   "commands",
			Short: "Print the command table in match order",
			Args:  noArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return h.Commands(cmd.Context(), *opts)
			},
		},
		&cobra.Command{
			Use:     "match TEXT",
			Short:   "Show the wake verdict and matched trigger for TEXT",
			Example: "$ jarvis match \"hey jarvis open youtube\"",
			Args: func(_ *cobra.Command, args []string) error {
				if len(args) == 0 {
					return usageErrorf("match requires text")
				}
				return nil
			},
			RunE: func(cmd *cobra.Command, args []string) error {
				return h.Match(cmd.Context(), *opts, strings.Join(args, " "))
			},
		},
		&cobra.Command{
			Use:   "devices",
			Short: "List available input devices",
			Args:  noArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return h.Devices(cmd.Context(), *opts)
			},
		},
		&cobra.Command{
			Use:   "doctor",
			Short: "Run configuration and environment checks",
			Args:  noArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return h.Doctor(cmd.Context(), *opts)
			},
		},
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Args:  noArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return h.Version(cmd.Context(), *opts)
			},
		},
	)

	return root
}

func noArgs(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return nil
	}
	if !cmd.HasParent() {
		return usageErrorf("unknown command %q", args[0])
	}
	return usageErrorf("unexpected arguments after command %q", cmd.Name())
}
