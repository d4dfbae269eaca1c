package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/markout/internal/ir"
	"github.com/roach88/markout/internal/logging"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"
	LogFile string
	Trace   bool

	// Logger is installed by the root command before any subcommand runs.
	Logger *slog.Logger

	cleanup []func(context.Context) error
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the markout CLI.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "markout",
		Short:   "FIFO round-trip matching and markout for fill records",
		Long:    "Pairs entry and exit fills first-in-first-out within position episodes and records the markout of every matched lot.",
		Version: ir.EngineVersion,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return opts.setup(cmd)
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output and debug logging")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.LogFile, "log-file", "", "write logs to a rotated file instead of stderr")
	cmd.PersistentFlags().BoolVar(&opts.Trace, "trace", false, "export OpenTelemetry spans to stderr")

	cmd.AddCommand(NewMatchCommand(opts))
	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewReplayCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))
	cmd.AddCommand(NewShowCommand(opts))

	return cmd
}

// setup installs the logger and, with --trace, the span exporter.
func (o *RootOptions) setup(cmd *cobra.Command) error {
	logger, closer, err := logging.New(logging.Options{
		Format:  o.Format,
		Verbose: o.Verbose,
		File:    o.LogFile,
		Stderr:  cmd.ErrOrStderr(),
	})
	if err != nil {
		return err
	}
	prev := slog.Default()
	slog.SetDefault(logger)
	o.Logger = logger
	o.cleanup = append(o.cleanup, func(context.Context) error {
		slog.SetDefault(prev)
		return closer.Close()
	})

	if o.Trace {
		shutdown, err := logging.SetupTracing(cmd.Context(), cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		o.cleanup = append(o.cleanup, shutdown)
	}
	return nil
}

// Close runs cleanup in reverse order of setup.
func (o *RootOptions) Close(ctx context.Context) error {
	var errs []error
	for _, fn := range slices.Backward(o.cleanup) {
		errs = append(errs, fn(ctx))
	}
	o.cleanup = nil
	return errors.Join(errs...)
}

func (o *RootOptions) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.Default()
}

func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Verbose,
	}
}

// Execute runs the CLI with args and returns the process exit code.
// Commands report their own failures; any other error (bad flags, unknown
// commands) is printed to stderr and exits with ExitCommandError.
func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	opts := &RootOptions{}
	cmd := newRootCommand(opts)
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SilenceUsage = true
	cmd.SilenceErrors = true

	err := cmd.ExecuteContext(ctx)
	if cerr := opts.Close(context.WithoutCancel(ctx)); cerr != nil {
		fmt.Fprintf(stderr, "Error: cleanup: %v\n", cerr)
	}
	if err == nil {
		return ExitSuccess
	}

	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	fmt.Fprintf(stderr, "Error: %v\n", err)
	return ExitCommandError
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}
