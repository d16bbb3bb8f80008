// Package cli provides the sweepbench command-line interface.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/AndreyAkinshin/sweepbench/internal/config"
	harnesserrors "github.com/AndreyAkinshin/sweepbench/internal/errors"
	"github.com/AndreyAkinshin/sweepbench/internal/output"
	"github.com/AndreyAkinshin/sweepbench/internal/process"
)

// Version is set at build time.
var Version = "dev"

// rootOptions holds global flags for all commands.
type rootOptions struct {
	ConfigPath string
	Quiet      bool
}

// app carries the process-level dependencies of a CLI invocation.
type app struct {
	out     *output.Writer
	stdout  io.Writer
	invoker process.Invoker
	opts    rootOptions
}

// exitCodeError ends a command with a specific exit code after the command
// has already reported the failure itself.
type exitCodeError struct {
	code int
}

func (e exitCodeError) Error() string {
	return fmt.Sprintf("exit status %d", e.code)
}

// Run executes the CLI with the given arguments and returns an exit code.
func Run(ctx context.Context, args []string) int {
	a := &app{
		out:     output.New(),
		stdout:  os.Stdout,
		invoker: process.Exec{},
	}
	return a.execute(ctx, args)
}

func (a *app) execute(ctx context.Context, args []string) int {
	root := a.newRootCommand()
	root.SetArgs(args)

	err := root.ExecuteContext(ctx)
	if err == nil {
		return harnesserrors.ExitSuccess
	}

	var ec exitCodeError
	if errors.As(err, &ec) {
		return ec.code
	}

	var he *harnesserrors.HarnessError
	if !errors.As(err, &he) {
		// cobra argument and command errors
		a.out.ErrorPrefix("%v", err)
		return harnesserrors.ExitConfigError
	}
	a.out.ErrorPrefix("%s", describe(he))
	return he.ExitCode()
}

// describe appends the cause of he unless its message already carries it.
func describe(he *harnesserrors.HarnessError) string {
	msg := he.Error()
	if he.Cause != nil && !strings.Contains(msg, he.Cause.Error()) {
		msg += ": " + he.Cause.Error()
	}
	return msg
}

func (a *app) newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sweepbench",
		Short: "Parameter-sweep experiment harness for a compiled solver",
		Long: `sweepbench builds a numerical solver, runs it once per configured test case,
archives the output files of every run and writes a markdown report.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			a.out.SetQuiet(a.opts.Quiet)
			return nil
		},
	}
	cmd.SetOut(a.stdout)
	cmd.SetFlagErrorFunc(func(c *cobra.Command, err error) error {
		return harnesserrors.Configf("%v (see '%s --help')", err, c.CommandPath())
	})

	cmd.PersistentFlags().StringVarP(&a.opts.ConfigPath, "config", "c", config.DefaultFile, "harness configuration file")
	cmd.PersistentFlags().BoolVarP(&a.opts.Quiet, "quiet", "q", false, "minimal output (errors only)")

	cmd.AddCommand(a.newRunCommand())
	cmd.AddCommand(a.newListCommand())
	cmd.AddCommand(a.newReportCommand())
	cmd.AddCommand(a.newValidateCommand())
	cmd.AddCommand(a.newVersionCommand())

	return cmd
}

// loadConfig loads the configuration named by --config. The default file is
// optional; an explicitly named one must exist.
func (a *app) loadConfig(cmd *cobra.Command) (*config.Config, error) {
	explicit := cmd.Flags().Changed("config")
	cfg, err := config.LoadOptional(a.opts.ConfigPath, explicit)
	if err != nil {
		return nil, configError(a.opts.ConfigPath, err)
	}
	for _, w := range cfg.Settings.ApplyEnv() {
		a.out.Warning("%s", w)
	}
	return cfg, nil
}

func configError(path string, err error) error {
	return &harnesserrors.HarnessError{
		Kind:    harnesserrors.KindConfig,
		Message: fmt.Sprintf("%s: %v", path, err),
		Cause:   err,
	}
}

func (a *app) newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "sweepbench %s\n", Version)
		},
	}
}
