package cli

import (
	"time"

	"github.com/spf13/cobra"

	harnesserrors "github.com/AndreyAkinshin/sweepbench/internal/errors"
	"github.com/AndreyAkinshin/sweepbench/internal/runner"
)

type runOptions struct {
	Cases      []int
	Timeout    time.Duration
	ResultsDir string
	ReportPath string
	SkipBuild  bool
}

func (a *app) newRunCommand() *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Build the solver and run the test matrix",
		Long: `Build the solver once, then run every selected test case in ascending id
order. Output files of each run are archived under the results directory and
a markdown report is written at the end, even when some cases fail.

Exit status is 0 only if the build and every selected case succeeded.`,
		Example: `  sweepbench run
  sweepbench run --case 2 --timeout 10m
  sweepbench run --skip-build -q`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runRun(cmd, opts)
		},
	}

	cmd.Flags().IntSliceVar(&opts.Cases, "case", nil, "run only the given test case id (repeatable)")
	cmd.Flags().DurationVar(&opts.Timeout, "timeout", 0, "per-case solver timeout (0 disables)")
	cmd.Flags().StringVar(&opts.ResultsDir, "results-dir", "", "directory for archived artifacts")
	cmd.Flags().StringVar(&opts.ReportPath, "report", "", "path of the markdown report")
	cmd.Flags().BoolVar(&opts.SkipBuild, "skip-build", false, "use the existing executable instead of compiling")

	return cmd
}

func (a *app) runRun(cmd *cobra.Command, opts *runOptions) error {
	cfg, err := a.loadConfig(cmd)
	if err != nil {
		return err
	}

	s := cfg.Settings
	if cmd.Flags().Changed("timeout") {
		if opts.Timeout < 0 {
			return harnesserrors.Configf("--timeout must not be negative, got %s", opts.Timeout)
		}
		s.Timeout = opts.Timeout
	}
	if opts.ResultsDir != "" {
		s.ResultsDir = opts.ResultsDir
	}
	if opts.ReportPath != "" {
		s.ReportPath = opts.ReportPath
	}

	reg := cfg.Matrix
	if len(opts.Cases) > 0 {
		reg, err = reg.Select(opts.Cases)
		if err != nil {
			return harnesserrors.Config(err.Error())
		}
	}

	o := runner.New(runner.Options{
		Settings:  s,
		Matrix:    reg,
		Invoker:   a.invoker,
		Out:       a.out,
		SkipBuild: opts.SkipBuild,
	})
	a.out.Info("run %s: %d test case(s)", o.RunID(), reg.Len())

	summary, _ := o.Run(cmd.Context())
	if code := summary.ExitCode(); code != harnesserrors.ExitSuccess {
		return exitCodeError{code: code}
	}
	return nil
}
