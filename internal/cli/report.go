package cli

import (
	"fmt"
	"runtime"
	"time"

	"github.com/spf13/cobra"

	harnesserrors "github.com/AndreyAkinshin/sweepbench/internal/errors"
	"github.com/AndreyAkinshin/sweepbench/internal/report"
	"github.com/AndreyAkinshin/sweepbench/internal/toolchain"
)

func (a *app) newReportCommand() *cobra.Command {
	var toStdout bool
	var path string

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Write the test plan report without running the solver",
		Long: `Render the report for the configured matrix with every case marked as
not run. Useful for reviewing the hypotheses before a long batch.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.loadConfig(cmd)
			if err != nil {
				return err
			}
			s := cfg.Settings

			compiler := toolchain.NewBuilder(a.invoker, toolchain.Settings{
				Compiler: s.Compiler,
				Flags:    s.Flags,
				Source:   s.Source,
				Output:   s.Executable,
				Dir:      s.WorkDir,
			}).Command()

			content := report.Generate(cfg.Matrix.All(), nil, report.Info{
				GeneratedAt: time.Now(),
				OS:          runtime.GOOS,
				Arch:        runtime.GOARCH,
				Compiler:    compiler.String(),
				Executable:  s.Executable,
				ResultsDir:  s.ResultsDir,
			})

			if toStdout {
				fmt.Fprint(cmd.OutOrStdout(), content)
				return nil
			}
			if path == "" {
				path = s.ReportPath
			}
			if err := report.Write(path, content); err != nil {
				return harnesserrors.Wrap(err, "cannot save report")
			}
			a.out.Info("report written to %s", path)
			return nil
		},
	}

	cmd.Flags().BoolVar(&toStdout, "stdout", false, "print the report instead of writing it")
	cmd.Flags().StringVar(&path, "report", "", "path of the markdown report")
	return cmd
}
