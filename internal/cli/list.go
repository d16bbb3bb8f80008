package cli

import (
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/AndreyAkinshin/sweepbench/internal/report"
	"github.com/AndreyAkinshin/sweepbench/internal/solver"
)

func (a *app) newListCommand() *cobra.Command {
	var showArgs bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the configured test cases",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.loadConfig(cmd)
			if err != nil {
				return err
			}

			headers := []string{"ID", "Case", "Parameters"}
			if showArgs {
				headers = append(headers, "Arguments")
			}

			var rows [][]string
			for _, tc := range cfg.Matrix.All() {
				params := make([]string, 0, len(tc.Params))
				for _, p := range tc.Params {
					params = append(params, report.FormatParam(p))
				}
				row := []string{strconv.Itoa(tc.ID), tc.Name, strings.Join(params, "\n")}
				if showArgs {
					row = append(row, strings.Join(solver.BuildArgs(tc), " "))
				}
				rows = append(rows, row)
			}

			a.out.Table("", headers, rows, "ID")
			return nil
		},
	}

	cmd.Flags().BoolVar(&showArgs, "args", false, "show the solver arguments of each case")
	return cmd
}
