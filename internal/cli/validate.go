package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/AndreyAkinshin/sweepbench/internal/config"
)

func (a *app) newValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate [file]",
		Short: "Validate a configuration file without running anything",
		Long: `Validate a sweepbench configuration file against the schema and the
matrix rules (unique ids, unique parameter names, non-empty sweeps).
Defaults to the file given by --config.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := a.opts.ConfigPath
			if len(args) == 1 {
				path = args[0]
			}

			data, err := os.ReadFile(path)
			if err != nil {
				return configError(path, err)
			}
			cfg, err := config.Parse(data)
			if err != nil {
				return configError(path, err)
			}

			a.out.Println("✓ %s is valid (%d test case(s))", path, cfg.Matrix.Len())
			return nil
		},
	}
}
