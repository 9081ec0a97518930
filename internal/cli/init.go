package cli

import (
	"github.com/gmsas95/recovery-tracker/internal/onboarding"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newInitCmd(opts *options) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Interactively write a recovery.yaml",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := onboarding.NewWizard(cmd.InOrStdin(), cmd.OutOrStdout(), zap.NewNop(), opts.dataDir).
				Force(force).
				Run()
			return err
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing config file")
	return cmd
}
