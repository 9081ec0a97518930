package cli

import (
	"fmt"
	"time"

	"github.com/gmsas95/recovery-tracker/internal/api"
	"github.com/spf13/cobra"
)

func newTokenCmd(opts *options) *cobra.Command {
	var ttl time.Duration

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a development bearer token for a patient",
		Long: `Sign a bearer token for --patient with the configured security.jwt_secret.
The server only accepts it when both share the same secret, so set
RECOVERY_SECURITY_JWT_SECRET or security.jwt_secret explicitly.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			patient, err := opts.requirePatient()
			if err != nil {
				return err
			}

			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}

			token, err := api.IssueToken(cfg.Security.JWTSecret, patient, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "Token lifetime")
	return cmd
}
