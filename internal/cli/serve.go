package cli

import (
	"github.com/spf13/cobra"
)

func newServeCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		Long:  `Serve the recovery API until interrupted. Watches the catalog file when catalog.watch is enabled.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			application, err := opts.openApp(false)
			if err != nil {
				return err
			}
			defer closeApp(application)

			return application.RunServer()
		},
	}
}
