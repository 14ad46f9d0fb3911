package cmd

import (
	"github.com/spf13/cobra"

	"tunup/internal/config"
	"tunup/internal/tunnel"
)

func newLoginCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Authenticate cloudflared with Cloudflare",
		Long: `Run the interactive browser-based authentication flow. Skipped
automatically when an origin certificate already exists.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			configDir := config.ConfigDir()
			runner := tunnel.NewCloudflared(configDir)
			prov := tunnel.NewProvisioner(runner, configDir)
			return prov.EnsureLogin(cmd.Context())
		},
	}
}
