package cmd

import (
	"github.com/spf13/cobra"

	_ "github.com/joho/godotenv/autoload"

	"tunup/pkg/logger"
	"tunup/pkg/version"
)

var rootCmd = &cobra.Command{
	Use:   "tunup",
	Short: "Provision and run Cloudflare Tunnels",
	Long: `tunup provisions a Cloudflare Tunnel end to end: it resolves hostnames
from the environment, creates the tunnel via cloudflared, generates the
ingress configuration, registers DNS routes and starts the tunnel runtime
as a docker container or systemd service.`,
	SilenceUsage:  true,
	SilenceErrors: false,
}

// Execute wires the subcommands and runs the CLI.
func Execute(build, commit, date string) {
	version.Set(build, commit, date)
	logger.GetLogger().ConfigureFromEnv()

	rootCmd.AddCommand(newUpCommand())
	rootCmd.AddCommand(newLoginCommand())
	rootCmd.AddCommand(newDNSCommand())
	rootCmd.AddCommand(newVersionCommand())

	cobra.CheckErr(rootCmd.Execute())
}
