package cmd

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"tunup/internal/config"
	"tunup/internal/hosts"
	"tunup/internal/tunnel"
)

func newDNSCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "dns",
		Short: "Register DNS routes for an existing tunnel",
		Long: `Re-run DNS route registration for the hostnames derived from
SUBDOMAINS and DOMAIN, without re-provisioning the tunnel. Useful after a
run that ended with partial DNS failures.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Resolve(config.SurveyPrompter{})
			if err != nil {
				return err
			}
			if cfg.Mode() != config.ModeSubdomains {
				return fmt.Errorf("dns registration only applies in SUBDOMAINS mode; HOSTS mode requires external DNS setup")
			}

			entries, err := hosts.ParseSubdomains(cfg.Subdomains, cfg.Domain)
			if err != nil {
				return err
			}

			registrar := tunnel.NewRegistrar(tunnel.NewCloudflared(cfg.ConfigDir))
			results := registrar.Register(cmd.Context(), cfg.TunnelName, hosts.Hostnames(entries))

			failed := tunnel.Failed(results)
			for _, r := range results {
				if r.OK() {
					color.Green("  %s registered", r.Hostname)
				}
			}
			for _, r := range failed {
				color.Yellow("  %s failed after %d attempts: %v", r.Hostname, r.Attempts, r.Err)
			}

			// Unlike `up`, this command exists only to create routes, so it
			// fails when none could be created.
			if len(failed) == len(results) {
				return fmt.Errorf("all %d DNS registrations failed", len(results))
			}
			return nil
		},
	}
}
