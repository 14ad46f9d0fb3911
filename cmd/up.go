package cmd

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"tunup/internal/config"
	"tunup/internal/deploy"
	"tunup/internal/hosts"
	"tunup/internal/ingress"
	"tunup/internal/tunnel"
)

func newUpCommand() *cobra.Command {
	var deployMode string
	var dryRun bool

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Provision a tunnel and start its runtime",
		Long: `Resolve hostnames from HOSTS or SUBDOMAINS+DOMAIN, create the tunnel,
write the ingress configuration, register DNS routes (subdomain mode only)
and start the tunnel runtime.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			switch deployMode {
			case "docker", "systemd", "none":
			default:
				return fmt.Errorf("unknown deploy mode %q (expected docker, systemd or none)", deployMode)
			}

			cfg, err := config.Resolve(config.SurveyPrompter{})
			if err != nil {
				return err
			}

			entries, err := parseEntries(cfg)
			if err != nil {
				return err
			}
			log.Info("Resolved host entries", "count", len(entries), "tunnel", cfg.TunnelName)

			runner := tunnel.NewCloudflared(cfg.ConfigDir)
			prov := tunnel.NewProvisioner(runner, cfg.ConfigDir)

			if err := prov.EnsureLogin(ctx); err != nil {
				return err
			}

			identity, err := prov.Provision(ctx, cfg.TunnelName)
			if err != nil {
				return err
			}

			// The credentials path in config.yml must be the one the runtime
			// sees: the container reads the bind-mounted copy, the service
			// reads the host file directly.
			credsPath := identity.CredentialsPath
			if deployMode == "docker" {
				credsPath = "/etc/cloudflared/" + filepath.Base(identity.CredentialsPath)
			}

			doc, err := ingress.Build(identity.ID, credsPath, cfg.LogLevel, entries)
			if err != nil {
				return err
			}
			configPath := filepath.Join(cfg.ConfigDir, "config.yml")
			if err := ingress.Write(configPath, doc); err != nil {
				return err
			}
			log.Info("Ingress configuration written", "path", configPath, "rules", len(doc.Ingress))

			if dryRun {
				color.Yellow("Dry run: skipping DNS registration and deployment")
				return nil
			}

			var dnsResults []tunnel.RecordResult
			if cfg.Mode() == config.ModeSubdomains {
				registrar := tunnel.NewRegistrar(runner)
				dnsResults = registrar.Register(ctx, identity.Name, hosts.Hostnames(entries))
			} else {
				log.Info("HOSTS mode: DNS records are not created automatically, point each hostname at the tunnel yourself")
			}

			if err := deployRuntime(ctx, cfg, configPath, deployMode); err != nil {
				return err
			}

			printSummary(identity, entries, dnsResults, deployMode)
			return nil
		},
	}

	upCmd.Flags().StringVar(&deployMode, "deploy", "docker", "runtime to start: docker, systemd or none")
	upCmd.Flags().BoolVar(&dryRun, "dry-run", false, "stop after writing the ingress configuration")
	return upCmd
}

func parseEntries(cfg *config.Config) (map[string]hosts.Entry, error) {
	if cfg.Mode() == config.ModeHosts {
		return hosts.ParseHosts(cfg.Hosts)
	}
	return hosts.ParseSubdomains(cfg.Subdomains, cfg.Domain)
}

func deployRuntime(ctx context.Context, cfg *config.Config, configPath, mode string) error {
	switch mode {
	case "docker":
		deployer, err := deploy.NewDocker(deploy.DockerOptions{
			ContainerName: cfg.ContainerName,
			Image:         cfg.Image,
			ConfigDir:     cfg.ConfigDir,
			Network:       cfg.Network,
			MetricsPort:   cfg.MetricsPort,
		})
		if err != nil {
			return err
		}
		return deployer.Deploy(ctx)
	case "systemd":
		deployer := deploy.NewSystemd(deploy.SystemdOptions{
			ServiceName: cfg.ServiceName,
			ConfigPath:  configPath,
		})
		return deployer.Deploy(ctx)
	case "none":
		log.Info("Deployment skipped", "deploy", mode)
		return nil
	default:
		return fmt.Errorf("unknown deploy mode %q (expected docker, systemd or none)", mode)
	}
}

func printSummary(identity *tunnel.Identity, entries map[string]hosts.Entry, dnsResults []tunnel.RecordResult, mode string) {
	color.Green("Tunnel %q is up (id %s)", identity.Name, identity.ID)
	for _, hostname := range hosts.Hostnames(entries) {
		fmt.Printf("  https://%s -> %s\n", hostname, entries[hostname].Service)
	}

	if failed := tunnel.Failed(dnsResults); len(failed) > 0 {
		color.Yellow("%d DNS route(s) could not be created:", len(failed))
		for _, r := range failed {
			color.Yellow("  %s (after %d attempts): %v", r.Hostname, r.Attempts, r.Err)
		}
		color.Yellow("The tunnel itself is running. Re-run registration with: tunup dns")
	}

	if mode == "none" {
		fmt.Println("Start the runtime manually with: cloudflared tunnel run " + identity.Name)
	}
}
