// Package config resolves the run configuration from the environment,
// prompting interactively for values that are required but missing.
package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/AlecAivazis/survey/v2"
)

// Mode selects how public hostnames are derived.
type Mode int

const (
	// ModeSubdomains combines SUBDOMAINS labels with DOMAIN.
	ModeSubdomains Mode = iota
	// ModeHosts takes fully qualified hostname:service pairs from HOSTS.
	// DNS routes are not created in this mode and must be managed externally.
	ModeHosts
)

// ConfigError indicates bad or missing run configuration.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string {
	return "invalid configuration: " + e.Reason
}

// Config is the immutable run configuration, constructed once at startup and
// passed explicitly to every stage.
type Config struct {
	TunnelName string
	Domain     string
	Subdomains string // raw SUBDOMAINS value, parsed by the hosts package
	Hosts      string // raw HOSTS value, parsed by the hosts package

	ConfigDir     string
	ContainerName string
	Image         string
	ServiceName   string
	Network       string
	MetricsPort   string
	LogLevel      string
}

// Mode returns the addressing mode implied by the configured inputs.
func (c *Config) Mode() Mode {
	if c.Hosts != "" {
		return ModeHosts
	}
	return ModeSubdomains
}

// Prompter asks the operator for a single line of input.
type Prompter interface {
	Ask(message string) (string, error)
}

// SurveyPrompter prompts on the terminal via survey.
type SurveyPrompter struct{}

func (SurveyPrompter) Ask(message string) (string, error) {
	var answer string
	prompt := &survey.Input{Message: message}
	if err := survey.AskOne(prompt, &answer); err != nil {
		return "", err
	}
	return strings.TrimSpace(answer), nil
}

func getenv(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func defaultConfigDir() string {
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".cloudflared")
	}
	return "/etc/cloudflared"
}

// ConfigDir returns the cloudflared artifact directory, honoring
// TUNUP_CONFIG_DIR, for commands that do not need a full Resolve.
func ConfigDir() string {
	if dir := getenv("TUNUP_CONFIG_DIR"); dir != "" {
		return dir
	}
	return defaultConfigDir()
}

// Resolve builds the run configuration from the environment, prompting for
// the tunnel name and, in subdomain mode, the domain when they are absent.
// HOSTS and SUBDOMAINS/DOMAIN are mutually exclusive addressing modes.
func Resolve(prompt Prompter) (*Config, error) {
	cfg := &Config{
		TunnelName:  getenv("TUNNEL_NAME"),
		Domain:      getenv("DOMAIN"),
		Subdomains:  getenv("SUBDOMAINS"),
		Hosts:       getenv("HOSTS"),
		ConfigDir:   getenv("TUNUP_CONFIG_DIR"),
		Image:       getenv("TUNUP_IMAGE"),
		ServiceName: getenv("TUNUP_SERVICE_NAME"),
		Network:     getenv("TUNUP_NETWORK"),
		MetricsPort: getenv("TUNUP_METRICS_PORT"),
		LogLevel:    getenv("TUNNEL_LOGLEVEL"),
	}

	if cfg.Hosts != "" && (cfg.Subdomains != "" || cfg.Domain != "") {
		return nil, &ConfigError{Reason: "HOSTS and SUBDOMAINS/DOMAIN are mutually exclusive, set only one addressing mode"}
	}

	if cfg.TunnelName == "" {
		answer, err := prompt.Ask("Tunnel name:")
		if err != nil {
			return nil, err
		}
		cfg.TunnelName = answer
	}
	if cfg.TunnelName == "" {
		return nil, &ConfigError{Reason: "tunnel name is required"}
	}

	if cfg.Mode() == ModeSubdomains && cfg.Domain == "" {
		answer, err := prompt.Ask("Domain (e.g. example.com):")
		if err != nil {
			return nil, err
		}
		cfg.Domain = answer
		if cfg.Domain == "" {
			return nil, &ConfigError{Reason: "domain is required in subdomain mode"}
		}
	}

	if cfg.Mode() == ModeSubdomains && cfg.Subdomains == "" {
		answer, err := prompt.Ask("Subdomains (comma-separated label[:port]):")
		if err != nil {
			return nil, err
		}
		cfg.Subdomains = answer
	}

	if cfg.ConfigDir == "" {
		cfg.ConfigDir = defaultConfigDir()
	}
	if cfg.Image == "" {
		cfg.Image = "cloudflare/cloudflared:latest"
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = "cloudflared"
	}
	if cfg.Network == "" {
		cfg.Network = "host"
	}
	cfg.ContainerName = getenv("TUNUP_CONTAINER_NAME")
	if cfg.ContainerName == "" {
		cfg.ContainerName = "cloudflared-" + cfg.TunnelName
	}

	return cfg, nil
}
