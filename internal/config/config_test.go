package config

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePrompter struct {
	answers map[string]string
	asked   []string
}

func (f *fakePrompter) Ask(message string) (string, error) {
	f.asked = append(f.asked, message)
	return f.answers[message], nil
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"TUNNEL_NAME", "DOMAIN", "SUBDOMAINS", "HOSTS",
		"TUNUP_CONFIG_DIR", "TUNUP_IMAGE", "TUNUP_SERVICE_NAME",
		"TUNUP_CONTAINER_NAME", "TUNUP_NETWORK", "TUNUP_METRICS_PORT",
		"TUNNEL_LOGLEVEL",
	} {
		t.Setenv(key, "")
	}
}

func TestResolve_SubdomainsFromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("TUNNEL_NAME", "mytunnel")
	t.Setenv("DOMAIN", "example.com")
	t.Setenv("SUBDOMAINS", "web:3000,api")

	cfg, err := Resolve(&fakePrompter{})
	require.NoError(t, err)

	assert.Equal(t, "mytunnel", cfg.TunnelName)
	assert.Equal(t, "example.com", cfg.Domain)
	assert.Equal(t, "web:3000,api", cfg.Subdomains)
	assert.Equal(t, ModeSubdomains, cfg.Mode())
	assert.Equal(t, "cloudflare/cloudflared:latest", cfg.Image)
	assert.Equal(t, "cloudflared", cfg.ServiceName)
	assert.Equal(t, "cloudflared-mytunnel", cfg.ContainerName)
	assert.Equal(t, "host", cfg.Network)
}

func TestResolve_HostsMode(t *testing.T) {
	clearEnv(t)
	t.Setenv("TUNNEL_NAME", "mytunnel")
	t.Setenv("HOSTS", "a.com:http://localhost:1")

	cfg, err := Resolve(&fakePrompter{})
	require.NoError(t, err)
	assert.Equal(t, ModeHosts, cfg.Mode())
}

func TestResolve_MutuallyExclusiveModes(t *testing.T) {
	cases := []struct {
		name       string
		subdomains string
		domain     string
	}{
		{name: "hosts and subdomains", subdomains: "web"},
		{name: "hosts and domain", domain: "example.com"},
		{name: "hosts and both", subdomains: "web", domain: "example.com"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv("TUNNEL_NAME", "mytunnel")
			t.Setenv("HOSTS", "a.com:http://localhost:1")
			t.Setenv("SUBDOMAINS", tc.subdomains)
			t.Setenv("DOMAIN", tc.domain)

			_, err := Resolve(&fakePrompter{})
			var cfgErr *ConfigError
			require.Error(t, err)
			assert.True(t, errors.As(err, &cfgErr))
		})
	}
}

func TestResolve_PromptsForTunnelName(t *testing.T) {
	clearEnv(t)
	t.Setenv("HOSTS", "a.com:http://localhost:1")

	prompter := &fakePrompter{answers: map[string]string{
		"Tunnel name:": "prompted",
	}}
	cfg, err := Resolve(prompter)
	require.NoError(t, err)
	assert.Equal(t, "prompted", cfg.TunnelName)
	assert.Equal(t, "cloudflared-prompted", cfg.ContainerName)
}

func TestResolve_EmptyTunnelNameAfterPrompt(t *testing.T) {
	clearEnv(t)
	t.Setenv("HOSTS", "a.com:http://localhost:1")

	_, err := Resolve(&fakePrompter{})
	var cfgErr *ConfigError
	require.Error(t, err)
	assert.True(t, errors.As(err, &cfgErr))
}

func TestResolve_PromptsForDomainInSubdomainMode(t *testing.T) {
	clearEnv(t)
	t.Setenv("TUNNEL_NAME", "mytunnel")
	t.Setenv("SUBDOMAINS", "web")

	prompter := &fakePrompter{answers: map[string]string{
		"Domain (e.g. example.com):": "example.com",
	}}
	cfg, err := Resolve(prompter)
	require.NoError(t, err)
	assert.Equal(t, "example.com", cfg.Domain)
}

func TestResolve_EmptyDomainAfterPrompt(t *testing.T) {
	clearEnv(t)
	t.Setenv("TUNNEL_NAME", "mytunnel")
	t.Setenv("SUBDOMAINS", "web")

	_, err := Resolve(&fakePrompter{})
	var cfgErr *ConfigError
	require.Error(t, err)
	assert.True(t, errors.As(err, &cfgErr))
}

func TestResolve_TrimsWhitespace(t *testing.T) {
	clearEnv(t)
	t.Setenv("TUNNEL_NAME", "  mytunnel  ")
	t.Setenv("HOSTS", " a.com:http://localhost:1 ")

	cfg, err := Resolve(&fakePrompter{})
	require.NoError(t, err)
	assert.Equal(t, "mytunnel", cfg.TunnelName)
	assert.Equal(t, "a.com:http://localhost:1", cfg.Hosts)
}

func TestResolve_DeploymentOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("TUNNEL_NAME", "mytunnel")
	t.Setenv("HOSTS", "a.com:http://localhost:1")
	t.Setenv("TUNUP_CONTAINER_NAME", "custom-name")
	t.Setenv("TUNUP_IMAGE", "cloudflare/cloudflared:2024.1.0")
	t.Setenv("TUNUP_CONFIG_DIR", "/opt/cloudflared")

	cfg, err := Resolve(&fakePrompter{})
	require.NoError(t, err)
	assert.Equal(t, "custom-name", cfg.ContainerName)
	assert.Equal(t, "cloudflare/cloudflared:2024.1.0", cfg.Image)
	assert.Equal(t, "/opt/cloudflared", cfg.ConfigDir)
}
