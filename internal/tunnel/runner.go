// Package tunnel drives the external cloudflared CLI: authentication, tunnel
// creation and DNS route registration.
package tunnel

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"
)

// Runner abstracts the cloudflared invocations so the provisioning and DNS
// logic can be exercised against a fake in tests.
type Runner interface {
	// Login runs the interactive browser-based authentication flow.
	Login(ctx context.Context) error
	// Create creates a named tunnel and returns the combined CLI output.
	Create(ctx context.Context, name string) (string, error)
	// RouteDNS creates a DNS route from fqdn to the named tunnel.
	RouteDNS(ctx context.Context, tunnel, fqdn string) error
}

// Cloudflared runs the real cloudflared binary.
type Cloudflared struct {
	bin       string
	originDir string
	timeout   time.Duration
}

// NewCloudflared returns a Runner using the cloudflared binary on PATH,
// storing its artifacts under originDir.
func NewCloudflared(originDir string) *Cloudflared {
	return &Cloudflared{
		bin:       "cloudflared",
		originDir: originDir,
		timeout:   2 * time.Minute,
	}
}

func (c *Cloudflared) run(ctx context.Context, args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, c.bin, args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		if _, ok := err.(*exec.ExitError); ok {
			return string(output), fmt.Errorf("%s %s failed: %s", c.bin, strings.Join(args, " "), strings.TrimSpace(string(output)))
		}
		return string(output), fmt.Errorf("failed to execute %s: %w", c.bin, err)
	}
	return string(output), nil
}

func (c *Cloudflared) Login(ctx context.Context) error {
	// Login blocks on the operator completing the browser flow, so it gets
	// no timeout and inherits the terminal.
	cmd := exec.CommandContext(ctx, c.bin, "tunnel", "login")
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s tunnel login failed: %w", c.bin, err)
	}
	return nil
}

func (c *Cloudflared) Create(ctx context.Context, name string) (string, error) {
	return c.run(ctx, "tunnel", "--origincert", c.originDir+"/cert.pem", "create", name)
}

func (c *Cloudflared) RouteDNS(ctx context.Context, tunnel, fqdn string) error {
	_, err := c.run(ctx, "tunnel", "route", "dns", tunnel, fqdn)
	return err
}
