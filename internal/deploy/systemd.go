package deploy

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/charmbracelet/log"
)

// SystemdOptions configures the systemd-managed runtime.
type SystemdOptions struct {
	ServiceName string
	ConfigPath  string // path of the generated config.yml on the host
}

// Systemd deploys the tunnel runtime as a systemd service. The unit itself
// is installed by `cloudflared service install`; this deployer only restarts
// and verifies it.
type Systemd struct {
	opts  SystemdOptions
	grace time.Duration

	// runCmd is swappable in tests.
	runCmd func(ctx context.Context, name string, args ...string) ([]byte, error)
}

// NewSystemd returns a Systemd deployer for the named service.
func NewSystemd(opts SystemdOptions) *Systemd {
	return &Systemd{
		opts:  opts,
		grace: 3 * time.Second,
		runCmd: func(ctx context.Context, name string, args ...string) ([]byte, error) {
			return exec.CommandContext(ctx, name, args...).CombinedOutput()
		},
	}
}

// Deploy installs the service unit if needed, restarts it and verifies that
// it is active after a short grace period.
func (s *Systemd) Deploy(ctx context.Context) error {
	if !s.unitInstalled(ctx) {
		log.Info("Installing cloudflared service unit", "config", s.opts.ConfigPath)
		out, err := s.runCmd(ctx, "cloudflared", "--config", s.opts.ConfigPath, "service", "install")
		if err != nil {
			return &DeployError{Reason: "installing service unit", Logs: string(out), Err: err}
		}
	}

	out, err := s.runCmd(ctx, "systemctl", "restart", s.opts.ServiceName)
	if err != nil {
		return &DeployError{Reason: fmt.Sprintf("restarting service %q", s.opts.ServiceName), Logs: string(out), Err: err}
	}

	time.Sleep(s.grace)

	if _, err := s.runCmd(ctx, "systemctl", "is-active", "--quiet", s.opts.ServiceName); err != nil {
		return &DeployError{
			Reason: fmt.Sprintf("service %q not active after restart", s.opts.ServiceName),
			Logs:   s.tailJournal(ctx),
			Err:    err,
		}
	}

	log.Info("Service active", "name", s.opts.ServiceName)
	return nil
}

func (s *Systemd) unitInstalled(ctx context.Context) bool {
	out, err := s.runCmd(ctx, "systemctl", "cat", s.opts.ServiceName)
	return err == nil && strings.TrimSpace(string(out)) != ""
}

func (s *Systemd) tailJournal(ctx context.Context) string {
	out, err := s.runCmd(ctx, "journalctl", "-u", s.opts.ServiceName, "-n", "20", "--no-pager")
	if err != nil {
		log.Warn("Could not capture service journal", "error", err)
		return ""
	}
	return string(out)
}
