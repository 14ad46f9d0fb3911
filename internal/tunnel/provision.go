package tunnel

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
)

// AuthError indicates the interactive login flow failed.
type AuthError struct {
	Err error
}

func (e *AuthError) Error() string { return "authentication failed: " + e.Err.Error() }
func (e *AuthError) Unwrap() error { return e.Err }

// ProvisionError indicates tunnel creation failed or did not produce the
// expected artifacts.
type ProvisionError struct {
	Reason string
	Err    error
}

func (e *ProvisionError) Error() string {
	if e.Err != nil {
		return "provisioning failed: " + e.Reason + ": " + e.Err.Error()
	}
	return "provisioning failed: " + e.Reason
}

func (e *ProvisionError) Unwrap() error { return e.Err }

// Identity describes a provisioned tunnel. ID and CredentialsPath are
// authoritative outputs of the provider, never fabricated locally.
type Identity struct {
	Name            string
	ID              string
	CredentialsPath string
}

var (
	tunnelIDRegexp  = regexp.MustCompile(`[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}`)
	credsFileRegexp = regexp.MustCompile(`credentials written to (\S+\.json)`)
)

// Provisioner creates tunnels through a Runner and resolves the resulting
// credentials file on disk.
type Provisioner struct {
	runner    Runner
	originDir string
}

// NewProvisioner returns a Provisioner storing artifacts under originDir.
func NewProvisioner(r Runner, originDir string) *Provisioner {
	return &Provisioner{runner: r, originDir: originDir}
}

// CertPath returns the path of the origin certificate produced by login.
func (p *Provisioner) CertPath() string {
	return filepath.Join(p.originDir, "cert.pem")
}

// EnsureLogin runs the interactive login flow unless an origin certificate
// already exists.
func (p *Provisioner) EnsureLogin(ctx context.Context) error {
	if _, err := os.Stat(p.CertPath()); err == nil {
		log.Debug("Origin certificate already present, skipping login", "path", p.CertPath())
		return nil
	}

	log.Info("No origin certificate found, starting interactive login")
	if err := p.runner.Login(ctx); err != nil {
		return &AuthError{Err: err}
	}

	if err := os.Chmod(p.CertPath(), 0o600); err != nil {
		log.Warn("Could not restrict certificate permissions", "path", p.CertPath(), "error", err)
	}
	return nil
}

// Provision creates the named tunnel and locates its credentials file.
// When the path reported by the CLI is absent, <originDir>/<id>.json is
// probed as a fallback before giving up.
func (p *Provisioner) Provision(ctx context.Context, name string) (*Identity, error) {
	output, err := p.runner.Create(ctx, name)
	if err != nil {
		return nil, &ProvisionError{Reason: fmt.Sprintf("creating tunnel %q", name), Err: err}
	}

	id := tunnelIDRegexp.FindString(output)
	if id == "" {
		return nil, &ProvisionError{Reason: "no tunnel ID in cloudflared output"}
	}
	if _, err := uuid.Parse(id); err != nil {
		return nil, &ProvisionError{Reason: fmt.Sprintf("malformed tunnel ID %q", id), Err: err}
	}

	credsPath := ""
	if m := credsFileRegexp.FindStringSubmatch(output); m != nil {
		credsPath = m[1]
	}
	if credsPath == "" || !fileExists(credsPath) {
		fallback := filepath.Join(p.originDir, id+".json")
		if !fileExists(fallback) {
			return nil, &ProvisionError{Reason: fmt.Sprintf("credentials file not found (looked at %q and %q)", credsPath, fallback)}
		}
		log.Warn("Using fallback credentials file location", "path", fallback)
		credsPath = fallback
	}

	if err := os.Chmod(credsPath, 0o600); err != nil {
		log.Warn("Could not restrict credentials permissions", "path", credsPath, "error", err)
	}

	log.Info("Tunnel created", "name", name, "id", id, "credentials", credsPath)
	return &Identity{Name: name, ID: id, CredentialsPath: credsPath}, nil
}

func fileExists(path string) bool {
	if path == "" {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
