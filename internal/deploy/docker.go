package deploy

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"
	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
	"github.com/docker/go-connections/nat"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
)

// containerAPI is the slice of the docker client the deployer needs,
// substitutable with a fake in tests.
type containerAPI interface {
	ImagePull(ctx context.Context, ref string, options image.PullOptions) (io.ReadCloser, error)
	ContainerCreate(ctx context.Context, config *container.Config, hostConfig *container.HostConfig, networkingConfig *network.NetworkingConfig, platform *ocispec.Platform, containerName string) (container.CreateResponse, error)
	ContainerStart(ctx context.Context, containerID string, options container.StartOptions) error
	ContainerInspect(ctx context.Context, containerID string) (types.ContainerJSON, error)
	ContainerRemove(ctx context.Context, containerID string, options container.RemoveOptions) error
	ContainerLogs(ctx context.Context, containerID string, options container.LogsOptions) (io.ReadCloser, error)
}

// DockerOptions configures the containerized runtime.
type DockerOptions struct {
	ContainerName string
	Image         string
	ConfigDir     string // host directory holding config.yml and credentials
	Network       string // docker network mode, "host" by default
	MetricsPort   string // optional host port publishing the metrics endpoint
}

// Docker deploys the tunnel runtime as a container, bind-mounting the host
// config directory read-only at /etc/cloudflared.
type Docker struct {
	cli   containerAPI
	opts  DockerOptions
	grace time.Duration
}

// NewDocker returns a Docker deployer using the default docker client.
func NewDocker(opts DockerOptions) (*Docker, error) {
	cli, err := client.NewClientWithOpts(
		client.FromEnv,
		client.WithAPIVersionNegotiation(),
	)
	if err != nil {
		return nil, fmt.Errorf("initializing docker client: %w", err)
	}
	return &Docker{cli: cli, opts: opts, grace: 10 * time.Second}, nil
}

// Deploy replaces any container with the same name and starts a fresh one,
// failing if the new container is not running after the grace period.
func (d *Docker) Deploy(ctx context.Context) error {
	// Idempotent restart: drop the previous instance if one exists.
	err := d.cli.ContainerRemove(ctx, d.opts.ContainerName, container.RemoveOptions{Force: true})
	if err != nil && !client.IsErrNotFound(err) {
		return &DeployError{Reason: fmt.Sprintf("removing existing container %q", d.opts.ContainerName), Err: err}
	}
	if err == nil {
		log.Info("Removed existing container", "name", d.opts.ContainerName)
	}

	reader, err := d.cli.ImagePull(ctx, d.opts.Image, image.PullOptions{})
	if err != nil {
		return &DeployError{Reason: fmt.Sprintf("pulling image %q", d.opts.Image), Err: err}
	}
	if _, err := io.Copy(io.Discard, reader); err != nil {
		reader.Close()
		return &DeployError{Reason: "reading image pull stream", Err: err}
	}
	reader.Close()

	cmd := []string{"tunnel", "--config", "/etc/cloudflared/config.yml", "--no-autoupdate", "run"}
	exposed := nat.PortSet{}
	bindings := nat.PortMap{}
	if d.opts.MetricsPort != "" && d.opts.Network != "host" {
		port, err := nat.NewPort("tcp", d.opts.MetricsPort)
		if err != nil {
			return &DeployError{Reason: fmt.Sprintf("invalid metrics port %q", d.opts.MetricsPort), Err: err}
		}
		exposed[port] = struct{}{}
		bindings[port] = []nat.PortBinding{{HostIP: "0.0.0.0", HostPort: d.opts.MetricsPort}}
		cmd = append(cmd, "--metrics", "0.0.0.0:"+d.opts.MetricsPort)
	}

	resp, err := d.cli.ContainerCreate(ctx,
		&container.Config{
			Image:        d.opts.Image,
			Cmd:          cmd,
			ExposedPorts: exposed,
		},
		&container.HostConfig{
			NetworkMode:   container.NetworkMode(d.opts.Network),
			PortBindings:  bindings,
			RestartPolicy: container.RestartPolicy{Name: container.RestartPolicyUnlessStopped},
			Binds:         []string{d.opts.ConfigDir + ":/etc/cloudflared:ro"},
		},
		nil, nil, d.opts.ContainerName)
	if err != nil {
		return &DeployError{Reason: fmt.Sprintf("creating container %q", d.opts.ContainerName), Err: err}
	}

	if err := d.cli.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		return &DeployError{Reason: fmt.Sprintf("starting container %q", d.opts.ContainerName), Err: err}
	}

	log.Info("Container started", "name", d.opts.ContainerName, "id", shortID(resp.ID))
	return d.waitRunning(ctx, resp.ID)
}

// waitRunning polls the container state until it is running or the grace
// period expires.
func (d *Docker) waitRunning(ctx context.Context, containerID string) error {
	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	deadline := time.Now().Add(d.grace)
	for {
		inspect, err := d.cli.ContainerInspect(ctx, containerID)
		if err != nil {
			return &DeployError{Reason: "inspecting container", Err: err}
		}
		if inspect.State != nil && inspect.State.Running {
			return nil
		}
		if inspect.State != nil && inspect.State.ExitCode != 0 {
			return &DeployError{
				Reason: fmt.Sprintf("container exited with code %d", inspect.State.ExitCode),
				Logs:   d.tailLogs(ctx, containerID),
			}
		}
		if time.Now().After(deadline) {
			return &DeployError{
				Reason: "container not running after grace period",
				Logs:   d.tailLogs(ctx, containerID),
			}
		}

		select {
		case <-ctx.Done():
			return &DeployError{Reason: "deployment cancelled", Err: ctx.Err()}
		case <-ticker.C:
		}
	}
}

func (d *Docker) tailLogs(ctx context.Context, containerID string) string {
	reader, err := d.cli.ContainerLogs(ctx, containerID, container.LogsOptions{
		ShowStdout: true,
		ShowStderr: true,
		Tail:       "20",
	})
	if err != nil {
		log.Warn("Could not capture container logs", "error", err)
		return ""
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return ""
	}
	return string(data)
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
