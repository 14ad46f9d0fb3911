// Package deploy starts the tunnel runtime pointed at a generated
// configuration, either as a docker container or a systemd service.
package deploy

import "context"

// DeployError indicates the runtime did not come up. Logs carries the tail
// of the failed instance's output when it could be captured.
type DeployError struct {
	Reason string
	Logs   string
	Err    error
}

func (e *DeployError) Error() string {
	if e.Err != nil {
		return "deployment failed: " + e.Reason + ": " + e.Err.Error()
	}
	return "deployment failed: " + e.Reason
}

func (e *DeployError) Unwrap() error { return e.Err }

// Deployer starts a tunnel runtime instance. Implementations are idempotent:
// a pre-existing instance with the same logical name is replaced.
type Deployer interface {
	Deploy(ctx context.Context) error
}
