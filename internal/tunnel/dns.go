package tunnel

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
)

const (
	maxDNSAttempts = 3
	backoffStep    = 2 * time.Second
)

// RecordResult is the outcome of registering one DNS route.
type RecordResult struct {
	Hostname string
	Attempts int
	Err      error
}

// OK reports whether the route was created.
func (r RecordResult) OK() bool { return r.Err == nil }

// Registrar creates DNS routes for tunnel hostnames with bounded retry.
// Failures are recorded, not fatal: the tunnel itself still deploys and
// routes can be re-registered later.
type Registrar struct {
	runner Runner
	sleep  func(time.Duration)
}

// NewRegistrar returns a Registrar using the given Runner.
func NewRegistrar(r Runner) *Registrar {
	return &Registrar{runner: r, sleep: time.Sleep}
}

// Register creates a DNS route for every hostname, retrying each up to
// 3 times with increasing backoff. It returns one result per hostname in
// input order.
func (g *Registrar) Register(ctx context.Context, tunnelName string, hostnames []string) []RecordResult {
	results := make([]RecordResult, 0, len(hostnames))

	for _, hostname := range hostnames {
		var lastErr error
		attempts := 0

		for attempt := 1; attempt <= maxDNSAttempts; attempt++ {
			attempts = attempt
			lastErr = g.runner.RouteDNS(ctx, tunnelName, hostname)
			if lastErr == nil {
				log.Info("DNS route created", "hostname", hostname, "attempt", attempt)
				break
			}

			log.Warn("DNS route attempt failed", "hostname", hostname, "attempt", attempt, "error", lastErr)
			if attempt < maxDNSAttempts {
				g.sleep(time.Duration(attempt) * backoffStep)
			}
		}

		results = append(results, RecordResult{Hostname: hostname, Attempts: attempts, Err: lastErr})
	}

	return results
}

// Failed returns the subset of results that exhausted their attempts.
func Failed(results []RecordResult) []RecordResult {
	var failed []RecordResult
	for _, r := range results {
		if !r.OK() {
			failed = append(failed, r)
		}
	}
	return failed
}
