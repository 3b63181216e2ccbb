// Package dockercli implements the container runtime adapter by invoking the
// engine CLI (docker or podman) and normalizing its command output into typed
// results. The engine's output format is not guaranteed: structured output is
// preferred and line/table parsing is used as a fallback.
package dockercli

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/ferplaru/ai-playground/internal/domain"
)

// Operation timeouts. Every engine invocation is bounded; the timeout is the
// sole cancellation mechanism.
const (
	queryTimeout = 10 * time.Second
	runTimeout   = 60 * time.Second
	pullTimeout  = 300 * time.Second
	buildTimeout = 600 * time.Second
)

// execFunc invokes the engine binary and returns stdout, stderr.
// It is a field on Client so tests can substitute a fake engine.
type execFunc func(ctx context.Context, bin, host string, args ...string) (string, string, error)

// Client invokes the container engine CLI. The zero value is unusable;
// construct with NewClient.
type Client struct {
	bin       string
	host      string // adopted control socket (DOCKER_HOST form), empty for engine default
	available bool
	probes    []domain.SocketProbe
	execFn    execFunc
}

// Option configures a Client.
type Option func(*Client)

// WithExecFunc substitutes the command executor (for testing).
func WithExecFunc(fn execFunc) Option {
	return func(c *Client) { c.execFn = fn }
}

// NewClient probes the ordered connection strategies and adopts the first one
// through which the engine answers a version query. If every strategy fails
// the client is returned in an unavailable state: lifecycle operations then
// fail fast with domain.ErrEngineUnavailable instead of crashing or retrying.
func NewClient(bin string, probeTimeout time.Duration, opts ...Option) *Client {
	c := &Client{
		bin:    bin,
		execFn: runEngineCommand,
	}
	for _, opt := range opts {
		opt(c)
	}

	for _, strat := range connectionStrategies() {
		probe := domain.SocketProbe{Strategy: strat.name, Host: strat.host}

		if err := strat.check(); err != nil {
			probe.Error = err.Error()
			c.probes = append(c.probes, probe)
			continue
		}

		if err := c.probeVersion(strat.host, probeTimeout); err != nil {
			probe.Error = err.Error()
			c.probes = append(c.probes, probe)
			log.Debug("connection strategy failed", "strategy", strat.name, "error", err)
			continue
		}

		probe.OK = true
		c.probes = append(c.probes, probe)
		c.host = strat.host
		c.available = true
		log.Info("container engine reachable", "strategy", strat.name, "host", strat.host, "binary", bin)
		return c
	}

	log.Error("all engine connection strategies failed", "binary", bin)
	return c
}

// Available reports whether a connection strategy succeeded at startup.
func (c *Client) Available() bool { return c.available }

// Probes returns the recorded outcome of every connection strategy attempt.
func (c *Client) Probes() []domain.SocketProbe {
	out := make([]domain.SocketProbe, len(c.probes))
	copy(out, c.probes)
	return out
}

func (c *Client) probeVersion(host string, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = queryTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	_, _, err := c.execFn(ctx, c.bin, host, "version", "--format", "{{.Server.Version}}")
	return err
}

// run executes one engine command with the given bound. Non-zero exit becomes
// CommandError carrying captured stderr; exceeding the bound becomes
// TimeoutError. Neither is swallowed here.
func (c *Client) run(ctx context.Context, op string, timeout time.Duration, args ...string) (string, error) {
	if !c.available {
		return "", domain.ErrEngineUnavailable
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	stdout, stderr, err := c.execFn(ctx, c.bin, c.host, args...)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", &domain.TimeoutError{Op: op, Timeout: timeout}
		}
		return "", &domain.CommandError{Args: args, Stderr: strings.TrimSpace(stderr)}
	}
	return stdout, nil
}

// runEngineCommand is the production executor.
func runEngineCommand(ctx context.Context, bin, host string, args ...string) (string, string, error) {
	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Env = os.Environ()
	if host != "" {
		cmd.Env = append(cmd.Env, "DOCKER_HOST="+host)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	return stdout.String(), stderr.String(), err
}
