package dockercli

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/docker/go-connections/nat"

	"github.com/ferplaru/ai-playground/internal/domain"
)

// Pull pulls an image. Bounded by the pull timeout.
func (c *Client) Pull(ctx context.Context, image string) error {
	_, err := c.run(ctx, "pull", pullTimeout, "pull", image)
	return err
}

// Build builds an image from contextDir tagged as tag.
func (c *Client) Build(ctx context.Context, contextDir, tag string) error {
	_, err := c.run(ctx, "build", buildTimeout, "build", "-t", tag, contextDir)
	return err
}

// Run launches a detached container per spec and returns its ID.
func (c *Client) Run(ctx context.Context, spec domain.RunSpec) (string, error) {
	args, err := runArgs(spec)
	if err != nil {
		return "", err
	}

	output, err := c.run(ctx, "run", runTimeout, args...)
	if err != nil {
		return "", err
	}

	// The engine prints the full container ID on its own line.
	id := strings.TrimSpace(output)
	if idx := strings.LastIndexByte(id, '\n'); idx >= 0 {
		id = strings.TrimSpace(id[idx+1:])
	}
	if id == "" {
		return "", &domain.CommandError{Args: args, Stderr: "engine returned no container ID"}
	}
	return id, nil
}

func runArgs(spec domain.RunSpec) ([]string, error) {
	if spec.Image == "" {
		return nil, fmt.Errorf("run spec requires an image")
	}

	containerPort, err := nat.NewPort("tcp", strconv.Itoa(spec.ContainerPort))
	if err != nil {
		return nil, fmt.Errorf("invalid container port %d: %w", spec.ContainerPort, err)
	}

	args := []string{"run", "-d"}
	if spec.Name != "" {
		args = append(args, "--name", spec.Name)
	}

	// Empty host port asks the engine for an ephemeral assignment.
	if spec.HostPort == "" {
		args = append(args, "-p", string(containerPort))
	} else {
		args = append(args, "-p", spec.HostPort+":"+string(containerPort))
	}

	if spec.MemoryLimit != "" {
		args = append(args, "--memory", spec.MemoryLimit)
	}
	if spec.CPUPeriod > 0 {
		args = append(args, "--cpu-period", strconv.FormatInt(spec.CPUPeriod, 10))
	}
	if spec.CPUQuota > 0 {
		args = append(args, "--cpu-quota", strconv.FormatInt(spec.CPUQuota, 10))
	}
	if spec.RestartPolicy != "" {
		args = append(args, "--restart", spec.RestartPolicy)
	}

	// Sorted env keys keep invocations deterministic.
	keys := make([]string, 0, len(spec.Env))
	for k := range spec.Env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		args = append(args, "-e", k+"="+spec.Env[k])
	}

	args = append(args, spec.Image)
	return args, nil
}

// Stop gracefully stops a container, waiting up to grace before the engine
// kills it. The caller must separately Remove the container.
func (c *Client) Stop(ctx context.Context, containerID string, grace time.Duration) error {
	secs := int(grace.Seconds())
	if secs <= 0 {
		secs = 10
	}
	// Bound the invocation by the grace period plus a margin for the engine.
	timeout := grace + queryTimeout
	_, err := c.run(ctx, "stop", timeout, "stop", "-t", strconv.Itoa(secs), containerID)
	if err != nil && isNotFound(err) {
		return domain.ErrContainerNotFound
	}
	return err
}

// Remove removes a container.
func (c *Client) Remove(ctx context.Context, containerID string, force bool) error {
	args := []string{"rm"}
	if force {
		args = append(args, "-f")
	}
	args = append(args, containerID)
	_, err := c.run(ctx, "remove", queryTimeout, args...)
	if err != nil && isNotFound(err) {
		return domain.ErrContainerNotFound
	}
	return err
}

type inspectJSON struct {
	ID    string `json:"Id"`
	Name  string `json:"Name"`
	State struct {
		Status string `json:"Status"`
	} `json:"State"`
	Config struct {
		Image string `json:"Image"`
	} `json:"Config"`
}

// Get returns the live engine state for one container. A container unknown
// to the engine yields domain.ErrContainerNotFound.
func (c *Client) Get(ctx context.Context, containerID string) (*domain.Container, error) {
	output, err := c.run(ctx, "get", queryTimeout, "inspect", "--format", "{{json .}}", containerID)
	if err != nil {
		if isNotFound(err) {
			return nil, domain.ErrContainerNotFound
		}
		return nil, err
	}

	var ins inspectJSON
	if err := json.Unmarshal([]byte(strings.TrimSpace(output)), &ins); err != nil {
		return nil, fmt.Errorf("failed to parse inspect output: %w", err)
	}

	return &domain.Container{
		ID:     ins.ID,
		Name:   strings.TrimPrefix(ins.Name, "/"),
		Image:  ins.Config.Image,
		Status: ins.State.Status,
	}, nil
}

type psJSON struct {
	ID     string `json:"ID"`
	Image  string `json:"Image"`
	Names  string `json:"Names"`
	Status string `json:"Status"`
	Ports  string `json:"Ports"`
}

// List returns containers known to the engine. It prefers structured
// per-line records and falls back to parsing the tabular output when the
// engine does not honor the format flag.
func (c *Client) List(ctx context.Context, all bool) ([]*domain.Container, error) {
	args := []string{"ps", "--no-trunc", "--format", "{{json .}}"}
	if all {
		args = append(args, "-a")
	}

	output, err := c.run(ctx, "list", queryTimeout, args...)
	if err == nil {
		if containers, ok := parseListJSON(output); ok {
			return containers, nil
		}
		log.Debug("structured list output malformed, falling back to table parsing")
	}

	args = []string{"ps", "--no-trunc"}
	if all {
		args = append(args, "-a")
	}
	output, err = c.run(ctx, "list", queryTimeout, args...)
	if err != nil {
		return nil, err
	}
	return parseListTable(output), nil
}

func parseListJSON(output string) ([]*domain.Container, bool) {
	var containers []*domain.Container
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		var rec psJSON
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			return nil, false
		}
		if rec.ID == "" {
			return nil, false
		}
		containers = append(containers, &domain.Container{
			ID:     rec.ID,
			Image:  rec.Image,
			Name:   rec.Names,
			Status: rec.Status,
			Ports:  rec.Ports,
		})
	}
	return containers, true
}

// listColumns are the headers we extract from tabular ps output, in the
// order the engine prints them.
var listColumns = []string{"CONTAINER ID", "IMAGE", "COMMAND", "CREATED", "STATUS", "PORTS", "NAMES"}

// parseListTable parses the fixed-width table the engine prints without a
// format flag. Column boundaries are derived from the header offsets.
func parseListTable(output string) []*domain.Container {
	lines := strings.Split(strings.TrimRight(output, "\n"), "\n")
	if len(lines) < 1 {
		return nil
	}

	header := lines[0]
	type column struct {
		name  string
		start int
	}
	var cols []column
	for _, name := range listColumns {
		if idx := strings.Index(header, name); idx >= 0 {
			cols = append(cols, column{name: name, start: idx})
		}
	}
	if len(cols) == 0 {
		return nil
	}

	field := func(line, name string) string {
		for i, col := range cols {
			if col.name != name {
				continue
			}
			if col.start >= len(line) {
				return ""
			}
			end := len(line)
			if i+1 < len(cols) && cols[i+1].start < end {
				end = cols[i+1].start
			}
			return strings.TrimSpace(line[col.start:end])
		}
		return ""
	}

	var containers []*domain.Container
	for _, line := range lines[1:] {
		if strings.TrimSpace(line) == "" {
			continue
		}
		id := field(line, "CONTAINER ID")
		if id == "" {
			continue
		}
		containers = append(containers, &domain.Container{
			ID:     id,
			Image:  field(line, "IMAGE"),
			Name:   field(line, "NAMES"),
			Status: field(line, "STATUS"),
			Ports:  field(line, "PORTS"),
		})
	}
	return containers
}

func isNotFound(err error) bool {
	cmdErr, ok := err.(*domain.CommandError)
	if !ok {
		return false
	}
	stderr := strings.ToLower(cmdErr.Stderr)
	return strings.Contains(stderr, "no such object") ||
		strings.Contains(stderr, "no such container")
}
