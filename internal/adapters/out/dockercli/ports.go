package dockercli

import (
	"context"
	"strings"

	"github.com/docker/go-connections/nat"

	"github.com/ferplaru/ai-playground/internal/domain"
)

// Ports returns the published port bindings of a container. Output lines
// look like "8000/tcp -> 0.0.0.0:49153". Missing or empty output yields an
// empty map, never an error: a container with no published bindings is a
// normal state.
func (c *Client) Ports(ctx context.Context, containerID string) (domain.PortMap, error) {
	output, err := c.run(ctx, "ports", queryTimeout, "port", containerID)
	if err != nil {
		if isNotFound(err) {
			return nil, domain.ErrContainerNotFound
		}
		return nil, err
	}
	return parsePortLines(output), nil
}

func parsePortLines(output string) domain.PortMap {
	mapping := make(domain.PortMap)

	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		left, right, found := strings.Cut(line, "->")
		if !found {
			continue
		}

		key := normalizePortKey(strings.TrimSpace(left))
		if key == "" {
			continue
		}

		mapping[key] = append(mapping[key], parseHostBinding(strings.TrimSpace(right)))
	}

	return mapping
}

// normalizePortKey validates "<port>/<proto>" and normalizes a bare port to
// tcp, returning "" for garbage lines.
func normalizePortKey(raw string) string {
	proto, port := nat.SplitProtoPort(raw)
	natPort, err := nat.NewPort(proto, port)
	if err != nil {
		return ""
	}
	return string(natPort)
}

// parseHostBinding splits "0.0.0.0:49153" into its parts. When no colon is
// present the engine has not published a host port yet: the whole string is
// the host IP and the port is left empty.
func parseHostBinding(raw string) domain.PortBinding {
	idx := strings.LastIndexByte(raw, ':')
	if idx < 0 {
		return domain.PortBinding{HostIP: raw}
	}
	return domain.PortBinding{
		HostIP:   raw[:idx],
		HostPort: raw[idx+1:],
	}
}
