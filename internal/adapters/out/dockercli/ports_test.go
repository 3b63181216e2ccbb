package dockercli

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ferplaru/ai-playground/internal/domain"
)

func TestParsePortLines(t *testing.T) {
	output := "8000/tcp -> 0.0.0.0:49153\n"

	mapping := parsePortLines(output)
	require.Len(t, mapping, 1)
	require.Len(t, mapping["8000/tcp"], 1)
	assert.Equal(t, domain.PortBinding{HostIP: "0.0.0.0", HostPort: "49153"}, mapping["8000/tcp"][0])
}

func TestParsePortLines_NoHostPort(t *testing.T) {
	// The engine may report a binding before publishing a host port.
	mapping := parsePortLines("8000/tcp -> 0.0.0.0\n")

	require.Len(t, mapping["8000/tcp"], 1)
	assert.Equal(t, "0.0.0.0", mapping["8000/tcp"][0].HostIP)
	assert.Empty(t, mapping["8000/tcp"][0].HostPort)
}

func TestParsePortLines_MultipleBindings(t *testing.T) {
	output := "8000/tcp -> 0.0.0.0:49153\n8000/tcp -> :::49153\n9000/udp -> 127.0.0.1:9000\n"

	mapping := parsePortLines(output)
	require.Len(t, mapping, 2)
	require.Len(t, mapping["8000/tcp"], 2)
	assert.Equal(t, "::", mapping["8000/tcp"][1].HostIP)
	assert.Equal(t, "49153", mapping["8000/tcp"][1].HostPort)
	assert.Equal(t, "9000", mapping["9000/udp"][0].HostPort)
}

func TestParsePortLines_EmptyOutput(t *testing.T) {
	mapping := parsePortLines("")
	assert.NotNil(t, mapping)
	assert.Empty(t, mapping)
}

func TestParsePortLines_GarbageLinesSkipped(t *testing.T) {
	output := "not a port line\nalso/garbage -> nowhere\n8000/tcp -> 0.0.0.0:49153\n"

	mapping := parsePortLines(output)
	require.Len(t, mapping, 1)
	assert.Equal(t, "49153", mapping["8000/tcp"][0].HostPort)
}

func TestPorts_EmptyOutputIsEmptyMap(t *testing.T) {
	c := testClient(func(_ context.Context, _, _ string, _ ...string) (string, string, error) {
		return "", "", nil
	})

	mapping, err := c.Ports(context.Background(), "abc123")
	require.NoError(t, err)
	assert.Empty(t, mapping)
}
