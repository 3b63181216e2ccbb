package dockercli

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/ferplaru/ai-playground/internal/domain"
)

type versionJSON struct {
	Client struct {
		Version    string `json:"Version"`
		APIVersion string `json:"ApiVersion"`
	} `json:"Client"`
	Server struct {
		Version    string `json:"Version"`
		APIVersion string `json:"ApiVersion"`
	} `json:"Server"`
}

// Version returns engine and API version information. It prefers the
// structured form and falls back to parsing the labeled Client:/Server:
// sections when structured output is absent or malformed.
func (c *Client) Version(ctx context.Context) (domain.EngineVersion, error) {
	output, err := c.run(ctx, "version", queryTimeout, "version", "--format", "{{json .}}")
	if err == nil {
		if v, ok := parseVersionJSON(output); ok {
			return v, nil
		}
		log.Debug("structured version output malformed, falling back to line parsing")
	}

	output, err = c.run(ctx, "version", queryTimeout, "version")
	if err != nil {
		return domain.EngineVersion{}, err
	}
	return parseVersionSections(output), nil
}

func parseVersionJSON(output string) (domain.EngineVersion, bool) {
	var v versionJSON
	if err := json.Unmarshal([]byte(output), &v); err != nil {
		return domain.EngineVersion{}, false
	}
	if v.Client.Version == "" && v.Server.Version == "" {
		return domain.EngineVersion{}, false
	}
	apiVersion := v.Server.APIVersion
	if apiVersion == "" {
		apiVersion = v.Client.APIVersion
	}
	return domain.EngineVersion{
		ClientVersion: v.Client.Version,
		ServerVersion: v.Server.Version,
		APIVersion:    apiVersion,
	}, true
}

// parseVersionSections parses the human-readable `version` output, which
// groups labeled key/value lines under "Client:" and "Server:" headings.
func parseVersionSections(output string) domain.EngineVersion {
	var v domain.EngineVersion
	section := ""

	for _, line := range strings.Split(output, "\n") {
		trimmed := strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(trimmed, "Client"):
			section = "client"
			continue
		case strings.HasPrefix(trimmed, "Server"):
			section = "server"
			continue
		}

		key, value, found := strings.Cut(trimmed, ":")
		if !found {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}

		switch {
		case key == "Version" && section == "client":
			v.ClientVersion = value
		case key == "Version" && section == "server" && v.ServerVersion == "":
			v.ServerVersion = value
		case strings.EqualFold(key, "API version"):
			// "1.43 (minimum version 1.12)" → keep the leading version only
			if idx := strings.IndexByte(value, ' '); idx > 0 {
				value = value[:idx]
			}
			if section == "server" || v.APIVersion == "" {
				v.APIVersion = value
			}
		}
	}

	return v
}
