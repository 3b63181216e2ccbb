package dockercli

import (
	"fmt"
	"os"
)

// connStrategy is one way of reaching the engine control socket. Strategies
// are tried in order until one answers a version query.
type connStrategy struct {
	name  string
	host  string       // DOCKER_HOST value to export; empty lets the engine resolve its default
	check func() error // cheap precondition, e.g. the socket file exists
}

func connectionStrategies() []connStrategy {
	strategies := []connStrategy{
		{
			name:  "primary socket",
			host:  "unix:///var/run/docker.sock",
			check: socketExists("/var/run/docker.sock"),
		},
		{
			name:  "alternate socket",
			host:  "unix:///run/docker.sock",
			check: socketExists("/run/docker.sock"),
		},
	}

	if env := os.Getenv("DOCKER_HOST"); env != "" {
		strategies = append(strategies, connStrategy{
			name:  "environment",
			host:  env,
			check: func() error { return nil },
		})
	}

	strategies = append(strategies, connStrategy{
		name:  "engine default",
		host:  "",
		check: func() error { return nil },
	})

	return strategies
}

func socketExists(path string) func() error {
	return func() error {
		info, err := os.Stat(path)
		if err != nil {
			if os.IsNotExist(err) {
				return fmt.Errorf("socket %s does not exist", path)
			}
			return fmt.Errorf("socket %s not accessible: %w", path, err)
		}
		if info.Mode()&os.ModeSocket == 0 {
			return fmt.Errorf("%s is not a socket", path)
		}
		return nil
	}
}
