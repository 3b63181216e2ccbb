// Package config loads the service configuration from a YAML file with
// environment variable overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ferplaru/ai-playground/internal/domain"
)

// Duration is a time.Duration that unmarshals from YAML strings like "15m".
type Duration time.Duration

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Config is the top-level service configuration.
type Config struct {
	Server ServerConfig `yaml:"server"`
	Auth   AuthConfig   `yaml:"auth"`
	Engine EngineConfig `yaml:"engine"`
	Deploy DeployConfig `yaml:"deploy"`
}

type ServerConfig struct {
	Port    int    `yaml:"port"`
	BaseURL string `yaml:"base_url"`
	DataDir string `yaml:"data_dir"`
}

type AuthConfig struct {
	Password    string   `yaml:"password"`
	TokenSecret string   `yaml:"token_secret"`
	TokenTTL    Duration `yaml:"token_ttl"`
}

type EngineConfig struct {
	Binary        string   `yaml:"binary"`
	MinAPIVersion string   `yaml:"min_api_version"`
	ProbeTimeout  Duration `yaml:"probe_timeout"`
}

type DeployConfig struct {
	IdleTimeout   Duration          `yaml:"idle_timeout"`
	ReapInterval  Duration          `yaml:"reap_interval"`
	StopGrace     Duration          `yaml:"stop_grace"`
	MemoryLimit   string            `yaml:"memory_limit"`
	CPUPeriod     int64             `yaml:"cpu_period"`
	CPUQuota      int64             `yaml:"cpu_quota"`
	RestartPolicy string            `yaml:"restart_policy"`
	ContainerEnv  map[string]string `yaml:"container_env"`
}

// Defaults returns the built-in configuration.
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Port:    8080,
			BaseURL: "http://localhost",
			DataDir: defaultDataDir(),
		},
		Auth: AuthConfig{
			TokenTTL: Duration(24 * time.Hour),
		},
		Engine: EngineConfig{
			Binary:        "docker",
			MinAPIVersion: "1.24",
			ProbeTimeout:  Duration(10 * time.Second),
		},
		Deploy: DeployConfig{
			IdleTimeout:   Duration(15 * time.Minute),
			ReapInterval:  Duration(time.Minute),
			StopGrace:     Duration(10 * time.Second),
			MemoryLimit:   "512m",
			CPUPeriod:     100000,
			CPUQuota:      50000,
			RestartPolicy: "no",
			ContainerEnv:  map[string]string{"NODE_ENV": "production"},
		},
	}
}

// Load reads configuration from path (if it exists), applies environment
// overrides, and validates the result. A missing file is not an error;
// defaults plus environment are enough to run.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
			}
		case !os.IsNotExist(err):
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	cfg.applyEnv()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("AUTH_PASSWORD"); v != "" {
		c.Auth.Password = v
	}
	if v := os.Getenv("PLAYGROUND_TOKEN_SECRET"); v != "" {
		c.Auth.TokenSecret = v
	}
	if v := os.Getenv("PLAYGROUND_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Server.Port = port
		}
	}
	if v := os.Getenv("PLAYGROUND_DATA_DIR"); v != "" {
		c.Server.DataDir = v
	}
	if v := os.Getenv("PLAYGROUND_ENGINE_BINARY"); v != "" {
		c.Engine.Binary = v
	}
	// Forwarded into every deployed container so apps can reach the API.
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		if c.Deploy.ContainerEnv == nil {
			c.Deploy.ContainerEnv = make(map[string]string)
		}
		c.Deploy.ContainerEnv["OPENAI_API_KEY"] = v
	}
}

func (c *Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("%w: server.port must be between 1 and 65535, got %d", domain.ErrInvalidConfig, c.Server.Port)
	}
	if c.Auth.Password == "" {
		return fmt.Errorf("%w: auth.password is required (set AUTH_PASSWORD or auth.password)", domain.ErrInvalidConfig)
	}
	if c.Auth.TokenSecret == "" {
		// Password-derived secret keeps single-env setups working.
		c.Auth.TokenSecret = c.Auth.Password
	}
	if c.Deploy.IdleTimeout <= 0 {
		return fmt.Errorf("%w: deploy.idle_timeout must be positive", domain.ErrInvalidConfig)
	}
	if c.Deploy.ReapInterval <= 0 {
		return fmt.Errorf("%w: deploy.reap_interval must be positive", domain.ErrInvalidConfig)
	}
	return nil
}

// BuildDir returns the directory for ephemeral build workspaces.
func (c *Config) BuildDir() string {
	return filepath.Join(c.Server.DataDir, "builds")
}

// HistoryDBPath returns the path of the sqlite history database.
func (c *Config) HistoryDBPath() string {
	return filepath.Join(c.Server.DataDir, "history.db")
}

func defaultDataDir() string {
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".ai-playground")
	}
	return ".ai-playground"
}
