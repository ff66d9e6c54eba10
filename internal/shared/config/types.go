package config

import (
	"time"

	"offload/internal/observability"
	"offload/internal/shared/logging"
)

// Defaults for a session.
const (
	DefaultMaxIterations   = 10
	DefaultWaitTimeout     = 30 * time.Second
	DefaultToolWaitTimeout = 30 * time.Second
	DefaultServerAddr      = ":8089"
	DefaultConfigName      = "offload"
	EnvPrefix              = "OFFLOAD"
)

// Config is the effective configuration of one process.
type Config struct {
	Orchestrator  OrchestratorConfig   `yaml:"orchestrator" mapstructure:"orchestrator"`
	Tools         ToolsConfig          `yaml:"tools" mapstructure:"tools"`
	Logging       logging.Config       `yaml:"logging" mapstructure:"logging"`
	Server        ServerConfig         `yaml:"server" mapstructure:"server"`
	Observability observability.Config `yaml:"observability" mapstructure:"observability"`
}

// OrchestratorConfig bounds the re-entry cycle.
type OrchestratorConfig struct {
	MaxIterations int           `yaml:"max_iterations" mapstructure:"max_iterations"`
	AutoWait      bool          `yaml:"auto_wait" mapstructure:"auto_wait"`
	WaitTimeout   time.Duration `yaml:"wait_timeout" mapstructure:"wait_timeout"`
}

// ToolsConfig configures the status tools.
type ToolsConfig struct {
	DefaultWaitTimeout time.Duration `yaml:"default_wait_timeout" mapstructure:"default_wait_timeout"`
}

// ServerConfig configures the status server.
type ServerConfig struct {
	Addr           string   `yaml:"addr" mapstructure:"addr"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Orchestrator: OrchestratorConfig{
			MaxIterations: DefaultMaxIterations,
			AutoWait:      false,
			WaitTimeout:   DefaultWaitTimeout,
		},
		Tools: ToolsConfig{
			DefaultWaitTimeout: DefaultToolWaitTimeout,
		},
		Logging: logging.Config{
			Level:  "info",
			Format: "console",
		},
		Server: ServerConfig{
			Addr: DefaultServerAddr,
		},
		Observability: observability.DefaultConfig(),
	}
}
