package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

type loadOptions struct {
	path  string
	paths []string
}

// Option customizes Load.
type Option func(*loadOptions)

// WithConfigPath reads exactly this file; a missing file is an error.
func WithConfigPath(path string) Option {
	return func(o *loadOptions) {
		o.path = strings.TrimSpace(path)
	}
}

// WithSearchPaths replaces the directories searched for offload.yaml.
func WithSearchPaths(paths ...string) Option {
	return func(o *loadOptions) {
		o.paths = append([]string(nil), paths...)
	}
}

// Load resolves defaults, then the optional YAML file, then OFFLOAD_*
// environment overrides (for example OFFLOAD_ORCHESTRATOR_AUTO_WAIT=true).
func Load(opts ...Option) (Config, error) {
	options := loadOptions{paths: []string{".", "$HOME/.offload"}}
	for _, opt := range opts {
		opt(&options)
	}

	v := viper.New()
	setDefaults(v, Default())
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if options.path != "" {
		v.SetConfigFile(options.path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", options.path, err)
		}
	} else {
		v.SetConfigName(DefaultConfigName)
		v.SetConfigType("yaml")
		for _, p := range options.paths {
			v.AddConfigPath(p)
		}
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// setDefaults registers every key so AutomaticEnv can override nested values.
func setDefaults(v *viper.Viper, cfg Config) {
	v.SetDefault("orchestrator.max_iterations", cfg.Orchestrator.MaxIterations)
	v.SetDefault("orchestrator.auto_wait", cfg.Orchestrator.AutoWait)
	v.SetDefault("orchestrator.wait_timeout", cfg.Orchestrator.WaitTimeout)
	v.SetDefault("tools.default_wait_timeout", cfg.Tools.DefaultWaitTimeout)
	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.format", cfg.Logging.Format)
	v.SetDefault("logging.file", cfg.Logging.File)
	v.SetDefault("server.addr", cfg.Server.Addr)
	v.SetDefault("server.allowed_origins", cfg.Server.AllowedOrigins)
	v.SetDefault("observability.metrics.enabled", cfg.Observability.Metrics.Enabled)
	v.SetDefault("observability.tracing.enabled", cfg.Observability.Tracing.Enabled)
	v.SetDefault("observability.tracing.exporter", cfg.Observability.Tracing.Exporter)
	v.SetDefault("observability.tracing.otlp_endpoint", cfg.Observability.Tracing.OTLPEndpoint)
	v.SetDefault("observability.tracing.zipkin_endpoint", cfg.Observability.Tracing.ZipkinEndpoint)
	v.SetDefault("observability.tracing.sample_rate", cfg.Observability.Tracing.SampleRate)
	v.SetDefault("observability.tracing.service_name", cfg.Observability.Tracing.ServiceName)
	v.SetDefault("observability.tracing.service_version", cfg.Observability.Tracing.ServiceVersion)
}

// Validate rejects values the runtime cannot honor.
func (c Config) Validate() error {
	if c.Orchestrator.MaxIterations < 1 {
		return fmt.Errorf("orchestrator.max_iterations must be at least 1, got %d", c.Orchestrator.MaxIterations)
	}
	if c.Orchestrator.WaitTimeout <= 0 {
		return fmt.Errorf("orchestrator.wait_timeout must be positive")
	}
	if c.Tools.DefaultWaitTimeout <= 0 {
		return fmt.Errorf("tools.default_wait_timeout must be positive")
	}
	return nil
}

// Render encodes the configuration as YAML.
func Render(cfg Config) (string, error) {
	out, err := yaml.Marshal(cfg)
	if err != nil {
		return "", fmt.Errorf("encode config: %w", err)
	}
	return string(out), nil
}
