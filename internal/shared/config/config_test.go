package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestLoadDefaultsWithoutFile(t *testing.T) {
	cfg, err := Load(WithSearchPaths(t.TempDir()))
	require.NoError(t, err)

	assert.Equal(t, DefaultMaxIterations, cfg.Orchestrator.MaxIterations)
	assert.False(t, cfg.Orchestrator.AutoWait)
	assert.Equal(t, 30*time.Second, cfg.Orchestrator.WaitTimeout)
	assert.Equal(t, 30*time.Second, cfg.Tools.DefaultWaitTimeout)
	assert.Equal(t, ":8089", cfg.Server.Addr)
	assert.True(t, cfg.Observability.Metrics.Enabled)
}

func TestLoadReadsYAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "offload.yaml")
	content := `
orchestrator:
  max_iterations: 3
  auto_wait: true
  wait_timeout: 5s
tools:
  default_wait_timeout: 2s
logging:
  level: debug
  format: json
server:
  addr: 127.0.0.1:9999
observability:
  tracing:
    enabled: true
    exporter: zipkin
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(WithSearchPaths(dir))
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.Orchestrator.MaxIterations)
	assert.True(t, cfg.Orchestrator.AutoWait)
	assert.Equal(t, 5*time.Second, cfg.Orchestrator.WaitTimeout)
	assert.Equal(t, 2*time.Second, cfg.Tools.DefaultWaitTimeout)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, "127.0.0.1:9999", cfg.Server.Addr)
	assert.True(t, cfg.Observability.Tracing.Enabled)
	assert.Equal(t, "zipkin", cfg.Observability.Tracing.Exporter)
	assert.Equal(t, "offload", cfg.Observability.Tracing.ServiceName)
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	t.Setenv("OFFLOAD_ORCHESTRATOR_AUTO_WAIT", "true")
	t.Setenv("OFFLOAD_ORCHESTRATOR_MAX_ITERATIONS", "4")
	t.Setenv("OFFLOAD_SERVER_ADDR", ":7000")

	cfg, err := Load(WithSearchPaths(t.TempDir()))
	require.NoError(t, err)
	assert.True(t, cfg.Orchestrator.AutoWait)
	assert.Equal(t, 4, cfg.Orchestrator.MaxIterations)
	assert.Equal(t, ":7000", cfg.Server.Addr)
}

func TestLoadExplicitMissingFileFails(t *testing.T) {
	_, err := Load(WithConfigPath(filepath.Join(t.TempDir(), "nope.yaml")))
	require.Error(t, err)
}

func TestValidateRejectsZeroIterations(t *testing.T) {
	cfg := Default()
	cfg.Orchestrator.MaxIterations = 0
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Tools.DefaultWaitTimeout = 0
	assert.Error(t, cfg.Validate())
}

func TestRenderProducesYAML(t *testing.T) {
	out, err := Render(Default())
	require.NoError(t, err)
	assert.Contains(t, out, "max_iterations: 10")

	var decoded map[string]any
	require.NoError(t, yaml.Unmarshal([]byte(out), &decoded))
	assert.Contains(t, decoded, "orchestrator")
	assert.Contains(t, decoded, "observability")
}
