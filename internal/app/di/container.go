package di

import (
	"context"
	"net/http"

	"go.uber.org/multierr"

	"offload/internal/app/agent/reentry"
	"offload/internal/app/toolregistry"
	"offload/internal/domain/agent/background"
	agent "offload/internal/domain/agent/ports/agent"
	"offload/internal/observability"
	runtimeconfig "offload/internal/shared/config"
	"offload/internal/shared/logging"
)

// Container holds one session's dependencies. Every session gets its own
// background registry; nothing here is process-global.
type Container struct {
	SessionID    string
	Config       runtimeconfig.Config
	Tasks        *background.Registry
	Tools        *toolregistry.Registry
	Agent        agent.Invoker
	Orchestrator *reentry.Orchestrator
	Metrics      *observability.MetricsCollector
	Tracing      *observability.TracerProvider

	logger logging.Logger
}

// Config holds the dependency injection configuration
type Config struct {
	Runtime runtimeconfig.Config
	// SessionID is minted when empty.
	SessionID string
	// Agent overrides the scripted agent built from Script.
	Agent  agent.Invoker
	Script ScriptSource
	// HTTPClient is used by the crawl tool; nil builds one.
	HTTPClient *http.Client
	// AllowLocalFetch lets crawl reach loopback and private addresses.
	AllowLocalFetch bool
	Logger          logging.Logger
}

// MetricsHandler serves the session's Prometheus metrics.
func (c *Container) MetricsHandler() http.Handler {
	return c.Metrics.Handler()
}

// Shutdown force-cancels background work and flushes telemetry.
func (c *Container) Shutdown(ctx context.Context) error {
	c.logger.Info("Shutting down session %s...", c.SessionID)
	if c.Tasks != nil {
		c.Tasks.Shutdown()
	}
	var err error
	if c.Metrics != nil {
		err = multierr.Append(err, c.Metrics.Shutdown(ctx))
	}
	if c.Tracing != nil {
		err = multierr.Append(err, c.Tracing.Shutdown(ctx))
	}
	if err != nil {
		c.logger.Error("Session shutdown: %v", err)
		return err
	}
	c.logger.Info("Session shutdown complete")
	return nil
}
