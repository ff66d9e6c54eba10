package di

import (
	"fmt"

	"offload/internal/app/agent/reentry"
	"offload/internal/app/agent/scripted"
	"offload/internal/app/toolregistry"
	"offload/internal/domain/agent/background"
	toolports "offload/internal/domain/agent/ports/tools"
	"offload/internal/infra/httpclient"
	"offload/internal/infra/tools/builtin/orchestration"
	"offload/internal/infra/tools/builtin/work"
	"offload/internal/observability"
	"offload/internal/shared/logging"
	"offload/internal/shared/utils/id"
)

// ScriptSource produces the script the default agent plays.
type ScriptSource func() (scripted.Script, error)

// BuildContainer wires a session: registry, tool pipeline with the
// delegation interceptor, status and work tools, agent and orchestrator.
func BuildContainer(config Config) (*Container, error) {
	logger := config.Logger
	if logging.IsNil(logger) {
		logger = logging.NewComponentLogger("DI")
	}
	sessionID := config.SessionID
	if sessionID == "" {
		sessionID = id.NewSessionID()
	}
	runtime := config.Runtime
	logger.Debug("Building session %s (auto_wait=%t, max_iterations=%d)", sessionID, runtime.Orchestrator.AutoWait, runtime.Orchestrator.MaxIterations)

	metrics, err := observability.NewMetricsCollector(runtime.Observability.Metrics)
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics collector: %w", err)
	}
	tracing, err := observability.NewTracerProvider(runtime.Observability.Tracing)
	if err != nil {
		return nil, fmt.Errorf("failed to create tracer provider: %w", err)
	}

	tasks := background.NewRegistry(background.Config{Metrics: metrics})

	tools := toolregistry.NewRegistry(toolregistry.Config{})
	tools.Use(toolregistry.NewDelegationInterceptor(tasks, nil))
	fetchPolicy := httpclient.URLValidationOptions{
		AllowLocalhost:       config.AllowLocalFetch,
		AllowPrivateNetworks: config.AllowLocalFetch,
	}
	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = httpclient.New(0, logging.NewComponentLogger("HTTPClient"))
	}
	for _, tool := range []toolports.ToolExecutor{
		orchestration.NewDelegate(tools),
		orchestration.NewWait(tasks, runtime.Tools.DefaultWaitTimeout),
		orchestration.NewTaskOutput(tasks),
		work.NewSimulate(),
		work.NewCrawl(httpClient, fetchPolicy),
	} {
		if err := tools.Register(tool); err != nil {
			return nil, fmt.Errorf("failed to register tool: %w", err)
		}
	}

	invoker := config.Agent
	if invoker == nil {
		source := config.Script
		if source == nil {
			source = func() (scripted.Script, error) { return scripted.DemoScript(""), nil }
		}
		script, err := source()
		if err != nil {
			return nil, fmt.Errorf("failed to load script: %w", err)
		}
		invoker = scripted.New(scripted.Config{Tools: tools, Script: script})
	}

	orchestrator := reentry.New(invoker, tasks, reentry.Config{
		MaxIterations: runtime.Orchestrator.MaxIterations,
		AutoWait:      runtime.Orchestrator.AutoWait,
		WaitTimeout:   runtime.Orchestrator.WaitTimeout,
		Metrics:       metrics,
	})

	return &Container{
		SessionID:    sessionID,
		Config:       runtime,
		Tasks:        tasks,
		Tools:        tools,
		Agent:        invoker,
		Orchestrator: orchestrator,
		Metrics:      metrics,
		Tracing:      tracing,
		logger:       logger,
	}, nil
}
