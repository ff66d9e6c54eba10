package http

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	agent "offload/internal/domain/agent/ports/agent"
	"offload/internal/shared/logging"
)

// TaskSource is what the status API reads from a session's registry.
type TaskSource interface {
	Report() agent.StatusReport
	Progress(number int) (agent.TaskProgress, bool)
	CancelByNumber(number int, force bool) bool
}

// RouterConfig wires the status API.
type RouterConfig struct {
	Tasks          TaskSource
	Metrics        http.Handler
	AllowedOrigins []string
	Logger         logging.Logger
	Debug          bool
}

// NewRouter builds the status API. Raw task results are never exposed here;
// they flow only through the notification and tool output path.
func NewRouter(config RouterConfig) *gin.Engine {
	logger := config.Logger
	if logging.IsNil(logger) {
		logger = logging.NewComponentLogger("StatusServer")
	}
	if !config.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(RequestLogging(logger))
	engine.Use(cors.New(corsConfig(config.AllowedOrigins)))

	engine.GET("/healthz", handleHealth)
	if config.Metrics != nil {
		engine.GET("/metrics", gin.WrapH(config.Metrics))
	}

	h := &taskHandler{tasks: config.Tasks, logger: logger}
	tasks := engine.Group("/api/tasks")
	{
		tasks.GET("", h.list)
		tasks.GET("/:number", h.get)
		tasks.POST("/:number/cancel", h.cancel)
	}
	return engine
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.DefaultConfig()
	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	cfg.AllowMethods = []string{http.MethodGet, http.MethodPost, http.MethodOptions}
	cfg.AllowHeaders = []string{"Origin", "Content-Type", "X-Request-Id"}
	cfg.ExposeHeaders = []string{"X-Request-Id"}
	return cfg
}

func handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
