package http

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"offload/internal/observability"
	"offload/internal/shared/logging"
	"offload/internal/shared/utils/id"
)

const requestIDHeader = "X-Request-Id"

// RequestLogging tags every request with a request id, traces it and logs
// the outcome. Health and metrics probes log at debug level.
func RequestLogging(logger logging.Logger) gin.HandlerFunc {
	logger = logging.OrNop(logger)
	tracer := otel.Tracer("offload/http")
	return func(c *gin.Context) {
		requestID := strings.TrimSpace(c.GetHeader(requestIDHeader))
		if requestID == "" {
			requestID = id.NewRequestID()
		}
		c.Header(requestIDHeader, requestID)

		ctx, span := tracer.Start(c.Request.Context(), observability.SpanHTTPServer, trace.WithAttributes(
			attribute.String("http.method", c.Request.Method),
			attribute.String("http.route", c.FullPath()),
			attribute.String("offload.request_id", requestID),
		))
		c.Request = c.Request.WithContext(ctx)
		started := time.Now()

		c.Next()

		status := c.Writer.Status()
		span.SetAttributes(attribute.Int("http.status_code", status))
		span.End()

		path := c.Request.URL.Path
		if path == "/healthz" || path == "/metrics" {
			logger.Debug("%s %s -> %d (%s)", c.Request.Method, path, status, time.Since(started))
			return
		}
		logger.Info("[%s] %s %s -> %d (%s)", requestID, c.Request.Method, path, status, time.Since(started))
	}
}
