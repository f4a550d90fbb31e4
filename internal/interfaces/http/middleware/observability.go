package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// RequestMetrics is the HTTP part of monitoring.Metrics.
type RequestMetrics interface {
	ActiveRequestsInc()
	ActiveRequestsDec()
	ObserveRequest(path, method string, status int, duration time.Duration)
}

// ObservabilityMiddleware returns a Gin middleware that integrates Prometheus metrics and OpenTelemetry tracing.
// For each HTTP request, it starts a server span continuing any incoming trace context and records request totals and duration.
// ObservabilityMiddleware 返回一个集成了 Prometheus 指标和 OpenTelemetry 跟踪的 Gin 中间件。
// 对于每个 HTTP 请求，它会启动一个服务端跟踪范围并记录请求总数和持续时间的指标。
func ObservabilityMiddleware(tracer trace.Tracer, metrics RequestMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		metrics.ActiveRequestsInc()
		defer metrics.ActiveRequestsDec()

		ctx := otel.GetTextMapPropagator().Extract(c.Request.Context(), propagation.HeaderCarrier(c.Request.Header))
		ctx, span := tracer.Start(ctx, c.Request.Method+" "+c.FullPath(), trace.WithSpanKind(trace.SpanKindServer))
		defer span.End()
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		// Route template keeps label cardinality low.
		path := c.FullPath()
		if path == "" {
			path = "not_found"
		}
		metrics.ObserveRequest(path, c.Request.Method, c.Writer.Status(), time.Since(start))

		span.SetAttributes(
			attribute.String("http.method", c.Request.Method),
			attribute.String("http.route", path),
			attribute.Int("http.status_code", c.Writer.Status()),
		)
	}
}
