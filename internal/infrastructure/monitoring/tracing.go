package monitoring

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/jaeger"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/turtacn/clusterkeys/internal/config"
	"github.com/turtacn/clusterkeys/pkg/errors"
	"github.com/turtacn/clusterkeys/pkg/logger"
)

// StoreTracerName names the tracer used for key store spans.
const StoreTracerName = "github.com/turtacn/clusterkeys/store"

// TracingManager 持有进程级 TracerProvider。禁用时 provider 为 nil，
// 所有 span 走全局 no-op 实现。
type TracingManager struct {
	provider *sdktrace.TracerProvider
	log      logger.Logger
}

// NewTracingManager installs a Jaeger-backed global tracer provider when
// cfg.Enabled is set.
func NewTracingManager(cfg config.TracingConfig, log logger.Logger) (*TracingManager, error) {
	log = log.WithComponent("tracing")
	if !cfg.Enabled {
		log.Info(context.Background(), "Tracing is disabled")
		return &TracingManager{log: log}, nil
	}

	exporter, err := jaeger.New(jaeger.WithCollectorEndpoint(jaeger.WithEndpoint(cfg.JaegerEndpoint)))
	if err != nil {
		return nil, fmt.Errorf("create jaeger exporter: %w", err)
	}
	tm, err := install(sdktrace.WithBatcher(exporter), cfg, log)
	if err != nil {
		return nil, err
	}
	log.Info(context.Background(), "Tracing enabled",
		logger.String("endpoint", cfg.JaegerEndpoint),
		logger.Float64("sample_ratio", cfg.SampleRatio),
	)
	return tm, nil
}

// install builds the provider around processor and makes it global.
func install(processor sdktrace.TracerProviderOption, cfg config.TracingConfig, log logger.Logger) (*TracingManager, error) {
	name := cfg.ServiceName
	if name == "" {
		name = "clusterkeys"
	}
	res, err := resource.Merge(resource.Default(), resource.NewSchemaless(semconv.ServiceNameKey.String(name)))
	if err != nil {
		return nil, fmt.Errorf("build trace resource: %w", err)
	}

	provider := sdktrace.NewTracerProvider(
		processor,
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRatio))),
	)
	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))
	return &TracingManager{provider: provider, log: log}, nil
}

// Shutdown 刷新并关闭 provider
func (tm *TracingManager) Shutdown(ctx context.Context) error {
	if tm.provider == nil {
		return nil
	}
	if err := tm.provider.Shutdown(ctx); err != nil {
		tm.log.Error(ctx, "Tracing shutdown failed", err)
		return err
	}
	return nil
}

// TraceStoreCall runs fn inside a client span named "store.<op>". Failures
// are recorded with their error code so store outages and duplicate inserts
// can be told apart in traces.
func TraceStoreCall(ctx context.Context, backend, op string, fn func(context.Context) error) error {
	ctx, span := otel.Tracer(StoreTracerName).Start(ctx, "store."+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("store.backend", backend)),
	)
	defer span.End()

	err := fn(ctx)
	if err == nil {
		return nil
	}
	span.RecordError(err)
	if appErr, ok := errors.AsAppError(err); ok {
		span.SetAttributes(attribute.String("error.code", string(appErr.Code())))
	}
	span.SetStatus(codes.Error, err.Error())
	return err
}

//Personal.AI order the ending
