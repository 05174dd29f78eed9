// Package tracer is the optional structured tracer spec.md §2 lists as a
// leaf component: run/child spans keyed off a task's trace_root_id, with
// large payloads sanitized before they become span attributes. Adapted
// from the teacher's internal/observability/otel.go (sync.Once provider
// init, OTLP/http exporter with a stdout fallback, ratio sampling).
package tracer

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"

	"github.com/riverglen/coursecraft/internal/logger"
)

// Config controls whether tracing is active and how its exporter is wired.
type Config struct {
	Enabled      bool
	ProjectName  string
	OTLPEndpoint string
	SamplerRatio float64
}

var (
	initOnce sync.Once
	tracer   trace.Tracer
	shutdown func(context.Context) error
)

// Init sets up the global TracerProvider. Safe to call multiple times;
// only the first call takes effect. When cfg.Enabled is false, spans
// started through this package are no-ops (otel's default noop tracer).
func Init(ctx context.Context, log *logger.Logger, cfg Config) func(context.Context) error {
	initOnce.Do(func() {
		if !cfg.Enabled {
			tracer = otel.Tracer("coursecraft")
			shutdown = func(context.Context) error { return nil }
			return
		}

		serviceName := strings.TrimSpace(cfg.ProjectName)
		if serviceName == "" {
			serviceName = "coursecraft"
		}
		res, err := resource.New(ctx, resource.WithAttributes(
			attribute.String("service.name", serviceName),
		))
		if err != nil && log != nil {
			log.Warn("tracer resource init failed (continuing)", "error", err)
		}

		exporter, expErr := buildExporter(ctx, cfg, log)
		if expErr != nil && log != nil {
			log.Warn("tracer exporter init failed (continuing)", "error", expErr)
		}

		opts := []sdktrace.TracerProviderOption{
			sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(clampRatio(cfg.SamplerRatio)))),
			sdktrace.WithResource(res),
		}
		if exporter != nil {
			opts = append(opts, sdktrace.WithBatcher(exporter, sdktrace.WithBatchTimeout(5*time.Second)))
		}

		tp := sdktrace.NewTracerProvider(opts...)
		otel.SetTracerProvider(tp)
		otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{},
			propagation.Baggage{},
		))
		tracer = tp.Tracer("coursecraft")
		shutdown = tp.Shutdown
		if log != nil {
			log.Info("tracer initialized", "service", serviceName, "endpoint", cfg.OTLPEndpoint)
		}
	})
	return shutdown
}

func buildExporter(ctx context.Context, cfg Config, log *logger.Logger) (sdktrace.SpanExporter, error) {
	if cfg.OTLPEndpoint != "" {
		return otlptracehttp.New(ctx, otlptracehttp.WithEndpoint(cfg.OTLPEndpoint))
	}
	if log != nil {
		log.Warn("tracer using stdout exporter (no OTLP endpoint configured)")
	}
	return stdouttrace.New(stdouttrace.WithPrettyPrint())
}

func clampRatio(r float64) float64 {
	if r < 0 {
		return 0
	}
	if r > 1 {
		return 1
	}
	return r
}

// StartRun begins a root span for a task, named name, tagged with
// trace_root_id and task_id. Call the returned end func when the run
// completes.
func StartRun(ctx context.Context, name, traceRootID, taskID string) (context.Context, func()) {
	t := currentTracer()
	spanCtx, span := t.Start(ctx, name, trace.WithAttributes(
		attribute.String("trace_root_id", traceRootID),
		attribute.String("task_id", taskID),
	))
	return spanCtx, func() { span.End() }
}

// StartChild begins a child span under whatever span is already in ctx.
func StartChild(ctx context.Context, name string, attrs map[string]string) (context.Context, func()) {
	t := currentTracer()
	kv := make([]attribute.KeyValue, 0, len(attrs))
	for k, v := range attrs {
		kv = append(kv, attribute.String(k, Sanitize(v, 2048)))
	}
	spanCtx, span := t.Start(ctx, name, trace.WithAttributes(kv...))
	return spanCtx, func() { span.End() }
}

func currentTracer() trace.Tracer {
	if tracer == nil {
		return otel.Tracer("coursecraft")
	}
	return tracer
}

// Sanitize truncates large payloads (e.g. candidate content JSON) before
// they are attached as span attributes, mirroring the teacher's
// payload-trimming discipline for large error/report bodies.
func Sanitize(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit]) + "...[truncated]"
}
