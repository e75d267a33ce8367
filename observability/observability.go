// Package observability provides OpenTelemetry and Prometheus integration for archivekit.
//
// Storage drivers report through a process-wide Observer. The default
// observer does nothing; Init installs an OpenTelemetry backed one and
// NewPrometheusObserver builds one that exports Prometheus collectors.
//
// Example usage:
//
//	import "github.com/kdsmith18542/archivekit/observability"
//
//	func main() {
//	    observability.Init(observability.Config{
//	        ServiceName:    "archive-worker",
//	        ServiceVersion: "1.0.0",
//	        Environment:    "production",
//	        EnableTracing:  true,
//	        EnableMetrics:  true,
//	    })
//
//	    ctx, span := observability.StartSpan(context.Background(), "archive_job")
//	    defer span.End()
//	}
package observability

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/kdsmith18542/archivekit/logging"
)

const instrumentationName = "github.com/kdsmith18542/archivekit"

// Config holds the configuration for observability initialization
type Config struct {
	// ServiceName is the name of the service for tracing and metrics
	ServiceName string
	// ServiceVersion is the version of the service
	ServiceVersion string
	// Environment is the deployment environment (dev, staging, prod)
	Environment string
	// EnableTracing enables distributed tracing
	EnableTracing bool
	// EnableMetrics enables metrics collection
	EnableMetrics bool
	// EnableLogging mirrors storage events into the zap logger
	EnableLogging bool
}

// Observer receives storage driver events.
type Observer interface {
	OnStoreStart(ctx context.Context, backend string, jobID int64, fileName string, fileSize int64)
	OnStoreEnd(ctx context.Context, backend string, jobID int64, fileName string, fileSize int64, duration time.Duration, success bool)
	OnStorageOperation(ctx context.Context, operation string, backend string, duration time.Duration, success bool)
	OnAvailabilityCheck(ctx context.Context, backend string, freeBytes uint64, known bool, available bool)
}

var (
	observerMu     sync.RWMutex
	globalObserver Observer = &noopObserver{}
)

// Init initializes the observability system with the given configuration
func Init(config Config) error {
	if !config.EnableTracing && !config.EnableMetrics && !config.EnableLogging {
		return nil
	}

	if config.EnableTracing || config.EnableMetrics {
		if err := initOpenTelemetry(config); err != nil {
			return fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
		}
	}

	observer, err := newOtelObserver(config)
	if err != nil {
		return err
	}
	SetObserver(observer)
	return nil
}

// SetObserver sets a custom observer for observability events
func SetObserver(observer Observer) {
	if observer == nil {
		observer = &noopObserver{}
	}
	observerMu.Lock()
	globalObserver = observer
	observerMu.Unlock()
}

// GetObserver returns the current observer instance
func GetObserver() Observer {
	observerMu.RLock()
	defer observerMu.RUnlock()
	return globalObserver
}

// StartSpan starts a new span for tracing
func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return otel.Tracer(instrumentationName).Start(ctx, name, opts...)
}

// AddSpanEvent adds an event to the current span
func AddSpanEvent(ctx context.Context, name string, attributes map[string]string) {
	span := trace.SpanFromContext(ctx)
	if span.IsRecording() {
		span.AddEvent(name, trace.WithAttributes(toAttributes(attributes)...))
	}
}

// SetSpanAttributes sets attributes on the current span
func SetSpanAttributes(ctx context.Context, attributes map[string]string) {
	span := trace.SpanFromContext(ctx)
	if span.IsRecording() {
		span.SetAttributes(toAttributes(attributes)...)
	}
}

// RecordError marks the current span as failed.
func RecordError(ctx context.Context, err error) {
	span := trace.SpanFromContext(ctx)
	if span.IsRecording() && err != nil {
		span.RecordError(err)
	}
}

func toAttributes(m map[string]string) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, len(m))
	for k, v := range m {
		attrs = append(attrs, attribute.String(k, v))
	}
	return attrs
}

// Multi fans events out to several observers.
func Multi(observers ...Observer) Observer {
	return multiObserver(observers)
}

type multiObserver []Observer

func (m multiObserver) OnStoreStart(ctx context.Context, backend string, jobID int64, fileName string, fileSize int64) {
	for _, o := range m {
		o.OnStoreStart(ctx, backend, jobID, fileName, fileSize)
	}
}

func (m multiObserver) OnStoreEnd(ctx context.Context, backend string, jobID int64, fileName string, fileSize int64, duration time.Duration, success bool) {
	for _, o := range m {
		o.OnStoreEnd(ctx, backend, jobID, fileName, fileSize, duration, success)
	}
}

func (m multiObserver) OnStorageOperation(ctx context.Context, operation string, backend string, duration time.Duration, success bool) {
	for _, o := range m {
		o.OnStorageOperation(ctx, operation, backend, duration, success)
	}
}

func (m multiObserver) OnAvailabilityCheck(ctx context.Context, backend string, freeBytes uint64, known bool, available bool) {
	for _, o := range m {
		o.OnAvailabilityCheck(ctx, backend, freeBytes, known, available)
	}
}

// noopObserver is a no-operation observer that does nothing
type noopObserver struct{}

func (n *noopObserver) OnStoreStart(ctx context.Context, backend string, jobID int64, fileName string, fileSize int64) {
}
func (n *noopObserver) OnStoreEnd(ctx context.Context, backend string, jobID int64, fileName string, fileSize int64, duration time.Duration, success bool) {
}
func (n *noopObserver) OnStorageOperation(ctx context.Context, operation string, backend string, duration time.Duration, success bool) {
}
func (n *noopObserver) OnAvailabilityCheck(ctx context.Context, backend string, freeBytes uint64, known bool, available bool) {
}

// otelObserver implements Observer using OpenTelemetry
type otelObserver struct {
	config     Config
	tracer     trace.Tracer
	operations metric.Int64Counter
	duration   metric.Float64Histogram
	stored     metric.Int64Counter
}

func newOtelObserver(config Config) (*otelObserver, error) {
	meter := otel.Meter(instrumentationName)
	operations, err := meter.Int64Counter("archivekit.storage.operations",
		metric.WithDescription("Storage driver operations by backend, operation and outcome"))
	if err != nil {
		return nil, fmt.Errorf("failed to create operations counter: %w", err)
	}
	duration, err := meter.Float64Histogram("archivekit.storage.duration",
		metric.WithDescription("Storage driver operation latency"),
		metric.WithUnit("ms"))
	if err != nil {
		return nil, fmt.Errorf("failed to create duration histogram: %w", err)
	}
	stored, err := meter.Int64Counter("archivekit.storage.stored_bytes",
		metric.WithDescription("Bytes placed by successful store operations"),
		metric.WithUnit("By"))
	if err != nil {
		return nil, fmt.Errorf("failed to create stored bytes counter: %w", err)
	}
	return &otelObserver{
		config:     config,
		tracer:     otel.Tracer(instrumentationName),
		operations: operations,
		duration:   duration,
		stored:     stored,
	}, nil
}

func (o *otelObserver) OnStoreStart(ctx context.Context, backend string, jobID int64, fileName string, fileSize int64) {
	AddSpanEvent(ctx, "storage.store.start", map[string]string{
		"storage.backend": backend,
		"job.id":          fmt.Sprintf("%d", jobID),
		"file.name":       fileName,
		"file.size":       fmt.Sprintf("%d", fileSize),
	})
}

func (o *otelObserver) OnStoreEnd(ctx context.Context, backend string, jobID int64, fileName string, fileSize int64, duration time.Duration, success bool) {
	AddSpanEvent(ctx, "storage.store.completed", map[string]string{
		"storage.backend": backend,
		"job.id":          fmt.Sprintf("%d", jobID),
		"file.name":       fileName,
		"success":         fmt.Sprintf("%t", success),
		"duration.ms":     fmt.Sprintf("%.2f", float64(duration.Microseconds())/1000.0),
	})
	if success {
		o.stored.Add(ctx, fileSize, metric.WithAttributes(attribute.String("storage.backend", backend)))
	}
	if o.config.EnableLogging {
		logging.WithContext(ctx).Debug("store finished",
			zap.String("backend", backend),
			zap.Int64("job_id", jobID),
			zap.String("file", fileName),
			zap.Bool("success", success),
			zap.Duration("duration", duration),
		)
	}
}

func (o *otelObserver) OnStorageOperation(ctx context.Context, operation string, backend string, duration time.Duration, success bool) {
	attrs := metric.WithAttributes(
		attribute.String("storage.operation", operation),
		attribute.String("storage.backend", backend),
		attribute.Bool("success", success),
	)
	o.operations.Add(ctx, 1, attrs)
	o.duration.Record(ctx, float64(duration.Microseconds())/1000.0, attrs)

	AddSpanEvent(ctx, "storage.operation", map[string]string{
		"operation":       operation,
		"storage.backend": backend,
		"success":         fmt.Sprintf("%t", success),
		"duration.ms":     fmt.Sprintf("%.2f", float64(duration.Microseconds())/1000.0),
	})
}

func (o *otelObserver) OnAvailabilityCheck(ctx context.Context, backend string, freeBytes uint64, known bool, available bool) {
	AddSpanEvent(ctx, "storage.availability", map[string]string{
		"storage.backend": backend,
		"free.bytes":      fmt.Sprintf("%d", freeBytes),
		"free.known":      fmt.Sprintf("%t", known),
		"available":       fmt.Sprintf("%t", available),
	})
	if o.config.EnableLogging && !available {
		logging.WithContext(ctx).Warn("storage backend unavailable",
			zap.String("backend", backend),
			zap.Uint64("free_bytes", freeBytes),
			zap.Bool("free_known", known),
		)
	}
}

// initOpenTelemetry initializes OpenTelemetry with the given configuration
func initOpenTelemetry(config Config) error {
	ctx := context.Background()

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(config.ServiceName),
			semconv.ServiceVersion(config.ServiceVersion),
			semconv.DeploymentEnvironment(config.Environment),
		),
		resource.WithFromEnv(),
		resource.WithProcess(),
		resource.WithTelemetrySDK(),
		resource.WithHost(),
	)
	if err != nil {
		return fmt.Errorf("failed to create resource: %v", err)
	}

	// Exporters are left to the host process.
	if config.EnableTracing {
		tp := sdktrace.NewTracerProvider(
			sdktrace.WithResource(res),
		)

		otel.SetTracerProvider(tp)
		otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{},
			propagation.Baggage{},
		))
	}

	if config.EnableMetrics {
		mp := sdkmetric.NewMeterProvider(
			sdkmetric.WithResource(res),
		)

		otel.SetMeterProvider(mp)
	}

	return nil
}
