package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/kdsmith18542/archivekit/logging"
	"github.com/kdsmith18542/archivekit/observability"
)

// ObservableDriver wraps a Driver with tracing, metrics and logging.
type ObservableDriver struct {
	Driver
	logger *zap.Logger
}

// NewObservableDriver creates a new observable driver wrapper
func NewObservableDriver(d Driver, logger *zap.Logger) *ObservableDriver {
	if logger == nil {
		logger = logging.Named("store")
	}
	return &ObservableDriver{Driver: d, logger: logger.With(zap.String("backend", d.PluginName()))}
}

// Unwrap returns the wrapped driver.
func (o *ObservableDriver) Unwrap() Driver {
	return o.Driver
}

func (o *ObservableDriver) begin(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	ctx = logging.WithOperationID(ctx, uuid.NewString())
	attrs = append(attrs, attribute.String("storage.backend", o.PluginName()))
	return observability.StartSpan(ctx, "storage."+op, trace.WithAttributes(attrs...))
}

func (o *ObservableDriver) finish(ctx context.Context, span trace.Span, op string, start time.Time, err error) {
	duration := time.Since(start)
	observability.GetObserver().OnStorageOperation(ctx, op, o.PluginName(), duration, err == nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		o.logger.Warn("storage operation failed",
			zap.String("operation", op),
			zap.String("operation_id", logging.OperationID(ctx)),
			zap.String("kind", KindOf(err).String()),
			zap.Error(err),
		)
	}
	span.End()
}

// IsAvailable reports availability and records the free space seen.
func (o *ObservableDriver) IsAvailable(ctx context.Context) bool {
	ctx, span := o.begin(ctx, "is_available")
	start := time.Now()

	available := o.Driver.IsAvailable(ctx)
	free, known := o.Driver.FreeBytes(ctx)
	observability.GetObserver().OnAvailabilityCheck(ctx, o.PluginName(), free, known, available)
	span.SetAttributes(attribute.Bool("storage.available", available))

	o.finish(ctx, span, "is_available", start, nil)
	return available
}

func (o *ObservableDriver) FreeBytes(ctx context.Context) (uint64, bool) {
	ctx, span := o.begin(ctx, "free_bytes")
	start := time.Now()

	free, known := o.Driver.FreeBytes(ctx)

	o.finish(ctx, span, "free_bytes", start, nil)
	return free, known
}

func (o *ObservableDriver) Store(ctx context.Context, jobID int64, src File, logicalPath string) (*FileHandle, error) {
	ctx, span := o.begin(ctx, "store",
		attribute.Int64("job.id", jobID),
		attribute.String("file.name", src.Filename()),
		attribute.Int64("file.size", src.Size()),
	)
	start := time.Now()
	obs := observability.GetObserver()
	obs.OnStoreStart(ctx, o.PluginName(), jobID, src.Filename(), src.Size())

	h, err := o.Driver.Store(ctx, jobID, src, logicalPath)

	obs.OnStoreEnd(ctx, o.PluginName(), jobID, src.Filename(), src.Size(), time.Since(start), err == nil)
	o.finish(ctx, span, "store", start, err)
	return h, err
}

func (o *ObservableDriver) Retrieve(ctx context.Context, h *FileHandle, target RestoreTarget) (File, error) {
	ctx, span := o.begin(ctx, "retrieve",
		attribute.Int64("job.id", h.JobID),
		attribute.String("file.key", h.Key()),
	)
	start := time.Now()

	f, err := o.Driver.Retrieve(ctx, h, target)

	o.finish(ctx, span, "retrieve", start, err)
	return f, err
}

func (o *ObservableDriver) Delete(ctx context.Context, h *FileHandle, strict bool) error {
	ctx, span := o.begin(ctx, "delete",
		attribute.Int64("job.id", h.JobID),
		attribute.String("file.key", h.Key()),
		attribute.Bool("strict", strict),
	)
	start := time.Now()

	err := o.Driver.Delete(ctx, h, strict)

	o.finish(ctx, span, "delete", start, err)
	return err
}
