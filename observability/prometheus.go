package observability

import (
	"context"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusObserver exports storage events as Prometheus collectors.
type PrometheusObserver struct {
	operations  *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	storedBytes *prometheus.CounterVec
	freeBytes   *prometheus.GaugeVec
	available   *prometheus.GaugeVec
}

// NewPrometheusObserver registers the archivekit collectors on reg.
func NewPrometheusObserver(reg prometheus.Registerer) *PrometheusObserver {
	factory := promauto.With(reg)
	return &PrometheusObserver{
		operations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "archivekit_storage_operations_total",
				Help: "Total number of storage driver operations",
			},
			[]string{"backend", "operation", "success"},
		),
		duration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "archivekit_storage_operation_duration_seconds",
				Help:    "Storage driver operation duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"backend", "operation"},
		),
		storedBytes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "archivekit_storage_stored_bytes_total",
				Help: "Total bytes placed by successful store operations",
			},
			[]string{"backend"},
		),
		freeBytes: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "archivekit_storage_free_bytes",
				Help: "Free bytes last reported by the backend",
			},
			[]string{"backend"},
		),
		available: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "archivekit_storage_available",
				Help: "1 if the backend reported itself available at the last check",
			},
			[]string{"backend"},
		),
	}
}

func (p *PrometheusObserver) OnStoreStart(ctx context.Context, backend string, jobID int64, fileName string, fileSize int64) {
}

func (p *PrometheusObserver) OnStoreEnd(ctx context.Context, backend string, jobID int64, fileName string, fileSize int64, duration time.Duration, success bool) {
	if success && fileSize > 0 {
		p.storedBytes.WithLabelValues(backend).Add(float64(fileSize))
	}
}

func (p *PrometheusObserver) OnStorageOperation(ctx context.Context, operation string, backend string, duration time.Duration, success bool) {
	p.operations.WithLabelValues(backend, operation, strconv.FormatBool(success)).Inc()
	p.duration.WithLabelValues(backend, operation).Observe(duration.Seconds())
}

func (p *PrometheusObserver) OnAvailabilityCheck(ctx context.Context, backend string, freeBytes uint64, known bool, available bool) {
	if known {
		p.freeBytes.WithLabelValues(backend).Set(float64(freeBytes))
	}
	if available {
		p.available.WithLabelValues(backend).Set(1)
	} else {
		p.available.WithLabelValues(backend).Set(0)
	}
}
