package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/R3gardless/pyodide/pkg/vfs"
)

// fsMetrics is the Prometheus implementation of vfs.Metrics.
type fsMetrics struct {
	operations   *prometheus.CounterVec
	syncDuration *prometheus.HistogramVec
	syncErrors   *prometheus.CounterVec
}

// NewFSMetrics creates a Prometheus-backed vfs.Metrics instance.
//
// Returns nil if metrics are not enabled (InitRegistry not called).
// A nil Metrics disables collection with zero overhead:
//
//	metrics.InitRegistry()
//	fs := vfs.New(vfs.WithMetrics(metrics.NewFSMetrics()))
func NewFSMetrics() vfs.Metrics {
	if !IsEnabled() {
		return nil
	}

	reg := GetRegistry()

	return &fsMetrics{
		operations: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "pyvfs_operations_total",
				Help: "Total number of filesystem operations by operation name",
			},
			[]string{"op"},
		),
		syncDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "pyvfs_sync_duration_milliseconds",
				Help: "Duration of sync passes in milliseconds by direction",
				Buckets: []float64{
					1,     // 1ms - empty flush
					5,     // 5ms
					10,    // 10ms
					50,    // 50ms
					100,   // 100ms
					500,   // 500ms
					1000,  // 1s
					5000,  // 5s - large populate
					10000, // 10s
				},
			},
			[]string{"direction"}, // "flush", "populate"
		),
		syncErrors: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "pyvfs_sync_errors_total",
				Help: "Total number of failed sync passes by direction",
			},
			[]string{"direction"},
		),
	}
}

// IncOp counts one filesystem operation.
func (m *fsMetrics) IncOp(op string) {
	m.operations.WithLabelValues(op).Inc()
}

// ObserveSync records the duration and outcome of one sync pass.
func (m *fsMetrics) ObserveSync(direction string, duration time.Duration, err error) {
	ms := float64(duration.Microseconds()) / 1000.0
	m.syncDuration.WithLabelValues(direction).Observe(ms)
	if err != nil {
		m.syncErrors.WithLabelValues(direction).Inc()
	}
}

// Ensure fsMetrics implements vfs.Metrics.
var _ vfs.Metrics = (*fsMetrics)(nil)
