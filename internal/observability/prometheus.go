package observability

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "chemident"

// PrometheusRecorder exports index metrics as Prometheus collectors.
type PrometheusRecorder struct {
	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	rows       *prometheus.CounterVec
	entries    *prometheus.GaugeVec
}

// NewPrometheusRecorder registers the collectors with reg. A nil reg uses a
// fresh registry, which keeps repeated construction in tests from colliding.
func NewPrometheusRecorder(reg prometheus.Registerer) *PrometheusRecorder {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	f := promauto.With(reg)
	return &PrometheusRecorder{
		operations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "index_operations_total",
			Help:      "Index operations by name and status",
		}, []string{"operation", "status"}),
		duration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "index_operation_duration_seconds",
			Help:      "Duration of index operations",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10), // 1ms to ~4min
		}, []string{"operation"}),
		rows: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_rows_total",
			Help:      "Rows read from the data source by query",
		}, []string{"query"}),
		entries: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "index_entries",
			Help:      "Entries per index table",
		}, []string{"table"}),
	}
}

func (p *PrometheusRecorder) Observe(_ context.Context, operation string, success bool, duration time.Duration) {
	if operation == "" {
		return
	}
	p.operations.WithLabelValues(operation, status(success)).Inc()
	p.duration.WithLabelValues(operation).Observe(duration.Seconds())
}

func (p *PrometheusRecorder) AddRows(query string, n int) {
	p.rows.WithLabelValues(query).Add(float64(n))
}

func (p *PrometheusRecorder) SetEntries(table string, n int) {
	p.entries.WithLabelValues(table).Set(float64(n))
}

// WriteTextfile writes every metric gathered by g to path in the node_exporter
// textfile format.
func WriteTextfile(path string, g prometheus.Gatherer) error {
	return prometheus.WriteToTextfile(path, g)
}
