package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// DatabaseMetrics holds the Prometheus metrics exported for the config
// store's PostgreSQL connection pool.
type DatabaseMetrics struct {
	ConnectionsActive             prometheus.Gauge
	ConnectionsIdle               prometheus.Gauge
	QueryDurationSeconds          *prometheus.HistogramVec
	QueriesTotal                  *prometheus.CounterVec
	ErrorsTotal                   *prometheus.CounterVec
	ConnectionWaitDurationSeconds prometheus.Histogram
}

// NewDatabaseMetrics registers and returns the database pool metrics.
func NewDatabaseMetrics() *DatabaseMetrics {
	return &DatabaseMetrics{
		ConnectionsActive: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "db_pool_connections_active",
			Help: "Number of connections currently checked out of the pool",
		}),
		ConnectionsIdle: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "db_pool_connections_idle",
			Help: "Number of idle connections in the pool",
		}),
		QueryDurationSeconds: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "db_query_duration_seconds",
				Help:    "Duration of database queries",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		QueriesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "db_queries_total",
				Help: "Total number of database queries by operation and status",
			},
			[]string{"operation", "status"},
		),
		ErrorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "db_errors_total",
				Help: "Total number of database errors by kind",
			},
			[]string{"kind"},
		),
		ConnectionWaitDurationSeconds: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "db_connection_wait_duration_seconds",
			Help:    "Time spent waiting to acquire a pooled connection",
			Buckets: prometheus.DefBuckets,
		}),
	}
}
