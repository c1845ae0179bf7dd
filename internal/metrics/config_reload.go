package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for the runtime configuration store: write/rollback
// outcomes, durations, and the currently active version.

var (
	// ConfigReloadTotal tracks config write attempts by status: success,
	// error, validation_failed, rolled_back.
	ConfigReloadTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "config_reload_total",
			Help: "Total number of config write/rollback attempts by status",
		},
		[]string{"status"},
	)

	// ConfigReloadDuration tracks the duration of a config write or
	// rollback, end to end.
	ConfigReloadDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "config_reload_duration_seconds",
			Help:    "Duration of config write/rollback operations",
			Buckets: []float64{0.01, 0.05, 0.1, 0.2, 0.5, 1.0, 2.0, 5.0},
		},
	)

	// ConfigReloadErrors tracks write/rollback errors by type:
	// validation_failed, storage_failed.
	ConfigReloadErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "config_reload_errors_total",
			Help: "Total number of config write/rollback errors by type",
		},
		[]string{"type"},
	)

	// ConfigReloadLastSuccess tracks the timestamp of the last successful
	// config write.
	ConfigReloadLastSuccess = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "config_reload_last_success_timestamp_seconds",
			Help: "Timestamp of last successful config write (Unix epoch)",
		},
	)

	// ConfigReloadRollbacks tracks rollback count by reason; rollbacks made
	// through the API are counted under reason api.
	ConfigReloadRollbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "config_reload_rollbacks_total",
			Help: "Total number of config rollbacks by reason",
		},
		[]string{"reason"},
	)

	// ConfigReloadVersion tracks the currently active configuration version.
	ConfigReloadVersion = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "config_reload_version",
			Help: "Current configuration version number",
		},
	)
)
