package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SupervisorState tracks the current lifecycle state as an ordinal
	SupervisorState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "botrunner_supervisor_state",
			Help: "Current supervisor state (0=idle 1=starting 2=running 3=succeeded 4=failed 5=restarting 6=stopped)",
		},
	)

	// RunsTotal tracks finished automation runs by outcome
	RunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "botrunner_runs_total",
			Help: "Total number of automation task runs",
		},
		[]string{"outcome", "category"},
	)

	// ConnectivityFailures tracks the consecutive connectivity failure counter
	ConnectivityFailures = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "botrunner_connectivity_failures",
			Help: "Consecutive connectivity failures since the last good run",
		},
	)

	// BackgroundErrorsTotal tracks errors swallowed from background tasks
	BackgroundErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "botrunner_background_errors_total",
			Help: "Total number of errors and panics absorbed from background tasks",
		},
		[]string{"task"},
	)

	// PublishTotal tracks content publish attempts by result
	PublishTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "botrunner_publish_total",
			Help: "Total number of remote content publish attempts",
		},
		[]string{"result"},
	)

	// PublishLatency tracks publish duration
	PublishLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "botrunner_publish_duration_seconds",
			Help:    "Remote content publish latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// DBConnectionPoolUsage tracks database pool usage percentage
	DBConnectionPoolUsage = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "botrunner_db_pool_usage_percent",
			Help: "Database connection pool usage percentage",
		},
	)
)
