package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// GateOutcomes records verification gate results by gate and outcome kind.
	GateOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "votegate_gate_outcomes_total",
			Help: "Total number of verification gate outcomes",
		},
		[]string{"gate", "outcome"},
	)

	// OTPEvents counts one-time code lifecycle events (issued|confirmed|expired|mismatch|no_active_code).
	OTPEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "votegate_otp_events_total",
			Help: "Total number of one-time code events",
		},
		[]string{"event"},
	)

	// BallotCommits counts ballot commit calls by result (committed|already_cast|error).
	BallotCommits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "votegate_ballot_commits_total",
			Help: "Total number of ballot commit attempts",
		},
		[]string{"result"},
	)

	// OracleLatency measures face comparison round trips.
	OracleLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "votegate_oracle_latency_seconds",
			Help:    "Face comparison oracle latency",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 4, 8, 15},
		},
		[]string{"result"},
	)

	// SMSDispatch counts outbound notifications by kind and result.
	SMSDispatch = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "votegate_sms_dispatch_total",
			Help: "Total number of outbound SMS notifications",
		},
		[]string{"kind", "result"},
	)

	// APILatency measures HTTP request latencies.
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "votegate_api_latency_seconds",
			Help:    "API endpoint latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	// MaintenanceRuns counts scheduled sweep runs by job and result.
	MaintenanceRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "votegate_maintenance_runs_total",
			Help: "Total number of maintenance job runs",
		},
		[]string{"job", "result"},
	)

	MaintenanceDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "votegate_maintenance_duration_seconds",
			Help:    "Maintenance job duration",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"job"},
	)
)
