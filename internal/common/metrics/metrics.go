package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	TurnsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "loan_turns_total",
			Help: "Chat turns processed, by stage before the turn and outcome",
		},
		[]string{"stage", "outcome"},
	)

	TurnDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "loan_turn_duration_seconds",
			Help:    "Duration of a chat turn in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"stage"},
	)

	DecisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "loan_decisions_total",
			Help: "Eligibility decisions reached",
		},
		[]string{"status"},
	)

	SanctionLettersTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "loan_sanction_letters_total",
			Help: "Sanction letters rendered",
		},
	)

	SessionsReset = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "loan_sessions_reset_total",
			Help: "Sessions cleared by reset",
		},
	)

	WorkerJobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_completed_total",
			Help: "Total number of jobs completed by worker",
		},
		[]string{"task_type"},
	)

	WorkerJobsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_failed_total",
			Help: "Total number of jobs failed by worker",
		},
		[]string{"task_type", "error_code"},
	)
)
