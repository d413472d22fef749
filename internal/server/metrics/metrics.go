// Package metrics exposes Prometheus collectors for the verification server.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "voicegate_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "voicegate_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path"},
	)

	ChallengesIssued = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "voicegate_challenges_issued_total",
			Help: "Total number of challenges issued",
		},
		[]string{"difficulty"},
	)

	ChallengeIssueRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "voicegate_challenge_issue_rejected_total",
			Help: "Challenge issuance requests rejected before any challenge was created",
		},
		[]string{"reason"},
	)

	VerificationsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "voicegate_verifications_completed_total",
			Help: "Verification sessions that reached a terminal state",
		},
		[]string{"outcome", "reason"},
	)

	PhraseScores = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "voicegate_phrase_final_score",
			Help:    "Per-phrase final scores after penalties",
			Buckets: prometheus.LinearBuckets(0, 0.05, 21),
		},
	)

	ScorerRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "voicegate_scorer_request_duration_seconds",
			Help:    "Latency of calls to the external scoring service",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"status"},
	)

	SessionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "voicegate_sessions_active",
			Help: "Number of in-memory verification sessions",
		},
	)

	AccountsLocked = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "voicegate_accounts_locked_total",
			Help: "Accounts locked out after repeated failures",
		},
	)

	SchedulerTasksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "voicegate_scheduler_tasks_total",
			Help: "Total number of scheduled tasks executed",
		},
		[]string{"task", "status"},
	)

	SchedulerTaskDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "voicegate_scheduler_task_duration_seconds",
			Help:    "Scheduled task duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 300},
		},
		[]string{"task"},
	)

	PurgedRows = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "voicegate_purged_rows_total",
			Help: "Rows removed or redacted by the retention purger",
		},
		[]string{"kind"},
	)
)

// RecordSchedulerTask records one scheduled task run.
func RecordSchedulerTask(task, status string, duration time.Duration) {
	SchedulerTasksTotal.WithLabelValues(task, status).Inc()
	SchedulerTaskDuration.WithLabelValues(task).Observe(duration.Seconds())
}

// RecordScorerRequest records the latency of one scorer call.
func RecordScorerRequest(status string, duration time.Duration) {
	ScorerRequestDuration.WithLabelValues(status).Observe(duration.Seconds())
}

// RecordVerification records a terminal session decision.
func RecordVerification(accepted bool, reason string) {
	outcome := "rejected"
	if accepted {
		outcome = "accepted"
	}
	VerificationsCompleted.WithLabelValues(outcome, reason).Inc()
}
