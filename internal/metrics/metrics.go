// Package metrics provides Prometheus metrics for the sweep service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels.
const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
)

var (
	// ConnectorOperations tracks provider calls made through connectors.
	ConnectorOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sweep",
			Name:      "connector_operations_total",
			Help:      "Total number of connector operations by outcome",
		},
		[]string{"source", "operation", "outcome"},
	)

	// ConnectorOperationDuration tracks connector operation latency.
	ConnectorOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "sweep",
			Name:      "connector_operation_duration_seconds",
			Help:      "Duration of connector operations in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"source", "operation"},
	)

	// WebhookRequests tracks inbound webhooks by outcome
	// (accepted, challenge, rejected, unknown, error).
	WebhookRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sweep",
			Name:      "webhook_requests_total",
			Help:      "Total number of inbound webhook requests by outcome",
		},
		[]string{"source", "outcome"},
	)

	// OAuthFlows tracks authorize and callback attempts.
	OAuthFlows = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sweep",
			Name:      "oauth_flows_total",
			Help:      "Total number of OAuth flow steps by stage and outcome",
		},
		[]string{"source", "stage", "outcome"},
	)

	// SchedulerTaskRuns tracks background task executions.
	SchedulerTaskRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sweep",
			Name:      "scheduler_task_runs_total",
			Help:      "Total number of scheduler task runs by outcome",
		},
		[]string{"task", "outcome"},
	)
)

// Outcome maps an error to its outcome label.
func Outcome(err error) string {
	if err != nil {
		return OutcomeError
	}
	return OutcomeSuccess
}

// RecordConnectorOperation records a connector call started at start.
func RecordConnectorOperation(source, operation string, start time.Time, err error) {
	ConnectorOperations.WithLabelValues(source, operation, Outcome(err)).Inc()
	ConnectorOperationDuration.WithLabelValues(source, operation).Observe(time.Since(start).Seconds())
}

// RecordWebhook records an inbound webhook.
func RecordWebhook(source, outcome string) {
	WebhookRequests.WithLabelValues(source, outcome).Inc()
}

// RecordOAuthFlow records an OAuth flow step.
func RecordOAuthFlow(source, stage string, err error) {
	OAuthFlows.WithLabelValues(source, stage, Outcome(err)).Inc()
}

// RecordTaskRun records a scheduler task execution.
func RecordTaskRun(task string, err error) {
	SchedulerTaskRuns.WithLabelValues(task, Outcome(err)).Inc()
}
