// Package metrics exposes Prometheus instrumentation for the service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Deployment outcomes used as label values.
const (
	OutcomeSuccess  = "success"
	OutcomeFailed   = "failed"
	OutcomeError    = "error"
	OutcomeRejected = "rejected"
)

var (
	// DeploymentsTotal counts deployment attempts by outcome.
	DeploymentsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "composehook_deployments_total",
		Help: "Deployment attempts by outcome.",
	}, []string{"outcome"})

	// DeployDuration observes the wall-clock duration of completed
	// deployments, successful or not.
	DeployDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "composehook_deploy_duration_seconds",
		Help:    "Duration of deployments in seconds.",
		Buckets: []float64{1, 5, 10, 30, 60, 120, 300},
	})

	// UnauthorizedTotal counts webhook requests rejected by authentication.
	UnauthorizedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "composehook_unauthorized_requests_total",
		Help: "Webhook requests rejected with 401.",
	})
)
