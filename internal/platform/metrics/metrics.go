package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	DocumentsCreated     prometheus.Counter
	VersionsCreated      prometheus.Counter
	SignaturesCaptured   prometheus.Counter
	SignaturesRejected   prometheus.Counter
	WorkflowRunsStarted  prometheus.Counter
	WorkflowRunsComplete prometheus.Counter
	RequestLatency       *prometheus.HistogramVec
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		DocumentsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "doccontrol_documents_created_total",
			Help: "Total number of controlled documents created",
		}),
		VersionsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "doccontrol_document_versions_created_total",
			Help: "Total number of document versions created",
		}),
		SignaturesCaptured: promauto.NewCounter(prometheus.CounterOpts{
			Name: "doccontrol_signatures_captured_total",
			Help: "Total number of electronic signatures captured",
		}),
		SignaturesRejected: promauto.NewCounter(prometheus.CounterOpts{
			Name: "doccontrol_signatures_rejected_total",
			Help: "Total number of signature submissions rejected for invalid credentials",
		}),
		WorkflowRunsStarted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "doccontrol_workflow_runs_started_total",
			Help: "Total number of workflow runs instantiated",
		}),
		WorkflowRunsComplete: promauto.NewCounter(prometheus.CounterOpts{
			Name: "doccontrol_workflow_runs_completed_total",
			Help: "Total number of workflow runs completed",
		}),
		RequestLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "doccontrol_http_request_duration_seconds",
			Help:    "HTTP request latency by route and status",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "status"}),
	}
}
