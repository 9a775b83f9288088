package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	VolunteersCreated    prometheus.Counter
	CodesAllocated       prometheus.Counter
	CodeProbes           prometheus.Histogram
	CodeClaimRetries     prometheus.Counter
	TransitionsAccepted  prometheus.Counter
	TransitionsRejected  prometheus.Counter
	TransitionConflicts  prometheus.Counter
	UpdatesRejected      prometheus.Counter
	AuditRecordsAppended prometheus.Counter
	AuditStreamDropped   prometheus.Counter
}

// New creates and registers all Prometheus metrics on the default registry.
func New() *Metrics {
	return NewWith(prometheus.DefaultRegisterer)
}

// NewWith registers on a caller-supplied registry. Test suites pass a fresh
// registry so repeated construction never collides.
func NewWith(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		VolunteersCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "cohort_volunteers_created_total",
			Help: "Total number of volunteer identities created",
		}),
		CodesAllocated: factory.NewCounter(prometheus.CounterOpts{
			Name: "cohort_subject_codes_allocated_total",
			Help: "Total number of subject codes allocated",
		}),
		CodeProbes: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "cohort_subject_code_probes",
			Help:    "Existence probes needed per subject code allocation",
			Buckets: []float64{1, 2, 5, 10, 50, 100, 1000},
		}),
		CodeClaimRetries: factory.NewCounter(prometheus.CounterOpts{
			Name: "cohort_subject_code_claim_retries_total",
			Help: "Allocation retries after losing a uniqueness race on commit",
		}),
		TransitionsAccepted: factory.NewCounter(prometheus.CounterOpts{
			Name: "cohort_transitions_accepted_total",
			Help: "Total number of accepted lifecycle transitions",
		}),
		TransitionsRejected: factory.NewCounter(prometheus.CounterOpts{
			Name: "cohort_transitions_rejected_total",
			Help: "Transitions rejected by the lifecycle guard",
		}),
		TransitionConflicts: factory.NewCounter(prometheus.CounterOpts{
			Name: "cohort_transition_conflicts_total",
			Help: "Transitions lost to a concurrent writer (version mismatch)",
		}),
		UpdatesRejected: factory.NewCounter(prometheus.CounterOpts{
			Name: "cohort_updates_rejected_total",
			Help: "Field updates rejected by the immutable-field guard",
		}),
		AuditRecordsAppended: factory.NewCounter(prometheus.CounterOpts{
			Name: "cohort_audit_records_appended_total",
			Help: "Total number of audit records appended",
		}),
		AuditStreamDropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "cohort_audit_stream_dropped_total",
			Help: "Audit records not mirrored to the stream (full buffer or publish failure)",
		}),
	}
}
