// Package observability provides Prometheus metrics for the submission
// pipeline and the moderation reconciliation engine.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all Prometheus collectors of the application.
type Metrics struct {
	pipelineStageTotal    *prometheus.CounterVec
	pipelineStageDuration *prometheus.HistogramVec
	moderationReadsTotal  *prometheus.CounterVec
	confirmationsTotal    prometheus.Counter
	revocationsTotal      prometheus.Counter
	orphanedArtifacts     prometheus.Counter
}

// NewMetrics creates and registers all collectors on the given registerer.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		pipelineStageTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cattlescan_pipeline_stage_total",
				Help: "Submission pipeline stage outcomes.",
			},
			[]string{"stage", "outcome"},
		),
		pipelineStageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "cattlescan_pipeline_stage_duration_seconds",
				Help:    "Duration of submission pipeline stages.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"stage"},
		),
		moderationReadsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cattlescan_moderation_reads_total",
				Help: "Paged reads served per moderation view.",
			},
			[]string{"view"},
		),
		confirmationsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cattlescan_confirmations_total",
				Help: "Confirmed breed records created by moderators.",
			},
		),
		revocationsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cattlescan_revocations_total",
				Help: "Confirmed breed records deleted, reopening their scans.",
			},
		),
		orphanedArtifacts: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cattlescan_orphaned_artifacts_total",
				Help: "Uploaded images left without a persisted scan after a persistence failure.",
			},
		),
	}

	collectors := []prometheus.Collector{
		m.pipelineStageTotal,
		m.pipelineStageDuration,
		m.moderationReadsTotal,
		m.confirmationsTotal,
		m.revocationsTotal,
		m.orphanedArtifacts,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}

	return m, nil
}

// RecordStage records the outcome and duration of a pipeline stage.
func (m *Metrics) RecordStage(stage, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.pipelineStageTotal.WithLabelValues(stage, outcome).Inc()
	m.pipelineStageDuration.WithLabelValues(stage).Observe(duration.Seconds())
}

// RecordModerationRead records a paged read of a moderation view.
func (m *Metrics) RecordModerationRead(view string) {
	if m == nil {
		return
	}
	m.moderationReadsTotal.WithLabelValues(view).Inc()
}

// RecordConfirmation records a confirmed breed insert.
func (m *Metrics) RecordConfirmation() {
	if m == nil {
		return
	}
	m.confirmationsTotal.Inc()
}

// RecordRevocation records a confirmed breed delete.
func (m *Metrics) RecordRevocation() {
	if m == nil {
		return
	}
	m.revocationsTotal.Inc()
}

// RecordOrphanedArtifact records an upload left behind by a failed persist.
func (m *Metrics) RecordOrphanedArtifact() {
	if m == nil {
		return
	}
	m.orphanedArtifacts.Inc()
}
