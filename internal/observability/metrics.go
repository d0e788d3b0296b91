package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// StageDuration tracks how long each pipeline stage takes.
	// Labels: stage (ingest, generate, render, validate), result (success, error)
	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "deliverable",
			Subsystem: "pipeline",
			Name:      "stage_duration_seconds",
			Help:      "Duration of pipeline stages in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"stage", "result"},
	)

	// RunsTotal counts pipeline runs.
	// Labels: result (done, failed), code (error code or "")
	RunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "deliverable",
			Subsystem: "pipeline",
			Name:      "runs_total",
			Help:      "Total number of pipeline runs by outcome",
		},
		[]string{"result", "code"},
	)

	// ArtifactValidations counts validator verdicts.
	// Labels: type (docx, pdf), status (valid, failed), code (error code or "")
	ArtifactValidations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "deliverable",
			Subsystem: "validation",
			Name:      "artifacts_total",
			Help:      "Total number of artifact validations by type and verdict",
		},
		[]string{"type", "status", "code"},
	)
)

// ObserveStage records a stage duration measured from start.
func ObserveStage(stage string, start time.Time, err error) {
	result := "success"
	if err != nil {
		result = "error"
	}
	StageDuration.WithLabelValues(stage, result).Observe(time.Since(start).Seconds())
}
