package orchestrator

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	runsStarted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "post_generator_pipeline_runs_started_total",
			Help: "Total number of generation pipeline runs started.",
		},
	)
	runsSucceeded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "post_generator_pipeline_runs_succeeded_total",
			Help: "Total number of generation pipeline runs completed successfully.",
		},
	)
	runsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "post_generator_pipeline_runs_failed_total",
			Help: "Total number of generation pipeline runs aborted.",
		},
		[]string{"reason"},
	)
	stagesFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "post_generator_pipeline_stage_failures_total",
			Help: "Total number of pipeline stage failures.",
		},
		[]string{"stage"},
	)
	stageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "post_generator_pipeline_stage_duration_seconds",
			Help:    "Histogram of pipeline stage durations.",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
		},
		[]string{"stage"},
	)
	runDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "post_generator_pipeline_run_duration_seconds",
			Help:    "Histogram of full pipeline run durations.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		},
	)
)

func metricsIncrementRunsStarted()  { runsStarted.Inc() }
func metricsIncrementRunSucceeded() { runsSucceeded.Inc() }

func metricsIncrementRunFailed(reason string) {
	runsFailed.With(prometheus.Labels{"reason": reason}).Inc()
}

func metricsIncrementStageFailed(stage string) {
	stagesFailed.With(prometheus.Labels{"stage": stage}).Inc()
}

func metricsObserveStageDuration(stage string, d time.Duration) {
	stageDuration.With(prometheus.Labels{"stage": stage}).Observe(d.Seconds())
}

func metricsObserveRunDuration(d time.Duration) {
	runDuration.Observe(d.Seconds())
}
