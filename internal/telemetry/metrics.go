package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// API

	TasksSubmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "shortsgen",
		Subsystem: "api",
		Name:      "tasks_submitted_total",
		Help:      "Generation requests accepted by the external service.",
	}, []string{"provider"})

	CallbacksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "shortsgen",
		Subsystem: "api",
		Name:      "callbacks_total",
		Help:      "Completion callbacks received, labelled by outcome.",
	}, []string{"outcome"})

	// Worker

	JobsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "shortsgen",
		Subsystem: "worker",
		Name:      "jobs_processed_total",
		Help:      "Pipeline jobs finished, labelled by outcome.",
	}, []string{"outcome"})

	JobsInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "shortsgen",
		Subsystem: "worker",
		Name:      "jobs_inflight",
		Help:      "Pipeline jobs currently being executed.",
	})

	StageDurationSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "shortsgen",
		Subsystem: "worker",
		Name:      "stage_duration_seconds",
		Help:      "Time spent in each pipeline stage.",
		Buckets:   []float64{0.5, 1, 5, 15, 30, 60, 120, 300, 600, 900},
	}, []string{"stage"})

	CaptionsDegraded = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "shortsgen",
		Subsystem: "worker",
		Name:      "captions_degraded_total",
		Help:      "Variants rendered with the default caption.",
	}, []string{"variant"})
)

// Callback outcomes
const (
	OutcomeWaiting   = "waiting"
	OutcomeDuplicate = "duplicate"
	OutcomeNoOwner   = "no_owner"
	OutcomeSuccess   = "success"
	OutcomeFailed    = "failed"
	OutcomeMalformed = "malformed"
)
