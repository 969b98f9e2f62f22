package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ProviderAttempts counts chat completion calls per provider and use case.
	ProviderAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "contentd",
		Subsystem: "provider",
		Name:      "attempts_total",
		Help:      "LLM completion attempts by provider and use case.",
	}, []string{"provider", "use_case"})

	// ProviderFailures counts typed adapter failures.
	ProviderFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "contentd",
		Subsystem: "provider",
		Name:      "failures_total",
		Help:      "LLM completion failures by provider, use case and kind.",
	}, []string{"provider", "use_case", "kind"})

	// GenerationOutcomes counts finished generation tasks by content type and outcome.
	GenerationOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "contentd",
		Subsystem: "generation",
		Name:      "outcomes_total",
		Help:      "Generation task outcomes (succeeded, fallback, failed).",
	}, []string{"content_type", "outcome"})

	// CollectorFailures counts feed collectors that errored during a digest run.
	CollectorFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "contentd",
		Subsystem: "feeds",
		Name:      "collector_failures_total",
		Help:      "Feed collector failures by source.",
	}, []string{"source"})

	// CandidatesCollected observes how many candidates each digest run aggregated.
	CandidatesCollected = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "contentd",
		Subsystem: "feeds",
		Name:      "candidates_collected",
		Help:      "Deduplicated candidate count per aggregation run.",
		Buckets:   []float64{0, 1, 2, 5, 10, 20, 50, 100},
	})
)
