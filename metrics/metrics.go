package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Run counters, exposed via the ops listener's /metrics endpoint.
var (
	FetchAttempts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "prospect_fetch_attempts_total",
		Help: "Page fetch attempts, successful or not.",
	})

	Classifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "prospect_classifications_total",
		Help: "Fetch outcomes by classifier category.",
	}, []string{"category"})

	Rotations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "prospect_egress_rotations_total",
		Help: "Completed egress identity rotations by trigger.",
	}, []string{"reason"})

	Targets = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "prospect_targets_total",
		Help: "Processed targets by terminal outcome.",
	}, []string{"outcome"})
)
