package sqlite

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	factsIndexed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "jautbook",
		Subsystem: "memory",
		Name:      "facts_indexed_total",
		Help:      "Facts written to the index, by kind.",
	}, []string{"kind"})

	searchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "jautbook",
		Subsystem: "memory",
		Name:      "search_duration_seconds",
		Help:      "Fact search latency, by query type.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"op"})
)
