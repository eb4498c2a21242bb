package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	avatarsGenerated = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "avatar_service",
		Subsystem: "generation",
		Name:      "avatars_generated_total",
		Help:      "Number of avatar states generated, labeled by backend variant.",
	}, []string{"backend"})

	synthesisDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "avatar_service",
		Subsystem: "generation",
		Name:      "synthesis_duration_seconds",
		Help:      "Time spent in a single mesh synthesis call, labeled by backend variant.",
		Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
	}, []string{"backend"})

	backendSelected = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "avatar_service",
		Subsystem: "generation",
		Name:      "licensed_backend_selected",
		Help:      "1 when the licensed backend was selected, 0 when running on the placeholder.",
	})

	morphSequences = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "avatar_service",
		Subsystem: "morphing",
		Name:      "sequences_total",
		Help:      "Number of morph sequences computed.",
	})
)

func init() {
	prometheus.MustRegister(avatarsGenerated, synthesisDuration, backendSelected, morphSequences)
}

// RecordSynthesis observes one synthesis call.
func RecordSynthesis(backend string, elapsed time.Duration) {
	avatarsGenerated.WithLabelValues(backend).Inc()
	synthesisDuration.WithLabelValues(backend).Observe(elapsed.Seconds())
}

// RecordBackendSelected records the one-time backend selection outcome.
func RecordBackendSelected(licensed bool) {
	if licensed {
		backendSelected.Set(1)
		return
	}
	backendSelected.Set(0)
}

// RecordMorphSequence counts a completed morph sequence.
func RecordMorphSequence() {
	morphSequences.Inc()
}
