package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	OpLetter = "letter"
	OpImage  = "image"
	OpVoice  = "voice"

	OutcomeOK          = "ok"
	OutcomeRateLimited = "rate_limited"
	OutcomeError       = "error"
	OutcomeEmpty       = "empty"
)

var (
	GenerationCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "keepsake",
			Name:      "generation_calls_total",
			Help:      "Generation calls by operation and final outcome.",
		},
		[]string{"operation", "outcome"},
	)

	GenerationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "keepsake",
			Name:      "generation_duration_seconds",
			Help:      "Wall time of a generation call including retries.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 40, 80},
		},
		[]string{"operation"},
	)

	GenerationRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "keepsake",
			Name:      "generation_retries_total",
			Help:      "Rate-limited attempts that were retried.",
		},
		[]string{"operation"},
	)

	StalePatches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "keepsake",
			Name:      "stale_patches_total",
			Help:      "Background results dropped because the session was reset.",
		},
		[]string{"operation"},
	)

	SessionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "keepsake",
			Name:      "sessions_active",
			Help:      "Sessions currently held in memory.",
		},
	)
)
