package activator

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the named counters the reconciler increments on every
// state transition it drives, tagged by entity_type/from_state/to_state
// per SPEC_FULL.md §8.
type Metrics struct {
	Transitions      *prometheus.CounterVec
	PollErrors       prometheus.Counter
	PollDuration     prometheus.Histogram
	AccessPassSweeps prometheus.Counter
	AccessPassExpiry *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Transitions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "doublezero_activator_transitions_total",
			Help: "Number of entity state transitions driven by the activator.",
		}, []string{"entity_type", "from_state", "to_state"}),
		PollErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "doublezero_activator_poll_errors_total",
			Help: "Number of failed program-account poll cycles.",
		}),
		PollDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "doublezero_activator_poll_duration_seconds",
			Help:    "Duration of each program-account poll cycle.",
			Buckets: prometheus.DefBuckets,
		}),
		AccessPassSweeps: factory.NewCounter(prometheus.CounterOpts{
			Name: "doublezero_activator_accesspass_sweeps_total",
			Help: "Number of completed access-pass sweep cycles.",
		}),
		AccessPassExpiry: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "doublezero_activator_accesspass_expiry_total",
			Help: "Number of users moved by the access-pass sweep, by direction.",
		}, []string{"direction"}),
	}
}
