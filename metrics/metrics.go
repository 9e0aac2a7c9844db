// Package metrics exposes Prometheus instrumentation for the service. All
// Recorder methods are nil-safe so instrumentation stays optional throughout
// the codebase.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "building_agents"

// Turn outcomes recorded on the turns counter.
const (
	OutcomeCompleted = "completed"
	OutcomeBlocked   = "blocked"
	OutcomeFailed    = "failed"
	OutcomeWarmup    = "warmup"
)

// Recorder holds the service's Prometheus collectors.
type Recorder struct {
	turnsTotal          *prometheus.CounterVec
	turnDuration        *prometheus.HistogramVec
	guardrailTrips      *prometheus.CounterVec
	guardrailCacheHits  *prometheus.CounterVec
	guardrailCacheMiss  *prometheus.CounterVec
	storeEvictions      *prometheus.CounterVec
	activeConversations prometheus.Gauge
}

// NewRecorder registers the service collectors with reg and returns the
// recorder. Pass prometheus.DefaultRegisterer for the process-wide registry.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	factory := promauto.With(reg)
	return &Recorder{
		turnsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turns_total",
			Help:      "Chat turns processed, by responding agent and outcome.",
		}, []string{"agent", "outcome"}),
		turnDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "turn_duration_seconds",
			Help:      "End-to-end turn latency.",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		}, []string{"outcome"}),
		guardrailTrips: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "guardrail_trips_total",
			Help:      "Inputs blocked, by guardrail.",
		}, []string{"guardrail"}),
		guardrailCacheHits: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "guardrail_cache_hits_total",
			Help:      "Guardrail verdicts served from cache.",
		}, []string{"guardrail"}),
		guardrailCacheMiss: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "guardrail_cache_misses_total",
			Help:      "Guardrail verdicts requiring classification.",
		}, []string{"guardrail"}),
		storeEvictions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "conversation_evictions_total",
			Help:      "Conversations evicted from the store, by reason.",
		}, []string{"reason"}),
		activeConversations: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_conversations",
			Help:      "Conversations currently held in the store.",
		}),
	}
}

// ObserveTurn records one processed turn.
func (r *Recorder) ObserveTurn(agent, outcome string, duration time.Duration) {
	if r == nil {
		return
	}
	r.turnsTotal.WithLabelValues(agent, outcome).Inc()
	r.turnDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}

// GuardrailTripped counts a blocked input.
func (r *Recorder) GuardrailTripped(guardrail string) {
	if r == nil {
		return
	}
	r.guardrailTrips.WithLabelValues(guardrail).Inc()
}

// GuardrailCacheHit counts a cached verdict reuse.
func (r *Recorder) GuardrailCacheHit(guardrail string) {
	if r == nil {
		return
	}
	r.guardrailCacheHits.WithLabelValues(guardrail).Inc()
}

// GuardrailCacheMiss counts a verdict classification.
func (r *Recorder) GuardrailCacheMiss(guardrail string) {
	if r == nil {
		return
	}
	r.guardrailCacheMiss.WithLabelValues(guardrail).Inc()
}

// ConversationEvicted counts a store eviction.
func (r *Recorder) ConversationEvicted(reason string) {
	if r == nil {
		return
	}
	r.storeEvictions.WithLabelValues(reason).Inc()
}

// SetActiveConversations reflects the store's current size.
func (r *Recorder) SetActiveConversations(n int) {
	if r == nil {
		return
	}
	r.activeConversations.Set(float64(n))
}
