package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Indexing pass outcomes reported through Metrics.Passes.
const (
	OutcomeIndexed   = "indexed"
	OutcomeUnchanged = "unchanged"
	OutcomeDeclined  = "declined"
	OutcomeFailed    = "failed"
)

// Metrics holds the prometheus collectors updated by the processor and the
// search engine. A nil *Metrics is valid and records nothing.
type Metrics struct {
	DocumentsEmbedded prometheus.Counter
	ProviderCalls     prometheus.Counter
	ProviderErrors    prometheus.Counter
	Passes            *prometheus.CounterVec
	SearchLatency     prometheus.Histogram
}

// NewMetrics registers the collectors on reg. A nil reg creates collectors
// that are not registered anywhere.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		DocumentsEmbedded: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "bookmark_index",
			Name:      "documents_embedded_total",
			Help:      "Number of bookmark documents embedded.",
		}),
		ProviderCalls: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "bookmark_index",
			Name:      "provider_calls_total",
			Help:      "Number of embedding provider calls.",
		}),
		ProviderErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "bookmark_index",
			Name:      "provider_errors_total",
			Help:      "Number of failed embedding provider calls.",
		}),
		Passes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bookmark_index",
			Name:      "indexing_passes_total",
			Help:      "Indexing passes by outcome.",
		}, []string{"outcome"}),
		SearchLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "bookmark_index",
			Name:      "search_duration_seconds",
			Help:      "Hybrid search latency.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
}

func (m *Metrics) providerCall(err error) {
	if m == nil {
		return
	}
	m.ProviderCalls.Inc()
	if err != nil {
		m.ProviderErrors.Inc()
	}
}

func (m *Metrics) embedded(n int) {
	if m == nil {
		return
	}
	m.DocumentsEmbedded.Add(float64(n))
}

func (m *Metrics) pass(outcome string) {
	if m == nil {
		return
	}
	m.Passes.WithLabelValues(outcome).Inc()
}

func (m *Metrics) observeSearch(seconds float64) {
	if m == nil {
		return
	}
	m.SearchLatency.Observe(seconds)
}
