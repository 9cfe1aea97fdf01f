// Package metrics exposes decision counters for both enforcement layers.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	decisions      *prometheus.CounterVec
	decodeFailures *prometheus.CounterVec
}

// New registers the collectors on reg. A nil reg leaves them unregistered,
// which is what tests usually want.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cmsgate",
			Name:      "decisions_total",
			Help:      "Authorization decisions by enforcement layer and reason.",
		}, []string{"layer", "reason"}),
		decodeFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cmsgate",
			Name:      "decode_failures_total",
			Help:      "Session tokens rejected by the codec, by failure kind.",
		}, []string{"kind"}),
	}
	if reg != nil {
		reg.MustRegister(m.decisions, m.decodeFailures)
	}
	return m
}

func (m *Metrics) Decision(layer, reason string) {
	if m == nil {
		return
	}
	m.decisions.WithLabelValues(layer, reason).Inc()
}

func (m *Metrics) DecodeFailure(kind string) {
	if m == nil {
		return
	}
	m.decodeFailures.WithLabelValues(kind).Inc()
}
