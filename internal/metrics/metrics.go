// Package metrics exposes Prometheus counters for the auth flows.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Auth counts auth operations by outcome.  A nil *Auth is valid and records
// nothing.
type Auth struct {
	outcomes *prometheus.CounterVec
}

// NewAuth registers the auth counters on reg.
func NewAuth(reg prometheus.Registerer) *Auth {
	a := &Auth{
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chat_auth",
			Name:      "operations_total",
			Help:      "Auth operations by operation and outcome.",
		}, []string{"op", "outcome"}),
	}
	reg.MustRegister(a.outcomes)
	return a
}

// Observe records one operation.  outcome is "ok" or an error kind name.
func (a *Auth) Observe(op, outcome string) {
	if a == nil {
		return
	}
	a.outcomes.WithLabelValues(op, outcome).Inc()
}
