package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestAuth_Observe(t *testing.T) {
	reg := prometheus.NewRegistry()
	a := NewAuth(reg)

	a.Observe("login", "ok")
	a.Observe("login", "ok")
	a.Observe("login", "InvalidCredentials")

	assert.Equal(t, 2.0, testutil.ToFloat64(a.outcomes.WithLabelValues("login", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(a.outcomes.WithLabelValues("login", "InvalidCredentials")))
}

func TestAuth_NilIsNoop(t *testing.T) {
	var a *Auth
	assert.NotPanics(t, func() { a.Observe("register", "ok") })
}
