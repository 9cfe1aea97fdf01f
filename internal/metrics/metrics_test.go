package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.Decision("edge", "no_session")
	m.Decision("edge", "no_session")
	m.Decision("page", "ok")
	m.DecodeFailure("expired")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.decisions.WithLabelValues("edge", "no_session")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.decisions.WithLabelValues("page", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.decodeFailures.WithLabelValues("expired")))

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.Len(t, families, 2)
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.Decision("edge", "ok")
		m.DecodeFailure("malformed")
	})
}
