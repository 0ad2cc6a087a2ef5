package observe

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshot(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "fmq_test_total"}, []string{"format"})
	other := prometheus.NewCounter(prometheus.CounterOpts{Name: "other_total"})
	reg.MustRegister(c, other)

	c.WithLabelValues("proto").Add(2)
	c.WithLabelValues("json").Inc()
	c.WithLabelValues("qt")
	other.Inc()

	got, err := snapshot(reg)
	require.NoError(t, err)
	assert.Equal(t, []Sample{
		{Name: "fmq_test_total", Labels: "format=json", Value: 1},
		{Name: "fmq_test_total", Labels: "format=proto", Value: 2},
	}, got)
}

func TestSnapshot_Default(t *testing.T) {
	IncConversion("json", "qt")
	got, err := Snapshot()
	require.NoError(t, err)
	assert.Contains(t, got, Sample{Name: "fmq_conversions_total", Labels: "from=json,to=qt", Value: 1})
}
