package serving_agent

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.observeRequest("200", 0.01)
	m.observeRequest("200", 0.02)
	m.observeRequest("422", 0.001)
	m.observeLabel("delays")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.requestsTotal.WithLabelValues("200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requestsTotal.WithLabelValues("422")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.predictedLabels.WithLabelValues("delays")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.predictedLabels.WithLabelValues("compliance")))
}
