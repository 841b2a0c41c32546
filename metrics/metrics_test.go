package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsRegistered(t *testing.T) {
	ExecutionsTotal.WithLabelValues("success", "subprocess").Inc()
	ExecutionDuration.WithLabelValues("subprocess").Observe(0.2)
	ValidationRejectionsTotal.WithLabelValues("EmptyScript").Inc()
	CleanupFailuresTotal.Add(0)

	families, err := prometheus.DefaultGatherer.Gather()
	require.NoError(t, err)

	expected := map[string]bool{
		"scriptbox_executions_total":            false,
		"scriptbox_execution_duration_seconds":  false,
		"scriptbox_validation_rejections_total": false,
		"scriptbox_active_executions":           false,
		"scriptbox_cleanup_failures_total":      false,
	}
	for _, mf := range families {
		if _, ok := expected[mf.GetName()]; ok {
			expected[mf.GetName()] = true
		}
	}
	for name, found := range expected {
		assert.True(t, found, "metric %s not registered", name)
	}
}

func TestActiveExecutionsGauge(t *testing.T) {
	before := gaugeValue(t, ActiveExecutions)
	ActiveExecutions.Inc()
	assert.Equal(t, before+1, gaugeValue(t, ActiveExecutions))
	ActiveExecutions.Dec()
	assert.Equal(t, before, gaugeValue(t, ActiveExecutions))
}

func TestExecutionDurationBuckets(t *testing.T) {
	obs, err := ExecutionDuration.GetMetricWithLabelValues("nsjail")
	require.NoError(t, err)
	obs.Observe(3)

	m := &dto.Metric{}
	require.NoError(t, obs.(prometheus.Metric).Write(m))
	assert.Len(t, m.GetHistogram().GetBucket(), len(ExecutionBuckets))
	assert.GreaterOrEqual(t, m.GetHistogram().GetSampleCount(), uint64(1))
}

func gaugeValue(t *testing.T, g prometheus.Gauge) float64 {
	t.Helper()
	m := &dto.Metric{}
	require.NoError(t, g.Write(m))
	return m.GetGauge().GetValue()
}
