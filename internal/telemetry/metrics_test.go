package telemetry

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_ObserveRequest(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.ObserveRequest("optimize", "qwen", "success")
	m.ObserveRequest("optimize", "qwen", "success")
	m.ObserveRequest("refine", "", "empty_feedback")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Requests.WithLabelValues("optimize", "qwen", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Requests.WithLabelValues("refine", "unknown", "empty_feedback")))
}

func TestMetrics_ObserveLatency(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.ObserveLatency("deepseek", 1500*time.Millisecond)

	assert.Equal(t, 1, testutil.CollectAndCount(m.ProviderLatency))
}

func TestNewMetrics_SeparateRegistries(t *testing.T) {
	assert.NotPanics(t, func() {
		NewMetrics(prometheus.NewRegistry())
		NewMetrics(prometheus.NewRegistry())
	})
}
