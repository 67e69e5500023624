package core

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.observeOutcome(OutcomeProcessed, time.Now())
		m.observeAward(3)
		m.publishFailed()
	})
}

func TestMetrics_OutcomesPreinitialized(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	assert.Equal(t, 6, testutil.CollectAndCount(m.transactions))

	m.observeOutcome(OutcomeLockContended, time.Now())
	m.observeOutcome(OutcomeLockContended, time.Now())
	assert.Equal(t, 2.0, testutil.ToFloat64(m.transactions.WithLabelValues(OutcomeLockContended)))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.transactions.WithLabelValues(OutcomeProcessed)))
	assert.Equal(t, 1, testutil.CollectAndCount(m.processingSeconds))
}

func TestMetrics_Award(t *testing.T) {
	m := NewMetrics(nil)
	m.observeAward(4)
	m.observeAward(0)
	assert.Equal(t, 4.0, testutil.ToFloat64(m.awarded))
	m.publishFailed()
	assert.Equal(t, 1.0, testutil.ToFloat64(m.publishErrors))
}

func TestNewMetrics_DoubleRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	require.NotPanics(t, func() { NewMetrics(reg) })
	assert.Panics(t, func() { NewMetrics(reg) })
}
