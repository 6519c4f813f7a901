package npc

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestNewMetrics_SharedRegistryReusesCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	first := NewMetrics(reg)
	second := NewMetrics(reg)

	second.died()
	second.damaged(15)
	second.setAgents(3)

	assert.Equal(t, 1.0, testutil.ToFloat64(first.deaths), "второй менеджер пишет в уже зарегистрированный счётчик")
	assert.Equal(t, 15.0, testutil.ToFloat64(first.damage))
	assert.Equal(t, 3.0, testutil.ToFloat64(first.agents))
}

func TestMetrics_NilIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.died()
		m.rollback()
		m.tick(0.01)
	})
}
