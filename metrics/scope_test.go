package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPromScopeIncRegistersAndCounts(t *testing.T) {
	reg := prometheus.NewRegistry()
	s := NewPromScope(reg, "verify")

	require.NoError(t, s.Inc("rejected", 1))
	require.NoError(t, s.Inc("rejected", 2))

	mfs, err := reg.Gather()
	require.NoError(t, err)
	require.Len(t, mfs, 1)
	assert.Equal(t, float64(3), mfs[0].GetMetric()[0].GetCounter().GetValue())
}

func TestPromScopeNewScopeNestsPrefix(t *testing.T) {
	reg := prometheus.NewRegistry()
	s := NewPromScope(reg, "verify").NewScope("ed25519")

	require.NoError(t, s.Inc("failures", 1))

	mfs, err := reg.Gather()
	require.NoError(t, err)
	require.Len(t, mfs, 1)
	assert.Equal(t, "verify_ed25519_failures", mfs[0].GetName())
}

func TestPromScopeGaugeSetAndDelta(t *testing.T) {
	reg := prometheus.NewRegistry()
	s := NewPromScope(reg, "replay")

	require.NoError(t, s.Gauge("entries", 5))
	require.NoError(t, s.GaugeDelta("entries", -2))

	mfs, err := reg.Gather()
	require.NoError(t, err)
	require.Len(t, mfs, 1)
	assert.Equal(t, float64(3), mfs[0].GetMetric()[0].GetGauge().GetValue())
}

func TestNoopScopeDiscardsEverything(t *testing.T) {
	s := NewNoopScope()
	assert.NoError(t, s.Inc("anything", 1))
	assert.NoError(t, s.Gauge("anything", 1))
	assert.NoError(t, s.Timing("anything", 1))
	assert.IsType(t, noopScope{}, s.NewScope("child"))
}
