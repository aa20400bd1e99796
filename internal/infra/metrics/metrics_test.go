package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordersCount(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.Hit("consumption")
	m.Hit("consumption")
	m.Miss("totals")
	m.Evicted()
	m.Swept(3)
	m.SourceFailed("registrations")
	m.ObserveFetch("registrations", 20*time.Millisecond)
	m.ObserveRequest("/api/items", 200, time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.cacheHits.WithLabelValues("consumption")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.cacheMisses.WithLabelValues("totals")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.cacheEvictions))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.cacheSwept))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.sourceFailures.WithLabelValues("registrations")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpRequests.WithLabelValues("/api/items", "200")))

	n, err := testutil.GatherAndCount(reg, "supplycover_source_fetch_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestNewPanicsOnDoubleRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	New(reg)
	assert.Panics(t, func() { New(reg) })
}
