package metrics

import (
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPipelineMetrics(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	m, err := NewPipelineMetrics(reg)
	require.NoError(t, err)

	m.RecordOperation(OpResolve, StatusSuccess)
	m.RecordOperation(OpResolve, StatusSuccess)
	m.RecordOperation(OpResolve, StatusError)
	m.RecordError(OpResolve, "not-found")
	m.RecordDuration(OpResolve, 0.002)
	m.RecordCacheLookup(CacheShard, true)
	m.RecordCacheLookup(CacheShard, false)
	m.RecordCacheLookup(CacheShard, false)
	m.RecordExposures(3, 5)
	m.RecordExposures(1, 0)
	m.RecordGridPoints(25)

	assert.InDelta(t, 2, testutil.ToFloat64(m.operationsTotal.WithLabelValues(OpResolve, StatusSuccess)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.operationsTotal.WithLabelValues(OpResolve, StatusError)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.errorsTotal.WithLabelValues(OpResolve, "not-found")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.cacheLookupsTotal.WithLabelValues(CacheShard, "hit")), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(m.cacheLookupsTotal.WithLabelValues(CacheShard, "miss")), 0)
	assert.InDelta(t, 4, testutil.ToFloat64(m.exposuresTotal.WithLabelValues(KindBackground)), 0)
	assert.InDelta(t, 5, testutil.ToFloat64(m.exposuresTotal.WithLabelValues(KindDetection)), 0)

	expected := `
# HELP campari_exposures_total Total number of exposures selected for processing
# TYPE campari_exposures_total counter
campari_exposures_total{kind="background"} 4
campari_exposures_total{kind="detection"} 5
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "campari_exposures_total"))

	count, err := testutil.GatherAndCount(reg, "campari_operation_duration_seconds", "campari_grid_points")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestPipelineMetricsInFlight(t *testing.T) {
	t.Parallel()

	m, err := NewPipelineMetrics(prometheus.NewRegistry())
	require.NoError(t, err)

	var wg sync.WaitGroup
	for range 20 {
		wg.Go(func() {
			m.SourceStarted()
			m.SourceFinished()
		})
	}
	wg.Wait()
	m.SourceStarted()
	assert.InDelta(t, 1, testutil.ToFloat64(m.sourcesInFlight), 0)
}

func TestPipelineMetricsDoubleRegistration(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	_, err := NewPipelineMetrics(reg)
	require.NoError(t, err)
	_, err = NewPipelineMetrics(reg)
	assert.Error(t, err)
}

func TestTestRecorder(t *testing.T) {
	t.Parallel()

	r := NewTestRecorder()
	assert.False(t, r.HasRecordedMetrics())

	r.RecordOperation(OpGrid, StatusSuccess)
	r.RecordOperation(OpGrid, StatusSuccess)
	r.RecordError(OpStamps, "validation")
	r.RecordDuration(OpGrid, 0.5)
	r.RecordCacheLookup(CacheShard, true)
	r.RecordExposures(2, 3)
	r.RecordGridPoints(9)
	r.SourceStarted()
	r.SourceStarted()
	r.SourceFinished()

	assert.True(t, r.HasRecordedMetrics())
	assert.Equal(t, 2, r.GetOperationCount(OpGrid, StatusSuccess))
	assert.Equal(t, 0, r.GetOperationCount(OpGrid, StatusError))
	assert.Equal(t, 1, r.GetErrorCount(OpStamps, "validation"))
	assert.Equal(t, []float64{0.5}, r.GetDurations(OpGrid))
	assert.Nil(t, r.GetDurations(OpWrite))
	assert.Equal(t, map[string]map[string]int{OpStamps: {"validation": 1}}, r.GetAllErrors())

	hits, misses := r.CacheLookups()
	assert.Equal(t, 1, hits)
	assert.Equal(t, 0, misses)
	bg, det := r.Exposures()
	assert.Equal(t, 2, bg)
	assert.Equal(t, 3, det)
	assert.Equal(t, []int{9}, r.GridSizes())
	cur, peak := r.InFlight()
	assert.Equal(t, 1, cur)
	assert.Equal(t, 2, peak)
}
