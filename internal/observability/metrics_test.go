package observability

import (
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/romanasp/campari/internal/conf"
	"github.com/romanasp/campari/internal/observability/metrics"
)

func TestNewMetricsConcurrency(t *testing.T) {
	t.Parallel()

	const numGoroutines = 20
	var wg sync.WaitGroup
	for range numGoroutines {
		wg.Go(func() {
			m, err := NewMetrics()
			if !assert.NoError(t, err) {
				return
			}
			assert.NotNil(t, m.Registry())
			assert.NotNil(t, m.Pipeline)
		})
	}
	wg.Wait()
}

func TestMetricsHandler(t *testing.T) {
	t.Parallel()

	m, err := NewMetrics()
	require.NoError(t, err)
	m.Pipeline.RecordOperation(metrics.OpResolve, metrics.StatusSuccess)
	m.Pipeline.RecordExposures(3, 7)

	mux := http.NewServeMux()
	m.RegisterHandlers(mux)
	srv := httptest.NewServer(mux)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	text := string(body)
	assert.Contains(t, text, `campari_operations_total{operation="resolve",status="success"} 1`)
	assert.Contains(t, text, `campari_exposures_total{kind="detection"} 7`)
	assert.Contains(t, text, "go_goroutines")
}

func TestRegistryGather(t *testing.T) {
	t.Parallel()

	m, err := NewMetrics()
	require.NoError(t, err)
	m.Pipeline.RecordGridPoints(9)
	m.Pipeline.RecordGridPoints(121)
	m.Pipeline.SourceStarted()

	families, err := m.Registry().Gather()
	require.NoError(t, err)
	byName := make(map[string]*dto.MetricFamily, len(families))
	for _, f := range families {
		byName[f.GetName()] = f
	}

	grid := byName["campari_grid_points"]
	require.NotNil(t, grid)
	assert.Equal(t, dto.MetricType_HISTOGRAM, grid.GetType())
	require.Len(t, grid.GetMetric(), 1)
	h := grid.GetMetric()[0].GetHistogram()
	assert.Equal(t, uint64(2), h.GetSampleCount())
	assert.InDelta(t, 130.0, h.GetSampleSum(), 1e-9)

	inFlight := byName["campari_sources_in_flight"]
	require.NotNil(t, inFlight)
	assert.InDelta(t, 1.0, inFlight.GetMetric()[0].GetGauge().GetValue(), 0)
	assert.Contains(t, byName, "go_goroutines")
}

func TestNewEndpointRequiresPrometheus(t *testing.T) {
	t.Parallel()

	m, err := NewMetrics()
	require.NoError(t, err)

	settings := &conf.Settings{}
	_, err = NewEndpoint(settings, m)
	require.Error(t, err)

	settings.Telemetry.Prometheus.Enabled = true
	settings.Telemetry.Prometheus.Listen = "127.0.0.1:0"
	e, err := NewEndpoint(settings, m)
	require.NoError(t, err)
	assert.Same(t, m, e.GetMetrics())
}

func TestEndpointStartStop(t *testing.T) {
	t.Parallel()

	m, err := NewMetrics()
	require.NoError(t, err)
	settings := &conf.Settings{}
	settings.Telemetry.Prometheus.Enabled = true
	settings.Telemetry.Prometheus.Listen = "127.0.0.1:0"
	e, err := NewEndpoint(settings, m)
	require.NoError(t, err)

	var wg sync.WaitGroup
	quit := make(chan struct{})
	e.Start(&wg, quit)
	close(quit)
	wg.Wait()
}
