package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// PipelineMetrics contains Prometheus metrics for light-curve production.
type PipelineMetrics struct {
	registry *prometheus.Registry

	operationsTotal *prometheus.CounterVec
	errorsTotal     *prometheus.CounterVec
	durationSeconds *prometheus.HistogramVec

	cacheLookupsTotal *prometheus.CounterVec

	exposuresTotal  *prometheus.CounterVec
	gridPoints      prometheus.Histogram
	sourcesInFlight prometheus.Gauge
}

// NewPipelineMetrics creates and registers new pipeline metrics
func NewPipelineMetrics(registry *prometheus.Registry) (*PipelineMetrics, error) {
	m := &PipelineMetrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *PipelineMetrics) initMetrics() {
	m.operationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "campari_operations_total",
			Help: "Total number of pipeline operations",
		},
		[]string{"operation", "status"},
	)

	m.errorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "campari_errors_total",
			Help: "Total number of pipeline errors by category",
		},
		[]string{"operation", "error_type"},
	)

	m.durationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "campari_operation_duration_seconds",
			Help:    "Time taken by pipeline operations",
			Buckets: prometheus.ExponentialBuckets(BucketStart1ms, BucketFactor2, BucketCount15), // 1ms to ~16s
		},
		[]string{"operation"},
	)

	m.cacheLookupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "campari_cache_lookups_total",
			Help: "Total number of cache lookups",
		},
		[]string{"cache", "result"}, // result: hit, miss
	)

	m.exposuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "campari_exposures_total",
			Help: "Total number of exposures selected for processing",
		},
		[]string{"kind"},
	)

	m.gridPoints = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "campari_grid_points",
		Help:    "Number of points in each scene grid",
		Buckets: prometheus.ExponentialBuckets(BucketStart1, BucketFactor2, BucketCount10),
	})

	m.sourcesInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "campari_sources_in_flight",
		Help: "Number of sources currently being processed",
	})
}

// Describe implements the Collector interface
func (m *PipelineMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.operationsTotal.Describe(ch)
	m.errorsTotal.Describe(ch)
	m.durationSeconds.Describe(ch)
	m.cacheLookupsTotal.Describe(ch)
	m.exposuresTotal.Describe(ch)
	m.gridPoints.Describe(ch)
	m.sourcesInFlight.Describe(ch)
}

// Collect implements the Collector interface
func (m *PipelineMetrics) Collect(ch chan<- prometheus.Metric) {
	m.operationsTotal.Collect(ch)
	m.errorsTotal.Collect(ch)
	m.durationSeconds.Collect(ch)
	m.cacheLookupsTotal.Collect(ch)
	m.exposuresTotal.Collect(ch)
	m.gridPoints.Collect(ch)
	m.sourcesInFlight.Collect(ch)
}

func (m *PipelineMetrics) RecordOperation(operation, status string) {
	m.operationsTotal.WithLabelValues(operation, status).Inc()
}

func (m *PipelineMetrics) RecordDuration(operation string, seconds float64) {
	m.durationSeconds.WithLabelValues(operation).Observe(seconds)
}

func (m *PipelineMetrics) RecordError(operation, errorType string) {
	m.errorsTotal.WithLabelValues(operation, errorType).Inc()
}

// RecordCacheLookup counts a hit or a miss on the named cache.
func (m *PipelineMetrics) RecordCacheLookup(cache string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookupsTotal.WithLabelValues(cache, result).Inc()
}

// RecordExposures counts the exposures selected for one source.
func (m *PipelineMetrics) RecordExposures(background, detection int) {
	m.exposuresTotal.WithLabelValues(KindBackground).Add(float64(background))
	m.exposuresTotal.WithLabelValues(KindDetection).Add(float64(detection))
}

func (m *PipelineMetrics) RecordGridPoints(n int) {
	m.gridPoints.Observe(float64(n))
}

func (m *PipelineMetrics) SourceStarted()  { m.sourcesInFlight.Inc() }
func (m *PipelineMetrics) SourceFinished() { m.sourcesInFlight.Dec() }
