// Package metrics provides the Prometheus metrics of the campari pipeline.
package metrics

// Recorder defines a minimal interface for recording metrics.
// Components depend on it rather than on concrete collectors.
type Recorder interface {
	// RecordOperation records an operation with its status, e.g. "resolve", "success".
	RecordOperation(operation, status string)

	// RecordDuration records the duration of an operation in seconds.
	RecordDuration(operation string, seconds float64)

	// RecordError records an error occurrence. errorType is the error
	// category, e.g. "not-found" or "out-of-footprint".
	RecordError(operation, errorType string)
}

// CacheRecorder receives cache lookups.
type CacheRecorder interface {
	RecordCacheLookup(cache string, hit bool)
}

// PipelineRecorder is everything a pipeline run reports.
type PipelineRecorder interface {
	Recorder
	CacheRecorder

	RecordExposures(background, detection int)
	RecordGridPoints(n int)
	SourceStarted()
	SourceFinished()
}

// NoopRecorder discards everything.
type NoopRecorder struct{}

func (NoopRecorder) RecordOperation(string, string) {}
func (NoopRecorder) RecordDuration(string, float64) {}
func (NoopRecorder) RecordError(string, string)     {}
func (NoopRecorder) RecordCacheLookup(string, bool) {}
func (NoopRecorder) RecordExposures(int, int)       {}
func (NoopRecorder) RecordGridPoints(int)           {}
func (NoopRecorder) SourceStarted()                 {}
func (NoopRecorder) SourceFinished()                {}

var (
	_ PipelineRecorder = NoopRecorder{}
	_ PipelineRecorder = (*PipelineMetrics)(nil)
)
