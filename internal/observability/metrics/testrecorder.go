package metrics

import (
	"maps"
	"sync"
)

// TestRecorder captures everything recorded, for verification in tests.
type TestRecorder struct {
	mu         sync.RWMutex
	operations map[string]map[string]int // operation -> status -> count
	durations  map[string][]float64      // operation -> list of durations
	errors     map[string]map[string]int // operation -> errorType -> count
	cache      map[bool]int
	background int
	detection  int
	grids      []int
	inFlight   int
	maxFlight  int
}

// NewTestRecorder creates a new test recorder instance.
func NewTestRecorder() *TestRecorder {
	return &TestRecorder{
		operations: make(map[string]map[string]int),
		durations:  make(map[string][]float64),
		errors:     make(map[string]map[string]int),
		cache:      make(map[bool]int),
	}
}

func (r *TestRecorder) RecordOperation(operation, status string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.operations[operation] == nil {
		r.operations[operation] = make(map[string]int)
	}
	r.operations[operation][status]++
}

func (r *TestRecorder) RecordDuration(operation string, seconds float64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.durations[operation] = append(r.durations[operation], seconds)
}

func (r *TestRecorder) RecordError(operation, errorType string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.errors[operation] == nil {
		r.errors[operation] = make(map[string]int)
	}
	r.errors[operation][errorType]++
}

func (r *TestRecorder) RecordCacheLookup(_ string, hit bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache[hit]++
}

func (r *TestRecorder) RecordExposures(background, detection int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.background += background
	r.detection += detection
}

func (r *TestRecorder) RecordGridPoints(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.grids = append(r.grids, n)
}

func (r *TestRecorder) SourceStarted() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.inFlight++
	r.maxFlight = max(r.maxFlight, r.inFlight)
}

func (r *TestRecorder) SourceFinished() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.inFlight--
}

// GetOperationCount returns the count of a specific operation and status.
func (r *TestRecorder) GetOperationCount(operation, status string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.operations[operation][status]
}

// GetDurations returns a copy of the durations recorded for operation.
func (r *TestRecorder) GetDurations(operation string) []float64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if d, ok := r.durations[operation]; ok {
		return append([]float64(nil), d...)
	}
	return nil
}

// GetErrorCount returns the count of a specific error type for an operation.
func (r *TestRecorder) GetErrorCount(operation, errorType string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.errors[operation][errorType]
}

// GetAllErrors returns a copy of all recorded errors.
func (r *TestRecorder) GetAllErrors() map[string]map[string]int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make(map[string]map[string]int, len(r.errors))
	for op, m := range r.errors {
		result[op] = maps.Clone(m)
	}
	return result
}

// CacheLookups returns the number of hits and misses.
func (r *TestRecorder) CacheLookups() (hits, misses int) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.cache[true], r.cache[false]
}

// Exposures returns the accumulated exposure counts.
func (r *TestRecorder) Exposures() (background, detection int) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.background, r.detection
}

// GridSizes returns every recorded grid size in order.
func (r *TestRecorder) GridSizes() []int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]int(nil), r.grids...)
}

// InFlight returns the current and the highest number of sources in flight.
func (r *TestRecorder) InFlight() (current, peak int) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.inFlight, r.maxFlight
}

// HasRecordedMetrics returns true if any operation, duration or error was recorded.
func (r *TestRecorder) HasRecordedMetrics() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.operations) > 0 || len(r.durations) > 0 || len(r.errors) > 0
}

var _ PipelineRecorder = (*TestRecorder)(nil)
