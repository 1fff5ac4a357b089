// Package metrics provides constants used across metric definitions.
package metrics

import "time"

// Operation label values for the pipeline stages.
const (
	// OpResolve is the catalog lookup of a source.
	OpResolve = "resolve"
	// OpFindExposures is the exposure index query.
	OpFindExposures = "find_exposures"
	// OpStamps is image acquisition from an image source.
	OpStamps = "stamps"
	// OpGrid is scene grid construction.
	OpGrid = "grid"
	// OpEstimate is forced flux estimation over all stamps.
	OpEstimate = "estimate"
	// OpWrite is light-curve persistence.
	OpWrite = "write"
	// OpRecord is the artifact registry update.
	OpRecord = "record"
	// OpSource is one complete pipeline run for a source.
	OpSource = "source"
	// OpIngest is a catalog ingestion.
	OpIngest = "ingest"
)

// Status label values.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Cache label values.
const (
	CacheShard = "shard"
)

// Exposure kinds.
const (
	KindBackground = "background"
	KindDetection  = "detection"
)

// Histogram bucket configuration constants.
const (
	// BucketStart1ms is the starting bucket for 1ms histograms (1ms to ~16s range).
	BucketStart1ms = 0.001
	// BucketStart1 is the starting bucket for count histograms.
	BucketStart1 = 1.0

	// BucketFactor2 is the common exponential growth factor of 2 for histogram buckets.
	BucketFactor2 = 2

	// BucketCount10 defines 10 exponential buckets.
	BucketCount10 = 10
	// BucketCount15 defines 15 exponential buckets.
	BucketCount15 = 15
)

const (
	// ShutdownTimeout is the timeout for graceful shutdown operations.
	ShutdownTimeout = 5 * time.Second
)
