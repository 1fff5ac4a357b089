package errors

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFastPathNoTelemetry(t *testing.T) {
	SetTelemetryReporter(nil)

	ee := New(fmt.Errorf("test error")).Build()

	assert.Equal(t, "test error", ee.Error())
	assert.Equal(t, ComponentUnknown, ee.GetComponent())
	assert.Equal(t, CategoryGeneric, ee.Category)
}

func TestSentinelMatching(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		category ErrorCategory
		sentinel error
	}{
		{"not found", CategoryNotFound, ErrNotFound},
		{"out of footprint", CategoryOutOfFootprint, ErrOutOfFootprint},
		{"empty exposures", CategoryEmptyExposureList, ErrEmptyExposureList},
		{"grid", CategoryGridGeneration, ErrGridGeneration},
		{"calibration", CategoryCalibration, ErrCalibration},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := Newf("source %d failed", 42).Category(tt.category).Build()
			wrapped := fmt.Errorf("pipeline: %w", err)

			assert.ErrorIs(t, wrapped, tt.sentinel)
			assert.True(t, IsCategory(wrapped, tt.category))
			assert.Equal(t, tt.category, CategoryOf(wrapped))
		})
	}

	err := Newf("x").Category(CategoryNotFound).Build()
	assert.NotErrorIs(t, err, ErrCalibration)
}

func TestCategoryInheritedFromWrappedError(t *testing.T) {
	t.Parallel()

	inner := Newf("no shard holds source 7").Category(CategoryNotFound).Build()
	outer := New(fmt.Errorf("resolve: %w", inner)).Context("operation", "resolve").Build()

	assert.Equal(t, CategoryNotFound, outer.Category)
	assert.True(t, IsNotFound(outer))
}

func TestContextIsCopied(t *testing.T) {
	t.Parallel()

	ee := Newf("boom").SourceContext(1234, "Y106").Build()
	ctx := ee.GetContext()
	require.NotNil(t, ctx)
	ctx["source_id"] = int64(0)

	assert.Equal(t, int64(1234), ee.GetContext()["source_id"])
	assert.Equal(t, "Y106", ee.GetContext()["band"])
}

func TestScrubMessageForPrivacy(t *testing.T) {
	t.Parallel()

	scrubbed := scrubMessageForPrivacy("fetch https://example.org/cat?token=abc failed for /home/alice/data")
	assert.Contains(t, scrubbed, "https://example.org/cat?[REDACTED]")
	assert.False(t, strings.Contains(scrubbed, "alice"))
}

func TestGenerateErrorTitle(t *testing.T) {
	t.Parallel()

	ee := Newf("no exposures").
		Component("exposure").
		Category(CategoryEmptyExposureList).
		Context("operation", "find_exposures").
		Build()

	assert.Equal(t, "Exposure Empty Exposure List Find Exposures", generateErrorTitle(ee))
}
