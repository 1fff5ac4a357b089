package survey

import (
	"math"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/romanasp/campari/internal/errors"
	"github.com/romanasp/campari/internal/wcs"
)

func TestParseBand(t *testing.T) {
	t.Parallel()

	b, err := ParseBand(" y106")
	require.NoError(t, err)
	assert.Equal(t, Y106, b)
	assert.Equal(t, 15.023547191066587, b.ZeroPoint())
	assert.InDelta(t, 1.0595, b.EffectiveWavelength(), 1e-12)

	_, err = ParseBand("V")
	assert.True(t, errors.IsCategory(err, errors.CategoryValidation))
	assert.True(t, math.IsNaN(Band("V").ZeroPoint()))

	for _, b := range Bands() {
		lo, hi := b.WavelengthRange()
		assert.Less(t, lo, hi, b)
	}
}

func TestFootprintContains(t *testing.T) {
	t.Parallel()

	h := wcs.NewHeader(7.5, -44.0, PixelScale, 0.4, 100, 100)
	f := FootprintFromHeader(h)

	c := f.Center()
	assert.InDelta(t, 0, wcs.Separation(c.RA, c.Dec, 7.5, -44.0)*3600, 1e-6)

	assert.True(t, f.Contains(7.5, -44.0))
	// Footprint half-width is 50 pixels; 80 pixels away is always outside.
	ra, dec := wcs.Deproject(7.5, -44.0, 80*PixelScale/3600, 0)
	assert.False(t, f.Contains(ra, dec))

	// 40 pixels from centre along a detector axis is inside but closer than 20 pixels to an edge.
	w := wcs.MustNew(wcs.BackendTangentPlane, h)
	ra, dec, err := w.PixelToWorld(49.5+40, 49.5)
	require.NoError(t, err)
	assert.True(t, f.Contains(ra, dec))
	assert.False(t, f.ContainsWithMargin(ra, dec, 20*PixelScale/3600))
	assert.True(t, f.ContainsWithMargin(ra, dec, 5*PixelScale/3600))

	assert.False(t, f.Contains(187.5, 44.0))
}

func TestSourceWindowInclusive(t *testing.T) {
	t.Parallel()

	s := Source{Start: 62000, End: 62100}
	assert.True(t, s.InWindow(62000))
	assert.True(t, s.InWindow(62100))
	assert.False(t, s.InWindow(62100.0001))
}

func TestExposureOrdering(t *testing.T) {
	t.Parallel()

	l := ExposureList{
		Background: []Exposure{{Pointing: 3, Detector: 1, MJD: 10}, {Pointing: 1, Detector: 2, MJD: 30}},
		Detection:  []Exposure{{Pointing: 2, Detector: 5, MJD: 20}, {Pointing: 1, Detector: 1, MJD: 20}},
	}
	assert.Equal(t, 4, l.Len())

	var keys []Key
	for _, e := range l.Chronological() {
		keys = append(keys, e.Key())
	}
	assert.Equal(t, []Key{{3, 1}, {1, 1}, {2, 5}, {1, 2}}, keys)
	assert.True(t, slices.IsSortedFunc(l.Chronological(), CompareEpoch))
}

func TestParseObjectClass(t *testing.T) {
	t.Parallel()

	c, err := ParseObjectClass("SN")
	require.NoError(t, err)
	assert.Equal(t, ClassTransient, c)

	c, err = ParseObjectClass("star")
	require.NoError(t, err)
	assert.Equal(t, ClassStatic, c)

	_, err = ParseObjectClass("agn")
	assert.Error(t, err)
}
