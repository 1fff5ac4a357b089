package exposure

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/romanasp/campari/internal/catalog"
	"github.com/romanasp/campari/internal/errors"
	"github.com/romanasp/campari/internal/survey"
	"github.com/romanasp/campari/internal/wcs"
)

const (
	testRA  = 7.731890048839705
	testDec = -44.4589649005717
)

func tile(pointing, detector int, mjd float64) survey.Exposure {
	h := wcs.NewHeader(testRA, testDec, survey.PixelScale, 0, survey.DetectorSize, survey.DetectorSize)
	return survey.Exposure{
		Pointing:  pointing,
		Detector:  detector,
		Band:      survey.Y106,
		MJD:       mjd,
		Footprint: survey.FootprintFromHeader(h),
	}
}

// newReference lays out one exposure per day from 62600 to 62999 plus a
// far-away tile that must never match.
func newReference(t *testing.T) *catalog.ReferenceData {
	t.Helper()
	var exps []survey.Exposure
	for i := range 400 {
		exps = append(exps, tile(10000+i, 1+i%18, 62600+float64(i)))
	}
	far := tile(1, 1, 62700)
	far.Footprint = survey.FootprintFromHeader(wcs.NewHeader(200, 10, survey.PixelScale, 0, 100, 100))
	exps = append(exps, far)

	ref, err := catalog.NewReferenceData(nil, exps, 0)
	require.NoError(t, err)
	return ref
}

func baseQuery() Query {
	return Query{
		SourceID: 50134575,
		RA:       testRA,
		Dec:      testDec,
		Start:    62654,
		End:      62958,
		Peak:     62683.98,
		Band:     survey.Y106,
	}
}

func TestFindExposuresUncapped(t *testing.T) {
	t.Parallel()
	ref := newReference(t)

	list, err := FindExposures(ref, baseQuery())
	require.NoError(t, err)

	// 62654..62958 inclusive is 305 days.
	assert.Len(t, list.Detection, 305)
	assert.Len(t, list.Background, 95)
	assert.Equal(t, 62654.0, list.Detection[0].MJD)
	assert.Equal(t, 62958.0, list.Detection[len(list.Detection)-1].MJD)

	for _, e := range list.Detection {
		assert.True(t, e.Detected)
	}
	for _, e := range list.Background {
		assert.False(t, e.Detected)
	}
}

func TestFindExposuresCaps(t *testing.T) {
	t.Parallel()
	ref := newReference(t)

	q := baseQuery()
	q.MaxBackground = 24
	q.MaxDetection = 24
	list, err := FindExposures(ref, q)
	require.NoError(t, err)

	require.Len(t, list.Detection, 24)
	require.Len(t, list.Background, 24)
	assert.IsIncreasing(t, mjds(list.Detection))
	assert.IsIncreasing(t, mjds(list.Background))

	// The 24 days closest to 62683.98.
	assert.Equal(t, 62672.0, list.Detection[0].MJD)
	assert.Equal(t, 62695.0, list.Detection[23].MJD)

	// Background keeps the first and last epochs.
	assert.Equal(t, 62600.0, list.Background[0].MJD)
	assert.Equal(t, 62999.0, list.Background[23].MJD)

	seen := map[survey.Key]bool{}
	for _, e := range list.All() {
		assert.False(t, seen[e.Key()], "duplicate %v", e.Key())
		seen[e.Key()] = true
	}
}

func TestFindExposuresFilters(t *testing.T) {
	t.Parallel()
	ref := newReference(t)

	q := baseQuery()
	q.Pointings = []int{10000, 10100, 10101, 1}
	list, err := FindExposures(ref, q)
	require.NoError(t, err)
	assert.Len(t, list.Background, 1)
	assert.Len(t, list.Detection, 2)

	q.Detectors = []int{3}
	_, err = FindExposures(ref, q)
	assert.ErrorIs(t, err, errors.ErrEmptyExposureList)
}

func TestFindExposuresWindowBounds(t *testing.T) {
	t.Parallel()
	ref := newReference(t)

	q := baseQuery()
	q.Start, q.End, q.Peak = 62700, 62700, 62700
	list, err := FindExposures(ref, q)
	require.NoError(t, err)
	require.Len(t, list.Detection, 1)
	assert.Equal(t, 62700.0, list.Detection[0].MJD)
	assert.Len(t, list.Background, 399)
}

func TestFindExposuresEmpty(t *testing.T) {
	t.Parallel()
	ref := newReference(t)

	q := baseQuery()
	q.Start, q.End = 50000, 70000
	_, err := FindExposures(ref, q)
	assert.ErrorIs(t, err, errors.ErrEmptyExposureList)

	q = baseQuery()
	q.RA = 100
	_, err = FindExposures(ref, q)
	assert.ErrorIs(t, err, errors.ErrEmptyExposureList)

	q = baseQuery()
	q.Band = survey.F184
	_, err = FindExposures(ref, q)
	assert.ErrorIs(t, err, errors.ErrEmptyExposureList)
}

func TestFindExposuresStampMargin(t *testing.T) {
	t.Parallel()
	ref := newReference(t)

	// 10.5 pixels from the detector edge: an 11 pixel stamp fits, a 41 pixel one does not.
	w := wcs.MustNew(wcs.BackendTangentPlane, wcs.NewHeader(testRA, testDec, survey.PixelScale, 0, survey.DetectorSize, survey.DetectorSize))
	ra, dec, err := w.PixelToWorld(survey.DetectorSize-1-10, float64(survey.DetectorSize)/2)
	require.NoError(t, err)

	q := baseQuery()
	q.RA, q.Dec = ra, dec
	q.StampSize = 11
	_, err = FindExposures(ref, q)
	require.NoError(t, err)

	q.StampSize = 41
	_, err = FindExposures(ref, q)
	assert.ErrorIs(t, err, errors.ErrEmptyExposureList)
}

func TestFindExposuresTruth(t *testing.T) {
	t.Parallel()
	ref := newReference(t)

	q := baseQuery()
	q.MaxBackground, q.MaxDetection = 3, 3
	model := SimpleModel{PeakFlux: 1000, Rise: 5, Fall: 30, Start: q.Start, End: q.End, Peak: q.Peak}
	q.Truth = model

	list, err := FindExposures(ref, q)
	require.NoError(t, err)
	for _, e := range list.Background {
		assert.Zero(t, e.TrueFlux)
	}
	for _, e := range list.Detection {
		assert.InDelta(t, model.At(e.MJD), e.TrueFlux, 1e-12)
		assert.Positive(t, e.TrueFlux)
	}
}

func TestFindExposuresStatic(t *testing.T) {
	t.Parallel()
	ref := newReference(t)

	src := survey.Source{ID: 40973149150, RA: testRA, Dec: testDec, Class: survey.ClassStatic}
	q := QueryFor(src, survey.Y106, 1, 1)
	q.Truth = NewSimpleModel(src, 800, 0, 0)
	require.True(t, q.Static)

	list, err := FindExposures(ref, q)
	require.NoError(t, err)
	assert.Equal(t, []float64{62600}, mjds(list.Background))
	assert.Equal(t, []float64{62601}, mjds(list.Detection))
	assert.False(t, list.Background[0].Detected)
	assert.True(t, list.Detection[0].Detected)
	for _, e := range list.All() {
		assert.InDelta(t, 800, e.TrueFlux, 0)
	}

	// Uncapped, the earlier half is background.
	list, err = FindExposures(ref, QueryFor(src, survey.Y106, 0, 0))
	require.NoError(t, err)
	assert.Len(t, list.Background, 200)
	assert.Len(t, list.Detection, 200)
	assert.Equal(t, 62799.0, list.Background[199].MJD)
	assert.Equal(t, 62800.0, list.Detection[0].MJD)

	// A background cap larger than the list still leaves one epoch to measure.
	q = QueryFor(src, survey.Y106, 50, 0)
	q.Pointings = []int{10000, 10001, 10002}
	list, err = FindExposures(ref, q)
	require.NoError(t, err)
	assert.Len(t, list.Background, 2)
	assert.Len(t, list.Detection, 1)

	// One epoch cannot serve both roles.
	q.Pointings = []int{10000}
	_, err = FindExposures(ref, q)
	assert.ErrorIs(t, err, errors.ErrEmptyExposureList)
}

func TestInvalidQuery(t *testing.T) {
	t.Parallel()
	ref := newReference(t)

	q := baseQuery()
	q.Start, q.End = 10, 5
	_, err := FindExposures(ref, q)
	assert.True(t, errors.IsCategory(err, errors.CategoryValidation))

	q = baseQuery()
	q.Band = "V"
	_, err = FindExposures(ref, q)
	assert.True(t, errors.IsCategory(err, errors.CategoryValidation))
}

func TestSpread(t *testing.T) {
	t.Parallel()

	var exps []survey.Exposure
	for i := range 10 {
		exps = append(exps, survey.Exposure{Pointing: i, MJD: float64(i)})
	}
	tests := []struct {
		n    int
		want []float64
	}{
		{0, []float64{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}},
		{1, []float64{0}},
		{2, []float64{0, 9}},
		{4, []float64{0, 3, 6, 9}},
		{5, []float64{0, 2, 5, 7, 9}},
		{20, []float64{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, mjds(spread(exps, tt.n)), "n=%d", tt.n)
	}
}

func TestSimpleModel(t *testing.T) {
	t.Parallel()

	m := NewSimpleModel(survey.Source{Start: 0, End: 100, Peak: 20}, 500, 0, 0)
	assert.InDelta(t, 500, m.At(20), 1e-9)
	assert.Zero(t, m.At(-1))
	assert.Zero(t, m.At(100.5))
	assert.Less(t, m.At(90), m.At(40))
	assert.Less(t, m.At(5), m.At(20))

	static := NewSimpleModel(survey.Source{Class: survey.ClassStatic}, 500, 0, 0)
	assert.InDelta(t, 500, static.At(-1e4), 0)
	assert.InDelta(t, 500, static.At(62000), 0)
}

func mjds(exps []survey.Exposure) []float64 {
	out := make([]float64, len(exps))
	for i, e := range exps {
		out[i] = e.MJD
	}
	return out
}
