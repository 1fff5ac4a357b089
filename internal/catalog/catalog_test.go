package catalog

import (
	"context"
	"math"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/romanasp/campari/internal/errors"
	"github.com/romanasp/campari/internal/observability/metrics"
	"github.com/romanasp/campari/internal/survey"
	"github.com/romanasp/campari/internal/wcs"
)

func exposureAt(pointing, detector int, band survey.Band, mjd, ra, dec float64) survey.Exposure {
	h := wcs.NewHeader(ra, dec, survey.PixelScale, 0, survey.DetectorSize, survey.DetectorSize)
	return survey.Exposure{
		Pointing:  pointing,
		Detector:  detector,
		Band:      band,
		MJD:       mjd,
		Footprint: survey.FootprintFromHeader(h),
	}
}

func TestLocate(t *testing.T) {
	t.Parallel()

	ref, err := NewReferenceData([]ShardIndex{
		{ID: 2, SourceIDs: []int64{4}},
		{ID: 1, SourceIDs: []int64{9, 3, 5}},
	}, nil, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, ref.NumShards())

	tests := []struct {
		id    int64
		shard int
		row   int
	}{
		{3, 1, 0},
		{5, 1, 1},
		{9, 1, 2},
		{4, 2, 0},
	}
	for _, tt := range tests {
		shard, row, err := ref.Locate(tt.id)
		require.NoError(t, err)
		assert.Equal(t, tt.shard, shard, "source %d", tt.id)
		assert.Equal(t, tt.row, row, "source %d", tt.id)
	}

	_, _, err = ref.Locate(7)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrNotFound)
}

func TestNewReferenceDataRejectsDuplicates(t *testing.T) {
	t.Parallel()

	_, err := NewReferenceData([]ShardIndex{{ID: 1, SourceIDs: []int64{1, 2, 1}}}, nil, 0)
	assert.True(t, errors.IsCategory(err, errors.CategoryValidation))

	_, err = NewReferenceData(nil, []survey.Exposure{exposureAt(1, 1, "V", 0, 10, 10)}, 0)
	assert.True(t, errors.IsCategory(err, errors.CategoryValidation))
}

func TestPointingFor(t *testing.T) {
	t.Parallel()

	ref, err := NewReferenceData(nil, []survey.Exposure{
		exposureAt(10, 3, survey.Y106, 62000, 7.5, -44),
		exposureAt(7, 5, survey.Y106, 62010, 7.5, -44),
		exposureAt(7, 2, survey.J129, 62020, 7.5, -44),
	}, 0)
	require.NoError(t, err)

	p, d, err := ref.PointingFor(7.5, -44, survey.Y106)
	require.NoError(t, err)
	assert.Equal(t, 7, p)
	assert.Equal(t, 5, d)

	p, d, err = ref.PointingFor(7.5, -44, survey.J129)
	require.NoError(t, err)
	assert.Equal(t, 7, p)
	assert.Equal(t, 2, d)

	_, _, err = ref.PointingFor(120, 30, survey.Y106)
	assert.ErrorIs(t, err, errors.ErrOutOfFootprint)

	_, _, err = ref.PointingFor(7.5, -44, survey.F184)
	assert.ErrorIs(t, err, errors.ErrOutOfFootprint)
}

func TestCoveringMarginAndOrder(t *testing.T) {
	t.Parallel()

	half := float64(survey.DetectorSize) / 2 * survey.PixelScale / 3600
	ref, err := NewReferenceData(nil, []survey.Exposure{
		exposureAt(3, 1, survey.H158, 62050, 150, 2),
		exposureAt(1, 1, survey.H158, 62010, 150, 2),
		exposureAt(2, 1, survey.H158, 62030, 150+0.9*half, 2),
	}, 0.5)
	require.NoError(t, err)

	got := ref.Covering(150, 2, survey.H158, 0)
	require.Len(t, got, 3)
	assert.Equal(t, []float64{62010, 62030, 62050}, []float64{got[0].MJD, got[1].MJD, got[2].MJD})

	// The shifted tile has the position near its edge; a margin excludes it.
	got = ref.Covering(150, 2, survey.H158, 0.01)
	require.Len(t, got, 2)
	assert.Equal(t, 1, got[0].Pointing)
	assert.Equal(t, 3, got[1].Pointing)
}

func TestCoveringAcrossRAZero(t *testing.T) {
	t.Parallel()

	ref, err := NewReferenceData(nil, []survey.Exposure{
		exposureAt(1, 1, survey.Y106, 62000, 0.01, 0),
		exposureAt(2, 1, survey.Y106, 62000, 359.99, 0),
	}, 0)
	require.NoError(t, err)

	assert.Len(t, ref.Covering(359.99, 0, survey.Y106, 0), 2)
	assert.Len(t, ref.Covering(0.01, 0, survey.Y106, 0), 2)
	assert.Len(t, ref.Covering(0.07, 0, survey.Y106, 0), 1)
}

func TestCoveringNearPole(t *testing.T) {
	t.Parallel()

	ref, err := NewReferenceData(nil, []survey.Exposure{
		exposureAt(1, 1, survey.K213, 62000, 45, 89.99),
	}, 0)
	require.NoError(t, err)

	assert.Len(t, ref.Covering(225, 89.99, survey.K213, 0), 1)
	assert.Empty(t, ref.Covering(225, 89.5, survey.K213, 0))
}

func TestShardFor(t *testing.T) {
	t.Parallel()

	seen := map[int]bool{}
	for dec := -90.0; dec <= 90; dec += 2.5 {
		for ra := -30.0; ra < 390; ra += 7.5 {
			id := ShardFor(ra, dec)
			assert.Positive(t, id)
			seen[id] = true
		}
	}
	assert.Greater(t, len(seen), 100)
	assert.Equal(t, ShardFor(10, 5), ShardFor(370, 5))
}

func TestMemoryStoreResolve(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	store := NewMemoryStore()
	store.AddSources(
		SourceRow{ID: 20172782, RA: 7.551093401915147, Dec: -44.80718106491529, Class: survey.ClassTransient,
			Start: 62450, End: 62881, Peak: 62476.5, HostRA: 7.5511, HostDec: -44.8072},
		SourceRow{ID: 40973149150, RA: 7.5833264, Dec: -44.809659, Class: survey.ClassStatic,
			Start: math.Inf(-1), End: math.Inf(1), HostRA: math.NaN(), HostDec: math.NaN()},
	)
	store.AddExposures(exposureAt(5934, 3, survey.Y106, 62455, 7.55, -44.8))

	ref, err := LoadReferenceData(ctx, store, []survey.Band{survey.Y106}, 0)
	require.NoError(t, err)

	src, err := Resolve(ctx, store, ref, 20172782, survey.Y106)
	require.NoError(t, err)
	assert.Equal(t, survey.ClassTransient, src.Class)
	assert.Equal(t, 62476.5, src.Peak)
	require.NotNil(t, src.Host)
	assert.Equal(t, 7.5511, src.Host.RA)

	star, err := Resolve(ctx, store, ref, 40973149150, survey.Y106)
	require.NoError(t, err)
	assert.Nil(t, star.Host)
	assert.True(t, star.InWindow(62455))

	p, d, err := ref.PointingFor(src.RA, src.Dec, survey.Y106)
	require.NoError(t, err)
	assert.Equal(t, survey.Key{Pointing: 5934, Detector: 3}, survey.Key{Pointing: p, Detector: d})

	_, err = Resolve(ctx, store, ref, 1, survey.Y106)
	assert.ErrorIs(t, err, errors.ErrNotFound)
}

func TestSQLStoreRoundTrip(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	store, err := OpenSQLStore(filepath.Join(t.TempDir(), "db", "catalog.db"), SQLOptions{CacheTTL: time.Minute})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	rec := metrics.NewTestRecorder()
	store.SetRecorder(rec)

	rows := []SourceRow{
		{ID: 30, RA: 7.55, Dec: -44.8, Class: survey.ClassTransient, Start: 1, End: 2, Peak: 1.5, HostRA: math.NaN(), HostDec: math.NaN()},
		{ID: 10, RA: 7.56, Dec: -44.8, Class: survey.ClassTransient, Start: 1, End: 3, Peak: 2, HostRA: 7.57, HostDec: -44.81},
		{ID: 20, RA: 200, Dec: 30, Class: survey.ClassStatic, Start: 0, End: 0, HostRA: math.NaN(), HostDec: math.NaN()},
	}
	require.NoError(t, store.PutSources(ctx, rows))
	exposure := exposureAt(662, 11, survey.F184, 62000.25, 7.55, -44.8)
	exposure.Detected = true
	exposure.TrueFlux = 1000
	require.NoError(t, store.PutExposures(ctx, []survey.Exposure{exposure}))
	// Re-ingesting the same tile updates it in place.
	require.NoError(t, store.PutExposures(ctx, []survey.Exposure{exposure}))

	n, m, err := store.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.Equal(t, int64(1), m)

	ref, err := LoadReferenceData(ctx, store, nil, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, ref.NumShards())

	shard, row, err := ref.Locate(30)
	require.NoError(t, err)
	assert.Equal(t, ShardFor(7.55, -44.8), shard)
	assert.Equal(t, 1, row)

	src, err := Resolve(ctx, store, ref, 10, survey.F184)
	require.NoError(t, err)
	require.NotNil(t, src.Host)
	assert.Equal(t, -44.81, src.Host.Dec)

	src, err = Resolve(ctx, store, ref, 30, survey.F184)
	require.NoError(t, err)
	assert.Nil(t, src.Host)

	tiles, err := store.TileFootprints(ctx, survey.F184)
	require.NoError(t, err)
	require.Len(t, tiles, 1)
	assert.True(t, tiles[0].Detected)
	assert.Equal(t, exposure.Footprint, tiles[0].Footprint)

	_, err = store.ReadShard(ctx, 9999)
	assert.ErrorIs(t, err, errors.ErrNotFound)

	// Both sources share a shard; the second resolve is served from the cache.
	hits, misses := rec.CacheLookups()
	assert.Equal(t, 1, hits)
	assert.Equal(t, 2, misses)
}

func TestSelectSourceIDs(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	store, err := OpenSQLStore(filepath.Join(t.TempDir(), "catalog.db"), SQLOptions{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	row := func(id int64, shard int, class survey.ObjectClass, mag float64) SourceRow {
		return SourceRow{ID: id, ShardID: shard, RA: 7.55, Dec: -44.8, Class: class,
			Start: 1, End: 2, Peak: 1.5, HostRA: math.NaN(), HostDec: math.NaN(), PeakMag: mag}
	}
	require.NoError(t, store.PutSources(ctx, []SourceRow{
		row(5, 10430, survey.ClassTransient, 21),
		row(1, 10430, survey.ClassTransient, 19.5),
		row(2, 10430, survey.ClassTransient, 20),
		row(3, 10430, survey.ClassTransient, 20.5),
		row(4, 10430, survey.ClassTransient, math.NaN()),
		row(6, 10430, survey.ClassStatic, 20.2),
		row(7, 10431, survey.ClassTransient, 20.5),
	}))

	tests := []struct {
		name   string
		filter SourceFilter
		want   []int64
	}{
		{"inclusive limits", SourceFilter{ShardID: 10430, Class: survey.ClassTransient, MinMag: 20, MaxMag: 21}, []int64{2, 3, 5}},
		{"any class", SourceFilter{ShardID: 10430, MinMag: 20, MaxMag: 21}, []int64{2, 3, 5, 6}},
		{"faint end open", SourceFilter{ShardID: 10430, Class: survey.ClassTransient, MinMag: 20.5, MaxMag: math.NaN()}, []int64{3, 5}},
		{"open limits", AnyMagnitude(10430, survey.ClassTransient), []int64{1, 2, 3, 4, 5}},
		{"nothing in range", SourceFilter{ShardID: 10430, MinMag: 25, MaxMag: 26}, nil},
		{"other shard", AnyMagnitude(10431, ""), []int64{7}},
	}
	for _, tt := range tests {
		got, err := store.SelectSourceIDs(ctx, tt.filter)
		require.NoError(t, err, tt.name)
		if tt.want == nil {
			assert.Empty(t, got, tt.name)
			continue
		}
		assert.Equal(t, tt.want, got, tt.name)
	}

	_, err = store.SelectSourceIDs(ctx, AnyMagnitude(9999, ""))
	assert.ErrorIs(t, err, errors.ErrNotFound)

	_, err = store.SelectSourceIDs(ctx, SourceFilter{ShardID: 10430, MinMag: 21, MaxMag: 20})
	assert.True(t, errors.IsCategory(err, errors.CategoryValidation))

	// Peak magnitudes survive the round trip, unknown ones as NaN.
	rows, err := store.ReadShard(ctx, 10430)
	require.NoError(t, err)
	require.Len(t, rows, 6)
	assert.InDelta(t, 19.5, rows[0].PeakMag, 0)
	assert.True(t, math.IsNaN(rows[3].PeakMag))

	var buf strings.Builder
	require.NoError(t, WriteSourceIDs(&buf, []int64{2, 3, 5}))
	assert.Equal(t, "2\n3\n5\n", buf.String())
}

func TestReadSourcesCSV(t *testing.T) {
	t.Parallel()

	in := `# simulated transients
id,ra,dec,class,start,end,peak,host_ra,host_dec,peak_mag
20172782,7.551093,-44.807181,SN,62450,62881,62476.5,7.5511,-44.8072,20.7
41,7.58,-44.81,star,0,0,0,,,
`
	rows, err := ReadSourcesCSV(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, survey.ClassTransient, rows[0].Class)
	assert.Equal(t, 7.5511, rows[0].HostRA)
	assert.Equal(t, ShardFor(7.551093, -44.807181), rows[0].ShardID)
	assert.True(t, math.IsNaN(rows[1].HostRA))
	assert.InDelta(t, 20.7, rows[0].PeakMag, 0)
	assert.True(t, math.IsNaN(rows[1].PeakMag))

	_, err = ReadSourcesCSV(strings.NewReader("id,ra,dec\n1,2,3\n"))
	assert.True(t, errors.IsCategory(err, errors.CategoryFileParsing))

	_, err = ReadSourcesCSV(strings.NewReader("id,ra,dec,class,start,end,peak\n1,x,3,SN,0,1,0\n"))
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryFileParsing))

	_, err = ReadSourcesCSV(strings.NewReader("id,ra,dec,class,start,end,peak\n1,2,3,SN,5,1,0\n"))
	assert.Error(t, err)
}

func TestReadExposuresCSV(t *testing.T) {
	t.Parallel()

	in := "pointing,detector,band,mjd,ra,dec,pa,detected,true_flux\n" +
		"662,11,f184,62000.5,7.55,-44.8,30,true,1000\n" +
		"663,11,F184,62001.5,7.55,-44.8,0,,\n"
	exps, err := ReadExposuresCSV(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, exps, 2)
	assert.Equal(t, survey.F184, exps[0].Band)
	assert.True(t, exps[0].Detected)
	assert.Equal(t, 1000.0, exps[0].TrueFlux)
	assert.False(t, exps[1].Detected)
	assert.True(t, exps[0].Footprint.Contains(7.55, -44.8))

	_, err = ReadExposuresCSV(strings.NewReader("pointing,detector,band,mjd,ra,dec,pa\n1,1,V,0,0,0,0\n"))
	assert.Error(t, err)
}
