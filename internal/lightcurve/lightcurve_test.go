package lightcurve

import (
	"bytes"
	"context"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/romanasp/campari/internal/errors"
	"github.com/romanasp/campari/internal/photometry"
	"github.com/romanasp/campari/internal/survey"
)

func fixtureCurve() *Curve {
	lc := &Curve{
		SourceID: 20172782,
		Band:     survey.Y106,
		Label:    "test",
		RA:       7.551093401915147,
		Dec:      -44.80718106491529,
		RunID:    "0b5f3c1e-8d0a-4f41-9a53-61f5b6f0d2c4",
	}
	for i := range 5 {
		v := float64(i + 1)
		lc.Points = append(lc.Points, Point{
			MJD:          v,
			TrueFlux:     v,
			MeasuredFlux: v,
			FluxErr:      0.1 + 0.2*v,
			Mag:          20 + v/3,
			MagErr:       1e-300 * v,
			ZeroPoint:    survey.Y106.ZeroPoint(),
			Band:         survey.Y106,
			Detected:     i%2 == 0,
			Pointing:     10535,
			Detector:     14 + i,
		})
	}
	return lc
}

func TestPath(t *testing.T) {
	t.Parallel()

	assert.Equal(t, filepath.Join("out", "20172782_Y106_test_lc.ecsv"), Path("out", 20172782, survey.Y106, "test"))
	assert.Equal(t, "1_F184_sim_lc.ecsv", FileName(1, survey.F184, "sim"))
}

func TestAssemble(t *testing.T) {
	t.Parallel()

	src := survey.Source{ID: 7, RA: 10, Dec: -20}
	exposures := []survey.Exposure{
		{Pointing: 1, Detector: 2, MJD: 62001, TrueFlux: 0},
		{Pointing: 3, Detector: 4, MJD: 62002, Detected: true, TrueFlux: 1e4},
	}
	ms := []photometry.Measurement{
		{Flux: -100, FluxErr: 10},
		{Flux: 1e4, FluxErr: 10},
	}

	lc, err := Assemble(src, survey.Y106, "test", exposures, ms, nil)
	require.NoError(t, err)
	require.Equal(t, 2, lc.Len())
	assert.Equal(t, int64(7), lc.SourceID)
	assert.Equal(t, "test", lc.Label)

	assert.True(t, math.IsNaN(lc.Points[0].Mag))
	assert.Equal(t, 15.023547191066587, lc.Points[0].ZeroPoint)
	p := lc.Points[1]
	assert.InDelta(t, 22.66165575, p.Mag, 1e-8)
	assert.InDelta(t, 2.5/math.Ln10*1e-3, p.MagErr, 1e-12)
	assert.Equal(t, 62002.0, p.MJD)
	assert.Equal(t, 1e4, p.TrueFlux)
	assert.True(t, p.Detected)
	assert.Equal(t, 3, p.Pointing)
	assert.Equal(t, 4, p.Detector)

	_, err = Assemble(src, survey.Y106, "test", exposures, ms[:1], nil)
	assert.True(t, errors.IsCategory(err, errors.CategoryValidation))
	_, err = Assemble(src, "V", "test", exposures, ms, nil)
	assert.True(t, errors.IsCategory(err, errors.CategoryValidation))
}

func TestWriteReadRoundTrip(t *testing.T) {
	t.Parallel()

	lc := fixtureCurve()
	path := Path(filepath.Join(t.TempDir(), "lc"), lc.SourceID, lc.Band, lc.Label)
	require.NoError(t, Write(path, lc, false))

	got, err := Read(path)
	require.NoError(t, err)
	assert.Equal(t, lc, got)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(data)
	assert.True(t, strings.HasPrefix(text, "# %ECSV 1.0\n# ---\n"))
	assert.Contains(t, text, "\nmjd true_flux measured_flux flux_err mag mag_err zp band detected pointing detector\n")
	assert.Contains(t, text, "# schema: astropy-2.0\n")
}

func TestWriteRefusesToReplace(t *testing.T) {
	t.Parallel()

	lc := fixtureCurve()
	path := Path(t.TempDir(), lc.SourceID, lc.Band, lc.Label)
	require.NoError(t, Write(path, lc, false))

	err := Write(path, lc, false)
	assert.ErrorIs(t, err, errors.ErrConflict)

	lc.Points = lc.Points[:2]
	require.NoError(t, Write(path, lc, true))
	got, err := Read(path)
	require.NoError(t, err)
	assert.Equal(t, 2, got.Len())
}

func TestWriteFailureLeavesNoPartialFile(t *testing.T) {
	t.Parallel()

	lc := fixtureCurve()
	dir := t.TempDir()
	path := Path(dir, lc.SourceID, lc.Band, lc.Label)
	failing := func(w io.Writer, _ *Curve) error {
		_, _ = io.WriteString(w, "# %ECSV 1.0\n# ---\n")
		return io.ErrShortWrite
	}

	err := writeWith(path, lc, false, failing)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryFileIO))
	assert.NoFileExists(t, path)
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "temporary file left behind")

	// A retry after the failure is not a conflict.
	require.NoError(t, Write(path, lc, false))

	// A failed overwrite keeps the previous light curve intact.
	err = writeWith(path, lc, true, failing)
	require.Error(t, err)
	got, err := Read(path)
	require.NoError(t, err)
	assert.Equal(t, lc, got)
	entries, err = os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestNonFiniteValuesSurviveRoundTrip(t *testing.T) {
	t.Parallel()

	lc := fixtureCurve()
	lc.Points[0].Mag = math.NaN()
	lc.Points[0].MagErr = math.NaN()
	lc.Points[1].FluxErr = math.Inf(1)

	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, lc))
	got, err := Decode(&buf)
	require.NoError(t, err)
	assert.True(t, math.IsNaN(got.Points[0].Mag))
	assert.True(t, math.IsNaN(got.Points[0].MagErr))
	assert.True(t, math.IsInf(got.Points[1].FluxErr, 1))
	if d := cmp.Diff(lc, got, cmpopts.EquateNaNs()); d != "" {
		t.Errorf("decoded curve mismatch (-want +got):\n%s", d)
	}

	diff, err := Compare(got, lc, 0)
	require.NoError(t, err)
	assert.Empty(t, diff)
}

func TestDecodeErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
	}{
		{"no signature", "mjd flux\n1 2\n"},
		{"missing column", "# %ECSV 1.0\n# ---\n# datatype:\n# - {name: mjd, datatype: float64}\nmjd\n1\n"},
		{"ragged row", "# %ECSV 1.0\n# ---\n# datatype: []\nmjd true_flux\n1\n"},
		{"bad header", "# %ECSV 1.0\n# ---\n# datatype: [\nmjd\n1\n"},
	}
	for _, tt := range tests {
		_, err := Decode(strings.NewReader(tt.input))
		assert.True(t, errors.IsCategory(err, errors.CategoryFileParsing), tt.name)
	}

	_, err := Read(filepath.Join(t.TempDir(), "missing_lc.ecsv"))
	assert.ErrorIs(t, err, errors.ErrNotFound)
}

func TestCompare(t *testing.T) {
	t.Parallel()

	ref := fixtureCurve()

	same := fixtureCurve()
	same.Points[2].MeasuredFlux *= 1 + 5e-8
	diff, err := Compare(same, ref, 1e-7)
	require.NoError(t, err)
	assert.Empty(t, diff)

	off := fixtureCurve()
	off.Points[2].MeasuredFlux *= 1 + 1e-6
	off.Points[4].Band = survey.J129
	diff, err = Compare(off, ref, 1e-7)
	require.NoError(t, err)
	require.Len(t, diff, 2)
	assert.Equal(t, "measured_flux", diff[0].Column)
	assert.Equal(t, 2, diff[0].Row)
	assert.Equal(t, Mismatch{Column: "band", Row: 4, Got: "J129", Want: "Y106"}, diff[1])

	short := fixtureCurve()
	short.Points = short.Points[:4]
	_, err = Compare(short, ref, 1e-7)
	assert.True(t, errors.IsCategory(err, errors.CategoryValidation))
}

func TestRegistry(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	reg, err := OpenRegistry(filepath.Join(t.TempDir(), "db", "registry.db"), 0)
	require.NoError(t, err)
	t.Cleanup(func() { _ = reg.Close() })

	lc := fixtureCurve()
	run := NewRunID()
	a, err := reg.Record(ctx, run, lc, "/out/a.ecsv")
	require.NoError(t, err)
	assert.Equal(t, 5, a.Points)
	assert.Equal(t, 3, a.Detected)

	got, err := reg.Lookup(ctx, lc.SourceID, lc.Band, lc.Label)
	require.NoError(t, err)
	assert.Equal(t, run, got.RunID)
	assert.Equal(t, "/out/a.ecsv", got.Path)

	second := NewRunID()
	assert.NotEqual(t, run, second)
	_, err = reg.Record(ctx, second, lc, "/out/b.ecsv")
	require.NoError(t, err)
	got, err = reg.Lookup(ctx, lc.SourceID, lc.Band, lc.Label)
	require.NoError(t, err)
	assert.Equal(t, second, got.RunID)
	assert.Equal(t, "/out/b.ecsv", got.Path)

	listed, err := reg.Run(ctx, run)
	require.NoError(t, err)
	assert.Empty(t, listed)
	listed, err = reg.Run(ctx, second)
	require.NoError(t, err)
	assert.Len(t, listed, 1)

	_, err = reg.Lookup(ctx, 1, survey.Y106, "test")
	assert.ErrorIs(t, err, errors.ErrNotFound)
	_, err = reg.Record(ctx, "not-a-uuid", lc, "x")
	assert.True(t, errors.IsCategory(err, errors.CategoryValidation))
}

func TestSummarize(t *testing.T) {
	t.Parallel()

	lc := fixtureCurve()
	lc.Points[3].MeasuredFlux = 9
	lc.Points[3].FluxErr = 2.5

	s := Summarize(lc)
	assert.Equal(t, 5, s.Points)
	assert.Equal(t, 3, s.Detected)
	assert.Equal(t, 9.0, s.PeakFlux)
	assert.Equal(t, 4.0, s.PeakMJD)
	assert.Equal(t, 5, s.Pulls)
	assert.InDelta(t, 2.0/5, s.MeanPull, 1e-12)
	assert.InDelta(t, math.Sqrt(4.0/5), s.RMSPull, 1e-12)

	var buf bytes.Buffer
	require.NoError(t, WriteTable(&buf, lc))
	assert.Contains(t, buf.String(), "5 points, 3 detected")
	assert.Equal(t, 7, strings.Count(buf.String(), "\n"))
}
