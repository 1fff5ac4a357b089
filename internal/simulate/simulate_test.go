package simulate

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/romanasp/campari/internal/errors"
	"github.com/romanasp/campari/internal/imaging"
	"github.com/romanasp/campari/internal/survey"
	"github.com/romanasp/campari/internal/wcs"
)

func TestSimulateImagesDefaultScene(t *testing.T) {
	t.Parallel()

	req := DefaultRequest()
	res, err := SimulateImages(req, NewRand(req.Seed))
	require.NoError(t, err)

	require.Equal(t, 10, res.Len())
	assert.Equal(t, []float64{0, 0, 0, 0, 0, 10, 100, 1e3, 1e4, 1e5}, res.InjectedLightCurve)
	require.Len(t, res.CutoutWCS, 10)
	require.Len(t, res.ExposureWCS, 10)
	require.NotNil(t, res.Reference.Galaxy)

	for i, ep := range res.Reference.Epochs {
		img := res.Images[i]
		assert.Equal(t, 11, img.Width)
		assert.Equal(t, 11, img.Height)
		assert.Equal(t, i >= 5, ep.Detected)
		assert.InDelta(t, float64(i)*2*math.Pi/10, ep.Angle, 1e-12)
		assert.InDelta(t, float64(i)*0.1, ep.XShift, 1e-12)

		// The transient sits within half a pixel of the stamp centre.
		assert.InDelta(t, 5, ep.SupernovaX, 0.5+1e-9)
		assert.InDelta(t, 5, ep.SupernovaY, 0.5+1e-9)

		w := wcs.MustNew(wcs.BackendTangentPlane, res.CutoutWCS[i])
		ra, dec, err := w.PixelToWorld(ep.SupernovaX, ep.SupernovaY)
		require.NoError(t, err)
		assert.Less(t, wcs.Separation(req.RA, req.Dec, ra, dec)*3600, 1e-6)
	}
}

func TestSimulateImagesDeterministic(t *testing.T) {
	t.Parallel()

	req := DefaultRequest()
	req.Noise = NoisePoisson
	req.NoiseLevel = 40
	req.PhotonOps = true

	a, err := SimulateImages(req, NewRand(req.Seed))
	require.NoError(t, err)
	b, err := SimulateImages(req, NewRand(req.Seed))
	require.NoError(t, err)
	for i := range a.Images {
		assert.Equal(t, a.Images[i].Pix, b.Images[i].Pix, "image %d", i)
	}

	c, err := SimulateImages(req, NewRand(req.Seed+1))
	require.NoError(t, err)
	assert.NotEqual(t, a.Images[0].Pix, c.Images[0].Pix)
}

func TestNoiselessStampsConserveInjectedFlux(t *testing.T) {
	t.Parallel()

	req := DefaultRequest()
	req.DoRotation = false
	req.DoXShift = false

	res, err := SimulateImages(req, nil)
	require.NoError(t, err)

	// Without rotation or shifts every stamp holds the same host, so the
	// difference from the first stamp is the transient alone.
	host := res.Images[0].Sum()
	for i, img := range res.Images {
		assert.InDelta(t, res.InjectedLightCurve[i], img.Sum()-host, 1e-6, "image %d", i)
	}
}

func TestSimulateImagesValidation(t *testing.T) {
	t.Parallel()

	req := DefaultRequest()
	req.LightCurve = req.LightCurve[:3]
	_, err := SimulateImages(req, NewRand(1))
	assert.True(t, errors.IsCategory(err, errors.CategoryValidation))

	req = DefaultRequest()
	req.NumDetect = 11
	_, err = SimulateImages(req, NewRand(1))
	assert.True(t, errors.IsCategory(err, errors.CategoryValidation))

	req = DefaultRequest()
	req.Band = "V"
	_, err = SimulateImages(req, NewRand(1))
	assert.True(t, errors.IsCategory(err, errors.CategoryValidation))

	req = DefaultRequest()
	req.Noise = NoiseUniform
	req.NoiseLevel = 1
	_, err = SimulateImages(req, nil)
	assert.True(t, errors.IsCategory(err, errors.CategoryValidation))
}

func TestSimulateExposures(t *testing.T) {
	t.Parallel()

	exposures := []survey.Exposure{
		{Pointing: 5, Detector: 3, Band: survey.Y106, MJD: 62000},
		{Pointing: 9, Detector: 14, Band: survey.Y106, MJD: 62010, Detected: true, TrueFlux: 2500},
		{Pointing: 12, Detector: 1, Band: survey.Y106, MJD: 62020, TrueFlux: 40},
	}
	req := DefaultRequest()
	req.Band = survey.Y106
	req.GalaxyFlux = 0

	res, err := SimulateExposures(req, exposures, nil)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 2500, 0}, res.InjectedLightCurve)
	assert.InDelta(t, 2500, res.Images[1].Sum(), 1e-8)
	assert.Zero(t, res.Images[2].Sum())
	assert.Equal(t, 14, res.Reference.Epochs[1].Detector)
	assert.NotEqual(t, res.ExposureWCS[0], res.ExposureWCS[1])

	_, err = SimulateExposures(req, nil, nil)
	assert.ErrorIs(t, err, errors.ErrEmptyExposureList)
}

func TestSimulateWCS(t *testing.T) {
	t.Parallel()

	const ra, dec = 7.541534306163982, -44.219205940734625
	base, err := SimulateWCS(0, 0, 0, 662, 11, survey.F184, ra, dec)
	require.NoError(t, err)
	again, err := SimulateWCS(0, 0, 0, 662, 11, survey.F184, ra, dec)
	require.NoError(t, err)
	assert.Equal(t, base, again)
	assert.InDelta(t, survey.PixelScale, base.PixelScale(), 1e-12)
	assert.Equal(t, survey.DetectorSize, base.NAXIS1)

	pixel := func(h wcs.Header) (float64, float64) {
		x, y, err := wcs.MustNew(wcs.BackendRotationMatrix, h).WorldToPixel(ra, dec)
		require.NoError(t, err)
		return x, y
	}
	x0, y0 := pixel(base)

	rotated, err := SimulateWCS(math.Pi/4, 0, 0, 662, 11, survey.F184, ra, dec)
	require.NoError(t, err)
	x, y := pixel(rotated)
	assert.InDelta(t, x0, x, 1e-6)
	assert.InDelta(t, y0, y, 1e-6)
	assert.NotEqual(t, base.CD1_1, rotated.CD1_1)

	shifted, err := SimulateWCS(0, 0.1, 0, 662, 11, survey.F184, ra, dec)
	require.NoError(t, err)
	x, y = pixel(shifted)
	assert.InDelta(t, x0+0.1, x, 1e-6)
	assert.InDelta(t, y0, y, 1e-6)

	other, err := SimulateWCS(0, 0, 0, 663, 11, survey.F184, ra, dec)
	require.NoError(t, err)
	assert.NotEqual(t, base, other)

	_, err = SimulateWCS(0, 0, 0, 662, 11, "V", ra, dec)
	assert.True(t, errors.IsCategory(err, errors.CategoryValidation))
}

func TestGaussianPSFKernel(t *testing.T) {
	t.Parallel()

	psf := DefaultPSF()
	k, err := psf.Kernel(FlatSpectrum(), survey.F184, 0.3, -0.2, 21)
	require.NoError(t, err)
	assert.InDelta(t, 1, k.Sum(), 1e-12)

	var cx, cy float64
	for y := range k.Height {
		for x := range k.Width {
			cx += float64(x) * k.At(x, y)
			cy += float64(y) * k.At(x, y)
		}
	}
	// Pixel integration biases the centroid slightly for an undersampled PSF.
	assert.InDelta(t, 10.3, cx, 1e-3)
	assert.InDelta(t, 9.8, cy, 1e-3)

	assert.Greater(t, psf.EffectiveSigma(FlatSpectrum(), survey.F184), psf.EffectiveSigma(FlatSpectrum(), survey.Y106))

	// A spectrum that is dark across the band cannot be drawn.
	_, err = psf.Kernel(SED{Wavelength: []float64{0.1, 0.2}, Flux: []float64{1, 1}}, survey.F184, 0, 0, 11)
	assert.True(t, errors.IsCategory(err, errors.CategorySimulation))
}

func TestSEDInterpolation(t *testing.T) {
	t.Parallel()

	s := SED{Wavelength: []float64{1, 2, 3}, Flux: []float64{0, 10, 4}}
	assert.InDelta(t, 5, s.At(1.5), 1e-12)
	assert.InDelta(t, 7, s.At(2.5), 1e-12)
	assert.Zero(t, s.At(0.5))
	assert.Zero(t, s.At(3.5))
	assert.Equal(t, 1.0, SED{}.At(42))
}

func TestSimulateGalaxy(t *testing.T) {
	t.Parallel()

	stamp := Stamp{Size: 11, Scale: survey.PixelScale}
	psf := DefaultPSF()

	delta, err := SimulateGalaxy(Galaxy{Flux: 9e5, X: 5, Y: 5, Delta: true}, survey.F184, psf, FlatSpectrum(), stamp)
	require.NoError(t, err)
	assert.InEpsilon(t, 9e5, delta.Sum(), 1e-12)

	disk, err := SimulateGalaxy(Galaxy{Flux: 9e5, X: 5, Y: 5, HalfLightRadius: 0.5}, survey.F184, psf, FlatSpectrum(), stamp)
	require.NoError(t, err)
	x, y := disk.Brightest()
	assert.Equal(t, 5, x)
	assert.Equal(t, 5, y)
	assert.Less(t, disk.Sum(), 9e5)
	assert.Greater(t, disk.Sum(), 0.5*9e5)
	assert.InDelta(t, disk.At(4, 5), disk.At(6, 5), 1e-6*disk.At(5, 5))

	_, err = SimulateGalaxy(Galaxy{Flux: 1, X: 5, Y: 5}, survey.F184, psf, FlatSpectrum(), stamp)
	assert.True(t, errors.IsCategory(err, errors.CategorySimulation))
}

func TestSimulateSupernova(t *testing.T) {
	t.Parallel()

	stamp := Stamp{Size: 11, Scale: survey.PixelScale}
	psf := DefaultPSF()

	img, err := SimulateSupernova(5.3, 4.6, stamp, 1000, FlatSpectrum(), survey.F184, psf, false, nil)
	require.NoError(t, err)
	assert.InDelta(t, 1000, img.Sum(), 1e-9)

	shot, err := SimulateSupernova(6, 6, stamp, 1000.4, FlatSpectrum(), survey.F184, psf, true, NewRand(12345))
	require.NoError(t, err)
	assert.Equal(t, 1000.0, shot.Sum())
	for _, v := range shot.Pix {
		assert.Equal(t, math.Trunc(v), v)
	}
	x, y := shot.Brightest()
	assert.Equal(t, 6, x)
	assert.Equal(t, 6, y)

	_, err = SimulateSupernova(6, 6, stamp, 10, FlatSpectrum(), survey.F184, psf, true, nil)
	assert.True(t, errors.IsCategory(err, errors.CategorySimulation))
}

func TestAddNoise(t *testing.T) {
	t.Parallel()

	rng := NewRand(7)
	tests := []struct {
		name  string
		kind  Noise
		level float64
	}{
		{"poisson small mean", NoisePoisson, 3},
		{"poisson large mean", NoisePoisson, 50},
		{"uniform", NoiseUniform, 2},
	}
	for _, tt := range tests {
		img := imaging.New(100, 100)
		require.NoError(t, AddNoise(img, tt.kind, tt.level, rng), tt.name)
		mean, std := imaging.MeanStd(img.Pix)
		assert.InDelta(t, 0, mean, 0.5, tt.name)
		assert.Greater(t, std, 0.0, tt.name)
		if tt.kind == NoiseUniform {
			lo, hi, _ := img.MinMax()
			assert.GreaterOrEqual(t, lo, -tt.level, tt.name)
			assert.Less(t, hi, tt.level, tt.name)
		} else {
			assert.InDelta(t, math.Sqrt(tt.level), std, 0.1*math.Sqrt(tt.level), tt.name)
		}
	}

	img := imaging.Filled(3, 3, 4)
	require.NoError(t, AddNoise(img, NoiseNone, 100, nil))
	assert.Equal(t, imaging.Filled(3, 3, 4).Pix, img.Pix)

	assert.True(t, errors.IsCategory(AddNoise(img, "gaussian", 1, rng), errors.CategoryValidation))
	assert.True(t, errors.IsCategory(AddNoise(img, NoiseUniform, -1, rng), errors.CategoryValidation))
}

func TestFixtureRoundTrip(t *testing.T) {
	t.Parallel()

	req := DefaultRequest()
	req.Noise = NoiseUniform
	req.NoiseLevel = 5
	res, err := SimulateImages(req, NewRand(req.Seed))
	require.NoError(t, err)

	dir := t.TempDir()
	require.NoError(t, WriteFixtures(dir, res, false))
	err = WriteFixtures(dir, res, false)
	assert.ErrorIs(t, err, errors.ErrConflict)
	require.NoError(t, WriteFixtures(dir, res, true))

	got, err := LoadFixtures(dir)
	require.NoError(t, err)

	want := res.Reference
	want.Galaxy = nil
	assert.Equal(t, want, got.Reference)
	assert.Equal(t, res.ExposureWCS, got.ExposureWCS)
	assert.Equal(t, res.CutoutWCS, got.CutoutWCS)
	assert.Equal(t, res.InjectedLightCurve, got.InjectedLightCurve)

	require.Equal(t, res.Len(), got.Len())
	for i := range res.Images {
		lo, hi, _ := res.Images[i].MinMax()
		step := (hi - lo) / math.MaxUint16
		assert.InDeltaSlice(t, res.Images[i].Pix, got.Images[i].Pix, step, "image %d", i)
	}

	_, err = LoadFixtures(t.TempDir())
	assert.ErrorIs(t, err, errors.ErrNotFound)
}
