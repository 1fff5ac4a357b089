package photometry

import (
	"maps"
	"math"

	"github.com/romanasp/campari/internal/errors"
	"github.com/romanasp/campari/internal/survey"
)

// magErrFactor is 2.5/ln(10).
var magErrFactor = 2.5 / math.Ln10

// Calibrator converts instrumental fluxes (electrons per exposure) to AB
// magnitudes. Zero points default to the survey constants and can be
// overridden per band.
type Calibrator struct {
	zeroPoints   map[survey.Band]float64
	exposureTime float64
	area         float64
}

// NewCalibrator builds a calibrator. overrides replaces the zero point of
// the bands it names.
func NewCalibrator(overrides map[survey.Band]float64) (*Calibrator, error) {
	c := &Calibrator{
		zeroPoints:   make(map[survey.Band]float64),
		exposureTime: survey.ExposureTime,
		area:         survey.CollectingArea,
	}
	for _, b := range survey.Bands() {
		c.zeroPoints[b] = b.ZeroPoint()
	}
	for b, zp := range overrides {
		if !b.Valid() {
			return nil, errors.Newf("zero point override for unknown band %q", b).
				Category(errors.CategoryConfiguration).
				Build()
		}
		if math.IsNaN(zp) || math.IsInf(zp, 0) {
			return nil, errors.Newf("zero point override for %s is not finite", b).
				Category(errors.CategoryConfiguration).
				Build()
		}
		c.zeroPoints[b] = zp
	}
	return c, nil
}

// DefaultCalibrator uses the survey zero points.
var DefaultCalibrator = func() *Calibrator {
	c, err := NewCalibrator(nil)
	if err != nil {
		panic(err)
	}
	return c
}()

// ZeroPoint returns the zero point of band, NaN when unknown.
func (c *Calibrator) ZeroPoint(band survey.Band) float64 {
	zp, ok := c.zeroPoints[band]
	if !ok {
		return math.NaN()
	}
	return zp
}

// ZeroPoints returns a copy of the zero point table.
func (c *Calibrator) ZeroPoints() map[survey.Band]float64 {
	return maps.Clone(c.zeroPoints)
}

// MagAndErr converts a flux and its uncertainty:
//
//	mag    = zp − 2.5·log10(flux) + 2.5·log10(exptime·area)
//	magErr = 2.5/ln(10) · sigma/flux
//
// Non-positive fluxes give NaN magnitude and error; the zero point is
// always returned.
func (c *Calibrator) MagAndErr(flux, sigma float64, band survey.Band) (mag, magErr, zp float64) {
	zp = c.ZeroPoint(band)
	if !(flux > 0) {
		return math.NaN(), math.NaN(), zp
	}
	mag = zp - 2.5*math.Log10(flux) + 2.5*math.Log10(c.exposureTime*c.area)
	magErr = magErrFactor * sigma / flux
	return mag, magErr, zp
}

// MagsAndErrs is the vector form of MagAndErr. fluxes and sigmas must have
// the same length.
func (c *Calibrator) MagsAndErrs(fluxes, sigmas []float64, band survey.Band) (mags, magErrs []float64, zp float64, err error) {
	if len(fluxes) != len(sigmas) {
		return nil, nil, math.NaN(), errors.Newf("%d fluxes but %d uncertainties", len(fluxes), len(sigmas)).
			Category(errors.CategoryValidation).
			Build()
	}
	mags = make([]float64, len(fluxes))
	magErrs = make([]float64, len(fluxes))
	zp = c.ZeroPoint(band)
	for i := range fluxes {
		mags[i], magErrs[i], _ = c.MagAndErr(fluxes[i], sigmas[i], band)
	}
	return mags, magErrs, zp, nil
}

// CalcMagAndErr converts with the survey zero points.
func CalcMagAndErr(flux, sigma float64, band survey.Band) (mag, magErr, zp float64) {
	return DefaultCalibrator.MagAndErr(flux, sigma, band)
}

// CalcMagsAndErrs converts slices with the survey zero points.
func CalcMagsAndErrs(fluxes, sigmas []float64, band survey.Band) (mags, magErrs []float64, zp float64, err error) {
	return DefaultCalibrator.MagsAndErrs(fluxes, sigmas, band)
}
