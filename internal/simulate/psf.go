package simulate

import (
	"math"

	"github.com/romanasp/campari/internal/errors"
	"github.com/romanasp/campari/internal/imaging"
	"github.com/romanasp/campari/internal/survey"
)

// SED is a spectral energy distribution sampled at ascending wavelengths in
// microns. The zero value is flat.
type SED struct {
	Wavelength []float64 `json:"wavelength"`
	Flux       []float64 `json:"flux"`
}

// FlatSpectrum is flat in photons between 0.1 and 2.6 microns.
func FlatSpectrum() SED {
	return SED{Wavelength: []float64{0.1, 2.6}, Flux: []float64{1, 1}}
}

// At interpolates linearly and is zero outside the sampled range.
func (s SED) At(lambda float64) float64 {
	n := min(len(s.Wavelength), len(s.Flux))
	if n == 0 {
		return 1
	}
	if lambda < s.Wavelength[0] || lambda > s.Wavelength[n-1] {
		return 0
	}
	for i := 1; i < n; i++ {
		if lambda <= s.Wavelength[i] {
			w0, w1 := s.Wavelength[i-1], s.Wavelength[i]
			if w1 == w0 {
				return s.Flux[i]
			}
			t := (lambda - w0) / (w1 - w0)
			return s.Flux[i-1] + t*(s.Flux[i]-s.Flux[i-1])
		}
	}
	return s.Flux[n-1]
}

// SEDProvider supplies the spectrum of a source at an epoch.
type SEDProvider interface {
	SED(sourceID int64, mjd float64) (SED, error)
}

// FlatSED returns FlatSpectrum for every source and epoch.
type FlatSED struct{}

func (FlatSED) SED(int64, float64) (SED, error) { return FlatSpectrum(), nil }

// ChromaticPSF renders a size by size kernel for a point source whose centre
// sits (dx, dy) pixels from the stamp centre. Kernels sum to one.
type ChromaticPSF interface {
	Kernel(sed SED, band survey.Band, dx, dy float64, size int) (*imaging.Image, error)
}

const (
	arcsecPerRadian = 180 / math.Pi * 3600
	fwhmToSigma     = 2.354820045030949
	// airyFWHM is the full width at half maximum of an Airy disk in units of lambda/D.
	airyFWHM = 1.028
)

// GaussianPSF approximates a diffraction-limited PSF by Gaussians whose width
// grows linearly with wavelength, weighted by the SED across the band.
type GaussianPSF struct {
	Diameter   float64 // aperture in metres
	PixelScale float64 // arcsec per pixel
	Samples    int     // wavelengths sampled across the band
}

// DefaultPSF models a 2.36 m aperture on the survey detectors.
func DefaultPSF() GaussianPSF {
	return GaussianPSF{Diameter: 2.36, PixelScale: survey.PixelScale, Samples: 16}
}

// Sigma returns the Gaussian width in pixels at lambda microns.
func (p GaussianPSF) Sigma(lambda float64) float64 {
	fwhm := airyFWHM * lambda * 1e-6 / p.Diameter * arcsecPerRadian
	return fwhm / fwhmToSigma / p.PixelScale
}

// EffectiveSigma is the SED-weighted mean width across band, in pixels.
func (p GaussianPSF) EffectiveSigma(sed SED, band survey.Band) float64 {
	lambdas, weights := p.sample(sed, band)
	var s, w float64
	for i, l := range lambdas {
		s += weights[i] * p.Sigma(l)
		w += weights[i]
	}
	if w == 0 {
		return p.Sigma(band.EffectiveWavelength())
	}
	return s / w
}

func (p GaussianPSF) sample(sed SED, band survey.Band) (lambdas, weights []float64) {
	n := max(p.Samples, 1)
	lo, hi := band.WavelengthRange()
	lambdas = make([]float64, n)
	weights = make([]float64, n)
	for i := range n {
		l := lo + (hi-lo)*(float64(i)+0.5)/float64(n)
		lambdas[i] = l
		weights[i] = sed.At(l)
	}
	return lambdas, weights
}

func (p GaussianPSF) Kernel(sed SED, band survey.Band, dx, dy float64, size int) (*imaging.Image, error) {
	if !band.Valid() {
		return nil, simulationError("psf kernel for unknown band %q", band)
	}
	if size < 1 {
		return nil, simulationError("psf kernel size must be positive, got %d", size)
	}
	if !(p.Diameter > 0) || !(p.PixelScale > 0) {
		return nil, simulationError("psf needs a positive diameter and pixel scale")
	}

	lambdas, weights := p.sample(sed, band)
	cx := float64(size-1)/2 + dx
	cy := float64(size-1)/2 + dy
	k := imaging.New(size, size)
	px := make([]float64, size)
	py := make([]float64, size)
	for i, l := range lambdas {
		if weights[i] <= 0 {
			continue
		}
		sigma := p.Sigma(l)
		pixelIntegrals(px, cx, sigma)
		pixelIntegrals(py, cy, sigma)
		for y := range size {
			for x := range size {
				k.Add(x, y, weights[i]*px[x]*py[y])
			}
		}
	}

	total := k.Sum()
	if !(total > 0) {
		return nil, simulationError("psf centred at (%g, %g) falls outside a %d pixel stamp", cx, cy, size)
	}
	k.Scale(1 / total)
	return k, nil
}

// pixelIntegrals fills out[i] with the mass of a unit Gaussian centred at c
// that falls within pixel i.
func pixelIntegrals(out []float64, c, sigma float64) {
	for i := range out {
		lo := (float64(i) - 0.5 - c) / sigma
		hi := (float64(i) + 0.5 - c) / sigma
		out[i] = normalCDF(hi) - normalCDF(lo)
	}
}

func normalCDF(z float64) float64 {
	return 0.5 * math.Erfc(-z/math.Sqrt2)
}

func simulationError(format string, args ...any) error {
	return errors.Newf(format, args...).
		Category(errors.CategorySimulation).
		Build()
}
