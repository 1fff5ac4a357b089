package photometry

import (
	"math"

	"github.com/romanasp/campari/internal/errors"
	"github.com/romanasp/campari/internal/imaging"
)

// Measurement is a forced flux measurement at a fixed position.
type Measurement struct {
	Flux       float64 `json:"flux"`
	FluxErr    float64 `json:"flux_err"`
	Background float64 `json:"background"` // per pixel level that was subtracted
	NPix       int     `json:"npix"`
}

// ApertureOptions configures MeasureAperture.
type ApertureOptions struct {
	// Radius in pixels; pixels whose centres lie within it are summed.
	// Non-positive or infinite radii use the whole image.
	Radius float64 `yaml:"radius" mapstructure:"radius"`
	// SubtractBackground estimates the sky from the pixels outside the
	// aperture and removes it.
	SubtractBackground bool              `yaml:"subtractbackground" mapstructure:"subtractbackground"`
	Background         BackgroundOptions `yaml:"background" mapstructure:"background"`
}

// ApertureFlux sums img within radius of (x, y) after removing a constant
// background level. The uncertainty combines Poisson noise of the
// background-subtracted signal (unit gain) with sky noise of bgSigma per pixel.
func ApertureFlux(img *imaging.Image, x, y, radius, bgLevel, bgSigma float64) (Measurement, error) {
	if img == nil || img.Empty() {
		return Measurement{}, errors.Newf("aperture photometry on an empty image").
			Category(errors.CategoryValidation).
			Build()
	}
	whole := !(radius > 0) || math.IsInf(radius, 1)

	m := Measurement{Background: bgLevel}
	var variance float64
	for py := range img.Height {
		for px := range img.Width {
			if !whole && math.Hypot(float64(px)-x, float64(py)-y) > radius {
				continue
			}
			v := img.At(px, py)
			if math.IsNaN(v) || math.IsInf(v, 0) {
				continue
			}
			s := v - bgLevel
			m.Flux += s
			variance += max(s, 0) + bgSigma*bgSigma
			m.NPix++
		}
	}
	if m.NPix == 0 {
		return Measurement{}, errors.Newf("aperture at (%g, %g) radius %g holds no finite pixels", x, y, radius).
			Category(errors.CategoryValidation).
			Build()
	}
	m.FluxErr = math.Sqrt(variance)
	return m, nil
}

// MeasureAperture performs forced aperture photometry at (x, y), estimating
// the background from the pixels outside the aperture when requested.
func MeasureAperture(img *imaging.Image, x, y float64, opts ApertureOptions) (Measurement, error) {
	if !opts.SubtractBackground {
		return ApertureFlux(img, x, y, opts.Radius, 0, 0)
	}
	if img == nil || img.Empty() {
		return Measurement{}, errors.Newf("aperture photometry on an empty image").
			Category(errors.CategoryValidation).
			Build()
	}

	sky := imaging.Filled(img.Width, img.Height, math.NaN())
	outside := 0
	if opts.Radius > 0 && !math.IsInf(opts.Radius, 1) {
		for py := range img.Height {
			for px := range img.Width {
				if math.Hypot(float64(px)-x, float64(py)-y) > opts.Radius {
					sky.Set(px, py, img.At(px, py))
					outside++
				}
			}
		}
	}
	if outside == 0 {
		// No sky pixels; clip the whole image instead.
		sky = img
	}
	bg, err := EstimateBackground(sky, opts.Background)
	if err != nil {
		return Measurement{}, err
	}
	return ApertureFlux(img, x, y, opts.Radius, bg.Level, bg.MADSigma)
}
