// Package photometry estimates sky backgrounds, measures forced aperture
// fluxes and converts fluxes into calibrated magnitudes.
package photometry

import (
	"math"

	"github.com/romanasp/campari/internal/errors"
	"github.com/romanasp/campari/internal/imaging"
	"github.com/romanasp/campari/internal/logger"
)

var log = logger.Global().Module("photometry")

// BackgroundOptions controls the sigma-clipping background estimator.
type BackgroundOptions struct {
	Sigma           float64 `yaml:"sigma" mapstructure:"sigma"`
	MaxIterations   int     `yaml:"maxiterations" mapstructure:"maxiterations"`
	MinKeepFraction float64 `yaml:"minkeepfraction" mapstructure:"minkeepfraction"`
	// Strict turns non-convergence into an error instead of a fallback.
	Strict bool `yaml:"strict" mapstructure:"strict"`
}

// DefaultBackgroundOptions clips at 3 sigma for at most 10 iterations and
// falls back when fewer than a tenth of the pixels survive.
func DefaultBackgroundOptions() BackgroundOptions {
	return BackgroundOptions{Sigma: 3, MaxIterations: 10, MinKeepFraction: 0.1}
}

func (o BackgroundOptions) withDefaults() BackgroundOptions {
	d := DefaultBackgroundOptions()
	if o.Sigma <= 0 {
		o.Sigma = d.Sigma
	}
	if o.MaxIterations <= 0 {
		o.MaxIterations = d.MaxIterations
	}
	if o.MinKeepFraction <= 0 || o.MinKeepFraction > 1 {
		o.MinKeepFraction = d.MinKeepFraction
	}
	return o
}

// Background is the outcome of a background estimate.
type Background struct {
	Level      float64 // clipped median, or the plain median after a fallback
	Sigma      float64 // standard deviation of the kept pixels
	MADSigma   float64 // robust width of the kept pixels
	Iterations int
	Kept       int
	Total      int
	Converged  bool
	FellBack   bool
}

// EstimateBackground sigma-clips the finite pixels of img around their
// median until no pixel is rejected. When clipping keeps too few pixels or
// runs out of iterations, the median of all finite pixels is returned.
func EstimateBackground(img *imaging.Image, opts BackgroundOptions) (Background, error) {
	opts = opts.withDefaults()
	if img == nil || img.Empty() {
		return Background{}, calibrationError("background of an empty image")
	}
	all := img.Finite()
	if len(all) == 0 {
		return Background{}, calibrationError("background of an image with no finite pixels")
	}

	bg := Background{Total: len(all)}
	kept := all
	for bg.Iterations < opts.MaxIterations {
		bg.Iterations++
		median := imaging.Median(kept)
		_, std := imaging.MeanStd(kept)
		limit := opts.Sigma * std

		next := make([]float64, 0, len(kept))
		for _, v := range kept {
			if math.Abs(v-median) <= limit {
				next = append(next, v)
			}
		}
		if len(next) == len(kept) {
			bg.Converged = true
			break
		}
		kept = next
		if float64(len(kept)) < opts.MinKeepFraction*float64(len(all)) {
			break
		}
	}

	enough := float64(len(kept)) >= opts.MinKeepFraction*float64(len(all))
	if bg.Converged && enough {
		bg.Kept = len(kept)
		bg.Level = imaging.Median(kept)
		_, bg.Sigma = imaging.MeanStd(kept)
		_, bg.MADSigma = imaging.MedianMAD(kept)
		return bg, nil
	}

	if opts.Strict {
		return bg, errors.Newf("sigma clipping did not converge after %d iterations (%d of %d pixels kept)",
			bg.Iterations, len(kept), len(all)).
			Category(errors.CategoryCalibration).
			Context("operation", "estimate_background").
			Build()
	}

	log.Debug("background clipping fell back to the unclipped median",
		logger.Int("iterations", bg.Iterations),
		logger.Int("kept", len(kept)),
		logger.Int("total", len(all)))
	bg.FellBack = true
	bg.Kept = len(all)
	bg.Level = imaging.Median(all)
	_, bg.Sigma = imaging.MeanStd(all)
	_, bg.MADSigma = imaging.MedianMAD(all)
	return bg, nil
}

// CalculateBackgroundLevel returns the robust sky level of img with the
// default options.
func CalculateBackgroundLevel(img *imaging.Image) (float64, error) {
	bg, err := EstimateBackground(img, DefaultBackgroundOptions())
	if err != nil {
		return math.NaN(), err
	}
	return bg.Level, nil
}

func calibrationError(msg string) error {
	return errors.Newf("%s", msg).
		Category(errors.CategoryCalibration).
		Context("operation", "estimate_background").
		Build()
}
