package pipeline

import (
	"context"
	"math"

	"github.com/romanasp/campari/internal/errors"
	"github.com/romanasp/campari/internal/grid"
	"github.com/romanasp/campari/internal/imaging"
	"github.com/romanasp/campari/internal/photometry"
	"github.com/romanasp/campari/internal/survey"
	"github.com/romanasp/campari/internal/wcs"
)

// Scene is what a flux estimator knows about a source beyond its stamps.
type Scene struct {
	Source survey.Source
	Band   survey.Band
	// Reference is the earliest background stamp; the grid is built on it.
	Reference Stamp
	Grid      grid.SamplingGrid
}

// FluxEstimator measures the transient flux on every stamp. The result has
// one measurement per stamp, in order.
type FluxEstimator interface {
	Estimate(ctx context.Context, scene *Scene, stamps []Stamp) ([]photometry.Measurement, error)
}

// ApertureEstimator performs forced aperture photometry at the source
// position. The static scene under the aperture is taken to be the median
// background-epoch flux and is removed from every measurement.
type ApertureEstimator struct {
	Options photometry.ApertureOptions
	Backend wcs.Backend
}

func (a ApertureEstimator) Estimate(ctx context.Context, scene *Scene, stamps []Stamp) ([]photometry.Measurement, error) {
	backend := a.Backend
	if backend == "" {
		backend = wcs.BackendTangentPlane
	}

	out := make([]photometry.Measurement, len(stamps))
	var static []float64
	for i, st := range stamps {
		if err := ctx.Err(); err != nil {
			return nil, cancelled(err, scene.Source.ID, scene.Band)
		}
		w, err := wcs.New(backend, st.WCS)
		if err != nil {
			return nil, err
		}
		x, y, err := w.WorldToPixel(scene.Source.RA, scene.Source.Dec)
		if err != nil {
			return nil, errors.New(err).
				Category(errors.CategoryProjection).
				SourceContext(scene.Source.ID, string(scene.Band)).
				Context("pointing", st.Exposure.Pointing).
				Context("detector", st.Exposure.Detector).
				Build()
		}
		m, err := photometry.MeasureAperture(st.Image, x, y, a.Options)
		if err != nil {
			return nil, err
		}
		out[i] = m
		if !st.Exposure.Detected {
			static = append(static, m.Flux)
		}
	}
	if len(static) == 0 {
		return out, nil
	}

	level, spread := imaging.MedianMAD(static)
	levelErr := 0.0
	if len(static) > 1 {
		levelErr = spread / math.Sqrt(float64(len(static)))
	}
	for i := range out {
		out[i].Flux -= level
		out[i].FluxErr = math.Hypot(out[i].FluxErr, levelErr)
	}
	return out, nil
}
