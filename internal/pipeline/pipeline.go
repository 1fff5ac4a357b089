// Package pipeline produces the light curve of a source: it resolves the
// source, selects its exposures, acquires stamps, builds the scene grid,
// estimates fluxes, calibrates them and persists the result.
package pipeline

import (
	"cmp"
	"context"
	"slices"
	"time"

	"github.com/romanasp/campari/internal/catalog"
	"github.com/romanasp/campari/internal/errors"
	"github.com/romanasp/campari/internal/exposure"
	"github.com/romanasp/campari/internal/grid"
	"github.com/romanasp/campari/internal/lightcurve"
	"github.com/romanasp/campari/internal/logger"
	"github.com/romanasp/campari/internal/observability/metrics"
	"github.com/romanasp/campari/internal/photometry"
	"github.com/romanasp/campari/internal/simulate"
	"github.com/romanasp/campari/internal/survey"
	"github.com/romanasp/campari/internal/wcs"
)

var log = logger.Global().Module("pipeline")

// DefaultLabel names light curves when neither the options nor the request do.
const DefaultLabel = "campari"

// Options are the settings shared by every source of a run.
type Options struct {
	OutputDir string
	Label     string
	Overwrite bool

	MaxBackground int
	MaxDetection  int
	// StampSize is the cutout size in pixels; exposures whose footprint edge
	// is closer than half a stamp are skipped.
	StampSize int

	GridPolicy grid.Policy
	Grid       grid.Params
	Backend    wcs.Backend

	// Default truth model when a request has none.
	PeakFlux float64
	Rise     float64
	Fall     float64
}

// Request selects one light curve.
type Request struct {
	SourceID  int64
	Band      survey.Band
	Label     string
	Pointings []int
	Detectors []int
	Truth     exposure.TruthModel
}

// Result is everything produced for one source.
type Result struct {
	Source    survey.Source
	Exposures survey.ExposureList
	Grid      grid.SamplingGrid
	Curve     *lightcurve.Curve
	Path      string
	Duration  time.Duration
}

// Pipeline runs requests against immutable reference data. It is safe for
// concurrent use when its image source, estimator and recorder are.
type Pipeline struct {
	ref        *catalog.ReferenceData
	reader     catalog.ShardReader
	opts       Options
	images     ImageSource
	estimator  FluxEstimator
	calibrator *photometry.Calibrator
	registry   *lightcurve.Registry
	metrics    metrics.PipelineRecorder
	runID      string
}

// Option customises a Pipeline.
type Option func(*Pipeline)

// WithImageSource replaces the default simulated image source.
func WithImageSource(s ImageSource) Option {
	return func(p *Pipeline) { p.images = s }
}

// WithEstimator replaces the default aperture estimator.
func WithEstimator(e FluxEstimator) Option {
	return func(p *Pipeline) { p.estimator = e }
}

func WithCalibrator(c *photometry.Calibrator) Option {
	return func(p *Pipeline) { p.calibrator = c }
}

// WithRegistry records every written light curve in r.
func WithRegistry(r *lightcurve.Registry) Option {
	return func(p *Pipeline) { p.registry = r }
}

func WithRecorder(r metrics.PipelineRecorder) Option {
	return func(p *Pipeline) { p.metrics = r }
}

// WithRunID sets the run identifier stamped on light curves and registry rows.
func WithRunID(id string) Option {
	return func(p *Pipeline) { p.runID = id }
}

// New builds a pipeline over ref, reading catalog rows from reader.
func New(ref *catalog.ReferenceData, reader catalog.ShardReader, opts Options, options ...Option) *Pipeline {
	if opts.Label == "" {
		opts.Label = DefaultLabel
	}
	if opts.GridPolicy == "" {
		opts.GridPolicy = grid.PolicyRegular
	}
	if opts.Backend == "" {
		opts.Backend = wcs.BackendTangentPlane
	}
	if opts.Grid.Spacing == 0 {
		opts.Grid.Spacing = 1
	}

	p := &Pipeline{
		ref:        ref,
		reader:     reader,
		opts:       opts,
		calibrator: photometry.DefaultCalibrator,
		metrics:    metrics.NoopRecorder{},
	}
	for _, o := range options {
		o(p)
	}
	if p.images == nil {
		req := simulate.DefaultRequest()
		if opts.StampSize > 0 {
			req.Size = opts.StampSize
		}
		req.Backend = opts.Backend
		p.images = SimulatedSource{Request: req}
	}
	if p.estimator == nil {
		p.estimator = ApertureEstimator{Backend: opts.Backend}
	}
	if p.runID == "" {
		p.runID = lightcurve.NewRunID()
	}
	return p
}

// RunID identifies this pipeline's output.
func (p *Pipeline) RunID() string { return p.runID }

// Run produces, writes and records the light curve of one source. Any error
// aborts the source; nothing is written unless every stage succeeded.
func (p *Pipeline) Run(ctx context.Context, req Request) (res *Result, err error) {
	start := time.Now()
	p.metrics.SourceStarted()
	defer func() {
		p.metrics.SourceFinished()
		p.observe(metrics.OpSource, start, err)
		if err != nil {
			log.Warn("source failed",
				logger.Int64("source_id", req.SourceID),
				logger.String("band", string(req.Band)),
				logger.String("category", string(errors.CategoryOf(err))),
				logger.Error(err))
		}
	}()

	label := cmp.Or(req.Label, p.opts.Label)
	res = &Result{}
	res.Source, res.Exposures, err = p.Select(ctx, req)
	if err != nil {
		return nil, err
	}
	src := res.Source
	p.metrics.RecordExposures(len(res.Exposures.Background), len(res.Exposures.Detection))
	exposures := res.Exposures.Chronological()

	var stamps []Stamp
	err = p.stage(metrics.OpStamps, func() (err error) {
		stamps, err = p.images.Stamps(ctx, src, req.Band, exposures)
		if err == nil && len(stamps) != len(exposures) {
			err = errors.Newf("image source returned %d stamps for %d exposures", len(stamps), len(exposures)).
				Category(errors.CategoryValidation).
				SourceContext(src.ID, string(req.Band)).
				Build()
		}
		return err
	})
	if err != nil {
		return nil, err
	}

	scene := &Scene{Source: src, Band: req.Band}
	err = p.stage(metrics.OpGrid, func() (err error) {
		scene.Reference, err = referenceStamp(stamps)
		if err != nil {
			return err
		}
		scene.Grid, err = p.sceneGrid(src, scene.Reference)
		return err
	})
	if err != nil {
		return nil, err
	}
	res.Grid = scene.Grid
	p.metrics.RecordGridPoints(scene.Grid.Len())

	var measured []photometry.Measurement
	err = p.stage(metrics.OpEstimate, func() (err error) {
		measured, err = p.estimator.Estimate(ctx, scene, stamps)
		if err == nil && len(measured) != len(stamps) {
			err = errors.Newf("estimator returned %d measurements for %d stamps", len(measured), len(stamps)).
				Category(errors.CategoryValidation).
				SourceContext(src.ID, string(req.Band)).
				Build()
		}
		return err
	})
	if err != nil {
		return nil, err
	}

	// The light curve holds the detection epochs only.
	var detExposures []survey.Exposure
	var detMeasured []photometry.Measurement
	for i, st := range stamps {
		if st.Exposure.Detected {
			detExposures = append(detExposures, st.Exposure)
			detMeasured = append(detMeasured, measured[i])
		}
	}
	lc, err := lightcurve.Assemble(src, req.Band, label, detExposures, detMeasured, p.calibrator)
	if err != nil {
		return nil, err
	}
	lc.RunID = p.runID
	res.Curve = lc
	res.Path = lightcurve.Path(p.opts.OutputDir, src.ID, req.Band, label)

	err = p.stage(metrics.OpWrite, func() error {
		return lightcurve.Write(res.Path, lc, p.opts.Overwrite)
	})
	if err != nil {
		return nil, err
	}
	if p.registry != nil {
		err = p.stage(metrics.OpRecord, func() error {
			_, err := p.registry.Record(ctx, p.runID, lc, res.Path)
			return err
		})
		if err != nil {
			return nil, err
		}
	}

	res.Duration = time.Since(start)
	log.Info("light curve complete",
		logger.Int64("source_id", src.ID),
		logger.String("band", string(req.Band)),
		logger.Int("background", len(res.Exposures.Background)),
		logger.Int("detection", len(res.Exposures.Detection)),
		logger.Int("grid_points", res.Grid.Len()),
		logger.String("path", res.Path),
		logger.Duration("duration", res.Duration))
	return res, nil
}

// Select resolves the requested source and picks its exposures.
func (p *Pipeline) Select(ctx context.Context, req Request) (survey.Source, survey.ExposureList, error) {
	var (
		src  survey.Source
		list survey.ExposureList
	)
	if err := ctx.Err(); err != nil {
		return src, list, cancelled(err, req.SourceID, req.Band)
	}
	if !req.Band.Valid() {
		return src, list, errors.Newf("unknown band %q", req.Band).
			Category(errors.CategoryValidation).
			SourceContext(req.SourceID, string(req.Band)).
			Build()
	}

	err := p.stage(metrics.OpResolve, func() (err error) {
		src, err = catalog.Resolve(ctx, p.reader, p.ref, req.SourceID, req.Band)
		return err
	})
	if err != nil {
		return src, list, err
	}

	err = p.stage(metrics.OpFindExposures, func() (err error) {
		q := exposure.QueryFor(src, req.Band, p.opts.MaxBackground, p.opts.MaxDetection)
		q.Pointings = req.Pointings
		q.Detectors = req.Detectors
		q.StampSize = p.opts.StampSize
		q.Truth = req.Truth
		if q.Truth == nil {
			q.Truth = exposure.NewSimpleModel(src, p.opts.PeakFlux, p.opts.Rise, p.opts.Fall)
		}
		list, err = exposure.FindExposures(p.ref, q)
		return err
	})
	return src, list, err
}

// referenceStamp is the earliest background stamp.
func referenceStamp(stamps []Stamp) (Stamp, error) {
	i := slices.IndexFunc(stamps, func(s Stamp) bool { return !s.Exposure.Detected })
	if i < 0 {
		return Stamp{}, errors.Newf("no background stamp to build the scene on").
			Category(errors.CategoryEmptyExposureList).
			Build()
	}
	return stamps[i], nil
}

func (p *Pipeline) sceneGrid(src survey.Source, ref Stamp) (grid.SamplingGrid, error) {
	w, err := wcs.New(p.opts.Backend, ref.WCS)
	if err != nil {
		return grid.SamplingGrid{}, err
	}
	params := p.opts.Grid
	params.Image = ref.Image
	return grid.Make(p.opts.GridPolicy, src.RA, src.Dec, w, params)
}

func (p *Pipeline) stage(op string, fn func() error) error {
	start := time.Now()
	err := fn()
	p.observe(op, start, err)
	return err
}

func (p *Pipeline) observe(op string, start time.Time, err error) {
	p.metrics.RecordDuration(op, time.Since(start).Seconds())
	if err != nil {
		p.metrics.RecordOperation(op, metrics.StatusError)
		p.metrics.RecordError(op, string(errors.CategoryOf(err)))
		return
	}
	p.metrics.RecordOperation(op, metrics.StatusSuccess)
}
