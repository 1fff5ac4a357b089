package conf

import (
	"slices"
	"strings"

	"github.com/romanasp/campari/internal/catalog"
	"github.com/romanasp/campari/internal/errors"
	"github.com/romanasp/campari/internal/grid"
	"github.com/romanasp/campari/internal/photometry"
	"github.com/romanasp/campari/internal/pipeline"
	"github.com/romanasp/campari/internal/simulate"
	"github.com/romanasp/campari/internal/survey"
	"github.com/romanasp/campari/internal/wcs"
)

// Source names accepted by simulation.source.
const (
	SourceSimulate = "simulate"
	SourceFixtures = "fixtures"
)

// Bands returns the footprint bands to load; nil means every band.
func (s *Settings) Bands() ([]survey.Band, error) {
	if len(s.Catalog.Bands) == 0 {
		return nil, nil
	}
	bands := make([]survey.Band, 0, len(s.Catalog.Bands))
	for _, name := range s.Catalog.Bands {
		b, err := survey.ParseBand(strings.TrimSpace(name))
		if err != nil {
			return nil, err
		}
		if !slices.Contains(bands, b) {
			bands = append(bands, b)
		}
	}
	return bands, nil
}

func (s *Settings) CatalogOptions() catalog.SQLOptions {
	return catalog.SQLOptions{
		CacheTTL:      s.Catalog.CacheTTL,
		CacheCleanup:  s.Catalog.CacheCleanup,
		SlowThreshold: s.Catalog.SlowQuery,
		BatchSize:     s.Catalog.BatchSize,
	}
}

// Calibrator applies the configured zero point overrides.
func (s *Settings) Calibrator() (*photometry.Calibrator, error) {
	if len(s.Photometry.ZeroPoints) == 0 {
		return photometry.DefaultCalibrator, nil
	}
	overrides := make(map[survey.Band]float64, len(s.Photometry.ZeroPoints))
	for name, zp := range s.Photometry.ZeroPoints {
		b, err := survey.ParseBand(strings.TrimSpace(name))
		if err != nil {
			return nil, errors.New(err).
				Category(errors.CategoryConfiguration).
				Context("setting", "photometry.zeropoints").
				Build()
		}
		overrides[b] = zp
	}
	return photometry.NewCalibrator(overrides)
}

// Backend parses simulation.backend; empty selects the tangent plane.
func (s *Settings) Backend() (wcs.Backend, error) {
	name := strings.ToLower(strings.TrimSpace(s.Simulation.Backend))
	if name == "" {
		return wcs.BackendTangentPlane, nil
	}
	if b := wcs.Backend(name); slices.Contains(wcs.Backends(), b) {
		return b, nil
	}
	return "", errors.Newf("unknown WCS backend %q", s.Simulation.Backend).
		Category(errors.CategoryConfiguration).
		Build()
}

// PipelineOptions converts the exposure, grid and output sections.
func (s *Settings) PipelineOptions() (pipeline.Options, error) {
	policy, err := grid.ParsePolicy(s.Grid.Policy)
	if err != nil {
		return pipeline.Options{}, err
	}
	backend, err := s.Backend()
	if err != nil {
		return pipeline.Options{}, err
	}
	return pipeline.Options{
		OutputDir:     s.Output.Dir,
		Label:         s.Output.Label,
		Overwrite:     s.Output.Overwrite,
		MaxBackground: s.Exposures.MaxBackground,
		MaxDetection:  s.Exposures.MaxDetection,
		StampSize:     s.Exposures.StampSize,
		GridPolicy:    policy,
		Grid: grid.Params{
			Size:         s.Grid.Size,
			Spacing:      s.Grid.Spacing,
			SpacingUnit:  grid.SpacingUnit(strings.ToLower(s.Grid.SpacingUnit)),
			Percentiles:  slices.Clone(s.Grid.Percentiles),
			SparseStride: s.Grid.SparseStride,
			Levels:       s.Grid.Levels,
		},
		Backend:  backend,
		PeakFlux: s.Exposures.Truth.PeakFlux,
		Rise:     s.Exposures.Truth.Rise,
		Fall:     s.Exposures.Truth.Fall,
	}, nil
}

// SimulationRequest starts from the reference scene and applies the
// simulation section. Source position and band are left to the caller.
func (s *Settings) SimulationRequest() (simulate.Request, error) {
	req := simulate.DefaultRequest()
	noise, err := simulate.ParseNoise(strings.ToLower(s.Simulation.Noise))
	if err != nil {
		return req, err
	}
	backend, err := s.Backend()
	if err != nil {
		return req, err
	}
	sim := s.Simulation
	req.Noise = noise
	req.NoiseLevel = sim.NoiseLevel
	req.GalaxyFlux = sim.GalaxyFlux
	req.GalaxyRadius = sim.GalaxyRadius
	req.DeltaProfile = sim.DeltaProfile
	req.PhotonOps = sim.PhotonOps
	req.Seed = sim.Seed
	req.Backend = backend
	req.DoXShift = sim.DoXShift
	req.DoRotation = sim.DoRotation
	if s.Exposures.StampSize > 0 {
		req.Size = s.Exposures.StampSize
	}
	if sim.NumTotal > 0 {
		req.NumTotal = sim.NumTotal
	}
	if sim.NumDetect > 0 {
		req.NumDetect = sim.NumDetect
	}
	if len(sim.LightCurve) > 0 {
		req.LightCurve = slices.Clone(sim.LightCurve)
	}
	if sim.MJD0 > 0 {
		req.MJD0 = sim.MJD0
	}
	if sim.Cadence > 0 {
		req.Cadence = sim.Cadence
	}
	return req, nil
}

// ImageSource builds the configured stamp source for the pipeline.
func (s *Settings) ImageSource() (pipeline.ImageSource, error) {
	switch strings.ToLower(s.Simulation.Source) {
	case "", SourceSimulate:
		req, err := s.SimulationRequest()
		if err != nil {
			return nil, err
		}
		return pipeline.SimulatedSource{Request: req}, nil
	case SourceFixtures:
		return pipeline.FixtureSource{Root: s.Simulation.FixtureDir}, nil
	default:
		return nil, errors.Newf("unknown image source %q", s.Simulation.Source).
			Category(errors.CategoryConfiguration).
			Build()
	}
}

// Estimator is the aperture estimator configured by the photometry section.
func (s *Settings) Estimator() (pipeline.ApertureEstimator, error) {
	backend, err := s.Backend()
	if err != nil {
		return pipeline.ApertureEstimator{}, err
	}
	return pipeline.ApertureEstimator{Options: s.Photometry.Aperture, Backend: backend}, nil
}
