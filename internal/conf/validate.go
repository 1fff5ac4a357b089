// conf/validate.go

package conf

import (
	"fmt"
	"math"
	"net"
	"strings"

	"github.com/romanasp/campari/internal/grid"
	"github.com/romanasp/campari/internal/simulate"
	"github.com/romanasp/campari/internal/survey"
)

// ValidationError represents a collection of validation errors
type ValidationError struct {
	Errors []string
}

// Error returns a string representation of the validation errors
func (ve ValidationError) Error() string {
	return fmt.Sprintf("Validation errors: %v", ve.Errors)
}

// ValidateSettings checks every section and reports all problems at once.
func ValidateSettings(settings *Settings) error {
	ve := ValidationError{}

	validators := []func(*Settings) error{
		validateCatalogSettings,
		validateExposureSettings,
		validateGridSettings,
		validateSimulationSettings,
		validatePhotometrySettings,
		validateOutputSettings,
		validateTelemetrySettings,
		validateBatchSettings,
	}
	for _, validate := range validators {
		if err := validate(settings); err != nil {
			ve.Errors = append(ve.Errors, err.Error())
		}
	}

	if len(ve.Errors) > 0 {
		return ve
	}
	return nil
}

func validateCatalogSettings(s *Settings) error {
	c := &s.Catalog
	var errs []string
	if strings.TrimSpace(c.Path) == "" {
		errs = append(errs, "catalog path is required")
	}
	if !(c.CellSize > 0) || c.CellSize > 180 {
		errs = append(errs, fmt.Sprintf("catalog cell size must be in (0, 180] degrees, got %v", c.CellSize))
	}
	if c.CacheTTL < 0 || c.CacheCleanup < 0 || c.SlowQuery < 0 {
		errs = append(errs, "catalog durations must not be negative")
	}
	if c.BatchSize < 0 {
		errs = append(errs, fmt.Sprintf("catalog batch size must not be negative, got %d", c.BatchSize))
	}
	if _, err := s.Bands(); err != nil {
		errs = append(errs, err.Error())
	}
	return joinSection("catalog", errs)
}

func validateExposureSettings(s *Settings) error {
	e := &s.Exposures
	var errs []string
	if e.MaxBackground < 0 || e.MaxDetection < 0 {
		errs = append(errs, "exposure caps must not be negative")
	}
	if e.StampSize < 1 {
		errs = append(errs, fmt.Sprintf("stamp size must be at least 1 pixel, got %d", e.StampSize))
	}
	if e.Truth.PeakFlux < 0 || !isFinite(e.Truth.PeakFlux) {
		errs = append(errs, "truth peak flux must be finite and not negative")
	}
	if e.Truth.Rise < 0 || e.Truth.Fall < 0 {
		errs = append(errs, "truth rise and fall times must not be negative")
	}
	return joinSection("exposures", errs)
}

func validateGridSettings(s *Settings) error {
	g := &s.Grid
	var errs []string
	if _, err := grid.ParsePolicy(g.Policy); err != nil {
		errs = append(errs, err.Error())
	}
	if g.Size < 0 {
		errs = append(errs, fmt.Sprintf("grid size must not be negative, got %d", g.Size))
	}
	if !(g.Spacing > 0) || !isFinite(g.Spacing) {
		errs = append(errs, fmt.Sprintf("grid spacing must be positive, got %v", g.Spacing))
	}
	switch grid.SpacingUnit(strings.ToLower(g.SpacingUnit)) {
	case "", grid.UnitPixel, grid.UnitArcsec:
	default:
		errs = append(errs, fmt.Sprintf("grid spacing unit must be pixel or arcsec, got %q", g.SpacingUnit))
	}
	for _, p := range g.Percentiles {
		if p < 0 || p > 100 {
			errs = append(errs, fmt.Sprintf("grid percentile %v outside [0, 100]", p))
			break
		}
	}
	if g.SparseStride < 0 || g.Levels < 0 {
		errs = append(errs, "grid stride and levels must not be negative")
	}
	return joinSection("grid", errs)
}

func validateSimulationSettings(s *Settings) error {
	sim := &s.Simulation
	var errs []string
	switch strings.ToLower(sim.Source) {
	case "", SourceSimulate:
	case SourceFixtures:
		if strings.TrimSpace(sim.FixtureDir) == "" {
			errs = append(errs, "fixture directory is required when the image source is fixtures")
		}
	default:
		errs = append(errs, fmt.Sprintf("image source must be %s or %s, got %q", SourceSimulate, SourceFixtures, sim.Source))
	}
	if _, err := simulate.ParseNoise(strings.ToLower(sim.Noise)); err != nil {
		errs = append(errs, err.Error())
	}
	if sim.NoiseLevel < 0 || sim.GalaxyFlux < 0 || sim.GalaxyRadius < 0 {
		errs = append(errs, "noise level, galaxy flux and galaxy radius must not be negative")
	}
	if _, err := s.Backend(); err != nil {
		errs = append(errs, err.Error())
	}
	if sim.NumTotal < 0 || sim.NumDetect < 0 || sim.NumDetect > sim.NumTotal {
		errs = append(errs, fmt.Sprintf("simulated epochs need 0 <= numdetect <= numtotal, got %d and %d", sim.NumDetect, sim.NumTotal))
	}
	if len(sim.LightCurve) > 0 && len(sim.LightCurve) != sim.NumDetect {
		errs = append(errs, fmt.Sprintf("simulated light curve has %d points for %d detection epochs", len(sim.LightCurve), sim.NumDetect))
	}
	if sim.Cadence < 0 {
		errs = append(errs, "simulated cadence must not be negative")
	}
	return joinSection("simulation", errs)
}

func validatePhotometrySettings(s *Settings) error {
	p := &s.Photometry
	var errs []string
	if math.IsNaN(p.Aperture.Radius) {
		errs = append(errs, "aperture radius must be a number")
	}
	if bg := p.Aperture.Background; bg.MinKeepFraction < 0 || bg.MinKeepFraction > 1 {
		errs = append(errs, fmt.Sprintf("background keep fraction must be in [0, 1], got %v", bg.MinKeepFraction))
	}
	for name, zp := range p.ZeroPoints {
		if _, err := survey.ParseBand(name); err != nil {
			errs = append(errs, fmt.Sprintf("zero point for unknown band %q", name))
		} else if !isFinite(zp) {
			errs = append(errs, fmt.Sprintf("zero point for %s is not finite", name))
		}
	}
	return joinSection("photometry", errs)
}

func validateOutputSettings(s *Settings) error {
	o := &s.Output
	var errs []string
	if strings.TrimSpace(o.Dir) == "" {
		errs = append(errs, "output directory is required")
	}
	// The label is part of the light curve file name.
	if strings.ContainsAny(o.Label, `/\`) {
		errs = append(errs, fmt.Sprintf("output label must not contain path separators, got %q", o.Label))
	}
	return joinSection("output", errs)
}

func validateTelemetrySettings(s *Settings) error {
	t := &s.Telemetry
	var errs []string
	if t.Prometheus.Enabled {
		if _, _, err := net.SplitHostPort(t.Prometheus.Listen); err != nil {
			errs = append(errs, fmt.Sprintf("prometheus listen address %q: %v", t.Prometheus.Listen, err))
		}
	}
	if t.Sentry.Enabled && strings.TrimSpace(t.Sentry.DSN) == "" {
		errs = append(errs, "sentry DSN is required when sentry is enabled")
	}
	return joinSection("telemetry", errs)
}

func validateBatchSettings(s *Settings) error {
	if s.Batch.Workers < 0 {
		return fmt.Errorf("batch: workers must not be negative, got %d", s.Batch.Workers)
	}
	return nil
}

func joinSection(section string, errs []string) error {
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%s: %s", section, strings.Join(errs, "; "))
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
