// Package lightcurve assembles calibrated forced-photometry measurements into
// light curves and persists them as ECSV tables.
package lightcurve

import (
	"fmt"
	"path/filepath"

	"github.com/romanasp/campari/internal/errors"
	"github.com/romanasp/campari/internal/logger"
	"github.com/romanasp/campari/internal/photometry"
	"github.com/romanasp/campari/internal/survey"
)

var log = logger.Global().Module("lightcurve")

// Point is one calibrated epoch.
type Point struct {
	MJD          float64
	TrueFlux     float64
	MeasuredFlux float64
	FluxErr      float64
	Mag          float64
	MagErr       float64
	ZeroPoint    float64
	Band         survey.Band
	Detected     bool
	Pointing     int
	Detector     int
}

// Curve is the light curve of one source in one band.
type Curve struct {
	SourceID int64
	Band     survey.Band
	Label    string
	RA       float64
	Dec      float64
	RunID    string
	Points   []Point
}

// Len returns the number of epochs.
func (c *Curve) Len() int { return len(c.Points) }

// Assemble pairs each exposure with its measurement and calibrates it.
// exposures and measurements are matched by position and must be equally long.
func Assemble(src survey.Source, band survey.Band, label string, exposures []survey.Exposure, measurements []photometry.Measurement, cal *photometry.Calibrator) (*Curve, error) {
	if len(exposures) != len(measurements) {
		return nil, errors.Newf("%d exposures but %d measurements", len(exposures), len(measurements)).
			Category(errors.CategoryValidation).
			SourceContext(src.ID, string(band)).
			Build()
	}
	if !band.Valid() {
		return nil, errors.Newf("unknown band %q", band).
			Category(errors.CategoryValidation).
			SourceContext(src.ID, string(band)).
			Build()
	}
	if cal == nil {
		cal = photometry.DefaultCalibrator
	}

	lc := &Curve{
		SourceID: src.ID,
		Band:     band,
		Label:    label,
		RA:       src.RA,
		Dec:      src.Dec,
		Points:   make([]Point, len(exposures)),
	}
	for i, e := range exposures {
		m := measurements[i]
		mag, magErr, zp := cal.MagAndErr(m.Flux, m.FluxErr, band)
		lc.Points[i] = Point{
			MJD:          e.MJD,
			TrueFlux:     e.TrueFlux,
			MeasuredFlux: m.Flux,
			FluxErr:      m.FluxErr,
			Mag:          mag,
			MagErr:       magErr,
			ZeroPoint:    zp,
			Band:         band,
			Detected:     e.Detected,
			Pointing:     e.Pointing,
			Detector:     e.Detector,
		}
	}
	log.Debug("assembled light curve",
		logger.Int64("source_id", src.ID),
		logger.String("band", string(band)),
		logger.Int("points", len(lc.Points)))
	return lc, nil
}

// FileName is <id>_<band>_<label>_lc.ecsv.
func FileName(sourceID int64, band survey.Band, label string) string {
	return fmt.Sprintf("%d_%s_%s_lc.ecsv", sourceID, band, label)
}

// Path joins dir and FileName.
func Path(dir string, sourceID int64, band survey.Band, label string) string {
	return filepath.Join(dir, FileName(sourceID, band, label))
}
