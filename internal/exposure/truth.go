package exposure

import (
	"math"

	"github.com/romanasp/campari/internal/survey"
)

// TruthModel supplies the true source flux at an exposure.
type TruthModel interface {
	TrueFlux(sourceID int64, e survey.Exposure) float64
}

// TruthFunc adapts a function to TruthModel.
type TruthFunc func(sourceID int64, e survey.Exposure) float64

func (f TruthFunc) TrueFlux(sourceID int64, e survey.Exposure) float64 { return f(sourceID, e) }

// RecordedTruth keeps the flux stored with the tiling.
type RecordedTruth struct{}

func (RecordedTruth) TrueFlux(_ int64, e survey.Exposure) float64 { return e.TrueFlux }

// SimpleModel is a rise/decline transient light curve, zero outside the
// detection window:
//
//	f(t) = PeakFlux · exp(−(t−peak)/Fall) / (1 + exp(−(t−peak)/Rise))
//
// normalised so that f(peak) = PeakFlux. A static model is PeakFlux at
// every epoch.
type SimpleModel struct {
	PeakFlux float64
	Rise     float64 // days
	Fall     float64 // days
	Start    float64
	End      float64
	Peak     float64
	Static   bool
}

// NewSimpleModel builds a model over a source's window. Non-positive time
// constants fall back to 5 days rise and 30 days decline.
func NewSimpleModel(src survey.Source, peakFlux, rise, fall float64) SimpleModel {
	if rise <= 0 {
		rise = 5
	}
	if fall <= 0 {
		fall = 30
	}
	return SimpleModel{
		PeakFlux: peakFlux,
		Rise:     rise,
		Fall:     fall,
		Start:    src.Start,
		End:      src.End,
		Peak:     src.Peak,
		Static:   src.Class == survey.ClassStatic,
	}
}

// At evaluates the model at mjd.
func (m SimpleModel) At(mjd float64) float64 {
	if m.Static {
		return m.PeakFlux
	}
	if mjd < m.Start || mjd > m.End {
		return 0
	}
	dt := mjd - m.Peak
	f := math.Exp(-dt/m.Fall) / (1 + math.Exp(-dt/m.Rise))
	return m.PeakFlux * 2 * f
}

func (m SimpleModel) TrueFlux(_ int64, e survey.Exposure) float64 { return m.At(e.MJD) }
