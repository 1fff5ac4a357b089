package survey

import (
	"math"
	"strings"

	"github.com/romanasp/campari/internal/errors"
)

// Band is a survey filter.
type Band string

const (
	R062 Band = "R062"
	Z087 Band = "Z087"
	Y106 Band = "Y106"
	J129 Band = "J129"
	H158 Band = "H158"
	F184 Band = "F184"
	K213 Band = "K213"
	W146 Band = "W146"
)

const (
	// ExposureTime is the nominal exposure length in seconds.
	ExposureTime = 302.275
	// CollectingArea is the effective primary mirror area in cm^2.
	CollectingArea = 37570.0
	// PixelScale is the detector pixel scale in arcseconds.
	PixelScale = 0.11
	// DetectorSize is the number of pixels per side of one detector.
	DetectorSize = 4088
)

type bandInfo struct {
	zeroPoint float64
	minWave   float64 // microns
	maxWave   float64
}

// Y106 is the reference zero point; the other bands are scaled from the filter
// throughput and width and can be overridden in configuration.
var bands = map[Band]bandInfo{
	R062: {zeroPoint: 15.547, minWave: 0.480, maxWave: 0.760},
	Z087: {zeroPoint: 14.991, minWave: 0.760, maxWave: 0.977},
	Y106: {zeroPoint: 15.023547191066587, minWave: 0.927, maxWave: 1.192},
	J129: {zeroPoint: 15.023, minWave: 1.131, maxWave: 1.454},
	H158: {zeroPoint: 15.023, minWave: 1.380, maxWave: 1.774},
	F184: {zeroPoint: 14.551, minWave: 1.683, maxWave: 2.000},
	K213: {zeroPoint: 14.400, minWave: 1.950, maxWave: 2.300},
	W146: {zeroPoint: 16.237, minWave: 0.927, maxWave: 2.000},
}

// Bands returns every filter in wavelength order, with the wide filter last.
func Bands() []Band {
	return []Band{R062, Z087, Y106, J129, H158, F184, K213, W146}
}

// ParseBand accepts a filter name in any case.
func ParseBand(s string) (Band, error) {
	b := Band(strings.ToUpper(strings.TrimSpace(s)))
	if _, ok := bands[b]; !ok {
		return "", errors.Newf("unknown band %q", s).
			Category(errors.CategoryValidation).
			Context("operation", "parse_band").
			Build()
	}
	return b, nil
}

// Valid reports whether b is a known filter.
func (b Band) Valid() bool {
	_, ok := bands[b]
	return ok
}

func (b Band) String() string { return string(b) }

// ZeroPoint returns the default zero point, NaN for an unknown band.
func (b Band) ZeroPoint() float64 {
	info, ok := bands[b]
	if !ok {
		return math.NaN()
	}
	return info.zeroPoint
}

// WavelengthRange returns the filter edges in microns.
func (b Band) WavelengthRange() (lo, hi float64) {
	info := bands[b]
	return info.minWave, info.maxWave
}

// EffectiveWavelength returns the filter midpoint in microns.
func (b Band) EffectiveWavelength() float64 {
	lo, hi := b.WavelengthRange()
	return (lo + hi) / 2
}
