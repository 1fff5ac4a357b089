// Package exposure enumerates the survey exposures covering a source and
// splits them into background and detection epochs.
package exposure

import (
	"cmp"
	"math"
	"slices"

	"github.com/romanasp/campari/internal/catalog"
	"github.com/romanasp/campari/internal/errors"
	"github.com/romanasp/campari/internal/logger"
	"github.com/romanasp/campari/internal/survey"
)

var log = logger.Global().Module("exposure")

// Query selects the exposures for one source in one band.
type Query struct {
	SourceID int64
	RA       float64
	Dec      float64
	Start    float64 // detection window, MJD, inclusive
	End      float64 // detection window, MJD, inclusive
	Peak     float64
	Band     survey.Band

	// Static sources have no detection window. Their earliest epochs
	// serve as background and the later ones are measured.
	Static bool

	// Caps on each subset. Zero or negative means no cap.
	MaxBackground int
	MaxDetection  int

	// Optional restrictions applied before anything else.
	Pointings []int
	Detectors []int

	// StampSize in pixels; when positive the position must lie at least
	// half a stamp inside the footprint edge.
	StampSize int

	Truth TruthModel
}

// QueryFor builds a query from a resolved source.
func QueryFor(src survey.Source, band survey.Band, maxBackground, maxDetection int) Query {
	return Query{
		SourceID:      src.ID,
		RA:            src.RA,
		Dec:           src.Dec,
		Start:         src.Start,
		End:           src.End,
		Peak:          src.Peak,
		Band:          band,
		Static:        src.Class == survey.ClassStatic,
		MaxBackground: maxBackground,
		MaxDetection:  maxDetection,
	}
}

// Margin returns the footprint edge margin in degrees implied by StampSize.
func (q Query) Margin() float64 {
	if q.StampSize <= 0 {
		return 0
	}
	return float64(q.StampSize) / 2 * survey.PixelScale / 3600
}

func (q Query) validate() error {
	switch {
	case !q.Band.Valid():
		return errors.Newf("unknown band %q", q.Band).
			Category(errors.CategoryValidation).
			Build()
	case math.IsNaN(q.RA) || math.IsNaN(q.Dec) || q.Dec < -90 || q.Dec > 90:
		return errors.Newf("invalid position ra=%v dec=%v", q.RA, q.Dec).
			Category(errors.CategoryValidation).
			Build()
	case !q.Static && q.Start > q.End:
		return errors.Newf("detection window start %v is after end %v", q.Start, q.End).
			Category(errors.CategoryValidation).
			Build()
	}
	return nil
}

// FindExposures returns the background and detection exposures of q, each
// sorted by epoch and capped. It fails with an empty-exposure-list error
// when either subset is empty.
func FindExposures(ref *catalog.ReferenceData, q Query) (survey.ExposureList, error) {
	if err := q.validate(); err != nil {
		return survey.ExposureList{}, err
	}

	var found []survey.Exposure
	for _, e := range ref.Covering(q.RA, q.Dec, q.Band, q.Margin()) {
		if len(q.Pointings) > 0 && !slices.Contains(q.Pointings, e.Pointing) {
			continue
		}
		if len(q.Detectors) > 0 && !slices.Contains(q.Detectors, e.Detector) {
			continue
		}
		found = append(found, e)
	}

	var (
		list                            survey.ExposureList
		foundBackground, foundDetection int
	)
	if q.Static {
		list, foundBackground, foundDetection = splitStatic(found, q.MaxBackground, q.MaxDetection)
	} else {
		list, foundBackground, foundDetection = q.splitWindow(found)
	}
	if q.Truth != nil {
		for _, subset := range [][]survey.Exposure{list.Background, list.Detection} {
			for i := range subset {
				subset[i].TrueFlux = q.Truth.TrueFlux(q.SourceID, subset[i])
			}
		}
	}

	if len(list.Background) == 0 || len(list.Detection) == 0 {
		return list, errors.Newf("source %d has %d background and %d detection exposures in %s",
			q.SourceID, len(list.Background), len(list.Detection), q.Band).
			Category(errors.CategoryEmptyExposureList).
			SourceContext(q.SourceID, string(q.Band)).
			Context("operation", "find_exposures").
			Build()
	}

	log.Debug("exposures selected",
		logger.Int64("source_id", q.SourceID),
		logger.String("band", string(q.Band)),
		logger.Int("background_found", foundBackground),
		logger.Int("detection_found", foundDetection),
		logger.Int("background", len(list.Background)),
		logger.Int("detection", len(list.Detection)))

	return list, nil
}

// splitWindow classifies exposures by the detection window and caps each subset.
func (q Query) splitWindow(exps []survey.Exposure) (list survey.ExposureList, background, detection int) {
	for _, e := range exps {
		e.Detected = q.inWindow(e.MJD)
		if e.Detected {
			list.Detection = append(list.Detection, e)
		} else {
			list.Background = append(list.Background, e)
		}
	}
	background, detection = len(list.Background), len(list.Detection)
	list.Detection = closestToPeak(list.Detection, q.Peak, q.MaxDetection)
	list.Background = spread(list.Background, q.MaxBackground)
	return list, background, detection
}

// splitStatic uses the earliest maxBackground epochs as background, half of
// them when uncapped, and measures up to maxDetection of the epochs after.
// At least one epoch is left for each side when there are two or more.
func splitStatic(exps []survey.Exposure, maxBackground, maxDetection int) (list survey.ExposureList, background, detection int) {
	if len(exps) == 0 {
		return list, 0, 0
	}
	nb := maxBackground
	if nb <= 0 {
		nb = len(exps) / 2
	}
	nb = max(1, min(nb, len(exps)-1))

	list.Background = slices.Clone(exps[:nb])
	list.Detection = slices.Clone(exps[nb:])
	for i := range list.Detection {
		list.Detection[i].Detected = true
	}
	background, detection = len(list.Background), len(list.Detection)
	if maxDetection > 0 && len(list.Detection) > maxDetection {
		list.Detection = list.Detection[:maxDetection]
	}
	return list, background, detection
}

func (q Query) inWindow(mjd float64) bool {
	return mjd >= q.Start && mjd <= q.End
}

// closestToPeak keeps the n exposures nearest peak in time, earlier epochs
// winning ties, and returns them in chronological order. The input is
// chronological.
func closestToPeak(exps []survey.Exposure, peak float64, n int) []survey.Exposure {
	if n <= 0 || len(exps) <= n {
		return exps
	}
	byDistance := slices.Clone(exps)
	slices.SortStableFunc(byDistance, func(a, b survey.Exposure) int {
		if c := cmp.Compare(math.Abs(a.MJD-peak), math.Abs(b.MJD-peak)); c != 0 {
			return c
		}
		return survey.CompareEpoch(a, b)
	})
	kept := byDistance[:n]
	slices.SortStableFunc(kept, survey.CompareEpoch)
	return kept
}

// spread keeps n exposures evenly distributed over the chronological input,
// always including the first and the last.
func spread(exps []survey.Exposure, n int) []survey.Exposure {
	total := len(exps)
	if n <= 0 || total <= n {
		return exps
	}
	if n == 1 {
		return exps[:1]
	}
	out := make([]survey.Exposure, 0, n)
	for i := range n {
		j := int(math.Round(float64(i) * float64(total-1) / float64(n-1)))
		out = append(out, exps[j])
	}
	return out
}
