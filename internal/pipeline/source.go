package pipeline

import (
	"context"
	"path/filepath"
	"strconv"

	"github.com/romanasp/campari/internal/errors"
	"github.com/romanasp/campari/internal/imaging"
	"github.com/romanasp/campari/internal/simulate"
	"github.com/romanasp/campari/internal/survey"
	"github.com/romanasp/campari/internal/wcs"
)

// Stamp is one cutout around a source together with the exposure it was
// taken from. WCS describes the cutout pixels.
type Stamp struct {
	Exposure survey.Exposure
	Image    *imaging.Image
	WCS      wcs.Header
}

// ImageSource acquires the cutouts of a source, one per exposure and in the
// order given.
type ImageSource interface {
	Stamps(ctx context.Context, src survey.Source, band survey.Band, exposures []survey.Exposure) ([]Stamp, error)
}

// SimulatedSource renders every stamp with the synthetic image generator.
// Request is the scene template; the source position, band and host offset
// come from the source, and the seed is mixed with the source ID so that
// sources in a batch do not share noise.
type SimulatedSource struct {
	Request simulate.Request
}

func (s SimulatedSource) Stamps(ctx context.Context, src survey.Source, band survey.Band, exposures []survey.Exposure) ([]Stamp, error) {
	if err := ctx.Err(); err != nil {
		return nil, cancelled(err, src.ID, band)
	}
	res, err := s.Render(src, band, exposures)
	if err != nil {
		return nil, err
	}
	out := make([]Stamp, res.Len())
	for i := range out {
		out[i] = Stamp{Exposure: exposures[i], Image: res.Images[i], WCS: res.CutoutWCS[i]}
	}
	return out, nil
}

// Render simulates the full scene of src on exposures. Writing the result
// with simulate.WriteFixtures under FixtureDir gives a FixtureSource the
// same stamps.
func (s SimulatedSource) Render(src survey.Source, band survey.Band, exposures []survey.Exposure) (*simulate.Result, error) {
	req := s.Request
	req.SourceID = src.ID
	req.RA, req.Dec = src.RA, src.Dec
	req.Band = band
	if src.Host != nil {
		req.GalaxyRAOffset = src.Host.RA - src.RA
		req.GalaxyDecOffset = src.Host.Dec - src.Dec
	}
	req.Seed ^= uint64(src.ID)
	return simulate.SimulateExposures(req, exposures, simulate.NewRand(req.Seed))
}

// FixtureDir is where the stamps of a source are stored under root.
func FixtureDir(root string, sourceID int64, band survey.Band) string {
	return filepath.Join(root, strconv.FormatInt(sourceID, 10), string(band))
}

// FixtureSource serves stamps written by simulate.WriteFixtures under
// FixtureDir(Root, id, band). Stamps are matched to exposures by pointing
// and detector.
type FixtureSource struct {
	Root string
}

func (s FixtureSource) Stamps(ctx context.Context, src survey.Source, band survey.Band, exposures []survey.Exposure) ([]Stamp, error) {
	if err := ctx.Err(); err != nil {
		return nil, cancelled(err, src.ID, band)
	}

	dir := FixtureDir(s.Root, src.ID, band)
	res, err := simulate.LoadFixtures(dir)
	if err != nil {
		return nil, err
	}
	if res.Reference.SourceID != src.ID || res.Reference.Band != band {
		return nil, errors.Newf("fixtures in %s belong to source %d in %s", dir, res.Reference.SourceID, res.Reference.Band).
			Category(errors.CategoryConflict).
			SourceContext(src.ID, string(band)).
			Build()
	}

	byKey := make(map[survey.Key]int, len(res.Reference.Epochs))
	for i, ep := range res.Reference.Epochs {
		byKey[survey.Key{Pointing: ep.Pointing, Detector: ep.Detector}] = i
	}

	out := make([]Stamp, len(exposures))
	for i, e := range exposures {
		j, ok := byKey[e.Key()]
		if !ok {
			return nil, errors.Newf("no fixture stamp for pointing %d detector %d", e.Pointing, e.Detector).
				Category(errors.CategoryNotFound).
				SourceContext(src.ID, string(band)).
				Context("path", dir).
				Build()
		}
		out[i] = Stamp{Exposure: e, Image: res.Images[j], WCS: res.CutoutWCS[j]}
	}
	return out, nil
}

func cancelled(err error, sourceID int64, band survey.Band) error {
	return errors.New(err).
		Category(errors.CategoryCancellation).
		SourceContext(sourceID, string(band)).
		Build()
}
