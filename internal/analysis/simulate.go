package analysis

import (
	"context"

	"github.com/romanasp/campari/internal/conf"
	"github.com/romanasp/campari/internal/logger"
	"github.com/romanasp/campari/internal/pipeline"
	"github.com/romanasp/campari/internal/simulate"
	"github.com/romanasp/campari/internal/survey"
)

// SimulateFixtures renders the selected exposures of a catalog source and
// stores them where the fixtures image source looks for them. It returns the
// fixture directory.
func SimulateFixtures(ctx context.Context, env *Environment, sourceID int64, band string, overwrite bool) (string, error) {
	req, err := env.request(sourceID, band, "", nil, nil)
	if err != nil {
		return "", err
	}
	p, err := env.Pipeline()
	if err != nil {
		return "", err
	}
	src, list, err := p.Select(ctx, req)
	if err != nil {
		return "", err
	}

	simReq, err := env.Settings.SimulationRequest()
	if err != nil {
		return "", err
	}
	res, err := pipeline.SimulatedSource{Request: simReq}.Render(src, req.Band, list.Chronological())
	if err != nil {
		return "", err
	}

	dir := pipeline.FixtureDir(conf.ExpandPath(env.Settings.Simulation.FixtureDir), src.ID, req.Band)
	if err := simulate.WriteFixtures(dir, res, overwrite); err != nil {
		return "", err
	}
	log.Info("fixtures written",
		logger.Int64("source_id", src.ID),
		logger.String("band", string(req.Band)),
		logger.Int("epochs", res.Len()),
		logger.String("dir", dir))
	return dir, nil
}

// SimulateScene renders the configured standalone scene, which needs no
// catalog, into dir.
func SimulateScene(settings *conf.Settings, band string, dir string, overwrite bool) (*simulate.Result, error) {
	req, err := settings.SimulationRequest()
	if err != nil {
		return nil, err
	}
	if band != "" {
		if req.Band, err = survey.ParseBand(band); err != nil {
			return nil, err
		}
	}

	res, err := simulate.SimulateImages(req, simulate.NewRand(req.Seed))
	if err != nil {
		return nil, err
	}
	if err := simulate.WriteFixtures(conf.ExpandPath(dir), res, overwrite); err != nil {
		return nil, err
	}
	log.Info("scene written",
		logger.String("band", string(req.Band)),
		logger.Int("epochs", res.Len()),
		logger.String("dir", dir))
	return res, nil
}
