package analysis

import (
	"context"
	"fmt"
	"io"
	"math"

	"github.com/romanasp/campari/internal/lightcurve"
	"github.com/romanasp/campari/internal/logger"
	"github.com/romanasp/campari/internal/pipeline"
)

// LightCurveRequest is the command-line form of a single light curve run.
type LightCurveRequest struct {
	SourceID  int64
	Band      string
	Label     string
	Pointings []int
	Detectors []int
}

// LightCurve builds, writes and prints the light curve of one source.
func LightCurve(ctx context.Context, env *Environment, in LightCurveRequest, out io.Writer) (*pipeline.Result, error) {
	req, err := env.request(in.SourceID, in.Band, in.Label, in.Pointings, in.Detectors)
	if err != nil {
		return nil, err
	}
	p, err := env.Pipeline()
	if err != nil {
		return nil, err
	}

	res, err := p.Run(ctx, req)
	if err != nil {
		return nil, err
	}

	fmt.Fprintf(out, "source %d  band %s  ra %.6f  dec %.6f  run %s\n",
		res.Source.ID, req.Band, res.Source.RA, res.Source.Dec, p.RunID())
	fmt.Fprintf(out, "%d background, %d detection exposures, %d grid points\n\n",
		len(res.Exposures.Background), len(res.Exposures.Detection), res.Grid.Len())
	if err := lightcurve.WriteTable(out, res.Curve); err != nil {
		return res, err
	}
	writeSummary(out, lightcurve.Summarize(res.Curve))
	fmt.Fprintf(out, "wrote %s\n", res.Path)

	log.Info("light curve complete",
		logger.Int64("source_id", res.Source.ID),
		logger.String("band", string(req.Band)),
		logger.Int("points", res.Curve.Len()),
		logger.Duration("duration", res.Duration))
	return res, nil
}

func writeSummary(out io.Writer, s lightcurve.Summary) {
	fmt.Fprintf(out, "\n%d points, %d detected", s.Points, s.Detected)
	if !math.IsNaN(s.PeakFlux) {
		fmt.Fprintf(out, "; peak %.2f at MJD %.3f (mag %.3f)", s.PeakFlux, s.PeakMJD, s.PeakMag)
	}
	if s.Pulls > 0 {
		fmt.Fprintf(out, "; pull mean %.3f rms %.3f over %d", s.MeanPull, s.RMSPull, s.Pulls)
	}
	fmt.Fprintln(out)
}
