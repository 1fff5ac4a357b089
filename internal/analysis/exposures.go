package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/romanasp/campari/internal/errors"
	"github.com/romanasp/campari/internal/survey"
)

// ExposureRequest selects the exposures of one source without measuring them.
type ExposureRequest struct {
	SourceID  int64
	Band      string
	Pointings []int
	Detectors []int
}

// exposureReport is the JSON form printed by Exposures.
type exposureReport struct {
	Source     survey.Source     `json:"source"`
	Band       survey.Band       `json:"band"`
	Background []survey.Exposure `json:"background"`
	Detection  []survey.Exposure `json:"detection"`
}

// Exposures lists the background and detection exposures selected for a
// source, as a table or as JSON.
func Exposures(ctx context.Context, env *Environment, in ExposureRequest, out io.Writer, asJSON bool) (survey.ExposureList, error) {
	req, err := env.request(in.SourceID, in.Band, "", in.Pointings, in.Detectors)
	if err != nil {
		return survey.ExposureList{}, err
	}
	p, err := env.Pipeline()
	if err != nil {
		return survey.ExposureList{}, err
	}
	src, list, err := p.Select(ctx, req)
	if err != nil {
		return survey.ExposureList{}, err
	}

	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		report := exposureReport{Source: src, Band: req.Band, Background: list.Background, Detection: list.Detection}
		if err := enc.Encode(report); err != nil {
			return list, errors.New(err).
				Category(errors.CategoryFileIO).
				Context("operation", "encode-exposures").
				Build()
		}
		return list, nil
	}

	fmt.Fprintf(out, "source %d  band %s  %d background, %d detection\n\n",
		src.ID, req.Band, len(list.Background), len(list.Detection))
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "POINTING\tDETECTOR\tMJD\tDETECTED\tTRUE_FLUX")
	for _, e := range list.Chronological() {
		fmt.Fprintf(tw, "%d\t%d\t%.3f\t%t\t%.2f\n", e.Pointing, e.Detector, e.MJD, e.Detected, e.TrueFlux)
	}
	return list, tw.Flush()
}
