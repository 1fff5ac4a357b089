package analysis

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"text/tabwriter"
	"time"

	"github.com/romanasp/campari/internal/errors"
	"github.com/romanasp/campari/internal/logger"
	"github.com/romanasp/campari/internal/observability"
	"github.com/romanasp/campari/internal/pipeline"
)

// BatchRequest is the part of a light curve request shared by every source.
type BatchRequest struct {
	Band      string
	Label     string
	Pointings []int
	Detectors []int
}

// RunBatch processes ids concurrently and prints one line per source. The
// returned error joins the per-source failures.
func RunBatch(ctx context.Context, env *Environment, ids []int64, in BatchRequest, out io.Writer) (*pipeline.BatchReport, error) {
	template, err := env.request(0, in.Band, in.Label, in.Pointings, in.Detectors)
	if err != nil {
		return nil, err
	}

	var extra []pipeline.Option
	if env.Settings.Telemetry.Prometheus.Enabled {
		m, err := observability.NewMetrics()
		if err != nil {
			return nil, err
		}
		endpoint, err := observability.NewEndpoint(env.Settings, m)
		if err != nil {
			return nil, err
		}
		var wg sync.WaitGroup
		quit := make(chan struct{})
		endpoint.Start(&wg, quit)
		defer func() {
			close(quit)
			wg.Wait()
		}()

		env.Store.SetRecorder(m.Pipeline)
		extra = append(extra, pipeline.WithRecorder(m.Pipeline))
	}

	p, err := env.Pipeline(extra...)
	if err != nil {
		return nil, err
	}
	batch := pipeline.Batch{Pipeline: p, Workers: env.Settings.Batch.Workers, Template: template}
	report, runErr := batch.Run(ctx, ids)
	if report != nil {
		if err := writeReport(out, report); err != nil {
			log.Warn("failed to print batch report", logger.Error(err))
		}
	}
	if runErr != nil {
		return report, runErr
	}
	return report, report.Err()
}

func writeReport(out io.Writer, r *pipeline.BatchReport) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SOURCE\tSTATUS\tPOINTS\tDETAIL")
	for _, o := range r.Succeeded {
		fmt.Fprintf(tw, "%d\tok\t%d\t%s\n", o.SourceID, o.Points, o.Path)
	}
	for _, f := range r.Failed {
		fmt.Fprintf(tw, "%d\t%s\t-\t%v\n", f.SourceID, f.Category, f.Err)
	}
	for _, id := range r.Skipped {
		fmt.Fprintf(tw, "%d\tskipped\t-\t\n", id)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(out, "\nrun %s: %d succeeded, %d failed, %d skipped in %s\n",
		r.RunID, len(r.Succeeded), len(r.Failed), len(r.Skipped), r.Duration.Round(time.Millisecond))
	return err
}

// ReadSourceIDs parses one source ID per line. Blank lines and lines starting
// with # are ignored.
func ReadSourceIDs(r io.Reader) ([]int64, error) {
	var ids []int64
	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		id, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			return nil, errors.Newf("line %d: invalid source ID %q", line, text).
				Category(errors.CategoryFileParsing).
				Context("operation", "read-source-ids").
				Build()
		}
		ids = append(ids, id)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.New(err).
			Category(errors.CategoryFileIO).
			Context("operation", "read-source-ids").
			Build()
	}
	return ids, nil
}
