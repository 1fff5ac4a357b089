package pipeline

import (
	"cmp"
	"context"
	"runtime"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/romanasp/campari/internal/errors"
	"github.com/romanasp/campari/internal/logger"
	"github.com/romanasp/campari/internal/survey"
)

// Batch runs a pipeline over many sources with a bounded number of workers.
type Batch struct {
	Pipeline *Pipeline
	// Workers caps concurrent sources; zero or negative uses GOMAXPROCS.
	Workers int
	// Template is copied into every request; SourceID is set per source.
	Template Request
}

// Outcome is the result of one source in a batch.
type Outcome struct {
	SourceID int64
	Path     string
	Points   int
	Duration time.Duration
}

// Failure is a source that could not be processed.
type Failure struct {
	SourceID int64
	Category errors.ErrorCategory
	Err      error
}

// BatchReport collects per-source outcomes, ordered by source ID.
type BatchReport struct {
	RunID     string
	Band      survey.Band
	Succeeded []Outcome
	Failed    []Failure
	Skipped   []int64 // not started before the batch was cancelled
	Duration  time.Duration
}

// Err joins the failures, nil when every source succeeded.
func (r *BatchReport) Err() error {
	errs := make([]error, len(r.Failed))
	for i, f := range r.Failed {
		errs[i] = f.Err
	}
	return errors.Join(errs...)
}

// Run processes every source. A failing source never stops the others; its
// error is collected in the report. Cancelling ctx stops scheduling new
// sources and returns the partial report with a cancellation error.
func (b *Batch) Run(ctx context.Context, sourceIDs []int64) (*BatchReport, error) {
	start := time.Now()
	workers := b.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	report := &BatchReport{RunID: b.Pipeline.RunID(), Band: b.Template.Band}
	var mu sync.Mutex
	started := make(map[int64]bool, len(sourceIDs))

	g := new(errgroup.Group)
	g.SetLimit(workers)
	for _, id := range sourceIDs {
		if ctx.Err() != nil {
			break
		}
		mu.Lock()
		started[id] = true
		mu.Unlock()

		g.Go(func() error {
			req := b.Template
			req.SourceID = id
			res, err := b.Pipeline.Run(ctx, req)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				report.Failed = append(report.Failed, Failure{SourceID: id, Category: errors.CategoryOf(err), Err: err})
				return nil
			}
			report.Succeeded = append(report.Succeeded, Outcome{
				SourceID: id,
				Path:     res.Path,
				Points:   res.Curve.Len(),
				Duration: res.Duration,
			})
			return nil
		})
	}
	_ = g.Wait()

	for _, id := range sourceIDs {
		if !started[id] {
			report.Skipped = append(report.Skipped, id)
		}
	}
	slices.SortFunc(report.Succeeded, func(a, b Outcome) int { return cmp.Compare(a.SourceID, b.SourceID) })
	slices.SortFunc(report.Failed, func(a, b Failure) int { return cmp.Compare(a.SourceID, b.SourceID) })
	report.Duration = time.Since(start)

	log.Info("batch finished",
		logger.String("run_id", report.RunID),
		logger.String("band", string(report.Band)),
		logger.Int("succeeded", len(report.Succeeded)),
		logger.Int("failed", len(report.Failed)),
		logger.Int("skipped", len(report.Skipped)),
		logger.Int("workers", workers),
		logger.Duration("duration", report.Duration))

	if err := ctx.Err(); err != nil {
		return report, errors.New(err).
			Category(errors.CategoryCancellation).
			Context("operation", "batch").
			Context("skipped", len(report.Skipped)).
			Build()
	}
	return report, nil
}
