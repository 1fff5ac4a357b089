package analysis

import (
	"context"
	"os"

	"github.com/romanasp/campari/internal/catalog"
	"github.com/romanasp/campari/internal/conf"
	"github.com/romanasp/campari/internal/errors"
	"github.com/romanasp/campari/internal/logger"
)

// IngestCounts are the table sizes after an ingest.
type IngestCounts struct {
	Sources   int64
	Exposures int64
}

// Ingest loads source and exposure CSV files into the catalog database.
// Either path may be empty.
func Ingest(ctx context.Context, settings *conf.Settings, sourcesCSV, exposuresCSV string) (IngestCounts, error) {
	path := conf.ExpandPath(settings.Catalog.Path)
	store, err := catalog.OpenSQLStore(path, settings.CatalogOptions())
	if err != nil {
		return IngestCounts{}, err
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Warn("failed to close catalog", logger.Error(err))
		}
	}()

	if sourcesCSV != "" {
		var rows []catalog.SourceRow
		err := readFile(sourcesCSV, func(f *os.File) (err error) {
			rows, err = catalog.ReadSourcesCSV(f)
			return err
		})
		if err != nil {
			return IngestCounts{}, err
		}
		if err := store.PutSources(ctx, rows); err != nil {
			return IngestCounts{}, err
		}
		log.Info("sources ingested", logger.String("file", sourcesCSV), logger.Int("rows", len(rows)))
	}

	if exposuresCSV != "" {
		var n int
		err := readFile(exposuresCSV, func(f *os.File) error {
			exposures, err := catalog.ReadExposuresCSV(f)
			if err != nil {
				return err
			}
			n = len(exposures)
			return store.PutExposures(ctx, exposures)
		})
		if err != nil {
			return IngestCounts{}, err
		}
		log.Info("exposures ingested", logger.String("file", exposuresCSV), logger.Int("rows", n))
	}

	var counts IngestCounts
	counts.Sources, counts.Exposures, err = store.Counts(ctx)
	if err != nil {
		return IngestCounts{}, err
	}
	log.Info("catalog updated",
		logger.String("catalog", path),
		logger.Int64("sources", counts.Sources),
		logger.Int64("exposures", counts.Exposures))
	return counts, nil
}

func readFile(path string, fn func(*os.File) error) error {
	f, err := os.Open(path) //nolint:gosec // G304: path is a user-supplied input file
	if err != nil {
		return errors.New(err).
			Category(errors.CategoryFileIO).
			Context("operation", "open-input").
			Context("path", path).
			Build()
	}
	defer func() { _ = f.Close() }()
	return fn(f)
}
