package catalog

import (
	"context"
	"time"

	"github.com/romanasp/campari/internal/errors"
	"github.com/romanasp/campari/internal/logger"
	"github.com/romanasp/campari/internal/survey"
)

// LoadReferenceData reads the shard index and the tiling for bands from store.
// An empty bands slice loads every known band.
func LoadReferenceData(ctx context.Context, store Store, bands []survey.Band, cellDeg float64) (*ReferenceData, error) {
	start := time.Now()

	shards, err := store.ShardIndex(ctx)
	if err != nil {
		return nil, err
	}

	if len(bands) == 0 {
		bands = survey.Bands()
	}
	var exposures []survey.Exposure
	for _, b := range bands {
		if err := ctx.Err(); err != nil {
			return nil, errors.New(err).
				Category(errors.CategoryCancellation).
				Context("operation", "load_reference").
				Build()
		}
		list, err := store.TileFootprints(ctx, b)
		if err != nil {
			return nil, err
		}
		exposures = append(exposures, list...)
	}

	ref, err := NewReferenceData(shards, exposures, cellDeg)
	if err != nil {
		return nil, err
	}
	log.Info("reference data loaded",
		logger.Int("shards", len(shards)),
		logger.Int("exposures", len(exposures)),
		logger.Duration("duration", time.Since(start)))
	return ref, nil
}

// Resolve locates sourceID in ref and reads its catalog row from reader.
// band is only used to annotate errors.
func Resolve(ctx context.Context, reader ShardReader, ref *ReferenceData, sourceID int64, band survey.Band) (survey.Source, error) {
	shardID, row, err := ref.Locate(sourceID)
	if err != nil {
		return survey.Source{}, err
	}

	rows, err := reader.ReadShard(ctx, shardID)
	if err != nil {
		return survey.Source{}, err
	}
	if row >= len(rows) || rows[row].ID != sourceID {
		return survey.Source{}, errors.Newf("shard %d row %d does not hold source %d", shardID, row, sourceID).
			Category(errors.CategoryConflict).
			SourceContext(sourceID, string(band)).
			Context("operation", "resolve").
			Build()
	}
	return rows[row].Source(row), nil
}
