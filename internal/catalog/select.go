package catalog

import (
	"context"
	"encoding/csv"
	"io"
	"math"
	"strconv"

	"github.com/romanasp/campari/internal/errors"
	"github.com/romanasp/campari/internal/logger"
	"github.com/romanasp/campari/internal/survey"
)

// SourceFilter picks sources out of one shard. Magnitude limits are
// inclusive; a NaN limit is open. Sources without a peak magnitude only
// match when both limits are open.
type SourceFilter struct {
	ShardID int
	Class   survey.ObjectClass // empty matches every class
	MinMag  float64
	MaxMag  float64
}

// AnyMagnitude is a filter with open magnitude limits.
func AnyMagnitude(shardID int, class survey.ObjectClass) SourceFilter {
	return SourceFilter{ShardID: shardID, Class: class, MinMag: math.NaN(), MaxMag: math.NaN()}
}

func (f SourceFilter) validate() error {
	if !math.IsNaN(f.MinMag) && !math.IsNaN(f.MaxMag) && f.MinMag > f.MaxMag {
		return errors.Newf("magnitude limits [%g, %g] are reversed", f.MinMag, f.MaxMag).
			Category(errors.CategoryValidation).
			Build()
	}
	if math.IsInf(f.MinMag, 0) || math.IsInf(f.MaxMag, 0) {
		return errors.Newf("magnitude limits must be finite").
			Category(errors.CategoryValidation).
			Build()
	}
	return nil
}

// SelectSourceIDs returns the IDs of the sources matching f in ascending order.
// A shard with no sources at all is not found.
func (s *SQLStore) SelectSourceIDs(ctx context.Context, f SourceFilter) ([]int64, error) {
	if err := f.validate(); err != nil {
		return nil, err
	}

	var total int64
	if err := s.db.WithContext(ctx).Model(&SourceRecord{}).Where("shard_id = ?", f.ShardID).Count(&total).Error; err != nil {
		return nil, s.dbError(err, "select_sources")
	}
	if total == 0 {
		return nil, errors.Newf("shard %d does not exist", f.ShardID).
			Category(errors.CategoryNotFound).
			Context("operation", "select_sources").
			Build()
	}

	q := s.db.WithContext(ctx).Model(&SourceRecord{}).Where("shard_id = ?", f.ShardID)
	if f.Class != "" {
		q = q.Where("class = ?", string(f.Class))
	}
	if !math.IsNaN(f.MinMag) {
		q = q.Where("peak_mag >= ?", f.MinMag)
	}
	if !math.IsNaN(f.MaxMag) {
		q = q.Where("peak_mag <= ?", f.MaxMag)
	}

	var ids []int64
	if err := q.Order("id").Pluck("id", &ids).Error; err != nil {
		return nil, s.dbError(err, "select_sources")
	}
	log.Debug("sources selected",
		logger.Int("shard", f.ShardID),
		logger.String("class", string(f.Class)),
		logger.Int("matched", len(ids)),
		logger.Int64("shard_size", total))
	return ids, nil
}

// WriteSourceIDs writes one ID per line with no header, the format read by
// the batch command.
func WriteSourceIDs(w io.Writer, ids []int64) error {
	cw := csv.NewWriter(w)
	for _, id := range ids {
		if err := cw.Write([]string{strconv.FormatInt(id, 10)}); err != nil {
			return errors.New(err).
				Category(errors.CategoryFileIO).
				Context("operation", "write_source_ids").
				Build()
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return errors.New(err).
			Category(errors.CategoryFileIO).
			Context("operation", "write_source_ids").
			Build()
	}
	return nil
}
