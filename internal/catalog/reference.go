// Package catalog resolves sources to catalog shards and sky positions to
// survey pointings. All lookups run against immutable ReferenceData that is
// built once and shared by pointer across workers.
package catalog

import (
	"cmp"
	"slices"
	"sort"

	"github.com/romanasp/campari/internal/errors"
	"github.com/romanasp/campari/internal/logger"
	"github.com/romanasp/campari/internal/survey"
)

var log = logger.Global().Module("catalog")

// ShardIndex lists the source identifiers held by one catalog shard, ascending.
type ShardIndex struct {
	ID        int
	SourceIDs []int64
}

// ReferenceData is the read-only catalog and tiling metadata of a run.
// Methods are safe for concurrent use; nothing mutates it after construction.
type ReferenceData struct {
	shards    []ShardIndex
	exposures map[survey.Band][]survey.Exposure
	index     map[survey.Band]*spatialIndex
}

// NewReferenceData validates and indexes shards and exposures. Inputs are copied.
func NewReferenceData(shards []ShardIndex, exposures []survey.Exposure, cellDeg float64) (*ReferenceData, error) {
	ref := &ReferenceData{
		shards:    make([]ShardIndex, 0, len(shards)),
		exposures: make(map[survey.Band][]survey.Exposure),
		index:     make(map[survey.Band]*spatialIndex),
	}

	for _, s := range shards {
		ids := slices.Clone(s.SourceIDs)
		slices.Sort(ids)
		if i := firstDuplicate(ids); i >= 0 {
			return nil, errors.Newf("shard %d lists source %d twice", s.ID, ids[i]).
				Category(errors.CategoryValidation).
				Context("operation", "build_reference").
				Build()
		}
		ref.shards = append(ref.shards, ShardIndex{ID: s.ID, SourceIDs: ids})
	}
	slices.SortFunc(ref.shards, func(a, b ShardIndex) int { return cmp.Compare(a.ID, b.ID) })

	for _, e := range exposures {
		if !e.Band.Valid() {
			return nil, errors.Newf("exposure %d/%d has unknown band %q", e.Pointing, e.Detector, e.Band).
				Category(errors.CategoryValidation).
				Context("operation", "build_reference").
				Build()
		}
		ref.exposures[e.Band] = append(ref.exposures[e.Band], e)
	}
	for band, list := range ref.exposures {
		slices.SortStableFunc(list, survey.CompareEpoch)
		ref.index[band] = newSpatialIndex(list, cellDeg)
	}

	log.Debug("reference data indexed",
		logger.Int("shards", len(ref.shards)),
		logger.Int("exposures", len(exposures)),
		logger.Int("bands", len(ref.exposures)))

	return ref, nil
}

func firstDuplicate(sorted []int64) int {
	for i := 1; i < len(sorted); i++ {
		if sorted[i] == sorted[i-1] {
			return i
		}
	}
	return -1
}

// Locate returns the shard holding sourceID and the source's row within the
// shard, rows being ordered by source identifier.
func (r *ReferenceData) Locate(sourceID int64) (shardID, row int, err error) {
	for _, s := range r.shards {
		i := sort.Search(len(s.SourceIDs), func(i int) bool { return s.SourceIDs[i] >= sourceID })
		if i < len(s.SourceIDs) && s.SourceIDs[i] == sourceID {
			return s.ID, i, nil
		}
	}
	return 0, 0, errors.Newf("source %d not found in any of %d catalog shards", sourceID, len(r.shards)).
		Category(errors.CategoryNotFound).
		Context("operation", "locate").
		Context("source_id", sourceID).
		Build()
}

// PointingFor returns the pointing and detector whose footprint contains
// (ra, dec) in band. When several do, the lowest (pointing, detector) wins.
func (r *ReferenceData) PointingFor(ra, dec float64, band survey.Band) (pointing, detector int, err error) {
	covering := r.Covering(ra, dec, band, 0)
	if len(covering) == 0 {
		return 0, 0, errors.Newf("no %s tile covers ra=%.6f dec=%.6f", band, ra, dec).
			Category(errors.CategoryOutOfFootprint).
			Context("operation", "pointing_for").
			Context("band", string(band)).
			Build()
	}

	best := covering[0].Key()
	for _, e := range covering[1:] {
		if k := e.Key(); k.Less(best) {
			best = k
		}
	}
	return best.Pointing, best.Detector, nil
}

// Covering returns every band exposure whose footprint contains (ra, dec) at
// least margin degrees inside its edges, ordered by epoch.
func (r *ReferenceData) Covering(ra, dec float64, band survey.Band, margin float64) []survey.Exposure {
	idx, ok := r.index[band]
	if !ok {
		return nil
	}
	list := r.exposures[band]

	candidates := idx.candidates(ra, dec)
	out := make([]survey.Exposure, 0, len(candidates))
	for _, i := range candidates {
		if list[i].Footprint.ContainsWithMargin(ra, dec, margin) {
			out = append(out, list[i])
		}
	}
	slices.SortStableFunc(out, survey.CompareEpoch)
	return out
}

// Exposures returns a copy of every exposure in band, ordered by epoch.
func (r *ReferenceData) Exposures(band survey.Band) []survey.Exposure {
	return slices.Clone(r.exposures[band])
}

// NumShards returns the number of catalog shards.
func (r *ReferenceData) NumShards() int {
	return len(r.shards)
}
