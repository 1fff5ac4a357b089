package catalog

import (
	"cmp"
	"context"
	"slices"
	"sync"

	"github.com/romanasp/campari/internal/errors"
	"github.com/romanasp/campari/internal/survey"
)

// MemoryStore is an in-process Store, used for simulated surveys and tests.
type MemoryStore struct {
	mu        sync.RWMutex
	rows      map[int][]SourceRow
	exposures map[survey.Band][]survey.Exposure
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		rows:      make(map[int][]SourceRow),
		exposures: make(map[survey.Band][]survey.Exposure),
	}
}

// AddSources inserts rows, assigning a shard with ShardFor when ShardID is zero.
func (m *MemoryStore) AddSources(rows ...SourceRow) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range rows {
		if r.ShardID == 0 {
			r.ShardID = ShardFor(r.RA, r.Dec)
		}
		m.rows[r.ShardID] = append(m.rows[r.ShardID], r)
	}
	for id := range m.rows {
		slices.SortFunc(m.rows[id], func(a, b SourceRow) int { return cmp.Compare(a.ID, b.ID) })
	}
}

// AddExposures records exposures in the tiling.
func (m *MemoryStore) AddExposures(exposures ...survey.Exposure) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range exposures {
		m.exposures[e.Band] = append(m.exposures[e.Band], e)
	}
}

func (m *MemoryStore) ShardIndex(context.Context) ([]ShardIndex, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]ShardIndex, 0, len(m.rows))
	for id, rows := range m.rows {
		ids := make([]int64, len(rows))
		for i, r := range rows {
			ids[i] = r.ID
		}
		out = append(out, ShardIndex{ID: id, SourceIDs: ids})
	}
	slices.SortFunc(out, func(a, b ShardIndex) int { return cmp.Compare(a.ID, b.ID) })
	return out, nil
}

func (m *MemoryStore) ReadShard(_ context.Context, shardID int) ([]SourceRow, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rows, ok := m.rows[shardID]
	if !ok {
		return nil, errors.Newf("shard %d does not exist", shardID).
			Category(errors.CategoryNotFound).
			Build()
	}
	return slices.Clone(rows), nil
}

func (m *MemoryStore) TileFootprints(_ context.Context, band survey.Band) ([]survey.Exposure, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.exposures[band]), nil
}

func (m *MemoryStore) Close() error { return nil }
