package catalog

import (
	"context"
	"math"

	"github.com/romanasp/campari/internal/survey"
)

// SourceRow is one catalog entry as stored in a shard.
type SourceRow struct {
	ID      int64
	ShardID int
	RA      float64
	Dec     float64
	Class   survey.ObjectClass
	Start   float64
	End     float64
	Peak    float64
	HostRA  float64 // NaN when no host is associated
	HostDec float64
	PeakMag float64 // NaN when unknown
}

// Source converts a row into a resolved source.
func (r SourceRow) Source(row int) survey.Source {
	s := survey.Source{
		ID:      r.ID,
		RA:      r.RA,
		Dec:     r.Dec,
		Class:   r.Class,
		Start:   r.Start,
		End:     r.End,
		Peak:    r.Peak,
		ShardID: r.ShardID,
		Row:     row,
	}
	if !math.IsNaN(r.HostRA) && !math.IsNaN(r.HostDec) {
		s.Host = &survey.SkyCoord{RA: r.HostRA, Dec: r.HostDec}
	}
	return s
}

// ShardReader serves catalog shards. ReadShard returns rows ordered by source ID.
type ShardReader interface {
	ShardIndex(ctx context.Context) ([]ShardIndex, error)
	ReadShard(ctx context.Context, shardID int) ([]SourceRow, error)
}

// FootprintReader serves the tiling: every exposure recorded for a band.
type FootprintReader interface {
	TileFootprints(ctx context.Context, band survey.Band) ([]survey.Exposure, error)
}

// Store is the full catalog backend.
type Store interface {
	ShardReader
	FootprintReader
	Close() error
}

// ShardFor maps a position to a shard number: 10 degree declination rows
// split into RA cells of roughly equal area. Shard numbers start at 1.
func ShardFor(ra, dec float64) int {
	row := int(math.Floor((dec + 90) / 10))
	row = min(max(row, 0), 17)
	rowCenter := -85 + 10*float64(row)
	cells := max(1, int(math.Round(36*math.Cos(rowCenter*math.Pi/180))))
	ra = math.Mod(ra, 360)
	if ra < 0 {
		ra += 360
	}
	cell := min(int(ra/360*float64(cells)), cells-1)
	return 1 + row*100 + cell
}
