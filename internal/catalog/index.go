package catalog

import (
	"math"
	"slices"

	"github.com/romanasp/campari/internal/survey"
)

// DefaultCellDeg is the spatial index cell size when none is configured.
const DefaultCellDeg = 1.0

type cellKey struct {
	dec int
	ra  int
}

// spatialIndex buckets footprints into declination rows and RA cells. Each
// footprint is registered in every cell its padded bounding box touches;
// footprints near a pole go to a list that every lookup scans.
type spatialIndex struct {
	cell  float64
	nRA   int
	cells map[cellKey][]int
	polar []int
}

func newSpatialIndex(exposures []survey.Exposure, cellDeg float64) *spatialIndex {
	if cellDeg <= 0 {
		cellDeg = DefaultCellDeg
	}
	idx := &spatialIndex{
		cell:  cellDeg,
		nRA:   int(math.Ceil(360 / cellDeg)),
		cells: make(map[cellKey][]int),
	}
	for i, e := range exposures {
		idx.insert(i, e.Footprint)
	}
	return idx
}

func (s *spatialIndex) insert(i int, f survey.Footprint) {
	c := f.Center()

	raMin, raMax := math.Inf(1), math.Inf(-1)
	decMin, decMax := math.Inf(1), math.Inf(-1)
	for _, corner := range f.Corners {
		d := wrap180(corner.RA - c.RA)
		raMin = min(raMin, d)
		raMax = max(raMax, d)
		decMin = min(decMin, corner.Dec)
		decMax = max(decMax, corner.Dec)
	}

	// Great-circle edges bow away from the corner box; pad it.
	pad := 0.05*max(decMax-decMin, 1e-6) + 1e-4
	decMin -= pad
	decMax += pad
	raPad := pad / math.Max(math.Cos(math.Max(math.Abs(decMin), math.Abs(decMax))*math.Pi/180), 1e-3)
	raMin -= raPad
	raMax += raPad

	if decMax >= 89 || decMin <= -89 || raMax-raMin >= 180 {
		s.polar = append(s.polar, i)
		return
	}

	first := s.raCell(c.RA + raMin)
	last := s.raCell(c.RA + raMax)
	if last < first {
		last += s.nRA
	}
	for dr := s.decRow(decMin); dr <= s.decRow(decMax); dr++ {
		for rc := first; rc <= last; rc++ {
			key := cellKey{dec: dr, ra: rc % s.nRA}
			s.cells[key] = append(s.cells[key], i)
		}
	}
}

func (s *spatialIndex) raCell(ra float64) int {
	ra = math.Mod(ra, 360)
	if ra < 0 {
		ra += 360
	}
	return min(int(math.Floor(ra/s.cell)), s.nRA-1)
}

func (s *spatialIndex) decRow(dec float64) int {
	return int(math.Floor((dec + 90) / s.cell))
}

// candidates returns indices of footprints that may contain (ra, dec), ascending and unique.
func (s *spatialIndex) candidates(ra, dec float64) []int {
	key := cellKey{dec: s.decRow(dec), ra: s.raCell(ra)}
	out := slices.Concat(s.cells[key], s.polar)
	slices.Sort(out)
	return slices.Compact(out)
}

func wrap180(d float64) float64 {
	d = math.Mod(d, 360)
	switch {
	case d > 180:
		d -= 360
	case d <= -180:
		d += 360
	}
	return d
}
