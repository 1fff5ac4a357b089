package survey

import (
	"math"

	"github.com/romanasp/campari/internal/wcs"
)

// Footprint is the sky quadrilateral covered by one detector readout.
// Corners follow the detector edge in order; winding direction does not matter.
type Footprint struct {
	Corners [4]SkyCoord `json:"corners"`
}

// FootprintFromHeader traces the outer pixel edges of a detector header.
func FootprintFromHeader(h wcs.Header) Footprint {
	nx, ny := float64(h.NAXIS1), float64(h.NAXIS2)
	pix := [4][2]float64{{-0.5, -0.5}, {nx - 0.5, -0.5}, {nx - 0.5, ny - 0.5}, {-0.5, ny - 0.5}}

	unbounded := h
	unbounded.NAXIS1, unbounded.NAXIS2 = 0, 0
	w := wcs.MustNew(wcs.BackendTangentPlane, unbounded)

	var f Footprint
	for i, p := range pix {
		ra, dec, _ := w.PixelToWorld(p[0], p[1])
		f.Corners[i] = SkyCoord{RA: ra, Dec: dec}
	}
	return f
}

// Center returns the normalized mean of the corner unit vectors.
func (f Footprint) Center() SkyCoord {
	var x, y, z float64
	for _, c := range f.Corners {
		sa, ca := math.Sincos(c.RA * math.Pi / 180)
		sd, cd := math.Sincos(c.Dec * math.Pi / 180)
		x += cd * ca
		y += cd * sa
		z += sd
	}
	ra := math.Atan2(y, x) * 180 / math.Pi
	if ra < 0 {
		ra += 360
	}
	dec := math.Atan2(z, math.Hypot(x, y)) * 180 / math.Pi
	return SkyCoord{RA: ra, Dec: dec}
}

// Contains reports whether (ra, dec) lies inside the footprint.
func (f Footprint) Contains(ra, dec float64) bool {
	return f.ContainsWithMargin(ra, dec, 0)
}

// ContainsWithMargin reports whether (ra, dec) lies inside the footprint and at
// least margin degrees from every edge.
func (f Footprint) ContainsWithMargin(ra, dec, margin float64) bool {
	poly, px, py, ok := f.tangentPlane(ra, dec)
	if !ok {
		return false
	}
	if !pointInPolygon(poly, px, py) {
		return false
	}
	if margin <= 0 {
		return true
	}
	for i := range poly {
		j := (i + 1) % len(poly)
		if segmentDistance(px, py, poly[i], poly[j]) < margin {
			return false
		}
	}
	return true
}

// tangentPlane projects corners and the query point about the footprint centre.
func (f Footprint) tangentPlane(ra, dec float64) (poly [4][2]float64, px, py float64, ok bool) {
	c := f.Center()
	for i, corner := range f.Corners {
		xi, eta, good := wcs.Project(c.RA, c.Dec, corner.RA, corner.Dec)
		if !good {
			return poly, 0, 0, false
		}
		poly[i] = [2]float64{xi, eta}
	}
	px, py, ok = wcs.Project(c.RA, c.Dec, ra, dec)
	return poly, px, py, ok
}

// pointInPolygon is the even-odd ray casting test.
func pointInPolygon(poly [4][2]float64, x, y float64) bool {
	inside := false
	for i, j := 0, len(poly)-1; i < len(poly); j, i = i, i+1 {
		xi, yi := poly[i][0], poly[i][1]
		xj, yj := poly[j][0], poly[j][1]
		if (yi > y) != (yj > y) && x < (xj-xi)*(y-yi)/(yj-yi)+xi {
			inside = !inside
		}
	}
	return inside
}

func segmentDistance(px, py float64, a, b [2]float64) float64 {
	dx, dy := b[0]-a[0], b[1]-a[1]
	l2 := dx*dx + dy*dy
	if l2 == 0 {
		return math.Hypot(px-a[0], py-a[1])
	}
	t := ((px-a[0])*dx + (py-a[1])*dy) / l2
	t = min(max(t, 0), 1)
	return math.Hypot(px-(a[0]+t*dx), py-(a[1]+t*dy))
}
