package grid

import (
	"cmp"
	"math"
	"slices"

	"github.com/romanasp/campari/internal/wcs"
)

type contourPoint struct {
	pixel
	level int
	angle float64
	dist  float64
}

// contour places points where iso-flux contours cross pixel edges, the
// vertices marching squares would emit. Levels are spaced linearly between
// the image minimum and maximum, both excluded. Points are ordered by level,
// then by angle and distance about the brightest pixel.
func contour(_, _ float64, _ wcs.WCS, p Params) ([]pixel, error) {
	lo, hi, bx, by, err := imageStats(PolicyContour, p.Image)
	if err != nil {
		return nil, err
	}
	n := p.Levels
	if n <= 0 {
		n = DefaultLevels
	}

	img := p.Image
	cx, cy := float64(bx), float64(by)
	var pts []contourPoint
	add := func(level int, x, y float64) {
		pts = append(pts, contourPoint{
			pixel: pixel{x, y},
			level: level,
			angle: math.Atan2(y-cy, x-cx),
			dist:  math.Hypot(x-cx, y-cy),
		})
	}

	for l := 1; l <= n; l++ {
		level := lo + (hi-lo)*float64(l)/float64(n+1)
		for y := range img.Height {
			for x := range img.Width {
				v := img.At(x, y)
				if x+1 < img.Width {
					if t, ok := crossing(v, img.At(x+1, y), level); ok {
						add(l, float64(x)+t, float64(y))
					}
				}
				if y+1 < img.Height {
					if t, ok := crossing(v, img.At(x, y+1), level); ok {
						add(l, float64(x), float64(y)+t)
					}
				}
			}
		}
	}
	if len(pts) == 0 {
		return nil, gridError("no contour crosses the image at %d levels", n)
	}

	slices.SortFunc(pts, func(a, b contourPoint) int {
		if c := cmp.Compare(a.level, b.level); c != 0 {
			return c
		}
		if c := cmp.Compare(a.angle, b.angle); c != 0 {
			return c
		}
		if c := cmp.Compare(a.dist, b.dist); c != 0 {
			return c
		}
		if c := cmp.Compare(a.y, b.y); c != 0 {
			return c
		}
		return cmp.Compare(a.x, b.x)
	})

	out := make([]pixel, len(pts))
	for i, pt := range pts {
		out[i] = pt.pixel
	}
	return out, nil
}

// crossing returns where level falls between a and b as a fraction of the
// edge, counting a vertex that equals level as the start of the edge.
func crossing(a, b, level float64) (float64, bool) {
	if math.IsNaN(a) || math.IsNaN(b) {
		return 0, false
	}
	if (a < level) == (b < level) {
		return 0, false
	}
	return (level - a) / (b - a), true
}
