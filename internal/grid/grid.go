// Package grid builds the sky sample points used to model the scene around
// a source. Three policies are available: a regular lattice, an adaptive
// grid that is denser where the image is brighter, and points traced along
// iso-flux contours. Every policy works through the wcs.WCS capability only.
package grid

import (
	"cmp"
	"math"
	"slices"
	"strings"

	"github.com/romanasp/campari/internal/errors"
	"github.com/romanasp/campari/internal/imaging"
	"github.com/romanasp/campari/internal/logger"
	"github.com/romanasp/campari/internal/wcs"
)

var log = logger.Global().Module("grid")

// Policy names a grid construction strategy.
type Policy string

const (
	PolicyRegular  Policy = "regular"
	PolicyAdaptive Policy = "adaptive"
	PolicyContour  Policy = "contour"
)

// SpacingUnit selects how Params.Spacing is interpreted.
type SpacingUnit string

const (
	UnitPixel  SpacingUnit = "pixel"
	UnitArcsec SpacingUnit = "arcsec"
)

// Defaults for the image driven policies.
const (
	DefaultLevels       = 5
	DefaultSparseStride = 2
)

// DefaultPercentiles are the adaptive thresholds used when none are given.
var DefaultPercentiles = []float64{50, 75, 90, 95}

// Params holds the parameters of every policy; each uses its own subset.
type Params struct {
	// Regular
	Size        int         `json:"size,omitempty" yaml:"size,omitempty"`
	Spacing     float64     `json:"spacing,omitempty" yaml:"spacing,omitempty"`
	SpacingUnit SpacingUnit `json:"spacing_unit,omitempty" yaml:"spacing_unit,omitempty"`

	// Adaptive and contour. Image pixels share the WCS pixel frame.
	Image        *imaging.Image `json:"-" yaml:"-"`
	Percentiles  []float64      `json:"percentiles,omitempty" yaml:"percentiles,omitempty"`
	SparseStride int            `json:"sparse_stride,omitempty" yaml:"sparse_stride,omitempty"`
	Levels       int            `json:"levels,omitempty" yaml:"levels,omitempty"`
}

// Point is one sample with its sky position and the pixel it came from.
type Point struct {
	RA  float64 `json:"ra"`
	Dec float64 `json:"dec"`
	X   float64 `json:"x"`
	Y   float64 `json:"y"`
}

// SamplingGrid is an ordered set of sample points unique in pixel space.
type SamplingGrid struct {
	Policy    Policy  `json:"policy"`
	Params    Params  `json:"params"`
	CenterRA  float64 `json:"center_ra"`
	CenterDec float64 `json:"center_dec"`
	Points    []Point `json:"points"`
	Dropped   int     `json:"dropped"`
}

// Len returns the number of points.
func (g SamplingGrid) Len() int { return len(g.Points) }

// Sky returns the RA and Dec of every point.
func (g SamplingGrid) Sky() (ra, dec []float64) {
	ra = make([]float64, len(g.Points))
	dec = make([]float64, len(g.Points))
	for i, p := range g.Points {
		ra[i], dec[i] = p.RA, p.Dec
	}
	return ra, dec
}

// pixel is a candidate sample position before projection.
type pixel struct{ x, y float64 }

// Builder produces candidate pixel positions, in output order.
type Builder func(raCenter, decCenter float64, w wcs.WCS, p Params) ([]pixel, error)

var builders = map[Policy]Builder{
	PolicyRegular:  regular,
	PolicyAdaptive: adaptive,
	PolicyContour:  contour,
}

// Policies lists the available policies.
func Policies() []Policy {
	out := make([]Policy, 0, len(builders))
	for p := range builders {
		out = append(out, p)
	}
	slices.Sort(out)
	return out
}

// ParsePolicy accepts a policy name, case-insensitively.
func ParsePolicy(s string) (Policy, error) {
	p := Policy(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := builders[p]; !ok {
		return "", errors.Newf("unknown grid policy %q", s).
			Category(errors.CategoryValidation).
			Build()
	}
	return p, nil
}

// Make builds a grid with policy around (raCenter, decCenter). Points that w
// cannot project are dropped; duplicates in pixel space are removed.
func Make(policy Policy, raCenter, decCenter float64, w wcs.WCS, p Params) (SamplingGrid, error) {
	build, ok := builders[policy]
	if !ok {
		return SamplingGrid{}, gridError("unknown grid policy %q", policy)
	}
	if w == nil {
		return SamplingGrid{}, gridError("%s grid needs a WCS", policy)
	}

	candidates, err := build(raCenter, decCenter, w, p)
	if err != nil {
		return SamplingGrid{}, err
	}

	g := SamplingGrid{Policy: policy, Params: p, CenterRA: raCenter, CenterDec: decCenter}
	seen := make(map[[2]int64]struct{}, len(candidates))
	for _, c := range candidates {
		key := [2]int64{int64(math.Round(c.x * 1e6)), int64(math.Round(c.y * 1e6))}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		ra, dec, err := w.PixelToWorld(c.x, c.y)
		if err != nil {
			g.Dropped++
			continue
		}
		g.Points = append(g.Points, Point{RA: ra, Dec: dec, X: c.x, Y: c.y})
	}

	if len(g.Points) == 0 {
		return SamplingGrid{}, gridError("%s grid has no projectable points (%d dropped)", policy, g.Dropped)
	}
	log.Debug("grid built",
		logger.String("policy", string(policy)),
		logger.Int("points", len(g.Points)),
		logger.Int("dropped", g.Dropped))
	return g, nil
}

func gridError(format string, args ...any) error {
	return errors.Newf(format, args...).
		Category(errors.CategoryGridGeneration).
		Context("operation", "make_grid").
		Build()
}

// imageStats validates a scene image and returns its finite range and
// brightest pixel.
func imageStats(policy Policy, img *imaging.Image) (lo, hi float64, bx, by int, err error) {
	if img == nil || img.Empty() {
		return 0, 0, 0, 0, gridError("%s grid needs a non-empty image", policy)
	}
	lo, hi, ok := img.MinMax()
	if !ok {
		return 0, 0, 0, 0, gridError("%s grid image has no finite pixels", policy)
	}
	if hi == lo {
		return 0, 0, 0, 0, gridError("%s grid image is uniform (value %g)", policy, lo)
	}
	bx, by = img.Brightest()
	return lo, hi, bx, by, nil
}

// byDistance orders pixels by distance from (cx, cy), then y, then x.
func byDistance(cx, cy float64) func(a, b pixel) int {
	return func(a, b pixel) int {
		da := math.Hypot(a.x-cx, a.y-cy)
		db := math.Hypot(b.x-cx, b.y-cy)
		if c := cmp.Compare(da, db); c != 0 {
			return c
		}
		if c := cmp.Compare(a.y, b.y); c != 0 {
			return c
		}
		return cmp.Compare(a.x, b.x)
	}
}
