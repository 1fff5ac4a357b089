package grid

import (
	"math"

	"github.com/romanasp/campari/internal/errors"
	"github.com/romanasp/campari/internal/wcs"
)

// regular lays points Spacing apart, centred on the pixel position of the
// grid centre, in row-major order. Size is the number of points per side;
// zero fits as many points per axis as the scene image spans.
func regular(raCenter, decCenter float64, w wcs.WCS, p Params) ([]pixel, error) {
	if p.Size < 0 || (p.Size == 0 && (p.Image == nil || p.Image.Empty())) {
		return nil, gridError("regular grid size must be positive, got %d", p.Size)
	}
	if !(p.Spacing > 0) || math.IsInf(p.Spacing, 0) {
		return nil, gridError("regular grid spacing must be positive, got %g", p.Spacing)
	}

	// An off-detector centre still yields its pixel; the points that land
	// off the detector are dropped later.
	cx, cy, err := w.WorldToPixel(raCenter, decCenter)
	if err != nil && !errors.Is(err, wcs.ErrOffDetector) {
		return nil, gridError("grid centre (%g, %g) does not project: %v", raCenter, decCenter, err)
	}

	stepX, stepY := p.Spacing, p.Spacing
	switch p.SpacingUnit {
	case "", UnitPixel:
	case UnitArcsec:
		sx, sy, err := localPixelScale(w, cx, cy)
		if err != nil {
			return nil, err
		}
		stepX, stepY = p.Spacing/sx, p.Spacing/sy
	default:
		return nil, gridError("unknown spacing unit %q", p.SpacingUnit)
	}

	nx, ny := p.Size, p.Size
	if p.Size == 0 {
		nx = pointsAcross(p.Image.Width, stepX)
		ny = pointsAcross(p.Image.Height, stepY)
	}

	halfX := float64(nx-1) / 2
	halfY := float64(ny-1) / 2
	out := make([]pixel, 0, nx*ny)
	for j := range ny {
		for i := range nx {
			out = append(out, pixel{
				x: cx + (float64(i)-halfX)*stepX,
				y: cy + (float64(j)-halfY)*stepY,
			})
		}
	}
	return out, nil
}

// pointsAcross is the number of points step apart that fit between the
// first and last pixel centres of an axis n pixels long.
func pointsAcross(n int, step float64) int {
	return int(math.Floor(float64(n-1)/step+1e-9)) + 1
}

// localPixelScale measures the arcseconds spanned by one pixel along each
// axis at (x, y).
func localPixelScale(w wcs.WCS, x, y float64) (sx, sy float64, err error) {
	sx, err = pixelSpan(w, x-0.5, y, x+0.5, y)
	if err != nil {
		return 0, 0, err
	}
	sy, err = pixelSpan(w, x, y-0.5, x, y+0.5)
	if err != nil {
		return 0, 0, err
	}
	return sx, sy, nil
}

func pixelSpan(w wcs.WCS, x1, y1, x2, y2 float64) (float64, error) {
	ra1, dec1, err1 := w.PixelToWorld(x1, y1)
	ra2, dec2, err2 := w.PixelToWorld(x2, y2)
	if err1 != nil || err2 != nil {
		return 0, gridError("cannot measure pixel scale at (%g, %g)", (x1+x2)/2, (y1+y2)/2)
	}
	s := wcs.Separation(ra1, dec1, ra2, dec2) * 3600
	if !(s > 0) {
		return 0, gridError("degenerate pixel scale at (%g, %g)", (x1+x2)/2, (y1+y2)/2)
	}
	return s, nil
}
