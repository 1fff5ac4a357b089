// Package wcs maps detector pixels to sky coordinates and back.
//
// Pixel coordinates are 0-based with the centre of the first pixel at (0, 0).
// Header keywords keep the FITS convention, so CRPIX is 1-based.
package wcs

import (
	"fmt"
	"math"

	"github.com/romanasp/campari/internal/errors"
)

// WCS is the capability every consumer is written against.
type WCS interface {
	PixelToWorld(x, y float64) (ra, dec float64, err error)
	WorldToPixel(ra, dec float64) (x, y float64, err error)
}

var (
	// ErrOffDetector reports a pixel outside [-0.5, NAXIS-0.5] on either axis.
	// WorldToPixel still returns the computed position alongside it.
	ErrOffDetector = errors.NewStd("pixel outside detector")
	// ErrUnprojectable reports a sky position on the far hemisphere of the tangent point.
	ErrUnprojectable = errors.NewStd("position cannot be projected onto the tangent plane")
)

// Backend selects a WCS implementation.
type Backend string

const (
	BackendTangentPlane   Backend = "tangent"
	BackendRotationMatrix Backend = "rotation"
)

// Backends lists every implementation, in a stable order for conformance tests.
func Backends() []Backend {
	return []Backend{BackendTangentPlane, BackendRotationMatrix}
}

// Header holds the linear TAN-projection keywords.
type Header struct {
	CRVAL1 float64 `json:"crval1" yaml:"crval1"` // reference RA, degrees
	CRVAL2 float64 `json:"crval2" yaml:"crval2"` // reference Dec, degrees
	CRPIX1 float64 `json:"crpix1" yaml:"crpix1"` // 1-based
	CRPIX2 float64 `json:"crpix2" yaml:"crpix2"`
	CD1_1  float64 `json:"cd1_1" yaml:"cd1_1"` // degrees per pixel
	CD1_2  float64 `json:"cd1_2" yaml:"cd1_2"`
	CD2_1  float64 `json:"cd2_1" yaml:"cd2_1"`
	CD2_2  float64 `json:"cd2_2" yaml:"cd2_2"`
	NAXIS1 int     `json:"naxis1" yaml:"naxis1"` // 0 disables the detector bounds check
	NAXIS2 int     `json:"naxis2" yaml:"naxis2"`
}

// NewHeader builds a header with square pixels of scale arcsec, rotated by angle
// radians, with RA increasing to the left and the reference point at the centre
// of an nx by ny detector.
func NewHeader(ra, dec, scale, angle float64, nx, ny int) Header {
	s := scale / 3600
	h := Header{
		CRVAL1: ra,
		CRVAL2: dec,
		CRPIX1: (float64(nx) + 1) / 2,
		CRPIX2: (float64(ny) + 1) / 2,
		CD1_1:  -s,
		CD2_2:  s,
		NAXIS1: nx,
		NAXIS2: ny,
	}
	return h.Rotated(angle)
}

func (h Header) det() float64 {
	return h.CD1_1*h.CD2_2 - h.CD1_2*h.CD2_1
}

// Validate checks that the header describes an invertible projection.
func (h Header) Validate() error {
	if h.det() == 0 || math.IsNaN(h.det()) {
		return errors.Newf("wcs header has a singular CD matrix").
			Category(errors.CategoryValidation).
			Build()
	}
	if h.CRVAL2 < -90 || h.CRVAL2 > 90 {
		return errors.Newf("wcs reference declination %g out of range", h.CRVAL2).
			Category(errors.CategoryValidation).
			Build()
	}
	if h.NAXIS1 < 0 || h.NAXIS2 < 0 {
		return errors.Newf("wcs header has negative NAXIS").
			Category(errors.CategoryValidation).
			Build()
	}
	return nil
}

// PixelScale returns the geometric mean pixel scale in arcseconds.
func (h Header) PixelScale() float64 {
	return math.Sqrt(math.Abs(h.det())) * 3600
}

// Rotated returns a copy whose sky axes are rotated by angle radians about the reference pixel.
func (h Header) Rotated(angle float64) Header {
	if angle == 0 {
		return h
	}
	c, s := math.Cos(angle), math.Sin(angle)
	out := h
	out.CD1_1 = c*h.CD1_1 - s*h.CD2_1
	out.CD1_2 = c*h.CD1_2 - s*h.CD2_2
	out.CD2_1 = s*h.CD1_1 + c*h.CD2_1
	out.CD2_2 = s*h.CD1_2 + c*h.CD2_2
	return out
}

// Shifted moves the reference pixel by (dx, dy) pixels, which shifts the
// image content by (-dx, -dy) on the sky frame.
func (h Header) Shifted(dx, dy float64) Header {
	out := h
	out.CRPIX1 += dx
	out.CRPIX2 += dy
	return out
}

// Cutout returns the header of a size by size stamp whose pixel (0, 0) is (x0, y0) in h.
func (h Header) Cutout(x0, y0, size int) Header {
	out := h
	out.CRPIX1 -= float64(x0)
	out.CRPIX2 -= float64(y0)
	out.NAXIS1 = size
	out.NAXIS2 = size
	return out
}

// New constructs a WCS with the selected backend.
func New(backend Backend, h Header) (WCS, error) {
	if err := h.Validate(); err != nil {
		return nil, err
	}
	switch backend {
	case BackendTangentPlane, "":
		return newTangentPlane(h), nil
	case BackendRotationMatrix:
		return newRotationMatrix(h), nil
	default:
		return nil, errors.Newf("unknown wcs backend %q", backend).
			Category(errors.CategoryValidation).
			Build()
	}
}

// MustNew is New for headers known to be valid, such as test fixtures.
func MustNew(backend Backend, h Header) WCS {
	w, err := New(backend, h)
	if err != nil {
		panic(fmt.Sprintf("wcs: %v", err))
	}
	return w
}

// linear maps a 0-based pixel to intermediate world coordinates in degrees.
func (h Header) linear(x, y float64) (xi, eta float64) {
	dx := x + 1 - h.CRPIX1
	dy := y + 1 - h.CRPIX2
	return h.CD1_1*dx + h.CD1_2*dy, h.CD2_1*dx + h.CD2_2*dy
}

// inverseLinear maps intermediate world coordinates in degrees to a 0-based pixel.
func (h Header) inverseLinear(xi, eta float64) (x, y float64) {
	det := h.det()
	dx := (h.CD2_2*xi - h.CD1_2*eta) / det
	dy := (-h.CD2_1*xi + h.CD1_1*eta) / det
	return dx + h.CRPIX1 - 1, dy + h.CRPIX2 - 1
}

func (h Header) onDetector(x, y float64) bool {
	if h.NAXIS1 > 0 && (x < -0.5 || x > float64(h.NAXIS1)-0.5) {
		return false
	}
	if h.NAXIS2 > 0 && (y < -0.5 || y > float64(h.NAXIS2)-0.5) {
		return false
	}
	return true
}

func normalizeRA(ra float64) float64 {
	ra = math.Mod(ra, 360)
	if ra < 0 {
		ra += 360
	}
	return ra
}

const (
	deg2rad = math.Pi / 180
	rad2deg = 180 / math.Pi
)
