package wcs

import "math"

// tangentPlane implements the gnomonic projection with spherical trigonometry.
type tangentPlane struct {
	h                Header
	sinDec0, cosDec0 float64
	ra0              float64
}

func newTangentPlane(h Header) *tangentPlane {
	dec0 := h.CRVAL2 * deg2rad
	return &tangentPlane{
		h:       h,
		sinDec0: math.Sin(dec0),
		cosDec0: math.Cos(dec0),
		ra0:     h.CRVAL1 * deg2rad,
	}
}

func (t *tangentPlane) PixelToWorld(x, y float64) (ra, dec float64, err error) {
	if !t.h.onDetector(x, y) {
		return 0, 0, ErrOffDetector
	}
	xiDeg, etaDeg := t.h.linear(x, y)
	ra, dec = Deproject(t.h.CRVAL1, t.h.CRVAL2, xiDeg, etaDeg)
	return ra, dec, nil
}

func (t *tangentPlane) WorldToPixel(ra, dec float64) (x, y float64, err error) {
	xi, eta, ok := t.project(ra, dec)
	if !ok {
		return 0, 0, ErrUnprojectable
	}
	x, y = t.h.inverseLinear(xi, eta)
	if !t.h.onDetector(x, y) {
		return x, y, ErrOffDetector
	}
	return x, y, nil
}

func (t *tangentPlane) project(ra, dec float64) (xi, eta float64, ok bool) {
	a := ra*deg2rad - t.ra0
	d := dec * deg2rad
	sinD, cosD := math.Sincos(d)
	sinA, cosA := math.Sincos(a)

	cosC := t.sinDec0*sinD + t.cosDec0*cosD*cosA
	if cosC <= 0 {
		return 0, 0, false
	}
	xi = cosD * sinA / cosC
	eta = (t.cosDec0*sinD - t.sinDec0*cosD*cosA) / cosC
	return xi * rad2deg, eta * rad2deg, true
}

// Project maps (ra, dec) onto the plane tangent at (ra0, dec0). Offsets are
// in degrees; ok is false on the far hemisphere.
func Project(ra0, dec0, ra, dec float64) (xi, eta float64, ok bool) {
	t := newTangentPlane(Header{CRVAL1: ra0, CRVAL2: dec0})
	return t.project(ra, dec)
}

// Deproject is the inverse of Project.
func Deproject(ra0, dec0, xiDeg, etaDeg float64) (ra, dec float64) {
	xi := xiDeg * deg2rad
	eta := etaDeg * deg2rad
	sinD0, cosD0 := math.Sincos(dec0 * deg2rad)

	denom := cosD0 - eta*sinD0
	a := math.Atan2(xi, denom)
	d := math.Atan2(sinD0+eta*cosD0, math.Hypot(xi, denom))
	return normalizeRA(ra0 + a*rad2deg), d * rad2deg
}

// Separation returns the great-circle distance in degrees using the Vincenty formula.
func Separation(ra1, dec1, ra2, dec2 float64) float64 {
	sd1, cd1 := math.Sincos(dec1 * deg2rad)
	sd2, cd2 := math.Sincos(dec2 * deg2rad)
	sdl, cdl := math.Sincos((ra2 - ra1) * deg2rad)

	num1 := cd2 * sdl
	num2 := cd1*sd2 - sd1*cd2*cdl
	den := sd1*sd2 + cd1*cd2*cdl
	return math.Atan2(math.Hypot(num1, num2), den) * rad2deg
}
