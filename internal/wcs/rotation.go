package wcs

import "math"

type vec3 [3]float64

func (a vec3) dot(b vec3) float64 { return a[0]*b[0] + a[1]*b[1] + a[2]*b[2] }

func unitVector(ra, dec float64) vec3 {
	sa, ca := math.Sincos(ra * deg2rad)
	sd, cd := math.Sincos(dec * deg2rad)
	return vec3{cd * ca, cd * sa, sd}
}

// rotationMatrix projects through an orthonormal basis attached to the
// reference direction: the rows are the reference unit vector and the local
// east and north unit vectors.
type rotationMatrix struct {
	h                Header
	ref, east, north vec3
}

func newRotationMatrix(h Header) *rotationMatrix {
	sa, ca := math.Sincos(h.CRVAL1 * deg2rad)
	sd, cd := math.Sincos(h.CRVAL2 * deg2rad)
	return &rotationMatrix{
		h:     h,
		ref:   vec3{cd * ca, cd * sa, sd},
		east:  vec3{-sa, ca, 0},
		north: vec3{-sd * ca, -sd * sa, cd},
	}
}

func (r *rotationMatrix) PixelToWorld(x, y float64) (ra, dec float64, err error) {
	if !r.h.onDetector(x, y) {
		return 0, 0, ErrOffDetector
	}
	xiDeg, etaDeg := r.h.linear(x, y)
	xi, eta := xiDeg*deg2rad, etaDeg*deg2rad

	var v vec3
	for i := range v {
		v[i] = r.ref[i] + xi*r.east[i] + eta*r.north[i]
	}
	n := math.Sqrt(v.dot(v))

	ra = math.Atan2(v[1], v[0]) * rad2deg
	dec = math.Asin(v[2]/n) * rad2deg
	return normalizeRA(ra), dec, nil
}

func (r *rotationMatrix) WorldToPixel(ra, dec float64) (x, y float64, err error) {
	v := unitVector(ra, dec)
	w := v.dot(r.ref)
	if w <= 0 {
		return 0, 0, ErrUnprojectable
	}
	xi := v.dot(r.east) / w * rad2deg
	eta := v.dot(r.north) / w * rad2deg

	x, y = r.h.inverseLinear(xi, eta)
	if !r.h.onDetector(x, y) {
		return x, y, ErrOffDetector
	}
	return x, y, nil
}
