package wcs

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testHeader() Header {
	return NewHeader(7.731890048839705, -44.4589649005717, 0.11, math.Pi/4, 101, 101)
}

func TestRoundTripAllBackends(t *testing.T) {
	t.Parallel()

	for _, backend := range Backends() {
		t.Run(string(backend), func(t *testing.T) {
			t.Parallel()
			w := MustNew(backend, testHeader())

			for _, p := range [][2]float64{{0, 0}, {50, 50}, {12.25, 88.5}, {100, 3}} {
				ra, dec, err := w.PixelToWorld(p[0], p[1])
				require.NoError(t, err)

				x, y, err := w.WorldToPixel(ra, dec)
				require.NoError(t, err)
				assert.InDelta(t, p[0], x, 1e-8)
				assert.InDelta(t, p[1], y, 1e-8)
			}
		})
	}
}

func TestReferencePixelMapsToReferenceValue(t *testing.T) {
	t.Parallel()

	h := testHeader()
	for _, backend := range Backends() {
		w := MustNew(backend, h)
		ra, dec, err := w.PixelToWorld(h.CRPIX1-1, h.CRPIX2-1)
		require.NoError(t, err)
		assert.InDelta(t, h.CRVAL1, ra, 1e-12, "backend %s", backend)
		assert.InDelta(t, h.CRVAL2, dec, 1e-12, "backend %s", backend)
	}
}

func TestBackendsAgree(t *testing.T) {
	t.Parallel()

	h := NewHeader(359.99, 89.9, 0.11, 0.3, 4088, 4088)
	h.NAXIS1, h.NAXIS2 = 0, 0
	tan := MustNew(BackendTangentPlane, h)
	rot := MustNew(BackendRotationMatrix, h)

	for _, p := range [][2]float64{{0, 0}, {2044, 2044}, {4000, 17}, {-300, 5000}} {
		ra1, dec1, err := tan.PixelToWorld(p[0], p[1])
		require.NoError(t, err)
		ra2, dec2, err := rot.PixelToWorld(p[0], p[1])
		require.NoError(t, err)

		assert.Less(t, Separation(ra1, dec1, ra2, dec2)*3600, 1e-7)
	}
}

func TestOffDetector(t *testing.T) {
	t.Parallel()

	for _, backend := range Backends() {
		w := MustNew(backend, testHeader())

		_, _, err := w.PixelToWorld(-0.6, 10)
		assert.ErrorIs(t, err, ErrOffDetector)
		_, _, err = w.PixelToWorld(10, 100.6)
		assert.ErrorIs(t, err, ErrOffDetector)

		// 200 pixels east of centre is off a 101 pixel stamp.
		h := testHeader()
		ra, dec := Deproject(h.CRVAL1, h.CRVAL2, 200*0.11/3600, 0)
		x, _, err := w.WorldToPixel(ra, dec)
		assert.ErrorIs(t, err, ErrOffDetector)
		assert.False(t, math.IsNaN(x))
	}
}

func TestUnprojectable(t *testing.T) {
	t.Parallel()

	h := testHeader()
	for _, backend := range Backends() {
		w := MustNew(backend, h)
		_, _, err := w.WorldToPixel(h.CRVAL1+180, -h.CRVAL2)
		assert.ErrorIs(t, err, ErrUnprojectable)
	}
}

func TestHeaderHelpers(t *testing.T) {
	t.Parallel()

	h := NewHeader(10, 20, 0.11, 0, 11, 11)
	assert.InDelta(t, 0.11, h.PixelScale(), 1e-12)
	assert.InDelta(t, 0.11, h.Rotated(1.2).PixelScale(), 1e-12)
	assert.Equal(t, 6.0, h.CRPIX1)

	c := h.Cutout(3, 4, 5)
	assert.Equal(t, 3.0, c.CRPIX1)
	assert.Equal(t, 2.0, c.CRPIX2)
	assert.Equal(t, 5, c.NAXIS1)

	// The same sky position lands on pixel (x-3, y-4) of the cutout.
	full := MustNew(BackendTangentPlane, h)
	cut := MustNew(BackendTangentPlane, c)
	ra, dec, err := full.PixelToWorld(5, 5)
	require.NoError(t, err)
	x, y, err := cut.WorldToPixel(ra, dec)
	require.NoError(t, err)
	assert.InDelta(t, 2, x, 1e-9)
	assert.InDelta(t, 1, y, 1e-9)

	s := h.Shifted(0.5, 0)
	assert.Equal(t, 6.5, s.CRPIX1)
}

func TestValidate(t *testing.T) {
	t.Parallel()

	_, err := New(BackendTangentPlane, Header{CRVAL1: 1, CRVAL2: 2})
	assert.Error(t, err)

	_, err = New("sip", testHeader())
	assert.Error(t, err)
}

func TestSeparation(t *testing.T) {
	t.Parallel()

	assert.InDelta(t, 90, Separation(0, 0, 90, 0), 1e-12)
	assert.InDelta(t, 180, Separation(0, 0, 180, 0), 1e-12)
	assert.InDelta(t, 1.0/3600, Separation(10, 0, 10, 1.0/3600), 1e-15)
}

func TestProjectDeproject(t *testing.T) {
	t.Parallel()

	xi, eta, ok := Project(120, -30, 120.01, -29.99)
	require.True(t, ok)
	ra, dec := Deproject(120, -30, xi, eta)
	assert.InDelta(t, 120.01, ra, 1e-10)
	assert.InDelta(t, -29.99, dec, 1e-10)

	_, _, ok = Project(0, 0, 180, 0)
	assert.False(t, ok)
}
