// Package imaging holds the float pixel arrays shared by the simulator, the
// grid generator and the photometry code.
package imaging

import (
	"math"
	"slices"
)

// Image is a row-major array of float64 pixels. Pix[y*Width+x] is pixel (x, y).
type Image struct {
	Width  int
	Height int
	Pix    []float64
}

// New allocates a zero image.
func New(width, height int) *Image {
	return &Image{Width: width, Height: height, Pix: make([]float64, width*height)}
}

// FromRows builds an image from rows; rows[y][x] is pixel (x, y).
func FromRows(rows [][]float64) *Image {
	if len(rows) == 0 {
		return New(0, 0)
	}
	img := New(len(rows[0]), len(rows))
	for y, row := range rows {
		copy(img.Pix[y*img.Width:(y+1)*img.Width], row)
	}
	return img
}

// Filled returns a width by height image with every pixel set to v.
func Filled(width, height int, v float64) *Image {
	img := New(width, height)
	for i := range img.Pix {
		img.Pix[i] = v
	}
	return img
}

func (m *Image) At(x, y int) float64     { return m.Pix[y*m.Width+x] }
func (m *Image) Set(x, y int, v float64) { m.Pix[y*m.Width+x] = v }
func (m *Image) Add(x, y int, v float64) { m.Pix[y*m.Width+x] += v }

// In reports whether (x, y) is a valid pixel index.
func (m *Image) In(x, y int) bool {
	return x >= 0 && y >= 0 && x < m.Width && y < m.Height
}

// Empty reports an image with no pixels.
func (m *Image) Empty() bool {
	return m == nil || len(m.Pix) == 0
}

// Clone returns a deep copy.
func (m *Image) Clone() *Image {
	return &Image{Width: m.Width, Height: m.Height, Pix: slices.Clone(m.Pix)}
}

// AddImage adds o pixel by pixel. Both images must have the same shape.
func (m *Image) AddImage(o *Image) {
	for i, v := range o.Pix {
		m.Pix[i] += v
	}
}

// Scale multiplies every pixel by f.
func (m *Image) Scale(f float64) {
	for i := range m.Pix {
		m.Pix[i] *= f
	}
}

// Sum returns the sum of all finite pixels.
func (m *Image) Sum() float64 {
	var s float64
	for _, v := range m.Pix {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			s += v
		}
	}
	return s
}

// MinMax returns the extreme finite values. ok is false when no pixel is finite.
func (m *Image) MinMax() (lo, hi float64, ok bool) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, v := range m.Pix {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		lo = min(lo, v)
		hi = max(hi, v)
		ok = true
	}
	return lo, hi, ok
}

// Brightest returns the first maximal finite pixel in row-major order.
func (m *Image) Brightest() (x, y int) {
	best := math.Inf(-1)
	for i, v := range m.Pix {
		if v > best {
			best = v
			x, y = i%m.Width, i/m.Width
		}
	}
	return x, y
}

// Finite returns a copy of the finite pixel values.
func (m *Image) Finite() []float64 {
	out := make([]float64, 0, len(m.Pix))
	for _, v := range m.Pix {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			out = append(out, v)
		}
	}
	return out
}

// SubImage copies the size by size region whose first pixel is (x0, y0).
// Pixels outside m are NaN.
func (m *Image) SubImage(x0, y0, size int) *Image {
	out := New(size, size)
	for y := range size {
		for x := range size {
			sx, sy := x0+x, y0+y
			if m.In(sx, sy) {
				out.Set(x, y, m.At(sx, sy))
			} else {
				out.Set(x, y, math.NaN())
			}
		}
	}
	return out
}
