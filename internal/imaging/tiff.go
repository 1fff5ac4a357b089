package imaging

import (
	"image"
	"image/color"
	"io"
	"math"

	"golang.org/x/image/tiff"
)

// Quantization records the linear map from 16-bit TIFF values back to pixel values:
// value = Offset + Scale * level.
type Quantization struct {
	Offset float64 `json:"offset"`
	Scale  float64 `json:"scale"`
}

// ToGray16 quantizes m linearly between its finite minimum and maximum.
// Non-finite pixels become 0.
func (m *Image) ToGray16() (*image.Gray16, Quantization) {
	out := image.NewGray16(image.Rect(0, 0, m.Width, m.Height))
	lo, hi, ok := m.MinMax()
	if !ok {
		return out, Quantization{}
	}
	q := Quantization{Offset: lo, Scale: (hi - lo) / math.MaxUint16}
	for y := range m.Height {
		for x := range m.Width {
			v := m.At(x, y)
			var level uint16
			if q.Scale > 0 && !math.IsNaN(v) && !math.IsInf(v, 0) {
				level = uint16(math.Round((v - lo) / q.Scale))
			}
			// FITS-style images have y increasing upward; TIFF rows go down.
			out.SetGray16(x, m.Height-1-y, color.Gray16{Y: level})
		}
	}
	return out, q
}

// WriteTIFF writes m as a deflate-compressed 16-bit grayscale TIFF.
func (m *Image) WriteTIFF(w io.Writer) (Quantization, error) {
	gray, q := m.ToGray16()
	err := tiff.Encode(w, gray, &tiff.Options{Compression: tiff.Deflate, Predictor: true})
	return q, err
}

// ReadTIFF decodes a grayscale TIFF written by WriteTIFF and restores pixel values.
func ReadTIFF(r io.Reader, q Quantization) (*Image, error) {
	src, err := tiff.Decode(r)
	if err != nil {
		return nil, err
	}
	b := src.Bounds()
	m := New(b.Dx(), b.Dy())
	for y := range m.Height {
		for x := range m.Width {
			c := color.Gray16Model.Convert(src.At(b.Min.X+x, b.Min.Y+m.Height-1-y)).(color.Gray16)
			m.Set(x, y, q.Offset+q.Scale*float64(c.Y))
		}
	}
	return m, nil
}
