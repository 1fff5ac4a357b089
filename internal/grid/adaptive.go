package grid

import (
	"math"
	"slices"

	"github.com/romanasp/campari/internal/imaging"
	"github.com/romanasp/campari/internal/wcs"
)

// adaptive subdivides each pixel according to its percentile rank: with k
// thresholds a pixel at rank r (the number of thresholds it reaches) gets
// ceil((k+1)/(k+1-r)) points per side. Pixels below every threshold are
// sampled once every SparseStride pixels. Points run outward from the
// brightest pixel.
func adaptive(_, _ float64, _ wcs.WCS, p Params) ([]pixel, error) {
	_, _, bx, by, err := imageStats(PolicyAdaptive, p.Image)
	if err != nil {
		return nil, err
	}

	percentiles := p.Percentiles
	if len(percentiles) == 0 {
		percentiles = DefaultPercentiles
	}
	for _, q := range percentiles {
		if q < 0 || q > 100 || math.IsNaN(q) {
			return nil, gridError("percentile %g is outside [0, 100]", q)
		}
	}
	percentiles = slices.Clone(percentiles)
	slices.Sort(percentiles)

	stride := p.SparseStride
	if stride <= 0 {
		stride = DefaultSparseStride
	}

	img := p.Image
	thresholds := imaging.Percentiles(img.Finite(), percentiles)
	k := len(thresholds)

	var out []pixel
	for y := range img.Height {
		for x := range img.Width {
			v := img.At(x, y)
			if math.IsNaN(v) {
				continue
			}
			r := rank(v, thresholds)
			if r == 0 {
				if x%stride == 0 && y%stride == 0 {
					out = append(out, pixel{float64(x), float64(y)})
				}
				continue
			}
			n := int(math.Ceil(float64(k+1) / float64(k+1-r)))
			for j := range n {
				for i := range n {
					out = append(out, pixel{
						x: float64(x) - 0.5 + (float64(i)+0.5)/float64(n),
						y: float64(y) - 0.5 + (float64(j)+0.5)/float64(n),
					})
				}
			}
		}
	}

	slices.SortFunc(out, byDistance(float64(bx), float64(by)))
	return out, nil
}

// rank counts the ascending thresholds that v reaches.
func rank(v float64, thresholds []float64) int {
	r := 0
	for _, t := range thresholds {
		if v >= t {
			r++
		}
	}
	return r
}
