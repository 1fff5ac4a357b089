package simulate

import (
	"math"
	"math/rand/v2"
	"slices"

	"github.com/romanasp/campari/internal/imaging"
	"github.com/romanasp/campari/internal/survey"
)

// Stamp describes the pixel grid objects are drawn on.
type Stamp struct {
	Size  int
	Scale float64 // arcsec per pixel
}

func (s Stamp) center() float64 { return float64(s.Size-1) / 2 }

// Galaxy is the static host drawn under the transient.
type Galaxy struct {
	Flux float64
	// X and Y give the centre in stamp pixels.
	X, Y float64
	// HalfLightRadius of the exponential disk in arcsec.
	HalfLightRadius float64
	// Delta draws a point source instead of a disk.
	Delta bool
}

// exponentialHalfLight is the half-light radius of an exponential disk in
// units of its scale length.
const exponentialHalfLight = 1.6783469900166605

const oversample = 5

// SimulateGalaxy draws g on stamp convolved with the PSF. A delta profile
// conserves its flux within the stamp; a disk loses the wings that fall
// outside it.
func SimulateGalaxy(g Galaxy, band survey.Band, psf ChromaticPSF, sed SED, stamp Stamp) (*imaging.Image, error) {
	if stamp.Size < 1 || !(stamp.Scale > 0) {
		return nil, simulationError("invalid stamp %dpx at %g arcsec/px", stamp.Size, stamp.Scale)
	}
	c := stamp.center()
	if g.Delta {
		k, err := psf.Kernel(sed, band, g.X-c, g.Y-c, stamp.Size)
		if err != nil {
			return nil, err
		}
		k.Scale(g.Flux)
		return k, nil
	}
	if !(g.HalfLightRadius > 0) {
		return nil, simulationError("galaxy half-light radius must be positive, got %g", g.HalfLightRadius)
	}

	h := g.HalfLightRadius / exponentialHalfLight / stamp.Scale
	norm := g.Flux / (2 * math.Pi * h * h)
	disk := imaging.New(stamp.Size, stamp.Size)
	sub := 1.0 / oversample
	for y := range stamp.Size {
		for x := range stamp.Size {
			var v float64
			for j := range oversample {
				for i := range oversample {
					dx := float64(x) - 0.5 + (float64(i)+0.5)*sub - g.X
					dy := float64(y) - 0.5 + (float64(j)+0.5)*sub - g.Y
					v += math.Exp(-math.Hypot(dx, dy) / h)
				}
			}
			disk.Set(x, y, norm*v*sub*sub)
		}
	}

	size := stamp.Size | 1
	k, err := psf.Kernel(sed, band, 0, 0, size)
	if err != nil {
		return nil, err
	}
	return convolve(disk, k), nil
}

// convolve applies an odd-sized kernel with zero padding.
func convolve(img, k *imaging.Image) *imaging.Image {
	out := imaging.New(img.Width, img.Height)
	hx, hy := k.Width/2, k.Height/2
	for y := range img.Height {
		for x := range img.Width {
			var v float64
			for j := range k.Height {
				sy := y + hy - j
				if sy < 0 || sy >= img.Height {
					continue
				}
				for i := range k.Width {
					sx := x + hx - i
					if sx < 0 || sx >= img.Width {
						continue
					}
					v += k.At(i, j) * img.At(sx, sy)
				}
			}
			out.Set(x, y, v)
		}
	}
	return out
}

// SimulateSupernova draws a point source of flux at stamp pixel (x, y). With
// photonOps the PSF is sampled by shooting round(flux) photons, otherwise the
// kernel is scaled directly.
func SimulateSupernova(x, y float64, stamp Stamp, flux float64, sed SED, band survey.Band, psf ChromaticPSF, photonOps bool, rng *rand.Rand) (*imaging.Image, error) {
	if stamp.Size < 1 {
		return nil, simulationError("invalid stamp size %d", stamp.Size)
	}
	if flux == 0 {
		return imaging.New(stamp.Size, stamp.Size), nil
	}
	c := stamp.center()
	k, err := psf.Kernel(sed, band, x-c, y-c, stamp.Size)
	if err != nil {
		return nil, err
	}
	if !photonOps {
		k.Scale(flux)
		return k, nil
	}
	if rng == nil {
		return nil, simulationError("photon shooting requires a random source")
	}
	if flux < 0 {
		return nil, simulationError("cannot shoot a negative flux %g", flux)
	}

	cdf := make([]float64, len(k.Pix))
	var acc float64
	for i, v := range k.Pix {
		acc += v
		cdf[i] = acc
	}
	out := imaging.New(stamp.Size, stamp.Size)
	n := int(math.Round(flux))
	for range n {
		u := rng.Float64() * acc
		i, _ := slices.BinarySearch(cdf, u)
		if i >= len(cdf) {
			i = len(cdf) - 1
		}
		out.Pix[i]++
	}
	return out, nil
}
