package simulate

import (
	"math"
	"math/rand/v2"

	"github.com/romanasp/campari/internal/errors"
	"github.com/romanasp/campari/internal/imaging"
)

// Noise selects the background noise added to simulated stamps.
type Noise string

const (
	NoiseNone    Noise = "none"
	NoiseUniform Noise = "uniform"
	NoisePoisson Noise = "poisson"
)

// ParseNoise accepts an empty string as NoiseNone.
func ParseNoise(s string) (Noise, error) {
	switch n := Noise(s); n {
	case "", NoiseNone:
		return NoiseNone, nil
	case NoiseUniform, NoisePoisson:
		return n, nil
	default:
		return "", errors.Newf("unknown noise model %q", s).
			Category(errors.CategoryValidation).
			Build()
	}
}

// NewRand returns the generator every simulation draws from.
func NewRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// AddNoise perturbs img in place. Uniform noise draws each pixel offset from
// [-level, level). Poisson noise replaces each pixel by a Poisson draw around
// its value plus a sky of level, then removes the sky again.
func AddNoise(img *imaging.Image, kind Noise, level float64, rng *rand.Rand) error {
	switch kind {
	case "", NoiseNone:
		return nil
	case NoiseUniform, NoisePoisson:
	default:
		return errors.Newf("unknown noise model %q", kind).
			Category(errors.CategoryValidation).
			Build()
	}
	if level < 0 || math.IsNaN(level) || math.IsInf(level, 0) {
		return errors.Newf("noise level must be finite and non-negative, got %g", level).
			Category(errors.CategoryValidation).
			Build()
	}
	if rng == nil {
		return errors.Newf("noise requires a random source").
			Category(errors.CategoryValidation).
			Build()
	}

	for i, v := range img.Pix {
		switch kind {
		case NoiseUniform:
			img.Pix[i] = v + level*(2*rng.Float64()-1)
		case NoisePoisson:
			img.Pix[i] = poisson(rng, max(v, 0)+level) - level
		}
	}
	return nil
}

// poisson draws from a Poisson distribution with mean lambda. Small means use
// Knuth's product method, larger ones Hörmann's transformed rejection.
func poisson(rng *rand.Rand, lambda float64) float64 {
	if !(lambda > 0) {
		return 0
	}
	if lambda < 10 {
		limit := math.Exp(-lambda)
		k := 0.0
		p := rng.Float64()
		for p > limit {
			k++
			p *= rng.Float64()
		}
		return k
	}

	slam := math.Sqrt(lambda)
	loglam := math.Log(lambda)
	b := 0.931 + 2.53*slam
	a := -0.059 + 0.02483*b
	invAlpha := 1.1239 + 1.1328/(b-3.4)
	vr := 0.9277 - 3.6224/(b-2)
	for {
		u := rng.Float64() - 0.5
		v := rng.Float64()
		us := 0.5 - math.Abs(u)
		k := math.Floor((2*a/us+b)*u + lambda + 0.43)
		if us >= 0.07 && v <= vr {
			return k
		}
		if k < 0 || (us < 0.013 && v > us) {
			continue
		}
		lg, _ := math.Lgamma(k + 1)
		if math.Log(v)+math.Log(invAlpha)-math.Log(a/(us*us)+b) <= -lambda+k*loglam-lg {
			return k
		}
	}
}
