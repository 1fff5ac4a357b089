//go:build ruleguard

// Package gorules contains custom linting rules for golangci-lint via ruleguard.
package gorules

import "github.com/quasilyte/go-ruleguard/dsl"

// GlobalRand flags calls to the package-level math/rand generators.
// Simulations must draw from a seeded *rand.Rand so that a seed reproduces
// the same cutouts.
//
// Flagged:
//
//	x := rand.NormFloat64()
//
// Expected:
//
//	rng := simulate.NewRand(seed)
//	x := rng.NormFloat64()
func GlobalRand(m dsl.Matcher) {
	m.Import("math/rand/v2")

	m.Match(
		`rand.Float64()`,
		`rand.NormFloat64()`,
		`rand.ExpFloat64()`,
		`rand.IntN($_)`,
		`rand.Int64N($_)`,
		`rand.Uint64()`,
		`rand.Perm($_)`,
		`rand.Shuffle($*_)`,
	).
		Report("use a seeded *rand.Rand instead of the global math/rand/v2 source")

	m.Match(`rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), $_))`).
		Report("seed simulations from configuration, not the clock")
}

// NaNComparison flags comparisons against math.NaN(), which are always false.
func NaNComparison(m dsl.Matcher) {
	m.Match(`$x == math.NaN()`, `math.NaN() == $x`).
		Report("comparison with NaN is always false; use math.IsNaN($x)").
		Suggest("math.IsNaN($x)")

	m.Match(`$x != math.NaN()`, `math.NaN() != $x`).
		Report("comparison with NaN is always true; use !math.IsNaN($x)").
		Suggest("!math.IsNaN($x)")
}

// SquareWithPow flags math.Pow with a constant exponent of 2 in pixel loops.
func SquareWithPow(m dsl.Matcher) {
	m.Match(`math.Pow($x, 2)`).
		Where(m["x"].Pure).
		Report("use $x * $x instead of math.Pow($x, 2)").
		Suggest("$x * $x")
}
