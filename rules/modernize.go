//go:build ruleguard

package gorules

import "github.com/quasilyte/go-ruleguard/dsl"

// WaitGroupGo flags the Add/Done goroutine pattern that sync.WaitGroup.Go
// replaces (Go 1.25+).
func WaitGroupGo(m dsl.Matcher) {
	m.Match(`go func() { defer $wg.Done(); $*_ }()`).
		Where(m["wg"].Type.Is("*sync.WaitGroup")).
		Report("use $wg.Go(func() { ... }) (Go 1.25+)").
		Suggest("$wg.Go(func() { $*_ })")

	m.Match(`$wg.Add(1)`).
		Where(m["wg"].Type.Is("*sync.WaitGroup")).
		Report("consider $wg.Go(), which calls Add(1) itself (Go 1.25+)")
}

// RangeOverInteger flags counted loops that can range over an integer.
func RangeOverInteger(m dsl.Matcher) {
	m.Match(`for $i := 0; $i < $n; $i++ { $*body }`).
		Where(!m["n"].Text.Matches(`.*\.N$`)).
		Report("use for $i := range $n (Go 1.22+)").
		Suggest("for $i := range $n { $body }")
}

// MinMaxBuiltin flags integer min/max computed through float64.
func MinMaxBuiltin(m dsl.Matcher) {
	m.Match(`int(math.Min(float64($a), float64($b)))`).
		Report("use min($a, $b)").
		Suggest("min($a, $b)")

	m.Match(`int(math.Max(float64($a), float64($b)))`).
		Report("use max($a, $b)").
		Suggest("max($a, $b)")
}

// SortPackage flags sort helpers that the slices package replaces.
func SortPackage(m dsl.Matcher) {
	m.Match(`sort.Float64s($s)`).
		Report("use slices.Sort($s)").
		Suggest("slices.Sort($s)")

	m.Match(`sort.Ints($s)`).
		Report("use slices.Sort($s)").
		Suggest("slices.Sort($s)")

	m.Match(`sort.Strings($s)`).
		Report("use slices.Sort($s)").
		Suggest("slices.Sort($s)")
}

// TestingContext flags tests that build their own background context where
// t.Context() is cancelled automatically (Go 1.24+).
func TestingContext(m dsl.Matcher) {
	m.Match(`$ctx, $cancel := context.WithCancel(context.Background()); defer $cancel()`).
		Where(m.File().Name.Matches(`_test\.go$`)).
		Report("use t.Context() in tests (Go 1.24+)")
}
