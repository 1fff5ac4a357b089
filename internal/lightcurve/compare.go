package lightcurve

import (
	"fmt"
	"math"

	"github.com/romanasp/campari/internal/errors"
)

// Mismatch is one cell that differs between two light curves.
type Mismatch struct {
	Column string
	Row    int
	Got    string
	Want   string
}

func (m Mismatch) String() string {
	return fmt.Sprintf("row %d %s: got %s, want %s", m.Row, m.Column, m.Got, m.Want)
}

// Compare checks current against reference column by column. Float columns
// agree when |got-want| <= rtol*|want| or both are NaN; other columns must
// match exactly. Curves of different length cannot be compared.
func Compare(current, reference *Curve, rtol float64) ([]Mismatch, error) {
	if current.Len() != reference.Len() {
		return nil, errors.Newf("light curve has %d rows, reference has %d", current.Len(), reference.Len()).
			Category(errors.CategoryValidation).
			SourceContext(reference.SourceID, string(reference.Band)).
			Build()
	}

	var out []Mismatch
	for i := range current.Points {
		got, want := &current.Points[i], &reference.Points[i]
		for _, c := range columns {
			var same bool
			if c.value != nil {
				same = withinTolerance(c.value(got), c.value(want), rtol)
			} else {
				same = c.format(got) == c.format(want)
			}
			if !same {
				out = append(out, Mismatch{Column: c.name, Row: i, Got: c.format(got), Want: c.format(want)})
			}
		}
	}
	return out, nil
}

func withinTolerance(got, want, rtol float64) bool {
	if math.IsNaN(got) || math.IsNaN(want) {
		return math.IsNaN(got) && math.IsNaN(want)
	}
	if got == want {
		return true
	}
	return math.Abs(got-want) <= rtol*math.Abs(want)
}
