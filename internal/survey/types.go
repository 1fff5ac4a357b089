// Package survey defines the sources, exposures and filters of the imaging survey.
package survey

import (
	"fmt"
	"slices"
	"strings"

	"github.com/romanasp/campari/internal/errors"
)

// ObjectClass separates time-variable sources from static ones.
type ObjectClass string

const (
	ClassTransient ObjectClass = "transient"
	ClassStatic    ObjectClass = "static"
)

// ParseObjectClass accepts "transient", "static" and the catalog aliases "SN" and "star".
func ParseObjectClass(s string) (ObjectClass, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "transient", "sn", "supernova":
		return ClassTransient, nil
	case "static", "star":
		return ClassStatic, nil
	}
	return "", errors.Newf("unknown object class %q", s).
		Category(errors.CategoryValidation).
		Build()
}

// SkyCoord is an ICRS position in degrees.
type SkyCoord struct {
	RA  float64 `json:"ra" yaml:"ra"`
	Dec float64 `json:"dec" yaml:"dec"`
}

func (c SkyCoord) String() string {
	return fmt.Sprintf("(%.6f, %+.6f)", c.RA, c.Dec)
}

// Source is a catalog object resolved for processing. Epochs are MJD.
type Source struct {
	ID    int64       `json:"id"`
	RA    float64     `json:"ra"`
	Dec   float64     `json:"dec"`
	Class ObjectClass `json:"class"`
	Start float64     `json:"start"`
	End   float64     `json:"end"`
	Peak  float64     `json:"peak"`
	Host  *SkyCoord   `json:"host,omitempty"`

	ShardID int `json:"shard_id"`
	Row     int `json:"row"`
}

// Coord returns the source position.
func (s Source) Coord() SkyCoord {
	return SkyCoord{RA: s.RA, Dec: s.Dec}
}

// InWindow reports whether mjd lies in [Start, End]. Both bounds are inclusive.
func (s Source) InWindow(mjd float64) bool {
	return mjd >= s.Start && mjd <= s.End
}

// Exposure is one detector readout. Exposures are facts and never mutated
// after construction; the exposure index only filters and orders copies.
type Exposure struct {
	Pointing  int       `json:"pointing"`
	Detector  int       `json:"detector"`
	Band      Band      `json:"band"`
	MJD       float64   `json:"mjd"`
	Detected  bool      `json:"detected"`
	Footprint Footprint `json:"footprint"`
	TrueFlux  float64   `json:"true_flux"`
}

// Key identifies an exposure by pointing and detector.
type Key struct {
	Pointing int
	Detector int
}

func (e Exposure) Key() Key {
	return Key{Pointing: e.Pointing, Detector: e.Detector}
}

// Less orders keys by pointing then detector.
func (k Key) Less(o Key) bool {
	if k.Pointing != o.Pointing {
		return k.Pointing < o.Pointing
	}
	return k.Detector < o.Detector
}

// ExposureList splits exposures into background and detection epochs.
// Each subset is sorted by MJD, and no exposure appears in both.
type ExposureList struct {
	Background []Exposure `json:"background"`
	Detection  []Exposure `json:"detection"`
}

// Len returns the total number of exposures.
func (l ExposureList) Len() int {
	return len(l.Background) + len(l.Detection)
}

// All returns background then detection exposures.
func (l ExposureList) All() []Exposure {
	return slices.Concat(l.Background, l.Detection)
}

// Chronological returns every exposure sorted by MJD, ties broken by key.
func (l ExposureList) Chronological() []Exposure {
	all := l.All()
	slices.SortStableFunc(all, CompareEpoch)
	return all
}

// CompareEpoch orders exposures by MJD, then pointing, then detector.
func CompareEpoch(a, b Exposure) int {
	switch {
	case a.MJD < b.MJD:
		return -1
	case a.MJD > b.MJD:
		return 1
	case a.Key().Less(b.Key()):
		return -1
	case b.Key().Less(a.Key()):
		return 1
	}
	return 0
}
