package catalog

import (
	"encoding/csv"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/romanasp/campari/internal/errors"
	"github.com/romanasp/campari/internal/survey"
	"github.com/romanasp/campari/internal/wcs"
)

var (
	sourceColumns   = []string{"id", "ra", "dec", "class", "start", "end", "peak"}
	exposureColumns = []string{"pointing", "detector", "band", "mjd", "ra", "dec", "pa"}
)

// csvTable maps header names to column positions.
type csvTable struct {
	name string
	cols map[string]int
	line int
	rec  []string
}

func newCSVTable(name string, header []string, required []string) (*csvTable, error) {
	t := &csvTable{name: name, cols: make(map[string]int, len(header))}
	for i, h := range header {
		t.cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	var missing []string
	for _, c := range required {
		if _, ok := t.cols[c]; !ok {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return nil, errors.Newf("%s table is missing columns: %s", name, strings.Join(missing, ", ")).
			Category(errors.CategoryFileParsing).
			Build()
	}
	return t, nil
}

func (t *csvTable) has(col string) bool {
	i, ok := t.cols[col]
	return ok && i < len(t.rec) && strings.TrimSpace(t.rec[i]) != ""
}

func (t *csvTable) str(col string) string {
	return strings.TrimSpace(t.rec[t.cols[col]])
}

func (t *csvTable) float(col string) (float64, error) {
	v, err := strconv.ParseFloat(t.str(col), 64)
	if err != nil {
		return 0, t.fieldError(col, err)
	}
	return v, nil
}

func (t *csvTable) integer(col string) (int64, error) {
	v, err := strconv.ParseInt(t.str(col), 10, 64)
	if err != nil {
		return 0, t.fieldError(col, err)
	}
	return v, nil
}

func (t *csvTable) fieldError(col string, err error) error {
	return errors.New(err).
		Category(errors.CategoryFileParsing).
		Context("table", t.name).
		Context("line", t.line).
		Context("column", col).
		Build()
}

// ReadSourcesCSV parses a source table with header
// id,ra,dec,class,start,end,peak and optional host_ra,host_dec,shard,peak_mag.
func ReadSourcesCSV(r io.Reader) ([]SourceRow, error) {
	var out []SourceRow
	err := readCSV(r, "sources", sourceColumns, func(t *csvTable) error {
		row := SourceRow{HostRA: math.NaN(), HostDec: math.NaN(), PeakMag: math.NaN()}
		id, err := t.integer("id")
		if err != nil {
			return err
		}
		row.ID = id
		for _, f := range []struct {
			col string
			dst *float64
		}{
			{"ra", &row.RA},
			{"dec", &row.Dec},
			{"start", &row.Start},
			{"end", &row.End},
			{"peak", &row.Peak},
		} {
			if *f.dst, err = t.float(f.col); err != nil {
				return err
			}
		}
		if row.Class, err = survey.ParseObjectClass(t.str("class")); err != nil {
			return t.fieldError("class", err)
		}
		if row.Start > row.End {
			return t.fieldError("end", errors.NewStd("window end precedes start"))
		}
		if t.has("host_ra") && t.has("host_dec") {
			if row.HostRA, err = t.float("host_ra"); err != nil {
				return err
			}
			if row.HostDec, err = t.float("host_dec"); err != nil {
				return err
			}
		}
		if t.has("peak_mag") {
			if row.PeakMag, err = t.float("peak_mag"); err != nil {
				return err
			}
		}
		if t.has("shard") {
			shard, err := t.integer("shard")
			if err != nil {
				return err
			}
			row.ShardID = int(shard)
		} else {
			row.ShardID = ShardFor(row.RA, row.Dec)
		}
		out = append(out, row)
		return nil
	})
	return out, err
}

// ReadExposuresCSV parses a pointing table with header
// pointing,detector,band,mjd,ra,dec,pa and optional detected,true_flux.
// ra and dec give the detector centre and pa its position angle in degrees;
// the footprint is the full survey detector.
func ReadExposuresCSV(r io.Reader) ([]survey.Exposure, error) {
	var out []survey.Exposure
	err := readCSV(r, "exposures", exposureColumns, func(t *csvTable) error {
		var e survey.Exposure
		p, err := t.integer("pointing")
		if err != nil {
			return err
		}
		d, err := t.integer("detector")
		if err != nil {
			return err
		}
		e.Pointing, e.Detector = int(p), int(d)
		if e.Band, err = survey.ParseBand(t.str("band")); err != nil {
			return t.fieldError("band", err)
		}
		if e.MJD, err = t.float("mjd"); err != nil {
			return err
		}
		ra, err := t.float("ra")
		if err != nil {
			return err
		}
		dec, err := t.float("dec")
		if err != nil {
			return err
		}
		pa, err := t.float("pa")
		if err != nil {
			return err
		}
		if t.has("detected") {
			if e.Detected, err = strconv.ParseBool(t.str("detected")); err != nil {
				return t.fieldError("detected", err)
			}
		}
		if t.has("true_flux") {
			if e.TrueFlux, err = t.float("true_flux"); err != nil {
				return err
			}
		}
		h := wcs.NewHeader(ra, dec, survey.PixelScale, pa*math.Pi/180, survey.DetectorSize, survey.DetectorSize)
		e.Footprint = survey.FootprintFromHeader(h)
		out = append(out, e)
		return nil
	})
	return out, err
}

func readCSV(r io.Reader, name string, required []string, fn func(*csvTable) error) error {
	cr := csv.NewReader(r)
	cr.Comment = '#'
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return errors.New(err).
			Category(errors.CategoryFileParsing).
			Context("table", name).
			Context("operation", "read_header").
			Build()
	}
	t, err := newCSVTable(name, header, required)
	if err != nil {
		return err
	}
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return errors.New(err).
				Category(errors.CategoryFileParsing).
				Context("table", name).
				Build()
		}
		line, _ := cr.FieldPos(0)
		if len(rec) < len(header) {
			return errors.Newf("%s line %d has %d fields, want %d", name, line, len(rec), len(header)).
				Category(errors.CategoryFileParsing).
				Build()
		}
		t.line, t.rec = line, rec
		if err := fn(t); err != nil {
			return err
		}
	}
}
