package lightcurve

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/romanasp/campari/internal/errors"
	"github.com/romanasp/campari/internal/logger"
	"github.com/romanasp/campari/internal/survey"
)

const ecsvSignature = "# %ECSV 1.0"

type column struct {
	name     string
	datatype string
	unit     string
	format   func(p *Point) string
	parse    func(p *Point, s string) error
	// value is set for float columns, which compare with a tolerance.
	value func(p *Point) float64
}

func floatColumn(name, unit string, field func(p *Point) *float64) column {
	return column{
		name:     name,
		datatype: "float64",
		unit:     unit,
		format:   func(p *Point) string { return strconv.FormatFloat(*field(p), 'g', -1, 64) },
		parse: func(p *Point, s string) (err error) {
			*field(p), err = strconv.ParseFloat(s, 64)
			return err
		},
		value: func(p *Point) float64 { return *field(p) },
	}
}

func intColumn(name string, field func(p *Point) *int) column {
	return column{
		name:     name,
		datatype: "int64",
		format:   func(p *Point) string { return strconv.Itoa(*field(p)) },
		parse: func(p *Point, s string) (err error) {
			*field(p), err = strconv.Atoi(s)
			return err
		},
	}
}

// columns is the table layout, in file order.
var columns = []column{
	floatColumn("mjd", "d", func(p *Point) *float64 { return &p.MJD }),
	floatColumn("true_flux", "", func(p *Point) *float64 { return &p.TrueFlux }),
	floatColumn("measured_flux", "", func(p *Point) *float64 { return &p.MeasuredFlux }),
	floatColumn("flux_err", "", func(p *Point) *float64 { return &p.FluxErr }),
	floatColumn("mag", "mag", func(p *Point) *float64 { return &p.Mag }),
	floatColumn("mag_err", "mag", func(p *Point) *float64 { return &p.MagErr }),
	floatColumn("zp", "mag", func(p *Point) *float64 { return &p.ZeroPoint }),
	{
		name:     "band",
		datatype: "string",
		format:   func(p *Point) string { return string(p.Band) },
		parse: func(p *Point, s string) error {
			p.Band = survey.Band(s)
			return nil
		},
	},
	{
		name:     "detected",
		datatype: "bool",
		format: func(p *Point) string {
			if p.Detected {
				return "True"
			}
			return "False"
		},
		parse: func(p *Point, s string) (err error) {
			p.Detected, err = strconv.ParseBool(s)
			return err
		},
	},
	intColumn("pointing", func(p *Point) *int { return &p.Pointing }),
	intColumn("detector", func(p *Point) *int { return &p.Detector }),
}

type ecsvColumn struct {
	Name     string `yaml:"name"`
	Unit     string `yaml:"unit,omitempty"`
	Datatype string `yaml:"datatype"`
}

type ecsvMeta struct {
	SourceID int64   `yaml:"source_id"`
	Band     string  `yaml:"band"`
	Label    string  `yaml:"label"`
	RA       float64 `yaml:"ra"`
	Dec      float64 `yaml:"dec"`
	RunID    string  `yaml:"run_id,omitempty"`
}

type ecsvHeader struct {
	Delimiter string       `yaml:"delimiter"`
	Datatype  []ecsvColumn `yaml:"datatype"`
	Meta      ecsvMeta     `yaml:"meta"`
	Schema    string       `yaml:"schema"`
}

// Encode writes lc as an ECSV table with a space delimiter.
func Encode(w io.Writer, lc *Curve) error {
	h := ecsvHeader{
		Delimiter: " ",
		Meta: ecsvMeta{
			SourceID: lc.SourceID,
			Band:     string(lc.Band),
			Label:    lc.Label,
			RA:       lc.RA,
			Dec:      lc.Dec,
			RunID:    lc.RunID,
		},
		Schema: "astropy-2.0",
	}
	for _, c := range columns {
		h.Datatype = append(h.Datatype, ecsvColumn{Name: c.name, Unit: c.unit, Datatype: c.datatype})
	}
	yml, err := yaml.Marshal(h)
	if err != nil {
		return err
	}

	bw := bufio.NewWriter(w)
	bw.WriteString(ecsvSignature + "\n")
	fmt.Fprintln(bw, "# ---")
	for line := range strings.Lines(string(yml)) {
		fmt.Fprintf(bw, "# %s", line)
	}

	names := make([]string, len(columns))
	for i, c := range columns {
		names[i] = c.name
	}
	fmt.Fprintln(bw, strings.Join(names, " "))
	fields := make([]string, len(columns))
	for i := range lc.Points {
		for j, c := range columns {
			fields[j] = c.format(&lc.Points[i])
		}
		fmt.Fprintln(bw, strings.Join(fields, " "))
	}
	return bw.Flush()
}

// Write stores lc at path. Light curves are not replaced unless overwrite
// is set; an existing file is a conflict. The table is written to a temporary
// file in the same directory first, so a failed write leaves no file behind.
func Write(path string, lc *Curve, overwrite bool) error {
	return writeWith(path, lc, overwrite, Encode)
}

func writeWith(path string, lc *Curve, overwrite bool, encode func(io.Writer, *Curve) error) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return ioError(err, path, "create_output_dir")
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return conflictError(path, lc)
		}
	}

	f, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return ioError(err, path, "create_lightcurve")
	}
	tmp := f.Name()
	defer os.Remove(tmp)

	err = encode(f, lc)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return ioError(err, path, "write_lightcurve")
	}
	if err := os.Chmod(tmp, 0o644); err != nil {
		return ioError(err, path, "write_lightcurve")
	}

	if overwrite {
		err = os.Rename(tmp, path)
	} else {
		// Link fails if another writer created path after the check above.
		err = os.Link(tmp, path)
		if errors.Is(err, fs.ErrExist) {
			return conflictError(path, lc)
		}
	}
	if err != nil {
		return ioError(err, path, "move_lightcurve")
	}

	log.Info("saved light curve",
		logger.Int64("source_id", lc.SourceID),
		logger.String("band", string(lc.Band)),
		logger.String("path", path),
		logger.Int("points", len(lc.Points)))
	return nil
}

func conflictError(path string, lc *Curve) error {
	return errors.Newf("light curve %s already exists", filepath.Base(path)).
		Category(errors.CategoryConflict).
		SourceContext(lc.SourceID, string(lc.Band)).
		Context("path", path).
		Build()
}

// Decode parses an ECSV table written by Encode. Columns are matched by name.
func Decode(r io.Reader) (*Curve, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	if !sc.Scan() || !strings.HasPrefix(sc.Text(), "# %ECSV") {
		return nil, parseError(0, "missing ECSV signature")
	}

	var yml bytes.Buffer
	var names []string
	var rows [][]string
	lineNo := 1
	for sc.Scan() {
		lineNo++
		line := sc.Text()
		if strings.HasPrefix(line, "#") {
			if names != nil {
				continue
			}
			body := strings.TrimPrefix(strings.TrimPrefix(line, "#"), " ")
			if strings.TrimSpace(body) == "---" {
				continue
			}
			yml.WriteString(body)
			yml.WriteByte('\n')
			continue
		}
		if strings.TrimSpace(line) == "" {
			continue
		}
		fields := strings.Fields(line)
		if names == nil {
			names = fields
			continue
		}
		if len(fields) != len(names) {
			return nil, parseError(lineNo, fmt.Sprintf("row has %d fields, header has %d", len(fields), len(names)))
		}
		rows = append(rows, fields)
	}
	if err := sc.Err(); err != nil {
		return nil, parseError(lineNo, err.Error())
	}

	var h ecsvHeader
	if err := yaml.Unmarshal(yml.Bytes(), &h); err != nil {
		return nil, parseError(0, fmt.Sprintf("invalid ECSV header: %v", err))
	}
	if h.Delimiter != "" && h.Delimiter != " " {
		return nil, parseError(0, fmt.Sprintf("unsupported delimiter %q", h.Delimiter))
	}

	index := make(map[string]int, len(names))
	for i, n := range names {
		index[n] = i
	}
	for _, c := range columns {
		if _, ok := index[c.name]; !ok {
			return nil, parseError(0, fmt.Sprintf("missing column %q", c.name))
		}
	}

	lc := &Curve{
		SourceID: h.Meta.SourceID,
		Band:     survey.Band(h.Meta.Band),
		Label:    h.Meta.Label,
		RA:       h.Meta.RA,
		Dec:      h.Meta.Dec,
		RunID:    h.Meta.RunID,
		Points:   make([]Point, len(rows)),
	}
	for i, row := range rows {
		for _, c := range columns {
			if err := c.parse(&lc.Points[i], row[index[c.name]]); err != nil {
				return nil, parseError(0, fmt.Sprintf("row %d column %s: %v", i, c.name, err))
			}
		}
	}
	return lc, nil
}

// Read loads the light curve at path.
func Read(path string) (*Curve, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, errors.Newf("light curve %s not found", path).
				Category(errors.CategoryNotFound).
				Context("path", path).
				Build()
		}
		return nil, ioError(err, path, "open_lightcurve")
	}
	defer f.Close()

	lc, err := Decode(f)
	if err != nil {
		var ee *errors.EnhancedError
		if errors.As(err, &ee) {
			if ee.Context == nil {
				ee.Context = make(map[string]any)
			}
			ee.Context["path"] = path
		}
		return nil, err
	}
	return lc, nil
}

func ioError(err error, path, op string) error {
	return errors.New(err).
		Category(errors.CategoryFileIO).
		Context("path", path).
		Context("operation", op).
		Build()
}

func parseError(line int, msg string) error {
	b := errors.Newf("ecsv: %s", msg).
		Category(errors.CategoryFileParsing)
	if line > 0 {
		b = b.Context("line", line)
	}
	return b.Build()
}
