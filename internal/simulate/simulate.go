// Package simulate renders synthetic survey cutouts of a host galaxy and a
// transient point source for validating the photometry chain.
package simulate

import (
	"math"
	"math/rand/v2"

	"github.com/romanasp/campari/internal/errors"
	"github.com/romanasp/campari/internal/imaging"
	"github.com/romanasp/campari/internal/logger"
	"github.com/romanasp/campari/internal/survey"
	"github.com/romanasp/campari/internal/wcs"
)

var log = logger.Global().Module("simulate")

// Request describes a simulated sequence of cutouts.
type Request struct {
	SourceID  int64
	NumTotal  int
	NumDetect int
	RA, Dec   float64
	// Galaxy offsets from the transient, degrees.
	GalaxyRAOffset  float64
	GalaxyDecOffset float64
	DoXShift        bool
	DoRotation      bool
	// LightCurve holds the transient flux of each of the last NumDetect epochs.
	LightCurve   []float64
	Noise        Noise
	NoiseLevel   float64
	Band         survey.Band
	DeltaProfile bool
	Size         int
	GalaxyFlux   float64
	GalaxyRadius float64 // half-light radius, arcsec
	PhotonOps    bool
	BasePointing int
	BaseDetector int
	// Epoch i is observed at MJD0 + i*Cadence.
	MJD0    float64
	Cadence float64
	Seed    uint64
	Backend wcs.Backend

	PSF ChromaticPSF
	SED SEDProvider
}

// DefaultRequest reproduces the reference validation scene.
func DefaultRequest() Request {
	return Request{
		NumTotal:        10,
		NumDetect:       5,
		RA:              7.541534306163982,
		Dec:             -44.219205940734625,
		GalaxyRAOffset:  1e-5,
		GalaxyDecOffset: 1e-5,
		DoXShift:        true,
		DoRotation:      true,
		LightCurve:      []float64{10, 100, 1e3, 1e4, 1e5},
		Noise:           NoiseNone,
		Band:            survey.F184,
		Size:            11,
		GalaxyFlux:      9e5,
		GalaxyRadius:    0.5,
		BasePointing:    662,
		BaseDetector:    11,
		MJD0:            62000,
		Cadence:         5,
		Seed:            12345,
		Backend:         wcs.BackendTangentPlane,
	}
}

func (r Request) withDefaults() Request {
	if r.PSF == nil {
		r.PSF = DefaultPSF()
	}
	if r.SED == nil {
		r.SED = FlatSED{}
	}
	if r.Noise == "" {
		r.Noise = NoiseNone
	}
	if r.Backend == "" {
		r.Backend = wcs.BackendTangentPlane
	}
	if r.GalaxyRadius == 0 {
		r.GalaxyRadius = DefaultRequest().GalaxyRadius
	}
	return r
}

func (r Request) validate() error {
	switch {
	case r.NumTotal < 1:
		return validationError("at least one image is required, got %d", r.NumTotal)
	case r.NumDetect < 0 || r.NumDetect > r.NumTotal:
		return validationError("%d detection images out of %d", r.NumDetect, r.NumTotal)
	case len(r.LightCurve) != r.NumDetect:
		return validationError("light curve has %d fluxes for %d detection images", len(r.LightCurve), r.NumDetect)
	}
	return r.validateScene()
}

func (r Request) validateScene() error {
	switch {
	case !r.Band.Valid():
		return validationError("unknown band %q", r.Band)
	case r.Size < 1:
		return validationError("stamp size must be positive, got %d", r.Size)
	case r.GalaxyFlux < 0:
		return validationError("galaxy flux must be non-negative, got %g", r.GalaxyFlux)
	case r.Dec < -90 || r.Dec > 90:
		return validationError("declination %g out of range", r.Dec)
	}
	_, err := ParseNoise(string(r.Noise))
	return err
}

// Epoch records the geometry and truth of one simulated cutout.
type Epoch struct {
	Index      int     `json:"index"`
	Pointing   int     `json:"pointing"`
	Detector   int     `json:"detector"`
	MJD        float64 `json:"mjd"`
	Detected   bool    `json:"detected"`
	Angle      float64 `json:"angle"`
	XShift     float64 `json:"x_shift"`
	YShift     float64 `json:"y_shift"`
	X0         int     `json:"x0"`
	Y0         int     `json:"y0"`
	SupernovaX float64 `json:"sn_x"`
	SupernovaY float64 `json:"sn_y"`
	GalaxyX    float64 `json:"gal_x"`
	GalaxyY    float64 `json:"gal_y"`
	Flux       float64 `json:"flux"`
}

// Reference carries the truth needed to check photometry of a simulation.
type Reference struct {
	SourceID   int64       `json:"source_id"`
	Band       survey.Band `json:"band"`
	Seed       uint64      `json:"seed"`
	RA         float64     `json:"ra"`
	Dec        float64     `json:"dec"`
	GalaxyRA   float64     `json:"gal_ra"`
	GalaxyDec  float64     `json:"gal_dec"`
	GalaxyFlux float64     `json:"gal_flux"`
	Noise      Noise       `json:"noise"`
	NoiseLevel float64     `json:"noise_level"`
	Epochs     []Epoch     `json:"epochs"`
	// Galaxy is the noiseless host on the first cutout.
	Galaxy *imaging.Image `json:"-"`
}

// Result is a simulated cutout sequence.
type Result struct {
	Images             []*imaging.Image
	ExposureWCS        []wcs.Header
	CutoutWCS          []wcs.Header
	InjectedLightCurve []float64
	Reference          Reference
}

// Len returns the number of cutouts.
func (r *Result) Len() int { return len(r.Images) }

// plan is the per-epoch input of render.
type plan struct {
	pointing, detector int
	mjd                float64
	detected           bool
	flux               float64
	angle              float64
	xShift, yShift     float64
}

// SimulateImages renders NumTotal cutouts. The last NumDetect carry the
// transient with the fluxes of LightCurve. Epoch i is rotated by i·2π/NumTotal
// when DoRotation is set and shifted by 0.1·i pixels along x when DoXShift is set.
func SimulateImages(req Request, rng *rand.Rand) (*Result, error) {
	req = req.withDefaults()
	if err := req.validate(); err != nil {
		return nil, err
	}

	plans := make([]plan, req.NumTotal)
	first := req.NumTotal - req.NumDetect
	for i := range req.NumTotal {
		p := plan{
			pointing: req.BasePointing,
			detector: req.BaseDetector,
			mjd:      req.MJD0 + float64(i)*req.Cadence,
		}
		if req.DoRotation {
			p.angle = float64(i) * 2 * math.Pi / float64(req.NumTotal)
		}
		if req.DoXShift {
			p.xShift = float64(i) * 0.1
		}
		if i >= first {
			p.detected = true
			p.flux = req.LightCurve[i-first]
		}
		plans[i] = p
	}
	return render(req, plans, rng)
}

// SimulateExposures renders one cutout per exposure, placing the transient
// with each detection exposure's TrueFlux on a pseudo-pointing derived from
// the exposure's pointing and detector. NumTotal, NumDetect and LightCurve
// are ignored.
func SimulateExposures(req Request, exposures []survey.Exposure, rng *rand.Rand) (*Result, error) {
	req = req.withDefaults()
	if len(exposures) == 0 {
		return nil, errors.Newf("no exposures to simulate").
			Category(errors.CategoryEmptyExposureList).
			Build()
	}
	if err := req.validateScene(); err != nil {
		return nil, err
	}

	plans := make([]plan, len(exposures))
	for i, e := range exposures {
		plans[i] = plan{
			pointing: e.Pointing,
			detector: e.Detector,
			mjd:      e.MJD,
			detected: e.Detected,
		}
		if e.Detected {
			plans[i].flux = e.TrueFlux
		}
	}
	return render(req, plans, rng)
}

func render(req Request, plans []plan, rng *rand.Rand) (*Result, error) {
	if rng == nil && (req.PhotonOps || req.Noise != NoiseNone) {
		return nil, validationError("noise and photon shooting require a random source")
	}

	stamp := Stamp{Size: req.Size, Scale: survey.PixelScale}
	galRA := req.RA + req.GalaxyRAOffset
	galDec := req.Dec + req.GalaxyDecOffset
	res := &Result{
		Images:             make([]*imaging.Image, 0, len(plans)),
		ExposureWCS:        make([]wcs.Header, 0, len(plans)),
		CutoutWCS:          make([]wcs.Header, 0, len(plans)),
		InjectedLightCurve: make([]float64, 0, len(plans)),
		Reference: Reference{
			SourceID:   req.SourceID,
			Band:       req.Band,
			Seed:       req.Seed,
			RA:         req.RA,
			Dec:        req.Dec,
			GalaxyRA:   galRA,
			GalaxyDec:  galDec,
			GalaxyFlux: req.GalaxyFlux,
			Noise:      req.Noise,
			NoiseLevel: req.NoiseLevel,
		},
	}

	for i, p := range plans {
		full, err := SimulateWCS(p.angle, p.xShift, p.yShift, p.pointing, p.detector, req.Band, req.RA, req.Dec)
		if err != nil {
			return nil, err
		}
		sx, sy, err := worldToPixel(req.Backend, full, req.RA, req.Dec)
		if err != nil {
			return nil, err
		}
		x0 := int(math.Round(sx)) - req.Size/2
		y0 := int(math.Round(sy)) - req.Size/2
		cut := full.Cutout(x0, y0, req.Size)
		gx, gy, err := worldToPixel(req.Backend, cut, galRA, galDec)
		if err != nil {
			return nil, err
		}

		ep := Epoch{
			Index:      i,
			Pointing:   p.pointing,
			Detector:   p.detector,
			MJD:        p.mjd,
			Detected:   p.detected,
			Angle:      p.angle,
			XShift:     p.xShift,
			YShift:     p.yShift,
			X0:         x0,
			Y0:         y0,
			SupernovaX: sx - float64(x0),
			SupernovaY: sy - float64(y0),
			GalaxyX:    gx,
			GalaxyY:    gy,
			Flux:       p.flux,
		}

		galSED, err := req.SED.SED(req.SourceID, math.NaN())
		if err != nil {
			return nil, err
		}
		img, err := SimulateGalaxy(Galaxy{
			Flux:            req.GalaxyFlux,
			X:               gx,
			Y:               gy,
			HalfLightRadius: req.GalaxyRadius,
			Delta:           req.DeltaProfile,
		}, req.Band, req.PSF, galSED, stamp)
		if err != nil {
			return nil, err
		}
		if i == 0 {
			res.Reference.Galaxy = img.Clone()
		}

		if p.flux != 0 {
			snSED, err := req.SED.SED(req.SourceID, p.mjd)
			if err != nil {
				return nil, err
			}
			sn, err := SimulateSupernova(ep.SupernovaX, ep.SupernovaY, stamp, p.flux, snSED, req.Band, req.PSF, req.PhotonOps, rng)
			if err != nil {
				return nil, err
			}
			img.AddImage(sn)
		}
		if err := AddNoise(img, req.Noise, req.NoiseLevel, rng); err != nil {
			return nil, err
		}

		res.Images = append(res.Images, img)
		res.ExposureWCS = append(res.ExposureWCS, full)
		res.CutoutWCS = append(res.CutoutWCS, cut)
		res.InjectedLightCurve = append(res.InjectedLightCurve, p.flux)
		res.Reference.Epochs = append(res.Reference.Epochs, ep)
	}

	log.Debug("simulated cutouts",
		logger.Int64("source_id", req.SourceID),
		logger.String("band", string(req.Band)),
		logger.Int("images", len(res.Images)),
		logger.String("noise", string(req.Noise)))
	return res, nil
}

// worldToPixel keeps positions that fall off the header's detector.
func worldToPixel(backend wcs.Backend, h wcs.Header, ra, dec float64) (x, y float64, err error) {
	w, err := wcs.New(backend, h)
	if err != nil {
		return 0, 0, err
	}
	x, y, err = w.WorldToPixel(ra, dec)
	if err != nil && !errors.Is(err, wcs.ErrOffDetector) {
		return 0, 0, errors.New(err).
			Category(errors.CategoryProjection).
			Context("ra", ra).
			Context("dec", dec).
			Build()
	}
	return x, y, nil
}

// Irrational strides spread pointing and detector numbers over the unit interval.
const (
	strideA = 0.6180339887498949
	strideB = 0.7548776662466927
)

func unitHash(a, b int, salt float64) float64 {
	f := math.Mod(float64(a)*strideA+float64(b)*strideB+salt, 1)
	if f < 0 {
		f++
	}
	return f
}

// SimulateWCS returns the header of a full detector observing (ra, dec).
// The position angle and the pixel that (ra, dec) lands on are derived from
// basePointing and baseDetector only, so the same inputs always give the same
// header. The sky is then rotated by angle radians about that pixel and the
// reference pixel moved by (xShift, yShift).
func SimulateWCS(angle, xShift, yShift float64, basePointing, baseDetector int, band survey.Band, ra, dec float64) (wcs.Header, error) {
	if !band.Valid() {
		return wcs.Header{}, validationError("unknown band %q", band)
	}
	if dec < -90 || dec > 90 {
		return wcs.Header{}, validationError("declination %g out of range", dec)
	}
	pa := 2 * math.Pi * unitHash(basePointing, baseDetector, 0)
	quarter := float64(survey.DetectorSize) / 4
	ox := (2*unitHash(baseDetector, basePointing, 0.25) - 1) * quarter
	oy := (2*unitHash(basePointing, baseDetector, 0.5) - 1) * quarter

	h := wcs.NewHeader(ra, dec, survey.PixelScale, pa, survey.DetectorSize, survey.DetectorSize)
	return h.Shifted(ox, oy).Rotated(angle).Shifted(xShift, yShift), nil
}

func validationError(format string, args ...any) error {
	return errors.Newf(format, args...).
		Category(errors.CategoryValidation).
		Build()
}
