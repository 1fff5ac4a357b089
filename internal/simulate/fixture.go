package simulate

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/antonholmquist/jason"

	"github.com/romanasp/campari/internal/errors"
	"github.com/romanasp/campari/internal/imaging"
	"github.com/romanasp/campari/internal/logger"
	"github.com/romanasp/campari/internal/survey"
	"github.com/romanasp/campari/internal/wcs"
)

// MetadataFile is written next to the TIFF stamps of a fixture.
const MetadataFile = "metadata.json"

type fixtureImage struct {
	File         string               `json:"file"`
	Quantization imaging.Quantization `json:"quantization"`
	ExposureWCS  wcs.Header           `json:"exposure_wcs"`
	CutoutWCS    wcs.Header           `json:"cutout_wcs"`
	Injected     float64              `json:"injected_flux"`
}

type fixtureMetadata struct {
	Reference Reference      `json:"reference"`
	Images    []fixtureImage `json:"images"`
}

// WriteFixtures stores res in dir as 16-bit TIFF stamps plus a JSON metadata
// file. An existing fixture is only replaced when overwrite is set.
func WriteFixtures(dir string, res *Result, overwrite bool) error {
	metaPath := filepath.Join(dir, MetadataFile)
	if _, err := os.Stat(metaPath); err == nil && !overwrite {
		return errors.Newf("fixture already exists in %s", dir).
			Category(errors.CategoryConflict).
			Context("path", metaPath).
			Build()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fileError(err, dir, "create_fixture_dir")
	}

	meta := fixtureMetadata{Reference: res.Reference}
	for i, img := range res.Images {
		name := fmt.Sprintf("image_%03d.tiff", i)
		q, err := writeTIFF(filepath.Join(dir, name), img)
		if err != nil {
			return err
		}
		meta.Images = append(meta.Images, fixtureImage{
			File:         name,
			Quantization: q,
			ExposureWCS:  res.ExposureWCS[i],
			CutoutWCS:    res.CutoutWCS[i],
			Injected:     res.InjectedLightCurve[i],
		})
	}

	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return errors.New(err).
			Category(errors.CategoryFileParsing).
			Context("operation", "encode_fixture_metadata").
			Build()
	}
	if err := os.WriteFile(metaPath, data, 0o644); err != nil {
		return fileError(err, metaPath, "write_fixture_metadata")
	}
	log.Info("wrote simulation fixture",
		logger.String("dir", dir),
		logger.Int("images", len(res.Images)))
	return nil
}

func writeTIFF(path string, img *imaging.Image) (imaging.Quantization, error) {
	f, err := os.Create(path)
	if err != nil {
		return imaging.Quantization{}, fileError(err, path, "create_tiff")
	}
	q, err := img.WriteTIFF(f)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return imaging.Quantization{}, fileError(err, path, "write_tiff")
	}
	return q, nil
}

// LoadFixtures reads a fixture written by WriteFixtures. Pixel values come
// back quantized to 16 bits between each stamp's minimum and maximum.
func LoadFixtures(dir string) (*Result, error) {
	metaPath := filepath.Join(dir, MetadataFile)
	f, err := os.Open(metaPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Newf("no simulation fixture in %s", dir).
				Category(errors.CategoryNotFound).
				Context("path", metaPath).
				Build()
		}
		return nil, fileError(err, metaPath, "open_fixture_metadata")
	}
	defer f.Close()

	root, err := jason.NewObjectFromReader(f)
	if err != nil {
		return nil, parseError(err, metaPath)
	}
	refObj, err := root.GetObject("reference")
	if err != nil {
		return nil, parseError(err, metaPath)
	}
	ref, err := readReference(refObj)
	if err != nil {
		return nil, parseError(err, metaPath)
	}
	images, err := root.GetObjectArray("images")
	if err != nil {
		return nil, parseError(err, metaPath)
	}

	res := &Result{Reference: ref}
	for _, obj := range images {
		name, err := obj.GetString("file")
		if err != nil {
			return nil, parseError(err, metaPath)
		}
		var q imaging.Quantization
		if q.Offset, err = obj.GetFloat64("quantization", "offset"); err != nil {
			return nil, parseError(err, metaPath)
		}
		if q.Scale, err = obj.GetFloat64("quantization", "scale"); err != nil {
			return nil, parseError(err, metaPath)
		}
		expWCS, err := readHeader(obj, "exposure_wcs")
		if err != nil {
			return nil, parseError(err, metaPath)
		}
		cutWCS, err := readHeader(obj, "cutout_wcs")
		if err != nil {
			return nil, parseError(err, metaPath)
		}
		injected, err := obj.GetFloat64("injected_flux")
		if err != nil {
			return nil, parseError(err, metaPath)
		}
		img, err := readTIFF(filepath.Join(dir, name), q)
		if err != nil {
			return nil, err
		}
		res.Images = append(res.Images, img)
		res.ExposureWCS = append(res.ExposureWCS, expWCS)
		res.CutoutWCS = append(res.CutoutWCS, cutWCS)
		res.InjectedLightCurve = append(res.InjectedLightCurve, injected)
	}
	return res, nil
}

func readTIFF(path string, q imaging.Quantization) (*imaging.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fileError(err, path, "open_tiff")
	}
	defer f.Close()
	img, err := imaging.ReadTIFF(f, q)
	if err != nil {
		return nil, parseError(err, path)
	}
	return img, nil
}

func readReference(obj *jason.Object) (Reference, error) {
	var ref Reference
	var err error
	if ref.SourceID, err = obj.GetInt64("source_id"); err != nil {
		return ref, err
	}
	band, err := obj.GetString("band")
	if err != nil {
		return ref, err
	}
	ref.Band = survey.Band(band)
	seed, err := obj.GetInt64("seed")
	if err != nil {
		return ref, err
	}
	ref.Seed = uint64(seed)
	noise, err := obj.GetString("noise")
	if err != nil {
		return ref, err
	}
	ref.Noise = Noise(noise)

	for key, dst := range map[string]*float64{
		"ra":          &ref.RA,
		"dec":         &ref.Dec,
		"gal_ra":      &ref.GalaxyRA,
		"gal_dec":     &ref.GalaxyDec,
		"gal_flux":    &ref.GalaxyFlux,
		"noise_level": &ref.NoiseLevel,
	} {
		if *dst, err = obj.GetFloat64(key); err != nil {
			return ref, err
		}
	}

	epochs, err := obj.GetObjectArray("epochs")
	if err != nil {
		return ref, err
	}
	for _, e := range epochs {
		ep, err := readEpoch(e)
		if err != nil {
			return ref, err
		}
		ref.Epochs = append(ref.Epochs, ep)
	}
	return ref, nil
}

func readEpoch(obj *jason.Object) (Epoch, error) {
	var ep Epoch
	ints := map[string]*int{
		"index":    &ep.Index,
		"pointing": &ep.Pointing,
		"detector": &ep.Detector,
		"x0":       &ep.X0,
		"y0":       &ep.Y0,
	}
	for key, dst := range ints {
		v, err := obj.GetInt64(key)
		if err != nil {
			return ep, err
		}
		*dst = int(v)
	}
	floats := map[string]*float64{
		"mjd":     &ep.MJD,
		"angle":   &ep.Angle,
		"x_shift": &ep.XShift,
		"y_shift": &ep.YShift,
		"sn_x":    &ep.SupernovaX,
		"sn_y":    &ep.SupernovaY,
		"gal_x":   &ep.GalaxyX,
		"gal_y":   &ep.GalaxyY,
		"flux":    &ep.Flux,
	}
	for key, dst := range floats {
		v, err := obj.GetFloat64(key)
		if err != nil {
			return ep, err
		}
		*dst = v
	}
	detected, err := obj.GetBoolean("detected")
	if err != nil {
		return ep, err
	}
	ep.Detected = detected
	return ep, nil
}

func readHeader(obj *jason.Object, key string) (wcs.Header, error) {
	var h wcs.Header
	floats := map[string]*float64{
		"crval1": &h.CRVAL1,
		"crval2": &h.CRVAL2,
		"crpix1": &h.CRPIX1,
		"crpix2": &h.CRPIX2,
		"cd1_1":  &h.CD1_1,
		"cd1_2":  &h.CD1_2,
		"cd2_1":  &h.CD2_1,
		"cd2_2":  &h.CD2_2,
	}
	for k, dst := range floats {
		v, err := obj.GetFloat64(key, k)
		if err != nil {
			return h, err
		}
		*dst = v
	}
	nx, err := obj.GetInt64(key, "naxis1")
	if err != nil {
		return h, err
	}
	ny, err := obj.GetInt64(key, "naxis2")
	if err != nil {
		return h, err
	}
	h.NAXIS1, h.NAXIS2 = int(nx), int(ny)
	return h, nil
}

func fileError(err error, path, op string) error {
	return errors.New(err).
		Category(errors.CategoryFileIO).
		Context("path", path).
		Context("operation", op).
		Build()
}

func parseError(err error, path string) error {
	return errors.New(err).
		Category(errors.CategoryFileParsing).
		Context("path", path).
		Build()
}
