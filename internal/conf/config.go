// config.go: settings struct and the functions that load and save it.
package conf

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/romanasp/campari/internal/errors"
	"github.com/romanasp/campari/internal/logger"
	"github.com/romanasp/campari/internal/photometry"
)

//go:embed config.yaml
var configFiles embed.FS

// CatalogSettings locate the SQLite catalog and tune its access.
type CatalogSettings struct {
	Path         string        // SQLite catalog and footprint database
	CellSize     float64       // footprint index cell, degrees
	CacheTTL     time.Duration // shard row cache lifetime, 0 disables the cache
	CacheCleanup time.Duration // expired shard sweep interval
	SlowQuery    time.Duration // queries slower than this are logged as warnings
	BatchSize    int           // rows per insert batch during ingest
	Bands        []string      // footprint bands loaded at startup, empty loads all
}

// TruthSettings define the simple truth model used when detecting epochs.
type TruthSettings struct {
	PeakFlux float64 // transient flux at peak
	Rise     float64 // rise time, days
	Fall     float64 // decay time, days
}

// ExposureSettings control exposure selection.
type ExposureSettings struct {
	MaxBackground int   // background epochs, 0 keeps all
	MaxDetection  int   // detection epochs, 0 keeps all
	StampSize     int   // cutout size in pixels
	Pointings     []int // restrict to these pointings
	Detectors     []int // restrict to these detectors
	Truth         TruthSettings
}

// GridSettings pick and parameterise the scene grid policy.
type GridSettings struct {
	Policy       string    // regular, adaptive or contour
	Size         int       // regular grid points per side, 0 uses the stamp width
	Spacing      float64   // regular grid spacing
	SpacingUnit  string    // pixel or arcsec
	Percentiles  []float64 // adaptive brightness percentiles
	SparseStride int       // adaptive stride below the lowest percentile
	Levels       int       // contour levels
}

// SimulationSettings configure the synthetic image source and the simulate command.
type SimulationSettings struct {
	Source       string  // simulate or fixtures
	FixtureDir   string  // root of fixture stamps for the fixtures source
	Noise        string  // none, uniform or poisson
	NoiseLevel   float64 // uniform noise amplitude
	GalaxyFlux   float64
	GalaxyRadius float64 // half-light radius, arcsec
	DeltaProfile bool    // point source instead of a PSF-convolved profile
	PhotonOps    bool
	Seed         uint64
	Backend      string // tangent or rotation

	// Used by the simulate command only.
	NumTotal   int
	NumDetect  int
	LightCurve []float64
	DoXShift   bool
	DoRotation bool
	MJD0       float64
	Cadence    float64 // days between epochs
}

// PhotometrySettings configure aperture measurement and zero points.
type PhotometrySettings struct {
	Aperture   photometry.ApertureOptions
	ZeroPoints map[string]float64 // per-band AB zero point overrides
}

// OutputSettings control where light curves are written.
type OutputSettings struct {
	Dir       string
	Label     string
	Overwrite bool
	Registry  string // artifact registry database, empty disables the registry
}

// PrometheusSettings expose batch metrics over HTTP.
type PrometheusSettings struct {
	Enabled bool
	Listen  string // host:port
}

// SentrySettings enable error telemetry.
type SentrySettings struct {
	Enabled     bool
	DSN         string
	Environment string
}

type TelemetrySettings struct {
	Prometheus PrometheusSettings
	Sentry     SentrySettings
}

type BatchSettings struct {
	Workers int // concurrent sources, 0 uses GOMAXPROCS
}

// Settings contains all configuration options for campari.
type Settings struct {
	Debug   bool
	Version string `yaml:"-"` // build version, runtime value

	Catalog    CatalogSettings
	Exposures  ExposureSettings
	Grid       GridSettings
	Simulation SimulationSettings
	Photometry PhotometrySettings
	Output     OutputSettings
	Logging    logger.LoggingConfig
	Telemetry  TelemetrySettings
	Batch      BatchSettings
}

// settingsInstance is the current settings instance
var (
	settingsInstance *Settings
	once             sync.Once
	settingsMutex    sync.RWMutex
)

// Load reads configFile, or the default config file when configFile is empty,
// overlays environment variables and validates the result.
func Load(configFile string) (*Settings, error) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()

	v := viper.New()
	if err := initViper(v, configFile); err != nil {
		return nil, err
	}

	settings := &Settings{}
	if err := v.Unmarshal(settings); err != nil {
		return nil, errors.New(err).
			Category(errors.CategoryConfiguration).
			Context("operation", "unmarshal-config").
			Context("file", v.ConfigFileUsed()).
			Build()
	}

	if err := ValidateSettings(settings); err != nil {
		return nil, errors.New(err).
			Category(errors.CategoryValidation).
			Context("operation", "validate-config").
			Context("file", v.ConfigFileUsed()).
			Build()
	}

	settingsInstance = settings
	return settingsInstance, nil
}

// initViper sets defaults and environment bindings on v and reads the
// configuration file. Without an explicit file the default search paths are
// used, and a default config is written to the first of them if none exists.
func initViper(v *viper.Viper, configFile string) error {
	v.SetConfigType("yaml")
	setDefaultConfig(v)

	if err := configureEnvironmentVariables(v); err != nil {
		return errors.New(err).
			Category(errors.CategoryConfiguration).
			Context("operation", "bind-environment").
			Build()
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return errors.New(err).
				Category(errors.CategoryConfiguration).
				Context("operation", "read-config").
				Context("file", configFile).
				Build()
		}
		return nil
	}

	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return err
	}
	v.SetConfigName("config")
	for _, path := range configPaths {
		v.AddConfigPath(path)
	}

	err = v.ReadInConfig()
	if err == nil {
		return nil
	}
	var notFound viper.ConfigFileNotFoundError
	if errors.As(err, &notFound) {
		return createDefaultConfig(v, configPaths[0])
	}
	return errors.New(err).
		Category(errors.CategoryConfiguration).
		Context("operation", "read-config").
		Build()
}

// createDefaultConfig writes the embedded config.yaml into dir and reads it.
func createDefaultConfig(v *viper.Viper, dir string) error {
	configPath := filepath.Join(dir, "config.yaml")

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.New(err).
			Category(errors.CategoryFileIO).
			Context("operation", "create-config-dir").
			Context("path", dir).
			Build()
	}
	if err := os.WriteFile(configPath, []byte(getDefaultConfig()), 0o644); err != nil {
		return errors.New(err).
			Category(errors.CategoryFileIO).
			Context("operation", "write-default-config").
			Context("path", configPath).
			Build()
	}

	GetLogger().Info("created default config file", logger.String("path", configPath))
	v.SetConfigFile(configPath)
	return v.ReadInConfig()
}

// getDefaultConfig reads the default configuration from the embedded config.yaml file.
func getDefaultConfig() string {
	data, err := fs.ReadFile(configFiles, "config.yaml")
	if err != nil {
		panic(fmt.Sprintf("embedded config.yaml missing: %v", err))
	}
	return string(data)
}

// GetSettings returns the current settings instance
func GetSettings() *Settings {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return settingsInstance
}

// Setting returns the current settings instance, loading the default config
// on first use.
func Setting() *Settings {
	once.Do(func() {
		if GetSettings() == nil {
			if _, err := Load(""); err != nil {
				GetLogger().Error("failed to load settings", logger.Error(err))
				os.Exit(1)
			}
		}
	})
	return GetSettings()
}

// SaveYAMLConfig writes settings to configPath. The file is replaced, comments
// in the previous file are not preserved.
func SaveYAMLConfig(configPath string, settings *Settings) error {
	yamlData, err := yaml.Marshal(settings)
	if err != nil {
		return errors.New(err).
			Category(errors.CategoryConfiguration).
			Context("operation", "marshal-config").
			Build()
	}

	// Write to a temporary file next to the target so the final rename is atomic.
	tempFile, err := os.CreateTemp(filepath.Dir(configPath), "config-*.yaml")
	if err != nil {
		return errors.New(err).
			Category(errors.CategoryFileIO).
			Context("operation", "create-temp-config").
			Build()
	}
	tempFileName := tempFile.Name()
	defer func() { _ = os.Remove(tempFileName) }()

	if _, err := tempFile.Write(yamlData); err != nil {
		_ = tempFile.Close()
		return errors.New(err).
			Category(errors.CategoryFileIO).
			Context("operation", "write-temp-config").
			Build()
	}
	if err := tempFile.Close(); err != nil {
		return errors.New(err).
			Category(errors.CategoryFileIO).
			Context("operation", "close-temp-config").
			Build()
	}

	if err := moveFile(tempFileName, configPath); err != nil {
		return errors.New(err).
			Category(errors.CategoryFileIO).
			Context("operation", "replace-config").
			Context("path", configPath).
			Build()
	}
	return nil
}
