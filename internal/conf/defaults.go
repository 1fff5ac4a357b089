// conf/defaults.go default values for settings
package conf

import (
	"time"

	"github.com/spf13/viper"

	"github.com/romanasp/campari/internal/catalog"
	"github.com/romanasp/campari/internal/grid"
	"github.com/romanasp/campari/internal/logger"
)

// setDefaultConfig sets the default value of every key on v.
func setDefaultConfig(v *viper.Viper) {
	v.SetDefault("debug", false)

	v.SetDefault("catalog.path", "data/catalog.db")
	v.SetDefault("catalog.cellsize", catalog.DefaultCellDeg)
	v.SetDefault("catalog.cachettl", 10*time.Minute)
	v.SetDefault("catalog.cachecleanup", 20*time.Minute)
	v.SetDefault("catalog.slowquery", 200*time.Millisecond)
	v.SetDefault("catalog.batchsize", 500)
	v.SetDefault("catalog.bands", []string{})

	v.SetDefault("exposures.maxbackground", 0)
	v.SetDefault("exposures.maxdetection", 0)
	v.SetDefault("exposures.stampsize", 11)
	v.SetDefault("exposures.pointings", []int{})
	v.SetDefault("exposures.detectors", []int{})
	v.SetDefault("exposures.truth.peakflux", 1e4)
	v.SetDefault("exposures.truth.rise", 10.0)
	v.SetDefault("exposures.truth.fall", 30.0)

	v.SetDefault("grid.policy", "regular")
	v.SetDefault("grid.size", 0)
	v.SetDefault("grid.spacing", 1.0)
	v.SetDefault("grid.spacingunit", "pixel")
	v.SetDefault("grid.percentiles", grid.DefaultPercentiles)
	v.SetDefault("grid.sparsestride", grid.DefaultSparseStride)
	v.SetDefault("grid.levels", grid.DefaultLevels)

	v.SetDefault("simulation.source", SourceSimulate)
	v.SetDefault("simulation.fixturedir", "data/fixtures")
	v.SetDefault("simulation.noise", "none")
	v.SetDefault("simulation.noiselevel", 0.0)
	v.SetDefault("simulation.galaxyflux", 9e5)
	v.SetDefault("simulation.galaxyradius", 0.5)
	v.SetDefault("simulation.deltaprofile", false)
	v.SetDefault("simulation.photonops", false)
	v.SetDefault("simulation.seed", 12345)
	v.SetDefault("simulation.backend", "tangent")
	v.SetDefault("simulation.numtotal", 10)
	v.SetDefault("simulation.numdetect", 5)
	v.SetDefault("simulation.lightcurve", []float64{10, 100, 1e3, 1e4, 1e5})
	v.SetDefault("simulation.doxshift", true)
	v.SetDefault("simulation.dorotation", true)
	v.SetDefault("simulation.mjd0", 62000.0)
	v.SetDefault("simulation.cadence", 5.0)

	v.SetDefault("photometry.aperture.radius", 0.0)
	v.SetDefault("photometry.aperture.subtractbackground", false)
	v.SetDefault("photometry.aperture.background.sigma", 3.0)
	v.SetDefault("photometry.aperture.background.maxiterations", 10)
	v.SetDefault("photometry.aperture.background.minkeepfraction", 0.1)
	v.SetDefault("photometry.aperture.background.strict", false)
	v.SetDefault("photometry.zeropoints", map[string]float64{})

	v.SetDefault("output.dir", "lightcurves")
	v.SetDefault("output.label", "campari")
	v.SetDefault("output.overwrite", false)
	v.SetDefault("output.registry", "")

	v.SetDefault("logging.default_level", logger.DefaultLogLevel)
	v.SetDefault("logging.console.enabled", true)
	v.SetDefault("logging.console.level", logger.DefaultLogLevel)
	v.SetDefault("logging.console.json", false)
	v.SetDefault("logging.file_output.enabled", false)
	v.SetDefault("logging.file_output.path", logger.DefaultLogPath)
	v.SetDefault("logging.file_output.level", logger.DefaultLogLevel)
	v.SetDefault("logging.file_output.max_size", logger.DefaultMaxSize)
	v.SetDefault("logging.file_output.max_age", logger.DefaultMaxAge)
	v.SetDefault("logging.file_output.max_rotated_files", logger.DefaultMaxRotatedFiles)
	v.SetDefault("logging.file_output.compress", true)

	v.SetDefault("telemetry.prometheus.enabled", false)
	v.SetDefault("telemetry.prometheus.listen", "127.0.0.1:9090")
	v.SetDefault("telemetry.sentry.enabled", false)
	v.SetDefault("telemetry.sentry.dsn", "")
	v.SetDefault("telemetry.sentry.environment", "production")

	v.SetDefault("batch.workers", 0)
}
