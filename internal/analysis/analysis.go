// Package analysis drives campari's commands: it applies settings to the
// logging and telemetry stack, opens the catalog and runs the pipeline.
package analysis

import (
	"context"
	"time"

	"github.com/romanasp/campari/internal/catalog"
	"github.com/romanasp/campari/internal/conf"
	"github.com/romanasp/campari/internal/errors"
	"github.com/romanasp/campari/internal/lightcurve"
	"github.com/romanasp/campari/internal/logger"
	"github.com/romanasp/campari/internal/pipeline"
	"github.com/romanasp/campari/internal/survey"
)

const sentryFlushTimeout = 2 * time.Second

// Setup configures logging and error telemetry from settings. Call Shutdown
// before exiting.
func Setup(settings *conf.Settings) error {
	cfg := settings.Logging
	if settings.Debug {
		cfg.DefaultLevel = string(logger.LogLevelDebug)
		if cfg.Console != nil {
			console := *cfg.Console
			console.Level = cfg.DefaultLevel
			cfg.Console = &console
		}
	}
	if err := logger.Global().Configure(&cfg); err != nil {
		return errors.New(err).
			Category(errors.CategoryConfiguration).
			Context("operation", "configure-logging").
			Build()
	}

	if sentry := settings.Telemetry.Sentry; sentry.Enabled {
		if err := errors.InitSentry(sentry.DSN, sentry.Environment, settings.Version); err != nil {
			return errors.New(err).
				Category(errors.CategoryConfiguration).
				Context("operation", "init-sentry").
				Build()
		}
		log.Info("error telemetry enabled", logger.String("environment", sentry.Environment))
	}
	return nil
}

// Shutdown flushes pending telemetry and logs.
func Shutdown(settings *conf.Settings) {
	if settings.Telemetry.Sentry.Enabled {
		errors.FlushSentry(sentryFlushTimeout)
	}
	_ = logger.Global().Flush()
}

// Environment is the catalog state shared by the commands that process sources.
type Environment struct {
	Settings  *conf.Settings
	Store     *catalog.SQLStore
	Reference *catalog.ReferenceData
	// Registry is nil unless output.registry is set.
	Registry *lightcurve.Registry
}

// Open opens the catalog database, loads its reference data and, when
// configured, the artifact registry.
func Open(ctx context.Context, settings *conf.Settings) (*Environment, error) {
	start := time.Now()
	bands, err := settings.Bands()
	if err != nil {
		return nil, err
	}

	path := conf.ExpandPath(settings.Catalog.Path)
	store, err := catalog.OpenSQLStore(path, settings.CatalogOptions())
	if err != nil {
		return nil, err
	}
	env := &Environment{Settings: settings, Store: store}

	env.Reference, err = catalog.LoadReferenceData(ctx, store, bands, settings.Catalog.CellSize)
	if err != nil {
		_ = env.Close()
		return nil, err
	}

	if settings.Output.Registry != "" {
		env.Registry, err = lightcurve.OpenRegistry(conf.ExpandPath(settings.Output.Registry), settings.Catalog.SlowQuery)
		if err != nil {
			_ = env.Close()
			return nil, err
		}
	}

	log.Debug("environment ready",
		logger.String("catalog", path),
		logger.Int("shards", env.Reference.NumShards()),
		logger.Bool("registry", env.Registry != nil),
		logger.Duration("duration", time.Since(start)))
	return env, nil
}

// Close releases the registry and the catalog.
func (e *Environment) Close() error {
	var errs []error
	if e.Registry != nil {
		errs = append(errs, e.Registry.Close())
	}
	if e.Store != nil {
		errs = append(errs, e.Store.Close())
	}
	return errors.Join(errs...)
}

// Pipeline builds a pipeline from the settings. extra options are applied
// after the configured ones.
func (e *Environment) Pipeline(extra ...pipeline.Option) (*pipeline.Pipeline, error) {
	s := e.Settings
	opts, err := s.PipelineOptions()
	if err != nil {
		return nil, err
	}
	opts.OutputDir = conf.ExpandPath(opts.OutputDir)

	images, err := s.ImageSource()
	if err != nil {
		return nil, err
	}
	estimator, err := s.Estimator()
	if err != nil {
		return nil, err
	}
	calibrator, err := s.Calibrator()
	if err != nil {
		return nil, err
	}

	options := []pipeline.Option{
		pipeline.WithImageSource(images),
		pipeline.WithEstimator(estimator),
		pipeline.WithCalibrator(calibrator),
	}
	if e.Registry != nil {
		options = append(options, pipeline.WithRegistry(e.Registry))
	}
	options = append(options, extra...)
	return pipeline.New(e.Reference, e.Store, opts, options...), nil
}

// request converts command input into a pipeline request, falling back to the
// configured pointing and detector filters.
func (e *Environment) request(sourceID int64, band string, label string, pointings, detectors []int) (pipeline.Request, error) {
	b, err := survey.ParseBand(band)
	if err != nil {
		return pipeline.Request{}, err
	}
	req := pipeline.Request{
		SourceID:  sourceID,
		Band:      b,
		Label:     label,
		Pointings: pointings,
		Detectors: detectors,
	}
	if len(req.Pointings) == 0 {
		req.Pointings = e.Settings.Exposures.Pointings
	}
	if len(req.Detectors) == 0 {
		req.Detectors = e.Settings.Exposures.Detectors
	}
	return req, nil
}
