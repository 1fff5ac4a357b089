package conf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateSettings(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*Settings)
		wantErr string
	}{
		{"defaults", func(*Settings) {}, ""},
		{"empty catalog path", func(s *Settings) { s.Catalog.Path = " " }, "catalog path is required"},
		{"unknown catalog band", func(s *Settings) { s.Catalog.Bands = []string{"V"} }, "unknown band"},
		{"zero stamp", func(s *Settings) { s.Exposures.StampSize = 0 }, "stamp size"},
		{"negative caps", func(s *Settings) { s.Exposures.MaxDetection = -1 }, "exposure caps"},
		{"unknown policy", func(s *Settings) { s.Grid.Policy = "hexagonal" }, "unknown grid policy"},
		{"zero spacing", func(s *Settings) { s.Grid.Spacing = 0 }, "grid spacing must be positive"},
		{"bad unit", func(s *Settings) { s.Grid.SpacingUnit = "degree" }, "spacing unit"},
		{"bad percentile", func(s *Settings) { s.Grid.Percentiles = []float64{50, 101} }, "percentile"},
		{"fixtures without dir", func(s *Settings) {
			s.Simulation.Source = SourceFixtures
			s.Simulation.FixtureDir = ""
		}, "fixture directory"},
		{"unknown source", func(s *Settings) { s.Simulation.Source = "telescope" }, "image source"},
		{"unknown noise", func(s *Settings) { s.Simulation.Noise = "pink" }, "unknown noise model"},
		{"unknown backend", func(s *Settings) { s.Simulation.Backend = "sip" }, "unknown WCS backend"},
		{"detect exceeds total", func(s *Settings) { s.Simulation.NumDetect = 11 }, "numdetect"},
		{"light curve length", func(s *Settings) { s.Simulation.LightCurve = []float64{1, 2} }, "light curve has 2 points"},
		{"unknown zero point band", func(s *Settings) {
			s.Photometry.ZeroPoints = map[string]float64{"v": 25}
		}, "zero point for unknown band"},
		{"label with separator", func(s *Settings) { s.Output.Label = "a/b" }, "path separators"},
		{"sentry without dsn", func(s *Settings) { s.Telemetry.Sentry.Enabled = true }, "sentry DSN"},
		{"bad listen", func(s *Settings) {
			s.Telemetry.Prometheus.Enabled = true
			s.Telemetry.Prometheus.Listen = "9090"
		}, "prometheus listen"},
		{"negative workers", func(s *Settings) { s.Batch.Workers = -1 }, "workers must not be negative"},
	}

	base := defaultSettings(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := *base
			s.Catalog.Bands = nil
			s.Photometry.ZeroPoints = nil
			tt.mutate(&s)

			err := ValidateSettings(&s)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)

			var ve ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Len(t, ve.Errors, 1)
		})
	}
}

func TestValidationErrorMessage(t *testing.T) {
	t.Parallel()

	ve := ValidationError{Errors: []string{"a", "b"}}
	assert.Equal(t, "Validation errors: [a b]", ve.Error())
}
