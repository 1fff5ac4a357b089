// env.go - environment variable overrides and their validation
package conf

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/viper"

	"github.com/romanasp/campari/internal/grid"
	"github.com/romanasp/campari/internal/survey"
)

// envBinding ties an environment variable to a config key.
type envBinding struct {
	ConfigKey string             // Viper config key
	EnvVar    string             // Environment variable name
	Validate  func(string) error // Optional validation function
}

// getEnvBindings returns all environment variable bindings with validation
func getEnvBindings() []envBinding {
	return []envBinding{
		{"debug", "CAMPARI_DEBUG", validateEnvBool},
		{"logging.default_level", "CAMPARI_LOG_LEVEL", validateEnvLogLevel},

		// Catalog and output locations
		{"catalog.path", "CAMPARI_CATALOG", validateEnvPath},
		{"catalog.bands", "CAMPARI_BANDS", validateEnvBands},
		{"output.dir", "CAMPARI_OUTPUT_DIR", validateEnvPath},
		{"output.registry", "CAMPARI_REGISTRY", nil},
		{"simulation.fixturedir", "CAMPARI_FIXTURE_DIR", validateEnvPath},

		// Processing
		{"grid.policy", "CAMPARI_GRID_POLICY", validateEnvGridPolicy},
		{"simulation.seed", "CAMPARI_SEED", validateEnvSeed},
		{"batch.workers", "CAMPARI_WORKERS", validateEnvWorkers},

		// Telemetry
		{"telemetry.prometheus.enabled", "CAMPARI_METRICS", validateEnvBool},
		{"telemetry.prometheus.listen", "CAMPARI_METRICS_LISTEN", validateEnvListen},
		{"telemetry.sentry.enabled", "CAMPARI_SENTRY", validateEnvBool},
		{"telemetry.sentry.dsn", "CAMPARI_SENTRY_DSN", nil},
	}
}

// bindEnvVars binds every variable and validates the ones that are set.
// All problems are reported together.
func bindEnvVars(v *viper.Viper) error {
	var warnings []string

	for _, binding := range getEnvBindings() {
		if err := v.BindEnv(binding.ConfigKey, binding.EnvVar); err != nil {
			warnings = append(warnings, fmt.Sprintf("Failed to bind %s: %v", binding.EnvVar, err))
			continue
		}

		if binding.Validate != nil {
			if envValue := os.Getenv(binding.EnvVar); envValue != "" {
				if err := binding.Validate(envValue); err != nil {
					warnings = append(warnings, fmt.Sprintf("Invalid %s value '%s': %v", binding.EnvVar, envValue, err))
				}
			}
		}
	}

	if len(warnings) > 0 {
		return fmt.Errorf("environment variable issues:\n  - %s", strings.Join(warnings, "\n  - "))
	}
	return nil
}

func validateEnvBool(value string) error {
	if _, err := strconv.ParseBool(value); err != nil {
		return fmt.Errorf("invalid boolean value '%s': must be true/false, 1/0, t/f, TRUE/FALSE, T/F", value)
	}
	return nil
}

func validateEnvLogLevel(value string) error {
	switch strings.ToLower(value) {
	case "trace", "debug", "info", "warn", "error":
		return nil
	}
	return fmt.Errorf("log level must be one of trace, debug, info, warn, error, got '%s'", value)
}

func validateEnvPath(value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("path must not be blank")
	}
	if strings.ContainsRune(value, 0) {
		return fmt.Errorf("path contains a NUL byte")
	}
	return nil
}

// validateEnvBands accepts a comma separated band list.
func validateEnvBands(value string) error {
	for name := range strings.SplitSeq(value, ",") {
		if _, err := survey.ParseBand(strings.TrimSpace(name)); err != nil {
			return err
		}
	}
	return nil
}

func validateEnvGridPolicy(value string) error {
	_, err := grid.ParsePolicy(value)
	return err
}

func validateEnvSeed(value string) error {
	if _, err := strconv.ParseUint(value, 10, 64); err != nil {
		return fmt.Errorf("seed must be a non-negative integer, got '%s'", value)
	}
	return nil
}

func validateEnvWorkers(value string) error {
	n, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("invalid integer '%s'", value)
	}
	if n < 0 || n > 1024 {
		return fmt.Errorf("workers must be between 0 and 1024, got %d", n)
	}
	return nil
}

func validateEnvListen(value string) error {
	_, port, err := net.SplitHostPort(value)
	if err != nil {
		return fmt.Errorf("listen address must be host:port: %w", err)
	}
	if _, err := strconv.ParseUint(port, 10, 16); err != nil {
		return fmt.Errorf("invalid port '%s'", port)
	}
	return nil
}

// configureEnvironmentVariables sets up environment variable support on v.
func configureEnvironmentVariables(v *viper.Viper) error {
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	return bindEnvVars(v)
}
