// Package conf loads, validates and saves campari settings.
package conf

import "github.com/romanasp/campari/internal/logger"

// GetLogger returns the config package logger. It is fetched on every call
// because the global logger is replaced once settings are loaded.
func GetLogger() logger.Logger {
	return logger.Global().Module("config")
}
